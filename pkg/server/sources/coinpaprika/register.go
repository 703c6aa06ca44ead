package coinpaprika

import (
	"github.com/StrathCole/external-adapter-go/pkg/server/sources"
)

func init() {
	sources.Register(sources.AdapterTypeCoinpaprika, New)
}
