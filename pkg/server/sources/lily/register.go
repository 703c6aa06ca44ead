package lily

import (
	"github.com/StrathCole/external-adapter-go/pkg/server/sources"
)

func init() {
	sources.Register(sources.AdapterTypeLily, New)
}
