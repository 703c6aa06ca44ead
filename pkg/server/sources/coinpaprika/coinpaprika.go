package coinpaprika

import (
	"context"
	_ "embed"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/StrathCole/external-adapter-go/pkg/core/dispatcher"
	"github.com/StrathCole/external-adapter-go/pkg/core/extractor"
	"github.com/StrathCole/external-adapter-go/pkg/core/job"
	"github.com/StrathCole/external-adapter-go/pkg/core/resolver"
	"github.com/StrathCole/external-adapter-go/pkg/core/validator"
	"github.com/StrathCole/external-adapter-go/pkg/server/sources"
)

const (
	defaultBaseURL = "https://api.coinpaprika.com"
	proBaseURL     = "https://api-pro.coinpaprika.com"
)

//go:embed overrides.yaml
var bundledOverrides []byte

// Field names under quotes.<QUOTE> per endpoint.
var resultFields = map[string]string{
	"crypto":    "price",
	"marketcap": "market_cap",
	"volume":    "volume_24h",
}

var quotePattern = regexp.MustCompile(`^[A-Za-z0-9]{2,10}$`)

var schema = validator.Schema{
	{Name: "base", Aliases: []string{"from", "coin"}, Required: true, Type: validator.TypeStringOrArray},
	{Name: "quote", Aliases: []string{"to", "market"}, Required: true, Type: validator.TypeString},
	{Name: "coinid", Type: validator.TypeString},
	{Name: "resultPath", Type: validator.TypeAny},
	{Name: "overrides", Type: validator.TypeObject},
}

// Adapter serves crypto, marketcap and volume endpoints.
type Adapter struct {
	*sources.BaseAdapter

	client  *sources.HTTPClient
	baseURL string
}

// New creates the adapter from factory options. Recognized config keys: base_url,
// api_key, timeout, rate_limit, burst.
func New(opts sources.Options) (sources.Adapter, error) {
	httpOpts, err := sources.HTTPOptionsFromConfig(opts.Config)
	if err != nil {
		return nil, err
	}

	apiKey := sources.GetString(opts.Config, "api_key", "")
	base := defaultBaseURL
	if apiKey != "" {
		base = proBaseURL
		httpOpts.Headers["Authorization"] = apiKey
	}
	base = strings.TrimRight(sources.GetString(opts.Config, "base_url", base), "/")

	bundled, err := resolver.ParseOverrideFile(bundledOverrides)
	if err != nil {
		return nil, fmt.Errorf("bundled overrides: %w", err)
	}

	client := sources.NewHTTPClient(opts.Name, httpOpts, opts.Logger)
	a := &Adapter{client: client, baseURL: base}

	res := resolver.New(opts.Name,
		sources.StaticTable(bundled, string(sources.AdapterTypeCoinpaprika), opts.Overrides),
		NewCatalog(client, base),
		opts.Logger)

	endpoints := []*job.Endpoint{
		a.endpoint("crypto", []string{"price"}, res),
		a.endpoint("marketcap", nil, res),
		a.endpoint("volume", nil, res),
	}

	inner, err := job.NewAdapter(sources.JobOptions(opts), endpoints...)
	if err != nil {
		return nil, err
	}
	a.BaseAdapter = sources.NewBaseAdapter(sources.AdapterTypeCoinpaprika, inner, opts.Logger)
	return a, nil
}

func (a *Adapter) endpoint(name string, aliases []string, res *resolver.Resolver) *job.Endpoint {
	field := resultFields[name]
	return &job.Endpoint{
		Name:      name,
		Aliases:   aliases,
		Schema:    schema,
		Items:     job.SymbolItems("base"),
		Overrides: overrides,
		Resolver:  res,
		Bind:      a.bind,
		Path: func(in *validator.Validated) (extractor.Path, error) {
			return resultPath(in, field)
		},
	}
}

// overrides builds the request table from the overrides parameter. For scalar
// requests coinid pins the base symbol and wins over every other tier.
func overrides(in *validator.Validated) (resolver.Table, error) {
	table, err := resolver.ParseRequestOverrides(in.Get("overrides"), string(sources.AdapterTypeCoinpaprika))
	if err != nil {
		return resolver.Table{}, err
	}
	if coinID := strings.TrimSpace(in.String("coinid")); coinID != "" {
		if base := in.String("base"); base != "" {
			table = table.Merge(resolver.NewTable(map[string]string{base: coinID}))
		}
	}
	return table, nil
}

// resultPath is quotes.<QUOTE>.<field>, unless resultPath names a field or a full path.
func resultPath(in *validator.Validated, field string) (extractor.Path, error) {
	quote := strings.ToUpper(strings.TrimSpace(in.String("quote")))

	switch rp := in.Get("resultPath").(type) {
	case nil:
	case string:
		if strings.Contains(rp, ".") {
			return extractor.ParsePath(rp)
		}
		field = rp
	case []interface{}:
		return extractor.NewPath(rp...)
	default:
		return nil, fmt.Errorf("resultPath must be a string or array, got %T", rp)
	}

	return extractor.NewPath("quotes", quote, field)
}

func (a *Adapter) bind(_ context.Context, in *validator.Validated) (dispatcher.CallFunc, error) {
	quote := strings.ToUpper(strings.TrimSpace(in.String("quote")))
	if !quotePattern.MatchString(quote) {
		return nil, &validator.ValidationError{Param: "quote", Reason: fmt.Sprintf("%q is not a currency symbol", quote), Err: ErrInvalidQuote}
	}

	return func(ctx context.Context, id string) (interface{}, error) {
		doc, err := a.client.GetJSON(ctx, a.baseURL+"/v1/tickers/"+url.PathEscape(id), url.Values{"quotes": {quote}})
		if err != nil {
			return nil, err
		}
		if ticker, ok := doc.(map[string]interface{}); ok {
			if got, _ := ticker["id"].(string); got != "" && got != id {
				return nil, &sources.UpstreamError{Source: a.Name(), Err: fmt.Errorf("%w: asked for %s, got %s", ErrCoinMismatch, id, got)}
			}
		}
		return doc, nil
	}, nil
}
