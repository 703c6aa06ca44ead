package ipfs

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/StrathCole/external-adapter-go/pkg/core/dispatcher"
	"github.com/StrathCole/external-adapter-go/pkg/core/extractor"
	"github.com/StrathCole/external-adapter-go/pkg/core/job"
	"github.com/StrathCole/external-adapter-go/pkg/core/resolver"
	"github.com/StrathCole/external-adapter-go/pkg/core/validator"
	"github.com/StrathCole/external-adapter-go/pkg/server/sources"
)

const (
	defaultAPIURL  = "http://127.0.0.1:5001"
	defaultMaxSize = 1 << 20

	typeRaw = "raw"
	typeDag = "dag"

	codecText = "text"
	codecJSON = "json"
)

var schema = validator.Schema{
	{Name: "cid", Type: validator.TypeStringOrArray},
	{Name: "ipns", Type: validator.TypeString},
	{Name: "type", Type: validator.TypeString, Default: typeRaw},
	{Name: "codec", Type: validator.TypeString},
	{Name: "resultPath", Type: validator.TypeAny},
	{Name: "overrides", Type: validator.TypeObject},
}

// Adapter serves the read endpoint.
type Adapter struct {
	*sources.BaseAdapter

	client  *sources.HTTPClient
	apiURL  string
	maxSize int64
}

// New creates the adapter. Recognized config keys: api_url, max_size, headers,
// timeout, rate_limit, burst.
func New(opts sources.Options) (sources.Adapter, error) {
	httpOpts, err := sources.HTTPOptionsFromConfig(opts.Config)
	if err != nil {
		return nil, err
	}
	maxSize := int64(sources.GetInt(opts.Config, "max_size", defaultMaxSize))
	if maxSize <= 0 {
		return nil, fmt.Errorf("%w: max_size must be positive", sources.ErrInvalidConfig)
	}

	client := sources.NewHTTPClient(opts.Name, httpOpts, opts.Logger)
	a := &Adapter{
		client:  client,
		apiURL:  strings.TrimRight(sources.GetString(opts.Config, "api_url", defaultAPIURL), "/"),
		maxSize: maxSize,
	}

	read := &job.Endpoint{
		Name:   "read",
		Schema: schema,
		Items:  items,
		Overrides: func(in *validator.Validated) (resolver.Table, error) {
			return resolver.ParseRequestOverrides(in.Get("overrides"), string(sources.AdapterTypeIPFS))
		},
		Resolver: resolver.New(opts.Name, opts.Overrides, NewCatalog(client, a.apiURL), opts.Logger),
		Bind:     a.bind,
		Path:     resultPath,
	}

	inner, err := job.NewAdapter(sources.JobOptions(opts), read)
	if err != nil {
		return nil, err
	}
	a.BaseAdapter = sources.NewBaseAdapter(sources.AdapterTypeIPFS, inner, opts.Logger)
	return a, nil
}

// items reads cid when present, otherwise the IPNS name, which the catalog
// resolves to a CID before any content is fetched.
func items(in *validator.Validated) ([]job.Item, bool, error) {
	if in.Has("cid") {
		return job.SymbolItems("cid")(in)
	}
	name := strings.TrimPrefix(strings.TrimSpace(in.String("ipns")), ipnsPrefix)
	if name == "" {
		return nil, false, &validator.ValidationError{Param: "cid", Reason: ErrMissingTarget.Error(), Err: ErrMissingTarget}
	}
	return []job.Item{{Symbol: ipnsPrefix + name, Echo: name}}, false, nil
}

// resultPath walks into the content; without one the content itself must be a number.
func resultPath(in *validator.Validated) (extractor.Path, error) {
	switch rp := in.Get("resultPath").(type) {
	case nil:
		return extractor.Path{}, nil
	case string:
		return extractor.ParsePath(rp)
	case []interface{}:
		return extractor.NewPath(rp...)
	default:
		return nil, fmt.Errorf("resultPath must be a string or array, got %T", rp)
	}
}

func (a *Adapter) bind(_ context.Context, in *validator.Validated) (dispatcher.CallFunc, error) {
	switch readType := strings.ToLower(in.String("type")); readType {
	case typeDag:
		return a.readDag, nil
	case typeRaw:
		codec := strings.ToLower(strings.TrimSpace(in.String("codec")))
		switch codec {
		case "", codecText, codecJSON:
		default:
			return nil, &validator.ValidationError{Param: "codec", Reason: fmt.Sprintf("%q is not text or json", codec), Err: ErrUnknownCodec}
		}
		return func(ctx context.Context, cid string) (interface{}, error) {
			return a.readRaw(ctx, cid, codec)
		}, nil
	default:
		return nil, &validator.ValidationError{Param: "type", Reason: fmt.Sprintf("%q is not raw or dag", readType), Err: ErrUnknownType}
	}
}

// readDag returns the DAG node as dag-json, so links appear as {"/": cid}.
func (a *Adapter) readDag(ctx context.Context, cid string) (interface{}, error) {
	var doc interface{}
	query := url.Values{"arg": {cid}, "output-codec": {"dag-json"}}
	if err := a.client.PostJSON(ctx, a.apiURL+"/api/v0/dag/get", query, &doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// readRaw returns the file bytes as trimmed text, or as a JSON document for the json codec.
func (a *Adapter) readRaw(ctx context.Context, cid, codec string) (interface{}, error) {
	body, err := a.client.PostBytes(ctx, a.apiURL+"/api/v0/cat", url.Values{"arg": {cid}}, a.maxSize)
	if err != nil {
		return nil, err
	}
	if codec != codecJSON {
		return strings.TrimSpace(string(body)), nil
	}

	var doc interface{}
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	if err := dec.Decode(&doc); err != nil {
		return nil, &sources.UpstreamError{Source: a.Name(), Err: fmt.Errorf("%w: %s is not JSON: %w", sources.ErrInvalidResponse, cid, err)}
	}
	return doc, nil
}
