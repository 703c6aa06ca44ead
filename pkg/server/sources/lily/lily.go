package lily

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"github.com/StrathCole/external-adapter-go/pkg/core/dispatcher"
	"github.com/StrathCole/external-adapter-go/pkg/core/extractor"
	"github.com/StrathCole/external-adapter-go/pkg/core/job"
	"github.com/StrathCole/external-adapter-go/pkg/core/resolver"
	"github.com/StrathCole/external-adapter-go/pkg/core/validator"
	"github.com/StrathCole/external-adapter-go/pkg/server/sources"
)

const (
	methodChainHead       = "Filecoin.ChainHead"
	methodChainGetMessage = "Filecoin.ChainGetMessage"
)

var schema = validator.Schema{
	{Name: "addresses", Aliases: []string{"result"}, Required: true, Type: validator.TypeArray},
	{Name: "startHeight", Required: true, Type: validator.TypeNumber},
	{Name: "overrides", Type: validator.TypeObject},
}

// Adapter serves the messages endpoint.
type Adapter struct {
	*sources.BaseAdapter

	rpc   *sources.RPCClient
	store MessageStore
}

// New creates the adapter and opens the message store. Recognized config keys:
// rpc_url, api_key, database_url (or db_host, db_port, db_user, db_password,
// db_name, db_sslmode), timeout, rate_limit, burst.
func New(opts sources.Options) (sources.Adapter, error) {
	store, err := OpenStore(DBOptionsFromConfig(opts.Config))
	if err != nil {
		return nil, err
	}
	a, err := NewWithStore(opts, store)
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	return a, nil
}

// NewWithStore creates the adapter over an existing store. The adapter owns
// the store and closes it on Close.
func NewWithStore(opts sources.Options, store MessageStore) (sources.Adapter, error) {
	httpOpts, err := sources.HTTPOptionsFromConfig(opts.Config)
	if err != nil {
		return nil, err
	}
	client, err := sources.DialRPC(context.Background(), opts.Name,
		sources.GetString(opts.Config, "rpc_url", ""),
		sources.GetString(opts.Config, "api_key", ""),
		sources.NewHTTPClient(opts.Name, httpOpts, opts.Logger))
	if err != nil {
		return nil, err
	}

	a := &Adapter{rpc: client, store: store}

	messages := &job.Endpoint{
		Name:   "messages",
		Schema: schema,
		Items:  job.BatchItems("addresses"),
		Overrides: func(in *validator.Validated) (resolver.Table, error) {
			return resolver.ParseRequestOverrides(in.Get("overrides"), string(sources.AdapterTypeLily))
		},
		Resolver:  resolver.New(opts.Name, opts.Overrides, resolver.IdentityCatalog, opts.Logger),
		Bind:      a.bind,
		Path:      job.StaticPath(extractor.MustPath("count")),
		Summarize: summarize,
	}

	inner, err := job.NewAdapter(sources.JobOptions(opts), messages)
	if err != nil {
		client.Close()
		return nil, err
	}
	a.BaseAdapter = sources.NewBaseAdapter(sources.AdapterTypeLily, inner, opts.Logger)
	a.OnClose(store.Close)
	a.OnClose(client.Close)
	return a, nil
}

type tipSet struct {
	Height int64 `json:"Height"`
}

type cidLink struct {
	Root string `json:"/"`
}

type message struct {
	Params []byte `json:"Params"`
}

// bind reads the chain head once so every address shares the same window,
// which ends one epoch below the head.
func (a *Adapter) bind(ctx context.Context, in *validator.Validated) (dispatcher.CallFunc, error) {
	n, _ := in.Number("startHeight")
	start := int64(n)
	if start < 0 || float64(start) != n {
		return nil, &validator.ValidationError{Param: "startHeight", Reason: fmt.Sprintf("%v is not a block height", n), Err: ErrInvalidHeight}
	}

	var head tipSet
	if err := a.rpc.Call(ctx, &head, methodChainHead); err != nil {
		return nil, err
	}
	if head.Height <= 0 {
		return nil, &sources.UpstreamError{Source: a.Name(), Err: fmt.Errorf("%w: chain head at %d", ErrInvalidHeight, head.Height)}
	}
	end := head.Height - 1

	return func(ctx context.Context, addr string) (interface{}, error) {
		rows, err := a.store.Messages(ctx, addr, start, end)
		if err != nil {
			return nil, &sources.UpstreamError{Source: a.Name(), Err: err}
		}

		cids := make([]string, 0, len(rows))
		values := make([]string, 0, len(rows))
		senders := make([]string, 0, len(rows))
		for _, row := range rows {
			var msg message
			if err := a.rpc.Call(ctx, &msg, methodChainGetMessage, cidLink{Root: row.Cid}); err != nil {
				return nil, err
			}
			if len(msg.Params) != common.AddressLength {
				continue
			}
			cids = append(cids, row.Cid)
			values = append(values, row.Value)
			senders = append(senders, common.BytesToAddress(msg.Params).Hex())
		}

		return map[string]interface{}{
			"address":     addr,
			"count":       len(cids),
			"cids":        cids,
			"values":      values,
			"addresses":   senders,
			"startHeight": start,
			"endHeight":   end,
		}, nil
	}, nil
}

// summarize flattens the per-address matches in input order. Every matched
// message contributes one entry to each list.
func summarize(in *validator.Validated, results []job.Result) (map[string]interface{}, error) {
	var (
		cids, values, miners, addresses []string
		end                             interface{}
	)
	total := decimal.Zero
	for _, r := range results {
		doc, _ := r.Document.(map[string]interface{})
		matched, _ := doc["cids"].([]string)
		cids = append(cids, matched...)
		v, _ := doc["values"].([]string)
		for _, value := range v {
			d, err := decimal.NewFromString(value)
			if err != nil {
				return nil, fmt.Errorf("%w: message value %q", ErrInvalidValue, value)
			}
			total = total.Add(d)
		}
		values = append(values, v...)
		eth, _ := doc["addresses"].([]string)
		addresses = append(addresses, eth...)
		for range matched {
			miners = append(miners, r.ID)
		}
		end = doc["endHeight"]
	}

	start, _ := in.Number("startHeight")
	fields := map[string]interface{}{
		"cids":        nonNil(cids),
		"values":      nonNil(values),
		"miners":      nonNil(miners),
		"addresses":   nonNil(addresses),
		"totalValue":  total.String(),
		"startHeight": int64(start),
	}
	if end != nil {
		fields["endHeight"] = end
	}
	return fields, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
