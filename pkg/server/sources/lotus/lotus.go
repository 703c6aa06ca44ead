package lotus

import (
	"context"
	"fmt"
	"net/http"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/StrathCole/external-adapter-go/pkg/core/dispatcher"
	"github.com/StrathCole/external-adapter-go/pkg/core/envelope"
	"github.com/StrathCole/external-adapter-go/pkg/core/extractor"
	"github.com/StrathCole/external-adapter-go/pkg/core/job"
	"github.com/StrathCole/external-adapter-go/pkg/core/resolver"
	"github.com/StrathCole/external-adapter-go/pkg/core/validator"
	"github.com/StrathCole/external-adapter-go/pkg/server/sources"
)

const (
	methodWalletBalance   = "Filecoin.WalletBalance"
	methodStateMinerPower = "Filecoin.StateMinerPower"
	methodStateMinerInfo  = "Filecoin.StateMinerInfo"
	methodStateReadState  = "Filecoin.StateReadState"

	defaultThreshold = 2
)

var addressSchema = validator.Schema{
	{Name: "addresses", Aliases: []string{"result"}, Required: true, Type: validator.TypeArray},
	{Name: "overrides", Type: validator.TypeObject},
}

// Adapter serves the balance and msig endpoints.
type Adapter struct {
	*sources.BaseAdapter

	rpc        *sources.RPCClient
	minerPower bool
	approvers  []string
	threshold  int
}

// New creates the adapter. Recognized config keys: rpc_url, api_key, miner_power,
// approvers, threshold, timeout, rate_limit, burst.
func New(opts sources.Options) (sources.Adapter, error) {
	httpOpts, err := sources.HTTPOptionsFromConfig(opts.Config)
	if err != nil {
		return nil, err
	}
	approvers, err := sources.GetStringSlice(opts.Config, "approvers")
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

	minerPower := true
	if v, ok := opts.Config["miner_power"].(bool); ok {
		minerPower = v
	}

	a := &Adapter{
		rpc:        client,
		minerPower: minerPower,
		approvers:  approvers,
		threshold:  sources.GetInt(opts.Config, "threshold", defaultThreshold),
	}

	// Addresses are already upstream identifiers; overrides may still alias them.
	res := resolver.New(opts.Name, opts.Overrides, resolver.IdentityCatalog, opts.Logger)

	balance := &job.Endpoint{
		Name:      "balance",
		Aliases:   []string{methodWalletBalance},
		Schema:    addressSchema,
		Items:     job.BatchItems("addresses"),
		Overrides: requestOverrides,
		Resolver:  res,
		Bind:      a.bindBalance,
		Path:      job.StaticPath(extractor.MustPath("balance")),
		Summarize: summarizeBalances,
	}
	msig := &job.Endpoint{
		Name:      "msig",
		Aliases:   []string{methodStateReadState, methodStateMinerInfo},
		Schema:    addressSchema,
		Items:     job.BatchItems("addresses"),
		Overrides: requestOverrides,
		Resolver:  res,
		Bind:      a.bindMsig,
		Path:      job.StaticPath(extractor.MustPath("approved")),
		Summarize: summarizeMsig,
	}

	inner, err := job.NewAdapter(sources.JobOptions(opts), balance, msig)
	if err != nil {
		client.Close()
		return nil, err
	}
	a.BaseAdapter = sources.NewBaseAdapter(sources.AdapterTypeLotus, inner, opts.Logger)
	a.OnClose(client.Close)
	return a, nil
}

func requestOverrides(in *validator.Validated) (resolver.Table, error) {
	return resolver.ParseRequestOverrides(in.Get("overrides"), string(sources.AdapterTypeLotus))
}

type minerPower struct {
	TotalPower struct {
		RawBytePower    string `json:"RawBytePower"`
		QualityAdjPower string `json:"QualityAdjPower"`
	} `json:"TotalPower"`
}

// bindBalance fetches each address's balance and, when enabled, the network
// quality-adjusted power reported alongside it.
func (a *Adapter) bindBalance(_ context.Context, _ *validator.Validated) (dispatcher.CallFunc, error) {
	return func(ctx context.Context, addr string) (interface{}, error) {
		var (
			balance string
			power   minerPower
		)

		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			return a.rpc.Call(gctx, &balance, methodWalletBalance, addr)
		})
		if a.minerPower {
			g.Go(func() error {
				return a.rpc.Call(gctx, &power, methodStateMinerPower, addr, []interface{}{})
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}

		if _, err := decimal.NewFromString(balance); err != nil {
			return nil, &sources.UpstreamError{Source: a.Name(), Err: fmt.Errorf("%w: %q for %s", ErrInvalidBalance, balance, addr)}
		}

		doc := map[string]interface{}{"address": addr, "balance": balance}
		if a.minerPower {
			doc["minerPower"] = power.TotalPower.QualityAdjPower
		}
		return doc, nil
	}, nil
}

// summarizeBalances adds the exact total of the included balances.
func summarizeBalances(_ *validator.Validated, results []job.Result) (map[string]interface{}, error) {
	total := decimal.Zero
	addresses := make([]string, 0, len(results))
	powers := make([]interface{}, 0, len(results))
	for _, r := range results {
		doc, _ := r.Document.(map[string]interface{})
		balance, err := decimal.NewFromString(fmt.Sprint(doc["balance"]))
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidBalance, doc["balance"])
		}
		total = total.Add(balance)
		addresses = append(addresses, r.ID)
		if p, ok := doc["minerPower"]; ok {
			powers = append(powers, p)
		}
	}

	fields := map[string]interface{}{
		"totalBalance": total.String(),
		"addresses":    addresses,
	}
	if len(powers) > 0 {
		fields["minerPowers"] = powers
	}
	return fields, nil
}

type minerInfo struct {
	Owner string `json:"Owner"`
}

type actorState struct {
	State struct {
		Signers               []string `json:"Signers"`
		NumApprovalsThreshold int      `json:"NumApprovalsThreshold"`
	} `json:"State"`
}

// bindMsig checks whether each miner's owner is a multisig with the configured
// approvers and threshold. The per-address value is 1 when it is, 0 otherwise.
func (a *Adapter) bindMsig(_ context.Context, _ *validator.Validated) (dispatcher.CallFunc, error) {
	if len(a.approvers) == 0 {
		return nil, &envelope.AdapterError{Kind: "AdapterError", Status: http.StatusInternalServerError, Message: a.Name(), Cause: ErrApproversRequired}
	}

	return func(ctx context.Context, addr string) (interface{}, error) {
		var info minerInfo
		if err := a.rpc.Call(ctx, &info, methodStateMinerInfo, addr, []interface{}{}); err != nil {
			return nil, err
		}
		var state actorState
		if err := a.rpc.Call(ctx, &state, methodStateReadState, info.Owner, []interface{}{}); err != nil {
			return nil, err
		}

		approved := 0
		if a.qualifies(state) {
			approved = 1
		}
		return map[string]interface{}{"address": addr, "owner": info.Owner, "approved": approved}, nil
	}, nil
}

func (a *Adapter) qualifies(state actorState) bool {
	if state.State.NumApprovalsThreshold != a.threshold {
		return false
	}
	signers := make(map[string]bool, len(state.State.Signers))
	for _, s := range state.State.Signers {
		signers[s] = true
	}
	for _, approver := range a.approvers {
		if !signers[approver] {
			return false
		}
	}
	return true
}

func summarizeMsig(_ *validator.Validated, results []job.Result) (map[string]interface{}, error) {
	miners := make([]string, 0, len(results))
	for _, r := range results {
		if r.Value == 1 {
			miners = append(miners, r.ID)
		}
	}
	return map[string]interface{}{"miners": miners}, nil
}
