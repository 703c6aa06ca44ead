package job

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/StrathCole/external-adapter-go/pkg/core/dispatcher"
	"github.com/StrathCole/external-adapter-go/pkg/core/envelope"
	"github.com/StrathCole/external-adapter-go/pkg/core/extractor"
	"github.com/StrathCole/external-adapter-go/pkg/core/resolver"
	"github.com/StrathCole/external-adapter-go/pkg/core/validator"
	"github.com/StrathCole/external-adapter-go/pkg/logging"
	"github.com/StrathCole/external-adapter-go/pkg/metrics"
)

// EndpointParam is the request data key selecting the endpoint.
const EndpointParam = "endpoint"

// Options configures an Adapter.
type Options struct {
	Name            string
	DefaultEndpoint string
	Dispatch        dispatcher.Policy
	MaxConcurrency  int
	Partial         envelope.PartialPolicy
	Verbose         bool
	Logger          *logging.Logger
}

// Adapter serves the endpoints of one upstream.
type Adapter struct {
	name            string
	endpoints       map[string]*Endpoint
	ordered         []*Endpoint
	defaultEndpoint string
	dispatcher      *dispatcher.Dispatcher
	partial         envelope.PartialPolicy
	verbose         bool
	logger          *logging.Logger
}

// NewAdapter validates the endpoints and builds an adapter. The first endpoint is the
// default unless opts names another.
func NewAdapter(opts Options, endpoints ...*Endpoint) (*Adapter, error) {
	if len(endpoints) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoEndpoints, opts.Name)
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNoopLogger()
	}

	a := &Adapter{
		name:       opts.Name,
		endpoints:  make(map[string]*Endpoint),
		dispatcher: dispatcher.New(opts.Dispatch, opts.MaxConcurrency, logger),
		partial:    opts.Partial,
		verbose:    opts.Verbose,
		logger:     logger.With("adapter", opts.Name),
	}

	for _, ep := range endpoints {
		if !ep.complete() {
			return nil, fmt.Errorf("%w: %q", ErrIncompleteEndpoint, ep.Name)
		}
		for _, name := range ep.names() {
			key := strings.ToLower(name)
			if _, dup := a.endpoints[key]; dup {
				return nil, fmt.Errorf("%w: %q", ErrDuplicateEndpoint, name)
			}
			a.endpoints[key] = ep
		}
		a.ordered = append(a.ordered, ep)
	}

	a.defaultEndpoint = endpoints[0].Name
	if opts.DefaultEndpoint != "" {
		ep, ok := a.endpoints[strings.ToLower(opts.DefaultEndpoint)]
		if !ok {
			return nil, fmt.Errorf("%w: default %q", ErrUnknownEndpoint, opts.DefaultEndpoint)
		}
		a.defaultEndpoint = ep.Name
	}

	return a, nil
}

// Name returns the adapter name.
func (a *Adapter) Name() string { return a.name }

// Endpoints returns the primary endpoint names in registration order.
func (a *Adapter) Endpoints() []string {
	names := make([]string, len(a.ordered))
	for i, ep := range a.ordered {
		names[i] = ep.Name
	}
	return names
}

// DefaultEndpoint returns the endpoint used when a request names none.
func (a *Adapter) DefaultEndpoint() string { return a.defaultEndpoint }

// Execute runs one job and always returns an envelope; failures become error envelopes.
func (a *Adapter) Execute(ctx context.Context, req validator.Request) *envelope.Envelope {
	start := time.Now()
	jobRunID := validator.JobRunID(req.ID)

	ep, err := a.endpoint(req.Data)
	endpointName := "unknown"
	if ep != nil {
		endpointName = ep.Name
	}
	logger := a.logger.With("job_run_id", jobRunID, "endpoint", endpointName)

	var env *envelope.Envelope
	if err != nil {
		env = envelope.Errored(jobRunID, err)
	} else {
		logger.Debug("Job started")
		env = a.run(ctx, ep, req, logger)
	}

	elapsed := time.Since(start)
	metrics.RecordJob(a.name, endpointName, strconv.Itoa(env.StatusCode), elapsed)
	if env.OK() {
		logger.Info("Job finished", "status", env.StatusCode, "duration", elapsed)
	} else {
		logger.Warn("Job failed", "status", env.StatusCode, "kind", env.Error.Kind, "error", env.Error.Message, "duration", elapsed)
	}
	return env
}

func (a *Adapter) endpoint(data map[string]interface{}) (*Endpoint, error) {
	name := a.defaultEndpoint
	if raw, ok := data[EndpointParam]; ok && raw != nil {
		s, isString := raw.(string)
		if !isString {
			return nil, &validator.ValidationError{Param: EndpointParam, Reason: fmt.Sprintf("expected string, got %T", raw), Err: validator.ErrInvalidType}
		}
		if strings.TrimSpace(s) != "" {
			name = s
		}
	}

	ep, ok := a.endpoints[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return nil, &validator.ValidationError{
			Param:  EndpointParam,
			Reason: fmt.Sprintf("%q is not one of %s", name, strings.Join(a.Endpoints(), ", ")),
			Err:    ErrUnknownEndpoint,
		}
	}
	return ep, nil
}

func (a *Adapter) run(ctx context.Context, ep *Endpoint, req validator.Request, logger *logging.Logger) *envelope.Envelope {
	jobRunID := validator.JobRunID(req.ID)

	in, err := validator.Validate(req, ep.Schema)
	if err != nil {
		return envelope.Errored(jobRunID, err)
	}

	items, batch, err := ep.Items(in)
	if err != nil {
		return envelope.Errored(jobRunID, err)
	}
	if len(items) == 0 {
		return envelope.Errored(jobRunID, &validator.ValidationError{Reason: "no items to resolve", Err: validator.ErrInvalidRequest})
	}

	overrides := resolver.Table{}
	if ep.Overrides != nil {
		if overrides, err = ep.Overrides(in); err != nil {
			return envelope.Errored(jobRunID, err)
		}
	}

	symbols := make([]string, len(items))
	for i, it := range items {
		symbols[i] = it.Symbol
	}
	resolutions, err := ep.Resolver.Resolve(ctx, symbols, overrides)
	if err != nil {
		return envelope.Errored(jobRunID, err)
	}

	path, err := ep.Path(in)
	if err != nil {
		return envelope.Errored(jobRunID, &validator.ValidationError{Param: "path", Reason: err.Error(), Err: validator.ErrInvalidRequest})
	}

	call, err := ep.Bind(ctx, in)
	if err != nil {
		return envelope.Errored(jobRunID, err)
	}
	call = a.instrument(call)

	tasks := make([]dispatcher.Task, len(resolutions))
	for i, r := range resolutions {
		tasks[i] = dispatcher.Task{Index: r.Index, ID: r.ID}
	}

	if !batch {
		return a.scalar(ctx, ep, in, items[0], tasks[0], call, path)
	}

	outcomes, err := a.dispatcher.Dispatch(ctx, tasks, call)
	if err != nil {
		return envelope.Errored(jobRunID, err)
	}

	var (
		envItems = make([]envelope.Item, len(outcomes))
		included []Result
	)
	for i, o := range outcomes {
		it := items[o.Index]
		envItems[i] = envelope.Item{Index: o.Index, Echo: it.Echo, Err: o.Err}
		if o.Err != nil {
			continue
		}
		value, err := a.extract(o.Document, path)
		if err != nil {
			// Outcomes are in index order, so this is the first failing item.
			if a.dispatcher.Policy() == dispatcher.FailFast {
				return envelope.Errored(jobRunID, &dispatcher.ItemError{Index: o.Index, ID: o.ID, Err: err})
			}
			envItems[i].Err = err
			continue
		}
		envItems[i].Value = value
		included = append(included, Result{Index: o.Index, Item: it, ID: o.ID, Document: o.Document, Value: value})
	}

	fields, err := summarize(ep, in, included)
	if err != nil {
		return envelope.Errored(jobRunID, err)
	}

	env := envelope.Batch(jobRunID, envItems, a.partial, fields)
	if env.OK() && env.Data.Omitted > 0 {
		metrics.RecordOmitted(a.name, env.Data.Omitted)
		logger.Debug("Omitted failed items", "count", env.Data.Omitted)
	}
	return env
}

func (a *Adapter) scalar(ctx context.Context, ep *Endpoint, in *validator.Validated, item Item, task dispatcher.Task, call dispatcher.CallFunc, path extractor.Path) *envelope.Envelope {
	outcome, err := a.dispatcher.DispatchOne(ctx, task, call)
	if err != nil {
		return envelope.Errored(in.JobRunID, err)
	}

	value, err := a.extract(outcome.Document, path)
	if err != nil {
		return envelope.Errored(in.JobRunID, err)
	}

	fields := map[string]interface{}{}
	if a.verbose {
		if doc, ok := outcome.Document.(map[string]interface{}); ok {
			for k, v := range doc {
				fields[k] = v
			}
		}
	}
	extra, err := summarize(ep, in, []Result{{Index: task.Index, Item: item, ID: task.ID, Document: outcome.Document, Value: value}})
	if err != nil {
		return envelope.Errored(in.JobRunID, err)
	}
	for k, v := range extra {
		fields[k] = v
	}
	if len(fields) == 0 {
		fields = nil
	}
	return envelope.Scalar(in.JobRunID, value, fields)
}

func (a *Adapter) extract(doc interface{}, path extractor.Path) (float64, error) {
	value, err := extractor.Extract(doc, path)
	if err != nil {
		var exErr *extractor.Error
		if errors.As(err, &exErr) {
			metrics.RecordExtractionFailure(a.name, exErr.Kind.String())
		}
		return 0, err
	}
	return value, nil
}

func (a *Adapter) instrument(call dispatcher.CallFunc) dispatcher.CallFunc {
	return func(ctx context.Context, id string) (interface{}, error) {
		start := time.Now()
		doc, err := call(ctx, id)
		metrics.RecordUpstreamCall(a.name, err == nil, time.Since(start))
		return doc, err
	}
}

func summarize(ep *Endpoint, in *validator.Validated, results []Result) (map[string]interface{}, error) {
	if ep.Summarize == nil {
		return nil, nil
	}
	sort.SliceStable(results, func(i, j int) bool { return results[i].Index < results[j].Index })
	return ep.Summarize(in, results)
}
