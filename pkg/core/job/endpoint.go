package job

import (
	"context"

	"github.com/StrathCole/external-adapter-go/pkg/core/dispatcher"
	"github.com/StrathCole/external-adapter-go/pkg/core/extractor"
	"github.com/StrathCole/external-adapter-go/pkg/core/resolver"
	"github.com/StrathCole/external-adapter-go/pkg/core/validator"
)

// Item is one caller-supplied entry of a job: the symbol to resolve and the value
// echoed back in the batch payload.
type Item struct {
	Symbol string
	Echo   interface{}
}

// Result is the per-item outcome handed to Summarize.
type Result struct {
	Index    int
	Item     Item
	ID       string
	Document interface{}
	Value    float64
}

// Binder returns the upstream call for one job. It runs once per job, after
// resolution, so job-wide upstream reads (chain head, quote currency) happen once.
type Binder func(ctx context.Context, in *validator.Validated) (dispatcher.CallFunc, error)

// Endpoint describes how one named operation of an adapter is served.
type Endpoint struct {
	Name    string
	Aliases []string
	Schema  validator.Schema

	// Items lists the entries to resolve and reports whether the response is a batch.
	Items func(in *validator.Validated) ([]Item, bool, error)
	// Overrides returns the request-scoped override table. Nil means none.
	Overrides func(in *validator.Validated) (resolver.Table, error)
	Resolver  *resolver.Resolver
	Bind      Binder
	// Path selects the number inside each upstream document.
	Path func(in *validator.Validated) (extractor.Path, error)
	// Summarize adds job-wide fields to data, computed from the included items.
	Summarize func(in *validator.Validated, results []Result) (map[string]interface{}, error)
}

// SymbolItems is an Items hook for a parameter holding a string or an array of
// strings. A string yields a scalar job; an array yields a batch.
func SymbolItems(param string) func(in *validator.Validated) ([]Item, bool, error) {
	return func(in *validator.Validated) ([]Item, bool, error) {
		_, single := in.Get(param).(string)
		symbols := in.Strings(param)
		items := make([]Item, len(symbols))
		for i, s := range symbols {
			items[i] = Item{Symbol: s, Echo: s}
		}
		return items, !single, nil
	}
}

// BatchItems is like SymbolItems but always produces a batch.
func BatchItems(param string) func(in *validator.Validated) ([]Item, bool, error) {
	items := SymbolItems(param)
	return func(in *validator.Validated) ([]Item, bool, error) {
		out, _, err := items(in)
		return out, true, err
	}
}

// StaticPath is a Path hook for a fixed path.
func StaticPath(path extractor.Path) func(in *validator.Validated) (extractor.Path, error) {
	return func(*validator.Validated) (extractor.Path, error) { return path, nil }
}

func (e *Endpoint) names() []string {
	return append([]string{e.Name}, e.Aliases...)
}

func (e *Endpoint) complete() bool {
	return e.Name != "" && e.Items != nil && e.Resolver != nil && e.Bind != nil && e.Path != nil
}
