package envelope

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// StatusErrored is the status string carried by error envelopes.
const StatusErrored = "errored"

// Envelope is the outward job result. It is either a success (Data, and Result for
// scalar jobs) or an error (Error and Status), never both.
type Envelope struct {
	JobRunID   string       `json:"jobRunID"`
	StatusCode int          `json:"statusCode"`
	Status     string       `json:"status,omitempty"`
	Data       *Data        `json:"data,omitempty"`
	Result     *float64     `json:"result,omitempty"`
	Error      *ErrorDetail `json:"error,omitempty"`
}

// ErrorDetail describes a failed job.
type ErrorDetail struct {
	Kind       string `json:"kind"`
	Message    string `json:"message"`
	StatusCode int    `json:"statusCode"`
}

// OK reports whether the envelope is a success.
func (e *Envelope) OK() bool { return e.Error == nil }

// Data is the success payload. Fields holds verbose upstream fields and adapter
// extras; it can never shadow result, payload or omitted.
type Data struct {
	Result  interface{}
	Payload []PayloadEntry
	Omitted int
	Fields  map[string]interface{}
}

// MarshalJSON flattens Fields next to the reserved keys.
func (d Data) MarshalJSON() ([]byte, error) {
	out := make(map[string]interface{}, len(d.Fields)+3)
	for k, v := range d.Fields {
		out[k] = v
	}
	out["result"] = d.Result
	if d.Payload != nil {
		out["payload"] = d.Payload
	} else {
		delete(out, "payload")
	}
	if d.Omitted > 0 {
		out["omitted"] = d.Omitted
	} else {
		delete(out, "omitted")
	}
	return json.Marshal(out)
}

// PayloadEntry pairs an echo of the original item with its number.
// It encodes as a two element array: [item, value].
type PayloadEntry struct {
	Item  interface{}
	Value float64
}

// MarshalJSON encodes the entry as [item, value].
func (p PayloadEntry) MarshalJSON() ([]byte, error) {
	return json.Marshal([]interface{}{p.Item, p.Value})
}

// PartialPolicy decides what a batch does with failed items.
type PartialPolicy int

const (
	// PartialFail turns any failed item into an error envelope.
	PartialFail PartialPolicy = iota
	// PartialOmit drops failed items and reports how many were dropped.
	PartialOmit
)

func (p PartialPolicy) String() string {
	if p == PartialOmit {
		return "omit"
	}
	return "fail"
}

// ParsePartialPolicy converts a configuration value to a PartialPolicy.
func ParsePartialPolicy(s string) (PartialPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "fail":
		return PartialFail, nil
	case "omit":
		return PartialOmit, nil
	default:
		return PartialFail, fmt.Errorf("%w: %q (must be 'fail' or 'omit')", ErrUnknownPartialPolicy, s)
	}
}

// Item is one batch entry: the echo of the input item and either its value or the
// reason it has none.
type Item struct {
	Index int
	Echo  interface{}
	Value float64
	Err   error
}

// Scalar builds the success envelope for a single-item job.
func Scalar(jobRunID string, value float64, fields map[string]interface{}) *Envelope {
	v := value
	return &Envelope{
		JobRunID:   jobRunID,
		StatusCode: 200,
		Data:       &Data{Result: v, Fields: fields},
		Result:     &v,
	}
}

// Batch builds the envelope for a multi-item job. Items are ordered by Index before
// use. Under PartialFail any failed item yields an error envelope; under PartialOmit
// failed items are dropped and counted, unless every item failed.
func Batch(jobRunID string, items []Item, policy PartialPolicy, fields map[string]interface{}) *Envelope {
	sorted := make([]Item, len(items))
	copy(sorted, items)
	sort.SliceStable(sorted, func(a, b int) bool { return sorted[a].Index < sorted[b].Index })

	payload := make([]PayloadEntry, 0, len(sorted))
	var failed []ItemFailure
	for _, it := range sorted {
		if it.Err != nil {
			failed = append(failed, ItemFailure{Index: it.Index, Item: it.Echo, Err: it.Err})
			continue
		}
		payload = append(payload, PayloadEntry{Item: it.Echo, Value: it.Value})
	}

	if len(failed) > 0 && (policy == PartialFail || len(payload) == 0) {
		return Errored(jobRunID, &PartialBatchError{Failed: failed})
	}

	return &Envelope{
		JobRunID:   jobRunID,
		StatusCode: 200,
		Data: &Data{
			Result:  map[string]interface{}{},
			Payload: payload,
			Omitted: len(failed),
			Fields:  fields,
		},
	}
}

// Errored builds the error envelope for err.
func Errored(jobRunID string, err error) *Envelope {
	status, kind := Classify(err)
	return &Envelope{
		JobRunID:   jobRunID,
		StatusCode: status,
		Status:     StatusErrored,
		Error: &ErrorDetail{
			Kind:       kind,
			Message:    err.Error(),
			StatusCode: status,
		},
	}
}
