package envelope

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type upstreamErr struct{ status int }

func (e upstreamErr) Error() string { return fmt.Sprintf("upstream returned %d", e.status) }
func (e upstreamErr) StatusCode() int { return e.status }
func (e upstreamErr) ErrorKind() string { return "UpstreamError" }

func TestScalar(t *testing.T) {
	env := Scalar("abc", 67234.12, nil)
	out, err := json.Marshal(env)
	require.NoError(t, err)
	assert.JSONEq(t, `{"jobRunID":"abc","statusCode":200,"data":{"result":67234.12},"result":67234.12}`, string(out))
	assert.True(t, env.OK())
}

func TestScalar_VerboseFieldsCannotShadowReservedKeys(t *testing.T) {
	env := Scalar("1", 5, map[string]interface{}{"result": "upstream", "payload": "upstream", "omitted": 3, "name": "Bitcoin"})
	out, err := json.Marshal(env)
	require.NoError(t, err)
	assert.JSONEq(t, `{"jobRunID":"1","statusCode":200,"data":{"result":5,"name":"Bitcoin"},"result":5}`, string(out))
}

func TestBatch_OrdersByIndex(t *testing.T) {
	items := []Item{
		{Index: 1, Echo: "ETH", Value: 3500.5},
		{Index: 0, Echo: "BTC", Value: 67000},
	}
	env := Batch("j", items, PartialFail, nil)
	out, err := json.Marshal(env)
	require.NoError(t, err)
	assert.JSONEq(t, `{"jobRunID":"j","statusCode":200,"data":{"result":{},"payload":[["BTC",67000],["ETH",3500.5]]}}`, string(out))
	assert.Nil(t, env.Result)
}

func TestBatch_FailPolicy(t *testing.T) {
	items := []Item{
		{Index: 0, Echo: "BTC", Value: 1},
		{Index: 1, Echo: "XXX", Err: upstreamErr{status: 404}},
	}
	env := Batch("j", items, PartialFail, nil)
	require.False(t, env.OK())
	assert.Equal(t, 404, env.StatusCode)
	assert.Equal(t, StatusErrored, env.Status)
	assert.Equal(t, "PartialBatchError", env.Error.Kind)
	assert.Contains(t, env.Error.Message, "XXX")
	assert.Nil(t, env.Data)
}

func TestBatch_OmitPolicy(t *testing.T) {
	items := []Item{
		{Index: 0, Echo: "BTC", Value: 1},
		{Index: 1, Echo: "XXX", Err: errors.New("missing")},
		{Index: 2, Echo: "ETH", Value: 2},
	}
	env := Batch("j", items, PartialOmit, map[string]interface{}{"totalBalance": "3"})
	out, err := json.Marshal(env)
	require.NoError(t, err)
	assert.JSONEq(t, `{"jobRunID":"j","statusCode":200,"data":{"result":{},"payload":[["BTC",1],["ETH",2]],"omitted":1,"totalBalance":"3"}}`, string(out))
}

func TestBatch_OmitPolicyEveryItemFailed(t *testing.T) {
	items := []Item{{Index: 0, Echo: "A", Err: upstreamErr{status: 503}}}
	env := Batch("j", items, PartialOmit, nil)
	require.False(t, env.OK())
	assert.Equal(t, 503, env.StatusCode)
}

func TestBatch_DuplicateItemsKeepOwnEntries(t *testing.T) {
	items := []Item{
		{Index: 0, Echo: "btc", Value: 10},
		{Index: 1, Echo: "BTC", Value: 10},
	}
	env := Batch("j", items, PartialFail, nil)
	require.True(t, env.OK())
	require.Len(t, env.Data.Payload, 2)
	assert.Equal(t, "btc", env.Data.Payload[0].Item)
	assert.Equal(t, "BTC", env.Data.Payload[1].Item)
}

func TestBatch_ArrayEcho(t *testing.T) {
	env := Batch("j", []Item{{Index: 0, Echo: []string{"f01", "f02"}, Value: 2}}, PartialFail, nil)
	out, err := json.Marshal(env.Data.Payload)
	require.NoError(t, err)
	assert.JSONEq(t, `[[["f01","f02"],2]]`, string(out))
}

func TestErrored(t *testing.T) {
	env := Errored("7", upstreamErr{status: 429})
	out, err := json.Marshal(env)
	require.NoError(t, err)
	assert.JSONEq(t, `{"jobRunID":"7","statusCode":429,"status":"errored","error":{"kind":"UpstreamError","message":"upstream returned 429","statusCode":429}}`, string(out))
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		kind   string
	}{
		{"classified", upstreamErr{status: 404}, 404, "UpstreamError"},
		{"wrapped classified", fmt.Errorf("fetch: %w", upstreamErr{status: 500}), 500, "UpstreamError"},
		{"out of range status", upstreamErr{status: 302}, 502, "UpstreamError"},
		{"deadline", fmt.Errorf("call: %w", context.DeadlineExceeded), 502, "UpstreamError"},
		{"plain", errors.New("nil map"), 500, "AdapterError"},
		{"adapter error", &AdapterError{Kind: "ValidationError", Status: 400, Message: "bad"}, 400, "ValidationError"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, kind := Classify(tt.err)
			assert.Equal(t, tt.status, status)
			assert.Equal(t, tt.kind, kind)
		})
	}
}

func TestParsePartialPolicy(t *testing.T) {
	p, err := ParsePartialPolicy(" OMIT ")
	require.NoError(t, err)
	assert.Equal(t, PartialOmit, p)

	p, err = ParsePartialPolicy("fail")
	require.NoError(t, err)
	assert.Equal(t, PartialFail, p)

	_, err = ParsePartialPolicy("skip")
	assert.ErrorIs(t, err, ErrUnknownPartialPolicy)
}
