package ipfs

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/StrathCole/external-adapter-go/pkg/core/envelope"
	"github.com/StrathCole/external-adapter-go/pkg/core/validator"
	"github.com/StrathCole/external-adapter-go/pkg/server/sources"
)

var (
	testFiles = map[string]string{
		"QmNumber": " 42.5\n",
		"QmJSON":   `{"rates":{"USD":1.25}}`,
		"QmWords":  "hello",
	}
	testDags = map[string]string{
		"bafyDag": `{"price":{"value":"1234.5"},"prev":{"/":"bafyOld"}}`,
	}
	testNames = map[string]string{
		"/ipns/k51feed": "/ipfs/bafyDag",
		"/ipns/k51bad":  "",
	}
)

type fakeNode struct {
	*httptest.Server

	mu    sync.Mutex
	calls map[string]int
}

func (f *fakeNode) count(path string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[path]
}

func newFakeNode(t *testing.T) *fakeNode {
	t.Helper()
	f := &fakeNode{calls: map[string]int{}}
	f.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		f.mu.Lock()
		f.calls[r.URL.Path]++
		f.mu.Unlock()

		arg := r.URL.Query().Get("arg")
		var (
			body string
			ok   bool
		)
		switch r.URL.Path {
		case "/api/v0/cat":
			body, ok = testFiles[arg]
		case "/api/v0/dag/get":
			assert.Equal(t, "dag-json", r.URL.Query().Get("output-codec"))
			body, ok = testDags[arg]
		case "/api/v0/name/resolve":
			var path string
			path, ok = testNames[arg]
			body = `{"Path":"` + path + `"}`
		}
		if !ok {
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte(`{"Message":"block was not found locally","Code":0,"Type":"error"}`))
			return
		}
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(f.Close)
	return f
}

func newAdapter(t *testing.T, node *fakeNode, mutate func(*sources.Options)) sources.Adapter {
	t.Helper()
	opts := sources.Options{
		Name:   "ipfs",
		Config: map[string]interface{}{"api_url": node.URL + "/"},
	}
	if mutate != nil {
		mutate(&opts)
	}
	a, err := New(opts)
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })
	return a
}

func run(t *testing.T, a sources.Adapter, data map[string]interface{}) (*envelope.Envelope, string) {
	t.Helper()
	env := a.Execute(context.Background(), validator.Request{ID: "9", Data: data})
	out, err := json.Marshal(env)
	require.NoError(t, err)
	return env, string(out)
}

func TestRead(t *testing.T) {
	tests := []struct {
		name string
		data map[string]interface{}
		want float64
	}{
		{"raw text by default", map[string]interface{}{"cid": "QmNumber"}, 42.5},
		{"raw json with path", map[string]interface{}{"cid": "QmJSON", "codec": "json", "resultPath": "rates.USD"}, 1.25},
		{"dag with path array", map[string]interface{}{"cid": "bafyDag", "type": "dag", "resultPath": []interface{}{"price", "value"}}, 1234.5},
		{"ipns resolves to dag", map[string]interface{}{"ipns": "k51feed", "type": "dag", "resultPath": "price.value"}, 1234.5},
		{"ipns with prefix", map[string]interface{}{"ipns": "/ipns/k51feed", "type": "DAG", "resultPath": "price.value"}, 1234.5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := newAdapter(t, newFakeNode(t), nil)
			env, _ := run(t, a, tt.data)
			require.True(t, env.OK(), "%+v", env.Error)
			require.NotNil(t, env.Result)
			assert.Equal(t, tt.want, *env.Result)
		})
	}
}

func TestRead_Envelope(t *testing.T) {
	node := newFakeNode(t)
	a := newAdapter(t, node, nil)

	_, out := run(t, a, map[string]interface{}{"endpoint": "read", "cid": "QmNumber"})
	assert.JSONEq(t, `{"jobRunID":"9","statusCode":200,"data":{"result":42.5},"result":42.5}`, out)
	assert.Equal(t, 1, node.count("/api/v0/cat"))
	assert.Equal(t, 0, node.count("/api/v0/name/resolve"))
}

func TestRead_Batch(t *testing.T) {
	a := newAdapter(t, newFakeNode(t), nil)

	_, out := run(t, a, map[string]interface{}{"cid": []interface{}{"QmNumber", "QmNumber"}})
	assert.JSONEq(t, `{
		"jobRunID": "9",
		"statusCode": 200,
		"data": {"result": {}, "payload": [["QmNumber", 42.5], ["QmNumber", 42.5]]}
	}`, out)
}

func TestRead_OverridePinsName(t *testing.T) {
	node := newFakeNode(t)
	a := newAdapter(t, node, nil)

	env, _ := run(t, a, map[string]interface{}{
		"ipns":      "k51moved",
		"overrides": map[string]interface{}{"ipfs": map[string]interface{}{"/ipns/k51moved": "QmNumber"}},
	})
	require.True(t, env.OK(), "%+v", env.Error)
	require.NotNil(t, env.Result)
	assert.Equal(t, 42.5, *env.Result)
	assert.Equal(t, 0, node.count("/api/v0/name/resolve"))
}

func TestRead_Failures(t *testing.T) {
	tests := []struct {
		name       string
		data       map[string]interface{}
		wantStatus int
		wantKind   string
	}{
		{"neither cid nor ipns", map[string]interface{}{}, http.StatusBadRequest, "ValidationError"},
		{"unknown type", map[string]interface{}{"cid": "QmNumber", "type": "car"}, http.StatusBadRequest, "ValidationError"},
		{"unknown codec", map[string]interface{}{"cid": "QmNumber", "codec": "cbor"}, http.StatusBadRequest, "ValidationError"},
		{"missing block", map[string]interface{}{"cid": "QmGone"}, http.StatusInternalServerError, "UpstreamError"},
		{"unresolvable name", map[string]interface{}{"ipns": "k51bad"}, http.StatusBadGateway, "UpstreamError"},
		{"json codec on text", map[string]interface{}{"cid": "QmWords", "codec": "json"}, http.StatusBadGateway, "UpstreamError"},
		{"text is not a number", map[string]interface{}{"cid": "QmWords"}, http.StatusBadGateway, "ExtractionError"},
		{"dag without path", map[string]interface{}{"cid": "bafyDag", "type": "dag"}, http.StatusBadGateway, "ExtractionError"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := newAdapter(t, newFakeNode(t), nil)
			env, _ := run(t, a, tt.data)
			require.False(t, env.OK())
			assert.Equal(t, tt.wantStatus, env.StatusCode)
			assert.Equal(t, tt.wantKind, env.Error.Kind)
		})
	}
}

func TestRead_MaxSize(t *testing.T) {
	a := newAdapter(t, newFakeNode(t), func(o *sources.Options) { o.Config["max_size"] = 4 })

	env, _ := run(t, a, map[string]interface{}{"cid": "QmJSON", "codec": "json"})
	assert.Equal(t, http.StatusBadGateway, env.StatusCode)
	assert.Contains(t, env.Error.Message, sources.ErrInvalidResponse.Error())
}

func TestNew_InvalidConfig(t *testing.T) {
	_, err := New(sources.Options{Name: "ipfs", Config: map[string]interface{}{"max_size": -1}})
	assert.ErrorIs(t, err, sources.ErrInvalidConfig)
}
