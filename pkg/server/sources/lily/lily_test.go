package lily

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/StrathCole/external-adapter-go/pkg/core/envelope"
	"github.com/StrathCole/external-adapter-go/pkg/core/validator"
	"github.com/StrathCole/external-adapter-go/pkg/server/sources"
	"github.com/StrathCole/external-adapter-go/pkg/server/sources/sourcetest"
)

const ethAddress = "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed"

// MockStore is a mock MessageStore.
type MockStore struct {
	mock.Mock
}

func (m *MockStore) Messages(ctx context.Context, to string, start, end int64) ([]ParsedMessage, error) {
	args := m.Called(ctx, to, start, end)
	rows, _ := args.Get(0).([]ParsedMessage)
	return rows, args.Error(1)
}

func (m *MockStore) Close() error {
	return m.Called().Error(0)
}

func newNode(t *testing.T, height int64) *sourcetest.RPCServer {
	t.Helper()
	params := map[string][]byte{
		"bafy1": common.HexToAddress(ethAddress).Bytes(),
		"bafy2": []byte("not an address"),
		"bafy3": common.HexToAddress(ethAddress).Bytes(),
	}
	return sourcetest.NewRPCServer(t, map[string]sourcetest.RPCHandler{
		methodChainHead: func([]json.RawMessage) (interface{}, *sourcetest.RPCError) {
			return map[string]int64{"Height": height}, nil
		},
		methodChainGetMessage: func(raw []json.RawMessage) (interface{}, *sourcetest.RPCError) {
			var link cidLink
			_ = json.Unmarshal(raw[0], &link)
			p, ok := params[link.Root]
			if !ok {
				return nil, &sourcetest.RPCError{Code: 1, Message: "blockstore: block not found"}
			}
			return map[string]interface{}{"Params": p}, nil
		},
	})
}

func newAdapter(t *testing.T, node *sourcetest.RPCServer, store *MockStore) sources.Adapter {
	t.Helper()
	store.On("Close").Return(nil)
	a, err := NewWithStore(sources.Options{
		Name:   "lily",
		Config: map[string]interface{}{"rpc_url": node.URL, "api_key": "tok"},
	}, store)
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })
	return a
}

func TestMessages(t *testing.T) {
	node := newNode(t, 200)
	store := &MockStore{}
	store.On("Messages", mock.Anything, "f01", int64(100), int64(199)).Return([]ParsedMessage{
		{Cid: "bafy1", Height: 120, To: "f01", Value: "5", Method: "Send"},
		{Cid: "bafy2", Height: 130, To: "f01", Value: "6", Method: "Send"},
		{Cid: "bafy3", Height: 140, To: "f01", Value: "7", Method: "Send"},
	}, nil)
	store.On("Messages", mock.Anything, "f02", int64(100), int64(199)).Return([]ParsedMessage{}, nil)
	a := newAdapter(t, node, store)

	env := a.Execute(context.Background(), validator.Request{ID: "9", Data: map[string]interface{}{
		"result":      []interface{}{"f01", "f02"},
		"startHeight": float64(100),
	}})
	require.True(t, env.OK(), "%+v", env.Error)

	out, err := json.Marshal(env.Data.Payload)
	require.NoError(t, err)
	assert.JSONEq(t, `[["f01", 2], ["f02", 0]]`, string(out))

	fields := env.Data.Fields
	assert.Equal(t, []string{"bafy1", "bafy3"}, fields["cids"])
	assert.Equal(t, []string{"5", "7"}, fields["values"])
	assert.Equal(t, "12", fields["totalValue"])
	assert.Equal(t, []string{"f01", "f01"}, fields["miners"])
	assert.Equal(t, []string{ethAddress, ethAddress}, fields["addresses"])
	assert.Equal(t, int64(100), fields["startHeight"])
	assert.Equal(t, int64(199), fields["endHeight"])

	assert.Equal(t, 1, node.Calls(methodChainHead))
	assert.Equal(t, 3, node.Calls(methodChainGetMessage))
	for _, h := range node.Headers() {
		assert.Equal(t, "Bearer tok", h.Get("Authorization"))
	}
	store.AssertExpectations(t)
}

func TestMessages_Failures(t *testing.T) {
	t.Run("start height required", func(t *testing.T) {
		store := &MockStore{}
		a := newAdapter(t, newNode(t, 200), store)
		env := a.Execute(context.Background(), validator.Request{Data: map[string]interface{}{"addresses": []interface{}{"f01"}}})
		assert.Equal(t, http.StatusBadRequest, env.StatusCode)
		store.AssertNotCalled(t, "Messages", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("fractional start height", func(t *testing.T) {
		a := newAdapter(t, newNode(t, 200), &MockStore{})
		env := a.Execute(context.Background(), validator.Request{Data: map[string]interface{}{
			"addresses": []interface{}{"f01"}, "startHeight": 1.5,
		}})
		assert.Equal(t, http.StatusBadRequest, env.StatusCode)
		assert.Contains(t, env.Error.Message, ErrInvalidHeight.Error())
	})

	t.Run("store down", func(t *testing.T) {
		store := &MockStore{}
		store.On("Messages", mock.Anything, "f01", int64(0), int64(9)).Return(nil, errors.New("connection refused"))
		a := newAdapter(t, newNode(t, 10), store)
		env := a.Execute(context.Background(), validator.Request{Data: map[string]interface{}{
			"addresses": []interface{}{"f01"}, "startHeight": float64(0),
		}})
		assert.Equal(t, http.StatusBadGateway, env.StatusCode)
		assert.Equal(t, "UpstreamError", env.Error.Kind)
	})

	t.Run("message lookup fails", func(t *testing.T) {
		store := &MockStore{}
		store.On("Messages", mock.Anything, "f01", int64(0), int64(9)).Return([]ParsedMessage{{Cid: "bafyX", Value: "1"}}, nil)
		a := newAdapter(t, newNode(t, 10), store)
		env := a.Execute(context.Background(), validator.Request{Data: map[string]interface{}{
			"addresses": []interface{}{"f01"}, "startHeight": float64(0),
		}})
		require.False(t, env.OK())
		assert.Equal(t, envelope.StatusErrored, env.Status)
		assert.Equal(t, http.StatusBadGateway, env.StatusCode)
	})
}

func TestClose_ClosesStore(t *testing.T) {
	store := &MockStore{}
	store.On("Close").Return(nil)
	a, err := NewWithStore(sources.Options{Name: "lily", Config: map[string]interface{}{"rpc_url": newNode(t, 1).URL}}, store)
	require.NoError(t, err)

	require.NoError(t, a.Close())
	store.AssertNumberOfCalls(t, "Close", 1)
}

func TestNew_RequiresDatabase(t *testing.T) {
	_, err := New(sources.Options{Name: "lily", Config: map[string]interface{}{"rpc_url": "http://localhost:1234/rpc/v0"}})
	assert.ErrorIs(t, err, sources.ErrDatabaseURLRequired)
}
