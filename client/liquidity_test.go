package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/brojonat/lpctl/service/liquidity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testPool = "58oQChx4yWmvKdwLLZzBi4ChoCc2fqCUWBkwMihLYQo2"

func TestAddLiquidity_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "POST", r.Method)
		assert.Equal(t, "/api/v1/liquidity/add", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, float64(5), body["amount"])
		assert.Equal(t, true, body["dry_run"])

		json.NewEncoder(w).Encode(map[string]interface{}{
			"id":      "op-1",
			"type":    "add",
			"pool_id": testPool,
			"dry_run": true,
		})
	}))
	defer server.Close()

	client := NewClient(server.URL, nil, nil)
	op, err := client.AddLiquidity(context.Background(), liquidity.AddRequest{Amount: 5, Slippage: 0.01, DryRun: true})
	require.NoError(t, err)
	assert.Equal(t, "op-1", op.ID)
	assert.Equal(t, liquidity.OpAdd, op.Type)
	assert.Equal(t, liquidity.OutcomeDryRun, op.Outcome())
}

func TestRemoveAndAddRemove_Paths(t *testing.T) {
	var paths []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path)
		json.NewEncoder(w).Encode(map[string]interface{}{"id": "op", "signature": "sig"})
	}))
	defer server.Close()

	client := NewClient(server.URL, nil, nil)
	op, err := client.RemoveLiquidity(context.Background(), liquidity.RemoveRequest{Amount: 1})
	require.NoError(t, err)
	assert.Equal(t, liquidity.OutcomeSubmitted, op.Outcome())

	_, err = client.AddRemoveLiquidity(context.Background(), liquidity.AddRemoveRequest{AddAmount: 1, RemoveAmount: 1})
	require.NoError(t, err)

	assert.Equal(t, []string{"/api/v1/liquidity/remove", "/api/v1/liquidity/add-remove"}, paths)
}

func TestAddLiquidity_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]string{
			"error": "amount must be greater than zero",
		})
	}))
	defer server.Close()

	client := NewClient(server.URL, nil, nil)
	_, err := client.AddLiquidity(context.Background(), liquidity.AddRequest{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "amount must be greater than zero")

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
}

func TestGetPool_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/pools/"+testPool, r.URL.Path)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"pool_id":           testPool,
			"lp_total":          1234,
			"sys_decimal_value": 1000000,
		})
	}))
	defer server.Close()

	client := NewClient(server.URL, nil, nil)
	state, err := client.GetPool(context.Background(), testPool)
	require.NoError(t, err)
	assert.Equal(t, testPool, state.PoolID.String())
	assert.Equal(t, uint64(1234), state.LPTotal)
	assert.Equal(t, uint64(1_000_000), state.SysDecimalValue)
}

func TestGetPool_PlainTextError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gateway down", http.StatusBadGateway)
	}))
	defer server.Close()

	client := NewClient(server.URL, nil, nil)
	_, err := client.GetPool(context.Background(), testPool)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
	assert.Contains(t, err.Error(), "gateway down")
}

func TestListOperations_Query(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/operations", r.URL.Path)
		assert.Equal(t, testPool, r.URL.Query().Get("pool_id"))
		assert.Equal(t, "20", r.URL.Query().Get("limit"))
		assert.Equal(t, "", r.URL.Query().Get("offset"))

		json.NewEncoder(w).Encode(map[string]interface{}{
			"operations": []map[string]interface{}{{"id": "a"}, {"id": "b"}},
			"count":      2,
			"limit":      20,
			"offset":     0,
		})
	}))
	defer server.Close()

	client := NewClient(server.URL, nil, nil)
	list, err := client.ListOperations(context.Background(), ListOptions{PoolID: testPool, Limit: 20})
	require.NoError(t, err)
	assert.Equal(t, 2, list.Count)
	require.Len(t, list.Operations, 2)
	assert.Equal(t, "b", list.Operations[1].ID)
}

func TestGetOperation_NotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/operations/missing", r.URL.Path)
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(map[string]string{"error": "operation not found"})
	}))
	defer server.Close()

	client := NewClient(server.URL, nil, nil)
	_, err := client.GetOperation(context.Background(), "missing")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusNotFound, apiErr.StatusCode)
	assert.Equal(t, "operation not found", apiErr.Message)
}

func TestHealth(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/health", r.URL.Path)
		w.Write([]byte("OK"))
	}))
	defer server.Close()

	assert.NoError(t, NewClient(server.URL, nil, nil).Health(context.Background()))
}
