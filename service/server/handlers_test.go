package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/brojonat/lpctl/service/cache"
	"github.com/brojonat/lpctl/service/db"
	"github.com/brojonat/lpctl/service/liquidity"
	"github.com/brojonat/lpctl/service/metrics"
	"github.com/brojonat/lpctl/service/solana"
	solanago "github.com/gagliardetto/solana-go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testPool = "58oQChx4yWmvKdwLLZzBi4ChoCc2fqCUWBkwMihLYQo2"

type fakeService struct {
	op  *liquidity.Operation
	err error

	lastAdd       liquidity.AddRequest
	lastRemove    liquidity.RemoveRequest
	lastAddRemove liquidity.AddRemoveRequest
	calls         int
}

func (f *fakeService) AddLiquidity(ctx context.Context, req liquidity.AddRequest) (*liquidity.Operation, error) {
	f.calls++
	f.lastAdd = req
	return f.op, f.err
}

func (f *fakeService) RemoveLiquidity(ctx context.Context, req liquidity.RemoveRequest) (*liquidity.Operation, error) {
	f.calls++
	f.lastRemove = req
	return f.op, f.err
}

func (f *fakeService) AddRemoveLiquidity(ctx context.Context, req liquidity.AddRemoveRequest) (*liquidity.Operation, error) {
	f.calls++
	f.lastAddRemove = req
	return f.op, f.err
}

func (f *fakeService) PoolState(ctx context.Context, poolID string) (*solana.PoolState, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &solana.PoolState{
		PoolID:          solanago.MustPublicKeyFromBase58(poolID),
		LPTotal:         1000,
		SysDecimalValue: 1_000_000,
	}, nil
}

type fakeStore struct {
	ops        []*liquidity.Operation
	err        error
	lastParams db.ListOperationsParams
}

func (f *fakeStore) ListOperations(ctx context.Context, params db.ListOperationsParams) ([]*liquidity.Operation, error) {
	f.lastParams = params
	return f.ops, f.err
}

func (f *fakeStore) GetOperation(ctx context.Context, id string) (*liquidity.Operation, error) {
	for _, op := range f.ops {
		if op.ID == id {
			return op, nil
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	return nil, db.ErrOperationNotFound
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestServer(svc LiquidityService, store OperationStore) http.Handler {
	return New(":0", svc, store, nil, testLogger()).Handler()
}

func doRequest(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var resp map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp["error"]
}

func TestAddLiquidity_Success(t *testing.T) {
	svc := &fakeService{op: &liquidity.Operation{ID: "op-1", Type: liquidity.OpAdd, PoolID: testPool, DryRun: true}}
	h := newTestServer(svc, nil)

	w := doRequest(t, h, http.MethodPost, "/api/v1/liquidity/add", `{"amount": 3, "slippage": 0.01, "dry_run": true}`)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.Equal(t, uint64(3), svc.lastAdd.Amount)
	assert.Equal(t, 0.01, svc.lastAdd.Slippage)
	assert.True(t, svc.lastAdd.DryRun)

	var op liquidity.Operation
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &op))
	assert.Equal(t, "op-1", op.ID)
	assert.Equal(t, liquidity.OpAdd, op.Type)
}

func TestRemoveAndAddRemove_RouteToService(t *testing.T) {
	svc := &fakeService{op: &liquidity.Operation{ID: "op-2"}}
	h := newTestServer(svc, nil)

	w := doRequest(t, h, http.MethodPost, "/api/v1/liquidity/remove", `{"pool_id": "`+testPool+`", "amount": 7}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, uint64(7), svc.lastRemove.Amount)
	assert.Equal(t, testPool, svc.lastRemove.PoolID)

	w = doRequest(t, h, http.MethodPost, "/api/v1/liquidity/add-remove", `{"add_amount": 2, "remove_amount": 1, "slippage": 0.05}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, uint64(2), svc.lastAddRemove.AddAmount)
	assert.Equal(t, uint64(1), svc.lastAddRemove.RemoveAmount)
}

func TestLiquidity_BadRequests(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		errSubstr string
	}{
		{name: "empty body", body: "", errSubstr: "request body is required"},
		{name: "malformed json", body: `{"amount":`, errSubstr: "invalid request body"},
		{name: "unknown field", body: `{"amount": 1, "ammount": 2}`, errSubstr: "invalid request body"},
		{name: "negative amount", body: `{"amount": -1}`, errSubstr: "invalid request body"},
		{name: "bad pool id", body: `{"pool_id": "0OIl", "amount": 1}`, errSubstr: "invalid pool_id"},
		{name: "oversized", body: `{"pool_id": "` + strings.Repeat("a", maxRequestBodySize) + `"}`, errSubstr: "too large"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &fakeService{}
			h := newTestServer(svc, nil)

			w := doRequest(t, h, http.MethodPost, "/api/v1/liquidity/add", tt.body)
			require.Equal(t, http.StatusBadRequest, w.Code)
			assert.Contains(t, decodeError(t, w), tt.errSubstr)
			assert.Zero(t, svc.calls)
		})
	}
}

func TestLiquidity_ErrorStatusMapping(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"zero amount", fmt.Errorf("add: %w", liquidity.ErrAmountZero), http.StatusBadRequest},
		{"slippage", liquidity.ErrSlippageOutOfRange, http.StatusBadRequest},
		{"overflow", liquidity.ErrMultiplicationOverflow, http.StatusBadRequest},
		{"zero remove amount", fmt.Errorf("remove: %w", liquidity.ErrAmountZero), http.StatusBadRequest},
		{"cache missing", &cache.Error{Op: "resolve market", Path: "m.json", Err: cache.ErrNotFound}, http.StatusNotFound},
		{"account missing", fmt.Errorf("fetch pool: %w", solana.ErrAccountNotFound), http.StatusNotFound},
		{"cache mismatch", &cache.Error{Op: "resolve pool", Path: "p.json", Err: cache.ErrIDMismatch}, http.StatusConflict},
		{"cache malformed", &cache.Error{Op: "resolve pool", Path: "p.json", Err: cache.ErrMalformed}, http.StatusConflict},
		{"pool mismatch", liquidity.ErrPoolMismatch, http.StatusConflict},
		{"delegation", &liquidity.DelegationError{Kind: liquidity.Deposit, Err: errors.New("boom")}, http.StatusBadGateway},
		{"no instructions", liquidity.ErrNoInstructions, http.StatusBadGateway},
		{"zero multiplier", liquidity.ErrZeroMultiplier, http.StatusBadGateway},
		{"build error", &solana.BuildError{Stage: solana.StageBuilt, Err: errors.New("no blockhash")}, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestServer(&fakeService{err: tt.err}, nil)

			w := doRequest(t, h, http.MethodPost, "/api/v1/liquidity/remove", `{"amount": 1}`)
			assert.Equal(t, tt.status, w.Code)
			assert.NotEmpty(t, decodeError(t, w))
		})
	}
}

func TestLiquidity_RecoverableOutcomeIs200(t *testing.T) {
	op := &liquidity.Operation{ID: "op-3", SimulationError: "slippage exceeded", SubmitError: "send rejected"}
	h := newTestServer(&fakeService{op: op}, nil)

	w := doRequest(t, h, http.MethodPost, "/api/v1/liquidity/add", `{"amount": 1}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "send rejected")
}

func TestGetPool(t *testing.T) {
	h := newTestServer(&fakeService{}, nil)

	w := doRequest(t, h, http.MethodGet, "/api/v1/pools/"+testPool, "")
	require.Equal(t, http.StatusOK, w.Code)

	var state map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &state))
	assert.Equal(t, testPool, state["pool_id"])
	assert.Equal(t, float64(1000), state["lp_total"])

	w = doRequest(t, h, http.MethodGet, "/api/v1/pools/not0valid", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	h = newTestServer(&fakeService{err: liquidity.ErrPoolMismatch}, nil)
	w = doRequest(t, h, http.MethodGet, "/api/v1/pools/"+testPool, "")
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestListOperations(t *testing.T) {
	store := &fakeStore{ops: []*liquidity.Operation{{ID: "a"}, {ID: "b"}}}
	h := newTestServer(&fakeService{}, store)

	w := doRequest(t, h, http.MethodGet, "/api/v1/operations?pool_id="+testPool+"&limit=10&offset=5", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, db.ListOperationsParams{PoolID: testPool, Limit: 10, Offset: 5}, store.lastParams)

	var resp struct {
		Operations []liquidity.Operation `json:"operations"`
		Count      int                   `json:"count"`
		Limit      int                   `json:"limit"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 2, resp.Count)
	assert.Equal(t, 10, resp.Limit)
	assert.Equal(t, "a", resp.Operations[0].ID)
}

func TestListOperations_BadParams(t *testing.T) {
	h := newTestServer(&fakeService{}, &fakeStore{})

	for _, q := range []string{"limit=abc", "limit=0", "limit=1001", "offset=-1", "offset=x", "pool_id=0O0"} {
		t.Run(q, func(t *testing.T) {
			w := doRequest(t, h, http.MethodGet, "/api/v1/operations?"+q, "")
			assert.Equal(t, http.StatusBadRequest, w.Code)
		})
	}
}

func TestOperations_StoreErrors(t *testing.T) {
	h := newTestServer(&fakeService{}, &fakeStore{err: errors.New("connection reset")})
	w := doRequest(t, h, http.MethodGet, "/api/v1/operations", "")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "internal server error", decodeError(t, w))

	h = newTestServer(&fakeService{}, nil)
	w = doRequest(t, h, http.MethodGet, "/api/v1/operations", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	w = doRequest(t, h, http.MethodGet, "/api/v1/operations/abc", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestGetOperation(t *testing.T) {
	h := newTestServer(&fakeService{}, &fakeStore{ops: []*liquidity.Operation{{ID: "abc", Signature: "sig"}}})

	w := doRequest(t, h, http.MethodGet, "/api/v1/operations/abc", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"signature":"sig"`)

	w = doRequest(t, h, http.MethodGet, "/api/v1/operations/missing", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHealthAndCORS(t *testing.T) {
	h := newTestServer(&fakeService{}, nil)

	w := doRequest(t, h, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "OK", w.Body.String())
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))

	w = doRequest(t, h, http.MethodOptions, "/api/v1/liquidity/add", "")
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = doRequest(t, h, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusNotFound, w.Code, "metrics route is absent without a collector")
}

func TestMetricsRoute(t *testing.T) {
	m := metrics.NewMetrics(prometheus.NewRegistry())
	h := New(":0", &fakeService{op: &liquidity.Operation{}}, nil, m, testLogger()).Handler()

	w := doRequest(t, h, http.MethodPost, "/api/v1/liquidity/add", `{"amount": 1}`)
	require.Equal(t, http.StatusOK, w.Code)

	w = doRequest(t, h, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestValidateAddress(t *testing.T) {
	assert.NoError(t, validateAddress(testPool))
	assert.Error(t, validateAddress(""))
	assert.Error(t, validateAddress(strings.Repeat("a", maxAddressLength+1)))
	assert.Error(t, validateAddress("abc\x00def"))
	assert.Error(t, validateAddress("abc def"))
	assert.Error(t, validateAddress("0OIl"))
}
