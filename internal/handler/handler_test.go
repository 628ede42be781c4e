package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pollkeeper/internal/cache"
	"pollkeeper/internal/funding"
	"pollkeeper/internal/poll"
	"pollkeeper/internal/reconcile"
	"pollkeeper/internal/service"
	"pollkeeper/internal/token"
)

type stubReconciler struct {
	mu    sync.Mutex
	res   reconcile.Result
	calls int
}

func (s *stubReconciler) Reconcile(ctx context.Context, creator, chain string) (reconcile.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	r := s.res
	r.Creator, r.Chain = creator, chain
	return r, nil
}

type stubLedger struct {
	balance   *big.Int
	allowance *big.Int
}

func (s stubLedger) Balance(ctx context.Context, chain, owner string, tok token.Descriptor) (*big.Int, error) {
	return s.balance, nil
}

func (s stubLedger) Allowance(ctx context.Context, chain, owner, spender string, tok token.Descriptor) (*big.Int, error) {
	return s.allowance, nil
}

var usdc = token.Descriptor{Symbol: "USDC", Decimals: 6, Address: "0xusdc"}

func quadraticPoll(id uint64, vt poll.VotingType) poll.Record {
	return poll.Record{
		ID:           id,
		Question:     "q",
		Options:      []string{"yes", "no"},
		Votes:        []uint64{0, 0},
		EndTime:      1_700_000_000,
		IsActive:     true,
		Creator:      "0xabc",
		TotalFunding: big.NewInt(0),
		FundingToken: usdc,
		FundingType:  poll.FundingSelf,
		VotingType:   vt,
	}
}

func newTestEngine(t *testing.T, ledger stubLedger) (*gin.Engine, *stubReconciler) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	rec := &stubReconciler{res: reconcile.Merge([]poll.Record{
		quadraticPoll(1, poll.VotingQuadratic),
		quadraticPoll(2, poll.VotingLinear),
	}, nil, nil)}
	syncSvc := &service.PollSyncService{Reconciler: rec, Cache: cache.NewMemoryStore()}

	reg := token.NewRegistry()
	require.NoError(t, reg.Register("base", usdc))
	require.NoError(t, reg.Register("base", token.Descriptor{Symbol: "ETH", Decimals: 18, Native: true}))
	orch := &funding.Orchestrator{
		Tokens:     reg,
		Balances:   ledger,
		Allowances: ledger,
		Spenders:   map[string]string{"base": "0xPOLL"},
		GasReserve: "0.01",
	}

	r := gin.New()
	r.Use(RequireBearer("secret"))
	(&HealthHandler{}).Register(r)
	(&PollsHandler{Sync: syncSvc}).Register(r)
	(&VotesHandler{Sync: syncSvc}).Register(r)
	(&FundingHandler{Orchestrator: orch, Sync: syncSvc}).Register(r)
	(&SettingsHandler{Settings: &service.SystemSettingsService{}}).Register(r)
	return r, rec
}

func do(t *testing.T, r http.Handler, method, path string, body any) (*httptest.ResponseRecorder, apiResponse) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Authorization", "Bearer secret")
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	var resp apiResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	return w, resp
}

func dataMap(t *testing.T, resp apiResponse) map[string]any {
	t.Helper()
	m, ok := resp.Data.(map[string]any)
	require.True(t, ok, "data is %T", resp.Data)
	return m
}

func TestHealthEndpointsStayOpen(t *testing.T) {
	r, _ := newTestEngine(t, stubLedger{})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestRequireBearer(t *testing.T) {
	r, _ := newTestEngine(t, stubLedger{})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/votes/cost?requested=1", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/votes/cost?requested=1", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestVotesCost(t *testing.T) {
	r, _ := newTestEngine(t, stubLedger{})

	w, resp := do(t, r, http.MethodGet, "/api/v1/votes/cost?owned=2&requested=3&breakdown=true", nil)
	require.Equal(t, http.StatusOK, w.Code)
	data := dataMap(t, resp)
	assert.Equal(t, "50", data["total_cost"])
	assert.Equal(t, []any{"9", "16", "25"}, data["breakdown"])

	w, resp = do(t, r, http.MethodGet, "/api/v1/votes/cost?requested=0", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "invalid_vote_count", resp.Meta["kind"])
}

func TestPollsListServedFromCache(t *testing.T) {
	r, rec := newTestEngine(t, stubLedger{})

	w, _ := do(t, r, http.MethodGet, "/api/v1/creators/0xABC/polls", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, resp := do(t, r, http.MethodGet, "/api/v1/creators/0xABC/polls?chain=base", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, false, resp.Meta["cached"])
	assert.Equal(t, float64(2), resp.Meta["total"])

	w, resp = do(t, r, http.MethodGet, "/api/v1/creators/0xabc/polls?chain=BASE", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, resp.Meta["cached"])
	assert.Equal(t, 1, rec.calls)
}

func TestVotesQuote(t *testing.T) {
	r, _ := newTestEngine(t, stubLedger{})
	body := map[string]any{"chain": "base", "creator": "0xabc", "poll_id": 1, "option_index": 0, "votes_requested": 2}

	w, resp := do(t, r, http.MethodPost, "/api/v1/votes/quote", body)
	require.Equal(t, http.StatusOK, w.Code)
	data := dataMap(t, resp)
	assert.Equal(t, "5", data["total_cost"])
	assert.Equal(t, "0.000005", data["total_cost_display"])

	body["poll_id"] = 2
	w, resp = do(t, r, http.MethodPost, "/api/v1/votes/quote", body)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "invalid_vote_count", resp.Meta["kind"])

	body["poll_id"] = 99
	w, _ = do(t, r, http.MethodPost, "/api/v1/votes/quote", body)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

const testOwner = "0x00000000000000000000000000000000000000dd"

func TestFundingPlanAuthorizesThenTransfers(t *testing.T) {
	r, _ := newTestEngine(t, stubLedger{balance: big.NewInt(10_000_000), allowance: big.NewInt(0)})
	body := map[string]any{"chain": "base", "owner": testOwner, "poll_id": 1, "token": "usdc", "amount": "2.5"}

	w, resp := do(t, r, http.MethodPost, "/api/v1/funding/plan", body)
	require.Equal(t, http.StatusOK, w.Code)
	data := dataMap(t, resp)
	intent := data["intent"].(map[string]any)
	assert.Equal(t, "2500000", intent["requested_units"])
	assert.Equal(t, true, intent["requires_authorization"])
	assert.Equal(t, "0xpoll", intent["spender"])
	plan := data["plan"].(map[string]any)
	assert.Equal(t, string(funding.AuthorizeThenTransfer), plan["kind"])
	steps := plan["steps"].([]any)
	require.Len(t, steps, 2)
	assert.Equal(t, "authorize", steps[0].(map[string]any)["kind"])
	assert.Equal(t, "2.5", steps[1].(map[string]any)["amount_display"])

	body["amount"] = "20"
	w, resp = do(t, r, http.MethodPost, "/api/v1/funding/plan", body)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, "insufficient_balance", resp.Meta["kind"])

	body["token"] = "DOGE"
	w, resp = do(t, r, http.MethodPost, "/api/v1/funding/plan", body)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, "token_not_supported_on_chain", resp.Meta["kind"])
}

func TestFundingRejectsBadInputBeforeLedger(t *testing.T) {
	r, _ := newTestEngine(t, stubLedger{balance: big.NewInt(10_000_000)})
	body := map[string]any{"chain": "base", "owner": "0xOwner", "poll_id": 1, "token": "usdc", "amount": "1"}

	w, resp := do(t, r, http.MethodPost, "/api/v1/funding/plan", body)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "invalid_address", resp.Meta["kind"])

	w, resp = do(t, r, http.MethodGet, "/api/v1/funding/max?chain=base&owner=0xv&token=eth", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "invalid_address", resp.Meta["kind"])
}

func TestFundingVotesUsesQuadraticCost(t *testing.T) {
	r, _ := newTestEngine(t, stubLedger{balance: big.NewInt(1_000), allowance: big.NewInt(1_000)})
	body := map[string]any{"chain": "base", "creator": "0xabc", "owner": testOwner, "poll_id": 1, "votes_already_owned": 1, "votes_requested": 2}

	w, resp := do(t, r, http.MethodPost, "/api/v1/funding/votes", body)
	require.Equal(t, http.StatusOK, w.Code)
	data := dataMap(t, resp)
	intent := data["intent"].(map[string]any)
	assert.Equal(t, "13", intent["requested_units"])
	assert.Equal(t, float64(2), intent["votes"])
	plan := data["plan"].(map[string]any)
	assert.Equal(t, string(funding.TransferOnly), plan["kind"])
}

func TestFundingMaxKeepsGasReserve(t *testing.T) {
	r, _ := newTestEngine(t, stubLedger{balance: new(big.Int).Exp(big.NewInt(10), big.NewInt(17), nil)})

	w, resp := do(t, r, http.MethodGet, "/api/v1/funding/max?chain=base&owner="+testOwner+"&token=eth", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "0.09", dataMap(t, resp)["amount"])
}

func TestSettingsRejectsUnknownSwitch(t *testing.T) {
	r, _ := newTestEngine(t, stubLedger{})
	w, _ := do(t, r, http.MethodPut, "/api/v1/settings/switches/nope", map[string]any{"enabled": false})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w, resp := do(t, r, http.MethodGet, "/api/v1/settings/switches", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, resp.Data, 3)
}
