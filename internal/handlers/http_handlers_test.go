package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AlstonThomson/fhe-secret-lottery-upload/internal/chain"
	"github.com/AlstonThomson/fhe-secret-lottery-upload/internal/commitment"
	"github.com/AlstonThomson/fhe-secret-lottery-upload/internal/models"
	"github.com/AlstonThomson/fhe-secret-lottery-upload/internal/services"
	"github.com/AlstonThomson/fhe-secret-lottery-upload/internal/store"
)

var (
	owner   = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	player  = common.HexToAddress("0x00000000000000000000000000000000000000b1")
	keeper  = common.HexToAddress("0x00000000000000000000000000000000000000c1")
	program = common.HexToAddress("0x0000000000000000000000000000000000005ec7")
)

func init() {
	gin.SetMode(gin.TestMode)
}

func tenthEther() *big.Int {
	return new(big.Int).Div(services.Ether, big.NewInt(10))
}

func newTestRouter(t *testing.T) (*gin.Engine, *services.LotteryService) {
	t.Helper()
	ledger := chain.NewLedger(store.NewMemoryStore(), program)
	require.NoError(t, ledger.Fund(player, new(big.Int).Mul(services.Ether, big.NewInt(10))))
	entropy := services.EntropyFunc(func(*chain.Context, uint64) *big.Int { return new(big.Int) })
	svc := services.NewLotteryService(ledger, services.NewSecretLotto(entropy))
	require.NoError(t, svc.Deploy(context.Background(), owner, services.DefaultSettings()))

	h := NewHTTPHandler(svc)
	r := gin.New()
	r.Use(RequestID())
	h.RegisterPublicRoutes(r)
	api := r.Group("/")
	api.Use(h.CallerMiddleware())
	h.RegisterRoutes(api)
	return r, svc
}

func do(r http.Handler, method, path string, caller common.Address, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if caller != (common.Address{}) {
		req.Header.Set(CallerHeader, caller.Hex())
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func assertError(t *testing.T, rec *httptest.ResponseRecorder, status int, kind string) {
	t.Helper()
	assert.Equal(t, status, rec.Code, rec.Body.String())
	assert.Equal(t, kind, decode[errorResponse](t, rec).Error)
}

func TestHealthAndRequestID(t *testing.T) {
	r, _ := newTestRouter(t)

	rec := do(r, http.MethodGet, "/healthz", common.Address{}, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get(RequestIDHeader))

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set(RequestIDHeader, "abc-123")
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, "abc-123", rec.Header().Get(RequestIDHeader))
}

func TestGetParams(t *testing.T) {
	r, _ := newTestRouter(t)
	rec := do(r, http.MethodGet, "/params", common.Address{}, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	got := decode[struct {
		Owner          common.Address `json:"owner"`
		MinBet         *big.Int       `json:"minBet"`
		MaxBet         *big.Int       `json:"maxBet"`
		PlatformFee    uint64         `json:"platformFee"`
		CurrentRoundID uint64         `json:"currentRoundId"`
	}](t, rec)
	assert.Equal(t, owner, got.Owner)
	assert.Equal(t, "1000000000000000", got.MinBet.String())
	assert.Equal(t, services.Ether.String(), got.MaxBet.String())
	assert.Equal(t, uint64(5), got.PlatformFee)
	assert.Equal(t, uint64(1), got.CurrentRoundID)
}

func TestTicketLifecycle(t *testing.T) {
	r, _ := newTestRouter(t)
	salt := common.HexToHash("0x1234")
	stake := tenthEther()
	hash := commitment.Compute(stake, salt)

	rec := do(r, http.MethodPost, "/tickets", player, gin.H{"commitment": hash.Hex(), "value": stake.String()})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	bought := decode[models.TicketPurchased](t, rec)
	assert.Equal(t, uint64(1), bought.RoundID)
	assert.Equal(t, uint64(0), bought.TicketID)
	assert.Equal(t, player, bought.Player)

	rec = do(r, http.MethodGet, "/rounds/1/tickets", common.Address{}, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, uint64(1), decode[struct {
		TicketCount uint64 `json:"ticketCount"`
	}](t, rec).TicketCount)

	rec = do(r, http.MethodPost, "/reveals", player, gin.H{
		"roundId": 1, "ticketId": 0, "amount": stake.String(), "salt": common.HexToHash("0x9999").Hex(),
	})
	assertError(t, rec, http.StatusBadRequest, "InvalidReveal")

	rec = do(r, http.MethodPost, "/reveals", player, gin.H{
		"roundId": 1, "ticketId": 0, "amount": stake.String(), "salt": salt.Hex(),
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = do(r, http.MethodGet, "/rounds/1/tickets/0", common.Address{}, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	ticket := decode[models.Ticket](t, rec)
	assert.True(t, ticket.Revealed)
	assert.Equal(t, stake.String(), ticket.RevealedAmount.String())

	rec = do(r, http.MethodPost, "/draws", keeper, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	drawn := decode[models.WinnerDrawn](t, rec)
	assert.Equal(t, player, drawn.Winner)
	assert.Equal(t, "95000000000000000", drawn.Prize.String())

	rec = do(r, http.MethodGet, "/rounds/current", common.Address{}, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, uint64(2), decode[models.Round](t, rec).ID)

	rec = do(r, http.MethodGet, "/players/"+player.Hex()+"/history", common.Address{}, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	hist := decode[struct {
		Tickets []models.HistoryEntry `json:"tickets"`
	}](t, rec)
	assert.Equal(t, []models.HistoryEntry{{RoundID: 1, TicketID: 0}}, hist.Tickets)
}

func TestBuyTicket_Errors(t *testing.T) {
	r, _ := newTestRouter(t)
	hash := commitment.Compute(tenthEther(), common.HexToHash("0x01")).Hex()

	tests := []struct {
		name   string
		caller common.Address
		body   any
		status int
		kind   string
	}{
		{"missing caller", common.Address{}, gin.H{"commitment": hash, "value": "1"}, http.StatusUnauthorized, "MissingCaller"},
		{"missing body field", player, gin.H{"value": "1"}, http.StatusBadRequest, "BadRequest"},
		{"short commitment", player, gin.H{"commitment": "0x12", "value": "1"}, http.StatusBadRequest, "BadRequest"},
		{"negative value", player, gin.H{"commitment": hash, "value": "-1"}, http.StatusBadRequest, "BadRequest"},
		{"bet too low", player, gin.H{"commitment": hash, "value": "1"}, http.StatusBadRequest, "BetTooLow"},
		{"bet too high", player, gin.H{"commitment": hash, "value": "2000000000000000000"}, http.StatusBadRequest, "BetTooHigh"},
		{"insufficient funds", keeper, gin.H{"commitment": hash, "value": tenthEther().String()}, http.StatusPaymentRequired, "InsufficientFunds"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(r, http.MethodPost, "/tickets", tt.caller, tt.body)
			assertError(t, rec, tt.status, tt.kind)
		})
	}
}

func TestInvalidCallerHeader(t *testing.T) {
	r, _ := newTestRouter(t)
	req := httptest.NewRequest(http.MethodPost, "/draws", nil)
	req.Header.Set(CallerHeader, "not-an-address")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assertError(t, rec, http.StatusBadRequest, "BadRequest")
}

func TestDrawWinner_NoTickets(t *testing.T) {
	r, _ := newTestRouter(t)
	rec := do(r, http.MethodPost, "/draws", keeper, nil)
	assertError(t, rec, http.StatusConflict, "NoTicketsSold")
}

func TestWithdraw_NothingPending(t *testing.T) {
	r, _ := newTestRouter(t)
	rec := do(r, http.MethodPost, "/withdrawals", player, nil)
	assertError(t, rec, http.StatusConflict, "NothingToWithdraw")
}

func TestRoundLookups(t *testing.T) {
	r, _ := newTestRouter(t)
	assertError(t, do(r, http.MethodGet, "/rounds/9", common.Address{}, nil), http.StatusNotFound, "NotFound")
	assertError(t, do(r, http.MethodGet, "/rounds/x", common.Address{}, nil), http.StatusBadRequest, "BadRequest")
	assertError(t, do(r, http.MethodGet, "/rounds/1/tickets/0", common.Address{}, nil), http.StatusNotFound, "NotFound")
	assertError(t, do(r, http.MethodGet, "/players/bob/history", common.Address{}, nil), http.StatusBadRequest, "BadRequest")

	rec := do(r, http.MethodGet, "/rounds", common.Address{}, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[struct {
		Rounds []models.Round `json:"rounds"`
	}](t, rec).Rounds, 1)
}

func TestAdminRoutes(t *testing.T) {
	r, svc := newTestRouter(t)

	rec := do(r, http.MethodPut, "/params/platform-fee", player, gin.H{"platformFee": 10})
	assertError(t, rec, http.StatusForbidden, "Unauthorized")

	rec = do(r, http.MethodPut, "/params/platform-fee", owner, gin.H{"platformFee": 101})
	assertError(t, rec, http.StatusBadRequest, "InvalidRange")

	rec = do(r, http.MethodPut, "/params/platform-fee", owner, gin.H{"platformFee": 0})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	fee, err := svc.PlatformFee(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(0), fee)

	rec = do(r, http.MethodPut, "/params/bet-limits", owner, gin.H{"minBet": "10", "maxBet": "5"})
	assertError(t, rec, http.StatusBadRequest, "InvalidRange")

	rec = do(r, http.MethodPut, "/params/bet-limits", owner, gin.H{"minBet": "10", "maxBet": "50"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	minBet, err := svc.MinBet(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "10", minBet.String())
}

func TestGetBalance(t *testing.T) {
	r, _ := newTestRouter(t)
	rec := do(r, http.MethodGet, "/accounts/"+player.Hex()+"/balance", common.Address{}, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	got := decode[struct {
		Balance *big.Int `json:"balance"`
		Pending *big.Int `json:"pending"`
	}](t, rec)
	assert.Equal(t, "10000000000000000000", got.Balance.String())
	assert.Equal(t, "0", got.Pending.String())
}

func TestMakeCommitment(t *testing.T) {
	r, _ := newTestRouter(t)
	salt := common.HexToHash("0xabcd")

	rec := do(r, http.MethodPost, "/commitments", common.Address{}, gin.H{"amount": "100", "salt": salt.Hex()})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	got := decode[struct {
		Commitment common.Hash `json:"commitment"`
		Salt       common.Hash `json:"salt"`
	}](t, rec)
	assert.Equal(t, commitment.Compute(big.NewInt(100), salt), got.Commitment)

	rec = do(r, http.MethodPost, "/commitments", common.Address{}, gin.H{"amount": "100"})
	require.Equal(t, http.StatusOK, rec.Code)
	fresh := decode[struct {
		Commitment common.Hash `json:"commitment"`
		Salt       common.Hash `json:"salt"`
	}](t, rec)
	assert.NotEqual(t, common.Hash{}, fresh.Salt)
	assert.True(t, commitment.Verify(fresh.Commitment, big.NewInt(100), fresh.Salt))
}

func TestExportRoundsCSV(t *testing.T) {
	r, _ := newTestRouter(t)
	rec := do(r, http.MethodGet, "/rounds/export.csv", common.Address{}, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/csv", rec.Header().Get("Content-Type"))

	body := rec.Body.String()
	require.True(t, strings.HasPrefix(body, "\xef\xbb\xbf"))
	lines := strings.Split(strings.TrimSpace(strings.TrimPrefix(body, "\xef\xbb\xbf")), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], "round_id,state"))
	assert.True(t, strings.HasPrefix(lines[1], "1,OPEN,0,0,,0,"))
}

func TestRateLimiter(t *testing.T) {
	r := gin.New()
	r.Use(NewRateLimiter(0.001, 1).Middleware())
	r.GET("/ping", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	assert.Equal(t, http.StatusNoContent, do(r, http.MethodGet, "/ping", player, nil).Code)
	assertError(t, do(r, http.MethodGet, "/ping", player, nil), http.StatusTooManyRequests, "RateLimited")
	assert.Equal(t, http.StatusNoContent, do(r, http.MethodGet, "/ping", keeper, nil).Code, "limits are per caller")
}
