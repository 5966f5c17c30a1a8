package handlers

import (
	"encoding/csv"
	"math/big"
	"net/http"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
	"github.com/google/logger"

	"github.com/AlstonThomson/fhe-secret-lottery-upload/internal/commitment"
	"github.com/AlstonThomson/fhe-secret-lottery-upload/internal/metrics"
	"github.com/AlstonThomson/fhe-secret-lottery-upload/internal/services"
)

// HTTPHandler holds the dependencies for the HTTP handlers, like the lottery service.
type HTTPHandler struct {
	service *services.LotteryService
}

// NewHTTPHandler creates a new HTTPHandler.
func NewHTTPHandler(service *services.LotteryService) *HTTPHandler {
	return &HTTPHandler{service: service}
}

// RegisterPublicRoutes registers the routes that need no caller identity.
func (h *HTTPHandler) RegisterPublicRoutes(router gin.IRouter) {
	router.GET("/healthz", h.Health)
	router.GET("/metrics", gin.WrapH(metrics.Handler()))
}

// RegisterRoutes registers the lottery API. The group is expected to run
// CallerMiddleware.
func (h *HTTPHandler) RegisterRoutes(router gin.IRouter) {
	router.GET("/params", h.GetParams)
	router.GET("/rounds", h.ListRounds)
	router.GET("/rounds/current", h.GetCurrentRound)
	router.GET("/rounds/export.csv", h.ExportRoundsCSV)
	router.GET("/rounds/:id", h.GetRound)
	router.GET("/rounds/:id/tickets", h.GetRoundTickets)
	router.GET("/rounds/:id/tickets/:ticket", h.GetTicket)
	router.GET("/players/:address/history", h.GetPlayerHistory)
	router.GET("/accounts/:address/balance", h.GetBalance)

	router.POST("/commitments", h.MakeCommitment)
	router.POST("/tickets", h.BuyTicket)
	router.POST("/reveals", h.RevealBet)
	router.POST("/draws", h.DrawWinner)
	router.POST("/withdrawals", h.Withdraw)
	router.PUT("/params/bet-limits", h.UpdateBetLimits)
	router.PUT("/params/platform-fee", h.UpdatePlatformFee)
}

// Health reports liveness and the ledger head.
func (h *HTTPHandler) Health(c *gin.Context) {
	head := h.service.Ledger().Head()
	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"block":     head.Number,
		"timestamp": head.Timestamp,
	})
}

// GetParams returns the owner, bet bounds, fee and payout settings.
func (h *HTTPHandler) GetParams(c *gin.Context) {
	p, err := h.service.GetParams(c.Request.Context())
	if err != nil {
		abortWithError(c, err)
		return
	}
	id, err := h.service.CurrentRoundID(c.Request.Context())
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"owner":          p.Owner,
		"minBet":         p.MinBet,
		"maxBet":         p.MaxBet,
		"platformFee":    p.PlatformFee,
		"treasury":       p.Treasury(),
		"payoutMode":     p.PayoutMode,
		"currentRoundId": id,
	})
}

// ListRounds returns every round, oldest first.
func (h *HTTPHandler) ListRounds(c *gin.Context) {
	rounds, err := h.service.GetRounds(c.Request.Context())
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"rounds": rounds})
}

// GetCurrentRound returns the open round.
func (h *HTTPHandler) GetCurrentRound(c *gin.Context) {
	r, err := h.service.GetCurrentRound(c.Request.Context())
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, r)
}

// GetRound returns any round by id.
func (h *HTTPHandler) GetRound(c *gin.Context) {
	id, ok := uintParam(c, "id")
	if !ok {
		return
	}
	r, err := h.service.GetRound(c.Request.Context(), id)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, r)
}

// GetRoundTickets returns the number of tickets sold in a round.
func (h *HTTPHandler) GetRoundTickets(c *gin.Context) {
	id, ok := uintParam(c, "id")
	if !ok {
		return
	}
	n, err := h.service.GetRoundTickets(c.Request.Context(), id)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"roundId": id, "ticketCount": n})
}

// GetTicket returns one ticket. The stake of an unrevealed ticket is not part
// of the record.
func (h *HTTPHandler) GetTicket(c *gin.Context) {
	roundID, ok := uintParam(c, "id")
	if !ok {
		return
	}
	ticketID, ok := uintParam(c, "ticket")
	if !ok {
		return
	}
	t, err := h.service.GetTicket(c.Request.Context(), roundID, ticketID)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, t)
}

// GetPlayerHistory returns the tickets a player bought, in purchase order.
func (h *HTTPHandler) GetPlayerHistory(c *gin.Context) {
	player, ok := addressParam(c, "address")
	if !ok {
		return
	}
	entries, err := h.service.GetPlayerHistory(c.Request.Context(), player)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"player": player, "tickets": entries})
}

// GetBalance returns the native balance and pending withdrawal of an account.
func (h *HTTPHandler) GetBalance(c *gin.Context) {
	addr, ok := addressParam(c, "address")
	if !ok {
		return
	}
	ctx := c.Request.Context()
	balance, err := h.service.Balance(ctx, addr)
	if err != nil {
		abortWithError(c, err)
		return
	}
	pending, err := h.service.PendingWithdrawal(ctx, addr)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"address": addr, "balance": balance, "pending": pending})
}

type commitmentRequest struct {
	Amount string `json:"amount" binding:"required"`
	Salt   string `json:"salt"`
}

// MakeCommitment computes keccak256(amount, salt) for clients that cannot
// hash locally. A random salt is generated when none is given.
func (h *HTTPHandler) MakeCommitment(c *gin.Context) {
	var req commitmentRequest
	if !bindJSON(c, &req) {
		return
	}
	amount, ok := parseWei(c, "amount", req.Amount)
	if !ok {
		return
	}
	if !commitment.Valid(amount) {
		abortBadRequest(c, "amount does not fit in 256 bits")
		return
	}
	var salt common.Hash
	if req.Salt == "" {
		s, err := commitment.NewSalt()
		if err != nil {
			abortWithError(c, err)
			return
		}
		salt = s
	} else if salt, ok = parseHash(c, "salt", req.Salt); !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"commitment": commitment.Compute(amount, salt),
		"amount":     amount,
		"salt":       salt,
	})
}

type buyTicketRequest struct {
	Commitment string `json:"commitment" binding:"required"`
	Value      string `json:"value" binding:"required"`
}

// BuyTicket stakes the request value on a commitment for the caller.
func (h *HTTPHandler) BuyTicket(c *gin.Context) {
	caller, ok := requireCaller(c)
	if !ok {
		return
	}
	var req buyTicketRequest
	if !bindJSON(c, &req) {
		return
	}
	hash, ok := parseHash(c, "commitment", req.Commitment)
	if !ok {
		return
	}
	value, ok := parseWei(c, "value", req.Value)
	if !ok {
		return
	}
	ev, err := h.service.BuyTicket(c.Request.Context(), caller, hash, value)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, ev)
}

type revealRequest struct {
	RoundID  *uint64 `json:"roundId" binding:"required"`
	TicketID *uint64 `json:"ticketId" binding:"required"`
	Amount   string  `json:"amount" binding:"required"`
	Salt     string  `json:"salt" binding:"required"`
}

// RevealBet opens a ticket commitment.
func (h *HTTPHandler) RevealBet(c *gin.Context) {
	caller, ok := requireCaller(c)
	if !ok {
		return
	}
	var req revealRequest
	if !bindJSON(c, &req) {
		return
	}
	amount, ok := parseWei(c, "amount", req.Amount)
	if !ok {
		return
	}
	salt, ok := parseHash(c, "salt", req.Salt)
	if !ok {
		return
	}
	ev, err := h.service.RevealBet(c.Request.Context(), caller, *req.RoundID, *req.TicketID, amount, salt)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, ev)
}

// DrawWinner finalizes the current round.
func (h *HTTPHandler) DrawWinner(c *gin.Context) {
	caller, ok := requireCaller(c)
	if !ok {
		return
	}
	ev, err := h.service.DrawWinner(c.Request.Context(), caller)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, ev)
}

// Withdraw pays out the caller's pending credit.
func (h *HTTPHandler) Withdraw(c *gin.Context) {
	caller, ok := requireCaller(c)
	if !ok {
		return
	}
	ev, err := h.service.Withdraw(c.Request.Context(), caller)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, ev)
}

type betLimitsRequest struct {
	MinBet string `json:"minBet" binding:"required"`
	MaxBet string `json:"maxBet" binding:"required"`
}

// UpdateBetLimits replaces the bet bounds. Owner only.
func (h *HTTPHandler) UpdateBetLimits(c *gin.Context) {
	caller, ok := requireCaller(c)
	if !ok {
		return
	}
	var req betLimitsRequest
	if !bindJSON(c, &req) {
		return
	}
	minBet, ok := parseWei(c, "minBet", req.MinBet)
	if !ok {
		return
	}
	maxBet, ok := parseWei(c, "maxBet", req.MaxBet)
	if !ok {
		return
	}
	if err := h.service.UpdateBetLimits(c.Request.Context(), caller, minBet, maxBet); err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"minBet": minBet, "maxBet": maxBet})
}

type platformFeeRequest struct {
	PlatformFee *uint64 `json:"platformFee" binding:"required"`
}

// UpdatePlatformFee replaces the fee percentage. Owner only.
func (h *HTTPHandler) UpdatePlatformFee(c *gin.Context) {
	caller, ok := requireCaller(c)
	if !ok {
		return
	}
	var req platformFeeRequest
	if !bindJSON(c, &req) {
		return
	}
	if err := h.service.UpdatePlatformFee(c.Request.Context(), caller, *req.PlatformFee); err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"platformFee": *req.PlatformFee})
}

// ExportRoundsCSV handles the request to download the round history as a CSV file.
func (h *HTTPHandler) ExportRoundsCSV(c *gin.Context) {
	rounds, err := h.service.GetRounds(c.Request.Context())
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.Header("Content-Type", "text/csv")
	c.Header("Content-Disposition", "attachment;filename=secret_lotto_rounds.csv")

	// Add BOM to ensure UTF-8 compatibility in Excel
	c.Writer.Write([]byte("\xef\xbb\xbf"))

	w := csv.NewWriter(c.Writer)
	if err := w.Write([]string{"round_id", "state", "ticket_count", "total_pool_wei", "winner", "prize_wei", "start_time", "end_time"}); err != nil {
		logger.Infof("Error writing CSV header: %v", err)
		return
	}

	for _, r := range rounds {
		winner := ""
		if r.Winner != (common.Address{}) {
			winner = r.Winner.Hex()
		}
		row := []string{
			strconv.FormatUint(r.ID, 10),
			r.State.String(),
			strconv.FormatUint(r.TicketCount, 10),
			weiString(r.TotalPool),
			winner,
			weiString(r.PrizeAmount),
			strconv.FormatUint(r.StartTime, 10),
			strconv.FormatUint(r.EndTime, 10),
		}
		if err := w.Write(row); err != nil {
			logger.Infof("Error writing CSV row: %v", err)
			return
		}
	}

	w.Flush()

	if err := w.Error(); err != nil {
		logger.Infof("Error flushing CSV writer: %v", err)
	}
}

func weiString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}
