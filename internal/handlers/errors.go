package handlers

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/gin-gonic/gin"
	"github.com/google/logger"

	"github.com/AlstonThomson/fhe-secret-lottery-upload/internal/chain"
	"github.com/AlstonThomson/fhe-secret-lottery-upload/internal/services"
)

// errorResponse is the body of every failed request.
type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

var kindStatus = map[string]int{
	"Unauthorized":       http.StatusForbidden,
	"NotFound":           http.StatusNotFound,
	"InvalidRange":       http.StatusBadRequest,
	"BetTooLow":          http.StatusBadRequest,
	"BetTooHigh":         http.StatusBadRequest,
	"InvalidReveal":      http.StatusBadRequest,
	"AlreadyRevealed":    http.StatusConflict,
	"RoundNotOpen":       http.StatusConflict,
	"NoTicketsSold":      http.StatusConflict,
	"ReentrantCall":      http.StatusConflict,
	"NothingToWithdraw":  http.StatusConflict,
	"AlreadyInitialized": http.StatusConflict,
	"TransferFailed":     http.StatusUnprocessableEntity,
	"NotInitialized":     http.StatusServiceUnavailable,
}

// classify maps err to an HTTP status and an error kind.
func classify(err error) (int, string) {
	if kind := services.Kind(err); kind != "" {
		if status, ok := kindStatus[kind]; ok {
			return status, kind
		}
		return http.StatusBadRequest, kind
	}
	switch {
	case errors.Is(err, chain.ErrInsufficientFunds):
		return http.StatusPaymentRequired, "InsufficientFunds"
	case errors.Is(err, chain.ErrNegativeValue):
		return http.StatusBadRequest, "InvalidValue"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "Timeout"
	case errors.Is(err, context.Canceled):
		return http.StatusServiceUnavailable, "Canceled"
	}
	return http.StatusInternalServerError, "Internal"
}

func abortWithError(c *gin.Context, err error) {
	status, kind := classify(err)
	if status == http.StatusInternalServerError {
		logger.Errorf("%s %s: %v", c.Request.Method, c.FullPath(), err)
	}
	c.AbortWithStatusJSON(status, errorResponse{Error: kind, Message: err.Error()})
}

func abortBadRequest(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, errorResponse{Error: "BadRequest", Message: msg})
}

func bindJSON(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		abortBadRequest(c, fmt.Sprintf("invalid request body: %v", err))
		return false
	}
	return true
}

func uintParam(c *gin.Context, name string) (uint64, bool) {
	v, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil {
		abortBadRequest(c, fmt.Sprintf("%s: invalid id %q", name, c.Param(name)))
		return 0, false
	}
	return v, true
}

func addressParam(c *gin.Context, name string) (common.Address, bool) {
	raw := c.Param(name)
	if !common.IsHexAddress(raw) {
		abortBadRequest(c, fmt.Sprintf("%s: invalid address %q", name, raw))
		return common.Address{}, false
	}
	return common.HexToAddress(raw), true
}

// parseHash accepts exactly 32 bytes of 0x-prefixed hex.
func parseHash(c *gin.Context, field, raw string) (common.Hash, bool) {
	b, err := hexutil.Decode(raw)
	if err != nil || len(b) != common.HashLength {
		abortBadRequest(c, fmt.Sprintf("%s: want 0x-prefixed 32-byte hex", field))
		return common.Hash{}, false
	}
	return common.BytesToHash(b), true
}

// parseWei accepts a non-negative base-10 integer amount of wei.
func parseWei(c *gin.Context, field, raw string) (*big.Int, bool) {
	v, ok := new(big.Int).SetString(raw, 10)
	if !ok || v.Sign() < 0 {
		abortBadRequest(c, fmt.Sprintf("%s: want a non-negative integer amount of wei", field))
		return nil, false
	}
	return v, true
}
