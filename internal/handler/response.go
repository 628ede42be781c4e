package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"pollkeeper/internal/apperr"
)

type apiResponse struct {
	Code    int            `json:"code"`
	Message string         `json:"message"`
	Data    any            `json:"data,omitempty"`
	Meta    map[string]any `json:"meta,omitempty"`
}

func Ok(c *gin.Context, data any, meta map[string]any) {
	c.JSON(http.StatusOK, apiResponse{
		Code:    0,
		Message: "ok",
		Data:    data,
		Meta:    meta,
	})
}

func Error(c *gin.Context, status int, message string, meta map[string]any) {
	c.JSON(status, apiResponse{
		Code:    status,
		Message: message,
		Meta:    meta,
	})
}

// Fail maps a domain error to a status and puts its kind in meta so clients
// can branch without parsing the message.
func Fail(c *gin.Context, err error) {
	kind := apperr.KindOf(err)
	var meta map[string]any
	if kind != "" {
		meta = map[string]any{"kind": string(kind)}
	}
	Error(c, statusForKind(kind), err.Error(), meta)
}

func statusForKind(kind apperr.Kind) int {
	switch kind {
	case apperr.KindInvalidAmount, apperr.KindInvalidVoteCount, apperr.KindInvalidAddress:
		return http.StatusBadRequest
	case apperr.KindTokenNotSupportedOnChain, apperr.KindInsufficientBalance, apperr.KindCostOverflow,
		apperr.KindChainNotConfigured:
		return http.StatusUnprocessableEntity
	case apperr.KindLedgerUnavailable, apperr.KindIndexerUnavailable:
		return http.StatusServiceUnavailable
	case apperr.KindConvergenceTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusBadGateway
	}
}

func intQuery(c *gin.Context, key string, def int) int {
	if val := c.Query(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return def
}

func boolQueryDefault(c *gin.Context, key string, def bool) bool {
	if val := c.Query(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return def
}

func boolQueryPtr(c *gin.Context, key string) *bool {
	if val := c.Query(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			return &b
		}
	}
	return nil
}

func strQueryPtr(c *gin.Context, key string) *string {
	if val := strings.TrimSpace(c.Query(key)); val != "" {
		return &val
	}
	return nil
}

func uint64Param(c *gin.Context, key string) (uint64, bool) {
	v, err := strconv.ParseUint(strings.TrimSpace(c.Param(key)), 10, 64)
	return v, err == nil
}

func boolPtr(v bool) *bool { return &v }

func paginationMeta(limit, offset int, total int64) map[string]any {
	if limit <= 0 {
		limit = 0
	}
	if offset < 0 {
		offset = 0
	}
	hasNext := int64(offset+limit) < total
	return map[string]any{
		"limit":    limit,
		"offset":   offset,
		"total":    total,
		"has_next": hasNext,
	}
}

// chainQuery reads the required chain scope.
func chainQuery(c *gin.Context) (string, bool) {
	chain := strings.ToLower(strings.TrimSpace(c.Query("chain")))
	if chain == "" {
		Error(c, http.StatusBadRequest, "chain is required", nil)
		return "", false
	}
	return chain, true
}
