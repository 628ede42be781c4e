package handler

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/holiman/uint256"

	"pollkeeper/internal/poll"
	"pollkeeper/internal/quadratic"
	"pollkeeper/internal/service"
	"pollkeeper/internal/token"
)

type VotesHandler struct {
	Sync *service.PollSyncService
}

func (h *VotesHandler) Register(r *gin.Engine) {
	g := r.Group("/api/v1/votes")
	g.GET("/cost", h.cost)
	g.POST("/quote", h.quote)
}

type costResponse struct {
	VotesAlreadyOwned uint64   `json:"votes_already_owned"`
	VotesRequested    uint64   `json:"votes_requested"`
	TotalCost         string   `json:"total_cost"`
	Breakdown         []string `json:"breakdown,omitempty"`
}

// @Summary Quadratic cost of a vote batch
// @Description Cost in smallest units of the voting token: S(owned+requested) - S(owned).
// @Tags votes
// @Param owned query int false "votes already owned"
// @Param requested query int true "votes to buy"
// @Param breakdown query bool false "include the per-vote prices"
// @Success 200 {object} apiResponse
// @Failure 400 {object} apiResponse
// @Router /api/v1/votes/cost [get]
func (h *VotesHandler) cost(c *gin.Context) {
	owned, err1 := strconv.ParseUint(defaultStr(c.Query("owned"), "0"), 10, 64)
	requested, err2 := strconv.ParseUint(c.Query("requested"), 10, 64)
	if err1 != nil || err2 != nil {
		Error(c, http.StatusBadRequest, "owned and requested must be non-negative integers", nil)
		return
	}
	total, err := quadratic.QuoteCost(owned, requested)
	if err != nil {
		Fail(c, err)
		return
	}
	resp := costResponse{VotesAlreadyOwned: owned, VotesRequested: requested, TotalCost: total.Dec()}
	if boolQueryDefault(c, "breakdown", false) {
		steps, err := quadratic.QuoteIncrementalCosts(owned, requested)
		if err != nil {
			Fail(c, err)
			return
		}
		resp.Breakdown = decStrings(steps)
	}
	Ok(c, resp, nil)
}

type quoteRequest struct {
	Chain       string `json:"chain" binding:"required"`
	Creator     string `json:"creator" binding:"required"`
	PollID      uint64 `json:"poll_id"`
	OptionIndex int    `json:"option_index"`
	Owned       uint64 `json:"votes_already_owned"`
	Requested   uint64 `json:"votes_requested"`
	Breakdown   bool   `json:"breakdown"`
}

type quoteResponse struct {
	PollID            uint64           `json:"poll_id"`
	OptionIndex       int              `json:"option_index"`
	VotesAlreadyOwned uint64           `json:"votes_already_owned"`
	VotesRequested    uint64           `json:"votes_requested"`
	TotalCost         string           `json:"total_cost"`
	TotalCostDisplay  string           `json:"total_cost_display"`
	Token             token.Descriptor `json:"token"`
	Breakdown         []string         `json:"breakdown,omitempty"`
}

// @Summary Quote a vote purchase on a poll
// @Tags votes
// @Param body body quoteRequest true "quote request"
// @Success 200 {object} apiResponse
// @Failure 400 {object} apiResponse
// @Failure 404 {object} apiResponse
// @Router /api/v1/votes/quote [post]
func (h *VotesHandler) quote(c *gin.Context) {
	if h.Sync == nil {
		Error(c, http.StatusInternalServerError, "service unavailable", nil)
		return
	}
	var req quoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, "invalid body", nil)
		return
	}
	rec, err := findPoll(c.Request.Context(), h.Sync, req.Creator, req.Chain, req.PollID)
	if err != nil {
		failLookup(c, err)
		return
	}
	q, err := quadratic.Quote(rec, req.OptionIndex, req.Owned, req.Requested)
	if err != nil {
		Fail(c, err)
		return
	}
	resp := quoteResponse{
		PollID:            q.PollID,
		OptionIndex:       q.OptionIndex,
		VotesAlreadyOwned: q.VotesAlreadyOwned,
		VotesRequested:    q.VotesRequested,
		TotalCost:         q.TotalCost.Dec(),
		TotalCostDisplay:  token.FormatUnits(q.TotalCostBig(), rec.FundingToken.Decimals),
		Token:             rec.FundingToken,
	}
	if req.Breakdown {
		steps, err := quadratic.QuoteIncrementalCosts(req.Owned, req.Requested)
		if err != nil {
			Fail(c, err)
			return
		}
		resp.Breakdown = decStrings(steps)
	}
	Ok(c, resp, nil)
}

type pollNotFoundError struct {
	id uint64
}

func (e pollNotFoundError) Error() string { return fmt.Sprintf("poll %d not found", e.id) }

// findPoll resolves a poll from the creator's reconciled view.
func findPoll(ctx context.Context, sync *service.PollSyncService, creator, chain string, id uint64) (poll.Record, error) {
	res, _, err := sync.View(ctx, creator, chain, false)
	if err != nil {
		return poll.Record{}, err
	}
	rec, ok := res.Find(id)
	if !ok {
		return poll.Record{}, pollNotFoundError{id: id}
	}
	return rec, nil
}

func failLookup(c *gin.Context, err error) {
	if nf, ok := err.(pollNotFoundError); ok {
		Error(c, http.StatusNotFound, nf.Error(), nil)
		return
	}
	Fail(c, err)
}

func decStrings(items []*uint256.Int) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.Dec()
	}
	return out
}

func defaultStr(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
