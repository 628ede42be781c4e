package handler

import (
	"math/big"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"pollkeeper/internal/funding"
	"pollkeeper/internal/service"
	"pollkeeper/internal/token"
)

type FundingHandler struct {
	Orchestrator *funding.Orchestrator
	Sync         *service.PollSyncService
	Logger       *zap.Logger
}

func (h *FundingHandler) Register(r *gin.Engine) {
	g := r.Group("/api/v1/funding")
	g.POST("/plan", h.planFunding)
	g.POST("/votes", h.planVotes)
	g.GET("/max", h.maxFundable)
}

type intentView struct {
	PollID                uint64           `json:"poll_id"`
	Chain                 string           `json:"chain"`
	Owner                 string           `json:"owner"`
	Spender               string           `json:"spender"`
	Token                 token.Descriptor `json:"token"`
	Purpose               funding.Purpose  `json:"purpose"`
	Amount                string           `json:"amount"`
	RequestedUnits        string           `json:"requested_units"`
	CurrentBalance        string           `json:"current_balance"`
	CurrentAllowance      *string          `json:"current_allowance,omitempty"`
	RequiresAuthorization bool             `json:"requires_authorization"`
	OptionIndex           int              `json:"option_index,omitempty"`
	Votes                 uint64           `json:"votes,omitempty"`
}

type stepView struct {
	Kind          funding.StepKind `json:"kind"`
	Token         string           `json:"token"`
	Spender       string           `json:"spender"`
	Amount        string           `json:"amount"`
	AmountDisplay string           `json:"amount_display"`
}

type planView struct {
	Kind  funding.PlanKind `json:"kind"`
	Steps []stepView       `json:"steps"`
}

type fundingResponse struct {
	Intent intentView `json:"intent"`
	Plan   planView   `json:"plan"`
}

func newIntentView(in funding.Intent) intentView {
	v := intentView{
		PollID:                in.PollID,
		Chain:                 in.Chain,
		Owner:                 in.Owner,
		Spender:               in.Spender,
		Token:                 in.Token,
		Purpose:               in.Purpose,
		Amount:                in.Amount,
		RequestedUnits:        unitsString(in.RequestedUnits),
		CurrentBalance:        unitsString(in.CurrentBalance),
		RequiresAuthorization: in.RequiresAuthorization,
		OptionIndex:           in.OptionIndex,
		Votes:                 in.Votes,
	}
	if v.Amount == "" {
		v.Amount = token.FormatUnits(in.RequestedUnits, in.Token.Decimals)
	}
	if in.CurrentAllowance != nil {
		s := in.CurrentAllowance.String()
		v.CurrentAllowance = &s
	}
	return v
}

func newPlanView(p funding.Plan) planView {
	out := planView{Kind: p.Kind, Steps: make([]stepView, 0, len(p.Steps))}
	for _, st := range p.Steps {
		out.Steps = append(out.Steps, stepView{
			Kind:          st.Kind,
			Token:         st.Token.Symbol,
			Spender:       st.Spender,
			Amount:        unitsString(st.Amount),
			AmountDisplay: token.FormatUnits(st.Amount, st.Token.Decimals),
		})
	}
	return out
}

func unitsString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

type planFundingRequest struct {
	Chain  string `json:"chain" binding:"required"`
	Owner  string `json:"owner" binding:"required"`
	PollID uint64 `json:"poll_id"`
	Token  string `json:"token" binding:"required"`
	Amount string `json:"amount" binding:"required"`
}

// @Summary Plan a poll funding flow
// @Description Reads balance and allowance, then returns the ordered steps (authorize, transfer).
// @Tags funding
// @Param body body planFundingRequest true "funding request"
// @Success 200 {object} apiResponse
// @Failure 400 {object} apiResponse
// @Failure 422 {object} apiResponse
// @Router /api/v1/funding/plan [post]
func (h *FundingHandler) planFunding(c *gin.Context) {
	if h.Orchestrator == nil {
		Error(c, http.StatusInternalServerError, "funding unavailable", nil)
		return
	}
	var req planFundingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, "invalid body", nil)
		return
	}
	chain := strings.ToLower(strings.TrimSpace(req.Chain))
	in, err := h.Orchestrator.PrepareFunding(c.Request.Context(), chain, req.Owner, req.PollID, req.Token, req.Amount)
	if err != nil {
		h.logWarn("prepare funding failed", err, req.PollID)
		Fail(c, err)
		return
	}
	h.respondPlan(c, in)
}

type planVotesRequest struct {
	Chain       string `json:"chain" binding:"required"`
	Creator     string `json:"creator" binding:"required"`
	Owner       string `json:"owner" binding:"required"`
	PollID      uint64 `json:"poll_id"`
	OptionIndex int    `json:"option_index"`
	Owned       uint64 `json:"votes_already_owned"`
	Requested   uint64 `json:"votes_requested"`
}

// @Summary Plan a quadratic vote purchase
// @Tags funding
// @Param body body planVotesRequest true "vote purchase request"
// @Success 200 {object} apiResponse
// @Failure 404 {object} apiResponse
// @Failure 422 {object} apiResponse
// @Router /api/v1/funding/votes [post]
func (h *FundingHandler) planVotes(c *gin.Context) {
	if h.Orchestrator == nil || h.Sync == nil {
		Error(c, http.StatusInternalServerError, "funding unavailable", nil)
		return
	}
	var req planVotesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, "invalid body", nil)
		return
	}
	chain := strings.ToLower(strings.TrimSpace(req.Chain))
	rec, err := findPoll(c.Request.Context(), h.Sync, req.Creator, chain, req.PollID)
	if err != nil {
		failLookup(c, err)
		return
	}
	in, _, err := h.Orchestrator.PrepareVotePurchase(c.Request.Context(), chain, req.Owner, rec, req.OptionIndex, req.Owned, req.Requested)
	if err != nil {
		h.logWarn("prepare vote purchase failed", err, req.PollID)
		Fail(c, err)
		return
	}
	h.respondPlan(c, in)
}

func (h *FundingHandler) respondPlan(c *gin.Context, in funding.Intent) {
	plan, err := funding.PlanFundingFlow(in)
	if err != nil {
		Fail(c, err)
		return
	}
	Ok(c, fundingResponse{Intent: newIntentView(in), Plan: newPlanView(plan)}, nil)
}

// @Summary Largest amount a wallet can commit
// @Description Native assets keep the configured gas reserve back.
// @Tags funding
// @Param chain query string true "chain scope"
// @Param owner query string true "wallet address"
// @Param token query string true "token symbol"
// @Success 200 {object} apiResponse
// @Router /api/v1/funding/max [get]
func (h *FundingHandler) maxFundable(c *gin.Context) {
	if h.Orchestrator == nil {
		Error(c, http.StatusInternalServerError, "funding unavailable", nil)
		return
	}
	chain, ok := chainQuery(c)
	if !ok {
		return
	}
	owner := strings.TrimSpace(c.Query("owner"))
	symbol := strings.TrimSpace(c.Query("token"))
	if owner == "" || symbol == "" {
		Error(c, http.StatusBadRequest, "owner and token are required", nil)
		return
	}
	amt, err := h.Orchestrator.MaxFundable(c.Request.Context(), chain, owner, symbol)
	if err != nil {
		Fail(c, err)
		return
	}
	Ok(c, map[string]any{
		"chain":    chain,
		"owner":    strings.ToLower(owner),
		"token":    strings.ToUpper(symbol),
		"units":    unitsString(amt.Units),
		"decimals": amt.Decimals,
		"amount":   amt.String(),
	}, nil)
}

func (h *FundingHandler) logWarn(msg string, err error, pollID uint64) {
	if h.Logger == nil {
		return
	}
	h.Logger.Warn(msg, zap.Uint64("poll_id", pollID), zap.Error(err))
}
