package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"pollkeeper/internal/repository"
	"pollkeeper/internal/service"
)

type PollsHandler struct {
	Sync   *service.PollSyncService
	Logger *zap.Logger
}

func (h *PollsHandler) Register(r *gin.Engine) {
	g := r.Group("/api/v1/creators/:creator")
	g.GET("/polls", h.listPolls)
	g.POST("/sync", h.sync)
	g.GET("/pending", h.pending)
	g.GET("/snapshots", h.snapshots)
	r.GET("/api/v1/sync-states", h.syncStates)
}

// @Summary Reconciled polls of a creator
// @Description Merges indexer and ledger reads. Served from cache unless fresh=true.
// @Tags polls
// @Param creator path string true "creator address"
// @Param chain query string true "chain scope"
// @Param fresh query bool false "bypass the result cache"
// @Success 200 {object} apiResponse
// @Failure 503 {object} apiResponse
// @Router /api/v1/creators/{creator}/polls [get]
func (h *PollsHandler) listPolls(c *gin.Context) {
	if h.Sync == nil {
		Error(c, http.StatusInternalServerError, "service unavailable", nil)
		return
	}
	chain, ok := chainQuery(c)
	if !ok {
		return
	}
	creator := strings.TrimSpace(c.Param("creator"))
	res, cached, err := h.Sync.View(c.Request.Context(), creator, chain, boolQueryDefault(c, "fresh", false))
	if err != nil {
		h.logWarn("reconcile failed", err, creator, chain)
		Fail(c, err)
		return
	}
	meta := map[string]any{
		"cached":              cached,
		"is_indexer_degraded": res.Degraded,
		"total":               len(res.Records),
	}
	if res.IndexerErr != nil {
		meta["indexer_error"] = res.IndexerErr.Error()
	}
	Ok(c, res, meta)
}

// @Summary Run a reconcile cycle now
// @Tags polls
// @Param creator path string true "creator address"
// @Param chain query string true "chain scope"
// @Success 200 {object} apiResponse
// @Router /api/v1/creators/{creator}/sync [post]
func (h *PollsHandler) sync(c *gin.Context) {
	if h.Sync == nil {
		Error(c, http.StatusInternalServerError, "service unavailable", nil)
		return
	}
	chain, ok := chainQuery(c)
	if !ok {
		return
	}
	creator := strings.TrimSpace(c.Param("creator"))
	out, err := h.Sync.Sync(c.Request.Context(), creator, chain)
	if err != nil {
		h.logWarn("manual sync failed", err, creator, chain)
		Fail(c, err)
		return
	}
	Ok(c, out, nil)
}

// @Summary Polls awaiting creator action
// @Tags polls
// @Param creator path string true "creator address"
// @Param chain query string true "chain scope"
// @Success 200 {object} apiResponse
// @Router /api/v1/creators/{creator}/pending [get]
func (h *PollsHandler) pending(c *gin.Context) {
	if h.Sync == nil {
		Error(c, http.StatusInternalServerError, "service unavailable", nil)
		return
	}
	chain, ok := chainQuery(c)
	if !ok {
		return
	}
	creator := strings.TrimSpace(c.Param("creator"))
	summary, err := h.Sync.Pending(c.Request.Context(), creator, chain)
	if err != nil {
		Fail(c, err)
		return
	}
	Ok(c, summary, nil)
}

// @Summary Persisted poll snapshots
// @Tags polls
// @Param creator path string true "creator address"
// @Param chain query string false "chain scope"
// @Param requires_action query bool false "only polls awaiting action"
// @Param limit query int false "page size"
// @Param offset query int false "offset"
// @Param order_by query string false "poll_id|end_time|reconciled_at"
// @Param asc query bool false "ascending"
// @Success 200 {object} apiResponse
// @Router /api/v1/creators/{creator}/snapshots [get]
func (h *PollsHandler) snapshots(c *gin.Context) {
	if h.Sync == nil {
		Error(c, http.StatusInternalServerError, "service unavailable", nil)
		return
	}
	limit := intQuery(c, "limit", 50)
	offset := intQuery(c, "offset", 0)
	params := repository.ListPollSnapshotsParams{
		Chain:          strings.ToLower(strings.TrimSpace(c.Query("chain"))),
		Creator:        strings.ToLower(strings.TrimSpace(c.Param("creator"))),
		RequiresAction: boolQueryPtr(c, "requires_action"),
		Limit:          limit,
		Offset:         offset,
		OrderBy:        strings.TrimSpace(c.Query("order_by")),
		Asc:            boolQueryPtr(c, "asc"),
	}
	items, total, err := h.Sync.Snapshots(c.Request.Context(), params)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, items, paginationMeta(limit, offset, total))
}

// @Summary Reconcile bookkeeping per creator scope
// @Tags polls
// @Success 200 {object} apiResponse
// @Router /api/v1/sync-states [get]
func (h *PollsHandler) syncStates(c *gin.Context) {
	if h.Sync == nil {
		Error(c, http.StatusInternalServerError, "service unavailable", nil)
		return
	}
	items, err := h.Sync.SyncStates(c.Request.Context())
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, items, nil)
}

func (h *PollsHandler) logWarn(msg string, err error, creator, chain string) {
	if h.Logger == nil {
		return
	}
	h.Logger.Warn(msg, zap.String("creator", creator), zap.String("chain", chain), zap.Error(err))
}
