package handler

import (
	"bufio"
	"context"
	"errors"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"pollkeeper/internal/repository"
	"pollkeeper/internal/service"
)

const streamPingInterval = 30 * time.Second

type ConvergenceHandler struct {
	Service  *service.ConvergenceService
	Hub      *service.EventHub
	Settings *service.SystemSettingsService
	Logger   *zap.Logger
	// OriginPatterns is passed to the websocket handshake; empty allows same-origin only.
	OriginPatterns []string
}

func (h *ConvergenceHandler) Register(r *gin.Engine) {
	g := r.Group("/api/v1/convergence")
	g.POST("", h.start)
	g.GET("", h.pending)
	g.GET("/history", h.history)
	g.GET("/stream", h.stream)
	g.DELETE("/:poll_id", h.cancel)
}

// @Summary Watch the indexer until a poll converges
// @Description Call after a state-changing transaction. The outcome is pushed on the stream.
// @Tags convergence
// @Param body body service.StartWatchRequest true "watch target"
// @Success 200 {object} apiResponse
// @Router /api/v1/convergence [post]
func (h *ConvergenceHandler) start(c *gin.Context) {
	if h.Service == nil {
		Error(c, http.StatusInternalServerError, "convergence unavailable", nil)
		return
	}
	var req service.StartWatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, "invalid body", nil)
		return
	}
	p, err := h.Service.Start(c.Request.Context(), req)
	if err != nil {
		Error(c, http.StatusServiceUnavailable, err.Error(), nil)
		return
	}
	Ok(c, p, nil)
}

// @Summary Live convergence watches
// @Tags convergence
// @Success 200 {object} apiResponse
// @Router /api/v1/convergence [get]
func (h *ConvergenceHandler) pending(c *gin.Context) {
	if h.Service == nil {
		Error(c, http.StatusInternalServerError, "convergence unavailable", nil)
		return
	}
	items := h.Service.Pending()
	Ok(c, items, map[string]any{"total": len(items)})
}

// @Summary Finished and pending watch records
// @Tags convergence
// @Param poll_id query int false "poll id"
// @Param outcome query string false "pending|converged|timeout|cancelled"
// @Param limit query int false "page size"
// @Param offset query int false "offset"
// @Success 200 {object} apiResponse
// @Router /api/v1/convergence/history [get]
func (h *ConvergenceHandler) history(c *gin.Context) {
	if h.Service == nil {
		Error(c, http.StatusInternalServerError, "convergence unavailable", nil)
		return
	}
	limit := intQuery(c, "limit", 50)
	offset := intQuery(c, "offset", 0)
	params := repository.ListConvergenceWatchesParams{
		Outcome: strQueryPtr(c, "outcome"),
		Limit:   limit,
		Offset:  offset,
	}
	if raw := strings.TrimSpace(c.Query("poll_id")); raw != "" {
		id, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			Error(c, http.StatusBadRequest, "invalid poll_id", nil)
			return
		}
		params.PollID = &id
	}
	items, err := h.Service.History(c.Request.Context(), params)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, items, paginationMeta(limit, offset, int64(len(items))))
}

// @Summary Cancel the watch on a poll
// @Tags convergence
// @Param poll_id path int true "poll id"
// @Param chain query string true "chain scope"
// @Success 200 {object} apiResponse
// @Failure 404 {object} apiResponse
// @Router /api/v1/convergence/{poll_id} [delete]
func (h *ConvergenceHandler) cancel(c *gin.Context) {
	if h.Service == nil {
		Error(c, http.StatusInternalServerError, "convergence unavailable", nil)
		return
	}
	id, ok := uint64Param(c, "poll_id")
	if !ok {
		Error(c, http.StatusBadRequest, "invalid poll_id", nil)
		return
	}
	chain, ok := chainQuery(c)
	if !ok {
		return
	}
	if !h.Service.Cancel(c.Request.Context(), chain, id) {
		Error(c, http.StatusNotFound, "no live watch for poll", nil)
		return
	}
	Ok(c, map[string]any{"poll_id": id, "chain": chain, "cancelled": true}, nil)
}

// @Summary Convergence event stream
// @Description Websocket. Each message is a JSON convergence event.
// @Tags convergence
// @Router /api/v1/convergence/stream [get]
func (h *ConvergenceHandler) stream(c *gin.Context) {
	if h.Hub == nil {
		Error(c, http.StatusInternalServerError, "stream unavailable", nil)
		return
	}
	if !h.Settings.IsEnabled(c.Request.Context(), service.FeatureConvergenceStream, true) {
		Error(c, http.StatusServiceUnavailable, "convergence stream disabled", nil)
		return
	}
	conn, err := websocket.Accept(newUpgradeWriter(c.Writer), c.Request, &websocket.AcceptOptions{OriginPatterns: h.OriginPatterns})
	if err != nil {
		if h.Logger != nil {
			h.Logger.Debug("websocket accept failed", zap.Error(err))
		}
		return
	}
	defer conn.CloseNow()

	events, unsubscribe := h.Hub.Subscribe(32)
	defer unsubscribe()

	// Inbound messages are ignored; CloseRead cancels ctx when the peer goes away.
	ctx := conn.CloseRead(c.Request.Context())
	err = pump(ctx, conn, events)
	switch {
	case err == nil, errors.Is(err, context.Canceled):
		_ = conn.Close(websocket.StatusNormalClosure, "")
	case websocket.CloseStatus(err) != -1:
	default:
		if h.Logger != nil {
			h.Logger.Debug("convergence stream closed", zap.Error(err))
		}
		_ = conn.Close(websocket.StatusInternalError, "stream error")
	}
}

// upgradeWriter hides gin's WriteHeaderNow from the websocket handshake.
// Flushing the 101 through gin marks the response as written, and gin then
// refuses to hijack. The status goes to the underlying writer instead, and
// net/http sends it when the connection is hijacked through gin.
type upgradeWriter struct {
	gw  gin.ResponseWriter
	raw http.ResponseWriter
}

func newUpgradeWriter(gw gin.ResponseWriter) *upgradeWriter {
	u := &upgradeWriter{gw: gw, raw: gw}
	if uw, ok := gw.(interface{ Unwrap() http.ResponseWriter }); ok {
		u.raw = uw.Unwrap()
	}
	return u
}

func (u *upgradeWriter) Header() http.Header { return u.gw.Header() }

func (u *upgradeWriter) Write(b []byte) (int, error) { return u.gw.Write(b) }

func (u *upgradeWriter) WriteHeader(code int) {
	// keep gin's recorded status in sync for the access log
	u.gw.WriteHeader(code)
	if code == http.StatusSwitchingProtocols && u.raw != http.ResponseWriter(u.gw) {
		u.raw.WriteHeader(code)
	}
}

func (u *upgradeWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	return u.gw.Hijack()
}

func pump(ctx context.Context, conn *websocket.Conn, events <-chan service.ConvergenceEvent) error {
	ticker := time.NewTicker(streamPingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			wctx, cancel := context.WithTimeout(ctx, 5*time.Second)
			err := wsjson.Write(wctx, conn, ev)
			cancel()
			if err != nil {
				return err
			}
		case <-ticker.C:
			pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
			err := conn.Ping(pctx)
			cancel()
			if err != nil {
				return err
			}
		}
	}
}
