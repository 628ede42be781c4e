package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// RegisterDocs serves a short route overview next to the swagger UI.
func RegisterDocs(r *gin.Engine) {
	r.GET("/docs", func(c *gin.Context) {
		c.Header("Content-Type", "text/markdown; charset=utf-8")
		c.String(http.StatusOK, `# pollkeeper

Reconciled poll views, vote pricing and funding plans for poll creators.

## Auth

When server.auth_token is set, /api/* and /swagger require
"Authorization: Bearer <token>". Health and metrics stay open.

## Routes

- GET /healthz
- GET /readyz
- GET /metrics
- GET /swagger/index.html
- GET /api/v1/creators/{creator}/polls?chain=
- POST /api/v1/creators/{creator}/sync?chain=
- GET /api/v1/creators/{creator}/pending?chain=
- GET /api/v1/creators/{creator}/snapshots
- GET /api/v1/sync-states
- GET /api/v1/votes/cost?owned=&requested=
- POST /api/v1/votes/quote
- POST /api/v1/funding/plan
- POST /api/v1/funding/votes
- GET /api/v1/funding/max?chain=&owner=&token=
- POST /api/v1/convergence
- GET /api/v1/convergence
- GET /api/v1/convergence/history
- DELETE /api/v1/convergence/{poll_id}?chain=
- GET /api/v1/convergence/stream (websocket)
- GET /api/v1/settings
- GET /api/v1/settings/switches
- PUT /api/v1/settings/switches/{name}
`)
	})
}
