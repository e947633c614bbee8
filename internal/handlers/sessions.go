package handlers

import (
	"bytes"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/safespacehub/plane-tracker-site/internal/fleet"
	"github.com/safespacehub/plane-tracker-site/internal/metrics"
	"github.com/safespacehub/plane-tracker-site/internal/models"
	"github.com/safespacehub/plane-tracker-site/internal/report"
)

const maxListLimit = 500

type SessionHandler struct {
	sessions *fleet.SessionService
}

func NewSessionHandler(sessions *fleet.SessionService) *SessionHandler {
	return &SessionHandler{sessions: sessions}
}

// sessionQuery reads ?device=, ?status=, ?scope=all and ?limit= from the URL.
func sessionQuery(c *gin.Context, defaultLimit int) (fleet.SessionQuery, bool) {
	q := fleet.SessionQuery{
		Filter: report.Filter{
			DeviceToken: c.Query("device"),
			Status:      models.SessionStatus(c.Query("status")),
		},
		AllDevices: c.Query("scope") == "all",
		Limit:      defaultLimit,
	}

	if raw := c.Query("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 1 || limit > maxListLimit {
			BadRequest(c, "limit must be between 1 and "+strconv.Itoa(maxListLimit))
			return q, false
		}
		q.Limit = limit
	}
	return q, true
}

// GET /api/v1/sessions
func (h *SessionHandler) List(c *gin.Context) {
	q, ok := sessionQuery(c, 100)
	if !ok {
		return
	}

	rows, err := h.sessions.List(c.Request.Context(), q)
	if err != nil {
		RespondError(c, err)
		return
	}
	SuccessWithMeta(c, rows, &Meta{Total: int64(len(rows))})
}

// POST /api/v1/sessions/:id/close
func (h *SessionHandler) Close(c *gin.Context) {
	id, ok := parseID(c, "id", "session")
	if !ok {
		return
	}

	session, err := h.sessions.Close(c.Request.Context(), id)
	if err != nil {
		RespondError(c, err)
		return
	}
	Success(c, session)
}

// GET /api/v1/stats/dashboard
func (h *SessionHandler) Dashboard(c *gin.Context) {
	q, ok := sessionQuery(c, 0)
	if !ok {
		return
	}

	dashboard, err := h.sessions.Dashboard(c.Request.Context(), q)
	if err != nil {
		RespondError(c, err)
		return
	}
	Success(c, dashboard)
}

// GET /api/v1/export/sessions.csv
func (h *SessionHandler) Export(c *gin.Context) {
	q, ok := sessionQuery(c, 0)
	if !ok {
		return
	}

	// Buffer so a failure can still be reported as JSON
	var buf bytes.Buffer
	rows, err := h.sessions.Export(c.Request.Context(), q, &buf)
	if err != nil {
		RespondError(c, err)
		return
	}
	metrics.RecordExport(rows)

	c.Header("Content-Disposition", `attachment; filename="`+h.sessions.ExportFileName()+`"`)
	c.Data(http.StatusOK, "text/csv; charset=utf-8", buf.Bytes())
}
