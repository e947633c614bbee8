package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/safespacehub/plane-tracker-site/internal/fleet"
	"github.com/safespacehub/plane-tracker-site/internal/metrics"
)

// TelemetryHandler accepts session reports from devices. A device proves
// itself with its token; unknown tokens become orphan devices.
type TelemetryHandler struct {
	ledger *fleet.Ledger
}

func NewTelemetryHandler(ledger *fleet.Ledger) *TelemetryHandler {
	return &TelemetryHandler{ledger: ledger}
}

// POST /api/v1/telemetry
func (h *TelemetryHandler) Ingest(c *gin.Context) {
	var req fleet.Report
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}

	if token := c.GetHeader("X-Device-Token"); token != "" && token != req.DeviceToken {
		BadRequest(c, "X-Device-Token does not match device_token")
		return
	}

	result, err := h.ledger.Record(c.Request.Context(), req)
	if err != nil {
		metrics.RecordReport("rejected", false)
		RespondError(c, err)
		return
	}
	metrics.RecordReport(string(result.Outcome), result.DeviceCreated)

	if result.Outcome == fleet.OutcomeCreated {
		Created(c, result)
		return
	}
	Success(c, result)
}
