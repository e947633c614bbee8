package handlers

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/safespacehub/plane-tracker-site/internal/fleet"
	"github.com/safespacehub/plane-tracker-site/internal/models"
)

type DeviceHandler struct {
	devices *fleet.DeviceService
}

func NewDeviceHandler(devices *fleet.DeviceService) *DeviceHandler {
	return &DeviceHandler{devices: devices}
}

type UpdateDeviceRequest struct {
	Name       *string `json:"name" binding:"omitempty,max=100"`
	PlaneID    *uint   `json:"plane_id" binding:"omitempty,min=1"`
	ClearPlane bool    `json:"clear_plane"`
}

type DeviceResponse struct {
	Token      string             `json:"token"`
	Name       string             `json:"name"`
	State      models.DeviceState `json:"state"`
	OwnerID    *uint              `json:"owner_id,omitempty"`
	PlaneID    *uint              `json:"plane_id,omitempty"`
	TailNumber string             `json:"tail_number,omitempty"`
	LastSeenAt *time.Time         `json:"last_seen_at,omitempty"`
	CreatedAt  string             `json:"created_at"`
}

func toDeviceResponse(d models.Device) DeviceResponse {
	name, ok := d.DisplayName()
	if !ok {
		name = models.ShortToken(d.Token)
	}
	resp := DeviceResponse{
		Token:      d.Token,
		Name:       name,
		State:      d.State(),
		OwnerID:    d.OwnerID,
		PlaneID:    d.PlaneID,
		LastSeenAt: d.LastSeenAt,
		CreatedAt:  d.CreatedAt.Format("2006-01-02 15:04:05"),
	}
	if d.Plane != nil {
		resp.TailNumber = d.Plane.TailNumber
	}
	return resp
}

func toDeviceResponses(devices []models.Device) []DeviceResponse {
	response := make([]DeviceResponse, len(devices))
	for i, d := range devices {
		response[i] = toDeviceResponse(d)
	}
	return response
}

// GET /api/v1/devices
func (h *DeviceHandler) List(c *gin.Context) {
	devices, err := h.devices.List(c.Request.Context(), c.DefaultQuery("include_plane", "true") == "true")
	if err != nil {
		RespondError(c, err)
		return
	}
	SuccessWithMeta(c, toDeviceResponses(devices), &Meta{Total: int64(len(devices))})
}

// GET /api/v1/devices/:token
func (h *DeviceHandler) Get(c *gin.Context) {
	device, err := h.devices.Get(c.Request.Context(), c.Param("token"))
	if err != nil {
		RespondError(c, err)
		return
	}
	Success(c, toDeviceResponse(*device))
}

// PATCH /api/v1/devices/:token
func (h *DeviceHandler) Update(c *gin.Context) {
	var req UpdateDeviceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}
	if req.PlaneID != nil && req.ClearPlane {
		BadRequest(c, "plane_id and clear_plane are mutually exclusive")
		return
	}

	device, err := h.devices.Update(c.Request.Context(), c.Param("token"), fleet.DeviceUpdate{
		Name:       req.Name,
		PlaneID:    req.PlaneID,
		ClearPlane: req.ClearPlane,
	})
	if err != nil {
		RespondError(c, err)
		return
	}
	Success(c, toDeviceResponse(*device))
}

// DELETE /api/v1/devices/:token
func (h *DeviceHandler) Delete(c *gin.Context) {
	if err := h.devices.Delete(c.Request.Context(), c.Param("token")); err != nil {
		RespondError(c, err)
		return
	}
	NoContent(c)
}
