package handlers

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/safespacehub/plane-tracker-site/internal/fleet"
	"github.com/safespacehub/plane-tracker-site/internal/policy"
	"github.com/safespacehub/plane-tracker-site/internal/repository"
)

type AdminHandler struct {
	users   *repository.UserRepository
	devices *fleet.DeviceService
	gate    *policy.Gate
}

func NewAdminHandler(users *repository.UserRepository, devices *fleet.DeviceService, gate *policy.Gate) *AdminHandler {
	return &AdminHandler{users: users, devices: devices, gate: gate}
}

type ClaimDeviceRequest struct {
	UserID uint `json:"user_id" binding:"required,min=1"`
}

type UserListResponse struct {
	ID        uint   `json:"id"`
	Email     string `json:"email"`
	IsAdmin   bool   `json:"is_admin"`
	CreatedAt string `json:"created_at"`
}

// GET /api/v1/admin/users
func (h *AdminHandler) ListUsers(c *gin.Context) {
	ctx, actor, err := h.gate.Resolve(c.Request.Context())
	if err != nil {
		RespondError(c, err)
		return
	}
	if err := h.gate.Require(actor, policy.ListUsers); err != nil {
		RespondError(c, err)
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	perPage, _ := strconv.Atoi(c.DefaultQuery("per_page", "20"))

	if page < 1 {
		page = 1
	}
	if perPage < 1 || perPage > 100 {
		perPage = 20
	}

	users, total, err := h.users.List(ctx, perPage, (page-1)*perPage)
	if err != nil {
		RespondError(c, err)
		return
	}

	response := make([]UserListResponse, len(users))
	for i, u := range users {
		response[i] = UserListResponse{
			ID:        u.ID,
			Email:     u.Email,
			IsAdmin:   u.IsAdmin(),
			CreatedAt: u.CreatedAt.Format("2006-01-02 15:04:05"),
		}
	}

	SuccessWithMeta(c, response, &Meta{
		Page:    page,
		PerPage: perPage,
		Total:   total,
	})
}

// GET /api/v1/admin/devices
func (h *AdminHandler) ListDevices(c *gin.Context) {
	devices, err := h.devices.ListAll(c.Request.Context(), true)
	if err != nil {
		RespondError(c, err)
		return
	}
	SuccessWithMeta(c, toDeviceResponses(devices), &Meta{Total: int64(len(devices))})
}

// POST /api/v1/admin/devices/:token/claim
func (h *AdminHandler) Claim(c *gin.Context) {
	var req ClaimDeviceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}

	ctx, actor, err := h.gate.Resolve(c.Request.Context())
	if err != nil {
		RespondError(c, err)
		return
	}
	if err := h.gate.Require(actor, policy.ClaimDevice); err != nil {
		RespondError(c, err)
		return
	}

	// The target must be a real account
	if _, err := h.users.Get(ctx, req.UserID); err != nil {
		RespondError(c, err)
		return
	}

	device, err := h.devices.Claim(ctx, c.Param("token"), req.UserID)
	if err != nil {
		RespondError(c, err)
		return
	}
	Success(c, toDeviceResponse(*device))
}

// POST /api/v1/admin/devices/:token/release
func (h *AdminHandler) Release(c *gin.Context) {
	device, err := h.devices.Release(c.Request.Context(), c.Param("token"))
	if err != nil {
		RespondError(c, err)
		return
	}
	Success(c, toDeviceResponse(*device))
}
