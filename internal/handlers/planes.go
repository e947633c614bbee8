package handlers

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/safespacehub/plane-tracker-site/internal/fleet"
)

type PlaneHandler struct {
	planes *fleet.PlaneService
}

func NewPlaneHandler(planes *fleet.PlaneService) *PlaneHandler {
	return &PlaneHandler{planes: planes}
}

// GET /api/v1/planes
func (h *PlaneHandler) List(c *gin.Context) {
	planes, err := h.planes.List(c.Request.Context(), c.Query("scope") == "all")
	if err != nil {
		RespondError(c, err)
		return
	}
	SuccessWithMeta(c, planes, &Meta{Total: int64(len(planes))})
}

// POST /api/v1/planes
func (h *PlaneHandler) Create(c *gin.Context) {
	var req fleet.PlaneInput
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}

	plane, err := h.planes.Create(c.Request.Context(), req)
	if err != nil {
		RespondError(c, err)
		return
	}
	Created(c, plane)
}

// GET /api/v1/planes/:id
func (h *PlaneHandler) Get(c *gin.Context) {
	id, ok := parseID(c, "id", "plane")
	if !ok {
		return
	}

	plane, err := h.planes.Get(c.Request.Context(), id)
	if err != nil {
		RespondError(c, err)
		return
	}
	Success(c, plane)
}

// PUT /api/v1/planes/:id
func (h *PlaneHandler) Update(c *gin.Context) {
	id, ok := parseID(c, "id", "plane")
	if !ok {
		return
	}

	var req fleet.PlaneInput
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}

	plane, err := h.planes.Update(c.Request.Context(), id, req)
	if err != nil {
		RespondError(c, err)
		return
	}
	Success(c, plane)
}

// DELETE /api/v1/planes/:id
func (h *PlaneHandler) Delete(c *gin.Context) {
	id, ok := parseID(c, "id", "plane")
	if !ok {
		return
	}

	unassigned, err := h.planes.Delete(c.Request.Context(), id)
	if err != nil {
		RespondError(c, err)
		return
	}
	Success(c, gin.H{"deleted": id, "devices_unassigned": unassigned})
}

func parseID(c *gin.Context, param, what string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(param), 10, 32)
	if err != nil || id == 0 {
		BadRequest(c, "Invalid "+what+" ID")
		return 0, false
	}
	return uint(id), true
}
