package handlers

import (
	"errors"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/safespacehub/plane-tracker-site/internal/apperrors"
	"github.com/safespacehub/plane-tracker-site/internal/middleware"
	"github.com/safespacehub/plane-tracker-site/internal/models"
	"github.com/safespacehub/plane-tracker-site/internal/policy"
	"github.com/safespacehub/plane-tracker-site/internal/repository"
)

type AuthHandler struct {
	users   *repository.UserRepository
	jwtAuth *middleware.JWTAuth
	gate    *policy.Gate
}

func NewAuthHandler(users *repository.UserRepository, jwtAuth *middleware.JWTAuth, gate *policy.Gate) *AuthHandler {
	return &AuthHandler{
		users:   users,
		jwtAuth: jwtAuth,
		gate:    gate,
	}
}

type RegisterRequest struct {
	Email    string `json:"email" binding:"required,email,max=120"`
	Password string `json:"password" binding:"required,min=6"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type AuthResponse struct {
	Token string       `json:"token"`
	User  UserResponse `json:"user"`
}

type UserResponse struct {
	ID      uint   `json:"id"`
	Email   string `json:"email"`
	IsAdmin bool   `json:"is_admin"`
}

// POST /api/v1/auth/register
func (h *AuthHandler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}

	user := models.User{Email: strings.ToLower(strings.TrimSpace(req.Email))}
	if err := user.SetPassword(req.Password); err != nil {
		InternalError(c, "Failed to process password")
		return
	}

	// The first account becomes the administrator
	if err := h.users.Create(c.Request.Context(), &user); err != nil {
		RespondError(c, err)
		return
	}

	token, err := h.jwtAuth.GenerateToken(user.ID, user.Email)
	if err != nil {
		InternalError(c, "Failed to generate token")
		return
	}

	Created(c, AuthResponse{
		Token: token,
		User:  UserResponse{ID: user.ID, Email: user.Email, IsAdmin: user.IsAdmin()},
	})
}

// POST /api/v1/auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}

	user, err := h.users.GetByEmail(c.Request.Context(), strings.ToLower(strings.TrimSpace(req.Email)))
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			Unauthorized(c, "Invalid email or password")
			return
		}
		RespondError(c, err)
		return
	}

	if !user.CheckPassword(req.Password) {
		Unauthorized(c, "Invalid email or password")
		return
	}

	token, err := h.jwtAuth.GenerateToken(user.ID, user.Email)
	if err != nil {
		InternalError(c, "Failed to generate token")
		return
	}

	Success(c, AuthResponse{
		Token: token,
		User:  UserResponse{ID: user.ID, Email: user.Email, IsAdmin: user.IsAdmin()},
	})
}

// GET /api/v1/auth/me
func (h *AuthHandler) Me(c *gin.Context) {
	_, actor, err := h.gate.Resolve(c.Request.Context())
	if err != nil {
		RespondError(c, err)
		return
	}

	Success(c, UserResponse{
		ID:      actor.UserID,
		Email:   actor.Email,
		IsAdmin: actor.Admin,
	})
}
