package auth

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/courseloop/authgate/internal/middleware"
	"github.com/courseloop/authgate/internal/session"
	"github.com/courseloop/authgate/pkg/apperrors"
	"github.com/courseloop/authgate/pkg/response"
	"github.com/gin-gonic/gin"
)

// Handler handles authentication HTTP requests
type Handler struct {
	service *Service
	cookies session.CookiePolicy
}

// NewHandler creates a new authentication handler
func NewHandler(service *Service, cookies session.CookiePolicy) *Handler {
	return &Handler{service: service, cookies: cookies}
}

// Login handles email/password login
// POST /auth/login
func (h *Handler) Login(c *gin.Context) {
	start := time.Now()

	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, err.Error())
		return
	}

	result, err := h.service.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, apperrors.ErrRateLimited):
			middleware.RecordLoginAttempt("email", "blocked", time.Since(start))
			middleware.RecordRateLimitHit()
		case errors.Is(err, apperrors.ErrInvalidCredentials):
			middleware.RecordLoginAttempt("email", "failure", time.Since(start))
		}
		response.Error(c, err)
		return
	}

	middleware.RecordLoginAttempt("email", "success", time.Since(start))

	h.cookies.Write(c.Writer, result.Token, h.service.TokenTTL())
	response.Success(c, http.StatusOK, result)
}

// Register handles account creation
// POST /auth/register
func (h *Handler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, err.Error())
		return
	}

	result, err := h.service.Register(c.Request.Context(), &req)
	if err != nil {
		response.Error(c, err)
		return
	}

	h.cookies.Write(c.Writer, result.Token, h.service.TokenTTL())
	response.Success(c, http.StatusCreated, result)
}

// Refresh exchanges the current token for a fresh one
// POST /auth/refresh
func (h *Handler) Refresh(c *gin.Context) {
	tok := tokenFromRequest(c)
	if tok == "" {
		response.Error(c, apperrors.ErrUnauthenticated)
		return
	}

	result, err := h.service.Refresh(c.Request.Context(), tok)
	if err != nil {
		// A failed refresh terminates the session; never leave the
		// stale cookie behind.
		h.cookies.Clear(c.Writer)
		response.Error(c, err)
		return
	}

	h.cookies.Write(c.Writer, result.Token, h.service.TokenTTL())
	response.Success(c, http.StatusOK, result)
}

// Logout revokes the current token and clears the session cookie. The
// cookie is cleared unconditionally, whatever the revocation outcome.
// POST /auth/logout
func (h *Handler) Logout(c *gin.Context) {
	defer h.cookies.Clear(c.Writer)

	tok := tokenFromRequest(c)
	if tok == "" {
		response.Success(c, http.StatusOK, gin.H{"message": "Logged out"})
		return
	}

	if err := h.service.Logout(c.Request.Context(), tok); err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"message": "Logged out"})
}

// Me returns the authenticated user's profile
// GET /auth/me
func (h *Handler) Me(c *gin.Context) {
	claims, ok := middleware.ClaimsFromContext(c)
	if !ok {
		response.Error(c, apperrors.ErrUnauthenticated)
		return
	}

	usr, err := h.service.CurrentUser(c.Request.Context(), claims)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"user":        usr,
		"role":        claims.Role,
		"permissions": claims.Permissions,
	})
}

// Health returns health status
// GET /health
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
	})
}

// tokenFromRequest reads the bearer token, falling back to the session
// cookie. The refresh endpoint accepts either carrier.
func tokenFromRequest(c *gin.Context) string {
	authHeader := c.GetHeader("Authorization")
	if strings.HasPrefix(authHeader, "Bearer ") {
		return authHeader[len("Bearer "):]
	}
	return session.Read(c.Request)
}
