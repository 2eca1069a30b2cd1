// Package httpapi provides the thin REST adapters that front the Token
// Service and the PubSub fabric (§4.C's event table needs a real caller for
// send message, typing, and friend request operations; the Token Service
// needs a real caller for issue/reissue). These handlers do the minimum
// authorization/validation required to call into internal/auth, internal/db,
// and internal/realtime, mirroring how thin the teacher's own route
// handlers in cmd/main.go are around its services.
package httpapi

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/emberhall/ember/internal/auth"
	"github.com/emberhall/ember/internal/db"
	apperrors "github.com/emberhall/ember/internal/errors"
	"github.com/emberhall/ember/internal/logger"
	"github.com/emberhall/ember/internal/middleware"
	"github.com/emberhall/ember/internal/models"
	"github.com/emberhall/ember/internal/nanoid"
)

// AuthStore is the slice of db.Store the auth routes need.
type AuthStore interface {
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
	RegisterUser(ctx context.Context, user *models.User) (bool, error)
}

// RegisterAuthRoutes mounts /auth/register, /auth/login, and /auth/reissue.
// Login and register are unauthenticated by construction; reissue trades a
// refresh token (read from the JSON body, not a bearer header) for a fresh
// pair. Each route is rate-limited by client IP since none of the three
// has an authenticated user to key on yet.
func RegisterAuthRoutes(router gin.IRouter, store AuthStore, refresh *auth.RefreshService) {
	registerLimiter := middleware.NewRateLimiter()
	loginLimiter := middleware.NewRateLimiter()
	reissueLimiter := middleware.NewRateLimiter()

	group := router.Group("/auth")
	group.POST("/register",
		registerLimiter.Middleware(middleware.MaxRegisterAttempts, middleware.RegisterRateLimitWindow),
		registerHandler(store, refresh))
	group.POST("/login",
		loginLimiter.Middleware(middleware.MaxLoginAttempts, middleware.LoginRateLimitWindow),
		loginHandler(store, refresh, loginLimiter))
	group.POST("/reissue",
		reissueLimiter.Middleware(middleware.MaxReissueAttempts, middleware.ReissueRateLimitWindow),
		reissueHandler(refresh))
}

func registerHandler(store AuthStore, refresh *auth.RefreshService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.CreateUserRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondErr(c, apperrors.Validation("invalid register body"))
			return
		}

		user := &models.User{
			ID:           nanoid.Identity(),
			Username:     req.Username,
			Email:        req.Email,
			PasswordHash: req.Password, // hashed inside RegisterUser
		}

		created, err := store.RegisterUser(c.Request.Context(), user)
		if err != nil {
			respondErr(c, asAppError(err))
			return
		}
		if !created {
			respondErr(c, apperrors.Conflict("username already taken"))
			return
		}

		pair, err := refresh.Issue(c.Request.Context(), user.ID, c.Request.UserAgent())
		if err != nil {
			respondErr(c, asAppError(err))
			return
		}

		c.JSON(http.StatusCreated, tokenPairResponse(pair))
	}
}

type loginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func loginHandler(store AuthStore, refresh *auth.RefreshService, limiter *middleware.RateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req loginRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondErr(c, apperrors.Validation("invalid login body"))
			return
		}

		user, err := store.GetUserByUsername(c.Request.Context(), req.Username)
		if err != nil {
			respondErr(c, apperrors.InvalidCredentials())
			return
		}
		if !db.VerifyPassword(user.PasswordHash, req.Password) {
			respondErr(c, apperrors.InvalidCredentials())
			return
		}

		pair, err := refresh.Issue(c.Request.Context(), user.ID, c.Request.UserAgent())
		if err != nil {
			respondErr(c, asAppError(err))
			return
		}

		limiter.ResetLimit(c.ClientIP())
		c.JSON(http.StatusOK, tokenPairResponse(pair))
	}
}

type reissueRequest struct {
	RefreshToken string `json:"refreshToken" binding:"required"`
}

func reissueHandler(refresh *auth.RefreshService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req reissueRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondErr(c, apperrors.Validation("invalid reissue body"))
			return
		}

		pair, err := refresh.Reissue(c.Request.Context(), req.RefreshToken, c.Request.UserAgent())
		if err != nil {
			logger.HTTP().Debug().Err(err).Msg("refresh reissue rejected")
			respondErr(c, asAppError(err))
			return
		}

		c.JSON(http.StatusOK, tokenPairResponse(pair))
	}
}

func tokenPairResponse(pair *auth.TokenPair) gin.H {
	return gin.H{"accessToken": pair.AccessToken, "refreshToken": pair.RefreshToken}
}
