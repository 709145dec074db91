package controllers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/pih12/Pravah/authz"
	"github.com/pih12/Pravah/identity"
	"github.com/pih12/Pravah/middlewares"
)

type AuthController struct {
	identity     *identity.Service
	secureCookie bool
	logger       *zap.Logger
}

func NewAuthController(svc *identity.Service, secureCookie bool, logger *zap.Logger) *AuthController {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthController{identity: svc, secureCookie: secureCookie, logger: logger}
}

// RegisterUser handles user registration
func (ac *AuthController) RegisterUser(c *gin.Context) {
	ctx, cancel := storeContext(c)
	defer cancel()
	var input identity.RegisterRequest
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	res, err := ac.identity.Register(ctx, input)
	if err != nil {
		respondError(c, ac.logger, err)
		return
	}
	ac.setCookie(c, res.Token, res.ExpiresAt)
	c.JSON(http.StatusCreated, res)
}

// LoginUser handles user login
func (ac *AuthController) LoginUser(c *gin.Context) {
	ctx, cancel := storeContext(c)
	defer cancel()
	var input identity.LoginRequest
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	res, err := ac.identity.Login(ctx, input)
	if err != nil {
		respondError(c, ac.logger, err)
		return
	}
	ac.setCookie(c, res.Token, res.ExpiresAt)
	c.JSON(http.StatusOK, res)
}

// GetMe returns the caller's profile and where the client should route them.
func (ac *AuthController) GetMe(c *gin.Context) {
	sc, ok := requireSession(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"profile":     sc.Profile,
		"label":       authz.Label(sc.Role),
		"destination": authz.Destination(sc.Role),
		"permissions": authz.PermissionsFor(sc.Role),
	})
}

// LogoutUser revokes the session and clears the auth_token cookie
func (ac *AuthController) LogoutUser(c *gin.Context) {
	ctx, cancel := storeContext(c)
	defer cancel()
	sc, ok := requireSession(c)
	if !ok {
		return
	}
	if err := ac.identity.Logout(ctx, sc.SessionID); err != nil {
		respondError(c, ac.logger, err)
		return
	}
	c.SetSameSite(http.SameSiteNoneMode)
	c.SetCookie(middlewares.TokenCookie, "", -1, "/", "", ac.secureCookie, true)
	c.JSON(http.StatusOK, gin.H{"message": "Logged out successfully", "redirect": "login"})
}

func (ac *AuthController) setCookie(c *gin.Context, token string, expiresAt time.Time) {
	maxAge := int(time.Until(expiresAt).Seconds())
	if maxAge <= 0 {
		return
	}
	c.SetSameSite(http.SameSiteNoneMode)
	c.SetCookie(middlewares.TokenCookie, token, maxAge, "/", "", ac.secureCookie, true)
}
