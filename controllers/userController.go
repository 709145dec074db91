package controllers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/pih12/Pravah/apperr"
	"github.com/pih12/Pravah/identity"
	"github.com/pih12/Pravah/models"
)

// LocationStore keeps the last position a session reported.
type LocationStore interface {
	SaveLocation(ctx context.Context, sid string, gps models.GPS) error
	LastLocation(ctx context.Context, sid string) (models.GPS, error)
}

type UserController struct {
	identity  *identity.Service
	locations LocationStore
	logger    *zap.Logger
}

func NewUserController(svc *identity.Service, locations LocationStore, logger *zap.Logger) *UserController {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UserController{identity: svc, locations: locations, logger: logger}
}

// UpdateMe handles the self-service profile form.
func (uc *UserController) UpdateMe(c *gin.Context) {
	ctx, cancel := storeContext(c)
	defer cancel()
	sc, ok := requireSession(c)
	if !ok {
		return
	}
	var input models.ProfileUpdate
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	profile, err := uc.identity.UpdateProfile(ctx, sc, input)
	if err != nil {
		respondError(c, uc.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Profile updated", "profile": profile})
}

// SetLocation records where the client currently is. Later submissions
// without coordinates fall back to it.
func (uc *UserController) SetLocation(c *gin.Context) {
	ctx, cancel := storeContext(c)
	defer cancel()
	sc, ok := requireSession(c)
	if !ok {
		return
	}
	var input struct {
		Lat *float64 `json:"lat" binding:"required"`
		Lng *float64 `json:"lng" binding:"required"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "lat and lng are required"})
		return
	}
	gps := models.GPS{Lat: *input.Lat, Lng: *input.Lng}
	if gps.Lat < -90 || gps.Lat > 90 || gps.Lng < -180 || gps.Lng > 180 {
		respondError(c, uc.logger, apperr.Validation("gps coordinates are out of range"))
		return
	}

	if err := uc.locations.SaveLocation(ctx, sc.SessionID, gps); err != nil {
		respondError(c, uc.logger, apperr.Internal(err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"gps": gps})
}
