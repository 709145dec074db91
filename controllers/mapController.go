package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/pih12/Pravah/apperr"
	"github.com/pih12/Pravah/feed"
	"github.com/pih12/Pravah/mapview"
)

type MapController struct {
	feed   *feed.Feed
	logger *zap.Logger
}

func NewMapController(f *feed.Feed, logger *zap.Logger) *MapController {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MapController{feed: f, logger: logger}
}

// GetMarkers returns one marker per locatable issue and the bounds that fit
// them all.
func (mc *MapController) GetMarkers(c *gin.Context) {
	ctx, cancel := storeContext(c)
	defer cancel()
	snap, err := mc.feed.Current(ctx)
	if err != nil {
		respondError(c, mc.logger, apperr.Internal(err))
		return
	}
	c.JSON(http.StatusOK, mapview.Project(snap.Issues))
}
