package controllers

import (
	"errors"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/pih12/Pravah/apperr"
	"github.com/pih12/Pravah/authz"
	"github.com/pih12/Pravah/feed"
	"github.com/pih12/Pravah/issues"
	"github.com/pih12/Pravah/metrics"
	"github.com/pih12/Pravah/models"
	"github.com/pih12/Pravah/stats"
	"github.com/pih12/Pravah/upload"
)

type IssueController struct {
	issues    *issues.Service
	feed      *feed.Feed
	uploader  upload.Uploader
	locations LocationStore
	logger    *zap.Logger
}

func NewIssueController(svc *issues.Service, f *feed.Feed, uploader upload.Uploader, locations LocationStore, logger *zap.Logger) *IssueController {
	if uploader == nil {
		uploader = upload.Disabled{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &IssueController{issues: svc, feed: f, uploader: uploader, locations: locations, logger: logger}
}

// CreateIssue accepts a JSON body, which may carry an already uploaded
// imageUrl, or a multipart form with an optional "image" file. The photo is
// uploaded before the record is written.
func (ic *IssueController) CreateIssue(c *gin.Context) {
	sc, ok := requireSession(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()

	var input issues.NewIssue
	var photo *upload.File
	if strings.HasPrefix(c.ContentType(), "multipart/form-data") {
		in, file, err := bindIssueForm(c)
		if err != nil {
			respondError(c, ic.logger, err)
			return
		}
		input = in
		if file != nil {
			f, err := file.Open()
			if err != nil {
				respondError(c, ic.logger, apperr.Validation("Could not read the selected image"))
				return
			}
			defer f.Close()
			photo = &upload.File{
				Name:        file.Filename,
				ContentType: file.Header.Get("Content-Type"),
				Size:        file.Size,
				Body:        f,
			}
		}
	} else if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	if err := input.Validate(); err != nil {
		respondError(c, ic.logger, err)
		return
	}

	if input.GPS == nil && ic.locations != nil {
		if gps, err := ic.locations.LastLocation(ctx, sc.SessionID); err == nil {
			input.GPS = &gps
		}
	}

	if photo != nil {
		url, err := ic.uploader.Upload(ctx, *photo)
		metrics.UploadsTotal.WithLabelValues(metrics.Result(err)).Inc()
		if err != nil {
			respondError(c, ic.logger, uploadFailure(err))
			return
		}
		input.ImageURL = url
	}

	storeCtx, cancel := storeContext(c)
	defer cancel()
	issue, err := ic.issues.Create(storeCtx, sc.Principal(), input)
	if err != nil {
		if photo != nil {
			ic.logger.Warn("orphaned upload: issue was not created",
				zap.String("image_url", input.ImageURL), zap.String("reporter", sc.UserID))
		}
		respondError(c, ic.logger, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "Report submitted", "issue": issue})
}

// GetAllIssues returns the current snapshot projected for the caller's role.
func (ic *IssueController) GetAllIssues(c *gin.Context) {
	ctx, cancel := storeContext(c)
	defer cancel()
	sc, ok := requireSession(c)
	if !ok {
		return
	}
	snap, err := ic.feed.Current(ctx)
	if err != nil {
		respondError(c, ic.logger, apperr.Internal(err))
		return
	}
	c.JSON(http.StatusOK, feed.Project(snap, sc.Role))
}

func (ic *IssueController) GetStats(c *gin.Context) {
	ctx, cancel := storeContext(c)
	defer cancel()
	snap, err := ic.feed.Current(ctx)
	if err != nil {
		respondError(c, ic.logger, apperr.Internal(err))
		return
	}
	c.JSON(http.StatusOK, snap.Stats)
}

// GetMyIssues lists the caller's own reports, newest first.
func (ic *IssueController) GetMyIssues(c *gin.Context) {
	ctx, cancel := storeContext(c)
	defer cancel()
	sc, ok := requireSession(c)
	if !ok {
		return
	}
	list, err := ic.issues.Mine(ctx, sc.Principal())
	if err != nil {
		respondError(c, ic.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"issues": list, "stats": stats.Compute(list)})
}

// GetIssue returns the manage view of one issue. ?readOnly=true disables
// every control regardless of role.
func (ic *IssueController) GetIssue(c *gin.Context) {
	ctx, cancel := storeContext(c)
	defer cancel()
	sc, ok := requireSession(c)
	if !ok {
		return
	}
	issue, err := ic.issues.Get(ctx, sc.Principal(), c.Param("id"))
	if err != nil {
		respondError(c, ic.logger, err)
		return
	}
	readOnly, _ := strconv.ParseBool(c.Query("readOnly"))
	c.JSON(http.StatusOK, authz.NewManageView(sc.Role, issue, readOnly))
}

// UpdateIssue applies a privileged change to status, assignment or remarks.
func (ic *IssueController) UpdateIssue(c *gin.Context) {
	ctx, cancel := storeContext(c)
	defer cancel()
	sc, ok := requireSession(c)
	if !ok {
		return
	}
	var input struct {
		AssignedAuthority *string `json:"assignedAuthority"`
		Status            *string `json:"status"`
		AuthorityRemarks  *string `json:"authorityRemarks"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	update := models.IssueUpdate{
		AssignedAuthority: input.AssignedAuthority,
		AuthorityRemarks:  input.AuthorityRemarks,
	}
	if input.Status != nil {
		status := models.IssueStatus(*input.Status)
		update.Status = &status
	}

	issue, err := ic.issues.Update(ctx, sc.Principal(), c.Param("id"), update)
	if err != nil {
		respondError(c, ic.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Issue updated successfully", "issue": issue})
}

func (ic *IssueController) DeleteIssue(c *gin.Context) {
	ctx, cancel := storeContext(c)
	defer cancel()
	sc, ok := requireSession(c)
	if !ok {
		return
	}
	if err := ic.issues.Delete(ctx, sc.Principal(), c.Param("id")); err != nil {
		respondError(c, ic.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Issue deleted successfully"})
}

func bindIssueForm(c *gin.Context) (issues.NewIssue, *multipart.FileHeader, error) {
	in := issues.NewIssue{
		Type:        c.PostForm("type"),
		Description: c.PostForm("description"),
		District:    c.PostForm("district"),
		Feedback:    c.PostForm("feedback"),
	}

	lat, lng := c.PostForm("lat"), c.PostForm("lng")
	if lat != "" || lng != "" {
		la, errLat := strconv.ParseFloat(lat, 64)
		ln, errLng := strconv.ParseFloat(lng, 64)
		if errLat != nil || errLng != nil {
			return in, nil, apperr.Validation("gps coordinates are out of range")
		}
		in.GPS = &models.GPS{Lat: la, Lng: ln}
	}

	file, err := c.FormFile("image")
	if errors.Is(err, http.ErrMissingFile) {
		return in, nil, nil
	}
	if err != nil {
		return in, nil, apperr.Validation("Could not read the selected image")
	}
	return in, file, nil
}

// uploadFailure keeps the host's message when it gave one.
func uploadFailure(err error) error {
	var ue *upload.Error
	switch {
	case errors.Is(err, upload.ErrNotImage):
		return apperr.Validation(upload.ErrNotImage.Error())
	case errors.Is(err, upload.ErrDisabled):
		return apperr.Upload("Image uploads are not available", err)
	case errors.As(err, &ue):
		return apperr.Upload(ue.Error(), err)
	default:
		return apperr.Upload("", err)
	}
}
