package upload

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

const DefaultCloudinaryBaseURL = "https://api.cloudinary.com/v1_1"

type cloudinaryResult struct {
	SecureURL string `json:"secure_url"`
}

type cloudinaryError struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

// CloudinaryUploader posts unsigned uploads with an upload preset.
type CloudinaryUploader struct {
	httpClient *resty.Client
	cloudName  string
	preset     string
	logger     *zap.Logger
}

func NewCloudinaryUploader(baseURL, cloudName, preset string, logger *zap.Logger) *CloudinaryUploader {
	if baseURL == "" {
		baseURL = DefaultCloudinaryBaseURL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(60 * time.Second).
		SetHeader("Accept", "application/json")

	return &CloudinaryUploader{
		httpClient: client,
		cloudName:  cloudName,
		preset:     preset,
		logger:     logger,
	}
}

func (u *CloudinaryUploader) Upload(ctx context.Context, f File) (string, error) {
	if err := CheckImage(f); err != nil {
		return "", err
	}

	var result cloudinaryResult
	var failure cloudinaryError
	resp, err := u.httpClient.R().
		SetContext(ctx).
		SetFileReader("file", f.Name, f.Body).
		SetFormData(map[string]string{
			"upload_preset": u.preset,
			"cloud_name":    u.cloudName,
		}).
		SetResult(&result).
		SetError(&failure).
		Post(fmt.Sprintf("/%s/image/upload", u.cloudName))
	if err != nil {
		u.logger.Error("cloudinary upload failed", zap.String("file", f.Name), zap.Error(err))
		return "", fmt.Errorf("cloudinary upload: %w", err)
	}

	if resp.IsError() || result.SecureURL == "" {
		u.logger.Warn("cloudinary rejected upload",
			zap.String("file", f.Name),
			zap.Int("status_code", resp.StatusCode()),
			zap.String("message", failure.Error.Message))
		return "", &Error{Message: failure.Error.Message, Status: resp.StatusCode()}
	}

	u.logger.Info("image uploaded", zap.String("file", f.Name), zap.String("url", result.SecureURL))
	return result.SecureURL, nil
}
