package upload

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func imageFile() File {
	return File{Name: "pothole.jpg", ContentType: "image/jpeg", Size: 4, Body: strings.NewReader("jpeg")}
}

func TestCheckImage(t *testing.T) {
	assert.NoError(t, CheckImage(File{ContentType: "image/png"}))
	assert.NoError(t, CheckImage(File{ContentType: "IMAGE/JPEG"}))
	assert.ErrorIs(t, CheckImage(File{ContentType: "application/pdf"}), ErrNotImage)
	assert.ErrorIs(t, CheckImage(File{}), ErrNotImage)
}

func TestCloudinaryUploadReturnsSecureURL(t *testing.T) {
	var gotPreset, gotCloud, gotFile, gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		require.NoError(t, r.ParseMultipartForm(1<<20))
		gotPreset = r.FormValue("upload_preset")
		gotCloud = r.FormValue("cloud_name")
		f, _, err := r.FormFile("file")
		require.NoError(t, err)
		body, _ := io.ReadAll(f)
		gotFile = string(body)

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"secure_url":"https://res.cloudinary.com/demo/image/upload/v1/pothole.jpg"}`))
	}))
	defer srv.Close()

	u := NewCloudinaryUploader(srv.URL, "demo", "civic_unsigned", nil)
	url, err := u.Upload(context.Background(), imageFile())
	require.NoError(t, err)

	assert.Equal(t, "https://res.cloudinary.com/demo/image/upload/v1/pothole.jpg", url)
	assert.Equal(t, "/demo/image/upload", gotPath)
	assert.Equal(t, "civic_unsigned", gotPreset)
	assert.Equal(t, "demo", gotCloud)
	assert.Equal(t, "jpeg", gotFile)
}

func TestCloudinaryErrorMessageIsVerbatim(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":{"message":"Upload preset must be whitelisted for unsigned uploads"}}`))
	}))
	defer srv.Close()

	u := NewCloudinaryUploader(srv.URL, "demo", "bad", nil)
	_, err := u.Upload(context.Background(), imageFile())

	var ue *Error
	require.True(t, errors.As(err, &ue))
	assert.Equal(t, "Upload preset must be whitelisted for unsigned uploads", ue.Message)
	assert.Equal(t, http.StatusBadRequest, ue.Status)
	assert.Equal(t, 1, calls, "uploads are not retried")
}

func TestCloudinaryErrorWithoutMessage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	u := NewCloudinaryUploader(srv.URL, "demo", "p", nil)
	_, err := u.Upload(context.Background(), imageFile())
	require.Error(t, err)
	assert.Equal(t, "Upload failed", err.Error())
}

func TestCloudinaryRejectsNonImages(t *testing.T) {
	u := NewCloudinaryUploader("http://127.0.0.1:1", "demo", "p", nil)
	_, err := u.Upload(context.Background(), File{Name: "a.txt", ContentType: "text/plain", Body: strings.NewReader("x")})
	assert.ErrorIs(t, err, ErrNotImage)
}

func TestDisabledUploader(t *testing.T) {
	_, err := Disabled{}.Upload(context.Background(), imageFile())
	assert.ErrorIs(t, err, ErrDisabled)

	pdf := imageFile()
	pdf.ContentType = "application/pdf"
	_, err = Disabled{}.Upload(context.Background(), pdf)
	assert.ErrorIs(t, err, ErrNotImage)
}

func TestMinioUploaderBuildsPublicURL(t *testing.T) {
	u, err := NewMinioUploader(MinioConfig{Endpoint: "localhost:9000", AccessKey: "k", SecretKey: "s", Bucket: "reports"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:9000", u.publicURL)

	u, err = NewMinioUploader(MinioConfig{Endpoint: "s3.local", Bucket: "b", UseSSL: true, PublicURL: "https://cdn.example/"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example", u.publicURL)
}
