package utils

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

const XlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// GCSUploader writes objects to a single bucket.
type GCSUploader struct {
	Bucket          string
	CredentialsJSON string
}

func (u *GCSUploader) client(ctx context.Context) (*storage.Client, error) {
	// Prefer ADC (Cloud Run service account / GOOGLE_APPLICATION_CREDENTIALS).
	if strings.TrimSpace(u.CredentialsJSON) != "" {
		return storage.NewClient(ctx, option.WithCredentialsJSON([]byte(u.CredentialsJSON)))
	}
	return storage.NewClient(ctx)
}

// Upload stores data under objectName and returns the gs:// URI.
func (u *GCSUploader) Upload(ctx context.Context, objectName string, data []byte, contentType string) (string, error) {
	if u == nil || u.Bucket == "" {
		return "", errors.New("GCS_BUCKET is required")
	}
	client, err := u.client(ctx)
	if err != nil {
		return "", err
	}
	defer client.Close()

	wc := client.Bucket(u.Bucket).Object(objectName).NewWriter(ctx)
	wc.ContentType = contentType

	if _, err := wc.Write(data); err != nil {
		_ = wc.Close()
		return "", fmt.Errorf("failed to upload bytes to Google Cloud Storage: %v", err)
	}
	if err := wc.Close(); err != nil {
		return "", fmt.Errorf("failed to close writer: %v", err)
	}
	return fmt.Sprintf("gs://%s/%s", u.Bucket, objectName), nil
}
