package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/spesenwerk/receipt-ocr-service/internal/pipeline"
)

var Client *minio.Client
var BucketName string

func Init() error {
	endpoint := os.Getenv("MINIO_ENDPOINT")
	if endpoint == "" {
		endpoint = "minio:9000"
	}

	accessKey := os.Getenv("MINIO_ACCESS_KEY")
	secretKey := os.Getenv("MINIO_SECRET_KEY")

	BucketName = os.Getenv("MINIO_BUCKET")
	if BucketName == "" {
		BucketName = "receipts"
	}

	useSSL := os.Getenv("MINIO_USE_SSL") == "true"

	var err error
	Client, err = minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return fmt.Errorf("failed to create MinIO client: %w", err)
	}

	// Verify bucket exists
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	exists, err := Client.BucketExists(ctx, BucketName)
	if err != nil {
		return fmt.Errorf("failed to check bucket: %w", err)
	}
	if !exists {
		return fmt.Errorf("bucket %s does not exist", BucketName)
	}

	return nil
}

// UploadMetadata is attached to every stored receipt object.
type UploadMetadata struct {
	CompanyID  string
	UploaderID string
	// Context holds arbitrary business context, serialized to one JSON
	// metadata header.
	Context map[string]string
}

// UploadReceiptFile uploads one receipt file under a per-company path.
// Path format: {company_id}/YYYY/MM/{filename}
func UploadReceiptFile(ctx context.Context, filename string, reader io.Reader, size int64, contentType string, meta UploadMetadata) (string, error) {
	if Client == nil {
		return "", fmt.Errorf("storage not available")
	}

	now := time.Now()
	objectName := fmt.Sprintf("%s/%d/%02d/%s",
		meta.CompanyID,
		now.Year(),
		now.Month(),
		filename,
	)

	userMeta := map[string]string{
		"company-id":  meta.CompanyID,
		"uploader-id": meta.UploaderID,
	}
	if len(meta.Context) > 0 {
		if blob, err := json.Marshal(meta.Context); err == nil {
			userMeta["business-context"] = string(blob)
		}
	}

	_, err := Client.PutObject(ctx, BucketName, objectName, reader, size, minio.PutObjectOptions{
		ContentType:  contentType,
		UserMetadata: userMeta,
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload receipt file: %w", err)
	}

	// Return the full path for storage in DB
	return fmt.Sprintf("%s/%s", BucketName, objectName), nil
}

// GetPresignedURL generates a presigned URL for viewing a stored receipt
func GetPresignedURL(ctx context.Context, objectPath string) (string, error) {
	if Client == nil {
		return "", fmt.Errorf("storage not available")
	}

	url, err := Client.PresignedGetObject(ctx, BucketName, stripBucketPrefix(objectPath), 24*time.Hour, nil)
	if err != nil {
		return "", fmt.Errorf("failed to generate presigned URL: %w", err)
	}
	return url.String(), nil
}

// DeleteFile removes a stored receipt file
func DeleteFile(ctx context.Context, objectPath string) error {
	if Client == nil {
		return fmt.Errorf("storage not available")
	}
	return Client.RemoveObject(ctx, BucketName, stripBucketPrefix(objectPath), minio.RemoveObjectOptions{})
}

func stripBucketPrefix(objectPath string) string {
	if len(objectPath) > len(BucketName)+1 && objectPath[:len(BucketName)+1] == BucketName+"/" {
		return objectPath[len(BucketName)+1:]
	}
	return objectPath
}

// GetFileExtension extracts file extension from content type
func GetFileExtension(contentType string) string {
	switch contentType {
	case "image/jpeg":
		return ".jpg"
	case "image/png":
		return ".png"
	case "image/heic":
		return ".heic"
	case "image/webp":
		return ".webp"
	case "application/pdf":
		return ".pdf"
	default:
		return ".bin"
	}
}

// DownloadFile streams a stored object back to the caller.
func DownloadFile(ctx context.Context, objectPath string) (io.ReadCloser, error) {
	if Client == nil {
		return nil, fmt.Errorf("storage not available")
	}

	obj, err := Client.GetObject(ctx, BucketName, stripBucketPrefix(objectPath), minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch receipt file: %w", err)
	}
	return obj, nil
}

// Uploader adapts the package to the submission flow's uploader contract.
type Uploader struct{}

// Upload stores the request blob and returns its object path.
func (Uploader) Upload(ctx context.Context, req pipeline.UploadRequest) (string, error) {
	meta := UploadMetadata{
		CompanyID:  req.CompanyID,
		UploaderID: req.UploaderID,
		Context:    req.Context,
	}
	return UploadReceiptFile(ctx, req.Filename, bytes.NewReader(req.Blob), int64(len(req.Blob)), req.ContentType, meta)
}
