package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/spesenwerk/receipt-ocr-service/internal/pipeline"
)

// Without an initialized client every call degrades to an error instead of
// panicking; main keeps serving without file storage on init failure.
func TestCallsErrorWithoutClient(t *testing.T) {
	Client = nil
	ctx := context.Background()

	_, err := Uploader{}.Upload(ctx, pipeline.UploadRequest{Blob: []byte("img"), Filename: "a.jpg"})
	assert.Error(t, err)

	_, err = GetPresignedURL(ctx, "receipts/company-1/2024/01/a.jpg")
	assert.Error(t, err)

	assert.Error(t, DeleteFile(ctx, "receipts/company-1/2024/01/a.jpg"))

	_, err = DownloadFile(ctx, "receipts/company-1/2024/01/a.jpg")
	assert.Error(t, err)
}

func TestStripBucketPrefix(t *testing.T) {
	BucketName = "receipts"
	assert.Equal(t, "company-1/2024/01/a.jpg", stripBucketPrefix("receipts/company-1/2024/01/a.jpg"))
	assert.Equal(t, "company-1/2024/01/a.jpg", stripBucketPrefix("company-1/2024/01/a.jpg"))
}

func TestGetFileExtension(t *testing.T) {
	assert.Equal(t, ".jpg", GetFileExtension("image/jpeg"))
	assert.Equal(t, ".png", GetFileExtension("image/png"))
	assert.Equal(t, ".pdf", GetFileExtension("application/pdf"))
	assert.Equal(t, ".bin", GetFileExtension("application/octet-stream"))
}
