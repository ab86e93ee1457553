package storage

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
)

type cloudinaryUploader interface {
	Upload(ctx context.Context, file interface{}, uploadParams uploader.UploadParams) (*uploader.UploadResult, error)
}

// CloudinaryStore uploads attachment bytes to Cloudinary and returns the secure URL.
type CloudinaryStore struct {
	upload cloudinaryUploader
	folder string
}

func NewCloudinaryStore(cloudName, apiKey, apiSecret, folder string) (*CloudinaryStore, error) {
	cld, err := cloudinary.NewFromParams(cloudName, apiKey, apiSecret)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Cloudinary: %w", err)
	}
	return &CloudinaryStore{upload: &cld.Upload, folder: folder}, nil
}

func (s *CloudinaryStore) Put(ctx context.Context, key, contentType string, data []byte) (string, error) {
	// Cloudinary appends its own extension for images; raw files keep the key as-is.
	publicID := key
	if strings.HasPrefix(contentType, "image/") {
		publicID = strings.TrimSuffix(key, path.Ext(key))
	}

	res, err := s.upload.Upload(ctx, bytes.NewReader(data), uploader.UploadParams{
		PublicID:     publicID,
		Folder:       s.folder,
		ResourceType: "auto",
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload to Cloudinary: %w", err)
	}
	if res.Error.Message != "" {
		return "", fmt.Errorf("failed to upload to Cloudinary: %s", res.Error.Message)
	}
	return res.SecureURL, nil
}
