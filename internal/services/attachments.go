package services

import (
	"context"
	"fmt"
	"mime"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/AnshRaj112/soconnect-backend/internal/logging"
	"github.com/AnshRaj112/soconnect-backend/internal/metrics"
	"github.com/AnshRaj112/soconnect-backend/internal/models"
)

// MaxAttachmentBytes is the default upload ceiling.
const MaxAttachmentBytes = 10 << 20

const maxFileNameLength = 255

var allowedAttachmentTypes = map[string]bool{
	"image/jpeg":         true,
	"image/png":          true,
	"image/gif":          true,
	"image/webp":         true,
	"application/pdf":    true,
	"text/plain":         true,
	"application/msword": true,
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document": true,
}

// ObjectStore persists attachment bytes and returns their retrieval URL.
type ObjectStore interface {
	Put(ctx context.Context, key, contentType string, data []byte) (string, error)
}

// OrphanJournal records stored objects whose message append failed.
type OrphanJournal interface {
	RecordOrphan(ctx context.Context, orphan models.OrphanedAttachment) error
}

// AttachmentPipeline binds uploaded bytes to a message row.
type AttachmentPipeline struct {
	store    ObjectStore
	log      *MessageLog
	journal  OrphanJournal
	maxBytes int64
	timeout  time.Duration
	keyFunc  func(filename string) string
	logger   logging.Logger
}

func NewAttachmentPipeline(store ObjectStore, log *MessageLog, journal OrphanJournal, maxBytes int64, timeout time.Duration, keyFunc func(string) string, logger logging.Logger) *AttachmentPipeline {
	if maxBytes <= 0 {
		maxBytes = MaxAttachmentBytes
	}
	return &AttachmentPipeline{
		store:    store,
		log:      log,
		journal:  journal,
		maxBytes: maxBytes,
		timeout:  timeout,
		keyFunc:  keyFunc,
		logger:   logger.With("component", "attachments"),
	}
}

// MaxBytes is the largest payload Attach accepts.
func (p *AttachmentPipeline) MaxBytes() int64 {
	return p.maxBytes
}

// NormalizeMIMEType strips parameters and lowercases a content type.
func NormalizeMIMEType(contentType string) string {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(contentType))
	}
	return mediaType
}

// AllowedMIMEType reports whether attachments of this type are accepted.
func AllowedMIMEType(contentType string) bool {
	return allowedAttachmentTypes[NormalizeMIMEType(contentType)]
}

// CheckUpload rejects a payload by size or type before anything is stored.
func (p *AttachmentPipeline) CheckUpload(size int64, mimeType string) error {
	if size > p.maxBytes {
		return fmt.Errorf("%w: %d bytes exceeds %d", models.ErrAttachmentTooLarge, size, p.maxBytes)
	}
	if !AllowedMIMEType(mimeType) {
		return fmt.Errorf("%w: %s", models.ErrUnsupportedType, NormalizeMIMEType(mimeType))
	}
	return nil
}

// Attach stores data and appends a message carrying its descriptor. The store
// write and the append are not atomic: if the append fails the stored object
// is journaled as an orphan and the append error is returned.
func (p *AttachmentPipeline) Attach(ctx context.Context, from, to string, data []byte, filename, mimeType string, caption *string) (*models.Message, error) {
	if err := ValidateParticipants(from, to); err != nil {
		return nil, err
	}
	if err := p.CheckUpload(int64(len(data)), mimeType); err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: file is empty", models.ErrInvalidInput)
	}
	mimeType = NormalizeMIMEType(mimeType)
	filename = cleanFileName(filename)

	key := p.keyFunc(filename)
	putCtx, cancel := withTimeout(ctx, p.timeout)
	url, err := p.store.Put(putCtx, key, mimeType, data)
	cancel()
	if err != nil {
		p.logger.Error(ctx, "attachment store write failed", "key", key, "error", err)
		return nil, fmt.Errorf("store attachment: %w: %w", models.ErrTransient, err)
	}

	att := &models.Attachment{
		FileName: filename,
		FileURL:  url,
		FileType: mimeType,
		FileSize: int64(len(data)),
	}
	msg, err := p.log.Append(ctx, from, to, caption, att)
	if err != nil {
		p.recordOrphan(ctx, key, from, to, att, err)
		return nil, err
	}
	return msg, nil
}

func (p *AttachmentPipeline) recordOrphan(ctx context.Context, key, from, to string, att *models.Attachment, cause error) {
	metrics.OrphanedAttachments.Inc()
	p.logger.Error(ctx, "orphaned attachment: stored object has no message row",
		"key", key, "url", att.FileURL, "from", from, "to", to, "error", cause)
	if p.journal == nil {
		return
	}

	orphan := models.OrphanedAttachment{
		Key:        key,
		URL:        att.FileURL,
		From:       from,
		To:         to,
		FileName:   att.FileName,
		FileType:   att.FileType,
		FileSize:   att.FileSize,
		Reason:     cause.Error(),
		RecordedAt: time.Now().UTC(),
	}
	// The request context may already be done; the journal write gets its own budget.
	jctx, cancel := withTimeout(context.WithoutCancel(ctx), p.timeout)
	defer cancel()
	if err := p.journal.RecordOrphan(jctx, orphan); err != nil {
		p.logger.Error(ctx, "orphan journal write failed", "key", key, "error", err)
	}
}

func cleanFileName(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	if name == "." || name == "/" || name == "" {
		name = "file"
	}
	for len(name) > maxFileNameLength {
		_, size := utf8.DecodeLastRuneInString(name)
		name = name[:len(name)-size]
	}
	return name
}
