// Package files handles user file uploads: avatars and photos into the
// images folder, license scans and paperwork into documents. Objects live
// in S3-compatible storage and are addressed by their public URL.
package files

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/dropzone-hq/dropzone/internal/shared"
)

var imageTypes = map[string]struct{}{
	"image/jpeg": {},
	"image/jpg":  {},
	"image/png":  {},
	"image/gif":  {},
	"image/webp": {},
}

var documentTypes = map[string]struct{}{
	"application/pdf":    {},
	"application/msword": {},
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document": {},
}

const (
	// MaxFileSize bounds a single upload.
	MaxFileSize = 10 << 20
	// MaxBatchFiles bounds one multi-upload request.
	MaxBatchFiles = 10

	batchConcurrency = 4
)

// ObjectStore is the slice of the storage layer the service needs.
// *storage.ObjectStore satisfies it.
type ObjectStore interface {
	Upload(ctx context.Context, key string, body io.Reader, contentType string) error
	Delete(ctx context.Context, key string) error
	PublicURL(key string) string
	KeyFromURL(fileURL string) (string, bool)
}

// Upload is one incoming file.
type Upload struct {
	Filename    string
	ContentType string
	Size        int64
	Body        io.Reader
}

// UploadedFile reports a stored file.
type UploadedFile struct {
	Success     bool   `json:"success"`
	FileURL     string `json:"file_url"`
	Filename    string `json:"filename"`
	ContentType string `json:"content_type"`
	Size        int64  `json:"size"`
}

// UploadError reports one failed file in a batch.
type UploadError struct {
	Filename string `json:"filename"`
	Error    string `json:"error"`
}

// BatchResult is the outcome of a multi-upload: files fail individually,
// the batch itself never does.
type BatchResult struct {
	Uploaded      []UploadedFile `json:"uploaded"`
	Errors        []UploadError  `json:"errors"`
	TotalUploaded int            `json:"total_uploaded"`
	TotalErrors   int            `json:"total_errors"`
}

// Service validates and stores uploads.
type Service struct {
	objects ObjectStore
	logger  *slog.Logger
}

func NewService(objects ObjectStore, logger *slog.Logger) *Service {
	return &Service{objects: objects, logger: logger}
}

// UploadImage stores a photo or avatar.
func (s *Service) UploadImage(ctx context.Context, up Upload) (*UploadedFile, error) {
	return s.store(ctx, "images", imageTypes, up)
}

// UploadDocument stores a license scan or other paperwork.
func (s *Service) UploadDocument(ctx context.Context, up Upload) (*UploadedFile, error) {
	return s.store(ctx, "documents", documentTypes, up)
}

// UploadBatch stores up to MaxBatchFiles files concurrently, routing each
// by content type. Per-file failures land in the result's error list.
func (s *Service) UploadBatch(ctx context.Context, ups []Upload) (*BatchResult, error) {
	if len(ups) > MaxBatchFiles {
		return nil, shared.Invalid(fmt.Sprintf("Maximum %d files allowed", MaxBatchFiles))
	}

	uploaded := make([]*UploadedFile, len(ups))
	failed := make([]*UploadError, len(ups))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(batchConcurrency)
	for i, up := range ups {
		i, up := i, up
		g.Go(func() error {
			folder, allowed := folderFor(up.ContentType)
			result, err := s.store(ctx, folder, allowed, up)
			if err != nil {
				name := up.Filename
				if name == "" {
					name = "unknown"
				}
				msg := "upload failed"
				if shared.IsUserError(err) {
					msg = shared.UserSafeMessage(err)
				} else {
					s.logger.Error("batch upload", slog.String("filename", name), slog.Any("error", err))
				}
				failed[i] = &UploadError{Filename: name, Error: msg}
				return nil
			}
			uploaded[i] = result
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	result := &BatchResult{Uploaded: []UploadedFile{}, Errors: []UploadError{}}
	for i := range ups {
		if uploaded[i] != nil {
			result.Uploaded = append(result.Uploaded, *uploaded[i])
		}
		if failed[i] != nil {
			result.Errors = append(result.Errors, *failed[i])
		}
	}
	result.TotalUploaded = len(result.Uploaded)
	result.TotalErrors = len(result.Errors)
	return result, nil
}

// DeleteByURL removes a stored file addressed by its public URL.
func (s *Service) DeleteByURL(ctx context.Context, fileURL string) error {
	key, ok := s.objects.KeyFromURL(fileURL)
	if !ok {
		return shared.NotFoundf("File not found or already deleted")
	}
	if err := s.objects.Delete(ctx, key); err != nil {
		return err
	}
	s.logger.Info("file deleted", slog.String("key", key))
	return nil
}

func (s *Service) store(ctx context.Context, folder string, allowed map[string]struct{}, up Upload) (*UploadedFile, error) {
	if up.Filename == "" {
		return nil, shared.Invalid("No file provided")
	}
	if up.Size > MaxFileSize {
		return nil, shared.Invalid("File too large. Maximum size is 10MB")
	}
	if _, ok := allowed[up.ContentType]; !ok {
		return nil, shared.Invalid(fmt.Sprintf("File type %s not allowed", up.ContentType))
	}

	key := folder + "/" + uuid.NewString() + strings.ToLower(filepath.Ext(up.Filename))
	if err := s.objects.Upload(ctx, key, up.Body, up.ContentType); err != nil {
		return nil, err
	}

	s.logger.Info("file uploaded",
		slog.String("key", key),
		slog.String("content_type", up.ContentType),
		slog.Int64("size", up.Size))
	return &UploadedFile{
		Success:     true,
		FileURL:     s.objects.PublicURL(key),
		Filename:    up.Filename,
		ContentType: up.ContentType,
		Size:        up.Size,
	}, nil
}

func folderFor(contentType string) (string, map[string]struct{}) {
	if _, ok := imageTypes[contentType]; ok {
		return "images", imageTypes
	}
	return "documents", documentTypes
}
