package files

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/dropzone-hq/dropzone/internal/shared"
	_ "github.com/dropzone-hq/dropzone/testing"
)

const cdnBase = "https://cdn.test/"

type storedObject struct {
	contentType string
	body        string
}

// stubStore is written to from errgroup workers, hence the mutex.
type stubStore struct {
	mu       sync.Mutex
	uploads  map[string]storedObject
	deleted  []string
	failType string
}

func newStubStore() *stubStore {
	return &stubStore{uploads: map[string]storedObject{}}
}

func (s *stubStore) Upload(_ context.Context, key string, body io.Reader, contentType string) error {
	if s.failType != "" && contentType == s.failType {
		return errors.New("connection reset")
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.uploads[key] = storedObject{contentType: contentType, body: string(data)}
	return nil
}

func (s *stubStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.uploads, key)
	s.deleted = append(s.deleted, key)
	return nil
}

func (s *stubStore) PublicURL(key string) string {
	return cdnBase + key
}

func (s *stubStore) KeyFromURL(fileURL string) (string, bool) {
	return strings.CutPrefix(fileURL, cdnBase)
}

func newTestService(store *stubStore) *Service {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewService(store, logger)
}

func upload(name, contentType, body string) Upload {
	return Upload{
		Filename:    name,
		ContentType: contentType,
		Size:        int64(len(body)),
		Body:        strings.NewReader(body),
	}
}

// requireKey checks the folder/uuid.ext shape and returns the key.
func requireKey(t *testing.T, fileURL, folder, ext string) string {
	t.Helper()
	key, ok := strings.CutPrefix(fileURL, cdnBase)
	require.True(t, ok)
	dir, name, ok := strings.Cut(key, "/")
	require.True(t, ok)
	require.Equal(t, folder, dir)
	require.True(t, strings.HasSuffix(name, ext))
	_, err := uuid.Parse(strings.TrimSuffix(name, ext))
	require.NoError(t, err)
	return key
}

func TestUploadImageStoresObject(t *testing.T) {
	store := newStubStore()
	svc := newTestService(store)

	result, err := svc.UploadImage(context.Background(), upload("exit-PHOTO.PNG", "image/png", "pixels"))
	require.NoError(t, err)

	require.True(t, result.Success)
	require.Equal(t, "exit-PHOTO.PNG", result.Filename)
	require.Equal(t, "image/png", result.ContentType)
	require.Equal(t, int64(len("pixels")), result.Size)

	// Extension is lowercased, the rest of the name is discarded.
	key := requireKey(t, result.FileURL, "images", ".png")
	require.Equal(t, storedObject{contentType: "image/png", body: "pixels"}, store.uploads[key])
}

func TestUploadDocumentRoutesFolder(t *testing.T) {
	store := newStubStore()
	svc := newTestService(store)

	result, err := svc.UploadDocument(context.Background(), upload("license.pdf", "application/pdf", "%PDF"))
	require.NoError(t, err)
	requireKey(t, result.FileURL, "documents", ".pdf")
}

func TestUploadRejectsWrongType(t *testing.T) {
	svc := newTestService(newStubStore())

	_, err := svc.UploadImage(context.Background(), upload("license.pdf", "application/pdf", "%PDF"))
	require.EqualError(t, err, "File type application/pdf not allowed")
	require.True(t, shared.IsUserError(err))

	_, err = svc.UploadDocument(context.Background(), upload("exit.png", "image/png", "pixels"))
	require.EqualError(t, err, "File type image/png not allowed")
}

func TestUploadRejectsOversize(t *testing.T) {
	svc := newTestService(newStubStore())

	up := upload("huge.png", "image/png", "pixels")
	up.Size = MaxFileSize + 1
	_, err := svc.UploadImage(context.Background(), up)
	require.EqualError(t, err, "File too large. Maximum size is 10MB")
}

func TestUploadRejectsMissingFilename(t *testing.T) {
	svc := newTestService(newStubStore())

	_, err := svc.UploadImage(context.Background(), upload("", "image/png", "pixels"))
	require.EqualError(t, err, "No file provided")
}

func TestBatchMixesOutcomes(t *testing.T) {
	store := newStubStore()
	svc := newTestService(store)

	oversize := upload("huge.jpg", "image/jpeg", "pixels")
	oversize.Size = MaxFileSize + 1

	result, err := svc.UploadBatch(context.Background(), []Upload{
		upload("exit.png", "image/png", "pixels"),
		upload("notes.txt", "text/plain", "hello"),
		oversize,
		upload("waiver.pdf", "application/pdf", "%PDF"),
	})
	require.NoError(t, err)

	require.Equal(t, 2, result.TotalUploaded)
	require.Equal(t, 2, result.TotalErrors)
	require.Len(t, result.Uploaded, 2)
	require.Len(t, store.uploads, 2)

	// Order of the error list follows the input order.
	require.Equal(t, []UploadError{
		{Filename: "notes.txt", Error: "File type text/plain not allowed"},
		{Filename: "huge.jpg", Error: "File too large. Maximum size is 10MB"},
	}, result.Errors)
}

func TestBatchTooMany(t *testing.T) {
	svc := newTestService(newStubStore())

	ups := make([]Upload, MaxBatchFiles+1)
	for i := range ups {
		ups[i] = upload(fmt.Sprintf("exit-%d.png", i), "image/png", "pixels")
	}
	_, err := svc.UploadBatch(context.Background(), ups)
	require.EqualError(t, err, "Maximum 10 files allowed")
}

func TestBatchHidesStoreFailures(t *testing.T) {
	store := newStubStore()
	store.failType = "image/gif"
	svc := newTestService(store)

	result, err := svc.UploadBatch(context.Background(), []Upload{
		upload("exit.png", "image/png", "pixels"),
		upload("swoop.gif", "image/gif", "frames"),
	})
	require.NoError(t, err)

	require.Equal(t, 1, result.TotalUploaded)
	require.Equal(t, []UploadError{{Filename: "swoop.gif", Error: "upload failed"}}, result.Errors)
}

func TestDeleteByURL(t *testing.T) {
	store := newStubStore()
	svc := newTestService(store)

	result, err := svc.UploadImage(context.Background(), upload("exit.png", "image/png", "pixels"))
	require.NoError(t, err)

	require.NoError(t, svc.DeleteByURL(context.Background(), result.FileURL))
	require.Empty(t, store.uploads)

	err = svc.DeleteByURL(context.Background(), "https://elsewhere.example/images/foo.png")
	require.ErrorIs(t, err, shared.ErrNotFound)
	require.EqualError(t, err, "File not found or already deleted")
}
