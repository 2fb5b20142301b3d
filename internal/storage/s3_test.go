package storage

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	apperrors "usersvc/internal/errors"
)

type fakeS3 struct {
	mu      sync.Mutex
	objects map[string][]byte
	types   map[string]string
	fail    bool
}

func (f *fakeS3) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`<Error><Code>AccessDenied</Code><Message>denied</Message></Error>`))
		return
	}
	switch r.Method {
	case http.MethodPut:
		body, _ := io.ReadAll(r.Body)
		f.objects[r.URL.Path] = body
		f.types[r.URL.Path] = r.Header.Get("Content-Type")
		w.WriteHeader(http.StatusOK)
	case http.MethodDelete:
		delete(f.objects, r.URL.Path)
		w.WriteHeader(http.StatusNoContent)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func newTestStorage(t *testing.T) (*S3Storage, *fakeS3, string) {
	t.Helper()
	fake := &fakeS3{objects: map[string][]byte{}, types: map[string]string{}}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	s, err := NewS3(context.Background(), S3Config{
		Region:          "us-east-1",
		Bucket:          "avatars",
		AccessKeyID:     "AKIATEST",
		SecretAccessKey: "secret",
		Endpoint:        srv.URL,
	}, zap.NewNop())
	require.NoError(t, err)
	s.newID = func() string { return "fixed-id" }
	return s, fake, srv.URL
}

func TestS3Storage_Upload(t *testing.T) {
	s, fake, base := newTestStorage(t)

	obj, err := s.Upload(context.Background(), UploadInput{
		Body:        []byte("png-bytes"),
		Filename:    "my photo.png",
		ContentType: "image/png",
		Folder:      "avatars",
	})
	require.NoError(t, err)

	assert.Equal(t, "avatars/fixed-id-my_photo.png", obj.Key)
	assert.Equal(t, "avatars", obj.Bucket)
	assert.Equal(t, base+"/avatars/avatars/fixed-id-my_photo.png", obj.URL)

	stored := fake.objects["/avatars/avatars/fixed-id-my_photo.png"]
	assert.Equal(t, []byte("png-bytes"), stored)
	assert.Equal(t, "image/png", fake.types["/avatars/avatars/fixed-id-my_photo.png"])
}

func TestS3Storage_UploadDefaultFolder(t *testing.T) {
	s, _, _ := newTestStorage(t)

	obj, err := s.Upload(context.Background(), UploadInput{Body: []byte("x"), Filename: "../../etc/passwd"})
	require.NoError(t, err)
	assert.Equal(t, "uploads/fixed-id-passwd", obj.Key)
}

func TestS3Storage_Delete(t *testing.T) {
	s, fake, _ := newTestStorage(t)
	fake.objects["/avatars/avatars/a.png"] = []byte("x")

	require.NoError(t, s.Delete(context.Background(), "avatars/a.png"))
	assert.NotContains(t, fake.objects, "/avatars/avatars/a.png")
}

func TestS3Storage_Failures(t *testing.T) {
	s, fake, _ := newTestStorage(t)
	fake.fail = true

	_, err := s.Upload(context.Background(), UploadInput{Body: []byte("x"), Filename: "a.png"})
	var upstream *apperrors.UpstreamError
	require.ErrorAs(t, err, &upstream)
	assert.Equal(t, "uploadFile", upstream.Op)

	err = s.Delete(context.Background(), "avatars/a.png")
	require.ErrorAs(t, err, &upstream)
	assert.Equal(t, "deleteFile", upstream.Op)
}

func TestS3Storage_SignedURL(t *testing.T) {
	s, _, base := newTestStorage(t)

	raw, err := s.SignedURL(context.Background(), "avatars/a.png", 15*time.Minute)
	require.NoError(t, err)

	u, err := url.Parse(raw)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(raw, base+"/avatars/avatars/a.png"))
	assert.Equal(t, "900", u.Query().Get("X-Amz-Expires"))
	assert.NotEmpty(t, u.Query().Get("X-Amz-Signature"))
}

func TestS3Storage_KeyFromURL(t *testing.T) {
	s, _, base := newTestStorage(t)

	key, ok := s.KeyFromURL(s.PublicURL("avatars/a.png"))
	assert.True(t, ok)
	assert.Equal(t, "avatars/a.png", key)

	_, ok = s.KeyFromURL("https://elsewhere.example.com/avatars/a.png")
	assert.False(t, ok)

	_, ok = s.KeyFromURL(base + "/avatars/")
	assert.False(t, ok)
}

func TestNewS3_RequiresBucket(t *testing.T) {
	_, err := NewS3(context.Background(), S3Config{Region: "us-east-1"}, zap.NewNop())
	assert.Error(t, err)
}
