package blob

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/heartmarshall/labsim/internal/config"
	"github.com/heartmarshall/labsim/internal/domain"
)

// fakeS3 is a path-style in-memory S3 subset: PUT, GET and DELETE.
type fakeS3 struct {
	mu      sync.Mutex
	objects map[string][]byte
	types   map[string]string
}

func newFakeS3() *fakeS3 {
	return &fakeS3{objects: make(map[string][]byte), types: make(map[string]string)}
}

func (f *fakeS3) RoundTrip(req *http.Request) (*http.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	parts := strings.SplitN(strings.TrimPrefix(req.URL.Path, "/"), "/", 2)
	key := ""
	if len(parts) == 2 {
		key = parts[1]
	}
	empty := io.NopCloser(bytes.NewReader(nil))

	switch req.Method {
	case http.MethodPut:
		body, _ := io.ReadAll(req.Body)
		f.objects[key] = body
		f.types[key] = req.Header.Get("Content-Type")
		return &http.Response{StatusCode: http.StatusOK, Body: empty, Header: http.Header{"ETag": {`"etag"`}}}, nil
	case http.MethodGet:
		body, ok := f.objects[key]
		if !ok {
			return &http.Response{
				StatusCode: http.StatusNotFound,
				Body:       io.NopCloser(strings.NewReader(`<?xml version="1.0"?><Error><Code>NoSuchKey</Code><Message>missing</Message></Error>`)),
				Header:     http.Header{"Content-Type": {"application/xml"}},
			}, nil
		}
		return &http.Response{StatusCode: http.StatusOK, Body: io.NopCloser(bytes.NewReader(body)), Header: http.Header{
			"Content-Type":   {f.types[key]},
			"Content-Length": {strconv.Itoa(len(body))},
		}}, nil
	case http.MethodDelete:
		delete(f.objects, key)
		return &http.Response{StatusCode: http.StatusNoContent, Body: empty, Header: http.Header{}}, nil
	}
	return &http.Response{StatusCode: http.StatusNotImplemented, Body: empty, Header: http.Header{}}, nil
}

func newTestS3(t *testing.T, publicURL string) (*S3, *fakeS3) {
	t.Helper()
	fake := newFakeS3()
	store, err := NewS3(context.Background(), S3Config{
		Region:          "us-east-1",
		Bucket:          "labsim-test",
		Endpoint:        "https://mock.s3.local",
		AccessKeyID:     "AKIA",
		SecretAccessKey: "SECRET",
		PathStyle:       true,
		PublicBaseURL:   publicURL,
		HTTPClient:      &http.Client{Transport: fake},
	})
	require.NoError(t, err)
	return store, fake
}

// ---------------------------------------------------------------------------
// Memory
// ---------------------------------------------------------------------------

func TestMemory_PutGetDelete(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	m := NewMemory("")

	require.NoError(t, m.Put(ctx, QRCodeKey("SAMPLE-1"), []byte{0x89, 'P', 'N', 'G'}, "image/png"))

	obj, err := m.Get(ctx, "qr-codes/SAMPLE-1.png")
	require.NoError(t, err)
	assert.Equal(t, "image/png", obj.ContentType)
	assert.Equal(t, []byte{0x89, 'P', 'N', 'G'}, obj.Data)

	url, err := m.URL(ctx, obj.Key)
	require.NoError(t, err)
	assert.Equal(t, "memory://blobs/qr-codes/SAMPLE-1.png", url)

	require.NoError(t, m.Delete(ctx, obj.Key))
	_, err = m.Get(ctx, obj.Key)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestMemory_RejectsBadKeys(t *testing.T) {
	t.Parallel()
	m := NewMemory("https://cdn.example.com/")

	for _, key := range []string{"", "/abs", "a/../b"} {
		err := m.Put(context.Background(), key, nil, "")
		assert.ErrorIs(t, err, domain.ErrValidation, "key %q", key)
	}
	url, err := m.URL(context.Background(), "qr-codes/x.png")
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.com/qr-codes/x.png", url)
}

// ---------------------------------------------------------------------------
// S3
// ---------------------------------------------------------------------------

func TestS3_PutGetDelete(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store, fake := newTestS3(t, "")

	require.NoError(t, store.Put(ctx, "qr-codes/S1.png", []byte("png-bytes"), "image/png"))
	assert.Equal(t, []byte("png-bytes"), fake.objects["qr-codes/S1.png"])

	obj, err := store.Get(ctx, "qr-codes/S1.png")
	require.NoError(t, err)
	assert.Equal(t, []byte("png-bytes"), obj.Data)
	assert.Equal(t, "image/png", obj.ContentType)

	require.NoError(t, store.Delete(ctx, "qr-codes/S1.png"))
	_, err = store.Get(ctx, "qr-codes/S1.png")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestS3_URL(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	presigned, _ := newTestS3(t, "")
	url, err := presigned.URL(ctx, "qr-codes/S1.png")
	require.NoError(t, err)
	assert.Contains(t, url, "https://mock.s3.local/labsim-test/qr-codes/S1.png")
	assert.Contains(t, url, "X-Amz-Signature=")

	public, _ := newTestS3(t, "https://cdn.example.com")
	url, err = public.URL(ctx, "qr-codes/S1.png")
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.com/qr-codes/S1.png", url)
}

func TestOpen(t *testing.T) {
	t.Parallel()

	store, err := Open(context.Background(), config.BlobConfig{Driver: "memory"})
	require.NoError(t, err)
	assert.Equal(t, DriverMemory, store.Driver())

	_, err = Open(context.Background(), config.BlobConfig{Driver: "s3"})
	assert.Error(t, err, "bucket is required")

	_, err = Open(context.Background(), config.BlobConfig{Driver: "ftp"})
	assert.Error(t, err)
}
