package output

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeS3 records PUT requests and answers them with 200
type fakeS3 struct {
	mu    sync.Mutex
	paths []string
}

func (f *fakeS3) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	f.mu.Lock()
	f.paths = append(f.paths, r.URL.Path)
	f.mu.Unlock()
	w.WriteHeader(http.StatusOK)
}

func newTestS3Sink(t *testing.T, endpoint string, keepLocal bool) *S3Sink {
	t.Helper()
	sink, err := NewS3Sink(context.Background(), t.TempDir(), S3Config{
		Bucket:          "clips",
		Region:          "us-east-1",
		Prefix:          "/runs/today/",
		Endpoint:        endpoint,
		AccessKeyID:     "test-access-key",
		SecretAccessKey: "test-secret-key",
		KeepLocal:       keepLocal,
	})
	require.NoError(t, err)
	return sink
}

func TestNewS3Sink_RequiresBucket(t *testing.T) {
	_, err := NewS3Sink(context.Background(), t.TempDir(), S3Config{Region: "us-east-1"})
	assert.Error(t, err)
}

func TestS3Sink_ObjectKey(t *testing.T) {
	sink := newTestS3Sink(t, "http://localhost:4566", false)

	assert.Equal(t, "runs/today/song_000.wav", sink.ObjectKey("song_000.wav"))
	assert.Equal(t, "runs/today/song_000.wav", sink.ObjectKey(filepath.Join("in", "song_000.wav")))
}

func TestS3Sink_WriteUploadsAndCleansUp(t *testing.T) {
	fake := &fakeS3{}
	server := httptest.NewServer(fake)
	defer server.Close()

	sink := newTestS3Sink(t, server.URL, false)

	url, err := sink.Write(context.Background(), "song_003.wav", testClip(400))
	require.NoError(t, err)

	assert.Equal(t, server.URL+"/clips/runs/today/song_003.wav", url)
	require.Len(t, fake.paths, 1)
	assert.Equal(t, "/clips/runs/today/song_003.wav", fake.paths[0])

	entries, err := os.ReadDir(sink.Root())
	require.NoError(t, err)
	assert.Empty(t, entries, "staged file is removed after upload")
}

func TestS3Sink_KeepLocal(t *testing.T) {
	server := httptest.NewServer(&fakeS3{})
	defer server.Close()

	sink := newTestS3Sink(t, server.URL, true)

	_, err := sink.Write(context.Background(), "song_000.wav", testClip(400))
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(sink.Root(), "song_000.wav"))
}

func TestS3Sink_UploadFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	sink := newTestS3Sink(t, server.URL, false)

	_, err := sink.Write(context.Background(), "song_000.wav", testClip(400))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "upload runs/today/song_000.wav to S3")

	entries, err := os.ReadDir(sink.Root())
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestS3Sink_DefaultURL(t *testing.T) {
	sink := newTestS3Sink(t, "", false)
	assert.Equal(t, "https://clips.s3.us-east-1.amazonaws.com/runs/today/a.wav", sink.objectURL("runs/today/a.wav"))
}
