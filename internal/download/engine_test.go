package download

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"lfspull/internal/cache"
	"lfspull/internal/errors"
	"lfspull/internal/lfsapi"
	"lfspull/internal/pointer"
)

// sha256 of "hello"
const helloOid = "2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824"

func helloMeta() *pointer.Metadata {
	return &pointer.Metadata{
		Version: "https://git-lfs.github.com/spec/v1",
		Oid:     helloOid,
		Size:    5,
		Hash:    pointer.HashSHA256,
	}
}

func grantJSON(t *testing.T, w http.ResponseWriter, host, oid string) {
	t.Helper()
	grant := map[string]any{
		"transfer": "basic",
		"objects": []map[string]any{{
			"oid":  oid,
			"size": 5,
			"actions": map[string]any{
				"download": map[string]any{"href": "http://" + host + "/objects/" + oid},
			},
		}},
	}
	require.NoError(t, json.NewEncoder(w).Encode(grant))
}

func testEntry(t *testing.T) *cache.Entry {
	t.Helper()
	entry, err := cache.EntryFor(t.TempDir(), helloOid)
	require.NoError(t, err)
	require.NoError(t, entry.EnsureDir())
	return entry
}

func testEngine(policy RetryPolicy, progress ProgressFunc) *Engine {
	return NewEngine(lfsapi.New(zap.NewNop()), policy, 8, progress, zap.NewNop())
}

func TestTimeoutFor(t *testing.T) {
	nine := 9 * time.Second
	unlimited := time.Duration(0)

	tests := []struct {
		name   string
		policy RetryPolicy
		size   int64
		want   time.Duration
	}{
		{name: "small object hits the floor", size: 1000 * 1024, want: 30 * time.Second},
		{name: "large object scales per mebibyte", size: 200_000_000, want: 191 * time.Second},
		{name: "zero size hits the floor", size: 0, want: 30 * time.Second},
		{name: "explicit timeout wins", policy: RetryPolicy{Timeout: &nine}, size: 200_000_000, want: nine},
		{name: "explicit zero disables the deadline", policy: RetryPolicy{Timeout: &unlimited}, size: 200_000_000, want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.policy.TimeoutFor(tt.size))
		})
	}
}

func TestDownload(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/info/lfs/objects/batch":
			grantJSON(t, w, r.Host, helloOid)
		default:
			_, _ = w.Write([]byte("hello"))
		}
	}))
	defer server.Close()

	entry := testEntry(t)
	engine := testEngine(RetryPolicy{MaxAttempts: 1}, nil)

	path, err := engine.Download(context.Background(), server.URL, "", helloMeta(), entry)
	require.NoError(t, err)

	assert.Equal(t, entry.Dir, filepath.Dir(path))
	assert.True(t, strings.HasPrefix(filepath.Base(path), helloOid+"."))
	assert.True(t, strings.HasSuffix(path, ".lfstmp"))

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(content))
}

func TestDownload_ReportsProgress(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/info/lfs/objects/batch":
			grantJSON(t, w, r.Host, helloOid)
		default:
			_, _ = w.Write([]byte("hello"))
		}
	}))
	defer server.Close()

	var (
		seenOid  string
		seenSize int64
		sink     bytes.Buffer
	)
	progress := func(oid string, size int64) io.Writer {
		seenOid = oid
		seenSize = size
		return &sink
	}

	engine := testEngine(RetryPolicy{MaxAttempts: 1}, progress)
	_, err := engine.Download(context.Background(), server.URL, "", helloMeta(), testEntry(t))
	require.NoError(t, err)

	assert.Equal(t, helloOid, seenOid)
	assert.Equal(t, int64(5), seenSize)
	assert.Equal(t, "hello", sink.String())
}

func TestDownload_RetriesThenSucceeds(t *testing.T) {
	var batchCalls atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/info/lfs/objects/batch":
			if batchCalls.Add(1) < 3 {
				w.WriteHeader(http.StatusInternalServerError)
				return
			}
			grantJSON(t, w, r.Host, helloOid)
		default:
			_, _ = w.Write([]byte("hello"))
		}
	}))
	defer server.Close()

	engine := testEngine(RetryPolicy{MaxAttempts: 3, Delay: time.Millisecond}, nil)
	path, err := engine.Download(context.Background(), server.URL, "", helloMeta(), testEntry(t))
	require.NoError(t, err)
	assert.Equal(t, int64(3), batchCalls.Load())

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(content))
}

func TestDownload_AccessDeniedAbortsRetrying(t *testing.T) {
	var batchCalls atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		batchCalls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	engine := testEngine(RetryPolicy{MaxAttempts: 5, Delay: time.Millisecond}, nil)
	_, err := engine.Download(context.Background(), server.URL, "", helloMeta(), testEntry(t))
	require.Error(t, err)
	assert.Equal(t, errors.AccessDenied, errors.KindOf(err))
	assert.Equal(t, int64(1), batchCalls.Load())
}

func TestDownload_ExhaustsAttempts(t *testing.T) {
	var batchCalls atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		batchCalls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	engine := testEngine(RetryPolicy{MaxAttempts: 2, Delay: time.Millisecond}, nil)
	_, err := engine.Download(context.Background(), server.URL, "", helloMeta(), testEntry(t))
	require.Error(t, err)
	assert.Equal(t, int64(2), batchCalls.Load())

	var typed *errors.Error
	require.ErrorAs(t, err, &typed)
	assert.Equal(t, errors.ReachedMaxDownloadAttempt, typed.Kind)
	assert.Equal(t, errors.ResponseNotOkay, errors.KindOf(typed.Err))
}

func TestDownload_TimeoutCountsAsFailedAttempt(t *testing.T) {
	var batchCalls atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/info/lfs/objects/batch":
			batchCalls.Add(1)
			grantJSON(t, w, r.Host, helloOid)
		default:
			// stall the object fetch until the attempt deadline cancels it
			select {
			case <-r.Context().Done():
			case <-time.After(5 * time.Second):
			}
		}
	}))
	defer server.Close()

	timeout := 500 * time.Millisecond
	entry := testEntry(t)
	engine := testEngine(RetryPolicy{MaxAttempts: 2, Delay: time.Millisecond, Timeout: &timeout}, nil)

	_, err := engine.Download(context.Background(), server.URL, "", helloMeta(), entry)
	require.Error(t, err)
	assert.Equal(t, int64(2), batchCalls.Load())

	var typed *errors.Error
	require.ErrorAs(t, err, &typed)
	assert.Equal(t, errors.ReachedMaxDownloadAttempt, typed.Kind)
	assert.Equal(t, errors.Request, errors.KindOf(typed.Err))

	leftovers, err := os.ReadDir(entry.Dir)
	require.NoError(t, err)
	assert.Empty(t, leftovers)
}

func TestDownload_ChecksumMismatchLeavesNothingBehind(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/info/lfs/objects/batch":
			grantJSON(t, w, r.Host, helloOid)
		default:
			_, _ = w.Write([]byte("tampered content"))
		}
	}))
	defer server.Close()

	entry := testEntry(t)
	engine := testEngine(RetryPolicy{MaxAttempts: 1}, nil)

	_, err := engine.Download(context.Background(), server.URL, "", helloMeta(), entry)
	require.Error(t, err)

	var typed *errors.Error
	require.ErrorAs(t, err, &typed)
	assert.Equal(t, errors.ReachedMaxDownloadAttempt, typed.Kind)
	assert.Equal(t, errors.ChecksumMismatch, errors.KindOf(typed.Err))

	leftovers, err := os.ReadDir(entry.Dir)
	require.NoError(t, err)
	assert.Empty(t, leftovers)
}

func TestDownload_RejectsNonSha256Pointer(t *testing.T) {
	var batchCalls atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		batchCalls.Add(1)
	}))
	defer server.Close()

	meta := helloMeta()
	meta.Hash = pointer.HashOther

	engine := testEngine(RetryPolicy{MaxAttempts: 3}, nil)
	_, err := engine.Download(context.Background(), server.URL, "", meta, testEntry(t))
	require.Error(t, err)
	assert.Equal(t, errors.InvalidFormat, errors.KindOf(err))
	assert.Zero(t, batchCalls.Load())
}

func TestDownload_BadOidFromServer(t *testing.T) {
	var batchCalls atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		batchCalls.Add(1)
		grantJSON(t, w, r.Host, "zz-not-hex")
	}))
	defer server.Close()

	engine := testEngine(RetryPolicy{MaxAttempts: 3, Delay: time.Millisecond}, nil)
	_, err := engine.Download(context.Background(), server.URL, "", helloMeta(), testEntry(t))
	require.Error(t, err)
	assert.Equal(t, errors.OidNotValidHex, errors.KindOf(err))
	assert.Equal(t, int64(1), batchCalls.Load())
}
