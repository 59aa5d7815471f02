// Package download streams lfs objects into cache temp files with
// retries, per-attempt deadlines and checksum verification.
package download

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"
	"time"

	"go.uber.org/zap"

	"lfspull/internal/cache"
	"lfspull/internal/errors"
	"lfspull/internal/lfsapi"
	"lfspull/internal/pointer"
)

const chunkSize = 256 * 1024

// ProgressFunc hands out a progress sink for one object download. A nil
// func or a nil writer disables reporting.
type ProgressFunc func(oid string, size int64) io.Writer

// Engine downloads single lfs objects into temp files next to their
// future cache entries. Publishing the entry is the caller's business.
type Engine struct {
	client          *lfsapi.Client
	policy          RetryPolicy
	randomizerBytes int
	progress        ProgressFunc
	logger          *zap.Logger
}

func NewEngine(client *lfsapi.Client, policy RetryPolicy, randomizerBytes int, progress ProgressFunc, logger *zap.Logger) *Engine {
	return &Engine{
		client:          client,
		policy:          policy,
		randomizerBytes: randomizerBytes,
		progress:        progress,
		logger:          logger,
	}
}

// Download fetches the object described by meta into a fresh temp file
// inside the entry's cache directory and returns the temp path once the
// checksum matched. Transient failures are retried per the policy,
// denied access aborts immediately.
func (e *Engine) Download(ctx context.Context, remote, token string, meta *pointer.Metadata, entry *cache.Entry) (string, error) {
	if meta.Hash != pointer.HashSHA256 {
		return "", errors.New(errors.InvalidFormat, "only sha256 object ids are supported")
	}

	attempts := e.policy.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		path, err := e.attempt(ctx, remote, token, meta, entry)
		if err == nil {
			return path, nil
		}
		if errors.Is(err, errors.AccessDenied) {
			return "", err
		}
		if !errors.Retryable(err) {
			return "", err
		}
		lastErr = err

		if attempt < attempts {
			e.logger.Warn("download attempt failed",
				zap.String("oid", meta.Oid),
				zap.Int("attempt", attempt),
				zap.Error(err))
			select {
			case <-time.After(e.policy.Delay):
			case <-ctx.Done():
				return "", errors.Wrap(errors.Request, "download aborted between attempts", ctx.Err())
			}
		}
	}
	return "", errors.Wrap(errors.ReachedMaxDownloadAttempt, "reached maximum number of download attempts", lastErr)
}

func (e *Engine) attempt(ctx context.Context, remote, token string, meta *pointer.Metadata, entry *cache.Entry) (string, error) {
	attemptCtx := ctx
	if timeout := e.policy.TimeoutFor(meta.Size); timeout > 0 {
		var cancel context.CancelFunc
		attemptCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	object, action, err := e.client.Negotiate(attemptCtx, remote, token, lfsapi.BatchObject{Oid: meta.Oid, Size: meta.Size})
	if err != nil {
		return "", err
	}

	// the downloaded bytes must match what the server granted, not what
	// the pointer claimed
	want, err := hex.DecodeString(object.Oid)
	if err != nil {
		return "", errors.Wrap(errors.OidNotValidHex, "oid from batch response is not valid hex: "+object.Oid, err)
	}

	body, err := e.client.Fetch(attemptCtx, action, token)
	if err != nil {
		return "", err
	}
	defer body.Close()

	tmp, err := entry.NewTempFile(e.randomizerBytes)
	if err != nil {
		return "", err
	}

	if err := e.stream(body, tmp, want, object.Size, meta.Oid); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", errors.FileIO(tmp.Name(), err)
	}
	return tmp.Name(), nil
}

// stream copies the response body into the temp file, hashing as it
// goes, and rejects the result when the digest differs from want.
func (e *Engine) stream(body io.Reader, tmp *os.File, want []byte, size int64, oid string) error {
	hasher := sha256.New()
	var sink io.Writer
	if e.progress != nil {
		sink = e.progress(oid, size)
	}

	buf := make([]byte, chunkSize)
	for {
		n, readErr := body.Read(buf)
		if n > 0 {
			if _, writeErr := tmp.Write(buf[:n]); writeErr != nil {
				return errors.FileIO(tmp.Name(), writeErr)
			}
			hasher.Write(buf[:n])
			if sink != nil {
				_, _ = sink.Write(buf[:n])
			}
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			return errors.Wrap(errors.Request, "download stream broke", readErr)
		}
	}

	if !bytes.Equal(hasher.Sum(nil), want) {
		e.logger.Error("checksum mismatch on downloaded object", zap.String("oid", oid))
		return errors.New(errors.ChecksumMismatch, "downloaded bytes do not match the negotiated oid")
	}
	return nil
}
