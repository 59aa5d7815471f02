// Package lfspull pulls git-lfs pointer files: it resolves the owning
// repository, negotiates with the lfs server behind the repository's
// remote and replaces pointers with their real content, backed by a
// content-addressed cache under the repository's git directory.
package lfspull

import (
	"context"

	"go.uber.org/zap"

	"lfspull/internal/download"
	"lfspull/internal/lfsapi"
	"lfspull/internal/logging"
	"lfspull/internal/pull"
	"lfspull/internal/watch"
)

// FilePullMode tells how a pulled file ended up with its content.
type FilePullMode = pull.FilePullMode

const (
	DownloadedFromRemote = pull.DownloadedFromRemote
	UsedLocalCache       = pull.UsedLocalCache
	WasAlreadyPresent    = pull.WasAlreadyPresent
)

// PullResult pairs one worktree file with the way its content arrived.
type PullResult = pull.PullResult

// PullFile pulls the pointer file at path in place. Files that are no
// pointer are left untouched and reported as already present.
func PullFile(ctx context.Context, path string, opts ...Option) (FilePullMode, error) {
	cfg := newConfig(opts)
	puller, _, err := assemble(cfg)
	if err != nil {
		return 0, err
	}
	return puller.PullOne(ctx, path, cfg.accessToken)
}

// PullGlob pulls every file matching pattern, which may use ** to cross
// directory levels. The first failing file aborts the run.
func PullGlob(ctx context.Context, pattern string, opts ...Option) ([]PullResult, error) {
	cfg := newConfig(opts)
	puller, _, err := assemble(cfg)
	if err != nil {
		return nil, err
	}
	return puller.PullGlob(ctx, pattern, cfg.accessToken)
}

// Watch keeps the worktree at root pulled until ctx is cancelled:
// pointer files that appear or change are replaced with their content
// once writes to them settle.
func Watch(ctx context.Context, root string, opts ...Option) error {
	cfg := newConfig(opts)
	puller, logger, err := assemble(cfg)
	if err != nil {
		return err
	}

	watcher, err := watch.NewWatcher(root, puller, cfg.accessToken, cfg.debounce, logger)
	if err != nil {
		return err
	}
	defer watcher.Close()
	return watcher.Watch(ctx)
}

// assemble wires client, download engine and puller for one operation,
// all tagged with the same fresh pull id.
func assemble(cfg *config) (*pull.Puller, *zap.Logger, error) {
	logger := logging.WithPullID(cfg.logger)
	client := lfsapi.NewWithClient(cfg.httpClient, logger)
	policy := download.RetryPolicy{
		MaxAttempts: cfg.maxAttempts,
		Delay:       cfg.delay,
		Timeout:     cfg.timeout,
	}

	var progress download.ProgressFunc
	if cfg.progress != nil {
		progress = download.ProgressFunc(cfg.progress)
	}
	engine := download.NewEngine(client, policy, cfg.randomizerBytes, progress, logger)
	puller, err := pull.NewPuller(engine, logger)
	return puller, logger, err
}
