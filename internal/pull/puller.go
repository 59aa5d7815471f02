// Package pull turns pointer files back into real content: discriminate,
// parse, resolve the repository, then serve from cache or download.
package pull

import (
	"context"
	"path/filepath"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"

	"lfspull/internal/cache"
	"lfspull/internal/download"
	"lfspull/internal/errors"
	"lfspull/internal/gitrepo"
	"lfspull/internal/pointer"
)

// repoCacheSize bounds the memoized repository resolutions. Glob pulls
// touch the same few directories over and over.
const repoCacheSize = 64

type Puller struct {
	engine *download.Engine
	logger *zap.Logger
	repos  *lru.Cache[string, repoContext]
}

func NewPuller(engine *download.Engine, logger *zap.Logger) (*Puller, error) {
	repos, err := lru.New[string, repoContext](repoCacheSize)
	if err != nil {
		return nil, err
	}
	return &Puller{
		engine: engine,
		logger: logger,
		repos:  repos,
	}, nil
}

// PullOne replaces the pointer file at path with its real content.
// Files that are no pointer are left alone. The cache is consulted
// before the remote, and a fresh download feeds the cache first so the
// worktree file is always a hard link onto a verified entry.
func (p *Puller) PullOne(ctx context.Context, path, token string) (FilePullMode, error) {
	logger := p.logger.With(zap.String("file", path))

	isPointer, err := pointer.IsPointerFile(path)
	if err != nil {
		return 0, err
	}
	if !isPointer {
		logger.Debug("file already pulled")
		return WasAlreadyPresent, nil
	}

	meta, err := pointer.ParseFile(path)
	if err != nil {
		return 0, err
	}

	repo, err := p.resolveRepo(path, logger)
	if err != nil {
		return 0, err
	}

	entry, err := cache.EntryFor(repo.lfsRoot, meta.Oid)
	if err != nil {
		return 0, err
	}

	if entry.Exists() {
		logger.Debug("cache hit", zap.String("oid", meta.Oid))
		if err := cache.Materialize(entry.Path, path); err != nil {
			return 0, err
		}
		return UsedLocalCache, nil
	}

	if err := entry.EnsureDir(); err != nil {
		return 0, err
	}
	tempPath, err := p.engine.Download(ctx, repo.remote, token, meta, entry)
	if err != nil {
		return 0, err
	}
	if err := entry.Publish(tempPath, logger); err != nil {
		return 0, err
	}
	if err := cache.Materialize(entry.Path, path); err != nil {
		return 0, err
	}

	logger.Info("downloaded object",
		zap.String("oid", meta.Oid),
		zap.Int64("size", meta.Size))
	return DownloadedFromRemote, nil
}

// resolveRepo walks from the file up to its repository and derives the
// lfs endpoint and cache root, memoized per directory.
func (p *Puller) resolveRepo(path string, logger *zap.Logger) (repoContext, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return repoContext{}, errors.FileIO(path, err)
	}
	dir := filepath.Dir(abs)
	if cached, ok := p.repos.Get(dir); ok {
		return cached, nil
	}

	repo, err := gitrepo.Resolve(abs)
	if err != nil {
		return repoContext{}, err
	}
	rawRemote, err := repo.RemoteURL()
	if err != nil {
		return repoContext{}, err
	}
	remote, err := gitrepo.NormalizeRemote(rawRemote)
	if err != nil {
		return repoContext{}, err
	}

	resolved := repoContext{
		remote:  remote,
		lfsRoot: repo.LFSRoot(logger),
	}
	p.repos.Add(dir, resolved)
	return resolved, nil
}
