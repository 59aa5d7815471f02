// Package cache lays out and mutates the content-addressed object cache
// shared with git-lfs proper. Entries are immutable once committed;
// concurrent writers are tolerated through optimistic existence checks
// rather than locks.
package cache

import (
	"crypto/rand"
	"encoding/hex"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"lfspull/internal/errors"
)

const tempSuffix = ".lfstmp"

// Entry is the on-disk location of one lfs object:
// <root>/lfs/objects/<oid[0:2]>/<oid[2:4]>/<oid>. The two shard levels
// bound directory fan-out. Temp files live next to the entry so the
// final rename stays on one filesystem.
type Entry struct {
	Oid  string
	Dir  string
	Path string
}

// EntryFor computes the cache entry for oid below root.
func EntryFor(root, oid string) (*Entry, error) {
	if len(oid) < 4 {
		return nil, errors.New(errors.InvalidFormat, "oid too short for cache sharding: "+oid)
	}
	dir := filepath.Join(root, "lfs", "objects", oid[0:2], oid[2:4])
	return &Entry{
		Oid:  oid,
		Dir:  dir,
		Path: filepath.Join(dir, oid),
	}, nil
}

// Exists reports whether the entry has been committed. An existing
// entry is treated as valid and is never re-verified.
func (e *Entry) Exists() bool {
	info, err := os.Stat(e.Path)
	return err == nil && !info.IsDir()
}

// EnsureDir creates the shard directory and all missing ancestors.
func (e *Entry) EnsureDir() error {
	if err := os.MkdirAll(e.Dir, 0o755); err != nil {
		return errors.Wrap(errors.DirectoryTraversal, "could not create lfs cache directory", err)
	}
	return nil
}

// NewTempFile creates the private download target for this entry inside
// the shard directory. With randomizerBytes > 0 the name gains a random
// hex infix so concurrent invocations cannot collide; without one, a
// stale temp file from an earlier crash is removed first.
func (e *Entry) NewTempFile(randomizerBytes int) (*os.File, error) {
	name := e.Oid + tempSuffix
	if randomizerBytes > 0 {
		infix := make([]byte, randomizerBytes)
		if _, err := rand.Read(infix); err != nil {
			return nil, errors.Wrap(errors.TempFile, "could not draw randomizer bytes", err)
		}
		name = e.Oid + "." + hex.EncodeToString(infix) + tempSuffix
	} else {
		stale := filepath.Join(e.Dir, name)
		if _, err := os.Stat(stale); err == nil {
			if err := os.Remove(stale); err != nil {
				return nil, errors.FileIO(stale, err)
			}
		}
	}

	f, err := os.OpenFile(filepath.Join(e.Dir, name), os.O_RDWR|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return nil, errors.Wrap(errors.TempFile, "could not create temp file in "+e.Dir, err)
	}
	return f, nil
}

// Publish commits a verified temp file as the cache entry. When another
// process has materialized the entry in the meantime, the fresh temp
// file is discarded and the existing entry stays canonical.
func (e *Entry) Publish(tempPath string, logger *zap.Logger) error {
	if e.Exists() {
		logger.Info("cache entry already written by another process",
			zap.String("entry", e.Path))
		if err := os.Remove(tempPath); err != nil && !os.IsNotExist(err) {
			logger.Warn("could not discard temp file",
				zap.String("path", tempPath),
				zap.Error(err))
		}
		return nil
	}

	if err := os.Rename(tempPath, e.Path); err != nil {
		logger.Error("could not rename temp file into cache",
			zap.String("from", tempPath),
			zap.String("to", e.Path),
			zap.Error(err))
		return errors.FileIO(tempPath, err)
	}
	return nil
}

// Materialize replaces the pointer file at target with a hard link to
// the cache entry. The working-tree file then shares its inode with the
// cache, so further pulls of the same object cost no disk space.
func Materialize(entryPath, target string) error {
	if err := os.Remove(target); err != nil {
		return errors.FileIO(target, err)
	}
	if err := os.Link(entryPath, target); err != nil {
		return errors.FileIO(entryPath, err)
	}
	return nil
}
