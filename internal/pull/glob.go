package pull

import (
	"context"

	"github.com/bmatcuk/doublestar/v4"
	"go.uber.org/zap"

	"lfspull/internal/errors"
)

// PullGlob pulls every file matching pattern, which may use ** to cross
// directory levels. Matches are pulled one after another and the first
// failure aborts the run.
func (p *Puller) PullGlob(ctx context.Context, pattern, token string) ([]PullResult, error) {
	matches, err := doublestar.FilepathGlob(pattern, doublestar.WithFilesOnly())
	if err != nil {
		return nil, errors.Wrap(errors.DirectoryTraversal, "could not expand glob pattern: "+pattern, err)
	}
	p.logger.Debug("expanded glob pattern",
		zap.String("pattern", pattern),
		zap.Int("matches", len(matches)))

	results := make([]PullResult, 0, len(matches))
	for _, match := range matches {
		mode, err := p.PullOne(ctx, match, token)
		if err != nil {
			return nil, err
		}
		results = append(results, PullResult{Path: match, Mode: mode})
	}
	return results, nil
}
