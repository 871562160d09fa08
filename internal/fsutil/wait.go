// Package fsutil holds filesystem helpers shared by engines and futures.
package fsutil

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/sethvargo/go-retry"
	"github.com/spf13/afero"
)

// Defaults for waiting on artifacts written by another process or host.
const (
	DefaultTimeout  = 60 * time.Second
	DefaultWaitStep = 1 * time.Second
)

var errNotYet = errors.New("file does not exist yet")

// Poll configures WaitUntilExists. Zero fields take the defaults.
type Poll struct {
	Timeout time.Duration
	Step    time.Duration
}

func (p Poll) withDefaults() Poll {
	if p.Timeout <= 0 {
		p.Timeout = DefaultTimeout
	}
	if p.Step <= 0 {
		p.Step = DefaultWaitStep
	}
	return p
}

// WaitUntilExists polls fs until path exists as a regular file. The wait
// step starts at p.Step and doubles after each failed check; polling stops
// once p.Timeout has elapsed or ctx is done. Shared filesystems (NFS and
// similar) may expose a file written on another host only after a delay.
func WaitUntilExists(ctx context.Context, fs afero.Fs, path string, p Poll, logger *slog.Logger) bool {
	p = p.withDefaults()
	start := time.Now()

	backoff := retry.WithMaxDuration(p.Timeout, retry.NewExponential(p.Step))
	err := retry.Do(ctx, backoff, func(_ context.Context) error {
		info, err := fs.Stat(path)
		if err == nil && info.Mode().IsRegular() {
			return nil
		}
		if logger != nil {
			logger.Debug("waiting for disk sync",
				"path", path,
				"elapsed_ms", time.Since(start).Milliseconds(),
			)
		}
		return retry.RetryableError(errNotYet)
	})
	if err != nil {
		if logger != nil {
			logger.Warn("file system wait timed out",
				"path", path,
				"timeout", p.Timeout.String(),
				"error", err,
			)
		}
		return false
	}
	return true
}
