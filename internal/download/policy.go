package download

import "time"

const mebibyte = 1 << 20

// minAttemptTimeout is the floor of the size-derived attempt deadline.
const minAttemptTimeout = 30 * time.Second

// RetryPolicy governs how often and how long a single object download
// may run.
type RetryPolicy struct {
	// MaxAttempts caps how many times a download is tried. Values below
	// one behave like one.
	MaxAttempts int
	// Delay is the fixed pause between attempts.
	Delay time.Duration
	// Timeout overrides the per-attempt deadline. Nil derives a deadline
	// from the object size, zero disables the deadline entirely.
	Timeout *time.Duration
}

// TimeoutFor resolves the per-attempt deadline for an object of the
// given byte size, granting one second per mebibyte rounded up. Zero
// means no deadline.
func (p RetryPolicy) TimeoutFor(size int64) time.Duration {
	if p.Timeout != nil {
		return *p.Timeout
	}
	seconds := (size + mebibyte - 1) / mebibyte
	timeout := time.Duration(seconds) * time.Second
	if timeout < minAttemptTimeout {
		return minAttemptTimeout
	}
	return timeout
}
