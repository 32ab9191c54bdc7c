// Package counter implements the read-increment-write cycle of the view counter.
//
// There is no locking and no compare-and-swap: two invocations that read the
// same value both write value+1 and one increment is lost. That is accepted
// for a visit counter.
package counter

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

// DefaultTimeout bounds each store read and write.
const DefaultTimeout = 5 * time.Second

// ErrNotPersisted wraps the store error when an incremented count could not be written.
var ErrNotPersisted = errors.New("view count not persisted")

// Store is the part of the backing store the counter needs.
type Store interface {
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Set(ctx context.Context, key, value string) error
}

type Counter struct {
	store   Store
	key     string
	timeout time.Duration
	logger  *zap.Logger
}

// New returns a Counter for key. A non-positive timeout means DefaultTimeout
// and a nil logger discards logs.
func New(store Store, key string, timeout time.Duration, logger *zap.Logger) *Counter {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Counter{
		store:   store,
		key:     key,
		timeout: timeout,
		logger:  logger.With(zap.String("key", key)),
	}
}

// Parse reads a stored count the way the site always has: surrounding
// whitespace is ignored and the leading run of digits is the value. Anything
// without leading digits, or too large for an int64, is 0.
func Parse(s string) int64 {
	s = strings.TrimSpace(s)

	end := 0
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}

	n, err := strconv.ParseInt(s[:end], 10, 64)
	if err != nil {
		return 0
	}
	return n
}

func (c *Counter) read(ctx context.Context) (int64, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	v, ok, err := c.store.Get(ctx, c.key)
	if err != nil || !ok {
		return 0, false, err
	}
	return Parse(v), true, nil
}

func (c *Counter) write(ctx context.Context, n int64) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	return c.store.Set(ctx, c.key, strconv.FormatInt(n, 10))
}

// Increment adds one to the stored count and returns the new value.
//
// A failed or timed out read counts as 0 and is only logged. A failed write is
// returned wrapped in ErrNotPersisted, but the returned count is still the
// incremented value.
func (c *Counter) Increment(ctx context.Context) (int64, error) {
	current, ok, err := c.read(ctx)
	switch {
	case err != nil:
		c.logger.Warn("Failed to read view count, starting from 0", zap.Error(err))
	case !ok:
		c.logger.Info("View count does not exist yet, starting from 0")
	default:
		c.logger.Debug("Retrieved existing view count", zap.Int64("count", current))
	}

	next := current + 1
	if err = c.write(ctx, next); err != nil {
		return next, fmt.Errorf("%w: %w", ErrNotPersisted, err)
	}

	c.logger.Debug("Saved new view count", zap.Int64("count", next))
	return next, nil
}

// Current returns the stored count without changing it. A missing or
// unparseable value is 0, store errors are returned.
func (c *Counter) Current(ctx context.Context) (int64, error) {
	n, _, err := c.read(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to read view count: %w", err)
	}
	return n, nil
}

// Set overwrites the stored count with n.
func (c *Counter) Set(ctx context.Context, n int64) error {
	if n < 0 {
		return fmt.Errorf("view count must not be negative, got %d", n)
	}
	if err := c.write(ctx, n); err != nil {
		return fmt.Errorf("failed to write view count: %w", err)
	}
	return nil
}
