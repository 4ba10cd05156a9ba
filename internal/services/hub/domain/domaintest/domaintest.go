// Package domaintest provides deterministic collaborators for domain tests.
package domaintest

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/automatehub/automatehub/internal/platform/events"
	"github.com/automatehub/automatehub/internal/services/hub/domain"
)

// ErrIDsExhausted is returned when a fixed ID sequence runs out.
var ErrIDsExhausted = errors.New("id sequence exhausted")

// Clock is a settable test clock.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

// NewClock returns a clock frozen at now.
func NewClock(now time.Time) *Clock {
	return &Clock{now: now}
}

// Now returns the frozen time.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward.
func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// SequentialIDs returns ids in order, then fails.
func SequentialIDs(ids ...string) func() (string, error) {
	queue := append([]string(nil), ids...)
	var mu sync.Mutex
	index := 0
	return func() (string, error) {
		mu.Lock()
		defer mu.Unlock()
		if index >= len(queue) {
			return "", ErrIDsExhausted
		}
		value := queue[index]
		index++
		return value, nil
	}
}

// PrefixIDs returns prefix-1, prefix-2, ... without limit.
func PrefixIDs(prefix string) func() (string, error) {
	var mu sync.Mutex
	n := 0
	return func() (string, error) {
		mu.Lock()
		defer mu.Unlock()
		n++
		return fmt.Sprintf("%s-%d", prefix, n), nil
	}
}

// Deps returns domain deps on clock with prefixed IDs and a recorder.
func Deps(clock *Clock, idPrefix string) (domain.Deps, *events.Recorder) {
	recorder := &events.Recorder{}
	return domain.Deps{
		Clock:     clock.Now,
		NewID:     PrefixIDs(idPrefix),
		Publisher: recorder,
	}.WithDefaults(), recorder
}
