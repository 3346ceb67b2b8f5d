// Package ratelimit provides keyed "N attempts per window" limiters backed
// either by process memory or by Redis, plus a token bucket for request
// throttling
package ratelimit

import (
	"context"
	"fmt"
	"time"
)

// Limiter counts attempts per key
type Limiter interface {
	Allow(ctx context.Context, key string) (*Result, error)
	// Reset forgets every attempt recorded for key
	Reset(ctx context.Context, key string) error
}

type Result struct {
	Allowed    bool
	Remaining  int
	RetryAfter time.Duration
}

// Config is shared by every limiter implementation
type Config struct {
	// Max is the number of attempts allowed inside Window
	Max    int
	Window time.Duration
}

func (c Config) validate() error {
	if c.Max <= 0 {
		return fmt.Errorf("rate limit max must be bigger than 0, got %d", c.Max)
	}

	if c.Window <= 0 {
		return fmt.Errorf("rate limit window must be bigger than 0, got %s", c.Window)
	}

	return nil
}

// WaitMessage turns a retry delay into the text shown to users
func WaitMessage(d time.Duration) string {
	if d < time.Minute {
		secs := int(d.Round(time.Second).Seconds())
		if secs <= 1 {
			return "Please try again in 1 second."
		}

		return fmt.Sprintf("Please try again in %d seconds.", secs)
	}

	mins := int(d.Round(time.Minute).Minutes())
	if mins <= 1 {
		return "Please try again in 1 minute."
	}

	return fmt.Sprintf("Please try again in %d minutes.", mins)
}
