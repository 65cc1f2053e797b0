package engine

import (
	"log/slog"
)

type config struct {
	logger  *slog.Logger
	ids     IDGenerator
	journal Journal
	clock   *Clock
}

// Option configures a Session or a Manager.
type Option func(*config)

// WithLogger sets the structured logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(c *config) {
		c.logger = l
	}
}

// WithIDGenerator sets the session id source. Defaults to UUIDv7Generator.
func WithIDGenerator(g IDGenerator) Option {
	return func(c *config) {
		c.ids = g
	}
}

// WithJournal records every open, set, write and close.
func WithJournal(j Journal) Option {
	return func(c *config) {
		c.journal = j
	}
}

// WithClock sets the clock stamping journal events. A Manager passes its
// own clock to every session it opens.
func WithClock(clk *Clock) Option {
	return func(c *config) {
		c.clock = clk
	}
}

func newConfig(opts []Option) config {
	c := config{}
	for _, opt := range opts {
		opt(&c)
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	if c.ids == nil {
		c.ids = UUIDv7Generator{}
	}
	if c.clock == nil {
		c.clock = NewClock()
	}
	return c
}
