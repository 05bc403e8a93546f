package heap

import "go.uber.org/zap"

const defaultCapacity = 64

type config struct {
	logger    *zap.Logger
	observers []Observer
	capacity  int
}

// Option configures a Heap.
type Option func(*config)

// WithLogger sets the logger used for collection and diagnostic messages.
func WithLogger(l *zap.Logger) Option {
	return func(c *config) {
		c.logger = l
	}
}

// WithInitialCapacity presizes the object table.
func WithInitialCapacity(n int) Option {
	return func(c *config) {
		c.capacity = n
	}
}

// WithObserver subscribes o before the heap is returned.
func WithObserver(o Observer) Option {
	return func(c *config) {
		c.observers = append(c.observers, o)
	}
}

func newConfig(opts []Option) config {
	c := config{capacity: defaultCapacity}
	for _, opt := range opts {
		opt(&c)
	}
	if c.logger == nil {
		c.logger = Logger()
	}
	return c
}
