// Package shutdown provides a cooperative shutdown flag driven by OS
// termination signals.
package shutdown

import (
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"

	"github.com/rs/zerolog/log"
)

// Monitor flips to the shutdown state on the first SIGINT or SIGTERM and
// stays there. Long loops poll Requested at their top; select-based loops
// use Done.
type Monitor struct {
	name      string
	requested atomic.Bool
	done      chan struct{}
}

// NewMonitor installs the signal handlers and returns the monitor. The name
// is used as the log prefix on shutdown.
func NewMonitor(name string) *Monitor {
	m := &Monitor{
		name: name,
		done: make(chan struct{}),
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		log.Info().Str("signal", sig.String()).Msgf("%s shutting down", m.name)
		m.requested.Store(true)
		close(m.done)
	}()

	return m
}

// Requested reports whether a termination signal has been received.
func (m *Monitor) Requested() bool {
	return m.requested.Load()
}

// Done is closed on the first termination signal.
func (m *Monitor) Done() <-chan struct{} {
	return m.done
}

// Name returns the monitor's log prefix.
func (m *Monitor) Name() string {
	return m.name
}
