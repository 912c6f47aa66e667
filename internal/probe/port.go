package probe

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"sync/atomic"

	"github.com/phrazzld/taskrunner/internal/platform/logger"
)

// Valid TCP port range for PortAvailableTask.
const (
	MinPort = 1
	MaxPort = 65535
)

// ErrInvalidPort is returned when a port number is outside MinPort-MaxPort.
var ErrInvalidPort = errors.New("invalid port")

// PortAvailableTask checks whether a TCP port can be bound on all interfaces.
type PortAvailableTask struct {
	port     int
	complete atomic.Bool
}

// NewPortAvailableTask creates a task that checks port.
func NewPortAvailableTask(port int) (*PortAvailableTask, error) {
	if port < MinPort || port > MaxPort {
		return nil, fmt.Errorf("%w: must be in range %d-%d inclusive, got %d",
			ErrInvalidPort, MinPort, MaxPort, port)
	}
	return &PortAvailableTask{port: port}, nil
}

// Port returns the port being checked.
func (t *PortAvailableTask) Port() int {
	return t.port
}

// Invoke binds a listener on the port and releases it immediately. A bind
// failure means the port is unavailable; it is logged, not returned.
func (t *PortAvailableTask) Invoke(ctx context.Context) (bool, error) {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", net.JoinHostPort("", strconv.Itoa(t.port)))
	if err != nil {
		logger.FromContext(ctx).Debug("port bind failed",
			"port", t.port,
			"error", err)
		return false, nil
	}

	if err := ln.Close(); err != nil {
		logger.FromContext(ctx).Debug("failed to release probe listener",
			"port", t.port,
			"error", err)
	}

	t.complete.Store(true)
	return true, nil
}

// IsComplete reports whether the port has been bound and released.
func (t *PortAvailableTask) IsComplete() bool {
	return t.complete.Load()
}
