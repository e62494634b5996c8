package torproxy

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/onionops/torctl/pkg/constants"
)

// readyGate waits for the daemon to accept TCP connections on its SOCKS
// port. A successful connect-then-close is taken as proof of readiness.
type readyGate struct {
	host    string
	port    int
	timeout time.Duration
}

// wait polls the port until it connects, the deadline elapses, the context
// is cancelled, or the process exits. The daemon offers no ready signal of
// its own, so bounded connect polling is the mechanism.
func (g *readyGate) wait(ctx context.Context, exited <-chan struct{}) error {
	addr := net.JoinHostPort(g.host, strconv.Itoa(g.port))
	deadline := time.Now().Add(g.timeout)

	for time.Now().Before(deadline) {
		conn, err := net.DialTimeout("tcp", addr, constants.ReadyDialTimeout)
		if err == nil {
			conn.Close()

			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-exited:
			return fmt.Errorf("waiting for %s: %w", addr, ErrExitedDuringStartup)
		case <-time.After(constants.ReadyPollInterval):
			// Retry
		}
	}

	return fmt.Errorf("%s after %v: %w", addr, g.timeout, ErrStartupTimeout)
}
