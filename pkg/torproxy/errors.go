package torproxy

import "errors"

var (
	// ErrExecutableNotFound is returned when the configured tor binary does
	// not exist on disk.
	ErrExecutableNotFound = errors.New("tor executable not found")

	// ErrResourceUnavailable is returned when port allocation or process
	// spawning fails at the operating-system level.
	ErrResourceUnavailable = errors.New("resource unavailable")

	// ErrStartupTimeout is returned when the daemon spawned but never
	// accepted a connection on its SOCKS port before the deadline.
	ErrStartupTimeout = errors.New("tor did not become reachable before the deadline")

	// ErrExitedDuringStartup is returned when the daemon exited before it
	// ever opened its SOCKS port.
	ErrExitedDuringStartup = errors.New("tor exited during startup")

	// ErrAlreadyStarted is returned when Start is called on a proxy that is
	// already running.
	ErrAlreadyStarted = errors.New("proxy already started")

	// ErrProxyStopped is returned when Start is called on a stopped proxy.
	// A stopped proxy cannot be restarted; construct a new one.
	ErrProxyStopped = errors.New("proxy already stopped")
)
