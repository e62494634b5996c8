// Package constants defines shared constants for the tor daemon command
// line, timeouts, and configuration across the torctl application.
package constants

import "time"

// Loopback host the daemon binds to. Tor is only ever exposed locally.
const (
	LoopbackHost = "127.0.0.1"
)

// Tor command-line flag names. These must match the tor binary exactly;
// they are part of its external interface.
const (
	FlagSocksPort     = "--SocksPort"
	FlagControlPort   = "--ControlPort"
	FlagDataDirectory = "--DataDirectory"
)

// Directory and file names.
const (
	DataDirPrefix     = "tor_data_"
	DefaultConfigFile = ".torctl.yaml"
	DefaultEnvFile    = ".env"
)

// Environment variable overrides (loaded from the process environment or an
// optional .env file).
const (
	EnvTorPath = "TORCTL_TOR_PATH"
)

// Lifecycle timeouts.
const (
	// DefaultReadyTimeout is the maximum time to wait for the daemon to
	// accept connections on its SOCKS port after spawning.
	DefaultReadyTimeout = 30 * time.Second

	// ReadyPollInterval is how long to sleep between readiness probes.
	ReadyPollInterval = 200 * time.Millisecond

	// ReadyDialTimeout bounds each individual readiness probe.
	ReadyDialTimeout = 1 * time.Second

	// GracefulStopTimeout is the maximum time to wait for the daemon to
	// exit after SIGTERM before escalating to SIGKILL.
	GracefulStopTimeout = 5 * time.Second

	// StopPollInterval is how often to check whether the daemon has exited
	// during a graceful stop.
	StopPollInterval = 100 * time.Millisecond

	// DrainJoinTimeout bounds the wait for the output drain goroutine at
	// stop time. A drain that does not finish in time is abandoned.
	DrainJoinTimeout = 1 * time.Second
)

// SocksURLTemplate formats the SOCKS5 proxy address handed to callers.
const SocksURLTemplate = "socks5://%s:%d"
