// Package torproxy manages the lifecycle of a local tor daemon: spawning it
// on dynamically allocated ports, draining its output, waiting until the
// SOCKS endpoint accepts connections, and tearing it down gracefully with a
// forced-kill escalation. The daemon is treated as an opaque process; its
// control protocol is configured but never spoken.
package torproxy

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/onionops/torctl/pkg/constants"
	"github.com/onionops/torctl/pkg/portutil"
	"github.com/sirupsen/logrus"
)

// State is the lifecycle state of a Proxy.
type State int

// Lifecycle states. StateStopped is terminal: a stopped proxy cannot be
// started again.
const (
	StateUnstarted State = iota
	StateStarting
	StateReady
	StateStopping
	StateStopped
)

// String returns a human-readable state name.
func (s State) String() string {
	switch s {
	case StateUnstarted:
		return "unstarted"
	case StateStarting:
		return "starting"
	case StateReady:
		return "ready"
	case StateStopping:
		return "stopping"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Options customises a Proxy. The zero value is usable: ports are allocated,
// output goes to the logger, and the readiness timeout defaults.
type Options struct {
	// SocksPort fixes the SOCKS port. 0 allocates an ephemeral one.
	SocksPort int

	// ControlPort fixes the control port. 0 allocates an ephemeral one.
	// Configured on the command line but never spoken to.
	ControlPort int

	// TorOptions are extra tor settings, emitted as one "--key value" pair
	// each after the port and data-directory flags.
	TorOptions map[string]string

	// Sink receives the daemon's output lines. Defaults to debug logging.
	Sink LineSink

	// ReadyTimeout bounds the wait for the SOCKS port to accept
	// connections after spawning. Defaults to DefaultReadyTimeout.
	ReadyTimeout time.Duration
}

// Proxy supervises exactly one tor process. A Proxy is single-use:
// construct, Start (or Run), Stop. Stop is idempotent and safe to call from
// any exit path, including the finalizer safety net.
type Proxy struct {
	log          logrus.FieldLogger
	exePath      string
	socksPort    int
	ctrlPort     int
	torOptions   map[string]string
	sink         LineSink
	readyTimeout time.Duration

	mu        sync.Mutex
	state     State
	dataDir   string
	cmd       *exec.Cmd
	drainStop atomic.Bool
	drainDone chan struct{}
	exited    chan struct{}
}

// New validates the executable path, fixes both ports (allocating any that
// are unset), and returns an unstarted Proxy.
func New(log logrus.FieldLogger, exePath string, opts Options) (*Proxy, error) {
	if log == nil {
		log = logrus.New()
	}

	plog := log.WithField("component", "torproxy")

	if _, err := os.Stat(exePath); err != nil {
		plog.WithField("path", exePath).Error("tor executable not found")

		return nil, fmt.Errorf("%s: %w", exePath, ErrExecutableNotFound)
	}

	socksPort := opts.SocksPort
	if socksPort == 0 {
		port, err := portutil.AllocateEphemeral()
		if err != nil {
			return nil, fmt.Errorf("socks port: %v: %w", err, ErrResourceUnavailable)
		}

		socksPort = port
	}

	ctrlPort := opts.ControlPort
	if ctrlPort == 0 {
		// The OS can hand back the port it just released, so retry until
		// the control port differs from the SOCKS port.
		for attempt := 0; attempt < 5 && ctrlPort == 0; attempt++ {
			port, err := portutil.AllocateEphemeral()
			if err != nil {
				return nil, fmt.Errorf("control port: %v: %w", err, ErrResourceUnavailable)
			}

			if port != socksPort {
				ctrlPort = port
			}
		}

		if ctrlPort == 0 {
			return nil, fmt.Errorf("control port: no port distinct from socks port %d: %w", socksPort, ErrResourceUnavailable)
		}
	}

	if ctrlPort == socksPort {
		return nil, fmt.Errorf("socks and control ports must differ (both %d)", socksPort)
	}

	torOptions := make(map[string]string, len(opts.TorOptions))
	for key, value := range opts.TorOptions {
		torOptions[key] = value
	}

	readyTimeout := opts.ReadyTimeout
	if readyTimeout <= 0 {
		readyTimeout = constants.DefaultReadyTimeout
	}

	p := &Proxy{
		log:          plog,
		exePath:      exePath,
		socksPort:    socksPort,
		ctrlPort:     ctrlPort,
		torOptions:   torOptions,
		sink:         opts.Sink,
		readyTimeout: readyTimeout,
	}

	if p.sink == nil {
		p.sink = func(line string) {
			plog.WithField("tor", true).Debug(line)
		}
	}

	plog.WithFields(logrus.Fields{
		"socks_port":   socksPort,
		"control_port": ctrlPort,
	}).Info("tor proxy initialized")

	return p, nil
}

// Start spawns the daemon, starts the output drain, and blocks until the
// SOCKS port accepts a connection or the readiness deadline elapses. On any
// failure the proxy is fully cleaned up before the error is returned: no
// process or goroutine is leaked.
func (p *Proxy) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch p.state {
	case StateUnstarted:
	case StateStopping, StateStopped:
		return ErrProxyStopped
	default:
		return ErrAlreadyStarted
	}

	p.state = StateStarting
	p.log.Info("starting tor process")

	stdout, err := p.launch()
	if err != nil {
		p.state = StateStopped

		return err
	}

	p.drainStop.Store(false)
	p.drainDone = make(chan struct{})
	p.exited = make(chan struct{})

	go p.drain(stdout)
	go p.reap(p.cmd)

	// Safety net for callers that drop the proxy without stopping it. The
	// primary cleanup path is always Stop (or Run's deferred release).
	runtime.SetFinalizer(p, (*Proxy).finalize)

	gate := &readyGate{
		host:    constants.LoopbackHost,
		port:    p.socksPort,
		timeout: p.readyTimeout,
	}

	if err := gate.wait(ctx, p.exited); err != nil {
		p.log.WithError(err).Error("tor failed to start")
		p.stopLocked()

		return err
	}

	p.state = StateReady
	p.log.WithField("socks_port", p.socksPort).Info("tor is accepting connections")

	return nil
}

// Stop tears the proxy down: drain joined with a bounded wait, SIGTERM to
// the process group, SIGKILL after the graceful period, handle cleared last.
// Idempotent: stopping an already-stopped or never-started proxy is a no-op.
func (p *Proxy) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cmd == nil {
		// Never started, or already cleaned up.
		if p.state != StateUnstarted {
			p.state = StateStopped
		}

		return nil
	}

	p.stopLocked()

	return nil
}

// Run is the scoped form: start, hand the SOCKS address to fn, and stop on
// every exit path, exactly once.
func (p *Proxy) Run(ctx context.Context, fn func(socksAddr string) error) error {
	if err := p.Start(ctx); err != nil {
		return err
	}

	defer func() {
		if err := p.Stop(); err != nil {
			p.log.WithError(err).Warn("failed to stop tor proxy")
		}
	}()

	return fn(p.SocksAddr())
}

// SocksAddr returns the SOCKS5 proxy URL for the primary endpoint. The
// address is only dialable once the proxy has reached StateReady.
func (p *Proxy) SocksAddr() string {
	return fmt.Sprintf(constants.SocksURLTemplate, constants.LoopbackHost, p.socksPort)
}

// SocksPort returns the SOCKS port.
func (p *Proxy) SocksPort() int {
	return p.socksPort
}

// ControlPort returns the control port.
func (p *Proxy) ControlPort() int {
	return p.ctrlPort
}

// State returns the current lifecycle state.
func (p *Proxy) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.state
}

// reap collects the daemon's exit status. It must not call Wait until the
// drain has finished reading: Wait closes the output pipe, and closing it
// early would lose buffered lines.
func (p *Proxy) reap(cmd *exec.Cmd) {
	<-p.drainDone

	err := cmd.Wait()

	close(p.exited)

	if err != nil {
		p.log.WithError(err).Debug("tor process exited")
	} else {
		p.log.Debug("tor process exited")
	}
}

// stopLocked runs the teardown sequence. Caller must hold p.mu and have
// verified p.cmd is non-nil.
func (p *Proxy) stopLocked() {
	p.state = StateStopping

	// Stop the drain before touching the process so no shutdown noise is
	// forwarded mid-teardown. A drain stuck in a blocking read is
	// abandoned; killing the process below EOFs the pipe and lets it
	// finish on its own.
	p.drainStop.Store(true)

	select {
	case <-p.drainDone:
	case <-time.After(constants.DrainJoinTimeout):
		p.log.Warn("output drain did not stop in time, abandoning")
	}

	select {
	case <-p.exited:
		// Already gone.
	default:
		p.terminate()
	}

	if p.dataDir != "" {
		if err := os.RemoveAll(p.dataDir); err != nil {
			p.log.WithError(err).Warn("failed to remove data directory")
		}

		p.dataDir = ""
	}

	// Clear the handle last, once the process is confirmed down, so a
	// second stop can never signal a reused PID.
	p.cmd = nil
	p.state = StateStopped

	runtime.SetFinalizer(p, nil)

	p.log.Info("tor process cleanup completed")
}

// terminate requests a graceful exit and escalates to SIGKILL if the daemon
// does not comply within the graceful period. All waits are bounded.
func (p *Proxy) terminate() {
	pid := p.cmd.Process.Pid

	p.log.WithField("pid", pid).Info("terminating tor process")

	// Signal the process group created via Setpgid; fall back to the
	// process itself.
	if err := syscall.Kill(-pid, syscall.SIGTERM); err != nil {
		_ = p.cmd.Process.Signal(syscall.SIGTERM)
	}

	select {
	case <-p.exited:
		p.log.Debug("tor process terminated gracefully")

		return
	case <-time.After(constants.GracefulStopTimeout):
	}

	p.log.Warn("tor process did not terminate gracefully, killing it")

	_ = syscall.Kill(-pid, syscall.SIGKILL)

	if err := p.cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		p.log.WithError(err).Warn("failed to kill tor process")
	}

	select {
	case <-p.exited:
	case <-time.After(constants.GracefulStopTimeout):
		// Should not happen after SIGKILL. Give up rather than hang.
		p.log.Error("tor process still not reaped after SIGKILL")
	}
}

// finalize is the abnormal-termination safety net: if the caller drops the
// last reference without stopping, reap the child rather than leak it.
func (p *Proxy) finalize() {
	_ = p.Stop()
}
