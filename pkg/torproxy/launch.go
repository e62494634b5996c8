package torproxy

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"sort"
	"strconv"
	"syscall"

	"github.com/onionops/torctl/pkg/constants"
	"github.com/sirupsen/logrus"
)

// buildArgs constructs the daemon command line. The flag names and their
// order (SocksPort, ControlPort, DataDirectory, then extras) are part of the
// tor binary's external interface. Extra options are emitted sorted by key so
// the command line is reproducible.
func buildArgs(socksPort, ctrlPort int, dataDir string, extra map[string]string) []string {
	args := []string{
		constants.FlagSocksPort, strconv.Itoa(socksPort),
		constants.FlagControlPort, strconv.Itoa(ctrlPort),
		constants.FlagDataDirectory, dataDir,
	}

	keys := make([]string, 0, len(extra))
	for key := range extra {
		keys = append(keys, key)
	}

	sort.Strings(keys)

	for _, key := range keys {
		args = append(args, "--"+key, extra[key])
	}

	return args
}

// launch spawns the daemon with stdout and stderr interleaved on a single
// pipe for the output drain. The child is placed in its own process group so
// stop can signal the whole group.
func (p *Proxy) launch() (io.ReadCloser, error) {
	dataDir, err := os.MkdirTemp("", constants.DataDirPrefix)
	if err != nil {
		return nil, fmt.Errorf("failed to create data directory: %v: %w", err, ErrResourceUnavailable)
	}

	args := buildArgs(p.socksPort, p.ctrlPort, dataDir, p.torOptions)

	//nolint:gosec // The executable path was validated at construction time.
	cmd := exec.Command(p.exePath, args...)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		os.RemoveAll(dataDir)

		return nil, fmt.Errorf("failed to create output pipe: %v: %w", err, ErrResourceUnavailable)
	}

	// Interleave stderr into the stdout pipe. Both ends are OS-level file
	// descriptors, so ordering is preserved as the daemon writes.
	cmd.Stderr = cmd.Stdout

	// Own process group so stop can signal tor and anything it forked.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	if err := cmd.Start(); err != nil {
		os.RemoveAll(dataDir)

		return nil, fmt.Errorf("failed to spawn %s: %v: %w", p.exePath, err, ErrResourceUnavailable)
	}

	p.dataDir = dataDir
	p.cmd = cmd

	p.log.WithFields(logrus.Fields{
		"pid":      cmd.Process.Pid,
		"data_dir": dataDir,
	}).Debug("tor process spawned")

	return stdout, nil
}
