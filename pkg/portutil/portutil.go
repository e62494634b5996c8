// Package portutil provides local TCP port allocation and availability
// checking for the daemon's SOCKS and control endpoints.
package portutil

import (
	"fmt"
	"net"
	"os/exec"
	"strconv"
	"strings"

	"github.com/onionops/torctl/pkg/constants"
)

// AllocateEphemeral asks the operating system for a currently unused port by
// binding a loopback listener on port 0, reading back the assigned port, and
// releasing the socket. The port is not reserved after return — another
// process may grab it before the daemon binds it. That race is accepted: the
// readiness gate catches a daemon that failed to bind.
func AllocateEphemeral() (int, error) {
	listener, err := net.Listen("tcp", net.JoinHostPort(constants.LoopbackHost, "0"))
	if err != nil {
		return 0, fmt.Errorf("failed to allocate ephemeral port: %w", err)
	}

	port := listener.Addr().(*net.TCPAddr).Port

	if err := listener.Close(); err != nil {
		return 0, fmt.Errorf("failed to release ephemeral port %d: %w", port, err)
	}

	return port, nil
}

// PortConflict represents a port that's already in use.
type PortConflict struct {
	Port    int
	PID     int
	Process string
}

// CheckPort checks if a port is available.
// Returns nil if available, or a PortConflict if the port is in use.
func CheckPort(port int) *PortConflict {
	addr := fmt.Sprintf(":%d", port)

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		// Port is in use, try to find what's using it
		return findPortOwner(port)
	}

	listener.Close()

	return nil
}

// CheckPorts checks multiple ports and returns all conflicts.
func CheckPorts(ports []int) []PortConflict {
	var conflicts []PortConflict

	for _, port := range ports {
		if conflict := CheckPort(port); conflict != nil {
			conflicts = append(conflicts, *conflict)
		}
	}

	return conflicts
}

// findPortOwner tries to find the process using a port.
func findPortOwner(port int) *PortConflict {
	conflict := &PortConflict{
		Port: port,
	}

	// Try lsof (macOS/Linux)
	//nolint:gosec // Port number is validated to be an integer
	cmd := exec.Command("lsof", "-i", fmt.Sprintf(":%d", port), "-sTCP:LISTEN", "-t")

	output, err := cmd.Output()
	if err == nil && len(output) > 0 {
		pidStr := strings.TrimSpace(string(output))
		if pid, err := strconv.Atoi(pidStr); err == nil {
			conflict.PID = pid
			// Get process name
			psCmd := exec.Command("ps", "-p", pidStr, "-o", "comm=")
			if psOutput, err := psCmd.Output(); err == nil {
				conflict.Process = strings.TrimSpace(string(psOutput))
			}
		}
	}

	return conflict
}

// FormatConflicts formats port conflicts for display.
func FormatConflicts(conflicts []PortConflict) string {
	if len(conflicts) == 0 {
		return ""
	}

	var sb strings.Builder
	sb.WriteString("Port conflicts detected:\n")

	for _, c := range conflicts {
		sb.WriteString(fmt.Sprintf("  Port %d: in use", c.Port))

		if c.PID > 0 {
			sb.WriteString(fmt.Sprintf(" by PID %d", c.PID))

			if c.Process != "" {
				sb.WriteString(fmt.Sprintf(" (%s)", c.Process))
			}
		}

		sb.WriteString("\n")
	}

	sb.WriteString("\nEither free the ports or remove the fixed port settings from the config so torctl can allocate its own.\n")

	return sb.String()
}
