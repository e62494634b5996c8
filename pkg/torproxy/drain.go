package torproxy

import (
	"bufio"
	"io"
	"strings"

	"github.com/acarl005/stripansi"
)

// LineSink receives one trimmed, non-empty output line per call, in the
// order the daemon produced them.
type LineSink func(line string)

// drain consumes the daemon's combined output so the child never blocks on a
// full pipe buffer. Each line is cleaned and forwarded to the sink. The loop
// ends when the stop flag is set, or on EOF once the process has exited and
// the pipe buffer is fully consumed.
func (p *Proxy) drain(r io.Reader) {
	defer close(p.drainDone)

	scanner := bufio.NewScanner(r)

	for !p.drainStop.Load() && scanner.Scan() {
		line := strings.TrimSpace(stripansi.Strip(scanner.Text()))
		if line == "" {
			continue
		}

		p.sink(line)
	}

	if err := scanner.Err(); err != nil {
		// The read side was torn down under us, usually because the
		// process was killed mid-write. Nothing left to forward.
		p.log.WithError(err).Debug("output drain ended on read error")
	}
}
