package torproxy

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestMain doubles as the stub daemon: when TORCTL_TEST_STUB is set, the
// test binary re-executes as a fake tor process instead of running tests.
func TestMain(m *testing.M) {
	switch os.Getenv("TORCTL_TEST_STUB") {
	case "":
		os.Exit(m.Run())
	case "listen":
		runListenStub()
	case "burst":
		runBurstStub()
	case "hang":
		runHangStub()
	default:
		os.Exit(2)
	}
}

// stubArg extracts the value following a command-line flag.
func stubArg(flag string) string {
	for i, arg := range os.Args {
		if arg == flag && i+1 < len(os.Args) {
			return os.Args[i+1]
		}
	}

	return ""
}

// runListenStub behaves like a healthy daemon: it opens the assigned SOCKS
// port, writes three lines, and serves until killed.
func runListenStub() {
	port, err := strconv.Atoi(stubArg("--SocksPort"))
	if err != nil {
		os.Exit(2)
	}

	listener, err := net.Listen("tcp", net.JoinHostPort("127.0.0.1", strconv.Itoa(port)))
	if err != nil {
		os.Exit(2)
	}

	fmt.Println("a")
	fmt.Println("b")
	fmt.Println("c")

	for {
		conn, err := listener.Accept()
		if err != nil {
			os.Exit(0)
		}

		conn.Close()
	}
}

// runBurstStub writes a mix of real, blank, and ANSI-colored lines and exits
// immediately without ever listening.
func runBurstStub() {
	fmt.Println("a")
	fmt.Println("")
	fmt.Println("   ")
	fmt.Println("\x1b[32mb\x1b[0m")
	fmt.Println("c")
	os.Exit(0)
}

// runHangStub never opens its port and never exits on its own.
func runHangStub() {
	time.Sleep(10 * time.Minute)
	os.Exit(0)
}

func testLogger() logrus.FieldLogger {
	log := logrus.New()
	log.SetOutput(os.Stdout)

	return log
}

func stubExe(t *testing.T) string {
	t.Helper()

	exe, err := os.Executable()
	require.NoError(t, err)

	return exe
}

type lineCollector struct {
	mu    sync.Mutex
	lines []string
}

func (c *lineCollector) sink(line string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.lines = append(c.lines, line)
}

func (c *lineCollector) snapshot() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	return append([]string(nil), c.lines...)
}

func TestNewExecutableNotFound(t *testing.T) {
	_, err := New(testLogger(), "/nonexistent/tor", Options{})

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrExecutableNotFound)
}

func TestNewAllocatesDistinctPorts(t *testing.T) {
	proxy, err := New(testLogger(), stubExe(t), Options{})
	require.NoError(t, err)

	assert.Greater(t, proxy.SocksPort(), 0)
	assert.Greater(t, proxy.ControlPort(), 0)
	assert.NotEqual(t, proxy.SocksPort(), proxy.ControlPort())
	assert.Equal(t, StateUnstarted, proxy.State())
}

func TestNewRejectsEqualFixedPorts(t *testing.T) {
	_, err := New(testLogger(), stubExe(t), Options{SocksPort: 9050, ControlPort: 9050})

	require.Error(t, err)
}

func TestStartStopLifecycle(t *testing.T) {
	t.Setenv("TORCTL_TEST_STUB", "listen")

	collector := &lineCollector{}

	proxy, err := New(testLogger(), stubExe(t), Options{
		Sink:         collector.sink,
		ReadyTimeout: 10 * time.Second,
	})
	require.NoError(t, err)

	require.NoError(t, proxy.Start(context.Background()))
	assert.Equal(t, StateReady, proxy.State())

	expectedAddr := fmt.Sprintf("socks5://127.0.0.1:%d", proxy.SocksPort())
	assert.Equal(t, expectedAddr, proxy.SocksAddr())

	// Ready means the endpoint accepts a connection right now.
	conn, err := net.DialTimeout("tcp", fmt.Sprintf("127.0.0.1:%d", proxy.SocksPort()), time.Second)
	require.NoError(t, err)
	conn.Close()

	// Starting again while running is rejected, not a double-spawn.
	assert.ErrorIs(t, proxy.Start(context.Background()), ErrAlreadyStarted)

	// The stub's output arrives via the drain, in order.
	require.Eventually(t, func() bool {
		return len(collector.snapshot()) >= 3
	}, 5*time.Second, 50*time.Millisecond)
	assert.Equal(t, []string{"a", "b", "c"}, collector.snapshot())

	require.NoError(t, proxy.Stop())
	assert.Equal(t, StateStopped, proxy.State())

	// The listener dies with the process.
	_, err = net.DialTimeout("tcp", fmt.Sprintf("127.0.0.1:%d", proxy.SocksPort()), time.Second)
	assert.Error(t, err)

	// Second stop is a no-op, and a stopped proxy cannot be restarted.
	require.NoError(t, proxy.Stop())
	assert.Equal(t, StateStopped, proxy.State())
	assert.ErrorIs(t, proxy.Start(context.Background()), ErrProxyStopped)
}

func TestStartupTimeout(t *testing.T) {
	t.Setenv("TORCTL_TEST_STUB", "hang")

	proxy, err := New(testLogger(), stubExe(t), Options{
		ReadyTimeout: 2 * time.Second,
	})
	require.NoError(t, err)

	start := time.Now()
	err = proxy.Start(context.Background())
	elapsed := time.Since(start)

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrStartupTimeout)

	// The deadline is absolute: not early, not unbounded.
	assert.GreaterOrEqual(t, elapsed, 1800*time.Millisecond)
	assert.Less(t, elapsed, 10*time.Second)

	// Failed start leaves nothing behind.
	assert.Equal(t, StateStopped, proxy.State())
	require.NoError(t, proxy.Stop())
}

func TestExitDuringStartupDrainsAllOutput(t *testing.T) {
	t.Setenv("TORCTL_TEST_STUB", "burst")

	collector := &lineCollector{}

	proxy, err := New(testLogger(), stubExe(t), Options{
		Sink:         collector.sink,
		ReadyTimeout: 10 * time.Second,
	})
	require.NoError(t, err)

	err = proxy.Start(context.Background())

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrExitedDuringStartup)
	assert.Equal(t, StateStopped, proxy.State())

	// Every non-blank line the stub wrote before exiting was forwarded
	// exactly once, in order, with ANSI escapes stripped.
	assert.Equal(t, []string{"a", "b", "c"}, collector.snapshot())
}

func TestRunReleasesOnCallbackError(t *testing.T) {
	t.Setenv("TORCTL_TEST_STUB", "listen")

	proxy, err := New(testLogger(), stubExe(t), Options{
		ReadyTimeout: 10 * time.Second,
	})
	require.NoError(t, err)

	var calledAddr string

	boom := errors.New("boom")
	err = proxy.Run(context.Background(), func(socksAddr string) error {
		calledAddr = socksAddr

		return boom
	})

	assert.ErrorIs(t, err, boom)
	assert.Equal(t, proxy.SocksAddr(), calledAddr)
	assert.Equal(t, StateStopped, proxy.State())
}

func TestStartOnStoppedProxy(t *testing.T) {
	proxy := &Proxy{
		log:   logrus.New().WithField("component", "torproxy"),
		state: StateStopped,
	}

	err := proxy.Start(context.Background())
	assert.ErrorIs(t, err, ErrProxyStopped)
}
