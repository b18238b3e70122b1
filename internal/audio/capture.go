package audio

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"
)

const (
	chunkSize   = 16 * 1024
	stopTimeout = 5 * time.Second
)

// ExecCapture runs an encoder process and delivers its stdout as chunks.
type ExecCapture struct {
	argv    []string
	connect func() error

	mutex   sync.Mutex
	cmd     *exec.Cmd
	done    chan struct{}
	stderr  strings.Builder
	stopped bool
}

func newExecCapture(argv []string, connect func() error) *ExecCapture {
	return &ExecCapture{argv: argv, connect: connect}
}

// Start launches the encoder. onChunk receives stdout in order; onInactive
// is called once, after the last chunk, when the process has exited.
func (c *ExecCapture) Start(onChunk func([]byte), onInactive func(error)) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if c.cmd != nil {
		return fmt.Errorf("capture already started")
	}

	slog.Info("Starting encoder", "command", strings.Join(c.argv, " "))

	cmd := exec.Command(c.argv[0], c.argv[1:]...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("failed to create stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("failed to create stderr pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start encoder: %w", err)
	}

	c.cmd = cmd
	c.done = make(chan struct{})

	stderrDone := make(chan struct{})
	go func() {
		defer close(stderrDone)
		c.readStderr(stderr)
	}()

	if c.connect != nil {
		go func() {
			if err := c.connect(); err != nil {
				slog.Error("Failed to connect capture source", "error", err)
			}
		}()
	}

	go func() {
		defer close(c.done)
		readErr := c.pump(stdout, onChunk)
		<-stderrDone
		err := c.exitError(cmd.Wait())
		if err == nil && readErr != nil {
			err = readErr
		}
		if onInactive != nil {
			onInactive(err)
		}
	}()

	return nil
}

func (c *ExecCapture) pump(stdout io.Reader, onChunk func([]byte)) error {
	buf := make([]byte, chunkSize)
	for {
		n, err := stdout.Read(buf)
		if n > 0 && onChunk != nil {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			onChunk(chunk)
		}
		if errors.Is(err, io.EOF) || errors.Is(err, os.ErrClosed) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to read encoder output: %w", err)
		}
	}
}

func (c *ExecCapture) readStderr(pipe io.Reader) {
	scanner := bufio.NewScanner(pipe)
	for scanner.Scan() {
		line := scanner.Text()
		c.mutex.Lock()
		c.stderr.WriteString(line + "\n")
		c.mutex.Unlock()
		slog.Debug("Encoder output", "stream", "stderr", "line", line)
	}
}

// exitError treats termination caused by Stop as a clean exit.
func (c *ExecCapture) exitError(err error) error {
	if err == nil {
		return nil
	}
	c.mutex.Lock()
	stopped := c.stopped
	stderr := strings.TrimSpace(c.stderr.String())
	c.mutex.Unlock()

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) && stopped {
		// ffmpeg exits with 255 after an interrupt
		if exitErr.ExitCode() == 255 || exitErr.ExitCode() == -1 {
			return nil
		}
	}
	if stderr != "" {
		return fmt.Errorf("encoder failed: %w: %s", err, stderr)
	}
	return fmt.Errorf("encoder failed: %w", err)
}

// Stop interrupts the encoder so it flushes its trailer, and kills it if it
// has not exited within the stop timeout. Remaining output is still
// delivered before onInactive.
func (c *ExecCapture) Stop() error {
	c.mutex.Lock()
	cmd, done := c.cmd, c.done
	if cmd == nil || c.stopped {
		c.mutex.Unlock()
		return nil
	}
	c.stopped = true
	c.mutex.Unlock()

	slog.Debug("Sending SIGINT to encoder")
	if err := cmd.Process.Signal(os.Interrupt); err != nil {
		slog.Debug("Failed to interrupt encoder, killing", "error", err)
		_ = cmd.Process.Kill()
	}

	go func() {
		select {
		case <-done:
		case <-time.After(stopTimeout):
			slog.Warn("Encoder did not exit within timeout, force killing")
			_ = cmd.Process.Kill()
		}
	}()
	return nil
}
