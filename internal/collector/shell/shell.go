// Package shell implements the SHELL log source: a remote-exec fallback
// that reads device-type-specific log files over SSH when PUSH and REST
// both prove insufficient, using a context-threaded, timeout-per-operation
// fetch path. golang.org/x/crypto/ssh provides the transport, since the
// controller's last-resort collection path is a handful of shell commands
// run over SSH.
package shell

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"golang.org/x/crypto/ssh"

	"github.com/trekops/unifi-reporter/internal/collector"
	"github.com/trekops/unifi-reporter/internal/model"
)

// maxOutputBytes caps how much of a remote command's output is read, so a
// misbehaving device cannot exhaust memory.
const maxOutputBytes = 8 << 20 // 8MiB

// logPathsByDeviceType lists the known syslog file locations per UniFi
// device family. Unrecognized types fall back to a generic path.
var logPathsByDeviceType = map[string][]string{
	"uap": {"/var/log/messages"},
	"usw": {"/var/log/messages"},
	"ugw": {"/var/log/messages", "/var/log/wlog"},
	"udm": {"/var/log/messages"},
}

// Config configures the shell collector.
type Config struct {
	Host           string
	Port           int
	Username       string
	Password       string
	DeviceType     string
	CommandTimeout time.Duration
	ClientConfig   *ssh.ClientConfig // overrides Username/Password when set (tests)
}

func (c *Config) setDefaults() {
	if c.Port == 0 {
		c.Port = 22
	}
	if c.CommandTimeout <= 0 {
		c.CommandTimeout = 30 * time.Second
	}
	if c.DeviceType == "" {
		c.DeviceType = "ugw"
	}
}

// Dialer abstracts establishing an SSH session, so tests can substitute a
// fake without a real network connection.
type Dialer interface {
	Dial(ctx context.Context, addr string, cfg *ssh.ClientConfig) (Session, error)
}

// Session is the minimal remote-exec surface the collector needs.
type Session interface {
	// Run executes cmd under one wall-clock deadline of timeout covering
	// both the stdout and stderr reads, so a stalled pipe on either stream
	// cannot block the call past that deadline.
	Run(ctx context.Context, cmd string, timeout time.Duration) (stdout []byte, stderr []byte, err error)
	Close() error
}

type Collector struct {
	cfg    Config
	dialer Dialer
	logger *slog.Logger
}

func New(cfg Config, dialer Dialer, logger *slog.Logger) *Collector {
	cfg.setDefaults()
	if dialer == nil {
		dialer = sshDialer{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Collector{cfg: cfg, dialer: dialer, logger: logger}
}

func (c *Collector) Name() string { return "shell" }

func (c *Collector) Collect(ctx context.Context, window collector.Window) ([]model.LogEntry, error) {
	addr := fmt.Sprintf("%s:%d", c.cfg.Host, c.cfg.Port)
	clientCfg := c.cfg.ClientConfig
	if clientCfg == nil {
		clientCfg = &ssh.ClientConfig{
			User:            c.cfg.Username,
			Auth:            []ssh.AuthMethod{ssh.Password(c.cfg.Password)},
			HostKeyCallback: ssh.InsecureIgnoreHostKey(), //nolint:gosec // controller-local mgmt network; host key pinning handled at config layer
			Timeout:         c.cfg.CommandTimeout,
		}
	}
	sess, err := c.dialer.Dial(ctx, addr, clientCfg)
	if err != nil {
		return nil, fmt.Errorf("%w: ssh dial: %v", model.ErrSourceUnavailable, err)
	}
	defer sess.Close()

	paths := logPathsByDeviceType[c.cfg.DeviceType]
	if len(paths) == 0 {
		paths = []string{"/var/log/messages"}
	}

	var entries []model.LogEntry
	now := time.Now().UTC()
	for _, path := range paths {
		cmd := fmt.Sprintf("tail -c %d %s", maxOutputBytes, path)
		stdout, stderr, err := sess.Run(ctx, cmd, c.cfg.CommandTimeout)
		if err != nil {
			c.logger.Warn("shell command failed", "path", path, "error", err, "stderr", string(stderr))
			continue
		}
		for _, line := range splitLines(stdout) {
			if line == "" {
				continue
			}
			e := ParseSyslogLine(line, now)
			if e.Timestamp.Before(window.Start) || e.Timestamp.After(window.End) {
				continue
			}
			entries = append(entries, e)
		}
	}
	return entries, nil
}

func splitLines(b []byte) []string {
	var lines []string
	for _, chunk := range bytes.Split(b, []byte("\n")) {
		lines = append(lines, string(bytes.TrimRight(chunk, "\r")))
	}
	return lines
}

// sshDialer is the production Dialer backed by golang.org/x/crypto/ssh.
type sshDialer struct{}

func (sshDialer) Dial(ctx context.Context, addr string, cfg *ssh.ClientConfig) (Session, error) {
	client, err := ssh.Dial("tcp", addr, cfg)
	if err != nil {
		return nil, err
	}
	return &liveSession{client: client}, nil
}

type liveSession struct {
	client *ssh.Client
}

func (s *liveSession) Close() error { return s.client.Close() }

func (s *liveSession) Run(ctx context.Context, cmd string, timeout time.Duration) ([]byte, []byte, error) {
	session, err := s.client.NewSession()
	if err != nil {
		return nil, nil, err
	}
	defer session.Close()

	stdoutPipe, err := session.StdoutPipe()
	if err != nil {
		return nil, nil, err
	}
	stderrPipe, err := session.StderrPipe()
	if err != nil {
		return nil, nil, err
	}

	if err := session.Start(cmd); err != nil {
		return nil, nil, err
	}

	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	stdoutCh := make(chan []byte, 1)
	stderrCh := make(chan []byte, 1)
	go func() { stdoutCh <- readBounded(stdoutPipe, maxOutputBytes) }()
	go func() { stderrCh <- readBounded(stderrPipe, maxOutputBytes) }()

	var stdout, stderr []byte
	for i := 0; i < 2; i++ {
		select {
		case stdout = <-stdoutCh:
		case stderr = <-stderrCh:
		case <-runCtx.Done():
			_ = session.Signal(ssh.SIGKILL)
			return stdout, stderr, fmt.Errorf("shell command timed out after %s", timeout)
		}
	}
	return stdout, stderr, session.Wait()
}

func readBounded(r io.Reader, limit int64) []byte {
	data, _ := io.ReadAll(io.LimitReader(r, limit))
	return data
}
