package sshtunnel

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/crypto/ssh"
	"golang.org/x/sync/errgroup"

	"github.com/Aleph-Alpha/etl-manager/v1/retry"
)

const (
	DefaultMaxRetries     = 5
	DefaultInitialBackoff = time.Second
)

// ErrClosed is returned by Start after Close.
var ErrClosed = errors.New("ssh tunnel is closed")

// Logger is the logging surface of the package.
type Logger interface {
	Info(msg string, err error, fields ...map[string]interface{})
	Warn(msg string, err error, fields ...map[string]interface{})
	Error(msg string, err error, fields ...map[string]interface{})
}

// Forwarder is an established SSH session able to open channels to the
// remote side. *ssh.Client satisfies it.
type Forwarder interface {
	Dial(network, addr string) (net.Conn, error)
	SendRequest(name string, wantReply bool, payload []byte) (bool, []byte, error)
	Close() error
}

// Dialer opens an SSH session to the bastion.
type Dialer func(ctx context.Context, addr string, cfg *ssh.ClientConfig) (Forwarder, error)

// Manager owns one local forwarder from an ephemeral loopback port to a
// database host reachable from the bastion.
type Manager struct {
	cfg        Config
	remoteAddr string
	logger     Logger
	dial       Dialer
	newTimer   func() backoff.Timer

	mu       sync.Mutex
	client   Forwarder
	listener net.Listener
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	closed   bool
}

// Option configures a Manager.
type Option func(*Manager)

// WithDialer replaces the SSH dialer.
func WithDialer(d Dialer) Option {
	return func(m *Manager) { m.dial = d }
}

// WithTimer replaces the timer used between connection attempts.
func WithTimer(factory func() backoff.Timer) Option {
	return func(m *Manager) { m.newTimer = factory }
}

// NewManager prepares a tunnel to remoteHost:remotePort via the bastion in cfg.
// Nothing is dialed until Start.
func NewManager(cfg Config, remoteHost string, remotePort int, logger Logger, opts ...Option) *Manager {
	m := &Manager{
		cfg:        cfg.withDefaults(),
		remoteAddr: net.JoinHostPort(remoteHost, strconv.Itoa(remotePort)),
		logger:     logger,
		dial:       dialSSH,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Start opens the tunnel, retrying failed attempts with a delay of
// initialBackoff * 2^(attempt-1), and returns the bound local port.
func (m *Manager) Start(ctx context.Context, maxRetries int, initialBackoff time.Duration) (int, error) {
	if err := m.cfg.Validate(); err != nil {
		return 0, err
	}
	clientCfg, err := m.cfg.clientConfig()
	if err != nil {
		return 0, err
	}

	opts := []retry.Option{
		retry.WithNotify(func(attempt int, err error, next time.Duration) {
			m.warn("SSH tunnel attempt failed, retrying", err, map[string]interface{}{
				"attempt": attempt,
				"backoff": next.String(),
				"bastion": m.cfg.Addr(),
			})
		}),
	}
	if m.newTimer != nil {
		opts = append(opts, retry.WithTimer(m.newTimer))
	}
	exec := retry.New(
		retry.Policy{MaxRetries: maxRetries, InitialDelay: initialBackoff, Multiplier: 2},
		func(err error) bool { return !errors.Is(err, ErrClosed) },
		opts...,
	)

	port, err := retry.DoValue(ctx, exec, m.open(clientCfg))
	if err != nil {
		return 0, fmt.Errorf("establish ssh tunnel to %s via %s: %w", m.remoteAddr, m.cfg.Addr(), err)
	}

	m.info("SSH tunnel established", map[string]interface{}{
		"bastion":    m.cfg.Addr(),
		"local_port": port,
	})
	return port, nil
}

func (m *Manager) open(clientCfg *ssh.ClientConfig) func(ctx context.Context) (int, error) {
	return func(ctx context.Context) (int, error) {
		m.mu.Lock()
		defer m.mu.Unlock()
		if m.closed {
			return 0, ErrClosed
		}
		if m.listener != nil {
			return m.localPortLocked(), nil
		}

		client, err := m.dial(ctx, m.cfg.Addr(), clientCfg)
		if err != nil {
			return 0, err
		}

		ln, err := net.Listen("tcp", "127.0.0.1:0")
		if err != nil {
			_ = client.Close()
			return 0, fmt.Errorf("listen on loopback: %w", err)
		}

		runCtx, cancel := context.WithCancel(context.Background())
		m.client = client
		m.listener = ln
		m.cancel = cancel

		m.wg.Add(2)
		go m.acceptLoop(runCtx, ln, client)
		go m.keepAlive(runCtx, client)

		return m.localPortLocked(), nil
	}
}

// LocalPort returns the bound loopback port, or 0 when not started.
func (m *Manager) LocalPort() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.localPortLocked()
}

func (m *Manager) localPortLocked() int {
	if m.listener == nil {
		return 0
	}
	return m.listener.Addr().(*net.TCPAddr).Port
}

// Close tears the tunnel down. It is safe to call more than once and before Start.
func (m *Manager) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	ln, client, cancel := m.listener, m.client, m.cancel
	m.listener, m.client, m.cancel = nil, nil, nil
	m.mu.Unlock()

	if cancel == nil {
		return nil
	}

	cancel()
	errs := []error{ln.Close(), client.Close()}
	m.wg.Wait()

	m.info("SSH tunnel closed", nil)
	return errors.Join(ignoreClosed(errs)...)
}

func (m *Manager) acceptLoop(ctx context.Context, ln net.Listener, client Forwarder) {
	defer m.wg.Done()
	for {
		local, err := ln.Accept()
		if err != nil {
			if ctx.Err() == nil {
				m.error("SSH tunnel accept failed", err, nil)
			}
			return
		}
		m.wg.Add(1)
		go func() {
			defer m.wg.Done()
			m.forward(ctx, local, client)
		}()
	}
}

// forward pipes one local connection through the SSH session.
func (m *Manager) forward(ctx context.Context, local net.Conn, client Forwarder) {
	defer local.Close()

	remote, err := client.Dial("tcp", m.remoteAddr)
	if err != nil {
		m.error("SSH tunnel could not reach remote host", err, map[string]interface{}{"remote": m.remoteAddr})
		return
	}
	defer remote.Close()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return pipe(remote, local) })
	g.Go(func() error { return pipe(local, remote) })
	go func() {
		<-gctx.Done()
		_ = local.Close()
		_ = remote.Close()
	}()
	_ = g.Wait()
}

func pipe(dst, src net.Conn) error {
	_, err := io.Copy(dst, src)
	if cw, ok := dst.(interface{ CloseWrite() error }); ok {
		_ = cw.CloseWrite()
	}
	if err == nil {
		// one side finished cleanly; stop the other direction
		return io.EOF
	}
	return err
}

func (m *Manager) keepAlive(ctx context.Context, client Forwarder) {
	defer m.wg.Done()

	ticker := time.NewTicker(m.cfg.KeepAlive)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, _, err := client.SendRequest("keepalive@openssh.com", true, nil); err != nil {
				m.warn("SSH keepalive failed", err, map[string]interface{}{"bastion": m.cfg.Addr()})
			}
		}
	}
}

func dialSSH(ctx context.Context, addr string, cfg *ssh.ClientConfig) (Forwarder, error) {
	d := net.Dialer{Timeout: cfg.Timeout}
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, err
	}
	c, chans, reqs, err := ssh.NewClientConn(conn, addr, cfg)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	return ssh.NewClient(c, chans, reqs), nil
}

func ignoreClosed(errs []error) []error {
	out := errs[:0]
	for _, err := range errs {
		if err != nil && !errors.Is(err, net.ErrClosed) {
			out = append(out, err)
		}
	}
	return out
}

func (m *Manager) info(msg string, fields map[string]interface{}) {
	if m.logger != nil {
		m.logger.Info(msg, nil, fields)
	}
}

func (m *Manager) warn(msg string, err error, fields map[string]interface{}) {
	if m.logger != nil {
		m.logger.Warn(msg, err, fields)
	}
}

func (m *Manager) error(msg string, err error, fields map[string]interface{}) {
	if m.logger != nil {
		m.logger.Error(msg, err, fields)
	}
}
