// BackupWiz - 3CX Communication Data Backup & Archiving
// Copyright 2026 BackupWiz
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/backupwiz/backupwiz

package tunnel

import (
	"context"
	"fmt"
	"io"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"

	"github.com/backupwiz/backupwiz/internal/logging"
)

// Default timeouts for tunnel establishment. The open timeout bounds the
// whole operation (dial + handshake + bind); if it fires, every partially
// opened resource is torn down before the error returns.
const (
	DefaultSSHPort          = 22
	DefaultRemoteDBPort     = 5432
	DefaultHandshakeTimeout = 10 * time.Second
	DefaultOpenTimeout      = 15 * time.Second
)

// Status is the lifecycle state of a tunnel session.
type Status string

const (
	StatusConnecting Status = "connecting"
	StatusReady      Status = "ready"
	StatusFailed     Status = "failed"
	StatusClosed     Status = "closed"
)

// Config holds the connection parameters for one tenant's 3CX host.
// Credentials are tenant-scoped secrets; they must never be logged.
type Config struct {
	Host     string
	SSHPort  int
	User     string
	Password string

	// PrivateKey is optional PEM-encoded key material, used instead of
	// (or preferred over) the password when present.
	PrivateKey []byte

	// RemoteDBPort is the PostgreSQL port on the 3CX box, forwarded as a
	// loopback-only destination from the remote host's perspective.
	RemoteDBPort int

	HandshakeTimeout time.Duration
	OpenTimeout      time.Duration
}

// withDefaults returns a copy with zero values replaced by defaults.
func (c Config) withDefaults() Config {
	if c.SSHPort == 0 {
		c.SSHPort = DefaultSSHPort
	}
	if c.RemoteDBPort == 0 {
		c.RemoteDBPort = DefaultRemoteDBPort
	}
	if c.HandshakeTimeout == 0 {
		c.HandshakeTimeout = DefaultHandshakeTimeout
	}
	if c.OpenTimeout == 0 {
		c.OpenTimeout = DefaultOpenTimeout
	}
	return c
}

// validate checks required fields.
func (c Config) validate() error {
	if c.Host == "" {
		return fmt.Errorf("tunnel config: host is required")
	}
	if c.User == "" {
		return fmt.Errorf("tunnel config: ssh user is required")
	}
	if c.Password == "" && len(c.PrivateKey) == 0 {
		return fmt.Errorf("tunnel config: ssh password or private key is required")
	}
	return nil
}

// Tunnel is one live SSH session with a forwarded loopback listener.
type Tunnel struct {
	client     *ssh.Client
	listener   net.Listener
	remoteAddr string

	mu     sync.Mutex
	status Status
	conns  map[net.Conn]struct{}

	closeOnce sync.Once
	wg        sync.WaitGroup
}

// Open establishes the SSH connection and binds the local forwarded
// listener. The returned tunnel is ready to accept database connections on
// Addr(). On any failure, including a fired open timeout, no resources are
// left behind.
func Open(ctx context.Context, cfg Config) (*Tunnel, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	cfg = cfg.withDefaults()

	ctx, cancel := context.WithTimeout(ctx, cfg.OpenTimeout)
	defer cancel()

	client, err := dialSSH(ctx, cfg)
	if err != nil {
		return nil, err
	}

	// Loopback only: the forwarded database port is never exposed beyond
	// this process's host.
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		if cerr := client.Close(); cerr != nil {
			logging.Warn().Err(cerr).Msg("ssh client close after bind failure")
		}
		return nil, fmt.Errorf("%w: %v", ErrBind, err)
	}

	t := &Tunnel{
		client:     client,
		listener:   listener,
		remoteAddr: net.JoinHostPort("127.0.0.1", strconv.Itoa(cfg.RemoteDBPort)),
		status:     StatusReady,
		conns:      make(map[net.Conn]struct{}),
	}

	t.wg.Add(1)
	go t.acceptLoop()

	logging.Debug().
		Str("host", cfg.Host).
		Int("ssh_port", cfg.SSHPort).
		Str("local_addr", listener.Addr().String()).
		Msg("tunnel ready")

	return t, nil
}

// dialSSH connects and handshakes within the config's timeouts,
// classifying failures into the auth/network taxonomy.
func dialSSH(ctx context.Context, cfg Config) (*ssh.Client, error) {
	var auth []ssh.AuthMethod
	if len(cfg.PrivateKey) > 0 {
		signer, err := ssh.ParsePrivateKey(cfg.PrivateKey)
		if err != nil {
			return nil, fmt.Errorf("%w: parse private key: %v", ErrAuth, err)
		}
		auth = append(auth, ssh.PublicKeys(signer))
	}
	if cfg.Password != "" {
		auth = append(auth, ssh.Password(cfg.Password))
	}

	sshCfg := &ssh.ClientConfig{
		User: cfg.User,
		Auth: auth,
		// Customer 3CX hosts are not enrolled in a host-key registry;
		// the SSH layer provides transport encryption while tenant
		// credentials gate access.
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         cfg.HandshakeTimeout,
	}

	addr := net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.SSHPort))

	var dialer net.Dialer
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("%w: dial %s: %v", ErrNetwork, addr, err)
	}

	// Bound the handshake too; a TCP-accepting host that never completes
	// the SSH exchange must not hold the run open.
	if deadline, ok := ctx.Deadline(); ok {
		if err := conn.SetDeadline(deadline); err != nil {
			_ = conn.Close()
			return nil, fmt.Errorf("%w: %v", ErrNetwork, err)
		}
	}

	sshConn, chans, reqs, err := ssh.NewClientConn(conn, addr, sshCfg)
	if err != nil {
		_ = conn.Close()
		kind := classifyDialError(err)
		return nil, fmt.Errorf("%w: %v", kind, err)
	}

	// Clear the handshake deadline; forwarded traffic has its own
	// run-level timeout.
	if err := conn.SetDeadline(time.Time{}); err != nil {
		_ = sshConn.Close()
		return nil, fmt.Errorf("%w: %v", ErrNetwork, err)
	}

	return ssh.NewClient(sshConn, chans, reqs), nil
}

// Addr returns the local loopback address database clients connect to.
func (t *Tunnel) Addr() string {
	return t.listener.Addr().String()
}

// LocalPort returns the OS-assigned local port.
func (t *Tunnel) LocalPort() int {
	return t.listener.Addr().(*net.TCPAddr).Port
}

// Status returns the tunnel's lifecycle state.
func (t *Tunnel) Status() Status {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.status
}

// acceptLoop forwards each accepted local connection through the SSH
// session. It exits when the listener is closed.
func (t *Tunnel) acceptLoop() {
	defer t.wg.Done()
	for {
		local, err := t.listener.Accept()
		if err != nil {
			return
		}
		if !t.track(local) {
			_ = local.Close()
			return
		}
		t.wg.Add(1)
		go t.forward(local)
	}
}

// track registers a live forwarded connection; false when closing.
func (t *Tunnel) track(conn net.Conn) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.status != StatusReady {
		return false
	}
	t.conns[conn] = struct{}{}
	return true
}

// untrack removes a finished connection.
func (t *Tunnel) untrack(conn net.Conn) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.conns, conn)
}

// forward shuttles bytes between one local connection and the remote
// database port over an SSH channel.
func (t *Tunnel) forward(local net.Conn) {
	defer t.wg.Done()
	defer t.untrack(local)
	defer func() { _ = local.Close() }()

	remote, err := t.client.Dial("tcp", t.remoteAddr)
	if err != nil {
		logging.Warn().Err(err).Str("remote", t.remoteAddr).Msg("tunnel forward dial failed")
		return
	}
	defer func() { _ = remote.Close() }()

	done := make(chan struct{}, 2)
	go func() {
		_, _ = io.Copy(remote, local)
		done <- struct{}{}
	}()
	go func() {
		_, _ = io.Copy(local, remote)
		done <- struct{}{}
	}()

	// First direction to finish tears down both; the deferred closes
	// unblock the other copy.
	<-done
}

// SFTP opens an SFTP session over the tunnel's SSH connection for pulling
// recording, voicemail, and fax payload files off the 3CX host. The caller
// closes the returned client; closing the tunnel tears it down regardless.
func (t *Tunnel) SFTP() (*sftp.Client, error) {
	t.mu.Lock()
	status := t.status
	t.mu.Unlock()
	if status != StatusReady {
		return nil, ErrClosed
	}
	client, err := sftp.NewClient(t.client)
	if err != nil {
		return nil, fmt.Errorf("%w: sftp session: %v", ErrNetwork, err)
	}
	return client, nil
}

// Close tears down the local listener, all in-flight forwards, and the SSH
// session. Safe to call more than once and on every failure path.
func (t *Tunnel) Close() error {
	var err error
	t.closeOnce.Do(func() {
		t.mu.Lock()
		t.status = StatusClosed
		open := make([]net.Conn, 0, len(t.conns))
		for c := range t.conns {
			open = append(open, c)
		}
		t.mu.Unlock()

		lerr := t.listener.Close()
		for _, c := range open {
			_ = c.Close()
		}
		cerr := t.client.Close()
		t.wg.Wait()

		if lerr != nil {
			err = lerr
		} else {
			err = cerr
		}
		logging.Debug().Msg("tunnel closed")
	})
	return err
}
