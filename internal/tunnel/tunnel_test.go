// BackupWiz - 3CX Communication Data Backup & Archiving
// Copyright 2026 BackupWiz
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/backupwiz/backupwiz

package tunnel

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"io"
	"net"
	"strconv"
	"testing"
	"time"

	"golang.org/x/crypto/ssh"
)

const (
	testUser     = "root"
	testPassword = "3cx-admin-pw"
)

// startEchoServer starts a TCP server that echoes everything back,
// standing in for the remote PostgreSQL port.
func startEchoServer(t *testing.T) int {
	t.Helper()

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("echo listen: %v", err)
	}
	t.Cleanup(func() { _ = listener.Close() })

	go func() {
		for {
			conn, err := listener.Accept()
			if err != nil {
				return
			}
			go func(c net.Conn) {
				defer func() { _ = c.Close() }()
				_, _ = io.Copy(c, c)
			}(conn)
		}
	}()

	return listener.Addr().(*net.TCPAddr).Port
}

// directTCPIPMsg is the payload of an SSH direct-tcpip channel open request.
type directTCPIPMsg struct {
	DestAddr string
	DestPort uint32
	OrigAddr string
	OrigPort uint32
}

// startSSHServer starts a minimal password-auth SSH server that honors
// direct-tcpip forwarding, mimicking the sshd on a customer's 3CX host.
func startSSHServer(t *testing.T) (host string, port int) {
	t.Helper()

	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate host key: %v", err)
	}
	signer, err := ssh.NewSignerFromKey(priv)
	if err != nil {
		t.Fatalf("host key signer: %v", err)
	}

	serverCfg := &ssh.ServerConfig{
		PasswordCallback: func(meta ssh.ConnMetadata, password []byte) (*ssh.Permissions, error) {
			if meta.User() == testUser && string(password) == testPassword {
				return nil, nil
			}
			return nil, errors.New("access denied")
		},
	}
	serverCfg.AddHostKey(signer)

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("ssh listen: %v", err)
	}
	t.Cleanup(func() { _ = listener.Close() })

	go func() {
		for {
			tcpConn, err := listener.Accept()
			if err != nil {
				return
			}
			go serveSSHConn(tcpConn, serverCfg)
		}
	}()

	addr := listener.Addr().(*net.TCPAddr)
	return "127.0.0.1", addr.Port
}

func serveSSHConn(tcpConn net.Conn, cfg *ssh.ServerConfig) {
	sshConn, chans, reqs, err := ssh.NewServerConn(tcpConn, cfg)
	if err != nil {
		return
	}
	defer func() { _ = sshConn.Close() }()
	go ssh.DiscardRequests(reqs)

	for newChan := range chans {
		if newChan.ChannelType() != "direct-tcpip" {
			_ = newChan.Reject(ssh.UnknownChannelType, "unsupported channel type")
			continue
		}

		var msg directTCPIPMsg
		if err := ssh.Unmarshal(newChan.ExtraData(), &msg); err != nil {
			_ = newChan.Reject(ssh.ConnectionFailed, "bad payload")
			continue
		}

		target, err := net.Dial("tcp", net.JoinHostPort(msg.DestAddr, strconv.Itoa(int(msg.DestPort))))
		if err != nil {
			_ = newChan.Reject(ssh.ConnectionFailed, "dial failed")
			continue
		}

		channel, chanReqs, err := newChan.Accept()
		if err != nil {
			_ = target.Close()
			continue
		}
		go ssh.DiscardRequests(chanReqs)

		go func() {
			defer func() { _ = channel.Close() }()
			defer func() { _ = target.Close() }()
			go func() { _, _ = io.Copy(target, channel) }()
			_, _ = io.Copy(channel, target)
		}()
	}
}

func testConfig(host string, sshPort, dbPort int) Config {
	return Config{
		Host:         host,
		SSHPort:      sshPort,
		User:         testUser,
		Password:     testPassword,
		RemoteDBPort: dbPort,
	}
}

func TestOpenForwardsToRemoteDBPort(t *testing.T) {
	dbPort := startEchoServer(t)
	host, sshPort := startSSHServer(t)

	tun, err := Open(context.Background(), testConfig(host, sshPort, dbPort))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer func() { _ = tun.Close() }()

	if tun.Status() != StatusReady {
		t.Errorf("status = %q, want %q", tun.Status(), StatusReady)
	}

	conn, err := net.Dial("tcp", tun.Addr())
	if err != nil {
		t.Fatalf("dial forwarded port: %v", err)
	}
	defer func() { _ = conn.Close() }()

	payload := []byte("SELECT 1")
	if _, err := conn.Write(payload); err != nil {
		t.Fatalf("write: %v", err)
	}

	got := make([]byte, len(payload))
	if err := conn.SetReadDeadline(time.Now().Add(5 * time.Second)); err != nil {
		t.Fatalf("set deadline: %v", err)
	}
	if _, err := io.ReadFull(conn, got); err != nil {
		t.Fatalf("read: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Errorf("echo mismatch: got %q, want %q", got, payload)
	}
}

func TestOpenConcurrentForwards(t *testing.T) {
	dbPort := startEchoServer(t)
	host, sshPort := startSSHServer(t)

	tun, err := Open(context.Background(), testConfig(host, sshPort, dbPort))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer func() { _ = tun.Close() }()

	// Multiple local connections must multiplex over one SSH session.
	results := make(chan error, 3)
	for i := 0; i < 3; i++ {
		go func(n int) {
			conn, err := net.Dial("tcp", tun.Addr())
			if err != nil {
				results <- err
				return
			}
			defer func() { _ = conn.Close() }()

			msg := []byte{byte('a' + n)}
			if _, err := conn.Write(msg); err != nil {
				results <- err
				return
			}
			got := make([]byte, 1)
			_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
			if _, err := io.ReadFull(conn, got); err != nil {
				results <- err
				return
			}
			if got[0] != msg[0] {
				results <- errors.New("echo mismatch")
				return
			}
			results <- nil
		}(i)
	}
	for i := 0; i < 3; i++ {
		if err := <-results; err != nil {
			t.Errorf("forward %d: %v", i, err)
		}
	}
}

func TestOpenAuthFailure(t *testing.T) {
	host, sshPort := startSSHServer(t)

	cfg := testConfig(host, sshPort, 5432)
	cfg.Password = "wrong-password"

	_, err := Open(context.Background(), cfg)
	if err == nil {
		t.Fatal("expected auth error")
	}
	if !errors.Is(err, ErrAuth) {
		t.Errorf("error = %v, want ErrAuth", err)
	}
}

func TestOpenNetworkFailure(t *testing.T) {
	// Bind and immediately close a port so nothing listens on it.
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	deadPort := listener.Addr().(*net.TCPAddr).Port
	_ = listener.Close()

	cfg := testConfig("127.0.0.1", deadPort, 5432)
	cfg.OpenTimeout = 3 * time.Second

	_, err = Open(context.Background(), cfg)
	if err == nil {
		t.Fatal("expected network error")
	}
	if !errors.Is(err, ErrNetwork) {
		t.Errorf("error = %v, want ErrNetwork", err)
	}
}

func TestOpenTimeoutAgainstSilentHost(t *testing.T) {
	// A listener that accepts TCP but never speaks SSH must not hold the
	// open call past its timeout.
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer func() { _ = listener.Close() }()
	go func() {
		for {
			conn, err := listener.Accept()
			if err != nil {
				return
			}
			// Hold the connection open without responding.
			defer func() { _ = conn.Close() }()
		}
	}()

	cfg := testConfig("127.0.0.1", listener.Addr().(*net.TCPAddr).Port, 5432)
	cfg.OpenTimeout = 500 * time.Millisecond
	cfg.HandshakeTimeout = 500 * time.Millisecond

	start := time.Now()
	_, err = Open(context.Background(), cfg)
	if err == nil {
		t.Fatal("expected timeout error")
	}
	if !errors.Is(err, ErrNetwork) {
		t.Errorf("error = %v, want ErrNetwork", err)
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Errorf("open took %v, should fail near the 500ms timeout", elapsed)
	}
}

func TestOpenValidation(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{"missing host", Config{User: "u", Password: "p"}},
		{"missing user", Config{Host: "h", Password: "p"}},
		{"missing password", Config{Host: "h", User: "u"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Open(context.Background(), tt.cfg); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestCloseIdempotent(t *testing.T) {
	dbPort := startEchoServer(t)
	host, sshPort := startSSHServer(t)

	tun, err := Open(context.Background(), testConfig(host, sshPort, dbPort))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	if err := tun.Close(); err != nil {
		t.Errorf("first close: %v", err)
	}
	if err := tun.Close(); err != nil {
		t.Errorf("second close: %v", err)
	}
	if tun.Status() != StatusClosed {
		t.Errorf("status = %q, want %q", tun.Status(), StatusClosed)
	}
}

func TestCloseReleasesListener(t *testing.T) {
	dbPort := startEchoServer(t)
	host, sshPort := startSSHServer(t)

	tun, err := Open(context.Background(), testConfig(host, sshPort, dbPort))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	addr := tun.Addr()
	if err := tun.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	// The ephemeral port must be released: a fresh bind on it succeeds.
	if _, err := net.Dial("tcp", addr); err == nil {
		t.Error("dialing a closed tunnel should fail")
	}
	relisten, err := net.Listen("tcp", addr)
	if err != nil {
		t.Errorf("port not released after close: %v", err)
	} else {
		_ = relisten.Close()
	}
}

func TestCloseUnblocksInFlightForward(t *testing.T) {
	dbPort := startEchoServer(t)
	host, sshPort := startSSHServer(t)

	tun, err := Open(context.Background(), testConfig(host, sshPort, dbPort))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	conn, err := net.Dial("tcp", tun.Addr())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer func() { _ = conn.Close() }()

	// Close with the forward still active; Close must not hang.
	done := make(chan error, 1)
	go func() { done <- tun.Close() }()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("close: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Close hung with an in-flight forward")
	}
}
