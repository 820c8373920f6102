// BackupWiz - 3CX Communication Data Backup & Archiving
// Copyright 2026 BackupWiz
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/backupwiz/backupwiz

package reconcile

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/backupwiz/backupwiz/internal/config"
	"github.com/backupwiz/backupwiz/internal/logging"
	"github.com/backupwiz/backupwiz/internal/metrics"
	"github.com/backupwiz/backupwiz/internal/models"
	"github.com/backupwiz/backupwiz/internal/remote"
	"github.com/backupwiz/backupwiz/internal/tunnel"
)

// Source is one live connection to a tenant's 3CX host: paged table
// readers plus payload fetch. Implementations must be safe to Close
// after a partial failure.
type Source interface {
	Conversations(ctx context.Context, after models.Cursor, limit int) ([]models.RemoteConversation, []*remote.RowError, error)
	Messages(ctx context.Context, after models.Cursor, limit int) ([]models.RemoteMessage, []*remote.RowError, error)
	Extensions(ctx context.Context, after models.Cursor, limit int) ([]models.RemoteExtension, []*remote.RowError, error)
	CallLogs(ctx context.Context, after models.Cursor, limit int) ([]models.RemoteCallLog, []*remote.RowError, error)
	Recordings(ctx context.Context, after models.Cursor, limit int) ([]models.RemoteRecording, []*remote.RowError, error)
	Voicemails(ctx context.Context, after models.Cursor, limit int) ([]models.RemoteVoicemail, []*remote.RowError, error)
	Faxes(ctx context.Context, after models.Cursor, limit int) ([]models.RemoteFax, []*remote.RowError, error)

	// FetchFile streams a media payload from the tenant host. A missing
	// file surfaces as os.ErrNotExist.
	FetchFile(ctx context.Context, path string) (io.ReadCloser, int64, error)

	// ListFiles enumerates a remote directory; a missing directory is
	// zero files.
	ListFiles(ctx context.Context, dir string) ([]remote.FileInfo, error)

	Close()
}

// Opener produces a Source for a tenant. The production implementation
// opens an SSH tunnel and connects through it; tests substitute fakes.
type Opener interface {
	Open(ctx context.Context, tenant config.TenantConfig) (Source, error)
}

// TunnelOpener is the production Opener: SSH tunnel, pgx client over the
// forwarded port, SFTP session on the same SSH connection.
type TunnelOpener struct{}

func (TunnelOpener) Open(ctx context.Context, tenant config.TenantConfig) (Source, error) {
	start := time.Now()

	tcfg := tunnel.Config{
		Host:         tenant.SSH.Host,
		SSHPort:      tenant.SSH.Port,
		User:         tenant.SSH.User,
		Password:     tenant.SSH.Password,
		RemoteDBPort: tenant.DB.Port,
	}
	if tenant.SSH.PrivateKeyPath != "" {
		key, err := os.ReadFile(tenant.SSH.PrivateKeyPath)
		if err != nil {
			return nil, fmt.Errorf("read private key: %w", err)
		}
		tcfg.PrivateKey = key
	}

	tun, err := tunnel.Open(ctx, tcfg)
	if err != nil {
		metrics.RecordTunnelOpen(tenant.ID, tunnelResult(err), 0)
		return nil, err
	}
	metrics.RecordTunnelOpen(tenant.ID, "success", time.Since(start))
	logging.Ctx(ctx).Debug().
		Str("tenant", tenant.ID).
		Int("local_port", tun.LocalPort()).
		Str("ssh_password", logging.RedactSecret(tenant.SSH.Password)).
		Msg("Tunnel opened")

	client, err := remote.Connect(ctx, tun.Addr(), remote.DBConfig{
		Database: tenant.DB.Database,
		User:     tenant.DB.User,
		Password: tenant.DB.Password,
	})
	if err != nil {
		_ = tun.Close()
		return nil, err
	}

	return &tunnelSource{tunnel: tun, client: client, tenant: tenant.ID}, nil
}

func tunnelResult(err error) string {
	if errors.Is(err, tunnel.ErrAuth) {
		return "auth"
	}
	return "network"
}

// tunnelSource adapts a tunnel + remote client pair to the Source
// interface. The SFTP session is opened lazily on first payload fetch.
type tunnelSource struct {
	tunnel *tunnel.Tunnel
	client *remote.Client
	files  *remote.SFTPFiles
	tenant string
}

func (s *tunnelSource) Conversations(ctx context.Context, after models.Cursor, limit int) ([]models.RemoteConversation, []*remote.RowError, error) {
	return s.client.FetchConversations(ctx, after, limit)
}

func (s *tunnelSource) Messages(ctx context.Context, after models.Cursor, limit int) ([]models.RemoteMessage, []*remote.RowError, error) {
	return s.client.FetchMessages(ctx, after, limit)
}

func (s *tunnelSource) Extensions(ctx context.Context, after models.Cursor, limit int) ([]models.RemoteExtension, []*remote.RowError, error) {
	return s.client.FetchExtensions(ctx, after, limit)
}

func (s *tunnelSource) CallLogs(ctx context.Context, after models.Cursor, limit int) ([]models.RemoteCallLog, []*remote.RowError, error) {
	return s.client.FetchCallLogs(ctx, after, limit)
}

func (s *tunnelSource) Recordings(ctx context.Context, after models.Cursor, limit int) ([]models.RemoteRecording, []*remote.RowError, error) {
	return s.client.FetchRecordings(ctx, after, limit)
}

func (s *tunnelSource) Voicemails(ctx context.Context, after models.Cursor, limit int) ([]models.RemoteVoicemail, []*remote.RowError, error) {
	return s.client.FetchVoicemails(ctx, after, limit)
}

func (s *tunnelSource) Faxes(ctx context.Context, after models.Cursor, limit int) ([]models.RemoteFax, []*remote.RowError, error) {
	return s.client.FetchFaxes(ctx, after, limit)
}

func (s *tunnelSource) FetchFile(ctx context.Context, path string) (io.ReadCloser, int64, error) {
	if s.files == nil {
		sftpClient, err := s.tunnel.SFTP()
		if err != nil {
			return nil, 0, err
		}
		s.files = remote.NewSFTPFiles(sftpClient)
	}
	return s.files.Fetch(ctx, path)
}

func (s *tunnelSource) ListFiles(ctx context.Context, dir string) ([]remote.FileInfo, error) {
	if s.files == nil {
		sftpClient, err := s.tunnel.SFTP()
		if err != nil {
			return nil, err
		}
		s.files = remote.NewSFTPFiles(sftpClient)
	}
	return s.files.List(ctx, dir)
}

func (s *tunnelSource) Close() {
	if s.files != nil {
		if err := s.files.Close(); err != nil {
			logging.Warn().Err(err).Str("tenant", s.tenant).Msg("sftp close")
		}
	}
	s.client.Close()
	if err := s.tunnel.Close(); err != nil {
		logging.Warn().Err(err).Str("tenant", s.tenant).Msg("tunnel close")
	}
}
