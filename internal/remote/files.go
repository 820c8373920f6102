// BackupWiz - 3CX Communication Data Backup & Archiving
// Copyright 2026 BackupWiz
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/backupwiz/backupwiz

package remote

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/pkg/sftp"
)

// SFTPFiles pulls recording, voicemail, and fax payload files off the 3CX
// host over the tunnel's SSH session. 3CX stores media on disk, not in the
// database, so binaries travel this parallel path while their metadata rows
// come through the query client.
type SFTPFiles struct {
	client *sftp.Client
}

// NewSFTPFiles wraps an SFTP session obtained from tunnel.Tunnel.SFTP.
func NewSFTPFiles(client *sftp.Client) *SFTPFiles {
	return &SFTPFiles{client: client}
}

// Fetch opens one remote payload file for streaming. The caller closes the
// reader; size is reported for the object-storage upload. A vanished file
// (purged by 3CX retention before our sync reached it) is reported as
// os.ErrNotExist so the caller can skip the row rather than fail the run.
func (f *SFTPFiles) Fetch(ctx context.Context, path string) (io.ReadCloser, int64, error) {
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}

	info, err := f.client.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, 0, fmt.Errorf("remote payload %s: %w", path, os.ErrNotExist)
		}
		return nil, 0, fmt.Errorf("%w: stat %s: %v", ErrConnection, path, err)
	}

	file, err := f.client.Open(path)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: open %s: %v", ErrConnection, path, err)
	}
	return file, info.Size(), nil
}

// FileInfo describes one remote file found by List.
type FileInfo struct {
	Name    string
	Size    int64
	ModTime time.Time
}

// List enumerates the regular files in a remote directory, used to match
// chat attachments on disk against archived messages. A missing directory
// is reported as zero files, mirroring the missing-table tolerance of the
// query client.
func (f *SFTPFiles) List(ctx context.Context, dir string) ([]FileInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	entries, err := f.client.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: readdir %s: %v", ErrConnection, dir, err)
	}

	files := make([]FileInfo, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		files = append(files, FileInfo{Name: e.Name(), Size: e.Size(), ModTime: e.ModTime()})
	}
	return files, nil
}

// Close shuts down the SFTP session.
func (f *SFTPFiles) Close() error {
	return f.client.Close()
}
