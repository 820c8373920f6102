// BackupWiz - 3CX Communication Data Backup & Archiving
// Copyright 2026 BackupWiz
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/backupwiz/backupwiz

package reconcile

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"strings"

	"github.com/backupwiz/backupwiz/internal/config"
	"github.com/backupwiz/backupwiz/internal/logging"
	"github.com/backupwiz/backupwiz/internal/metrics"
	"github.com/backupwiz/backupwiz/internal/models"
	"github.com/backupwiz/backupwiz/internal/remote"
	"github.com/backupwiz/backupwiz/internal/sink"
)

func (e *Engine) pageSize() int {
	if e.cfg.PageSize <= 0 {
		return 500
	}
	return e.cfg.PageSize
}

// pageCursor is the position a fully processed page advances to: the
// maximum (timestamp, id) across the page rather than the last row, so
// a source that delivers a page out of order can never move the cursor
// backwards.
func pageCursor[T models.RemoteRow](rows []T) models.Cursor {
	page := make([]models.RemoteRow, len(rows))
	for i, r := range rows {
		page[i] = r
	}
	return models.MaxCursor(page)
}

// syncMessages pages through chat messages and conversations together:
// the conversation descriptors land first so message rows always have a
// parent, then messages, synthesized participants, recomputed aggregates,
// and finally the on-disk attachment artifacts.
func (e *Engine) syncMessages(ctx context.Context, src Source, tenant config.TenantConfig, cursor models.Cursor, stats *runStats) (models.Cursor, error) {
	extensions, err := e.archive.ExtensionNumbers(ctx, tenant.ID)
	if err != nil {
		return cursor, err
	}

	if err := e.syncConversations(ctx, src, tenant, stats); err != nil {
		return cursor, err
	}

	limit := e.pageSize()
	touched := make(map[int64]struct{})
	var runMessages []*models.Message

	for {
		rows, rowErrs, err := fetchPage(ctx, e, tenant.ID, func() ([]models.RemoteMessage, []*remote.RowError, error) {
			return src.Messages(ctx, cursor, limit)
		})
		if err != nil {
			return cursor, err
		}
		countRowErrors(rowErrs, stats, tenant.ID)
		if len(rows) == 0 {
			break
		}

		for _, r := range rows {
			msg := mapMessage(tenant.ID, r)
			part := participantFor(tenant.ID, msg, extensions)

			err := e.writeRow(ctx, func() error {
				if err := e.archive.UpsertMessage(ctx, msg); err != nil {
					return err
				}
				return e.archive.UpsertParticipant(ctx, part)
			})
			if err != nil {
				logging.Warn().Err(err).Str("tenant", tenant.ID).Int64("message_id", msg.RemoteID).Msg("Message write failed, skipping row")
				stats.failed++
				continue
			}

			touched[msg.ConversationID] = struct{}{}
			runMessages = append(runMessages, msg)
			stats.synced++
		}

		// The page is fully processed; only now may the cursor move.
		cursor = pageCursor(rows)
		if len(rows) < limit {
			break
		}
	}

	for cid := range touched {
		if err := e.ensureConversation(ctx, tenant.ID, cid); err != nil {
			return cursor, err
		}
		if err := e.writeRow(ctx, func() error {
			return e.archive.RefreshConversationAggregates(ctx, tenant.ID, cid)
		}); err != nil {
			return cursor, err
		}
	}

	if err := e.syncAttachments(ctx, src, tenant, runMessages, stats); err != nil {
		return cursor, err
	}

	return cursor, nil
}

// syncConversations upserts all conversation descriptors. Conversations
// are few relative to messages and carry no own checkpoint: their cursor
// is folded into the messages sync.
func (e *Engine) syncConversations(ctx context.Context, src Source, tenant config.TenantConfig, stats *runStats) error {
	limit := e.pageSize()
	cursor := models.Cursor{}

	for {
		rows, rowErrs, err := fetchPage(ctx, e, tenant.ID, func() ([]models.RemoteConversation, []*remote.RowError, error) {
			return src.Conversations(ctx, cursor, limit)
		})
		if err != nil {
			return err
		}
		countRowErrors(rowErrs, stats, tenant.ID)
		if len(rows) == 0 {
			return nil
		}

		for _, r := range rows {
			conv := mapConversation(tenant.ID, r)
			if err := e.writeRow(ctx, func() error {
				return e.archive.UpsertConversation(ctx, conv)
			}); err != nil {
				logging.Warn().Err(err).Str("tenant", tenant.ID).Int64("conversation_id", conv.RemoteID).Msg("Conversation write failed, skipping row")
				stats.failed++
			}
		}

		cursor = pageCursor(rows)
		if len(rows) < limit {
			return nil
		}
	}
}

// ensureConversation creates a stub conversation when messages reference
// one the descriptor sync has not seen (deleted remotely, or created
// between the two page loops). The archive never orphans messages.
func (e *Engine) ensureConversation(ctx context.Context, tenantID string, conversationID int64) error {
	existing, err := e.archive.Conversation(ctx, tenantID, conversationID)
	if err != nil {
		return err
	}
	if existing != nil {
		return nil
	}
	return e.writeRow(ctx, func() error {
		return e.archive.UpsertConversation(ctx, &models.Conversation{
			TenantID: tenantID,
			RemoteID: conversationID,
			Provider: "3cx",
		})
	})
}

// syncAttachments archives on-disk chat files, linking each to its
// message by normalized filename when the match is unambiguous.
func (e *Engine) syncAttachments(ctx context.Context, src Source, tenant config.TenantConfig, messages []*models.Message, stats *runStats) error {
	files, err := src.ListFiles(ctx, tenant.Paths.ChatFiles)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return nil
	}

	infoByName := make(map[string]remote.FileInfo, len(files))
	names := make([]string, 0, len(files))
	for _, f := range files {
		infoByName[f.Name] = f
		names = append(names, f.Name)
	}

	for _, mf := range linkAttachments(tenant.ID, names, messages) {
		info := infoByName[mf.FileName]
		size := info.Size
		mf.SizeBytes = &size
		if mf.CreatedAt.IsZero() {
			mf.CreatedAt = info.ModTime
		}

		ref, err := e.storePayload(ctx, src, tenant.ID, "attachments", mf.RemoteID,
			path.Join(tenant.Paths.ChatFiles, mf.FileName), mf.FileName)
		if err != nil {
			logging.Warn().Err(err).Str("tenant", tenant.ID).Msg("Attachment payload fetch failed, skipping")
			stats.failed++
			continue
		}
		mf.StorageRef = ref

		if err := e.writeRow(ctx, func() error {
			return e.archive.UpsertMediaFile(ctx, mf)
		}); err != nil {
			logging.Warn().Err(err).Str("tenant", tenant.ID).Msg("Attachment write failed, skipping")
			stats.failed++
		}
	}
	return nil
}

func (e *Engine) syncExtensions(ctx context.Context, src Source, tenant config.TenantConfig, cursor models.Cursor, stats *runStats) (models.Cursor, error) {
	limit := e.pageSize()

	for {
		rows, rowErrs, err := fetchPage(ctx, e, tenant.ID, func() ([]models.RemoteExtension, []*remote.RowError, error) {
			return src.Extensions(ctx, cursor, limit)
		})
		if err != nil {
			return cursor, err
		}
		countRowErrors(rowErrs, stats, tenant.ID)
		if len(rows) == 0 {
			return cursor, nil
		}

		for _, r := range rows {
			ext := mapExtension(tenant.ID, r)
			if err := e.writeRow(ctx, func() error {
				return e.archive.UpsertExtension(ctx, ext)
			}); err != nil {
				logging.Warn().Err(err).Str("tenant", tenant.ID).Int64("extension_id", ext.RemoteID).Msg("Extension write failed, skipping row")
				stats.failed++
				continue
			}
			stats.synced++
		}

		cursor = pageCursor(rows)
		if len(rows) < limit {
			return cursor, nil
		}
	}
}

func (e *Engine) syncCallLogs(ctx context.Context, src Source, tenant config.TenantConfig, cursor models.Cursor, stats *runStats) (models.Cursor, error) {
	limit := e.pageSize()

	for {
		rows, rowErrs, err := fetchPage(ctx, e, tenant.ID, func() ([]models.RemoteCallLog, []*remote.RowError, error) {
			return src.CallLogs(ctx, cursor, limit)
		})
		if err != nil {
			return cursor, err
		}
		countRowErrors(rowErrs, stats, tenant.ID)
		if len(rows) == 0 {
			return cursor, nil
		}

		for _, r := range rows {
			cl := mapCallLog(tenant.ID, r)
			if err := e.writeRow(ctx, func() error {
				return e.archive.UpsertCallLog(ctx, cl)
			}); err != nil {
				logging.Warn().Err(err).Str("tenant", tenant.ID).Int64("segment_id", cl.RemoteID).Msg("Call log write failed, skipping row")
				stats.failed++
				continue
			}
			stats.synced++
		}

		cursor = pageCursor(rows)
		if len(rows) < limit {
			return cursor, nil
		}
	}
}

func (e *Engine) syncRecordings(ctx context.Context, src Source, tenant config.TenantConfig, cursor models.Cursor, stats *runStats) (models.Cursor, error) {
	limit := e.pageSize()

	for {
		rows, rowErrs, err := fetchPage(ctx, e, tenant.ID, func() ([]models.RemoteRecording, []*remote.RowError, error) {
			return src.Recordings(ctx, cursor, limit)
		})
		if err != nil {
			return cursor, err
		}
		countRowErrors(rowErrs, stats, tenant.ID)
		if len(rows) == 0 {
			return cursor, nil
		}

		for _, r := range rows {
			ref, err := e.storePayload(ctx, src, tenant.ID, "recordings", r.ID,
				path.Join(tenant.Paths.Recordings, r.FileName), r.FileName)
			if err != nil {
				logging.Warn().Err(err).Str("tenant", tenant.ID).Int64("recording_id", r.ID).Msg("Recording payload failed, skipping row")
				stats.failed++
				continue
			}

			rec := &models.Recording{
				TenantID:   tenant.ID,
				RemoteID:   r.ID,
				CallID:     r.CallID,
				Extension:  r.Extension,
				FileName:   r.FileName,
				StorageRef: ref,
				RecordedAt: r.RecordedAt,
			}
			if err := e.writeRow(ctx, func() error {
				return e.archive.UpsertRecording(ctx, rec)
			}); err != nil {
				logging.Warn().Err(err).Str("tenant", tenant.ID).Int64("recording_id", r.ID).Msg("Recording write failed, skipping row")
				stats.failed++
				continue
			}
			stats.synced++
		}

		cursor = pageCursor(rows)
		if len(rows) < limit {
			return cursor, nil
		}
	}
}

func (e *Engine) syncVoicemails(ctx context.Context, src Source, tenant config.TenantConfig, cursor models.Cursor, stats *runStats) (models.Cursor, error) {
	limit := e.pageSize()

	for {
		rows, rowErrs, err := fetchPage(ctx, e, tenant.ID, func() ([]models.RemoteVoicemail, []*remote.RowError, error) {
			return src.Voicemails(ctx, cursor, limit)
		})
		if err != nil {
			return cursor, err
		}
		countRowErrors(rowErrs, stats, tenant.ID)
		if len(rows) == 0 {
			return cursor, nil
		}

		for _, r := range rows {
			ref, err := e.storePayload(ctx, src, tenant.ID, "voicemails", r.ID,
				path.Join(tenant.Paths.Voicemails, r.FileName), r.FileName)
			if err != nil {
				logging.Warn().Err(err).Str("tenant", tenant.ID).Int64("voicemail_id", r.ID).Msg("Voicemail payload failed, skipping row")
				stats.failed++
				continue
			}

			vm := &models.Voicemail{
				TenantID:   tenant.ID,
				RemoteID:   r.ID,
				Extension:  r.Extension,
				CallerID:   r.CallerID,
				FileName:   r.FileName,
				StorageRef: ref,
				ReceivedAt: r.ReceivedAt,
			}
			if err := e.writeRow(ctx, func() error {
				return e.archive.UpsertVoicemail(ctx, vm)
			}); err != nil {
				logging.Warn().Err(err).Str("tenant", tenant.ID).Int64("voicemail_id", r.ID).Msg("Voicemail write failed, skipping row")
				stats.failed++
				continue
			}
			stats.synced++
		}

		cursor = pageCursor(rows)
		if len(rows) < limit {
			return cursor, nil
		}
	}
}

func (e *Engine) syncFaxes(ctx context.Context, src Source, tenant config.TenantConfig, cursor models.Cursor, stats *runStats) (models.Cursor, error) {
	limit := e.pageSize()

	for {
		rows, rowErrs, err := fetchPage(ctx, e, tenant.ID, func() ([]models.RemoteFax, []*remote.RowError, error) {
			return src.Faxes(ctx, cursor, limit)
		})
		if err != nil {
			return cursor, err
		}
		countRowErrors(rowErrs, stats, tenant.ID)
		if len(rows) == 0 {
			return cursor, nil
		}

		for _, r := range rows {
			ref, err := e.storePayload(ctx, src, tenant.ID, "faxes", r.ID,
				path.Join(tenant.Paths.Faxes, r.FileName), r.FileName)
			if err != nil {
				logging.Warn().Err(err).Str("tenant", tenant.ID).Int64("fax_id", r.ID).Msg("Fax payload failed, skipping row")
				stats.failed++
				continue
			}

			fax := &models.Fax{
				TenantID:   tenant.ID,
				RemoteID:   r.ID,
				Sender:     r.Sender,
				Recipient:  r.Recipient,
				FileName:   r.FileName,
				StorageRef: ref,
				ReceivedAt: r.ReceivedAt,
			}
			if err := e.writeRow(ctx, func() error {
				return e.archive.UpsertFax(ctx, fax)
			}); err != nil {
				logging.Warn().Err(err).Str("tenant", tenant.ID).Int64("fax_id", r.ID).Msg("Fax write failed, skipping row")
				stats.failed++
				continue
			}
			stats.synced++
		}

		cursor = pageCursor(rows)
		if len(rows) < limit {
			return cursor, nil
		}
	}
}

// storePayload streams one media payload into object storage and returns
// its reference. A payload 3CX retention already purged is not a failure:
// the metadata row is archived with an empty reference.
func (e *Engine) storePayload(ctx context.Context, src Source, tenantID, kind string, remoteID int64, remotePath, fileName string) (string, error) {
	rc, size, err := src.FetchFile(ctx, remotePath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			logging.Debug().Str("tenant", tenantID).Str("kind", kind).Str("file", fileName).Msg("Payload already purged on remote host")
			return "", nil
		}
		return "", err
	}
	defer func() {
		if cerr := rc.Close(); cerr != nil {
			logging.Warn().Err(cerr).Str("tenant", tenantID).Msg("payload reader close")
		}
	}()

	key := sink.ObjectKey(tenantID, kind, remoteID, fileName)
	ref, err := e.objects.Put(ctx, key, rc, size, contentTypeFor(fileName))
	if err != nil {
		return "", fmt.Errorf("store payload %s: %w", key, err)
	}

	metrics.MediaBytesFetched.WithLabelValues(tenantID, kind).Add(float64(size))
	return ref, nil
}

var contentTypes = map[string]string{
	".wav":  "audio/wav",
	".mp3":  "audio/mpeg",
	".ogg":  "audio/ogg",
	".opus": "audio/opus",
	".pdf":  "application/pdf",
	".tif":  "image/tiff",
	".tiff": "image/tiff",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".mp4":  "video/mp4",
}

func contentTypeFor(fileName string) string {
	if ct, ok := contentTypes[strings.ToLower(path.Ext(fileName))]; ok {
		return ct
	}
	return "application/octet-stream"
}
