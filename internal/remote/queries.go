// BackupWiz - 3CX Communication Data Backup & Archiving
// Copyright 2026 BackupWiz
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/backupwiz/backupwiz

package remote

import (
	"context"
	"fmt"

	"github.com/backupwiz/backupwiz/internal/models"
)

// Page queries against the 3CX single-tenant schema. Every query uses
// row-wise comparison against the (timestamp, id) cursor and orders by
// timestamp ascending with the primary key as tie-break, so a page boundary
// falling between two same-timestamp rows never skips or duplicates a row.
const (
	messagesQuery = `
		SELECT idchatmessage, fkidconversation, senderparticipant, sendername, message, timesent
		FROM chatmessages
		WHERE (timesent, idchatmessage) > ($1, $2)
		ORDER BY timesent ASC, idchatmessage ASC
		LIMIT $3`

	conversationsQuery = `
		SELECT c.idconversation, c.providername, c.subject,
		       (SELECT COUNT(*) FROM chatparticipants p WHERE p.fkidconversation = c.idconversation),
		       EXISTS (SELECT 1 FROM chatparticipants p
		               WHERE p.fkidconversation = c.idconversation AND p.isexternal),
		       c.lastupdated
		FROM chatconversations c
		WHERE (c.lastupdated, c.idconversation) > ($1, $2)
		ORDER BY c.lastupdated ASC, c.idconversation ASC
		LIMIT $3`

	extensionsQuery = `
		SELECT idusers, dn, firstname, lastname, emailaddress, lastmodified
		FROM users
		WHERE (lastmodified, idusers) > ($1, $2)
		ORDER BY lastmodified ASC, idusers ASC
		LIMIT $3`

	callLogsQuery = `
		SELECT idcl_segment, fkidcl_call, src_dn, dst_dn, start_time, answer_time, end_time, direction
		FROM cl_segments
		WHERE (start_time, idcl_segment) > ($1, $2)
		ORDER BY start_time ASC, idcl_segment ASC
		LIMIT $3`

	recordingsQuery = `
		SELECT idrecording, fkidcl_call, dn, recording_url, start_time
		FROM recordings
		WHERE (start_time, idrecording) > ($1, $2)
		ORDER BY start_time ASC, idrecording ASC
		LIMIT $3`

	voicemailsQuery = `
		SELECT idvoicemail, dn, callerid, filename, received_at
		FROM voicemails
		WHERE (received_at, idvoicemail) > ($1, $2)
		ORDER BY received_at ASC, idvoicemail ASC
		LIMIT $3`

	faxesQuery = `
		SELECT idfax, sender, recipient, filename, received_at
		FROM faxes
		WHERE (received_at, idfax) > ($1, $2)
		ORDER BY received_at ASC, idfax ASC
		LIMIT $3`
)

// fetchPage runs one cursor-bounded page query and decodes each row,
// isolating per-row coercion failures instead of aborting the page. A
// missing table is reported as an empty page: older 3CX versions simply
// lack some feature tables.
func fetchPage[T any](ctx context.Context, c *Client, table, query string, after models.Cursor, limit int,
	decode func([]any) (T, *RowError)) ([]T, []*RowError, error) {

	rows, err := c.pool.Query(ctx, query, after.Timestamp, after.ID, limit)
	if err != nil {
		if isMissingTable(err) {
			return nil, nil, nil
		}
		return nil, nil, fmt.Errorf("%w: %s: %v", ErrQuery, table, err)
	}
	defer rows.Close()

	var (
		out []T
		bad []*RowError
	)
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, nil, fmt.Errorf("%w: %s: %v", ErrQuery, table, err)
		}
		entity, rerr := decode(values)
		if rerr != nil {
			bad = append(bad, rerr)
			continue
		}
		out = append(out, entity)
	}
	if err := rows.Err(); err != nil {
		if isMissingTable(err) {
			return nil, nil, nil
		}
		return nil, nil, fmt.Errorf("%w: %s: %v", ErrQuery, table, err)
	}
	return out, bad, nil
}

// FetchMessages returns the next page of chat messages after the cursor.
func (c *Client) FetchMessages(ctx context.Context, after models.Cursor, limit int) ([]models.RemoteMessage, []*RowError, error) {
	return fetchPage(ctx, c, "chatmessages", messagesQuery, after, limit, decodeMessage)
}

// FetchConversations returns the next page of conversations after the cursor.
func (c *Client) FetchConversations(ctx context.Context, after models.Cursor, limit int) ([]models.RemoteConversation, []*RowError, error) {
	return fetchPage(ctx, c, "chatconversations", conversationsQuery, after, limit, decodeConversation)
}

// FetchExtensions returns the next page of extensions after the cursor.
func (c *Client) FetchExtensions(ctx context.Context, after models.Cursor, limit int) ([]models.RemoteExtension, []*RowError, error) {
	return fetchPage(ctx, c, "users", extensionsQuery, after, limit, decodeExtension)
}

// FetchCallLogs returns the next page of CDR segments after the cursor.
func (c *Client) FetchCallLogs(ctx context.Context, after models.Cursor, limit int) ([]models.RemoteCallLog, []*RowError, error) {
	return fetchPage(ctx, c, "cl_segments", callLogsQuery, after, limit, decodeCallLog)
}

// FetchRecordings returns the next page of call recordings after the cursor.
func (c *Client) FetchRecordings(ctx context.Context, after models.Cursor, limit int) ([]models.RemoteRecording, []*RowError, error) {
	return fetchPage(ctx, c, "recordings", recordingsQuery, after, limit, decodeRecording)
}

// FetchVoicemails returns the next page of voicemails after the cursor.
func (c *Client) FetchVoicemails(ctx context.Context, after models.Cursor, limit int) ([]models.RemoteVoicemail, []*RowError, error) {
	return fetchPage(ctx, c, "voicemails", voicemailsQuery, after, limit, decodeVoicemail)
}

// FetchFaxes returns the next page of faxes after the cursor.
func (c *Client) FetchFaxes(ctx context.Context, after models.Cursor, limit int) ([]models.RemoteFax, []*RowError, error) {
	return fetchPage(ctx, c, "faxes", faxesQuery, after, limit, decodeFax)
}

// Positional decoders matching the SELECT column order above. Each field
// failure produces a RowError naming the offending column.

func decodeMessage(v []any) (models.RemoteMessage, *RowError) {
	var (
		m    models.RemoteMessage
		err  error
		zero models.RemoteMessage
	)
	if m.ID, err = asInt64(v[0]); err != nil {
		return zero, rowErr("chatmessages", "idchatmessage", err)
	}
	if m.ConversationID, err = asInt64(v[1]); err != nil {
		return zero, rowErr("chatmessages", "fkidconversation", err)
	}
	if m.Sender, err = asString(v[2]); err != nil {
		return zero, rowErr("chatmessages", "senderparticipant", err)
	}
	if m.SenderName, err = asStringPtr(v[3]); err != nil {
		return zero, rowErr("chatmessages", "sendername", err)
	}
	if m.Content, err = asString(v[4]); err != nil {
		return zero, rowErr("chatmessages", "message", err)
	}
	if m.SentAt, err = asTime(v[5]); err != nil {
		return zero, rowErr("chatmessages", "timesent", err)
	}
	return m, nil
}

func decodeConversation(v []any) (models.RemoteConversation, *RowError) {
	var (
		c    models.RemoteConversation
		err  error
		zero models.RemoteConversation
	)
	if c.ID, err = asInt64(v[0]); err != nil {
		return zero, rowErr("chatconversations", "idconversation", err)
	}
	if c.Provider, err = asString(v[1]); err != nil {
		return zero, rowErr("chatconversations", "providername", err)
	}
	if c.Subject, err = asStringPtr(v[2]); err != nil {
		return zero, rowErr("chatconversations", "subject", err)
	}
	if c.PartyCount, err = asInt(v[3]); err != nil {
		return zero, rowErr("chatconversations", "party_count", err)
	}
	if c.HasExternal, err = asBool(v[4]); err != nil {
		return zero, rowErr("chatconversations", "has_external", err)
	}
	if c.LastActivity, err = asTime(v[5]); err != nil {
		return zero, rowErr("chatconversations", "lastupdated", err)
	}
	return c, nil
}

func decodeExtension(v []any) (models.RemoteExtension, *RowError) {
	var (
		e    models.RemoteExtension
		err  error
		zero models.RemoteExtension
	)
	if e.ID, err = asInt64(v[0]); err != nil {
		return zero, rowErr("users", "idusers", err)
	}
	if e.Number, err = asString(v[1]); err != nil {
		return zero, rowErr("users", "dn", err)
	}
	if e.FirstName, err = asStringPtr(v[2]); err != nil {
		return zero, rowErr("users", "firstname", err)
	}
	if e.LastName, err = asStringPtr(v[3]); err != nil {
		return zero, rowErr("users", "lastname", err)
	}
	if e.Email, err = asStringPtr(v[4]); err != nil {
		return zero, rowErr("users", "emailaddress", err)
	}
	if e.UpdatedAt, err = asTime(v[5]); err != nil {
		return zero, rowErr("users", "lastmodified", err)
	}
	return e, nil
}

func decodeCallLog(v []any) (models.RemoteCallLog, *RowError) {
	var (
		cl   models.RemoteCallLog
		err  error
		zero models.RemoteCallLog
	)
	if cl.ID, err = asInt64(v[0]); err != nil {
		return zero, rowErr("cl_segments", "idcl_segment", err)
	}
	if cl.CallID, err = asInt64Ptr(v[1]); err != nil {
		return zero, rowErr("cl_segments", "fkidcl_call", err)
	}
	if cl.Caller, err = asString(v[2]); err != nil {
		return zero, rowErr("cl_segments", "src_dn", err)
	}
	if cl.Callee, err = asString(v[3]); err != nil {
		return zero, rowErr("cl_segments", "dst_dn", err)
	}
	if cl.StartedAt, err = asTime(v[4]); err != nil {
		return zero, rowErr("cl_segments", "start_time", err)
	}
	if cl.AnsweredAt, err = asTimePtr(v[5]); err != nil {
		return zero, rowErr("cl_segments", "answer_time", err)
	}
	if cl.EndedAt, err = asTimePtr(v[6]); err != nil {
		return zero, rowErr("cl_segments", "end_time", err)
	}
	if cl.Direction, err = asStringPtr(v[7]); err != nil {
		return zero, rowErr("cl_segments", "direction", err)
	}
	return cl, nil
}

func decodeRecording(v []any) (models.RemoteRecording, *RowError) {
	var (
		r    models.RemoteRecording
		err  error
		zero models.RemoteRecording
	)
	if r.ID, err = asInt64(v[0]); err != nil {
		return zero, rowErr("recordings", "idrecording", err)
	}
	if r.CallID, err = asInt64Ptr(v[1]); err != nil {
		return zero, rowErr("recordings", "fkidcl_call", err)
	}
	if r.Extension, err = asStringPtr(v[2]); err != nil {
		return zero, rowErr("recordings", "dn", err)
	}
	if r.FileName, err = asString(v[3]); err != nil {
		return zero, rowErr("recordings", "recording_url", err)
	}
	if r.RecordedAt, err = asTime(v[4]); err != nil {
		return zero, rowErr("recordings", "start_time", err)
	}
	return r, nil
}

func decodeVoicemail(v []any) (models.RemoteVoicemail, *RowError) {
	var (
		vm   models.RemoteVoicemail
		err  error
		zero models.RemoteVoicemail
	)
	if vm.ID, err = asInt64(v[0]); err != nil {
		return zero, rowErr("voicemails", "idvoicemail", err)
	}
	if vm.Extension, err = asString(v[1]); err != nil {
		return zero, rowErr("voicemails", "dn", err)
	}
	if vm.CallerID, err = asStringPtr(v[2]); err != nil {
		return zero, rowErr("voicemails", "callerid", err)
	}
	if vm.FileName, err = asString(v[3]); err != nil {
		return zero, rowErr("voicemails", "filename", err)
	}
	if vm.ReceivedAt, err = asTime(v[4]); err != nil {
		return zero, rowErr("voicemails", "received_at", err)
	}
	return vm, nil
}

func decodeFax(v []any) (models.RemoteFax, *RowError) {
	var (
		f    models.RemoteFax
		err  error
		zero models.RemoteFax
	)
	if f.ID, err = asInt64(v[0]); err != nil {
		return zero, rowErr("faxes", "idfax", err)
	}
	if f.Sender, err = asStringPtr(v[1]); err != nil {
		return zero, rowErr("faxes", "sender", err)
	}
	if f.Recipient, err = asStringPtr(v[2]); err != nil {
		return zero, rowErr("faxes", "recipient", err)
	}
	if f.FileName, err = asString(v[3]); err != nil {
		return zero, rowErr("faxes", "filename", err)
	}
	if f.ReceivedAt, err = asTime(v[4]); err != nil {
		return zero, rowErr("faxes", "received_at", err)
	}
	return f, nil
}
