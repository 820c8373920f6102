// BackupWiz - 3CX Communication Data Backup & Archiving
// Copyright 2026 BackupWiz
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/backupwiz/backupwiz

package reconcile

import (
	"testing"
	"time"

	"github.com/backupwiz/backupwiz/internal/models"
)

func TestClassifyMessageType(t *testing.T) {
	tests := []struct {
		content string
		want    models.MessageType
	}{
		{"hello there", models.MessageTypeText},
		{"", models.MessageTypeText},
		{"photo1.jpg", models.MessageTypeImage},
		{"Photo1.JPG", models.MessageTypeImage},
		{"clip.mp4", models.MessageTypeVideo},
		{"note.wav", models.MessageTypeAudio},
		{"contract.pdf", models.MessageTypeFile},
		{"see photo1.jpg attached", models.MessageTypeText},
		{"photo1", models.MessageTypeText},
		{"v1.2", models.MessageTypeFile},
		{"hello.", models.MessageTypeText},
	}

	for _, tt := range tests {
		if got := classifyMessageType(tt.content); got != tt.want {
			t.Errorf("classifyMessageType(%q) = %q, want %q", tt.content, got, tt.want)
		}
	}
}

func TestClassifyParticipant(t *testing.T) {
	extensions := map[string]struct{}{"101": {}, "102": {}}

	if got := classifyParticipant("101", extensions); got != models.ParticipantExtension {
		t.Errorf("101 = %q, want extension", got)
	}
	if got := classifyParticipant("+15551234567", extensions); got != models.ParticipantExternal {
		t.Errorf("+15551234567 = %q, want external", got)
	}
}

func TestNormalizeMediaName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Photo1.JPG", "photo1"},
		{"photo1.jpg", "photo1"},
		{"photo1", "photo1"},
		{"  Voicemail.WAV ", "voicemail"},
	}
	for _, tt := range tests {
		if got := normalizeMediaName(tt.in); got != tt.want {
			t.Errorf("normalizeMediaName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestLinkAttachmentsUnambiguousMatch(t *testing.T) {
	sent := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	messages := []*models.Message{
		{TenantID: "t", RemoteID: 501, ConversationID: 9, Content: "photo1.jpg", MessageType: models.MessageTypeImage, SentAt: sent},
		{TenantID: "t", RemoteID: 502, ConversationID: 9, Content: "hello", MessageType: models.MessageTypeText, SentAt: sent},
	}

	// Case and extension differ between disk and message content.
	linked := linkAttachments("t", []string{"Photo1.JPG"}, messages)
	if len(linked) != 1 {
		t.Fatalf("got %d artifacts, want 1", len(linked))
	}
	mf := linked[0]
	if mf.MessageID == nil || *mf.MessageID != 501 {
		t.Errorf("message_id = %v, want 501", mf.MessageID)
	}
	if mf.ConversationID == nil || *mf.ConversationID != 9 {
		t.Errorf("conversation_id = %v, want 9", mf.ConversationID)
	}
	if !mf.CreatedAt.Equal(sent) {
		t.Errorf("created_at = %v, want message sent time", mf.CreatedAt)
	}
}

func TestLinkAttachmentsExtensionlessContent(t *testing.T) {
	// Message content without extension still matches the on-disk name,
	// provided the message was classified as media by other means.
	messages := []*models.Message{
		{TenantID: "t", RemoteID: 501, ConversationID: 9, Content: "photo1", MessageType: models.MessageTypeImage},
	}
	linked := linkAttachments("t", []string{"Photo1.JPG"}, messages)
	if linked[0].MessageID == nil || *linked[0].MessageID != 501 {
		t.Errorf("message_id = %v, want 501", linked[0].MessageID)
	}
}

func TestLinkAttachmentsAmbiguityLeftUnlinked(t *testing.T) {
	messages := []*models.Message{
		{TenantID: "t", RemoteID: 501, ConversationID: 9, Content: "photo1.jpg", MessageType: models.MessageTypeImage},
		{TenantID: "t", RemoteID: 502, ConversationID: 10, Content: "PHOTO1.jpg", MessageType: models.MessageTypeImage},
	}
	linked := linkAttachments("t", []string{"photo1.jpg"}, messages)
	if linked[0].MessageID != nil {
		t.Errorf("ambiguous artifact linked to message %d, want unlinked", *linked[0].MessageID)
	}
	if linked[0].ConversationID != nil {
		t.Error("ambiguous artifact should not carry a conversation id")
	}
}

func TestMediaFileIDStable(t *testing.T) {
	if mediaFileID("photo1.jpg") != mediaFileID("photo1.jpg") {
		t.Error("id not stable across calls")
	}
	if mediaFileID("photo1.jpg") == mediaFileID("photo2.jpg") {
		t.Error("distinct names collided")
	}
	if mediaFileID("photo1.jpg") < 0 {
		t.Error("id should be non-negative")
	}
}

func TestMapConversationGroupHeuristic(t *testing.T) {
	r := models.RemoteConversation{ID: 9, Provider: "3cx", PartyCount: 3, HasExternal: true}
	conv := mapConversation("t", r)
	if !conv.IsGroupChat {
		t.Error("3 parties should be a group chat")
	}
	if !conv.IsExternal {
		t.Error("HasExternal should map through")
	}

	r.PartyCount = 2
	if mapConversation("t", r).IsGroupChat {
		t.Error("2 parties is not a group chat")
	}
}

func TestMapCallLogDuration(t *testing.T) {
	answered := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	ended := answered.Add(95 * time.Second)
	r := models.RemoteCallLog{ID: 7, Caller: "101", Callee: "+15550001111", StartedAt: answered.Add(-5 * time.Second), AnsweredAt: &answered, EndedAt: &ended}

	cl := mapCallLog("t", r)
	if cl.DurationSec == nil || *cl.DurationSec != 95 {
		t.Errorf("duration = %v, want 95", cl.DurationSec)
	}

	// Unanswered call has no duration.
	r.AnsweredAt = nil
	if mapCallLog("t", r).DurationSec != nil {
		t.Error("unanswered call should have nil duration")
	}
}

func TestContentTypeFor(t *testing.T) {
	if got := contentTypeFor("call.WAV"); got != "audio/wav" {
		t.Errorf("call.WAV = %q", got)
	}
	if got := contentTypeFor("weird.bin"); got != "application/octet-stream" {
		t.Errorf("weird.bin = %q", got)
	}
}

func TestPageCursorUsesMaxPosition(t *testing.T) {
	base := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	rows := []models.RemoteMessage{
		{ID: 502, SentAt: base.Add(time.Second)},
		{ID: 500, SentAt: base},
		{ID: 501, SentAt: base},
	}
	got := pageCursor(rows)
	want := models.Cursor{Timestamp: base.Add(time.Second), ID: 502}
	if got != want {
		t.Errorf("pageCursor = %+v, want %+v", got, want)
	}
	if !pageCursor([]models.RemoteMessage{}).IsZero() {
		t.Error("empty page should yield the zero cursor")
	}
}
