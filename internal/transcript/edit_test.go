package transcript

import (
	"reflect"
	"testing"
)

func editFixture() []Segment {
	segs := []Segment{
		{Speaker: "Speaker 1", Text: "hello", OffsetInTicks: 0, DurationInTicks: 10000000},
		{Speaker: "Speaker 2", Text: "world", OffsetInTicks: 10000000, DurationInTicks: 10000000},
		{Speaker: "Speaker 1", Text: "again", OffsetInTicks: 20000000, DurationInTicks: 10000000},
	}
	AssignLineNumbers(segs)
	return segs
}

func TestUpdateSegment_TextOnly(t *testing.T) {
	segs := editFixture()

	entry, msg, err := UpdateSegment(segs, SegmentUpdate{Index: 0, NewText: "hello, world"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if segs[0].Text != "hello, world" {
		t.Errorf("text not applied: %q", segs[0].Text)
	}
	if segs[0].OriginalText != "hello" {
		t.Errorf("expected original text preserved, got %q", segs[0].OriginalText)
	}
	if segs[0].OriginalSpeaker != "" {
		t.Errorf("speaker untouched, original speaker should stay empty, got %q", segs[0].OriginalSpeaker)
	}
	if entry.Action != "edit" {
		t.Errorf("expected action edit, got %q", entry.Action)
	}
	if entry.SegmentIndex == nil || *entry.SegmentIndex != 0 {
		t.Errorf("expected segment index 0, got %v", entry.SegmentIndex)
	}
	if entry.OldText != "hello" || entry.NewText != "hello, world" {
		t.Errorf("unexpected audit texts: %q -> %q", entry.OldText, entry.NewText)
	}
	if msg != "Segment #1: Text updated" {
		t.Errorf("unexpected message: %q", msg)
	}
}

func TestUpdateSegment_SpeakerOnly(t *testing.T) {
	segs := editFixture()

	entry, msg, err := UpdateSegment(segs, SegmentUpdate{Index: 1, NewText: "world", NewSpeaker: "Alice"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if segs[1].Speaker != "Alice" {
		t.Errorf("speaker not applied: %q", segs[1].Speaker)
	}
	if segs[1].OriginalSpeaker != "Speaker 2" {
		t.Errorf("expected original speaker preserved, got %q", segs[1].OriginalSpeaker)
	}
	if segs[1].OriginalText != "" {
		t.Errorf("text unchanged, original text should stay empty, got %q", segs[1].OriginalText)
	}
	if entry.Action != "speaker_change" {
		t.Errorf("expected action speaker_change, got %q", entry.Action)
	}
	if entry.OldSpeaker != "Speaker 2" || entry.NewSpeaker != "Alice" {
		t.Errorf("unexpected audit speakers: %q -> %q", entry.OldSpeaker, entry.NewSpeaker)
	}
	if msg != `Segment #2: Speaker changed to "Alice"` {
		t.Errorf("unexpected message: %q", msg)
	}
}

func TestUpdateSegment_TextAndSpeaker(t *testing.T) {
	segs := editFixture()

	entry, msg, err := UpdateSegment(segs, SegmentUpdate{Index: 2, NewText: "again!", NewSpeaker: "Bob"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if entry.Action != "edit_with_speaker_change" {
		t.Errorf("expected combined action, got %q", entry.Action)
	}
	if msg != `Segment #3: Speaker changed to "Bob" and text updated` {
		t.Errorf("unexpected message: %q", msg)
	}
}

func TestUpdateSegment_FirstEditWinsOriginal(t *testing.T) {
	segs := editFixture()

	if _, _, err := UpdateSegment(segs, SegmentUpdate{Index: 0, NewText: "first edit"}); err != nil {
		t.Fatalf("first edit: %v", err)
	}
	if _, _, err := UpdateSegment(segs, SegmentUpdate{Index: 0, NewText: "second edit"}); err != nil {
		t.Fatalf("second edit: %v", err)
	}

	if segs[0].OriginalText != "hello" {
		t.Errorf("original text must survive later edits, got %q", segs[0].OriginalText)
	}
	if segs[0].Text != "second edit" {
		t.Errorf("latest text must win, got %q", segs[0].Text)
	}
	if !segs[0].TextWasChanged() {
		t.Error("expected TextWasChanged after edits")
	}
}

func TestUpdateSegment_Validation(t *testing.T) {
	segs := editFixture()

	tests := []struct {
		name    string
		upd     SegmentUpdate
		wantErr string
	}{
		{"negative index", SegmentUpdate{Index: -1, NewText: "x"}, "Invalid segment index"},
		{"index past end", SegmentUpdate{Index: 3, NewText: "x"}, "Invalid segment index"},
		{"no changes", SegmentUpdate{Index: 0, NewText: "hello"}, "No changes detected"},
		{"same speaker no text change", SegmentUpdate{Index: 0, NewText: "hello", NewSpeaker: "Speaker 1"}, "No changes detected"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := UpdateSegment(segs, tt.upd)
			if err == nil {
				t.Fatal("expected validation error")
			}
			if err.Error() != tt.wantErr {
				t.Errorf("got %q, want %q", err.Error(), tt.wantErr)
			}
		})
	}
}

func TestApplySpeakerOp_Rename(t *testing.T) {
	segs := editFixture()
	roster := []string{"Speaker 1", "Speaker 2"}

	roster, entry := ApplySpeakerOp(segs, roster, SpeakerOp{Type: OpRename, OldSpeaker: "Speaker 1", NewSpeaker: "Alice"})

	if segs[0].Speaker != "Alice" || segs[2].Speaker != "Alice" {
		t.Errorf("rename not applied to segments: %q, %q", segs[0].Speaker, segs[2].Speaker)
	}
	if segs[1].Speaker != "Speaker 2" {
		t.Errorf("other speaker must stay, got %q", segs[1].Speaker)
	}
	if !reflect.DeepEqual(roster, []string{"Alice", "Speaker 2"}) {
		t.Errorf("unexpected roster: %v", roster)
	}
	if entry == nil {
		t.Fatal("expected audit entry")
	}
	if entry.Action != "bulk_speaker_rename" {
		t.Errorf("unexpected action %q", entry.Action)
	}
	if entry.SegmentCount != 2 {
		t.Errorf("expected 2 affected segments, got %d", entry.SegmentCount)
	}
	if !reflect.DeepEqual(entry.AffectedSegments, []int{0, 2}) {
		t.Errorf("unexpected affected indices: %v", entry.AffectedSegments)
	}
	if entry.Description != `Renamed speaker "Speaker 1" to "Alice" across 2 segment(s)` {
		t.Errorf("unexpected description: %q", entry.Description)
	}
}

func TestApplySpeakerOp_RenameRosterOnlySpeaker(t *testing.T) {
	// A speaker can exist in the roster with zero segments; renaming it must
	// still update the roster even though no audit entry is produced.
	segs := editFixture()
	roster := []string{"Speaker 1", "Speaker 2", "Silent Guest"}

	roster, entry := ApplySpeakerOp(segs, roster, SpeakerOp{Type: OpRename, OldSpeaker: "Silent Guest", NewSpeaker: "Observer"})

	if entry != nil {
		t.Errorf("expected no audit entry for zero matches, got %+v", entry)
	}
	if !reflect.DeepEqual(roster, []string{"Observer", "Speaker 1", "Speaker 2"}) {
		t.Errorf("unexpected roster: %v", roster)
	}
}

func TestApplySpeakerOp_Delete(t *testing.T) {
	segs := editFixture()
	roster := []string{"Speaker 1", "Speaker 2"}

	roster, entry := ApplySpeakerOp(segs, roster, SpeakerOp{Type: OpDelete, OldSpeaker: "Speaker 2", NewSpeaker: "Speaker 1"})

	if segs[1].Speaker != "Speaker 1" {
		t.Errorf("deleted speaker's segments must be reassigned, got %q", segs[1].Speaker)
	}
	if !reflect.DeepEqual(roster, []string{"Speaker 1"}) {
		t.Errorf("deleted speaker must leave the roster: %v", roster)
	}
	if entry == nil {
		t.Fatal("expected audit entry")
	}
	if entry.Action != "bulk_speaker_delete" {
		t.Errorf("unexpected action %q", entry.Action)
	}
	if entry.Description != `Deleted speaker "Speaker 2" and reassigned 1 segment(s) to "Speaker 1"` {
		t.Errorf("unexpected description: %q", entry.Description)
	}
}

func TestApplySpeakerOp_Reassign(t *testing.T) {
	segs := editFixture()
	roster := []string{"Speaker 1", "Speaker 2"}

	roster, entry := ApplySpeakerOp(segs, roster, SpeakerOp{Type: OpReassign, OldSpeaker: "Speaker 1", NewSpeaker: "Speaker 2"})

	if segs[0].Speaker != "Speaker 2" || segs[2].Speaker != "Speaker 2" {
		t.Error("reassign not applied")
	}
	if !reflect.DeepEqual(roster, []string{"Speaker 1", "Speaker 2"}) {
		t.Errorf("reassign must keep the roster intact: %v", roster)
	}
	if entry == nil {
		t.Fatal("expected audit entry")
	}
	if entry.Description != `Reassigned 2 segment(s) from "Speaker 1" to "Speaker 2"` {
		t.Errorf("unexpected description: %q", entry.Description)
	}
}
