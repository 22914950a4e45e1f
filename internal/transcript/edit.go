package transcript

import (
	"errors"
	"fmt"
	"sort"
	"time"
)

// Bulk speaker operation types.
const (
	OpRename   = "rename"
	OpReassign = "reassign"
	OpDelete   = "delete"
)

// SegmentUpdate is one single-segment edit request. An empty NewSpeaker
// leaves the speaker untouched.
type SegmentUpdate struct {
	Index      int
	NewText    string
	NewSpeaker string
}

// UpdateSegment applies one edit in place. The first change to a segment's
// text or speaker preserves the original value, so exported documents can
// flag individually edited segments. Returns the audit entry and a display
// message; validation failures come back as errors with UI-ready text.
func UpdateSegment(segs []Segment, upd SegmentUpdate) (AuditEntry, string, error) {
	if upd.Index < 0 || upd.Index >= len(segs) {
		return AuditEntry{}, "", errors.New("Invalid segment index")
	}
	seg := &segs[upd.Index]
	oldText, oldSpeaker := seg.Text, seg.Speaker

	textChanged := upd.NewText != oldText
	speakerChanged := upd.NewSpeaker != "" && upd.NewSpeaker != oldSpeaker
	if !textChanged && !speakerChanged {
		return AuditEntry{}, "", errors.New("No changes detected")
	}

	if textChanged && seg.OriginalText == "" {
		seg.OriginalText = oldText
	}
	if speakerChanged && seg.OriginalSpeaker == "" {
		seg.OriginalSpeaker = oldSpeaker
	}
	seg.Text = upd.NewText
	if speakerChanged {
		seg.Speaker = upd.NewSpeaker
	}

	action := "edit"
	switch {
	case textChanged && speakerChanged:
		action = "edit_with_speaker_change"
	case speakerChanged:
		action = "speaker_change"
	}

	idx := upd.Index
	entry := AuditEntry{
		Timestamp:    time.Now().UTC(),
		Action:       action,
		SegmentIndex: &idx,
		LineNumber:   seg.LineNumber,
		Speaker:      seg.Speaker,
		OldText:      oldText,
		NewText:      upd.NewText,
		StartTime:    formatClock(seg.StartSeconds()),
	}
	if speakerChanged {
		entry.OldSpeaker = oldSpeaker
		entry.NewSpeaker = upd.NewSpeaker
	}

	return entry, updateMessage(seg.LineNumber, speakerChanged, textChanged, upd.NewSpeaker), nil
}

func updateMessage(line int, speakerChanged, textChanged bool, newSpeaker string) string {
	switch {
	case speakerChanged && textChanged:
		return fmt.Sprintf("Segment #%d: Speaker changed to %q and text updated", line, newSpeaker)
	case speakerChanged:
		return fmt.Sprintf("Segment #%d: Speaker changed to %q", line, newSpeaker)
	default:
		return fmt.Sprintf("Segment #%d: Text updated", line)
	}
}

// SpeakerOp is a bulk operation over every segment carrying one speaker label.
type SpeakerOp struct {
	Type       string
	OldSpeaker string
	NewSpeaker string
}

// ApplySpeakerOp rewrites matching segments' speaker labels in place and
// maintains the available-speaker roster, which can list speakers that
// currently hold zero segments (renames still apply to those). Returns the
// updated roster and an audit entry, or nil when no segment matched.
func ApplySpeakerOp(segs []Segment, roster []string, op SpeakerOp) ([]string, *AuditEntry) {
	var affected []int
	for i := range segs {
		if segs[i].Speaker == op.OldSpeaker {
			segs[i].Speaker = op.NewSpeaker
			affected = append(affected, i)
		}
	}

	if op.Type == OpRename && contains(roster, op.OldSpeaker) {
		renamed := make([]string, 0, len(roster))
		for _, s := range roster {
			if s == op.OldSpeaker {
				s = op.NewSpeaker
			}
			renamed = append(renamed, s)
		}
		roster = dedupeSorted(renamed)
	}

	if len(affected) == 0 {
		return roster, nil
	}

	var description string
	switch op.Type {
	case OpRename:
		description = fmt.Sprintf("Renamed speaker %q to %q across %d segment(s)", op.OldSpeaker, op.NewSpeaker, len(affected))
	case OpDelete:
		description = fmt.Sprintf("Deleted speaker %q and reassigned %d segment(s) to %q", op.OldSpeaker, len(affected), op.NewSpeaker)
		roster = remove(roster, op.OldSpeaker)
	default:
		description = fmt.Sprintf("Reassigned %d segment(s) from %q to %q", len(affected), op.OldSpeaker, op.NewSpeaker)
	}

	entry := &AuditEntry{
		Timestamp:        time.Now().UTC(),
		Action:           "bulk_speaker_" + op.Type,
		SegmentCount:     len(affected),
		AffectedSegments: affected,
		OldSpeaker:       op.OldSpeaker,
		NewSpeaker:       op.NewSpeaker,
		Description:      description,
	}
	return roster, entry
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func remove(list []string, s string) []string {
	out := list[:0]
	for _, v := range list {
		if v != s {
			out = append(out, v)
		}
	}
	return out
}

func dedupeSorted(list []string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, s := range list {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	sort.Strings(out)
	return out
}
