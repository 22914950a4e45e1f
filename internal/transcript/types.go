package transcript

import (
	"encoding/json"
	"fmt"
	"time"
)

// TicksPerSecond converts the service's 100-nanosecond tick unit to seconds.
const TicksPerSecond = 10_000_000

// Segment is one diarized utterance with timing in ticks.
type Segment struct {
	Speaker         string `json:"speaker"`
	Text            string `json:"text"`
	OffsetInTicks   int64  `json:"offsetInTicks"`
	DurationInTicks int64  `json:"durationInTicks"`
	LineNumber      int    `json:"lineNumber"`
	OriginalSpeaker string `json:"originalSpeaker,omitempty"`
	OriginalText    string `json:"originalText,omitempty"`
}

// StartSeconds is the utterance start converted from ticks.
func (s Segment) StartSeconds() float64 {
	return float64(s.OffsetInTicks) / TicksPerSecond
}

// EndSeconds is the utterance end converted from ticks.
func (s Segment) EndSeconds() float64 {
	return float64(s.OffsetInTicks+s.DurationInTicks) / TicksPerSecond
}

// SpeakerWasChanged reports whether an edit moved this segment to a new speaker.
func (s Segment) SpeakerWasChanged() bool {
	return s.OriginalSpeaker != "" && s.Speaker != s.OriginalSpeaker
}

// TextWasChanged reports whether an edit rewrote this segment's text.
func (s Segment) TextWasChanged() bool {
	return s.OriginalText != "" && s.Text != s.OriginalText
}

// segmentJSON is the wire form consumed by the editing UI: stored fields plus
// the derived timing and edit-tracking fields.
type segmentJSON struct {
	Speaker              string  `json:"speaker"`
	Text                 string  `json:"text"`
	OffsetInTicks        int64   `json:"offsetInTicks"`
	DurationInTicks      int64   `json:"durationInTicks"`
	LineNumber           int     `json:"lineNumber"`
	OriginalSpeaker      *string `json:"originalSpeaker"`
	OriginalText         *string `json:"originalText"`
	StartTimeInSeconds   float64 `json:"startTimeInSeconds"`
	EndTimeInSeconds     float64 `json:"endTimeInSeconds"`
	UIFormattedStartTime string  `json:"uiFormattedStartTime"`
	SpeakerWasChanged    bool    `json:"speakerWasChanged"`
	TextWasChanged       bool    `json:"textWasChanged"`
}

func (s Segment) MarshalJSON() ([]byte, error) {
	out := segmentJSON{
		Speaker:              s.Speaker,
		Text:                 s.Text,
		OffsetInTicks:        s.OffsetInTicks,
		DurationInTicks:      s.DurationInTicks,
		LineNumber:           s.LineNumber,
		StartTimeInSeconds:   s.StartSeconds(),
		EndTimeInSeconds:     s.EndSeconds(),
		UIFormattedStartTime: formatClock(s.StartSeconds()),
		SpeakerWasChanged:    s.SpeakerWasChanged(),
		TextWasChanged:       s.TextWasChanged(),
	}
	if s.OriginalSpeaker != "" {
		out.OriginalSpeaker = &s.OriginalSpeaker
	}
	if s.OriginalText != "" {
		out.OriginalText = &s.OriginalText
	}
	return json.Marshal(out)
}

// SpeakerInfo is one row of per-speaker statistics, derived from segments and
// recomputed whenever they change.
type SpeakerInfo struct {
	Name                   string  `json:"name"`
	SegmentCount           int     `json:"segmentCount"`
	TotalSpeakTimeSeconds  float64 `json:"totalSpeakTimeSeconds"`
	FirstAppearanceSeconds float64 `json:"firstAppearanceSeconds"`
}

type speakerInfoJSON struct {
	Name                     string  `json:"name"`
	SegmentCount             int     `json:"segmentCount"`
	TotalSpeakTimeSeconds    float64 `json:"totalSpeakTimeSeconds"`
	FirstAppearanceSeconds   float64 `json:"firstAppearanceSeconds"`
	TotalSpeakTimeFormatted  string  `json:"totalSpeakTimeFormatted"`
	FirstAppearanceFormatted string  `json:"firstAppearanceFormatted"`
}

func (si SpeakerInfo) MarshalJSON() ([]byte, error) {
	return json.Marshal(speakerInfoJSON{
		Name:                     si.Name,
		SegmentCount:             si.SegmentCount,
		TotalSpeakTimeSeconds:    si.TotalSpeakTimeSeconds,
		FirstAppearanceSeconds:   si.FirstAppearanceSeconds,
		TotalSpeakTimeFormatted:  formatClock(si.TotalSpeakTimeSeconds),
		FirstAppearanceFormatted: formatClock(si.FirstAppearanceSeconds),
	})
}

// FileResult is the per-file slice of a batch result. One result artifact
// yields one FileResult per audio channel it contains.
type FileResult struct {
	FileName        string    `json:"fileName"`
	Channel         int       `json:"channel"`
	Segments        []Segment `json:"segments"`
	FullTranscript  string    `json:"fullTranscript"`
	Speakers        []string  `json:"speakers"`
	DurationInTicks int64     `json:"durationInTicks"`
}

// AuditEntry records one transcript edit. Single-segment edits populate the
// index/line/text fields; bulk speaker operations populate the count and
// affected-segment fields instead.
type AuditEntry struct {
	Timestamp        time.Time `json:"timestamp"`
	Action           string    `json:"action"`
	SegmentIndex     *int      `json:"segmentIndex,omitempty"`
	LineNumber       int       `json:"lineNumber,omitempty"`
	Speaker          string    `json:"speaker,omitempty"`
	OldText          string    `json:"oldText,omitempty"`
	NewText          string    `json:"newText,omitempty"`
	StartTime        string    `json:"startTime,omitempty"`
	OldSpeaker       string    `json:"oldSpeaker,omitempty"`
	NewSpeaker       string    `json:"newSpeaker,omitempty"`
	SegmentCount     int       `json:"segmentCount,omitempty"`
	AffectedSegments []int     `json:"affectedSegments,omitempty"`
	Description      string    `json:"description,omitempty"`
}

// formatClock renders a second count as HH:MM:SS for display.
func formatClock(seconds float64) string {
	s := int(seconds)
	return fmt.Sprintf("%02d:%02d:%02d", s/3600, (s%3600)/60, s%60)
}
