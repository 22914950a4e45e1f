package transcript

import (
	"fmt"
	"sort"
	"strings"
)

// AssignLineNumbers renumbers segments 1..n in slice order. Line numbers are
// positional display values, not stable identities; reordering recomputes them.
func AssignLineNumbers(segs []Segment) {
	for i := range segs {
		segs[i].LineNumber = i + 1
	}
}

// BuildFullTranscript renders segments as "[speaker]: text" lines.
func BuildFullTranscript(segs []Segment) string {
	var sb strings.Builder
	for i, s := range segs {
		if i > 0 {
			sb.WriteByte('\n')
		}
		fmt.Fprintf(&sb, "[%s]: %s", s.Speaker, s.Text)
	}
	return sb.String()
}

// UniqueSpeakers returns the distinct non-blank speaker labels, sorted.
func UniqueSpeakers(segs []Segment) []string {
	seen := make(map[string]bool)
	var names []string
	for _, s := range segs {
		if strings.TrimSpace(s.Speaker) == "" || seen[s.Speaker] {
			continue
		}
		seen[s.Speaker] = true
		names = append(names, s.Speaker)
	}
	sort.Strings(names)
	return names
}

// SpeakerStats groups segments by speaker label and aggregates segment count,
// total speak time, and first appearance. The result is ordered by first
// appearance ascending, which gives the UI its order-of-introduction listing.
func SpeakerStats(segs []Segment) []SpeakerInfo {
	byName := make(map[string]*SpeakerInfo)
	var order []string
	for _, s := range segs {
		si, ok := byName[s.Speaker]
		if !ok {
			si = &SpeakerInfo{Name: s.Speaker, FirstAppearanceSeconds: s.StartSeconds()}
			byName[s.Speaker] = si
			order = append(order, s.Speaker)
		}
		si.SegmentCount++
		si.TotalSpeakTimeSeconds += s.EndSeconds() - s.StartSeconds()
		if s.StartSeconds() < si.FirstAppearanceSeconds {
			si.FirstAppearanceSeconds = s.StartSeconds()
		}
	}

	stats := make([]SpeakerInfo, 0, len(order))
	for _, name := range order {
		stats = append(stats, *byName[name])
	}
	sort.SliceStable(stats, func(i, j int) bool {
		return stats[i].FirstAppearanceSeconds < stats[j].FirstAppearanceSeconds
	})
	return stats
}

// RebuildResult carries the derived views recomputed after segments change.
type RebuildResult struct {
	FullTranscript string        `json:"fullTranscript"`
	Speakers       []string      `json:"availableSpeakers"`
	SpeakerStats   []SpeakerInfo `json:"speakerStatistics"`
}

// Rebuild recomputes the transcript text, speaker roster, and statistics.
func Rebuild(segs []Segment) RebuildResult {
	return RebuildResult{
		FullTranscript: BuildFullTranscript(segs),
		Speakers:       UniqueSpeakers(segs),
		SpeakerStats:   SpeakerStats(segs),
	}
}
