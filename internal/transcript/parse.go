package transcript

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/pierowman/Azure-Speech-to-Text-Real-Time-and-Batch-Diarization-sub000/internal/jsonval"
)

// LineCounter hands out 1-based line numbers. One counter spans an entire
// aggregation pass so numbering stays unique and strictly increasing even
// when a single artifact splits into several per-channel files.
type LineCounter struct {
	n int
}

// Next returns the next line number.
func (c *LineCounter) Next() int {
	c.n++
	return c.n
}

// ParseFile extracts segments from one downloaded result artifact.
//
// The artifact carries either recognizedPhrases (per-utterance objects with
// channel and timing) or combinedRecognizedPhrases (display text only). When
// recognizedPhrases spans more than one channel, the artifact holds several
// uploaded files multiplexed together and is split back into one FileResult
// per channel. An undecodable body or one with neither array yields nil;
// callers tolerate artifacts that contribute nothing.
func ParseFile(body []byte, fileName string, fileIndex int, lc *LineCounter) []FileResult {
	doc, err := jsonval.Parse(body)
	if err != nil {
		slog.Warn("transcript: undecodable result artifact", "file", fileName, "error", err)
		return nil
	}

	if phrases, ok := doc.Field("recognizedPhrases").AsArray(); ok {
		return parseRecognized(phrases, fileName, fileIndex, lc)
	}
	if entries, ok := doc.Field("combinedRecognizedPhrases").AsArray(); ok {
		return parseCombined(entries, fileName, fileIndex, lc)
	}

	slog.Warn("transcript: artifact has no recognized phrase arrays", "file", fileName)
	return nil
}

// parseRecognized runs two passes: group phrases by channel, then build one
// FileResult per channel in ascending channel order. Phrase order within a
// channel is preserved, so line numbers follow utterance order per file.
func parseRecognized(phrases []jsonval.Value, fileName string, fileIndex int, lc *LineCounter) []FileResult {
	byChannel := make(map[int][]jsonval.Value)
	var channels []int
	for _, p := range phrases {
		ch := 0
		if n, ok := p.Field("channel").AsInt64(); ok {
			ch = int(n)
		}
		if _, seen := byChannel[ch]; !seen {
			channels = append(channels, ch)
		}
		byChannel[ch] = append(byChannel[ch], p)
	}
	sort.Ints(channels)

	multi := len(channels) > 1
	var files []FileResult
	for _, ch := range channels {
		name := displayFileName(fileName, fileIndex)
		if multi {
			name = fmt.Sprintf("File %d", ch+1)
		}

		var segs []Segment
		for _, p := range byChannel[ch] {
			if seg, ok := phraseSegment(p, ch, lc); ok {
				segs = append(segs, seg)
			}
		}
		files = append(files, newFileResult(name, ch, segs))
	}
	return files
}

// parseCombined handles the fallback shape: entries carry only display text
// and an optional speaker, with no channel or timing data.
func parseCombined(entries []jsonval.Value, fileName string, fileIndex int, lc *LineCounter) []FileResult {
	var segs []Segment
	for i, e := range entries {
		text, ok := e.Field("display").AsString()
		if !ok || strings.TrimSpace(text) == "" {
			continue
		}
		segs = append(segs, Segment{
			Speaker:    speakerLabel(e.Field("speaker"), i),
			Text:       text,
			LineNumber: lc.Next(),
		})
	}
	if len(segs) == 0 {
		return nil
	}
	return []FileResult{newFileResult(displayFileName(fileName, fileIndex), 0, segs)}
}

// phraseSegment converts one recognized phrase. A phrase with no non-empty
// display alternative contributes nothing and is dropped.
func phraseSegment(p jsonval.Value, channel int, lc *LineCounter) (Segment, bool) {
	var text string
	if alts, ok := p.Field("nBest").AsArray(); ok {
		for _, alt := range alts {
			if d, ok := alt.Field("display").AsString(); ok && strings.TrimSpace(d) != "" {
				text = d
				break
			}
		}
	}
	if text == "" {
		return Segment{}, false
	}

	offset, _ := p.Field("offsetInTicks").AsInt64()
	duration, _ := p.Field("durationInTicks").AsInt64()
	return Segment{
		Speaker:         speakerLabel(p.Field("speaker"), channel),
		Text:            text,
		OffsetInTicks:   offset,
		DurationInTicks: duration,
		LineNumber:      lc.Next(),
	}, true
}

// speakerLabel resolves the speaker field, which arrives as a number in batch
// results and occasionally as a string. Absent speakers get a label derived
// from the fallback index (channel or entry position), 1-based.
func speakerLabel(v jsonval.Value, fallback int) string {
	if n, ok := v.AsInt64(); ok {
		return fmt.Sprintf("Speaker %d", n)
	}
	if s, ok := v.AsString(); ok && strings.TrimSpace(s) != "" {
		return s
	}
	return fmt.Sprintf("Speaker %d", fallback+1)
}

// newFileResult bundles a segment run with its derived per-file views.
func newFileResult(name string, channel int, segs []Segment) FileResult {
	var maxEnd int64
	for _, s := range segs {
		if end := s.OffsetInTicks + s.DurationInTicks; end > maxEnd {
			maxEnd = end
		}
	}
	return FileResult{
		FileName:        name,
		Channel:         channel,
		Segments:        segs,
		FullTranscript:  BuildFullTranscript(segs),
		Speakers:        UniqueSpeakers(segs),
		DurationInTicks: maxEnd,
	}
}

func displayFileName(fileName string, fileIndex int) string {
	if fileName != "" {
		return fileName
	}
	return fmt.Sprintf("File %d", fileIndex+1)
}
