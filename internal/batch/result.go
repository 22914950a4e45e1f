package batch

import (
	"github.com/pierowman/Azure-Speech-to-Text-Real-Time-and-Batch-Diarization-sub000/internal/transcript"
)

// Result is the aggregate returned for one job fetch. Success=false results
// still carry job identity and a message fit for direct display; callers
// poll on not-completed messages rather than treating them as errors.
type Result struct {
	Success           bool                     `json:"success"`
	Message           string                   `json:"message"`
	JobID             string                   `json:"jobId"`
	DisplayName       string                   `json:"displayName"`
	Segments          []transcript.Segment     `json:"segments"`
	FullTranscript    string                   `json:"fullTranscript"`
	AvailableSpeakers []string                 `json:"availableSpeakers"`
	SpeakerStatistics []transcript.SpeakerInfo `json:"speakerStatistics"`
	RawJSONData       string                   `json:"rawJsonData"`
	FileResults       []transcript.FileResult  `json:"fileResults"`
	TotalFileCount    int                      `json:"totalFileCount"`
}

// FileInfo describes one downloadable transcription artifact: its position
// among the job's transcription files, the input file it maps to, and
// whether its pre-signed URL is still usable.
type FileInfo struct {
	Index      int    `json:"index"`
	Name       string `json:"name"`
	URL        string `json:"url"`
	Size       int64  `json:"size"`
	SASExpiry  string `json:"sasExpiry,omitempty"`
	SASExpired bool   `json:"sasExpired"`
}

// failure builds a Success=false result with empty collections, so the wire
// shape stays stable for clients that always read the list fields.
func failure(jobID, displayName, msg string) Result {
	return Result{
		Message:           msg,
		JobID:             jobID,
		DisplayName:       displayName,
		Segments:          []transcript.Segment{},
		AvailableSpeakers: []string{},
		SpeakerStatistics: []transcript.SpeakerInfo{},
		FileResults:       []transcript.FileResult{},
	}
}
