package speech

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ticksPerSecond converts the service's 100-nanosecond tick unit to seconds.
const ticksPerSecond = 10_000_000

// Job statuses reported by the transcription API. The set is owned by the
// service and open ended, so Status stays a plain string; these constants
// cover the states this side branches on. Succeeded, Failed, and Cancelled
// are terminal.
const (
	StatusNotStarted = "NotStarted"
	StatusRunning    = "Running"
	StatusSucceeded  = "Succeeded"
	StatusFailed     = "Failed"
	StatusCancelled  = "Cancelled"
)

// Result file kinds from a job's files sub-resource. Entries with a missing
// kind are reported as KindUnknown.
const (
	KindTranscription       = "Transcription"
	KindTranscriptionReport = "TranscriptionReport"
	KindReport              = "Report"
	KindError               = "Error"
	KindUnknown             = "Unknown"
)

// JobProperties is the properties sub-record of a job envelope. DurationTicks
// is normalized to ticks whether the service reported a raw tick count or an
// ISO 8601 duration string.
type JobProperties struct {
	DurationTicks  int64  `json:"duration"`
	SucceededCount int    `json:"succeededCount"`
	FailedCount    int    `json:"failedCount"`
	ErrorMessage   string `json:"errorMessage,omitempty"`
}

// Job is one batch transcription job as reported by the service. Jobs are
// created by submission and mutated only remotely; everything here is a
// read-only snapshot.
type Job struct {
	ID           string
	DisplayName  string
	Status       string
	CreatedAt    time.Time
	LastActionAt time.Time
	Error        string
	Files        []string
	ResultsURL   string
	Properties   *JobProperties
	Locale       string
}

// FormattedDuration renders the job's audio duration as HH:MM:SS, or "N/A"
// when the service did not report one.
func (j Job) FormattedDuration() string {
	if j.Properties == nil || j.Properties.DurationTicks == 0 {
		return "N/A"
	}
	s := j.Properties.DurationTicks / ticksPerSecond
	return fmt.Sprintf("%02d:%02d:%02d", s/3600, (s%3600)/60, s%60)
}

// jobJSON is the wire form served to the UI: stored fields plus the derived
// duration and file-count fields.
type jobJSON struct {
	ID                 string         `json:"id"`
	DisplayName        string         `json:"displayName"`
	Status             string         `json:"status"`
	CreatedDateTime    *string        `json:"createdDateTime"`
	LastActionDateTime *string        `json:"lastActionDateTime"`
	Error              *string        `json:"error"`
	Files              []string       `json:"files"`
	ResultsURL         *string        `json:"resultsUrl"`
	Properties         *JobProperties `json:"properties"`
	Locale             *string        `json:"locale"`
	FormattedDuration  string         `json:"formattedDuration"`
	TotalFileCount     int            `json:"totalFileCount"`
}

func (j Job) MarshalJSON() ([]byte, error) {
	out := jobJSON{
		ID:                j.ID,
		DisplayName:       j.DisplayName,
		Status:            j.Status,
		Error:             optString(j.Error),
		Files:             j.Files,
		ResultsURL:        optString(j.ResultsURL),
		Properties:        j.Properties,
		Locale:            optString(j.Locale),
		FormattedDuration: j.FormattedDuration(),
		TotalFileCount:    len(j.Files),
	}
	if out.Files == nil {
		out.Files = []string{}
	}
	if !j.CreatedAt.IsZero() {
		s := j.CreatedAt.UTC().Format(time.RFC3339)
		out.CreatedDateTime = &s
	}
	if !j.LastActionAt.IsZero() {
		s := j.LastActionAt.UTC().Format(time.RFC3339)
		out.LastActionDateTime = &s
	}
	return json.Marshal(out)
}

func optString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// ResultFile is one downloadable artifact discovered under a completed job.
// ContentURL is a short-lived pre-signed URL and must be fetched without the
// subscription-key header.
type ResultFile struct {
	Kind       string `json:"kind"`
	Name       string `json:"name"`
	ContentURL string `json:"url"`
	Size       int64  `json:"size"`
}

// SASExpiry returns the expiry timestamp embedded in the pre-signed content
// URL, or "" when the URL carries none.
func (f ResultFile) SASExpiry() string {
	return sasExpiry(f.ContentURL)
}

// SASExpired reports whether the pre-signed content URL has already lapsed.
// URLs without a readable expiry are treated as still valid.
func (f ResultFile) SASExpired() bool {
	return sasExpired(f.ContentURL, time.Now().UTC())
}

// LocaleInfo is one recognition locale offered by the service.
type LocaleInfo struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

// SubmitRequest describes a new batch transcription job. ContentURLs point at
// audio blobs readable by the service.
type SubmitRequest struct {
	ContentURLs []string
	DisplayName string
	Locale      string
	MinSpeakers int
	MaxSpeakers int
}

// ValidateSpeakers checks a diarization speaker range against the service's
// accepted bounds.
func ValidateSpeakers(min, max int) error {
	if min < 1 {
		return errors.New("Minimum speakers must be at least 1")
	}
	if max < min {
		return errors.New("Maximum speakers must be greater than or equal to minimum speakers")
	}
	if max > 20 {
		return errors.New("Maximum speakers cannot exceed 20")
	}
	return nil
}
