// Package batch aggregates completed transcription jobs into display-ready
// results. Every fetch re-downloads and re-parses from the remote service;
// there is no cache or store, the job service stays the system of record.
package batch

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/pierowman/Azure-Speech-to-Text-Real-Time-and-Batch-Diarization-sub000/internal/speech"
	"github.com/pierowman/Azure-Speech-to-Text-Real-Time-and-Batch-Diarization-sub000/internal/transcript"
)

// minArtifactBytes filters out downloads too small to be a result document.
const minArtifactBytes = 10

// SpeechAPI is the slice of the speech client the aggregator needs.
type SpeechAPI interface {
	GetJob(ctx context.Context, id string) (*speech.Job, error)
	ResultFiles(ctx context.Context, jobID string) ([]speech.ResultFile, error)
	Download(ctx context.Context, url string) ([]byte, error)
}

// Service turns a completed job's artifacts into aggregated transcripts.
type Service struct {
	api SpeechAPI
}

// NewService creates an aggregator over the given API client.
func NewService(api SpeechAPI) *Service {
	return &Service{api: api}
}

// Results fetches, downloads, and parses every transcription artifact of a
// job. Artifacts download sequentially in discovery order; one shared line
// counter spans the whole pass so line numbers stay unique across files. A
// single failing artifact is skipped, and only when every artifact
// contributes nothing does the call report failure. The returned error
// carries context cancellation only; domain failures come back as a
// Success=false Result with a display-ready message.
func (s *Service) Results(ctx context.Context, jobID string) (Result, error) {
	job, err := s.api.GetJob(ctx, jobID)
	if err != nil {
		return Result{}, err
	}
	if job == nil {
		return failure(jobID, "", "Job not found"), nil
	}
	if job.Status != speech.StatusSucceeded {
		return failure(jobID, job.DisplayName,
			fmt.Sprintf("Job is not completed. Current status: %s", job.Status)), nil
	}

	files, err := s.api.ResultFiles(ctx, jobID)
	if err != nil {
		return Result{}, err
	}
	var artifacts []speech.ResultFile
	for _, f := range files {
		if f.Kind == speech.KindTranscription && f.ContentURL != "" {
			artifacts = append(artifacts, f)
		}
	}
	if len(artifacts) == 0 {
		diag, err := s.diagnose(ctx, files)
		if err != nil {
			return Result{}, err
		}
		msg := "No transcription results found"
		if diag != "" {
			msg += ". Report: " + diag
		}
		slog.Warn("job has no transcription artifacts", "job_id", jobID, "listed_files", len(files))
		return failure(jobID, job.DisplayName, msg), nil
	}

	var (
		lc          transcript.LineCounter
		fileResults []transcript.FileResult
		rawFirst    string
	)
	for i, art := range artifacts {
		body, err := s.api.Download(ctx, art.ContentURL)
		if err != nil {
			return Result{}, err
		}
		if len(body) < minArtifactBytes {
			slog.Warn("skipping undersized result artifact",
				"job_id", jobID, "file", art.Name, "bytes", len(body))
			continue
		}
		if rawFirst == "" {
			rawFirst = string(body)
		}

		name := ""
		if i < len(job.Files) {
			name = job.Files[i]
		}
		fileResults = append(fileResults, transcript.ParseFile(body, name, i, &lc)...)
	}

	var merged []transcript.Segment
	for _, fr := range fileResults {
		merged = append(merged, fr.Segments...)
	}
	if len(merged) == 0 {
		return failure(jobID, job.DisplayName,
			"Transcription completed but contained no segments"), nil
	}

	slog.Info("aggregated batch results",
		"job_id", jobID, "files", len(fileResults), "segments", len(merged))

	return Result{
		Success:           true,
		Message:           fmt.Sprintf("Retrieved %d segments from %s", len(merged), countFiles(len(fileResults))),
		JobID:             jobID,
		DisplayName:       job.DisplayName,
		Segments:          merged,
		FullTranscript:    transcript.BuildFullTranscript(merged),
		AvailableSpeakers: transcript.UniqueSpeakers(merged),
		SpeakerStatistics: transcript.SpeakerStats(merged),
		RawJSONData:       rawFirst,
		FileResults:       fileResults,
		TotalFileCount:    len(fileResults),
	}, nil
}

// ResultsByFile projects the full aggregate down to one file. Failures from
// the underlying fetch pass through verbatim; an out-of-range index reports
// the actual file count. Raw JSON and total file count keep the full
// result's values so callers can still see the whole job's shape.
func (s *Service) ResultsByFile(ctx context.Context, jobID string, fileIndex int) (Result, error) {
	full, err := s.Results(ctx, jobID)
	if err != nil {
		return Result{}, err
	}
	if !full.Success {
		return full, nil
	}
	if fileIndex < 0 || fileIndex >= len(full.FileResults) {
		return failure(jobID, full.DisplayName,
			fmt.Sprintf("Invalid file index. Job has %d file(s).", len(full.FileResults))), nil
	}

	fr := full.FileResults[fileIndex]
	return Result{
		Success:           true,
		Message:           fmt.Sprintf("Retrieved %d segments from %s", len(fr.Segments), fr.FileName),
		JobID:             jobID,
		DisplayName:       full.DisplayName + " - " + fr.FileName,
		Segments:          fr.Segments,
		FullTranscript:    fr.FullTranscript,
		AvailableSpeakers: fr.Speakers,
		SpeakerStatistics: transcript.SpeakerStats(fr.Segments),
		RawJSONData:       full.RawJSONData,
		FileResults:       []transcript.FileResult{fr},
		TotalFileCount:    full.TotalFileCount,
	}, nil
}

// ResultFileInfos lists a job's transcription artifacts for display, with
// the input file name each one maps to and the state of its signed URL.
// Artifacts and input names pair up by position among Transcription-kind
// entries only; other kinds in the listing do not shift the mapping.
func (s *Service) ResultFileInfos(ctx context.Context, jobID string) ([]FileInfo, error) {
	job, err := s.api.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	var inputNames []string
	if job != nil {
		inputNames = job.Files
	}

	files, err := s.api.ResultFiles(ctx, jobID)
	if err != nil {
		return nil, err
	}

	infos := []FileInfo{}
	idx := 0
	for _, f := range files {
		if f.Kind != speech.KindTranscription {
			continue
		}
		name := fmt.Sprintf("File %d", idx+1)
		if idx < len(inputNames) {
			name = inputNames[idx]
		}
		info := FileInfo{
			Index:      idx,
			Name:       name,
			URL:        f.ContentURL,
			Size:       f.Size,
			SASExpiry:  f.SASExpiry(),
			SASExpired: f.SASExpired(),
		}
		if info.SASExpired {
			slog.Warn("result file signed url expired",
				"job_id", jobID, "file", name, "expired_at", info.SASExpiry)
		}
		infos = append(infos, info)
		idx++
	}
	return infos, nil
}

// diagnose pulls a report or error artifact's body when a succeeded job
// lists no transcription files, so the failure message can say why.
func (s *Service) diagnose(ctx context.Context, files []speech.ResultFile) (string, error) {
	for _, f := range files {
		switch f.Kind {
		case speech.KindReport, speech.KindError, speech.KindTranscriptionReport:
		default:
			continue
		}
		if f.ContentURL == "" {
			continue
		}
		body, err := s.api.Download(ctx, f.ContentURL)
		if err != nil {
			return "", err
		}
		if len(body) == 0 {
			continue
		}
		return truncate(body, 300), nil
	}
	return "", nil
}

func countFiles(n int) string {
	if n == 1 {
		return "1 file"
	}
	return fmt.Sprintf("%d file(s)", n)
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
