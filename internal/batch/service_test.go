package batch

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/pierowman/Azure-Speech-to-Text-Real-Time-and-Batch-Diarization-sub000/internal/speech"
)

// mockAPI is an in-memory SpeechAPI for testing.
type mockAPI struct {
	mu          sync.Mutex
	job         *speech.Job
	files       []speech.ResultFile
	bodies      map[string]string
	downloadErr error

	fileListCalls int
	downloads     []string
}

func (m *mockAPI) GetJob(_ context.Context, id string) (*speech.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.job, nil
}

func (m *mockAPI) ResultFiles(_ context.Context, jobID string) ([]speech.ResultFile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fileListCalls++
	return m.files, nil
}

func (m *mockAPI) Download(_ context.Context, url string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.downloadErr != nil {
		return nil, m.downloadErr
	}
	m.downloads = append(m.downloads, url)
	if b, ok := m.bodies[url]; ok {
		return []byte(b), nil
	}
	return nil, nil
}

func succeededJob(files ...string) *speech.Job {
	return &speech.Job{
		ID:          "job-1",
		DisplayName: "Quarterly review",
		Status:      speech.StatusSucceeded,
		Files:       files,
	}
}

// twoChannelArtifact multiplexes two uploaded files into one document: five
// phrases on channel 0, four on channel 1, interleaved the way the service
// emits them. Channel 1 carries no speaker field.
const twoChannelArtifact = `{
	"source": "https://blob/audio.wav",
	"recognizedPhrases": [
		{"channel": 0, "speaker": 1, "offsetInTicks": 0, "durationInTicks": 10000000,
		 "nBest": [{"display": "c0 one"}]},
		{"channel": 1, "offsetInTicks": 0, "durationInTicks": 20000000,
		 "nBest": [{"display": "c1 one"}]},
		{"channel": 0, "speaker": 2, "offsetInTicks": 10000000, "durationInTicks": 10000000,
		 "nBest": [{"display": "c0 two"}]},
		{"channel": 1, "offsetInTicks": 20000000, "durationInTicks": 10000000,
		 "nBest": [{"display": "c1 two"}]},
		{"channel": 0, "speaker": 1, "offsetInTicks": 20000000, "durationInTicks": 5000000,
		 "nBest": [{"display": "c0 three"}]},
		{"channel": 1, "offsetInTicks": 30000000, "durationInTicks": 10000000,
		 "nBest": [{"display": "c1 three"}]},
		{"channel": 0, "speaker": 2, "offsetInTicks": 25000000, "durationInTicks": 5000000,
		 "nBest": [{"display": "c0 four"}]},
		{"channel": 1, "offsetInTicks": 40000000, "durationInTicks": 10000000,
		 "nBest": [{"display": "c1 four"}]},
		{"channel": 0, "speaker": 1, "offsetInTicks": 30000000, "durationInTicks": 10000000,
		 "nBest": [{"display": "c0 five"}]}
	]
}`

func TestResults_JobNotFound(t *testing.T) {
	api := &mockAPI{}
	res, err := NewService(api).Results(context.Background(), "job-1")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if res.Success {
		t.Error("expected failure result")
	}
	if res.Message != "Job not found" {
		t.Errorf("unexpected message: %q", res.Message)
	}
	if res.JobID != "job-1" {
		t.Errorf("expected job id carried, got %q", res.JobID)
	}
	if res.Segments == nil || res.FileResults == nil {
		t.Error("expected empty collections, not nil")
	}
}

func TestResults_NotCompletedSkipsDiscovery(t *testing.T) {
	api := &mockAPI{job: &speech.Job{ID: "job-1", DisplayName: "In flight", Status: speech.StatusRunning}}

	res, err := NewService(api).Results(context.Background(), "job-1")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if res.Success {
		t.Error("expected failure result for running job")
	}
	if res.Message != "Job is not completed. Current status: Running" {
		t.Errorf("unexpected message: %q", res.Message)
	}
	if res.DisplayName != "In flight" {
		t.Errorf("expected display name carried, got %q", res.DisplayName)
	}
	if api.fileListCalls != 0 {
		t.Errorf("expected no file discovery for non-succeeded job, got %d calls", api.fileListCalls)
	}
}

func TestResults_SplitsChannelsIntoFiles(t *testing.T) {
	api := &mockAPI{
		job: succeededJob("first.wav", "second.wav"),
		files: []speech.ResultFile{
			{Kind: speech.KindTranscription, Name: "contenturl_0.json", ContentURL: "https://blob/r0"},
		},
		bodies: map[string]string{"https://blob/r0": twoChannelArtifact},
	}

	res, err := NewService(api).Results(context.Background(), "job-1")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if !res.Success {
		t.Fatalf("expected success, got failure: %s", res.Message)
	}

	if res.TotalFileCount != 2 {
		t.Errorf("expected 2 files from one multiplexed artifact, got %d", res.TotalFileCount)
	}
	if len(res.Segments) != 9 {
		t.Fatalf("expected 9 merged segments, got %d", len(res.Segments))
	}
	if len(res.FileResults) != 2 {
		t.Fatalf("expected 2 file results, got %d", len(res.FileResults))
	}

	first, second := res.FileResults[0], res.FileResults[1]
	if len(first.Segments) != 5 || len(second.Segments) != 4 {
		t.Errorf("expected 5/4 split, got %d/%d", len(first.Segments), len(second.Segments))
	}
	if first.FileName != "File 1" || second.FileName != "File 2" {
		t.Errorf("expected channel-derived names, got %q / %q", first.FileName, second.FileName)
	}
	for _, s := range first.Segments {
		if !strings.HasPrefix(s.Text, "c0 ") {
			t.Errorf("channel 0 file contains foreign segment %q", s.Text)
		}
	}
	for _, s := range second.Segments {
		if !strings.HasPrefix(s.Text, "c1 ") {
			t.Errorf("channel 1 file contains foreign segment %q", s.Text)
		}
		if s.Speaker != "Speaker 2" {
			t.Errorf("expected synthesized Speaker 2 for missing speaker on channel 1, got %q", s.Speaker)
		}
	}

	for i, s := range res.Segments {
		if s.LineNumber != i+1 {
			t.Fatalf("expected line numbers 1..9 in order, got %d at position %d", s.LineNumber, i)
		}
	}

	if res.Message != "Retrieved 9 segments from 2 file(s)" {
		t.Errorf("unexpected message: %q", res.Message)
	}
	if res.RawJSONData != twoChannelArtifact {
		t.Error("expected first artifact body retained verbatim")
	}
	if len(res.AvailableSpeakers) != 2 {
		t.Errorf("expected 2 speakers, got %v", res.AvailableSpeakers)
	}
	for i := 1; i < len(res.SpeakerStatistics); i++ {
		if res.SpeakerStatistics[i-1].FirstAppearanceSeconds > res.SpeakerStatistics[i].FirstAppearanceSeconds {
			t.Error("expected speaker statistics sorted by first appearance")
		}
	}
}

func TestResults_MapsArtifactsToInputNames(t *testing.T) {
	api := &mockAPI{
		job: succeededJob("first.wav", "second.wav"),
		files: []speech.ResultFile{
			{Kind: speech.KindTranscription, ContentURL: "https://blob/r0"},
			{Kind: speech.KindTranscriptionReport, ContentURL: "https://blob/report"},
			{Kind: speech.KindTranscription, ContentURL: "https://blob/r1"},
		},
		bodies: map[string]string{
			"https://blob/r0": `{"recognizedPhrases":[
				{"channel":0,"speaker":1,"offsetInTicks":0,"durationInTicks":10000000,
				 "nBest":[{"display":"from the first file"}]}
			]}`,
			"https://blob/r1": `{"recognizedPhrases":[
				{"channel":0,"speaker":1,"offsetInTicks":0,"durationInTicks":10000000,
				 "nBest":[{"display":"from the second file"}]},
				{"channel":0,"speaker":2,"offsetInTicks":10000000,"durationInTicks":10000000,
				 "nBest":[{"display":"also the second"}]}
			]}`,
		},
	}

	res, err := NewService(api).Results(context.Background(), "job-1")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if !res.Success {
		t.Fatalf("expected success, got: %s", res.Message)
	}

	if len(res.FileResults) != 2 {
		t.Fatalf("expected 2 file results, got %d", len(res.FileResults))
	}
	if res.FileResults[0].FileName != "first.wav" || res.FileResults[1].FileName != "second.wav" {
		t.Errorf("expected input names mapped by artifact position, got %q / %q",
			res.FileResults[0].FileName, res.FileResults[1].FileName)
	}

	// One counter spans both artifacts.
	wantLines := []int{1, 2, 3}
	for i, s := range res.Segments {
		if s.LineNumber != wantLines[i] {
			t.Errorf("expected line %d, got %d", wantLines[i], s.LineNumber)
		}
	}
}

func TestResults_NoArtifactsSurfacesReport(t *testing.T) {
	api := &mockAPI{
		job: succeededJob("first.wav"),
		files: []speech.ResultFile{
			{Kind: speech.KindTranscriptionReport, Name: "report.json", ContentURL: "https://blob/report"},
		},
		bodies: map[string]string{
			"https://blob/report": `{"details":[{"status":"Failed","errorMessage":"Audio file is corrupt"}]}`,
		},
	}

	res, err := NewService(api).Results(context.Background(), "job-1")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if res.Success {
		t.Error("expected failure when no transcription artifacts exist")
	}
	if !strings.Contains(res.Message, "No transcription results found") {
		t.Errorf("unexpected message: %q", res.Message)
	}
	if !strings.Contains(res.Message, "Audio file is corrupt") {
		t.Errorf("expected report body surfaced in diagnostics, got: %q", res.Message)
	}
}

func TestResults_SkipsUndersizedArtifacts(t *testing.T) {
	valid := `{"recognizedPhrases":[
		{"channel":0,"speaker":1,"offsetInTicks":0,"durationInTicks":10000000,
		 "nBest":[{"display":"still here"}]}
	]}`
	api := &mockAPI{
		job: succeededJob("first.wav", "second.wav"),
		files: []speech.ResultFile{
			{Kind: speech.KindTranscription, ContentURL: "https://blob/r0"},
			{Kind: speech.KindTranscription, ContentURL: "https://blob/r1"},
		},
		bodies: map[string]string{
			"https://blob/r0": `{}`,
			"https://blob/r1": valid,
		},
	}

	res, err := NewService(api).Results(context.Background(), "job-1")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if !res.Success {
		t.Fatalf("expected success when one artifact survives, got: %s", res.Message)
	}
	if len(res.Segments) != 1 || res.Segments[0].Text != "still here" {
		t.Errorf("expected only surviving artifact's segments, got %+v", res.Segments)
	}
	if res.RawJSONData != valid {
		t.Error("expected raw payload from the first usable artifact")
	}
}

func TestResults_EmptyPhrasesReportsNoSegments(t *testing.T) {
	api := &mockAPI{
		job: succeededJob("first.wav"),
		files: []speech.ResultFile{
			{Kind: speech.KindTranscription, ContentURL: "https://blob/r0"},
		},
		bodies: map[string]string{"https://blob/r0": `{"recognizedPhrases":[]}`},
	}

	res, err := NewService(api).Results(context.Background(), "job-1")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if res.Success {
		t.Error("expected failure for artifact with no phrases")
	}
	if !strings.Contains(res.Message, "no segments") {
		t.Errorf("expected message to mention no segments, got: %q", res.Message)
	}
}

func TestResults_DownloadCancellationPropagates(t *testing.T) {
	api := &mockAPI{
		job: succeededJob("first.wav"),
		files: []speech.ResultFile{
			{Kind: speech.KindTranscription, ContentURL: "https://blob/r0"},
		},
		downloadErr: context.Canceled,
	}

	_, err := NewService(api).Results(context.Background(), "job-1")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestResultsByFile_ProjectsOneFile(t *testing.T) {
	api := &mockAPI{
		job: succeededJob("first.wav", "second.wav"),
		files: []speech.ResultFile{
			{Kind: speech.KindTranscription, ContentURL: "https://blob/r0"},
		},
		bodies: map[string]string{"https://blob/r0": twoChannelArtifact},
	}
	svc := NewService(api)

	full, err := svc.Results(context.Background(), "job-1")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	byFile, err := svc.ResultsByFile(context.Background(), "job-1", 1)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if !byFile.Success {
		t.Fatalf("expected success, got: %s", byFile.Message)
	}
	want := full.FileResults[1]
	if len(byFile.FileResults) != 1 {
		t.Fatalf("expected exactly one file result, got %d", len(byFile.FileResults))
	}
	if len(byFile.Segments) != len(want.Segments) {
		t.Errorf("expected %d segments, got %d", len(want.Segments), len(byFile.Segments))
	}
	for i := range byFile.Segments {
		if byFile.Segments[i].Text != want.Segments[i].Text ||
			byFile.Segments[i].LineNumber != want.Segments[i].LineNumber {
			t.Errorf("segment %d differs from full result's file entry", i)
		}
	}
	if byFile.DisplayName != "Quarterly review - File 2" {
		t.Errorf("expected suffixed display name, got %q", byFile.DisplayName)
	}
	if byFile.FullTranscript != want.FullTranscript {
		t.Error("expected the file's own transcript")
	}
	if byFile.TotalFileCount != 2 {
		t.Errorf("expected total file count passed through, got %d", byFile.TotalFileCount)
	}
	if byFile.RawJSONData != full.RawJSONData {
		t.Error("expected raw payload passed through")
	}
}

func TestResultsByFile_InvalidIndex(t *testing.T) {
	api := &mockAPI{
		job: succeededJob("first.wav", "second.wav"),
		files: []speech.ResultFile{
			{Kind: speech.KindTranscription, ContentURL: "https://blob/r0"},
		},
		bodies: map[string]string{"https://blob/r0": twoChannelArtifact},
	}
	svc := NewService(api)

	for _, idx := range []int{-1, 2, 99} {
		res, err := svc.ResultsByFile(context.Background(), "job-1", idx)
		if err != nil {
			t.Fatalf("index %d: expected no error, got %v", idx, err)
		}
		if res.Success {
			t.Errorf("index %d: expected failure", idx)
		}
		if res.Message != "Invalid file index. Job has 2 file(s)." {
			t.Errorf("index %d: unexpected message: %q", idx, res.Message)
		}
	}
}

func TestResultsByFile_PropagatesFetchFailure(t *testing.T) {
	api := &mockAPI{job: &speech.Job{ID: "job-1", Status: speech.StatusFailed, DisplayName: "Broken"}}

	res, err := NewService(api).ResultsByFile(context.Background(), "job-1", 0)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if res.Success {
		t.Error("expected failure passed through")
	}
	if res.Message != "Job is not completed. Current status: Failed" {
		t.Errorf("expected underlying failure verbatim, got %q", res.Message)
	}
}

func TestResultFileInfos(t *testing.T) {
	api := &mockAPI{
		job: succeededJob("audio-a.wav"),
		files: []speech.ResultFile{
			{Kind: speech.KindTranscriptionReport, Name: "report.json", ContentURL: "https://blob/report"},
			{Kind: speech.KindTranscription, ContentURL: "https://blob/r0?se=2000-01-01T00%3A00%3A00Z", Size: 512},
			{Kind: speech.KindTranscription, ContentURL: "https://blob/r1?se=2099-01-01T00%3A00%3A00Z", Size: 1024},
		},
	}

	infos, err := NewService(api).ResultFileInfos(context.Background(), "job-1")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(infos) != 2 {
		t.Fatalf("expected 2 transcription files, got %d", len(infos))
	}

	// Report entries do not shift the input-name mapping.
	if infos[0].Name != "audio-a.wav" {
		t.Errorf("expected first transcription mapped to input name, got %q", infos[0].Name)
	}
	if infos[1].Name != "File 2" {
		t.Errorf("expected fallback name for unmapped file, got %q", infos[1].Name)
	}
	if infos[0].Index != 0 || infos[1].Index != 1 {
		t.Errorf("unexpected indices: %d, %d", infos[0].Index, infos[1].Index)
	}
	if !infos[0].SASExpired {
		t.Error("expected year-2000 token to report expired")
	}
	if infos[1].SASExpired {
		t.Error("expected year-2099 token to report valid")
	}
	if infos[0].Size != 512 || infos[1].Size != 1024 {
		t.Errorf("unexpected sizes: %d, %d", infos[0].Size, infos[1].Size)
	}
}
