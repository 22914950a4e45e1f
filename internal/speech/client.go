// Package speech is the HTTP client for the Azure Speech batch transcription
// REST API. Reads degrade on failure (empty list, nil job, false) instead of
// surfacing transport errors; the error return on every call carries context
// cancellation only. Submission is the exception: its failures are returned
// so the caller can show them.
package speech

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
	"golang.org/x/sync/errgroup"

	"github.com/pierowman/Azure-Speech-to-Text-Real-Time-and-Batch-Diarization-sub000/internal/jsonval"
)

// backfillWorkers bounds the parallel files-subresource fetches during a
// job listing.
const backfillWorkers = 4

// Client talks to one region of the speech service. Safe for concurrent use;
// the two underlying http.Clients pool connections across calls.
type Client struct {
	key     string
	client  *http.Client
	blob    *http.Client
	locales *cache.Cache

	baseURL       string
	modelsBaseURL string
}

// NewClient creates a client for one service region. Transcriptions speak
// v3.1; the model catalog (locale discovery) only exists on v3.2, so the two
// endpoints carry different versions. The blob client is kept separate so
// pre-signed content URLs are never sent the subscription key.
func NewClient(key, region string, timeout, localeTTL time.Duration) *Client {
	return &Client{
		key:           key,
		client:        &http.Client{Timeout: timeout},
		blob:          &http.Client{Timeout: timeout},
		locales:       cache.New(localeTTL, 10*time.Minute),
		baseURL:       fmt.Sprintf("https://%s.api.cognitive.microsoft.com/speechtotext/v3.1", region),
		modelsBaseURL: fmt.Sprintf("https://%s.api.cognitive.microsoft.com/speechtotext/v3.2", region),
	}
}

// ListJobs fetches one page of the job collection, newest first. Jobs the
// listing returns without file names get them backfilled from the files
// sub-resource in parallel. Failures degrade to an empty list.
func (c *Client) ListJobs(ctx context.Context, skip, top int) ([]Job, error) {
	q := url.Values{}
	q.Set("skip", strconv.Itoa(skip))
	q.Set("top", strconv.Itoa(top))

	v, ok, err := c.getJSON(ctx, c.baseURL+"/transcriptions?"+q.Encode())
	if err != nil || !ok {
		return nil, err
	}
	values, ok := v.Field("values").AsArray()
	if !ok {
		return nil, nil
	}

	jobs := make([]Job, 0, len(values))
	for _, jv := range values {
		jobs = append(jobs, parseJob(jv))
	}
	sort.SliceStable(jobs, func(i, j int) bool {
		return jobs[i].CreatedAt.After(jobs[j].CreatedAt)
	})

	if err := c.backfillFiles(ctx, jobs); err != nil {
		return nil, err
	}
	return jobs, nil
}

// backfillFiles fills in the Files list for jobs whose envelope carried no
// contentUrls. Each goroutine writes a distinct index.
func (c *Client) backfillFiles(ctx context.Context, jobs []Job) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(backfillWorkers)
	for i := range jobs {
		if len(jobs[i].Files) > 0 {
			continue
		}
		i := i
		g.Go(func() error {
			files, err := c.jobFiles(ctx, jobs[i].ID)
			if err != nil {
				return err
			}
			if len(files) > 0 {
				jobs[i].Files = files
			}
			return nil
		})
	}
	return g.Wait()
}

// GetJob fetches one job. The files sub-resource is authoritative for input
// file names when it answers; otherwise the names parsed from the envelope's
// contentUrls stand. A missing or unparseable job degrades to nil.
func (c *Client) GetJob(ctx context.Context, id string) (*Job, error) {
	v, ok, err := c.getJSON(ctx, c.baseURL+"/transcriptions/"+id)
	if err != nil || !ok {
		return nil, err
	}
	job := parseJob(v)
	if job.ID == "" {
		job.ID = id
	}

	files, err := c.jobFiles(ctx, job.ID)
	if err != nil {
		return nil, err
	}
	if len(files) > 0 {
		job.Files = files
	}
	return &job, nil
}

// DeleteJob removes a job resource upstream. Returns whether the service
// accepted the delete; transport failures degrade to false.
func (c *Client) DeleteJob(ctx context.Context, id string) (bool, error) {
	req, err := c.newRequest(ctx, http.MethodDelete, c.baseURL+"/transcriptions/"+id, nil)
	if err != nil {
		return false, nil
	}
	resp, err := c.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		slog.Error("delete job failed", "job_id", id, "error", err)
		return false, nil
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		slog.Error("delete job rejected", "job_id", id, "status", resp.StatusCode)
		return false, nil
	}
	slog.Info("job deleted", "job_id", id)
	return true, nil
}

// CancelJob aborts a job. The upstream API has no separate cancel primitive:
// cancelling issues the same destructive delete as DeleteJob, so a cancelled
// job disappears rather than entering a Cancelled state.
func (c *Client) CancelJob(ctx context.Context, id string) (bool, error) {
	return c.DeleteJob(ctx, id)
}

// ResultFiles lists the downloadable artifacts of a job with best-effort
// kind classification. Callers select KindTranscription entries with a
// non-empty ContentURL; everything else is informational. Failures degrade
// to an empty list.
func (c *Client) ResultFiles(ctx context.Context, jobID string) ([]ResultFile, error) {
	v, ok, err := c.getJSON(ctx, c.baseURL+"/transcriptions/"+jobID+"/files")
	if err != nil || !ok {
		return nil, err
	}
	values, ok := v.Field("values").AsArray()
	if !ok {
		return nil, nil
	}

	files := make([]ResultFile, 0, len(values))
	for _, fv := range values {
		f := ResultFile{Kind: KindUnknown}
		if kind, ok := fv.Field("kind").AsString(); ok && kind != "" {
			f.Kind = kind
		}
		f.Name, _ = fv.Field("name").AsString()
		f.ContentURL, _ = fv.Field("links").Field("contentUrl").AsString()
		f.Size, _ = fv.Field("properties").Field("size").AsInt64()
		files = append(files, f)
	}
	return files, nil
}

// Download fetches a pre-signed content URL. These URLs carry their own
// authorization and reject requests that also present the subscription key,
// so the plain blob client is used. Failures degrade to a nil body.
func (c *Client) Download(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		slog.Error("content url rejected", "error", err)
		return nil, nil
	}
	resp, err := c.blob.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		slog.Error("content download failed", "error", err)
		return nil, nil
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		slog.Error("content read failed", "error", err)
		return nil, nil
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		slog.Error("content download rejected", "status", resp.StatusCode)
		return nil, nil
	}
	return body, nil
}

// SubmitJob creates a batch transcription job with identity diarization over
// already-uploaded audio URLs. The service returns the job envelope before
// the job has any state worth parsing, so the returned Job is assembled
// locally: id from the envelope's self link, files from the content URL
// basenames.
func (c *Client) SubmitJob(ctx context.Context, sub SubmitRequest) (*Job, error) {
	payload := map[string]any{
		"contentUrls": sub.ContentURLs,
		"locale":      sub.Locale,
		"displayName": sub.DisplayName,
		"properties": map[string]any{
			"diarizationEnabled": true,
			"diarization": map[string]any{
				"mode": "Identity",
				"speakers": map[string]any{
					"minCount": sub.MinSpeakers,
					"maxCount": sub.MaxSpeakers,
				},
			},
			"wordLevelTimestampsEnabled": true,
			"punctuationMode":            "DictatedAndAutomatic",
			"profanityFilterMode":        "Masked",
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal submission: %w", err)
	}

	req, err := c.newRequest(ctx, http.MethodPost, c.baseURL+"/transcriptions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("submit job: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read submission response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("service rejected submission (status %d): %s", resp.StatusCode, truncate(respBody, 200))
	}

	id := ""
	if v, perr := jsonval.Parse(respBody); perr == nil {
		if self, ok := v.Field("self").AsString(); ok && self != "" {
			id = urlBaseName(self)
		}
	}
	if id == "" {
		// The envelope should always carry a self link; synthesize an id
		// rather than returning a job callers cannot track at all.
		id = uuid.NewString()
		slog.Warn("submission response carried no self link", "synthesized_id", id)
	}

	files := make([]string, 0, len(sub.ContentURLs))
	for _, u := range sub.ContentURLs {
		files = append(files, stripUploadPrefix(urlBaseName(u)))
	}

	slog.Info("batch job submitted", "job_id", id, "files", len(files), "locale", sub.Locale,
		"min_speakers", sub.MinSpeakers, "max_speakers", sub.MaxSpeakers)

	return &Job{
		ID:          id,
		DisplayName: sub.DisplayName,
		Status:      StatusNotStarted,
		CreatedAt:   time.Now().UTC(),
		Locale:      sub.Locale,
		Files:       files,
	}, nil
}

// jobFiles resolves a job's input audio file names from the files
// sub-resource. When the listing names no audio entries but includes a
// transcription report, the report's per-file details supply the names.
func (c *Client) jobFiles(ctx context.Context, id string) ([]string, error) {
	v, ok, err := c.getJSON(ctx, c.baseURL+"/transcriptions/"+id+"/files")
	if err != nil || !ok {
		return nil, err
	}
	values, _ := v.Field("values").AsArray()

	var names []string
	var reportURL string
	for _, fv := range values {
		kind, _ := fv.Field("kind").AsString()
		switch {
		case strings.EqualFold(kind, "Audio") || kind == "LanguageData":
			name, _ := fv.Field("name").AsString()
			if name == "" {
				if cu, ok := fv.Field("links").Field("contentUrl").AsString(); ok {
					name = urlBaseName(cu)
				}
			}
			if name != "" {
				names = append(names, name)
			}
		case kind == KindTranscriptionReport:
			reportURL, _ = fv.Field("links").Field("contentUrl").AsString()
		}
	}

	if len(names) == 0 && reportURL != "" {
		body, err := c.Download(ctx, reportURL)
		if err != nil {
			return nil, err
		}
		if rv, perr := jsonval.Parse(body); perr == nil {
			details, _ := rv.Field("details").AsArray()
			for _, dv := range details {
				if src, ok := dv.Field("source").AsString(); ok && src != "" {
					names = append(names, stripUploadPrefix(urlBaseName(src)))
				}
			}
		}
	}
	return names, nil
}

// getJSON fetches an authenticated API URL and parses the body. Failures
// degrade to ok=false; the error return carries context cancellation only.
func (c *Client) getJSON(ctx context.Context, rawURL string) (jsonval.Value, bool, error) {
	req, err := c.newRequest(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		slog.Error("bad api url", "url", rawURL, "error", err)
		return jsonval.Value{}, false, nil
	}
	resp, err := c.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return jsonval.Value{}, false, ctx.Err()
		}
		slog.Error("api request failed", "url", rawURL, "error", err)
		return jsonval.Value{}, false, nil
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		if ctx.Err() != nil {
			return jsonval.Value{}, false, ctx.Err()
		}
		slog.Error("api response read failed", "url", rawURL, "error", err)
		return jsonval.Value{}, false, nil
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		slog.Error("api returned non-success", "url", rawURL, "status", resp.StatusCode, "body", truncate(body, 200))
		return jsonval.Value{}, false, nil
	}

	v, err := jsonval.Parse(body)
	if err != nil {
		slog.Error("api response unparseable", "url", rawURL, "error", err)
		return jsonval.Value{}, false, nil
	}
	return v, true, nil
}

func (c *Client) newRequest(ctx context.Context, method, rawURL string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, rawURL, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Ocp-Apim-Subscription-Key", c.key)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

// parseJob decodes one job envelope. Every field tolerates absence, wrong
// kind, and casing drift; unreadable fields keep their defaults.
func parseJob(v jsonval.Value) Job {
	var job Job
	if self, ok := v.Field("self").AsString(); ok && self != "" {
		job.ID = urlBaseName(self)
	}
	if job.ID == "" {
		job.ID, _ = v.Field("id").AsString()
	}
	job.DisplayName = stringOr(v.Field("displayName"), "Unknown")
	job.Status = stringOr(v.Field("status"), "Unknown")
	job.Locale, _ = v.Field("locale").AsString()
	job.CreatedAt = parseTime(v.Field("createdDateTime"))
	job.LastActionAt = parseTime(v.Field("lastActionDateTime"))
	job.ResultsURL, _ = v.Field("links").Field("files").AsString()
	if msg, ok := errorMessage(v.Field("error")); ok {
		job.Error = msg
	}
	if props := v.Field("properties"); isObject(props) {
		job.Properties = parseProperties(props)
	}
	if urls, ok := v.Field("contentUrls").AsArray(); ok {
		for _, uv := range urls {
			if u, ok := uv.AsString(); ok && u != "" {
				job.Files = append(job.Files, stripUploadPrefix(urlBaseName(u)))
			}
		}
	}
	return job
}

// parseProperties decodes the properties sub-record. The service has shipped
// two spellings for the counters and reports duration either as ticks or as
// an ISO 8601 string depending on API version; all forms are accepted.
func parseProperties(v jsonval.Value) *JobProperties {
	p := &JobProperties{}
	if ticks, ok := v.Field("durationInTicks").AsInt64(); ok {
		p.DurationTicks = ticks
	} else if iso, ok := v.Field("duration").AsString(); ok {
		p.DurationTicks = durationTicks(iso)
	}
	if n, ok := v.Field("succeededTranscriptionsCount").AsInt64(); ok {
		p.SucceededCount = int(n)
	} else if n, ok := v.Field("succeededCount").AsInt64(); ok {
		p.SucceededCount = int(n)
	}
	if n, ok := v.Field("failedTranscriptionsCount").AsInt64(); ok {
		p.FailedCount = int(n)
	} else if n, ok := v.Field("failedCount").AsInt64(); ok {
		p.FailedCount = int(n)
	}
	if msg, ok := errorMessage(v.Field("error")); ok {
		p.ErrorMessage = msg
	}
	return p
}

// errorMessage normalizes the service's error property, observed as an
// object carrying a message, a bare string, or a number depending on which
// upstream layer failed. Null and absent normalize to not-ok.
func errorMessage(v jsonval.Value) (string, bool) {
	if _, isObj := v.AsObject(); isObj {
		if msg, ok := v.Field("message").AsString(); ok {
			return msg, true
		}
		if code, ok := v.Field("code").AsString(); ok {
			return code, true
		}
		return "", false
	}
	if s, ok := v.AsString(); ok {
		return s, true
	}
	if n, ok := v.AsNumber(); ok {
		return n.String(), true
	}
	return "", false
}

func isObject(v jsonval.Value) bool {
	_, ok := v.AsObject()
	return ok
}

func stringOr(v jsonval.Value, def string) string {
	if s, ok := v.AsString(); ok && s != "" {
		return s
	}
	return def
}

func parseTime(v jsonval.Value) time.Time {
	s, ok := v.AsString()
	if !ok {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

var isoDurationRe = regexp.MustCompile(`^PT(?:(\d+)H)?(?:(\d+)M)?(?:([\d.]+)S)?$`)

// durationTicks converts an ISO 8601 duration such as "PT1H2M3.5S" to ticks.
// time.ParseDuration cannot read this format. Unparseable input yields 0.
func durationTicks(iso string) int64 {
	m := isoDurationRe.FindStringSubmatch(iso)
	if m == nil {
		slog.Warn("unparseable job duration", "duration", iso)
		return 0
	}
	var secs float64
	if m[1] != "" {
		h, _ := strconv.Atoi(m[1])
		secs += float64(h) * 3600
	}
	if m[2] != "" {
		min, _ := strconv.Atoi(m[2])
		secs += float64(min) * 60
	}
	if m[3] != "" {
		s, _ := strconv.ParseFloat(m[3], 64)
		secs += s
	}
	return int64(secs * ticksPerSecond)
}

// urlBaseName returns the last path segment of a URL or path, with any query
// string removed.
func urlBaseName(u string) string {
	if i := strings.LastIndex(u, "/"); i >= 0 {
		u = u[i+1:]
	}
	if i := strings.Index(u, "?"); i >= 0 {
		u = u[:i]
	}
	return u
}

// stripUploadPrefix removes the "{uuid}_" prefix the upload flow prepends to
// blob names, recovering the name the user saw.
func stripUploadPrefix(name string) string {
	if _, rest, ok := strings.Cut(name, "_"); ok && rest != "" {
		return rest
	}
	return name
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
