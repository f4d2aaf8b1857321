package cds

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/globe40-course-data/internal/domain"
	"github.com/couchcryptid/globe40-course-data/internal/observability"
)

// DefaultURL is the public Climate Data Store API root.
const DefaultURL = "https://cds.climate.copernicus.eu/api"

// Job states reported by the processes API.
const (
	statusAccepted   = "accepted"
	statusRunning    = "running"
	statusSuccessful = "successful"
	statusFailed     = "failed"
	statusRejected   = "rejected"
	statusDismissed  = "dismissed"
)

// maxUnknownPolls is how many consecutive unrecognised statuses wait tolerates
// before giving up on a job.
const maxUnknownPolls = 10

// Client retrieves reanalysis GRIB files from the Climate Data Store.
// It implements pipeline.Loader.
type Client struct {
	baseURL      string
	key          string
	httpClient   *http.Client
	timeout      time.Duration
	pollInterval time.Duration
	clock        clockwork.Clock
	metrics      *observability.Metrics
	logger       *slog.Logger
}

// NewClient creates a CDS client. timeout bounds each API call; downloads are
// bounded only by the caller's context because GRIB files can be large.
func NewClient(baseURL, key string, timeout, pollInterval time.Duration, metrics *observability.Metrics, logger *slog.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultURL
	}
	return &Client{
		baseURL:      strings.TrimRight(baseURL, "/"),
		key:          key,
		httpClient:   &http.Client{},
		timeout:      timeout,
		pollInterval: pollInterval,
		clock:        clockwork.NewRealClock(),
		metrics:      metrics,
		logger:       logger,
	}
}

// Name identifies the sink in metrics and logs.
func (c *Client) Name() string { return "cds" }

// Load implements pipeline.Loader.
func (c *Client) Load(ctx context.Context, req domain.RetrievalRequest) error {
	return c.Retrieve(ctx, req)
}

// Retrieve submits the request, waits for the job to finish, and downloads
// the result to the request's output path.
func (c *Client) Retrieve(ctx context.Context, req domain.RetrievalRequest) error {
	if err := os.MkdirAll(req.OutputDir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	jobID, err := c.submit(ctx, req)
	if err != nil {
		return err
	}
	c.logger.Debug("cds job submitted", "job_id", jobID, "leg", req.Leg, "year", req.Year, "month", int(req.Month))

	if err := c.wait(ctx, jobID); err != nil {
		return err
	}

	href, err := c.resultHref(ctx, jobID)
	if err != nil {
		return err
	}

	n, err := c.download(ctx, href, req.OutputPath())
	if err != nil {
		return err
	}
	c.logger.Debug("cds result downloaded", "job_id", jobID, "output", req.OutputPath(), "bytes", n)
	return nil
}

func (c *Client) submit(ctx context.Context, req domain.RetrievalRequest) (string, error) {
	body := executeRequest{Inputs: newInputs(req)}
	u := fmt.Sprintf("%s/retrieve/v1/processes/%s/execution", c.baseURL, domain.Dataset)

	var job jobResponse
	if err := c.doJSON(ctx, http.MethodPost, u, "submit", body, &job, http.StatusCreated, http.StatusOK); err != nil {
		return "", err
	}
	if job.JobID == "" {
		return "", fmt.Errorf("submit: response has no job id")
	}
	return job.JobID, nil
}

// wait polls the job until it reaches a terminal state.
func (c *Client) wait(ctx context.Context, jobID string) error {
	unknown := 0
	for {
		var job jobResponse
		if err := c.doJSON(ctx, http.MethodGet, c.jobURL(jobID), "status", nil, &job, http.StatusOK); err != nil {
			return err
		}

		switch job.Status {
		case statusSuccessful:
			return nil
		case statusFailed, statusRejected, statusDismissed:
			// The results endpoint carries the failure reason.
			if _, err := c.resultHref(ctx, jobID); err != nil {
				return fmt.Errorf("job %s %s: %w", jobID, job.Status, err)
			}
			return fmt.Errorf("job %s %s", jobID, job.Status)
		case statusAccepted, statusRunning:
			unknown = 0
		default:
			unknown++
			c.logger.Warn("unknown cds job status", "job_id", jobID, "status", job.Status, "polls", unknown)
			if unknown >= maxUnknownPolls {
				return fmt.Errorf("job %s: unexpected status %q after %d polls", jobID, job.Status, unknown)
			}
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-c.clock.After(c.pollInterval):
		}
	}
}

func (c *Client) resultHref(ctx context.Context, jobID string) (string, error) {
	var res resultsResponse
	if err := c.doJSON(ctx, http.MethodGet, c.jobURL(jobID)+"/results", "results", nil, &res, http.StatusOK); err != nil {
		return "", err
	}
	if res.Asset.Value.Href == "" {
		return "", fmt.Errorf("job %s results have no download link", jobID)
	}

	ref, err := url.Parse(res.Asset.Value.Href)
	if err != nil {
		return "", fmt.Errorf("parse download link: %w", err)
	}
	base, err := url.Parse(c.baseURL + "/")
	if err != nil {
		return "", fmt.Errorf("parse base url: %w", err)
	}
	return base.ResolveReference(ref).String(), nil
}

// download streams href into path via a temporary file so a failed transfer
// never leaves a truncated GRIB behind.
func (c *Client) download(ctx context.Context, href, path string) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, href, nil)
	if err != nil {
		return 0, fmt.Errorf("create request: %w", err)
	}

	start := c.clock.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.observe("download", start, err)
		return 0, fmt.Errorf("download request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		err := newAPIError(resp)
		c.observe("download", start, err)
		return 0, err
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.part")
	if err != nil {
		return 0, fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name()) //nolint:errcheck // no-op after a successful rename

	n, err := io.Copy(tmp, resp.Body)
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	c.observe("download", start, err)
	if err != nil {
		return 0, fmt.Errorf("write %s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return 0, fmt.Errorf("rename %s: %w", path, err)
	}

	c.metrics.CDSBytes.Add(float64(n))
	return n, nil
}

func (c *Client) doJSON(ctx context.Context, method, fullURL, endpoint string, body, out any, okStatus ...int) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode %s request: %w", endpoint, err)
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, fullURL, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("PRIVATE-TOKEN", c.key)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := c.clock.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.observe(endpoint, start, err)
		return fmt.Errorf("%s request: %w", endpoint, err)
	}
	defer resp.Body.Close()

	if !slices.Contains(okStatus, resp.StatusCode) {
		err := newAPIError(resp)
		c.observe(endpoint, start, err)
		return err
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		err = fmt.Errorf("decode %s response: %w", endpoint, err)
		c.observe(endpoint, start, err)
		return err
	}
	c.observe(endpoint, start, nil)
	return nil
}

func (c *Client) observe(endpoint string, start time.Time, err error) {
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	c.metrics.CDSRequests.WithLabelValues(endpoint, outcome).Inc()
	c.metrics.CDSAPIDuration.WithLabelValues(endpoint).Observe(c.clock.Since(start).Seconds())
}

func (c *Client) jobURL(jobID string) string {
	return fmt.Sprintf("%s/retrieve/v1/jobs/%s", c.baseURL, url.PathEscape(jobID))
}

// APIError is a non-success response from the CDS.
type APIError struct {
	StatusCode int
	Title      string
	Detail     string
}

func (e *APIError) Error() string {
	msg := "cds api error: status " + strconv.Itoa(e.StatusCode)
	if e.Title != "" {
		msg += ": " + e.Title
	}
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	return msg
}

func newAPIError(resp *http.Response) *APIError {
	apiErr := &APIError{StatusCode: resp.StatusCode}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))

	var problem problemResponse
	if json.Unmarshal(body, &problem) == nil && (problem.Title != "" || problem.Detail != "") {
		apiErr.Title = problem.Title
		apiErr.Detail = problem.Detail
		return apiErr
	}
	apiErr.Detail = strings.TrimSpace(string(body))
	return apiErr
}

// CDS API request and response types.

type executeRequest struct {
	Inputs inputs `json:"inputs"`
}

type inputs struct {
	ProductType    []string   `json:"product_type"`
	Variable       []string   `json:"variable"`
	Year           []string   `json:"year"`
	Month          []string   `json:"month"`
	Day            []string   `json:"day"`
	Time           []string   `json:"time"`
	Area           [4]float64 `json:"area"` // north, west, south, east
	DataFormat     string     `json:"data_format"`
	DownloadFormat string     `json:"download_format"`
}

func newInputs(req domain.RetrievalRequest) inputs {
	return inputs{
		ProductType:    []string{"reanalysis"},
		Variable:       req.Variables,
		Year:           []string{strconv.Itoa(req.Year)},
		Month:          []string{fmt.Sprintf("%02d", int(req.Month))},
		Day:            req.Days,
		Time:           req.Times,
		Area:           req.Area,
		DataFormat:     "grib",
		DownloadFormat: "unarchived",
	}
}

type jobResponse struct {
	JobID  string `json:"jobID"`
	Status string `json:"status"`
}

type resultsResponse struct {
	Asset struct {
		Value struct {
			Href string `json:"href"`
			Size int64  `json:"file:size"`
		} `json:"value"`
	} `json:"asset"`
}

type problemResponse struct {
	Title  string `json:"title"`
	Detail string `json:"detail"`
}
