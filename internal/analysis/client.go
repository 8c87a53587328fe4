// Package analysis talks to the external vehicle counting service.
//
// The service accepts a multipart upload on POST /process_video with the
// video in the "video" field and answers with the per-category summary and a
// link to the annotated video. Detection and counting happen entirely on the
// service side.
package analysis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"
	"time"

	"trafficanalyzer/internal/config"
	"trafficanalyzer/internal/logger"
	"trafficanalyzer/internal/metrics"
	"trafficanalyzer/internal/model"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const (
	// ProcessPath is the service endpoint receiving videos.
	ProcessPath = "/process_video"
	// FieldName is the multipart field carrying the video bytes.
	FieldName = "video"
	// VideoContentType is sent as the part content type.
	VideoContentType = "video/mp4"

	maxErrorBody = 4 << 10
)

// ErrInvalidResponse is returned when a 2xx answer cannot be decoded.
var ErrInvalidResponse = errors.New("invalid response from analysis service")

// Result is the decoded success payload. Both fields are optional on the
// wire; a missing summary stays nil and a missing video_url stays empty.
type Result struct {
	Summary  model.Counts `json:"summary"`
	VideoURL string       `json:"video_url"`
}

// StatusError reports a non-2xx answer from the service.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("Processing failed – status %d", e.StatusCode)
}

// Client sends videos to the analysis service.
type Client struct {
	baseURL    *url.URL
	endpoint   string
	httpClient *http.Client
	logger     *logger.Logger
}

// NewClient builds a client for cfg.AnalysisURL. The underlying HTTP client
// has no timeout of its own; callers bound requests through the context.
func NewClient(cfg *config.Config, logger *logger.Logger) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(cfg.AnalysisURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid analysis url %q: %w", cfg.AnalysisURL, err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("invalid analysis url %q: scheme must be http or https", cfg.AnalysisURL)
	}

	return &Client{
		baseURL:    base,
		endpoint:   base.String() + ProcessPath,
		httpClient: &http.Client{},
		logger:     logger,
	}, nil
}

// Endpoint returns the full URL videos are posted to.
func (c *Client) Endpoint() string {
	return c.endpoint
}

// ProcessVideo streams body as a single-part multipart form and decodes the
// service's answer. Network failures, non-2xx statuses and undecodable
// bodies are all returned as errors.
func (c *Client) ProcessVideo(ctx context.Context, fileName string, body io.Reader) (*Result, error) {
	ctx, span := otel.Tracer("analysis").Start(ctx, "analysis.ProcessVideo")
	defer span.End()
	span.SetAttributes(
		attribute.String("video.name", fileName),
		attribute.String("analysis.endpoint", c.endpoint),
	)

	start := time.Now()
	result, outcome, err := c.send(ctx, fileName, body)
	metrics.AnalysisDuration.Observe(time.Since(start).Seconds())
	metrics.AnalysisRequestsTotal.WithLabelValues(outcome).Inc()

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	span.SetAttributes(attribute.Int("analysis.categories", result.Summary.Len()))
	c.logger.Info("Analysis of %s finished in %s: %d vehicles", fileName, time.Since(start).Round(time.Millisecond), result.Summary.Total())
	return result, nil
}

func (c *Client) send(ctx context.Context, fileName string, body io.Reader) (*Result, string, error) {
	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)

	go func() {
		part, err := mw.CreatePart(videoPartHeader(fileName))
		if err == nil {
			_, err = io.Copy(part, body)
		}
		if err == nil {
			err = mw.Close()
		}
		pw.CloseWithError(err)
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, pr)
	if err != nil {
		pr.CloseWithError(err)
		return nil, "network_error", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		pr.CloseWithError(err)
		return nil, "network_error", fmt.Errorf("send video to analysis service: %w", err)
	}
	defer resp.Body.Close()
	// unblocks the writer when the service answers before reading the whole video
	defer pr.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, "http_error", &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(msg))}
	}

	var result Result
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, "invalid_response", fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}

	if result.VideoURL != "" {
		result.VideoURL = c.resolve(result.VideoURL)
	}
	return &result, "success", nil
}

// resolve makes a relative video_url absolute against the service origin.
func (c *Client) resolve(ref string) string {
	u, err := url.Parse(ref)
	if err != nil || u.IsAbs() {
		return ref
	}
	return c.baseURL.ResolveReference(u).String()
}

// FetchVideo opens the processed video for proxying to the browser.
// The caller closes the response body.
func (c *Client) FetchVideo(ctx context.Context, videoURL string) (*http.Response, error) {
	ctx, span := otel.Tracer("analysis").Start(ctx, "analysis.FetchVideo")
	defer span.End()
	span.SetAttributes(attribute.String("video.url", videoURL))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, videoURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("fetch processed video: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		resp.Body.Close()
		err := &StatusError{StatusCode: resp.StatusCode}
		span.RecordError(err)
		return nil, err
	}
	return resp, nil
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func videoPartHeader(fileName string) textproto.MIMEHeader {
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`, FieldName, quoteEscaper.Replace(fileName)))
	h.Set("Content-Type", VideoContentType)
	return h
}
