package analysis

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"trafficanalyzer/internal/config"
	"trafficanalyzer/internal/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c, err := NewClient(&config.Config{AnalysisURL: srv.URL}, logger.NewNop())
	require.NoError(t, err)
	return c
}

func TestProcessVideo_SendsMultipartVideo(t *testing.T) {
	var (
		gotPath     string
		gotFile     string
		gotBody     string
		gotPartType string
		otherFields int
	)

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		require.Equal(t, http.MethodPost, r.Method)

		mr, err := r.MultipartReader()
		require.NoError(t, err)
		for {
			part, err := mr.NextPart()
			if err == io.EOF {
				break
			}
			require.NoError(t, err)
			if part.FormName() != FieldName {
				otherFields++
				continue
			}
			gotFile = part.FileName()
			gotPartType = part.Header.Get("Content-Type")
			data, _ := io.ReadAll(part)
			gotBody = string(data)
		}

		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"summary": {"car": 5, "truck": 2}, "video_url": "https://x/y.mp4"}`)
	})

	res, err := c.ProcessVideo(context.Background(), "rush hour.mp4", strings.NewReader("fake mp4 bytes"))
	require.NoError(t, err)

	assert.Equal(t, ProcessPath, gotPath)
	assert.Equal(t, "rush hour.mp4", gotFile)
	assert.Equal(t, "fake mp4 bytes", gotBody)
	assert.Equal(t, VideoContentType, gotPartType)
	assert.Zero(t, otherFields)

	assert.Equal(t, 5, res.Summary.Get("car"))
	assert.Equal(t, 2, res.Summary.Get("truck"))
	assert.Equal(t, "car", res.Summary[0].Label)
	assert.Equal(t, "https://x/y.mp4", res.VideoURL)
}

func TestProcessVideo_MissingFields(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		io.Copy(io.Discard, r.Body)
		io.WriteString(w, `{}`)
	})

	res, err := c.ProcessVideo(context.Background(), "a.mp4", strings.NewReader("x"))
	require.NoError(t, err)
	assert.Zero(t, res.Summary.Len())
	assert.Empty(t, res.VideoURL)
}

func TestProcessVideo_RelativeVideoURL(t *testing.T) {
	var base string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		io.Copy(io.Discard, r.Body)
		io.WriteString(w, `{"summary": {}, "video_url": "/static/out.mp4"}`)
	})
	base = strings.TrimSuffix(c.Endpoint(), ProcessPath)

	res, err := c.ProcessVideo(context.Background(), "a.mp4", strings.NewReader("x"))
	require.NoError(t, err)
	assert.Equal(t, base+"/static/out.mp4", res.VideoURL)
}

func TestProcessVideo_StatusError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		io.Copy(io.Discard, r.Body)
		http.Error(w, "model crashed", http.StatusInternalServerError)
	})

	_, err := c.ProcessVideo(context.Background(), "a.mp4", strings.NewReader("x"))
	require.Error(t, err)

	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusInternalServerError, statusErr.StatusCode)
	assert.Equal(t, "model crashed", statusErr.Body)
	assert.Contains(t, err.Error(), "status 500")
}

func TestProcessVideo_InvalidJSON(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		io.Copy(io.Discard, r.Body)
		io.WriteString(w, `<html>gateway</html>`)
	})

	_, err := c.ProcessVideo(context.Background(), "a.mp4", strings.NewReader("x"))
	assert.ErrorIs(t, err, ErrInvalidResponse)
}

func TestProcessVideo_NetworkError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c, err := NewClient(&config.Config{AnalysisURL: url}, logger.NewNop())
	require.NoError(t, err)

	_, err = c.ProcessVideo(context.Background(), "a.mp4", strings.NewReader("x"))
	require.Error(t, err)

	var statusErr *StatusError
	assert.False(t, errors.As(err, &statusErr))
}

func TestNewClient_RejectsBadURL(t *testing.T) {
	for _, raw := range []string{"ftp://example.com", "://nope", ""} {
		_, err := NewClient(&config.Config{AnalysisURL: raw}, logger.NewNop())
		assert.Error(t, err, raw)
	}
}

func TestFetchVideo(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing.mp4" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "video/mp4")
		io.WriteString(w, "annotated")
	})
	base := strings.TrimSuffix(c.Endpoint(), ProcessPath)

	resp, err := c.FetchVideo(context.Background(), base+"/out.mp4")
	require.NoError(t, err)
	defer resp.Body.Close()
	data, _ := io.ReadAll(resp.Body)
	assert.Equal(t, "annotated", string(data))

	_, err = c.FetchVideo(context.Background(), base+"/missing.mp4")
	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusNotFound, statusErr.StatusCode)
}
