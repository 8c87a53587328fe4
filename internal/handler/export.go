package handler

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"

	"trafficanalyzer/internal/lifecycle"
	"trafficanalyzer/internal/logger"
)

// VideoFetcher opens a processed video for streaming.
type VideoFetcher interface {
	FetchVideo(ctx context.Context, videoURL string) (*http.Response, error)
}

// ExportCSVHandler handles GET /api/export/csv.
func ExportCSVHandler(logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c := controllerFrom(w, r, logger)
		if c == nil {
			return
		}

		dl, err := c.ExportCountsAsCSV()
		if errors.Is(err, lifecycle.ErrNoCounts) {
			http.Error(w, err.Error(), http.StatusConflict)
			return
		}

		attachment(w, dl.FileName, dl.ContentType)
		w.Header().Set("Content-Length", strconv.Itoa(len(dl.Content)))
		w.Write(dl.Content)
	}
}

// ExportVideoHandler handles GET /api/export/video by streaming the
// processed video from the analysis service under its download name.
func ExportVideoHandler(fetcher VideoFetcher, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c := controllerFrom(w, r, logger)
		if c == nil {
			return
		}

		dl, err := c.DownloadProcessedVideo()
		if errors.Is(err, lifecycle.ErrNoProcessedVideo) {
			http.Error(w, err.Error(), http.StatusConflict)
			return
		}

		resp, err := fetcher.FetchVideo(r.Context(), dl.URL)
		if err != nil {
			logger.Error("Error fetching processed video %s: %v", dl.URL, err)
			http.Error(w, "Processed video unavailable", http.StatusBadGateway)
			return
		}
		defer resp.Body.Close()

		attachment(w, dl.FileName, dl.ContentType)
		if resp.ContentLength >= 0 {
			w.Header().Set("Content-Length", strconv.FormatInt(resp.ContentLength, 10))
		}
		if _, err := io.Copy(w, resp.Body); err != nil {
			logger.Warning("Processed video download interrupted: %v", err)
		}
	}
}
