package handler

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"

	"trafficanalyzer/internal/analysis"
	"trafficanalyzer/internal/config"
	"trafficanalyzer/internal/lifecycle"
	"trafficanalyzer/internal/logger"
	"trafficanalyzer/internal/metrics"
)

const sniffLen = 512

// SelectVideoHandler handles POST /api/video. The multipart field "video"
// replaces the session's selected video; a request without a file clears
// the selection. The upload is spooled to the upload directory.
func SelectVideoHandler(cfg *config.Config, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c := controllerFrom(w, r, logger)
		if c == nil {
			return
		}

		r.Body = http.MaxBytesReader(w, r.Body, cfg.MaxUploadBytes())
		mr, err := r.MultipartReader()
		if err != nil {
			metrics.UploadsTotal.WithLabelValues("rejected").Inc()
			http.Error(w, "Expected multipart form", http.StatusBadRequest)
			return
		}

		video, err := receiveVideo(mr, cfg)
		if err != nil {
			metrics.UploadsTotal.WithLabelValues("rejected").Inc()
			var tooLarge *http.MaxBytesError
			switch {
			case errors.As(err, &tooLarge):
				http.Error(w, fmt.Sprintf("Video larger than %d MB", cfg.MaxUploadMB), http.StatusRequestEntityTooLarge)
			case errors.Is(err, lifecycle.ErrNotMP4):
				http.Error(w, err.Error(), http.StatusUnsupportedMediaType)
			default:
				logger.Error("Error receiving video: %v", err)
				http.Error(w, "Could not read upload", http.StatusBadRequest)
			}
			return
		}

		previous := c.SelectVideo(video)
		if err := previous.Discard(); err != nil {
			logger.Warning("Could not remove previous upload %s: %v", previous.Name, err)
		}

		if video == nil {
			metrics.UploadsTotal.WithLabelValues("cleared").Inc()
		} else {
			metrics.UploadsTotal.WithLabelValues("selected").Inc()
		}
		writeJSON(w, http.StatusOK, c.Snapshot(), logger)
	}
}

// receiveVideo returns the spooled video part, or nil when none was sent.
func receiveVideo(mr *multipart.Reader, cfg *config.Config) (*lifecycle.Video, error) {
	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			return nil, nil
		}
		if err != nil {
			return nil, fmt.Errorf("read multipart: %w", err)
		}
		if part.FormName() != analysis.FieldName {
			part.Close()
			continue
		}
		if part.FileName() == "" {
			part.Close()
			return nil, nil
		}
		return spool(part, cfg)
	}
}

func spool(part *multipart.Part, cfg *config.Config) (*lifecycle.Video, error) {
	defer part.Close()
	name := filepath.Base(part.FileName())

	head := make([]byte, sniffLen)
	n, err := io.ReadFull(part, head)
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	head = head[:n]

	if cfg.StrictMP4 {
		if err := lifecycle.CheckMP4(name, head); err != nil {
			return nil, err
		}
	}

	if err := os.MkdirAll(cfg.UploadDirectory, 0755); err != nil {
		return nil, fmt.Errorf("create upload directory: %w", err)
	}
	f, err := os.CreateTemp(cfg.UploadDirectory, "upload-*.mp4")
	if err != nil {
		return nil, fmt.Errorf("create upload file: %w", err)
	}

	size, err := io.Copy(f, io.MultiReader(bytes.NewReader(head), part))
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(f.Name())
		return nil, fmt.Errorf("spool upload: %w", err)
	}

	contentType := part.Header.Get("Content-Type")
	if contentType == "" {
		contentType = analysis.VideoContentType
	}
	return lifecycle.NewFileVideo(name, contentType, f.Name(), size), nil
}

// StartAnalysisHandler handles POST /api/analysis. It answers 202 when a
// request was sent and 409 when there was nothing to send or one is
// already running. The request outlives the HTTP call that started it.
func StartAnalysisHandler(logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c := controllerFrom(w, r, logger)
		if c == nil {
			return
		}

		status := http.StatusAccepted
		if !c.StartAnalysis(context.WithoutCancel(r.Context())) {
			status = http.StatusConflict
		}
		writeJSON(w, status, c.Snapshot(), logger)
	}
}

// StateHandler handles GET /api/state.
func StateHandler(logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c := controllerFrom(w, r, logger)
		if c == nil {
			return
		}
		w.Header().Set("Cache-Control", "no-store")
		writeJSON(w, http.StatusOK, c.Snapshot(), logger)
	}
}
