package lifecycle

import (
	"errors"
	"strconv"
	"strings"

	"trafficanalyzer/internal/metrics"
	"trafficanalyzer/internal/model"
)

// Export file names and types.
const (
	CSVHeader            = "Vehicle Type,Count"
	CSVFileName          = "vehicle_counts.csv"
	CSVContentType       = "text/csv;charset=utf-8;"
	ProcessedVideoName   = "processed_video.mp4"
	ProcessedContentType = "video/mp4"
)

var (
	// ErrNoCounts means the CSV export is disabled.
	ErrNoCounts = errors.New("no vehicle counts to export")
	// ErrNoProcessedVideo means the processed video download is disabled.
	ErrNoProcessedVideo = errors.New("no processed video available")
)

// Download describes a file the browser should save. Either Content holds
// the bytes or URL names where to fetch them.
type Download struct {
	FileName    string
	ContentType string
	Content     []byte
	URL         string
}

// FormatCSV renders counts as a two column CSV document: the header, then
// one "label,count" row per entry in order, newline separated, without a
// trailing newline. Labels are written verbatim.
func FormatCSV(counts model.Counts) string {
	var b strings.Builder
	b.WriteString(CSVHeader)
	for _, vc := range counts {
		b.WriteByte('\n')
		b.WriteString(vc.Label)
		b.WriteByte(',')
		b.WriteString(strconv.Itoa(vc.Count))
	}
	return b.String()
}

// ExportCountsAsCSV returns the CSV download of the current counts, or
// ErrNoCounts when there are none.
func (c *Controller) ExportCountsAsCSV() (Download, error) {
	c.mu.Lock()
	counts := c.counts.Clone()
	c.mu.Unlock()

	if counts.Len() == 0 {
		return Download{}, ErrNoCounts
	}

	metrics.ExportsTotal.WithLabelValues("csv").Inc()
	return Download{
		FileName:    CSVFileName,
		ContentType: CSVContentType,
		Content:     []byte(FormatCSV(counts)),
	}, nil
}

// DownloadProcessedVideo returns the processed video download, or
// ErrNoProcessedVideo when the last successful analysis supplied none.
func (c *Controller) DownloadProcessedVideo() (Download, error) {
	c.mu.Lock()
	url := c.videoURL
	c.mu.Unlock()

	if url == "" {
		return Download{}, ErrNoProcessedVideo
	}

	metrics.ExportsTotal.WithLabelValues("video").Inc()
	return Download{
		FileName:    ProcessedVideoName,
		ContentType: ProcessedContentType,
		URL:         url,
	}, nil
}
