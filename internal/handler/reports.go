package handler

import (
	"net/http"
	"strconv"

	"trafficanalyzer/internal/dto"
	"trafficanalyzer/internal/lifecycle"
	"trafficanalyzer/internal/logger"
	"trafficanalyzer/internal/metrics"
	"trafficanalyzer/internal/model"
)

// ReportService is the report history used by the handlers.
type ReportService interface {
	List(filter *dto.ReportFilters, page int) (*dto.ReportsData, error)
	Get(id int64) (*model.Report, error)
	Delete(id int64) error
	Clear() error
}

// ListReportsHandler handles GET /api/reports and returns a filtered page
// of past analyses.
func ListReportsHandler(reports ReportService, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		page := atoiDefault(q.Get("page"), 1)

		filter := &dto.ReportFilters{
			FileName:   q.Get("fileName"),
			Label:      q.Get("label"),
			DateAfter:  parseDate(q.Get("dateAfter")),
			DateBefore: parseDate(q.Get("dateBefore")),
			Limit:      atoiDefault(q.Get("limit"), 20),
		}

		data, err := reports.List(filter, page)
		if err != nil {
			logger.Error("Error querying reports from database: %v", err)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, data, logger)
	}
}

// ReportCSVHandler handles GET /api/reports/{id}/csv.
func ReportCSVHandler(reports ReportService, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		report, ok := lookupReport(w, r, reports, logger)
		if !ok {
			return
		}
		if report.Counts.Len() == 0 {
			http.Error(w, lifecycle.ErrNoCounts.Error(), http.StatusConflict)
			return
		}

		content := lifecycle.FormatCSV(report.Counts)
		metrics.ExportsTotal.WithLabelValues("report_csv").Inc()
		attachment(w, lifecycle.CSVFileName, lifecycle.CSVContentType)
		w.Header().Set("Content-Length", strconv.Itoa(len(content)))
		w.Write([]byte(content))
	}
}

// DeleteReportHandler handles DELETE /api/reports/{id}.
func DeleteReportHandler(reports ReportService, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		report, ok := lookupReport(w, r, reports, logger)
		if !ok {
			return
		}
		if err := reports.Delete(report.ID); err != nil {
			logger.Error("Error deleting report %d: %v", report.ID, err)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}
		logger.Info("Report %d deleted", report.ID)
		w.WriteHeader(http.StatusNoContent)
	}
}

// ClearReportsHandler handles DELETE /api/reports.
func ClearReportsHandler(reports ReportService, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := reports.Clear(); err != nil {
			logger.Error("Error clearing reports: %v", err)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func lookupReport(w http.ResponseWriter, r *http.Request, reports ReportService, logger *logger.Logger) (*model.Report, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		http.Error(w, "Invalid report id", http.StatusBadRequest)
		return nil, false
	}

	report, err := reports.Get(id)
	if err != nil {
		logger.Error("Error loading report %d: %v", id, err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return nil, false
	}
	if report == nil {
		http.NotFound(w, r)
		return nil, false
	}
	return report, true
}
