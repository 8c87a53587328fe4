package history

import (
	"fmt"
	"time"

	"trafficanalyzer/internal/analysis"
	"trafficanalyzer/internal/dto"
	"trafficanalyzer/internal/logger"
	"trafficanalyzer/internal/model"
	"trafficanalyzer/internal/repository"
)

// Service keeps the history of successful analyses.
type Service struct {
	repo   repository.ReportRepository
	logger *logger.Logger
	now    func() time.Time
}

// NewService creates a history service on top of repo.
func NewService(repo repository.ReportRepository, logger *logger.Logger) *Service {
	return &Service{repo: repo, logger: logger, now: time.Now}
}

// RecordAnalysis stores a successful analysis. Failed analyses are never
// recorded.
func (s *Service) RecordAnalysis(fileName string, result *analysis.Result) error {
	report := &model.Report{
		FileName:  fileName,
		VideoURL:  result.VideoURL,
		Counts:    result.Summary.Clone(),
		CreatedAt: s.now(),
	}

	id, err := s.repo.Insert(report)
	if err != nil {
		return fmt.Errorf("record analysis: %w", err)
	}
	s.logger.Info("Recorded report %d for %s", id, fileName)
	return nil
}

// List returns one page of reports plus the overall label totals.
func (s *Service) List(filter *dto.ReportFilters, page int) (*dto.ReportsData, error) {
	if filter.Limit <= 0 {
		filter.Limit = 20
	}
	if page <= 0 {
		page = 1
	}
	filter.Offset = (page - 1) * filter.Limit

	reports, err := s.repo.GetAll(filter)
	if err != nil {
		return nil, err
	}

	total, err := s.repo.GetTotalCount(filter)
	if err != nil {
		s.logger.Error("Error counting reports: %v", err)
		total = len(reports)
	}

	totals, err := s.repo.GetLabelTotals()
	if err != nil {
		s.logger.Error("Error summing report counts: %v", err)
		totals = model.Counts{}
	}

	if reports == nil {
		reports = []model.Report{}
	}

	return &dto.ReportsData{
		Reports:     reports,
		Totals:      totals,
		Length:      total,
		TotalPages:  (total + filter.Limit - 1) / filter.Limit,
		CurrentPage: page,
		Limit:       filter.Limit,
	}, nil
}

// Get returns one report, or nil when it does not exist.
func (s *Service) Get(id int64) (*model.Report, error) {
	return s.repo.GetByID(id)
}

// Delete removes one report.
func (s *Service) Delete(id int64) error {
	return s.repo.Delete(id)
}

// Clear removes every report.
func (s *Service) Clear() error {
	if err := s.repo.DeleteAll(); err != nil {
		return err
	}
	s.logger.Info("Report history cleared")
	return nil
}
