package repository

import (
	"trafficanalyzer/internal/dto"
	"trafficanalyzer/internal/model"
)

// ReportRepository defines the interface for analysis history operations.
type ReportRepository interface {
	// Create operations
	Insert(report *model.Report) (int64, error)

	// Read operations
	GetByID(id int64) (*model.Report, error)
	GetAll(filter *dto.ReportFilters) ([]model.Report, error)
	GetTotalCount(filter *dto.ReportFilters) (int, error)
	GetLabelTotals() (model.Counts, error)

	// Delete operations
	Delete(id int64) error
	DeleteAll() error
}
