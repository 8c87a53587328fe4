package dto

import "trafficanalyzer/internal/model"

// ReportsData is a paginated response payload for the report history.
type ReportsData struct {
	Reports     []model.Report `json:"reports"`
	Totals      model.Counts   `json:"totals"`
	Length      int            `json:"length"`
	TotalPages  int            `json:"totalPages"`
	CurrentPage int            `json:"currentPage"`
	Limit       int            `json:"pageSize"`
}
