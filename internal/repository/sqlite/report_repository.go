package sqlite

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"trafficanalyzer/internal/dto"
	"trafficanalyzer/internal/model"
)

// ReportRepository implements repository.ReportRepository for SQLite.
type ReportRepository struct {
	db *DB
}

// NewReportRepository creates a new SQLite report repository.
func NewReportRepository(db *DB) *ReportRepository {
	return &ReportRepository{db: db}
}

// Insert stores a report and its counts in a single transaction.
func (r *ReportRepository) Insert(report *model.Report) (int64, error) {
	r.db.Lock()
	defer r.db.Unlock()

	if report.CreatedAt.IsZero() {
		report.CreatedAt = time.Now()
	}

	tx, err := r.db.Conn().Begin()
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.Exec(`
		INSERT INTO reports (file_name, video_url, created_at)
		VALUES (?, ?, ?)
	`, report.FileName, report.VideoURL, report.CreatedAt.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to insert report: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read report id: %w", err)
	}

	stmt, err := tx.Prepare(`
		INSERT INTO report_counts (report_id, position, label, count)
		VALUES (?, ?, ?, ?)
	`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for i, vc := range report.Counts {
		if _, err := stmt.Exec(id, i, vc.Label, vc.Count); err != nil {
			return 0, fmt.Errorf("failed to insert count %q: %w", vc.Label, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit report: %w", err)
	}

	report.ID = id
	return id, nil
}

// GetByID retrieves a report by its ID. A missing report yields nil, nil.
func (r *ReportRepository) GetByID(id int64) (*model.Report, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	var report model.Report
	err := r.db.Conn().QueryRow(`
		SELECT id, file_name, video_url, created_at
		FROM reports WHERE id = ?
	`, id).Scan(&report.ID, &report.FileName, &report.VideoURL, &report.CreatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get report: %w", err)
	}

	reports := []model.Report{report}
	if err := r.loadCounts(reports); err != nil {
		return nil, err
	}
	return &reports[0], nil
}

// GetAll retrieves reports matching the filter, newest first.
func (r *ReportRepository) GetAll(filter *dto.ReportFilters) ([]model.Report, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	where, args := buildWhere(filter)
	query := `SELECT r.id, r.file_name, r.video_url, r.created_at FROM reports r` + where +
		` ORDER BY r.created_at DESC, r.id DESC`

	if filter != nil && filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
		if filter.Offset > 0 {
			query += " OFFSET ?"
			args = append(args, filter.Offset)
		}
	}

	rows, err := r.db.Conn().Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query reports: %w", err)
	}
	defer rows.Close()

	var reports []model.Report
	for rows.Next() {
		var report model.Report
		if err := rows.Scan(&report.ID, &report.FileName, &report.VideoURL, &report.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan report: %w", err)
		}
		reports = append(reports, report)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate reports: %w", err)
	}

	if err := r.loadCounts(reports); err != nil {
		return nil, err
	}
	return reports, nil
}

// GetTotalCount returns the total count of reports matching the filter.
func (r *ReportRepository) GetTotalCount(filter *dto.ReportFilters) (int, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	where, args := buildWhere(filter)

	var count int
	if err := r.db.Conn().QueryRow(`SELECT COUNT(*) FROM reports r`+where, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count reports: %w", err)
	}
	return count, nil
}

// GetLabelTotals sums counts per label over all reports, largest first.
func (r *ReportRepository) GetLabelTotals() (model.Counts, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	rows, err := r.db.Conn().Query(`
		SELECT label, SUM(count) AS total
		FROM report_counts
		GROUP BY label
		ORDER BY total DESC, label
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query totals: %w", err)
	}
	defer rows.Close()

	totals := model.Counts{}
	for rows.Next() {
		var vc model.VehicleCount
		if err := rows.Scan(&vc.Label, &vc.Count); err != nil {
			return nil, fmt.Errorf("failed to scan total: %w", err)
		}
		totals = append(totals, vc)
	}
	return totals, rows.Err()
}

// Delete removes a report and its counts.
func (r *ReportRepository) Delete(id int64) error {
	r.db.Lock()
	defer r.db.Unlock()

	if _, err := r.db.Conn().Exec(`DELETE FROM report_counts WHERE report_id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete counts: %w", err)
	}
	if _, err := r.db.Conn().Exec(`DELETE FROM reports WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete report: %w", err)
	}
	return nil
}

// DeleteAll removes every report.
func (r *ReportRepository) DeleteAll() error {
	r.db.Lock()
	defer r.db.Unlock()

	if _, err := r.db.Conn().Exec(`DELETE FROM report_counts`); err != nil {
		return fmt.Errorf("failed to delete counts: %w", err)
	}
	if _, err := r.db.Conn().Exec(`DELETE FROM reports`); err != nil {
		return fmt.Errorf("failed to delete reports: %w", err)
	}
	return nil
}

// loadCounts fills Counts for each report in stored order. The caller
// holds the read lock.
func (r *ReportRepository) loadCounts(reports []model.Report) error {
	if len(reports) == 0 {
		return nil
	}

	index := make(map[int64]int, len(reports))
	placeholders := make([]string, len(reports))
	args := make([]interface{}, len(reports))
	for i := range reports {
		reports[i].Counts = model.Counts{}
		index[reports[i].ID] = i
		placeholders[i] = "?"
		args[i] = reports[i].ID
	}

	rows, err := r.db.Conn().Query(`
		SELECT report_id, label, count FROM report_counts
		WHERE report_id IN (`+strings.Join(placeholders, ",")+`)
		ORDER BY report_id, position
	`, args...)
	if err != nil {
		return fmt.Errorf("failed to query counts: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			reportID int64
			vc       model.VehicleCount
		)
		if err := rows.Scan(&reportID, &vc.Label, &vc.Count); err != nil {
			return fmt.Errorf("failed to scan count: %w", err)
		}
		i := index[reportID]
		reports[i].Counts = append(reports[i].Counts, vc)
	}
	return rows.Err()
}

// buildWhere turns filter into a WHERE clause over the reports alias r.
func buildWhere(filter *dto.ReportFilters) (string, []interface{}) {
	where := " WHERE 1=1"
	args := []interface{}{}
	if filter == nil {
		return where, args
	}

	if filter.FileName != "" {
		where += " AND r.file_name LIKE ?"
		args = append(args, "%"+filter.FileName+"%")
	}

	if filter.Label != "" {
		where += " AND EXISTS (SELECT 1 FROM report_counts c WHERE c.report_id = r.id AND c.label = ? AND c.count > 0)"
		args = append(args, filter.Label)
	}

	if !filter.DateAfter.IsZero() {
		where += " AND DATE(r.created_at) >= DATE(?)"
		args = append(args, filter.DateAfter.Format("2006-01-02"))
	}

	if !filter.DateBefore.IsZero() {
		where += " AND DATE(r.created_at) <= DATE(?)"
		args = append(args, filter.DateBefore.Format("2006-01-02"))
	}

	return where, args
}
