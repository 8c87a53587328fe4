package sqlite

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"trafficanalyzer/internal/dto"
	"trafficanalyzer/internal/model"
)

// ========================================
// Test Setup Helpers
// ========================================

func setupTestDB(t *testing.T) *DB {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "data", "test.db")
	db, err := New(dbPath)
	if err != nil {
		t.Fatalf("Failed to create test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Fatal("Database file should exist")
	}
	return db
}

func insertReport(t *testing.T, repo *ReportRepository, name string, created time.Time, counts model.Counts) int64 {
	t.Helper()

	id, err := repo.Insert(&model.Report{
		FileName:  name,
		VideoURL:  "https://example.com/" + name,
		Counts:    counts,
		CreatedAt: created,
	})
	if err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	return id
}

// ========================================
// Report Repository Tests
// ========================================

func TestReportRepository_InsertAndGetByID(t *testing.T) {
	repo := NewReportRepository(setupTestDB(t))

	counts := model.Counts{{Label: "truck", Count: 2}, {Label: "car", Count: 5}}
	id := insertReport(t, repo, "rush_hour.mp4", time.Now(), counts)
	if id <= 0 {
		t.Fatalf("Expected positive ID, got %d", id)
	}

	report, err := repo.GetByID(id)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if report == nil {
		t.Fatal("Expected report, got nil")
	}

	if report.FileName != "rush_hour.mp4" {
		t.Errorf("Expected file name rush_hour.mp4, got %s", report.FileName)
	}
	if report.VideoURL != "https://example.com/rush_hour.mp4" {
		t.Errorf("Unexpected video URL %s", report.VideoURL)
	}
	if len(report.Counts) != 2 || report.Counts[0].Label != "truck" || report.Counts[1].Count != 5 {
		t.Errorf("Counts not stored in order: %+v", report.Counts)
	}
}

func TestReportRepository_GetByID_NotFound(t *testing.T) {
	repo := NewReportRepository(setupTestDB(t))

	report, err := repo.GetByID(42)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if report != nil {
		t.Errorf("Expected nil for missing report, got %+v", report)
	}
}

func TestReportRepository_EmptyCounts(t *testing.T) {
	repo := NewReportRepository(setupTestDB(t))

	id := insertReport(t, repo, "empty.mp4", time.Now(), model.Counts{})

	report, err := repo.GetByID(id)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if report.Counts == nil || len(report.Counts) != 0 {
		t.Errorf("Expected empty counts, got %#v", report.Counts)
	}
}

func TestReportRepository_GetAll_Filters(t *testing.T) {
	repo := NewReportRepository(setupTestDB(t))

	day := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	insertReport(t, repo, "morning.mp4", day.AddDate(0, 0, -2), model.Counts{{Label: "car", Count: 3}})
	insertReport(t, repo, "noon.mp4", day, model.Counts{{Label: "bus", Count: 1}, {Label: "car", Count: 0}})
	insertReport(t, repo, "evening.mp4", day.AddDate(0, 0, 2), model.Counts{{Label: "truck", Count: 4}})

	tests := []struct {
		name     string
		filter   *dto.ReportFilters
		expected []string
	}{
		{"no filter newest first", nil, []string{"evening.mp4", "noon.mp4", "morning.mp4"}},
		{"file name", &dto.ReportFilters{FileName: "noo"}, []string{"noon.mp4"}},
		{"label with positive count", &dto.ReportFilters{Label: "car"}, []string{"morning.mp4"}},
		{"date after", &dto.ReportFilters{DateAfter: day}, []string{"evening.mp4", "noon.mp4"}},
		{"date before", &dto.ReportFilters{DateBefore: day.AddDate(0, 0, -1)}, []string{"morning.mp4"}},
		{"limit", &dto.ReportFilters{Limit: 1}, []string{"evening.mp4"}},
		{"limit offset", &dto.ReportFilters{Limit: 1, Offset: 1}, []string{"noon.mp4"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reports, err := repo.GetAll(tt.filter)
			if err != nil {
				t.Fatalf("GetAll failed: %v", err)
			}
			if len(reports) != len(tt.expected) {
				t.Fatalf("Expected %d reports, got %d", len(tt.expected), len(reports))
			}
			for i, name := range tt.expected {
				if reports[i].FileName != name {
					t.Errorf("Report %d: expected %s, got %s", i, name, reports[i].FileName)
				}
			}
		})
	}
}

func TestReportRepository_GetTotalCount(t *testing.T) {
	repo := NewReportRepository(setupTestDB(t))

	for i := 0; i < 5; i++ {
		insertReport(t, repo, "clip.mp4", time.Now(), model.Counts{{Label: "car", Count: i}})
	}

	total, err := repo.GetTotalCount(&dto.ReportFilters{Limit: 2})
	if err != nil {
		t.Fatalf("GetTotalCount failed: %v", err)
	}
	if total != 5 {
		t.Errorf("Expected 5, got %d", total)
	}

	withCars, err := repo.GetTotalCount(&dto.ReportFilters{Label: "car"})
	if err != nil {
		t.Fatalf("GetTotalCount failed: %v", err)
	}
	if withCars != 4 {
		t.Errorf("Expected 4 reports with cars, got %d", withCars)
	}
}

func TestReportRepository_GetLabelTotals(t *testing.T) {
	repo := NewReportRepository(setupTestDB(t))

	insertReport(t, repo, "a.mp4", time.Now(), model.Counts{{Label: "car", Count: 5}, {Label: "truck", Count: 2}})
	insertReport(t, repo, "b.mp4", time.Now(), model.Counts{{Label: "car", Count: 1}, {Label: "bus", Count: 3}})

	totals, err := repo.GetLabelTotals()
	if err != nil {
		t.Fatalf("GetLabelTotals failed: %v", err)
	}

	expected := model.Counts{{Label: "car", Count: 6}, {Label: "bus", Count: 3}, {Label: "truck", Count: 2}}
	if len(totals) != len(expected) {
		t.Fatalf("Expected %d totals, got %+v", len(expected), totals)
	}
	for i := range expected {
		if totals[i] != expected[i] {
			t.Errorf("Total %d: expected %+v, got %+v", i, expected[i], totals[i])
		}
	}
}

func TestReportRepository_Delete(t *testing.T) {
	repo := NewReportRepository(setupTestDB(t))

	id := insertReport(t, repo, "a.mp4", time.Now(), model.Counts{{Label: "car", Count: 1}})
	insertReport(t, repo, "b.mp4", time.Now(), model.Counts{{Label: "car", Count: 1}})

	if err := repo.Delete(id); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if report, _ := repo.GetByID(id); report != nil {
		t.Error("Report should be deleted")
	}

	totals, _ := repo.GetLabelTotals()
	if totals.Get("car") != 1 {
		t.Errorf("Counts of deleted report should be gone, got %+v", totals)
	}

	if err := repo.DeleteAll(); err != nil {
		t.Fatalf("DeleteAll failed: %v", err)
	}
	if total, _ := repo.GetTotalCount(nil); total != 0 {
		t.Errorf("Expected 0 reports after DeleteAll, got %d", total)
	}
}

func TestReportRepository_ConcurrentInsert(t *testing.T) {
	repo := NewReportRepository(setupTestDB(t))

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			_, err := repo.Insert(&model.Report{
				FileName: "concurrent_" + string(rune('a'+idx)) + ".mp4",
				Counts:   model.Counts{{Label: "car", Count: idx}},
			})
			if err != nil {
				t.Errorf("Concurrent insert %d failed: %v", idx, err)
			}
		}(i)
	}
	wg.Wait()

	total, err := repo.GetTotalCount(nil)
	if err != nil {
		t.Fatalf("GetTotalCount failed: %v", err)
	}
	if total != 10 {
		t.Errorf("Expected 10 reports, got %d", total)
	}
}
