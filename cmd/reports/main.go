// Command reports inspects the analysis history without running the server.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"trafficanalyzer/internal/dto"
	"trafficanalyzer/internal/lifecycle"
	"trafficanalyzer/internal/repository/sqlite"
)

func main() {
	dbPath := flag.String("db", "data/reports.db", "Database path")
	exportID := flag.Int64("export", 0, "Write the CSV of this report to stdout")
	limit := flag.Int("limit", 20, "Number of reports to list")
	clearAll := flag.Bool("clear", false, "Delete every report")
	flag.Parse()

	if _, err := os.Stat(*dbPath); os.IsNotExist(err) {
		log.Fatalf("Database %s does not exist", *dbPath)
	}

	db, err := sqlite.New(*dbPath)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	repo := sqlite.NewReportRepository(db)

	switch {
	case *exportID > 0:
		report, err := repo.GetByID(*exportID)
		if err != nil {
			log.Fatalf("Failed to load report: %v", err)
		}
		if report == nil {
			log.Fatalf("Report %d not found", *exportID)
		}
		fmt.Println(lifecycle.FormatCSV(report.Counts))

	case *clearAll:
		if err := repo.DeleteAll(); err != nil {
			log.Fatalf("Failed to clear reports: %v", err)
		}
		fmt.Println("✅ Report history cleared")

	default:
		reports, err := repo.GetAll(&dto.ReportFilters{Limit: *limit})
		if err != nil {
			log.Fatalf("Failed to list reports: %v", err)
		}
		if len(reports) == 0 {
			fmt.Println("No reports recorded")
			return
		}
		for _, r := range reports {
			fmt.Printf("#%-5d %s  %-30s %d vehicles\n", r.ID, r.CreatedAt.Local().Format("2006-01-02 15:04"), r.FileName, r.Counts.Total())
		}

		total, err := repo.GetTotalCount(nil)
		if err != nil {
			log.Fatalf("Failed to count reports: %v", err)
		}
		totals, err := repo.GetLabelTotals()
		if err != nil {
			log.Fatalf("Failed to sum counts: %v", err)
		}
		fmt.Printf("\n📊 Statistics:\n")
		fmt.Printf("   Total reports: %d\n", total)
		for _, vc := range totals {
			fmt.Printf("      - %s: %d\n", vc.Label, vc.Count)
		}
	}
}
