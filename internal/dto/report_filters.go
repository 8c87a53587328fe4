// ReportFilters describe user-provided filters to narrow the report list.
package dto

import "time"

type ReportFilters struct {
	FileName   string
	Label      string
	DateAfter  time.Time
	DateBefore time.Time
	Limit      int
	Offset     int
}
