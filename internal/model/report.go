package model

import "time"

// Report is a successful analysis kept in the history.
type Report struct {
	ID        int64     `json:"id"`
	FileName  string    `json:"fileName"`
	VideoURL  string    `json:"videoUrl"`
	Counts    Counts    `json:"counts"`
	CreatedAt time.Time `json:"createdAt"`
}
