// backend-go/internal/domain/models.go
package domain

import "time"

// BalanceRecord is the final balance of one run, filed under the latest
// month present in the uploaded data.
type BalanceRecord struct {
	ID           int64     `json:"id" db:"id"`
	UserID       int64     `json:"user_id" db:"user_id"`
	Month        string    `json:"month" db:"month"`
	Year         int       `json:"year" db:"year"`
	Balance      float64   `json:"balance" db:"balance"`
	DateRecorded time.Time `json:"date_recorded" db:"date_recorded"`
}

// HistoryFilter narrows a balance history listing.
type HistoryFilter struct {
	Username string
	Year     int
	Limit    int
}
