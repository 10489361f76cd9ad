package entity

import "time"

// HistoryEntry is the append-only audit record of one step transition
type HistoryEntry struct {
	ID         int64      `json:"id"`
	StepID     int64      `json:"step_id"`
	HeaderID   int64      `json:"header_id"`
	FromStatus StepStatus `json:"from_status,omitempty"`
	ToStatus   StepStatus `json:"to_status"`
	Actor      string     `json:"actor"`
	Comment    string     `json:"comment,omitempty"`
	Timestamp  time.Time  `json:"timestamp"`
}
