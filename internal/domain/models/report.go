package models

import "time"

// TickError records one failed tick of a collection run.
type TickError struct {
	Iteration int       `json:"iteration"`
	At        time.Time `json:"at"`
	Err       error     `json:"-"`
	Message   string    `json:"message"`
}

// RunReport summarizes one collection run. Ticks counts every attempt,
// successful or not.
type RunReport struct {
	Dataset    string      `json:"dataset"`
	StartedAt  time.Time   `json:"started_at"`
	FinishedAt time.Time   `json:"finished_at"`
	Ticks      int         `json:"ticks"`
	Succeeded  int         `json:"succeeded"`
	Failed     int         `json:"failed"`
	Errors     []TickError `json:"errors,omitempty"`
}

// BatchResult is the outcome for one entry of a batch collection: either a
// snapshot or the error that produced none.
type BatchResult struct {
	Snapshot *Snapshot `json:"snapshot,omitempty"`
	Err      error     `json:"-"`
}
