package model

import "time"

// TickSummary captures the outcome of one intake cycle that found a file.
type TickSummary struct {
	FilePath      string
	LogID         int64
	BatchID       string
	Status        string
	LinesRead     int64
	RecordsQueued int64
	LinesRejected int64
	Chunks        int
	FailedChunks  int
	RelocatedTo   string
	DurationParse time.Duration
	DurationTotal time.Duration
}

// Succeeded reports whether the file was fully persisted.
func (s *TickSummary) Succeeded() bool { return s != nil && s.Status == StatusProcessed }
