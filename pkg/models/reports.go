package models

import (
	"time"
)

// Violation describes one validation check that found affected rows
// and the action the Validator took.
type Violation struct {
	Check    string `json:"check"`
	Affected int    `json:"affected"`
	Action   string `json:"action"`
}

// ColumnStats is a numeric summary for one column of the cleaned
// dataset.
type ColumnStats struct {
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"std_dev"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
}

// ValidationReport summarizes one Validator run. It is the stage's
// output metadata, read by the quality gate and by the orchestrator
// for alerting.
type ValidationReport struct {
	GeneratedAt      time.Time              `json:"generated_at"`
	TotalRecords     int                    `json:"total_records"`
	DataQualityScore float64                `json:"data_quality_score"`
	Violations       []Violation            `json:"validation_errors"`
	NullColumns      map[string]int         `json:"null_columns"`
	NumericStats     map[string]ColumnStats `json:"numeric_stats"`
}

// LoadReport summarizes one FactLoader run.
type LoadReport struct {
	Processed int `json:"processed"`
	Inserted  int `json:"inserted"`
	Errors    int `json:"errors"`
	Batches   int `json:"batches"`
}
