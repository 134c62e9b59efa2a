package models

// ColumnMatch is one flagged column with its best keyword score and the
// protected category that keyword belongs to.
type ColumnMatch struct {
	Column   string  `json:"column"`
	Score    float64 `json:"confidence"`
	Category string  `json:"category"`
}

// DetectionResult is the matcher output for one dataset.
type DetectionResult struct {
	DatasetID string        `json:"dataset_id"`
	Matches   []ColumnMatch `json:"matches"`
}

// Columns returns the flagged column names in match order.
func (r *DetectionResult) Columns() []string {
	cols := make([]string, len(r.Matches))
	for i, m := range r.Matches {
		cols[i] = m.Column
	}
	return cols
}
