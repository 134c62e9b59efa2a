package models

// Dataset describes one tabular dataset in the corpus.
type Dataset struct {
	ID       string   `json:"dataset_id"`
	Columns  []string `json:"columns"`
	Target   string   `json:"target,omitempty"`
	RowCount int      `json:"n_samples"`
}

// HasColumn reports whether the dataset contains the named column.
func (d *Dataset) HasColumn(name string) bool {
	for _, c := range d.Columns {
		if c == name {
			return true
		}
	}
	return false
}

// Annotation is one annotator's judgment for one dataset. The JSON shape
// matches the annotation files produced by the annotation tooling.
type Annotation struct {
	DatasetID        string            `json:"dataset_id"`
	AnnotatorID      string            `json:"annotator_id"`
	SensitiveColumns []string          `json:"sensitive_columns"`
	Categories       map[string]string `json:"sensitive_categories,omitempty"`
	NSensitive       int               `json:"n_sensitive"`
	NFeatures        int               `json:"n_features"`
}

// DatasetProfile summarizes a loaded dataset's shape and inferred column
// types for inspection endpoints.
type DatasetProfile struct {
	DatasetID   string            `json:"dataset_id"`
	NumRows     int               `json:"num_rows"`
	NumColumns  int               `json:"num_columns"`
	ColumnTypes map[string]string `json:"column_types"`
	Target      string            `json:"target,omitempty"`
	HasNumeric  bool              `json:"has_numeric"`
	HasText     bool              `json:"has_text"`
}

// GroundTruthRecord is the consolidated sensitive-column set for one dataset.
type GroundTruthRecord struct {
	DatasetID        string   `json:"dataset_id"`
	SensitiveColumns []string `json:"sensitive_columns"`
	NSensitive       int      `json:"n_sensitive"`
}
