package state

import (
	"strings"
	"sync"

	"fairaudit/internal/models"
)

// targetNames are column names treated as the outcome column, checked in
// order.
var targetNames = []string{"target", "outcome", "label", "approved", "hired", "y"}

// InferTarget returns the first header matching a known outcome-column name,
// or "" when none matches. Every corpus loader routes through this so CSV
// and table-backed frames agree on the outcome column.
func InferTarget(headers []string) string {
	for _, name := range targetNames {
		for _, h := range headers {
			if strings.ToLower(h) == name {
				return h
			}
		}
	}
	return ""
}

// DataFrame represents one loaded tabular dataset.
type DataFrame struct {
	ID       string
	Headers  []string
	Rows     [][]string
	Target   string
	FilePath string
}

// Dataset converts the frame to its corpus record.
func (df *DataFrame) Dataset() models.Dataset {
	return models.Dataset{
		ID:       df.ID,
		Columns:  df.Headers,
		Target:   df.Target,
		RowCount: len(df.Rows),
	}
}

// ColumnIndex returns the index of the named column, -1 when absent.
func (df *DataFrame) ColumnIndex(name string) int {
	for i, h := range df.Headers {
		if h == name {
			return i
		}
	}
	return -1
}

// SampleValues returns up to limit non-empty values from the named column.
func (df *DataFrame) SampleValues(column string, limit int) []string {
	idx := df.ColumnIndex(column)
	if idx < 0 || limit <= 0 {
		return nil
	}

	values := []string{}
	for _, row := range df.Rows {
		if idx < len(row) && row[idx] != "" {
			values = append(values, row[idx])
			if len(values) >= limit {
				break
			}
		}
	}
	return values
}

// GetNumericColumnIndices returns indices of numeric columns, sampled from
// the first 20 rows.
func (df *DataFrame) GetNumericColumnIndices() map[int]bool {
	if len(df.Rows) == 0 {
		return nil
	}

	numericCols := make(map[int]bool)
	for colIdx := range df.Headers {
		isNumeric := true
		checkRows := 20
		if len(df.Rows) < checkRows {
			checkRows = len(df.Rows)
		}
		for i := 0; i < checkRows; i++ {
			if colIdx >= len(df.Rows[i]) {
				continue
			}
			val := df.Rows[i][colIdx]
			if val == "" {
				continue
			}
			if !isNumericString(val) {
				isNumeric = false
				break
			}
		}
		if isNumeric {
			numericCols[colIdx] = true
		}
	}
	return numericCols
}

func isNumericString(s string) bool {
	if s == "" {
		return false
	}
	dotCount := 0
	for i, c := range s {
		if c == '-' && i == 0 {
			continue
		}
		if c == '.' {
			dotCount++
			if dotCount > 1 {
				return false
			}
			continue
		}
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

// Corpus holds the datasets loaded for one validation run. Unlike a global
// singleton, each run constructs its own Corpus and injects it into the
// services that need it.
type Corpus struct {
	mu     sync.RWMutex
	frames map[string]*DataFrame
	order  []string
}

// NewCorpus creates an empty corpus.
func NewCorpus() *Corpus {
	return &Corpus{
		frames: make(map[string]*DataFrame),
	}
}

// Put stores a dataset under its id, replacing any previous frame.
func (c *Corpus) Put(df *DataFrame) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.frames[df.ID]; !exists {
		c.order = append(c.order, df.ID)
	}
	c.frames[df.ID] = df
}

// Get retrieves a dataset by id, nil when absent.
func (c *Corpus) Get(id string) *DataFrame {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.frames[id]
}

// IDs returns dataset ids in insertion order.
func (c *Corpus) IDs() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	ids := make([]string, len(c.order))
	copy(ids, c.order)
	return ids
}

// Len returns the number of loaded datasets.
func (c *Corpus) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.frames)
}

// Datasets returns corpus records for all frames in insertion order.
func (c *Corpus) Datasets() []models.Dataset {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]models.Dataset, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.frames[id].Dataset())
	}
	return out
}
