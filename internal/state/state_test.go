package state

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCorpusInsertionOrder(t *testing.T) {
	corpus := NewCorpus()
	corpus.Put(&DataFrame{ID: "b"})
	corpus.Put(&DataFrame{ID: "a"})
	corpus.Put(&DataFrame{ID: "c"})

	assert.Equal(t, []string{"b", "a", "c"}, corpus.IDs())
	assert.Equal(t, 3, corpus.Len())
	assert.NotNil(t, corpus.Get("a"))
	assert.Nil(t, corpus.Get("ghost"))
}

func TestCorpusPutReplacesFrame(t *testing.T) {
	corpus := NewCorpus()
	corpus.Put(&DataFrame{ID: "a", Headers: []string{"x"}})
	corpus.Put(&DataFrame{ID: "a", Headers: []string{"x", "y"}})

	assert.Equal(t, []string{"a"}, corpus.IDs())
	assert.Len(t, corpus.Get("a").Headers, 2)
}

func TestSampleValues(t *testing.T) {
	df := &DataFrame{
		Headers: []string{"sex", "age"},
		Rows: [][]string{
			{"M", "30"},
			{"", "40"},
			{"F", "50"},
			{"M", "60"},
		},
	}

	assert.Equal(t, []string{"M", "F"}, df.SampleValues("sex", 2))
	assert.Equal(t, []string{"M", "F", "M"}, df.SampleValues("sex", 10))
	assert.Nil(t, df.SampleValues("ghost", 5))
	assert.Nil(t, df.SampleValues("sex", 0))
}

func TestInferTarget(t *testing.T) {
	assert.Equal(t, "target", InferTarget([]string{"age", "target"}))
	assert.Equal(t, "Approved", InferTarget([]string{"sex", "Approved"}))
	// Earlier names in the known list win over later ones.
	assert.Equal(t, "outcome", InferTarget([]string{"y", "outcome"}))
	assert.Equal(t, "", InferTarget([]string{"age", "income"}))
}

func TestGetNumericColumnIndices(t *testing.T) {
	df := &DataFrame{
		Headers: []string{"age", "name", "score", "note"},
		Rows: [][]string{
			{"30", "ana", "0.5", "ok"},
			{"-4", "", "1.25", "12"},
			{"", "bob", "2", "fine"},
		},
	}

	numeric := df.GetNumericColumnIndices()
	assert.True(t, numeric[0])
	assert.False(t, numeric[1])
	assert.True(t, numeric[2])
	assert.False(t, numeric[3])

	assert.Nil(t, (&DataFrame{Headers: []string{"a"}}).GetNumericColumnIndices())
}

func TestIsNumericString(t *testing.T) {
	assert.True(t, isNumericString("42"))
	assert.True(t, isNumericString("-7"))
	assert.True(t, isNumericString("3.14"))
	assert.False(t, isNumericString(""))
	assert.False(t, isNumericString("1.2.3"))
	assert.False(t, isNumericString("12a"))
	assert.False(t, isNumericString("1-2"))
}

func TestDatasetConversion(t *testing.T) {
	df := &DataFrame{
		ID:      "adult",
		Headers: []string{"age", "target"},
		Rows:    [][]string{{"30", "1"}},
		Target:  "target",
	}

	ds := df.Dataset()
	assert.Equal(t, "adult", ds.ID)
	assert.Equal(t, 1, ds.RowCount)
	assert.Equal(t, "target", ds.Target)
	assert.True(t, ds.HasColumn("age"))
	assert.False(t, ds.HasColumn("ghost"))
}
