package analysis

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"fairaudit/internal/models"
	"fairaudit/internal/state"
)

// CSVService loads corpus datasets from CSV files.
type CSVService struct{}

func NewCSVService() *CSVService {
	return &CSVService{}
}

// ParseReader parses CSV content into a DataFrame. Comma is tried first,
// then semicolon for European-style exports. Rows with a deviant field
// count are kept as-is rather than rejected.
func (s *CSVService) ParseReader(id string, r io.Reader) (*state.DataFrame, error) {
	content, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	headers, rows, err := parseCSV(content, ',')
	if err != nil || len(headers) <= 1 {
		// Retry with semicolon: a single wide header usually means the
		// wrong delimiter.
		if h2, r2, err2 := parseCSV(content, ';'); err2 == nil && len(h2) > len(headers) {
			headers, rows = h2, r2
		} else if err != nil {
			return nil, err
		}
	}

	if len(headers) == 0 {
		return nil, fmt.Errorf("dataset %s: empty file", id)
	}

	df := &state.DataFrame{
		ID:      id,
		Headers: headers,
		Rows:    rows,
		Target:  state.InferTarget(headers),
	}
	return df, nil
}

// LoadFile loads one CSV file. The dataset id is the base filename without
// extension.
func (s *CSVService) LoadFile(path string) (*state.DataFrame, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	id := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	df, err := s.ParseReader(id, file)
	if err != nil {
		return nil, err
	}
	df.FilePath = path
	return df, nil
}

// LoadDirectory loads every .csv file in dir into the corpus and returns
// the loaded ids. Unreadable files are skipped and reported, not fatal.
func (s *CSVService) LoadDirectory(dir string, corpus *state.Corpus) ([]string, []models.ExcludedDataset, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, nil, err
	}

	loaded := []string{}
	skipped := []models.ExcludedDataset{}
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(strings.ToLower(entry.Name()), ".csv") {
			continue
		}
		df, err := s.LoadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			skipped = append(skipped, models.ExcludedDataset{
				DatasetID: entry.Name(),
				Reason:    err.Error(),
			})
			continue
		}
		corpus.Put(df)
		loaded = append(loaded, df.ID)
	}
	sort.Strings(loaded)
	return loaded, skipped, nil
}

// Profile summarizes a frame's shape and inferred column types.
func (s *CSVService) Profile(df *state.DataFrame) models.DatasetProfile {
	profile := models.DatasetProfile{
		DatasetID:   df.ID,
		NumRows:     len(df.Rows),
		NumColumns:  len(df.Headers),
		ColumnTypes: make(map[string]string),
		Target:      df.Target,
	}

	numeric := df.GetNumericColumnIndices()
	for i, col := range df.Headers {
		colType := "string"
		if numeric[i] {
			colType = inferColumnType(df.Rows, i)
		}
		profile.ColumnTypes[col] = colType
		if colType == "string" {
			profile.HasText = true
		} else {
			profile.HasNumeric = true
		}
	}
	return profile
}

func parseCSV(content []byte, delimiter rune) ([]string, [][]string, error) {
	reader := csv.NewReader(strings.NewReader(string(content)))
	reader.Comma = delimiter
	reader.FieldsPerRecord = -1

	headers, err := reader.Read()
	if err != nil {
		return nil, nil, err
	}
	for i, h := range headers {
		headers[i] = strings.TrimSpace(h)
	}

	var rows [][]string
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, nil, err
		}
		rows = append(rows, record)
	}
	return headers, rows, nil
}

func inferColumnType(rows [][]string, colIndex int) string {
	sampleSize := 20
	if len(rows) < sampleSize {
		sampleSize = len(rows)
	}

	isInt := true
	isFloat := true

	for i := 0; i < sampleSize; i++ {
		if colIndex >= len(rows[i]) {
			continue
		}
		val := rows[i][colIndex]
		if val == "" {
			continue
		}

		if _, err := strconv.Atoi(val); err != nil {
			isInt = false
		}
		if _, err := strconv.ParseFloat(val, 64); err != nil {
			isFloat = false
		}
	}

	if isInt {
		return "int"
	}
	if isFloat {
		return "float"
	}
	return "string"
}
