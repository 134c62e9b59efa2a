package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"fairaudit/internal/analysis"
	"fairaudit/internal/config"
	"fairaudit/internal/groundtruth"
	"fairaudit/internal/service"
	"fairaudit/internal/state"
)

const MaxFileSize = 100 * 1024 * 1024 // 100MB

type Handler struct {
	Config            *config.Config
	Corpus            *state.Corpus
	GroundTruth       *groundtruth.Store
	CSVService        *analysis.CSVService
	MatcherService    *service.MatcherService
	ValidatorService  *service.ValidatorService
	AgreementService  *service.AgreementService
	ComplianceService *service.ComplianceService
	CurrentDB         service.DataSource // Active DB connection
}

func NewHandler(cfg *config.Config, corpus *state.Corpus, store *groundtruth.Store, csv *analysis.CSVService, matcher *service.MatcherService, validator *service.ValidatorService, agreement *service.AgreementService, compliance *service.ComplianceService) *Handler {
	return &Handler{
		Config:            cfg,
		Corpus:            corpus,
		GroundTruth:       store,
		CSVService:        csv,
		MatcherService:    matcher,
		ValidatorService:  validator,
		AgreementService:  agreement,
		ComplianceService: compliance,
	}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/health", h.HealthCheck)
	r.Get("/api/status", h.GetStatus)

	// Corpus Routes
	r.Post("/api/corpus/load", h.LoadCorpus)
	r.Post("/api/corpus/upload", h.UploadDataset)
	r.Get("/api/corpus", h.ListDatasets)
	r.Get("/api/corpus/{datasetID}", h.GetDatasetProfile)
	r.Get("/api/corpus/{datasetID}/preview", h.GetPreview)

	// Ground Truth Routes
	r.Post("/api/groundtruth/load", h.LoadGroundTruth)
	r.Get("/api/groundtruth/annotators", h.ListAnnotators)
	r.Get("/api/groundtruth/{datasetID}", h.GetGroundTruth)

	// Validation Routes
	r.Get("/api/detect/{datasetID}", h.DetectDataset)
	r.Get("/api/scores", h.GetScores)
	r.Get("/api/claims", h.CheckClaim)
	r.Get("/api/agreement", h.GetAgreement)

	// Compliance Routes
	r.Get("/api/compliance", h.GetComplianceReport)
	r.Get("/api/compliance/{datasetID}", h.GetDatasetCompliance)

	// DB Routes
	r.Post("/api/db/connect", h.ConnectDB)
	r.Get("/api/db/tables", h.ListTables)
	r.Post("/api/db/load", h.LoadTable)
}

// ============================================================================
// Health / Status
// ============================================================================

func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	w.Write([]byte("OK"))
}

func (h *Handler) GetStatus(w http.ResponseWriter, r *http.Request) {
	status := map[string]interface{}{
		"datasets_loaded":    h.Corpus.Len(),
		"annotated_datasets": len(h.GroundTruth.Datasets()),
		"annotators":         h.GroundTruth.Annotators(),
		"matcher_threshold":  h.Config.Matcher.Threshold,
		"db_connected":       h.CurrentDB != nil,
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(status)
}

// ============================================================================
// Corpus
// ============================================================================

// LoadCorpus loads every CSV in a directory into the corpus. The directory
// defaults to the configured datasets_dir.
func (h *Handler) LoadCorpus(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Dir string `json:"dir"`
	}
	if r.Body != nil {
		json.NewDecoder(r.Body).Decode(&req)
	}
	if req.Dir == "" {
		req.Dir = h.Config.DatasetsDir
	}

	loaded, skipped, err := h.CSVService.LoadDirectory(req.Dir, h.Corpus)
	if err != nil {
		http.Error(w, fmt.Sprintf("Error loading corpus: %v", err), http.StatusBadRequest)
		return
	}

	log.Printf("[API] Loaded %d datasets from %s (%d skipped)", len(loaded), req.Dir, len(skipped))

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"loaded":  loaded,
		"skipped": skipped,
	})
}

func (h *Handler) UploadDataset(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(MaxFileSize); err != nil {
		http.Error(w, "File too large", http.StatusBadRequest)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		http.Error(w, "No file uploaded", http.StatusBadRequest)
		return
	}
	defer file.Close()

	if !strings.HasSuffix(strings.ToLower(header.Filename), ".csv") {
		http.Error(w, "Only CSV files are allowed", http.StatusBadRequest)
		return
	}

	id := strings.TrimSuffix(header.Filename, ".csv")
	if custom := r.FormValue("dataset_id"); custom != "" {
		id = custom
	}

	df, err := h.CSVService.ParseReader(id, file)
	if err != nil {
		http.Error(w, fmt.Sprintf("Failed to parse CSV: %v", err), http.StatusBadRequest)
		return
	}
	h.Corpus.Put(df)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"message":      fmt.Sprintf("Dataset '%s' loaded successfully", id),
		"dataset_id":   id,
		"rows":         len(df.Rows),
		"columns":      len(df.Headers),
		"column_names": df.Headers,
	})
}

func (h *Handler) ListDatasets(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"datasets": h.Corpus.Datasets(),
	})
}

func (h *Handler) GetDatasetProfile(w http.ResponseWriter, r *http.Request) {
	df, ok := h.frameParam(w, r)
	if !ok {
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(h.CSVService.Profile(df))
}

func (h *Handler) GetPreview(w http.ResponseWriter, r *http.Request) {
	df, ok := h.frameParam(w, r)
	if !ok {
		return
	}

	limit := getIntParam(r, "rows", 10)
	if limit > len(df.Rows) {
		limit = len(df.Rows)
	}

	data := make([]map[string]interface{}, limit)
	for i := 0; i < limit; i++ {
		row := make(map[string]interface{})
		for j, header := range df.Headers {
			if j < len(df.Rows[i]) {
				row[header] = df.Rows[i][j]
			} else {
				row[header] = ""
			}
		}
		data[i] = row
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}

// ============================================================================
// Ground Truth
// ============================================================================

func (h *Handler) LoadGroundTruth(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Dir  string `json:"dir"`
		File string `json:"file"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}

	var n int
	var err error
	switch {
	case req.File != "":
		n, err = h.GroundTruth.LoadFile(req.File)
	case req.Dir != "":
		n, err = h.GroundTruth.LoadDirectory(req.Dir)
	default:
		http.Error(w, "dir or file is required", http.StatusBadRequest)
		return
	}
	if err != nil {
		http.Error(w, fmt.Sprintf("Error loading annotations: %v", err), http.StatusBadRequest)
		return
	}

	log.Printf("[API] Loaded %d annotations", n)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"annotations": n,
		"annotators":  h.GroundTruth.Annotators(),
	})
}

func (h *Handler) ListAnnotators(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"annotators": h.GroundTruth.Annotators(),
		"datasets":   h.GroundTruth.Datasets(),
	})
}

func (h *Handler) GetGroundTruth(w http.ResponseWriter, r *http.Request) {
	datasetID := chi.URLParam(r, "datasetID")

	record, ok := h.GroundTruth.Consolidated(datasetID)
	if !ok {
		http.Error(w, fmt.Sprintf("Dataset %s has no annotations", datasetID), http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"consolidated": record,
		"annotations":  h.GroundTruth.Annotations(datasetID),
	})
}

// ============================================================================
// Validation
// ============================================================================

func (h *Handler) DetectDataset(w http.ResponseWriter, r *http.Request) {
	df, ok := h.frameParam(w, r)
	if !ok {
		return
	}

	result, err := h.MatcherService.DetectFrame(df)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(result)
}

func (h *Handler) GetScores(w http.ResponseWriter, r *http.Request) {
	summary, records, err := h.ValidatorService.ScoreCorpus(h.Corpus, h.GroundTruth)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"summary": summary,
		"records": records,
	})
}

// CheckClaim evaluates the scored corpus against a claimed metric minimum,
// e.g. /api/claims?metric=f1&target=0.85.
func (h *Handler) CheckClaim(w http.ResponseWriter, r *http.Request) {
	metric := r.URL.Query().Get("metric")
	target, err := strconv.ParseFloat(r.URL.Query().Get("target"), 64)
	if err != nil {
		http.Error(w, "target must be a number", http.StatusBadRequest)
		return
	}

	summary, _, err := h.ValidatorService.ScoreCorpus(h.Corpus, h.GroundTruth)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	var agg = summary.Precision
	switch metric {
	case "precision":
		agg = summary.Precision
	case "recall":
		agg = summary.Recall
	case "f1":
		agg.Mean = summary.F1Mean
		agg.Std = summary.F1Std
		agg.CI95 = summary.F1CI95
		agg.N = summary.NDatasets
	default:
		http.Error(w, "metric must be precision, recall or f1", http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(h.ValidatorService.CheckClaim(metric, target, agg))
}

func (h *Handler) GetAgreement(w http.ResponseWriter, r *http.Request) {
	annotator1 := r.URL.Query().Get("annotator1")
	annotator2 := r.URL.Query().Get("annotator2")

	// Default to the first two annotators on file.
	if annotator1 == "" && annotator2 == "" {
		annotators := h.GroundTruth.Annotators()
		if len(annotators) < 2 {
			http.Error(w, "Need at least 2 annotators for agreement", http.StatusBadRequest)
			return
		}
		annotator1, annotator2 = annotators[0], annotators[1]
	}

	record, err := h.AgreementService.Compare(h.Corpus, h.GroundTruth, annotator1, annotator2)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(record)
}

// ============================================================================
// Compliance
// ============================================================================

func (h *Handler) GetComplianceReport(w http.ResponseWriter, r *http.Request) {
	report := h.ComplianceService.EvaluateCorpus(h.Corpus)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(report)
}

func (h *Handler) GetDatasetCompliance(w http.ResponseWriter, r *http.Request) {
	df, ok := h.frameParam(w, r)
	if !ok {
		return
	}

	verdicts, err := h.ComplianceService.EvaluateFrame(df)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"dataset_id": df.ID,
		"verdicts":   verdicts,
	})
}

// ============================================================================
// Database
// ============================================================================

// ConnectDB establishes a database connection
func (h *Handler) ConnectDB(w http.ResponseWriter, r *http.Request) {
	var cfg service.DataSourceConfig
	if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}

	ds := &service.PostgresDataSource{}
	if err := ds.Connect(cfg); err != nil {
		http.Error(w, fmt.Sprintf("Failed to connect: %v", err), http.StatusInternalServerError)
		return
	}

	// Close previous if exists
	if h.CurrentDB != nil {
		h.CurrentDB.Close()
	}
	h.CurrentDB = ds

	json.NewEncoder(w).Encode(map[string]string{"status": "connected"})
}

func (h *Handler) ListTables(w http.ResponseWriter, r *http.Request) {
	if h.CurrentDB == nil {
		http.Error(w, "No database connection", http.StatusBadRequest)
		return
	}

	tables, err := h.CurrentDB.ListTables()
	if err != nil {
		http.Error(w, fmt.Sprintf("Error listing tables: %v", err), http.StatusInternalServerError)
		return
	}

	json.NewEncoder(w).Encode(map[string]interface{}{"tables": tables})
}

// LoadTable pulls a table into the corpus as one dataset.
func (h *Handler) LoadTable(w http.ResponseWriter, r *http.Request) {
	if h.CurrentDB == nil {
		http.Error(w, "No database connection", http.StatusBadRequest)
		return
	}

	var req struct {
		TableName string `json:"table_name"`
		Limit     int    `json:"limit"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}

	df, err := h.CurrentDB.LoadTable(req.TableName, req.Limit)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	h.Corpus.Put(df)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"dataset_id": df.ID,
		"rows":       len(df.Rows),
		"columns":    len(df.Headers),
	})
}

// ============================================================================
// Helpers
// ============================================================================

func (h *Handler) frameParam(w http.ResponseWriter, r *http.Request) (*state.DataFrame, bool) {
	datasetID := chi.URLParam(r, "datasetID")
	df := h.Corpus.Get(datasetID)
	if df == nil {
		http.Error(w, fmt.Sprintf("Dataset %s not loaded", datasetID), http.StatusNotFound)
		return nil, false
	}
	return df, true
}

// writeServiceError maps the service sentinel errors onto HTTP statuses.
func writeServiceError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, service.ErrInvalidInput),
		errors.Is(err, service.ErrConfig),
		errors.Is(err, service.ErrInsufficientSample),
		errors.Is(err, service.ErrDegenerateGroup):
		status = http.StatusBadRequest
	}
	http.Error(w, err.Error(), status)
}

func getIntParam(r *http.Request, name string, defaultVal int) int {
	valStr := r.URL.Query().Get(name)
	if valStr == "" {
		return defaultVal
	}
	val, err := strconv.Atoi(valStr)
	if err != nil {
		return defaultVal
	}
	return val
}
