package httpadapter

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/oapi-codegen/runtime"

	"github.com/kirillkom/lite-ingest/internal/config"
	"github.com/kirillkom/lite-ingest/internal/core/artifact"
	"github.com/kirillkom/lite-ingest/internal/core/domain"
	"github.com/kirillkom/lite-ingest/internal/core/ports"
	"github.com/kirillkom/lite-ingest/internal/observability/metrics"
)

const (
	serviceName        = "api"
	multipartMemory    = 32 << 20
	backpressureWait   = 250 * time.Millisecond
	xlsxContentType    = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	uploadFieldName    = "file"
	requestTooLargeMsg = "request body too large"
)

type Router struct {
	cfg      config.Config
	cases    ports.CaseService
	ingest   ports.Ingestor
	explorer ports.CaseExplorer
	registry *artifact.Registry
	metrics  *metrics.HTTPServerMetrics
	contract *apiContract
}

// NewRouter builds the API router. httpMetrics may be nil, in which case
// /metrics is not served.
func NewRouter(
	cfg config.Config,
	cases ports.CaseService,
	ingest ports.Ingestor,
	explorer ports.CaseExplorer,
	registry *artifact.Registry,
	httpMetrics *metrics.HTTPServerMetrics,
) (*Router, error) {
	contract, err := loadContract()
	if err != nil {
		return nil, err
	}
	return &Router{
		cfg:      cfg,
		cases:    cases,
		ingest:   ingest,
		explorer: explorer,
		registry: registry,
		metrics:  httpMetrics,
		contract: contract,
	}, nil
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", rt.healthz)
	mux.HandleFunc("GET /openapi.json", rt.openAPI)
	if rt.metrics != nil {
		mux.Handle("GET /metrics", rt.metrics.Handler())
	}

	mux.HandleFunc("GET /v1/artifact-types", rt.listArtifactTypes)
	mux.HandleFunc("GET /v1/cases", rt.listCases)
	mux.HandleFunc("POST /v1/cases", rt.createCase)
	mux.HandleFunc("GET /v1/cases/{case_id}", rt.getCase)
	mux.HandleFunc("DELETE /v1/cases/{case_id}", rt.deleteCase)
	mux.HandleFunc("POST /v1/cases/{case_id}/status", rt.setCaseStatus)
	mux.HandleFunc("POST /v1/cases/{case_id}/artifacts", rt.ingestArtifacts)
	mux.HandleFunc("GET /v1/cases/{case_id}/ingestions", rt.listIngestions)
	mux.HandleFunc("GET /v1/ingestions/{log_id}", rt.getIngestion)
	mux.HandleFunc("POST /v1/ingestions/{log_id}/retry", rt.retryIngestion)
	mux.HandleFunc("GET /v1/cases/{case_id}/tables", rt.listTables)
	mux.HandleFunc("GET /v1/cases/{case_id}/tables/{table}", rt.readTable)
	mux.HandleFunc("POST /v1/cases/{case_id}/query", rt.queryCase)
	mux.HandleFunc("GET /v1/cases/{case_id}/statistics", rt.caseStatistics)
	mux.HandleFunc("GET /v1/cases/{case_id}/export.xlsx", rt.exportCase)

	var handler http.Handler = mux
	handler = backpressureMiddleware(handler, rt.cfg.APIMaxConnections, backpressureWait)
	handler = rateLimitMiddleware(handler, rt.cfg.APIRateLimitRPS, rt.cfg.APIRateLimitBurst)
	if rt.metrics != nil {
		handler = rt.metrics.Middleware(serviceName, handler)
	}
	handler = accessLogMiddleware(handler)
	return requestIDMiddleware(handler)
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (rt *Router) openAPI(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(rt.contract.json)
}

func (rt *Router) listArtifactTypes(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"artifact_types": rt.registry.Specs()})
}

func (rt *Router) listCases(w http.ResponseWriter, r *http.Request) {
	status, err := bindQuery[string](r, "status")
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	filter := domain.CaseFilter{Status: domain.CaseStatus(status)}
	if filter.Status != "" && !filter.Status.Valid() {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown case status %q", status))
		return
	}
	if filter.Search, err = bindQuery[string](r, "search"); err != nil {
		writeDomainError(w, r, err)
		return
	}
	if filter.Limit, err = bindQuery[int](r, "limit"); err != nil {
		writeDomainError(w, r, err)
		return
	}
	if filter.Offset, err = bindQuery[int](r, "offset"); err != nil {
		writeDomainError(w, r, err)
		return
	}

	cases, err := rt.cases.List(r.Context(), filter)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	if cases == nil {
		cases = []domain.Case{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"cases": cases})
}

func (rt *Router) createCase(w http.ResponseWriter, r *http.Request) {
	if err := rt.contract.validateRequest(r); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var req domain.NewCase
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}

	c, err := rt.cases.Create(r.Context(), req)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

func (rt *Router) getCase(w http.ResponseWriter, r *http.Request) {
	caseID, err := bindPath(r, "case_id")
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	c, err := rt.cases.Get(r.Context(), caseID)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (rt *Router) deleteCase(w http.ResponseWriter, r *http.Request) {
	caseID, err := bindPath(r, "case_id")
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	if err := rt.cases.Delete(r.Context(), caseID); err != nil {
		writeDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (rt *Router) setCaseStatus(w http.ResponseWriter, r *http.Request) {
	caseID, err := bindPath(r, "case_id")
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	if err := rt.contract.validateRequest(r); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var req struct {
		Status domain.CaseStatus `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}

	c, err := rt.cases.SetStatus(r.Context(), caseID, req.Status)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

type fileResult struct {
	Filename string `json:"filename"`
	domain.IngestResult
}

// ingestArtifacts runs every uploaded "file" part through the ingestion
// pipeline in order. One bad file never aborts the rest of the batch.
func (rt *Router) ingestArtifacts(w http.ResponseWriter, r *http.Request) {
	caseID, err := bindPath(r, "case_id")
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	if _, err := rt.cases.Get(r.Context(), caseID); err != nil {
		writeDomainError(w, r, err)
		return
	}

	if rt.cfg.MaxUploadBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, rt.cfg.MaxUploadBytes)
	}
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		if isTooLarge(err) {
			writeError(w, http.StatusRequestEntityTooLarge, requestTooLargeMsg)
			return
		}
		writeError(w, http.StatusBadRequest, "multipart field 'file' is required")
		return
	}
	defer func() {
		_ = r.MultipartForm.RemoveAll()
	}()

	headers := r.MultipartForm.File[uploadFieldName]
	if len(headers) == 0 {
		writeError(w, http.StatusBadRequest, "multipart field 'file' is required")
		return
	}

	results := make([]fileResult, 0, len(headers))
	succeeded := 0
	for _, header := range headers {
		body, err := readPart(header)
		if err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("read %s: %v", header.Filename, err))
			return
		}
		if rt.metrics != nil {
			rt.metrics.RecordUpload(serviceName, int64(len(body)))
		}

		res := rt.ingest.Ingest(r.Context(), caseID, header.Filename, body)
		if res.Success {
			succeeded++
		}
		results = append(results, fileResult{Filename: header.Filename, IngestResult: res})
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"case_id":   caseID,
		"results":   results,
		"succeeded": succeeded,
		"failed":    len(results) - succeeded,
	})
}

func (rt *Router) listIngestions(w http.ResponseWriter, r *http.Request) {
	caseID, err := bindPath(r, "case_id")
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	limit, err := bindQuery[int](r, "limit")
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	logs, err := rt.cases.IngestionLogs(r.Context(), caseID, limit)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	if logs == nil {
		logs = []domain.IngestionLog{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"ingestions": logs})
}

func (rt *Router) getIngestion(w http.ResponseWriter, r *http.Request) {
	logID, err := bindLogID(r)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	entry, err := rt.cases.IngestionLog(r.Context(), logID)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

func (rt *Router) retryIngestion(w http.ResponseWriter, r *http.Request) {
	logID, err := bindLogID(r)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	res, err := rt.ingest.Retry(r.Context(), logID)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (rt *Router) listTables(w http.ResponseWriter, r *http.Request) {
	caseID, err := bindPath(r, "case_id")
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	tables, err := rt.explorer.Tables(r.Context(), caseID)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	if tables == nil {
		tables = []domain.TableInfo{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"tables": tables})
}

func (rt *Router) readTable(w http.ResponseWriter, r *http.Request) {
	caseID, err := bindPath(r, "case_id")
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	table, err := bindPath(r, "table")
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	page, err := bindQuery[int](r, "page")
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	perPage, err := bindQuery[int](r, "per_page")
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	result, err := rt.explorer.Table(r.Context(), caseID, table, page, perPage)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (rt *Router) queryCase(w http.ResponseWriter, r *http.Request) {
	caseID, err := bindPath(r, "case_id")
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	if err := rt.contract.validateRequest(r); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var req struct {
		SQL string `json:"sql"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}

	rows, err := rt.explorer.Query(r.Context(), caseID, req.SQL)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

func (rt *Router) caseStatistics(w http.ResponseWriter, r *http.Request) {
	caseID, err := bindPath(r, "case_id")
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	stats, err := rt.explorer.Statistics(r.Context(), caseID)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (rt *Router) exportCase(w http.ResponseWriter, r *http.Request) {
	caseID, err := bindPath(r, "case_id")
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	// Buffer so a failed export still gets a proper error status.
	var buf bytes.Buffer
	if err := rt.explorer.Export(r.Context(), caseID, &buf); err != nil {
		writeDomainError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="case_%s.xlsx"`, caseID))
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}

func bindPath(r *http.Request, name string) (string, error) {
	var value string
	err := runtime.BindStyledParameterWithOptions("simple", name, r.PathValue(name), &value, runtime.BindStyledParameterOptions{
		ParamLocation: runtime.ParamLocationPath,
		Required:      true,
	})
	if err != nil {
		return "", domain.WrapError(domain.ErrInvalidInput, "bind "+name, err)
	}
	return value, nil
}

// bindQuery reads an optional query parameter; absent yields the zero value.
func bindLogID(r *http.Request) (int64, error) {
	var logID int64
	err := runtime.BindStyledParameterWithOptions("simple", "log_id", r.PathValue("log_id"), &logID, runtime.BindStyledParameterOptions{
		ParamLocation: runtime.ParamLocationPath,
		Required:      true,
	})
	if err != nil {
		return 0, domain.WrapError(domain.ErrInvalidInput, "bind log_id", err)
	}
	return logID, nil
}

func bindQuery[T any](r *http.Request, name string) (T, error) {
	var zero T
	var value *T
	if err := runtime.BindQueryParameter("form", true, false, name, r.URL.Query(), &value); err != nil {
		return zero, domain.WrapError(domain.ErrInvalidInput, "bind "+name, err)
	}
	if value == nil {
		return zero, nil
	}
	return *value, nil
}

func readPart(header *multipart.FileHeader) ([]byte, error) {
	f, err := header.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

func isTooLarge(err error) bool {
	var maxBytes *http.MaxBytesError
	return errors.As(err, &maxBytes) || strings.Contains(err.Error(), requestTooLargeMsg)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	status := mapErrorToHTTPStatus(err)
	if status >= http.StatusInternalServerError {
		slog.Error("http_handler_failed",
			"request_id", requestIDFromContext(r.Context()),
			"path", r.URL.Path,
			"error", err,
		)
	}
	writeError(w, status, err.Error())
}
