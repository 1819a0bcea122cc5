package httpadapter

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/kirillkom/trade-compliance-engine/internal/config"
	"github.com/kirillkom/trade-compliance-engine/internal/core/domain"
	"github.com/kirillkom/trade-compliance-engine/internal/core/ports"
	"github.com/kirillkom/trade-compliance-engine/internal/observability/metrics"
)

const (
	serviceName        = "api"
	maxUploadBytes     = 32 << 20
	maxJSONBodyBytes   = 1 << 20
	xlsxContentType    = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	exportFilenameDate = "20060102"
)

// Services bundles the inbound ports the router dispatches to.
type Services struct {
	Ingestor     ports.SubmissionIngestor
	Submissions  ports.SubmissionReader
	Analyzer     ports.DocumentAnalyzer
	Documents    ports.DocumentReader
	Cases        ports.CaseService
	Associations ports.AssociationService
}

type Router struct {
	cfg     config.Config
	svc     Services
	metrics *metrics.HTTPServerMetrics
	logger  *slog.Logger
}

type RouterOption func(*Router)

func WithMetrics(m *metrics.HTTPServerMetrics) RouterOption {
	return func(rt *Router) { rt.metrics = m }
}

func WithLogger(logger *slog.Logger) RouterOption {
	return func(rt *Router) { rt.logger = logger }
}

func NewRouter(cfg config.Config, svc Services, opts ...RouterOption) *Router {
	rt := &Router{cfg: cfg, svc: svc, logger: slog.Default()}
	for _, opt := range opts {
		opt(rt)
	}
	return rt
}

// Handler assembles the route table behind the middleware chain. It fails
// only when the embedded OpenAPI document is broken.
func (rt *Router) Handler() (http.Handler, error) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", rt.healthz)
	mux.HandleFunc("GET /openapi.yaml", serveOpenAPISpec)
	if rt.metrics != nil {
		mux.Handle("GET /metrics", rt.metrics.Handler())
	}

	mux.HandleFunc("POST /v1/documents", rt.uploadDocument)
	mux.HandleFunc("GET /v1/documents", rt.listDocuments)
	mux.HandleFunc("POST /v1/documents/analyze", rt.analyzeDocument)
	mux.HandleFunc("GET /v1/documents/{document_id}", rt.getDocument)
	mux.HandleFunc("GET /v1/documents/{document_id}/suggestions", rt.suggestCases)
	mux.HandleFunc("GET /v1/submissions/{submission_id}", rt.getSubmission)
	mux.HandleFunc("GET /v1/cases", rt.listCases)
	mux.HandleFunc("POST /v1/cases/aggregate", rt.aggregateCases)
	mux.HandleFunc("GET /v1/cases/export.xlsx", rt.exportCases)
	mux.HandleFunc("GET /v1/cases/{case_id}", rt.getCase)
	mux.HandleFunc("POST /v1/cases/{case_id}/validate", rt.validateCase)
	mux.HandleFunc("POST /v1/cases/{case_id}/associations", rt.associateDocument)

	validated, err := requestValidationMiddleware(mux)
	if err != nil {
		return nil, err
	}

	var handler http.Handler = apiKeyMiddleware(validated, rt.cfg.APIKey)
	handler = backpressureMiddleware(
		handler,
		rt.cfg.APIMaxInFlight,
		time.Duration(rt.cfg.APIBackpressureWaitMS)*time.Millisecond,
	)
	handler = rateLimitMiddleware(handler, rt.cfg.APIRateLimitRPS, rt.cfg.APIRateLimitBurst)
	if rt.metrics != nil {
		handler = rt.metrics.Middleware(serviceName, handler)
	}
	handler = accessLogMiddleware(handler, rt.logger)
	handler = requestIDMiddleware(handler)
	return handler, nil
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (rt *Router) uploadDocument(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	file, fileHeader, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "multipart field 'file' is required")
		return
	}
	defer file.Close()

	sub, err := rt.svc.Ingestor.Upload(
		r.Context(),
		fileHeader.Filename,
		fileHeader.Header.Get("Content-Type"),
		file,
	)
	if err != nil {
		rt.writeDomainError(w, r, "upload_document", err)
		return
	}
	writeJSON(w, http.StatusAccepted, sub)
}

func (rt *Router) listDocuments(w http.ResponseWriter, r *http.Request) {
	if raw := r.URL.Query().Get("unassigned"); raw != "" {
		unassigned, err := strconv.ParseBool(raw)
		if err != nil || !unassigned {
			writeError(w, http.StatusBadRequest, "only the unassigned document pool can be listed")
			return
		}
	}
	records, err := rt.svc.Documents.ListUnassigned(r.Context())
	if err != nil {
		rt.writeDomainError(w, r, "list_documents", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"documents": records})
}

type analyzeRequest struct {
	Filename         string   `json:"filename"`
	Text             string   `json:"text"`
	KnownInternalIDs []string `json:"known_internal_ids"`
}

func (rt *Router) analyzeDocument(w http.ResponseWriter, r *http.Request) {
	var req analyzeRequest
	if err := decodeJSONBody(w, r, &req, false); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	record, err := rt.svc.Analyzer.Analyze(r.Context(), req.Filename, req.Text, req.KnownInternalIDs)
	if err != nil {
		rt.writeDomainError(w, r, "analyze_document", err)
		return
	}
	if rt.metrics != nil {
		rt.metrics.RecordClassification(serviceName, string(record.Kind), record.Confidence)
	}
	writeJSON(w, http.StatusCreated, record)
}

func (rt *Router) getDocument(w http.ResponseWriter, r *http.Request) {
	record, err := rt.svc.Documents.GetDocument(r.Context(), r.PathValue("document_id"))
	if err != nil {
		rt.writeDomainError(w, r, "get_document", err)
		return
	}
	writeJSON(w, http.StatusOK, record)
}

func (rt *Router) suggestCases(w http.ResponseWriter, r *http.Request) {
	suggestions, err := rt.svc.Associations.Suggest(r.Context(), r.PathValue("document_id"))
	if err != nil {
		rt.writeDomainError(w, r, "suggest_cases", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"suggestions": suggestions})
}

func (rt *Router) getSubmission(w http.ResponseWriter, r *http.Request) {
	sub, err := rt.svc.Submissions.GetSubmission(r.Context(), r.PathValue("submission_id"))
	if err != nil {
		rt.writeDomainError(w, r, "get_submission", err)
		return
	}
	writeJSON(w, http.StatusOK, sub)
}

func (rt *Router) listCases(w http.ResponseWriter, r *http.Request) {
	cases, err := rt.svc.Cases.ListCases(r.Context())
	if err != nil {
		rt.writeDomainError(w, r, "list_cases", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"cases": cases})
}

type aggregateRequest struct {
	DocumentIDs []string `json:"document_ids"`
}

func (rt *Router) aggregateCases(w http.ResponseWriter, r *http.Request) {
	var req aggregateRequest
	if err := decodeJSONBody(w, r, &req, true); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	cases, err := rt.svc.Cases.BuildCases(r.Context(), req.DocumentIDs)
	if err != nil {
		rt.writeDomainError(w, r, "aggregate_cases", err)
		return
	}
	if rt.metrics != nil {
		states := make([]string, 0, len(cases))
		for _, c := range cases {
			states = append(states, string(c.State))
		}
		rt.metrics.RecordCasesCreated(serviceName, states)
	}
	writeJSON(w, http.StatusCreated, map[string]any{"cases": cases})
}

func (rt *Router) exportCases(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	if err := rt.svc.Cases.ExportCases(r.Context(), &buf); err != nil {
		rt.writeDomainError(w, r, "export_cases", err)
		return
	}
	filename := fmt.Sprintf("case-files-%s.xlsx", time.Now().UTC().Format(exportFilenameDate))
	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}

func (rt *Router) getCase(w http.ResponseWriter, r *http.Request) {
	c, err := rt.svc.Cases.GetCase(r.Context(), r.PathValue("case_id"))
	if err != nil {
		rt.writeDomainError(w, r, "get_case", err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (rt *Router) validateCase(w http.ResponseWriter, r *http.Request) {
	result, err := rt.svc.Cases.ValidateCase(r.Context(), r.PathValue("case_id"))
	if err != nil {
		rt.writeDomainError(w, r, "validate_case", err)
		return
	}
	if rt.metrics != nil {
		rt.metrics.RecordValidation(serviceName, string(result.Verdict), result.Score)
	}
	writeJSON(w, http.StatusOK, result)
}

type associateRequest struct {
	DocumentID string `json:"document_id"`
}

type associateResponse struct {
	Result *domain.AssociationResult `json:"result"`
	Case   *domain.CaseFile          `json:"case"`
}

func (rt *Router) associateDocument(w http.ResponseWriter, r *http.Request) {
	var req associateRequest
	if err := decodeJSONBody(w, r, &req, false); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	result, updated, err := rt.svc.Associations.Associate(r.Context(), r.PathValue("case_id"), req.DocumentID)
	if err != nil {
		if rt.metrics != nil && domain.IsKind(err, domain.ErrConflict) {
			rt.metrics.RecordAssociation(serviceName, "conflict")
		}
		rt.writeDomainError(w, r, "associate_document", err)
		return
	}
	if rt.metrics != nil {
		rt.metrics.RecordAssociation(serviceName, string(result.Outcome))
	}
	writeJSON(w, http.StatusOK, associateResponse{Result: result, Case: updated})
}

// decodeJSONBody reads one JSON object. An empty body is accepted only when
// allowEmpty is set.
func decodeJSONBody(w http.ResponseWriter, r *http.Request, dst any, allowEmpty bool) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) && allowEmpty {
			return nil
		}
		return fmt.Errorf("invalid json: %v", err)
	}
	if dec.More() {
		return errors.New("invalid json: trailing data after object")
	}
	return nil
}

func (rt *Router) writeDomainError(w http.ResponseWriter, r *http.Request, operation string, err error) {
	status := mapErrorToHTTPStatus(err)
	if status >= http.StatusInternalServerError {
		rt.logger.Error("request_failed",
			"operation", operation,
			"request_id", requestIDFromContext(r.Context()),
			"error", err.Error(),
		)
	}
	writeError(w, status, publicMessage(status, err))
}

// publicMessage hides internal error chains behind 5xx responses.
func publicMessage(status int, err error) string {
	switch status {
	case http.StatusInternalServerError:
		return "internal error"
	case http.StatusServiceUnavailable:
		return "temporarily unavailable, retry later"
	default:
		return strings.TrimSpace(err.Error())
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
