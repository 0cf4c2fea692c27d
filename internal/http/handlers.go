package http

import (
	"bytes"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"farmdeck/internal/core"
	"farmdeck/internal/pdf"
	"farmdeck/internal/qr"
	"farmdeck/internal/share"
)

// maxImportBytes caps import request bodies. Payloads past QR capacity
// travel by file, but even those stay small.
const maxImportBytes = 4 << 20

// Request bodies. Amounts travel as decimal strings and are parsed into
// cents server-side.
type projectRequest struct {
	Title         string   `json:"title"`
	StartDate     string   `json:"startDate"`
	CustomColumns []string `json:"customColumns"`
}

type recordRequest struct {
	Date         string            `json:"date"`
	Produce      string            `json:"produce"`
	Revenue      string            `json:"revenue"`
	InputCost    string            `json:"inputCost"`
	Notes        string            `json:"notes"`
	CustomValues map[string]string `json:"customValues"`
}

// Response views.
type projectView struct {
	ID            string    `json:"id"`
	Title         string    `json:"title"`
	StartDate     string    `json:"startDate"`
	CustomColumns []string  `json:"customColumns"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

type recordView struct {
	ID           string            `json:"id"`
	ProjectID    string            `json:"projectId"`
	Date         string            `json:"date"`
	Produce      string            `json:"produce"`
	Revenue      string            `json:"revenue"`
	InputCost    string            `json:"inputCost"`
	Notes        string            `json:"notes,omitempty"`
	CustomValues map[string]string `json:"customValues,omitempty"`
	CreatedAt    time.Time         `json:"createdAt"`
	UpdatedAt    time.Time         `json:"updatedAt"`
}

type summaryView struct {
	Month          string `json:"month"`
	TotalProduce   string `json:"totalProduce"`
	TotalRevenue   string `json:"totalRevenue"`
	TotalInputCost string `json:"totalInputCost"`
	NetProfit      string `json:"netProfit"`
	RecordCount    int    `json:"recordCount"`
}

type importView struct {
	ProjectID       string `json:"projectId"`
	ProjectCreated  bool   `json:"projectCreated"`
	RecordsImported int    `json:"recordsImported"`
}

func viewProject(p core.Project) projectView {
	cols := p.CustomColumns
	if cols == nil {
		cols = []string{}
	}
	return projectView{
		ID:            p.ID,
		Title:         p.Title,
		StartDate:     p.StartDate.String(),
		CustomColumns: cols,
		CreatedAt:     p.CreatedAt,
		UpdatedAt:     p.UpdatedAt,
	}
}

func viewRecord(r core.Record) recordView {
	return recordView{
		ID:           r.ID,
		ProjectID:    r.ProjectID,
		Date:         r.Date.String(),
		Produce:      r.Produce.String(),
		Revenue:      r.Revenue.String(),
		InputCost:    r.InputCost.String(),
		Notes:        r.Notes,
		CustomValues: r.CustomValues,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}
}

func viewSummaries(summaries []core.MonthlySummary) []summaryView {
	out := make([]summaryView, 0, len(summaries))
	for _, s := range summaries {
		out = append(out, summaryView{
			Month:          s.Month,
			TotalProduce:   s.TotalProduce.String(),
			TotalRevenue:   s.TotalRevenue.String(),
			TotalInputCost: s.TotalInputCost.String(),
			NetProfit:      s.NetProfit.String(),
			RecordCount:    s.RecordCount,
		})
	}
	return out
}

func (req projectRequest) toProject(id string) (core.Project, error) {
	start, err := core.ParseDate(req.StartDate)
	if err != nil {
		return core.Project{}, err
	}
	return core.Project{
		ID:            id,
		Title:         sanitizeInput(req.Title),
		StartDate:     start,
		CustomColumns: req.CustomColumns,
	}, nil
}

func (req recordRequest) toRecord(id, projectID string) (core.Record, error) {
	date, err := core.ParseDate(req.Date)
	if err != nil {
		return core.Record{}, err
	}
	produce, err := core.ParseQuantity(req.Produce)
	if err != nil {
		return core.Record{}, err
	}
	revenue, err := core.ParseMoney(req.Revenue)
	if err != nil {
		return core.Record{}, err
	}
	inputCost, err := core.ParseMoney(req.InputCost)
	if err != nil {
		return core.Record{}, err
	}
	return core.Record{
		ID:           id,
		ProjectID:    projectID,
		Date:         date,
		Produce:      produce,
		Revenue:      revenue,
		InputCost:    inputCost,
		Notes:        sanitizeInput(req.Notes),
		CustomValues: req.CustomValues,
	}, nil
}

func (s *Server) handleCreateProject(w http.ResponseWriter, r *http.Request) {
	var req projectRequest
	if err := decodeBody(r, &req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	project, err := req.toProject("")
	if err != nil {
		writeError(w, err)
		return
	}

	created, err := s.service.CreateProject(r.Context(), project)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, viewProject(created))
}

func (s *Server) handleListProjects(w http.ResponseWriter, r *http.Request) {
	projects, err := s.service.ListProjects(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	views := make([]projectView, 0, len(projects))
	for _, p := range projects {
		views = append(views, viewProject(p))
	}
	writeJSON(w, http.StatusOK, views)
}

func (s *Server) handleGetProject(w http.ResponseWriter, r *http.Request) {
	project, err := s.service.GetProject(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, viewProject(project))
}

func (s *Server) handleUpdateProject(w http.ResponseWriter, r *http.Request) {
	var req projectRequest
	if err := decodeBody(r, &req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	project, err := req.toProject(r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}

	if err := s.service.UpdateProject(r.Context(), project); err != nil {
		writeError(w, err)
		return
	}

	// The request carries no timestamps; echo the stored row.
	stored, err := s.service.GetProject(r.Context(), project.ID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, viewProject(stored))
}

func (s *Server) handleDeleteProject(w http.ResponseWriter, r *http.Request) {
	projectID := r.PathValue("id")
	if err := s.service.DeleteProject(r.Context(), projectID); err != nil {
		writeError(w, err)
		return
	}
	s.invalidateSummaries(projectID)
	writeJSON(w, http.StatusNoContent, nil)
}

func (s *Server) handleCreateRecord(w http.ResponseWriter, r *http.Request) {
	var req recordRequest
	if err := decodeBody(r, &req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	record, err := req.toRecord("", r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}

	created, err := s.service.CreateRecord(r.Context(), record)
	if err != nil {
		writeError(w, err)
		return
	}

	s.logger.RecordCreated(r.Context(), created.ID, created.ProjectID,
		created.Revenue.Cents, created.InputCost.Cents)
	s.invalidateSummaries(created.ProjectID)
	writeJSON(w, http.StatusCreated, viewRecord(created))
}

func (s *Server) handleListRecords(w http.ResponseWriter, r *http.Request) {
	records, err := s.service.ListRecords(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}

	views := make([]recordView, 0, len(records))
	for _, rec := range records {
		views = append(views, viewRecord(rec))
	}
	writeJSON(w, http.StatusOK, views)
}

func (s *Server) handleUpdateRecord(w http.ResponseWriter, r *http.Request) {
	var req recordRequest
	if err := decodeBody(r, &req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	record, err := req.toRecord(r.PathValue("recordID"), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}

	if err := s.service.UpdateRecord(r.Context(), record); err != nil {
		writeError(w, err)
		return
	}

	s.invalidateSummaries(record.ProjectID)
	writeJSON(w, http.StatusOK, viewRecord(record))
}

func (s *Server) handleDeleteRecord(w http.ResponseWriter, r *http.Request) {
	projectID := r.PathValue("id")
	if err := s.service.DeleteRecord(r.Context(), projectID, r.PathValue("recordID")); err != nil {
		writeError(w, err)
		return
	}
	s.invalidateSummaries(projectID)
	writeJSON(w, http.StatusNoContent, nil)
}

func (s *Server) handleMonthlySummary(w http.ResponseWriter, r *http.Request) {
	projectID := r.PathValue("id")
	key := s.summaryCacheKey(projectID)

	if cached, found := s.summaryCache.Get(key); found {
		slog.DebugContext(r.Context(), "Summary cache hit", "project_id", projectID)
		writeJSON(w, http.StatusOK, viewSummaries(cached))
		return
	}

	summaries, err := s.service.MonthlySummaries(r.Context(), projectID)
	if err != nil {
		writeError(w, err)
		return
	}

	s.summaryCache.Set(key, summaries)
	writeJSON(w, http.StatusOK, viewSummaries(summaries))
}

// handleExport serves a share payload as JSON or as a QR code PNG.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	projectID := r.PathValue("id")

	var payloadType share.PayloadType
	switch r.URL.Query().Get("type") {
	case "", "project":
		payloadType = share.TypeProject
	case "full":
		payloadType = share.TypeFullExport
	default:
		writeBadRequest(w, "unknown export type, use project or full")
		return
	}

	payload, err := s.service.ExportPayload(r.Context(), projectID, payloadType)
	if err != nil {
		writeError(w, err)
		return
	}

	data, err := payload.Marshal()
	if err != nil {
		writeError(w, err)
		return
	}

	switch r.URL.Query().Get("format") {
	case "", "json":
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.Header().Set("Content-Disposition", `attachment; filename="`+projectID+`.farmdeck.json"`)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(data)
	case "qr":
		png, err := qr.EncodePNG(data, s.qrSize)
		if err != nil {
			// Oversized payloads still export fine as a file.
			writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Error: err.Error()})
			return
		}
		w.Header().Set("Content-Type", "image/png")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(png)
	default:
		writeBadRequest(w, "unknown export format, use json or qr")
	}
}

// handleStatement renders a PDF statement, full or for a single month.
func (s *Server) handleStatement(w http.ResponseWriter, r *http.Request) {
	projectID := r.PathValue("id")

	project, err := s.service.GetProject(r.Context(), projectID)
	if err != nil {
		writeError(w, err)
		return
	}
	records, err := s.service.ListRecords(r.Context(), projectID)
	if err != nil {
		writeError(w, err)
		return
	}
	summaries, err := s.service.MonthlySummaries(r.Context(), projectID)
	if err != nil {
		writeError(w, err)
		return
	}

	exportType := pdf.ExportFull
	if r.URL.Query().Get("type") == "monthly" {
		exportType = pdf.ExportMonthly
	}

	st := pdf.Statement{
		Project:   project,
		Records:   records,
		Summaries: summaries,
		Type:      exportType,
		Month:     r.URL.Query().Get("month"),
	}

	// Render into memory first so failures can still return a clean error.
	var buf bytes.Buffer
	if err := pdf.Generate(st, &buf); err != nil {
		slog.ErrorContext(r.Context(), "Statement generation failed",
			"project_id", projectID, "error", err)
		writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Error: err.Error()})
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", `attachment; filename="`+projectID+`-statement.pdf"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

// handleImport accepts a share payload as a raw JSON body or as a multipart
// file upload and merges it into local storage.
func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	data, err := readImportPayload(r)
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	result, err := s.importer.ImportJSON(r.Context(), data)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, importView{
		ProjectID:       result.ProjectID,
		ProjectCreated:  result.ProjectCreated,
		RecordsImported: result.RecordsImported,
	})
}

func readImportPayload(r *http.Request) ([]byte, error) {
	r.Body = http.MaxBytesReader(nil, r.Body, maxImportBytes)

	ct := r.Header.Get("Content-Type")
	if strings.HasPrefix(ct, "multipart/form-data") {
		if err := r.ParseMultipartForm(maxImportBytes); err != nil {
			return nil, err
		}
		file, _, err := r.FormFile("file")
		if err != nil {
			return nil, err
		}
		defer file.Close()
		return io.ReadAll(file)
	}

	return io.ReadAll(r.Body)
}
