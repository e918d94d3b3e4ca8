package api

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mesikahq/clinic-desk/internal/audit"
	"github.com/mesikahq/clinic-desk/internal/auth"
	"github.com/mesikahq/clinic-desk/internal/patient"
	"github.com/mesikahq/clinic-desk/internal/report"
	"github.com/mesikahq/clinic-desk/internal/suggestion"
)

// Error kinds surfaced to clients alongside the message.
const (
	KindValidation = "VALIDATION"
	KindNotFound   = "NOT_FOUND"
	KindConflict   = "CONFLICT"
	KindAuth       = "AUTH"
	KindStorage    = "STORAGE"
)

type Handler struct {
	authService       auth.Service
	patientService    patient.Service
	reportService     report.Service
	suggestionService suggestion.Service
	auditService      audit.Service
}

func NewHandler(
	authService auth.Service,
	patientService patient.Service,
	reportService report.Service,
	suggestionService suggestion.Service,
	auditService audit.Service,
) *Handler {
	return &Handler{
		authService:       authService,
		patientService:    patientService,
		reportService:     reportService,
		suggestionService: suggestionService,
		auditService:      auditService,
	}
}

// respondError translates service errors into a status code plus a
// machine-readable kind. Nothing is retried; the client resubmits.
func respondError(c *gin.Context, err error) {
	status, kind := http.StatusInternalServerError, KindStorage

	switch {
	case errors.Is(err, patient.ErrPatientNotFound),
		errors.Is(err, patient.ErrVisitNotFound),
		errors.Is(err, patient.ErrReportNotFound),
		errors.Is(err, auth.ErrUserNotFound):
		status, kind = http.StatusNotFound, KindNotFound

	case errors.Is(err, patient.ErrInvalidPhone),
		errors.Is(err, patient.ErrNameRequired),
		errors.Is(err, suggestion.ErrInvalidType),
		errors.Is(err, suggestion.ErrEmptyText),
		errors.Is(err, auth.ErrInvalidRole),
		errors.Is(err, auth.ErrMissingFields),
		errors.Is(err, report.ErrNoFile):
		status, kind = http.StatusBadRequest, KindValidation

	case errors.Is(err, patient.ErrDuplicatePatient),
		errors.Is(err, auth.ErrDuplicateEmail):
		status, kind = http.StatusConflict, KindConflict

	case errors.Is(err, auth.ErrInvalidCredentials),
		errors.Is(err, auth.ErrInvalidToken),
		errors.Is(err, auth.ErrTokenExpired):
		status, kind = http.StatusUnauthorized, KindAuth
	}

	c.JSON(status, gin.H{"kind": kind, "message": err.Error()})
}

func badRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, gin.H{"kind": KindValidation, "message": message})
}

// Authentication

type SignupRequest struct {
	Name     string `json:"name" binding:"required"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
	Role     string `json:"role" binding:"required"`
}

func (h *Handler) Signup(c *gin.Context) {
	var req SignupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	session, err := h.authService.Signup(c.Request.Context(), req.Name, req.Email, req.Password, req.Role)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, session)
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

func (h *Handler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	session, err := h.authService.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, session)
}

// Patients

func (h *Handler) CreatePatient(c *gin.Context) {
	var req patient.CreateInput
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	p, err := h.patientService.Create(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, p)
}

func (h *Handler) SearchPatients(c *gin.Context) {
	in := patient.SearchInput{Query: c.Query("q")}

	if from := c.Query("from"); from != "" {
		t, err := parseDate(from)
		if err != nil {
			badRequest(c, "invalid from date")
			return
		}
		in.From = &t
	}
	if to := c.Query("to"); to != "" {
		t, err := parseDate(to)
		if err != nil {
			badRequest(c, "invalid to date")
			return
		}
		in.To = &t
	}

	patients, err := h.patientService.Search(c.Request.Context(), in)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, patients)
}

func (h *Handler) GetPatient(c *gin.Context) {
	p, err := h.patientService.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

// Visits

func (h *Handler) AddVisit(c *gin.Context) {
	var req patient.VisitInput
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	p, err := h.patientService.AddVisit(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, p)
}

func (h *Handler) ListVisits(c *gin.Context) {
	visits, err := h.patientService.ListVisits(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, visits)
}

// Reports

func (h *Handler) UploadReport(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		respondError(c, report.ErrNoFile)
		return
	}

	f, err := fileHeader.Open()
	if err != nil {
		respondError(c, fmt.Errorf("failed to read upload: %w", err))
		return
	}
	defer f.Close()

	reports, err := h.reportService.Upload(c.Request.Context(), c.Param("id"), c.Param("vid"), report.UploadInput{
		FileName:    fileHeader.Filename,
		DisplayName: c.PostForm("name"),
		Mime:        fileHeader.Header.Get("Content-Type"),
		Content:     f,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, reports)
}

func (h *Handler) ListReports(c *gin.Context) {
	reports, err := h.reportService.List(c.Request.Context(), c.Param("id"), c.Param("vid"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, reports)
}

func (h *Handler) DownloadReport(c *gin.Context) {
	rec, content, err := h.reportService.Download(c.Request.Context(), c.Param("id"), c.Param("vid"), c.Param("rid"))
	if err != nil {
		respondError(c, err)
		return
	}
	defer content.Close()

	mime := rec.Mime
	if mime == "" {
		mime = "application/octet-stream"
	}
	name := rec.Name
	if name == "" {
		name = rec.StoredName
	}

	// Filename is URL-encoded so non-ASCII display names survive the header.
	extraHeaders := map[string]string{
		"Content-Disposition": fmt.Sprintf(`inline; filename="%s"`, url.PathEscape(name)),
	}
	c.DataFromReader(http.StatusOK, rec.Size, mime, content, extraHeaders)
}

func (h *Handler) DeleteReport(c *gin.Context) {
	err := h.reportService.Delete(c.Request.Context(), c.Param("id"), c.Param("vid"), c.Param("rid"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// Suggestions

func (h *Handler) QuerySuggestions(c *gin.Context) {
	texts, err := h.suggestionService.Query(c.Request.Context(), suggestion.Type(c.Query("type")), c.Query("startsWith"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, texts)
}

type UpsertSuggestionRequest struct {
	Type string `json:"type" binding:"required"`
	Text string `json:"text" binding:"required"`
}

func (h *Handler) UpsertSuggestion(c *gin.Context) {
	var req UpsertSuggestionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	doc, err := h.suggestionService.Upsert(c.Request.Context(), suggestion.Type(req.Type), req.Text)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, doc)
}

type BulkSuggestionRequest struct {
	Type  string   `json:"type" binding:"required"`
	Items []string `json:"items" binding:"required"`
}

func (h *Handler) BulkUpsertSuggestions(c *gin.Context) {
	var req BulkSuggestionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	result, err := h.suggestionService.BulkUpsert(c.Request.Context(), suggestion.Type(req.Type), req.Items)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// Audit trail

const (
	defaultAuditPageSize = 50
	maxAuditPageSize     = 200
)

// ListAuditEvents searches the activity trail, newest first. Filters are
// exact-field matches; from/size page through the results.
func (h *Handler) ListAuditEvents(c *gin.Context) {
	from, err := strconv.Atoi(c.DefaultQuery("from", "0"))
	if err != nil || from < 0 {
		badRequest(c, "invalid from parameter")
		return
	}
	size, err := strconv.Atoi(c.DefaultQuery("size", strconv.Itoa(defaultAuditPageSize)))
	if err != nil || size < 1 {
		badRequest(c, "invalid size parameter")
		return
	}
	if size > maxAuditPageSize {
		size = maxAuditPageSize
	}

	filters := map[string]interface{}{}
	for _, field := range []string{"user_id", "event_type", "action", "resource", "resource_id", "request_id"} {
		if v := c.Query(field); v != "" {
			filters[field] = v
		}
	}

	events, err := h.auditService.QueryEvents(c.Request.Context(), filters, from, size)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, events)
}

// parseDate accepts a plain date or a full RFC3339 timestamp.
func parseDate(s string) (time.Time, error) {
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, s)
}
