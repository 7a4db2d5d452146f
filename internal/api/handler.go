package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/nitesh/readme_service/internal/figshare"
	"github.com/nitesh/readme_service/internal/logger"
	"github.com/nitesh/readme_service/internal/service"
	"github.com/nitesh/readme_service/pkg/models"
)

type Handler struct {
	svc     *service.Service
	log     *logger.Logger
	version models.Version
}

func NewHandler(svc *service.Service, log *logger.Logger, version models.Version) *Handler {
	if log == nil {
		log = logger.Nop()
	}
	return &Handler{svc: svc, log: log.With("service", "Handler"), version: version}
}

func RegisterRoutes(r *gin.Engine, h *Handler) {
	r.GET("/healthz", h.Health)

	v1 := r.Group("/api/v1")
	{
		v1.GET("/version", h.Version)
		v1.GET("/figshare/:article_id", h.Figshare)
		v1.GET("/metadata/:article_id", h.Metadata)
		v1.GET("/form/:article_id", h.GetForm)
		v1.POST("/form/:article_id", h.PostForm)
		v1.GET("/database/read/:article_id", h.ReadRecord)
		v1.POST("/database/create", h.CreateRecord)
		v1.POST("/database/update/:doc_id", h.UpdateRecord)
	}
}

func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Version: GET /api/v1/version
func (h *Handler) Version(c *gin.Context) {
	c.JSON(http.StatusOK, h.version)
}

// Figshare: GET /api/v1/figshare/:article_id?curation_id=&stage=&allow_approved=&public=
// Returns the upstream JSON as received.
func (h *Handler) Figshare(c *gin.Context) {
	req, ok := h.parseRequest(c)
	if !ok {
		return
	}
	p, err := h.svc.Figshare(c.Request.Context(), req)
	if err != nil {
		h.respondServiceError(c, err)
		return
	}
	c.Data(http.StatusOK, "application/json; charset=utf-8", p.Raw())
}

// Metadata: GET /api/v1/metadata/:article_id (same query as Figshare)
func (h *Handler) Metadata(c *gin.Context) {
	req, ok := h.parseRequest(c)
	if !ok {
		return
	}
	md, err := h.svc.Metadata(c.Request.Context(), req)
	if err != nil {
		h.respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, md)
}

// GetForm: GET /api/v1/form/:article_id
// Renders the intake form; upstream failures render the not-found page.
func (h *Handler) GetForm(c *gin.Context) {
	req, ok := h.parseRequest(c)
	if !ok {
		return
	}
	fd, err := h.svc.FormData(c.Request.Context(), req)
	if err != nil {
		h.renderFormError(c, req, err)
		return
	}
	c.HTML(http.StatusOK, "intake.html", newPageView(c, fd.Metadata, fd.Record))
}

// PostForm: POST /api/v1/form/:article_id
// Form fields: citation, summary, files, materials, contributors, notes.
func (h *Handler) PostForm(c *gin.Context) {
	req, ok := h.parseRequest(c)
	if !ok {
		return
	}
	fields := models.IntakeRecord{
		Citation:     c.PostForm("citation"),
		Summary:      c.PostForm("summary"),
		Files:        c.PostForm("files"),
		Materials:    c.PostForm("materials"),
		Contributors: c.PostForm("contributors"),
		Notes:        c.PostForm("notes"),
	}
	md, rec, err := h.svc.Submit(c.Request.Context(), req, fields)
	if err != nil {
		h.renderFormError(c, req, err)
		return
	}
	c.HTML(http.StatusOK, "receive.html", newPageView(c, md, rec))
}

func (h *Handler) renderFormError(c *gin.Context, req figshare.Request, err error) {
	if !isUpstreamFailure(err) {
		h.respondServiceError(c, err)
		return
	}
	_, code := classify(err)
	h.log.Warn("form lookup failed", "article_id", req.ArticleID, "code", code, "error", err)
	c.HTML(http.StatusNotFound, "404.html", gin.H{"ArticleID": req.ArticleID})
}

// ReadRecord: GET /api/v1/database/read/:article_id?index=true|false
// Returns the stored record, or its doc id when index is true.
func (h *Handler) ReadRecord(c *gin.Context) {
	articleID, ok := pathID(c, "article_id")
	if !ok {
		return
	}
	index, ok := queryBool(c, "index")
	if !ok {
		return
	}
	ctx := c.Request.Context()
	if index {
		id, err := h.svc.RecordIndex(ctx, articleID)
		if err != nil {
			h.respondServiceError(c, err)
			return
		}
		c.JSON(http.StatusOK, id)
		return
	}
	rec, err := h.svc.ReadRecord(ctx, articleID)
	if err != nil {
		h.respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

// CreateRecord: POST /api/v1/database/create
// Body: IntakeRecord JSON. 409 when the article already has a record.
func (h *Handler) CreateRecord(c *gin.Context) {
	rec, ok := bindRecord(c)
	if !ok {
		return
	}
	id, err := h.svc.CreateRecord(c.Request.Context(), rec)
	if err != nil {
		h.respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"doc_id": id})
}

// UpdateRecord: POST /api/v1/database/update/:doc_id
// Body: IntakeRecord JSON. 404 when doc_id does not exist.
func (h *Handler) UpdateRecord(c *gin.Context) {
	docID, ok := pathID(c, "doc_id")
	if !ok {
		return
	}
	rec, ok := bindRecord(c)
	if !ok {
		return
	}
	if err := h.svc.UpdateRecord(c.Request.Context(), docID, rec); err != nil {
		h.respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"doc_id": docID})
}

func bindRecord(c *gin.Context) (models.IntakeRecord, bool) {
	var rec models.IntakeRecord
	if err := c.ShouldBindJSON(&rec); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_json", fmt.Errorf("invalid json: %w", err))
		return rec, false
	}
	if rec.ArticleID <= 0 {
		RespondError(c, http.StatusBadRequest, "invalid_article_id", errors.New("article_id must be a positive integer"))
		return rec, false
	}
	return rec, true
}

// parseRequest reads the article id and the resolver query parameters.
func (h *Handler) parseRequest(c *gin.Context) (figshare.Request, bool) {
	var req figshare.Request
	var ok bool
	if req.ArticleID, ok = pathID(c, "article_id"); !ok {
		return req, false
	}
	if raw := c.Query("curation_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			RespondError(c, http.StatusBadRequest, "invalid_curation_id", fmt.Errorf("invalid curation_id %q", raw))
			return req, false
		}
		req.CurationID = &id
	}
	if req.Stage, ok = queryBool(c, "stage"); !ok {
		return req, false
	}
	if req.AllowApproved, ok = queryBool(c, "allow_approved"); !ok {
		return req, false
	}
	if req.Public, ok = queryBool(c, "public"); !ok {
		return req, false
	}
	return req, true
}

func pathID(c *gin.Context, name string) (int64, bool) {
	raw := c.Param(name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		RespondError(c, http.StatusBadRequest, "invalid_"+name, fmt.Errorf("%s must be a positive integer, got %q", name, raw))
		return 0, false
	}
	return id, true
}

// queryBool parses an optional boolean query parameter; absent means false.
func queryBool(c *gin.Context, name string) (bool, bool) {
	raw := c.Query(name)
	if raw == "" {
		return false, true
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_"+name, fmt.Errorf("%s must be a boolean, got %q", name, raw))
		return false, false
	}
	return v, true
}

type fieldView struct {
	Name  string
	Label string
	Value string
}

type pageView struct {
	Metadata   models.ReadmeMetadata
	CurationID string
	License    string
	Fields     []fieldView
	Action     string
}

func newPageView(c *gin.Context, md models.ReadmeMetadata, rec models.IntakeRecord) pageView {
	values := rec.Values()
	fields := make([]fieldView, 0, len(models.IntakeFields))
	for _, f := range models.IntakeFields {
		fields = append(fields, fieldView{Name: f.Name, Label: f.Label, Value: values[f.Name]})
	}
	v := pageView{
		Metadata: md,
		License:  licenseName(md.License),
		Fields:   fields,
		Action:   c.Request.URL.RequestURI(),
	}
	if md.CurationID != nil {
		v.CurationID = strconv.FormatInt(*md.CurationID, 10)
	}
	return v
}

// licenseName pulls a display name out of figshare's license value, which is
// usually an object with a "name" key.
func licenseName(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var obj struct {
		Name string `json:"name"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil && obj.Name != "" {
		return obj.Name
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	if string(raw) == "null" {
		return ""
	}
	return string(raw)
}
