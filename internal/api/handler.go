package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/cdtdelta/4n6graph/internal/aggregate"
	"github.com/cdtdelta/4n6graph/internal/csvexport"
	"github.com/cdtdelta/4n6graph/internal/dataset"
	"github.com/cdtdelta/4n6graph/internal/engine"
	"github.com/cdtdelta/4n6graph/internal/model"
	"github.com/cdtdelta/4n6graph/internal/timeindex"
)

// Handler exposes a Session over HTTP.
type Handler struct {
	session *engine.Session
	log     *zap.Logger
}

func NewHandler(session *engine.Session, log *zap.Logger) *Handler {
	return &Handler{session: session, log: log}
}

type rangeRequest struct {
	StartTime *int64 `json:"startTime" binding:"required"`
	EndTime   *int64 `json:"endTime" binding:"required"`
}

type granularityRequest struct {
	Granularity int64 `json:"granularity" binding:"required"`
}

type colorRequest struct {
	Color string `json:"color" binding:"required"`
}

type groupingRequest struct {
	Enabled bool `json:"enabled"`
}

// statusFor maps engine errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, engine.ErrNotFound), errors.Is(err, dataset.ErrNoEvents):
		return http.StatusNotFound
	case errors.Is(err, engine.ErrNoData), errors.Is(err, engine.ErrStaleSearch):
		return http.StatusConflict
	case errors.Is(err, timeindex.ErrInvalidGranularity),
		errors.Is(err, model.ErrUnknownNodeType),
		errors.Is(err, model.ErrUnknownLinkKind):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) fail(c *gin.Context, status int, err error) {
	if status >= http.StatusInternalServerError {
		h.log.Error("request failed", zap.String("path", c.FullPath()), zap.Error(err))
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

// GetAvailability returns the span of stored events.
func (h *Handler) GetAvailability(c *gin.Context) {
	rng, err := h.session.Availability(c.Request.Context())
	if err != nil {
		h.fail(c, statusFor(err), err)
		return
	}
	c.JSON(http.StatusOK, rng)
}

// RunSearch loads a new time range and returns the displayed graph.
func (h *Handler) RunSearch(c *gin.Context) {
	var req rangeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.fail(c, http.StatusBadRequest, err)
		return
	}
	g, err := h.session.RunSearch(c.Request.Context(), *req.StartTime, *req.EndTime)
	if err != nil {
		h.fail(c, statusFor(err), err)
		return
	}
	c.JSON(http.StatusOK, g)
}

// GetWindow returns the current window, granularity and search id.
func (h *Handler) GetWindow(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"window":      h.session.Window(),
		"granularity": h.session.Granularity(),
		"searchId":    h.session.SearchID(),
	})
}

// SetWindow brushes a new window inside the search range.
func (h *Handler) SetWindow(c *gin.Context) {
	var req rangeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.fail(c, http.StatusBadRequest, err)
		return
	}
	g, err := h.session.SetWindow(*req.StartTime, *req.EndTime)
	if err != nil {
		h.fail(c, statusFor(err), err)
		return
	}
	c.JSON(http.StatusOK, g)
}

// GetGranularity returns the bucket width and the offered options.
func (h *Handler) GetGranularity(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"granularity": h.session.Granularity(),
		"options":     engine.GranularityOptions,
	})
}

func (h *Handler) SetGranularity(c *gin.Context) {
	var req granularityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.fail(c, http.StatusBadRequest, err)
		return
	}
	g, err := h.session.SetGranularity(req.Granularity)
	if err != nil {
		h.fail(c, statusFor(err), err)
		return
	}
	c.JSON(http.StatusOK, g)
}

func (h *Handler) GetFilters(c *gin.Context) {
	c.JSON(http.StatusOK, h.session.Filters())
}

func (h *Handler) ToggleNodeType(c *gin.Context) {
	t, err := model.ParseNodeType(c.Param("type"))
	if err != nil {
		h.fail(c, http.StatusBadRequest, err)
		return
	}
	c.JSON(http.StatusOK, h.session.ToggleHiddenNodeType(t))
}

func (h *Handler) ToggleLinkKind(c *gin.Context) {
	k, err := model.ParseLinkKind(c.Param("kind"))
	if err != nil {
		h.fail(c, http.StatusBadRequest, err)
		return
	}
	c.JSON(http.StatusOK, h.session.ToggleHiddenLinkKind(k))
}

func (h *Handler) ToggleHost(c *gin.Context) {
	c.JSON(http.StatusOK, h.session.ToggleHiddenHost(c.Param("host")))
}

// ToggleColor hides or shows an intensity color of a traffic kind. The
// color travels in the body since it starts with '#'.
func (h *Handler) ToggleColor(c *gin.Context) {
	k, err := model.ParseLinkKind(c.Param("kind"))
	if err != nil {
		h.fail(c, http.StatusBadRequest, err)
		return
	}
	var req colorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.fail(c, http.StatusBadRequest, err)
		return
	}
	g, err := h.session.ToggleHiddenColorBucket(k, req.Color)
	if err != nil {
		h.fail(c, http.StatusBadRequest, err)
		return
	}
	c.JSON(http.StatusOK, g)
}

func (h *Handler) SetGrouping(c *gin.Context) {
	var req groupingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.fail(c, http.StatusBadRequest, err)
		return
	}
	h.session.SetGrouping(req.Enabled)
	c.JSON(http.StatusOK, h.session.Filters())
}

// GetGraph returns the displayed graph, or its index-based rendering with
// ?format=indexed.
func (h *Handler) GetGraph(c *gin.Context) {
	switch c.DefaultQuery("format", "objects") {
	case "indexed":
		c.JSON(http.StatusOK, h.session.IndexedGraph())
	case "objects":
		c.JSON(http.StatusOK, h.session.Graph())
	default:
		h.fail(c, http.StatusBadRequest, errors.New("format must be objects or indexed"))
	}
}

// GetHistogram returns the timeline buckets of the search, or only those
// inside the window with ?brushed=true.
func (h *Handler) GetHistogram(c *gin.Context) {
	get := h.session.Histogram
	if c.Query("brushed") == "true" {
		get = h.session.BrushedHistogram
	}
	buckets, err := get()
	if err != nil {
		h.fail(c, statusFor(err), err)
		return
	}
	if buckets == nil {
		buckets = []timeindex.Bucket{}
	}
	c.JSON(http.StatusOK, gin.H{"granularity": h.session.Granularity(), "buckets": buckets})
}

func (h *Handler) GetHosts(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"hosts": h.session.ActiveHosts()})
}

// GetDetails describes a displayed node or link. Ids may contain slashes.
func (h *Handler) GetDetails(c *gin.Context) {
	id := strings.TrimPrefix(c.Param("id"), "/")
	d, err := h.session.Details(id)
	if err != nil {
		h.fail(c, statusFor(err), err)
		return
	}
	c.JSON(http.StatusOK, d)
}

func (h *Handler) GetDiagnostics(c *gin.Context) {
	diags := h.session.Diagnostics()
	if diags == nil {
		diags = []aggregate.Diagnostic{}
	}
	c.JSON(http.StatusOK, gin.H{"diagnostics": diags})
}

// ExportCSV streams the displayed links as CSV.
func (h *Handler) ExportCSV(c *gin.Context) {
	g, sc := h.session.View()
	c.Header("Content-Type", "text/csv")
	c.Header("Content-Disposition", `attachment; filename="links.csv"`)
	c.Status(http.StatusOK)
	if err := csvexport.WriteLinks(c.Writer, g, sc); err != nil {
		h.log.Error("csv export failed", zap.Error(err))
	}
}
