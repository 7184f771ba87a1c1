package http

import (
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"

	apierrors "sellerpulse/internal/errors"
	"sellerpulse/internal/forecast"
	"sellerpulse/internal/services"
)

// AnalyticsHandler handles dashboard and forecast HTTP requests
type AnalyticsHandler struct {
	analytics AnalyticsServiceInterface
	exports   ExportServiceInterface
	validate  *validator.Validate
	logger    *slog.Logger
}

// NewAnalyticsHandler creates a new analytics handler
func NewAnalyticsHandler(analytics AnalyticsServiceInterface, exports ExportServiceInterface, logger *slog.Logger) *AnalyticsHandler {
	return &AnalyticsHandler{
		analytics: analytics,
		exports:   exports,
		validate:  validator.New(),
		logger:    logger.With(slog.String("component", "analytics_handler")),
	}
}

// Routes returns the analytics routes
func (h *AnalyticsHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(render.SetContentType(render.ContentTypeJSON))

	r.Get("/dashboard/{product}", h.StoredDashboard)
	r.Get("/dashboard/{product}/live", h.LiveDashboard)
	r.Post("/dashboard/preview", h.PreviewDashboard)
	r.Get("/sheet", h.FetchSheet)
	r.Post("/forecast", h.Forecast)
	r.Get("/export/template", h.DownloadTemplate)
	r.Get("/export/{product}", h.DownloadHistory)

	return r
}

// productParam returns the product route parameter with percent
// escapes decoded, since catalog names contain spaces.
func productParam(r *http.Request) string {
	raw := chi.URLParam(r, "product")
	if decoded, err := url.PathUnescape(raw); err == nil {
		return decoded
	}
	return raw
}

// StoredDashboard handles GET /api/analytics/dashboard/{product}.
// Query params: days (default 7), end_date (2006-01-02, optional anchor).
func (h *AnalyticsHandler) StoredDashboard(w http.ResponseWriter, r *http.Request) {
	product := productParam(r)

	days := 7
	if raw := r.URL.Query().Get("days"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			render.Render(w, r, apierrors.NewErrorResponse(
				apierrors.ErrValidation("days", "days must be a positive integer")))
			return
		}
		days = parsed
	}

	var endDate *time.Time
	if raw := r.URL.Query().Get("end_date"); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			render.Render(w, r, apierrors.NewErrorResponse(
				apierrors.ErrValidation("end_date", "end_date must be formatted 2006-01-02")))
			return
		}
		endDate = &parsed
	}

	dashboard, err := h.analytics.StoredDashboard(r.Context(), product, days, endDate)
	if err != nil {
		h.renderServiceError(w, r, err)
		return
	}

	render.JSON(w, r, dashboard)
}

// LiveDashboard handles GET /api/analytics/dashboard/{product}/live,
// analyzing the product's published sheet without touching storage.
func (h *AnalyticsHandler) LiveDashboard(w http.ResponseWriter, r *http.Request) {
	product := productParam(r)

	dashboard, err := h.analytics.DashboardFromSheet(r.Context(), product)
	if err != nil {
		h.renderServiceError(w, r, err)
		return
	}

	render.JSON(w, r, dashboard)
}

// PreviewDashboardRequest is the body for POST /dashboard/preview
type PreviewDashboardRequest struct {
	Source     string `json:"source" validate:"required"`
	CSV        string `json:"csv" validate:"required"`
	FilterPack string `json:"filter_pack"`
}

// Bind implements render.Binder
func (req *PreviewDashboardRequest) Bind(r *http.Request) error {
	return nil
}

// PreviewDashboard handles POST /api/analytics/dashboard/preview,
// analyzing pasted CSV text without persisting it.
func (h *AnalyticsHandler) PreviewDashboard(w http.ResponseWriter, r *http.Request) {
	var req PreviewDashboardRequest
	if err := render.Bind(r, &req); err != nil {
		render.Render(w, r, apierrors.NewErrorResponse(apierrors.InvalidRequestWithError(err)))
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		render.Render(w, r, apierrors.NewErrorResponse(apierrors.InvalidRequestWithError(err)))
		return
	}

	dashboard, err := h.analytics.DashboardFromCSV(r.Context(), req.Source, req.CSV, req.FilterPack)
	if err != nil {
		h.renderServiceError(w, r, err)
		return
	}

	render.JSON(w, r, dashboard)
}

// ForecastRequest is the body for POST /forecast
type ForecastRequest struct {
	Product string `json:"product" validate:"required"`
	Metric  string `json:"metric" validate:"required"`
	Horizon int    `json:"horizon" validate:"required,min=1,max=90"`
}

// Bind implements render.Binder
func (req *ForecastRequest) Bind(r *http.Request) error {
	return nil
}

// Forecast handles POST /api/analytics/forecast
func (h *AnalyticsHandler) Forecast(w http.ResponseWriter, r *http.Request) {
	var req ForecastRequest
	if err := render.Bind(r, &req); err != nil {
		render.Render(w, r, apierrors.NewErrorResponse(apierrors.InvalidRequestWithError(err)))
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		render.Render(w, r, apierrors.NewErrorResponse(apierrors.InvalidRequestWithError(err)))
		return
	}

	resp, err := h.analytics.Forecast(r.Context(), req.Product, req.Metric, req.Horizon)
	if err != nil {
		if errors.Is(err, forecast.ErrInsufficientData) {
			render.Render(w, r, apierrors.NewErrorResponse(apierrors.ErrInsufficientData.WithDetails(err.Error())))
			return
		}
		h.renderServiceError(w, r, err)
		return
	}

	render.JSON(w, r, resp)
}

// FetchSheet handles GET /api/analytics/sheet?url=..., proxying the raw
// CSV text of a published spreadsheet.
func (h *AnalyticsHandler) FetchSheet(w http.ResponseWriter, r *http.Request) {
	sheetURL := r.URL.Query().Get("url")
	if sheetURL == "" {
		render.Render(w, r, apierrors.NewErrorResponse(
			apierrors.ErrValidation("url", "url query parameter is required")))
		return
	}
	if parsed, err := url.Parse(sheetURL); err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		render.Render(w, r, apierrors.NewErrorResponse(
			apierrors.ErrValidation("url", "url must be an absolute http or https URL")))
		return
	}

	csvText, err := h.analytics.FetchSheet(r.Context(), sheetURL)
	if err != nil {
		render.Render(w, r, apierrors.NewErrorResponse(apierrors.ErrUpstreamFetch.WithDetails(err.Error())))
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Write([]byte(csvText))
}

// DownloadTemplate handles GET /api/analytics/export/template
func (h *AnalyticsHandler) DownloadTemplate(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="metrics_template.csv"`)

	if err := h.exports.WriteTemplate(w); err != nil {
		h.logger.ErrorContext(r.Context(), "template write failed",
			slog.String("error", err.Error()))
	}
}

// DownloadHistory handles GET /api/analytics/export/{product}
func (h *AnalyticsHandler) DownloadHistory(w http.ResponseWriter, r *http.Request) {
	product := productParam(r)

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="`+product+`_history.csv"`)

	if err := h.exports.WriteHistory(r.Context(), w, product); err != nil {
		// Headers may already be out; log rather than double-write.
		h.logger.ErrorContext(r.Context(), "history export failed",
			slog.String("product", product),
			slog.String("error", err.Error()))
	}
}

// renderServiceError maps service errors onto API error responses
func (h *AnalyticsHandler) renderServiceError(w http.ResponseWriter, r *http.Request, err error) {
	h.logger.ErrorContext(r.Context(), "analytics request failed",
		slog.String("error", err.Error()),
		slog.String("path", r.URL.Path))

	msg := err.Error()
	switch {
	case errors.Is(err, services.ErrUnknownProduct):
		render.Render(w, r, apierrors.NewErrorResponse(apierrors.ErrUnknownProduct.WithDetails(msg)))
	case errors.Is(err, services.ErrUnknownMetric):
		render.Render(w, r, apierrors.NewErrorResponse(apierrors.ErrUnknownMetric.WithDetails(msg)))
	case errors.Is(err, services.ErrNoData):
		render.Render(w, r, apierrors.NewErrorResponse(apierrors.ErrNoMetricsFound.WithDetails(msg)))
	case errors.Is(err, services.ErrFetchFailed):
		render.Render(w, r, apierrors.NewErrorResponse(apierrors.ErrUpstreamFetch.WithDetails(msg)))
	default:
		render.Render(w, r, apierrors.NewErrorResponse(apierrors.ErrInternalServer.WithDetails(msg)))
	}
}
