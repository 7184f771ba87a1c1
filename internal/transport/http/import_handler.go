package http

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"

	apierrors "sellerpulse/internal/errors"
	"sellerpulse/internal/services"
)

// maxUploadBytes caps workbook uploads at 20 MiB.
const maxUploadBytes = 20 << 20

// ImportHandler handles data ingestion HTTP requests
type ImportHandler struct {
	service  ImportServiceInterface
	validate *validator.Validate
	logger   *slog.Logger
}

// NewImportHandler creates a new import handler
func NewImportHandler(service ImportServiceInterface, logger *slog.Logger) *ImportHandler {
	return &ImportHandler{
		service:  service,
		validate: validator.New(),
		logger:   logger.With(slog.String("component", "import_handler")),
	}
}

// Routes returns the import routes
func (h *ImportHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(render.SetContentType(render.ContentTypeJSON))

	r.Post("/csv", h.ImportCSV)
	r.Post("/metrics", h.AddMetrics)
	r.Post("/auto", h.AutoImport)
	r.Post("/workbook", h.ImportWorkbook)

	return r
}

// ImportCSVRequest is the body for POST /csv
type ImportCSVRequest struct {
	Product string `json:"product" validate:"required"`
	CSV     string `json:"csv" validate:"required"`
	// Format selects the parser: "tabular" (metrics down the side, dates
	// across) or "daily" (one row per date). Defaults to tabular.
	Format string `json:"format" validate:"omitempty,oneof=tabular daily"`
}

// Bind implements render.Binder
func (req *ImportCSVRequest) Bind(r *http.Request) error {
	return nil
}

// ImportCSV handles POST /api/import/csv
func (h *ImportHandler) ImportCSV(w http.ResponseWriter, r *http.Request) {
	var req ImportCSVRequest
	if err := render.Bind(r, &req); err != nil {
		render.Render(w, r, apierrors.NewErrorResponse(apierrors.InvalidRequestWithError(err)))
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		render.Render(w, r, apierrors.NewErrorResponse(apierrors.InvalidRequestWithError(err)))
		return
	}

	var report interface{}
	var err error
	if req.Format == "daily" {
		report, err = h.service.ImportDailyCSV(r.Context(), req.Product, req.CSV)
	} else {
		report, err = h.service.ImportTabular(r.Context(), req.Product, req.CSV)
	}
	if err != nil {
		h.renderServiceError(w, r, err)
		return
	}

	render.JSON(w, r, report)
}

// AddMetricsRequest is the body for POST /metrics
type AddMetricsRequest struct {
	Product string             `json:"product" validate:"required"`
	Date    string             `json:"date" validate:"required,datetime=2006-01-02"`
	Metrics map[string]float64 `json:"metrics" validate:"required,min=1"`
}

// Bind implements render.Binder
func (req *AddMetricsRequest) Bind(r *http.Request) error {
	return nil
}

// AddMetrics handles POST /api/import/metrics
func (h *ImportHandler) AddMetrics(w http.ResponseWriter, r *http.Request) {
	var req AddMetricsRequest
	if err := render.Bind(r, &req); err != nil {
		render.Render(w, r, apierrors.NewErrorResponse(apierrors.InvalidRequestWithError(err)))
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		render.Render(w, r, apierrors.NewErrorResponse(apierrors.InvalidRequestWithError(err)))
		return
	}

	if err := h.service.AddMetrics(r.Context(), req.Product, req.Date, req.Metrics); err != nil {
		h.renderServiceError(w, r, err)
		return
	}

	render.JSON(w, r, map[string]bool{"success": true})
}

// AutoImport handles POST /api/import/auto
func (h *ImportHandler) AutoImport(w http.ResponseWriter, r *http.Request) {
	reports, err := h.service.AutoImportAll(r.Context())
	if err != nil {
		h.renderServiceError(w, r, err)
		return
	}

	render.JSON(w, r, map[string]interface{}{"reports": reports})
}

// ImportWorkbook handles POST /api/import/workbook. The multipart form
// carries the product list under "product_list" and zero or more traffic
// sheets whose field names are "traffic_<productID>".
func (h *ImportHandler) ImportWorkbook(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		render.Render(w, r, apierrors.NewErrorResponse(apierrors.InvalidRequestWithError(err)))
		return
	}

	listFile, _, err := r.FormFile("product_list")
	if err != nil {
		render.Render(w, r, apierrors.NewErrorResponse(
			apierrors.ErrValidation("product_list", "Product list workbook is required")))
		return
	}
	defer listFile.Close()

	trafficReaders := make(map[string]io.Reader)
	for field, headers := range r.MultipartForm.File {
		productID, ok := strings.CutPrefix(field, "traffic_")
		if !ok || len(headers) == 0 {
			continue
		}
		f, err := headers[0].Open()
		if err != nil {
			render.Render(w, r, apierrors.NewErrorResponse(apierrors.InvalidRequestWithError(err)))
			return
		}
		defer f.Close()
		trafficReaders[productID] = f
	}

	reports, err := h.service.ImportWorkbook(r.Context(), listFile, trafficReaders)
	if err != nil {
		h.renderServiceError(w, r, err)
		return
	}

	render.JSON(w, r, map[string]interface{}{"reports": reports})
}

// renderServiceError maps service errors onto API error responses
func (h *ImportHandler) renderServiceError(w http.ResponseWriter, r *http.Request, err error) {
	h.logger.ErrorContext(r.Context(), "import request failed",
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
	default:
		render.Render(w, r, apierrors.NewErrorResponse(apierrors.ErrStorage.WithDetails(msg)))
	}
}
