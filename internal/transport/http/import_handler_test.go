package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sellerpulse/internal/services"
)

// stubImports records call arguments and returns canned reports.
type stubImports struct {
	lastProduct string
	lastFormat  string
	lastMetrics map[string]float64
	reports     []services.ImportReport
	err         error
}

func (s *stubImports) ImportTabular(ctx context.Context, productName, csvText string) (services.ImportReport, error) {
	s.lastProduct, s.lastFormat = productName, "tabular"
	if s.err != nil {
		return services.ImportReport{}, s.err
	}
	return services.ImportReport{Product: productName, DaysWritten: 3}, nil
}

func (s *stubImports) ImportDailyCSV(ctx context.Context, productName, csvText string) (services.ImportReport, error) {
	s.lastProduct, s.lastFormat = productName, "daily"
	if s.err != nil {
		return services.ImportReport{}, s.err
	}
	return services.ImportReport{Product: productName, DaysWritten: 2}, nil
}

func (s *stubImports) AddMetrics(ctx context.Context, productName, date string, metrics map[string]float64) error {
	s.lastProduct, s.lastMetrics = productName, metrics
	return s.err
}

func (s *stubImports) AutoImportAll(ctx context.Context) ([]services.ImportReport, error) {
	return s.reports, s.err
}

func (s *stubImports) ImportWorkbook(ctx context.Context, productList io.Reader, traffic map[string]io.Reader) ([]services.ImportReport, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.reports, nil
}

func newImportServer(stub *stubImports) *httptest.Server {
	h := NewImportHandler(stub, testLogger())
	return httptest.NewServer(h.Routes())
}

func TestImportHandler_ImportCSV(t *testing.T) {
	stub := &stubImports{}
	srv := newImportServer(stub)
	defer srv.Close()

	t.Run("defaults to tabular", func(t *testing.T) {
		resp, err := http.Post(srv.URL+"/csv", "application/json",
			strings.NewReader(`{"product":"NAD+ Cream","csv":"a,b"}`))
		require.NoError(t, err)
		defer resp.Body.Close()

		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "tabular", stub.lastFormat)
		assert.Equal(t, "NAD+ Cream", stub.lastProduct)
	})

	t.Run("daily format", func(t *testing.T) {
		resp, err := http.Post(srv.URL+"/csv", "application/json",
			strings.NewReader(`{"product":"NAD+ Cream","csv":"a,b","format":"daily"}`))
		require.NoError(t, err)
		resp.Body.Close()

		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "daily", stub.lastFormat)
	})

	t.Run("unknown format rejected", func(t *testing.T) {
		resp, err := http.Post(srv.URL+"/csv", "application/json",
			strings.NewReader(`{"product":"X","csv":"a","format":"xml"}`))
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("missing csv rejected", func(t *testing.T) {
		resp, err := http.Post(srv.URL+"/csv", "application/json",
			strings.NewReader(`{"product":"X"}`))
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})
}

func TestImportHandler_ImportCSV_ServiceErrors(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{"unknown product", fmt.Errorf("%w %q", services.ErrUnknownProduct, "X"), http.StatusNotFound},
		{"nothing recognizable", fmt.Errorf("no recognizable metrics in CSV for %q: %w", "X", services.ErrNoData), http.StatusUnprocessableEntity},
		{"storage failure", fmt.Errorf("disk on fire"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newImportServer(&stubImports{err: tt.err})
			defer srv.Close()

			resp, err := http.Post(srv.URL+"/csv", "application/json",
				strings.NewReader(`{"product":"X","csv":"a,b"}`))
			require.NoError(t, err)
			resp.Body.Close()
			assert.Equal(t, tt.wantStatus, resp.StatusCode)
		})
	}
}

func TestImportHandler_AddMetrics(t *testing.T) {
	stub := &stubImports{}
	srv := newImportServer(stub)
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/metrics", "application/json",
		strings.NewReader(`{"product":"NAD+ Cream","date":"2026-01-15","metrics":{"GMV":750}}`))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, map[string]float64{"GMV": 750}, stub.lastMetrics)
}

func TestImportHandler_AddMetrics_Validation(t *testing.T) {
	srv := newImportServer(&stubImports{})
	defer srv.Close()

	tests := []struct {
		name string
		body string
	}{
		{"bad date format", `{"product":"X","date":"15/01/2026","metrics":{"GMV":1}}`},
		{"empty metrics", `{"product":"X","date":"2026-01-15","metrics":{}}`},
		{"missing product", `{"date":"2026-01-15","metrics":{"GMV":1}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := http.Post(srv.URL+"/metrics", "application/json", strings.NewReader(tt.body))
			require.NoError(t, err)
			resp.Body.Close()
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		})
	}
}

func TestImportHandler_AutoImport(t *testing.T) {
	stub := &stubImports{reports: []services.ImportReport{
		{Product: "NAD+ Cream", DaysWritten: 5},
		{Product: "Toner Pads 1 Pack", Skipped: true},
	}}
	srv := newImportServer(stub)
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/auto", "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Reports []services.ImportReport `json:"reports"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Len(t, body.Reports, 2)
	assert.Equal(t, 5, body.Reports[0].DaysWritten)
	assert.True(t, body.Reports[1].Skipped)
}

func TestImportHandler_ImportWorkbook(t *testing.T) {
	stub := &stubImports{reports: []services.ImportReport{{Product: "NAD+ Cream", DaysWritten: 1}}}
	srv := newImportServer(stub)
	defer srv.Close()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("product_list", "products.xlsx")
	require.NoError(t, err)
	fw.Write([]byte("fake xlsx bytes"))
	fw, err = mw.CreateFormFile("traffic_111", "traffic.xlsx")
	require.NoError(t, err)
	fw.Write([]byte("fake traffic bytes"))
	require.NoError(t, mw.Close())

	resp, err := http.Post(srv.URL+"/workbook", mw.FormDataContentType(), &buf)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestImportHandler_ImportWorkbook_MissingProductList(t *testing.T) {
	srv := newImportServer(&stubImports{})
	defer srv.Close()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.Close())

	resp, err := http.Post(srv.URL+"/workbook", mw.FormDataContentType(), &buf)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
