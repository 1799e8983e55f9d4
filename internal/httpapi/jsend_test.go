package httpapi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

func newTestContext(t *testing.T) (echo.Context, *httptest.ResponseRecorder) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) jsendResponse {
	t.Helper()
	var resp jsendResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	return resp
}

func TestSuccessEnvelope(t *testing.T) {
	t.Parallel()

	c, rec := newTestContext(t)
	if err := success(c, map[string]any{"ok": true}); err != nil {
		t.Fatalf("success: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	resp := decodeEnvelope(t, rec)
	if resp.Status != "success" {
		t.Fatalf("envelope status = %q, want success", resp.Status)
	}
}

func TestFailEnvelope(t *testing.T) {
	t.Parallel()

	c, rec := newTestContext(t)
	if err := fail(c, http.StatusConflict, "A scrape run is already in progress", nil); err != nil {
		t.Fatalf("fail: %v", err)
	}
	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", rec.Code)
	}
	resp := decodeEnvelope(t, rec)
	if resp.Status != "fail" || resp.Message == "" {
		t.Fatalf("envelope = %+v", resp)
	}
}

func TestFailValidationEnvelope(t *testing.T) {
	t.Parallel()

	c, rec := newTestContext(t)
	if err := failValidation(c, map[string]string{"status": "unknown status"}); err != nil {
		t.Fatalf("failValidation: %v", err)
	}
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	resp := decodeEnvelope(t, rec)
	if resp.Status != "fail" {
		t.Fatalf("envelope status = %q, want fail", resp.Status)
	}
}

func TestInternalErrorEnvelope(t *testing.T) {
	t.Parallel()

	c, rec := newTestContext(t)
	if err := internalError(c, "Internal server error"); err != nil {
		t.Fatalf("internalError: %v", err)
	}
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	resp := decodeEnvelope(t, rec)
	if resp.Status != "error" || resp.Code != http.StatusInternalServerError {
		t.Fatalf("envelope = %+v", resp)
	}
}
