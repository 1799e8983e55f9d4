package httpapi

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"nightfeed.app/nightfeed/internal/scrape"
)

func newRunnerServer(t *testing.T) (*Server, *scrape.RunGuard) {
	t.Helper()
	guard := scrape.NewRunGuard()
	runner := scrape.NewRunner(nil, guard, nil, nil, nil, nil, 0, "scraper", zerolog.Nop())
	srv := NewServer(nil, nil, nil, runner, zerolog.Nop(), Options{})
	return srv, guard
}

func postContext(t *testing.T, path string) (echo.Context, *httptest.ResponseRecorder) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, path, nil)
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func TestForceReleaseFreesHeldGuard(t *testing.T) {
	t.Parallel()

	srv, guard := newRunnerServer(t)
	if !guard.TryAcquire() {
		t.Fatal("could not seed a held guard")
	}

	c, rec := postContext(t, "/api/v1/runs/force-release")
	if err := srv.handleForceRelease(c); err != nil {
		t.Fatalf("handleForceRelease: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if guard.Running() {
		t.Fatal("guard still held after force release")
	}
	resp := decodeEnvelope(t, rec)
	if resp.Status != "success" {
		t.Fatalf("envelope status = %q, want success", resp.Status)
	}

	// The slot must be reusable immediately.
	if !guard.TryAcquire() {
		t.Fatal("guard not reacquirable after force release")
	}
}

func TestForceReleaseOnIdleGuard(t *testing.T) {
	t.Parallel()

	srv, guard := newRunnerServer(t)
	c, rec := postContext(t, "/api/v1/runs/force-release")
	if err := srv.handleForceRelease(c); err != nil {
		t.Fatalf("handleForceRelease: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if guard.Running() {
		t.Fatal("idle guard reported running after force release")
	}
}

func TestForceReleaseWithoutRunner(t *testing.T) {
	t.Parallel()

	srv := NewServer(nil, nil, nil, nil, zerolog.Nop(), Options{})
	c, rec := postContext(t, "/api/v1/runs/force-release")
	if err := srv.handleForceRelease(c); err != nil {
		t.Fatalf("handleForceRelease: %v", err)
	}
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
}
