package scrape

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
)

func TestHTTPGeocoder(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("city"); got != "Berlin" {
			t.Errorf("city query = %q, want Berlin", got)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"latitude":52.52,"longitude":13.405}`))
	}))
	defer srv.Close()

	geocoder := NewHTTPGeocoder(srv.URL, zerolog.Nop())
	coords := geocoder.Geocode(context.Background(), "Köpenicker Str. 70", "Berlin", "Germany")
	if coords == nil {
		t.Fatalf("Geocode returned nil for a resolvable address")
	}
	if coords.Latitude != 52.52 || coords.Longitude != 13.405 {
		t.Fatalf("coords = %+v", coords)
	}
}

func TestHTTPGeocoderNullResult(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`null`))
	}))
	defer srv.Close()

	geocoder := NewHTTPGeocoder(srv.URL, zerolog.Nop())
	if coords := geocoder.Geocode(context.Background(), "nowhere", "", ""); coords != nil {
		t.Fatalf("null response produced coords: %+v", coords)
	}
}

func TestHTTPGeocoderFailureIsSilent(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	}))
	defer srv.Close()

	geocoder := NewHTTPGeocoder(srv.URL, zerolog.Nop())
	if coords := geocoder.Geocode(context.Background(), "x", "y", "z"); coords != nil {
		t.Fatalf("upstream failure produced coords: %+v", coords)
	}
}

func TestHTTPGeocoderUnconfigured(t *testing.T) {
	t.Parallel()

	geocoder := NewHTTPGeocoder("", zerolog.Nop())
	if coords := geocoder.Geocode(context.Background(), "x", "y", "z"); coords != nil {
		t.Fatalf("unconfigured geocoder produced coords: %+v", coords)
	}
}
