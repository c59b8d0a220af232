package main

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alecthomas/kingpin/v2"

	"github.com/eugenenazirov/box-simulator/internal/application"
)

func TestBuildRootHandler(t *testing.T) {
	apiInvoked := false
	apiHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/health" {
			t.Fatalf("unexpected path passed to API handler: %s", r.URL.Path)
		}
		apiInvoked = true
		w.WriteHeader(http.StatusNoContent)
	})
	metricsHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	})

	handler := application.BuildRootHandler(apiHandler, metricsHandler)

	t.Run("redirects root to health", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		if rec.Code != http.StatusTemporaryRedirect {
			t.Fatalf("expected status 307, got %d", rec.Code)
		}
		if rec.Header().Get("Location") != "/api/health" {
			t.Fatalf("expected redirect to /api/health, got %q", rec.Header().Get("Location"))
		}
	})

	t.Run("returns not found for unknown paths", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/unknown", nil)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		if rec.Code != http.StatusNotFound {
			t.Fatalf("expected status 404, got %d", rec.Code)
		}
	})

	t.Run("serves metrics", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		if rec.Code != http.StatusAccepted {
			t.Fatalf("expected metrics handler, got %d", rec.Code)
		}
	})

	t.Run("forwards api traffic", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		if rec.Code != http.StatusNoContent {
			t.Fatalf("expected status 204, got %d", rec.Code)
		}
		if !apiInvoked {
			t.Fatalf("expected API handler to be invoked")
		}
	})
}

func TestFlagResolution(t *testing.T) {
	t.Run("unset flags leave config untouched", func(t *testing.T) {
		app := kingpin.New("test", "")
		flags := registerFlags(app)
		if _, err := app.Parse(nil); err != nil {
			t.Fatalf("parse: %v", err)
		}

		overrides := flags.resolve()
		if overrides.RateLimitRPS != nil || overrides.RateLimitBurst != nil {
			t.Fatalf("expected rate limit sentinels to be dropped")
		}
		if overrides.IgnoreArm != nil || overrides.ConvertPackageToUnit != nil {
			t.Fatalf("expected unset booleans to be dropped")
		}
	})

	t.Run("set flags become overrides", func(t *testing.T) {
		app := kingpin.New("test", "")
		flags := registerFlags(app)
		args := []string{"--port=9001", "--volume-max=40", "--no-ignore-arm", "--rate-limit-rps=0", "--storage=sqlite"}
		if _, err := app.Parse(args); err != nil {
			t.Fatalf("parse: %v", err)
		}

		overrides := flags.resolve()
		if *overrides.Port != "9001" || *overrides.VolumeMax != 40 || *overrides.StorageDriver != "sqlite" {
			t.Fatalf("unexpected overrides: %+v", overrides)
		}
		if overrides.IgnoreArm == nil || *overrides.IgnoreArm {
			t.Fatalf("expected explicit ignore-arm=false")
		}
		if overrides.RateLimitRPS == nil || *overrides.RateLimitRPS != 0 {
			t.Fatalf("expected rate limit override of 0")
		}
	})
}
