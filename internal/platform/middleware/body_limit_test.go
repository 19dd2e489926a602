package middleware

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
)

func TestParseLimit(t *testing.T) {
	tests := []struct {
		input string
		want  int64
	}{
		{"1M", 1 << 20},
		{"10M", 10 << 20},
		{"512K", 512 << 10},
		{"1G", 1 << 30},
		{"1024", 1024},
		{"", defaultBodyLimit},
		{"invalid", defaultBodyLimit},
		{"-5M", defaultBodyLimit},
	}
	for _, tt := range tests {
		if got := parseLimit(tt.input); got != tt.want {
			t.Errorf("parseLimit(%q) = %d, want %d", tt.input, got, tt.want)
		}
	}
}

func TestBodyLimit_SmallBodyPassesThrough(t *testing.T) {
	e := echo.New()
	e.Use(BodyLimit("1M"))
	e.POST("/api/v1/prior-auth", func(c echo.Context) error {
		b, err := io.ReadAll(c.Request().Body)
		if err != nil {
			t.Fatalf("failed to read body: %v", err)
		}
		if len(b) == 0 {
			t.Error("expected body to be readable downstream")
		}
		return c.String(http.StatusCreated, "created")
	})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/prior-auth",
		strings.NewReader(`{"service_code":"70551"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Errorf("expected 201, got %d", rec.Code)
	}
}

func TestBodyLimit_ContentLengthRejectedEarly(t *testing.T) {
	e := echo.New()
	e.Use(BodyLimit("1K"))
	e.POST("/api/v1/prior-auth", func(c echo.Context) error {
		t.Error("handler must not run for oversized Content-Length")
		return nil
	})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/prior-auth",
		bytes.NewReader(bytes.Repeat([]byte("x"), 2048)))
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("expected 413, got %d", rec.Code)
	}
}

func TestBodyLimit_NoBodySkipped(t *testing.T) {
	e := echo.New()
	e.Use(BodyLimit("1M"))
	called := false
	e.GET("/api/v1/patients", func(c echo.Context) error {
		called = true
		return c.String(http.StatusOK, "ok")
	})

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/patients", nil))

	if !called {
		t.Error("expected handler to run for bodyless GET")
	}
}

func TestBodyLimit_UndeclaredLengthCappedDuringRead(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/prior-auth",
		bytes.NewReader(bytes.Repeat([]byte("a"), 1024)))
	req.ContentLength = -1
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	h := BodyLimit("512")(func(c echo.Context) error {
		_, err := io.ReadAll(c.Request().Body)
		return err
	})

	err := h(c)
	if err == nil {
		t.Fatal("expected error reading past the cap")
	}
	httpErr, ok := err.(*echo.HTTPError)
	if !ok {
		t.Fatalf("expected echo.HTTPError, got %T", err)
	}
	if httpErr.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("expected 413, got %d", httpErr.Code)
	}
}
