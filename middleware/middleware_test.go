package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

// TestLoggerMiddleware tests the Logger middleware
func TestLoggerMiddleware(t *testing.T) {
	// Create a test handler
	innerHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	// Wrap with Logger
	handler := Logger(innerHandler)

	// Create test request
	req := httptest.NewRequest("GET", "/test-path", nil)
	rec := httptest.NewRecorder()

	// Call handler
	handler.ServeHTTP(rec, req)

	// Verify response
	if rec.Code != http.StatusOK {
		t.Errorf("Response code = %d; want %d", rec.Code, http.StatusOK)
	}
	if rec.Body.String() != "OK" {
		t.Errorf("Response body = %q; want %q", rec.Body.String(), "OK")
	}
}

// TestCORSMiddleware tests the CORS middleware
func TestCORSMiddleware(t *testing.T) {
	// Create a test handler
	innerHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	// Wrap with CORS
	handler := CORS(innerHandler)

	// Test regular request
	t.Run("Regular GET request", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/test", nil)
		rec := httptest.NewRecorder()

		handler.ServeHTTP(rec, req)

		// Check CORS headers are set
		if rec.Header().Get("Access-Control-Allow-Origin") != "*" {
			t.Error("Access-Control-Allow-Origin header not set")
		}
		if rec.Header().Get("Access-Control-Allow-Methods") == "" {
			t.Error("Access-Control-Allow-Methods header not set")
		}
		if rec.Code != http.StatusOK {
			t.Errorf("Response code = %d; want %d", rec.Code, http.StatusOK)
		}
	})

	// Test OPTIONS (preflight) request
	t.Run("OPTIONS preflight request", func(t *testing.T) {
		req := httptest.NewRequest("OPTIONS", "/test", nil)
		rec := httptest.NewRecorder()

		handler.ServeHTTP(rec, req)

		// CORS headers should be set
		if rec.Header().Get("Access-Control-Allow-Origin") != "*" {
			t.Error("Access-Control-Allow-Origin header not set for OPTIONS")
		}
		// For OPTIONS, handler should return early (no body written by inner handler)
		if rec.Body.Len() != 0 {
			t.Error("Inner handler should not run for OPTIONS")
		}
	})
}

// TestApply tests the full middleware chain
func TestApply(t *testing.T) {
	callCount := 0

	// Create a test handler
	innerHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		callCount++
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	// Apply all middlewares
	handler := Apply(innerHandler)

	// Create test request
	req := httptest.NewRequest("GET", "/test", nil)
	rec := httptest.NewRecorder()

	// Call handler
	handler.ServeHTTP(rec, req)

	// Verify handler was called
	if callCount != 1 {
		t.Errorf("Inner handler called %d times; want 1", callCount)
	}

	// Verify CORS headers
	if rec.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Error("CORS header not set by Apply")
	}

	// Verify response
	if rec.Code != http.StatusOK {
		t.Errorf("Response code = %d; want %d", rec.Code, http.StatusOK)
	}
}

// TestEnableCors tests the enableCors helper function
func TestEnableCors(t *testing.T) {
	rec := httptest.NewRecorder()
	w := http.ResponseWriter(rec)

	enableCors(&w)

	expectedHeaders := map[string]string{
		"Access-Control-Allow-Origin":      "*",
		"Access-Control-Allow-Methods":     "POST, GET, OPTIONS, PUT, DELETE",
		"Access-Control-Allow-Credentials": "true",
		"Access-Control-Expose-Headers":    "Content-Length",
	}

	for header, expected := range expectedHeaders {
		actual := rec.Header().Get(header)
		if actual != expected {
			t.Errorf("Header %q = %q; want %q", header, actual, expected)
		}
	}

	// Check Authorization is in allowed headers
	allowHeaders := rec.Header().Get("Access-Control-Allow-Headers")
	if !strings.Contains(allowHeaders, "Authorization") {
		t.Error("Access-Control-Allow-Headers should contain Authorization")
	}
}

// TestCORSPOST tests CORS with POST request
func TestCORSPOST(t *testing.T) {
	innerHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"id":"123"}`))
	})

	handler := CORS(innerHandler)

	req := httptest.NewRequest("POST", "/create", strings.NewReader(`{"data":"test"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Errorf("Response code = %d; want %d", rec.Code, http.StatusCreated)
	}

	// CORS headers should still be set
	if rec.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Error("CORS header not set for POST request")
	}
}

// TestLoggerWithDifferentMethods tests Logger with various HTTP methods
func TestLoggerWithDifferentMethods(t *testing.T) {
	methods := []string{"GET", "POST", "PUT", "DELETE", "PATCH"}

	for _, method := range methods {
		t.Run(method, func(t *testing.T) {
			innerHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
			})

			handler := Logger(innerHandler)

			req := httptest.NewRequest(method, "/test", nil)
			rec := httptest.NewRecorder()

			handler.ServeHTTP(rec, req)

			if rec.Code != http.StatusOK {
				t.Errorf("%s request failed with code %d", method, rec.Code)
			}
		})
	}
}
