package utils

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestRespondJSON(t *testing.T) {
	rr := httptest.NewRecorder()
	RespondJSON(rr, http.StatusCreated, map[string]int{"id": 1})

	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rr.Code)
	}
	if ct := rr.Header().Get("Content-Type"); ct != "application/json" {
		t.Fatalf("unexpected content type %q", ct)
	}

	var body map[string]int
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["id"] != 1 {
		t.Fatalf("unexpected body: %v", body)
	}
}

func TestRespondErrorUsesMessageKey(t *testing.T) {
	rr := httptest.NewRecorder()
	RespondError(rr, http.StatusNotFound, "User not found")

	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}
	if got := rr.Body.String(); got != "{\"message\":\"User not found\"}\n" {
		t.Fatalf("unexpected body %q", got)
	}
}
