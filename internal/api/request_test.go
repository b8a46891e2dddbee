package api

import (
	"net/http/httptest"
	"strings"
	"testing"
)

func TestDecodeJSONValidBody(t *testing.T) {
	r := httptest.NewRequest("POST", "/api/errors/report",
		strings.NewReader(`{"code": "WO-API-SAVE-001", "message": "save failed"}`))

	var req ReportRequest
	if err := DecodeJSON(r, &req); err != nil {
		t.Fatalf("DecodeJSON failed: %v", err)
	}
	if req.Code != "WO-API-SAVE-001" || req.Message != "save failed" {
		t.Errorf("decoded unexpected values: %+v", req)
	}
}

func TestDecodeJSONErrors(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantMsg string
	}{
		{"empty body", "", "request body is empty"},
		{"malformed", `{"code": `, "malformed JSON"},
		{"wrong type", `{"code": 42}`, `invalid value for field "code"`},
		{"unknown field", `{"code": "X", "bogus": true}`, "unknown field"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest("POST", "/api/errors/report", strings.NewReader(tt.body))
			var req ReportRequest
			err := DecodeJSON(r, &req)
			if err == nil {
				t.Fatal("expected an error")
			}
			if !strings.Contains(err.Error(), tt.wantMsg) {
				t.Errorf("error = %q, want substring %q", err.Error(), tt.wantMsg)
			}
		})
	}
}

func TestDecodeJSONOversizedBody(t *testing.T) {
	huge := `{"code": "X", "message": "` + strings.Repeat("a", MaxBodySize+1024) + `"}`
	r := httptest.NewRequest("POST", "/api/errors/report", strings.NewReader(huge))

	var req ReportRequest
	err := DecodeJSON(r, &req)
	if err == nil {
		t.Fatal("expected an error for oversized body")
	}
	if !strings.Contains(err.Error(), "maximum size") {
		t.Errorf("error = %q, want size limit message", err.Error())
	}
}
