package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestRespondJSON(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		data       interface{}
		wantStatus int
		wantBody   string
	}{
		{
			name:       "incident payload",
			status:     http.StatusOK,
			data:       map[string]string{"incident_number": "INC-20260901-A1B2"},
			wantStatus: http.StatusOK,
			wantBody:   `{"incident_number":"INC-20260901-A1B2"}`,
		},
		{
			name:       "created review",
			status:     http.StatusCreated,
			data:       map[string]string{"review_status": "approved"},
			wantStatus: http.StatusCreated,
			wantBody:   `{"review_status":"approved"}`,
		},
		{
			name:       "nil data writes headers only",
			status:     http.StatusOK,
			data:       nil,
			wantStatus: http.StatusOK,
			wantBody:   "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			RespondJSON(w, tt.status, tt.data)

			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			if tt.data != nil {
				ct := w.Header().Get("Content-Type")
				if ct != "application/json" {
					t.Errorf("Content-Type = %q, want application/json", ct)
				}
			}
			if tt.wantBody != "" {
				// json.Encoder appends a newline
				got := w.Body.String()
				if got != tt.wantBody+"\n" {
					t.Errorf("body = %q, want %q", got, tt.wantBody+"\n")
				}
			}
		})
	}
}

func TestRespondError(t *testing.T) {
	w := httptest.NewRecorder()
	RespondError(w, http.StatusNotFound, "Incident not found")

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", w.Code, http.StatusNotFound)
	}

	var resp ErrorResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Error != "Incident not found" {
		t.Errorf("error = %q, want %q", resp.Error, "Incident not found")
	}
}

func TestErrorResponse_SingleFieldEnvelope(t *testing.T) {
	data, err := json.Marshal(ErrorResponse{Error: "Review not found"})
	if err != nil {
		t.Fatalf("failed to marshal: %v", err)
	}
	if string(data) != `{"error":"Review not found"}` {
		t.Errorf("envelope = %s, want a bare error field", data)
	}
}
