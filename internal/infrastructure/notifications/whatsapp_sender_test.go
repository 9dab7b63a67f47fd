package notifications

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestNewWhatsAppCloudSender(t *testing.T) {
	tests := []struct {
		name          string
		accessToken   string
		phoneNumberID string
		wantErr       bool
	}{
		{
			name:          "Valid credentials",
			accessToken:   "test_token",
			phoneNumberID: "123456789",
			wantErr:       false,
		},
		{
			name:          "Missing access token",
			accessToken:   "",
			phoneNumberID: "123456789",
			wantErr:       true,
		},
		{
			name:          "Missing phone number ID",
			accessToken:   "test_token",
			phoneNumberID: "",
			wantErr:       true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sender, err := NewWhatsAppCloudSender(tt.accessToken, tt.phoneNumberID)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if sender == nil {
				t.Fatal("expected sender, got nil")
			}
		})
	}
}

func TestSendText(t *testing.T) {
	var received map[string]interface{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer test_token" {
			t.Errorf("unexpected authorization header: %s", r.Header.Get("Authorization"))
		}
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			t.Fatalf("failed to decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"messaging_product": "whatsapp",
			"messages":          []map[string]string{{"id": "wamid.test"}},
		})
	}))
	defer server.Close()

	sender, err := NewWhatsAppCloudSender("test_token", "123456789")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	sender.baseURL = server.URL

	messageID, err := sender.SendText("2348012345678", "Your meeting is booked")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if messageID != "wamid.test" {
		t.Errorf("unexpected message id: %s", messageID)
	}
	if received["to"] != "2348012345678" {
		t.Errorf("unexpected recipient: %v", received["to"])
	}
	if received["type"] != "text" {
		t.Errorf("unexpected message type: %v", received["type"])
	}
}
