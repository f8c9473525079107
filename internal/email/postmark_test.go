package email

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestSendAlert(t *testing.T) {
	var got postmarkEmail
	var gotToken string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotToken = r.Header.Get("X-Postmark-Server-Token")
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.Write([]byte(`{"ErrorCode": 0}`))
	}))
	defer srv.Close()

	c := NewClient("token-1", "alerts@rosterbot.example", WithAPIURL(srv.URL), WithHTTPClient(srv.Client()))
	if err := c.SendAlert("coach@example.com", "opt_out", "Sam has opted out of messages."); err != nil {
		t.Fatalf("SendAlert: %v", err)
	}

	if gotToken != "token-1" {
		t.Errorf("server token = %q", gotToken)
	}
	if got.To != "coach@example.com" || got.From != "alerts@rosterbot.example" {
		t.Errorf("To = %q, From = %q", got.To, got.From)
	}
	if got.Subject != "Rosterbot: a member opted out of messages" {
		t.Errorf("Subject = %q", got.Subject)
	}
	if got.TextBody != "Sam has opted out of messages." {
		t.Errorf("TextBody = %q", got.TextBody)
	}
}

func TestSendAlertAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
	}))
	defer srv.Close()

	c := NewClient("token-1", "alerts@rosterbot.example", WithAPIURL(srv.URL), WithHTTPClient(srv.Client()))
	if err := c.SendAlert("coach@example.com", "opt_out", "x"); err == nil {
		t.Fatal("expected error on 4xx response")
	}
}

func TestSendAlertUnconfigured(t *testing.T) {
	c := NewClient("", "alerts@rosterbot.example")
	if c.Configured() {
		t.Fatal("client with no token should report unconfigured")
	}
	if err := c.SendAlert("coach@example.com", "opt_out", "x"); err == nil {
		t.Fatal("expected error when unconfigured")
	}
}
