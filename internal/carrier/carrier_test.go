package carrier

import (
	"context"
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
)

func signParams(authToken, requestURL string, params url.Values) string {
	// Mirror of the carrier's signing scheme, built independently of the
	// verifier under test.
	payload := requestURL
	for _, k := range []string{"Body", "From", "To"} {
		if v := params.Get(k); v != "" {
			payload += k + v
		}
	}
	mac := hmac.New(sha1.New, []byte(authToken))
	mac.Write([]byte(payload))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func TestVerifySignature(t *testing.T) {
	c := NewClient("AC123", "secret-token", "+15550001111")

	requestURL := "https://rosterbot.example.com/webhooks/carrier"
	params := url.Values{}
	params.Set("From", "+15551234567")
	params.Set("Body", "when is practice?")

	sig := signParams("secret-token", requestURL, params)

	if !c.VerifySignature(requestURL, params, sig) {
		t.Fatal("valid signature rejected")
	}

	// Tampered body fails.
	tampered := url.Values{}
	tampered.Set("From", "+15551234567")
	tampered.Set("Body", "send me your password")
	if c.VerifySignature(requestURL, tampered, sig) {
		t.Fatal("tampered params accepted")
	}

	// Wrong token fails.
	other := NewClient("AC123", "other-token", "+15550001111")
	if other.VerifySignature(requestURL, params, sig) {
		t.Fatal("signature accepted with wrong token")
	}
}

func TestSendMessage(t *testing.T) {
	var gotPath string
	var gotBody, gotTo string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Errorf("parse form: %v", err)
		}
		gotPath = r.URL.Path
		gotBody = r.PostForm.Get("Body")
		gotTo = r.PostForm.Get("To")
		if _, _, ok := r.BasicAuth(); !ok {
			t.Error("missing basic auth")
		}
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	c := NewClient("AC123", "secret-token", "+15550001111", WithBaseURL(srv.URL))
	if err := c.SendMessage(context.Background(), "+15551234567", "practice at 6"); err != nil {
		t.Fatalf("send: %v", err)
	}

	if gotPath != "/2010-04-01/Accounts/AC123/Messages.json" {
		t.Errorf("path = %q", gotPath)
	}
	if gotBody != "practice at 6" || gotTo != "+15551234567" {
		t.Errorf("body/to = %q/%q", gotBody, gotTo)
	}
}

func TestSendMessageRetriesOn5xx(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	c := NewClient("AC123", "secret-token", "+15550001111", WithBaseURL(srv.URL))
	if err := c.SendMessage(context.Background(), "+15551234567", "hello"); err != nil {
		t.Fatalf("send: %v", err)
	}
	if calls.Load() != 2 {
		t.Errorf("calls = %d, want 2", calls.Load())
	}
}

func TestSendMessageNoRetryOn4xx(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	c := NewClient("AC123", "secret-token", "+15550001111", WithBaseURL(srv.URL))
	if err := c.SendMessage(context.Background(), "+15551234567", "hello"); err == nil {
		t.Fatal("expected error on 400")
	}
	if calls.Load() != 1 {
		t.Errorf("calls = %d, want 1", calls.Load())
	}
}
