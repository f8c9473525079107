package handler

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sort"
	"strings"
	"testing"

	"github.com/rosterbot/rosterbot/internal/carrier"
	"github.com/rosterbot/rosterbot/internal/model"
)

const (
	inboundURL       = "https://rosterbot.example/webhooks/carrier"
	carrierAuthToken = "carrier-token"
)

// carrierSign mirrors the carrier's webhook signing: HMAC-SHA1 over the URL
// followed by the params in sorted-key order.
func carrierSign(requestURL string, params url.Values, token string) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(requestURL)
	for _, k := range keys {
		for _, v := range params[k] {
			b.WriteString(k)
			b.WriteString(v)
		}
	}
	mac := hmac.New(sha1.New, []byte(token))
	mac.Write([]byte(b.String()))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

type inboundFixture struct {
	handler     *InboundHandler
	fixture     *messageFixture
	sentBodies  *[]string
	carrierSrv  *httptest.Server
	carrierHits *int
}

func setupInboundTest(t *testing.T) *inboundFixture {
	t.Helper()
	f := setupMessageTest(t, model.PlanStarter, nil)

	var sent []string
	hits := 0
	carrierSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		if err := r.ParseForm(); err == nil {
			sent = append(sent, r.PostForm.Get("Body"))
		}
		w.WriteHeader(http.StatusCreated)
	}))
	t.Cleanup(carrierSrv.Close)

	c := carrier.NewClient("AC123", carrierAuthToken, "+15550009999",
		carrier.WithBaseURL(carrierSrv.URL), carrier.WithHTTPClient(carrierSrv.Client()))
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return &inboundFixture{
		handler:     NewInboundHandler(c, f.users, f.handler, inboundURL, logger),
		fixture:     f,
		sentBodies:  &sent,
		carrierSrv:  carrierSrv,
		carrierHits: &hits,
	}
}

func (f *inboundFixture) post(t *testing.T, form url.Values, sign bool) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/webhooks/carrier", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if sign {
		req.Header.Set("X-Twilio-Signature", carrierSign(inboundURL, form, carrierAuthToken))
	} else {
		req.Header.Set("X-Twilio-Signature", "bogus")
	}
	rec := httptest.NewRecorder()
	f.handler.HandleInbound(rec, req)
	return rec
}

func TestInboundRejectsBadSignature(t *testing.T) {
	f := setupInboundTest(t)

	form := url.Values{"From": {"+15550001111"}, "Body": {"When is practice?"}}
	rec := f.post(t, form, false)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", rec.Code)
	}
	if *f.carrierHits != 0 {
		t.Error("no reply should be sent for unverified requests")
	}
}

func TestInboundRepliesToKnownUser(t *testing.T) {
	f := setupInboundTest(t)

	form := url.Values{"From": {"+15550001111"}, "Body": {"When is practice?"}}
	rec := f.post(t, form, true)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	if len(*f.sentBodies) != 1 || (*f.sentBodies)[0] != "Practice is at 6pm." {
		t.Errorf("sent bodies = %v", *f.sentBodies)
	}
}

func TestInboundIgnoresUnknownNumber(t *testing.T) {
	f := setupInboundTest(t)

	form := url.Values{"From": {"+15559999999"}, "Body": {"hello"}}
	rec := f.post(t, form, true)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if *f.carrierHits != 0 {
		t.Error("no reply should be sent to unknown numbers")
	}
}

func TestInboundDropsOptedOutUser(t *testing.T) {
	f := setupInboundTest(t)
	if err := f.fixture.users.SetCommunicationStatus("user-1", model.CommOptedOut); err != nil {
		t.Fatalf("set opted_out: %v", err)
	}

	form := url.Values{"From": {"+15550001111"}, "Body": {"When is practice?"}}
	rec := f.post(t, form, true)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if *f.carrierHits != 0 {
		t.Error("opted-out sender must not receive a reply")
	}
}

func TestInboundStartReSubscribes(t *testing.T) {
	f := setupInboundTest(t)
	if err := f.fixture.users.SetCommunicationStatus("user-1", model.CommOptedOut); err != nil {
		t.Fatalf("set opted_out: %v", err)
	}

	form := url.Values{"From": {"+15550001111"}, "Body": {"START"}}
	rec := f.post(t, form, true)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}

	user, err := f.fixture.users.GetByID("user-1")
	if err != nil {
		t.Fatalf("get user: %v", err)
	}
	if user.Status != model.CommSubscribed {
		t.Errorf("Status = %q, want subscribed", user.Status)
	}
	if len(*f.sentBodies) != 1 {
		t.Fatalf("expected one confirmation reply, got %v", *f.sentBodies)
	}
}
