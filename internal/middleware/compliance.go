package middleware

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"slices"

	"github.com/rosterbot/rosterbot/internal/classifier"
	"github.com/rosterbot/rosterbot/internal/model"
	"github.com/rosterbot/rosterbot/internal/store"
)

// TransparencyHeader marks every successful generated response as
// machine-produced.
const TransparencyHeader = "X-AI-Generated"

// OptOutCode is the fixed error code returned when the consent kill switch
// blocks a request.
const OptOutCode = "OPT_OUT_BLOCK"

const maxPeekBody = 64 * 1024

var corsHeaders = map[string]string{
	"Access-Control-Allow-Origin":  "*",
	"Access-Control-Allow-Headers": "authorization, content-type",
}

// ComplianceConfig carries the region policy settings.
type ComplianceConfig struct {
	Region         string
	AllowedRegions []string
}

// Compliance wraps a message-handling endpoint with the consent and policy
// checks, in fixed order: CORS preflight, region check, consent kill switch,
// handler, transparency header injection. Any fault in the wrapped handler or
// the checks themselves becomes a generic internal error; nothing leaks
// unshaped.
func Compliance(cfg ComplianceConfig, users *store.UserStore, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodOptions {
				setCORS(w.Header())
				w.WriteHeader(http.StatusOK)
				return
			}

			defer func() {
				if rec := recover(); rec != nil {
					logger.Error("compliance: handler panic", "panic", rec, "path", r.URL.Path)
					writeComplianceError(w, http.StatusInternalServerError, "Internal Server Error during compliance check", "")
				}
			}()

			// Region policy is soft: warn and proceed, but always before any
			// data leaves this execution context.
			if len(cfg.AllowedRegions) > 0 && !slices.Contains(cfg.AllowedRegions, cfg.Region) {
				logger.Warn("compliance: region mismatch",
					"region", cfg.Region,
					"allowed", cfg.AllowedRegions,
				)
			}

			userID, prompt, ok := peekBody(r)
			if !ok {
				// No parseable body or no user_id: the kill switch only
				// applies when the payload identifies a user.
				next.ServeHTTP(wrapTransparency(w), r)
				return
			}

			user, err := users.GetByID(userID)
			if err != nil {
				logger.Error("compliance: consent lookup failed", "error", err, "user_id", userID)
				writeComplianceError(w, http.StatusInternalServerError, "Internal Server Error during compliance check", "")
				return
			}
			if user != nil && user.Status == model.CommOptedOut {
				// The one exit from the kill switch: an explicit re-opt-in
				// command, handled here since the wrapped handler must never
				// run for an opted-out user.
				if classifier.Classify(prompt) == classifier.DecisionOptIn {
					if err := users.SetCommunicationStatus(userID, model.CommSubscribed); err != nil {
						logger.Error("compliance: re-subscribe failed", "error", err, "user_id", userID)
						writeComplianceError(w, http.StatusInternalServerError, "Internal Server Error during compliance check", "")
						return
					}
					logger.Info("compliance: user re-subscribed", "user_id", userID)
					h := w.Header()
					setCORS(h)
					h.Set("Content-Type", "application/json")
					h.Set(TransparencyHeader, "true")
					json.NewEncoder(w).Encode(map[string]string{
						"result":     classifier.OptInConfirmation,
						"model_used": classifier.SystemModel,
					})
					return
				}
				logger.Info("compliance: blocked opted-out user", "user_id", userID)
				writeComplianceError(w, http.StatusForbidden, "User has opted out of communications.", OptOutCode)
				return
			}

			next.ServeHTTP(wrapTransparency(w), r)
		})
	}
}

// peekBody reads the request body to extract user_id and prompt, then
// restores it for the wrapped handler.
func peekBody(r *http.Request) (userID, prompt string, ok bool) {
	if r.Body == nil {
		return "", "", false
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, maxPeekBody))
	r.Body.Close()
	r.Body = io.NopCloser(bytes.NewReader(body))
	if err != nil {
		return "", "", false
	}

	var payload struct {
		UserID string `json:"user_id"`
		Prompt string `json:"prompt"`
	}
	if err := json.Unmarshal(body, &payload); err != nil || payload.UserID == "" {
		return "", "", false
	}
	return payload.UserID, payload.Prompt, true
}

func setCORS(h http.Header) {
	for k, v := range corsHeaders {
		if h.Get(k) == "" {
			h.Set(k, v)
		}
	}
}

func writeComplianceError(w http.ResponseWriter, status int, msg, code string) {
	h := w.Header()
	setCORS(h)
	h.Set("Content-Type", "application/json")
	w.WriteHeader(status)
	resp := map[string]string{"error": msg}
	if code != "" {
		resp["code"] = code
	}
	json.NewEncoder(w).Encode(resp)
}

// transparencyWriter injects the transparency marker and CORS headers right
// before the response is committed, merging with whatever the handler set.
type transparencyWriter struct {
	http.ResponseWriter
	wrote bool
}

func wrapTransparency(w http.ResponseWriter) http.ResponseWriter {
	return &transparencyWriter{ResponseWriter: w}
}

func (t *transparencyWriter) inject() {
	if t.wrote {
		return
	}
	t.wrote = true
	h := t.Header()
	if h.Get(TransparencyHeader) == "" {
		h.Set(TransparencyHeader, "true")
	}
	setCORS(h)
}

func (t *transparencyWriter) WriteHeader(code int) {
	t.inject()
	t.ResponseWriter.WriteHeader(code)
}

func (t *transparencyWriter) Write(b []byte) (int, error) {
	t.inject()
	return t.ResponseWriter.Write(b)
}
