// Package gateway orchestrates the secure chat pipeline: authenticate, rate
// check, sanitize, validate the mission, then forward to the model provider
// and relay the answer. Every check failure short-circuits locally with a
// generic message; the detailed cause only reaches the server log.
package gateway

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/lumora-edu/mentor-gateway/internal/auth"
	"github.com/lumora-edu/mentor-gateway/internal/config"
	"github.com/lumora-edu/mentor-gateway/internal/httputil"
	"github.com/lumora-edu/mentor-gateway/internal/mission"
	"github.com/lumora-edu/mentor-gateway/internal/policy"
	"github.com/lumora-edu/mentor-gateway/internal/sanitize"
	"github.com/lumora-edu/mentor-gateway/internal/telemetry"
)

const maxBodyBytes = 1 << 20

// Upstream is the provider surface the handler needs; satisfied by
// *upstream.Client and by test doubles.
type Upstream interface {
	Generate(ctx context.Context, model string, payload []byte) (*http.Response, error)
	Stream(ctx context.Context, model string, payload []byte) (*http.Response, error)
}

// Handler holds dependencies for the gateway HTTP handlers.
type Handler struct {
	registry  *mission.Registry
	sanitizer *sanitize.Sanitizer
	upstream  Upstream
	policies  *policy.Evaluator
	metrics   *telemetry.Metrics
	cfg       func() *config.Config
}

func NewHandler(registry *mission.Registry, sanitizer *sanitize.Sanitizer, up Upstream, policies *policy.Evaluator, metrics *telemetry.Metrics, cfg func() *config.Config) *Handler {
	return &Handler{
		registry:  registry,
		sanitizer: sanitizer,
		upstream:  up,
		policies:  policies,
		metrics:   metrics,
		cfg:       cfg,
	}
}

// Chat handles POST /v1/chat: a single provider JSON document, proxied
// verbatim on success.
func (h *Handler) Chat(w http.ResponseWriter, r *http.Request) {
	reqID := w.Header().Get("X-Request-ID")
	receivedAt := time.Now()
	applyCORS(w, r, h.cfg().CORS)

	payload, ok := h.prepare(w, r, reqID)
	if !ok {
		return
	}

	resp, err := h.upstream.Generate(r.Context(), h.cfg().Upstream.DefaultModel, payload)
	if err != nil {
		slog.Error("upstream request failed", "request_id", reqID, "error", err)
		h.reject("upstream", "transport", func() { httputil.WriteUpstreamError(w, reqID) })
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		h.upstreamFailure(w, reqID, resp)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, resp.Body); err != nil {
		slog.Warn("client disconnected during unary response", "request_id", reqID)
		return
	}

	durationMs := float64(time.Since(receivedAt).Milliseconds())
	slog.Info("request completed",
		"request_id", reqID,
		"endpoint", "chat",
		"status", http.StatusOK,
		"duration_ms", durationMs,
	)
	if h.metrics != nil {
		h.metrics.RecordRequest("chat", "200", durationMs)
	}
}

// ChatStream handles POST /v1/chat/stream: the provider's SSE stream is
// re-emitted as normalized text-delta events terminated by the sentinel.
// Failures before the first upstream byte use the JSON error convention;
// failures after it become an error event followed by the sentinel.
func (h *Handler) ChatStream(w http.ResponseWriter, r *http.Request) {
	reqID := w.Header().Get("X-Request-ID")
	receivedAt := time.Now()
	applyCORS(w, r, h.cfg().CORS)

	payload, ok := h.prepare(w, r, reqID)
	if !ok {
		return
	}

	resp, err := h.upstream.Stream(r.Context(), h.cfg().Upstream.DefaultModel, payload)
	if err != nil {
		slog.Error("upstream stream failed", "request_id", reqID, "error", err)
		h.reject("upstream", "transport", func() { httputil.WriteUpstreamError(w, reqID) })
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		h.upstreamFailure(w, reqID, resp)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		httputil.WriteInternalError(w, reqID, "Streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	t := newStreamTransformer(w, flusher.Flush)
	runErr := t.run(resp.Body)
	t.finish(runErr)

	if runErr != nil {
		slog.Warn("stream ended abnormally", "request_id", reqID, "error", runErr)
	}

	durationMs := float64(time.Since(receivedAt).Milliseconds())
	slog.Info("stream completed",
		"request_id", reqID,
		"endpoint", "stream",
		"frames", t.frames,
		"duration_ms", durationMs,
	)
	if h.metrics != nil {
		h.metrics.RecordRequest("stream", "200", durationMs)
		h.metrics.StreamFrames.Add(float64(t.frames))
	}
}

// prepare runs the shared pre-upstream pipeline. On failure the response has
// been written and ok is false. On success it returns the provider payload.
func (h *Handler) prepare(w http.ResponseWriter, r *http.Request, reqID string) ([]byte, bool) {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		httputil.WriteAuthError(w, reqID)
		return nil, false
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		httputil.WriteBadRequestError(w, reqID, "Failed to read request body")
		return nil, false
	}
	defer r.Body.Close()

	var req ChatRequest
	if err := json.Unmarshal(body, &req); err != nil {
		h.reject("parse", "invalid_json", func() { httputil.WriteBadRequestError(w, reqID, "Invalid JSON body") })
		return nil, false
	}
	if req.Message == "" {
		h.reject("parse", "missing_message", func() { httputil.WriteBadRequestError(w, reqID, "message is required") })
		return nil, false
	}

	result := h.sanitizer.Sanitize(req.Message)
	if result.Blocked {
		slog.Warn("message blocked",
			"request_id", reqID,
			"subject", identity.Subject,
			"signature", result.ReasonLabel,
		)
		h.reject("sanitize", result.ReasonLabel, func() { httputil.WriteBlockedError(w, reqID) })
		return nil, false
	}

	if h.cfg().Sanitize.ScanHistory {
		if label, blocked := h.sanitizer.ScanHistory(historyTurns(req.History)); blocked {
			slog.Warn("history blocked",
				"request_id", reqID,
				"subject", identity.Subject,
				"signature", label,
			)
			h.reject("sanitize_history", label, func() { httputil.WriteBlockedError(w, reqID) })
			return nil, false
		}
	}

	// A system instruction is only meaningful inside a known mission, and a
	// named mission must always pass the integrity check.
	if req.MissionID != "" || req.SystemInstruction != "" {
		if req.MissionID == "" {
			slog.Warn("instruction without mission", "request_id", reqID, "subject", identity.Subject)
			h.reject("mission", "instruction_without_mission", func() { httputil.WriteMissionError(w, reqID, "Mission rejected") })
			return nil, false
		}
		verdict := h.registry.Validate(req.MissionID, req.SystemInstruction)
		if !verdict.Valid {
			slog.Warn("mission rejected",
				"request_id", reqID,
				"subject", identity.Subject,
				"mission", req.MissionID,
				"reason", verdict.Reason,
			)
			h.reject("mission", verdict.Reason, func() { httputil.WriteMissionError(w, reqID, "Mission rejected") })
			return nil, false
		}
	}

	if h.policies != nil && h.policies.Enabled() {
		now := time.Now()
		allow, reason, err := h.policies.Evaluate(r.Context(), policy.Input{
			Subject: identity.Subject,
			Email:   identity.Email,
			Mission: req.MissionID,
			Hour:    now.Hour(),
			Day:     now.Weekday().String(),
		})
		if err != nil {
			slog.Error("policy evaluation failed", "request_id", reqID, "error", err)
		}
		if !allow {
			slog.Warn("policy denied",
				"request_id", reqID,
				"subject", identity.Subject,
				"mission", req.MissionID,
				"reason", reason,
			)
			h.reject("policy", "denied", func() { httputil.WriteMissionError(w, reqID, "Mission rejected") })
			return nil, false
		}
	}

	contents := append([]Message{}, req.History...)
	contents = append(contents, Message{
		Role:  "user",
		Parts: []Part{{Text: result.SanitizedText}},
	})

	payload := providerPayload{Contents: contents}
	if req.SystemInstruction != "" {
		payload.SystemInstruction = &instructionBlock{Parts: []Part{{Text: req.SystemInstruction}}}
	}

	data, err := json.Marshal(payload)
	if err != nil {
		httputil.WriteInternalError(w, reqID, "Failed to prepare provider request")
		return nil, false
	}
	return data, true
}

// upstreamFailure maps a non-200 provider response. The body is logged, never
// forwarded. Provider rate limiting passes through as 429 with its hint.
func (h *Handler) upstreamFailure(w http.ResponseWriter, reqID string, resp *http.Response) {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<14))
	slog.Error("upstream returned error",
		"request_id", reqID,
		"status", resp.StatusCode,
		"body", string(body),
	)

	if resp.StatusCode == http.StatusTooManyRequests {
		if retry := resp.Header.Get("Retry-After"); retry != "" {
			w.Header().Set("Retry-After", retry)
		}
		h.reject("upstream", "rate_limited", func() { httputil.WriteRateLimitError(w, reqID, "Model provider is busy, try again shortly") })
		return
	}
	h.reject("upstream", strconv.Itoa(resp.StatusCode), func() { httputil.WriteUpstreamError(w, reqID) })
}

func (h *Handler) reject(stage, reason string, write func()) {
	write()
	if h.metrics != nil {
		h.metrics.RecordRejection(stage, reason)
	}
}

func historyTurns(msgs []Message) []sanitize.HistoryTurn {
	turns := make([]sanitize.HistoryTurn, 0, len(msgs))
	for _, m := range msgs {
		for _, p := range m.Parts {
			turns = append(turns, sanitize.HistoryTurn{Role: m.Role, Text: p.Text})
		}
	}
	return turns
}
