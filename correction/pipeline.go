// Package correction augments outgoing text through an external service.
// Correction is advisory: it never fails outward, never blocks a room
// worker and never loses the original content.
package correction

import (
	"bytes"
	"chat-router/contract"
	"chat-router/domain"
	"chat-router/observability"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/abadojack/whatlanggo"
	"golang.org/x/time/rate"
)

var _ contract.Worker = (*Pipeline)(nil)
var _ contract.ICorrector = (*Pipeline)(nil)

type apiRequest struct {
	Text string `json:"text"`
}

type apiResponse struct {
	Corrected string `json:"corrected"`
}

// Pipeline serializes every correction call through one worker goroutine
// behind a single shared rate gate. The gate is system-wide, not per-room:
// throughput is capped at the configured rate regardless of room count.
// Single consumption also guarantees FIFO admission across rooms, so
// per-room reply order always equals per-room request order.
type Pipeline struct {
	log             *slog.Logger
	metrics         *observability.Metrics
	client          *http.Client
	serviceURL      string
	gate            *rate.Limiter
	requests        chan domain.CorrectionRequest
	deliveryTimeout time.Duration
}

func NewPipeline(log *slog.Logger, metrics *observability.Metrics, serviceURL string,
	interval, requestTimeout, deliveryTimeout time.Duration, queueSize int) *Pipeline {
	return &Pipeline{
		log:             log,
		metrics:         metrics,
		client:          &http.Client{Timeout: requestTimeout},
		serviceURL:      serviceURL,
		gate:            rate.NewLimiter(rate.Every(interval), 1),
		requests:        make(chan domain.CorrectionRequest, queueSize),
		deliveryTimeout: deliveryTimeout,
	}
}

// Submit enqueues a request without blocking the calling room worker.
// When the queue itself overflows the request degrades immediately: the
// caller gets its original text back as the corrected reply. The degraded
// reply is dispatched off the caller's goroutine, since the caller is the
// room worker whose mailbox may itself be full under the same overload.
func (p *Pipeline) Submit(req domain.CorrectionRequest) {
	select {
	case p.requests <- req:
	default:
		p.log.Warn("Correction queue full, degrading to original text", "room_id", req.Room)
		p.metrics.Corrections.WithLabelValues(observability.OutcomeFallback).Inc()
		go p.reply(context.Background(), req, req.Text)
	}
}

func (p *Pipeline) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			p.log.Debug("Stopping correction pipeline")
			return ctx.Err()
		case req, ok := <-p.requests:
			if !ok {
				return nil
			}
			// The shared gate: at most one outbound call per interval
			// across all rooms.
			if err := p.gate.Wait(ctx); err != nil {
				return nil
			}
			corrected := p.correct(ctx, req)
			p.reply(ctx, req, corrected)
		}
	}
}

// correct performs one outbound call. Network failure, non-success status
// and parse failure all degrade to the original input unchanged.
func (p *Pipeline) correct(ctx context.Context, req domain.CorrectionRequest) string {
	info := whatlanggo.Detect(req.Text)
	lang := info.Lang.Iso6391()
	if lang == "" {
		lang = "und"
	}
	p.metrics.CorrectionLanguage.WithLabelValues(lang).Inc()
	p.log.Debug("Correcting message",
		"room_id", req.Room,
		"lang", lang,
		"correlation_id", req.ID)

	body, err := json.Marshal(apiRequest{Text: req.Text})
	if err != nil {
		return p.fallback(req, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.serviceURL, bytes.NewReader(body))
	if err != nil {
		return p.fallback(req, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return p.fallback(req, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return p.fallback(req, fmt.Errorf("correction service returned %s", resp.Status))
	}

	var parsed apiResponse
	if err = json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return p.fallback(req, fmt.Errorf("parsing correction response: %w", err))
	}

	p.metrics.Corrections.WithLabelValues(observability.OutcomeCorrected).Inc()
	return parsed.Corrected
}

func (p *Pipeline) fallback(req domain.CorrectionRequest, err error) string {
	p.metrics.Corrections.WithLabelValues(observability.OutcomeFallback).Inc()
	p.log.Error("Correction failed, returning original text",
		"room_id", req.Room, "error", err)
	return req.Text
}

// reply posts the result back onto the originating room's mailbox. The
// bounded wait protects the pipeline from a terminated room whose mailbox
// no longer has a reader.
func (p *Pipeline) reply(ctx context.Context, req domain.CorrectionRequest, corrected string) {
	cmd := domain.CorrectionReplyCommand{
		Room:          req.Room,
		CorrelationID: req.ID,
		Corrected:     corrected,
	}
	timer := time.NewTimer(p.deliveryTimeout)
	defer timer.Stop()
	select {
	case req.ReplyTo <- cmd:
	case <-ctx.Done():
	case <-timer.C:
		p.log.Warn("Correction reply dropped, room mailbox unavailable", "room_id", req.Room)
	}
}
