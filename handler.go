package relay

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/dawitel/ed25519-relay/cache"
	"github.com/dawitel/ed25519-relay/events"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zlib"
	"github.com/rs/zerolog"
)

// Relayer forwards a verified raw body downstream
type Relayer interface {
	Relay(ctx context.Context, rawBody []byte, contentType string) (*DownstreamResponse, error)
}

// Handler handles HTTP webhook requests. Stages run in a fixed order: method,
// content type and encoding, size, signature, replay, then relay. A rejecting
// stage ends the request.
type Handler struct {
	verifier    *Verifier
	relayer     Relayer
	replay      cache.Cache
	replayTTL   time.Duration
	recorder    events.Recorder
	logger      zerolog.Logger
	maxBodySize int64
}

// HandlerOption customizes a Handler
type HandlerOption func(*Handler)

// WithReplayGuard rejects signatures already accepted within ttl
func WithReplayGuard(c cache.Cache, ttl time.Duration) HandlerOption {
	return func(h *Handler) {
		h.replay = c
		h.replayTTL = ttl
	}
}

// WithRecorder sets the observability sink
func WithRecorder(r events.Recorder) HandlerOption {
	return func(h *Handler) {
		h.recorder = r
	}
}

// NewHandler creates a new handler for signed webhooks
func NewHandler(
	verifier *Verifier,
	relayer Relayer,
	logger zerolog.Logger,
	maxBodySize int64,
	opts ...HandlerOption,
) *Handler {
	h := &Handler{
		verifier:    verifier,
		relayer:     relayer,
		replay:      cache.NewNoOpCache(),
		recorder:    events.Nop(),
		logger:      logger,
		maxBodySize: maxBodySize,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// HandleWebhook handles incoming webhook requests
func (h *Handler) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	defer func() {
		if rec := recover(); rec != nil {
			h.logger.Error().
				Interface("panic", rec).
				Msg("Panic recovered in webhook handler")
			http.Error(w, "Internal server error", http.StatusInternalServerError)
		}
	}()

	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	contentType := r.Header.Get("Content-Type")
	if err := checkContentType(contentType); err != nil {
		h.writeError(w, err)
		return
	}

	encoding, err := contentEncoding(r.Header)
	if err != nil {
		h.writeError(w, err)
		return
	}

	body, err := h.readBody(w, r, encoding)
	if err != nil {
		h.writeError(w, err)
		return
	}

	replayKey, err := h.authenticate(r.Context(), r.Header, body)
	if err != nil {
		h.writeError(w, err)
		return
	}

	resp, err := h.relay(r.Context(), body, contentType)
	if err != nil {
		if errors.Is(err, ErrDownstreamUnavailable) {
			// Nothing was delivered, so the sender may retry with the same signature.
			h.forget(r.Context(), replayKey)
		}
		h.writeError(w, err)
		return
	}

	if ct := resp.Header.Get("Content-Type"); ct != "" {
		w.Header().Set("Content-Type", ct)
	}
	w.WriteHeader(resp.StatusCode)
	if _, err := w.Write(resp.Body); err != nil {
		h.logger.Warn().Err(err).Msg("Failed to write downstream response to caller")
	}
}

// readBody reads at most maxBodySize bytes, counted after decompression.
// Oversized bodies are rejected before any signature work.
func (h *Handler) readBody(w http.ResponseWriter, r *http.Request, encoding string) ([]byte, error) {
	if encoding != "" {
		return h.readCompressedBody(r, encoding)
	}

	if r.ContentLength > h.maxBodySize {
		h.recorder.Record(r.Context(), events.Event{Kind: events.BodyTooLarge, Status: http.StatusRequestEntityTooLarge})
		return nil, fmt.Errorf("%w: declared %d bytes, limit %d", ErrBodyTooLarge, r.ContentLength, h.maxBodySize)
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.maxBodySize))
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			h.recorder.Record(r.Context(), events.Event{Kind: events.BodyTooLarge, Status: http.StatusRequestEntityTooLarge})
			return nil, fmt.Errorf("%w: limit %d", ErrBodyTooLarge, h.maxBodySize)
		}
		h.logger.Error().Err(err).Msg("Failed to read webhook body")
		return nil, fmt.Errorf("failed to read body: %w", err)
	}

	return body, nil
}

func (h *Handler) readCompressedBody(r *http.Request, encoding string) ([]byte, error) {
	var (
		zr  io.ReadCloser
		err error
	)
	switch encoding {
	case "gzip":
		zr, err = gzip.NewReader(r.Body)
	case "deflate":
		zr, err = zlib.NewReader(r.Body)
	default:
		return nil, fmt.Errorf("%w: content encoding %q", ErrUnsupportedMediaType, encoding)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: invalid %s body: %v", ErrPayloadMalformed, encoding, err)
	}
	defer zr.Close()

	body, err := io.ReadAll(io.LimitReader(zr, h.maxBodySize+1))
	if err != nil {
		return nil, fmt.Errorf("%w: invalid %s body: %v", ErrPayloadMalformed, encoding, err)
	}
	if int64(len(body)) > h.maxBodySize {
		h.recorder.Record(r.Context(), events.Event{Kind: events.BodyTooLarge, Status: http.StatusRequestEntityTooLarge})
		return nil, fmt.Errorf("%w: decompressed body exceeds %d bytes", ErrBodyTooLarge, h.maxBodySize)
	}

	return body, nil
}

// authenticate is the signature gate followed by the optional replay guard.
// It returns the key the signature was remembered under.
func (h *Handler) authenticate(ctx context.Context, header http.Header, body []byte) (string, error) {
	signature := header.Get(SignatureHeader)
	timestamp := header.Get(TimestampHeader)

	if signature == "" || timestamp == "" {
		h.recorder.Record(ctx, events.Event{
			Kind:   events.SignatureRejected,
			Status: http.StatusUnauthorized,
			Reason: "missing signature headers",
		})
		return "", fmt.Errorf("%w: missing signature headers", ErrAuthentication)
	}

	if !h.verifier.Verify(signature, timestamp, body) {
		h.recorder.Record(ctx, events.Event{
			Kind:   events.SignatureRejected,
			Status: http.StatusUnauthorized,
			Reason: "invalid signature",
		})
		return "", fmt.Errorf("%w: invalid signature", ErrAuthentication)
	}

	h.recorder.Record(ctx, events.Event{Kind: events.SignatureAccepted})

	key := strings.ToLower(signature)
	fresh, err := h.replay.Remember(ctx, key, h.replayTTL)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrReplayStoreUnavailable, err)
	}
	if !fresh {
		h.recorder.Record(ctx, events.Event{
			Kind:   events.ReplayRejected,
			Status: http.StatusUnauthorized,
		})
		return "", fmt.Errorf("%w: signature already used", ErrAuthentication)
	}

	return key, nil
}

func (h *Handler) forget(ctx context.Context, key string) {
	if err := h.replay.Forget(context.WithoutCancel(ctx), key); err != nil {
		h.logger.Warn().Err(err).Msg("Failed to release signature after downstream failure")
	}
}

func (h *Handler) relay(ctx context.Context, body []byte, contentType string) (*DownstreamResponse, error) {
	start := time.Now()
	resp, err := h.relayer.Relay(ctx, body, contentType)
	elapsed := time.Since(start)

	switch {
	case errors.Is(err, ErrPayloadMalformed):
		h.recorder.Record(ctx, events.Event{
			Kind:   events.PayloadMalformed,
			Status: http.StatusBadRequest,
			Err:    err,
		})
		return nil, err
	case err != nil:
		h.recorder.Record(ctx, events.Event{
			Kind:     events.DownstreamFailed,
			Status:   StatusFor(err),
			Duration: elapsed,
			Err:      err,
		})
		return nil, err
	}

	h.recorder.Record(ctx, events.Event{
		Kind:     events.DownstreamResponded,
		Status:   resp.StatusCode,
		Duration: elapsed,
	})
	return resp, nil
}

// writeError sends the caller-facing status for err. Authentication failures
// get an empty body.
func (h *Handler) writeError(w http.ResponseWriter, err error) {
	status := StatusFor(err)
	if status == http.StatusUnauthorized {
		w.WriteHeader(status)
		return
	}

	if status >= 500 {
		h.logger.Error().Err(err).Int("status", status).Msg("Webhook relay failed")
	} else {
		h.logger.Debug().Err(err).Int("status", status).Msg("Webhook rejected")
	}

	http.Error(w, errorMessage(status), status)
}

func errorMessage(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "Malformed JSON payload"
	case http.StatusBadGateway, http.StatusGatewayTimeout, http.StatusServiceUnavailable:
		return "Downstream unavailable"
	default:
		return http.StatusText(status)
	}
}

func checkContentType(contentType string) error {
	if contentType == "" {
		return fmt.Errorf("%w: missing content type", ErrUnsupportedMediaType)
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnsupportedMediaType, err)
	}
	if mediaType != "application/json" {
		return fmt.Errorf("%w: %s", ErrUnsupportedMediaType, mediaType)
	}
	return nil
}

// contentEncoding returns "", "gzip" or "deflate". Any other coding is
// ErrUnsupportedMediaType.
func contentEncoding(header http.Header) (string, error) {
	encoding := strings.ToLower(strings.TrimSpace(header.Get("Content-Encoding")))
	switch encoding {
	case "", "identity":
		return "", nil
	case "gzip", "deflate":
		return encoding, nil
	default:
		return "", fmt.Errorf("%w: content encoding %q", ErrUnsupportedMediaType, encoding)
	}
}
