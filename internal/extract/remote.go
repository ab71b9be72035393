package extract

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/joseph-ayodele/doccapture/internal/common"
)

// envelopeSchema validates the remote service response before we trust
// any of its numbers.
const envelopeSchema = `{
	"type": "object",
	"required": ["success"],
	"properties": {
		"success": {"type": "boolean"},
		"error": {"type": "string"},
		"data": {
			"type": "object",
			"required": ["fields", "rawText", "confidence"],
			"properties": {
				"fields": {"type": "array"},
				"tables": {"type": "array"},
				"rawText": {"type": "string"},
				"confidence": {"type": "number", "minimum": 0, "maximum": 1}
			}
		}
	}
}`

type envelope struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
	Data    *struct {
		Fields     []Field `json:"fields"`
		Tables     []Table `json:"tables,omitempty"`
		RawText    string  `json:"rawText"`
		Confidence float64 `json:"confidence"`
	} `json:"data,omitempty"`
}

// retryableError marks failures worth another attempt (transport faults,
// 5xx responses). Everything else is terminal for this call.
type retryableError struct{ err error }

func (e *retryableError) Error() string { return e.err.Error() }
func (e *retryableError) Unwrap() error { return e.err }

func retryable(err error) error { return &retryableError{err: err} }

func isRetryable(err error) bool {
	var re *retryableError
	return errors.As(err, &re)
}

// RemoteBackend sends the image to the backend extraction service with a
// hard per-attempt timeout and a bounded exponential-backoff retry budget.
type RemoteBackend struct {
	url         string
	client      *http.Client
	tokens      TokenProvider
	timeout     time.Duration
	maxRetries  int
	backoffBase time.Duration
	schema      *jsonschema.Schema
	logger      *slog.Logger
}

type RemoteOption func(*RemoteBackend)

// WithHTTPClient overrides the transport, mainly for tests.
func WithHTTPClient(c *http.Client) RemoteOption {
	return func(b *RemoteBackend) {
		if c != nil {
			b.client = c
		}
	}
}

// WithTimeout sets the hard per-attempt timeout.
func WithTimeout(d time.Duration) RemoteOption {
	return func(b *RemoteBackend) {
		if d > 0 {
			b.timeout = d
		}
	}
}

// WithMaxRetries bounds the retry budget for retryable failures.
func WithMaxRetries(n int) RemoteOption {
	return func(b *RemoteBackend) {
		if n >= 0 {
			b.maxRetries = n
		}
	}
}

// WithBackoffBase sets the unit for the 2^attempt backoff. Defaults to
// one second; tests shrink it.
func WithBackoffBase(d time.Duration) RemoteOption {
	return func(b *RemoteBackend) {
		if d > 0 {
			b.backoffBase = d
		}
	}
}

func WithRemoteLogger(l *slog.Logger) RemoteOption {
	return func(b *RemoteBackend) {
		if l != nil {
			b.logger = l
		}
	}
}

func NewRemoteBackend(url string, tokens TokenProvider, opts ...RemoteOption) (*RemoteBackend, error) {
	if url == "" {
		return nil, common.NewAppError("EXTRACT_ERROR", "remote extraction URL is empty", common.ErrInvalidInput)
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("envelope.json", bytes.NewReader([]byte(envelopeSchema))); err != nil {
		return nil, common.WrapError(err, "add envelope schema")
	}
	schema, err := compiler.Compile("envelope.json")
	if err != nil {
		return nil, common.WrapError(err, "compile envelope schema")
	}
	b := &RemoteBackend{
		url:         url,
		client:      &http.Client{},
		tokens:      tokens,
		timeout:     30 * time.Second,
		maxRetries:  3,
		backoffBase: time.Second,
		schema:      schema,
		logger:      slog.Default(),
	}
	for _, o := range opts {
		o(b)
	}
	return b, nil
}

func (b *RemoteBackend) Name() string { return "remote" }

// Extract posts the image and decodes the response envelope, retrying
// transport errors and 5xx responses with 2^attempt backoff plus jitter.
func (b *RemoteBackend) Extract(ctx context.Context, in Input) (Result, error) {
	reqID := uuid.New().String()
	var lastErr error
	for attempt := 0; attempt <= b.maxRetries; attempt++ {
		if attempt > 0 {
			delay := b.backoffBase * (1 << attempt)
			delay += time.Duration(rand.Int63n(int64(b.backoffBase)/2 + 1))
			b.logger.Warn("extract.remote.retry",
				"req_id", reqID, "attempt", attempt, "delay_ms", delay.Milliseconds(), "error", lastErr)
			select {
			case <-ctx.Done():
				return Result{}, ctx.Err()
			case <-time.After(delay):
			}
		}

		res, err := b.attempt(ctx, reqID, in)
		if err == nil {
			return res, nil
		}
		lastErr = err
		if !isRetryable(err) {
			return Result{}, err
		}
	}
	return Result{}, common.WrapError(lastErr, fmt.Sprintf("remote extraction exhausted %d retries", b.maxRetries))
}

func (b *RemoteBackend) attempt(ctx context.Context, reqID string, in Input) (Result, error) {
	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	payload := map[string]any{}
	switch {
	case len(in.Data) > 0:
		payload["imageData"] = base64.StdEncoding.EncodeToString(in.Data)
	case in.URI != "":
		payload["imageUrl"] = in.URI
	default:
		return Result{}, common.NewAppError("EXTRACT_ERROR", "input has neither data nor uri", common.ErrInvalidInput)
	}
	if in.Width > 0 && in.Height > 0 {
		payload["width"] = in.Width
		payload["height"] = in.Height
	}

	bs, err := json.Marshal(payload)
	if err != nil {
		return Result{}, fmt.Errorf("encode json: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.url, bytes.NewReader(bs))
	if err != nil {
		return Result{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if b.tokens != nil {
		token, err := b.tokens.Token(ctx)
		if err != nil {
			return Result{}, common.WrapError(err, "obtain bearer token")
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := b.client.Do(req)
	if err != nil {
		return Result{}, retryable(fmt.Errorf("send request: %w", err))
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			b.logger.Warn("extract.remote.body_close_error", "req_id", reqID, "error", cerr)
		}
	}()

	raw, _ := io.ReadAll(resp.Body)
	b.logger.Info("extract.remote.response",
		"req_id", reqID,
		"status", resp.StatusCode,
		"bytes", len(raw),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)

	if resp.StatusCode/100 == 5 {
		return Result{}, retryable(fmt.Errorf("server error: status %d", resp.StatusCode))
	}
	if resp.StatusCode/100 != 2 {
		return Result{}, fmt.Errorf("non-2xx status: %d", resp.StatusCode)
	}

	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return Result{}, fmt.Errorf("decode envelope: %w", err)
	}
	if err := b.schema.Validate(v); err != nil {
		return Result{}, fmt.Errorf("envelope does not match schema: %w", err)
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return Result{}, fmt.Errorf("decode envelope: %w", err)
	}
	if !env.Success || env.Data == nil {
		msg := env.Error
		if msg == "" {
			msg = "extraction service reported failure"
		}
		return Result{}, common.NewAppError("EXTRACT_ERROR", msg, common.ErrExtractionFailed)
	}

	return Result{
		Success:    true,
		Fields:     env.Data.Fields,
		Tables:     env.Data.Tables,
		RawText:    env.Data.RawText,
		Confidence: env.Data.Confidence,
	}, nil
}
