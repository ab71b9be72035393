package async

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/joseph-ayodele/doccapture/constants"
	"github.com/joseph-ayodele/doccapture/internal/common"
	"github.com/joseph-ayodele/doccapture/internal/extract"
	"github.com/joseph-ayodele/doccapture/internal/store"
)

// HTTPEngine is a thin client for the downstream business pipeline
// engine. The engine consumes (image, result, pipelineId) and is
// otherwise opaque to this layer.
type HTTPEngine struct {
	url    string
	client *http.Client
	tokens extract.TokenProvider
	logger *slog.Logger
}

func NewHTTPEngine(url string, tokens extract.TokenProvider, logger *slog.Logger) (*HTTPEngine, error) {
	if url == "" {
		return nil, common.NewAppError("PIPELINE_ERROR", "pipeline engine URL is empty", common.ErrInvalidInput)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &HTTPEngine{
		url:    url,
		client: &http.Client{Timeout: 45 * time.Second},
		tokens: tokens,
		logger: logger,
	}, nil
}

func (e *HTTPEngine) Submit(ctx context.Context, in extract.Input, res extract.Result, pipelineID string) (store.UploadResult, error) {
	payload := map[string]any{
		"imageUrl":   in.URI,
		"extraction": res,
		"pipelineId": pipelineID,
	}
	bs, err := json.Marshal(payload)
	if err != nil {
		return store.UploadResult{}, fmt.Errorf("encode submission: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.url, bytes.NewReader(bs))
	if err != nil {
		return store.UploadResult{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if e.tokens != nil {
		token, err := e.tokens.Token(ctx)
		if err != nil {
			return store.UploadResult{}, common.WrapError(err, "obtain bearer token")
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return store.UploadResult{}, err
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			e.logger.Warn("pipeline.submit.body_close_error", "error", cerr)
		}
	}()

	raw, _ := io.ReadAll(resp.Body)
	if resp.StatusCode/100 != 2 {
		return store.UploadResult{}, fmt.Errorf("pipeline engine returned status %d", resp.StatusCode)
	}

	var ack struct {
		ID         string   `json:"id"`
		Status     string   `json:"status"`
		Confidence *float64 `json:"confidence,omitempty"`
	}
	if err := json.Unmarshal(raw, &ack); err != nil {
		return store.UploadResult{}, fmt.Errorf("decode ack: %w", err)
	}
	status := constants.UploadStatus(ack.Status)
	if !constants.IsValidStatus(ack.Status) {
		status = constants.StatusUploaded
	}
	return store.UploadResult{ID: ack.ID, Status: status, Confidence: ack.Confidence}, nil
}
