package async

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/doccapture/constants"
	"github.com/joseph-ayodele/doccapture/internal/entity"
	"github.com/joseph-ayodele/doccapture/internal/extract"
	"github.com/joseph-ayodele/doccapture/internal/store"
)

type stubExtractor struct {
	res extract.Result
}

func (e *stubExtractor) Extract(context.Context, extract.Input) extract.Result {
	return e.res
}

type stubPipeline struct {
	ack store.UploadResult
	err error
}

func (p *stubPipeline) Submit(context.Context, extract.Input, extract.Result, string) (store.UploadResult, error) {
	return p.ack, p.err
}

func newUploadStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.NewStore(store.NewMemoryBackend(), "test", nil)
	require.NoError(t, err)
	return s
}

func TestWorkerCompletesQueuedUpload(t *testing.T) {
	uploads := newUploadStore(t)
	require.NoError(t, uploads.AddPendingUpload(entity.PendingUpload{
		LocalID: "a", ImageURI: "file:///a.jpg", PipelineID: "p1",
	}))

	conf := 0.9
	extractor := &stubExtractor{res: extract.Result{Success: true, Confidence: 0.9, RawText: "ok"}}
	engine := &stubPipeline{ack: store.UploadResult{ID: "srv-1", Status: constants.StatusUploaded, Confidence: &conf}}

	w := NewWorker(extractor, engine, uploads, nil, WithInterval(time.Hour))
	defer w.Shutdown(context.Background())
	w.Kick()

	require.Eventually(t, func() bool {
		return len(uploads.GetPendingUploads()) == 0
	}, 2*time.Second, 10*time.Millisecond)

	hist := uploads.GetHistory()
	require.Len(t, hist, 1)
	assert.Equal(t, "srv-1", hist[0].ID)
	assert.Equal(t, constants.StatusUploaded, hist[0].Status)
}

func TestWorkerLeavesFailedUploadQueued(t *testing.T) {
	uploads := newUploadStore(t)
	require.NoError(t, uploads.AddPendingUpload(entity.PendingUpload{
		LocalID: "a", ImageURI: "file:///a.jpg", PipelineID: "p1",
	}))

	extractor := &stubExtractor{res: extract.Result{Success: false, Error: "no backend"}}
	w := NewWorker(extractor, &stubPipeline{}, uploads, nil, WithInterval(time.Hour))
	defer w.Shutdown(context.Background())
	w.Kick()

	require.Eventually(t, func() bool {
		u := uploads.GetPendingUploads()
		return len(u) == 1 && u[0].RetryCount == 1
	}, 2*time.Second, 10*time.Millisecond)

	hist := uploads.GetHistory()
	require.Len(t, hist, 1)
	assert.Equal(t, constants.StatusError, hist[0].Status)
	assert.Equal(t, "no backend", hist[0].Error)
}

func TestWorkerFailsOnSubmitError(t *testing.T) {
	uploads := newUploadStore(t)
	require.NoError(t, uploads.AddPendingUpload(entity.PendingUpload{
		LocalID: "a", ImageURI: "file:///a.jpg", PipelineID: "p1",
	}))

	extractor := &stubExtractor{res: extract.Result{Success: true, Confidence: 0.8}}
	engine := &stubPipeline{err: errors.New("pipeline unreachable")}
	w := NewWorker(extractor, engine, uploads, nil, WithInterval(time.Hour))
	defer w.Shutdown(context.Background())
	w.Kick()

	require.Eventually(t, func() bool {
		u := uploads.GetPendingUploads()
		return len(u) == 1 && u[0].RetryCount == 1
	}, 2*time.Second, 10*time.Millisecond)
}

func TestWorkerShutdownIsIdempotent(t *testing.T) {
	uploads := newUploadStore(t)
	w := NewWorker(&stubExtractor{}, &stubPipeline{}, uploads, nil, WithInterval(time.Hour))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	w.Shutdown(ctx)
	w.Shutdown(ctx)
}
