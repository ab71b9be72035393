package pipeline

import (
	"context"
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/doccapture/constants"
	"github.com/joseph-ayodele/doccapture/internal/entity"
	"github.com/joseph-ayodele/doccapture/internal/extract"
	"github.com/joseph-ayodele/doccapture/internal/prepare"
	"github.com/joseph-ayodele/doccapture/internal/quality"
	"github.com/joseph-ayodele/doccapture/internal/store"
)

type memBlobs map[string][]byte

func (m memBlobs) SaveImage(localID string, data []byte) (string, error) {
	m[localID] = data
	return "mem://" + localID, nil
}

type stubExtractor struct {
	res extract.Result
}

func (e *stubExtractor) Extract(context.Context, extract.Input) extract.Result { return e.res }

type stubEngine struct {
	ack store.UploadResult
}

func (p *stubEngine) Submit(context.Context, extract.Input, extract.Result, string) (store.UploadResult, error) {
	return p.ack, nil
}

func captureImage() image.Image {
	img := image.NewRGBA(image.Rect(0, 0, 200, 100))
	for y := 0; y < 100; y++ {
		for x := 0; x < 200; x++ {
			img.SetRGBA(x, y, color.RGBA{R: 200, G: 200, B: 200, A: 255})
		}
	}
	return img
}

func newProcessor(t *testing.T, extractor *stubExtractor, engine *stubEngine, online bool) (*Processor, *store.Store, memBlobs) {
	t.Helper()
	uploads, err := store.NewStore(store.NewMemoryBackend(), "test", nil)
	require.NoError(t, err)
	preparer, err := prepare.NewPreparer(constants.PresetMedium, nil)
	require.NoError(t, err)
	blobs := memBlobs{}
	p := NewProcessor(preparer, extractor, engine, blobs, uploads, func() bool { return online }, nil)
	return p, uploads, blobs
}

func TestProcessCaptureOffline(t *testing.T) {
	p, uploads, blobs := newProcessor(t, &stubExtractor{}, &stubEngine{}, false)

	doc := entity.NewScannedDocument("cam://frame", quality.Metrics{Overall: 0.8}, entity.Dimensions{}, 1)
	require.NoError(t, p.ProcessCapture(context.Background(), captureImage(), doc, "p1"))

	assert.Equal(t, "mem://"+doc.LocalID, doc.ProcessedURI)
	assert.Equal(t, 200, doc.Dimensions.Width)
	assert.NotEmpty(t, blobs[doc.LocalID])

	pend := uploads.GetPendingUploads()
	require.Len(t, pend, 1, "offline capture stays queued")
	assert.Equal(t, doc.LocalID, pend[0].LocalID)

	hist := uploads.GetHistory()
	require.Len(t, hist, 1)
	assert.Equal(t, constants.StatusPending, hist[0].Status)
}

func TestProcessCaptureOnlineSuccess(t *testing.T) {
	extractor := &stubExtractor{res: extract.Result{Success: true, Confidence: 0.9}}
	engine := &stubEngine{ack: store.UploadResult{ID: "srv-7", Status: constants.StatusUploaded}}
	p, uploads, _ := newProcessor(t, extractor, engine, true)

	doc := entity.NewScannedDocument("cam://frame", quality.Metrics{Overall: 0.8}, entity.Dimensions{}, 1)
	require.NoError(t, p.ProcessCapture(context.Background(), captureImage(), doc, "p1"))

	assert.Empty(t, uploads.GetPendingUploads(), "online success clears the queue entry")
	hist := uploads.GetHistory()
	require.Len(t, hist, 1)
	assert.Equal(t, "srv-7", hist[0].ID)
	assert.Equal(t, constants.StatusUploaded, hist[0].Status)
}

func TestProcessCaptureOnlineExtractionFailure(t *testing.T) {
	extractor := &stubExtractor{res: extract.Result{Success: false, Error: "service down"}}
	p, uploads, _ := newProcessor(t, extractor, &stubEngine{}, true)

	doc := entity.NewScannedDocument("cam://frame", quality.Metrics{Overall: 0.8}, entity.Dimensions{}, 1)
	require.NoError(t, p.ProcessCapture(context.Background(), captureImage(), doc, "p1"))

	pend := uploads.GetPendingUploads()
	require.Len(t, pend, 1, "failed extraction leaves the upload queued for the sync worker")
	assert.Equal(t, 1, pend[0].RetryCount)

	hist := uploads.GetHistory()
	require.Len(t, hist, 1)
	assert.Equal(t, constants.StatusError, hist[0].Status)
}
