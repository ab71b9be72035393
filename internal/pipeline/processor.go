package pipeline

import (
	"context"
	"image"
	"log/slog"

	"github.com/joseph-ayodele/doccapture/internal/async"
	"github.com/joseph-ayodele/doccapture/internal/common"
	"github.com/joseph-ayodele/doccapture/internal/entity"
	"github.com/joseph-ayodele/doccapture/internal/extract"
	"github.com/joseph-ayodele/doccapture/internal/prepare"
	"github.com/joseph-ayodele/doccapture/internal/store"
)

// UploadStore is the store surface the processor needs.
type UploadStore interface {
	AddPendingUpload(u entity.PendingUpload) error
	AddToHistory(item entity.ScanHistoryItem) error
	CompletePendingUpload(localID string, result store.UploadResult) error
	FailPendingUpload(localID, message string) error
}

// Processor coordinates one captured frame through preparation and then
// either immediate extraction (online) or the offline queue. The sync
// worker later drains whatever was queued.
type Processor struct {
	Preparer  *prepare.Preparer
	Extractor async.Extractor
	Engine    async.PipelineEngine
	Blobs     BlobStore
	Uploads   UploadStore
	// Online reports current connectivity; nil means always offline.
	Online func() bool
	Logger *slog.Logger
}

func NewProcessor(preparer *prepare.Preparer, extractor async.Extractor, engine async.PipelineEngine,
	blobs BlobStore, uploads UploadStore, online func() bool, logger *slog.Logger) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Processor{
		Preparer:  preparer,
		Extractor: extractor,
		Engine:    engine,
		Blobs:     blobs,
		Uploads:   uploads,
		Online:    online,
		Logger:    logger,
	}
}

// ProcessCapture normalizes a captured image, persists the prepared
// blob, and either extracts right away or queues the upload. The
// document's ProcessedURI and Dimensions are set as a side effect.
func (p *Processor) ProcessCapture(ctx context.Context, img image.Image, doc *entity.ScannedDocument, pipelineID string) error {
	opts := prepare.Options{Edges: doc.Edges}
	prepared, err := p.Preparer.Prepare(img, opts)
	if err != nil {
		p.Logger.Error("processor.prepare.failed", "local_id", doc.LocalID, "err", err)
		return err
	}

	uri, err := p.Blobs.SaveImage(doc.LocalID, prepared.Data)
	if err != nil {
		p.Logger.Error("processor.blob.failed", "local_id", doc.LocalID, "err", err)
		return err
	}
	doc.ProcessedURI = uri
	doc.Dimensions = entity.Dimensions{Width: prepared.Width, Height: prepared.Height}
	p.Logger.Info("processor.prepare.ok",
		"local_id", doc.LocalID,
		"width", prepared.Width,
		"height", prepared.Height,
		"bytes", len(prepared.Data),
	)

	upload := entity.PendingUpload{
		LocalID:    doc.LocalID,
		ImageURI:   uri,
		PipelineID: pipelineID,
		CreatedAt:  doc.CapturedAt,
	}
	if err := p.Uploads.AddPendingUpload(upload); err != nil {
		return err
	}

	if p.Online == nil || !p.Online() {
		p.Logger.Info("processor.queued_offline", "local_id", doc.LocalID)
		return nil
	}

	in := extract.Input{Data: prepared.Data, URI: uri, Width: prepared.Width, Height: prepared.Height}
	res := p.Extractor.Extract(ctx, in)
	if !res.Success {
		// Leave it queued; the sync worker retries later.
		if err := p.Uploads.FailPendingUpload(doc.LocalID, res.Error); err != nil {
			return err
		}
		return nil
	}

	ack, err := p.Engine.Submit(ctx, in, res, pipelineID)
	if err != nil {
		p.Logger.Warn("processor.submit.failed", "local_id", doc.LocalID, "err", err)
		return p.Uploads.FailPendingUpload(doc.LocalID, err.Error())
	}
	if err := p.Uploads.CompletePendingUpload(doc.LocalID, ack); err != nil {
		return common.WrapError(err, "complete upload")
	}
	p.Logger.Info("processor.upload.ok", "local_id", doc.LocalID, "id", ack.ID)
	return nil
}
