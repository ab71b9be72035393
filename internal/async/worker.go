package async

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/joseph-ayodele/doccapture/internal/entity"
	"github.com/joseph-ayodele/doccapture/internal/extract"
	"github.com/joseph-ayodele/doccapture/internal/store"
)

// Extractor is the coordinator surface the worker drives.
type Extractor interface {
	Extract(ctx context.Context, in extract.Input) extract.Result
}

// PipelineEngine is the downstream business-rule collaborator. It
// consumes the image, the extraction result and an opaque pipeline id,
// and answers with the server's view of the upload. Everything else
// about it is out of scope here.
type PipelineEngine interface {
	Submit(ctx context.Context, in extract.Input, res extract.Result, pipelineID string) (store.UploadResult, error)
}

// UploadStore is the store surface the worker mutates.
type UploadStore interface {
	GetPendingUploads() []entity.PendingUpload
	CompletePendingUpload(localID string, result store.UploadResult) error
	FailPendingUpload(localID, message string) error
}

// Worker drains the pending-upload queue in the background: extract,
// hand off to the pipeline engine, then settle the store entry. One
// goroutine only; the store is a single-writer log.
type Worker struct {
	extractor Extractor
	engine    PipelineEngine
	uploads   UploadStore
	logger    *slog.Logger
	interval  time.Duration
	timeout   time.Duration

	kick chan struct{}
	wg   sync.WaitGroup
	once sync.Once

	mu     sync.Mutex
	closed bool
	stop   chan struct{}
}

type Option func(*Worker)

// WithInterval sets the periodic drain interval.
func WithInterval(d time.Duration) Option {
	return func(w *Worker) {
		if d > 0 {
			w.interval = d
		}
	}
}

// WithItemTimeout bounds the processing time per queued upload.
func WithItemTimeout(d time.Duration) Option {
	return func(w *Worker) {
		if d > 0 {
			w.timeout = d
		}
	}
}

func NewWorker(extractor Extractor, engine PipelineEngine, uploads UploadStore, logger *slog.Logger, opts ...Option) *Worker {
	if logger == nil {
		logger = slog.Default()
	}
	w := &Worker{
		extractor: extractor,
		engine:    engine,
		uploads:   uploads,
		logger:    logger,
		interval:  time.Minute,
		timeout:   3 * time.Minute,
		kick:      make(chan struct{}, 1),
		stop:      make(chan struct{}),
	}
	for _, o := range opts {
		o(w)
	}
	w.start()
	return w
}

func (w *Worker) start() {
	w.once.Do(func() {
		w.wg.Add(1)
		go func() {
			defer w.wg.Done()
			w.logger.Info("sync.worker.started", "interval", w.interval.String())
			ticker := time.NewTicker(w.interval)
			defer ticker.Stop()
			for {
				select {
				case <-w.stop:
					w.logger.Info("sync.worker.stopped")
					return
				case <-ticker.C:
					w.drain()
				case <-w.kick:
					w.drain()
				}
			}
		}()
	})
}

// Kick requests an immediate drain, e.g. when connectivity returns.
// Non-blocking; coalesces with an already-requested drain.
func (w *Worker) Kick() {
	select {
	case w.kick <- struct{}{}:
	default:
	}
}

func (w *Worker) drain() {
	pending := w.uploads.GetPendingUploads()
	if len(pending) == 0 {
		return
	}
	w.logger.Info("sync.drain.started", "pending", len(pending))
	for _, u := range pending {
		select {
		case <-w.stop:
			return
		default:
		}
		w.processOne(u)
	}
}

func (w *Worker) processOne(u entity.PendingUpload) {
	ctx, cancel := context.WithTimeout(context.Background(), w.timeout)
	defer cancel()

	in := extract.Input{URI: u.ImageURI}
	res := w.extractor.Extract(ctx, in)
	if !res.Success {
		w.logger.Warn("sync.extract.failed", "local_id", u.LocalID, "error", res.Error)
		if err := w.uploads.FailPendingUpload(u.LocalID, res.Error); err != nil {
			w.logger.Error("sync.store.fail_update_error", "local_id", u.LocalID, "error", err)
		}
		return
	}

	ack, err := w.engine.Submit(ctx, in, res, u.PipelineID)
	if err != nil {
		w.logger.Warn("sync.submit.failed", "local_id", u.LocalID, "error", err)
		if ferr := w.uploads.FailPendingUpload(u.LocalID, err.Error()); ferr != nil {
			w.logger.Error("sync.store.fail_update_error", "local_id", u.LocalID, "error", ferr)
		}
		return
	}

	if err := w.uploads.CompletePendingUpload(u.LocalID, ack); err != nil {
		w.logger.Error("sync.store.complete_error", "local_id", u.LocalID, "error", err)
		return
	}
	w.logger.Info("sync.upload.completed", "local_id", u.LocalID, "id", ack.ID, "status", string(ack.Status))
}

// Shutdown stops the worker and waits for the in-flight drain, bounded
// by ctx.
func (w *Worker) Shutdown(ctx context.Context) {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	w.closed = true
	close(w.stop)
	w.mu.Unlock()

	done := make(chan struct{})
	go func() { defer close(done); w.wg.Wait() }()

	select {
	case <-ctx.Done():
		w.logger.Warn("sync.shutdown.interrupted")
	case <-done:
		w.logger.Info("sync.shutdown.complete")
	}
}
