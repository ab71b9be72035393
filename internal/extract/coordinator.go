package extract

import (
	"context"
	"log/slog"
	"time"

	"github.com/joseph-ayodele/doccapture/internal/common"
)

// Mode is the statically chosen extraction strategy. No runtime
// capability probing: the composition root decides once.
type Mode string

const (
	ModeRemote Mode = "remote"
	ModeLocal  Mode = "local"
	ModeHybrid Mode = "hybrid"
)

// ParseMode maps a config string onto a Mode.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeRemote, ModeLocal, ModeHybrid:
		return Mode(s), nil
	}
	return "", common.NewAppError("EXTRACT_ERROR", "unknown extraction mode: "+s, common.ErrInvalidInput)
}

// Coordinator dispatches extraction to the configured backend(s).
// Extract never returns a Go error: every failure path degrades to a
// well-formed Result with Success=false so callers can offer retry
// without special-casing exceptions.
type Coordinator struct {
	mode   Mode
	remote Backend
	local  Backend
	logger *slog.Logger
}

func NewCoordinator(mode Mode, remote, local Backend, logger *slog.Logger) (*Coordinator, error) {
	if logger == nil {
		logger = slog.Default()
	}
	switch mode {
	case ModeRemote:
		if remote == nil {
			return nil, common.NewAppError("EXTRACT_ERROR", "remote mode requires a remote backend", common.ErrNoBackend)
		}
	case ModeLocal:
		if local == nil {
			return nil, common.NewAppError("EXTRACT_ERROR", "local mode requires a local backend", common.ErrNoBackend)
		}
	case ModeHybrid:
		// Hybrid tolerates either backend missing; with neither, every
		// call yields the terminal no-backend failure.
	default:
		return nil, common.NewAppError("EXTRACT_ERROR", "unknown extraction mode: "+string(mode), common.ErrInvalidInput)
	}
	return &Coordinator{mode: mode, remote: remote, local: local, logger: logger}, nil
}

func (c *Coordinator) Mode() Mode { return c.mode }

// Extract runs the configured strategy and always resolves.
func (c *Coordinator) Extract(ctx context.Context, in Input) Result {
	start := time.Now()
	res := c.dispatch(ctx, in)
	res.ProcessingTime = float64(time.Since(start).Milliseconds())
	if res.Fields == nil {
		res.Fields = []Field{}
	}
	c.logger.Info("extract.done",
		"mode", string(c.mode),
		"success", res.Success,
		"confidence", res.Confidence,
		"fields", len(res.Fields),
		"elapsed_ms", res.ProcessingTime,
	)
	return res
}

func (c *Coordinator) dispatch(ctx context.Context, in Input) Result {
	switch c.mode {
	case ModeRemote:
		return c.run(ctx, c.remote, in)
	case ModeLocal:
		return c.run(ctx, c.local, in)
	case ModeHybrid:
		if c.remote != nil {
			res := c.run(ctx, c.remote, in)
			if res.Success {
				return res
			}
			if c.local == nil {
				return res
			}
			c.logger.Warn("extract.hybrid.fallback", "remote_error", res.Error)
		}
		if c.local != nil {
			return c.run(ctx, c.local, in)
		}
		return failure(common.ErrNoBackend.Error())
	}
	return failure(common.ErrNoBackend.Error())
}

func (c *Coordinator) run(ctx context.Context, b Backend, in Input) Result {
	if b == nil {
		return failure(common.ErrNoBackend.Error())
	}
	res, err := b.Extract(ctx, in)
	if err != nil {
		c.logger.Error("extract.backend.failed", "backend", b.Name(), "error", err)
		return failure(err.Error())
	}
	return res
}

// failure is the single shape every failure path collapses to.
func failure(msg string) Result {
	return Result{
		Success:    false,
		Fields:     []Field{},
		Confidence: 0,
		Error:      msg,
	}
}
