package capture

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/joseph-ayodele/doccapture/internal/quality"
)

// State is the controller's position in the auto-capture cycle.
type State string

const (
	StateIdle         State = "idle"
	StateAccumulating State = "accumulating"
	StateCountdown    State = "countdown"
	StateTriggering   State = "triggering"
)

// CaptureFunc is the registered snapshot callback. It is invoked exactly
// once per trigger; the controller returns to Idle when it completes,
// whether it succeeded or not.
type CaptureFunc func(ctx context.Context) error

// Controller decides when frame quality has been good for long enough to
// fire an automatic capture. It owns its countdown timer exclusively: no
// callback fires after Close.
type Controller struct {
	mu        sync.Mutex
	state     State
	stable    int
	gen       uint64 // invalidates in-flight timers on cancel/reset
	timer     *time.Timer
	deadline  time.Time
	closed    bool
	threshold int
	delay     time.Duration
	capture   CaptureFunc
	logger    *slog.Logger
}

type Option func(*Controller)

// WithStabilityThreshold sets the consecutive passing frames required
// before the countdown starts.
func WithStabilityThreshold(n int) Option {
	return func(c *Controller) {
		if n > 0 {
			c.threshold = n
		}
	}
}

// WithAutoCaptureDelay sets the countdown duration before the capture
// callback fires.
func WithAutoCaptureDelay(d time.Duration) Option {
	return func(c *Controller) {
		if d > 0 {
			c.delay = d
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(c *Controller) {
		if l != nil {
			c.logger = l
		}
	}
}

func NewController(capture CaptureFunc, opts ...Option) *Controller {
	c := &Controller{
		state:     StateIdle,
		threshold: 5,
		delay:     time.Second,
		capture:   capture,
		logger:    slog.Default(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// ProcessFrame feeds one analyzed frame into the state machine. hasEdges
// reports whether the external edge detector found a document quad.
// Frames arriving while Triggering are ignored, not queued.
func (c *Controller) ProcessFrame(m quality.Metrics, hasEdges bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed || c.state == StateTriggering {
		return
	}

	if !hasEdges || !quality.Acceptable(m) {
		if c.state != StateIdle {
			c.logger.Debug("capture.frame.failed", "state", string(c.state), "stable", c.stable)
		}
		c.resetLocked()
		return
	}

	c.stable++
	if c.state == StateIdle {
		c.state = StateAccumulating
	}
	if c.state == StateAccumulating && c.stable >= c.threshold {
		c.state = StateCountdown
		c.deadline = time.Now().Add(c.delay)
		gen := c.gen
		c.timer = time.AfterFunc(c.delay, func() { c.fire(gen) })
		c.logger.Info("capture.countdown.started", "stable_frames", c.stable, "delay_ms", c.delay.Milliseconds())
	}
}

// fire transitions Countdown -> Triggering when the timer expires. A stale
// generation means the countdown was cancelled after the timer was armed.
func (c *Controller) fire(gen uint64) {
	c.mu.Lock()
	if c.closed || gen != c.gen || c.state != StateCountdown {
		c.mu.Unlock()
		return
	}
	c.state = StateTriggering
	c.timer = nil
	c.deadline = time.Time{}
	capture := c.capture
	c.mu.Unlock()

	c.logger.Info("capture.trigger")
	go func() {
		var err error
		if capture != nil {
			err = capture(context.Background())
		}
		c.mu.Lock()
		if !c.closed && c.state == StateTriggering {
			c.resetLocked()
		}
		c.mu.Unlock()
		if err != nil {
			c.logger.Error("capture.callback.failed", "error", err)
		} else {
			c.logger.Info("capture.callback.ok")
		}
	}()
}

// Countdown returns the milliseconds remaining before the capture fires,
// or -1 when no countdown is running. For UI feedback only.
func (c *Controller) Countdown() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateCountdown {
		return -1
	}
	remaining := time.Until(c.deadline).Milliseconds()
	if remaining < 0 {
		remaining = 0
	}
	return remaining
}

// State returns the current machine state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Cancel aborts any accumulation or countdown and returns to Idle.
// Idempotent; safe to call from any state.
func (c *Controller) Cancel() {
	c.mu.Lock()
	c.resetLocked()
	c.mu.Unlock()
}

// Reset is an alias for Cancel kept for callers that tear down between
// documents.
func (c *Controller) Reset() {
	c.Cancel()
}

// Close cancels everything and permanently disables the controller. No
// capture callback fires after Close returns.
func (c *Controller) Close() {
	c.mu.Lock()
	c.closed = true
	c.resetLocked()
	c.state = StateIdle
	c.mu.Unlock()
}

// resetLocked clears counters and timers. Callers hold c.mu.
func (c *Controller) resetLocked() {
	c.gen++
	c.stable = 0
	c.state = StateIdle
	c.deadline = time.Time{}
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
}
