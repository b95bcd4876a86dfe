package livepreview

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"slices"
	"sync"
	"time"

	"github.com/jonathan/resume-builder/internal/types"
	"go.uber.org/zap"
	"golang.org/x/crypto/blake2b"
)

// DefaultDebounce is the quiet period between the last update and a render.
const DefaultDebounce = 1000 * time.Millisecond

// PreviewRenderer is the renderer surface the Coordinator drives.
type PreviewRenderer interface {
	Initialize(ctx context.Context) error
	RenderToSVG(ctx context.Context, req RenderRequest) ([]string, error)
}

// PreviewState is what a preview session displays.
type PreviewState struct {
	IsLoading     bool     `json:"isLoading"`
	Error         string   `json:"error,omitempty"`
	SVGContent    []string `json:"pages,omitempty"`
	IsInitialized bool     `json:"isInitialized"`
}

func (s PreviewState) clone() PreviewState {
	s.SVGContent = slices.Clone(s.SVGContent)
	return s
}

// CoordinatorOptions configures a Coordinator.
type CoordinatorOptions struct {
	Debounce time.Duration
	Enabled  bool
	// OnChange receives a copy of the state after every transition. It is
	// called with the coordinator lock held and must not call back into the
	// Coordinator.
	OnChange func(PreviewState)
	Logger   *zap.Logger
}

// Coordinator debounces edits into renders for one preview session. Each
// issued render gets a generation number; results of superseded renders are
// discarded and their contexts cancelled.
type Coordinator struct {
	renderer PreviewRenderer
	debounce time.Duration
	onChange func(PreviewState)
	logger   *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu           sync.Mutex
	state        PreviewState
	enabled      bool
	initStarted  bool
	closed       bool
	latest       *RenderRequest
	timer        *time.Timer
	timerSeq     uint64
	lastSnapshot string
	generation   uint64
	cancelRender context.CancelFunc
}

// NewCoordinator creates a coordinator. Call Start to begin initialization.
func NewCoordinator(renderer PreviewRenderer, opts CoordinatorOptions) *Coordinator {
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Coordinator{
		renderer: renderer,
		debounce: opts.Debounce,
		onChange: opts.OnChange,
		logger:   opts.Logger,
		enabled:  opts.Enabled,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// State returns a copy of the current state.
func (c *Coordinator) State() PreviewState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.clone()
}

// Start initializes the renderer once when enabled. Repeated or concurrent
// calls while an initialization is running or has succeeded do nothing.
func (c *Coordinator) Start() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.startLocked()
}

func (c *Coordinator) startLocked() {
	if !c.enabled || c.initStarted || c.closed || c.state.IsInitialized {
		return
	}
	c.initStarted = true
	c.wg.Add(1)
	go c.initialize()
}

func (c *Coordinator) initialize() {
	defer c.wg.Done()
	err := c.renderer.Initialize(c.ctx)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	if err != nil {
		c.initStarted = false
		c.state.Error = "Failed to initialize preview: " + err.Error()
		c.logger.Error("Preview initialization failed", zap.Error(err))
		c.notifyLocked()
		return
	}

	c.state.IsInitialized = true
	c.state.Error = ""
	c.notifyLocked()
	if c.enabled && c.latest != nil {
		c.issueLocked(false)
	}
}

// SetEnabled turns the preview on or off. Enabling an uninitialized
// coordinator starts initialization.
func (c *Coordinator) SetEnabled(enabled bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || c.enabled == enabled {
		return
	}
	c.enabled = enabled
	if !enabled {
		c.stopTimerLocked()
		return
	}
	if !c.state.IsInitialized {
		c.startLocked()
		return
	}
	if c.latest != nil {
		c.armLocked()
	}
}

// Update records new input and re-arms the debounce timer. Input received
// before initialization completes is rendered once it does; after a failed
// initialization it retries.
func (c *Coordinator) Update(formData types.FormData, templateID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.latest = &RenderRequest{FormData: formData, TemplateID: templateID}
	if !c.enabled {
		return
	}
	if !c.state.IsInitialized {
		c.startLocked()
		return
	}
	c.armLocked()
}

// Refresh forgets the last rendered input and renders the latest input
// immediately, retrying a failed initialization first.
func (c *Coordinator) Refresh() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.lastSnapshot = ""
	if !c.enabled {
		return
	}
	if !c.state.IsInitialized {
		c.startLocked()
		return
	}
	c.stopTimerLocked()
	c.issueLocked(true)
}

// Close stops pending timers, cancels in-flight work and waits for it.
func (c *Coordinator) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.stopTimerLocked()
	c.mu.Unlock()

	c.cancel()
	c.wg.Wait()
}

func (c *Coordinator) armLocked() {
	c.stopTimerLocked()
	seq := c.timerSeq
	c.timer = time.AfterFunc(c.debounce, func() { c.fire(seq) })
}

// stopTimerLocked stops the timer and invalidates a callback that already
// started.
func (c *Coordinator) stopTimerLocked() {
	c.timerSeq++
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
}

func (c *Coordinator) fire(seq uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || seq != c.timerSeq {
		return
	}
	c.timer = nil
	c.issueLocked(false)
}

// issueLocked starts a render of the latest input unless it matches the last
// rendered snapshot and force is false.
func (c *Coordinator) issueLocked(force bool) {
	if c.latest == nil {
		return
	}
	req := *c.latest

	snap, err := snapshot(req)
	if err != nil {
		c.state.Error = "Failed to render preview: " + err.Error()
		c.notifyLocked()
		return
	}
	if !force && snap == c.lastSnapshot {
		return
	}
	c.lastSnapshot = snap

	if c.cancelRender != nil {
		c.cancelRender()
	}
	c.generation++
	gen := c.generation
	ctx, cancel := context.WithCancel(c.ctx)
	c.cancelRender = cancel

	c.state.IsLoading = true
	c.state.Error = ""
	c.notifyLocked()

	c.wg.Add(1)
	go c.render(ctx, cancel, gen, req)
}

func (c *Coordinator) render(ctx context.Context, cancel context.CancelFunc, gen uint64, req RenderRequest) {
	defer c.wg.Done()
	defer cancel()

	pages, err := c.renderer.RenderToSVG(ctx, req)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || gen != c.generation {
		c.logger.Debug("Discarding superseded preview render", zap.Uint64("generation", gen))
		return
	}
	c.cancelRender = nil
	c.state.IsLoading = false
	if err != nil {
		c.state.Error = "Failed to render preview: " + err.Error()
		c.logger.Warn("Preview render failed",
			zap.String("template_id", req.TemplateID),
			zap.Error(err))
	} else {
		c.state.SVGContent = pages
		c.state.Error = ""
	}
	c.notifyLocked()
}

func (c *Coordinator) notifyLocked() {
	if c.onChange != nil {
		c.onChange(c.state.clone())
	}
}

// snapshot digests the serialized render input.
func snapshot(req RenderRequest) (string, error) {
	data, err := json.Marshal(req)
	if err != nil {
		return "", err
	}
	sum := blake2b.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}
