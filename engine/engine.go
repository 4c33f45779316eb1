package engine

import (
	"errors"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Carmen-Shannon/oxy-frame/common"
	"github.com/Carmen-Shannon/oxy-frame/engine/frame"
	"github.com/Carmen-Shannon/oxy-frame/engine/profiler"
	"github.com/Carmen-Shannon/oxy-frame/engine/session"
)

// config holds the settings applied by EngineBuilderOption values.
type config struct {
	profilingEnabled bool
	engineTickRate   time.Duration
	renderFrameLimit time.Duration // minimum frame duration; 0 = uncapped
	maxFrames        uint64        // 0 = until the window closes
	tickCallback     func(deltaTime float32)
}

// engine implements the Engine interface.
// Coordinates the tick goroutine, the render goroutine and window event polling.
type engine[S any] struct {
	config

	sess  session.Session
	frame *frame.CompiledFrame[S]
	state func() S

	tickRateChannel chan time.Duration // Channel for dynamic tick rate updates

	running atomic.Bool
	wg      sync.WaitGroup

	quitChannel chan struct{}
	quitOnce    sync.Once // Ensures quitChannel is only closed once

	profiler *profiler.Profiler
	frames   atomic.Uint64

	errMu     sync.Mutex
	renderErr error
}

// Engine drives a compiled frame against a session: every render iteration it reads the world state, runs
// the frame and presents the back buffer.
type Engine[S any] interface {
	// Session returns the session the engine draws through.
	//
	// Returns:
	//   - session.Session: the session
	Session() session.Session

	// EnableProfiler enables performance profiling output to the log.
	EnableProfiler()

	// DisableProfiler disables performance profiling output.
	DisableProfiler()

	// SetTickRate sets the engine tick rate in frames per second.
	// The tick callback will be called at this rate for game logic updates.
	//
	// Parameters:
	//   - fps: target frames per second (defaults to 60 if <= 0)
	SetTickRate(fps float64)

	// SetTickCallback registers the function called each engine tick. Only takes effect before Run.
	// The callback runs on its own goroutine, concurrently with the state function.
	//
	// Parameters:
	//   - callback: function to call at the configured tick rate, receiving the delta time in seconds
	SetTickCallback(callback func(deltaTime float32))

	// SetRenderFrameLimit sets an optional render frame rate cap in frames per second.
	// Pass 0 to uncap the render loop (default). Only takes effect before Run.
	//
	// Parameters:
	//   - fps: maximum render frames per second (0 = uncapped)
	SetRenderFrameLimit(fps float64)

	// Frames returns how many frames have been presented.
	//
	// Returns:
	//   - uint64: the presented frame count
	Frames() uint64

	// Run polls window events on the calling goroutine and renders on a separate one until the window closes,
	// Quit is called, the frame limit is reached or a frame fails. With a GLFW backend Run must be called from
	// the goroutine that created the session.
	//
	// Returns:
	//   - error: the first frame or swap error, nil on a clean shutdown
	Run() error

	// Quit signals all engine goroutines to stop.
	// Safe to call multiple times; subsequent calls are no-ops.
	Quit()
}

// NewEngine creates a new Engine instance with the provided options.
// Options are applied directly to the engine configuration via the option-builder pattern.
//
// Parameters:
//   - sess: the session the frame was compiled against
//   - compiled: the frame run every render iteration
//   - state: returns the world state for the next frame; called on the render goroutine
//   - options: functional options for engine configuration (profiling, tick rate, etc.)
//
// Returns:
//   - Engine[S]: the newly created engine
func NewEngine[S any](sess session.Session, compiled *frame.CompiledFrame[S], state func() S, options ...EngineBuilderOption) Engine[S] {
	e := &engine[S]{
		config: config{
			engineTickRate: time.Second / 60,
		},
		sess:            sess,
		frame:           compiled,
		state:           state,
		tickRateChannel: make(chan time.Duration, 1),
		quitChannel:     make(chan struct{}),
		profiler:        profiler.NewProfiler(),
	}

	for _, opt := range options {
		opt(&e.config)
	}

	return e
}

func (e *engine[S]) Session() session.Session {
	return e.sess
}

func (e *engine[S]) Frames() uint64 {
	return e.frames.Load()
}

func (e *engine[S]) Run() error {
	if !e.running.CompareAndSwap(false, true) {
		return errors.New("engine is already running")
	}

	e.handle()

	win := e.sess.Window()
loop:
	for win.IsRunning() {
		select {
		case <-e.quitChannel:
			break loop
		default:
		}
		win.PollEvents()
		runtime.Gosched()
	}

	e.signalQuit()
	e.wg.Wait()

	e.errMu.Lock()
	defer e.errMu.Unlock()
	return e.renderErr
}

// Quit signals all engine goroutines to stop and shuts down the engine.
// Safe to call multiple times; subsequent calls are no-ops due to sync.Once.
func (e *engine[S]) Quit() {
	e.signalQuit()
}

// signalQuit closes the quit channel to signal all goroutines to exit.
// Uses sync.Once to ensure the channel is only closed once.
func (e *engine[S]) signalQuit() {
	e.quitOnce.Do(func() {
		close(e.quitChannel)
	})
}

// fail records the first render error and stops the engine.
func (e *engine[S]) fail(err error) {
	e.errMu.Lock()
	if e.renderErr == nil {
		e.renderErr = err
	}
	e.errMu.Unlock()
	common.Logger().Warn("render loop stopped", "error", err)
	e.signalQuit()
}

// handle launches the tick and render goroutines.
// Each goroutine is tracked by the engine's WaitGroup.
func (e *engine[S]) handle() {
	e.wg.Add(2)
	go e.handleEngine()
	go e.handleRender()
}

// handleEngine runs the fixed-rate engine tick loop in its own goroutine.
// Fires the tick callback at the configured tick rate and listens for dynamic rate changes
// via tickRateChannel. Exits when the quit channel is closed.
func (e *engine[S]) handleEngine() {
	defer e.wg.Done()

	ticker := time.NewTicker(e.engineTickRate)
	defer ticker.Stop()

	lastTick := time.Now()

	for {
		select {
		case <-e.quitChannel:
			return
		case <-ticker.C:
			now := time.Now()
			dt := float32(now.Sub(lastTick).Seconds())
			lastTick = now

			if e.tickCallback != nil {
				e.tickCallback(dt)
			}
		case newRate := <-e.tickRateChannel:
			ticker.Reset(newRate)
		}
	}
}

// handleRender runs the uncapped (or frame-limited) render loop in its own goroutine.
// Recovers from panics in the state function and stops the engine with the panic as its error.
func (e *engine[S]) handleRender() {
	defer e.wg.Done()
	defer func() {
		if r := recover(); r != nil {
			e.fail(fmt.Errorf("render goroutine recovered from panic: %v", r))
		}
	}()

	for {
		select {
		case <-e.quitChannel:
			return
		default:
		}

		frameStart := time.Now()

		if err := e.frame.Run(e.state()); err != nil {
			e.fail(fmt.Errorf("frame %d: %w", e.frames.Load(), err))
			return
		}
		if err := e.sess.SwapBuffers(); err != nil {
			e.fail(fmt.Errorf("failed to present frame %d: %w", e.frames.Load(), err))
			return
		}
		n := e.frames.Add(1)

		if e.profilingEnabled {
			e.profiler.Tick()
		}

		if e.maxFrames > 0 && n >= e.maxFrames {
			e.signalQuit()
			return
		}

		// Frame rate limiting
		if e.renderFrameLimit > 0 {
			if remaining := e.renderFrameLimit - time.Since(frameStart); remaining > 0 {
				time.Sleep(remaining)
			}
		}
	}
}

// EnableProfiler enables performance profiling output to the log. Only takes effect before Run.
func (e *engine[S]) EnableProfiler() {
	e.profilingEnabled = true
}

// DisableProfiler disables performance profiling output. Only takes effect before Run.
func (e *engine[S]) DisableProfiler() {
	e.profilingEnabled = false
}

// SetTickRate sets the engine tick rate in frames per second.
// If the engine is running, the change takes effect immediately.
func (e *engine[S]) SetTickRate(fps float64) {
	if fps <= 0 {
		fps = 60
	}
	newRate := time.Duration(float64(time.Second) / fps)

	if !e.running.Load() {
		e.engineTickRate = newRate
		return
	}

	// Non-blocking send - if channel is full, replace the pending value
	select {
	case e.tickRateChannel <- newRate:
	default:
		select {
		case <-e.tickRateChannel:
		default:
		}
		select {
		case e.tickRateChannel <- newRate:
		default:
		}
	}
}

func (e *engine[S]) SetTickCallback(callback func(deltaTime float32)) {
	e.tickCallback = callback
}

func (e *engine[S]) SetRenderFrameLimit(fps float64) {
	WithRenderFrameLimit(fps)(&e.config)
}
