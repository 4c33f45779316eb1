package frame

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-frame/common"
	"github.com/Carmen-Shannon/oxy-frame/engine/session"
)

// compiledEntry is one alternative with its draws forced.
type compiledEntry[S any] struct {
	guards []func(S) bool
	run    func(s S) error
}

func (e compiledEntry[S]) accepts(s S) bool {
	for _, g := range e.guards {
		if !g(s) {
			return false
		}
	}
	return true
}

// CompiledFrame is an immutable, ordered list of guarded closures produced by Compile.
// It is safe to Run from multiple goroutines; the draws themselves always execute on the session's render thread.
type CompiledFrame[S any] struct {
	sess    session.Session
	entries []compiledEntry[S]
}

// Compile records frag, then forces every drawcall factory and initializes every registered IO exactly once
// on the session's render thread. Must not be called from the render thread.
//
// Parameters:
//   - sess: the session the frame will draw through
//   - frag: the recording
//
// Returns:
//   - *CompiledFrame[S]: the compiled frame
//   - error: the first factory or IO init error, or common.ErrSessionClosed
func Compile[S any](sess session.Session, frag Fragment[S]) (*CompiledFrame[S], error) {
	st := newRecordState()
	alts := frag.recordInto(st)

	var entries []compiledEntry[S]
	err := sess.DoSync(func() error {
		var err error
		entries, err = compileAlternatives(sess, st, alts)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to compile frame: %w", err)
	}

	common.Logger().Debug("frame compiled", "alternatives", len(entries), "drawcalls", st.drawcalls, "names", st.names)
	return &CompiledFrame[S]{sess: sess, entries: entries}, nil
}

// compileAlternatives forces the factories and IO inits of alts on the calling render thread.
// A drawcall shared by several alternatives is forced once and its result reused. IO inits are tracked on st,
// so an IO registered both outside and inside a nested dispatch is still initialized once.
func compileAlternatives[S any](sess session.Session, st *recordState, alts []alternative[S]) ([]compiledEntry[S], error) {
	actions := make(map[int]Action[S])
	initialized := st.initialized

	entries := make([]compiledEntry[S], 0, len(alts))
	for _, alt := range alts {
		var binds []func(S) error
		for _, e := range alt.io {
			if !initialized[e.name] {
				if e.io.Init != nil {
					if err := e.io.Init(sess); err != nil {
						return nil, fmt.Errorf("render io %d: %w", e.name, err)
					}
				}
				initialized[e.name] = true
			}
			if e.io.Bind != nil {
				binds = append(binds, e.io.Bind)
			}
		}

		draws := make([]indexedAction[S], 0, len(alt.draws))
		for _, d := range alt.draws {
			action, ok := actions[d.index]
			if !ok {
				var err error
				action, err = d.factory(sess)
				if err != nil {
					return nil, fmt.Errorf("drawcall %d: %w", d.index, err)
				}
				actions[d.index] = action
			}
			draws = append(draws, indexedAction[S]{index: d.index, action: action})
		}

		entries = append(entries, compiledEntry[S]{guards: alt.guards, run: replay(binds, draws)})
	}
	return entries, nil
}

// dispatch compiles alts and returns a closure that runs the first alternative accepting its state, or
// nothing. It runs on the render thread already, so unlike Run it never goes through DoSync.
func dispatch[S any](sess session.Session, st *recordState, alts []alternative[S]) (Action[S], error) {
	entries, err := compileAlternatives(sess, st, alts)
	if err != nil {
		return nil, err
	}
	return func(s S) error {
		for _, e := range entries {
			if e.accepts(s) {
				return e.run(s)
			}
		}
		return nil
	}, nil
}

type indexedAction[S any] struct {
	index  int
	action Action[S]
}

// replay builds the closure run for one alternative: bindings first, then draws in recorded order.
func replay[S any](binds []func(S) error, draws []indexedAction[S]) func(S) error {
	return func(s S) error {
		for _, b := range binds {
			if err := b(s); err != nil {
				return fmt.Errorf("failed to bind render io: %w", err)
			}
		}
		for _, d := range draws {
			if d.action == nil {
				continue
			}
			if err := d.action(s); err != nil {
				return fmt.Errorf("drawcall %d: %w", d.index, err)
			}
		}
		return nil
	}
}

// Run executes the first alternative whose guards accept s, on the session's render thread, and skips the
// rest. When no alternative accepts s nothing runs and Run returns nil.
//
// Parameters:
//   - s: the world state
//
// Returns:
//   - error: the first failing draw or binding, or common.ErrSessionClosed
func (f *CompiledFrame[S]) Run(s S) error {
	for _, e := range f.entries {
		if e.accepts(s) {
			return f.sess.DoSync(func() error { return e.run(s) })
		}
	}
	return nil
}

// Alternatives returns the number of guarded alternatives the frame dispatches between.
func (f *CompiledFrame[S]) Alternatives() int {
	return len(f.entries)
}
