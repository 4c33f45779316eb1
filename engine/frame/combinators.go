package frame

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-frame/engine/session"
)

// Either holds exactly one of a Left or a Right value.
type Either[L any, R any] struct {
	left    L
	right   R
	isRight bool
}

// Left builds an Either holding v on the left.
func Left[L any, R any](v L) Either[L, R] {
	return Either[L, R]{left: v}
}

// Right builds an Either holding v on the right.
func Right[L any, R any](v R) Either[L, R] {
	return Either[L, R]{right: v, isRight: true}
}

// IsRight reports which side is held.
func (e Either[L, R]) IsRight() bool { return e.isRight }

// Left returns the left value and whether it is held.
func (e Either[L, R]) Left() (L, bool) { return e.left, !e.isRight }

// Right returns the right value and whether it is held.
func (e Either[L, R]) Right() (R, bool) { return e.right, e.isRight }

// lift rewrites alternatives recorded over T to read S through f.
func lift[S any, T any](alts []alternative[T], f func(S) T) []alternative[S] {
	out := make([]alternative[S], len(alts))
	for i, a := range alts {
		lifted := alternative[S]{
			guards: make([]func(S) bool, len(a.guards)),
			io:     make([]ioEntry[S], len(a.io)),
			draws:  make([]drawEntry[S], len(a.draws)),
		}
		for j, g := range a.guards {
			lifted.guards[j] = func(s S) bool { return g(f(s)) }
		}
		for j, e := range a.io {
			lifted.io[j] = ioEntry[S]{name: e.name, io: IO[S]{Init: e.io.Init, Bind: liftBind(e.io.Bind, f)}}
		}
		for j, d := range a.draws {
			lifted.draws[j] = drawEntry[S]{index: d.index, factory: liftFactory(d.factory, f)}
		}
		out[i] = lifted
	}
	return out
}

func liftBind[S any, T any](bind func(T) error, f func(S) T) func(S) error {
	if bind == nil {
		return nil
	}
	return func(s S) error { return bind(f(s)) }
}

func liftFactory[S any, T any](factory DrawcallFactory[T], f func(S) T) DrawcallFactory[S] {
	return func(sess session.Session) (Action[S], error) {
		action, err := factory(sess)
		if err != nil {
			return nil, err
		}
		return func(s S) error { return action(f(s)) }, nil
	}
}

// Project records body against the projected state f(s).
//
// Parameters:
//   - r: the recorder to append to
//   - f: pure projection from the outer state
//   - body: the recording over the projected state
func Project[S any, T any](r *Recorder[S], f func(S) T, body Fragment[T]) {
	r.splice(lift(body.recordInto(r.state), f))
}

// ProjectOptional records body against the value produced by f, when there is one. States for which f reports
// false skip body and continue with the rest of the recording; this is not a failure.
//
// The body is embedded as a single draw that dispatches between its own alternatives, so optional projections
// never multiply the recorder's alternatives: a frame with one ProjectOptional per object still compiles to
// one entry and runs f once per object. f is evaluated on the render thread when the draw replays.
//
// Parameters:
//   - r: the recorder to append to
//   - f: pure partial projection from the outer state
//   - body: the recording over the projected state
func ProjectOptional[S any, T any](r *Recorder[S], f func(S) (T, bool), body Fragment[T]) {
	idx := r.NextDrawcallIndex()
	st := r.state
	alts := body.recordInto(st)
	r.appendDraw(drawEntry[S]{index: idx, factory: func(sess session.Session) (Action[S], error) {
		run, err := dispatch(sess, st, alts)
		if err != nil {
			return nil, fmt.Errorf("optional frame: %w", err)
		}
		return func(s S) error {
			t, ok := f(s)
			if !ok {
				return nil
			}
			return run(t)
		}, nil
	}})
}

// Branch routes each state to exactly one of left or right, depending on which side f produces.
//
// Parameters:
//   - r: the recorder to append to
//   - f: pure classifier over the outer state
//   - left: recording used when f yields a Left value
//   - right: recording used when f yields a Right value
func Branch[S any, L any, R any](r *Recorder[S], f func(S) Either[L, R], left Fragment[L], right Fragment[R]) {
	leftAlts := lift(left.recordInto(r.state), func(s S) L {
		v, _ := f(s).Left()
		return v
	})
	rightAlts := lift(right.recordInto(r.state), func(s S) R {
		v, _ := f(s).Right()
		return v
	})

	isLeft := alternative[S]{guards: []func(S) bool{func(s S) bool { return !f(s).IsRight() }}}
	isRight := alternative[S]{guards: []func(S) bool{func(s S) bool { return f(s).IsRight() }}}

	next := make([]alternative[S], 0, len(leftAlts)+len(rightAlts))
	for _, a := range leftAlts {
		next = append(next, isLeft.then(a))
	}
	for _, a := range rightAlts {
		next = append(next, isRight.then(a))
	}
	r.splice(next)
}

// Alt records bodies as ordered alternatives: for a given state the first body whose guards accept it is the
// one that runs. An unguarded body therefore acts as a fallback for every body listed before it.
// With no bodies the recorder has no alternatives left and the frame never draws.
//
// Parameters:
//   - r: the recorder to append to
//   - bodies: the alternatives, in priority order
func Alt[S any](r *Recorder[S], bodies ...Fragment[S]) {
	var next []alternative[S]
	for _, b := range bodies {
		next = append(next, b.recordInto(r.state)...)
	}
	r.splice(next)
}

// Isolate embeds body as a single unconditional draw. body keeps its own alternatives and guards, which are
// dispatched when the draw replays, but none of them narrow the recorder's alternatives. Any Tagged body is
// accepted, dropping its format tag.
//
// Parameters:
//   - r: the recorder to append to
//   - body: the recording to embed
//
// Returns:
//   - int: the drawcall index of the embedded draw
func Isolate[S any](r *Recorder[S], body Fragment[S]) int {
	idx := r.NextDrawcallIndex()
	st := r.state
	alts := body.recordInto(st)
	r.appendDraw(drawEntry[S]{index: idx, factory: func(sess session.Session) (Action[S], error) {
		run, err := dispatch(sess, st, alts)
		if err != nil {
			return nil, fmt.Errorf("isolated frame: %w", err)
		}
		return run, nil
	}})
	return idx
}
