// Package frame records per-object draw work against a world state S and compiles it into a closure that
// replays only the applicable draws for a concrete S.
//
// Recording is a pure bookkeeping pass: a Recorder accumulates ordered alternatives, each a conjunction of
// guards plus the draws and render I/O registered while those guards were active. Compile then forces every
// drawcall factory exactly once on the session's render thread, and CompiledFrame.Run dispatches to the first
// alternative whose guards accept the state.
package frame

import (
	"slices"

	"github.com/Carmen-Shannon/oxy-frame/engine/session"
)

// Action is one compiled draw, replayed on every run with the current state.
type Action[S any] func(s S) error

// DrawcallFactory builds an Action. It is invoked exactly once, on the render thread, when the frame is
// compiled; this is where programs are linked and vertex arrays or framebuffers are created.
type DrawcallFactory[S any] func(sess session.Session) (Action[S], error)

// IO is a render input or output registered under a recording name, e.g. a uniform buffer fed from the state.
type IO[S any] struct {
	// Init creates the backing GPU objects. Runs once at compile time; may be nil.
	Init func(sess session.Session) error
	// Bind updates the GPU objects from the state before the alternative's draws replay; may be nil.
	Bind func(s S) error
}

// Fragment is a recording that can be embedded into a Recorder over the same state type.
// Implementations are produced by Record and Tag; the method set is closed to this package.
type Fragment[S any] interface {
	recordInto(st *recordState) []alternative[S]
}

// recordState is shared by every Recorder taking part in one compilation, so names and drawcall indices are
// unique and increasing across nested fragments.
type recordState struct {
	names     int
	drawcalls int

	// initialized holds the IO names already initialized, filled in on the render thread at compile time.
	initialized map[int]bool
}

func newRecordState() *recordState {
	return &recordState{initialized: make(map[int]bool)}
}

type drawEntry[S any] struct {
	index   int
	factory DrawcallFactory[S]
}

type ioEntry[S any] struct {
	name int
	io   IO[S]
}

// alternative is one guarded path through a recording.
type alternative[S any] struct {
	guards []func(S) bool
	io     []ioEntry[S]
	draws  []drawEntry[S]
}

// then sequences next after a. The result never aliases either input.
func (a alternative[S]) then(next alternative[S]) alternative[S] {
	return alternative[S]{
		guards: slices.Concat(a.guards, next.guards),
		io:     slices.Concat(a.io, next.io),
		draws:  slices.Concat(a.draws, next.draws),
	}
}

// Recorder accumulates draws, guards and render I/O for state type S. A Recorder is only valid inside the
// build function passed to Record and must not be retained or used from other goroutines.
type Recorder[S any] struct {
	state *recordState
	alts  []alternative[S]
}

func newRecorder[S any](st *recordState) *Recorder[S] {
	return &Recorder[S]{state: st, alts: []alternative[S]{{}}}
}

// Draw appends a deferred draw to every active alternative.
//
// Parameters:
//   - factory: builds the draw action once at compile time
//
// Returns:
//   - int: the drawcall index assigned to the draw
func (r *Recorder[S]) Draw(factory DrawcallFactory[S]) int {
	idx := r.NextDrawcallIndex()
	r.appendDraw(drawEntry[S]{index: idx, factory: factory})
	return idx
}

// Guard narrows every active alternative to states accepted by predicate.
//
// Parameters:
//   - predicate: pure function over the state
func (r *Recorder[S]) Guard(predicate func(s S) bool) {
	for i := range r.alts {
		r.alts[i].guards = append(slices.Clip(r.alts[i].guards), predicate)
	}
}

// NewName returns a fresh name, unique and increasing within one compilation. Collaborators use names to
// identify GPU objects created during recording.
func (r *Recorder[S]) NewName() int {
	r.state.names++
	return r.state.names
}

// NextDrawcallIndex allocates the next drawcall index.
func (r *Recorder[S]) NextDrawcallIndex() int {
	r.state.drawcalls++
	return r.state.drawcalls
}

// RegisterIO adds a render input or output to every active alternative. Registering the same name more than
// once along one path keeps the first registration.
//
// Parameters:
//   - name: a name from NewName
//   - io: the init and bind callbacks
func (r *Recorder[S]) RegisterIO(name int, io IO[S]) {
	for i := range r.alts {
		if slices.ContainsFunc(r.alts[i].io, func(e ioEntry[S]) bool { return e.name == name }) {
			continue
		}
		r.alts[i].io = append(slices.Clip(r.alts[i].io), ioEntry[S]{name: name, io: io})
	}
}

func (r *Recorder[S]) appendDraw(e drawEntry[S]) {
	for i := range r.alts {
		r.alts[i].draws = append(slices.Clip(r.alts[i].draws), e)
	}
}

// splice sequences the current alternatives with next, keeping recording order: every current alternative
// is tried with each of next's alternatives before moving on to the following current alternative.
func (r *Recorder[S]) splice(next []alternative[S]) {
	out := make([]alternative[S], 0, len(r.alts)*len(next))
	for _, a := range r.alts {
		for _, b := range next {
			out = append(out, a.then(b))
		}
	}
	r.alts = out
}

// record is the Fragment produced by Record.
type record[S any] struct {
	build func(r *Recorder[S])
}

func (f record[S]) recordInto(st *recordState) []alternative[S] {
	r := newRecorder[S](st)
	if f.build != nil {
		f.build(r)
	}
	return r.alts
}

// Record wraps a build function as a Fragment. build runs during compilation, once per embedding, and must
// only record: GPU work belongs in drawcall factories and IO callbacks.
//
// Parameters:
//   - build: the recording body
//
// Returns:
//   - Fragment[S]: the recording
func Record[S any](build func(r *Recorder[S])) Fragment[S] {
	return record[S]{build: build}
}

// Tagged is a Fragment recorded for a particular framebuffer format F. The tag is static information for the
// caller; Isolate accepts a Tagged of any format and drops the tag.
type Tagged[F any, S any] struct {
	format F
	body   Fragment[S]
}

// Tag attaches format to body.
//
// Parameters:
//   - format: the framebuffer format body draws into
//   - body: the recording
//
// Returns:
//   - Tagged[F, S]: the tagged recording
func Tag[F any, S any](format F, body Fragment[S]) Tagged[F, S] {
	return Tagged[F, S]{format: format, body: body}
}

// Format returns the tag.
func (t Tagged[F, S]) Format() F {
	return t.format
}

func (t Tagged[F, S]) recordInto(st *recordState) []alternative[S] {
	if t.body == nil {
		return []alternative[S]{{}}
	}
	return t.body.recordInto(st)
}
