package session

import (
	"errors"

	"github.com/Carmen-Shannon/oxy-frame/common"
	"github.com/Carmen-Shannon/oxy-frame/engine/window"
)

// Run creates a root session, runs body with it and always tears the session down afterwards,
// including when body fails or panics.
//
// Parameters:
//   - factory: the backend creating the context
//   - format: the window and framebuffer format
//   - body: the work to run while the session is alive
//   - options: functional options to configure the session
//
// Returns:
//   - error: the creation error, or body's error joined with any teardown error
func Run(factory window.ContextFactory, format window.Format, body func(Session) error, options ...SessionBuilderOption) (err error) {
	s, err := New(factory, format, options...)
	if err != nil {
		return err
	}
	defer func() {
		err = closeJoined(s, err)
	}()
	return body(s)
}

// RunShared creates a session sharing parent's object space, runs body with it and always tears it down.
//
// Parameters:
//   - parent: a live session of the object space to join
//   - format: the window and framebuffer format of the new context
//   - body: the work to run while the session is alive
//
// Returns:
//   - error: the creation error, or body's error joined with any teardown error
func RunShared(parent Session, format window.Format, body func(Session) error) (err error) {
	s, err := parent.NewShared(format)
	if err != nil {
		return err
	}
	defer func() {
		err = closeJoined(s, err)
	}()
	return body(s)
}

// closeJoined closes s, keeping a close error unless the session was already closed by body.
func closeJoined(s Session, err error) error {
	if cerr := s.Close(); cerr != nil && !errors.Is(cerr, common.ErrSessionClosed) {
		return errors.Join(err, cerr)
	}
	return err
}
