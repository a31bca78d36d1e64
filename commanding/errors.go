package commanding

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
)

// HandlerError an error indicating that a command handler failed
type HandlerError struct {
	error
}

// NewHandlerError return a HandlerError with the cause being the provided error
func NewHandlerError(err error) *HandlerError {
	return &HandlerError{err}
}

// Error return the error message
func (e *HandlerError) Error() string {
	return fmt.Sprintf("goengine: the command handler returned with an error. (%s)", e.error.Error())
}

// Cause returns the actual handler error.
// This also adds support for github.com/pkg/errors.Cause
func (e *HandlerError) Cause() error {
	return e.error
}

// Unwrap returns the actual handler error
func (e *HandlerError) Unwrap() error {
	return e.error
}

// wrapHandlerToTrapError wraps a command handler with error catching code.
// This ensures a handler can return a error or panic without stopping the mailbox
func wrapHandlerToTrapError(handler Handler) Handler {
	return func(ctx context.Context, cmd *ProcessingCommand) (handlerErr error) {
		defer func() {
			r := recover()
			if r == nil {
				return
			}

			// find out exactly what the error was and set err
			var err error
			switch x := r.(type) {
			case string:
				err = errors.New(x)
			case error:
				err = x
			default:
				err = errors.Errorf("unknown panic: (%T) %v", x, x)
			}

			handlerErr = NewHandlerError(err)
		}()

		if err := handler(ctx, cmd); err != nil {
			return NewHandlerError(err)
		}

		return nil
	}
}
