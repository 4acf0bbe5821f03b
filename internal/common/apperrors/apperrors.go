// Package apperrors provides the application error type used across the
// service. Errors carry an HTTP status code and support chaining, so a
// package can declare a small set of sentinel errors and derive
// request-specific errors from them while errors.Is keeps matching the
// sentinel.
package apperrors

// Error extends the standard error interface with status codes and
// derivation. All derivation methods return a new Error; the receiver
// is never mutated.
type Error interface {
	error
	Unwrap() error // supports errors.Is / errors.As

	New(msg string) Error                   // fresh error from this one as template
	Msg(msg string) Error                   // new error with msg, wrapping this one
	MsgErr(msg string, errs ...error) Error // new error with msg, wrapping this one and errs
	Err(errs ...error) Error                // same message, extra wrapped errors
	SetStatusCode(code int) Error           // copy with a different status code
	StatusCode() int                        // HTTP status code for the error
	ErrorAll() string                       // message including all wrapped errors
	UnwrapAll() []error                     // all wrapped errors, in order added
}
