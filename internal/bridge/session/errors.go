package session

import (
	"net/http"

	"github.com/chartbridge/chartbridge/internal/common/apperrors"
)

var (
	// ErrSessionError is the base error for all session-related errors.
	ErrSessionError apperrors.Error = apperrors.New("error in processing session").SetStatusCode(http.StatusInternalServerError)

	// ErrInvalidSession is returned when a session identifier is missing or malformed.
	ErrInvalidSession apperrors.Error = ErrSessionError.New("invalid session").SetStatusCode(http.StatusBadRequest)

	// ErrChannelFailed is returned when a duplex channel cannot be established.
	ErrChannelFailed apperrors.Error = ErrSessionError.New("channel failed").SetStatusCode(http.StatusInternalServerError)

	// ErrConnClosed is returned when sending on a connection that is already closed.
	ErrConnClosed apperrors.Error = ErrSessionError.New("connection closed").SetStatusCode(http.StatusGone)

	// ErrSendBufferFull is returned when a connection's outbound queue is full.
	// The member is too slow to keep its channel drained.
	ErrSendBufferFull apperrors.Error = ErrSessionError.New("send buffer full").SetStatusCode(http.StatusServiceUnavailable)
)
