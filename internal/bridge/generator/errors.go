package generator

import (
	"net/http"

	"github.com/chartbridge/chartbridge/internal/common/apperrors"
)

var (
	// ErrGeneratorError is the base error for this package.
	ErrGeneratorError apperrors.Error = apperrors.New("generator error").SetStatusCode(http.StatusInternalServerError)

	// ErrMissingAPIKey indicates the configured key environment variable is empty.
	ErrMissingAPIKey apperrors.Error = ErrGeneratorError.New("generator API key is not set")

	// ErrGenerationFailed indicates the completion call failed after retries.
	ErrGenerationFailed apperrors.Error = ErrGeneratorError.New("chart generation failed").SetStatusCode(http.StatusBadGateway)

	// ErrInvalidOutput indicates the model returned something that is not a chart update.
	ErrInvalidOutput apperrors.Error = ErrGeneratorError.New("generator returned invalid output").SetStatusCode(http.StatusBadGateway)
)
