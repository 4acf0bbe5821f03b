package export

import (
	"net/http"

	"github.com/chartbridge/chartbridge/internal/common/apperrors"
)

var (
	// ErrExportError is the base error for this package.
	ErrExportError apperrors.Error = apperrors.New("export error").SetStatusCode(http.StatusInternalServerError)

	// ErrInvalidProjectName is returned for names that cannot become a directory or artifact name.
	ErrInvalidProjectName apperrors.Error = ErrExportError.New("invalid project name").SetStatusCode(http.StatusBadRequest)

	// ErrScaffoldFailed indicates the component scaffold step failed.
	ErrScaffoldFailed apperrors.Error = ErrExportError.New("unable to scaffold component")

	// ErrBuildFailed indicates the component build step failed.
	ErrBuildFailed apperrors.Error = ErrExportError.New("unable to build component")

	// ErrArtifactNotFound indicates the build produced no component archive.
	ErrArtifactNotFound apperrors.Error = ErrExportError.New("build produced no component archive")
)
