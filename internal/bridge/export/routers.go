package export

import (
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/h2non/filetype"
	"github.com/rs/zerolog/log"

	"github.com/chartbridge/chartbridge/internal/common/httpx"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Router mounts the export endpoint.
func Router(r chi.Router, e *Exporter) {
	r.Method(http.MethodPost, "/", httpx.WrapHandler(exportHandler(e)))
}

// DownloadRouter mounts the artifact download endpoint.
func DownloadRouter(r chi.Router, e *Exporter) {
	r.Get("/{filename}", downloadHandler(e))
}

func exportHandler(e *Exporter) httpx.RequestHandler {
	return func(r *http.Request) (*httpx.Response, error) {
		req := &ExportRequest{}
		if err := httpx.GetRequestData(r, req); err != nil {
			return nil, err
		}
		if err := validate.Struct(req); err != nil {
			return nil, httpx.ErrInvalidRequest("projectName and chartConfig are required")
		}

		url, err := e.Export(r.Context(), req)
		if err != nil {
			log.Ctx(r.Context()).Error().Err(err).Str("project", req.ProjectName).Msg("export failed")
			// pipeline failures are reported in-band, like generation failures
			return &httpx.Response{
				StatusCode: http.StatusOK,
				Response:   &ExportResponse{Success: false, Error: err.Error()},
			}, nil
		}
		return &httpx.Response{
			StatusCode: http.StatusOK,
			Response:   &ExportResponse{Success: true, DownloadURL: url},
		}, nil
	}
}

// downloadHandler serves a published artifact. Only bare file names
// inside the downloads directory are allowed.
func downloadHandler(e *Exporter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		filename := chi.URLParam(r, "filename")
		if filename == "" || filename != filepath.Base(filename) || strings.HasPrefix(filename, ".") {
			httpx.ErrInvalidRequest("invalid file name").Send(w)
			return
		}

		path := filepath.Join(e.downloadsDir, filename)
		f, err := os.Open(path)
		if err != nil {
			httpx.ErrNotFound("file not found").Send(w)
			return
		}
		defer f.Close()

		info, err := f.Stat()
		if err != nil || info.IsDir() {
			httpx.ErrNotFound("file not found").Send(w)
			return
		}

		w.Header().Set("Content-Type", sniffContentType(f))
		w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
		http.ServeContent(w, r, filename, info.ModTime(), f)
	}
}

// sniffContentType inspects the file header to classify the content,
// falling back to a generic binary type. The reader is rewound
// afterwards.
func sniffContentType(f *os.File) string {
	head := make([]byte, 261)
	n, _ := f.Read(head)
	f.Seek(0, 0)
	if kind, err := filetype.Match(head[:n]); err == nil && kind != filetype.Unknown {
		return kind.MIME.Value
	}
	return "application/octet-stream"
}
