package export

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/chartbridge/chartbridge/internal/bridge/config"
)

// stub commands standing in for the scaffold and build tools. The
// scaffold stub creates the project skeleton; the build stub packages
// the patched package.json as the archive so the test can observe the
// injection.
func testExportConfig(t *testing.T) *config.ExportConfig {
	t.Helper()
	return &config.ExportConfig{
		Enabled: true,
		ScaffoldCommand: []string{"sh", "-c",
			`mkdir -p "$1/src" && printf '{"name":"scaffold-template"}' > "$1/package.json"`, "scaffold"},
		BuildCommand: []string{"sh", "-c",
			`mkdir -p dist && cp package.json dist/component.inc`},
		DownloadsDir: t.TempDir(),
		StepTimeout:  "10s",
	}
}

func TestExportPipeline(t *testing.T) {
	cfg := testExportConfig(t)
	exp, err := NewExporter(cfg)
	require.NoError(t, err)

	url, err := exp.Export(context.Background(), &ExportRequest{
		ProjectName: "sales-chart",
		ChartConfig: map[string]any{"chart": map[string]any{"type": "bar"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "/download/sales-chart.inc", url)

	published, err := os.ReadFile(filepath.Join(cfg.DownloadsDir, "sales-chart.inc"))
	require.NoError(t, err)
	assert.Equal(t, "sales-chart", gjson.GetBytes(published, "name").String(),
		"package.json name must be patched to the project name")
}

func TestExportInvalidProjectName(t *testing.T) {
	exp, err := NewExporter(testExportConfig(t))
	require.NoError(t, err)

	for _, name := range []string{"", "../evil", "a/b", ".hidden", "name with spaces"} {
		_, err := exp.Export(context.Background(), &ExportRequest{
			ProjectName: name,
			ChartConfig: map[string]any{},
		})
		assert.True(t, errors.Is(err, ErrInvalidProjectName), "name: %q", name)
	}
}

func TestExportScaffoldFailure(t *testing.T) {
	cfg := testExportConfig(t)
	cfg.ScaffoldCommand = []string{"sh", "-c", "echo scaffold broke >&2; exit 1"}
	exp, err := NewExporter(cfg)
	require.NoError(t, err)

	_, err = exp.Export(context.Background(), &ExportRequest{
		ProjectName: "p1",
		ChartConfig: map[string]any{},
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrScaffoldFailed))
	assert.Contains(t, err.Error(), "scaffold broke")
}

func TestExportNoArtifact(t *testing.T) {
	cfg := testExportConfig(t)
	cfg.BuildCommand = []string{"sh", "-c", "true"}
	exp, err := NewExporter(cfg)
	require.NoError(t, err)

	_, err = exp.Export(context.Background(), &ExportRequest{
		ProjectName: "p1",
		ChartConfig: map[string]any{},
	})
	assert.True(t, errors.Is(err, ErrArtifactNotFound))
}

func TestOutputBuffer(t *testing.T) {
	buf := NewOutputBuffer(8)
	buf.Write([]byte("0123456789"))
	assert.Equal(t, "23456789", buf.String())
	buf.Write([]byte("ab"))
	assert.Equal(t, "456789ab", buf.String())
	assert.Equal(t, 8, buf.Len())
}

func TestComponentSource(t *testing.T) {
	src, err := componentSource(map[string]any{"title": map[string]any{"text": "Sales"}})
	require.NoError(t, err)
	assert.Contains(t, src, "HighchartsReact")
	assert.Contains(t, src, `"text": "Sales"`)
	assert.Contains(t, src, "export default ChartComponent")
}

func TestDownloadHandler(t *testing.T) {
	cfg := testExportConfig(t)
	exp, err := NewExporter(cfg)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(cfg.DownloadsDir, "ok.inc"), []byte("archive bytes"), 0o644))

	r := chi.NewRouter()
	r.Route("/download", func(r chi.Router) {
		DownloadRouter(r, exp)
	})
	srv := httptest.NewServer(r)
	defer srv.Close()

	rsp, err := http.Get(srv.URL + "/download/ok.inc")
	require.NoError(t, err)
	defer rsp.Body.Close()
	assert.Equal(t, http.StatusOK, rsp.StatusCode)
	assert.Equal(t, "application/octet-stream", rsp.Header.Get("Content-Type"))
	assert.True(t, strings.HasPrefix(rsp.Header.Get("Content-Disposition"), "attachment"))

	rsp, err = http.Get(srv.URL + "/download/missing.inc")
	require.NoError(t, err)
	rsp.Body.Close()
	assert.Equal(t, http.StatusNotFound, rsp.StatusCode)

	rsp, err = http.Get(srv.URL + "/download/..%2Fescape.inc")
	require.NoError(t, err)
	rsp.Body.Close()
	assert.NotEqual(t, http.StatusOK, rsp.StatusCode)
}
