// Package export packages a generated chart as an installable
// component archive. The pipeline scaffolds a component project with an
// external tool, injects the chart source, builds it, and publishes the
// resulting archive for download.
package export

import (
	"context"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/tidwall/sjson"

	"github.com/chartbridge/chartbridge/internal/bridge/config"
)

// ExportRequest names the project and carries the chart to embed.
type ExportRequest struct {
	ProjectName string         `json:"projectName" validate:"required"`
	ChartConfig map[string]any `json:"chartConfig" validate:"required"`
}

// ExportResponse reports the outcome. DownloadURL is set on success;
// Error carries the failure reason otherwise.
type ExportResponse struct {
	Success     bool   `json:"success"`
	DownloadURL string `json:"downloadUrl,omitempty"`
	Error       string `json:"error,omitempty"`
}

// Exporter runs the component export pipeline.
type Exporter struct {
	scaffoldCmd  []string
	buildCmd     []string
	downloadsDir string
	stepTimeout  time.Duration
}

var projectNameRe = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9._-]*$`)

// stepOutputLimit caps how much scaffold and build output is retained
// for error reporting.
const stepOutputLimit = 16 * 1024

// NewExporter creates an Exporter from the export configuration and
// ensures the downloads directory exists.
func NewExporter(cfg *config.ExportConfig) (*Exporter, error) {
	stepTimeout, err := cfg.GetStepTimeout()
	if err != nil {
		return nil, ErrExportError.Msg("invalid step timeout").Err(err)
	}
	if err := os.MkdirAll(cfg.DownloadsDir, 0o755); err != nil {
		return nil, ErrExportError.Msg("unable to create downloads directory").Err(err)
	}
	return &Exporter{
		scaffoldCmd:  cfg.ScaffoldCommand,
		buildCmd:     cfg.BuildCommand,
		downloadsDir: cfg.DownloadsDir,
		stepTimeout:  stepTimeout,
	}, nil
}

// Export runs the full pipeline and returns the download path of the
// built archive, relative to the service root.
func (e *Exporter) Export(ctx context.Context, req *ExportRequest) (string, error) {
	if !projectNameRe.MatchString(req.ProjectName) {
		return "", ErrInvalidProjectName
	}

	workDir, err := os.MkdirTemp("", "chartbridge-export-")
	if err != nil {
		return "", ErrExportError.Msg("unable to create work directory").Err(err)
	}
	defer os.RemoveAll(workDir)

	projectDir := filepath.Join(workDir, req.ProjectName)
	if err := e.scaffold(ctx, projectDir); err != nil {
		return "", ErrScaffoldFailed.Err(err)
	}
	if err := injectChart(projectDir, req); err != nil {
		return "", ErrExportError.Err(err)
	}
	if err := e.build(ctx, projectDir); err != nil {
		return "", ErrBuildFailed.Err(err)
	}

	artifact, err := findArchive(projectDir)
	if err != nil {
		return "", err
	}

	published := filepath.Join(e.downloadsDir, req.ProjectName+".inc")
	if err := copyFile(artifact, published); err != nil {
		return "", ErrExportError.Msg("unable to publish artifact").Err(err)
	}

	log.Ctx(ctx).Info().
		Str("project", req.ProjectName).
		Str("artifact", published).
		Msg("component exported")
	return "/download/" + req.ProjectName + ".inc", nil
}

func (e *Exporter) scaffold(ctx context.Context, projectDir string) error {
	cmd := append(append([]string{}, e.scaffoldCmd...), projectDir)
	return e.runStep(ctx, "", cmd)
}

func (e *Exporter) build(ctx context.Context, projectDir string) error {
	return e.runStep(ctx, projectDir, e.buildCmd)
}

// runStep executes one external command with the per-step deadline.
// Output is folded into the error so build failures are diagnosable
// from the logs.
func (e *Exporter) runStep(ctx context.Context, dir string, cmdline []string) error {
	if len(cmdline) == 0 {
		return errors.New("empty command")
	}
	stepCtx, cancel := context.WithTimeout(ctx, e.stepTimeout)
	defer cancel()

	output := NewOutputBuffer(stepOutputLimit)
	cmd := exec.CommandContext(stepCtx, cmdline[0], cmdline[1:]...)
	cmd.Dir = dir
	cmd.Stdout = output
	cmd.Stderr = output
	if err := cmd.Run(); err != nil {
		return errors.Wrapf(err, "%s: %s", cmdline[0], output.String())
	}
	return nil
}

// injectChart writes the chart component source into the scaffolded
// project and renames the package to the project.
func injectChart(projectDir string, req *ExportRequest) error {
	source, err := componentSource(req.ChartConfig)
	if err != nil {
		return err
	}
	indexFile := filepath.Join(projectDir, "src", "index.tsx")
	if err := os.WriteFile(indexFile, []byte(source), 0o644); err != nil {
		return errors.Wrap(err, "unable to write component source")
	}

	pkgFile := filepath.Join(projectDir, "package.json")
	pkg, err := os.ReadFile(pkgFile)
	if err != nil {
		return errors.Wrap(err, "unable to read package.json")
	}
	pkg, err = sjson.SetBytes(pkg, "name", req.ProjectName)
	if err != nil {
		return errors.Wrap(err, "unable to patch package.json")
	}
	return errors.Wrap(os.WriteFile(pkgFile, pkg, 0o644), "unable to write package.json")
}

// findArchive locates the built component archive under dist/.
func findArchive(projectDir string) (string, error) {
	matches, err := filepath.Glob(filepath.Join(projectDir, "dist", "*.inc"))
	if err != nil || len(matches) == 0 {
		return "", ErrArtifactNotFound
	}
	return matches[0], nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()
	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Sync()
}
