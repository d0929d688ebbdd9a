package svgdoc

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
)

// ErrRender is returned when a report cannot be converted to SVG.
var ErrRender = errors.New("render failed")

// Renderer converts a report document into an SVG page on disk.
type Renderer interface {
	// Render converts pdfPath inside workDir and returns the path of the
	// first page. The caller owns the returned file.
	Render(ctx context.Context, pdfPath, workDir string) (string, error)
}

// MutoolRenderer renders with MuPDF's mutool, keeping text as text.
type MutoolRenderer struct {
	// Path is the mutool binary. Empty means the one found on PATH.
	Path string
}

// Render runs `mutool convert -F svg -O text=text -o <work>/<base>.svg <pdf>`.
// mutool numbers its output pages, so page one is <base>1.svg.
func (r MutoolRenderer) Render(ctx context.Context, pdfPath, workDir string) (string, error) {
	base := strings.TrimSuffix(filepath.Base(pdfPath), filepath.Ext(pdfPath))
	target := filepath.Join(workDir, base+".svg")

	cmd := exec.CommandContext(ctx, r.binary(), "convert", "-F", "svg", "-O", "text=text", "-o", target, pdfPath)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return "", fmt.Errorf("%w: mutool convert %s: %v: %s", ErrRender, filepath.Base(pdfPath), err, strings.TrimSpace(string(output)))
	}

	page := PagePath(pdfPath, workDir)
	if _, err := os.Stat(page); err != nil {
		return "", fmt.Errorf("%w: %s not produced", ErrRender, filepath.Base(page))
	}
	return page, nil
}

// PagePath returns where mutool writes the first page of pdfPath.
func PagePath(pdfPath, workDir string) string {
	base := strings.TrimSuffix(filepath.Base(pdfPath), filepath.Ext(pdfPath))
	return filepath.Join(workDir, base+"1.svg")
}

func (r MutoolRenderer) binary() string {
	if r.Path != "" {
		return r.Path
	}
	if path, ok := FindMutool(); ok {
		return path
	}
	return "mutool"
}

// FindMutool looks for mutool on PATH and in common install locations.
func FindMutool() (string, bool) {
	if path, err := exec.LookPath("mutool"); err == nil {
		return path, true
	}

	var commonPaths []string
	switch runtime.GOOS {
	case "darwin":
		commonPaths = []string{
			"/opt/homebrew/bin/mutool",
			"/usr/local/bin/mutool",
		}
	case "linux":
		commonPaths = []string{
			"/usr/bin/mutool",
			"/usr/local/bin/mutool",
		}
	case "windows":
		commonPaths = []string{
			"C:\\Program Files\\MuPDF\\mutool.exe",
			"C:\\mupdf\\mutool.exe",
		}
	}

	for _, path := range commonPaths {
		if _, err := os.Stat(path); err == nil {
			return path, true
		}
	}
	return "", false
}

// MutoolInstallCommand returns the platform install command, or "" if unknown.
func MutoolInstallCommand() string {
	switch runtime.GOOS {
	case "darwin":
		return "brew install mupdf-tools"
	case "linux":
		return "sudo apt-get update && sudo apt-get install -y mupdf-tools"
	default:
		return ""
	}
}
