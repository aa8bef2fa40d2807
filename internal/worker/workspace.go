package worker

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// workspace is the per-job scratch space on local disk. Input and output
// live in separate directories so a wildcard upload of outputs can never
// pick up the source file.
type workspace struct {
	inputDir  string
	outputDir string
}

func newWorkspace(tempRoot string, jobID uuid.UUID) (*workspace, error) {
	ws := &workspace{
		inputDir:  filepath.Join(tempRoot, fmt.Sprintf("%s_input", jobID)),
		outputDir: filepath.Join(tempRoot, fmt.Sprintf("%s_output", jobID)),
	}

	if err := os.MkdirAll(ws.inputDir, 0o755); err != nil {
		return nil, fmt.Errorf("create input dir: %w", err)
	}
	if err := os.MkdirAll(ws.outputDir, 0o755); err != nil {
		_ = os.RemoveAll(ws.inputDir)
		return nil, fmt.Errorf("create output dir: %w", err)
	}

	return ws, nil
}

func (ws *workspace) inputPath(filename string) string {
	return filepath.Join(ws.inputDir, filepath.Base(filename))
}

func (ws *workspace) outputPath(filename string) string {
	return filepath.Join(ws.outputDir, filename)
}

// cleanup removes the scratch space. Failures are returned so callers can
// log them, but processing results never depend on cleanup succeeding.
func (ws *workspace) cleanup() error {
	var firstErr error
	for _, dir := range []string{ws.inputDir, ws.outputDir} {
		if err := os.RemoveAll(dir); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
