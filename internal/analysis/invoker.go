// Package analysis coordinates the external image-analysis subprocess: it
// checks preconditions, invokes the analyzer with deterministic input and
// output paths, and interprets its exit.
package analysis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/AV-Sohan-Aiyappa/TumourScope/internal/artifact"
	"github.com/AV-Sohan-Aiyappa/TumourScope/internal/upload"
)

const diagnosticLimit = 4 * 1024

// Processed describes one successful analysis outcome.
type Processed struct {
	OutputPath string
	Name       string
	URL        string
	Timestamp  int64
}

// Invoker runs the analysis subprocess for staged uploads.
type Invoker struct {
	runner    Runner
	artifacts *artifact.Store
	pythonBin string
	script    string
	timeout   time.Duration
	logger    *slog.Logger
}

// NewInvoker creates an invoker. A nil runner defaults to ExecRunner and a
// nil logger to slog.Default.
func NewInvoker(runner Runner, artifacts *artifact.Store, pythonBin, script string, timeout time.Duration, logger *slog.Logger) (*Invoker, error) {
	if artifacts == nil {
		return nil, fmt.Errorf("artifact store is required")
	}
	if strings.TrimSpace(script) == "" {
		return nil, fmt.Errorf("analyzer script is required")
	}
	if runner == nil {
		runner = ExecRunner{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Invoker{
		runner:    runner,
		artifacts: artifacts,
		pythonBin: pythonBin,
		script:    script,
		timeout:   timeout,
		logger:    logger,
	}, nil
}

// Process runs the analyzer over one staged upload and returns the durable
// artifact it produced.
//
// Preconditions are checked before spawning: both the staged input and the
// analyzer script must exist, otherwise a ConfigError is returned without
// wasted work. After a zero exit the output file must exist; its absence is
// a ProcessError even though the exit code claimed success. On success the
// staged input is deleted best-effort; on failure it is retained so the
// operator can rerun the analyzer against it.
func (inv *Invoker) Process(ctx context.Context, staged upload.Staged) (Processed, error) {
	var zero Processed

	if _, err := os.Stat(staged.Path); err != nil {
		return zero, configErrorf("input file not found: %s", staged.Path)
	}
	if _, err := os.Stat(inv.script); err != nil {
		return zero, configErrorf("analyzer script not found: %s", inv.script)
	}

	outputPath, ts, err := inv.artifacts.NextOutputPath(time.Now())
	if err != nil {
		return zero, err
	}

	runCtx := ctx
	var cancel context.CancelFunc
	if inv.timeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, inv.timeout)
		defer cancel()
	}

	inv.logger.Debug("invoking analyzer",
		"script", inv.script,
		"input", staged.Path,
		"output", outputPath,
	)

	out, runErr := inv.runner.Run(runCtx, inv.pythonBin, inv.script, staged.Path, outputPath)
	if runErr != nil {
		inv.discardReservation(outputPath)
		if errors.Is(runErr, context.DeadlineExceeded) {
			return zero, &ProcessError{
				Reason:     fmt.Sprintf("analysis timed out after %s", inv.timeout),
				Diagnostic: boundDiagnostic(out.Stderr),
				Timeout:    true,
			}
		}
		return zero, &ProcessError{
			Reason:     "failed to run analyzer",
			Diagnostic: boundDiagnostic(runErr.Error()),
		}
	}

	if out.ExitCode != 0 {
		inv.discardReservation(outputPath)
		return zero, &ProcessError{
			Reason:     fmt.Sprintf("analyzer exited with code %d", out.ExitCode),
			Diagnostic: boundDiagnostic(firstNonEmpty(out.Stderr, out.Stdout)),
		}
	}

	// Exit-code success does not guarantee output success. The reserved
	// path exists as an empty placeholder; only the analyzer writing to it
	// counts as output.
	if info, err := os.Stat(outputPath); err != nil || info.Size() == 0 {
		inv.discardReservation(outputPath)
		return zero, &ProcessError{
			Reason:     "analyzer produced no output file",
			Diagnostic: boundDiagnostic(firstNonEmpty(out.Stderr, out.Stdout)),
		}
	}

	if err := staged.Remove(); err != nil {
		inv.logger.Warn("failed to remove staged input", "path", staged.Path, "error", err)
	}

	name := filepath.Base(outputPath)
	return Processed{
		OutputPath: outputPath,
		Name:       name,
		URL:        "/artifacts/" + name,
		Timestamp:  ts,
	}, nil
}

func (inv *Invoker) discardReservation(outputPath string) {
	if err := inv.artifacts.DiscardReservation(outputPath); err != nil {
		inv.logger.Warn("failed to discard reserved output", "path", outputPath, "error", err)
	}
}

func boundDiagnostic(text string) string {
	text = strings.TrimSpace(text)
	if len(text) > diagnosticLimit {
		return text[:diagnosticLimit] + "\n... [truncated]"
	}
	return text
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
