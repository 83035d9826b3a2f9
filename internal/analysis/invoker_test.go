package analysis

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/AV-Sohan-Aiyappa/TumourScope/internal/artifact"
	"github.com/AV-Sohan-Aiyappa/TumourScope/internal/upload"
)

// fakeRunner stands in for the analyzer subprocess.
type fakeRunner struct {
	writeOutput bool
	exitCode    int
	stderr      string
	blockOnCtx  bool

	gotName string
	gotArgs []string
}

func (f *fakeRunner) Run(ctx context.Context, name string, args ...string) (Output, error) {
	f.gotName = name
	f.gotArgs = args

	if f.blockOnCtx {
		<-ctx.Done()
		return Output{Stderr: f.stderr, ExitCode: -1}, ctx.Err()
	}

	if f.writeOutput && len(args) >= 3 {
		if err := os.WriteFile(args[2], []byte("jpg bytes"), 0o644); err != nil {
			return Output{}, err
		}
	}
	return Output{Stderr: f.stderr, ExitCode: f.exitCode}, nil
}

func testInvoker(t *testing.T, runner Runner) (*Invoker, *artifact.Store) {
	t.Helper()
	artifacts, err := artifact.NewStore(t.TempDir(), "/artifacts")
	if err != nil {
		t.Fatalf("artifact store: %v", err)
	}
	script := filepath.Join(t.TempDir(), "analyze.py")
	if err := os.WriteFile(script, []byte("#!/usr/bin/env python3\n"), 0o755); err != nil {
		t.Fatalf("write script: %v", err)
	}
	inv, err := NewInvoker(runner, artifacts, "python3", script, time.Second, nil)
	if err != nil {
		t.Fatalf("new invoker: %v", err)
	}
	return inv, artifacts
}

func stageUpload(t *testing.T) upload.Staged {
	t.Helper()
	recv, err := upload.NewReceiver(t.TempDir())
	if err != nil {
		t.Fatalf("receiver: %v", err)
	}
	staged, err := recv.Store(bytes.NewBufferString("scan"), "scan.png")
	if err != nil {
		t.Fatalf("stage: %v", err)
	}
	return staged
}

func TestProcessSuccess(t *testing.T) {
	runner := &fakeRunner{writeOutput: true}
	inv, _ := testInvoker(t, runner)
	staged := stageUpload(t)

	processed, err := inv.Process(context.Background(), staged)
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if !strings.HasPrefix(processed.Name, "processed_") || !strings.HasSuffix(processed.Name, ".jpg") {
		t.Fatalf("unexpected artifact name %q", processed.Name)
	}
	if processed.URL != "/artifacts/"+processed.Name {
		t.Fatalf("unexpected url %q", processed.URL)
	}
	if processed.Timestamp <= 0 {
		t.Fatalf("expected positive timestamp, got %d", processed.Timestamp)
	}

	data, err := os.ReadFile(processed.OutputPath)
	if err != nil || len(data) == 0 {
		t.Fatalf("expected non-empty artifact file, err=%v", err)
	}

	// The analyzer is called with exactly input and output paths.
	if len(runner.gotArgs) != 3 {
		t.Fatalf("expected script + 2 args, got %v", runner.gotArgs)
	}
	if runner.gotArgs[1] != staged.Path || runner.gotArgs[2] != processed.OutputPath {
		t.Fatalf("unexpected analyzer args %v", runner.gotArgs)
	}

	// Staged input is consumed on success.
	if _, err := os.Stat(staged.Path); !os.IsNotExist(err) {
		t.Fatal("staged input should be deleted after success")
	}
}

func TestProcessMissingInputIsConfigError(t *testing.T) {
	inv, _ := testInvoker(t, &fakeRunner{writeOutput: true})

	_, err := inv.Process(context.Background(), upload.Staged{Path: "/nonexistent/scan.png"})
	var cfgErr *ConfigError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected ConfigError, got %v", err)
	}
}

func TestProcessMissingScriptIsConfigError(t *testing.T) {
	artifacts, err := artifact.NewStore(t.TempDir(), "/artifacts")
	if err != nil {
		t.Fatalf("artifact store: %v", err)
	}
	inv, err := NewInvoker(&fakeRunner{}, artifacts, "python3", "/nonexistent/analyze.py", time.Second, nil)
	if err != nil {
		t.Fatalf("new invoker: %v", err)
	}
	staged := stageUpload(t)

	_, err = inv.Process(context.Background(), staged)
	var cfgErr *ConfigError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected ConfigError, got %v", err)
	}

	// Nothing was spawned, so the input stays staged.
	if _, statErr := os.Stat(staged.Path); statErr != nil {
		t.Fatal("staged input should be retained when preconditions fail")
	}
}

func TestProcessNonZeroExit(t *testing.T) {
	runner := &fakeRunner{exitCode: 2, stderr: "Error: Input file corrupt"}
	inv, artifacts := testInvoker(t, runner)
	staged := stageUpload(t)

	_, err := inv.Process(context.Background(), staged)
	var procErr *ProcessError
	if !errors.As(err, &procErr) {
		t.Fatalf("expected ProcessError, got %v", err)
	}
	if procErr.Timeout {
		t.Fatal("plain failure must not be flagged as timeout")
	}
	if !strings.Contains(procErr.Diagnostic, "Input file corrupt") {
		t.Fatalf("expected captured stderr in diagnostic, got %q", procErr.Diagnostic)
	}

	// Failed input is retained for diagnosis.
	if _, statErr := os.Stat(staged.Path); statErr != nil {
		t.Fatal("staged input should be retained after failure")
	}

	// The unfilled output reservation is removed, so the failed run never
	// shows up in the listing.
	entries, listErr := artifacts.List()
	if listErr != nil {
		t.Fatalf("list: %v", listErr)
	}
	if len(entries) != 0 {
		t.Fatalf("expected empty listing after failure, got %+v", entries)
	}
}

func TestProcessMissingOutputDespiteZeroExit(t *testing.T) {
	runner := &fakeRunner{writeOutput: false, exitCode: 0}
	inv, artifacts := testInvoker(t, runner)
	staged := stageUpload(t)

	_, err := inv.Process(context.Background(), staged)
	var procErr *ProcessError
	if !errors.As(err, &procErr) {
		t.Fatalf("expected ProcessError, got %v", err)
	}
	if !strings.Contains(procErr.Reason, "no output file") {
		t.Fatalf("unexpected reason %q", procErr.Reason)
	}

	entries, listErr := artifacts.List()
	if listErr != nil {
		t.Fatalf("list: %v", listErr)
	}
	if len(entries) != 0 {
		t.Fatalf("expected empty listing after failure, got %+v", entries)
	}
}

func TestProcessTimeout(t *testing.T) {
	runner := &fakeRunner{blockOnCtx: true}
	artifacts, err := artifact.NewStore(t.TempDir(), "/artifacts")
	if err != nil {
		t.Fatalf("artifact store: %v", err)
	}
	script := filepath.Join(t.TempDir(), "analyze.py")
	if err := os.WriteFile(script, []byte("#"), 0o755); err != nil {
		t.Fatalf("write script: %v", err)
	}
	inv, err := NewInvoker(runner, artifacts, "python3", script, 20*time.Millisecond, nil)
	if err != nil {
		t.Fatalf("new invoker: %v", err)
	}
	staged := stageUpload(t)

	_, err = inv.Process(context.Background(), staged)
	var procErr *ProcessError
	if !errors.As(err, &procErr) {
		t.Fatalf("expected ProcessError, got %v", err)
	}
	if !procErr.Timeout {
		t.Fatalf("expected timeout-flavored error, got %+v", procErr)
	}
}

func TestCappedBufferTruncates(t *testing.T) {
	buf := newCappedBuffer(8)
	if _, err := buf.Write([]byte("0123456789abcdef")); err != nil {
		t.Fatalf("write: %v", err)
	}
	got := buf.String()
	if !strings.HasPrefix(got, "01234567") {
		t.Fatalf("expected capped prefix, got %q", got)
	}
	if !strings.Contains(got, "truncated") {
		t.Fatalf("expected truncation marker, got %q", got)
	}
}
