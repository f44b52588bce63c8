package registry

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"runtimed/pkg/types"
)

func TestScanner_FiltersKnownArtifacts(t *testing.T) {
	dir := t.TempDir()
	files := []string{
		"a.gguf",
		"b.GGUF", // case-insensitive
		"c.onnx",
		"d.safetensors",
		"not-model.txt",
		"model.bin",
	}
	for _, f := range files {
		if err := os.WriteFile(filepath.Join(dir, f), []byte("xx"), 0o644); err != nil {
			t.Fatalf("write temp file: %v", err)
		}
	}
	s := NewScanner()
	models, err := s.Scan(dir)
	if err != nil {
		t.Fatalf("scan error: %v", err)
	}
	if len(models) != 4 {
		t.Fatalf("expected 4 models, got %d", len(models))
	}
	want := map[string]types.Framework{
		"a.gguf":        types.FrameworkLlamaCpp,
		"b.GGUF":        types.FrameworkLlamaCpp,
		"c.onnx":        types.FrameworkONNX,
		"d.safetensors": types.FrameworkMLX,
	}
	for _, m := range models {
		fw, ok := want[m.ID]
		if !ok {
			t.Fatalf("unexpected model id %q", m.ID)
		}
		if m.Framework != fw {
			t.Fatalf("model %q: framework = %q, want %q", m.ID, m.Framework, fw)
		}
		if m.Path != filepath.Join(dir, m.ID) {
			t.Fatalf("model %q: path = %q", m.ID, m.Path)
		}
	}
}

func TestScanner_ResultsSortedByID(t *testing.T) {
	dir := t.TempDir()
	for _, f := range []string{"zeta.gguf", "alpha.gguf", "mid.onnx"} {
		if err := os.WriteFile(filepath.Join(dir, f), []byte(""), 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	models, err := NewScanner().Scan(dir)
	if err != nil {
		t.Fatalf("scan error: %v", err)
	}
	got := []string{models[0].ID, models[1].ID, models[2].ID}
	want := []string{"alpha.gguf", "mid.onnx", "zeta.gguf"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("order = %v, want %v", got, want)
		}
	}
}

func TestScanner_FootprintFromFileSize(t *testing.T) {
	dir := t.TempDir()
	payload := make([]byte, 1000)
	if err := os.WriteFile(filepath.Join(dir, "m.gguf"), payload, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	models, err := NewScanner().Scan(dir)
	if err != nil {
		t.Fatalf("scan error: %v", err)
	}
	if len(models) != 1 {
		t.Fatalf("expected 1 model, got %d", len(models))
	}
	if got := models[0].EstMemoryBytes; got != 1200 {
		t.Fatalf("footprint = %d, want 1200", got)
	}
}

func TestScanner_CoreMLDirectoryArtifact(t *testing.T) {
	dir := t.TempDir()
	mlDir := filepath.Join(dir, "vision.mlmodelc")
	if err := os.MkdirAll(filepath.Join(mlDir, "weights"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(mlDir, "weights", "w.bin"), make([]byte, 500), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := os.WriteFile(filepath.Join(mlDir, "model.mil"), make([]byte, 500), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	// A plain directory named like a file artifact is not a model.
	if err := os.MkdirAll(filepath.Join(dir, "stray.gguf"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	models, err := NewScanner().Scan(dir)
	if err != nil {
		t.Fatalf("scan error: %v", err)
	}
	if len(models) != 1 {
		t.Fatalf("expected 1 model, got %d: %+v", len(models), models)
	}
	m := models[0]
	if m.Framework != types.FrameworkCoreML {
		t.Fatalf("framework = %q, want coreml", m.Framework)
	}
	if m.EstMemoryBytes != 1200 {
		t.Fatalf("footprint = %d, want 1200", m.EstMemoryBytes)
	}
}

func TestScanner_ExpandHome(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skipf("no home dir on this platform: %v", err)
	}
	hTmp, err := os.MkdirTemp(home, "runtimed-registry-*")
	if err != nil {
		t.Skipf("cannot create temp under home: %v", err)
	}
	defer os.RemoveAll(hTmp)
	if err := os.WriteFile(filepath.Join(hTmp, "x.gguf"), []byte(""), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	var tildePath string
	if runtime.GOOS == "windows" {
		tildePath = filepath.Join("~", filepath.Base(hTmp))
	} else {
		tildePath = "~/" + filepath.Base(hTmp)
	}
	models, err := NewScanner().Scan(tildePath)
	if err != nil {
		t.Fatalf("scan error: %v", err)
	}
	if len(models) != 1 || models[0].ID != "x.gguf" {
		t.Fatalf("unexpected models: %+v", models)
	}
}

func TestLoadDirWrapper(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "m.gguf"), []byte(""), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	models, err := LoadDir(dir)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(models) != 1 || models[0].ID != "m.gguf" {
		t.Fatalf("unexpected: %+v", models)
	}
}
