package registry

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"runtimed/internal/common/fsutil"
	"runtimed/pkg/types"
)

// footprintFactor scales on-disk model size into an estimated resident
// footprint. Weights dominate, but KV cache and runtime buffers add
// roughly a fifth on top for typical context sizes.
const footprintFactor = 1.2

// frameworkByExt maps model artifact extensions to the framework that
// executes them. Compiled CoreML models are directories, not files.
var frameworkByExt = map[string]types.Framework{
	".gguf":        types.FrameworkLlamaCpp,
	".onnx":        types.FrameworkONNX,
	".mlmodelc":    types.FrameworkCoreML,
	".safetensors": types.FrameworkMLX,
}

// Scanner discovers model artifacts in a directory and builds catalog
// entries from filenames. ID is the full filename (including extension);
// Path is the absolute file path.
type Scanner struct{}

// NewScanner constructs a filesystem model scanner.
func NewScanner() *Scanner { return &Scanner{} }

// Scan lists the model artifacts directly under dir, sorted by ID. A '~'
// prefix expands to the user's home directory. Unrecognized entries are
// skipped silently.
func (s *Scanner) Scan(dir string) ([]types.Model, error) {
	base, err := fsutil.ExpandHome(dir)
	if err != nil {
		return nil, err
	}
	abs, err := filepath.Abs(base)
	if err != nil {
		return nil, fmt.Errorf("abs path: %w", err)
	}
	entries, err := os.ReadDir(abs)
	if err != nil {
		return nil, fmt.Errorf("read dir: %w", err)
	}
	var models []types.Model
	for _, e := range entries {
		name := e.Name()
		ext := strings.ToLower(filepath.Ext(name))
		fw, ok := frameworkByExt[ext]
		if !ok {
			continue
		}
		// Only CoreML artifacts are directories; a stray directory named
		// like a file artifact is not a model.
		if e.IsDir() != (fw == types.FrameworkCoreML) {
			continue
		}
		p := filepath.Join(abs, name)
		size, err := artifactSize(p, e)
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", name, err)
		}
		models = append(models, types.Model{
			ID:             name,
			Name:           name,
			Path:           p,
			Framework:      fw,
			EstMemoryBytes: estimateFootprint(size),
		})
	}
	sort.Slice(models, func(i, j int) bool { return models[i].ID < models[j].ID })
	return models, nil
}

// LoadDir scans dir with a default scanner.
func LoadDir(dir string) ([]types.Model, error) {
	return NewScanner().Scan(dir)
}

// artifactSize is the file size, or the recursive content size for
// directory artifacts.
func artifactSize(path string, e os.DirEntry) (int64, error) {
	if e.IsDir() {
		return fsutil.DirSize(path)
	}
	info, err := e.Info()
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}

func estimateFootprint(size int64) int64 {
	return int64(float64(size) * footprintFactor)
}
