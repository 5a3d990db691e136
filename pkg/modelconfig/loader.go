package modelconfig

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	graphstate "github.com/goliatone/go-graphstate"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/joho/godotenv"
)

// PathsEnv lists model files or directories separated by the OS path list
// separator.
const PathsEnv = "GRAPHSTATE_MODEL_PATHS"

// LoaderOption configures a Loader.
type LoaderOption func(*Loader)

// WithLogger sets the logger used for discovery messages.
func WithLogger(logger *slog.Logger) LoaderOption {
	return func(l *Loader) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// Loader discovers and parses model files.
type Loader struct {
	logger *slog.Logger
}

// NewLoader constructs a Loader.
func NewLoader(opts ...LoaderOption) *Loader {
	l := &Loader{logger: slog.Default()}
	for _, opt := range opts {
		if opt != nil {
			opt(l)
		}
	}
	return l
}

// Load parses every .hcl, .yaml and .yml file found in paths. Directories are
// walked recursively and files are read in lexical order, so later files
// override earlier ones for the same entity.
func (l *Loader) Load(ctx context.Context, paths ...string) ([]graphstate.EntityConfig, error) {
	var files []string
	for _, root := range paths {
		found, err := findModelFiles(root)
		if err != nil {
			return nil, fmt.Errorf("failed to find model files in %s: %w", root, err)
		}
		files = append(files, found...)
	}
	if len(files) == 0 {
		l.logger.Warn("No model files found", "paths", paths)
		return nil, nil
	}

	parser := hclparse.NewParser()
	var configs []graphstate.EntityConfig
	for _, file := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		src, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("failed to read model file %s: %w", file, err)
		}
		var parsed []graphstate.EntityConfig
		if strings.EqualFold(filepath.Ext(file), ".hcl") {
			parsed, err = parseHCL(parser, src, file)
		} else {
			parsed, err = ParseYAML(src, file)
		}
		if err != nil {
			return nil, err
		}
		l.logger.Debug("Loaded model file", "path", file, "entities", len(parsed))
		configs = append(configs, parsed...)
	}
	return configs, nil
}

// LoadModel loads paths and builds a Model from them plus extra options.
func (l *Loader) LoadModel(ctx context.Context, paths []string, extra ...graphstate.ModelOption) (*graphstate.Model, error) {
	configs, err := l.Load(ctx, paths...)
	if err != nil {
		return nil, err
	}
	opts := append(Options(configs), extra...)
	return graphstate.NewModel(opts...), nil
}

// PathsFromEnv reads PathsEnv after loading envFiles (or .env when none are
// given) with godotenv. Missing env files are ignored.
func PathsFromEnv(envFiles ...string) []string {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, file := range envFiles {
		_ = godotenv.Load(file)
	}
	raw := strings.TrimSpace(os.Getenv(PathsEnv))
	if raw == "" {
		return nil
	}
	var paths []string
	for _, path := range filepath.SplitList(raw) {
		if path = strings.TrimSpace(path); path != "" {
			paths = append(paths, path)
		}
	}
	return paths
}

func findModelFiles(root string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && isModelFile(d.Name()) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(files)
	return files, nil
}

func isModelFile(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".hcl", ".yaml", ".yml":
		return true
	default:
		return false
	}
}
