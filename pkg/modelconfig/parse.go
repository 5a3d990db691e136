package modelconfig

import (
	"errors"
	"fmt"
	"strings"

	graphstate "github.com/goliatone/go-graphstate"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"gopkg.in/yaml.v3"
)

// ErrInvalidEntity reports an entity block that cannot become an EntityConfig.
var ErrInvalidEntity = errors.New("modelconfig: invalid entity")

// hclFile is the top-level structure of an HCL model file.
type hclFile struct {
	Entities []*hclEntity `hcl:"entity,block"`
}

type hclEntity struct {
	Name      string   `hcl:"name,label"`
	Keys      []string `hcl:"keys,optional"`
	Generated *bool    `hcl:"generated,optional"`
	Ignore    []string `hcl:"ignore,optional"`
}

type yamlFile struct {
	Entities []yamlEntity `yaml:"entities"`
}

type yamlEntity struct {
	Name      string   `yaml:"name"`
	Keys      []string `yaml:"keys"`
	Generated *bool    `yaml:"generated"`
	Ignore    []string `yaml:"ignore"`
}

// ParseHCL decodes entity blocks from src. filename is used in diagnostics.
func ParseHCL(src []byte, filename string) ([]graphstate.EntityConfig, error) {
	return parseHCL(hclparse.NewParser(), src, filename)
}

func parseHCL(parser *hclparse.Parser, src []byte, filename string) ([]graphstate.EntityConfig, error) {
	file, diags := parser.ParseHCL(src, filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse HCL file %s: %w", filename, diags)
	}
	var parsed hclFile
	diags = gohcl.DecodeBody(file.Body, nil, &parsed)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode HCL file %s: %w", filename, diags)
	}

	configs := make([]graphstate.EntityConfig, 0, len(parsed.Entities))
	for _, entity := range parsed.Entities {
		cfg, err := entityConfig(entity.Name, entity.Keys, entity.Generated, entity.Ignore)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", filename, err)
		}
		configs = append(configs, cfg)
	}
	return configs, nil
}

// ParseYAML decodes the entities list from src. filename is used in errors.
func ParseYAML(src []byte, filename string) ([]graphstate.EntityConfig, error) {
	var parsed yamlFile
	if err := yaml.Unmarshal(src, &parsed); err != nil {
		return nil, fmt.Errorf("failed to decode YAML file %s: %w", filename, err)
	}
	configs := make([]graphstate.EntityConfig, 0, len(parsed.Entities))
	for _, entity := range parsed.Entities {
		cfg, err := entityConfig(entity.Name, entity.Keys, entity.Generated, entity.Ignore)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", filename, err)
		}
		configs = append(configs, cfg)
	}
	return configs, nil
}

func entityConfig(name string, keys []string, generated *bool, ignore []string) (graphstate.EntityConfig, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return graphstate.EntityConfig{}, fmt.Errorf("%w: name must not be empty", ErrInvalidEntity)
	}
	cfg := graphstate.EntityConfig{Name: name, Generated: generated}
	for _, key := range keys {
		key = strings.TrimSpace(key)
		if key == "" {
			return graphstate.EntityConfig{}, fmt.Errorf("%w: %s has an empty key name", ErrInvalidEntity, name)
		}
		cfg.Keys = append(cfg.Keys, key)
	}
	for _, field := range ignore {
		if field = strings.TrimSpace(field); field != "" {
			cfg.Ignore = append(cfg.Ignore, field)
		}
	}
	return cfg, nil
}

// Options converts configs into model options.
func Options(configs []graphstate.EntityConfig) []graphstate.ModelOption {
	if len(configs) == 0 {
		return nil
	}
	return []graphstate.ModelOption{graphstate.WithEntityConfig(configs...)}
}
