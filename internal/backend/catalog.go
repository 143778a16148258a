package backend

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/seantiz/vidrestore/internal/model"
)

// Spec describes one engine to load at startup.
type Spec struct {
	Variant string        `yaml:"variant"`
	Kind    string        `yaml:"kind"`
	Name    string        `yaml:"name"`
	Command string        `yaml:"command"`
	Args    []string      `yaml:"args"`
	Dir     string        `yaml:"dir"`
	Env     []string      `yaml:"env"`
	Delay   time.Duration `yaml:"delay"`
}

func (s Spec) name() string {
	if s.Name != "" {
		return s.Name
	}
	return "seedvr2-" + s.Variant
}

// Catalog is the set of engines the service loads.
type Catalog struct {
	Backends []Spec `yaml:"backends"`
}

// DefaultCatalog runs the SeedVR2 inference scripts found under dir, one
// command engine per supported variant.
func DefaultCatalog(dir string) Catalog {
	var c Catalog
	for _, variant := range model.SupportedVariants {
		c.Backends = append(c.Backends, Spec{
			Variant: variant,
			Kind:    KindCommand,
			Command: "python3",
			Args: []string{
				"projects/inference_seedvr2_" + variant + ".py",
				"--video_path", "{input_dir}",
				"--output_dir", "{output_dir}",
				"--cfg_scale", "{cfg_scale}",
				"--cfg_rescale", "{cfg_rescale}",
				"--sample_steps", "{sample_steps}",
				"--seed", "{seed}",
				"--res_h", "{res_h}",
				"--res_w", "{res_w}",
				"--sp_size", "{sp_size}",
			},
			Dir: dir,
		})
	}
	return c
}

// LoadCatalog reads a YAML catalog file.
func LoadCatalog(path string) (Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Catalog{}, fmt.Errorf("failed to read backend catalog: %w", err)
	}

	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return Catalog{}, fmt.Errorf("failed to parse backend catalog: %w", err)
	}
	if err := c.Validate(); err != nil {
		return Catalog{}, err
	}
	return c, nil
}

// Validate checks that every entry names a supported variant and kind, and
// that no variant appears twice.
func (c Catalog) Validate() error {
	if len(c.Backends) == 0 {
		return fmt.Errorf("backend catalog is empty")
	}
	seen := make(map[string]bool)
	for i, s := range c.Backends {
		if !model.IsSupportedVariant(s.Variant) {
			return fmt.Errorf("backend %d: unsupported variant %q", i, s.Variant)
		}
		if seen[s.Variant] {
			return fmt.Errorf("backend %d: duplicate variant %q", i, s.Variant)
		}
		seen[s.Variant] = true

		switch s.Kind {
		case KindCommand:
			if s.Command == "" {
				return fmt.Errorf("backend %d (%s): command is required", i, s.Variant)
			}
		case KindPassthrough:
		default:
			return fmt.Errorf("backend %d (%s): unknown kind %q", i, s.Variant, s.Kind)
		}
	}
	return nil
}

// Register builds every engine in the catalog and adds it to reg.
func (c Catalog) Register(reg *Registry, logger *slog.Logger) error {
	if err := c.Validate(); err != nil {
		return err
	}
	for _, s := range c.Backends {
		var b Backend
		switch s.Kind {
		case KindCommand:
			cb, err := NewCommandBackend(s, logger)
			if err != nil {
				return err
			}
			b = cb
		case KindPassthrough:
			b = NewPassthroughBackend(s.Variant, s.Delay)
		}
		reg.Register(s.Variant, b)
		logger.Info("engine loaded", "variant", s.Variant, "kind", s.Kind, "name", b.Capabilities().Name)
	}
	return nil
}
