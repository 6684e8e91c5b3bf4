package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"strings"

	"gimbaldac/internal/configpaths"

	toml "github.com/pelletier/go-toml"
	yaml "gopkg.in/yaml.v3"
)

// ConfigCmd groups config-related subcommands.
type ConfigCmd struct {
	Init  ConfigInit  `cmd:"" help:"Write a config file with every default filled in."`
	Check ConfigCheck `cmd:"" help:"Load and validate the config file."`
	Show  ConfigShow  `cmd:"" help:"Print the effective config (file plus defaults)."`
}

// ConfigInit scaffolds a daemon config file from DefaultConfig.
type ConfigInit struct {
	Format string `help:"Output format." enum:"json,yaml,toml" default:"yaml"`
	Output string `help:"Destination file path (defaults to the user config directory)." type:"path"`
	Force  bool   `help:"Overwrite if the file already exists."`
}

// Run writes the template and prints where it went.
func (c *ConfigInit) Run() error {
	format := normalizeFormat(c.Format)
	if format == "" {
		return fmt.Errorf("unsupported format: %s", c.Format)
	}

	dest := c.Output
	if dest == "" {
		p, err := configpaths.DefaultConfigPath(format)
		if err != nil {
			return err
		}
		dest = p
	}

	if !c.Force {
		if _, err := os.Stat(dest); err == nil {
			return errors.New("destination exists; use --force to overwrite")
		}
	}
	if err := configpaths.EnsureDir(dest); err != nil {
		return err
	}

	data, err := encodeConfig(DefaultConfig(), format)
	if err != nil {
		return err
	}
	if err := os.WriteFile(dest, data, 0o644); err != nil {
		return err
	}
	fmt.Println(dest)
	return nil
}

// ConfigCheck validates the config the daemon would load.
type ConfigCheck struct{}

func (c *ConfigCheck) Run(g *Globals) error {
	cfg, path, err := g.loadConfig()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if path == "" {
		path = "(defaults)"
	}
	fmt.Printf("%s: ok (pedal_mode=%s curve=%s update_hz=%d)\n",
		path, cfg.Throttle.PedalMode, cfg.Throttle.Curve, cfg.Output.UpdateHz)
	return nil
}

// ConfigShow prints the effective config.
type ConfigShow struct {
	Format string `help:"Output format." enum:"json,yaml,toml" default:"yaml"`
}

func (c *ConfigShow) Run(g *Globals) error {
	cfg, _, err := g.loadConfig()
	if err != nil {
		return err
	}
	data, err := encodeConfig(cfg, normalizeFormat(c.Format))
	if err != nil {
		return err
	}
	_, err = os.Stdout.Write(data)
	return err
}

func normalizeFormat(f string) string {
	switch strings.ToLower(f) {
	case "json":
		return "json"
	case "yaml", "yml":
		return "yaml"
	case "toml":
		return "toml"
	default:
		return ""
	}
}

// encodeConfig renders cfg in the given format. All formats go through the
// JSON field names so the keys match what LoadConfigFile accepts.
func encodeConfig(cfg Config, format string) ([]byte, error) {
	if format == "json" {
		b, err := json.MarshalIndent(cfg, "", "  ")
		if err != nil {
			return nil, err
		}
		return append(b, '\n'), nil
	}

	root, err := configMap(cfg)
	if err != nil {
		return nil, err
	}
	switch format {
	case "yaml":
		return yaml.Marshal(root)
	case "toml":
		return toml.Marshal(root)
	default:
		return nil, fmt.Errorf("unsupported format: %s", format)
	}
}

func configMap(cfg Config) (map[string]any, error) {
	b, err := json.Marshal(cfg)
	if err != nil {
		return nil, err
	}
	var root map[string]any
	if err := json.Unmarshal(b, &root); err != nil {
		return nil, err
	}
	return normalizeNumbers(root).(map[string]any), nil
}

// normalizeNumbers turns whole float64 values produced by encoding/json back
// into integers so templates read "update_hz: 200" rather than "200.0".
func normalizeNumbers(v any) any {
	switch t := v.(type) {
	case map[string]any:
		for k, e := range t {
			t[k] = normalizeNumbers(e)
		}
		return t
	case []any:
		for i, e := range t {
			t[i] = normalizeNumbers(e)
		}
		return t
	case float64:
		if t == math.Trunc(t) && math.Abs(t) < 1<<53 {
			return int64(t)
		}
		return t
	default:
		return v
	}
}
