// Package config reads the repository configuration file.
package config

import (
	"errors"
	"fmt"
	"os"
	"sort"

	"github.com/BurntSushi/toml"
)

// FileName is the configuration file inside the metadata directory.
const FileName = "config.toml"

// Config is the decoded repository configuration.
type Config struct {
	Core  Core
	Merge Merge
	Hooks Hooks
}

type Core struct {
	Objects   string `toml:"objects"`    // loose | sqlite
	TreeCache int    `toml:"tree_cache"` // decoded trees kept in memory; 0 disables
}

type Merge struct {
	Renames string `toml:"renames"`
}

// Hooks holds the [hook] and [hookcmd] sections.
type Hooks struct {
	// RunHookDir is the policy for hooks found in the hook directory.
	RunHookDir string
	// Events maps an event name to its hook.<event>.command values in file
	// order.
	Events map[string][]string
	// Commands holds the hookcmd.<name> sections.
	Commands map[string]HookCmd
}

// HookCmd is a named hook command. A value in hook.<event>.command that
// names a HookCmd runs its Command instead; Skip removes it.
type HookCmd struct {
	Command string `toml:"command"`
	Skip    bool   `toml:"skip"`
}

type hookEvent struct {
	Command []string `toml:"command"`
}

type fileConfig struct {
	Core    Core                      `toml:"core"`
	Merge   Merge                     `toml:"merge"`
	Hook    map[string]toml.Primitive `toml:"hook"`
	HookCmd map[string]HookCmd        `toml:"hookcmd"`
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	return &Config{
		Core:  Core{Objects: "loose", TreeCache: 1024},
		Merge: Merge{Renames: "none"},
		Hooks: Hooks{
			RunHookDir: "yes",
			Events:     make(map[string][]string),
			Commands:   make(map[string]HookCmd),
		},
	}
}

// Load reads the configuration at path. A missing file yields Default.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Default(), nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(string(data))
}

// Parse decodes a configuration document, filling unset keys from Default.
func Parse(doc string) (*Config, error) {
	def := Default()
	fc := fileConfig{Core: def.Core, Merge: def.Merge}
	md, err := toml.Decode(doc, &fc)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg := &Config{Core: fc.Core, Merge: fc.Merge, Hooks: def.Hooks}
	for key, prim := range fc.Hook {
		if key == "runhookdir" {
			if err := md.PrimitiveDecode(prim, &cfg.Hooks.RunHookDir); err != nil {
				return nil, fmt.Errorf("read config: hook.runhookdir: %w", err)
			}
			continue
		}
		var ev hookEvent
		if err := md.PrimitiveDecode(prim, &ev); err != nil {
			return nil, fmt.Errorf("read config: hook.%s: %w", key, err)
		}
		cfg.Hooks.Events[key] = ev.Command
	}
	for name, hc := range fc.HookCmd {
		cfg.Hooks.Commands[name] = hc
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		sort.Strings(keys)
		return nil, fmt.Errorf("read config: unknown keys %v", keys)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks enumerated settings.
func (c *Config) Validate() error {
	switch c.Core.Objects {
	case "loose", "sqlite":
	default:
		return fmt.Errorf("config: core.objects: unknown backend %q", c.Core.Objects)
	}
	if c.Core.TreeCache < 0 {
		return fmt.Errorf("config: core.tree_cache: must not be negative")
	}
	switch c.Merge.Renames {
	case "", "none":
	default:
		return fmt.Errorf("config: merge.renames: unsupported detector %q", c.Merge.Renames)
	}
	return nil
}

// Save writes c to path.
func (c *Config) Save(path string) error {
	fc := struct {
		Core    Core               `toml:"core"`
		Merge   Merge              `toml:"merge"`
		Hook    map[string]any     `toml:"hook"`
		HookCmd map[string]HookCmd `toml:"hookcmd,omitempty"`
	}{
		Core:    c.Core,
		Merge:   c.Merge,
		Hook:    map[string]any{"runhookdir": c.Hooks.RunHookDir},
		HookCmd: c.Hooks.Commands,
	}
	for ev, cmds := range c.Hooks.Events {
		fc.Hook[ev] = hookEvent{Command: cmds}
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	if err := toml.NewEncoder(f).Encode(fc); err != nil {
		f.Close()
		return fmt.Errorf("write config: encode: %w", err)
	}
	return f.Close()
}
