package main

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/gogpu/emote"
)

type config struct {
	// Backend is a render backend name; empty picks the best available.
	Backend     string
	Size        int
	OutputDir   string
	Catalog     string // TOML effect catalog; empty uses the built-in effects
	PreviewRate float64

	// EncoderWorkers gives each render its own quantization pool; 0 shares
	// one pool sized to the CPUs.
	EncoderWorkers int
	PaletteSize    int // 0 means 256
}

const configFile = "config.toml"

func defaultConfig() config {
	return config{
		Size:        emote.DefaultSize,
		OutputDir:   ".",
		PreviewRate: emote.DefaultPreviewRate,
	}
}

// readConfig decodes path over the defaults. A missing file is not an error.
func readConfig(log *slog.Logger, path string) (config, error) {
	conf := defaultConfig()
	md, err := toml.DecodeFile(path, &conf)
	if errors.Is(err, fs.ErrNotExist) {
		log.Debug("no config file", "path", path)
		return defaultConfig(), nil
	}
	if err != nil {
		return config{}, fmt.Errorf("config %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return config{}, fmt.Errorf("config %s: unknown keys: %s", path, strings.Join(keys, ", "))
	}
	if conf.Size <= 0 {
		return config{}, fmt.Errorf("config %s: size must be positive, got %d", path, conf.Size)
	}
	if conf.EncoderWorkers < 0 || conf.PaletteSize < 0 || conf.PaletteSize > 256 {
		return config{}, fmt.Errorf("config %s: bad encoder settings: %d workers, %d colors", path, conf.EncoderWorkers, conf.PaletteSize)
	}
	if conf.PreviewRate <= 0 {
		return config{}, fmt.Errorf("config %s: preview rate must be positive, got %v", path, conf.PreviewRate)
	}
	log.Debug("config loaded", "path", path)
	return conf, nil
}

func writeConfig(path string, conf config) error {
	var buffer bytes.Buffer
	if err := toml.NewEncoder(&buffer).Encode(conf); err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	return os.WriteFile(path, buffer.Bytes(), 0o644)
}

func configPath() string {
	return filepath.Join(configDir(), configFile)
}

func configDir() string {
	return filepath.Join(xdgOrFallback("XDG_CONFIG_HOME", filepath.Join(os.Getenv("HOME"), ".config")), "emote")
}

func xdgOrFallback(xdg, fallback string) string {
	if dir := os.Getenv(xdg); dir != "" {
		if fi, err := os.Stat(dir); err == nil && fi.IsDir() {
			return dir
		}
	}
	return fallback
}
