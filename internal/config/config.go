package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gregLibert/sd-card/pkg/logging"
	"github.com/gregLibert/sd-card/pkg/sdio"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Environment overrides.
const (
	EnvImage     = "SDCARD_IMAGE"
	EnvLogLevel  = "SDCARD_LOG_LEVEL"
	EnvLogFormat = "SDCARD_LOG_FORMAT"
	EnvTrace     = "SDCARD_TRACE"
)

// minHeapSize holds the staging block plus both command descriptors.
const minHeapSize = 0x280

type Config struct {
	Device DeviceConfig `yaml:"device"`
	Image  ImageConfig  `yaml:"image"`
	Card   CardConfig   `yaml:"card"`
	Log    LogConfig    `yaml:"log"`
	Trace  TraceConfig  `yaml:"trace"`
}

type DeviceConfig struct {
	Path     string `yaml:"path"`
	HeapSize int    `yaml:"heap_size"`
}

type ImageConfig struct {
	Path string `yaml:"path"`
	// CreateSectors, when set, creates the image if it does not exist.
	CreateSectors uint64 `yaml:"create_sectors"`
	ReadOnly      bool   `yaml:"read_only"`
}

type CardConfig struct {
	RCA     uint16 `yaml:"rca"`
	Product string `yaml:"product"`
	Serial  uint32 `yaml:"serial"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type TraceConfig struct {
	Path string `yaml:"path"`
}

// Default returns the configuration used without a config file.
func Default() *Config {
	return &Config{
		Device: DeviceConfig{Path: sdio.DefaultDevicePath, HeapSize: sdio.DefaultHeapSize},
		Card:   CardConfig{RCA: 0xB368, Product: "SIMSD", Serial: 0x0C0FFEE0},
		Log:    LogConfig{Level: "warn", Format: "text"},
	}
}

// Load reads a YAML config on top of the defaults. Relative paths are
// resolved against the config file directory.
func Load(path string) (*Config, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(content))
	dec.KnownFields(true)

	cfg := Default()
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse config yaml: %w", err)
	}
	cfg.resolvePaths(path)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadEnv loads variables from dotenv files into the process environment.
// Missing files are skipped and variables already set are kept.
func LoadEnv(files ...string) error {
	for _, f := range files {
		if err := godotenv.Load(f); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("load %s: %w", f, err)
		}
	}
	return nil
}

// ApplyEnv overrides fields from SDCARD_* variables.
func (c *Config) ApplyEnv() {
	if v, ok := os.LookupEnv(EnvImage); ok {
		c.Image.Path = v
	}
	if v, ok := os.LookupEnv(EnvLogLevel); ok {
		c.Log.Level = v
	}
	if v, ok := os.LookupEnv(EnvLogFormat); ok {
		c.Log.Format = v
	}
	if v, ok := os.LookupEnv(EnvTrace); ok {
		c.Trace.Path = v
	}
}

func (c *Config) Validate() error {
	if !strings.HasPrefix(c.Device.Path, "/dev/") {
		return fmt.Errorf("config.device.path must be a device path, got %q", c.Device.Path)
	}
	if c.Device.HeapSize < minHeapSize {
		return fmt.Errorf("config.device.heap_size must be at least %#x", minHeapSize)
	}
	if c.Card.RCA == 0 {
		return fmt.Errorf("config.card.rca must be non-zero")
	}
	if len(c.Card.Product) > 5 {
		return fmt.Errorf("config.card.product must be at most 5 characters")
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("config.log.level: %w", err)
	}
	if _, err := logging.ParseFormat(c.Log.Format); err != nil {
		return fmt.Errorf("config.log.format: %w", err)
	}
	if c.Image.ReadOnly && c.Image.CreateSectors > 0 {
		return fmt.Errorf("config.image.create_sectors cannot be used with read_only")
	}
	if c.Image.Path != "" {
		if info, err := os.Stat(c.Image.Path); err == nil && info.IsDir() {
			return fmt.Errorf("config.image.path must point to a file, got directory")
		}
	}
	return nil
}

// RequireImage checks that an image is configured and reachable.
func (c *Config) RequireImage() error {
	if strings.TrimSpace(c.Image.Path) == "" {
		return fmt.Errorf("no card image: set config.image.path or %s", EnvImage)
	}
	if _, err := os.Stat(c.Image.Path); err != nil {
		if errors.Is(err, fs.ErrNotExist) && c.Image.CreateSectors > 0 {
			return nil
		}
		return fmt.Errorf("config.image.path: %w", err)
	}
	return nil
}

func (c *Config) resolvePaths(configPath string) {
	configDir := filepath.Dir(configPath)
	c.Image.Path = resolvePath(configDir, c.Image.Path)
	c.Trace.Path = resolvePath(configDir, c.Trace.Path)
}

func resolvePath(baseDir, path string) string {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" || filepath.IsAbs(trimmed) {
		return trimmed
	}
	return filepath.Clean(filepath.Join(baseDir, trimmed))
}

// ParseSectors parses a sector count, accepting K, M and G byte suffixes
// ("64M" is 131072 sectors).
func ParseSectors(s string) (uint64, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	mult := uint64(1)
	bytesUnit := false
	switch {
	case strings.HasSuffix(s, "K"):
		mult, bytesUnit = 1<<10, true
	case strings.HasSuffix(s, "M"):
		mult, bytesUnit = 1<<20, true
	case strings.HasSuffix(s, "G"):
		mult, bytesUnit = 1<<30, true
	}
	if bytesUnit {
		s = s[:len(s)-1]
	}

	n, err := strconv.ParseUint(s, 0, 64)
	if err != nil || n == 0 {
		return 0, fmt.Errorf("invalid size %q", s)
	}
	if !bytesUnit {
		return n, nil
	}
	total := n * mult
	if total%512 != 0 {
		return 0, fmt.Errorf("size %q is not a whole number of sectors", s)
	}
	return total / 512, nil
}
