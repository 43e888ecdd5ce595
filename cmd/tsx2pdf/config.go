package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/goccy/go-yaml"

	tsx2pdf "github.com/halloran/go-tsx2pdf"
	"github.com/halloran/go-tsx2pdf/internal/fileutil"
)

// Sentinel errors for config operations.
var (
	ErrConfigNotFound  = errors.New("config file not found")
	ErrEmptyConfigName = errors.New("config name cannot be empty")
	ErrConfigParse     = errors.New("failed to parse config")
)

// maxConfigSize limits YAML input to prevent memory exhaustion.
const maxConfigSize = 1 << 20

// Config holds file-based configuration for document conversion.
type Config struct {
	Page     PageConfig     `yaml:"page"`
	Document DocumentConfig `yaml:"document"`
	Fonts    FontsConfig    `yaml:"fonts"`
}

// PageConfig defines PDF page options.
type PageConfig struct {
	Size     string  `yaml:"size"`     // "Letter", "A4", "Legal"
	Margin   float64 `yaml:"margin"`   // points, applied to all sides
	Standard string  `yaml:"standard"` // "PDF17", "PDFA1b"
}

// DocumentConfig defines PDF metadata.
type DocumentConfig struct {
	Title    string `yaml:"title"`
	Subject  string `yaml:"subject"`
	Author   string `yaml:"author"`
	Keywords string `yaml:"keywords"`
}

// FontsConfig defines font cache options.
type FontsConfig struct {
	CacheSize   int `yaml:"cacheSize"`   // entries (0 = default 20)
	Concurrency int `yaml:"concurrency"` // parallel fetches (0 = sequential)
}

// DefaultConfig returns a neutral configuration.
func DefaultConfig() *Config {
	return &Config{
		Page: PageConfig{
			Size:     tsx2pdf.PageSizeLetter,
			Margin:   tsx2pdf.DefaultMarginPt,
			Standard: tsx2pdf.StandardPDF17,
		},
	}
}

// LoadConfig loads configuration from a file path or config name.
// A nameOrPath containing a path separator is treated as a file path;
// otherwise it is searched in standard locations. Returns an error if
// the file is not found (no silent fallback).
func LoadConfig(nameOrPath string) (*Config, error) {
	if nameOrPath == "" {
		return nil, ErrEmptyConfigName
	}

	var configPath string
	var err error

	if fileutil.IsFilePath(nameOrPath) {
		configPath = nameOrPath
	} else {
		configPath, err = resolveConfigPath(nameOrPath)
		if err != nil {
			return nil, err
		}
	}

	data, err := os.ReadFile(configPath) // #nosec G304 -- config path is user-provided
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrConfigNotFound, configPath)
		}
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	if len(data) > maxConfigSize {
		return nil, fmt.Errorf("%w: file exceeds %d bytes", ErrConfigParse, maxConfigSize)
	}

	cfg := DefaultConfig()
	if err := yaml.UnmarshalWithOptions(data, cfg, yaml.Strict()); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfigParse, err)
	}

	return cfg, nil
}

// resolveConfigPath searches for <name>.yaml in the working directory
// and in ~/.config/tsx2pdf/.
func resolveConfigPath(name string) (string, error) {
	candidates := []string{name + ".yaml", name + ".yml"}

	if home, err := os.UserHomeDir(); err == nil {
		for _, c := range []string{name + ".yaml", name + ".yml"} {
			candidates = append(candidates, filepath.Join(home, ".config", "tsx2pdf", c))
		}
	}

	for _, c := range candidates {
		if fileutil.FileExists(c) {
			return c, nil
		}
	}
	return "", fmt.Errorf("%w: %s", ErrConfigNotFound, name)
}

// toPDFConfig merges file config and flags into the engine config.
// Flags win over config values.
func toPDFConfig(cfg *Config, flags *cliFlags) *tsx2pdf.PDFConfig {
	out := tsx2pdf.DefaultPDFConfig()

	if cfg.Page.Size != "" {
		out.PageSize = cfg.Page.Size
	}
	if cfg.Page.Margin >= 0 {
		setAllMargins(out, cfg.Page.Margin)
	}
	if cfg.Page.Standard != "" {
		out.Standard = cfg.Page.Standard
	}
	out.Title = cfg.Document.Title
	out.Subject = cfg.Document.Subject
	if cfg.Document.Author != "" {
		out.Author = &cfg.Document.Author
	}
	if cfg.Document.Keywords != "" {
		out.Keywords = &cfg.Document.Keywords
	}

	if flags.pageSize != "" {
		out.PageSize = flags.pageSize
	}
	if flags.margin >= 0 {
		setAllMargins(out, flags.margin)
	}
	if flags.standard != "" {
		out.Standard = flags.standard
	}
	if flags.title != "" {
		out.Title = flags.title
	}
	if flags.subject != "" {
		out.Subject = flags.subject
	}
	if flags.author != "" {
		out.Author = &flags.author
	}
	if flags.keywords != "" {
		out.Keywords = &flags.keywords
	}

	return out
}

// setAllMargins applies one margin value to all four sides.
func setAllMargins(cfg *tsx2pdf.PDFConfig, margin float64) {
	cfg.MarginTop = margin
	cfg.MarginRight = margin
	cfg.MarginBottom = margin
	cfg.MarginLeft = margin
}
