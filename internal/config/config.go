// Package config loads and validates the server configuration.
//
// Values come from an optional JSON or TOML file and are then overridden by
// command-line flags. Files are checked against an embedded JSON Schema
// before they are decoded.
package config

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"github.com/santhosh-tekuri/jsonschema/v6"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/docbuilder/mcp-server/internal/ingestion"
	"github.com/docbuilder/mcp-server/internal/storage"
)

const schemaURL = "https://docbuilder.dev/schema/mcp-server-config.json"

//go:embed schema.json
var schemaJSON []byte

var (
	// ErrStorePathRequired is returned by Finalize when no store path was given
	ErrStorePathRequired = errors.New("store path is required (use --store-path or store_path in the config file)")

	// ErrInvalidConfig wraps every schema or value violation
	ErrInvalidConfig = errors.New("invalid configuration")
)

// Config holds the server settings
type Config struct {
	StorePath       string `json:"store_path"`
	Backend         string `json:"backend"`
	MaxFragmentSize int    `json:"max_fragment_size"`
	HTTPAddr        string `json:"http_addr"`
}

// Default returns the configuration used when nothing else is set
func Default() Config {
	return Config{
		Backend:         storage.DefaultBackend,
		MaxFragmentSize: ingestion.DefaultMaxFragmentSize,
	}
}

// Load reads path on top of the defaults.
// Files ending in .toml are parsed as TOML, anything else as JSON.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("reading config file: %w", err)
	}

	raw := data
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		raw, err = tomlToJSON(data)
		if err != nil {
			return cfg, fmt.Errorf("%w: %s: %v", ErrInvalidConfig, path, err)
		}
	}

	if err := Validate(raw); err != nil {
		return cfg, fmt.Errorf("%s: %w", path, err)
	}

	if err := json.Unmarshal(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("%w: %s: %v", ErrInvalidConfig, path, err)
	}
	return cfg, nil
}

// tomlToJSON re-encodes a TOML document as JSON so both formats go through
// the same schema and decoder
func tomlToJSON(data []byte) ([]byte, error) {
	var doc map[string]interface{}
	if err := toml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	if doc == nil {
		doc = map[string]interface{}{}
	}
	return json.Marshal(doc)
}

// Validate checks a JSON configuration document against the embedded schema
func Validate(raw []byte) error {
	var doc interface{}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("%w: invalid JSON: %v", ErrInvalidConfig, err)
	}

	schema, err := compileSchema()
	if err != nil {
		return err
	}

	if err := schema.Validate(doc); err != nil {
		var validationErr *jsonschema.ValidationError
		if errors.As(err, &validationErr) {
			printer := message.NewPrinter(language.English)
			return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(schemaViolations(validationErr, printer), "; "))
		}
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return nil
}

func compileSchema() (*jsonschema.Schema, error) {
	var schemaDoc interface{}
	if err := json.Unmarshal(schemaJSON, &schemaDoc); err != nil {
		return nil, fmt.Errorf("embedded config schema is invalid: %w", err)
	}

	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(schemaURL, schemaDoc); err != nil {
		return nil, fmt.Errorf("adding config schema: %w", err)
	}
	return compiler.Compile(schemaURL)
}

// schemaViolations flattens a validation error tree into "path: message" lines
func schemaViolations(validationErr *jsonschema.ValidationError, printer *message.Printer) []string {
	if len(validationErr.Causes) == 0 {
		path := "$"
		if len(validationErr.InstanceLocation) > 0 {
			path = "$." + strings.Join(validationErr.InstanceLocation, ".")
		}
		return []string{fmt.Sprintf("%s: %s", path, validationErr.ErrorKind.LocalizedString(printer))}
	}

	var violations []string
	for _, cause := range validationErr.Causes {
		violations = append(violations, schemaViolations(cause, printer)...)
	}
	return violations
}

// Finalize fills defaults and normalises the store path to an absolute path.
// It must be called after flags have been applied.
func (c *Config) Finalize() error {
	if c.Backend == "" {
		c.Backend = storage.DefaultBackend
	}
	if c.Backend != storage.BackendBleve && c.Backend != storage.BackendSQLite {
		return fmt.Errorf("%w: unknown backend %q (want %s or %s)",
			ErrInvalidConfig, c.Backend, storage.BackendBleve, storage.BackendSQLite)
	}

	if c.MaxFragmentSize == 0 {
		c.MaxFragmentSize = ingestion.DefaultMaxFragmentSize
	}
	if c.MaxFragmentSize < 0 {
		return fmt.Errorf("%w: max fragment size must be positive, got %d", ErrInvalidConfig, c.MaxFragmentSize)
	}

	if strings.TrimSpace(c.StorePath) == "" {
		return ErrStorePathRequired
	}
	path, err := expandHome(c.StorePath)
	if err != nil {
		return err
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("resolving store path: %w", err)
	}
	c.StorePath = abs

	return nil
}

func expandHome(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") && !strings.HasPrefix(path, `~\`) {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("expanding home directory: %w", err)
	}
	return filepath.Join(home, path[1:]), nil
}
