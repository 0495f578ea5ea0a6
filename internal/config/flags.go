package config

import (
	"fmt"

	"github.com/spf13/pflag"
)

// Flag names shared by the server and the collections CLI
const (
	FlagConfig          = "config"
	FlagStorePath       = "store-path"
	FlagBackend         = "backend"
	FlagMaxFragmentSize = "max-fragment-size"
	FlagHTTPAddr        = "http"
)

// RegisterFlags adds the store flags to fs; the HTTP flag only when withHTTP is set
func RegisterFlags(fs *pflag.FlagSet, withHTTP bool) {
	fs.StringP(FlagConfig, "c", "", "Path to a JSON or TOML config file")
	fs.StringP(FlagStorePath, "s", "", "Directory of the persistent collection store (required)")
	fs.String(FlagBackend, "", "Storage backend: bleve or sqlite (default bleve)")
	fs.Int(FlagMaxFragmentSize, 0, "Maximum fragment length in characters (default 1024)")
	if withHTTP {
		fs.String(FlagHTTPAddr, "", "Serve streamable HTTP on this address (e.g. :8080) instead of stdio")
	}
}

// FromFlags loads the config file named by --config, applies every flag that
// was set explicitly and finalizes the result
func FromFlags(fs *pflag.FlagSet) (Config, error) {
	cfg := Default()

	if path, _ := fs.GetString(FlagConfig); path != "" {
		loaded, err := Load(path)
		if err != nil {
			return cfg, err
		}
		cfg = loaded
	}

	if changed(fs, FlagStorePath) {
		cfg.StorePath, _ = fs.GetString(FlagStorePath)
	}
	if changed(fs, FlagBackend) {
		cfg.Backend, _ = fs.GetString(FlagBackend)
	}
	if changed(fs, FlagMaxFragmentSize) {
		size, _ := fs.GetInt(FlagMaxFragmentSize)
		if size <= 0 {
			return cfg, fmt.Errorf("%w: --%s must be positive, got %d", ErrInvalidConfig, FlagMaxFragmentSize, size)
		}
		cfg.MaxFragmentSize = size
	}
	if changed(fs, FlagHTTPAddr) {
		cfg.HTTPAddr, _ = fs.GetString(FlagHTTPAddr)
	}

	if err := cfg.Finalize(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func changed(fs *pflag.FlagSet, name string) bool {
	return fs.Lookup(name) != nil && fs.Changed(name)
}
