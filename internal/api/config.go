package api

import (
	"os"

	"go.yaml.in/yaml/v3"

	"github.com/kavinraju/cirrus/internal/errs"
)

// Config is the daemon configuration, loaded from a YAML file.
type Config struct {
	// Listen is the address the HTTP facade binds to.
	Listen string `yaml:"listen"`

	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`

	// VaultDir is where the file-based credential vault keeps its pairs.
	VaultDir string `yaml:"vault_dir"`

	Catalog struct {
		// Driver selects the catalog backend: yamlfile, postgres or mysql.
		Driver string `yaml:"driver"`

		// Path is the catalog file location (yamlfile driver).
		Path string `yaml:"path"`

		// DSN is the database connection string (postgres and mysql drivers).
		DSN string `yaml:"dsn"`
	} `yaml:"catalog"`

	Store struct {
		// Driver selects the object storage client: sigv4 (default) or minio.
		Driver string `yaml:"driver"`

		// ListLimit caps how many keys one listing refresh requests.
		ListLimit int `yaml:"list_limit"`
	} `yaml:"store"`
}

// DefaultConfig returns the configuration used when no file is given.
func DefaultConfig() *Config {
	cfg := &Config{
		Listen:   "127.0.0.1:8095",
		VaultDir: "./cirrus-vault",
	}
	cfg.Log.Level = "info"
	cfg.Log.Format = "console"
	cfg.Catalog.Driver = "yamlfile"
	cfg.Catalog.Path = "./catalog.yaml"
	cfg.Store.Driver = "sigv4"
	return cfg
}

// LoadConfig reads a YAML config file, filling unset fields with
// defaults.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errs.Wrap(errs.ErrKindConfiguration, "failed to read config file", err)
	}
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return nil, errs.Wrap(errs.ErrKindConfiguration, "config file is malformed", err)
	}

	if cfg.Listen == "" {
		cfg.Listen = DefaultConfig().Listen
	}
	if cfg.Catalog.Driver == "" {
		cfg.Catalog.Driver = "yamlfile"
	}
	if cfg.Store.Driver == "" {
		cfg.Store.Driver = "sigv4"
	}
	return cfg, nil
}
