// Package config loads runtime configuration: defaults, then an optional
// YAML file, then MENAGERIE_* environment overrides, then validation against
// an embedded CUE schema.
package config

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"github.com/roach88/menagerie/internal/kitties"
	"github.com/roach88/menagerie/internal/migration"
)

//go:embed schema.cue
var schemaCUE string

// EnvPrefix prefixes every environment override.
const EnvPrefix = "MENAGERIE_"

// Storage drivers.
const (
	DriverSQLite3 = "sqlite3"
	DriverSQLite  = "sqlite"
	DriverMemory  = "memory"
)

// Config is the full runtime configuration.
type Config struct {
	Storage   StorageConfig   `yaml:"storage" json:"storage" envPrefix:"STORAGE_"`
	Kitties   KittiesConfig   `yaml:"kitties" json:"kitties" envPrefix:"KITTIES_"`
	Ledger    LedgerConfig    `yaml:"ledger" json:"ledger" envPrefix:"LEDGER_"`
	Migration MigrationConfig `yaml:"migration" json:"migration" envPrefix:"MIGRATION_"`
	Log       LogConfig       `yaml:"log" json:"log" envPrefix:"LOG_"`
}

// StorageConfig selects the backing store.
type StorageConfig struct {
	Driver string `yaml:"driver" json:"driver" env:"DRIVER"`
	Path   string `yaml:"path" json:"path" env:"PATH"`
}

// KittiesConfig holds the module parameters.
type KittiesConfig struct {
	Price    int64  `yaml:"price" json:"price" env:"PRICE"`
	ModuleID string `yaml:"module_id" json:"module_id" env:"MODULE_ID"`
}

// LedgerConfig holds the reference ledger parameters.
type LedgerConfig struct {
	ExistentialDeposit int64 `yaml:"existential_deposit" json:"existential_deposit" env:"EXISTENTIAL_DEPOSIT"`
}

// MigrationConfig controls the upgrade signal.
type MigrationConfig struct {
	// TargetVersion is the layout version an upgrade migrates to.
	TargetVersion uint32 `yaml:"target_version" json:"target_version" env:"TARGET_VERSION"`

	// MaxRecords bounds the records rewritten per upgrade. Zero is unbounded.
	MaxRecords int `yaml:"max_records" json:"max_records" env:"MAX_RECORDS"`
}

// LogConfig controls logging.
type LogConfig struct {
	Level string `yaml:"level" json:"level" env:"LEVEL"`
}

// Default returns the built-in configuration.
func Default() Config {
	k := kitties.DefaultConfig()
	return Config{
		Storage: StorageConfig{Driver: DriverMemory},
		Kitties: KittiesConfig{
			Price:    int64(k.Price),
			ModuleID: k.ModuleID,
		},
		Ledger: LedgerConfig{ExistentialDeposit: 500},
		Migration: MigrationConfig{
			TargetVersion: migration.CurrentVersion,
		},
		Log: LogConfig{Level: "info"},
	}
}

// Load builds the configuration from defaults, the YAML file at path (if
// path is not empty), and the environment, then validates it.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := decodeYAML(data, &cfg); err != nil {
			return Config{}, err
		}
	}
	if err := ApplyEnv(&cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Parse decodes YAML over the defaults and validates the result. The
// environment is not consulted.
func Parse(data []byte) (Config, error) {
	cfg := Default()
	if err := decodeYAML(data, &cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func decodeYAML(data []byte, cfg *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return fmt.Errorf("parse config: %w", err)
	}
	return nil
}

// ApplyEnv overrides cfg with MENAGERIE_* environment variables.
func ApplyEnv(cfg *Config) error {
	if err := env.ParseWithOptions(cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// Validate checks cfg against the embedded CUE schema.
func (c Config) Validate() error {
	steps := migration.DefaultSteps
	maxTarget := steps[len(steps)-1].To

	ctx := cuecontext.New()
	schema := ctx.CompileString(fmt.Sprintf("%s\n#MaxTargetVersion: %d\n", schemaCUE, maxTarget))
	if err := schema.Err(); err != nil {
		return fmt.Errorf("compile config schema: %w", err)
	}

	val := ctx.Encode(c)
	if err := val.Err(); err != nil {
		return fmt.Errorf("encode config: %w", err)
	}

	def := schema.LookupPath(cue.ParsePath("#Config"))
	if err := def.Unify(val).Validate(cue.Concrete(true)); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}
