package config

import (
	"fmt"
	"os"

	"github.com/hashicorp/go-hclog"
	"github.com/joho/godotenv"

	"github.com/isometry/ldap-verifier/internal/ldap"
)

// EnvOverrides maps environment variables onto the properties they replace,
// so that credentials can stay out of configuration files.
var EnvOverrides = map[string]string{
	"LDAP_VERIFIER_PROVIDER_URL": KeyPrefix + "java.naming.provider.url",
	"LDAP_VERIFIER_PRINCIPAL":    KeyPrefix + "java.naming.security.principal",
	"LDAP_VERIFIER_CREDENTIALS":  KeyPrefix + "java.naming.security.credentials",
}

// Source names where a configuration comes from. Exactly one of ConfigFile
// and InventoryFile must be set.
type Source struct {
	ConfigFile      string // Java properties file
	InventoryFile   string // cp-ansible inventory
	ReplacementFile string // {{...}} replacements, properties format
	EnvFile         string // dotenv file loaded into the environment first
}

// Validate checks that the source names exactly one configuration.
func (s Source) Validate() error {
	switch {
	case s.ConfigFile != "" && s.InventoryFile != "":
		return fmt.Errorf("%w: config file and inventory file are mutually exclusive", ldap.ErrInvalidConfig)
	case s.ConfigFile == "" && s.InventoryFile == "":
		return fmt.Errorf("%w: need to choose either config or inventory file", ldap.ErrInvalidConfig)
	}
	return nil
}

// LoadProperties reads the properties named by src, applies replacements
// and environment overrides.
func LoadProperties(src Source, logger hclog.Logger) (Properties, error) {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	if err := src.Validate(); err != nil {
		return nil, err
	}

	if src.EnvFile != "" {
		// Variables already set in the environment win.
		if err := godotenv.Load(src.EnvFile); err != nil {
			return nil, fmt.Errorf("%w: failed to load env file: %w", ldap.ErrInvalidConfig, err)
		}
		logger.Debug("loaded environment file", "path", src.EnvFile)
	}

	var (
		props Properties
		err   error
	)
	if src.ConfigFile != "" {
		props, err = LoadPropertiesFile(src.ConfigFile)
		logger.Debug("loaded properties file", "path", src.ConfigFile, "keys", len(props))
	} else {
		props, err = LoadInventoryFile(src.InventoryFile)
		logger.Debug("loaded inventory file", "path", src.InventoryFile, "keys", len(props))
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ldap.ErrInvalidConfig, err)
	}

	if src.ReplacementFile != "" {
		replacements, err := LoadPropertiesFile(src.ReplacementFile)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ldap.ErrInvalidConfig, err)
		}
		props.ApplyReplacements(replacements)
		logger.Debug("applied replacements", "path", src.ReplacementFile, "replacements", len(replacements))
	}

	ApplyEnvironment(props, os.LookupEnv, logger)
	return props, nil
}

// ApplyEnvironment overrides properties from EnvOverrides variables that are
// set and non-empty.
func ApplyEnvironment(props Properties, lookup func(string) (string, bool), logger hclog.Logger) {
	for env, key := range EnvOverrides {
		if v, ok := lookup(env); ok && v != "" {
			props[key] = v
			if logger != nil {
				logger.Debug("property overridden from environment", "key", key, "variable", env)
			}
		}
	}
}

// Load resolves src into a validated directory configuration.
func Load(src Source, logger hclog.Logger) (*ldap.Config, error) {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	logger = logger.Named("config")

	props, err := LoadProperties(src, logger)
	if err != nil {
		return nil, err
	}

	cfg, err := ToLDAPConfig(props, logger)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger.Debug("configuration resolved",
		"urls", cfg.URLs,
		"search_mode", cfg.SearchMode.String(),
		"auth_method", cfg.Authentication.String(),
	)
	return cfg, nil
}
