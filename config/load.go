package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// EnvPrefix is the prefix of environment variables overriding file values,
// e.g. DBPROXY_DATABASE_PROFILE=main.
const EnvPrefix = "dbproxy"

// NewViper returns a viper instance reading environment overrides.
func NewViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	return v
}

// Load decodes the database parameters and profiles held by v.
func Load(v *viper.Viper) (*Static, error) {
	s := &Static{}
	if err := v.UnmarshalKey("database", &s.Database); err != nil {
		return nil, fmt.Errorf("can't decode database params: %w", err)
	}
	// Environment overrides are not visible to UnmarshalKey on nested keys.
	if p := v.GetString("database.profile"); p != "" {
		s.Database.Profile = p
	}
	if p := v.GetString("database.error_log_path"); p != "" {
		s.Database.ErrorLogPath = p
	}
	if err := v.UnmarshalKey("db_profiles", &s.Profiles); err != nil {
		return nil, fmt.Errorf("can't decode db_profiles: %w", err)
	}
	return s, nil
}

// LoadFile reads a configuration file (yaml, json, toml...) and decodes it.
func LoadFile(path string) (*Static, error) {
	v := NewViper()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("can't read %s: %w", path, err)
	}
	return Load(v)
}
