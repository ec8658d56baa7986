package config

import (
	"fmt"
	"os"
)

// ProviderConfig names a provider backend and carries its connection
// settings.
type ProviderConfig struct {
	Provider string            `yaml:"provider"`
	Settings map[string]string `yaml:"settings"`
}

// validate checks the block and expands ${ENV_VAR} references in setting values.
func (pc *ProviderConfig) validate(section string) error {
	if pc.Provider == "" {
		return fmt.Errorf("%s config: missing required field 'provider'", section)
	}
	if pc.Settings == nil {
		pc.Settings = map[string]string{}
	}
	for k, v := range pc.Settings {
		pc.Settings[k] = os.ExpandEnv(v)
	}
	return nil
}
