package sync

import (
	"fmt"

	"github.com/imdario/mergo"
	"github.com/kelseyhightower/envconfig"
)

// Environment holds the settings read from environment variables.
type Environment struct {
	ConfigPath   string `envconfig:"HUBPULL_CONFIG_PATH"`
	EnvPrefix    string `envconfig:"HUBPULL_ENV_PREFIX"`
	ClientID     string `envconfig:"HUBSPOT_CID"`
	ClientSecret string `envconfig:"HUBSPOT_CS"`
}

func ReadEnvironment() (Environment, error) {
	var result Environment
	if err := envconfig.Process("", &result); err != nil {
		return result, fmt.Errorf("failed to read environment %w", err)
	}
	return result, nil
}

// LoadConfigFromEnvironment loads the required and defaults mapping files,
// then the override file named by HUBPULL_CONFIG_PATH if set. OAuth client
// credentials not present in the config are taken from HUBSPOT_CID and HUBSPOT_CS.
func LoadConfigFromEnvironment(embeddedMappings EmbeddedMappings) (Config, error) {
	var result Config
	env, err := ReadEnvironment()
	if err != nil {
		return result, err
	}

	requiredMappingFile, err := embeddedMappings.MustFindRequiredMappingFile()
	if err != nil {
		return result, fmt.Errorf("failed to read required mapping file %w", err)
	}
	defaultsMappingFile, err := embeddedMappings.MustFindDefaultsMappingFile()
	if err != nil {
		return result, fmt.Errorf("failed to read defaults mapping file %w", err)
	}
	sources := []MappingFile{requiredMappingFile, defaultsMappingFile}
	if env.ConfigPath != "" {
		overrideMappingFile, err := MappingFileFromPath(env.ConfigPath)
		if err != nil {
			return result, err
		}
		sources = append(sources, overrideMappingFile)
	}

	result, err = YAMLConfigUnmarshaler{}.Unmarshal(PrefixedEnvVar{Prefix: env.EnvPrefix}, sources...)
	if err != nil {
		return result, fmt.Errorf("failed to load config %w", err)
	}
	return result, ApplyEnvironment(&result, env)
}

// ApplyEnvironment fills unset client credentials from env and unset sync settings from the defaults.
func ApplyEnvironment(c *Config, env Environment) error {
	if c.API.Keys.ClientID == "" {
		c.API.Keys.ClientID = env.ClientID
	}
	if c.API.Keys.ClientSecret == "" {
		c.API.Keys.ClientSecret = env.ClientSecret
	}
	if err := mergo.Merge(&c.Sync, DefaultSyncSettings()); err != nil {
		return fmt.Errorf("failed to apply default sync settings %w", err)
	}
	return nil
}
