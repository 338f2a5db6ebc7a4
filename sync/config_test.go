package sync

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loadDefaultMappings(t *testing.T, env CompositeEnvVar, overrides ...MappingFile) (Config, error) {
	required, err := DefaultMappings.MustFindRequiredMappingFile()
	require.NoError(t, err)
	defaults, err := DefaultMappings.MustFindDefaultsMappingFile()
	require.NoError(t, err)
	sources := append([]MappingFile{required, defaults}, overrides...)
	return YAMLConfigUnmarshaler{}.Unmarshal(env, sources...)
}

func TestYAMLConfigUnmarshaler_DefaultMappings(t *testing.T) {
	unsetEnv(t, "HUBPULL_SINK_URL", "HUBPULL_SINK_KEY")
	config, err := loadDefaultMappings(t, PrefixedEnvVar{})
	require.NoError(t, err)

	assert.Equal(t, 4.0, config.API.RateLimit.RequestsPerSecond)
	assert.Equal(t, 4, config.API.RateLimit.Burst)
	assert.Equal(t, "", config.API.Endpoints.Sink)
	assert.Equal(t, DefaultSyncSettings(), config.Sync)

	companies := config.Entity(Companies)
	assert.Equal(t, "country|@countryName", companies.CustomFieldMappings.Strings["company_country"])
	assert.Equal(t, "toLower", companies.FieldTransforms["company_lead_status"])
	assert.Contains(t, config.Entity(Contacts).Properties, "email")
	assert.Contains(t, config.Entity(Meetings).Properties, "hs_meeting_title")
}

func TestYAMLConfigUnmarshaler_ExpandsPrefixedEnvironment(t *testing.T) {
	t.Setenv("HUBSPOT_API_URL", "http://bare.example.com")
	t.Setenv("STAGING_HUBSPOT_API_URL", "http://staging.example.com")
	t.Setenv("HUBPULL_SINK_URL", "http://sink.example.com")

	config, err := loadDefaultMappings(t, PrefixedEnvVar{Prefix: "STAGING_"})
	require.NoError(t, err)
	assert.Equal(t, "http://staging.example.com", config.API.Endpoints.CRM)
	assert.Equal(t, "http://sink.example.com", config.API.Endpoints.Sink)
}

func TestYAMLConfigUnmarshaler_Override(t *testing.T) {
	override := NewMappingFile("override.yaml", []byte(`
sync:
  pageSize: 50
  initialBackoff: 1s
meetings:
  customFieldMappings:
    strings:
      meeting_outcome: hs_meeting_outcome
`))
	config, err := loadDefaultMappings(t, PrefixedEnvVar{}, override)
	require.NoError(t, err)
	assert.Equal(t, 50, config.Sync.PageSize)
	assert.Equal(t, time.Second, config.Sync.InitialBackoff)
	assert.Equal(t, DefaultFlushThreshold, config.Sync.FlushThreshold)
	assert.Equal(t, "hs_meeting_outcome", config.Entity(Meetings).CustomFieldMappings.Strings["meeting_outcome"])
	assert.Contains(t, config.Entity(Meetings).SearchProperties(Meetings), "hs_meeting_outcome")
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		config EntityConfig
	}{
		{"builtin clash", EntityConfig{
			CustomFieldMappings: FieldMappings{Strings: map[string]string{"company_domain": "website"}},
		}},
		{"unmapped transform", EntityConfig{
			FieldTransforms: map[string]string{"company_name": "toLower"},
		}},
		{"unknown transform", EntityConfig{
			CustomFieldMappings: FieldMappings{Strings: map[string]string{"company_name": "name"}},
			FieldTransforms:     map[string]string{"company_name": "reverse"},
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := Config{Entities: map[EntityType]EntityConfig{Companies: tt.config}}
			assert.Error(t, config.Validate())
		})
	}

	valid := Config{Entities: map[EntityType]EntityConfig{Companies: {
		CustomFieldMappings: FieldMappings{Strings: map[string]string{"company_name": "name"}},
		FieldTransforms:     map[string]string{"company_name": "onlyIfNotDefault:n/a"},
	}}}
	assert.NoError(t, valid.Validate())
}

func TestEntityConfig_SearchProperties(t *testing.T) {
	ec := EntityConfig{
		Properties: []string{"name", "domain", "description"},
		CustomFieldMappings: FieldMappings{
			Strings:  map[string]string{"company_country": "country|@countryName", "company_segment": "`enterprise`"},
			Integers: map[string]string{"company_employees": "numberofemployees"},
		},
	}
	assert.Equal(t, []string{"domain", "industry", "name", "description", "country", "numberofemployees"}, ec.SearchProperties(Companies))
}

func TestApplyEnvironment(t *testing.T) {
	config := Config{Sync: SyncSettings{PageSize: 25}}
	config.API.Keys.ClientSecret = "configured"
	require.NoError(t, ApplyEnvironment(&config, Environment{ClientID: "cid", ClientSecret: "env"}))

	assert.Equal(t, "cid", config.API.Keys.ClientID)
	assert.Equal(t, "configured", config.API.Keys.ClientSecret)
	assert.Equal(t, 25, config.Sync.PageSize)
	assert.Equal(t, DefaultMaxAttempts, config.Sync.MaxAttempts)
	assert.Equal(t, DefaultInitialDelay, config.Sync.InitialBackoff)
}

func TestLoadConfigFromEnvironment(t *testing.T) {
	path := filepath.Join(t.TempDir(), "override.yaml")
	require.NoError(t, os.WriteFile(path, []byte("sync:\n  flushThreshold: 500\n"), 0o600))
	t.Setenv("HUBPULL_CONFIG_PATH", path)
	t.Setenv("HUBSPOT_CID", "cid")
	t.Setenv("HUBSPOT_CS", "secret")

	config, err := LoadConfigFromEnvironment(DefaultMappings)
	require.NoError(t, err)
	assert.Equal(t, 500, config.Sync.FlushThreshold)
	assert.Equal(t, "cid", config.API.Keys.ClientID)
	assert.Equal(t, "secret", config.API.Keys.ClientSecret)
}

func unsetEnv(t *testing.T, names ...string) {
	for _, name := range names {
		t.Setenv(name, "")
		require.NoError(t, os.Unsetenv(name))
	}
}

func TestLoadConfigFromEnvironment_WithoutSink(t *testing.T) {
	unsetEnv(t, "HUBPULL_SINK_URL", "HUBPULL_SINK_KEY", "HUBPULL_CONFIG_PATH", "HUBPULL_ENV_PREFIX")

	config, err := LoadConfigFromEnvironment(DefaultMappings)
	require.NoError(t, err)
	assert.Equal(t, "", config.API.Endpoints.Sink)
	assert.Equal(t, "", config.API.Keys.Sink)
	assert.IsType(t, LogSink{}, NewSink(NewSyncContext(config)))

	t.Setenv("HUBPULL_SINK_URL", "http://sink.example.com")
	t.Setenv("HUBPULL_SINK_KEY", "sink-key")
	config, err = LoadConfigFromEnvironment(DefaultMappings)
	require.NoError(t, err)
	assert.Equal(t, "sink-key", config.API.Keys.Sink)
	sink, ok := NewSink(NewSyncContext(config)).(HTTPSink)
	require.True(t, ok)
	assert.Equal(t, "http://sink.example.com", sink.Config.API.Endpoints.Sink)
}
