package sync

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"go.uber.org/config"
)

type Config struct {
	API      APISettings
	Sync     SyncSettings
	Entities map[EntityType]EntityConfig
}

type APISettings struct {
	Keys struct {
		ClientID     string `yaml:"clientId"`
		ClientSecret string `yaml:"clientSecret"`
		Sink         string `yaml:"sink"`
	}
	Endpoints struct {
		CRM   string `yaml:"crm"`
		Token string `yaml:"token"`
		Sink  string `yaml:"sink"`
	}
	RateLimit struct {
		RequestsPerSecond float64 `yaml:"requestsPerSecond"`
		Burst             int     `yaml:"burst"`
	} `yaml:"rateLimit"`
}

type SyncSettings struct {
	PageSize            int           `yaml:"pageSize"`
	MaxAttempts         int           `yaml:"maxAttempts"`
	InitialBackoff      time.Duration `yaml:"initialBackoff"`
	FlushThreshold      int           `yaml:"flushThreshold"`
	QueueCapacity       int           `yaml:"queueCapacity"`
	AttendeeCacheSize   int           `yaml:"attendeeCacheSize"`
	FollowUpConcurrency int           `yaml:"followUpConcurrency"`
	RecordRequests      bool          `yaml:"recordRequests"`
}

func DefaultSyncSettings() SyncSettings {
	return SyncSettings{
		PageSize:            DefaultSearchPageSize,
		MaxAttempts:         DefaultMaxAttempts,
		InitialBackoff:      DefaultInitialDelay,
		FlushThreshold:      DefaultFlushThreshold,
		QueueCapacity:       DefaultQueueCapacity,
		AttendeeCacheSize:   DefaultAttendeeCacheSize,
		FollowUpConcurrency: DefaultFollowUpConcurrency,
	}
}

func (s SyncSettings) RetryConfig() RetryConfig {
	return RetryConfig{MaxAttempts: s.MaxAttempts, InitialDelay: s.InitialBackoff}
}

// EntityConfig configures what is pulled for one entity type.
type EntityConfig struct {
	// Properties are requested from search in addition to the builtin ones.
	Properties          []string          `yaml:"properties"`
	CustomFieldMappings FieldMappings     `yaml:"customFieldMappings"`
	FieldTransforms     map[string]string `yaml:"fieldTransforms"`
}

// SearchProperties returns the builtin search properties, then the configured
// ones, then those read by custom mappings, without duplicates.
func (c EntityConfig) SearchProperties(entity EntityType) []string {
	mapped := c.CustomFieldMappings.SourceProperties()
	sort.Strings(mapped)
	all := append(BuiltinSearchProperties(entity), c.Properties...)
	all = append(all, mapped...)
	seen := make(map[string]bool)
	var result []string
	for _, p := range all {
		if p == "" || seen[p] {
			continue
		}
		seen[p] = true
		result = append(result, p)
	}
	return result
}

func (c Config) Entity(entity EntityType) EntityConfig {
	return c.Entities[entity]
}

// Validate checks custom mappings and transforms of every entity.
func (c Config) Validate() error {
	for _, entity := range SyncOrder {
		ec := c.Entities[entity]
		builtin := make(map[string]bool)
		for _, k := range BuiltinPropertyKeys(entity) {
			builtin[k] = true
		}
		mapped := make(map[string]bool)
		for _, k := range ec.CustomFieldMappings.AllKeys() {
			if builtin[k] {
				return fmt.Errorf("%s custom field mapping '%s' clashes with a builtin property", entity, k)
			}
			mapped[k] = true
		}
		for field, transform := range ec.FieldTransforms {
			if !mapped[field] {
				return fmt.Errorf("%s field transform for '%s' has no custom field mapping", entity, field)
			}
			if _, _, err := parseFieldTransform(transform); err != nil {
				return fmt.Errorf("%s field transform for '%s' %w", entity, field, err)
			}
		}
	}
	return nil
}

type FieldMappings struct {
	Strings    map[string]string
	Texts      map[string]string
	Decimals   map[string]string
	Booleans   map[string]string
	Timestamps map[string]string
	Phones     map[string]string
	Integers   map[string]string
}

func (m FieldMappings) AllKeys() []string {
	var result []string
	result = append(result, FieldMapsKeys(m.Strings)...)
	result = append(result, FieldMapsKeys(m.Texts)...)
	result = append(result, FieldMapsKeys(m.Decimals)...)
	result = append(result, FieldMapsKeys(m.Booleans)...)
	result = append(result, FieldMapsKeys(m.Timestamps)...)
	result = append(result, FieldMapsKeys(m.Phones)...)
	result = append(result, FieldMapsKeys(m.Integers)...)
	return result
}

func (m FieldMappings) AllValues() []string {
	var result []string
	result = append(result, FieldMapsValues(m.Strings)...)
	result = append(result, FieldMapsValues(m.Texts)...)
	result = append(result, FieldMapsValues(m.Decimals)...)
	result = append(result, FieldMapsValues(m.Booleans)...)
	result = append(result, FieldMapsValues(m.Timestamps)...)
	result = append(result, FieldMapsValues(m.Phones)...)
	result = append(result, FieldMapsValues(m.Integers)...)
	return result
}

// SourceProperties returns the top level CRM properties read by the mappings.
func (m FieldMappings) SourceProperties() []string {
	var result []string
	for _, v := range m.AllValues() {
		if len(v) >= 2 && v[0] == '`' && v[len(v)-1] == '`' {
			continue
		}
		p := v
		if i := strings.IndexAny(p, ".|"); i >= 0 {
			p = p[:i]
		}
		if p != "" && !strings.HasPrefix(p, "@") {
			result = append(result, p)
		}
	}
	return result
}

// FieldType names the type a mapped key is written as.
func (m FieldMappings) FieldType(key string) string {
	if _, exists := m.Strings[key]; exists {
		return "Text"
	}
	if _, exists := m.Texts[key]; exists {
		return "Long text"
	}
	if _, exists := m.Decimals[key]; exists {
		return "Decimal number"
	}
	if _, exists := m.Booleans[key]; exists {
		return "Boolean"
	}
	if _, exists := m.Timestamps[key]; exists {
		return "Time and date"
	}
	if _, exists := m.Phones[key]; exists {
		return "Phone number"
	}
	if _, exists := m.Integers[key]; exists {
		return "Whole number"
	}
	return "Unknown"
}

func FieldMapsKeys(m map[string]string) []string {
	result := make([]string, len(m))
	i := 0
	for k := range m {
		result[i] = k
		i++
	}
	return result
}

func FieldMapsValues(m map[string]string) []string {
	result := make([]string, len(m))
	i := 0
	for _, v := range m {
		result[i] = v
		i++
	}
	return result
}

type ConfigUnmarshaler interface {
	Unmarshal(env CompositeEnvVar, sources ...MappingFile) (Config, error)
}

// CompositeEnvVar resolves ${VAR} references in config files.
type CompositeEnvVar interface {
	LookupEnv(name string) (string, bool)
}

// PrefixedEnvVar looks variables up in the process environment, trying the
// prefixed name before the bare one.
type PrefixedEnvVar struct {
	Prefix string
}

func (e PrefixedEnvVar) LookupEnv(name string) (string, bool) {
	if e.Prefix != "" {
		if v, exists := os.LookupEnv(e.Prefix + name); exists {
			return v, true
		}
	}
	return os.LookupEnv(name)
}

type YAMLConfigUnmarshaler struct{}

func (u YAMLConfigUnmarshaler) Unmarshal(env CompositeEnvVar, sources ...MappingFile) (Config, error) {
	var result Config
	var options []config.YAMLOption
	for _, s := range sources {
		if s.Length > 0 {
			options = append(options, config.Source(s.Reader))
		}
	}
	options = append(options, config.Expand(env.LookupEnv))
	yaml, err := config.NewYAML(options...)
	if err != nil {
		return result, fmt.Errorf("failed to read yaml config %w", err)
	}
	readError := func(key string, cause error) error {
		return fmt.Errorf("failed to read '%s' from yaml config %w", key, cause)
	}
	key := "api"
	err = yaml.Get(key).Populate(&result.API)
	if err != nil {
		return result, readError(key, err)
	}
	key = "sync"
	if yaml.Get(key).HasValue() {
		err = yaml.Get(key).Populate(&result.Sync)
		if err != nil {
			return result, readError(key, err)
		}
	}
	result.Entities = make(map[EntityType]EntityConfig)
	for _, entity := range SyncOrder {
		key = string(entity)
		var ec EntityConfig
		if yaml.Get(key).HasValue() {
			err = yaml.Get(key).Populate(&ec)
			if err != nil {
				return result, readError(key, err)
			}
		}
		result.Entities[entity] = ec
	}

	return result, result.Validate()
}
