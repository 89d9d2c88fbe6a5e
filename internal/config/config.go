package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

type DefinitionsConfig struct {
	Modules []ModuleDefinition `mapstructure:"modules" yaml:"modules"`
}

// ModuleDefinition names a module binary that profiles can reference.
type ModuleDefinition struct {
	ID           string        `mapstructure:"id" yaml:"id"`
	Name         string        `mapstructure:"name" yaml:"name"`
	Path         string        `mapstructure:"path" yaml:"path"`
	StartTimeout time.Duration `mapstructure:"start_timeout" yaml:"start_timeout"`
	Preset       string        `mapstructure:"preset" yaml:"preset"`
}

type ModuleReference struct {
	Ref          string         `mapstructure:"ref" yaml:"ref"`
	StartTimeout *time.Duration `mapstructure:"start_timeout,omitempty" yaml:"start_timeout,omitempty"` // override
	Preset       *string        `mapstructure:"preset,omitempty" yaml:"preset,omitempty"`               // override
}

type GlobalsConfig struct {
	Output GlobalOutputConfig `mapstructure:"output" yaml:"output"`
}

type GlobalOutputConfig struct {
	RendersDirectory string `mapstructure:"renders_directory" yaml:"renders_directory"`
	PresetsDirectory string `mapstructure:"presets_directory" yaml:"presets_directory"`
	SourcesDirectory string `mapstructure:"sources_directory" yaml:"sources_directory"`
}

type RootConfig struct {
	ActiveConfig             string                    `mapstructure:"active_config" yaml:"active_config"`
	Globals                  *GlobalsConfig            `mapstructure:"globals,omitempty" yaml:"globals,omitempty"`
	Audio                    *AudioConfig              `mapstructure:"audio,omitempty" yaml:"audio,omitempty"`
	Definitions              *DefinitionsConfig        `mapstructure:"definitions,omitempty" yaml:"definitions,omitempty"`
	Configs                  map[string]*ConfigProfile `mapstructure:"configs" yaml:"configs"`
	SupportedAudioExtensions []string                  `mapstructure:"supported_audio_extensions" yaml:"supported_audio_extensions"`
}

type Config struct {
	Module    ModuleConfig    `mapstructure:"module" yaml:"module"`
	Audio     AudioConfig     `mapstructure:"audio" yaml:"audio"`
	Recording RecordingConfig `mapstructure:"recording" yaml:"recording"`
	Output    OutputConfig    `mapstructure:"output" yaml:"output"`
	Presets   PresetsConfig   `mapstructure:"presets" yaml:"presets"`

	// Internal field to track inheritance information for info command
	Inheritance *InheritanceInfo `mapstructure:"-" yaml:"-"`
}

type ConfigProfile struct {
	Module    *ModuleReference `mapstructure:"module,omitempty" yaml:"module,omitempty"`
	Audio     AudioConfig      `mapstructure:"audio" yaml:"audio"`
	Recording RecordingConfig  `mapstructure:"recording" yaml:"recording"`
	Output    OutputConfig     `mapstructure:"output" yaml:"output"`
	Presets   PresetsConfig    `mapstructure:"presets" yaml:"presets"`
}

type InheritanceInfo struct {
	Module struct {
		Path         string // "inherited" or "profile-specific"
		StartTimeout string
	}
	Audio struct {
		BlockSize  string
		SampleRate string
		Channels   string
		TailWait   string
	}
	Output struct {
		Directory string
		Format    string
		Volume    string
	}
	Presets struct {
		Directory string
	}
}

// ModuleConfig is the resolved module a profile runs.
type ModuleConfig struct {
	ID           string        `mapstructure:"id" yaml:"id"`
	Name         string        `mapstructure:"name" yaml:"name"`
	Path         string        `mapstructure:"path" yaml:"path"`
	StartTimeout time.Duration `mapstructure:"start_timeout" yaml:"start_timeout"`
	Preset       string        `mapstructure:"preset" yaml:"preset"`
}

type AudioConfig struct {
	BlockSize       int     `mapstructure:"block_size" yaml:"block_size"`
	SampleRate      int     `mapstructure:"sample_rate" yaml:"sample_rate"`
	Channels        int     `mapstructure:"channels" yaml:"channels"`
	TailWaitSeconds float64 `mapstructure:"tail_wait_seconds" yaml:"tail_wait_seconds"`
}

type RecordingConfig struct {
	Enabled      bool `mapstructure:"enabled" yaml:"enabled"`
	SwapChannels bool `mapstructure:"swap_channels" yaml:"swap_channels"`
}

type OutputConfig struct {
	Directory string  `mapstructure:"directory" yaml:"directory"`
	Format    string  `mapstructure:"format" yaml:"format"` // flac, wav, mp3, ogg
	Volume    float64 `mapstructure:"volume" yaml:"volume"`

	SourcesDirectory string `mapstructure:"sources_directory" yaml:"sources_directory,omitempty"`
}

type PresetsConfig struct {
	Directory string `mapstructure:"directory" yaml:"directory"`
}

// TailWait is the configured tail as a duration.
func (a AudioConfig) TailWait() time.Duration {
	return time.Duration(a.TailWaitSeconds * float64(time.Second))
}

var defaultConfig = Config{
	Module: ModuleConfig{
		StartTimeout: 10 * time.Second,
	},
	Audio: AudioConfig{
		BlockSize:       512,
		SampleRate:      44100,
		Channels:        2,
		TailWaitSeconds: 2,
	},
	Recording: RecordingConfig{
		Enabled: true,
	},
	Output: OutputConfig{
		Directory: filepath.Join(os.Getenv("HOME"), "Audio", "fxhost"),
		Format:    "flac",
		Volume:    1.0,
	},
	Presets: PresetsConfig{
		Directory: filepath.Join(os.Getenv("HOME"), "Audio", "fxhost", "presets"),
	},
}

// DefaultPath is where the CLI looks for its configuration.
func DefaultPath() string {
	return os.ExpandEnv("$HOME/.config/fxhost.yaml")
}

func LoadWithProfile(configFile, profile string) (*Config, error) {
	if configFile == "" {
		return nil, fmt.Errorf("no config file specified, use --config flag")
	}

	// Validate configuration format first
	rootConfig, err := ValidateConfigurationFormat(configFile)
	if err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	// Determine which config to use
	configName := profile
	if configName == "" {
		configName = rootConfig.ActiveConfig
	}
	if configName == "" {
		configName = "default"
	}

	selectedProfile, exists := rootConfig.Configs[configName]
	if !exists {
		return nil, fmt.Errorf("configuration profile '%s' not found", configName)
	}

	selectedConfig, err := convertProfileToConfig(selectedProfile, rootConfig.Definitions)
	if err != nil {
		return nil, fmt.Errorf("error resolving configuration profile '%s': %w", configName, err)
	}

	// Apply global audio settings as base if they exist
	if rootConfig.Audio != nil {
		selectedConfig.Audio = mergeAudio(*rootConfig.Audio, selectedConfig.Audio, nil)
	}

	// Merge with default config if it exists and we're not already using default
	if configName != "default" {
		if defaultProfile, exists := rootConfig.Configs["default"]; exists {
			base, err := convertProfileToConfig(defaultProfile, rootConfig.Definitions)
			if err != nil {
				return nil, fmt.Errorf("error resolving default configuration: %w", err)
			}
			if rootConfig.Audio != nil {
				base.Audio = mergeAudio(*rootConfig.Audio, base.Audio, nil)
			}
			selectedConfig = mergeConfigs(base, selectedConfig)
		}
	}

	// Global directories take precedence over profile directories
	if rootConfig.Globals != nil {
		if dir := rootConfig.Globals.Output.RendersDirectory; dir != "" {
			selectedConfig.Output.Directory = dir
		}
		if dir := rootConfig.Globals.Output.PresetsDirectory; dir != "" {
			selectedConfig.Presets.Directory = dir
		}
		if dir := rootConfig.Globals.Output.SourcesDirectory; dir != "" {
			selectedConfig.Output.SourcesDirectory = dir
		}
	}

	applyDefaults(selectedConfig)

	selectedConfig.Module.Path = expandPath(selectedConfig.Module.Path)
	selectedConfig.Module.Preset = expandPath(selectedConfig.Module.Preset)
	selectedConfig.Output.Directory = expandPath(selectedConfig.Output.Directory)
	selectedConfig.Output.SourcesDirectory = expandPath(selectedConfig.Output.SourcesDirectory)
	selectedConfig.Presets.Directory = expandPath(selectedConfig.Presets.Directory)

	if err := validateConfig(selectedConfig); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return selectedConfig, nil
}

// UpdateActiveConfig updates the active_config field in the config file
func UpdateActiveConfig(configFile, newActiveConfig string) error {
	if configFile == "" {
		return fmt.Errorf("no config file specified")
	}

	// Create a new viper instance to avoid interfering with the global one
	v := viper.New()
	v.SetConfigFile(configFile)

	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("error reading config file %s: %w", configFile, err)
	}

	v.Set("active_config", newActiveConfig)

	if err := v.WriteConfig(); err != nil {
		return fmt.Errorf("error writing config file %s: %w", configFile, err)
	}

	return nil
}

// WriteStarter writes a minimal configuration with one module definition
// and a default profile. It refuses to overwrite an existing file.
func WriteStarter(configFile, modulePath string) error {
	if _, err := os.Stat(configFile); err == nil {
		return fmt.Errorf("config file %s already exists", configFile)
	}

	root := RootConfig{
		ActiveConfig: "default",
		Definitions: &DefinitionsConfig{
			Modules: []ModuleDefinition{{
				ID:           "main",
				Name:         strings.TrimSuffix(filepath.Base(modulePath), filepath.Ext(modulePath)),
				Path:         modulePath,
				StartTimeout: defaultConfig.Module.StartTimeout,
			}},
		},
		Configs: map[string]*ConfigProfile{
			"default": {
				Module:    &ModuleReference{Ref: "main"},
				Audio:     defaultConfig.Audio,
				Recording: defaultConfig.Recording,
				Output:    defaultConfig.Output,
				Presets:   defaultConfig.Presets,
			},
		},
		SupportedAudioExtensions: defaultExtensions,
	}

	out, err := yaml.Marshal(&root)
	if err != nil {
		return fmt.Errorf("error marshaling config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(configFile), 0755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}
	if err := os.WriteFile(configFile, out, 0644); err != nil {
		return fmt.Errorf("error writing config file %s: %w", configFile, err)
	}
	return nil
}

// convertProfileToConfig converts a ConfigProfile to Config by resolving the module reference
func convertProfileToConfig(profile *ConfigProfile, definitions *DefinitionsConfig) (*Config, error) {
	if profile == nil {
		return nil, fmt.Errorf("profile cannot be nil")
	}

	config := &Config{
		Audio:     profile.Audio,
		Recording: profile.Recording,
		Output:    profile.Output,
		Presets:   profile.Presets,
	}

	if profile.Module == nil {
		return config, nil
	}
	if profile.Module.Ref == "" {
		return nil, fmt.Errorf("module: 'ref' is required")
	}

	definition := findModule(definitions, profile.Module.Ref)
	if definition == nil {
		return nil, fmt.Errorf("module: reference '%s' not found in definitions", profile.Module.Ref)
	}

	config.Module = ModuleConfig{
		ID:           definition.ID,
		Name:         definition.Name,
		Path:         definition.Path,
		StartTimeout: definition.StartTimeout,
		Preset:       definition.Preset,
	}

	// Apply overrides
	if profile.Module.StartTimeout != nil {
		config.Module.StartTimeout = *profile.Module.StartTimeout
	}
	if profile.Module.Preset != nil {
		config.Module.Preset = *profile.Module.Preset
	}

	return config, nil
}

func findModule(definitions *DefinitionsConfig, id string) *ModuleDefinition {
	if definitions == nil {
		return nil
	}
	for i := range definitions.Modules {
		if definitions.Modules[i].ID == id {
			return &definitions.Modules[i]
		}
	}
	return nil
}

// mergeConfigs overlays profile on base: every unset profile value falls
// back to the base value, and the inheritance of each field is recorded.
// Recording flags are booleans, so the profile value always wins.
func mergeConfigs(base, profile *Config) *Config {
	result := &Config{Inheritance: &InheritanceInfo{}}
	inh := result.Inheritance

	if base != nil {
		result.Module = base.Module
		result.Audio = base.Audio
		result.Output = base.Output
		result.Presets = base.Presets
		result.Recording = base.Recording

		inh.Module.Path = "inherited"
		inh.Module.StartTimeout = "inherited"
		inh.Audio.BlockSize = "inherited"
		inh.Audio.SampleRate = "inherited"
		inh.Audio.Channels = "inherited"
		inh.Audio.TailWait = "inherited"
		inh.Output.Directory = "inherited"
		inh.Output.Format = "inherited"
		inh.Output.Volume = "inherited"
		inh.Presets.Directory = "inherited"
	}

	if profile == nil {
		return result
	}

	if profile.Module.Path != "" {
		result.Module = profile.Module
		inh.Module.Path = "profile-specific"
		inh.Module.StartTimeout = "profile-specific"
	}

	result.Audio = mergeAudio(result.Audio, profile.Audio, inh)

	if profile.Output.Directory != "" {
		result.Output.Directory = profile.Output.Directory
		inh.Output.Directory = "profile-specific"
	}
	if profile.Output.Format != "" {
		result.Output.Format = profile.Output.Format
		inh.Output.Format = "profile-specific"
	}
	if profile.Output.Volume != 0 {
		result.Output.Volume = profile.Output.Volume
		inh.Output.Volume = "profile-specific"
	}
	if profile.Output.SourcesDirectory != "" {
		result.Output.SourcesDirectory = profile.Output.SourcesDirectory
	}
	if profile.Presets.Directory != "" {
		result.Presets.Directory = profile.Presets.Directory
		inh.Presets.Directory = "profile-specific"
	}

	result.Recording = profile.Recording

	return result
}

// mergeAudio overlays the non-zero fields of profile on base.
func mergeAudio(base, profile AudioConfig, inh *InheritanceInfo) AudioConfig {
	result := base
	if inh == nil {
		inh = &InheritanceInfo{}
	}

	if profile.BlockSize != 0 {
		result.BlockSize = profile.BlockSize
		inh.Audio.BlockSize = "profile-specific"
	}
	if profile.SampleRate != 0 {
		result.SampleRate = profile.SampleRate
		inh.Audio.SampleRate = "profile-specific"
	}
	if profile.Channels != 0 {
		result.Channels = profile.Channels
		inh.Audio.Channels = "profile-specific"
	}
	if profile.TailWaitSeconds != 0 {
		result.TailWaitSeconds = profile.TailWaitSeconds
		inh.Audio.TailWait = "profile-specific"
	}
	return result
}

// applyDefaults fills fields neither the profile nor default set.
func applyDefaults(c *Config) {
	if c.Module.StartTimeout == 0 {
		c.Module.StartTimeout = defaultConfig.Module.StartTimeout
	}
	c.Audio = mergeAudio(defaultConfig.Audio, c.Audio, nil)
	if c.Output.Directory == "" {
		c.Output.Directory = defaultConfig.Output.Directory
	}
	if c.Output.Format == "" {
		c.Output.Format = defaultConfig.Output.Format
	}
	if c.Output.Volume == 0 {
		c.Output.Volume = defaultConfig.Output.Volume
	}
	if c.Presets.Directory == "" {
		c.Presets.Directory = defaultConfig.Presets.Directory
	}
}

func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		homeDir, _ := os.UserHomeDir()
		return filepath.Join(homeDir, path[2:])
	}
	return path
}

var supportedFormats = []string{"flac", "wav", "mp3", "ogg"}

// validateConfig checks the resolved configuration
func validateConfig(config *Config) error {
	if config.Audio.BlockSize <= 0 || config.Audio.BlockSize > 16384 {
		return fmt.Errorf("audio.block_size must be between 1 and 16384, got: %d", config.Audio.BlockSize)
	}
	if config.Audio.SampleRate < 8000 || config.Audio.SampleRate > 384000 {
		return fmt.Errorf("audio.sample_rate must be between 8000 and 384000, got: %d", config.Audio.SampleRate)
	}
	if config.Audio.Channels < 1 || config.Audio.Channels > 32 {
		return fmt.Errorf("audio.channels must be between 1 and 32, got: %d", config.Audio.Channels)
	}
	if config.Audio.TailWaitSeconds < 0 {
		return fmt.Errorf("audio.tail_wait_seconds must be >= 0, got: %.2f", config.Audio.TailWaitSeconds)
	}
	if !isSupportedFormat(config.Output.Format) {
		return fmt.Errorf("output.format must be one of %s, got: %s", strings.Join(supportedFormats, ", "), config.Output.Format)
	}
	if config.Output.Volume <= 0 {
		return fmt.Errorf("output.volume must be > 0, got: %.2f", config.Output.Volume)
	}
	if config.Module.StartTimeout < 0 {
		return fmt.Errorf("module.start_timeout must be >= 0, got: %s", config.Module.StartTimeout)
	}
	return nil
}

func isSupportedFormat(format string) bool {
	for _, f := range supportedFormats {
		if f == format {
			return true
		}
	}
	return false
}

var defaultExtensions = []string{"wav", "flac", "mp3", "f32", "raw"}

// GetSupportedAudioExtensions returns the supported audio extensions from config or defaults
func GetSupportedAudioExtensions(configFile string) []string {
	if configFile == "" {
		return defaultExtensions
	}

	v := viper.New()
	v.SetConfigFile(configFile)
	if err := v.ReadInConfig(); err != nil {
		return defaultExtensions
	}

	var rootConfig RootConfig
	if err := v.Unmarshal(&rootConfig); err != nil {
		return defaultExtensions
	}

	if len(rootConfig.SupportedAudioExtensions) == 0 {
		return defaultExtensions
	}

	return rootConfig.SupportedAudioExtensions
}

// ValidateConfigurationFormat validates the configuration file format and returns parsed config
func ValidateConfigurationFormat(configFile string) (*RootConfig, error) {
	viper.SetConfigFile(configFile)

	viper.SetEnvPrefix("FXHOST")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error reading config file %s: %w", configFile, err)
	}

	var rootConfig RootConfig
	if err := viper.Unmarshal(&rootConfig); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if len(rootConfig.Configs) == 0 {
		return nil, fmt.Errorf("configs section is required")
	}

	if err := validateDefinitions(rootConfig.Definitions); err != nil {
		return nil, fmt.Errorf("invalid definitions: %w", err)
	}

	for configName, configProfile := range rootConfig.Configs {
		if configProfile == nil {
			continue
		}
		if err := validateModuleReference(configProfile.Module, rootConfig.Definitions); err != nil {
			return nil, fmt.Errorf("invalid config '%s': %w", configName, err)
		}
	}

	return &rootConfig, nil
}

// validateDefinitions validates the definitions section. It is optional,
// but every module listed must be complete.
func validateDefinitions(definitions *DefinitionsConfig) error {
	if definitions == nil {
		return nil
	}

	seenIDs := make(map[string]bool)
	for i, def := range definitions.Modules {
		prefix := fmt.Sprintf("definitions.modules[%d]", i)
		if def.ID == "" {
			return fmt.Errorf("%s: 'id' is required", prefix)
		}
		if seenIDs[def.ID] {
			return fmt.Errorf("%s: duplicate ID '%s'", prefix, def.ID)
		}
		seenIDs[def.ID] = true

		if def.Path == "" {
			return fmt.Errorf("%s: 'path' is required", prefix)
		}
		if def.StartTimeout < 0 {
			return fmt.Errorf("%s: 'start_timeout' must be >= 0, got: %s", prefix, def.StartTimeout)
		}
	}

	return nil
}

// validateModuleReference validates the module reference in a config profile
func validateModuleReference(ref *ModuleReference, definitions *DefinitionsConfig) error {
	if ref == nil {
		return nil
	}
	if ref.Ref == "" {
		return fmt.Errorf("module: 'ref' is required")
	}
	if findModule(definitions, ref.Ref) == nil {
		return fmt.Errorf("module: references undefined module definition '%s'", ref.Ref)
	}
	if ref.StartTimeout != nil && *ref.StartTimeout < 0 {
		return fmt.Errorf("module: start_timeout override must be >= 0, got %s", *ref.StartTimeout)
	}
	return nil
}
