package plugin

import (
	"fmt"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/spf13/viper"
)

// Source selects where a plugin's TOML configuration comes from: a
// directory of "<name>.toml" files, or an in-memory name->TOML-text map
// (used by tests and by embedding the broker as a library). This mirrors
// the PluginManagerConfig::Path/Map split of the system being generalized.
type Source struct {
	Dir  string
	Map  map[string]string
	once bool // reserved for future one-shot sources; unused today
}

// Config is the shared plugin configuration loader installed on a
// plugin.Manager. envPrefix is combined with the plugin name to build the
// environment overlay prefix, e.g. "BROKERD_PLUGIN_AUTH_HTTP_".
type Config struct {
	Source    Source
	EnvPrefix string
}

func NewFileConfig(dir string) *Config {
	return &Config{Source: Source{Dir: dir}, EnvPrefix: "BROKERD_PLUGIN"}
}

func NewMapConfig(m map[string]string) *Config {
	return &Config{Source: Source{Map: m}, EnvPrefix: "BROKERD_PLUGIN"}
}

// envPrefixFor builds the env-var prefix for a given plugin name,
// replacing hyphens with underscores and upper-casing, matching
// "RMQTT_PLUGIN_<NAME>_<KEY>" from the source system (renamed to
// BROKERD_PLUGIN here since the module itself was renamed).
func (c *Config) envPrefixFor(name string) string {
	n := strings.ToUpper(strings.ReplaceAll(name, "-", "_"))
	return fmt.Sprintf("%s_%s", c.EnvPrefix, n)
}

// Read decodes plugin name's configuration into dst (a pointer to a
// struct with mapstructure/toml-compatible field tags), applying the
// directory-or-map TOML source and then overlaying any
// BROKERD_PLUGIN_<NAME>_<KEY> environment variables. listKeys names
// further keys to bind to their environment variables; their values are
// read as plain strings, and callers split them into lists with
// SplitList.
func (c *Config) Read(name string, dst any, listKeys ...string) error {
	v := viper.New()
	v.SetConfigType("toml")

	switch {
	case c.Source.Dir != "":
		v.SetConfigName(name)
		v.AddConfigPath(c.Source.Dir)
		if err := v.ReadInConfig(); err != nil {
			if !isConfigNotFound(err) {
				return fmt.Errorf("plugin %q: read config: %w", name, err)
			}
		}
	case c.Source.Map != nil:
		if text, ok := c.Source.Map[name]; ok {
			// Decode the inline TOML text directly with BurntSushi/toml
			// rather than viper.ReadConfig(io.Reader): the map source has
			// no filesystem backing, and toml.Decode gives us a plain
			// map[string]any to feed into viper via MergeConfigMap,
			// keeping env-overlay behavior identical across both sources.
			var decoded map[string]any
			if _, err := toml.Decode(text, &decoded); err != nil {
				return fmt.Errorf("plugin %q: decode inline config: %w", name, err)
			}
			if err := v.MergeConfigMap(decoded); err != nil {
				return fmt.Errorf("plugin %q: merge inline config: %w", name, err)
			}
		}
	}

	prefix := c.envPrefixFor(name)
	v.SetEnvPrefix(prefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	for _, k := range listKeys {
		if err := v.BindEnv(k); err != nil {
			return fmt.Errorf("plugin %q: bind env %q: %w", name, k, err)
		}
	}

	if err := v.Unmarshal(dst); err != nil {
		return fmt.Errorf("plugin %q: unmarshal config: %w", name, err)
	}
	return nil
}

func isConfigNotFound(err error) bool {
	_, ok := err.(viper.ConfigFileNotFoundError)
	return ok
}

// SplitList parses a whitespace-separated environment value into a list,
// for the declared listKeys fields a plugin reads manually after Read
// populates the scalar form of the same key (config-rs's list_separator(" ")
// equivalent, applied by the caller rather than by viper itself).
func SplitList(s string) []string {
	return strings.Fields(s)
}
