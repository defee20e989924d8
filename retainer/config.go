package retainer

// StorageType selects which Storage engine a Config builds.
type StorageType string

const (
	StorageRam    StorageType = "ram"
	StoragePebble StorageType = "pebble"
	StorageRedis  StorageType = "redis"
)

// Config is the retainer plugin's own TOML/env configuration, decoded by
// plugin.Config.Read the same way persist.Config is.
type Config struct {
	StorageType StorageType `mapstructure:"storage_type"`

	Dir string `mapstructure:"dir"`

	RedisAddr     string `mapstructure:"redis_addr"`
	RedisPassword string `mapstructure:"redis_password"`
	RedisDB       int    `mapstructure:"redis_db"`
	RedisPrefix   string `mapstructure:"redis_prefix"`

	// MaxRetainedMessages caps the number of distinct retained topics; 0
	// means unlimited.
	MaxRetainedMessages int `mapstructure:"max_retained_messages"`
}

func DefaultConfig() *Config {
	return &Config{
		StorageType: StorageRam,
		Dir:         "retainer",
	}
}

func (c *Config) buildStorage() (Storage, error) {
	switch c.StorageType {
	case StoragePebble:
		return NewPebbleBackend(PebbleConfig{Dir: c.Dir, Max: c.MaxRetainedMessages})
	case StorageRedis:
		return NewRedisBackend(RedisConfig{
			Addr:     c.RedisAddr,
			Password: c.RedisPassword,
			DB:       c.RedisDB,
			Prefix:   c.RedisPrefix,
			Max:      c.MaxRetainedMessages,
		})
	default:
		return NewRam(RamConfig{Max: c.MaxRetainedMessages}), nil
	}
}
