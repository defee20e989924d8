package persist

import "github.com/brokerd/brokerd/session"

// StorageType selects which Backend a Config builds.
type StorageType string

const (
	StorageMemory StorageType = "memory"
	StoragePebble StorageType = "pebble"
	StorageRedis  StorageType = "redis"
)

// Config is the session-storage plugin's own TOML/env configuration,
// decoded by plugin.Config.Read the same way authhttp.Config and
// authjwt.Config are.
type Config struct {
	StorageType StorageType `mapstructure:"storage_type"`

	Dir string `mapstructure:"dir"`

	RedisAddr     string `mapstructure:"redis_addr"`
	RedisPassword string `mapstructure:"redis_password"`
	RedisDB       int    `mapstructure:"redis_db"`
	RedisPrefix   string `mapstructure:"redis_prefix"`

	MaxQueueLen int `mapstructure:"max_mqueue_len"`
}

func DefaultConfig() *Config {
	return &Config{
		StorageType: StorageMemory,
		Dir:         "session-storage",
		MaxQueueLen: session.DefaultMaxQueueLen,
	}
}

func (c *Config) buildBackend() (Backend, error) {
	switch c.StorageType {
	case StoragePebble:
		return NewPebbleBackend(PebbleConfig{Dir: c.Dir})
	case StorageRedis:
		return NewRedisBackend(RedisConfig{
			Addr:     c.RedisAddr,
			Password: c.RedisPassword,
			DB:       c.RedisDB,
			Prefix:   c.RedisPrefix,
		})
	default:
		return NewMemoryBackend(), nil
	}
}
