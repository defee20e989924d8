package persist

import (
	"path/filepath"

	"github.com/cockroachdb/pebble"

	"github.com/brokerd/brokerd/store"
)

// PebbleConfig configures a disk-backed persist.Backend. Sessions and
// offline messages get their own sub-databases under Dir, since
// store.PebbleStore opens one pebble.DB per instance.
type PebbleConfig struct {
	Dir  string
	Opts *pebble.Options
}

// NewPebbleBackend opens (or creates) the on-disk stores under cfg.Dir.
func NewPebbleBackend(cfg PebbleConfig) (Backend, error) {
	sessions, err := store.NewPebbleStore[SessionRecord](store.PebbleStoreConfig{
		Path:   filepath.Join(cfg.Dir, "sessions"),
		Prefix: sessionPrefix,
		Opts:   cfg.Opts,
	})
	if err != nil {
		return nil, err
	}

	offline, err := store.NewPebbleStore[[]OfflineMessage](store.PebbleStoreConfig{
		Path:   filepath.Join(cfg.Dir, "offline"),
		Prefix: offlinePrefix,
		Opts:   cfg.Opts,
	})
	if err != nil {
		_ = sessions.Close()
		return nil, err
	}

	return &backend{sessions: sessions, offline: offline}, nil
}
