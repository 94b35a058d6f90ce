package config

import (
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// KeyDelimiter separates nested keys. Logger names routinely contain dots,
// so the viper default "." cannot be used.
const KeyDelimiter = "::"

type Validator interface {
	Validate() error
}

type Config struct {
	instance *viper.Viper
	// raw is the merged tree as written: key case, empty maps and nulls kept.
	raw      map[string]any
	opts     Options
	files    []string
	mu       sync.RWMutex
	watcher  *fsnotify.Watcher
}

type Options struct {
	BasePath  string
	FileName  string
	FileType  string
	EnvPrefix string
	// Watch reloads the configuration whenever one of the loaded files changes.
	Watch    bool
	OnChange func(e fsnotify.Event)
	// LoadAll merges every config file found in BasePath, "config" first.
	LoadAll bool
}
