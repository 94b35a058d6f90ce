// Package config loads layered configuration files through viper and exposes
// the merged tree to the service registry.
//
// Files are looked up as <name>.<type>, <name>.local.<type>, then the same
// pair for every suffix of the current mode (see GO_ENV_MODE), later files
// overriding earlier ones. Environment variables override file values.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/creasty/defaults"
	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

func DefaultOptions() Options {
	basePath := os.Getenv("CONFIG_PATH")
	if basePath == "" {
		basePath = "config"
	}

	return Options{
		BasePath: basePath,
		FileName: "config",
		FileType: "yaml",
	}
}

// Load reads the configuration described by opts (DefaultOptions when omitted).
func Load(optsArr ...Options) (*Config, error) {
	opts := DefaultOptions()
	if len(optsArr) > 0 {
		opts = optsArr[0]
	}

	instance, raw, files, err := readFiles(opts)
	if err != nil {
		return nil, err
	}

	c := &Config{
		instance: instance,
		raw:      raw,
		opts:     opts,
		files:    files,
	}

	if opts.Watch {
		if err := c.watch(); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// FromMap builds an in-memory Config, mostly useful in tests and for
// programmatic setups that never touch the filesystem. settings is copied.
func FromMap(settings map[string]any) (*Config, error) {
	raw := normalize(copyTree(settings)).(map[string]any)
	if raw == nil {
		raw = map[string]any{}
	}
	v := newViper()
	if err := mergeViper(v, raw); err != nil {
		return nil, fmt.Errorf("❌ Failed to merge settings: %w", err)
	}
	return &Config{instance: v, raw: raw}, nil
}

// Bind unmarshals the configuration into instance, applying `default` tags
// before and after so that zero values left by the files get defaults too.
func (c *Config) Bind(instance any) error {
	if c == nil || c.instance == nil {
		return fmt.Errorf("❌ Config instance is nil")
	}
	if instance == nil {
		return fmt.Errorf("❌ Target instance is nil")
	}

	if err := defaults.Set(instance); err != nil {
		return fmt.Errorf("❌ Failed to set defaults: %w", err)
	}

	c.mu.RLock()
	err := c.instance.Unmarshal(instance)
	c.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("❌ Failed to unmarshal config (path: %s, file: %s.%s): %w",
			c.opts.BasePath, c.opts.FileName, c.opts.FileType, err)
	}

	if err := defaults.Set(instance); err != nil {
		return fmt.Errorf("❌ Failed to set defaults after unmarshal: %w", err)
	}

	if v, ok := instance.(Validator); ok {
		if err := v.Validate(); err != nil {
			return fmt.Errorf("❌ Config validation failed: %w", err)
		}
	}
	return nil
}

// AllSettings returns a copy of the merged configuration tree. Keys keep the
// case they were written in, and empty maps and null values are kept.
func (c *Config) AllSettings() map[string]any {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return copyTree(c.raw)
}

// Get returns the value at key; nested keys are joined with KeyDelimiter.
// Keys match case-insensitively when no exact match exists. Keys absent from
// the files are still looked up in the environment.
func (c *Config) Get(key string) any {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if v, ok := lookup(c.raw, strings.Split(key, KeyDelimiter)); ok {
		return copyValue(v)
	}
	return c.instance.Get(key)
}

func (c *Config) Set(key string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.instance.Set(key, value)
	if c.raw == nil {
		c.raw = make(map[string]any)
	}
	assign(c.raw, strings.Split(key, KeyDelimiter), value)
}

// Files lists the files that were merged, in load order.
func (c *Config) Files() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]string(nil), c.files...)
}

// Close stops watching for file changes.
func (c *Config) Close() error {
	if c == nil || c.watcher == nil {
		return nil
	}
	return c.watcher.Close()
}

func (c *Config) watch() error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("❌ Failed to create config watcher: %w", err)
	}

	dirs := make(map[string]struct{})
	for _, f := range c.files {
		dirs[filepath.Dir(f)] = struct{}{}
	}
	for dir := range dirs {
		if err := w.Add(dir); err != nil {
			_ = w.Close()
			return fmt.Errorf("❌ Failed to watch %s: %w", dir, err)
		}
	}

	c.watcher = w
	go c.watchLoop(w)
	return nil
}

func (c *Config) watchLoop(w *fsnotify.Watcher) {
	for {
		select {
		case e, ok := <-w.Events:
			if !ok {
				return
			}
			if !e.Has(fsnotify.Write|fsnotify.Create) || !c.tracks(e.Name) {
				continue
			}
			// A half-written file fails to parse; keep the last good tree.
			if err := c.reload(); err != nil {
				continue
			}
			if c.opts.OnChange != nil {
				c.opts.OnChange(e)
			}
		case _, ok := <-w.Errors:
			if !ok {
				return
			}
		}
	}
}

func (c *Config) tracks(name string) bool {
	name = filepath.Clean(name)
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, f := range c.files {
		if filepath.Clean(f) == name {
			return true
		}
	}
	return false
}

func (c *Config) reload() error {
	instance, raw, files, err := readFiles(c.opts)
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.instance = instance
	c.raw = raw
	c.files = files
	c.mu.Unlock()
	return nil
}

func newViper() *viper.Viper {
	return viper.NewWithOptions(viper.KeyDelimiter(KeyDelimiter))
}

// readFiles merges configPaths twice: into viper, which backs Bind, and into
// a raw tree that keeps key case and empty values for AllSettings and Get.
func readFiles(opts Options) (*viper.Viper, map[string]any, []string, error) {
	configPaths := getConfigFilePaths(opts)
	if opts.LoadAll {
		configPaths = getAllConfigFilePaths(opts)
	}
	if len(configPaths) == 0 {
		return nil, nil, nil, fmt.Errorf("❌ No valid configuration files found in path: %s", opts.BasePath)
	}

	v := newViper()
	v.SetConfigType(opts.FileType)
	raw := make(map[string]any)

	for _, configPath := range configPaths {
		tree, err := decodeFile(configPath)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("❌ Error reading config file %s: %w", configPath, err)
		}
		if err := mergeViper(v, tree); err != nil {
			return nil, nil, nil, fmt.Errorf("❌ Error merging config file %s: %w", configPath, err)
		}
		mergeTree(raw, tree)
	}

	v.SetEnvKeyReplacer(envKeyReplacer)
	if opts.EnvPrefix != "" {
		v.SetEnvPrefix(opts.EnvPrefix)
	}
	v.AutomaticEnv()

	applyEnvOverrides(v, opts.EnvPrefix)
	overrideLeaves(raw, opts.EnvPrefix)

	return v, raw, configPaths, nil
}

var envKeyReplacer = strings.NewReplacer(KeyDelimiter, "_", ".", "_", "-", "_")

// applyEnvOverrides gives environment variables priority over file values:
// log::app::level -> LOG_APP_LEVEL.
func applyEnvOverrides(v *viper.Viper, envPrefix string) {
	for _, key := range v.AllKeys() {
		if envValue, ok := os.LookupEnv(envKey(key, envPrefix)); ok && envValue != "" {
			v.Set(key, envValue)
		}
	}
}

func getConfigFilePaths(opts Options) (configFiles []string) {
	fileNames := []string{
		opts.FileName,
		opts.FileName + ".local",
	}
	for _, suffix := range modeSuffixes(CurrentMode()) {
		fileNames = append(fileNames,
			fmt.Sprintf("%s.%s", opts.FileName, suffix),
			fmt.Sprintf("%s.%s.local", opts.FileName, suffix),
		)
	}

	for _, fileName := range fileNames {
		file := filepath.Join(opts.BasePath, fmt.Sprintf("%s.%s", fileName, opts.FileType))
		if info, err := os.Stat(file); err == nil && !info.IsDir() {
			configFiles = append(configFiles, file)
		}
	}

	return configFiles
}

func getAllConfigFilePaths(opts Options) (configFiles []string) {
	baseNames := getConfigBaseNames(opts.BasePath, opts.FileType)
	if len(baseNames) == 0 {
		return nil
	}

	sort.Strings(baseNames)
	baseNames = moveFirst(baseNames, opts.FileName)
	seen := make(map[string]struct{}, len(baseNames))
	for _, baseName := range baseNames {
		tempOpts := opts
		tempOpts.FileName = baseName
		tempOpts.LoadAll = false
		for _, path := range getConfigFilePaths(tempOpts) {
			if _, exists := seen[path]; exists {
				continue
			}
			seen[path] = struct{}{}
			configFiles = append(configFiles, path)
		}
	}

	return configFiles
}

func getConfigBaseNames(basePath, fileType string) []string {
	entries, err := os.ReadDir(basePath)
	if err != nil {
		return nil
	}

	suffix := "." + fileType
	seen := make(map[string]struct{})
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), suffix) {
			continue
		}
		base := stripConfigSuffix(strings.TrimSuffix(entry.Name(), suffix))
		if base == "" {
			continue
		}
		seen[base] = struct{}{}
	}

	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	return names
}

func stripConfigSuffix(name string) string {
	name = strings.TrimSuffix(name, ".local")
	for _, mode := range []Mode{DevMode, ProMode, TestMode} {
		for _, suffix := range modeSuffixes(mode) {
			if strings.HasSuffix(name, "."+suffix) {
				return strings.TrimSuffix(name, "."+suffix)
			}
		}
	}
	return name
}

func moveFirst(names []string, first string) []string {
	for i, name := range names {
		if name != first {
			continue
		}
		if i == 0 {
			return names
		}
		out := make([]string, 0, len(names))
		out = append(out, first)
		out = append(out, names[:i]...)
		return append(out, names[i+1:]...)
	}
	return names
}
