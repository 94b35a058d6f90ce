package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	jsoniter "github.com/json-iterator/go"
	toml "github.com/pelletier/go-toml/v2"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// decodeFile reads path into a tree that keeps key case, empty maps and null
// values as written. Types without a dedicated codec go through viper.
func decodeFile(path string) (map[string]any, error) {
	var tree map[string]any

	switch strings.ToLower(strings.TrimPrefix(filepath.Ext(path), ".")) {
	case "yaml", "yml":
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(data, &tree); err != nil {
			return nil, err
		}
	case "json":
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := jsoniter.Unmarshal(data, &tree); err != nil {
			return nil, err
		}
	case "toml":
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := toml.Unmarshal(data, &tree); err != nil {
			return nil, err
		}
	default:
		v := newViper()
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, err
		}
		tree = v.AllSettings()
	}

	if tree == nil {
		return map[string]any{}, nil
	}
	return normalize(tree).(map[string]any), nil
}

// normalize turns map[any]any nodes into map[string]any.
func normalize(v any) any {
	switch t := v.(type) {
	case map[string]any:
		for k, val := range t {
			t[k] = normalize(val)
		}
		return t
	case map[any]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[fmt.Sprint(k)] = normalize(val)
		}
		return out
	case []any:
		for i, val := range t {
			t[i] = normalize(val)
		}
		return t
	}
	return v
}

// mergeTree merges src into dst. Maps merge key by key, anything else
// replaces the value in dst.
func mergeTree(dst, src map[string]any) {
	for k, v := range src {
		if sm, ok := v.(map[string]any); ok {
			if dm, ok := dst[k].(map[string]any); ok {
				mergeTree(dm, sm)
				continue
			}
		}
		dst[k] = copyValue(v)
	}
}

func copyTree(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = copyValue(v)
	}
	return out
}

func copyValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return copyTree(t)
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = copyValue(val)
		}
		return out
	}
	return v
}

// lookup walks path, preferring an exact key at every level and falling back
// to a case-insensitive match.
func lookup(tree map[string]any, path []string) (any, bool) {
	var cur any = tree
	for _, seg := range path {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		key, ok := findKey(m, seg)
		if !ok {
			return nil, false
		}
		cur = m[key]
	}
	return cur, true
}

// assign stores value at path, creating maps on the way. Existing keys are
// matched the way lookup matches them.
func assign(tree map[string]any, path []string, value any) {
	m := tree
	for i, seg := range path {
		key, ok := findKey(m, seg)
		if !ok {
			key = seg
		}
		if i == len(path)-1 {
			m[key] = value
			return
		}
		next, ok := m[key].(map[string]any)
		if !ok {
			next = make(map[string]any)
			m[key] = next
		}
		m = next
	}
}

func findKey(m map[string]any, seg string) (string, bool) {
	if _, ok := m[seg]; ok {
		return seg, true
	}
	for k := range m {
		if strings.EqualFold(k, seg) {
			return k, true
		}
	}
	return "", false
}

// overrideLeaves applies environment overrides to every leaf of tree, empty
// maps and nulls included: log::app::level -> LOG_APP_LEVEL.
func overrideLeaves(tree map[string]any, envPrefix string) {
	var walk func(prefix string, m map[string]any)
	walk = func(prefix string, m map[string]any) {
		for k, v := range m {
			key := k
			if prefix != "" {
				key = prefix + KeyDelimiter + k
			}
			if nested, ok := v.(map[string]any); ok && len(nested) > 0 {
				walk(key, nested)
				continue
			}
			if envValue, ok := os.LookupEnv(envKey(key, envPrefix)); ok && envValue != "" {
				m[k] = envValue
			}
		}
	}
	walk("", tree)
}

func envKey(key, envPrefix string) string {
	k := strings.ToUpper(envKeyReplacer.Replace(key))
	if envPrefix != "" {
		k = envPrefix + "_" + k
	}
	return k
}

// mergeViper feeds a copy of tree to v; MergeConfigMap rewrites its argument.
func mergeViper(v *viper.Viper, tree map[string]any) error {
	return v.MergeConfigMap(copyTree(tree))
}
