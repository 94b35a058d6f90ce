package logging

import (
	"github.com/go-viper/mapstructure/v2"

	apperrors "github.com/leeforge/logkit/errors"
)

// Config describes one logger: its writers and processors, in order.
type Config struct {
	Writers    []WriterSpec    `mapstructure:"writers" json:"writers" yaml:"writers"`
	Processors []ProcessorSpec `mapstructure:"processors" json:"processors" yaml:"processors"`
}

// WriterSpec names a writer kind and its options.
type WriterSpec struct {
	// Name is matched case-insensitively against the writer manager.
	Name     string  `mapstructure:"name" json:"name" yaml:"name"`
	Priority *int    `mapstructure:"priority" json:"priority,omitempty" yaml:"priority,omitempty"`
	Options  Options `mapstructure:"options" json:"options,omitempty" yaml:"options,omitempty"`
}

// ProcessorSpec names a processor kind and its options.
type ProcessorSpec struct {
	Name    string  `mapstructure:"name" json:"name" yaml:"name"`
	Options Options `mapstructure:"options" json:"options,omitempty" yaml:"options,omitempty"`
}

// DecodeConfig decodes a raw configuration subtree (nested maps and slices,
// as produced by viper or a YAML/JSON decoder). Unknown keys are ignored and
// a nil subtree yields an empty Config.
func DecodeConfig(raw any) (Config, error) {
	var cfg Config
	if raw == nil {
		return cfg, nil
	}

	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &cfg,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return cfg, err
	}
	if err := dec.Decode(raw); err != nil {
		return Config{}, apperrors.WrapWithType(err, apperrors.ErrorTypeInvalid, "decode logger config")
	}
	return cfg, nil
}

// Clone returns a copy whose slices and options maps are not shared with c.
func (c Config) Clone() Config {
	out := Config{}
	if c.Writers != nil {
		out.Writers = make([]WriterSpec, len(c.Writers))
		for i, w := range c.Writers {
			w.Options = w.Options.Clone()
			out.Writers[i] = w
		}
	}
	if c.Processors != nil {
		out.Processors = make([]ProcessorSpec, len(c.Processors))
		for i, p := range c.Processors {
			p.Options = p.Options.Clone()
			out.Processors[i] = p
		}
	}
	return out
}
