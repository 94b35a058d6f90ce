package logging

import (
	"fmt"
	"maps"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/go-viper/mapstructure/v2"

	apperrors "github.com/leeforge/logkit/errors"
)

// Options holds the kind-specific settings of a writer or processor spec.
// Values are either plain configuration scalars/maps or, after reference
// resolution, live service objects.
type Options map[string]any

var validate = validator.New(validator.WithRequiredStructEnabled())

func (o Options) Get(key string) (any, bool) {
	v, ok := o[key]
	return v, ok
}

func (o Options) GetString(key string, defaultVal string) string {
	s, ok := o[key].(string)
	if !ok {
		return defaultVal
	}
	return s
}

func (o Options) GetInt(key string, defaultVal int) int {
	switch n := o[key].(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	default:
		return defaultVal
	}
}

func (o Options) GetBool(key string, defaultVal bool) bool {
	b, ok := o[key].(bool)
	if !ok {
		return defaultVal
	}
	return b
}

// Clone returns a shallow copy; nested values are shared.
func (o Options) Clone() Options {
	if o == nil {
		return nil
	}
	return maps.Clone(o)
}

// Decode fills target (a struct pointer) from the options. `default` tags
// are applied first, then present keys are decoded with weak typing, then
// `validate` tags are checked.
func (o Options) Decode(target any) error {
	if err := defaults.Set(target); err != nil {
		return fmt.Errorf("apply option defaults: %w", err)
	}

	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           target,
		WeaklyTypedInput: true,
		DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
	})
	if err != nil {
		return err
	}
	if err := dec.Decode(map[string]any(o)); err != nil {
		return apperrors.WrapWithType(err, apperrors.ErrorTypeInvalid, "decode options")
	}

	if err := validate.Struct(target); err != nil {
		return apperrors.WrapWithType(err, apperrors.ErrorTypeInvalid, "validate options")
	}
	return nil
}
