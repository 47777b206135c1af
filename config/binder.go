package config

import (
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
)

// Bind stages.
const (
	StageDecode   = "decode"
	StageValidate = "validate"
)

// Binder decodes merged source maps into a config struct and validates it.
//
// Decoding goes through mapstructure with the `config` tag. Input is weakly
// typed because env and CLI values arrive as strings: "16" becomes an int,
// "30s" a time.Duration and "echo,clock" a []string. Validation uses the
// `validate` tags of go-playground/validator.
//
//	type DispatcherConfig struct {
//	    Size      int           `config:"size" validate:"gte=0"`
//	    Expiry    time.Duration `config:"expiry"`
//	}
type Binder struct {
	validator *validator.Validate
}

// BindError reports which stage rejected the input.
type BindError struct {
	// Stage is StageDecode or StageValidate.
	Stage string
	Err   error
}

func (e *BindError) Error() string {
	return fmt.Sprintf("config %s error: %v", e.Stage, e.Err)
}

func (e *BindError) Unwrap() error {
	return e.Err
}

func NewBinder() *Binder {
	return &Binder{
		validator: validator.New(),
	}
}

// Bind decodes source into target, a pointer to a struct, then validates
// it. On a validation failure target is left populated.
func (b *Binder) Bind(source map[string]any, target any) error {
	if err := b.decode(source, target); err != nil {
		return &BindError{Stage: StageDecode, Err: err}
	}
	if err := b.validator.Struct(target); err != nil {
		return &BindError{Stage: StageValidate, Err: err}
	}
	return nil
}

func (b *Binder) decode(source map[string]any, target any) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           target,
		WeaklyTypedInput: true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
		TagName: "config",
	})
	if err != nil {
		return err
	}
	return decoder.Decode(source)
}
