// Package cfgutil decodes raw option maps into typed configuration structs.
package cfgutil

import (
	"github.com/mitchellh/mapstructure"
)

// Setter is implemented by configuration structs that carry defaults for
// fields left unset in the raw input.
type Setter interface {
	ApplyDefaults()
}

// Decode decodes the given raw input map into the target pointer c.
// If c implements Setter, ApplyDefaults() is called after decoding.
func Decode(input map[string]any, c any) error {
	config := &mapstructure.DecoderConfig{
		Metadata: nil,
		Result:   c,
		TagName:  "mapstructure",
	}

	decoder, err := mapstructure.NewDecoder(config)
	if err != nil {
		return err
	}
	if err := decoder.Decode(input); err != nil {
		return err
	}

	if s, ok := c.(Setter); ok {
		s.ApplyDefaults()
	}

	return nil
}
