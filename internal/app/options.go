package app

import (
	"fmt"

	"github.com/dkeye/Conductor/internal/domain"
	"github.com/go-playground/validator/v10"
	"github.com/go-viper/mapstructure/v2"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// decodeOptions fills out (pre-populated with defaults) from a loose options map.
func decodeOptions(in map[string]any, out any) error {
	if len(in) > 0 {
		dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
			Result:      out,
			ErrorUnused: true,
		})
		if err != nil {
			return err
		}
		if err := dec.Decode(in); err != nil {
			return fmt.Errorf("%w: %v", domain.ErrInvalidOptions, err)
		}
	}
	if err := validate.Struct(out); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrInvalidOptions, err)
	}
	return nil
}
