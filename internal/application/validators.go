package application

import (
	"fmt"
	"slices"

	"github.com/go-playground/validator/v10"

	"github.com/ahrav/go-tally/infrastructure/ingest"
)

// RegisterRunValidators registers the custom validation tags used by
// RunConfig: "encoding" accepts an empty string or any encoding the ingest
// package can decode.
func RegisterRunValidators(v *validator.Validate) error {
	if err := v.RegisterValidation("encoding", validateEncoding); err != nil {
		return fmt.Errorf("failed to register encoding validator: %w", err)
	}
	return nil
}

func validateEncoding(fl validator.FieldLevel) bool {
	name := fl.Field().String()
	return name == "" || ingest.IsSupportedEncoding(name)
}

// ValidateDetectorKinds checks that every configured detector kind has a
// factory in registry. It runs when the run is assembled, after any custom
// factories are registered.
func ValidateDetectorKinds(kinds []string, registry *DetectorRegistry) error {
	supported := registry.SupportedKinds()
	for _, kind := range kinds {
		if !slices.Contains(supported, kind) {
			return fmt.Errorf("%w: %s (supported: %v)", ErrUnknownDetector, kind, supported)
		}
	}
	return nil
}
