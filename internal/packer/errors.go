package packer

import "errors"

var (
	// ErrInvalidLimits is returned when a box limit is not a positive finite number.
	ErrInvalidLimits = errors.New("volume and weight limits must be positive numbers")
	// ErrQuantityTooLarge is returned when a line asks for more than MaxLineQuantity units.
	ErrQuantityTooLarge = errors.New("order line quantity exceeds the supported maximum")
	// ErrUnknownPolicy is returned when an engine is built for an unsupported placement policy.
	ErrUnknownPolicy = errors.New("placement policy must be FFD or BFD")
)
