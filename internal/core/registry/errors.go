package registry

import "errors"

var (
	ErrUnknownComponentType = errors.New("unknown component type")
	ErrUnknownBuildScript   = errors.New("unknown build script")

	ErrInvalidTemplate = errors.New("invalid component template")
	ErrInvalidPreset   = errors.New("invalid naming preset")
)
