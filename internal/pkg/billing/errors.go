package billing

import "errors"

var (
	ErrMarginBelowFloor = errors.New("monthly price is below the minimum margin for the volume cap")
	ErrInvalidVolumeCap = errors.New("max volume per month must be positive")
	ErrInvalidPackage   = errors.New("invalid package configuration")
	ErrDuplicateSlug    = errors.New("package slug already exists")
	ErrPackageNotFound  = errors.New("package not found")
	ErrPackageInactive  = errors.New("package is inactive")
	ErrClientNotFound   = errors.New("client not found")
)
