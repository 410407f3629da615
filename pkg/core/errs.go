package core

import "errors"

var (
	ErrInsufficientData = errors.New("insufficient data")
	ErrNoConfiguration  = errors.New("no configuration met the objectives")
	ErrUnknownParameter = errors.New("unknown parameter")
	ErrInvalidParameter = errors.New("invalid parameter value")
)
