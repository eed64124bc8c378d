package config

import "errors"

var (
	// ErrInvalidConfig wraps validation failures of a loaded Config.
	ErrInvalidConfig = errors.New("invalid bridge configuration")
	// ErrLoadConfig wraps failures reading the YAML file or the environment.
	ErrLoadConfig = errors.New("loading bridge configuration failed")
)
