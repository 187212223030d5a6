package feeders

import (
	"errors"
	"fmt"
)

// Static error definitions for feeders
var (
	ErrFeed                 = errors.New("config feeder error")
	ErrInvalidTarget        = errors.New("expected pointer to struct")
	ErrEnvUnsupportedType   = errors.New("unsupported type")
	ErrEnvFieldCannotBeSet  = errors.New("field cannot be set")
	ErrFileNotFound         = errors.New("config file not found")
	ErrUnsupportedExtension = errors.New("unsupported config file extension")
)

func wrapTargetError(got any) error {
	return fmt.Errorf("%w, got %T", ErrInvalidTarget, got)
}

func wrapEnvConvertError(name, typeName string, err error) error {
	return fmt.Errorf("env %s: cannot convert to %s: %w", name, typeName, err)
}
