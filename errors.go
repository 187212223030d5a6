package hotmod

import (
	"errors"
)

// Kernel errors
var (
	// Artifact errors
	ErrInvalidModule        = errors.New("invalid module")
	ErrUnsupportedFormat    = errors.New("unsupported manifest format")
	ErrUnknownFactory       = errors.New("unknown module factory")
	ErrFactoryAlreadyExists = errors.New("module factory already registered")

	// Registration errors
	ErrRegistrationFailed = errors.New("module registration failed")
	ErrNilModule          = errors.New("module is nil")
	ErrNilAdapter         = errors.New("http adapter is nil")

	// Unload of a name that is not active. Reported as a warning, never returned.
	ErrUnknownModule = errors.New("unknown module")

	// Container errors
	ErrServiceAlreadyRegistered = errors.New("service already registered")
	ErrServiceNameEmpty         = errors.New("service name is empty")

	// Observer errors
	ErrObserverNil = errors.New("observer is nil")
)
