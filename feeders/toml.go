package feeders

import (
	"fmt"

	"github.com/golobby/config/v3/pkg/feeder"
)

// TomlFeeder is a feeder that reads TOML files
type TomlFeeder struct {
	feeder.Toml
}

// NewTomlFeeder creates a new TomlFeeder that reads from the specified TOML file
func NewTomlFeeder(filePath string) TomlFeeder {
	return TomlFeeder{feeder.Toml{Path: filePath}}
}

func (t TomlFeeder) Feed(target any) error {
	if err := checkFile(t.Path); err != nil {
		return err
	}
	if err := t.Toml.Feed(target); err != nil {
		return fmt.Errorf("failed to parse TOML %s: %w", t.Path, err)
	}
	return nil
}
