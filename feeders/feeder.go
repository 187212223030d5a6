// Package feeders populates configuration structs from files and the
// environment. Feeders are composed with golobby/config, which applies them
// in order, later ones overriding earlier ones.
package feeders

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/golobby/config/v3"
)

// Feeder fills target, which must be a pointer to a struct.
type Feeder = config.Feeder

func checkFile(path string) error {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrFileNotFound, path)
		}
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	return nil
}
