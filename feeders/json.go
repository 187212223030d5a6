package feeders

import (
	"fmt"

	"github.com/golobby/config/v3/pkg/feeder"
)

// JSONFeeder is a feeder that reads JSON files
type JSONFeeder struct {
	feeder.Json
}

// NewJSONFeeder creates a new JSONFeeder that reads from the specified JSON file
func NewJSONFeeder(filePath string) JSONFeeder {
	return JSONFeeder{feeder.Json{Path: filePath}}
}

// Feed implements Feeder.
func (j JSONFeeder) Feed(target any) error {
	if err := checkFile(j.Path); err != nil {
		return err
	}
	if err := j.Json.Feed(target); err != nil {
		return fmt.Errorf("failed to parse JSON %s: %w", j.Path, err)
	}
	return nil
}
