package feeders

import (
	"fmt"

	"github.com/golobby/config/v3/pkg/feeder"
)

// YamlFeeder is a feeder that reads YAML files
type YamlFeeder struct {
	feeder.Yaml
}

// NewYamlFeeder creates a new YamlFeeder that reads from the specified YAML file
func NewYamlFeeder(filePath string) YamlFeeder {
	return YamlFeeder{feeder.Yaml{Path: filePath}}
}

// Feed reports a missing file as ErrFileNotFound before decoding.
func (y YamlFeeder) Feed(target any) error {
	if err := checkFile(y.Path); err != nil {
		return err
	}
	if err := y.Yaml.Feed(target); err != nil {
		return fmt.Errorf("failed to parse YAML %s: %w", y.Path, err)
	}
	return nil
}
