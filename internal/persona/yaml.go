package persona

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// seedFile is the on-disk shape of a persona seed file.
type seedFile struct {
	Personas []Persona `yaml:"personas"`
}

// LoadFile reads personas from a YAML seed file. Every entry is
// validated; the first invalid entry fails the whole load.
func LoadFile(path string) ([]Persona, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("persona: read seed file: %w", err)
	}
	return parseSeed(data)
}

func parseSeed(data []byte) ([]Persona, error) {
	var f seedFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("persona: parse seed file: %w", err)
	}
	for i := range f.Personas {
		if err := f.Personas[i].Validate(); err != nil {
			return nil, fmt.Errorf("persona: seed entry %d: %w", i, err)
		}
	}
	return f.Personas, nil
}
