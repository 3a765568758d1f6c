package duplicates

import (
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

// Fixture is a file of records for offline detection. JSON is accepted
// as well since it is valid YAML.
type Fixture struct {
	Activities    []ActivityRecord     `yaml:"activities"`
	Organizations []OrganizationRecord `yaml:"organizations"`
}

// LoadFixture decodes a fixture into a MemoryStore.
func LoadFixture(r io.Reader) (*MemoryStore, error) {
	var f Fixture
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil && err != io.EOF {
		return nil, fmt.Errorf("decoding fixture: %w", err)
	}
	return NewMemoryStore(f.Activities, f.Organizations), nil
}
