package seeder

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/heartmarshall/labsim/internal/domain"
)

//go:embed default_fixture.yaml
var defaultFixture []byte

// Fixture is the demo content loaded by the pipeline.
type Fixture struct {
	Laboratories []LaboratoryFixture `yaml:"laboratories"`
}

type LaboratoryFixture struct {
	Name        string           `yaml:"name"`
	Description string           `yaml:"description"`
	Public      bool             `yaml:"public"`
	Samples     []SampleFixture  `yaml:"samples"`
	Missions    []MissionFixture `yaml:"missions"`
}

type SampleFixture struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	Matrix      string `yaml:"matrix"`
	Origin      string `yaml:"origin"`
}

type MissionFixture struct {
	Title       string                   `yaml:"title"`
	Description string                   `yaml:"description"`
	Client      string                   `yaml:"client"`
	Difficulty  domain.MissionDifficulty `yaml:"difficulty"`
	Objectives  []string                 `yaml:"objectives"`
	Money       int                      `yaml:"money"`
	Experience  int                      `yaml:"experience"`
	Equipment   []string                 `yaml:"equipment"`
}

// LoadFixture parses the fixture at path, or the built-in one when path is
// empty.
func LoadFixture(path string) (*Fixture, error) {
	data := defaultFixture
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("seeder fixture: %w", err)
		}
		data = b
	}

	var f Fixture
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("seeder fixture: parse: %w", err)
	}
	if len(f.Laboratories) == 0 {
		return nil, fmt.Errorf("seeder fixture: no laboratories")
	}
	return &f, nil
}
