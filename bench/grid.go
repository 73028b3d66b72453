package bench

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Grid is a YAML-loadable benchmark definition: the synthetic dataset
// shape plus the cases to measure.
//
// Example:
//
//	dimensions: 128
//	corpus: 10000
//	queries: 200
//	seed: 42
//	cases:
//	  - {index: flat}
//	  - {index: hnsw, m: 16, ef_construction: 200, ef_search: 100}
//	  - {index: ivf, nlists: 100, nprobe: 8}
type Grid struct {
	Dimensions int    `yaml:"dimensions"`
	Corpus     int    `yaml:"corpus"`
	Queries    int    `yaml:"queries"`
	Seed       int64  `yaml:"seed"`
	Cases      []Case `yaml:"cases"`
}

// ParseGrid parses and validates a YAML grid definition.
func ParseGrid(data []byte) (*Grid, error) {
	var grid Grid
	if err := yaml.Unmarshal(data, &grid); err != nil {
		return nil, fmt.Errorf("parse grid: %w", err)
	}

	if err := grid.validate(); err != nil {
		return nil, err
	}

	return &grid, nil
}

// LoadGrid reads a grid definition from a YAML file.
func LoadGrid(path string) (*Grid, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read grid: %w", err)
	}

	return ParseGrid(data)
}

func (g *Grid) validate() error {
	if g.Dimensions < 1 {
		return fmt.Errorf("grid dimensions must be positive, got %d", g.Dimensions)
	}
	if g.Corpus < 1 {
		return fmt.Errorf("grid corpus must be positive, got %d", g.Corpus)
	}
	if g.Queries < 1 {
		return fmt.Errorf("grid queries must be positive, got %d", g.Queries)
	}
	if len(g.Cases) == 0 {
		return fmt.Errorf("grid has no cases")
	}

	// Unknown index variants are deliberately not rejected here: the
	// harness records them as case failures so one typo cannot sink a
	// long grid run.
	return nil
}
