package catalog

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// LoadFile reads a YAML catalog from path. Sections present in the file replace the
// corresponding built-in section; absent sections keep the built-in content.
func LoadFile(path string) (*Catalog, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open catalog file: %w", err)
	}
	defer f.Close()

	return Load(f)
}

// Load reads a YAML catalog from r, see LoadFile.
func Load(r io.Reader) (*Catalog, error) {
	var file Data
	decoder := yaml.NewDecoder(r)
	decoder.KnownFields(true)
	if err := decoder.Decode(&file); err != nil {
		if err == io.EOF {
			return Default(), nil
		}
		return nil, fmt.Errorf("failed to decode catalog: %w", err)
	}

	data := DefaultData()
	if len(file.QuestionSets) > 0 {
		data.QuestionSets = file.QuestionSets
	}
	if len(file.Likelihoods) > 0 {
		data.Likelihoods = file.Likelihoods
	}
	if len(file.RiskTiers) > 0 {
		data.RiskTiers = file.RiskTiers
	}
	if len(file.BasePriors) > 0 {
		data.BasePriors = file.BasePriors
	}

	c, err := New(data)
	if err != nil {
		return nil, fmt.Errorf("invalid catalog: %w", err)
	}
	return c, nil
}

// LoadOrDefault returns the built-in catalog when path is empty, else LoadFile(path).
func LoadOrDefault(path string) (*Catalog, error) {
	if path == "" {
		return Default(), nil
	}
	return LoadFile(path)
}
