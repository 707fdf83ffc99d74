package preprocess

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
)

// Save writes the fitted preprocessor as JSON.
func (p *Preprocessor) Save(w io.Writer) error {
	return json.NewEncoder(w).Encode(p)
}

// Load reads a fitted preprocessor from JSON.
func Load(r io.Reader) (*Preprocessor, error) {
	var p Preprocessor
	if err := json.NewDecoder(r).Decode(&p); err != nil {
		return nil, err
	}
	if len(p.Categories) == 0 || len(p.Means) != len(numericNames) || len(p.Scales) != len(numericNames) {
		return nil, fmt.Errorf("preprocess: artifact has no fitted state")
	}
	return &p, nil
}

// SaveFile persists the preprocessor to path.
func (p *Preprocessor) SaveFile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("preprocess: create %s: %w", path, err)
	}
	defer f.Close()
	if err := p.Save(f); err != nil {
		return fmt.Errorf("preprocess: write %s: %w", path, err)
	}
	return nil
}

// LoadFile reads a preprocessor artifact from path.
func LoadFile(path string) (*Preprocessor, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	p, err := Load(f)
	if err != nil {
		return nil, fmt.Errorf("preprocess: load %s: %w", path, err)
	}
	return p, nil
}
