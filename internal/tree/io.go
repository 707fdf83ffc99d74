package tree

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
)

// Save writes the fitted classifier as JSON.
func (c *Classifier) Save(w io.Writer) error {
	return json.NewEncoder(w).Encode(c)
}

// Load reads a fitted classifier from JSON.
func Load(r io.Reader) (*Classifier, error) {
	var c Classifier
	if err := json.NewDecoder(r).Decode(&c); err != nil {
		return nil, err
	}
	if len(c.Nodes) == 0 || len(c.Leaves) == 0 || len(c.Classes) == 0 {
		return nil, fmt.Errorf("tree: artifact is missing nodes, leaves or classes")
	}
	return &c, nil
}

// SaveFile persists the classifier to path.
func (c *Classifier) SaveFile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("tree: create %s: %w", path, err)
	}
	defer f.Close()
	if err := c.Save(f); err != nil {
		return fmt.Errorf("tree: write %s: %w", path, err)
	}
	return nil
}

// LoadFile reads a classifier artifact from path.
func LoadFile(path string) (*Classifier, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	c, err := Load(f)
	if err != nil {
		return nil, fmt.Errorf("tree: load %s: %w", path, err)
	}
	return c, nil
}
