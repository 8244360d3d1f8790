package permission

import (
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

// Catalog is the declarative Module → Application → Transaction tree that
// seeds the transaction table.
type Catalog struct {
	Modules []CatalogModule `yaml:"modules"`
}

// CatalogModule groups applications.
type CatalogModule struct {
	Code         string               `yaml:"code"`
	Name         string               `yaml:"name"`
	Applications []CatalogApplication `yaml:"applications"`
}

// CatalogApplication groups transactions.
type CatalogApplication struct {
	Code         string        `yaml:"code"`
	Name         string        `yaml:"name"`
	Order        int           `yaml:"order"`
	Transactions []Transaction `yaml:"transactions"`
}

// LoadCatalog decodes a YAML catalog and validates it.
func LoadCatalog(r io.Reader) (*Catalog, error) {
	var c Catalog
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&c); err != nil {
		if err == io.EOF {
			return &c, nil
		}
		return nil, fmt.Errorf("decode transaction catalog: %w", err)
	}
	if _, err := c.Registry(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Registry builds a frozen [Registry] from the catalog, tagging each
// transaction with its application code. Duplicate codes or URLs fail.
func (c *Catalog) Registry() (*Registry, error) {
	reg := NewRegistry()
	for _, m := range c.Modules {
		for _, app := range m.Applications {
			if app.Code == "" {
				return nil, fmt.Errorf("module %q has an application without code", m.Code)
			}
			for _, t := range app.Transactions {
				t.Application = app.Code
				if _, err := reg.Register(t); err != nil {
					return nil, err
				}
			}
		}
	}
	reg.Freeze()
	return reg, nil
}

// Transactions returns the catalog's transactions with normalized URLs.
func (c *Catalog) Transactions() ([]Transaction, error) {
	reg, err := c.Registry()
	if err != nil {
		return nil, err
	}
	return reg.All(), nil
}
