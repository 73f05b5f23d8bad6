package exchange

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"market-hierarchy/internal/hierarchy"
)

// File reads snapshots from a YAML document on every fetch. The document
// is either a list of snapshots or a map with a "markets" list.
type File struct {
	id   string
	path string
}

// NewFile builds a file-backed adapter.
func NewFile(id, path string) *File {
	return &File{id: id, path: path}
}

// ID names the adapter.
func (f *File) ID() string { return f.id }

type fileDocument struct {
	ExchangeID string                     `yaml:"exchangeId"`
	Markets    []hierarchy.MarketSnapshot `yaml:"markets"`
}

// FetchMarkets parses the file.
func (f *File) FetchMarkets(ctx context.Context) ([]hierarchy.MarketSnapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(f.path)
	if err != nil {
		return nil, fmt.Errorf("read snapshot file: %w", err)
	}
	return ParseYAML(f.id, data)
}

// ParseYAML decodes a snapshot document.
func ParseYAML(id string, data []byte) ([]hierarchy.MarketSnapshot, error) {
	var list []hierarchy.MarketSnapshot
	if err := yaml.Unmarshal(data, &list); err == nil {
		return withExchangeID(id, list), nil
	}

	var doc fileDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse snapshot yaml: %w", err)
	}
	if doc.ExchangeID != "" {
		id = doc.ExchangeID
	}
	return withExchangeID(id, doc.Markets), nil
}

var _ hierarchy.Exchange = (*File)(nil)
