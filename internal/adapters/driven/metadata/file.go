package metadata

import (
	"context"
	"fmt"
	"os"
)

// NewFileFederationStore creates a store reading the aggregate from a local
// file. Supports both single EntityDescriptor and aggregate
// EntitiesDescriptor formats.
func NewFileFederationStore(path string, opts ...MetadataOption) *FederationStore {
	return newFederationStore(fileSource{path: path}, opts)
}

type fileSource struct {
	path string
}

func (f fileSource) load(context.Context) ([]byte, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		return nil, fmt.Errorf("read metadata file: %w", err)
	}
	return data, nil
}

func (f fileSource) kind() string { return "file" }

func (f fileSource) String() string { return f.path }
