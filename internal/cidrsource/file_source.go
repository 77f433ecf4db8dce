package cidrsource

import (
	"context"
	"fmt"
	"os"
)

// FileSource reads a ranges document from disk.
type FileSource struct {
	Path string
}

func (s FileSource) Load(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(s.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to load CIDR ranges data file %s: %w", s.Path, err)
	}
	return ParseDocument(data)
}
