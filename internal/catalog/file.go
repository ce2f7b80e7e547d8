package catalog

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/hamed0406/checkboard/internal/domain"
)

// FileSource reads a local catalog. YAML and JSON are both accepted.
type FileSource struct {
	Path string
}

func (f FileSource) Load(context.Context) ([]domain.Check, error) {
	raw, err := os.ReadFile(f.Path)
	if err != nil {
		return nil, fmt.Errorf("read catalog %s: %w", f.Path, err)
	}
	var checks []domain.Check
	if err := yaml.Unmarshal(raw, &checks); err != nil {
		return nil, fmt.Errorf("parse catalog %s: %w", f.Path, err)
	}
	return checks, nil
}
