// Package catalog loads the list of checks the dashboard polls.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/samber/lo"
	"go.uber.org/multierr"

	"github.com/hamed0406/checkboard/internal/domain"
)

type Source interface {
	Load(ctx context.Context) ([]domain.Check, error)
}

// Validate reports every invalid entry at once.
func Validate(checks []domain.Check) error {
	var err error
	if len(checks) == 0 {
		return errors.New("catalog is empty")
	}
	seen := make(map[domain.Key]int, len(checks))
	for i, c := range checks {
		where := fmt.Sprintf("check #%d (%s)", i, c.Key())
		if strings.TrimSpace(c.Project) == "" || strings.TrimSpace(c.Name) == "" {
			err = multierr.Append(err, fmt.Errorf("%s: project and name are required", where))
		}
		if c.URL == "" {
			err = multierr.Append(err, fmt.Errorf("%s: url is required", where))
		}
		if c.TTL <= 0 {
			err = multierr.Append(err, fmt.Errorf("%s: ttl must be > 0, got %d", where, c.TTL))
		}
		if j, dup := seen[c.Key()]; dup {
			err = multierr.Append(err, fmt.Errorf("%s: duplicate of check #%d", where, j))
			continue
		}
		seen[c.Key()] = i
	}
	return err
}

type Group struct {
	Project string
	Checks  []domain.Check
}

// ByProject groups checks by project, keeping first-seen project order.
func ByProject(checks []domain.Check) []Group {
	grouped := lo.GroupBy(checks, func(c domain.Check) string { return c.Project })
	projects := lo.Uniq(lo.Map(checks, func(c domain.Check, _ int) string { return c.Project }))
	return lo.Map(projects, func(p string, _ int) Group {
		return Group{Project: p, Checks: grouped[p]}
	})
}
