package cidrsource

import (
	"context"

	"geoprobe/internal/database"
)

// DatabaseSource reads the enabled rows of the cidr_ranges table.
type DatabaseSource struct{}

func (DatabaseSource) Load(ctx context.Context) ([]string, error) {
	ranges, err := database.GetEnabledCidrRanges(ctx)
	if err != nil {
		return nil, err
	}
	return NormalizeRanges(ranges)
}

func (DatabaseSource) Store(ctx context.Context, ranges []string) error {
	normalized, err := NormalizeRanges(ranges)
	if err != nil {
		return err
	}
	_, err = database.SaveCidrRanges(ctx, normalized, "import")
	return err
}
