package database

import (
	"context"
	"fmt"

	"geoprobe/internal/domain"

	"gorm.io/gorm/clause"
)

// GetEnabledCidrRanges returns the enabled blocks in insertion order.
func GetEnabledCidrRanges(ctx context.Context) ([]string, error) {
	if DB == nil {
		return nil, ErrDatabaseNotInitialized
	}

	var ranges []string
	err := DB.WithContext(ctx).
		Model(&domain.CidrRange{}).
		Where("enabled = ?", true).
		Order("id").
		Pluck("cidr", &ranges).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load CIDR ranges from database: %w", err)
	}
	return ranges, nil
}

// SaveCidrRanges inserts blocks that are not stored yet and returns how many were added.
func SaveCidrRanges(ctx context.Context, cidrs []string, source string) (int64, error) {
	if DB == nil {
		return 0, ErrDatabaseNotInitialized
	}
	if len(cidrs) == 0 {
		return 0, nil
	}

	rows := make([]domain.CidrRange, 0, len(cidrs))
	for _, cidr := range cidrs {
		rows = append(rows, domain.CidrRange{CIDR: cidr, Source: source, Enabled: true})
	}

	result := DB.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "cidr"}}, DoNothing: true}).
		CreateInBatches(&rows, 500)
	if result.Error != nil {
		return 0, fmt.Errorf("database: save CIDR ranges: %w", result.Error)
	}
	return result.RowsAffected, nil
}

// SetCidrRangeEnabled toggles whether a stored block is served to generators.
func SetCidrRangeEnabled(ctx context.Context, cidr string, enabled bool) error {
	if DB == nil {
		return ErrDatabaseNotInitialized
	}

	result := DB.WithContext(ctx).
		Model(&domain.CidrRange{}).
		Where("cidr = ?", cidr).
		Update("enabled", enabled)
	if result.Error != nil {
		return fmt.Errorf("database: update CIDR range %s: %w", cidr, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("database: CIDR range %s not found", cidr)
	}
	return nil
}
