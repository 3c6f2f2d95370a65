// Copyright (C) 2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package database

import (
	"context"
	"errors"
	"time"

	"github.com/noldarim/clickstream/internal/orchestrator/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SaveRequestToken records first use of a request token. A token that is
// already recorded and not yet expired yields ErrDuplicate; an expired one is
// reclaimed.
func (db *GormDB) SaveRequestToken(ctx context.Context, token *models.RequestToken) error {
	now := time.Now()
	if token.CreateAt == 0 {
		token.CreateAt = now.UnixMilli()
	}

	result := db.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(token)
	if result.Error != nil {
		return classify(result.Error)
	}
	if result.RowsAffected > 0 {
		return nil
	}

	reclaimed := db.db.WithContext(ctx).Model(&models.RequestToken{}).
		Where("operation = ? AND token = ? AND expire_at < ?", token.Operation, token.Token, now.Unix()).
		Updates(map[string]any{
			"expire_at": token.ExpireAt,
			"create_at": token.CreateAt,
		})
	if reclaimed.Error != nil {
		return reclaimed.Error
	}
	if reclaimed.RowsAffected == 0 {
		return ErrDuplicate
	}
	return nil
}

// GetDictionary returns a dictionary entry. Returns (nil, nil) when absent.
func (db *GormDB) GetDictionary(ctx context.Context, name string) (*models.Dictionary, error) {
	var entry models.Dictionary
	if err := db.db.WithContext(ctx).First(&entry, "name = ?", name).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &entry, nil
}

// PutDictionary creates or replaces a dictionary entry.
func (db *GormDB) PutDictionary(ctx context.Context, entry *models.Dictionary) error {
	return db.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "name"}},
			DoUpdates: clause.AssignmentColumns([]string{"data", "update_at"}),
		}).
		Create(entry).Error
}
