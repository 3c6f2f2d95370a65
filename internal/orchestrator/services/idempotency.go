// Copyright (C) 2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/noldarim/clickstream/internal/orchestrator/database"
	"github.com/noldarim/clickstream/internal/orchestrator/models"
)

// Operations that can be guarded by a request token.
const (
	OperationPipelineCreate = "pipeline.create"
	OperationPipelineUpdate = "pipeline.update"
	OperationPipelineDelete = "pipeline.delete"
	OperationProjectCreate  = "project.create"
	OperationProjectUpdate  = "project.update"
	OperationProjectDelete  = "project.delete"
)

// IdempotencyGuard records the first use of a client token per operation.
//
// The marker is written before the guarded operation runs, so a retry after a
// crash in between is treated as a replay. Callers get at most once semantics.
type IdempotencyGuard struct {
	store     Store
	retention time.Duration
	now       func() time.Time
}

// NewIdempotencyGuard creates a guard whose markers expire after retention.
func NewIdempotencyGuard(store Store, retention time.Duration) *IdempotencyGuard {
	return &IdempotencyGuard{store: store, retention: retention, now: time.Now}
}

// Claim records token for operation. A second claim of the same pair within
// the retention window returns ErrRequestReplayed.
func (g *IdempotencyGuard) Claim(ctx context.Context, operation, token string) error {
	if token == "" {
		return fmt.Errorf("empty request token for %s", operation)
	}

	now := g.now()
	err := g.store.SaveRequestToken(ctx, &models.RequestToken{
		Operation: operation,
		Token:     token,
		ExpireAt:  now.Add(g.retention).Unix(),
		CreateAt:  now.UnixMilli(),
	})
	if errors.Is(err, database.ErrDuplicate) {
		getServiceLog().Warn().Str("operation", operation).Str("token", token).Msg("Replayed request token")
		return ErrRequestReplayed
	}
	if err != nil {
		return fmt.Errorf("failed to save request token: %w", err)
	}
	return nil
}

// ClaimOptional claims token when the client sent one.
func (g *IdempotencyGuard) ClaimOptional(ctx context.Context, operation, token string) error {
	if token == "" {
		return nil
	}
	return g.Claim(ctx, operation, token)
}
