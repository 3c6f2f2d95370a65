// Copyright (C) 2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noldarim/clickstream/internal/orchestrator/database"
)

func TestIdempotencyGuard_Claim(t *testing.T) {
	db := database.UseFreshInMemoryDatabase(t).DB
	guard := NewIdempotencyGuard(db, 24*time.Hour)
	ctx := context.Background()

	require.NoError(t, guard.Claim(ctx, OperationPipelineCreate, "0000-0000"))
	assert.ErrorIs(t, guard.Claim(ctx, OperationPipelineCreate, "0000-0000"), ErrRequestReplayed)

	// Tokens are scoped per operation.
	assert.NoError(t, guard.Claim(ctx, OperationPipelineDelete, "0000-0000"))

	assert.Error(t, guard.Claim(ctx, OperationPipelineCreate, ""))
}

func TestIdempotencyGuard_ClaimOptional(t *testing.T) {
	db := database.UseFreshInMemoryDatabase(t).DB
	guard := NewIdempotencyGuard(db, 24*time.Hour)
	ctx := context.Background()

	assert.NoError(t, guard.ClaimOptional(ctx, OperationPipelineUpdate, ""))
	assert.NoError(t, guard.ClaimOptional(ctx, OperationPipelineUpdate, ""))

	require.NoError(t, guard.ClaimOptional(ctx, OperationPipelineUpdate, "1111-1111"))
	assert.ErrorIs(t, guard.ClaimOptional(ctx, OperationPipelineUpdate, "1111-1111"), ErrRequestReplayed)
}

func TestIdempotencyGuard_ExpiredTokenIsReclaimed(t *testing.T) {
	db := database.UseFreshInMemoryDatabase(t).DB
	guard := NewIdempotencyGuard(db, time.Hour)
	guard.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	ctx := context.Background()

	require.NoError(t, guard.Claim(ctx, OperationPipelineCreate, "0000-0000"))

	guard.now = time.Now
	assert.NoError(t, guard.Claim(ctx, OperationPipelineCreate, "0000-0000"))
	assert.ErrorIs(t, guard.Claim(ctx, OperationPipelineCreate, "0000-0000"), ErrRequestReplayed)
}
