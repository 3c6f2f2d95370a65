// Copyright (C) 2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPaginate(t *testing.T) {
	items := []int{1, 2, 3, 4, 5}

	tests := []struct {
		name       string
		pageNumber int
		pageSize   int
		expected   []int
	}{
		{"second page", 2, 2, []int{3, 4}},
		{"last partial page", 3, 2, []int{5}},
		{"past the end", 4, 2, []int{}},
		{"zero size returns all", 1, 0, items},
		{"page zero is first page", 0, 2, []int{1, 2}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page := Paginate(items, tt.pageNumber, tt.pageSize)
			assert.Equal(t, 5, page.TotalCount)
			assert.Equal(t, tt.expected, page.Items)
		})
	}

	empty := Paginate[int](nil, 1, 10)
	assert.Equal(t, 0, empty.TotalCount)
	assert.NotNil(t, empty.Items)
}
