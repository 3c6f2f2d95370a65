// Copyright (C) 2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package services

import "github.com/samber/lo"

// Page is one slice of a list response.
type Page[T any] struct {
	TotalCount int `json:"totalCount"`
	Items      []T `json:"items"`
}

// Paginate slices items in memory. pageNumber is 1-based; pageSize <= 0
// returns everything. TotalCount is always the size of the full set.
func Paginate[T any](items []T, pageNumber, pageSize int) Page[T] {
	page := Page[T]{TotalCount: len(items), Items: []T{}}
	if pageSize <= 0 {
		if items != nil {
			page.Items = items
		}
		return page
	}
	if pageNumber < 1 {
		pageNumber = 1
	}

	chunks := lo.Chunk(items, pageSize)
	if pageNumber > len(chunks) {
		return page
	}
	page.Items = chunks[pageNumber-1]
	return page
}
