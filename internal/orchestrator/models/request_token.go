// Copyright (C) 2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package models

// RequestToken records that a client token was used for an operation.
type RequestToken struct {
	Operation string `gorm:"primaryKey;type:text" json:"operation"`
	Token     string `gorm:"primaryKey;type:text" json:"token"`
	ExpireAt  int64  `gorm:"not null;index" json:"expireAt"`
	CreateAt  int64  `gorm:"not null" json:"createAt"`
}

// TableName returns the table name for RequestToken
func (RequestToken) TableName() string {
	return "request_tokens"
}

// Dictionary is a named JSON document of solution wide settings.
type Dictionary struct {
	Name     string `gorm:"primaryKey;type:text" json:"name"`
	Data     string `gorm:"type:text;not null" json:"data"`
	UpdateAt int64  `gorm:"autoUpdateTime:milli" json:"updateAt"`
}

// TableName returns the table name for Dictionary
func (Dictionary) TableName() string {
	return "dictionaries"
}
