// Copyright (C) 2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package models

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Project groups the pipelines and applications of one analytics workload.
type Project struct {
	ID          string                   `gorm:"primaryKey;type:text" json:"id"`
	Name        string                   `gorm:"not null;type:text;index" json:"name"`
	Description string                   `gorm:"type:text" json:"description"`
	Emails      string                   `gorm:"type:text" json:"emails"`
	Platform    string                   `gorm:"type:text" json:"platform"`
	Region      string                   `gorm:"type:text" json:"region"`
	Environment string                   `gorm:"type:text" json:"environment"`
	Status      string                   `gorm:"type:text" json:"status"`
	PipelineID  string                   `gorm:"type:text" json:"pipelineId"`
	Tags        datatypes.JSONSlice[Tag] `json:"tags"`
	Operator    string                   `gorm:"type:text" json:"operator"`
	Deleted     bool                     `gorm:"not null;default:false;index" json:"deleted"`
	CreateAt    int64                    `gorm:"not null" json:"createAt"`
	UpdateAt    int64                    `gorm:"not null" json:"updateAt"`
}

// TableName returns the table name for Project
func (Project) TableName() string {
	return "projects"
}

// BeforeCreate is a GORM hook that stamps creation times in epoch milliseconds
func (p *Project) BeforeCreate(tx *gorm.DB) error {
	now := time.Now().UnixMilli()
	if p.CreateAt == 0 {
		p.CreateAt = now
	}
	if p.UpdateAt == 0 {
		p.UpdateAt = now
	}
	if p.Tags == nil {
		p.Tags = datatypes.JSONSlice[Tag]{}
	}
	return nil
}

// Tag is a key/value pair propagated to provisioned cloud resources.
type Tag struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}
