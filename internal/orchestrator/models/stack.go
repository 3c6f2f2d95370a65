// Copyright (C) 2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package models

// StackKind identifies one of the infrastructure stacks a pipeline is made of.
type StackKind string

const (
	StackKindIngestion      StackKind = "Ingestion"
	StackKindKafkaConnector StackKind = "KafkaConnector"
	StackKindETL            StackKind = "ETL"
	StackKindDataModeling   StackKind = "DataModeling"
)

// StackAction is what the workflow does with one stack.
type StackAction string

const (
	StackActionCreate StackAction = "Create"
	StackActionUpdate StackAction = "Update"
	StackActionDelete StackAction = "Delete"
)

// StackStep is one ordered unit of the provisioning plan.
type StackStep struct {
	Kind        StackKind         `json:"kind"`
	StackName   string            `json:"stackName"`
	Action      StackAction       `json:"action"`
	TemplateURL string            `json:"templateUrl"`
	Parameters  map[string]string `json:"parameters"`
	Tags        map[string]string `json:"tags,omitempty"`
}

// StackPlan is the ordered list of stack operations submitted to the workflow engine.
type StackPlan struct {
	Region string      `json:"region"`
	Steps  []StackStep `json:"steps"`
}
