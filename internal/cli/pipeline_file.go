// Copyright (C) 2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/noldarim/clickstream/internal/orchestrator/models"
)

// LoadPipelineFile reads a pipeline definition from YAML. Keys follow the
// REST request body (projectId, ingestionServer.sinkType, ...) and
// ${VAR} references are expanded from the environment.
func LoadPipelineFile(path string) (*models.Pipeline, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read pipeline file: %w", err)
	}

	var doc map[string]interface{}
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), &doc); err != nil {
		return nil, fmt.Errorf("failed to parse pipeline YAML: %w", err)
	}

	// Round trip through JSON so the model keeps a single set of field tags.
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to convert pipeline YAML: %w", err)
	}
	var pipeline models.Pipeline
	if err := json.Unmarshal(raw, &pipeline); err != nil {
		return nil, fmt.Errorf("invalid pipeline definition: %w", err)
	}

	if err := ValidatePipeline(&pipeline); err != nil {
		return nil, fmt.Errorf("invalid pipeline config: %w", err)
	}
	pipeline.NormalizeSinks()
	return &pipeline, nil
}

// ValidatePipeline checks the fields a definition file must carry.
func ValidatePipeline(p *models.Pipeline) error {
	if p.ProjectID == "" {
		return errors.New("projectId is required")
	}
	if p.Region == "" {
		return errors.New("region is required")
	}
	server := p.IngestionServer.Data()
	if !server.SinkType.Valid() {
		return fmt.Errorf("invalid sink type %q", server.SinkType)
	}
	switch server.SinkType {
	case models.SinkTypeS3:
		if server.SinkS3 == nil {
			return errors.New("ingestionServer.sinkS3 is required for sink type s3")
		}
	case models.SinkTypeKafka:
		if server.SinkKafka == nil {
			return errors.New("ingestionServer.sinkKafka is required for sink type kafka")
		}
	case models.SinkTypeKinesis:
		if server.SinkKinesis == nil {
			return errors.New("ingestionServer.sinkKinesis is required for sink type kinesis")
		}
	}
	return nil
}
