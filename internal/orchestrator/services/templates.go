// Copyright (C) 2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package services

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/noldarim/clickstream/internal/orchestrator/models"
)

// TemplatesDictionary is the dictionary entry holding stack template URLs.
const TemplatesDictionary = "Templates"

// Template keys inside the Templates dictionary.
const (
	TemplateIngestionS3      = "ingestion_s3"
	TemplateIngestionKafka   = "ingestion_kafka"
	TemplateIngestionKinesis = "ingestion_kinesis"
	TemplateKafkaConnector   = "kafka-s3-sink"
	TemplateETL              = "data-pipeline"
	TemplateDataModeling     = "data-modeling"
)

// Templates maps a template key to the URL of its stack template.
type Templates map[string]string

// URL returns the template for key or ErrTemplatesMissing.
func (t Templates) URL(key string) (string, error) {
	url, ok := t[key]
	if !ok || url == "" {
		return "", fmt.Errorf("%w: template %q", ErrTemplatesMissing, key)
	}
	return url, nil
}

// Keys returns the configured template keys in sorted order.
func (t Templates) Keys() []string {
	keys := make([]string, 0, len(t))
	for k := range t {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// LoadTemplates reads the Templates dictionary entry.
func LoadTemplates(ctx context.Context, store Store) (Templates, error) {
	entry, err := store.GetDictionary(ctx, TemplatesDictionary)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s dictionary: %w", TemplatesDictionary, err)
	}
	if entry == nil {
		return nil, fmt.Errorf("%w: dictionary %s not found", ErrTemplatesMissing, TemplatesDictionary)
	}

	var templates Templates
	if err := json.Unmarshal([]byte(entry.Data), &templates); err != nil {
		return nil, fmt.Errorf("failed to parse %s dictionary: %w", TemplatesDictionary, err)
	}
	return templates, nil
}

// SaveTemplates replaces the Templates dictionary entry.
func SaveTemplates(ctx context.Context, store Store, templates Templates) error {
	data, err := json.Marshal(templates)
	if err != nil {
		return fmt.Errorf("failed to encode templates: %w", err)
	}
	return store.PutDictionary(ctx, &models.Dictionary{Name: TemplatesDictionary, Data: string(data)})
}

// templatesFile is the on-disk layout accepted by ReadTemplatesFile:
//
//	templates:
//	  ingestion_s3: https://bucket.s3.amazonaws.com/ingestion-s3.template.json
//	  data-pipeline: https://bucket.s3.amazonaws.com/data-pipeline.template.json
type templatesFile struct {
	Templates Templates `yaml:"templates"`
}

// ReadTemplatesFile parses a YAML templates file.
func ReadTemplatesFile(path string) (Templates, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read templates file: %w", err)
	}

	var file templatesFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse templates file %s: %w", path, err)
	}
	if len(file.Templates) == 0 {
		return nil, fmt.Errorf("templates file %s defines no templates", path)
	}
	return file.Templates, nil
}
