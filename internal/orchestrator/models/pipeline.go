// Copyright (C) 2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package models

import (
	"fmt"
	"strings"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	// PipelinePrefix is the record prefix shared by every pipeline row.
	PipelinePrefix = "PIPELINE"
	// LatestVersionTag marks the live record of a pipeline.
	LatestVersionTag = "latest"
)

// PipelineStatus is the lifecycle state of a pipeline.
type PipelineStatus string

const (
	PipelineStatusCreating PipelineStatus = "Creating"
	PipelineStatusActive   PipelineStatus = "Active"
	PipelineStatusUpdating PipelineStatus = "Updating"
	PipelineStatusDeleting PipelineStatus = "Deleting"
	PipelineStatusDeleted  PipelineStatus = "Deleted"
	PipelineStatusFailed   PipelineStatus = "Failed"
)

// Valid reports whether the status is one of the lifecycle states.
func (s PipelineStatus) Valid() bool {
	switch s {
	case PipelineStatusCreating, PipelineStatusActive, PipelineStatusUpdating,
		PipelineStatusDeleting, PipelineStatusDeleted, PipelineStatusFailed:
		return true
	default:
		return false
	}
}

// InProgress reports whether a workflow attempt is still expected to move the status.
func (s PipelineStatus) InProgress() bool {
	switch s {
	case PipelineStatusCreating, PipelineStatusUpdating, PipelineStatusDeleting:
		return true
	default:
		return false
	}
}

// SinkType selects where the ingestion server buffers data.
type SinkType string

const (
	SinkTypeS3      SinkType = "s3"
	SinkTypeKinesis SinkType = "kinesis"
	SinkTypeKafka   SinkType = "kafka"
)

// Valid reports whether the sink type is one of the supported sinks.
func (s SinkType) Valid() bool {
	switch s {
	case SinkTypeS3, SinkTypeKinesis, SinkTypeKafka:
		return true
	default:
		return false
	}
}

// Pipeline is a deployed ingestion-to-analytics configuration owned by a project.
//
// Rows are keyed by (ProjectID, Type). The live row has VersionTag "latest";
// every successful update also stores the superseded row under its old
// version stamp so the history can be audited.
type Pipeline struct {
	ProjectID         string                              `gorm:"primaryKey;type:text" json:"projectId"`
	Type              string                              `gorm:"primaryKey;type:text" json:"type"`
	Prefix            string                              `gorm:"type:text;not null" json:"prefix"`
	PipelineID        string                              `gorm:"type:text;not null;index" json:"pipelineId"`
	AppIDs            datatypes.JSONSlice[string]         `json:"appIds"`
	Name              string                              `gorm:"type:text" json:"name"`
	Description       string                              `gorm:"type:text" json:"description"`
	Region            string                              `gorm:"type:text" json:"region"`
	DataCollectionSDK string                              `gorm:"type:text" json:"dataCollectionSDK"`
	Tags              datatypes.JSONSlice[Tag]            `json:"tags"`
	Bucket            datatypes.JSONType[S3Bucket]        `json:"bucket"`
	IngestionServer   datatypes.JSONType[IngestionServer] `json:"ingestionServer"`
	ETL               datatypes.JSONType[*ETL]            `json:"etl"`
	DataModel         datatypes.JSONType[*DataModel]      `json:"dataModel"`
	Status            PipelineStatus                      `gorm:"type:text;not null" json:"status"`
	Workflow          datatypes.JSONType[*StackPlan]      `json:"workflow"`
	ExecutionArn      string                              `gorm:"type:text" json:"executionArn"`
	Version           string                              `gorm:"type:text;not null" json:"version"`
	VersionTag        string                              `gorm:"type:text;not null;index" json:"versionTag"`
	Operator          string                              `gorm:"type:text" json:"operator"`
	Deleted           bool                                `gorm:"not null;default:false;index" json:"deleted"`
	CreateAt          int64                               `gorm:"not null" json:"createAt"`
	UpdateAt          int64                               `gorm:"not null" json:"updateAt"`
}

// TableName returns the table name for Pipeline
func (Pipeline) TableName() string {
	return "pipelines"
}

// BeforeCreate fills in the derived key columns and creation stamps
func (p *Pipeline) BeforeCreate(tx *gorm.DB) error {
	if p.Prefix == "" {
		p.Prefix = PipelinePrefix
	}
	if p.VersionTag == "" {
		p.VersionTag = LatestVersionTag
	}
	if p.Type == "" {
		p.Type = PipelineType(p.PipelineID, p.VersionTag)
	}
	now := time.Now().UnixMilli()
	if p.CreateAt == 0 {
		p.CreateAt = now
	}
	if p.UpdateAt == 0 {
		p.UpdateAt = now
	}
	return nil
}

// PipelineType builds the type discriminator "PIPELINE#<pipelineId>#<versionTag>".
func PipelineType(pipelineID, versionTag string) string {
	return fmt.Sprintf("%s#%s#%s", PipelinePrefix, pipelineID, versionTag)
}

// PipelineTypePrefix matches every row, live or historical, of one pipeline.
func PipelineTypePrefix(pipelineID string) string {
	return fmt.Sprintf("%s#%s#", PipelinePrefix, pipelineID)
}

// IsLatest reports whether the row is the live record.
func (p *Pipeline) IsLatest() bool {
	return p.VersionTag == LatestVersionTag && strings.HasSuffix(p.Type, "#"+LatestVersionTag)
}

// NormalizeSinks clears the sink blocks sinkType does not select. An unknown
// sink type leaves every block in place.
func (p *Pipeline) NormalizeSinks() {
	server := p.IngestionServer.Data()
	switch server.SinkType {
	case SinkTypeS3:
		server.SinkKafka, server.SinkKinesis = nil, nil
	case SinkTypeKafka:
		server.SinkS3, server.SinkKinesis = nil, nil
	case SinkTypeKinesis:
		server.SinkS3, server.SinkKafka = nil, nil
	default:
		return
	}
	p.IngestionServer = datatypes.NewJSONType(server)
}

// S3Bucket names a bucket and key prefix.
type S3Bucket struct {
	Name   string `json:"name"`
	Prefix string `json:"prefix"`
}

// Network describes where the ingestion fleet runs.
type Network struct {
	VpcID            string   `json:"vpcId"`
	PublicSubnetIDs  []string `json:"publicSubnetIds"`
	PrivateSubnetIDs []string `json:"privateSubnetIds"`
}

// IngestionServer holds the ingestion fleet configuration. SinkType selects which
// of SinkS3, SinkKafka and SinkKinesis is authoritative.
type IngestionServer struct {
	Network      Network      `json:"network"`
	Size         ServerSize   `json:"size"`
	Domain       *Domain      `json:"domain,omitempty"`
	LoadBalancer LoadBalancer `json:"loadBalancer"`
	SinkType     SinkType     `json:"sinkType"`
	SinkBatch    *SinkBatch   `json:"sinkBatch,omitempty"`
	SinkS3       *SinkS3      `json:"sinkS3,omitempty"`
	SinkKafka    *SinkKafka   `json:"sinkKafka,omitempty"`
	SinkKinesis  *SinkKinesis `json:"sinkKinesis,omitempty"`
}

// ServerSize bounds the ingestion fleet autoscaling group.
type ServerSize struct {
	ServerMin                    int `json:"serverMin"`
	ServerMax                    int `json:"serverMax"`
	WarmPoolSize                 int `json:"warmPoolSize"`
	ScaleOnCPUUtilizationPercent int `json:"scaleOnCpuUtilizationPercent"`
}

// Domain is the custom DNS name of the ingestion endpoint.
type Domain struct {
	HostedZoneID   string `json:"hostedZoneId"`
	HostedZoneName string `json:"hostedZoneName"`
	RecordName     string `json:"recordName"`
}

// LoadBalancer configures the public endpoint of the ingestion fleet.
type LoadBalancer struct {
	ServerEndpointPath                     string    `json:"serverEndpointPath"`
	ServerCorsOrigin                       string    `json:"serverCorsOrigin"`
	Protocol                               string    `json:"protocol"`
	EnableApplicationLoadBalancerAccessLog bool      `json:"enableApplicationLoadBalancerAccessLog"`
	LogS3Bucket                            *S3Bucket `json:"logS3Bucket,omitempty"`
	NotificationsTopicArn                  string    `json:"notificationsTopicArn"`
}

// SinkBatch controls how the sink batches records.
type SinkBatch struct {
	Size            int `json:"size"`
	IntervalSeconds int `json:"intervalSeconds"`
}

// SinkS3 buffers events straight into object storage.
type SinkS3 struct {
	SinkBucket      S3Bucket `json:"sinkBucket"`
	S3BatchMaxBytes int      `json:"s3BatchMaxBytes"`
	S3BatchTimeout  int      `json:"s3BatchTimeout"`
}

// SinkKafka buffers events into a managed or self hosted Kafka cluster.
type SinkKafka struct {
	SelfHost       bool            `json:"selfHost"`
	Brokers        []string        `json:"brokers"`
	Topic          string          `json:"topic"`
	MskCluster     *MskCluster     `json:"mskCluster,omitempty"`
	KafkaConnector *KafkaConnector `json:"kafkaConnector,omitempty"`
}

// MskCluster references a managed Kafka cluster.
type MskCluster struct {
	Name            string `json:"name"`
	Arn             string `json:"arn"`
	SecurityGroupID string `json:"securityGroupId"`
}

// KafkaConnector sinks Kafka topics into object storage.
type KafkaConnector struct {
	SinkBucket *S3Bucket `json:"sinkBucket,omitempty"`
}

// KinesisStreamMode is the capacity mode of a Kinesis data stream.
type KinesisStreamMode string

const (
	KinesisStreamModeOnDemand    KinesisStreamMode = "ON_DEMAND"
	KinesisStreamModeProvisioned KinesisStreamMode = "PROVISIONED"
)

// SinkKinesis buffers events into a Kinesis data stream.
type SinkKinesis struct {
	KinesisStreamMode KinesisStreamMode `json:"kinesisStreamMode"`
	KinesisShardCount int               `json:"kinesisShardCount"`
	SinkBucket        S3Bucket          `json:"sinkBucket"`
}

// ETL configures the data processing jobs.
type ETL struct {
	AppIDs              []string `json:"appIds"`
	SourceS3Bucket      S3Bucket `json:"sourceS3Bucket"`
	SinkS3Bucket        S3Bucket `json:"sinkS3Bucket"`
	DataFreshnessInHour int      `json:"dataFreshnessInHour,omitempty"`
	ScheduleExpression  string   `json:"scheduleExpression,omitempty"`
	PluginIDs           []string `json:"pluginIds,omitempty"`
}

// DataModel configures the analytics warehouse.
type DataModel struct {
	Redshift *Redshift `json:"redshift,omitempty"`
	Athena   bool      `json:"athena"`
}

// Redshift selects a serverless workgroup or a provisioned cluster.
type Redshift struct {
	Serverless  *RedshiftServerless  `json:"serverless,omitempty"`
	Provisioned *RedshiftProvisioned `json:"provisioned,omitempty"`
}

// RedshiftServerless references a serverless workgroup.
type RedshiftServerless struct {
	WorkgroupName string `json:"workgroupName"`
}

// RedshiftProvisioned references a provisioned cluster.
type RedshiftProvisioned struct {
	ClusterIdentifier string `json:"clusterIdentifier"`
	DBUser            string `json:"dbUser"`
}
