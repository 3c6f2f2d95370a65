// Copyright (C) 2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package services

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/samber/lo"

	"github.com/noldarim/clickstream/internal/orchestrator/models"
)

// ManagedTagProjectID is stamped on every stack of a pipeline.
const ManagedTagProjectID = "ClickstreamProjectId"

// PlanBuilder turns a pipeline configuration into the ordered stack plan the
// provisioning workflow executes.
type PlanBuilder struct {
	stackPrefix string
	brokers     BrokerResolver
}

// NewPlanBuilder creates a builder. brokers may be nil when no managed Kafka
// lookups are possible; explicit brokers are then required.
func NewPlanBuilder(stackPrefix string, brokers BrokerResolver) *PlanBuilder {
	return &PlanBuilder{stackPrefix: stackPrefix, brokers: brokers}
}

// StackName returns "<prefix>-<kind>-<pipelineId>".
func (b *PlanBuilder) StackName(kind models.StackKind, pipelineID string) string {
	return fmt.Sprintf("%s-%s-%s", b.stackPrefix, kind, pipelineID)
}

// Build returns the full plan for p with every step set to Create. Stacks are
// ordered Ingestion, KafkaConnector, ETL, DataModeling; optional stacks are
// left out when the pipeline does not configure them.
func (b *PlanBuilder) Build(ctx context.Context, p *models.Pipeline, templates Templates) (*models.StackPlan, error) {
	server := p.IngestionServer.Data()
	tags := b.stackTags(p)

	ingestion, err := b.ingestionStep(ctx, p, &server, templates)
	if err != nil {
		return nil, err
	}
	ingestion.Tags = tags
	steps := []models.StackStep{ingestion}

	if server.SinkType == models.SinkTypeKafka && server.SinkKafka != nil &&
		server.SinkKafka.KafkaConnector != nil && server.SinkKafka.KafkaConnector.SinkBucket != nil {
		url, err := templates.URL(TemplateKafkaConnector)
		if err != nil {
			return nil, err
		}
		connector := server.SinkKafka.KafkaConnector
		params := map[string]string{
			"ProjectId":        p.ProjectID,
			"KafkaBrokers":     ingestion.Parameters["KafkaBrokers"],
			"KafkaTopic":       server.SinkKafka.Topic,
			"SecurityGroupId":  mskSecurityGroup(server.SinkKafka),
			"SubnetIds":        strings.Join(server.Network.PrivateSubnetIDs, ","),
			"DataS3Bucket":     connector.SinkBucket.Name,
			"DataS3Prefix":     connector.SinkBucket.Prefix,
			"MskClusterName":   mskClusterName(server.SinkKafka),
			"PipelineS3Bucket": p.Bucket.Data().Name,
		}
		steps = append(steps, b.step(models.StackKindKafkaConnector, p.PipelineID, url, params, tags))
	}

	if etl := p.ETL.Data(); etl != nil {
		url, err := templates.URL(TemplateETL)
		if err != nil {
			return nil, err
		}
		params := map[string]string{
			"ProjectId":                      p.ProjectID,
			"AppIds":                         strings.Join(etl.AppIDs, ","),
			"VpcId":                          server.Network.VpcID,
			"PrivateSubnetIds":               strings.Join(server.Network.PrivateSubnetIDs, ","),
			"SourceS3Bucket":                 etl.SourceS3Bucket.Name,
			"SourceS3Prefix":                 etl.SourceS3Bucket.Prefix,
			"SinkS3Bucket":                   etl.SinkS3Bucket.Name,
			"SinkS3Prefix":                   etl.SinkS3Bucket.Prefix,
			"DataFreshnessInHour":            strconv.Itoa(etl.DataFreshnessInHour),
			"ScheduleExpression":             etl.ScheduleExpression,
			"TransformerAndEnrichClassNames": strings.Join(etl.PluginIDs, ","),
		}
		steps = append(steps, b.step(models.StackKindETL, p.PipelineID, url, params, tags))
	}

	if dm := p.DataModel.Data(); dm != nil && (dm.Redshift != nil || dm.Athena) {
		url, err := templates.URL(TemplateDataModeling)
		if err != nil {
			return nil, err
		}
		params := map[string]string{
			"ProjectId":    p.ProjectID,
			"AppIds":       strings.Join(p.AppIDs, ","),
			"EnableAthena": strconv.FormatBool(dm.Athena),
		}
		if etl := p.ETL.Data(); etl != nil {
			params["ODSEventBucket"] = etl.SinkS3Bucket.Name
			params["ODSEventPrefix"] = etl.SinkS3Bucket.Prefix
		}
		if rs := dm.Redshift; rs != nil {
			if rs.Serverless != nil {
				params["RedshiftServerlessWorkgroupName"] = rs.Serverless.WorkgroupName
			}
			if rs.Provisioned != nil {
				params["RedshiftClusterIdentifier"] = rs.Provisioned.ClusterIdentifier
				params["RedshiftDbUser"] = rs.Provisioned.DBUser
			}
		}
		steps = append(steps, b.step(models.StackKindDataModeling, p.PipelineID, url, params, tags))
	}

	return &models.StackPlan{Region: p.Region, Steps: steps}, nil
}

func (b *PlanBuilder) ingestionStep(ctx context.Context, p *models.Pipeline, server *models.IngestionServer, templates Templates) (models.StackStep, error) {
	params := map[string]string{
		"ProjectId":                              p.ProjectID,
		"AppIds":                                 strings.Join(p.AppIDs, ","),
		"VpcId":                                  server.Network.VpcID,
		"PublicSubnetIds":                        strings.Join(server.Network.PublicSubnetIDs, ","),
		"PrivateSubnetIds":                       strings.Join(server.Network.PrivateSubnetIDs, ","),
		"ServerMin":                              strconv.Itoa(server.Size.ServerMin),
		"ServerMax":                              strconv.Itoa(server.Size.ServerMax),
		"WarmPoolSize":                           strconv.Itoa(server.Size.WarmPoolSize),
		"ScaleOnCpuUtilizationPercent":           strconv.Itoa(server.Size.ScaleOnCPUUtilizationPercent),
		"ServerEndpointPath":                     server.LoadBalancer.ServerEndpointPath,
		"ServerCorsOrigin":                       server.LoadBalancer.ServerCorsOrigin,
		"Protocol":                               server.LoadBalancer.Protocol,
		"EnableApplicationLoadBalancerAccessLog": strconv.FormatBool(server.LoadBalancer.EnableApplicationLoadBalancerAccessLog),
		"NotificationsTopicArn":                  server.LoadBalancer.NotificationsTopicArn,
	}
	if lb := server.LoadBalancer.LogS3Bucket; lb != nil {
		params["LogS3Bucket"] = lb.Name
		params["LogS3Prefix"] = lb.Prefix
	}
	if d := server.Domain; d != nil {
		params["HostedZoneId"] = d.HostedZoneID
		params["ZoneName"] = d.HostedZoneName
		params["RecordName"] = d.RecordName
	}
	if sb := server.SinkBatch; sb != nil {
		params["SinkBatchSize"] = strconv.Itoa(sb.Size)
		params["SinkBatchIntervalSeconds"] = strconv.Itoa(sb.IntervalSeconds)
	}

	var key string
	switch server.SinkType {
	case models.SinkTypeS3:
		key = TemplateIngestionS3
		if s3 := server.SinkS3; s3 != nil {
			params["S3DataBucket"] = s3.SinkBucket.Name
			params["S3DataPrefix"] = s3.SinkBucket.Prefix
			params["S3BatchMaxBytes"] = strconv.Itoa(s3.S3BatchMaxBytes)
			params["S3BatchTimeout"] = strconv.Itoa(s3.S3BatchTimeout)
		}

	case models.SinkTypeKafka:
		key = TemplateIngestionKafka
		if kafka := server.SinkKafka; kafka != nil {
			brokers, err := b.kafkaBrokers(ctx, p.Region, kafka)
			if err != nil {
				return models.StackStep{}, err
			}
			params["KafkaBrokers"] = strings.Join(brokers, ",")
			params["KafkaTopic"] = kafka.Topic
			params["MskClusterName"] = mskClusterName(kafka)
			params["MskSecurityGroupId"] = mskSecurityGroup(kafka)
		}

	case models.SinkTypeKinesis:
		key = TemplateIngestionKinesis
		if kinesis := server.SinkKinesis; kinesis != nil {
			params["KinesisStreamMode"] = string(kinesis.KinesisStreamMode)
			params["KinesisShardCount"] = strconv.Itoa(kinesis.KinesisShardCount)
			params["KinesisDataS3Bucket"] = kinesis.SinkBucket.Name
			params["KinesisDataS3Prefix"] = kinesis.SinkBucket.Prefix
		}

	default:
		return models.StackStep{}, NewValidationError(LocationBody, "ingestionServer.sinkType", "Invalid sink type.", string(server.SinkType))
	}

	url, err := templates.URL(key)
	if err != nil {
		return models.StackStep{}, err
	}
	return b.step(models.StackKindIngestion, p.PipelineID, url, params, nil), nil
}

// kafkaBrokers returns explicit brokers, or the broker endpoints of the
// referenced managed cluster.
func (b *PlanBuilder) kafkaBrokers(ctx context.Context, region string, kafka *models.SinkKafka) ([]string, error) {
	if len(kafka.Brokers) > 0 || kafka.SelfHost {
		return kafka.Brokers, nil
	}
	if kafka.MskCluster == nil || kafka.MskCluster.Arn == "" {
		return nil, nil
	}
	if b.brokers == nil {
		return nil, fmt.Errorf("no broker resolver configured for cluster %s", kafka.MskCluster.Arn)
	}

	brokers, err := b.brokers.ResolveBrokers(ctx, region, kafka.MskCluster.Arn)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve brokers of %s: %w", kafka.MskCluster.Arn, err)
	}
	return brokers, nil
}

func (b *PlanBuilder) step(kind models.StackKind, pipelineID, url string, params, tags map[string]string) models.StackStep {
	return models.StackStep{
		Kind:        kind,
		StackName:   b.StackName(kind, pipelineID),
		Action:      models.StackActionCreate,
		TemplateURL: url,
		Parameters:  params,
		Tags:        tags,
	}
}

func (b *PlanBuilder) stackTags(p *models.Pipeline) map[string]string {
	tags := lo.SliceToMap(p.Tags, func(t models.Tag) (string, string) {
		return t.Key, t.Value
	})
	tags[ManagedTagProjectID] = p.ProjectID
	return tags
}

func mskClusterName(kafka *models.SinkKafka) string {
	if kafka.MskCluster == nil {
		return ""
	}
	return kafka.MskCluster.Name
}

func mskSecurityGroup(kafka *models.SinkKafka) string {
	if kafka.MskCluster == nil {
		return ""
	}
	return kafka.MskCluster.SecurityGroupID
}

// DiffPlan compares the desired plan with the one last submitted. Stacks that
// are new are created, stacks whose template or parameters changed are
// updated, and stacks no longer desired are deleted last in reverse order.
// Unchanged stacks are left out.
func DiffPlan(previous, next *models.StackPlan) *models.StackPlan {
	diff := &models.StackPlan{Region: next.Region, Steps: []models.StackStep{}}

	var prevSteps []models.StackStep
	if previous != nil {
		prevSteps = previous.Steps
	}
	byKind := lo.KeyBy(prevSteps, func(s models.StackStep) models.StackKind { return s.Kind })

	for _, step := range next.Steps {
		old, ok := byKind[step.Kind]
		switch {
		case !ok:
			step.Action = models.StackActionCreate
		case old.TemplateURL != step.TemplateURL || !mapsEqual(old.Parameters, step.Parameters) || !mapsEqual(old.Tags, step.Tags):
			step.Action = models.StackActionUpdate
		default:
			continue
		}
		diff.Steps = append(diff.Steps, step)
	}

	nextKinds := lo.SliceToMap(next.Steps, func(s models.StackStep) (models.StackKind, struct{}) {
		return s.Kind, struct{}{}
	})
	for i := len(prevSteps) - 1; i >= 0; i-- {
		step := prevSteps[i]
		if _, ok := nextKinds[step.Kind]; ok {
			continue
		}
		step.Action = models.StackActionDelete
		diff.Steps = append(diff.Steps, step)
	}

	return diff
}

// RedeployPlan resubmits every stack of next. It replaces DiffPlan when the
// last run failed: a failed run leaves the stored plan ahead of what was
// actually deployed, so nothing may be skipped as unchanged. Stacks the
// previous plan knew about are updated and new ones created; the deploy
// activity creates or updates as it finds them. Stacks no longer desired are
// still deleted last.
func RedeployPlan(previous, next *models.StackPlan) *models.StackPlan {
	diff := DiffPlan(previous, next)
	deletes := lo.Filter(diff.Steps, func(s models.StackStep, _ int) bool {
		return s.Action == models.StackActionDelete
	})

	known := map[models.StackKind]struct{}{}
	if previous != nil {
		known = lo.SliceToMap(previous.Steps, func(s models.StackStep) (models.StackKind, struct{}) {
			return s.Kind, struct{}{}
		})
	}

	redeploy := &models.StackPlan{Region: next.Region, Steps: make([]models.StackStep, 0, len(next.Steps)+len(deletes))}
	for _, step := range next.Steps {
		step.Action = models.StackActionCreate
		if _, ok := known[step.Kind]; ok {
			step.Action = models.StackActionUpdate
		}
		redeploy.Steps = append(redeploy.Steps, step)
	}
	redeploy.Steps = append(redeploy.Steps, deletes...)
	return redeploy
}

// TeardownPlan deletes every stack of plan in reverse order.
func TeardownPlan(plan *models.StackPlan) *models.StackPlan {
	if plan == nil {
		return &models.StackPlan{Steps: []models.StackStep{}}
	}
	steps := make([]models.StackStep, 0, len(plan.Steps))
	for i := len(plan.Steps) - 1; i >= 0; i-- {
		step := plan.Steps[i]
		step.Action = models.StackActionDelete
		steps = append(steps, step)
	}
	return &models.StackPlan{Region: plan.Region, Steps: steps}
}

func mapsEqual(a, b map[string]string) bool {
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		if bv, ok := b[k]; !ok || bv != v {
			return false
		}
	}
	return true
}
