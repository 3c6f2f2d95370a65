// Copyright (C) 2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package cloud

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/kafka"
)

// mskBrokerPort is the plaintext listener of managed Kafka brokers.
const mskBrokerPort = 9092

// MSKBrokerResolver lists the broker endpoints of managed Kafka clusters.
type MSKBrokerResolver struct {
	client func(region string) KafkaAPI
}

// NewMSKBrokerResolver creates a resolver over region scoped clients.
func NewMSKBrokerResolver(clients *Clients) *MSKBrokerResolver {
	return &MSKBrokerResolver{client: clients.Kafka}
}

// NewMSKBrokerResolverWithClient creates a resolver that uses one client for every region.
func NewMSKBrokerResolverWithClient(client KafkaAPI) *MSKBrokerResolver {
	return &MSKBrokerResolver{client: func(string) KafkaAPI { return client }}
}

// ResolveBrokers returns "<endpoint>:9092" for every endpoint of every broker
// node of the cluster, in the order the API reports them.
func (r *MSKBrokerResolver) ResolveBrokers(ctx context.Context, region, clusterArn string) ([]string, error) {
	paginator := kafka.NewListNodesPaginator(r.client(region), &kafka.ListNodesInput{
		ClusterArn: aws.String(clusterArn),
	})

	var brokers []string
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list nodes of %s: %w", clusterArn, err)
		}
		for _, node := range page.NodeInfoList {
			if node.BrokerNodeInfo == nil {
				continue
			}
			for _, endpoint := range node.BrokerNodeInfo.Endpoints {
				brokers = append(brokers, fmt.Sprintf("%s:%d", endpoint, mskBrokerPort))
			}
		}
	}

	getCloudLog().Debug().Str("cluster", clusterArn).Int("brokers", len(brokers)).Msg("Resolved MSK brokers")
	return brokers, nil
}
