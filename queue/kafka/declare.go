// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package kafka

import (
	"context"
	"errors"
	"fmt"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"
)

type topicCreator interface {
	CreateTopics(ctx context.Context, partitions int32, replicationFactor int16, configs map[string]*string, topics ...string) (kadm.CreateTopicResponses, error)
}

// Declarer creates topics. Topics are created with a single partition so
// that every message is consumed in publish order.
type Declarer struct {
	admin             topicCreator
	partitions        int32
	replicationFactor int16
}

// NewDeclarer returns a [Declarer] which uses client for admin requests.
func NewDeclarer(client *kgo.Client) *Declarer {
	return &Declarer{
		admin:             kadm.NewClient(client),
		partitions:        1,
		replicationFactor: 1,
	}
}

// Declare implements the [queue.Declarer] interface.
// A topic which already exists is left unchanged.
func (d *Declarer) Declare(ctx context.Context, name string) error {
	resps, err := d.admin.CreateTopics(ctx, d.partitions, d.replicationFactor, nil, name)
	if err != nil {
		return fmt.Errorf("kafka: declare topic %s: %w", name, err)
	}

	for _, resp := range resps {
		if resp.Err == nil || errors.Is(resp.Err, kerr.TopicAlreadyExists) {
			continue
		}
		return fmt.Errorf("kafka: declare topic %s: %w", name, resp.Err)
	}

	logger().InfoContext(ctx, "declared kafka topic", TopicAttr(name))
	return nil
}
