/*
Copyright 2024 The Aibrix Team.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package events publishes endpoint lifecycle events (load, unload,
// ready, failed) to a Kafka topic for external autoscalers and
// observers. Publishing is fire-and-forget: a down or misconfigured
// broker never blocks or fails a load/unload call, it only means
// external observers miss an event.
package events

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
	"github.com/rs/zerolog"
)

// Kind is the closed set of endpoint lifecycle events published.
type Kind string

const (
	KindLoad   Kind = "load"
	KindUnload Kind = "unload"
	KindReady  Kind = "ready"
	KindFailed Kind = "failed"
)

// Event is the JSON payload published for every lifecycle transition.
type Event struct {
	Kind      Kind      `json:"kind"`
	Endpoint  string    `json:"endpoint"`
	WorkerKind string   `json:"worker_kind"`
	Reason    string    `json:"reason,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Publisher produces Event records to a Kafka topic. A nil *Publisher
// is safe to call Publish on, so callers can wire events unconditionally
// and simply not construct one when no broker is configured.
type Publisher struct {
	producer *kafka.Producer
	topic    string
	logger   zerolog.Logger
}

// NewPublisher connects to brokers (a comma-separated bootstrap.servers
// list) and prepares to publish onto topic.
func NewPublisher(brokers, topic string, logger zerolog.Logger) (*Publisher, error) {
	p, err := kafka.NewProducer(&kafka.ConfigMap{
		"bootstrap.servers": brokers,
		"client.id":         "inferd",
	})
	if err != nil {
		return nil, fmt.Errorf("events: failed to create kafka producer: %w", err)
	}

	pub := &Publisher{producer: p, topic: topic, logger: logger}
	go pub.drainDeliveryReports()
	return pub, nil
}

func (p *Publisher) drainDeliveryReports() {
	for e := range p.producer.Events() {
		msg, ok := e.(*kafka.Message)
		if !ok {
			continue
		}
		if msg.TopicPartition.Error != nil {
			p.logger.Warn().Err(msg.TopicPartition.Error).Str("topic", p.topic).Msg("events: delivery failed")
		}
	}
}

// Close flushes any pending deliveries (up to timeoutMs) and releases
// the underlying producer.
func (p *Publisher) Close(timeoutMs int) {
	if p == nil {
		return
	}
	p.producer.Flush(timeoutMs)
	p.producer.Close()
}

// Publish sends ev to the configured topic, logging (rather than
// returning) any produce-time error, since lifecycle events are
// observability, not a required part of load/unload's contract.
func (p *Publisher) Publish(ev Event) {
	if p == nil {
		return
	}
	ev.Timestamp = ev.Timestamp.UTC()
	payload, err := json.Marshal(ev)
	if err != nil {
		p.logger.Warn().Err(err).Msg("events: failed to marshal event")
		return
	}

	topic := p.topic
	err = p.producer.Produce(&kafka.Message{
		TopicPartition: kafka.TopicPartition{Topic: &topic, Partition: kafka.PartitionAny},
		Key:            []byte(ev.Endpoint),
		Value:          payload,
	}, nil)
	if err != nil {
		p.logger.Warn().Err(err).Str("endpoint", ev.Endpoint).Msg("events: produce failed")
	}
}

// Load, Unload, Ready and Failed are convenience wrappers around
// Publish for each lifecycle Kind.
func (p *Publisher) Load(endpoint, workerKind string) {
	p.Publish(Event{Kind: KindLoad, Endpoint: endpoint, WorkerKind: workerKind, Timestamp: time.Now()})
}

func (p *Publisher) Unload(endpoint, workerKind string) {
	p.Publish(Event{Kind: KindUnload, Endpoint: endpoint, WorkerKind: workerKind, Timestamp: time.Now()})
}

func (p *Publisher) Ready(endpoint, workerKind string) {
	p.Publish(Event{Kind: KindReady, Endpoint: endpoint, WorkerKind: workerKind, Timestamp: time.Now()})
}

func (p *Publisher) Failed(endpoint, workerKind, reason string) {
	p.Publish(Event{Kind: KindFailed, Endpoint: endpoint, WorkerKind: workerKind, Reason: reason, Timestamp: time.Now()})
}
