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

// Package config loads inferd's server configuration from an optional
// YAML or TOML file plus environment-variable overrides, via viper, the
// same file-then-env layering app_configs_builder.go's InitConfig uses.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/spf13/viper"
)

// Config is the full set of knobs cmd/inferd reads through Load.
// Every field has an environment-variable override bound in Load, so a
// containerized deployment never needs a file on disk at all.
type Config struct {
	AdminAddr string `mapstructure:"admin_addr" toml:"admin_addr"`
	GRPCAddr  string `mapstructure:"grpc_addr" toml:"grpc_addr"`

	RepositoryPath   string        `mapstructure:"repository_path" toml:"repository_path"`
	RepositoryPoll   time.Duration `mapstructure:"repository_poll" toml:"repository_poll"`
	RepositorySettle time.Duration `mapstructure:"repository_settle" toml:"repository_settle"`

	AllocatorPinnedBytes int64         `mapstructure:"allocator_pinned_bytes" toml:"allocator_pinned_bytes"`
	BatchDefaultSize     int           `mapstructure:"batch_default_size" toml:"batch_default_size"`
	BatchDefaultTimeout  time.Duration `mapstructure:"batch_default_timeout" toml:"batch_default_timeout"`

	HARedisAddr string `mapstructure:"ha_redis_addr" toml:"ha_redis_addr"`

	AuditCassandraHosts    []string `mapstructure:"audit_cassandra_hosts" toml:"audit_cassandra_hosts"`
	AuditCassandraKeyspace string   `mapstructure:"audit_cassandra_keyspace" toml:"audit_cassandra_keyspace"`

	EventsKafkaBrokers string `mapstructure:"events_kafka_brokers" toml:"events_kafka_brokers"`
	EventsKafkaTopic   string `mapstructure:"events_kafka_topic" toml:"events_kafka_topic"`

	MetricsStatsdAddr   string  `mapstructure:"metrics_statsd_addr" toml:"metrics_statsd_addr"`
	MetricsSamplingRate float64 `mapstructure:"metrics_sampling_rate" toml:"metrics_sampling_rate"`

	K8sRepositoryEnabled bool   `mapstructure:"k8s_repository_enabled" toml:"k8s_repository_enabled"`
	K8sNamespace         string `mapstructure:"k8s_namespace" toml:"k8s_namespace"`
}

// Defaults mirrors the zero-config behavior: a stand-alone inferd
// process pointed at a local model directory with no HA/audit/events
// backends attached.
func Defaults() Config {
	return Config{
		AdminAddr:           ":8000",
		GRPCAddr:            ":8001",
		RepositoryPath:      "./models",
		RepositoryPoll:      2 * time.Second,
		RepositorySettle:    1 * time.Second,
		BatchDefaultSize:    8,
		BatchDefaultTimeout: 50 * time.Millisecond,
		MetricsSamplingRate: 1.0,
	}
}

// Load reads file (if non-empty; viper picks YAML vs TOML from its
// extension) over Defaults(), then applies INFERD_-prefixed
// environment overrides.
func Load(file string) (Config, error) {
	cfg := Defaults()

	v := viper.New()
	v.SetEnvPrefix("inferd")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindEnvVars(v)

	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return cfg, err
		}
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, err
	}

	// INFERD_CONFIG_INLINE_TOML overrides whatever file/env produced
	// above, for orchestrators that inject configuration as a single
	// environment value rather than mounting a file.
	if inline := os.Getenv("INFERD_CONFIG_INLINE_TOML"); inline != "" {
		if _, err := toml.Decode(inline, &cfg); err != nil {
			return cfg, fmt.Errorf("config: inline toml override: %w", err)
		}
	}
	return cfg, nil
}

func bindEnvVars(v *viper.Viper) {
	_ = v.BindEnv("admin_addr", "INFERD_ADMIN_ADDR")
	_ = v.BindEnv("grpc_addr", "INFERD_GRPC_ADDR")
	_ = v.BindEnv("repository_path", "INFERD_REPOSITORY_PATH")
	_ = v.BindEnv("repository_poll", "INFERD_REPOSITORY_POLL")
	_ = v.BindEnv("repository_settle", "INFERD_REPOSITORY_SETTLE")
	_ = v.BindEnv("allocator_pinned_bytes", "INFERD_ALLOCATOR_PINNED_BYTES")
	_ = v.BindEnv("batch_default_size", "INFERD_BATCH_DEFAULT_SIZE")
	_ = v.BindEnv("batch_default_timeout", "INFERD_BATCH_DEFAULT_TIMEOUT")
	_ = v.BindEnv("ha_redis_addr", "INFERD_HA_REDIS_ADDR")
	_ = v.BindEnv("audit_cassandra_hosts", "INFERD_AUDIT_CASSANDRA_HOSTS")
	_ = v.BindEnv("audit_cassandra_keyspace", "INFERD_AUDIT_CASSANDRA_KEYSPACE")
	_ = v.BindEnv("events_kafka_brokers", "INFERD_EVENTS_KAFKA_BROKERS")
	_ = v.BindEnv("events_kafka_topic", "INFERD_EVENTS_KAFKA_TOPIC")
	_ = v.BindEnv("metrics_statsd_addr", "INFERD_METRICS_STATSD_ADDR")
	_ = v.BindEnv("metrics_sampling_rate", "INFERD_METRICS_SAMPLING_RATE")
	_ = v.BindEnv("k8s_repository_enabled", "INFERD_K8S_REPOSITORY_ENABLED")
	_ = v.BindEnv("k8s_namespace", "INFERD_K8S_NAMESPACE")
}
