package config

import (
	"time"

	"github.com/xkayo32/pydevbot/analytics"
)

type StorageType string

const STORAGE_TYPE_REDIS StorageType = "redis"
const STORAGE_TYPE_INMEM StorageType = "memory"

type RetryPolicy string

const RETRY_POLICY_FIXED RetryPolicy = "FIXED"
const RETRY_POLICY_BACKOFF RetryPolicy = "BACKOFF"

type Config struct {
	HttpPort           int
	StorageType        StorageType
	RedisConfig        RedisStorageConfig
	Webhook            WebhookConfig
	SessionIdleTimeout time.Duration
	IdleCheckInterval  time.Duration
	RetryPollInterval  time.Duration
	MaxStepsPerAdvance int
	DispatcherCapacity int
	AnalyticsConfig    analytics.DataCollectorConfig
}

type RedisStorageConfig struct {
	Addrs     []string
	Namespace string
}

type WebhookConfig struct {
	Timeout       time.Duration
	RetryDelay    time.Duration
	RetryPolicy   RetryPolicy
	MaxRetries    int
	SkipTLSVerify bool
}
