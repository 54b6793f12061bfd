// Package db provides the relational database and the Redis client used for session memory
package db

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"codesherpa/internal/logging"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// RedisConfig holds Redis connection configuration
type RedisConfig struct {
	URL string // redis://host:port/db or rediss://host:port/db for TLS

	// Connection pool settings
	PoolSize     int
	MinIdleConns int
	PoolTimeout  time.Duration
	IdleTimeout  time.Duration

	// Timeouts
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	// Sentinel configuration (for high availability)
	SentinelAddrs  []string
	SentinelMaster string

	HealthCheckInterval time.Duration
}

// DefaultRedisConfig returns sensible defaults for Redis configuration
func DefaultRedisConfig() *RedisConfig {
	return &RedisConfig{
		URL:                 "redis://localhost:6379/0",
		PoolSize:            50,
		MinIdleConns:        5,
		PoolTimeout:         4 * time.Second,
		IdleTimeout:         5 * time.Minute,
		DialTimeout:         3 * time.Second,
		ReadTimeout:         2 * time.Second,
		WriteTimeout:        2 * time.Second,
		HealthCheckInterval: 30 * time.Second,
	}
}

// RedisConfigFromURL creates Redis config for url, reading optional pool and sentinel settings from the environment
func RedisConfigFromURL(url string) *RedisConfig {
	config := DefaultRedisConfig()
	if url != "" {
		config.URL = url
	}

	if poolSize := os.Getenv("REDIS_POOL_SIZE"); poolSize != "" {
		if ps, err := strconv.Atoi(poolSize); err == nil {
			config.PoolSize = ps
		}
	}
	if sentinelAddrs := os.Getenv("REDIS_SENTINEL_ADDRS"); sentinelAddrs != "" {
		config.SentinelAddrs = strings.Split(sentinelAddrs, ",")
	}
	config.SentinelMaster = os.Getenv("REDIS_SENTINEL_MASTER")

	return config
}

// RedisClient wraps the go-redis client with health checks
type RedisClient struct {
	client      redis.UniversalClient
	isSentinel  bool
	config      *RedisConfig
	healthCheck chan struct{}
	log         *zap.Logger
}

// NewRedisClient connects to Redis and verifies the connection with a ping
func NewRedisClient(ctx context.Context, config *RedisConfig) (*RedisClient, error) {
	if config == nil {
		config = DefaultRedisConfig()
	}

	rc := &RedisClient{
		config:      config,
		healthCheck: make(chan struct{}),
		log:         logging.Named("redis"),
	}

	if len(config.SentinelAddrs) > 0 && config.SentinelMaster != "" {
		rc.client = rc.createSentinelClient(config)
		rc.isSentinel = true
	} else {
		client, err := rc.createStandardClient(config)
		if err != nil {
			return nil, err
		}
		rc.client = client
	}

	pingCtx, cancel := context.WithTimeout(ctx, config.DialTimeout+time.Second)
	defer cancel()

	if err := rc.client.Ping(pingCtx).Err(); err != nil {
		_ = rc.client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	if config.HealthCheckInterval > 0 {
		go rc.runHealthCheck()
	}

	rc.log.Info("redis client connected", zap.Bool("sentinel", rc.isSentinel))
	return rc, nil
}

func (rc *RedisClient) createStandardClient(config *RedisConfig) (redis.UniversalClient, error) {
	opts, err := redis.ParseURL(config.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid Redis URL: %w", err)
	}
	opts.PoolSize = config.PoolSize
	opts.MinIdleConns = config.MinIdleConns
	opts.PoolTimeout = config.PoolTimeout
	opts.IdleTimeout = config.IdleTimeout
	opts.DialTimeout = config.DialTimeout
	opts.ReadTimeout = config.ReadTimeout
	opts.WriteTimeout = config.WriteTimeout

	return redis.NewClient(opts), nil
}

func (rc *RedisClient) createSentinelClient(config *RedisConfig) redis.UniversalClient {
	opts := &redis.FailoverOptions{
		MasterName:    config.SentinelMaster,
		SentinelAddrs: config.SentinelAddrs,
		PoolSize:      config.PoolSize,
		MinIdleConns:  config.MinIdleConns,
		PoolTimeout:   config.PoolTimeout,
		IdleTimeout:   config.IdleTimeout,
		DialTimeout:   config.DialTimeout,
		ReadTimeout:   config.ReadTimeout,
		WriteTimeout:  config.WriteTimeout,
	}
	if parsed, err := redis.ParseURL(config.URL); err == nil {
		opts.Password = parsed.Password
		opts.DB = parsed.DB
	}
	return redis.NewFailoverClient(opts)
}

// runHealthCheck periodically checks Redis connection health
func (rc *RedisClient) runHealthCheck() {
	ticker := time.NewTicker(rc.config.HealthCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			if err := rc.client.Ping(ctx).Err(); err != nil {
				rc.log.Warn("redis health check failed", zap.Error(err))
			}
			cancel()
		case <-rc.healthCheck:
			return
		}
	}
}

// Client returns the underlying Redis client
func (rc *RedisClient) Client() redis.UniversalClient {
	return rc.client
}

// Ping tests the Redis connection
func (rc *RedisClient) Ping(ctx context.Context) error {
	return rc.client.Ping(ctx).Err()
}

// Health returns a detailed health status
func (rc *RedisClient) Health(ctx context.Context) map[string]interface{} {
	status := map[string]interface{}{
		"connected": false,
		"type":      "standard",
	}
	if rc.isSentinel {
		status["type"] = "sentinel"
	}

	start := time.Now()
	if err := rc.client.Ping(ctx).Err(); err != nil {
		status["error"] = err.Error()
		return status
	}

	status["connected"] = true
	status["latency"] = time.Since(start).String()

	stats := rc.client.PoolStats()
	status["pool"] = map[string]interface{}{
		"hits":        stats.Hits,
		"misses":      stats.Misses,
		"timeouts":    stats.Timeouts,
		"total_conns": stats.TotalConns,
		"idle_conns":  stats.IdleConns,
	}

	return status
}

// Close stops the health loop and closes the connection
func (rc *RedisClient) Close() error {
	close(rc.healthCheck)
	return rc.client.Close()
}
