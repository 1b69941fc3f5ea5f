package cache

import "time"

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	Host         string
	Port         int
	Password     string
	DB           int
	PoolSize     int
	PoolTimeout  time.Duration
	MinIdleConns int
	Prefix       string
}

// RedisOption configures a RedisCache.
type RedisOption func(*RedisConfig)

func WithRedisHost(host string) RedisOption { return func(c *RedisConfig) { c.Host = host } }

func WithRedisPort(port int) RedisOption { return func(c *RedisConfig) { c.Port = port } }

func WithRedisPassword(pw string) RedisOption { return func(c *RedisConfig) { c.Password = pw } }

func WithRedisDB(db int) RedisOption { return func(c *RedisConfig) { c.DB = db } }

// WithRedisPrefix namespaces every key written by the cache.
func WithRedisPrefix(prefix string) RedisOption { return func(c *RedisConfig) { c.Prefix = prefix } }

// MemoryConfig bounds the in-process cache.
type MemoryConfig struct {
	MaxSize int // 0 is unbounded
}

// MemoryOption configures a MemoryCache.
type MemoryOption func(*MemoryConfig)

// WithMemoryMaxSize caps the number of entries; the least recently used is evicted first.
func WithMemoryMaxSize(size int) MemoryOption { return func(c *MemoryConfig) { c.MaxSize = size } }

// LayeredConfig sizes the in-memory layer of a LayeredCache.
type LayeredConfig struct {
	MemoryMaxSize int
}

// LayeredOption configures a LayeredCache.
type LayeredOption func(*LayeredConfig)

func WithLayeredMemorySize(size int) LayeredOption {
	return func(c *LayeredConfig) { c.MemoryMaxSize = size }
}
