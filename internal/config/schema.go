package config

import "time"

// Config is the service configuration.
type Config struct {
	LogLevel  string
	Server    ServerConf
	Engine    EngineConf
	Routers   RoutersConf
	Cache     CacheConf
	Kafka     KafkaConf
	Transform TransformConf
	Backends  []BackendConf

	// Enterprises maps a username to its enterprise customer uuid.
	Enterprises map[string]string
}

// ServerConf configures the HTTP API.
type ServerConf struct {
	Addr         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	MaxBatchSize int
}

// EngineConf holds tunable concurrency settings.
type EngineConf struct {
	EventWorkers   int
	QueueDepth     int
	EventTimeoutMs int
	SendTimeoutMs  int
}

// RoutersConf selects where router configurations come from.
type RoutersConf struct {
	// Source is "file" or "sql".
	Source      string
	File        string
	Watch       bool
	DatabaseURL string
}

// CacheConf configures the router configuration cache. An empty RedisAddrs
// keeps the cache in process memory only.
type CacheConf struct {
	TTL           time.Duration
	NegativeTTL   time.Duration
	MaxEntries    int
	RedisAddrs    string
	RedisPassword string
	RedisDB       int
	RedisPrefix   string
}

// KafkaConf enables the KAFKA routing strategy when Brokers is set.
type KafkaConf struct {
	Brokers  []string
	ClientID string
}

// TransformConf holds values shared by the transformer catalogs.
type TransformConf struct {
	LMSRoot         string
	AnonymousSecret string
}

// BackendConf describes one output backend and its router processors.
type BackendConf struct {
	Name   string `mapstructure:"name"`
	Family string `mapstructure:"family"`
	// SensorID wraps Caliper events in a sensor envelope when set.
	SensorID string `mapstructure:"sensor_id"`
	// WrapKey nests the event under this key when set.
	WrapKey string `mapstructure:"wrap_key"`
	// Filter is a condition expression a transformed event must satisfy.
	Filter string `mapstructure:"filter"`
	// Enterprise enables enterprise attribution of the raw event.
	Enterprise bool `mapstructure:"enterprise"`
}
