package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/gyaneshwarpardhi/eventrouter/internal/logging"
)

// EnvPrefix prefixes every environment override, e.g. ER_SERVER_ADDR.
const EnvPrefix = "ER"

// LoadEnv loads .env and .env.dev from the working directory when present.
func LoadEnv(log logging.Logger) {
	files := []string{".env", ".env.dev"}
	loaded := make([]string, 0, len(files))
	for _, file := range files {
		if _, err := os.Stat(file); err != nil {
			continue
		}
		if err := godotenv.Overload(file); err != nil {
			log.WithError(err).Warnf("Failed to load %s", file)
			continue
		}
		loaded = append(loaded, file)
	}
	if len(loaded) == 0 {
		log.Debug("No local env files loaded; relying on process environment")
		return
	}
	log.Debugf("Loaded env files: %s", strings.Join(loaded, ", "))
}

func defaults(v *viper.Viper) {
	v.SetDefault("log_level", "info")

	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.read_timeout", "10s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.max_batch_size", 100)

	v.SetDefault("engine.event_workers", 32)
	v.SetDefault("engine.queue_depth", 10000)
	v.SetDefault("engine.event_timeout_ms", 5000)
	v.SetDefault("engine.send_timeout_ms", 5000)

	v.SetDefault("routers.source", "file")
	v.SetDefault("routers.file", "routers.yaml")
	v.SetDefault("routers.watch", true)
	v.SetDefault("routers.database_url", "")

	v.SetDefault("cache.ttl", "5m")
	v.SetDefault("cache.negative_ttl", "1m")
	v.SetDefault("cache.max_entries", 1024)
	v.SetDefault("cache.redis_addrs", "")
	v.SetDefault("cache.redis_password", "")
	v.SetDefault("cache.redis_db", 0)
	v.SetDefault("cache.redis_prefix", "eventrouter:")

	v.SetDefault("kafka.brokers", []string{})
	v.SetDefault("kafka.client_id", "eventrouter")

	v.SetDefault("transform.lms_root", "http://localhost:18000")
	v.SetDefault("transform.anonymous_secret", "")

	v.SetDefault("backends", []map[string]interface{}{
		{"name": "caliper", "family": "caliper"},
		{"name": "xapi", "family": "xapi"},
	})
}

// Load reads configuration with precedence environment > config file >
// defaults. An empty path skips the file.
func Load(path string) (*Config, error) {
	v := viper.New()
	defaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if v.InConfig("transform.anonymous_secret") {
			return nil, fmt.Errorf("transform.anonymous_secret is not allowed in config files (use %s_TRANSFORM_ANONYMOUS_SECRET)", EnvPrefix)
		}
	}

	cfg := &Config{
		LogLevel: v.GetString("log_level"),
		Server: ServerConf{
			Addr:         v.GetString("server.addr"),
			ReadTimeout:  v.GetDuration("server.read_timeout"),
			WriteTimeout: v.GetDuration("server.write_timeout"),
			MaxBatchSize: v.GetInt("server.max_batch_size"),
		},
		Engine: EngineConf{
			EventWorkers:   v.GetInt("engine.event_workers"),
			QueueDepth:     v.GetInt("engine.queue_depth"),
			EventTimeoutMs: v.GetInt("engine.event_timeout_ms"),
			SendTimeoutMs:  v.GetInt("engine.send_timeout_ms"),
		},
		Routers: RoutersConf{
			Source:      v.GetString("routers.source"),
			File:        v.GetString("routers.file"),
			Watch:       v.GetBool("routers.watch"),
			DatabaseURL: v.GetString("routers.database_url"),
		},
		Cache: CacheConf{
			TTL:           v.GetDuration("cache.ttl"),
			NegativeTTL:   v.GetDuration("cache.negative_ttl"),
			MaxEntries:    v.GetInt("cache.max_entries"),
			RedisAddrs:    v.GetString("cache.redis_addrs"),
			RedisPassword: v.GetString("cache.redis_password"),
			RedisDB:       v.GetInt("cache.redis_db"),
			RedisPrefix:   v.GetString("cache.redis_prefix"),
		},
		Kafka: KafkaConf{
			Brokers:  nonEmpty(v.GetStringSlice("kafka.brokers")),
			ClientID: v.GetString("kafka.client_id"),
		},
		Transform: TransformConf{
			LMSRoot:         strings.TrimRight(v.GetString("transform.lms_root"), "/"),
			AnonymousSecret: v.GetString("transform.anonymous_secret"),
		},
	}
	cfg.Enterprises = v.GetStringMapString("enterprises")
	if err := v.UnmarshalKey("backends", &cfg.Backends); err != nil {
		return nil, fmt.Errorf("parse backends: %w", err)
	}

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// nonEmpty splits comma separated entries and drops blanks, so
// ER_KAFKA_BROKERS="" disables Kafka.
func nonEmpty(in []string) []string {
	out := make([]string, 0, len(in))
	for _, item := range in {
		for _, s := range strings.Split(item, ",") {
			if s = strings.TrimSpace(s); s != "" {
				out = append(out, s)
			}
		}
	}
	return out
}
