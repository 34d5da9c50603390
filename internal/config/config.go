// Package config 负责加载和管理应用程序的配置。
package config

import (
	"fmt"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// envPrefix 环境变量前缀，例如 DREAMCATCHER_SERVER_PORT 覆盖 server.port。
const envPrefix = "DREAMCATCHER"

// Config 是整个应用程序的配置结构体，与 config.yaml 文件结构对应。
type Config struct {
	Server        ServerConfig        `mapstructure:"server"`
	Log           LogConfig           `mapstructure:"log"`
	LLM           LLMConfig           `mapstructure:"llm"`
	History       HistoryConfig       `mapstructure:"history"`
	Stream        StreamConfig        `mapstructure:"stream"`
	Database      DatabaseConfig      `mapstructure:"database"`
	Elasticsearch ElasticsearchConfig `mapstructure:"elasticsearch"`
	MinIO         MinIOConfig         `mapstructure:"minio"`
	Kafka         KafkaConfig         `mapstructure:"kafka"`
}

// ServerConfig 存储服务器相关的配置。
type ServerConfig struct {
	Port        string   `mapstructure:"port"`
	Mode        string   `mapstructure:"mode"`
	CORSOrigins []string `mapstructure:"cors_origins"`
}

// LogConfig 存储日志相关的配置。
type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	OutputPath string `mapstructure:"output_path"`
}

// LLMConfig 存储大语言模型接口相关的配置。
// 提供商与模型本身来自 provider.json，这里只保留调用参数。
type LLMConfig struct {
	ProviderFile   string  `mapstructure:"provider_file"`
	MaxToolRounds  int     `mapstructure:"max_tool_rounds"`
	TimeoutSeconds int     `mapstructure:"timeout_seconds"`
	Temperature    float64 `mapstructure:"temperature"`
}

// HistoryConfig 存储聊天历史快照相关的配置。
type HistoryConfig struct {
	Dir            string `mapstructure:"dir"`
	LockBackend    string `mapstructure:"lock_backend"` // "local" 或 "redis"
	LockTTLSeconds int    `mapstructure:"lock_ttl_seconds"`
}

// StreamConfig 控制兼容流式输出的分块节奏。
type StreamConfig struct {
	TokenDelayMS int `mapstructure:"token_delay_ms"`
}

// DatabaseConfig 存储所有数据库连接的配置。
type DatabaseConfig struct {
	MySQL MySQLConfig `mapstructure:"mysql"`
	Redis RedisConfig `mapstructure:"redis"`
}

// MySQLConfig 存储 MySQL 数据库的配置。DSN 为空时 get_plan_data 使用模拟数据。
type MySQLConfig struct {
	DSN string `mapstructure:"dsn"`
}

// RedisConfig 存储 Redis 的配置。
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// ElasticsearchConfig 存储知识库检索相关的配置。Addresses 为空时不启用。
type ElasticsearchConfig struct {
	Addresses string `mapstructure:"addresses"`
	Username  string `mapstructure:"username"`
	Password  string `mapstructure:"password"`
	IndexName string `mapstructure:"index_name"`
	// SeedDir 中的 .md/.txt 文件会在启动时导入索引，为空时不导入。
	SeedDir   string `mapstructure:"seed_dir"`
}

// MinIOConfig 存储聊天快照归档的对象存储配置。
type MinIOConfig struct {
	Enabled         bool   `mapstructure:"enabled"`
	Endpoint        string `mapstructure:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	UseSSL          bool   `mapstructure:"use_ssl"`
	BucketName      string `mapstructure:"bucket_name"`
}

// KafkaConfig 存储分析事件发布相关的配置。Brokers 为空时不发布。
type KafkaConfig struct {
	Brokers string `mapstructure:"brokers"`
	Topic   string `mapstructure:"topic"`
}

// Load 从指定路径读取 YAML 配置，叠加 .env 与环境变量后返回。
func Load(configPath string) (Config, error) {
	// .env 是可选的，不存在时忽略
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)
	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.ReadInConfig(); err != nil {
		return cfg, fmt.Errorf("读取配置文件失败: %w", err)
	}
	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("无法将配置解析到结构体中: %w", err)
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8000")
	v.SetDefault("server.mode", "release")
	v.SetDefault("server.cors_origins", []string{"*"})
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("llm.provider_file", "provider.json")
	v.SetDefault("llm.max_tool_rounds", 5)
	v.SetDefault("llm.timeout_seconds", 120)
	v.SetDefault("history.dir", "chat_history")
	v.SetDefault("history.lock_backend", "local")
	v.SetDefault("history.lock_ttl_seconds", 30)
	v.SetDefault("stream.token_delay_ms", 50)
	v.SetDefault("elasticsearch.index_name", "knowledge_base")
	v.SetDefault("minio.bucket_name", "chat-history")
	v.SetDefault("kafka.topic", "llm-analysis-events")
}
