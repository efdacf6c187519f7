// Package config 负责加载和管理应用程序的配置。
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// 全局配置变量，存储从配置文件加载的所有设置。
var Conf Config

// Config 是整个应用程序的配置结构体，与 config.yaml 文件结构对应。
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Log      LogConfig      `mapstructure:"log"`
	Kafka    KafkaConfig    `mapstructure:"kafka"`
	LLM      LLMConfig      `mapstructure:"llm"`
	Chat     ChatConfig     `mapstructure:"chat"`
	Prompt   PromptConfig   `mapstructure:"prompt"`
	Profile  ProfileConfig  `mapstructure:"profile"`
	Cache    CacheConfig    `mapstructure:"cache"`
}

// ServerConfig 存储服务器相关的配置。
type ServerConfig struct {
	Port string `mapstructure:"port"`
	Mode string `mapstructure:"mode"`
	// AllowOriginPattern 是 CORS 允许来源的正则，默认只放行 localhost 的任意端口。
	AllowOriginPattern string `mapstructure:"allow_origin_pattern"`
}

// DatabaseConfig 存储所有数据库连接的配置。
type DatabaseConfig struct {
	SQL   SQLConfig   `mapstructure:"sql"`
	Redis RedisConfig `mapstructure:"redis"`
}

// SQLConfig 存储关系型数据库的配置，Driver 取值 mysql 或 postgres。
type SQLConfig struct {
	Driver      string `mapstructure:"driver"`
	DSN         string `mapstructure:"dsn"`
	AutoMigrate bool   `mapstructure:"auto_migrate"`
}

// RedisConfig 存储 Redis 的配置。
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// LogConfig 存储日志相关的配置。
type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	OutputPath string `mapstructure:"output_path"`
}

// KafkaConfig 存储 Kafka 相关的配置。未启用时会话历史直接异步写库。
type KafkaConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Brokers string `mapstructure:"brokers"`
	Topic   string `mapstructure:"topic"`
	GroupID string `mapstructure:"group_id"`
}

// LLMConfig 存储大语言模型相关的配置。
type LLMConfig struct {
	APIKey     string              `mapstructure:"api_key"`
	BaseURL    string              `mapstructure:"base_url"`
	Model      string              `mapstructure:"model"`
	Generation LLMGenerationConfig `mapstructure:"generation"`
}

// LLMGenerationConfig 配置生成相关参数。
type LLMGenerationConfig struct {
	Temperature float64 `mapstructure:"temperature"`
}

// ChatConfig 存储聊天编排相关的配置。
type ChatConfig struct {
	DefaultModel    string `mapstructure:"default_model"`
	LocalAgentModel string `mapstructure:"local_agent_model"`
	NeutralEmotion  string `mapstructure:"neutral_emotion"`
	DefaultQuizType string `mapstructure:"default_quiz_type"`
	DefaultLevel    string `mapstructure:"default_level"`
	DefaultLayout   string `mapstructure:"default_layout"`
}

// PromptConfig 存储出题意图识别的触发词。
type PromptConfig struct {
	QuizTriggers []string `mapstructure:"quiz_triggers"`
}

// ProfileConfig 存储用户画像刷新相关的配置。
type ProfileConfig struct {
	RefreshInterval time.Duration `mapstructure:"refresh_interval"`
}

// CacheConfig 控制答案缓存。缓存条目没有过期时间。
type CacheConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// DefaultQuizTriggers 是默认的出题触发词，按子串包含匹配。
var DefaultQuizTriggers = []string{"問題生成", "問題を作って", "quiz", "問題を出して", "問題作成", "問題を自動生成"}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8000")
	v.SetDefault("server.mode", "release")
	v.SetDefault("server.allow_origin_pattern", `^http://localhost:\d+$`)
	v.SetDefault("database.sql.driver", "mysql")
	v.SetDefault("database.sql.dsn", "")
	v.SetDefault("database.sql.auto_migrate", true)
	v.SetDefault("database.redis.addr", "localhost:6379")
	v.SetDefault("database.redis.password", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("kafka.enabled", false)
	v.SetDefault("kafka.brokers", "localhost:9092")
	v.SetDefault("kafka.topic", "chat-history")
	v.SetDefault("kafka.group_id", "ai-edu-go-history")
	// 未设置默认值的键不会被 AutomaticEnv 覆盖
	v.SetDefault("llm.api_key", "")
	v.SetDefault("llm.base_url", "https://api.openai.com/v1")
	v.SetDefault("llm.model", "gpt-4o")
	v.SetDefault("llm.generation.temperature", 0.7)
	v.SetDefault("chat.default_model", "gpt-4o")
	v.SetDefault("chat.local_agent_model", "higash-ai")
	v.SetDefault("chat.neutral_emotion", "ニュートラル")
	v.SetDefault("chat.default_quiz_type", "multiple_choice")
	v.SetDefault("chat.default_level", "中級")
	v.SetDefault("chat.default_layout", "quiz_card_v1")
	v.SetDefault("prompt.quiz_triggers", DefaultQuizTriggers)
	v.SetDefault("profile.refresh_interval", 60*time.Second)
	v.SetDefault("cache.enabled", true)
}

// Load 读取 .env 与 YAML 配置文件并返回解析后的配置，环境变量（如 LLM_API_KEY）优先于文件。
func Load(configPath string) (Config, error) {
	// .env 不存在时直接使用系统环境变量
	_ = godotenv.Load(".env")

	v := viper.New()
	setDefaults(v)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("读取配置文件失败: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("无法将配置解析到结构体中: %w", err)
	}
	return cfg, nil
}

// Init 初始化配置加载，从指定的路径读取 YAML 文件并解析到 Conf 变量中。
func Init(configPath string) {
	cfg, err := Load(configPath)
	if err != nil {
		panic(err)
	}
	Conf = cfg
}
