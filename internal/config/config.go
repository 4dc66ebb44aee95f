package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// FieldConfig 定义了 Milvus 集合中字段的配置。
type FieldConfig struct {
	Name         string `yaml:"name"`                // 字段名称
	DataType     string `yaml:"dataType"`            // 字段数据类型 (例如: "VarChar", "FloatVector")
	IsPrimaryKey bool   `yaml:"isPrimaryKey"`        // 是否为主键
	Dim          int    `yaml:"dim,omitempty"`       // 向量维度 (仅适用于向量类型)
	MaxLength    int    `yaml:"maxLength,omitempty"` // 最大长度 (仅适用于VarChar类型)
}

// SchemaConfig 定义了 Milvus 集合的 Schema 配置。
type SchemaConfig struct {
	CollectionName string        `yaml:"collectionName"` // 集合名称
	Description    string        `yaml:"description"`    // 集合描述
	VectorField    string        `yaml:"vectorField"`    // 向量字段名称
	Dim            int           `yaml:"dim"`            // 向量维度
	Fields         []FieldConfig `yaml:"fields"`         // 字段配置列表
}

// MilvusConfig 定义了 Milvus 数据库的连接和 Schema 配置。
type MilvusConfig struct {
	Address string       `yaml:"address"` // Milvus 服务地址
	Schema  SchemaConfig `yaml:"schema"`  // Milvus 集合 Schema 配置
}

// RedisConfig 定义了 Redis 数据库的连接配置。
type RedisConfig struct {
	Address  string `yaml:"address"`  // Redis 服务器地址 (例如: "localhost:6379")
	Password string `yaml:"password"` // Redis 密码
	DB       int    `yaml:"db"`       // Redis 数据库编号
}

// MongoConfig 定义了 MongoDB 数据库的连接配置。
type MongoConfig struct {
	Address  string `yaml:"address"`  // MongoDB 服务器地址
	Username string `yaml:"username"` // 用户名
	Password string `yaml:"password"` // 密码
	Database string `yaml:"database"` // 数据库名称
}

// KafkaConfig 定义了 Kafka 消息队列的连接配置。
type KafkaConfig struct {
	Brokers []string `yaml:"brokers"` // Kafka Broker 地址列表
	Topics  []string `yaml:"topics"`  // Kafka 主题列表
}

// DatabaseConfigs 包含所有数据库的配置。
type DatabaseConfigs struct {
	MongoDB MongoConfig  `yaml:"mongodb"` // MongoDB 数据库配置
	Milvus  MilvusConfig `yaml:"milvus"`  // Milvus 数据库配置
	Redis   RedisConfig  `yaml:"redis"`   // Redis 数据库配置
	Kafka   KafkaConfig  `yaml:"kafka"`   // Kafka 消息队列配置
}

// AppInfo 对应 'app' 部分，包含应用程序的基本信息。
type AppInfo struct {
	Name        string `yaml:"name"`        // 应用程序名称
	Version     string `yaml:"version"`     // 应用程序版本
	Environment string `yaml:"environment"` // 运行环境 (例如: "development", "production")
}

// LoggerConfig 定义了日志记录器的配置。
type LoggerConfig struct {
	Level string `yaml:"level"` // 日志级别 (例如: "info", "debug", "warn", "error")
}

// ServerConfig 定义了 HTTP 服务的监听配置。
type ServerConfig struct {
	Address string `yaml:"address"` // HTTP 监听地址 (例如: ":8080")
}

// ProviderConfig 包含某个模型提供商的配置。
type ProviderConfig struct {
	APIKey  string `yaml:"apiKey"`  // API 密钥
	Model   string `yaml:"model"`   // 模型名称
	BaseURL string `yaml:"baseURL"` // 服务基础 URL (可选，某些提供商不需要)
}

// LLMConfig 包含了不同 LLM 提供商的配置。
type LLMConfig struct {
	Provider string         `yaml:"provider"` // LLM 提供商 (例如: "gemini", "openai", "ollama")
	Gemini   ProviderConfig `yaml:"gemini"`   // Gemini 模型配置
	OpenAI   ProviderConfig `yaml:"openai"`   // OpenAI 模型配置
	Ollama   ProviderConfig `yaml:"ollama"`   // Ollama 模型配置
}

// EmbeddingConfig 包含了不同 Embedding 提供商的配置。
type EmbeddingConfig struct {
	Provider string         `yaml:"provider"` // Embedding 提供商 (例如: "gemini", "openai", "ollama")
	Gemini   ProviderConfig `yaml:"gemini"`   // Gemini 模型配置
	OpenAI   ProviderConfig `yaml:"openai"`   // OpenAI 模型配置
	Ollama   ProviderConfig `yaml:"ollama"`   // Ollama 模型配置
}

// PipelineConfig 定义了分析流水线的各项运行参数。
type PipelineConfig struct {
	ContentCeiling    int    `yaml:"contentCeiling"`    // 发送给 LLM 的文章正文字符上限
	TokenBudget       int    `yaml:"tokenBudget"`       // 报告检索阶段的 token 预算
	RunTimeoutMinutes int    `yaml:"runTimeoutMinutes"` // 单次流水线运行的超时上限（分钟）
	StaleMinutes      int    `yaml:"staleMinutes"`      // pending 任务被判定为 stall 的阈值（分钟）
	ReclaimMinutes    int    `yaml:"reclaimMinutes"`    // 回收器扫描间隔（分钟）
	ScheduleHour      int    `yaml:"scheduleHour"`      // 每日定时分析的触发小时 (0-23)
	HashCacheTTLHours int    `yaml:"hashCacheTTLHours"` // Redis 内容哈希缓存的过期时间（小时）
	ProgressTopic     string `yaml:"progressTopic"`     // 流水线进度事件的 Kafka 主题
}

// AppConfig 是整个 YAML 文件的根结构，包含了应用程序的所有配置。
type AppConfig struct {
	App       AppInfo         `yaml:"app"`       // 应用程序信息
	Server    ServerConfig    `yaml:"server"`    // HTTP 服务配置
	LLM       LLMConfig       `yaml:"llm"`       // LLM 配置部分
	Embedding EmbeddingConfig `yaml:"embedding"` // Embedding 配置部分
	Logger    LoggerConfig    `yaml:"logger"`    // 日志记录器配置
	Databases DatabaseConfigs `yaml:"databases"` // 数据库配置
	Pipeline  PipelineConfig  `yaml:"pipeline"`  // 流水线运行参数
}

// LoadConfig 从指定路径加载并解析 YAML 配置文件。
func LoadConfig(path string) (*AppConfig, error) {
	// 读取 YAML 文件内容。
	yamlFile, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("无法读取 YAML 文件 '%s': %w", path, err)
	}
	var cfg AppConfig // 声明一个AppConfig变量用于存储解析后的配置。
	// 将 YAML 内容解析到 cfg 结构体中。
	err = yaml.Unmarshal(yamlFile, &cfg)
	if err != nil {
		return nil, fmt.Errorf("解析 YAML 文件失败: %w", err)
	}
	cfg.applyDefaults()
	return &cfg, nil // 返回解析后的配置和nil错误。
}

// applyDefaults 为未配置的流水线参数填充默认值。
func (c *AppConfig) applyDefaults() {
	if c.Pipeline.ContentCeiling <= 0 {
		c.Pipeline.ContentCeiling = 5000
	}
	if c.Pipeline.TokenBudget <= 0 {
		c.Pipeline.TokenBudget = 6000
	}
	if c.Pipeline.RunTimeoutMinutes <= 0 {
		c.Pipeline.RunTimeoutMinutes = 30
	}
	if c.Pipeline.StaleMinutes <= 0 {
		c.Pipeline.StaleMinutes = 60
	}
	if c.Pipeline.ReclaimMinutes <= 0 {
		c.Pipeline.ReclaimMinutes = 10
	}
	if c.Pipeline.HashCacheTTLHours <= 0 {
		c.Pipeline.HashCacheTTLHours = 72
	}
	if c.Pipeline.ProgressTopic == "" {
		c.Pipeline.ProgressTopic = "pipeline_progress"
	}
	if c.Server.Address == "" {
		c.Server.Address = ":8080"
	}
}
