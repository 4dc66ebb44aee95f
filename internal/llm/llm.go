package llm

import (
	"context"
	"fmt"

	"ClimateIntel/internal/config"
)

// LLM 定义了所有大型语言模型客户端必须实现的通用接口。
// 系统提示与用户提示分开传入，返回的文本不保证是合法的结构化数据，
// 调用方必须自行做解析与恢复。
type LLM interface {
	Generate(ctx context.Context, system, prompt string) (string, error)
}

// NewClient 是一个工厂函数，根据提供的配置创建并返回一个实现了 LLM 接口的客户端。
func NewClient(ctx context.Context, cfg config.LLMConfig) (LLM, error) {
	switch cfg.Provider {
	case "gemini":
		return NewGemini(ctx, cfg.Gemini.Model, cfg.Gemini.APIKey)
	case "openai":
		return NewOpenAI(cfg.OpenAI.Model, cfg.OpenAI.APIKey)
	case "ollama":
		return NewOllama(cfg.Ollama.Model, cfg.Ollama.BaseURL)
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", cfg.Provider)
	}
}
