package llm

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/buger/jsonparser"
)

var (
	ErrProviderFileNotFound = errors.New("未找到 provider.json 配置文件")
	ErrNoProviders          = errors.New("配置文件中未找到可用提供商")
	ErrNoModels             = errors.New("配置文件中未找到可用模型")
)

// ModelConfig 是 provider.json 中单个模型的配置。
type ModelConfig struct {
	ModelName  string   `json:"model_name"`
	APIKeys    []string `json:"api_keys"`
	BaseURL    string   `json:"base_url"`
	MaxRetries int      `json:"max_retries"`
	RetryDelay float64  `json:"retry_delay"` // 秒
}

// Provider 是一个提供商及其按文件声明顺序排列的模型。
type Provider struct {
	Name   string
	Models []ModelConfig
}

// LoadProviders 读取并解析 provider.json。
func LoadProviders(path string) ([]Provider, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrProviderFileNotFound
		}
		return nil, fmt.Errorf("read provider file: %w", err)
	}
	return ParseProviders(data)
}

// ParseProviders 解析提供商配置并保留文件中的声明顺序。
// 每个提供商的值既可以是模型数组（带 model_name），也可以是 模型名 -> 配置 的对象。
func ParseProviders(data []byte) ([]Provider, error) {
	var providers []Provider
	err := jsonparser.ObjectEach(data, func(key []byte, value []byte, dataType jsonparser.ValueType, _ int) error {
		p := Provider{Name: string(key)}
		models, err := parseModels(value, dataType)
		if err != nil {
			return fmt.Errorf("provider %q: %w", p.Name, err)
		}
		p.Models = models
		providers = append(providers, p)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("parse provider file: %w", err)
	}
	return providers, nil
}

func parseModels(value []byte, dataType jsonparser.ValueType) ([]ModelConfig, error) {
	var models []ModelConfig
	switch dataType {
	case jsonparser.Array:
		var itemErr error
		_, err := jsonparser.ArrayEach(value, func(item []byte, _ jsonparser.ValueType, _ int, err error) {
			if itemErr != nil {
				return
			}
			if err != nil {
				itemErr = err
				return
			}
			var m ModelConfig
			if err := json.Unmarshal(item, &m); err != nil {
				itemErr = err
				return
			}
			if m.ModelName == "" {
				itemErr = errors.New("model entry without model_name")
				return
			}
			models = append(models, m)
		})
		if err != nil {
			return nil, err
		}
		if itemErr != nil {
			return nil, itemErr
		}
	case jsonparser.Object:
		err := jsonparser.ObjectEach(value, func(key []byte, item []byte, _ jsonparser.ValueType, _ int) error {
			var m ModelConfig
			if err := json.Unmarshal(item, &m); err != nil {
				return err
			}
			if m.ModelName == "" {
				m.ModelName = string(key)
			}
			models = append(models, m)
			return nil
		})
		if err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unexpected value type %s", dataType)
	}
	return models, nil
}

// ModelNames 返回 "provider/model" 形式的全部模型名。
func ModelNames(providers []Provider) []string {
	names := make([]string, 0)
	for _, p := range providers {
		for _, m := range p.Models {
			names = append(names, p.Name+"/"+m.ModelName)
		}
	}
	return names
}

// Bootstrap 选择文件中第一个提供商的第一个模型并构造接口。
// 选择只依赖声明顺序，不做任何质量或成本排序。
func Bootstrap(path string, opts ...Option) (*Client, error) {
	providers, err := LoadProviders(path)
	if err != nil {
		return nil, err
	}
	if len(providers) == 0 {
		return nil, ErrNoProviders
	}
	first := providers[0]
	if len(first.Models) == 0 {
		return nil, ErrNoModels
	}
	return NewClient(first.Name, first.Models[0], opts...), nil
}
