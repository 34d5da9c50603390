// Package tools 定义了可被模型与 MCP 客户端调用的工具，以及按名称分发的注册表。
package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"

	"dreamcatcher-llm-go/pkg/llm"
)

var (
	// ErrToolNotFound 表示请求的工具未注册。
	ErrToolNotFound = errors.New("tool not found")
	// ErrInvalidArguments 表示参数未通过工具声明的 schema 校验。
	ErrInvalidArguments = errors.New("invalid tool arguments")
)

// 参数类型
const (
	TypeInteger = "integer"
	TypeString  = "string"
)

// Parameter 描述工具的一个参数。
type Parameter struct {
	Name        string
	Type        string
	Description string
	Required    bool
}

// Handler 执行工具。参数在调用前已经过校验。
type Handler func(ctx context.Context, args Arguments) (any, error)

// Tool 是一个带 schema 的可调用工具。
type Tool struct {
	Name        string
	Description string
	Parameters  []Parameter
	Handler     Handler
}

// Arguments 是已校验的调用参数。
type Arguments map[string]any

// Int 返回整数参数，缺省时为 0。
func (a Arguments) Int(name string) int64 {
	n, _ := toInt(a[name])
	return n
}

// String 返回字符串参数，缺省时为空串。
func (a Arguments) String(name string) string {
	s, _ := a[name].(string)
	return s
}

// ParameterSchema 是 /mcp/tools/list 中单个参数的描述。
type ParameterSchema struct {
	Type        string `json:"type"`
	Description string `json:"description"`
}

// Descriptor 是 /mcp/tools/list 返回的工具目录项。
type Descriptor struct {
	Name        string                     `json:"name"`
	Description string                     `json:"description"`
	Parameters  map[string]ParameterSchema `json:"parameters"`
}

// Registry 保存按声明顺序排列的工具。
type Registry struct {
	tools  []*Tool
	byName map[string]*Tool
}

// NewRegistry 创建注册表；重名的工具以后注册的为准。
func NewRegistry(tools ...Tool) *Registry {
	r := &Registry{byName: make(map[string]*Tool)}
	for i := range tools {
		t := tools[i]
		if existing, dup := r.byName[t.Name]; dup {
			*existing = t
			continue
		}
		r.tools = append(r.tools, &t)
		r.byName[t.Name] = &t
	}
	return r
}

// Names 返回所有工具名。
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.tools))
	for _, t := range r.tools {
		names = append(names, t.Name)
	}
	return names
}

// List 返回静态工具目录。
func (r *Registry) List() []Descriptor {
	out := make([]Descriptor, 0, len(r.tools))
	for _, t := range r.tools {
		params := make(map[string]ParameterSchema, len(t.Parameters))
		for _, p := range t.Parameters {
			params[p.Name] = ParameterSchema{Type: p.Type, Description: p.Description}
		}
		out = append(out, Descriptor{Name: t.Name, Description: t.Description, Parameters: params})
	}
	return out
}

// Call 校验参数后执行指定工具。
func (r *Registry) Call(ctx context.Context, name string, args map[string]any) (any, error) {
	t, ok := r.byName[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrToolNotFound, name)
	}
	if err := validate(t, args); err != nil {
		return nil, err
	}
	return t.Handler(ctx, Arguments(args))
}

func validate(t *Tool, args map[string]any) error {
	var problems []string
	known := make(map[string]struct{}, len(t.Parameters))
	for _, p := range t.Parameters {
		known[p.Name] = struct{}{}
		v, present := args[p.Name]
		if !present || v == nil {
			if p.Required {
				problems = append(problems, fmt.Sprintf("missing required parameter %q", p.Name))
			}
			continue
		}
		switch p.Type {
		case TypeInteger:
			if _, ok := toInt(v); !ok {
				problems = append(problems, fmt.Sprintf("parameter %q must be an integer", p.Name))
			}
		case TypeString:
			if _, ok := v.(string); !ok {
				problems = append(problems, fmt.Sprintf("parameter %q must be a string", p.Name))
			}
		}
	}
	var unknown []string
	for k := range args {
		if _, ok := known[k]; !ok {
			unknown = append(unknown, k)
		}
	}
	sort.Strings(unknown)
	for _, k := range unknown {
		problems = append(problems, fmt.Sprintf("unexpected parameter %q", k))
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w for %s: %s", ErrInvalidArguments, t.Name, strings.Join(problems, "; "))
	}
	return nil
}

const maxSafeInteger = 1 << 53

func toInt(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int64:
		return n, true
	case int32:
		return int64(n), true
	case float64:
		// 超出 ±2^53 的数在 JSON 中已无法精确表示整数
		if n != math.Trunc(n) || math.Abs(n) > maxSafeInteger {
			return 0, false
		}
		return int64(n), true
	case json.Number:
		i, err := n.Int64()
		return i, err == nil
	}
	return 0, false
}

// Toolkit 返回只包含指定工具的 llm.Toolkit，用于为某个 LLM 操作限定可用工具。
func (r *Registry) Toolkit(names ...string) llm.Toolkit {
	tk := &toolkit{reg: r}
	for _, n := range names {
		if t, ok := r.byName[n]; ok {
			tk.tools = append(tk.tools, t)
		}
	}
	return tk
}

type toolkit struct {
	reg   *Registry
	tools []*Tool
}

func (k *toolkit) Definitions() []llm.ToolDefinition {
	defs := make([]llm.ToolDefinition, 0, len(k.tools))
	for _, t := range k.tools {
		defs = append(defs, llm.ToolDefinition{
			Type: "function",
			Function: llm.FunctionDefinition{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  jsonSchema(t),
			},
		})
	}
	return defs
}

func (k *toolkit) Invoke(ctx context.Context, name string, arguments string) (string, error) {
	allowed := false
	for _, t := range k.tools {
		if t.Name == name {
			allowed = true
			break
		}
	}
	if !allowed {
		return "", fmt.Errorf("%w: %s", ErrToolNotFound, name)
	}

	args := map[string]any{}
	if strings.TrimSpace(arguments) != "" {
		if err := json.Unmarshal([]byte(arguments), &args); err != nil {
			return "", fmt.Errorf("%w: %v", ErrInvalidArguments, err)
		}
	}
	result, err := k.reg.Call(ctx, name, args)
	if err != nil {
		return "", err
	}
	return resultText(result)
}

// resultText 把工具结果转为文本：字符串原样返回，其他值编码为 JSON。
func resultText(result any) (string, error) {
	if s, ok := result.(string); ok {
		return s, nil
	}
	b, err := json.Marshal(result)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// jsonSchema 生成函数调用使用的 JSON schema。
func jsonSchema(t *Tool) json.RawMessage {
	props := make(map[string]map[string]string, len(t.Parameters))
	required := make([]string, 0)
	for _, p := range t.Parameters {
		props[p.Name] = map[string]string{"type": p.Type, "description": p.Description}
		if p.Required {
			required = append(required, p.Name)
		}
	}
	b, _ := json.Marshal(map[string]any{
		"type":                 "object",
		"properties":           props,
		"required":             required,
		"additionalProperties": false,
	})
	return b
}
