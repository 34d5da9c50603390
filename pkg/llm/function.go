package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"dreamcatcher-llm-go/pkg/log"

	"github.com/go-playground/validator/v10"
)

const defaultMaxToolRounds = 5

// 结构化结果按 validate 标签校验，切片字段 required 只要求存在（允许空列表）
var structValidator = validator.New(validator.WithRequiredStructEnabled())

var (
	// ErrToolRoundsExceeded 表示模型在允许的轮数内没有给出最终答案。
	ErrToolRoundsExceeded = errors.New("tool call rounds exceeded")
	// ErrInvalidStructuredOutput 表示模型的最终答案无法解析为目标结构。
	ErrInvalidStructuredOutput = errors.New("invalid structured output")
)

// FunctionSpec 描述一次结构化生成：系统提示、用户输入与可用工具。
type FunctionSpec struct {
	System        string
	Prompt        string
	Toolkit       Toolkit
	MaxToolRounds int
}

// ChatSpec 描述带工具的多轮对话。
type ChatSpec struct {
	System        string
	Toolkit       Toolkit
	MaxToolRounds int
}

// GenerateStructured 运行工具循环，并把模型最终回复中的 JSON 对象解码到 out。
func GenerateStructured(ctx context.Context, iface Interface, spec FunctionSpec, out any) error {
	messages := []Message{
		{Role: RoleSystem, Content: spec.System},
		{Role: RoleUser, Content: spec.Prompt},
	}
	final, _, err := RunWithTools(ctx, iface, messages, spec.Toolkit, spec.MaxToolRounds, spec.Toolkit == nil)
	if err != nil {
		return err
	}
	raw := extractJSON(final.Content)
	if raw == "" {
		return fmt.Errorf("%w: no JSON object in response", ErrInvalidStructuredOutput)
	}
	if err := json.Unmarshal([]byte(raw), out); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidStructuredOutput, err)
	}
	if reflect.Indirect(reflect.ValueOf(out)).Kind() != reflect.Struct {
		return nil
	}
	if err := structValidator.Struct(out); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidStructuredOutput, err)
	}
	return nil
}

// Chat 在已有历史上追加一条用户消息并返回回复与更新后的历史。
// 更新后的历史只包含 user/assistant/system 消息，不包含中间的工具调用。
func Chat(ctx context.Context, iface Interface, spec ChatSpec, message string, history []Message) (string, []Message, error) {
	messages := make([]Message, 0, len(history)+2)
	if spec.System != "" {
		messages = append(messages, Message{Role: RoleSystem, Content: spec.System})
	}
	for _, m := range history {
		if m.Role == RoleTool || len(m.ToolCalls) > 0 {
			continue
		}
		messages = append(messages, Message{Role: m.Role, Content: m.Content})
	}
	userMsg := Message{Role: RoleUser, Content: message}
	messages = append(messages, userMsg)

	final, _, err := RunWithTools(ctx, iface, messages, spec.Toolkit, spec.MaxToolRounds, false)
	if err != nil {
		return "", nil, err
	}

	updated := make([]Message, 0, len(history)+2)
	updated = append(updated, history...)
	updated = append(updated, userMsg, Message{Role: RoleAssistant, Content: final.Content})
	return final.Content, updated, nil
}

// RunWithTools 反复调用模型，执行其请求的工具并回填结果，直到模型给出不含工具调用的回复。
// 工具执行失败时把错误文本交还给模型，而不是中断整个调用。
func RunWithTools(ctx context.Context, iface Interface, messages []Message, toolkit Toolkit, maxRounds int, jsonOutput bool) (*Message, []Message, error) {
	if maxRounds <= 0 {
		maxRounds = defaultMaxToolRounds
	}
	var tools []ToolDefinition
	if toolkit != nil {
		tools = toolkit.Definitions()
	}

	conv := append([]Message(nil), messages...)
	for round := 0; round <= maxRounds; round++ {
		reply, err := iface.Complete(ctx, CompletionRequest{Messages: conv, Tools: tools, JSONOutput: jsonOutput})
		if err != nil {
			return nil, conv, err
		}
		conv = append(conv, *reply)
		if len(reply.ToolCalls) == 0 {
			return reply, conv, nil
		}
		if toolkit == nil {
			return nil, conv, errors.New("model requested tools but none are available")
		}
		for _, call := range reply.ToolCalls {
			result, err := toolkit.Invoke(ctx, call.Function.Name, call.Function.Arguments)
			if err != nil {
				log.Warnw("工具调用失败", "tool", call.Function.Name, "error", err)
				result = "工具调用失败: " + err.Error()
			}
			conv = append(conv, Message{Role: RoleTool, ToolCallID: call.ID, Content: result})
		}
	}
	return nil, conv, ErrToolRoundsExceeded
}

// extractJSON 去掉 markdown 代码块，返回第一个 '{' 到最后一个 '}' 之间的内容。
func extractJSON(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end < start {
		return ""
	}
	return s[start : end+1]
}
