package tools

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"dreamcatcher-llm-go/internal/model"
	"dreamcatcher-llm-go/internal/repository"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubPlans struct {
	plan *model.Plan
	err  error
}

func (s stubPlans) FindByID(_ context.Context, _ int64) (*model.Plan, error) {
	return s.plan, s.err
}

type stubKnowledge struct {
	text  string
	found bool
	err   error
	calls int
}

func (s *stubKnowledge) Search(_ context.Context, _ string) (string, bool, error) {
	s.calls++
	return s.text, s.found, s.err
}

func TestList_StaticCatalog(t *testing.T) {
	reg := NewDefaultRegistry(Dependencies{})
	list := reg.List()
	require.Len(t, list, 3)
	assert.Equal(t, GetPlanData, list[0].Name)
	assert.Equal(t, ParameterSchema{Type: TypeInteger, Description: "计划ID"}, list[0].Parameters["plan_id"])
	assert.Equal(t, GetUserContext, list[1].Name)
	assert.Equal(t, SearchKnowledgeBase, list[2].Name)
	assert.Equal(t, "搜索查询", list[2].Parameters["query"].Description)
	assert.Equal(t, []string{GetPlanData, GetUserContext, SearchKnowledgeBase}, reg.Names())
}

func TestCall_UnknownTool(t *testing.T) {
	reg := NewDefaultRegistry(Dependencies{})
	_, err := reg.Call(context.Background(), "nonexistent", map[string]any{})
	require.ErrorIs(t, err, ErrToolNotFound)
}

func TestCall_ValidatesBeforeInvoking(t *testing.T) {
	invoked := false
	reg := NewRegistry(Tool{
		Name:       "t",
		Parameters: []Parameter{{Name: "n", Type: TypeInteger, Required: true}},
		Handler: func(context.Context, Arguments) (any, error) {
			invoked = true
			return nil, nil
		},
	})
	ctx := context.Background()

	cases := []map[string]any{
		{},
		{"n": "five"},
		{"n": 1.5},
		{"n": 1, "extra": true},
		{"n": 1e300},
		{"n": -1e300},
		{"n": float64(1<<53) * 2},
	}
	for _, args := range cases {
		_, err := reg.Call(ctx, "t", args)
		require.ErrorIs(t, err, ErrInvalidArguments, "args %v", args)
	}
	assert.False(t, invoked)

	_, err := reg.Call(ctx, "t", map[string]any{"n": float64(3)})
	require.NoError(t, err)
	assert.True(t, invoked)

	n, ok := toInt(float64(-(1 << 53)))
	assert.True(t, ok)
	assert.Equal(t, int64(-(1 << 53)), n)
}

func TestGetPlanData_MockAndDatabase(t *testing.T) {
	ctx := context.Background()

	res, err := NewDefaultRegistry(Dependencies{}).Call(ctx, GetPlanData, map[string]any{"plan_id": float64(7)})
	require.NoError(t, err)
	plan := res.(PlanData)
	assert.Equal(t, int64(7), plan.ID)
	assert.Equal(t, "计划 7", plan.Title)
	assert.Equal(t, []string{"任务1", "任务2", "任务3"}, plan.Tasks)

	stored := &model.Plan{ID: 7, Title: "晨跑计划", Status: "done", Tasks: []string{"买跑鞋"}, CreatedAt: time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC)}
	res, err = NewDefaultRegistry(Dependencies{Plans: stubPlans{plan: stored}}).Call(ctx, GetPlanData, map[string]any{"plan_id": 7})
	require.NoError(t, err)
	assert.Equal(t, "晨跑计划", res.(PlanData).Title)
	assert.Equal(t, "2024-03-02", res.(PlanData).CreatedAt)

	res, err = NewDefaultRegistry(Dependencies{Plans: stubPlans{err: repository.ErrPlanNotFound}}).Call(ctx, GetPlanData, map[string]any{"plan_id": 7})
	require.NoError(t, err)
	assert.Equal(t, "计划 7", res.(PlanData).Title)

	_, err = NewDefaultRegistry(Dependencies{Plans: stubPlans{err: errors.New("db down")}}).Call(ctx, GetPlanData, map[string]any{"plan_id": 7})
	require.Error(t, err)
}

func TestSearchKnowledgeBase(t *testing.T) {
	ctx := context.Background()
	kb := &stubKnowledge{text: "from index", found: true}
	reg := NewDefaultRegistry(Dependencies{Knowledge: kb})

	res, err := reg.Call(ctx, SearchKnowledgeBase, map[string]any{"query": "如何做好项目管理"})
	require.NoError(t, err)
	assert.Contains(t, res, "项目管理最佳实践")
	assert.Equal(t, 0, kb.calls, "static items are matched before the index")

	res, err = reg.Call(ctx, SearchKnowledgeBase, map[string]any{"query": "冥想"})
	require.NoError(t, err)
	assert.Equal(t, "from index", res)

	kb.found = false
	res, err = reg.Call(ctx, SearchKnowledgeBase, map[string]any{"query": "冥想"})
	require.NoError(t, err)
	assert.Equal(t, "关于 '冥想' 的相关信息：这是一个需要深入研究的领域...", res)

	res, err = NewDefaultRegistry(Dependencies{}).Call(ctx, SearchKnowledgeBase, map[string]any{"query": "冥想"})
	require.NoError(t, err)
	assert.Contains(t, res, "需要深入研究")
}

func TestToolkit_RestrictsAndSerializes(t *testing.T) {
	reg := NewDefaultRegistry(Dependencies{})
	tk := reg.Toolkit(GetPlanData, SearchKnowledgeBase)

	defs := tk.Definitions()
	require.Len(t, defs, 2)
	assert.Equal(t, GetPlanData, defs[0].Function.Name)
	var schema struct {
		Type     string   `json:"type"`
		Required []string `json:"required"`
	}
	require.NoError(t, json.Unmarshal(defs[0].Function.Parameters, &schema))
	assert.Equal(t, "object", schema.Type)
	assert.Equal(t, []string{"plan_id"}, schema.Required)

	out, err := tk.Invoke(context.Background(), GetPlanData, `{"plan_id": 3}`)
	require.NoError(t, err)
	assert.Contains(t, out, `"title":"计划 3"`)

	_, err = tk.Invoke(context.Background(), GetUserContext, `{"user_id": "u"}`)
	require.ErrorIs(t, err, ErrToolNotFound)

	_, err = tk.Invoke(context.Background(), GetPlanData, `{broken`)
	require.ErrorIs(t, err, ErrInvalidArguments)
}

func TestMCPHandler(t *testing.T) {
	reg := NewDefaultRegistry(Dependencies{})

	req := mcp.CallToolRequest{}
	req.Params.Arguments = map[string]any{"user_id": "u-1"}
	res, err := reg.mcpHandler(GetUserContext)(context.Background(), req)
	require.NoError(t, err)
	assert.False(t, res.IsError)
	require.Len(t, res.Content, 1)
	text := res.Content[0].(mcp.TextContent).Text
	assert.Contains(t, text, `"user_id":"u-1"`)

	bad := mcp.CallToolRequest{}
	bad.Params.Arguments = map[string]any{}
	res, err = reg.mcpHandler(GetUserContext)(context.Background(), bad)
	require.NoError(t, err)
	assert.True(t, res.IsError)
}

func TestMCPToolDefinition(t *testing.T) {
	reg := NewDefaultRegistry(Dependencies{})
	def := mcpTool(reg.byName[GetPlanData])
	assert.Equal(t, GetPlanData, def.Name)
	assert.Equal(t, "获取指定计划的详细数据", def.Description)
	assert.Equal(t, []string{"plan_id"}, def.InputSchema.Required)
	assert.Contains(t, def.InputSchema.Properties, "plan_id")
}
