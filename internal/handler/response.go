// Package handler 包含了处理 HTTP 请求的控制器逻辑。
package handler

import (
	"net/http"

	"dreamcatcher-llm-go/internal/model"
	"dreamcatcher-llm-go/pkg/log"

	"github.com/gin-gonic/gin"
)

// 各操作失败时的错误前缀
const (
	prefixChat          = "聊天失败"
	prefixStreamChat    = "流式聊天失败"
	prefixAnalyzePlan   = "计划分析失败"
	prefixGenerateTasks = "任务生成失败"
	prefixAnalyzeDream  = "梦境分析失败"
	prefixToolCall      = "工具调用失败"
	prefixStatus        = "获取状态失败"
	prefixHistory       = "获取历史记录失败"
	prefixDeleteSession = "删除会话失败"
	prefixModels        = "获取模型列表失败"
	prefixBadRequest    = "无效的请求负载"
)

// abortWithError 以 {"detail": "<前缀>: <错误>"} 的形式结束请求。
func abortWithError(c *gin.Context, status int, prefix string, err error) {
	detail := prefix + ": " + err.Error()
	if status >= http.StatusInternalServerError {
		log.Errorf("%s %s: %s", c.Request.Method, c.Request.URL.Path, detail)
	} else {
		log.Warnf("%s %s: %s", c.Request.Method, c.Request.URL.Path, detail)
	}
	c.AbortWithStatusJSON(status, gin.H{"detail": detail})
}

func badRequest(c *gin.Context, err error) {
	abortWithError(c, http.StatusBadRequest, prefixBadRequest, err)
}

func timestamp() string {
	return model.NowISO()
}
