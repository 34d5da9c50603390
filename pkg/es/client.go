// Package es 提供了基于 Elasticsearch 的知识库检索。
package es

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"dreamcatcher-llm-go/internal/config"
	"dreamcatcher-llm-go/pkg/log"

	"github.com/elastic/go-elasticsearch/v8"
)

// KnowledgeDocument 是知识库索引中的文档结构。
type KnowledgeDocument struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

// KnowledgeSearcher 在知识库索引中检索与查询最相关的一条内容。
type KnowledgeSearcher struct {
	client    *elasticsearch.Client
	indexName string
}

// NewKnowledgeSearcher 初始化 Elasticsearch 客户端，并在索引不存在时创建它。
func NewKnowledgeSearcher(esCfg config.ElasticsearchConfig) (*KnowledgeSearcher, error) {
	cfg := elasticsearch.Config{
		Addresses: strings.Split(esCfg.Addresses, ","),
		Username:  esCfg.Username,
		Password:  esCfg.Password,
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
		},
	}
	client, err := elasticsearch.NewClient(cfg)
	if err != nil {
		return nil, err
	}
	s := &KnowledgeSearcher{client: client, indexName: esCfg.IndexName}
	if err := s.createIndexIfNotExists(); err != nil {
		return nil, err
	}
	return s, nil
}

// createIndexIfNotExists 检查索引是否存在，如果不存在则创建它
func (s *KnowledgeSearcher) createIndexIfNotExists() error {
	res, err := s.client.Indices.Exists([]string{s.indexName})
	if err != nil {
		return fmt.Errorf("检查索引是否存在时出错: %w", err)
	}
	res.Body.Close()
	if res.StatusCode == http.StatusOK {
		log.Infof("索引 '%s' 已存在", s.indexName)
		return nil
	}
	if res.StatusCode != http.StatusNotFound {
		return fmt.Errorf("检查索引是否存在时收到意外的状态码: %d", res.StatusCode)
	}

	mapping := `{
		"mappings": {
			"properties": {
				"title":   { "type": "text" },
				"content": { "type": "text" }
			}
		}
	}`
	res, err = s.client.Indices.Create(
		s.indexName,
		s.client.Indices.Create.WithBody(strings.NewReader(mapping)),
	)
	if err != nil {
		return fmt.Errorf("创建索引 '%s' 失败: %w", s.indexName, err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return errors.New("创建索引时 Elasticsearch 返回错误: " + res.String())
	}
	log.Infof("索引 '%s' 创建成功", s.indexName)
	return nil
}

// Search 返回得分最高的文档内容；没有命中时 found 为 false。
func (s *KnowledgeSearcher) Search(ctx context.Context, query string) (string, bool, error) {
	var buf bytes.Buffer
	esQuery := map[string]any{
		"size": 1,
		"query": map[string]any{
			"multi_match": map[string]any{
				"query":  query,
				"fields": []string{"title^2", "content"},
			},
		},
	}
	if err := json.NewEncoder(&buf).Encode(esQuery); err != nil {
		return "", false, err
	}

	res, err := s.client.Search(
		s.client.Search.WithContext(ctx),
		s.client.Search.WithIndex(s.indexName),
		s.client.Search.WithBody(&buf),
	)
	if err != nil {
		return "", false, fmt.Errorf("向 Elasticsearch 发送搜索请求失败: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		body, _ := io.ReadAll(res.Body)
		return "", false, fmt.Errorf("Elasticsearch 返回错误, status: %s, body: %s", res.Status(), string(body))
	}

	var esResponse struct {
		Hits struct {
			Hits []struct {
				Source KnowledgeDocument `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&esResponse); err != nil {
		return "", false, fmt.Errorf("解析 Elasticsearch 响应失败: %w", err)
	}
	if len(esResponse.Hits.Hits) == 0 {
		return "", false, nil
	}
	return esResponse.Hits.Hits[0].Source.Content, true, nil
}

// Index 写入或覆盖一个知识库文档。
func (s *KnowledgeSearcher) Index(ctx context.Context, id string, doc KnowledgeDocument) error {
	body, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("无法序列化文档: %w", err)
	}
	res, err := s.client.Index(
		s.indexName,
		bytes.NewReader(body),
		s.client.Index.WithDocumentID(id),
		s.client.Index.WithContext(ctx),
	)
	if err != nil {
		return fmt.Errorf("向 Elasticsearch 发送索引请求失败: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return errors.New("索引文档时 Elasticsearch 返回错误: " + res.String())
	}
	return nil
}
