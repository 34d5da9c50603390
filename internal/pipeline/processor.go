// Package pipeline 定义了知识库文档的导入流程：读取文本、切块、写入检索索引。
package pipeline

import (
	"context"
	"crypto/md5"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"dreamcatcher-llm-go/pkg/es"
	"dreamcatcher-llm-go/pkg/log"
)

// 默认切块参数
const (
	DefaultChunkSize    = 1000
	DefaultChunkOverlap = 100
)

// 只导入这些扩展名的纯文本文件
var textExtensions = map[string]bool{".md": true, ".txt": true}

// Indexer 写入一个知识库文档，es.KnowledgeSearcher 满足该接口。
// 相同 id 的重复写入会覆盖旧文档，因此导入是幂等的。
type Indexer interface {
	Index(ctx context.Context, id string, doc es.KnowledgeDocument) error
}

// Processor 封装了知识库导入的依赖和参数。
type Processor struct {
	indexer      Indexer
	chunkSize    int
	chunkOverlap int
}

// NewProcessor 创建一个新的 Processor 实例。
func NewProcessor(indexer Indexer) *Processor {
	return &Processor{
		indexer:      indexer,
		chunkSize:    DefaultChunkSize,
		chunkOverlap: DefaultChunkOverlap,
	}
}

// SeedDir 扫描目录下的 .md/.txt 文件并逐个导入，返回成功导入的文件数。
// 单个文件失败只记录日志，不影响其余文件。
func (p *Processor) SeedDir(ctx context.Context, dir string) (int, error) {
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		log.Infof("[Processor] 目录 '%s' 不存在或不可用，跳过知识库导入", dir)
		return 0, nil
	}

	imported := 0
	walkErr := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if d.IsDir() || !textExtensions[strings.ToLower(filepath.Ext(path))] {
			return nil
		}
		if err := p.ProcessFile(ctx, path); err != nil {
			log.Warnf("[Processor] 导入文件失败: %s, err=%v", path, err)
			return nil
		}
		imported++
		return nil
	})
	if walkErr != nil {
		return imported, fmt.Errorf("遍历知识库目录失败: %w", walkErr)
	}
	log.Infof("[Processor] 知识库导入完成, 共 %d 个文件", imported)
	return imported, nil
}

// ProcessFile 读取单个文件、切块并写入索引。文档 ID 由文件内容的 MD5 与块序号组成。
func (p *Processor) ProcessFile(ctx context.Context, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("读取文件失败: %w", err)
	}
	if !utf8.Valid(data) {
		return errors.New("文件不是有效的 UTF-8 文本")
	}
	text := strings.TrimSpace(string(data))
	if text == "" {
		return errors.New("文件内容为空")
	}

	title := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	fileMD5 := fmt.Sprintf("%x", md5.Sum(data))
	chunks := splitText(text, p.chunkSize, p.chunkOverlap)
	log.Infof("[Processor] 文件 '%s' 切分为 %d 个分块", title, len(chunks))

	for i, chunk := range chunks {
		id := fmt.Sprintf("%s_%d", fileMD5, i)
		if err := p.indexer.Index(ctx, id, es.KnowledgeDocument{Title: title, Content: chunk}); err != nil {
			return fmt.Errorf("索引块 %d 失败: %w", i, err)
		}
	}
	return nil
}

// splitText 将长文本按指定大小和重叠进行切分。
func splitText(text string, chunkSize int, chunkOverlap int) []string {
	if chunkSize <= chunkOverlap {
		return simpleSplit(text, chunkSize)
	}

	runes := []rune(text)
	if len(runes) == 0 {
		return nil
	}

	var chunks []string
	step := chunkSize - chunkOverlap
	for i := 0; i < len(runes); i += step {
		end := i + chunkSize
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, string(runes[i:end]))
		if end == len(runes) {
			break
		}
	}
	return chunks
}

func simpleSplit(text string, chunkSize int) []string {
	if chunkSize <= 0 {
		return []string{text}
	}
	runes := []rune(text)
	var chunks []string
	for i := 0; i < len(runes); i += chunkSize {
		end := i + chunkSize
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, string(runes[i:end]))
	}
	return chunks
}
