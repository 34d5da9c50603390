package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"dreamcatcher-llm-go/pkg/es"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memIndexer struct {
	docs map[string]es.KnowledgeDocument
	fail bool
}

func (m *memIndexer) Index(_ context.Context, id string, doc es.KnowledgeDocument) error {
	if m.fail {
		return errors.New("index unavailable")
	}
	if m.docs == nil {
		m.docs = map[string]es.KnowledgeDocument{}
	}
	m.docs[id] = doc
	return nil
}

func TestSplitText(t *testing.T) {
	text := strings.Repeat("梦", 25)
	chunks := splitText(text, 10, 2)
	require.Len(t, chunks, 3)
	assert.Equal(t, 10, len([]rune(chunks[0])))
	assert.Equal(t, 9, len([]rune(chunks[2])))

	assert.Equal(t, []string{"ab", "cd", "e"}, splitText("abcde", 2, 2))
	assert.Nil(t, splitText("", 10, 2))
}

func TestSeedDir(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "冥想.md"), []byte("冥想有助于放松"), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "sub"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "sub", "睡眠.txt"), []byte("规律作息"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "image.png"), []byte{0x89, 0x50}, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "empty.txt"), []byte("  "), 0o644))

	idx := &memIndexer{}
	n, err := NewProcessor(idx).SeedDir(context.Background(), dir)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	require.Len(t, idx.docs, 2)

	var titles []string
	for _, d := range idx.docs {
		titles = append(titles, d.Title)
	}
	assert.ElementsMatch(t, []string{"冥想", "睡眠"}, titles)

	// 重复导入覆盖同一批文档
	_, err = NewProcessor(idx).SeedDir(context.Background(), dir)
	require.NoError(t, err)
	assert.Len(t, idx.docs, 2)
}

func TestSeedDir_MissingDirAndIndexFailure(t *testing.T) {
	n, err := NewProcessor(&memIndexer{}).SeedDir(context.Background(), filepath.Join(t.TempDir(), "missing"))
	require.NoError(t, err)
	assert.Zero(t, n)

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.md"), []byte("内容"), 0o644))
	n, err = NewProcessor(&memIndexer{fail: true}).SeedDir(context.Background(), dir)
	require.NoError(t, err)
	assert.Zero(t, n)
}
