package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"dreamcatcher-llm-go/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRepo(t *testing.T) (*fileHistoryRepository, string) {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "chat_history")
	repo := NewHistoryRepository(dir, nil, nil).(*fileHistoryRepository)
	fixed := time.Date(2024, 5, 1, 12, 0, 0, 0, time.Local)
	repo.now = func() time.Time { return fixed }
	return repo, dir
}

func msgs(contents ...string) []model.ChatMessage {
	out := make([]model.ChatMessage, 0, len(contents))
	for i, c := range contents {
		role := model.RoleUser
		if i%2 == 1 {
			role = model.RoleAssistant
		}
		out = append(out, model.ChatMessage{Role: role, Content: c})
	}
	return out
}

func TestHistory_RoundTrip(t *testing.T) {
	repo, dir := newTestRepo(t)
	ctx := context.Background()

	path, err := repo.Save(ctx, "s1", msgs("hello", "hi", "how are you"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "s1_20240501_120000_000001.json"), path)

	got := repo.Load(ctx, "s1")
	assert.Equal(t, msgs("hello", "hi", "how are you"), got)
}

func TestHistory_LoadMissingIsEmpty(t *testing.T) {
	repo, _ := newTestRepo(t)
	got := repo.Load(context.Background(), "nobody")
	require.NotNil(t, got)
	assert.Empty(t, got)
}

func TestHistory_SequentialSavesReturnNewest(t *testing.T) {
	repo, dir := newTestRepo(t)
	ctx := context.Background()

	_, err := repo.Save(ctx, "s1", msgs("first"))
	require.NoError(t, err)
	_, err = repo.Save(ctx, "s1", msgs("first", "second"))
	require.NoError(t, err)

	// both saves happen within the same second; the sequence decides
	assert.Equal(t, msgs("first", "second"), repo.Load(ctx, "s1"))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 2, "snapshots are never overwritten")
}

func TestHistory_PrefixSessionsDoNotCollide(t *testing.T) {
	repo, _ := newTestRepo(t)
	ctx := context.Background()

	_, err := repo.Save(ctx, "abc", msgs("from abc"))
	require.NoError(t, err)
	_, err = repo.Save(ctx, "abc_def", msgs("from abc_def"))
	require.NoError(t, err)
	_, err = repo.Save(ctx, "abc_def", msgs("from abc_def again"))
	require.NoError(t, err)

	assert.Equal(t, msgs("from abc"), repo.Load(ctx, "abc"))
	assert.Equal(t, msgs("from abc_def again"), repo.Load(ctx, "abc_def"))

	ids, err := repo.Sessions(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"abc", "abc_def"}, ids)
}

func TestHistory_LegacySnapshotsUseModTime(t *testing.T) {
	repo, dir := newTestRepo(t)
	ctx := context.Background()
	require.NoError(t, os.MkdirAll(dir, 0o755))

	writeLegacy := func(name string, content string, mtime time.Time) {
		data, err := json.Marshal(model.ChatSnapshot{SessionID: "old", History: msgs(content)})
		require.NoError(t, err)
		p := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(p, data, 0o644))
		require.NoError(t, os.Chtimes(p, mtime, mtime))
	}
	base := time.Now().Add(-time.Hour)
	writeLegacy("old_20240101_000002.json", "older by mtime", base)
	writeLegacy("old_20240101_000001.json", "newer by mtime", base.Add(time.Minute))

	assert.Equal(t, msgs("newer by mtime"), repo.Load(ctx, "old"))

	// a sequenced snapshot always supersedes legacy ones
	_, err := repo.Save(ctx, "old", msgs("sequenced"))
	require.NoError(t, err)
	assert.Equal(t, msgs("sequenced"), repo.Load(ctx, "old"))
}

func TestHistory_CorruptSnapshotIsSwallowed(t *testing.T) {
	repo, dir := newTestRepo(t)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad_20240101_000000_000001.json"), []byte("{not json"), 0o644))

	got := repo.Load(context.Background(), "bad")
	require.NotNil(t, got)
	assert.Empty(t, got)
}

func TestHistory_InvalidSessionID(t *testing.T) {
	repo, _ := newTestRepo(t)
	ctx := context.Background()

	_, err := repo.Save(ctx, "../escape", msgs("x"))
	require.ErrorIs(t, err, ErrInvalidSessionID)
	assert.Empty(t, repo.Load(ctx, "../escape"))
}

func TestHistory_ConcurrentSavesGetDistinctSequences(t *testing.T) {
	repo, dir := newTestRepo(t)
	ctx := context.Background()

	const writers = 16
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := repo.Save(ctx, "shared", msgs(fmt.Sprintf("writer %d", i)))
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, writers)

	snaps, err := repo.snapshots("shared")
	require.NoError(t, err)
	assert.EqualValues(t, writers, snaps[0].sequence)
}

type recordingArchiver struct {
	mu    sync.Mutex
	names []string
}

func (a *recordingArchiver) Archive(_ context.Context, name string, _ []byte) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.names = append(a.names, name)
	return nil
}

func TestHistory_ArchivesEachSnapshot(t *testing.T) {
	arch := &recordingArchiver{}
	repo := NewHistoryRepository(t.TempDir(), nil, arch)

	_, err := repo.Save(context.Background(), "s1", msgs("a"))
	require.NoError(t, err)
	require.Len(t, arch.names, 1)
	assert.Regexp(t, `^s1_\d{8}_\d{6}_000001\.json$`, arch.names[0])
}

func TestLocalSessionLocker_ReleasesEntries(t *testing.T) {
	l := NewLocalSessionLocker().(*localSessionLocker)
	unlock, err := l.Lock(context.Background(), "s")
	require.NoError(t, err)
	assert.Len(t, l.locks, 1)
	unlock()
	assert.Empty(t, l.locks)
}
