// Package repository 提供了数据访问层的实现。
package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"dreamcatcher-llm-go/internal/model"
	"dreamcatcher-llm-go/pkg/log"
)

// ErrInvalidSessionID 表示会话 ID 不能安全地用作文件名。
var ErrInvalidSessionID = errors.New("invalid session id")

var (
	sessionIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,128}$`)
	// 会话 ID 之后的部分：<YYYYMMDD_HHMMSS>[_<seq>].json
	snapshotSuffix = regexp.MustCompile(`^(\d{8}_\d{6})(?:_(\d+))?\.json$`)
)

// ValidSessionID 报告 id 是否可以作为会话 ID。
func ValidSessionID(id string) bool {
	return sessionIDPattern.MatchString(id)
}

// HistoryRepository 定义了聊天历史快照的操作接口。
type HistoryRepository interface {
	// Save 为会话写入一个新的快照文件并返回其路径，从不覆盖已有快照。
	Save(ctx context.Context, sessionID string, history []model.ChatMessage) (string, error)
	// Load 返回会话最新快照中的历史；没有快照或读取失败时返回空切片。
	Load(ctx context.Context, sessionID string) []model.ChatMessage
	// Sessions 列出目录中出现过的会话 ID。
	Sessions(ctx context.Context) ([]string, error)
}

// SnapshotArchiver 在快照写入本地后额外归档一份（例如对象存储）。
type SnapshotArchiver interface {
	Archive(ctx context.Context, name string, data []byte) error
}

type fileHistoryRepository struct {
	dir      string
	locker   SessionLocker
	archiver SnapshotArchiver
	now      func() time.Time
}

// NewHistoryRepository 创建基于本地目录的 HistoryRepository。
// locker 为 nil 时使用进程内锁；archiver 为 nil 时不归档。
func NewHistoryRepository(dir string, locker SessionLocker, archiver SnapshotArchiver) HistoryRepository {
	if locker == nil {
		locker = NewLocalSessionLocker()
	}
	return &fileHistoryRepository{dir: dir, locker: locker, archiver: archiver, now: time.Now}
}

type snapshotFile struct {
	path     string
	sequence int64
	modTime  time.Time
}

// newer 定义快照的先后：有序号的快照按序号比较，旧格式快照按修改时间且总是排在有序号的快照之前。
func (a snapshotFile) newer(b snapshotFile) bool {
	if a.sequence != b.sequence {
		return a.sequence > b.sequence
	}
	return a.modTime.After(b.modTime)
}

// Save 在会话锁内分配下一个序号，并通过临时文件 + rename 原子地写入快照。
func (r *fileHistoryRepository) Save(ctx context.Context, sessionID string, history []model.ChatMessage) (string, error) {
	if !ValidSessionID(sessionID) {
		return "", fmt.Errorf("%w: %q", ErrInvalidSessionID, sessionID)
	}
	if err := os.MkdirAll(r.dir, 0o755); err != nil {
		return "", fmt.Errorf("保存历史记录失败: %w", err)
	}

	unlock, err := r.locker.Lock(ctx, sessionID)
	if err != nil {
		return "", fmt.Errorf("获取会话锁失败: %w", err)
	}
	defer unlock()

	snapshots, err := r.snapshots(sessionID)
	if err != nil {
		return "", fmt.Errorf("保存历史记录失败: %w", err)
	}
	var seq int64 = 1
	if len(snapshots) > 0 {
		seq = snapshots[0].sequence + 1
	}

	if history == nil {
		history = []model.ChatMessage{}
	}
	ts := model.SnapshotTime(r.now())
	data, err := json.MarshalIndent(model.ChatSnapshot{
		SessionID: sessionID,
		Timestamp: ts,
		Sequence:  seq,
		History:   history,
	}, "", "  ")
	if err != nil {
		return "", fmt.Errorf("保存历史记录失败: %w", err)
	}

	name := fmt.Sprintf("%s_%s_%06d.json", sessionID, ts, seq)
	path := filepath.Join(r.dir, name)
	if err := writeFileAtomic(r.dir, path, data); err != nil {
		return "", fmt.Errorf("保存历史记录失败: %w", err)
	}

	if r.archiver != nil {
		if err := r.archiver.Archive(ctx, name, data); err != nil {
			log.Warnw("归档聊天快照失败", "session_id", sessionID, "file", name, "error", err)
		}
	}
	return path, nil
}

// Load 读取最新快照，所有失败都只记录日志并返回空历史。
func (r *fileHistoryRepository) Load(_ context.Context, sessionID string) []model.ChatMessage {
	empty := []model.ChatMessage{}
	if !ValidSessionID(sessionID) {
		return empty
	}
	snapshots, err := r.snapshots(sessionID)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			log.Warnw("加载历史记录失败", "session_id", sessionID, "error", err)
		}
		return empty
	}
	if len(snapshots) == 0 {
		return empty
	}

	data, err := os.ReadFile(snapshots[0].path)
	if err != nil {
		log.Warnw("加载历史记录失败", "session_id", sessionID, "error", err)
		return empty
	}
	var snap model.ChatSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		log.Warnw("加载历史记录失败", "session_id", sessionID, "file", snapshots[0].path, "error", err)
		return empty
	}
	if snap.History == nil {
		return empty
	}
	return snap.History
}

// Sessions 列出目录中所有快照对应的会话 ID（去重、排序）。
func (r *fileHistoryRepository) Sessions(_ context.Context) ([]string, error) {
	entries, err := os.ReadDir(r.dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []string{}, nil
		}
		return nil, err
	}
	seen := make(map[string]struct{})
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if id, ok := sessionOf(e.Name()); ok {
			seen[id] = struct{}{}
		}
	}
	ids := make([]string, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

// snapshots 返回会话的全部快照，最新的在前。
func (r *fileHistoryRepository) snapshots(sessionID string) ([]snapshotFile, error) {
	entries, err := os.ReadDir(r.dir)
	if err != nil {
		return nil, err
	}
	prefix := sessionID + "_"
	var out []snapshotFile
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, prefix) {
			continue
		}
		m := snapshotSuffix.FindStringSubmatch(strings.TrimPrefix(name, prefix))
		if m == nil {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		sf := snapshotFile{path: filepath.Join(r.dir, name), modTime: info.ModTime()}
		if m[2] != "" {
			sf.sequence, _ = strconv.ParseInt(m[2], 10, 64)
		}
		out = append(out, sf)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].newer(out[j]) })
	return out, nil
}

// sessionOf 从快照文件名中解析出会话 ID。
func sessionOf(name string) (string, bool) {
	// 会话 ID 本身可能包含 '_'，因此从右侧匹配时间戳部分
	for i := len(name) - 1; i > 0; i-- {
		if name[i] != '_' {
			continue
		}
		if snapshotSuffix.MatchString(name[i+1:]) && ValidSessionID(name[:i]) {
			return name[:i], true
		}
	}
	return "", false
}

func writeFileAtomic(dir, path string, data []byte) error {
	tmp, err := os.CreateTemp(dir, ".tmp-snapshot-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return err
	}
	return nil
}
