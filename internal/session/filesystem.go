package session

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/haasonsaas/sage/pkg/models"
)

// FileStore persists each session as a JSON file under a root directory.
type FileStore struct {
	mu   sync.Mutex
	root string
}

// NewFileStore creates a file-backed store rooted at dir, creating the
// directory if needed.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &FileStore{root: dir}, nil
}

func (s *FileStore) pathFor(id string) string {
	return filepath.Join(s.root, id+".json")
}

// Save implements Store. The write goes through a temp file and rename so a
// crash never leaves a half-written session.
func (s *FileStore) Save(_ context.Context, session *models.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.MarshalIndent(session, "", "  ")
	if err != nil {
		return err
	}

	path := s.pathFor(session.ID)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// Load implements Store.
func (s *FileStore) Load(_ context.Context, id string) (*models.Session, error) {
	data, err := os.ReadFile(s.pathFor(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	var session models.Session
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, err
	}
	return &session, nil
}

// List implements Store. Results are sorted by creation time, newest first.
func (s *FileStore) List(ctx context.Context) ([]*models.Session, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return nil, err
	}

	var sessions []*models.Session
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		id := strings.TrimSuffix(entry.Name(), ".json")
		session, err := s.Load(ctx, id)
		if err != nil {
			continue
		}
		sessions = append(sessions, session)
	}
	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].CreatedAt.After(sessions[j].CreatedAt)
	})
	return sessions, nil
}

// Delete implements Store.
func (s *FileStore) Delete(_ context.Context, id string) error {
	err := os.Remove(s.pathFor(id))
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

// Exists implements Store.
func (s *FileStore) Exists(_ context.Context, id string) (bool, error) {
	_, err := os.Stat(s.pathFor(id))
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, err
}
