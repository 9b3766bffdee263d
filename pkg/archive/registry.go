package archive

import (
	"fmt"
	"os"
	"path"
	"sync"
	"time"

	"github.com/goccy/go-json"
)

const registryIndexFile = "sessions.json"

// SessionInfo is one registry entry: the record kept about a named capture
// session independent of whether its Archive is currently open.
type SessionInfo struct {
	Name      string    `json:"name"`
	Info      string    `json:"info,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// Registry indexes every named session under a root directory, so a caller
// can discover or resume sessions across process restarts without having to
// list the filesystem directly.
type Registry struct {
	mu      sync.Mutex
	rootDir string
}

// OpenRegistry returns a Registry rooted at rootDir, creating its index file
// if this is the first session ever recorded there.
func OpenRegistry(rootDir string) (*Registry, error) {
	if rootDir == "" {
		return nil, fmt.Errorf("archive: registry root dir can not be empty")
	}
	if err := os.MkdirAll(rootDir, dirPerm); err != nil {
		return nil, err
	}
	r := &Registry{rootDir: rootDir}
	if _, err := os.Stat(r.indexPath()); os.IsNotExist(err) {
		if err := r.save(nil); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// List returns every session recorded in the registry.
func (r *Registry) List() ([]SessionInfo, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.load()
}

// Ensure opens the named session's Archive, recording it in the registry
// index the first time it is seen. info is only stored on first creation.
func (r *Registry) Ensure(name, info string) (*Archive, error) {
	if name == "" {
		return nil, fmt.Errorf("archive: session name can not be empty")
	}

	r.mu.Lock()
	sessions, err := r.load()
	if err != nil {
		r.mu.Unlock()
		return nil, err
	}
	found := false
	for _, s := range sessions {
		if s.Name == name {
			found = true
			break
		}
	}
	if !found {
		sessions = append(sessions, SessionInfo{Name: name, Info: info, CreatedAt: time.Now()})
		if err := r.save(sessions); err != nil {
			r.mu.Unlock()
			return nil, err
		}
	}
	r.mu.Unlock()

	return Open(r.rootDir, name)
}

func (r *Registry) indexPath() string {
	return path.Join(r.rootDir, registryIndexFile)
}

func (r *Registry) load() ([]SessionInfo, error) {
	data, err := os.ReadFile(r.indexPath())
	if err != nil {
		return nil, fmt.Errorf("archive: read registry index: %w", err)
	}
	var sessions []SessionInfo
	if err := json.Unmarshal(data, &sessions); err != nil {
		return nil, fmt.Errorf("archive: unmarshal registry index: %w", err)
	}
	return sessions, nil
}

func (r *Registry) save(sessions []SessionInfo) error {
	if sessions == nil {
		sessions = []SessionInfo{}
	}
	data, err := json.Marshal(sessions)
	if err != nil {
		return err
	}
	return os.WriteFile(r.indexPath(), data, filePerm)
}
