package memcargo

import (
	"context"
	"sort"
	"sync"

	"github.com/BearBump/CargoTrack/internal/models"
	"github.com/BearBump/CargoTrack/internal/storage"
	"github.com/pkg/errors"
)

// Directory: справочник в памяти для storage_driver: memory и тестов.
type Directory struct {
	mu       sync.RWMutex
	users    map[int64]models.User
	branches map[int64]models.Branch
	settings map[string]models.Setting
}

var _ storage.Directory = (*Directory)(nil)

func NewDirectory() *Directory {
	return &Directory{
		users:    make(map[int64]models.User),
		branches: make(map[int64]models.Branch),
		settings: make(map[string]models.Setting),
	}
}

func (d *Directory) PutUser(u models.User) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.users[u.ID] = u
}

func (d *Directory) PutBranch(b models.Branch) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.branches[b.ID] = b
}

func (d *Directory) GetUser(ctx context.Context, id int64) (*models.User, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	u, ok := d.users[id]
	if !ok {
		return nil, errors.Wrapf(models.ErrNotFound, "user %d", id)
	}
	return &u, nil
}

func (d *Directory) GetBranch(ctx context.Context, id int64) (*models.Branch, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	b, ok := d.branches[id]
	if !ok {
		return nil, errors.Wrapf(models.ErrNotFound, "branch %d", id)
	}
	return &b, nil
}

func (d *Directory) ListActiveBranches(ctx context.Context) ([]*models.Branch, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]*models.Branch, 0, len(d.branches))
	for _, b := range d.branches {
		if b.IsActive {
			b := b
			out = append(out, &b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (d *Directory) GetSetting(ctx context.Context, key string) (string, bool, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	s, ok := d.settings[key]
	return s.Value, ok, nil
}

func (d *Directory) ListSettings(ctx context.Context) ([]models.Setting, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]models.Setting, 0, len(d.settings))
	for _, s := range d.settings {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

func (d *Directory) UpsertSetting(ctx context.Context, s models.Setting) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.settings[s.Key] = s
	return nil
}
