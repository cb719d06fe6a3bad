package directory

import (
	"context"
	"sync"
	"time"

	"github.com/fathima-sithara/dm-service/internal/domain"
)

type memUser struct {
	username  string
	following map[string]struct{}
	createdAt time.Time
}

type MemoryDirectory struct {
	mu    sync.RWMutex
	users map[string]*memUser
}

func NewMemoryDirectory() *MemoryDirectory {
	return &MemoryDirectory{users: make(map[string]*memUser)}
}

func (d *MemoryDirectory) UserExists(_ context.Context, id string) (bool, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	_, ok := d.users[id]
	return ok, nil
}

func (d *MemoryDirectory) IsMutualFollow(_ context.Context, a, b string) (bool, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.follows(a, b) && d.follows(b, a), nil
}

func (d *MemoryDirectory) follows(a, b string) bool {
	u, ok := d.users[a]
	if !ok {
		return false
	}
	_, ok = u.following[b]
	return ok
}

func (d *MemoryDirectory) Follow(_ context.Context, follower, followee string) error {
	if follower == followee {
		return domain.ErrInvalidParticipants
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	u, ok := d.users[follower]
	if !ok {
		return domain.ErrUserNotFound
	}
	if _, ok := d.users[followee]; !ok {
		return domain.ErrUserNotFound
	}
	u.following[followee] = struct{}{}
	return nil
}

func (d *MemoryDirectory) Unfollow(_ context.Context, follower, followee string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	u, ok := d.users[follower]
	if !ok {
		return domain.ErrUserNotFound
	}
	delete(u.following, followee)
	return nil
}

func (d *MemoryDirectory) CreateUser(_ context.Context, id, username string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.users[id]; ok {
		return nil
	}
	d.users[id] = &memUser{
		username:  username,
		following: make(map[string]struct{}),
		createdAt: time.Now().UTC(),
	}
	return nil
}

var (
	_ Directory = (*MemoryDirectory)(nil)
	_ Directory = (*MongoDirectory)(nil)
)
