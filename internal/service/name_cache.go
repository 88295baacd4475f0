package service

import (
	"context"
	"sync"

	"notesync-server/internal/repository"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

const UnknownUserName = "Unknown User"

// NameCache memoizes user display names for the life of the process.
// Entries are never invalidated. Failed lookups return UnknownUserName and
// are not cached.
type NameCache struct {
	users repository.UserRepository
	log   *zap.Logger

	mu    sync.RWMutex
	names map[string]string
	group singleflight.Group
}

func NewNameCache(users repository.UserRepository, log *zap.Logger) *NameCache {
	if log == nil {
		log = zap.NewNop()
	}
	return &NameCache{
		users: users,
		log:   log,
		names: make(map[string]string),
	}
}

func (c *NameCache) Resolve(ctx context.Context, userID string) string {
	c.mu.RLock()
	name, ok := c.names[userID]
	c.mu.RUnlock()
	if ok {
		return name
	}

	v, err, _ := c.group.Do(userID, func() (interface{}, error) {
		user, err := c.users.FindByID(ctx, userID)
		if err != nil {
			return nil, err
		}

		c.mu.Lock()
		c.names[userID] = user.Name
		c.mu.Unlock()
		return user.Name, nil
	})
	if err != nil {
		c.log.Debug("display name lookup failed", zap.String("user_id", userID), zap.Error(err))
		return UnknownUserName
	}

	return v.(string)
}

func (c *NameCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.names)
}
