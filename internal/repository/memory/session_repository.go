package memory

import (
	"time"

	"medibot-be/pkg/store"

	"github.com/patrickmn/go-cache"
)

type SessionRepository struct {
	cache *cache.Cache
}

func NewSessionRepository() *SessionRepository {
	// Sessions idle for an hour are dropped; purged every 10 minutes. The
	// durable transcript lives in the Persistence Gateway, so expiry only
	// costs a reload on the next init.
	c := cache.New(1*time.Hour, 10*time.Minute)
	return &SessionRepository{
		cache: c,
	}
}

func (r *SessionRepository) Save(session *store.Session) {
	r.cache.Set(session.UserId, session, cache.DefaultExpiration)
}

func (r *SessionRepository) Get(userId string) (*store.Session, bool) {
	if x, found := r.cache.Get(userId); found {
		return x.(*store.Session), true
	}
	return nil, false
}

func (r *SessionRepository) Delete(userId string) {
	r.cache.Delete(userId)
}
