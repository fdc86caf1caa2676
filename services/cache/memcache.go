package cache

import (
	"errors"
	"time"

	"github.com/bradfitz/gomemcache/memcache"

	"sjsage522/flightdealworker/logger"
)

// keyPrefix namespaces our keys on a shared memcached
const keyPrefix = "flightdeal:"

// MemcacheService implements CacheService using memcache
type MemcacheService struct {
	client *memcache.Client
	log    *logger.Logger
}

// NewMemcacheService creates a new memcache service
func NewMemcacheService(serverAddr string) *MemcacheService {
	client := memcache.New(serverAddr)
	client.Timeout = 2 * time.Second
	return &MemcacheService{client: client, log: logger.ForCache()}
}

// Get retrieves a value from memcache
func (m *MemcacheService) Get(key string) ([]byte, error) {
	item, err := m.client.Get(keyPrefix + key)
	if errors.Is(err, memcache.ErrCacheMiss) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		m.backendError("get", key, err)
		return nil, err
	}
	return item.Value, nil
}

// Set stores a value in memcache with an expiration time
func (m *MemcacheService) Set(key string, value []byte, expiration time.Duration) error {
	err := m.client.Set(&memcache.Item{
		Key:        keyPrefix + key,
		Value:      value,
		Expiration: int32(expiration.Seconds()),
	})
	if err != nil {
		m.backendError("set", key, err)
		return err
	}
	m.log.Debug().Str("key", key).Dur("expiration", expiration).Msg("Cache entry stored")
	return nil
}

// Delete removes a value from memcache
func (m *MemcacheService) Delete(key string) error {
	err := m.client.Delete(keyPrefix + key)
	if errors.Is(err, memcache.ErrCacheMiss) {
		return nil
	}
	if err != nil {
		m.backendError("delete", key, err)
	}
	return err
}

// Ping checks that the memcached server is reachable
func (m *MemcacheService) Ping() error {
	return m.client.Ping()
}

// backendError records a memcached failure; callers treat the cache as empty
func (m *MemcacheService) backendError(op, key string, err error) {
	m.log.Warn().Err(err).Str("op", op).Str("key", key).Msg("Memcached request failed")
}
