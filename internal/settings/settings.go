// Package settings stores the shared display preferences of the app.
package settings

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"sync"

	"github.com/redis/go-redis/v9"
)

var (
	ErrUnknownKey   = errors.New("unknown setting")
	ErrInvalidValue = errors.New("invalid setting value")
)

type definition struct {
	fallback string
	valid    func(string) bool
}

var (
	accentPattern = regexp.MustCompile(`^[A-Z][a-z]+(-[0-9]00)?$`)
	hexPattern    = regexp.MustCompile(`^#[0-9a-fA-F]{6}$`)
)

var definitions = map[string]definition{
	"theme": {
		fallback: "light",
		valid:    func(v string) bool { return v == "light" || v == "dark" },
	},
	"accent_color": {
		fallback: "Blue",
		valid:    accentPattern.MatchString,
	},
	"name_color": {
		fallback: "#d4af37",
		valid:    hexPattern.MatchString,
	},
}

// Keys lists the known setting keys.
func Keys() []string {
	keys := make([]string, 0, len(definitions))
	for k := range definitions {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Backend is raw key/value storage.
type Backend interface {
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Set(ctx context.Context, key, value string) error
}

// Settings validates keys and values and applies defaults.
type Settings struct {
	backend Backend
}

// New wraps backend.
func New(backend Backend) *Settings {
	return &Settings{backend: backend}
}

// Get returns the stored value or the key's default.
func (s *Settings) Get(ctx context.Context, key string) (string, error) {
	def, ok := definitions[key]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownKey, key)
	}
	v, ok, err := s.backend.Get(ctx, key)
	if err != nil {
		return "", fmt.Errorf("read setting %s: %w", key, err)
	}
	if !ok || !def.valid(v) {
		return def.fallback, nil
	}
	return v, nil
}

// Set stores value under key.
func (s *Settings) Set(ctx context.Context, key, value string) error {
	def, ok := definitions[key]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownKey, key)
	}
	if !def.valid(value) {
		return fmt.Errorf("%w: %s=%q", ErrInvalidValue, key, value)
	}
	if err := s.backend.Set(ctx, key, value); err != nil {
		return fmt.Errorf("write setting %s: %w", key, err)
	}
	return nil
}

// All returns every setting with defaults applied.
func (s *Settings) All(ctx context.Context) (map[string]string, error) {
	out := make(map[string]string, len(definitions))
	for _, k := range Keys() {
		v, err := s.Get(ctx, k)
		if err != nil {
			return nil, err
		}
		out[k] = v
	}
	return out, nil
}

// RedisBackend keeps settings in one Redis hash.
type RedisBackend struct {
	client  *redis.Client
	hashKey string
}

// NewRedisBackend creates a backend. An empty hashKey means
// "rollcall:settings".
func NewRedisBackend(client *redis.Client, hashKey string) *RedisBackend {
	if hashKey == "" {
		hashKey = "rollcall:settings"
	}
	return &RedisBackend{client: client, hashKey: hashKey}
}

func (b *RedisBackend) Get(ctx context.Context, key string) (string, bool, error) {
	v, err := b.client.HGet(ctx, b.hashKey, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

func (b *RedisBackend) Set(ctx context.Context, key, value string) error {
	return b.client.HSet(ctx, b.hashKey, key, value).Err()
}

// MemoryBackend is a process-local backend.
type MemoryBackend struct {
	mu     sync.RWMutex
	values map[string]string
}

// NewMemoryBackend creates an empty backend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{values: make(map[string]string)}
}

func (b *MemoryBackend) Get(_ context.Context, key string) (string, bool, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	v, ok := b.values[key]
	return v, ok, nil
}

func (b *MemoryBackend) Set(_ context.Context, key, value string) error {
	b.mu.Lock()
	b.values[key] = value
	b.mu.Unlock()
	return nil
}
