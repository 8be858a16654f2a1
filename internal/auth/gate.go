package auth

import (
	"context"
	"crypto/subtle"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

// accessKeyName is the app_config row holding the shared access key.
const accessKeyName = "access_key"

var ErrInvalidKey = errors.New("incorrect access key")

// KeySource returns the configured access key, or "" when none is set.
type KeySource interface {
	AccessKey(ctx context.Context) (string, error)
}

// ConfigRepository reads the access key from the app_config table.
type ConfigRepository struct {
	db *sql.DB
}

// NewConfigRepository creates a repo.
func NewConfigRepository(db *sql.DB) *ConfigRepository {
	return &ConfigRepository{db: db}
}

// AccessKey implements KeySource.
func (r *ConfigRepository) AccessKey(ctx context.Context) (string, error) {
	var value string
	err := r.db.QueryRowContext(ctx, `SELECT value FROM app_config WHERE key = $1`, accessKeyName).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return value, err
}

// Gate trades the shared access key for session tokens.
type Gate struct {
	keys   KeySource
	tokens *Tokens
}

// NewGate builds a gate.
func NewGate(keys KeySource, tokens *Tokens) *Gate {
	return &Gate{keys: keys, tokens: tokens}
}

// Login checks key and issues a token pair. An unset access key rejects
// every login.
func (g *Gate) Login(ctx context.Context, key string) (TokenPair, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return TokenPair{}, ErrInvalidKey
	}
	want, err := g.keys.AccessKey(ctx)
	if err != nil {
		return TokenPair{}, fmt.Errorf("load access key: %w", err)
	}
	if want == "" || subtle.ConstantTimeCompare([]byte(key), []byte(want)) != 1 {
		return TokenPair{}, ErrInvalidKey
	}
	return g.tokens.Issue()
}

// Refresh issues a new pair from a refresh token.
func (g *Gate) Refresh(refreshToken string) (TokenPair, error) {
	return g.tokens.Refresh(refreshToken)
}
