package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"

	"github.com/kkogteva6/ReadingPlatform/internal/model"
)

// ErrLockHeld is returned while another request holds the session lock
var ErrLockHeld = errors.New("questionnaire lock held")

// QuestionnaireCache keeps wizard sessions between requests
type QuestionnaireCache interface {
	Save(ctx context.Context, s *model.QuestionnaireSession) error
	Get(ctx context.Context, id string) (*model.QuestionnaireSession, error)
	Delete(ctx context.Context, id string) error

	// Current returns the id of the reader's live session, or ""
	Current(ctx context.Context, readerID string) (string, error)
	SetCurrent(ctx context.Context, readerID, sessionID string) error
	// RefreshCurrent extends the pointer while it still names sessionID
	RefreshCurrent(ctx context.Context, readerID, sessionID string) error
	// ClearCurrent drops the pointer only if it still names sessionID
	ClearCurrent(ctx context.Context, readerID, sessionID string) error

	// AcquireLock returns a release func, or ErrLockHeld
	AcquireLock(ctx context.Context, sessionID, token string) (func(context.Context) error, error)
}

type questionnaireCache struct {
	client  redis.UniversalClient
	ttl     time.Duration
	lockTTL time.Duration
}

// deleteIfScript deletes the key only if it still holds ARGV[1]
var deleteIfScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

var expireIfScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0
`)

func NewQuestionnaireCache(client redis.UniversalClient, ttl, lockTTL time.Duration) QuestionnaireCache {
	return &questionnaireCache{
		client:  client,
		ttl:     ttl,
		lockTTL: lockTTL,
	}
}

func (c *questionnaireCache) sessionKey(id string) string {
	return fmt.Sprintf("questionnaire:%s", id)
}

func (c *questionnaireCache) currentKey(readerID string) string {
	return fmt.Sprintf("reader:%s:questionnaire", readerID)
}

func (c *questionnaireCache) lockKey(id string) string {
	return fmt.Sprintf("questionnaire:%s:lock", id)
}

func (c *questionnaireCache) Save(ctx context.Context, s *model.QuestionnaireSession) error {
	data, err := json.Marshal(s)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, c.sessionKey(s.ID), data, c.ttl).Err()
}

// Get returns nil, nil for an unknown or expired session
func (c *questionnaireCache) Get(ctx context.Context, id string) (*model.QuestionnaireSession, error) {
	data, err := c.client.Get(ctx, c.sessionKey(id)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var s model.QuestionnaireSession
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("corrupt questionnaire session %s: %w", id, err)
	}
	return &s, nil
}

func (c *questionnaireCache) Delete(ctx context.Context, id string) error {
	return c.client.Del(ctx, c.sessionKey(id)).Err()
}

func (c *questionnaireCache) Current(ctx context.Context, readerID string) (string, error) {
	id, err := c.client.Get(ctx, c.currentKey(readerID)).Result()
	if err == redis.Nil {
		return "", nil
	}
	return id, err
}

func (c *questionnaireCache) SetCurrent(ctx context.Context, readerID, sessionID string) error {
	return c.client.Set(ctx, c.currentKey(readerID), sessionID, c.ttl).Err()
}

func (c *questionnaireCache) RefreshCurrent(ctx context.Context, readerID, sessionID string) error {
	return expireIfScript.Run(ctx, c.client, []string{c.currentKey(readerID)}, sessionID, c.ttl.Milliseconds()).Err()
}

func (c *questionnaireCache) ClearCurrent(ctx context.Context, readerID, sessionID string) error {
	return deleteIfScript.Run(ctx, c.client, []string{c.currentKey(readerID)}, sessionID).Err()
}

func (c *questionnaireCache) AcquireLock(ctx context.Context, sessionID, token string) (func(context.Context) error, error) {
	key := c.lockKey(sessionID)
	ok, err := c.client.SetNX(ctx, key, token, c.lockTTL).Result()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrLockHeld
	}
	release := func(ctx context.Context) error {
		return deleteIfScript.Run(ctx, c.client, []string{key}, token).Err()
	}
	return release, nil
}
