package record

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/coldkeep/coldkeep/internal/tier"
)

// RedisStore persists file records in Redis: one JSON document per record,
// a set of all ids, and a sorted set indexing hot records by expiry.
type RedisStore struct {
	client *redis.Client
	now    func() time.Time
}

// NewRedisStore connects to the Redis at url and verifies it responds.
func NewRedisStore(url string) (*RedisStore, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect redis: %w", err)
	}
	return &RedisStore{client: client, now: time.Now}, nil
}

// NewRedisStoreWithClient wraps an existing client. Tests use this to point
// the store at a fake server.
func NewRedisStoreWithClient(client *redis.Client) *RedisStore {
	return &RedisStore{client: client, now: time.Now}
}

// Close closes the underlying Redis client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

func (s *RedisStore) save(ctx context.Context, f File) error {
	payload, err := json.Marshal(f)
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, fileKey(f.ID), payload, 0)
	pipe.SAdd(ctx, fileAllKey(), f.ID)
	pipe.ZRem(ctx, hotIndexKey(), f.ID)
	if f.Tier == tier.Hot && f.HotUntil != nil {
		pipe.ZAdd(ctx, hotIndexKey(), redis.Z{Score: float64(f.HotUntil.Unix()), Member: f.ID})
	}
	_, err = pipe.Exec(ctx)
	return err
}

// Create inserts a new record and returns it.
func (s *RedisStore) Create(ctx context.Context, t tier.Tier, filename, path string, hotUntil *time.Time) (File, error) {
	now := s.now().UTC()
	f := File{
		ID:        uuid.NewString(),
		Tier:      t,
		Filename:  filename,
		Path:      path,
		HotUntil:  cloneTime(hotUntil),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.save(ctx, f); err != nil {
		return File{}, err
	}
	return f, nil
}

// FindByID returns the record with the given id.
func (s *RedisStore) FindByID(ctx context.Context, id string) (File, error) {
	data, err := s.client.Get(ctx, fileKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return File{}, ErrNotFound
	}
	if err != nil {
		return File{}, err
	}
	var f File
	if err := json.Unmarshal(data, &f); err != nil {
		return File{}, fmt.Errorf("unmarshal record %s: %w", id, err)
	}
	return f, nil
}

// Update applies patch to the record with the given id.
func (s *RedisStore) Update(ctx context.Context, id string, patch Update) (File, error) {
	f, err := s.FindByID(ctx, id)
	if err != nil {
		return File{}, err
	}
	f.apply(patch, s.now().UTC())
	if err := s.save(ctx, f); err != nil {
		return File{}, err
	}
	return f, nil
}

// Delete removes the record with the given id.
func (s *RedisStore) Delete(ctx context.Context, id string) error {
	if _, err := s.FindByID(ctx, id); err != nil {
		return err
	}
	pipe := s.client.TxPipeline()
	pipe.Del(ctx, fileKey(id))
	pipe.SRem(ctx, fileAllKey(), id)
	pipe.ZRem(ctx, hotIndexKey(), id)
	_, err := pipe.Exec(ctx)
	return err
}

// FindExpiredHot returns hot records whose expiry is not after now, using
// the expiry index to avoid a full scan.
func (s *RedisStore) FindExpiredHot(ctx context.Context, now time.Time) ([]File, error) {
	ids, err := s.client.ZRangeByScore(ctx, hotIndexKey(), &redis.ZRangeBy{
		Min: "-inf",
		Max: strconv.FormatInt(now.Unix(), 10),
	}).Result()
	if err != nil {
		return nil, err
	}
	files, err := s.fetch(ctx, ids)
	if err != nil {
		return nil, err
	}
	sortFiles(files)
	return files, nil
}

// FindAll returns every record, oldest first.
func (s *RedisStore) FindAll(ctx context.Context) ([]File, error) {
	ids, err := s.client.SMembers(ctx, fileAllKey()).Result()
	if err != nil {
		return nil, err
	}
	files, err := s.fetch(ctx, ids)
	if err != nil {
		return nil, err
	}
	sortFiles(files)
	return files, nil
}

// fetch loads the records for ids in one pipeline, skipping ids whose
// document has disappeared since the index was read.
func (s *RedisStore) fetch(ctx context.Context, ids []string) ([]File, error) {
	if len(ids) == 0 {
		return []File{}, nil
	}

	pipe := s.client.Pipeline()
	cmds := make(map[string]*redis.StringCmd, len(ids))
	for _, id := range ids {
		cmds[id] = pipe.Get(ctx, fileKey(id))
	}
	_, _ = pipe.Exec(ctx)

	out := make([]File, 0, len(ids))
	for _, id := range ids {
		data, err := cmds[id].Bytes()
		if err != nil {
			continue
		}
		var f File
		if err := json.Unmarshal(data, &f); err != nil {
			continue
		}
		out = append(out, f)
	}
	return out, nil
}

func fileKey(id string) string {
	return "coldkeep:file:" + id
}

func fileAllKey() string {
	return "coldkeep:files"
}

func hotIndexKey() string {
	return "coldkeep:files:hot"
}

var _ Store = (*RedisStore)(nil)
