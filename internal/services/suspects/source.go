package suspects

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/go-redis/redis/v8"
	"gopkg.in/yaml.v3"

	"sentinel-engine-go/internal/models"
)

// Source loads the full suspect gallery from wherever the suspect
// management service keeps it.
type Source interface {
	Load(ctx context.Context) ([]models.SuspectEntry, error)
	Name() string
}

type galleryFile struct {
	Suspects []models.SuspectEntry `json:"suspects" yaml:"suspects"`
}

// FileSource reads a JSON or YAML gallery file of the form
// {"suspects": [{"suspect_id": ..., "feature_vectors": [[...]], "active": true}]}.
type FileSource struct {
	Path string
}

func (s FileSource) Name() string { return "file:" + s.Path }

func (s FileSource) Load(_ context.Context) ([]models.SuspectEntry, error) {
	data, err := os.ReadFile(s.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to read gallery file: %w", err)
	}

	var gf galleryFile
	switch strings.ToLower(filepath.Ext(s.Path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &gf)
	default:
		err = json.Unmarshal(data, &gf)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse gallery file %s: %w", s.Path, err)
	}
	return gf.Suspects, nil
}

// RedisSource reads a Redis hash whose fields are suspect ids and whose
// values are JSON-encoded entries.
type RedisSource struct {
	Client *redis.Client
	Key    string
}

// NewRedisSource connects to Redis lazily; the first Load reports errors.
func NewRedisSource(addr, password string, db int, key string) *RedisSource {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	return &RedisSource{Client: client, Key: key}
}

func (s *RedisSource) Name() string { return "redis:" + s.Key }

func (s *RedisSource) Load(ctx context.Context) ([]models.SuspectEntry, error) {
	fields, err := s.Client.HGetAll(ctx, s.Key).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read gallery hash %s: %w", s.Key, err)
	}
	return decodeHash(fields)
}

// Close releases the Redis connection pool.
func (s *RedisSource) Close() error {
	return s.Client.Close()
}

func decodeHash(fields map[string]string) ([]models.SuspectEntry, error) {
	ids := make([]string, 0, len(fields))
	for id := range fields {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	entries := make([]models.SuspectEntry, 0, len(ids))
	for _, id := range ids {
		var e models.SuspectEntry
		if err := json.Unmarshal([]byte(fields[id]), &e); err != nil {
			return nil, fmt.Errorf("suspect %s: %w", id, err)
		}
		if e.SuspectID == "" {
			e.SuspectID = id
		}
		entries = append(entries, e)
	}
	return entries, nil
}
