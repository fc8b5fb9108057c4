package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// queryBatch bounds the number of keys fetched per MGET.
const queryBatch = 256

// RedisStore keeps each document in its own string key. A per-collection set
// lists the document ids, and fields registered with WithIndex get one set per
// value so equality queries on them read only the matching ids.
//
// Key layout, with the collection in a hash tag so a collection stays on one
// cluster slot:
//
//	doc:{carts}:c1                document body
//	doc:{carts}                   set of ids
//	doc:{orders}#userId="u1"      set of ids whose userId is "u1"
type RedisStore struct {
	Client *redis.Client
	Prefix string
	// MaxRetries bounds optimistic Update attempts on one document; defaults to 32.
	MaxRetries int

	indexes map[string][]string
}

// NewRedisStore constructs a RedisStore using the "doc:" key prefix.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{Client: client, Prefix: "doc:"}
}

// WithIndex maintains value sets for fields of collection. Register indexes
// before the first write; documents written earlier are not backfilled.
func (s *RedisStore) WithIndex(collection string, fields ...string) *RedisStore {
	if s.indexes == nil {
		s.indexes = make(map[string][]string)
	}
	s.indexes[collection] = append(s.indexes[collection], fields...)
	return s
}

func (s *RedisStore) idsKey(collection string) string {
	return s.Prefix + "{" + collection + "}"
}

func (s *RedisStore) docKey(collection, id string) string {
	return s.idsKey(collection) + ":" + id
}

func (s *RedisStore) fieldKey(collection, field, token string) string {
	return s.idsKey(collection) + "#" + field + "=" + token
}

func (s *RedisStore) indexed(collection, field string) bool {
	for _, f := range s.indexes[collection] {
		if f == field {
			return true
		}
	}
	return false
}

func (s *RedisStore) retries() int {
	if s.MaxRetries <= 0 {
		return 32
	}
	return s.MaxRetries
}

func (s *RedisStore) ready() error {
	if s == nil || s.Client == nil {
		return errors.New("docstore: redis client not configured")
	}
	return nil
}

// Get loads a single document into dst.
func (s *RedisStore) Get(ctx context.Context, collection, id string, dst any) error {
	if err := s.ready(); err != nil {
		return err
	}
	if err := checkPath(collection, id); err != nil {
		return err
	}
	data, err := s.Client.Get(ctx, s.docKey(collection, id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return ErrNotFound
		}
		return err
	}
	return Document{ID: id, Data: data}.Decode(dst)
}

// Query returns every document in the collection matching all filters, ordered
// by id. The candidate ids come from the first filter on an indexed field, or
// from the collection set; every candidate is still checked against all filters.
func (s *RedisStore) Query(ctx context.Context, collection string, filters ...Filter) ([]Document, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	ids, err := s.Client.SMembers(ctx, s.candidates(collection, filters)).Result()
	if err != nil {
		return nil, err
	}
	docs := make([]Document, 0, len(ids))
	for start := 0; start < len(ids); start += queryBatch {
		end := min(start+queryBatch, len(ids))
		keys := make([]string, 0, end-start)
		for _, id := range ids[start:end] {
			keys = append(keys, s.docKey(collection, id))
		}
		values, err := s.Client.MGet(ctx, keys...).Result()
		if err != nil {
			return nil, err
		}
		for i, v := range values {
			body, ok := v.(string)
			if !ok {
				continue
			}
			data := json.RawMessage(body)
			if !matches(data, filters) {
				continue
			}
			docs = append(docs, Document{ID: ids[start+i], Data: data})
		}
	}
	sortDocuments(docs)
	return docs, nil
}

func (s *RedisStore) candidates(collection string, filters []Filter) string {
	for _, f := range filters {
		if !s.indexed(collection, f.Field) {
			continue
		}
		raw, err := json.Marshal(f.Value)
		if err != nil {
			continue
		}
		if token, ok := indexToken(raw); ok {
			return s.fieldKey(collection, f.Field, token)
		}
	}
	return s.idsKey(collection)
}

// Set writes doc under id, replacing it unless Merge is given.
func (s *RedisStore) Set(ctx context.Context, collection, id string, doc any, opts ...SetOption) error {
	if err := s.ready(); err != nil {
		return err
	}
	data, err := encode(doc)
	if err != nil {
		return err
	}
	merge := applySetOptions(opts).merge
	return s.Update(ctx, collection, id, func(current Document, exists bool) (any, error) {
		if !merge || !exists {
			return data, nil
		}
		return mergeFields(current.Data, data)
	})
}

// Delete removes a document. Deleting a missing document is not an error.
func (s *RedisStore) Delete(ctx context.Context, collection, id string) error {
	return s.Update(ctx, collection, id, func(_ Document, exists bool) (any, error) {
		if !exists {
			return nil, ErrSkip
		}
		return nil, nil
	})
}

// Add stores doc under a fresh UUID and returns the id.
func (s *RedisStore) Add(ctx context.Context, collection string, doc any) (string, error) {
	if err := s.ready(); err != nil {
		return "", err
	}
	data, err := encode(doc)
	if err != nil {
		return "", err
	}
	id := uuid.NewString()
	err = s.Update(ctx, collection, id, func(_ Document, exists bool) (any, error) {
		if exists {
			return nil, fmt.Errorf("docstore: id collision for %s/%s", collection, id)
		}
		return data, nil
	})
	if err != nil {
		return "", err
	}
	return id, nil
}

// Update runs fn inside a WATCH/MULTI transaction on the document key and
// retries when another writer changed that document first. Writes to other
// documents of the collection never conflict. A nil value from fn deletes the
// document.
func (s *RedisStore) Update(ctx context.Context, collection, id string, fn UpdateFunc) error {
	if err := s.ready(); err != nil {
		return err
	}
	if err := checkPath(collection, id); err != nil {
		return err
	}
	if fn == nil {
		return errors.New("docstore: update func is required")
	}
	key := s.docKey(collection, id)
	fields := s.indexes[collection]
	txf := func(tx *redis.Tx) error {
		current, err := tx.Get(ctx, key).Bytes()
		exists := true
		if errors.Is(err, redis.Nil) {
			exists = false
			current = nil
		} else if err != nil {
			return err
		}
		next, err := fn(Document{ID: id, Data: current}, exists)
		if err != nil {
			return err
		}
		before := fieldTokens(current, fields)
		if next == nil {
			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Del(ctx, key)
				pipe.SRem(ctx, s.idsKey(collection), id)
				for field, token := range before {
					pipe.SRem(ctx, s.fieldKey(collection, field, token), id)
				}
				return nil
			})
			return err
		}
		data, err := encode(next)
		if err != nil {
			return err
		}
		after := fieldTokens(data, fields)
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, []byte(data), 0)
			pipe.SAdd(ctx, s.idsKey(collection), id)
			for field, token := range before {
				if after[field] != token {
					pipe.SRem(ctx, s.fieldKey(collection, field, token), id)
				}
			}
			for field, token := range after {
				pipe.SAdd(ctx, s.fieldKey(collection, field, token), id)
			}
			return nil
		})
		return err
	}
	for attempt := 0; attempt < s.retries(); attempt++ {
		err := s.Client.Watch(ctx, txf, key)
		switch {
		case err == nil:
			return nil
		case errors.Is(err, redis.TxFailedErr):
			continue
		case errors.Is(err, ErrSkip):
			return nil
		default:
			return err
		}
	}
	return ErrConflict
}

// Ping checks connectivity for readiness probes.
func (s *RedisStore) Ping(ctx context.Context) error {
	if err := s.ready(); err != nil {
		return err
	}
	return s.Client.Ping(ctx).Err()
}

// fieldTokens returns the index token of each listed top-level field of data.
// Only scalar values are indexed.
func fieldTokens(data json.RawMessage, fields []string) map[string]string {
	if len(fields) == 0 || len(data) == 0 {
		return nil
	}
	var body map[string]json.RawMessage
	if err := json.Unmarshal(data, &body); err != nil {
		return nil
	}
	tokens := make(map[string]string, len(fields))
	for _, field := range fields {
		raw, ok := body[field]
		if !ok {
			continue
		}
		if token, ok := indexToken(raw); ok {
			tokens[field] = token
		}
	}
	return tokens
}

// indexToken canonicalises a scalar JSON value so 3 and 3.0 share a token
// while "3" does not, matching the equality rules of Query filters.
func indexToken(raw json.RawMessage) (string, bool) {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return "", false
	}
	switch v.(type) {
	case string, bool, float64:
	default:
		return "", false
	}
	out, err := json.Marshal(v)
	if err != nil {
		return "", false
	}
	return string(out), true
}
