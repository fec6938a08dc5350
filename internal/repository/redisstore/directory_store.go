package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/redis/go-redis/v9"

	"masjidgo/internal/domain/entities"
	"masjidgo/internal/logger"
	"masjidgo/internal/repository"
)

const (
	recordPrefix = "masjid:"
	cellPrefix   = "masjid:cell:"
	statePrefix  = "masjid:state:"
	namesKey     = "masjid:names"
	nameSep      = "\x00"
)

type directoryStore struct {
	client *redis.Client
	log    *logger.Logger
}

func NewDirectoryStore(client *redis.Client, baseLog *logger.Logger) repository.DirectoryStore {
	return &directoryStore{
		client: client,
		log:    baseLog.With("store", "RedisDirectoryStore"),
	}
}

func recordKey(id string) string { return recordPrefix + id }

func nameMember(m *entities.Masjid) string {
	return entities.NormalizeName(m.Name) + nameSep + m.ID
}

// Put writes the record and its index entries in one MULTI/EXEC. Entries of
// a previous version of the record are removed in the same transaction.
func (s *directoryStore) Put(ctx context.Context, m *entities.Masjid) error {
	old, err := s.GetByID(ctx, m.ID)
	if err != nil && !errors.Is(err, repository.ErrMasjidNotFound) {
		return err
	}

	payload, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("encode masjid %s: %w", m.ID, err)
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		if old != nil {
			pipe.SRem(ctx, cellPrefix+old.Geohash, old.ID)
			pipe.SRem(ctx, statePrefix+old.StateCode, old.ID)
			pipe.ZRem(ctx, namesKey, nameMember(old))
		}
		pipe.Set(ctx, recordKey(m.ID), payload, 0)
		pipe.SAdd(ctx, cellPrefix+m.Geohash, m.ID)
		pipe.SAdd(ctx, statePrefix+m.StateCode, m.ID)
		pipe.ZAdd(ctx, namesKey, redis.Z{Score: 0, Member: nameMember(m)})
		return nil
	})
	if err != nil {
		return fmt.Errorf("put masjid %s: %w", m.ID, err)
	}
	return nil
}

func (s *directoryStore) GetByID(ctx context.Context, id string) (*entities.Masjid, error) {
	raw, err := s.client.Get(ctx, recordKey(id)).Bytes()
	if err == redis.Nil {
		return nil, repository.ErrMasjidNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get masjid %s: %w", id, err)
	}
	return decode(raw)
}

func (s *directoryStore) QueryBucket(ctx context.Context, cell string) ([]*entities.Masjid, error) {
	ids, err := s.client.SMembers(ctx, cellPrefix+cell).Result()
	if err != nil {
		return nil, fmt.Errorf("bucket %s: %w", cell, err)
	}
	sort.Strings(ids)
	return s.load(ctx, ids)
}

func (s *directoryStore) QueryRegion(ctx context.Context, state, district string) ([]*entities.Masjid, error) {
	ids, err := s.client.SMembers(ctx, statePrefix+state).Result()
	if err != nil {
		return nil, fmt.Errorf("region %s: %w", state, err)
	}
	sort.Strings(ids)
	all, err := s.load(ctx, ids)
	if err != nil || district == "" {
		return all, err
	}
	out := all[:0]
	for _, m := range all {
		if strings.HasPrefix(m.DistrictCode, district) {
			out = append(out, m)
		}
	}
	return out, nil
}

// SearchByNamePrefix walks the names sorted set lexicographically. Members
// share score 0, so ZRANGEBYLEX yields them in name order.
func (s *directoryStore) SearchByNamePrefix(ctx context.Context, prefix string, limit int) ([]*entities.Masjid, error) {
	rng := &redis.ZRangeBy{Min: "[" + prefix, Max: "[" + prefix + "\xff"}
	if limit > 0 {
		rng.Count = int64(limit)
	}
	members, err := s.client.ZRangeByLex(ctx, namesKey, rng).Result()
	if err != nil {
		return nil, fmt.Errorf("search %q: %w", prefix, err)
	}
	ids := make([]string, 0, len(members))
	for _, mem := range members {
		if i := strings.LastIndex(mem, nameSep); i >= 0 {
			ids = append(ids, mem[i+1:])
		}
	}
	return s.load(ctx, ids)
}

// load fetches records with one MGET, preserving the order of ids. Ids whose
// record vanished in between are skipped.
func (s *directoryStore) load(ctx context.Context, ids []string) ([]*entities.Masjid, error) {
	if len(ids) == 0 {
		return []*entities.Masjid{}, nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = recordKey(id)
	}
	vals, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("mget masjids: %w", err)
	}
	out := make([]*entities.Masjid, 0, len(vals))
	for i, v := range vals {
		str, ok := v.(string)
		if !ok {
			s.log.Warn("dangling directory index entry", "id", ids[i])
			continue
		}
		m, err := decode([]byte(str))
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}

func decode(raw []byte) (*entities.Masjid, error) {
	var m entities.Masjid
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("decode masjid: %w", err)
	}
	m.NameLower = entities.NormalizeName(m.Name)
	return &m, nil
}
