package memory

import (
	"context"
	"sort"
	"strings"
	"sync"

	"masjidgo/internal/domain/entities"
	"masjidgo/internal/repository"
)

// DirectoryRepository keeps the masjid directory in memory with two secondary
// indices:
//   - cells: geohash cell → masjidID (proximity buckets)
//   - states: state code → masjidID (region listing)
//
// Every write keeps all three maps in sync. Records are copied on the way in
// and out so callers can never mutate the stored value.
type DirectoryRepository struct {
	mu      sync.RWMutex
	masjids map[string]*entities.Masjid
	cells   map[string]map[string]struct{}
	states  map[string]map[string]struct{}
}

var _ repository.DirectoryStore = (*DirectoryRepository)(nil)

func NewDirectoryRepository() *DirectoryRepository {
	return &DirectoryRepository{
		masjids: make(map[string]*entities.Masjid),
		cells:   make(map[string]map[string]struct{}),
		states:  make(map[string]map[string]struct{}),
	}
}

// Put upserts a record. If the record moved cell or state the old index
// entries are removed first.
func (r *DirectoryRepository) Put(ctx context.Context, m *entities.Masjid) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if old, ok := r.masjids[m.ID]; ok {
		removeFromIndex(r.cells, old.Geohash, old.ID)
		removeFromIndex(r.states, old.StateCode, old.ID)
	}

	stored := *m
	r.masjids[m.ID] = &stored
	addToIndex(r.cells, stored.Geohash, stored.ID)
	addToIndex(r.states, stored.StateCode, stored.ID)
	return nil
}

func (r *DirectoryRepository) GetByID(ctx context.Context, id string) (*entities.Masjid, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	m, ok := r.masjids[id]
	if !ok {
		return nil, repository.ErrMasjidNotFound
	}
	out := *m
	return &out, nil
}

// QueryBucket is an O(1) cell lookup plus O(k) copy of the k records in it.
func (r *DirectoryRepository) QueryBucket(ctx context.Context, cell string) ([]*entities.Masjid, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.collect(r.cells[cell]), nil
}

func (r *DirectoryRepository) QueryRegion(ctx context.Context, state, district string) ([]*entities.Masjid, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	all := r.collect(r.states[state])
	if district == "" {
		return all, nil
	}
	out := all[:0]
	for _, m := range all {
		if strings.HasPrefix(m.DistrictCode, district) {
			out = append(out, m)
		}
	}
	return out, nil
}

// SearchByNamePrefix is an O(n) scan followed by a sort of the matches.
func (r *DirectoryRepository) SearchByNamePrefix(ctx context.Context, prefix string, limit int) ([]*entities.Masjid, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var matches []*entities.Masjid
	for _, m := range r.masjids {
		if strings.HasPrefix(m.NameLower, prefix) {
			c := *m
			matches = append(matches, &c)
		}
	}
	sort.Slice(matches, func(i, j int) bool {
		if matches[i].NameLower != matches[j].NameLower {
			return matches[i].NameLower < matches[j].NameLower
		}
		return matches[i].ID < matches[j].ID
	})
	if limit > 0 && len(matches) > limit {
		matches = matches[:limit]
	}
	return matches, nil
}

// Count returns the number of records in the directory.
func (r *DirectoryRepository) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.masjids)
}

func (r *DirectoryRepository) collect(ids map[string]struct{}) []*entities.Masjid {
	out := make([]*entities.Masjid, 0, len(ids))
	for id := range ids {
		c := *r.masjids[id]
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func addToIndex(index map[string]map[string]struct{}, key, id string) {
	if _, ok := index[key]; !ok {
		index[key] = make(map[string]struct{})
	}
	index[key][id] = struct{}{}
}

func removeFromIndex(index map[string]map[string]struct{}, key, id string) {
	set, ok := index[key]
	if !ok {
		return
	}
	delete(set, id)
	if len(set) == 0 {
		delete(index, key) // Clean up empty cells.
	}
}
