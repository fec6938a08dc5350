package geo

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"masjidgo/internal/config"
	"masjidgo/internal/domain/entities"
	"masjidgo/internal/logger"
	"masjidgo/internal/metrics"
	"masjidgo/internal/repository"
)

// MasjidDistance pairs a directory record with its distance from a query
// point. CanCheckin reports whether the point is inside the record's
// admission radius.
type MasjidDistance struct {
	Masjid         *entities.Masjid `json:"masjid"`
	DistanceKm     float64          `json:"distance_km"`
	DistanceMeters float64          `json:"distance_meters"`
	CanCheckin     bool             `json:"can_checkin"`
}

// Index answers proximity queries over a DirectoryStore. The store buckets
// records by their CoarsePrecision cell; a query reads the 3x3 block of
// buckets around the point and filters by exact distance.
//
// Go Learning Note — errgroup:
// errgroup.WithContext runs the bucket reads in parallel and returns the
// first error. The derived ctx is cancelled as soon as one read fails, so the
// others can stop early, and the whole query fails rather than returning a
// partial answer.
type Index struct {
	store   repository.DirectoryStore
	cfg     config.GeoConfig
	metrics *metrics.Metrics
	log     *logger.Logger
}

func NewIndex(store repository.DirectoryStore, cfg config.GeoConfig, m *metrics.Metrics, log *logger.Logger) *Index {
	if cfg.MaxRadiusKm <= 0 {
		cfg.MaxRadiusKm = 5
	}
	if cfg.DefaultSearchLimit <= 0 {
		cfg.DefaultSearchLimit = 20
	}
	if cfg.MaxSearchLimit <= 0 {
		cfg.MaxSearchLimit = 50
	}
	return &Index{
		store:   store,
		cfg:     cfg,
		metrics: m,
		log:     log.With("component", "GeoIndex"),
	}
}

// Add normalizes m, derives its coarse cell and writes it to the directory.
func (ix *Index) Add(ctx context.Context, m *entities.Masjid) error {
	if m.ID == "" {
		return fmt.Errorf("masjid without id")
	}
	if err := m.Location.Validate(); err != nil {
		return fmt.Errorf("masjid %s: %w", m.ID, err)
	}
	m.Normalize()
	m.Geohash = Encode(m.Location.Latitude, m.Location.Longitude, CoarsePrecision)
	return ix.store.Put(ctx, m)
}

// EffectiveRadiusKm clamps a requested radius to the configured maximum. A
// non-positive or NaN request means the maximum.
func (ix *Index) EffectiveRadiusKm(radiusKm float64) float64 {
	if math.IsNaN(radiusKm) || radiusKm <= 0 || radiusKm > ix.cfg.MaxRadiusKm {
		return ix.cfg.MaxRadiusKm
	}
	return radiusKm
}

// Nearby returns active masjids within radiusKm of the point, nearest first.
func (ix *Index) Nearby(ctx context.Context, lat, lng, radiusKm float64) ([]MasjidDistance, error) {
	defer ix.metrics.ObserveGeoQuery("nearby", time.Now())

	if err := entities.NewLocation(lat, lng).Validate(); err != nil {
		return nil, err
	}
	radius := ix.EffectiveRadiusKm(radiusKm)
	cells := Neighbors(Encode(lat, lng, CoarsePrecision))

	candidates, err := ix.fetch(ctx, cells)
	if err != nil {
		return nil, err
	}

	out := make([]MasjidDistance, 0, len(candidates))
	for _, m := range candidates {
		meters := Distance(lat, lng, m.Location.Latitude, m.Location.Longitude)
		km := meters / 1000
		if km > radius {
			continue
		}
		out = append(out, MasjidDistance{
			Masjid:         m,
			DistanceKm:     km,
			DistanceMeters: meters,
			CanCheckin:     meters <= m.Radius(),
		})
	}
	sortByDistance(out)
	return out, nil
}

// CheckinEligible returns the active masjids whose admission radius contains
// the point. It starts from the FinePrecision cell of the point and reads the
// coarse buckets covering its 3x3 neighbourhood.
func (ix *Index) CheckinEligible(ctx context.Context, lat, lng float64) ([]MasjidDistance, error) {
	defer ix.metrics.ObserveGeoQuery("checkin_eligible", time.Now())

	if err := entities.NewLocation(lat, lng).Validate(); err != nil {
		return nil, err
	}
	cells := CoverCells(Encode(lat, lng, FinePrecision), CoarsePrecision)

	candidates, err := ix.fetch(ctx, cells)
	if err != nil {
		return nil, err
	}

	out := make([]MasjidDistance, 0, len(candidates))
	for _, m := range candidates {
		meters := Distance(lat, lng, m.Location.Latitude, m.Location.Longitude)
		if meters > m.Radius() {
			continue
		}
		out = append(out, MasjidDistance{
			Masjid:         m,
			DistanceKm:     meters / 1000,
			DistanceMeters: meters,
			CanCheckin:     true,
		})
	}
	sortByDistance(out)
	return out, nil
}

// Get returns a record by id, or repository.ErrMasjidNotFound.
func (ix *Index) Get(ctx context.Context, id string) (*entities.Masjid, error) {
	defer ix.metrics.ObserveGeoQuery("get", time.Now())
	return ix.store.GetByID(ctx, id)
}

// ByRegion lists the records of a state, optionally narrowed by district
// code prefix.
func (ix *Index) ByRegion(ctx context.Context, state, district string) ([]*entities.Masjid, error) {
	defer ix.metrics.ObserveGeoQuery("region", time.Now())
	return ix.store.QueryRegion(ctx, state, district)
}

// Search matches a name prefix. The limit defaults to DefaultSearchLimit and
// is capped at MaxSearchLimit.
func (ix *Index) Search(ctx context.Context, prefix string, limit int) ([]*entities.Masjid, error) {
	defer ix.metrics.ObserveGeoQuery("search", time.Now())

	prefix = entities.NormalizeName(prefix)
	if prefix == "" {
		return []*entities.Masjid{}, nil
	}
	switch {
	case limit <= 0:
		limit = ix.cfg.DefaultSearchLimit
	case limit > ix.cfg.MaxSearchLimit:
		limit = ix.cfg.MaxSearchLimit
	}
	return ix.store.SearchByNamePrefix(ctx, prefix, limit)
}

// fetch reads every bucket concurrently and returns the active records.
// Any failed read fails the whole call.
func (ix *Index) fetch(ctx context.Context, cells []string) ([]*entities.Masjid, error) {
	buckets := make([][]*entities.Masjid, len(cells))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(9)
	for i, cell := range cells {
		i, cell := i, cell
		g.Go(func() error {
			ms, err := ix.store.QueryBucket(gctx, cell)
			if err != nil {
				return fmt.Errorf("bucket %s: %w", cell, err)
			}
			buckets[i] = ms
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		ix.log.Warn("proximity query failed", "cells", len(cells), "error", err)
		return nil, err
	}

	var out []*entities.Masjid
	for _, b := range buckets {
		for _, m := range b {
			if m.IsActive {
				out = append(out, m)
			}
		}
	}
	return out, nil
}

func sortByDistance(ms []MasjidDistance) {
	sort.SliceStable(ms, func(i, j int) bool {
		if ms[i].DistanceMeters != ms[j].DistanceMeters {
			return ms[i].DistanceMeters < ms[j].DistanceMeters
		}
		return ms[i].Masjid.ID < ms[j].Masjid.ID
	})
}
