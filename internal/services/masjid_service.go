package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"masjidgo/internal/domain/entities"
	"masjidgo/internal/geo"
	"masjidgo/internal/logger"
	"masjidgo/internal/repository"
)

// MasjidService exposes the directory lookups of the geo index and turns
// bad input into validation refusals.
type MasjidService struct {
	index *geo.Index
	log   *logger.Logger
}

func NewMasjidService(index *geo.Index, log *logger.Logger) *MasjidService {
	return &MasjidService{
		index: index,
		log:   log.With("service", "MasjidService"),
	}
}

func (s *MasjidService) Nearby(ctx context.Context, lat, lng, radiusKm float64) ([]geo.MasjidDistance, error) {
	res, err := s.index.Nearby(ctx, lat, lng, radiusKm)
	if errors.Is(err, entities.ErrInvalidCoordinates) {
		return nil, validationError("latitude must be within [-90, 90] and longitude within [-180, 180]")
	}
	if err != nil {
		return nil, fmt.Errorf("nearby: %w", err)
	}
	return res, nil
}

func (s *MasjidService) CheckinEligible(ctx context.Context, lat, lng float64) ([]geo.MasjidDistance, error) {
	res, err := s.index.CheckinEligible(ctx, lat, lng)
	if errors.Is(err, entities.ErrInvalidCoordinates) {
		return nil, validationError("latitude must be within [-90, 90] and longitude within [-180, 180]")
	}
	if err != nil {
		return nil, fmt.Errorf("checkin eligible: %w", err)
	}
	return res, nil
}

func (s *MasjidService) Get(ctx context.Context, id string) (*entities.Masjid, error) {
	m, err := s.index.Get(ctx, id)
	if errors.Is(err, repository.ErrMasjidNotFound) {
		return nil, notFoundError(CodeMasjidNotFound, "Masjid not found")
	}
	if err != nil {
		return nil, fmt.Errorf("get masjid: %w", err)
	}
	return m, nil
}

func (s *MasjidService) ByRegion(ctx context.Context, state, district string) ([]*entities.Masjid, error) {
	state = strings.ToUpper(strings.TrimSpace(state))
	if state == "" {
		return nil, validationError("state is required")
	}
	res, err := s.index.ByRegion(ctx, state, strings.ToUpper(strings.TrimSpace(district)))
	if err != nil {
		return nil, fmt.Errorf("region: %w", err)
	}
	return res, nil
}

func (s *MasjidService) Search(ctx context.Context, q string, limit int) ([]*entities.Masjid, error) {
	if strings.TrimSpace(q) == "" {
		return nil, validationError("search query is required")
	}
	res, err := s.index.Search(ctx, q, limit)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	return res, nil
}

// seedRecord is the on-disk form of a directory entry. IsActive defaults to
// true when omitted.
type seedRecord struct {
	ID                  string  `json:"id"`
	Name                string  `json:"name"`
	Latitude            float64 `json:"lat"`
	Longitude           float64 `json:"lng"`
	StateCode           string  `json:"state_code"`
	DistrictCode        string  `json:"district_code"`
	CheckinRadiusMeters float64 `json:"checkin_radius_meters"`
	IsActive            *bool   `json:"is_active"`
	IsVerified          bool    `json:"is_verified"`
}

func (r seedRecord) masjid() *entities.Masjid {
	active := true
	if r.IsActive != nil {
		active = *r.IsActive
	}
	return &entities.Masjid{
		ID:                  r.ID,
		Name:                r.Name,
		Location:            entities.NewLocation(r.Latitude, r.Longitude),
		StateCode:           strings.ToUpper(r.StateCode),
		DistrictCode:        strings.ToUpper(r.DistrictCode),
		CheckinRadiusMeters: r.CheckinRadiusMeters,
		IsActive:            active,
		IsVerified:          r.IsVerified,
	}
}

// LoadDirectory reads a JSON array of directory entries and adds each to the
// index. Invalid entries are skipped and logged; the count of loaded entries
// is returned.
func (s *MasjidService) LoadDirectory(ctx context.Context, r io.Reader) (int, error) {
	var records []seedRecord
	if err := json.NewDecoder(r).Decode(&records); err != nil {
		return 0, fmt.Errorf("decode directory: %w", err)
	}
	return s.add(ctx, records)
}

// LoadDirectoryFile is LoadDirectory over a file path.
func (s *MasjidService) LoadDirectoryFile(ctx context.Context, path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("open directory seed: %w", err)
	}
	defer f.Close()
	return s.LoadDirectory(ctx, f)
}

// LoadSampleDirectory adds a handful of Kuala Lumpur records for local runs
// without a seed file.
func (s *MasjidService) LoadSampleDirectory(ctx context.Context) (int, error) {
	return s.add(ctx, sampleDirectory)
}

func (s *MasjidService) add(ctx context.Context, records []seedRecord) (int, error) {
	loaded := 0
	for _, rec := range records {
		if err := s.index.Add(ctx, rec.masjid()); err != nil {
			if errors.Is(err, entities.ErrInvalidCoordinates) || rec.ID == "" {
				s.log.Warn("skipping directory entry", "id", rec.ID, "error", err)
				continue
			}
			return loaded, err
		}
		loaded++
	}
	s.log.Info("directory loaded", "entries", loaded, "skipped", len(records)-loaded)
	return loaded, nil
}

var sampleDirectory = []seedRecord{
	{ID: "wpkl-masjid-negara", Name: "Masjid Negara", Latitude: 3.1421, Longitude: 101.6918, StateCode: "WPKL", DistrictCode: "KL01", CheckinRadiusMeters: 150, IsVerified: true},
	{ID: "wpkl-masjid-jamek", Name: "Masjid Jamek Sultan Abdul Samad", Latitude: 3.1489, Longitude: 101.6958, StateCode: "WPKL", DistrictCode: "KL01", IsVerified: true},
	{ID: "wpkl-masjid-india", Name: "Masjid India", Latitude: 3.1507, Longitude: 101.6966, StateCode: "WPKL", DistrictCode: "KL01"},
	{ID: "wpkl-masjid-wilayah", Name: "Masjid Wilayah Persekutuan", Latitude: 3.1713, Longitude: 101.6725, StateCode: "WPKL", DistrictCode: "KL02", CheckinRadiusMeters: 200, IsVerified: true},
	{ID: "sgr-masjid-sultan-salahuddin", Name: "Masjid Sultan Salahuddin Abdul Aziz Shah", Latitude: 3.0785, Longitude: 101.5212, StateCode: "SGR", DistrictCode: "SGR08", CheckinRadiusMeters: 250, IsVerified: true},
	{ID: "ptj-masjid-putra", Name: "Masjid Putra", Latitude: 2.9360, Longitude: 101.6896, StateCode: "PTJ", DistrictCode: "PTJ01", CheckinRadiusMeters: 200, IsVerified: true},
}
