// Package store keeps an on-disk mirror of the collections and the
// last location snapshot, so a relaunch starts from last-known-good
// state before the first backend refresh converges.
package store

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	locationModel "github.com/yichenzhou/tablemate/internal/model/location"
	"github.com/yichenzhou/tablemate/internal/model/place"
)

type savedRow struct {
	PlaceKey  string `gorm:"primarykey;size:255"`
	PlaceID   string `gorm:"size:255"`
	Name      string `gorm:"size:255;not null"`
	Address   string `gorm:"size:500"`
	Latitude  float64
	Longitude float64
	Rating    float64
	ImageURL  string `gorm:"size:500"`
	Position  int
}

func (savedRow) TableName() string { return "saved_locations" }

type discoveryRow struct {
	PlaceKey  string `gorm:"primarykey;size:255"`
	PlaceID   string `gorm:"size:255"`
	Name      string `gorm:"size:255;not null"`
	Address   string `gorm:"size:500"`
	Latitude  float64
	Longitude float64
	Rating    float64
	ImageURL  string `gorm:"size:500"`
	Remark    string `gorm:"size:2000"`
	RoomID    string `gorm:"size:64"`
	Position  int
}

func (discoveryRow) TableName() string { return "ai_discoveries" }

type snapshotRow struct {
	ID        int    `gorm:"primarykey"`
	City      string `gorm:"size:255"`
	State     string `gorm:"size:255"`
	Country   string `gorm:"size:255"`
	Latitude  float64
	Longitude float64
	Timestamp time.Time
}

func (snapshotRow) TableName() string { return "location_snapshot" }

// Store wraps the sqlite mirror.
type Store struct {
	db *gorm.DB
}

// Open opens (or creates) the mirror database at path and migrates the
// schema. Use ":memory:" for a throwaway mirror.
func Open(path string) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open mirror db: %w", err)
	}
	if err := db.AutoMigrate(&savedRow{}, &discoveryRow{}, &snapshotRow{}); err != nil {
		return nil, fmt.Errorf("migrate mirror db: %w", err)
	}
	return &Store{db: db}, nil
}

// SavedLocations loads the mirrored favorites in stored order.
func (s *Store) SavedLocations() ([]place.Place, error) {
	var rows []savedRow
	if err := s.db.Order("position").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("load saved locations: %w", err)
	}
	places := make([]place.Place, 0, len(rows))
	for _, row := range rows {
		places = append(places, row.toPlace())
	}
	return places, nil
}

// ReplaceSaved overwrites the mirrored favorites wholesale.
func (s *Store) ReplaceSaved(places []place.Place) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("1 = 1").Delete(&savedRow{}).Error; err != nil {
			return err
		}
		for i, p := range places {
			if err := tx.Create(savedRowFrom(p, i)).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// PutSaved upserts one favorite.
func (s *Store) PutSaved(p place.Place) error {
	var count int64
	s.db.Model(&savedRow{}).Count(&count)
	row := savedRowFrom(p, int(count))
	return s.db.Clauses(clause.OnConflict{UpdateAll: true}).Create(row).Error
}

// DeleteSaved removes one favorite by place key.
func (s *Store) DeleteSaved(placeKey string) error {
	return s.db.Delete(&savedRow{}, "place_key = ?", placeKey).Error
}

// Discoveries loads the mirrored discoveries in stored order.
func (s *Store) Discoveries() ([]place.Discovery, error) {
	var rows []discoveryRow
	if err := s.db.Order("position").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("load discoveries: %w", err)
	}
	discoveries := make([]place.Discovery, 0, len(rows))
	for _, row := range rows {
		discoveries = append(discoveries, place.Discovery{
			Place:  row.toPlace(),
			Remark: row.Remark,
			RoomID: row.RoomID,
		})
	}
	return discoveries, nil
}

// ReplaceDiscoveries overwrites the mirrored discoveries wholesale.
func (s *Store) ReplaceDiscoveries(discoveries []place.Discovery) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("1 = 1").Delete(&discoveryRow{}).Error; err != nil {
			return err
		}
		for i, d := range discoveries {
			if err := tx.Create(discoveryRowFrom(d, i)).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// PutDiscovery upserts one discovery.
func (s *Store) PutDiscovery(d place.Discovery) error {
	var count int64
	s.db.Model(&discoveryRow{}).Count(&count)
	row := discoveryRowFrom(d, int(count))
	return s.db.Clauses(clause.OnConflict{UpdateAll: true}).Create(row).Error
}

// SaveSnapshot persists the latest location snapshot, overwriting the
// previous one.
func (s *Store) SaveSnapshot(snap locationModel.Snapshot) error {
	row := snapshotRow{
		ID:        1,
		City:      snap.City,
		State:     snap.State,
		Country:   snap.Country,
		Latitude:  snap.Latitude,
		Longitude: snap.Longitude,
		Timestamp: snap.Timestamp,
	}
	return s.db.Clauses(clause.OnConflict{UpdateAll: true}).Create(&row).Error
}

// LastSnapshot returns the persisted location snapshot, or nil when
// none has been stored yet.
func (s *Store) LastSnapshot() (*locationModel.Snapshot, error) {
	var row snapshotRow
	err := s.db.First(&row, "id = ?", 1).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load snapshot: %w", err)
	}
	return &locationModel.Snapshot{
		City:      row.City,
		State:     row.State,
		Country:   row.Country,
		Latitude:  row.Latitude,
		Longitude: row.Longitude,
		Timestamp: row.Timestamp,
	}, nil
}

func (r savedRow) toPlace() place.Place {
	return place.Place{
		PlaceID:   r.PlaceID,
		Name:      r.Name,
		Address:   r.Address,
		Latitude:  r.Latitude,
		Longitude: r.Longitude,
		Rating:    r.Rating,
		ImageURL:  r.ImageURL,
	}
}

func (r discoveryRow) toPlace() place.Place {
	return place.Place{
		PlaceID:   r.PlaceID,
		Name:      r.Name,
		Address:   r.Address,
		Latitude:  r.Latitude,
		Longitude: r.Longitude,
		Rating:    r.Rating,
		ImageURL:  r.ImageURL,
	}
}

func savedRowFrom(p place.Place, position int) *savedRow {
	return &savedRow{
		PlaceKey:  p.Key(),
		PlaceID:   p.PlaceID,
		Name:      p.Name,
		Address:   p.Address,
		Latitude:  p.Latitude,
		Longitude: p.Longitude,
		Rating:    p.Rating,
		ImageURL:  p.ImageURL,
		Position:  position,
	}
}

func discoveryRowFrom(d place.Discovery, position int) *discoveryRow {
	return &discoveryRow{
		PlaceKey:  d.Place.Key(),
		PlaceID:   d.Place.PlaceID,
		Name:      d.Place.Name,
		Address:   d.Place.Address,
		Latitude:  d.Place.Latitude,
		Longitude: d.Place.Longitude,
		Rating:    d.Place.Rating,
		ImageURL:  d.Place.ImageURL,
		Remark:    d.Remark,
		RoomID:    d.RoomID,
		Position:  position,
	}
}
