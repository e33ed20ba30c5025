// Package snapshot keeps the last known full guest list from the remote
// ledger in a local SQLite database, so guest lookups and duplicate checks
// keep working while the ledger is unreachable.
package snapshot

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"wristband.events/wristband/core/fault"
	v1 "wristband.events/wristband/guestsheet/v1"
)

// CheckInMap stores a guest's station -> timestamp map as a JSON text
// column.
type CheckInMap map[string]string

// Value implements the driver.Valuer interface.
func (m CheckInMap) Value() (driver.Value, error) {
	if len(m) == 0 {
		return "{}", nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements the sql.Scanner interface.
func (m *CheckInMap) Scan(value interface{}) error {
	if value == nil {
		*m = CheckInMap{}
		return nil
	}

	str, ok := value.(string)
	if !ok {
		b, ok := value.([]byte)
		if !ok {
			return fmt.Errorf("failed to scan CheckInMap, %v", value)
		}
		str = string(b)
	}

	if str == "" {
		*m = CheckInMap{}
		return nil
	}
	return json.Unmarshal([]byte(str), m)
}

type Guest struct {
	GuestID        int    `gorm:"primaryKey;column:guest_id"`
	FirstName      string `gorm:"column:first_name"`
	LastName       string `gorm:"column:last_name"`
	MobileNumber   string `gorm:"column:mobile_number"`
	WristbandTagID string `gorm:"column:wristband_tag_id;index"`
	CheckIns       CheckInMap `gorm:"column:check_ins;type:text"`
	RefreshedAt    time.Time  `gorm:"column:refreshed_at"`
}

func (Guest) TableName() string {
	return "guest_snapshot"
}

// Store is the persisted snapshot. Reads are served without touching the
// network; Replace swaps the whole snapshot after a successful full fetch.
type Store struct {
	db *gorm.DB
}

func Open(path string) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open snapshot database: %w", err)
	}

	if err := db.AutoMigrate(&Guest{}); err != nil {
		return nil, fmt.Errorf("failed to migrate snapshot schema: %w", err)
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	db, err := s.db.DB()
	if err != nil {
		return err
	}
	return db.Close()
}

func fromDTO(g *v1.GuestDTO, now time.Time) Guest {
	row := Guest{
		GuestID:     g.OriginalID,
		FirstName:   g.FirstName,
		LastName:    g.LastName,
		CheckIns:    CheckInMap(g.CheckIns),
		RefreshedAt: now,
	}
	if g.MobileNumber != nil {
		row.MobileNumber = *g.MobileNumber
	}
	if g.WristbandTagID != nil {
		row.WristbandTagID = *g.WristbandTagID
	}
	return row
}

func (g *Guest) toDTO() v1.GuestDTO {
	dto := v1.GuestDTO{
		OriginalID: g.GuestID,
		FirstName:  g.FirstName,
		LastName:   g.LastName,
		CheckIns:   map[string]string(g.CheckIns),
	}
	if dto.CheckIns == nil {
		dto.CheckIns = map[string]string{}
	}
	if g.MobileNumber != "" {
		mobile := g.MobileNumber
		dto.MobileNumber = &mobile
	}
	if g.WristbandTagID != "" {
		tag := g.WristbandTagID
		dto.WristbandTagID = &tag
	}
	return dto
}

// Replace swaps the stored snapshot for the given guest list.
func (s *Store) Replace(guests []v1.GuestDTO) error {
	now := time.Now()

	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("1 = 1").Delete(&Guest{}).Error; err != nil {
			return fmt.Errorf("failed to clear snapshot: %w", err)
		}

		for i := range guests {
			row := fromDTO(&guests[i], now)
			if err := tx.Create(&row).Error; err != nil {
				return fmt.Errorf("failed to store guest %d: %w", row.GuestID, err)
			}
		}

		return nil
	})
}

// FindByID returns the cached guest, or fault.ErrNotFound.
func (s *Store) FindByID(id int) (*v1.GuestDTO, error) {
	var row Guest
	if err := s.db.First(&row, "guest_id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fault.ErrNotFound
		}
		return nil, err
	}

	dto := row.toDTO()
	return &dto, nil
}

// All returns every cached guest.
func (s *Store) All() ([]v1.GuestDTO, error) {
	var rows []Guest
	if err := s.db.Order("guest_id").Find(&rows).Error; err != nil {
		return nil, err
	}

	out := make([]v1.GuestDTO, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].toDTO())
	}
	return out, nil
}

// RefreshedAt reports when the snapshot was last replaced, zero when empty.
func (s *Store) RefreshedAt() time.Time {
	var row Guest
	if err := s.db.Order("refreshed_at desc").First(&row).Error; err != nil {
		return time.Time{}
	}
	return row.RefreshedAt
}
