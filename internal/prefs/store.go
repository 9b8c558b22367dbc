// Package prefs persists the choices a user made last time (username,
// region, DNS) so they can be offered as defaults. Failures here never
// abort provisioning.
package prefs

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

const (
	KeyUsername    = "username"
	KeyRegionIndex = "lastSelectedRegionIndex"
	KeyRegionID    = "lastSelectedRegionId"
	KeyDNSPreset   = "dnsPreset"
	KeyCustomDNS   = "customDns"
)

// Keys lists every key the store accepts.
var Keys = []string{KeyUsername, KeyRegionIndex, KeyRegionID, KeyDNSPreset, KeyCustomDNS}

var ErrUnknownKey = errors.New("unknown preference key")

// Store is a string key/value store. A missing key is reported by ok=false,
// not by an error.
type Store interface {
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Set(ctx context.Context, key, value string) error
}

type Preference struct {
	Name      string `gorm:"primaryKey"`
	Value     string `gorm:"not null"`
	UpdatedAt time.Time
}

type GormStore struct {
	db *gorm.DB
}

// Open opens (creating when needed) the sqlite database at path and
// migrates the preference table.
func Open(path string) (*GormStore, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("ensure prefs dir: %w", err)
		}
	}
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		return nil, fmt.Errorf("open prefs db: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)
	if err := db.AutoMigrate(&Preference{}); err != nil {
		return nil, fmt.Errorf("migrate prefs db: %w", err)
	}
	return &GormStore{db: db}, nil
}

func (s *GormStore) Get(ctx context.Context, key string) (string, bool, error) {
	var p Preference
	err := s.db.WithContext(ctx).Where("name = ?", key).Take(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("read preference %s: %w", key, err)
	}
	return p.Value, true, nil
}

func (s *GormStore) Set(ctx context.Context, key, value string) error {
	if !known(key) {
		return fmt.Errorf("%w: %s", ErrUnknownKey, key)
	}
	p := Preference{Name: key, Value: value, UpdatedAt: time.Now().UTC()}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&p).Error
	if err != nil {
		return fmt.Errorf("write preference %s: %w", key, err)
	}
	return nil
}

func (s *GormStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func known(key string) bool {
	for _, k := range Keys {
		if k == key {
			return true
		}
	}
	return false
}

// Snapshot is the set of remembered choices. Empty fields mean no preference.
type Snapshot struct {
	Username    string `json:"username"`
	RegionIndex *int   `json:"lastSelectedRegionIndex,omitempty"`
	RegionID    string `json:"lastSelectedRegionId,omitempty"`
	DNSPreset   string `json:"dnsPreset,omitempty"`
	CustomDNS   string `json:"customDns,omitempty"`
}

// Load reads every known key. Read failures are logged and leave the field
// empty. A nil store yields an empty snapshot.
func Load(ctx context.Context, store Store, log *logrus.Entry) Snapshot {
	if store == nil {
		return Snapshot{}
	}
	get := func(key string) string {
		v, _, err := store.Get(ctx, key)
		if err != nil {
			log.WithError(err).WithField("key", key).Warn("preference unavailable")
		}
		return v
	}

	snap := Snapshot{
		Username:  get(KeyUsername),
		RegionID:  get(KeyRegionID),
		DNSPreset: get(KeyDNSPreset),
		CustomDNS: get(KeyCustomDNS),
	}
	if raw := get(KeyRegionIndex); raw != "" {
		if idx, err := strconv.Atoi(raw); err == nil && idx >= 0 {
			snap.RegionIndex = &idx
		}
	}
	return snap
}

// Remember writes values best-effort: failures are logged, never returned.
func Remember(ctx context.Context, store Store, log *logrus.Entry, values map[string]string) {
	if store == nil {
		return
	}
	for key, value := range values {
		if err := store.Set(ctx, key, value); err != nil {
			log.WithError(err).WithField("key", key).Warn("could not save preference")
		}
	}
}

// Values converts a snapshot to the key/value form Remember takes,
// skipping empty fields.
// RegionKey picks the explicit selection, else the remembered region id,
// else the remembered index.
func (s Snapshot) RegionKey(explicit string) string {
	switch {
	case explicit != "":
		return explicit
	case s.RegionID != "":
		return s.RegionID
	case s.RegionIndex != nil:
		return strconv.Itoa(*s.RegionIndex)
	}
	return ""
}

func (s Snapshot) Values() map[string]string {
	out := map[string]string{}
	put := func(k, v string) {
		if v != "" {
			out[k] = v
		}
	}
	put(KeyUsername, s.Username)
	put(KeyRegionID, s.RegionID)
	put(KeyDNSPreset, s.DNSPreset)
	put(KeyCustomDNS, s.CustomDNS)
	if s.RegionIndex != nil {
		out[KeyRegionIndex] = strconv.Itoa(*s.RegionIndex)
	}
	return out
}
