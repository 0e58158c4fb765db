package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// PrayerTime is a recurring prayer in a synagogue's weekly schedule.
type PrayerTime struct {
	Name string   `json:"name" validate:"required"`
	Time string   `json:"time" validate:"required,hhmm"` // HH:MM local time
	Days []string `json:"days" validate:"dive,oneof=sun mon tue wed thu fri sat"`
}

// Synagogue is a location with its prayer hours.
type Synagogue struct {
	ID        uuid.UUID                      `json:"id" gorm:"type:char(36);primaryKey"`
	Name      string                         `json:"name" gorm:"size:255;not null"`
	Address   string                         `json:"address" gorm:"size:255"`
	City      string                         `json:"city" gorm:"size:100;index"`
	Latitude  float64                        `json:"latitude"`
	Longitude float64                        `json:"longitude"`
	GeonameID int                            `json:"geonameId"`
	Timezone  string                         `json:"timezone" gorm:"size:64"`
	Prayers   datatypes.JSONSlice[PrayerTime] `json:"prayers"`
	Notes     string                         `json:"notes,omitempty" gorm:"type:text"`
	CreatedAt time.Time                      `json:"createdAt"`
	UpdatedAt time.Time                      `json:"updatedAt"`
}

// BeforeCreate sets UUID before creating the record.
func (s *Synagogue) BeforeCreate(tx *gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}
