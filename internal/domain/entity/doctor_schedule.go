package entity

import (
	"time"

	"github.com/google/uuid"
)

// DoctorAvailability is one weekly recurring open range of a doctor.
// DayOfWeek follows time.Weekday (0 = Sunday). Times are "HH:MM" in the facility time zone.
type DoctorAvailability struct {
	ID        int       `gorm:"primaryKey;autoIncrement" json:"id"`
	DoctorID  uuid.UUID `gorm:"type:uuid;not null;index" json:"doctor_id"`
	DayOfWeek int       `gorm:"not null" json:"day_of_week"`
	StartTime string    `gorm:"type:time;not null" json:"start_time"`
	EndTime   string    `gorm:"type:time;not null" json:"end_time"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (DoctorAvailability) TableName() string {
	return "doctor_availabilities"
}

// BusyOverride removes availability on a single date even if the weekly template allows it
type BusyOverride struct {
	ID           int       `gorm:"primaryKey;autoIncrement" json:"id"`
	DoctorID     uuid.UUID `gorm:"type:uuid;not null;index" json:"doctor_id"`
	OverrideDate time.Time `gorm:"type:date;not null;index" json:"override_date"`
	StartTime    string    `gorm:"type:time;not null" json:"start_time"`
	EndTime      string    `gorm:"type:time;not null" json:"end_time"`
	Reason       string    `gorm:"type:text" json:"reason,omitempty"`
	CreatedAt    time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (BusyOverride) TableName() string {
	return "doctor_busy_overrides"
}

// DateKey returns the override date as YYYY-MM-DD, independent of the stored location
func (o *BusyOverride) DateKey() string {
	return o.OverrideDate.Format("2006-01-02")
}
