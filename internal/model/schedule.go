package model

// BusinessHours is one local opening interval of a store. DayOfWeek is 0 for
// Monday through 6 for Sunday; times are "HH:MM:SS" wall-clock strings.
type BusinessHours struct {
	ID             int64  `gorm:"primaryKey"`
	StoreID        string `gorm:"size:100;not null;index"`
	DayOfWeek      int    `gorm:"not null"`
	StartTimeLocal string `gorm:"size:8;not null"`
	EndTimeLocal   string `gorm:"size:8;not null"`
}

// StoreTimezone maps a store to its IANA timezone name.
type StoreTimezone struct {
	ID          int64  `gorm:"primaryKey"`
	StoreID     string `gorm:"size:100;not null;uniqueIndex"`
	TimezoneStr string `gorm:"size:100;not null"`
}
