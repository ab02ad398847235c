package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Reading is one timestamped observation. Every measurement is optional.
type Reading struct {
	ID             uuid.UUID `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	SensorID       int64     `gorm:"column:sensor_id;not null;uniqueIndex:idx_reading_sensor_ts,priority:1" json:"sensor_id"`
	Sensor         *Sensor   `gorm:"foreignKey:SensorID;references:HardwareID" json:"-"`
	TS             time.Time `gorm:"column:ts;not null;uniqueIndex:idx_reading_sensor_ts,priority:2" json:"ts"`
	Sequence       *int64    `gorm:"column:sequence" json:"sequence"`
	TemperatureC   *float64  `gorm:"column:temperature_c" json:"temperature_c"`
	HumidityPct    *float64  `gorm:"column:humidity_pct" json:"humidity_pct"`
	CapacitanceVal *float64  `gorm:"column:capacitance_val" json:"capacitance_val"`
	BatteryV       *float64  `gorm:"column:battery_v" json:"battery_v"`
	RSSIDbm        *int64    `gorm:"column:rssi_dbm" json:"rssi_dbm"`
}

// TableName customizes the table name
func (Reading) TableName() string {
	return "reading"
}

// BeforeCreate assigns a random id to readings that do not carry one yet
func (r *Reading) BeforeCreate(_ *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}
