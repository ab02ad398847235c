package models

import (
	"gorm.io/datatypes"
)

// Sensor represents one physical transmitter, keyed by its derived hardware id
type Sensor struct {
	HardwareID   int64          `gorm:"column:hardware_id;primaryKey;autoIncrement:false" json:"hardware_id"`
	Name         string         `gorm:"column:name;type:text;not null" json:"name"`
	SensorType   string         `gorm:"column:sensor_type;type:text;not null" json:"sensor_type"`
	GPSLatitude  float64        `gorm:"column:gps_latitude" json:"gps_latitude"`
	GPSLongitude float64        `gorm:"column:gps_longitude" json:"gps_longitude"`
	Metadata     datatypes.JSON `gorm:"column:metadata;type:jsonb" json:"metadata"`
}

// TableName customizes the table name
func (Sensor) TableName() string {
	return "sensor"
}

// GetAllModels returns all models for migration, parents first
func GetAllModels() []interface{} {
	return []interface{}{
		&Sensor{},
		&Reading{},
	}
}
