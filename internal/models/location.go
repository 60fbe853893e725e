package models

import (
	"time"
)

// Location is a GeoJSON point with optional reverse-geocoded address data.
// Coordinates are [longitude, latitude].
type Location struct {
	Type        string    `json:"type" bson:"type" default:"Point"`
	Coordinates []float64 `json:"coordinates" bson:"coordinates" validate:"required,len=2"`
	Address     string    `json:"address" bson:"address"`
	City        string    `json:"city" bson:"city"`
	Country     string    `json:"country" bson:"country"`
	PlaceID     string    `json:"place_id" bson:"place_id"`
	Accuracy    float64   `json:"accuracy,omitempty" bson:"accuracy,omitempty"`
	Timestamp   time.Time `json:"timestamp" bson:"timestamp"`
}

func NewPoint(latitude, longitude float64) Location {
	return Location{
		Type:        "Point",
		Coordinates: []float64{longitude, latitude},
		Timestamp:   time.Now(),
	}
}

func (l Location) Latitude() float64 {
	if len(l.Coordinates) >= 2 {
		return l.Coordinates[1]
	}
	return 0
}

func (l Location) Longitude() float64 {
	if len(l.Coordinates) >= 1 {
		return l.Coordinates[0]
	}
	return 0
}
