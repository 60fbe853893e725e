package models

import (
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// EmergencyContact is one person notified on the rider's behalf. Contact
// management lives outside the engine; these records arrive through the
// recipient directory.
type EmergencyContact struct {
	ID           primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	UserID       primitive.ObjectID `json:"user_id" bson:"user_id"`
	Name         string             `json:"name" bson:"name"`
	Phone        string             `json:"phone" bson:"phone"`
	Email        string             `json:"email,omitempty" bson:"email,omitempty"`
	Relationship string             `json:"relationship" bson:"relationship"`
	DeviceToken  string             `json:"device_token,omitempty" bson:"device_token,omitempty"`
}
