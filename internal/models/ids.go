package models

import "go.mongodb.org/mongo-driver/bson/primitive"

// NewID returns a fresh identifier in ObjectID hex form. Every store uses the
// same format so that malformed ids can be told apart from unknown ones
// without a round trip.
func NewID() string {
	return primitive.NewObjectID().Hex()
}

func ValidID(id string) bool {
	return primitive.IsValidObjectID(id)
}
