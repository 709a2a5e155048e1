package model

import (
	"time"
)

// Layouts used for slot dates and times on the wire and in the store.
const (
	DateLayout = "2006-01-02"
	TimeLayout = "15:04"
)

// Base contains common fields for all models
type Base struct {
	ID        int64     `json:"id" db:"id"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// JSONMap represents a generic JSON object
type JSONMap map[string]interface{}
