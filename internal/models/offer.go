package models

import (
	"time"

	"github.com/UomLeos-RC-WasteManagement/Waste-Management-App-sub000/internal/utils"
)

// GeoJSON is a GeoJSON Point as stored for 2dsphere indexing.
type GeoJSON struct {
	Type        string    `bson:"type" json:"type"`
	Coordinates []float64 `bson:"coordinates" json:"coordinates"` // [lon, lat]
}

// Quantity is an amount of waste with its unit (kg unless stated otherwise).
type Quantity struct {
	Value float64 `bson:"value" json:"value"`
	Unit  string  `bson:"unit" json:"unit"`
}

// OfferLocation describes where a user offer can be picked up.
type OfferLocation struct {
	Address     string   `bson:"address,omitempty" json:"address,omitempty"`
	City        string   `bson:"city,omitempty" json:"city,omitempty"`
	Coordinates *GeoJSON `bson:"coordinates,omitempty" json:"coordinates,omitempty"`
}

// UserOfferStatus is the lifecycle state of a user-posted waste offer.
type UserOfferStatus string

const (
	UserOfferAvailable UserOfferStatus = "available"
	UserOfferPending   UserOfferStatus = "pending"
	UserOfferSold      UserOfferStatus = "sold"
	UserOfferCancelled UserOfferStatus = "cancelled"
)

// UserWasteOffer is waste posted by a user for collectors to bid on.
// Status is `available` iff no purchase request against it is pending or
// accepted; it returns to `available` when all open requests are cleared.
type UserWasteOffer struct {
	Base             `bson:",inline"`
	UserID           utils.SixID     `bson:"user_id" json:"user_id"`
	WasteType        string          `bson:"waste_type" json:"waste_type"`
	Quantity         Quantity        `bson:"quantity" json:"quantity"`
	ExpectedPrice    float64         `bson:"expected_price" json:"expected_price"`
	Location         OfferLocation   `bson:"location" json:"location"`
	Status           UserOfferStatus `bson:"status" json:"status"`
	AvailableFrom    time.Time       `bson:"available_from" json:"available_from"`
	AvailableUntil   time.Time       `bson:"available_until" json:"available_until"`
	PickupPreference string          `bson:"pickup_preference,omitempty" json:"pickup_preference,omitempty"`
	CreatedAt        time.Time       `bson:"created_at" json:"created_at"`
	UpdatedAt        time.Time       `bson:"updated_at" json:"updated_at"`
}

// CollectorOfferStatus is the lifecycle state of a collector-posted bulk offer.
// Transitions: available -> reserved -> sold, or any non-terminal -> cancelled.
type CollectorOfferStatus string

const (
	CollectorOfferAvailable CollectorOfferStatus = "available"
	CollectorOfferReserved  CollectorOfferStatus = "reserved"
	CollectorOfferSold      CollectorOfferStatus = "sold"
	CollectorOfferCancelled CollectorOfferStatus = "cancelled"
)

// DefaultCollectorOfferTTL is how long a collector offer stays live when no
// explicit expiry is given.
const DefaultCollectorOfferTTL = 7 * 24 * time.Hour

// WasteOffer is accumulated inventory posted by a collector for vendors.
type WasteOffer struct {
	Base          `bson:",inline"`
	CollectorID   utils.SixID          `bson:"collector_id" json:"collector_id"`
	WasteType     string               `bson:"waste_type" json:"waste_type"`
	Quantity      Quantity             `bson:"quantity" json:"quantity"`
	MinPricePerKg float64              `bson:"min_price_per_kg" json:"min_price_per_kg"`
	Status        CollectorOfferStatus `bson:"status" json:"status"`
	ExpiresAt     time.Time            `bson:"expires_at" json:"expires_at"`
	Location      OfferLocation        `bson:"location" json:"location"`
	CreatedAt     time.Time            `bson:"created_at" json:"created_at"`
	UpdatedAt     time.Time            `bson:"updated_at" json:"updated_at"`
}
