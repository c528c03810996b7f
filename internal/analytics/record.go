package analytics

import (
	"time"

	"github.com/serroba/linkpulse/internal/shortener"
)

// ClickRecord is the durable form of a click. It exclusively owns one
// LocationInfo and one DeviceInfo.
type ClickRecord struct {
	ID          int64          `json:"id"`
	EventID     string         `json:"eventId"`
	ClickedAt   time.Time      `json:"clickedAt"`
	IPAddress   string         `json:"ipAddress"`
	UserAgent   string         `json:"userAgent"`
	ShortLinkID int64          `json:"shortLinkId"`
	ShortCode   shortener.Code `json:"shortCode"`
	Location    LocationInfo   `json:"location"`
	Device      DeviceInfo     `json:"device"`
}

type LocationInfo struct {
	City        string  `json:"city"`
	Region      string  `json:"region"`
	Country     string  `json:"country"`
	CountryCode string  `json:"countryCode"`
	Continent   string  `json:"continent"`
	Latitude    float64 `json:"latitude"`
	Longitude   float64 `json:"longitude"`
}

type DeviceInfo struct {
	OS      string `json:"os"`
	Client  string `json:"client"`
	Brand   string `json:"brand"`
	Model   string `json:"model"`
	IsBot   bool   `json:"isBot"`
	BotName string `json:"botName,omitempty"`
}
