package domain

import (
	"time"
)

// Zone is a backend-assigned geographic cluster ("tower") that posts belong to.
// Location is nil when the zone has no representative coordinate.
type Zone struct {
	ID           string    `json:"id"`
	Location     *Location `json:"location,omitempty"`
	RadiusMeters int       `json:"radius_meters,omitempty"`
	PostCount    int       `json:"post_count"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (z Zone) EntityID() string { return z.ID }

func (z Zone) Position() (Location, bool) {
	if z.Location == nil {
		return Location{}, false
	}
	return *z.Location, true
}

// Post is a geo-tagged piece of user content.
type Post struct {
	ID        string    `json:"id"`
	ZoneID    string    `json:"zone_id,omitempty"`
	UserID    string    `json:"user_id"`
	Username  string    `json:"username,omitempty"`
	Content   string    `json:"content"`
	Location  Location  `json:"location"`
	CreatedAt time.Time `json:"created_at"`
}

func (p Post) EntityID() string { return p.ID }

func (p Post) Position() (Location, bool) { return p.Location, true }

// ZoneActivity is the per-zone count feed used for hot-zone ranking.
type ZoneActivity struct {
	Zone        Zone `json:"zone"`
	Count       int  `json:"count"`
	RecentCount int  `json:"recent_count"` // last hour
	UniqueUsers int  `json:"unique_users"`
}

func (a ZoneActivity) EntityID() string { return a.Zone.ID }

func (a ZoneActivity) Position() (Location, bool) { return a.Zone.Position() }

// Activity levels assigned to hot zones.
const (
	ActivityHot     = "hot"
	ActivityVeryHot = "very_hot"
	ActivityExtreme = "extreme"
)

// HotZone is a zone ranked by nearby activity.
type HotZone struct {
	Zone          Zone    `json:"zone"`
	Rank          int     `json:"rank"` // 1-based
	Count         int     `json:"count"`
	UniqueUsers   int     `json:"unique_users"`
	Distance      float64 `json:"distance"`
	ActivityLevel string  `json:"activity_level"`
	ActivityScore float64 `json:"activity_score"` // 0-100
}

// HotZoneStats summarises a hot-zone ranking.
type HotZoneStats struct {
	TotalCount       int      `json:"total_count"`
	TotalUniqueUsers int      `json:"total_unique_users"`
	HotCount         int      `json:"hot_count"`
	VeryHotCount     int      `json:"very_hot_count"`
	ExtremeCount     int      `json:"extreme_count"`
	MostActive       *HotZone `json:"most_active,omitempty"`
}

// HotZoneReport is the full response of a hot-zone query.
type HotZoneReport struct {
	Zones      []HotZone    `json:"zones"`
	Stats      HotZoneStats `json:"stats"`
	SearchArea string       `json:"search_area"`
	Analyzed   int          `json:"analyzed"`
}

// Place is the part of a reverse-geocoding result the service reads.
type Place struct {
	Text      string `json:"text"`
	PlaceName string `json:"place_name"`
}
