// Package aicontext assembles the per-request context mapping attached
// to outbound concierge messages.
package aicontext

import (
	"time"

	locationModel "github.com/yichenzhou/tablemate/internal/model/location"
	"github.com/yichenzhou/tablemate/internal/model/place"
	"github.com/yichenzhou/tablemate/internal/model/profile"
)

// LocationSource is the read side of the location cache.
type LocationSource interface {
	Current() *locationModel.Snapshot
}

// CollectionsSource is the read side of the collections cache.
type CollectionsSource interface {
	Favorites() []place.Place
}

// Builder produces context snapshots. Each Build call computes the
// time-of-day fields fresh; nothing is cached or reused between calls.
type Builder struct {
	profile     profile.Profile
	location    LocationSource
	collections CollectionsSource
	now         func() time.Time
}

// NewBuilder wires the aggregator. location and collections may be nil.
func NewBuilder(p profile.Profile, location LocationSource, collections CollectionsSource) *Builder {
	return &Builder{
		profile:     p,
		location:    location,
		collections: collections,
		now:         time.Now,
	}
}

// Build assembles the mapping. A source with no data is omitted
// entirely rather than included as an empty value.
func (b *Builder) Build() map[string]any {
	out := make(map[string]any)

	if user := b.userSection(); len(user) > 0 {
		out["user"] = user
	}
	if loc := b.locationSection(); len(loc) > 0 {
		out["location"] = loc
	}
	if taste := b.tasteSection(); len(taste) > 0 {
		out["taste_profile"] = taste
	}

	now := b.now()
	out["preferences"] = map[string]any{
		"current_meal_time": MealPeriod(now.Hour()),
		"is_weekend":        IsWeekend(now),
	}
	return out
}

func (b *Builder) userSection() map[string]any {
	user := make(map[string]any)
	if b.profile.FirstName != "" {
		user["first_name"] = b.profile.FirstName
	}
	if b.profile.Name != "" {
		user["name"] = b.profile.Name
	}
	return user
}

func (b *Builder) locationSection() map[string]any {
	if b.location == nil {
		return nil
	}
	snap := b.location.Current()
	if snap == nil {
		return nil
	}
	loc := map[string]any{
		"latitude":  snap.Latitude,
		"longitude": snap.Longitude,
	}
	if snap.City != "" {
		loc["city"] = snap.City
	}
	if snap.State != "" {
		loc["state"] = snap.State
	}
	return loc
}

func (b *Builder) tasteSection() map[string]any {
	taste := make(map[string]any)
	if len(b.profile.Preferences) > 0 {
		taste["preferred_categories"] = b.profile.Preferences
	}
	if b.profile.PriceRange != "" {
		taste["preferred_price_range"] = b.profile.PriceRange
	}
	if b.collections != nil {
		if favorites := b.collections.Favorites(); len(favorites) > 0 {
			names := make([]string, 0, 3)
			for _, p := range favorites {
				names = append(names, p.Name)
				if len(names) == 3 {
					break
				}
			}
			taste["favorite_places"] = names
		}
	}
	return taste
}

// MealPeriod buckets an hour of day into the meal slots the concierge
// understands.
func MealPeriod(hour int) string {
	switch {
	case hour >= 5 && hour < 11:
		return "breakfast"
	case hour >= 11 && hour < 15:
		return "lunch"
	case hour >= 15 && hour < 17:
		return "afternoon"
	case hour >= 17 && hour < 22:
		return "dinner"
	default:
		return "late_night"
	}
}

// IsWeekend reports whether t falls on a Saturday or Sunday.
func IsWeekend(t time.Time) bool {
	day := t.Weekday()
	return day == time.Saturday || day == time.Sunday
}
