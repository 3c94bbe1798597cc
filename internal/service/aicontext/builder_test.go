package aicontext

import (
	"testing"
	"time"

	locationModel "github.com/yichenzhou/tablemate/internal/model/location"
	"github.com/yichenzhou/tablemate/internal/model/place"
	"github.com/yichenzhou/tablemate/internal/model/profile"
)

type staticLocation struct {
	snap *locationModel.Snapshot
}

func (s staticLocation) Current() *locationModel.Snapshot { return s.snap }

type staticFavorites []place.Place

func (s staticFavorites) Favorites() []place.Place { return s }

// 2026-03-14 is a Saturday.
func fixedClock(hour int) func() time.Time {
	return func() time.Time {
		return time.Date(2026, 3, 14, hour, 30, 0, 0, time.UTC)
	}
}

func TestBuildFullMapping(t *testing.T) {
	b := NewBuilder(
		profile.Profile{
			FirstName:   "Yichen",
			Name:        "Yichen Zhou",
			Preferences: []string{"ramen", "dim sum"},
			PriceRange:  "$$",
		},
		staticLocation{snap: &locationModel.Snapshot{
			City:      "San Francisco",
			Latitude:  37.775,
			Longitude: -122.419,
		}},
		staticFavorites{
			{PlaceID: "a", Name: "Luigi's"},
			{PlaceID: "b", Name: "Golden Wok"},
			{PlaceID: "c", Name: "Taqueria Sol"},
			{PlaceID: "d", Name: "Fourth Place"},
		},
	)
	b.now = fixedClock(12)

	got := b.Build()

	user, ok := got["user"].(map[string]any)
	if !ok || user["first_name"] != "Yichen" || user["name"] != "Yichen Zhou" {
		t.Fatalf("user section = %v", got["user"])
	}

	loc, ok := got["location"].(map[string]any)
	if !ok || loc["city"] != "San Francisco" || loc["latitude"] != 37.775 {
		t.Fatalf("location section = %v", got["location"])
	}
	if _, present := loc["state"]; present {
		t.Fatal("empty state must be omitted")
	}

	taste, ok := got["taste_profile"].(map[string]any)
	if !ok || taste["preferred_price_range"] != "$$" {
		t.Fatalf("taste section = %v", got["taste_profile"])
	}
	names, ok := taste["favorite_places"].([]string)
	if !ok || len(names) != 3 || names[2] != "Taqueria Sol" {
		t.Fatalf("favorite_places = %v, want first three names", taste["favorite_places"])
	}

	prefs, ok := got["preferences"].(map[string]any)
	if !ok || prefs["current_meal_time"] != "lunch" || prefs["is_weekend"] != true {
		t.Fatalf("preferences section = %v", got["preferences"])
	}
}

func TestBuildOmitsEmptySources(t *testing.T) {
	b := NewBuilder(profile.Profile{}, staticLocation{}, staticFavorites(nil))
	b.now = fixedClock(9)

	got := b.Build()

	for _, key := range []string{"user", "location", "taste_profile"} {
		if _, present := got[key]; present {
			t.Fatalf("empty %s section must be omitted, got %v", key, got[key])
		}
	}
	prefs, ok := got["preferences"].(map[string]any)
	if !ok {
		t.Fatal("preferences section always present")
	}
	if prefs["current_meal_time"] != "breakfast" {
		t.Fatalf("current_meal_time = %v", prefs["current_meal_time"])
	}
}

func TestBuildWithNilSources(t *testing.T) {
	b := NewBuilder(profile.Profile{FirstName: "Yichen"}, nil, nil)
	b.now = fixedClock(20)

	got := b.Build()
	if _, present := got["location"]; present {
		t.Fatal("nil location source must be omitted")
	}
	prefs := got["preferences"].(map[string]any)
	if prefs["current_meal_time"] != "dinner" {
		t.Fatalf("current_meal_time = %v", prefs["current_meal_time"])
	}
}

func TestMealPeriodBuckets(t *testing.T) {
	cases := []struct {
		hour int
		want string
	}{
		{4, "late_night"},
		{5, "breakfast"},
		{10, "breakfast"},
		{11, "lunch"},
		{14, "lunch"},
		{15, "afternoon"},
		{16, "afternoon"},
		{17, "dinner"},
		{21, "dinner"},
		{22, "late_night"},
		{0, "late_night"},
	}
	for _, tc := range cases {
		if got := MealPeriod(tc.hour); got != tc.want {
			t.Errorf("MealPeriod(%d) = %q, want %q", tc.hour, got, tc.want)
		}
	}
}

func TestIsWeekend(t *testing.T) {
	saturday := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	monday := time.Date(2026, 3, 16, 12, 0, 0, 0, time.UTC)
	if !IsWeekend(saturday) {
		t.Fatal("Saturday must be a weekend")
	}
	if IsWeekend(monday) {
		t.Fatal("Monday must not be a weekend")
	}
}
