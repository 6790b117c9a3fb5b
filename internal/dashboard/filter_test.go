package dashboard

import (
	"testing"

	"github.com/hearthview/hearthview-core/internal/infrastructure/config"
	"github.com/hearthview/hearthview-core/internal/snapshot"
)

func TestFilter_Categorize(t *testing.T) {
	f := NewFilter(testCategories())

	tests := []struct {
		name     string
		entity   snapshot.Entity
		wantCat  string
		wantKeep bool
	}{
		{
			name:     "domain match",
			entity:   snapshot.Entity{ID: "Kitchen Light", Domain: "light", State: "on"},
			wantCat:  "lights",
			wantKeep: true,
		},
		{
			name: "device class match",
			entity: snapshot.Entity{
				ID: "Porch Motion", Domain: "binary_sensor", State: "off",
				Attributes: map[string]string{"device_class": "motion"},
			},
			wantCat:  "security",
			wantKeep: true,
		},
		{
			name:     "no match",
			entity:   snapshot.Entity{ID: "Pollen Count", Domain: "sensor", State: "42"},
			wantKeep: false,
		},
		{
			name:     "case insensitive domain",
			entity:   snapshot.Entity{ID: "Lamp", Domain: "Light", State: "on"},
			wantCat:  "lights",
			wantKeep: true,
		},
		{
			name: "unlisted device class ignored",
			entity: snapshot.Entity{
				ID: "Pollen Sensor", Domain: "sensor", State: "42",
				Attributes: map[string]string{"device_class": "aqi"},
			},
			wantKeep: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cat, keep := f.Categorize(tt.entity)
			if keep != tt.wantKeep {
				t.Fatalf("keep = %v, want %v", keep, tt.wantKeep)
			}
			if keep && cat != tt.wantCat {
				t.Errorf("category = %q, want %q", cat, tt.wantCat)
			}
		})
	}
}

func TestFilter_FirstCategoryWins(t *testing.T) {
	f := NewFilter([]config.CategoryConfig{
		{Name: "first", Domains: []string{"light"}},
		{Name: "second", Domains: []string{"light"}},
	})

	cat, ok := f.Categorize(snapshot.Entity{ID: "Lamp", Domain: "light", State: "on"})
	if !ok || cat != "first" {
		t.Errorf("category = %q (ok=%v), want first", cat, ok)
	}
}

func TestFilter_DefaultCategoriesCoverDashboardGroups(t *testing.T) {
	f := NewFilter(config.DefaultCategories())

	cases := map[string]snapshot.Entity{
		"lights":  {ID: "Lamp", Domain: "light", State: "on"},
		"climate": {ID: "Thermostat", Domain: "climate", State: "heat"},
		"media":   {ID: "TV", Domain: "media_player", State: "playing"},
		"doors":   {ID: "Front Door", Domain: "lock", State: "locked"},
	}
	for want, entity := range cases {
		cat, ok := f.Categorize(entity)
		if !ok || cat != want {
			t.Errorf("%s entity categorized as %q (ok=%v)", want, cat, ok)
		}
	}
}
