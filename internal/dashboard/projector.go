package dashboard

import "fmt"

// CategorySummary is the tile-level rollup of one dashboard category.
type CategorySummary struct {
	Category string `json:"category"`
	Total    int    `json:"total"`
	Active   int    `json:"active"`
	Headline string `json:"headline"`
}

// Summarize computes the rollup for one category's entries.
func Summarize(category string, entries []CacheEntry) CategorySummary {
	active := 0
	for _, e := range entries {
		if entryActive(e) {
			active++
		}
	}
	return CategorySummary{
		Category: category,
		Total:    len(entries),
		Active:   active,
		Headline: headline(category, active, len(entries)),
	}
}

// entryActive reports whether an entry counts as "active" for its domain:
// lights on, players playing, locks unlocked, openings open.
func entryActive(e CacheEntry) bool {
	switch e.Domain {
	case "light", "switch", "fan", "humidifier":
		return e.State == "on"
	case "media_player":
		return e.State == "playing"
	case "lock":
		return e.State == "unlocked"
	case "cover", "door", "garage_door":
		return e.State == "open"
	case "binary_sensor":
		return e.State == "on" || e.State == "open" || e.State == "detected"
	case "climate":
		return e.State != "off"
	case "alarm_control_panel":
		return e.State == "triggered" || e.State == "pending"
	default:
		return e.State == "on"
	}
}

func headline(category string, active, total int) string {
	switch category {
	case "lights":
		return fmt.Sprintf("%d light(s) currently on", active)
	case "security":
		if active == 0 {
			return "All clear"
		}
		return fmt.Sprintf("%d alert(s)", active)
	case "climate":
		return fmt.Sprintf("%d climate device(s) running", active)
	case "media":
		return fmt.Sprintf("%d player(s) active", active)
	case "doors":
		if active == 0 {
			return "All closed and locked"
		}
		return fmt.Sprintf("%d open or unlocked", active)
	default:
		return fmt.Sprintf("%d of %d active", active, total)
	}
}
