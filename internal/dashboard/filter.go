package dashboard

import (
	"strings"

	"github.com/hearthview/hearthview-core/internal/infrastructure/config"
	"github.com/hearthview/hearthview-core/internal/snapshot"
)

// deviceClassAttr is the attribute key carrying a device's class tag.
const deviceClassAttr = "device_class"

// Filter is the relevance filter: the allow-list deciding which entities
// matter for dashboard display. Selection is by domain and device class per
// category, never by device name. The first matching category wins, in
// configuration order.
type Filter struct {
	categories []categoryRule
}

type categoryRule struct {
	name          string
	domains       map[string]struct{}
	deviceClasses map[string]struct{}
}

// NewFilter builds a Filter from the configured categories.
func NewFilter(categories []config.CategoryConfig) *Filter {
	f := &Filter{categories: make([]categoryRule, 0, len(categories))}
	for _, c := range categories {
		rule := categoryRule{
			name:          c.Name,
			domains:       make(map[string]struct{}, len(c.Domains)),
			deviceClasses: make(map[string]struct{}, len(c.DeviceClasses)),
		}
		for _, d := range c.Domains {
			rule.domains[strings.ToLower(d)] = struct{}{}
		}
		for _, dc := range c.DeviceClasses {
			rule.deviceClasses[strings.ToLower(dc)] = struct{}{}
		}
		f.categories = append(f.categories, rule)
	}
	return f
}

// Categorize returns the category an entity belongs to. An entity matches a
// category when its domain is in the category's domain list, or its
// device_class attribute is in the category's device-class list.
func (f *Filter) Categorize(e snapshot.Entity) (string, bool) {
	domain := strings.ToLower(e.Domain)
	class := strings.ToLower(e.Attributes[deviceClassAttr])

	for _, rule := range f.categories {
		if _, ok := rule.domains[domain]; ok {
			return rule.name, true
		}
		if class != "" {
			if _, ok := rule.deviceClasses[class]; ok {
				return rule.name, true
			}
		}
	}
	return "", false
}
