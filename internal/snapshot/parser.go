package snapshot

import "strings"

// Entity is one device record decoded from a snapshot. The display name is
// the natural key; the controller does not expose stable machine ids in the
// live-context format.
type Entity struct {
	// ID is the device display name, e.g. "Kitchen Light".
	ID string `json:"id"`

	// Domain is the device category tag, e.g. "light", "lock", "sensor".
	Domain string `json:"domain"`

	// State is the current state value, e.g. "on", "locked", "21.5".
	State string `json:"state"`

	// Area is the room or zone the device belongs to, when reported.
	Area string `json:"area,omitempty"`

	// Attributes holds every other key reported for the block.
	Attributes map[string]string `json:"attributes,omitempty"`
}

// blockPrefix introduces a new entity block in the snapshot text.
const blockPrefix = "- names:"

// unavailableState marks devices the controller cannot currently reach.
const unavailableState = "unavailable"

// Parse decodes snapshot text into entities, preserving input order. Blocks
// open with a "- names: <value>" line; indented "key: value" lines below it
// fill the record. "domain", "state" and "areas" are recognized directly,
// everything else lands in Attributes with surrounding quotes stripped.
//
// Blocks with no domain, and blocks whose state is "unavailable", are
// dropped. Parse is total: malformed or empty input yields an empty slice,
// and unrecognized lines are skipped, because the controller's output
// format drifts between releases.
func Parse(text string) []Entity {
	var entities []Entity
	var cur *Entity

	flush := func() {
		if cur == nil {
			return
		}
		if cur.Domain != "" && cur.State != unavailableState {
			entities = append(entities, *cur)
		}
		cur = nil
	}

	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)

		if strings.HasPrefix(trimmed, blockPrefix) {
			flush()
			cur = &Entity{
				ID:         stripQuotes(strings.TrimSpace(trimmed[len(blockPrefix):])),
				Attributes: make(map[string]string),
			}
			continue
		}

		if cur == nil {
			continue
		}

		// Block fields are indented; an unindented line (a header, prose,
		// or trailing noise) terminates the current block.
		if trimmed != "" && line == trimmed {
			flush()
			continue
		}

		key, value, ok := strings.Cut(trimmed, ":")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		value = stripQuotes(strings.TrimSpace(value))

		switch key {
		case "":
			// Nothing before the colon; noise.
		case "domain":
			cur.Domain = value
		case "state":
			cur.State = value
		case "areas":
			cur.Area = value
		case "attributes":
			// Section header; its children arrive as further indented
			// key/value lines and are captured below.
		default:
			cur.Attributes[key] = value
		}
	}
	flush()

	return entities
}

// stripQuotes removes one matching pair of surrounding quotes, the way the
// controller quotes values like '255' and 'on'.
func stripQuotes(s string) string {
	if len(s) >= 2 {
		first, last := s[0], s[len(s)-1]
		if first == last && (first == '\'' || first == '"') {
			return s[1 : len(s)-1]
		}
	}
	return s
}
