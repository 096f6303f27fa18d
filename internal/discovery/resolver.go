package discovery

import (
	"log/slog"
	"strings"

	"github.com/automonocle/automonocle/internal/hass"
)

// Origin identifies which source resolved a camera's stream URL.
type Origin string

const (
	// OriginGo2RTC means the URL came from the go2rtc stream table.
	OriginGo2RTC Origin = "go2rtc"
	// OriginUniFi means the URL came from the Protect bootstrap API.
	OriginUniFi Origin = "unifi"
	// OriginUniFiFallback means the URL was constructed from a MAC
	// address without contacting the NVR.
	OriginUniFiFallback Origin = "unifi_fallback"
	// OriginAttribute means the URL came from an entity attribute.
	OriginAttribute Origin = "attribute"
)

// Record is one camera in the discovery registry. A record either
// originates from a seeded HA camera entity or is synthesized for a
// UniFi camera HA does not know about.
type Record struct {
	EntityID  string
	Name      string
	StreamURL string
	Origin    Origin

	// state is the original entity state for seeded records, kept so
	// the attribute fold can consult it.
	state *hass.EntityState
}

// Resolved reports whether the record acquired a stream URL.
func (r *Record) Resolved() bool {
	return r.StreamURL != ""
}

// Registry is the canonical camera registry for one discovery pass.
// Records keep insertion order so repeated passes over the same
// upstream data produce the same output.
type Registry struct {
	records []*Record
	index   map[string]*Record
	logger  *slog.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		index:  make(map[string]*Record),
		logger: slog.Default().With("component", "resolver"),
	}
}

// Seed populates the registry from the platform's camera entities.
// Filters are case-insensitive substrings matched against the entity
// ID or friendly name; a filtered-out entity is excluded from the run
// entirely.
func (reg *Registry) Seed(states []hass.EntityState, filters []string) {
	for i := range states {
		state := &states[i]
		if !state.IsCamera() {
			continue
		}
		if !matchesFilters(state, filters) {
			continue
		}

		name := state.Attributes.FriendlyName
		if name == "" {
			name = nameFromEntityID(state.EntityID)
		}

		reg.add(&Record{
			EntityID: state.EntityID,
			Name:     name,
			state:    state,
		})
	}
}

func matchesFilters(state *hass.EntityState, filters []string) bool {
	if len(filters) == 0 {
		return true
	}
	entityID := strings.ToLower(state.EntityID)
	name := strings.ToLower(state.Attributes.FriendlyName)
	for _, f := range filters {
		f = strings.ToLower(f)
		if strings.Contains(entityID, f) || strings.Contains(name, f) {
			return true
		}
	}
	return false
}

// FoldRelay claims at most one record per relay stream: the first
// record whose identifier or name matches the stream name gets the
// URL.
func (reg *Registry) FoldRelay(streams []RelayStream) {
	for _, stream := range streams {
		for _, rec := range reg.records {
			if !matchByName(stream.Name, rec.Name, rec.EntityID, false) {
				continue
			}
			rec.StreamURL = stream.URL
			rec.Origin = OriginGo2RTC
			reg.logger.Info("Matched go2rtc stream", "stream", stream.Name, "entity_id", rec.EntityID)
			break
		}
	}
}

// FoldUniFi matches UniFi streams against records that lack a URL,
// with space-to-underscore normalization against entity IDs. A stream
// matching no record synthesizes a new one; this is the only source
// allowed to create records.
func (reg *Registry) FoldUniFi(streams []UniFiStream, mode UniFiMode) {
	origin := OriginUniFi
	if mode == UniFiModeFallback {
		origin = OriginUniFiFallback
	}

	for _, stream := range streams {
		matched := false
		for _, rec := range reg.records {
			if rec.Resolved() {
				continue
			}
			if !matchByName(stream.Name, rec.Name, rec.EntityID, true) {
				continue
			}
			rec.StreamURL = stream.URL
			rec.Origin = origin
			reg.logger.Info("Matched UniFi camera", "camera", stream.Name, "entity_id", rec.EntityID)
			matched = true
			break
		}

		if !matched {
			entityID := "camera.unifi_" + slugify(stream.Name)
			if _, exists := reg.index[entityID]; exists {
				reg.logger.Warn("Duplicate UniFi camera name, keeping first", "camera", stream.Name, "entity_id", entityID)
				continue
			}
			reg.add(&Record{
				EntityID:  entityID,
				Name:      stream.Name,
				StreamURL: stream.URL,
				Origin:    origin,
			})
			reg.logger.Info("Added UniFi camera", "camera", stream.Name, "entity_id", entityID)
		}
	}
}

// FoldAttributes fills URLs for remaining records from their entity
// attributes. Consulted last; records that already resolved are left
// untouched.
func (reg *Registry) FoldAttributes() {
	for _, rec := range reg.records {
		if rec.Resolved() || rec.state == nil {
			continue
		}
		if url, ok := StreamFromAttributes(rec.state.Attributes); ok {
			rec.StreamURL = url
			rec.Origin = OriginAttribute
			reg.logger.Info("Found stream attribute", "entity_id", rec.EntityID)
		}
	}
}

// Records returns the registry contents in insertion order, including
// records that never acquired a URL.
func (reg *Registry) Records() []*Record {
	return reg.records
}

// ResolvedCount returns how many records acquired a URL.
func (reg *Registry) ResolvedCount() int {
	n := 0
	for _, rec := range reg.records {
		if rec.Resolved() {
			n++
		}
	}
	return n
}

func (reg *Registry) add(rec *Record) {
	if _, exists := reg.index[rec.EntityID]; exists {
		return
	}
	reg.records = append(reg.records, rec)
	reg.index[rec.EntityID] = rec
}

// matchByName decides whether a candidate name from a source describes
// the record. The candidate matches when it contains or is contained
// by the record's name, or when it appears in the record's identifier.
// UniFi candidates carry spaces where entity IDs carry underscores, so
// that path normalizes before the identifier test.
func matchByName(candidate, recordName, recordID string, underscoreNormalize bool) bool {
	c := strings.ToLower(candidate)
	if c == "" {
		return false
	}
	name := strings.ToLower(recordName)
	id := strings.ToLower(recordID)

	if strings.Contains(name, c) {
		return true
	}
	if name != "" && strings.Contains(c, name) {
		return true
	}
	if underscoreNormalize {
		return strings.Contains(id, strings.ReplaceAll(c, " ", "_"))
	}
	return strings.Contains(id, c)
}
