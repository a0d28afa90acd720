// Package palette assigns stable display colors to backend sources and
// resolves per-weekday working hours.
package palette

import "sync"

// colors is the fixed assignment palette, consumed in registry insertion
// order. Sources keep their slot for the life of the registry.
var colors = [...]string{
	"#becedd", // 190 206 221     Blue
	"#ffcfc6", // 255 207 198     Red
	"#bfe0d4", // 191 224 212     Green
	"#e1d4b7", // 225 212 183     Tan
	"#efd2d2", // 239 210 210     Pink
	"#fed4b3", // 254 212 179     Orange
	"#e2d6e1", // 226 214 225     Purple
	"#fdedbf", // 253 237 191     Yellow
	"#d0d8dc", // 208 216 220     Slate
	"#c8e8c6", // 200 232 198     Mint
}

// PaletteSize is the number of distinct colors before assignment wraps.
const PaletteSize = len(colors)

// Registry hands out one palette color per source ID. Assignment is
// round-robin over the palette and permanent for the registry's lifetime.
// Lookups are safe for concurrent use; new-entry assignment is serialized.
type Registry struct {
	mu       sync.Mutex
	assigned map[string]string
	next     int
}

// NewRegistry returns an empty color registry.
func NewRegistry() *Registry {
	return &Registry{assigned: make(map[string]string)}
}

// Color resolves the display color for a source. An explicitly configured
// color wins; otherwise the source's remembered palette entry is returned,
// assigning the next unused slot on first sight.
func (r *Registry) Color(sourceID, configured string) string {
	if configured != "" {
		return configured
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if c, ok := r.assigned[sourceID]; ok {
		return c
	}
	c := colors[r.next%PaletteSize]
	r.next++
	r.assigned[sourceID] = c
	return c
}

// Len reports how many sources have been assigned a palette slot.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.assigned)
}
