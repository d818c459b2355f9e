package emote

import "github.com/gogpu/emote/catalog"

type (
	// Effect is a named animation: a vertex/fragment WGSL pair, a loop
	// duration in seconds and an optional GIF transparency key.
	Effect = catalog.Effect

	// Catalog is an immutable set of effects keyed by name.
	Catalog = catalog.Catalog
)

// DefaultCatalog returns the built-in effects.
func DefaultCatalog() *Catalog {
	return catalog.Default()
}
