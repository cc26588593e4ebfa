// Package candidates defines the thumbnail candidate model shared by the
// selection heuristics, the engine and the outer surfaces.
package candidates
