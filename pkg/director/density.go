package director

import "github.com/KikinaStudio/kikiscroll/pkg/narrative"

// Density holds the layer count of the accumulation section. The level is a
// pure function of progress, but it is only re-derived when the section
// evaluates progress, so a reset sticks at 1 until then.
type Density struct {
	rule  narrative.DensityRule
	level int
}

// NewDensity creates a controller at level 1.
func NewDensity(rule narrative.DensityRule) *Density {
	return &Density{rule: rule, level: 1}
}

// Update recomputes the level from p and reports whether it changed.
func (d *Density) Update(p float64) (int, bool) {
	level := DensityLevel(p, d.rule.MaxLayers)
	changed := level != d.level
	d.level = level
	return level, changed
}

// Reset drops back to a single layer.
func (d *Density) Reset() {
	d.level = 1
}

// Level returns the last evaluated level.
func (d *Density) Level() int {
	return d.level
}

// Stems returns how many stems the current level makes audible.
func (d *Density) Stems() int {
	return ActiveStems(d.rule, d.level)
}
