package world

// spawnPoint picks a uniformly random centre that keeps a body of the given
// radius fully inside the world. A world narrower than the body pins it to
// the near edge.
func (w *World) spawnPoint(radius float64) (x, y float64) {
	x = radius
	if span := w.cfg.Width - 2*radius; span > 0 {
		x += w.rng.Float64() * span
	}
	y = radius
	if span := w.cfg.Height - 2*radius; span > 0 {
		y += w.rng.Float64() * span
	}
	return x, y
}
