package engine

// CheckVictory reports whether some cell holds both a quantum box and a goal
func CheckVictory(g *Grid) bool {
	for _, box := range g.Entities() {
		if box.kind != KindQuantumBox {
			continue
		}
		for _, other := range g.EntitiesAt(box.pos) {
			if other.kind == KindGoal {
				return true
			}
		}
	}
	return false
}
