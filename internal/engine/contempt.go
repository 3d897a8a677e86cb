package engine

import (
	"github.com/Gideonrgb101/underflaw-engine/internal/board"
)

// GamePhase256 returns the game phase on a 0-256 scale, 256 being the
// opening (full material) and 0 the bare-kings endgame. Reuses the same
// knight/bishop/rook/queen weighting as the tapered evaluator's internal
// phase counter, just rescaled for the search's pruning-margin formulas.
func GamePhase256(pos *board.Position) int {
	phase := 0
	for c := board.White; c <= board.Black; c++ {
		phase += pos.Pieces[c][board.Knight].PopCount() * 1
		phase += pos.Pieces[c][board.Bishop].PopCount() * 1
		phase += pos.Pieces[c][board.Rook].PopCount() * 2
		phase += pos.Pieces[c][board.Queen].PopCount() * 4
	}
	const maxPhase = 24
	if phase > maxPhase {
		phase = maxPhase
	}
	return phase * 256 / maxPhase
}

// contemptDraw computes the draw score to return from a negamax node (in the
// side-to-move's perspective), per §7: the configured baseContempt is scaled
// up to 1.5x when the side to move is ahead on material, down to 0.5x
// when behind, and 4/3x in endgames; clamped to [-50, 100]; the result is
// negated, and flipped again for Black to move.
func contemptDraw(pos *board.Position, baseContempt int) int {
	if baseContempt == 0 {
		return 0
	}

	material := pos.Material()
	if pos.SideToMove == board.Black {
		material = -material
	}

	scale := 100
	switch {
	case material > 100:
		scale = 150
	case material < -100:
		scale = 50
	}
	if GamePhase256(pos) < 64 {
		scale = scale * 4 / 3
	}

	c := baseContempt * scale / 100
	if c > 100 {
		c = 100
	}
	if c < -50 {
		c = -50
	}

	if pos.SideToMove == board.Black {
		return c
	}
	return -c
}
