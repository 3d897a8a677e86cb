package engine

import (
	"github.com/Gideonrgb101/underflaw-engine/internal/board"
)

// HistoryMax bounds every gravity-updated history table to [-HistoryMax,
// +HistoryMax], per §4.9/§8 invariant 10.
const HistoryMax = 16384

// Move ordering priorities used by the picker's stage scoring.
const (
	TTMoveScore     = 10_000_000
	GoodCaptureBase = 1_000_000
	KillerScore1    = 900_000
	KillerScore2    = 800_000
	CounterScore    = 700_000
	BadCaptureBase  = -100_000
)

// MVV-LVA (Most Valuable Victim - Least Valuable Attacker) base scores.
var mvvLva = [6][6]int{
	//       P    N    B    R    Q    K  (attacker)
	/* P */ {15, 14, 14, 13, 12, 11},
	/* N */ {25, 24, 24, 23, 22, 21},
	/* B */ {35, 34, 34, 33, 32, 31},
	/* R */ {45, 44, 44, 43, 42, 41},
	/* Q */ {55, 54, 54, 53, 52, 51},
	/* K */ {0, 0, 0, 0, 0, 0},
}

// MoveOrderer owns the per-thread history tables the picker and search loop
// consult. Every table is private to one SearchState/worker, per §5's
// "owned exclusively by its thread" rule.
type MoveOrderer struct {
	killers [MaxPly][2]board.Move

	// butterfly[color][piece][to] per §4.5's table shape, indexed by the
	// combined board.Piece (which already encodes color).
	butterfly [12][64]int32

	// captureHistory[attacker][to][victim].
	captureHistory [12][64][6]int32

	counterMoves [12][64]board.Move

	// continuation[prevPiece][prevTo][piece][to] — one-ply pattern.
	continuation [12][64][12][64]int32

	// followup[prevPiece][prevTo][piece][to] — two-ply pattern, updated from
	// the move two plies back rather than one.
	followup [12][64][12][64]int32
}

// NewMoveOrderer creates an empty move orderer.
func NewMoveOrderer() *MoveOrderer {
	return &MoveOrderer{}
}

// clampHistory keeps a gravity-updated counter within [-HistoryMax, HistoryMax].
func clampHistory(v int32) int32 {
	if v > HistoryMax {
		return HistoryMax
	}
	if v < -HistoryMax {
		return -HistoryMax
	}
	return v
}

// gravityUpdate implements §4.9: entry += bonus - entry*|bonus|/HMAX.
func gravityUpdate(entry *int32, bonus int) {
	b := int32(bonus)
	magnitude := b
	if magnitude < 0 {
		magnitude = -magnitude
	}
	*entry += b - (*entry*magnitude)/HistoryMax
	*entry = clampHistory(*entry)
}

// DecayIteration ages the tables between iterative-deepening iterations
// within one search: ×4/5 for butterfly/continuation/followup, ×3/5 for
// capture history. Killers and counter moves are ply-scoped and left alone.
func (mo *MoveOrderer) DecayIteration() {
	for i := range mo.butterfly {
		for j := range mo.butterfly[i] {
			mo.butterfly[i][j] = mo.butterfly[i][j] * 4 / 5
		}
	}
	for i := range mo.captureHistory {
		for j := range mo.captureHistory[i] {
			for k := range mo.captureHistory[i][j] {
				mo.captureHistory[i][j][k] = mo.captureHistory[i][j][k] * 3 / 5
			}
		}
	}
	for i := range mo.continuation {
		for j := range mo.continuation[i] {
			for k := range mo.continuation[i][j] {
				for l := range mo.continuation[i][j][k] {
					mo.continuation[i][j][k][l] = mo.continuation[i][j][k][l] * 4 / 5
					mo.followup[i][j][k][l] = mo.followup[i][j][k][l] * 4 / 5
				}
			}
		}
	}
}

// Clear resets the orderer for a new game.
func (mo *MoveOrderer) Clear() {
	*mo = MoveOrderer{}
}

// ClearKillers clears only the ply-indexed killer table, done once per new
// root search (killers from a previous search are stale at every ply).
func (mo *MoveOrderer) ClearKillers() {
	for i := range mo.killers {
		mo.killers[i][0] = board.NoMove
		mo.killers[i][1] = board.NoMove
	}
}

// UpdateKillers records a quiet cutoff move as a killer at ply.
func (mo *MoveOrderer) UpdateKillers(m board.Move, ply int) {
	if ply >= MaxPly || mo.killers[ply][0] == m {
		return
	}
	mo.killers[ply][1] = mo.killers[ply][0]
	mo.killers[ply][0] = m
}

// Killers returns the two killer moves stored for ply.
func (mo *MoveOrderer) Killers(ply int) (board.Move, board.Move) {
	if ply >= MaxPly {
		return board.NoMove, board.NoMove
	}
	return mo.killers[ply][0], mo.killers[ply][1]
}

// UpdateCounterMove records counterMove as the reply to prevMove.
func (mo *MoveOrderer) UpdateCounterMove(prevPiece board.Piece, prevTo board.Square, counterMove board.Move) {
	if prevPiece == board.NoPiece {
		return
	}
	mo.counterMoves[prevPiece][prevTo] = counterMove
}

// GetCounterMove returns the stored reply to (prevPiece, prevTo).
func (mo *MoveOrderer) GetCounterMove(prevPiece board.Piece, prevTo board.Square) board.Move {
	if prevPiece == board.NoPiece {
		return board.NoMove
	}
	return mo.counterMoves[prevPiece][prevTo]
}

// UpdateButterfly applies a gravity update to the butterfly table for a
// quiet move, positive bonus for the cutoff move and negative for every
// quiet move searched before it that failed to cut off.
func (mo *MoveOrderer) UpdateButterfly(piece board.Piece, to board.Square, bonus int) {
	gravityUpdate(&mo.butterfly[piece][to], bonus)
}

// ButterflyScore returns the raw butterfly score for (piece, to).
func (mo *MoveOrderer) ButterflyScore(piece board.Piece, to board.Square) int {
	return int(mo.butterfly[piece][to])
}

// UpdateCaptureHistory applies a gravity update to the capture history table.
func (mo *MoveOrderer) UpdateCaptureHistory(attacker board.Piece, to board.Square, victim board.PieceType, bonus int) {
	if attacker == board.NoPiece || victim >= board.King {
		return
	}
	gravityUpdate(&mo.captureHistory[attacker][to][victim], bonus)
}

// CaptureHistoryScore returns the raw capture history score.
func (mo *MoveOrderer) CaptureHistoryScore(attacker board.Piece, to board.Square, victim board.PieceType) int {
	if attacker == board.NoPiece || victim >= board.King {
		return 0
	}
	return int(mo.captureHistory[attacker][to][victim])
}

// UpdateContinuation applies a gravity update to the one-ply continuation
// (countermove) history table.
func (mo *MoveOrderer) UpdateContinuation(prevPiece board.Piece, prevTo board.Square, piece board.Piece, to board.Square, bonus int) {
	if prevPiece == board.NoPiece || piece == board.NoPiece {
		return
	}
	gravityUpdate(&mo.continuation[prevPiece][prevTo][piece][to], bonus)
}

// ContinuationScore returns the raw one-ply continuation history score.
func (mo *MoveOrderer) ContinuationScore(prevPiece board.Piece, prevTo board.Square, piece board.Piece, to board.Square) int {
	if prevPiece == board.NoPiece || piece == board.NoPiece {
		return 0
	}
	return int(mo.continuation[prevPiece][prevTo][piece][to])
}

// UpdateFollowup applies a gravity update to the two-ply followup history
// table, keyed by the move made two plies ago rather than the immediate
// parent move.
func (mo *MoveOrderer) UpdateFollowup(grandPiece board.Piece, grandTo board.Square, piece board.Piece, to board.Square, bonus int) {
	if grandPiece == board.NoPiece || piece == board.NoPiece {
		return
	}
	gravityUpdate(&mo.followup[grandPiece][grandTo][piece][to], bonus)
}

// FollowupScore returns the raw two-ply followup history score.
func (mo *MoveOrderer) FollowupScore(grandPiece board.Piece, grandTo board.Square, piece board.Piece, to board.Square) int {
	if grandPiece == board.NoPiece || piece == board.NoPiece {
		return 0
	}
	return int(mo.followup[grandPiece][grandTo][piece][to])
}

// SortMoves sorts a contiguous move/score pair by descending score. Used by
// Worker.bestUnsearchedRootMove to rank the fallback move when a root search
// that was not stopped ends without a PV move (the staged MovePicker handles ordering
// for every other move loop via its own lazy selection).
func SortMoves(moves *board.MoveList, scores []int) {
	n := moves.Len()
	for i := 0; i < n-1; i++ {
		best := i
		for j := i + 1; j < n; j++ {
			if scores[j] > scores[best] {
				best = j
			}
		}
		if best != i {
			moves.Swap(i, best)
			scores[i], scores[best] = scores[best], scores[i]
		}
	}
}
