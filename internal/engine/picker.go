package engine

import (
	"github.com/Gideonrgb101/underflaw-engine/internal/board"
)

// pickerStage names the staged-ordering phases of §4.6.
type pickerStage int

const (
	stageTT pickerStage = iota
	stageGoodCaptures
	stageKiller1
	stageKiller2
	stageCounter
	stageQuiets
	stageBadCaptures
	stageDone
)

// scoredMove pairs a move with the score it was sorted by, so bad captures
// (collected during the good-capture stage) can be replayed later without
// regenerating them.
type scoredMove struct {
	move  board.Move
	score int
}

// MovePicker implements the staged lazy move picker of §4.6: it only
// materializes and scores a stage once the previous stage is exhausted,
// and never yields the same move twice.
type MovePicker struct {
	pos   *board.Position
	mo    *MoveOrderer
	ply   int
	ttMove board.Move

	prevPiece board.Piece
	prevTo    board.Square

	grandPiece board.Piece
	grandTo    board.Square

	quiescence bool

	stage pickerStage

	captures    []scoredMove
	goodIdx     int
	badIdx      int
	quiets      []scoredMove
	quietIdx    int

	killer1, killer2, counter board.Move

	pseudo  *board.MoveList
	emitted map[board.Move]bool
}

// NewMovePicker creates a picker for the main search loop at ply, given the
// TT move (if any), the previous move made (for counter-move and one-ply
// continuation lookup), and the move two plies back (for followup lookup).
func NewMovePicker(pos *board.Position, mo *MoveOrderer, ply int, ttMove board.Move, prevPiece board.Piece, prevTo board.Square, grandPiece board.Piece, grandTo board.Square) *MovePicker {
	mp := &MovePicker{
		pos:        pos,
		mo:         mo,
		ply:        ply,
		ttMove:     ttMove,
		prevPiece:  prevPiece,
		prevTo:     prevTo,
		grandPiece: grandPiece,
		grandTo:    grandTo,
		emitted:    make(map[board.Move]bool, 8),
	}
	k1, k2 := mo.Killers(ply)
	mp.killer1, mp.killer2 = k1, k2
	mp.counter = mo.GetCounterMove(mp.prevPiece, mp.prevTo)
	return mp
}

// NewQuiescencePicker creates a picker that only emits stages 1 and 2 (TT
// move, then good captures), per §4.6's quiescence-mode rule.
func NewQuiescencePicker(pos *board.Position, mo *MoveOrderer, ttMove board.Move) *MovePicker {
	return &MovePicker{
		pos:        pos,
		mo:         mo,
		ttMove:     ttMove,
		quiescence: true,
		emitted:    make(map[board.Move]bool, 8),
	}
}

func (mp *MovePicker) legalAndDistinct(m board.Move) bool {
	if m == board.NoMove || mp.emitted[m] {
		return false
	}
	if mp.pseudo == nil {
		mp.pseudo = mp.pos.GeneratePseudoLegalMoves()
	}
	return mp.pseudo.Contains(m) && mp.pos.IsLegal(m)
}

// scoreCaptures generates all captures and buckets them by SEE sign, per
// stage 2 / stage 6: captures with SEE >= 0 sort into the good list,
// SEE < 0 into the bad list, both ranked by MVV-LVA + capture_history/100.
func (mp *MovePicker) scoreCaptures() {
	ml := mp.pos.GenerateCaptures()

	for i := 0; i < ml.Len(); i++ {
		m := ml.Get(i)
		if m == mp.ttMove || !mp.pos.IsLegal(m) {
			continue
		}

		attackerPiece := mp.pos.PieceAt(m.From())
		attacker := attackerPiece.Type()
		var victim board.PieceType
		if m.IsCaptureFlag() && m.To().File() != m.From().File() && attacker == board.Pawn && mp.pos.IsEmpty(m.To()) {
			victim = board.Pawn
		} else if cap := mp.pos.PieceAt(m.To()); cap != board.NoPiece {
			victim = cap.Type()
		} else {
			continue
		}

		score := mvvLva[victim][attacker]*1000 + mp.mo.CaptureHistoryScore(attackerPiece, m.To(), victim)/100

		see := board.SEE(mp.pos, m)
		if see >= 0 {
			if see == 0 {
				score -= 500 // equal trades rank just below winning ones
			}
			mp.captures = append(mp.captures, scoredMove{m, GoodCaptureBase + score})
		} else {
			mp.captures = append(mp.captures, scoredMove{m, BadCaptureBase + score})
		}
	}
}

// scoreQuiets generates remaining quiet moves and scores them per stage 5.
func (mp *MovePicker) scoreQuiets() {
	ml := mp.pos.GenerateQuiets()

	for i := 0; i < ml.Len(); i++ {
		m := ml.Get(i)
		if m == mp.ttMove || m == mp.killer1 || m == mp.killer2 || m == mp.counter {
			continue
		}
		if !mp.pos.IsLegal(m) {
			continue
		}

		piece := mp.pos.PieceAt(m.From())
		score := mp.mo.ButterflyScore(piece, m.To())
		score += mp.mo.ContinuationScore(mp.prevPiece, mp.prevTo, piece, m.To()) / 3
		score += mp.mo.FollowupScore(mp.grandPiece, mp.grandTo, piece, m.To()) / 3
		if mp.prevTo == m.To() {
			score += 200
		}
		mp.quiets = append(mp.quiets, scoredMove{m, score})
	}
}

func pickBest(list []scoredMove, idx int) int {
	best := idx
	for j := idx + 1; j < len(list); j++ {
		if list[j].score > list[best].score {
			best = j
		}
	}
	return best
}

// Next returns the next move in staged order, or board.NoMove when
// exhausted.
func (mp *MovePicker) Next() board.Move {
	for {
		switch mp.stage {
		case stageTT:
			mp.stage = stageGoodCaptures
			if mp.legalAndDistinct(mp.ttMove) {
				mp.emitted[mp.ttMove] = true
				return mp.ttMove
			}

		case stageGoodCaptures:
			if mp.captures == nil && mp.goodIdx == 0 {
				mp.scoreCaptures()
			}
			if mp.goodIdx >= len(mp.captures) || mp.captures[pickBest(mp.captures, mp.goodIdx)].score < GoodCaptureBase {
				if mp.quiescence {
					mp.stage = stageDone
					break
				}
				mp.stage = stageKiller1
				break
			}
			best := pickBest(mp.captures, mp.goodIdx)
			mp.captures[best], mp.captures[mp.goodIdx] = mp.captures[mp.goodIdx], mp.captures[best]
			m := mp.captures[mp.goodIdx].move
			mp.goodIdx++
			if mp.emitted[m] {
				continue
			}
			mp.emitted[m] = true
			return m

		case stageKiller1:
			mp.stage = stageKiller2
			if mp.legalAndDistinct(mp.killer1) && !mp.killer1.IsCaptureFlag() {
				mp.emitted[mp.killer1] = true
				return mp.killer1
			}

		case stageKiller2:
			mp.stage = stageCounter
			if mp.legalAndDistinct(mp.killer2) && !mp.killer2.IsCaptureFlag() {
				mp.emitted[mp.killer2] = true
				return mp.killer2
			}

		case stageCounter:
			mp.stage = stageQuiets
			if mp.legalAndDistinct(mp.counter) && !mp.counter.IsCaptureFlag() {
				mp.emitted[mp.counter] = true
				return mp.counter
			}

		case stageQuiets:
			if mp.quiets == nil && mp.quietIdx == 0 {
				mp.scoreQuiets()
			}
			if mp.quietIdx >= len(mp.quiets) {
				mp.stage = stageBadCaptures
				break
			}
			best := pickBest(mp.quiets, mp.quietIdx)
			mp.quiets[best], mp.quiets[mp.quietIdx] = mp.quiets[mp.quietIdx], mp.quiets[best]
			m := mp.quiets[mp.quietIdx].move
			mp.quietIdx++
			if mp.emitted[m] {
				continue
			}
			mp.emitted[m] = true
			return m

		case stageBadCaptures:
			if mp.badIdx < mp.goodIdx {
				mp.badIdx = mp.goodIdx
			}
			if mp.badIdx >= len(mp.captures) {
				mp.stage = stageDone
				break
			}
			// Everything at index >= goodIdx is, by construction of the
			// good-capture stage above, a SEE < 0 capture.
			best := pickBest(mp.captures, mp.badIdx)
			mp.captures[best], mp.captures[mp.badIdx] = mp.captures[mp.badIdx], mp.captures[best]
			m := mp.captures[mp.badIdx].move
			mp.badIdx++
			if mp.emitted[m] {
				continue
			}
			mp.emitted[m] = true
			return m

		case stageDone:
			return board.NoMove
		}
	}
}
