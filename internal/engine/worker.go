package engine

import (
	"math"
	"sync/atomic"

	"github.com/Gideonrgb101/underflaw-engine/internal/board"
	"github.com/Gideonrgb101/underflaw-engine/internal/tablebase"
)

// Score bounds, per §7. SCORE_INFINITE is never stored in the TT.
const (
	Infinity   = 32000
	MateScore  = 31000
	TBWinScore = 30000
	MaxPly     = 128
)

// lmrTable holds the base LMR reduction per §4.8.4: round(0.5 + ln(depth)*ln(moveCount)/2).
var lmrTable [64][64]int

func init() {
	for d := 1; d < 64; d++ {
		for m := 1; m < 64; m++ {
			r := 0.5 + math.Log(float64(d))*math.Log(float64(m))/2
			lmrTable[d][m] = int(math.Floor(r + 0.5))
		}
	}
}

// PVTable holds the triangular principal-variation array built up by the
// move loop's fail-high backward copy.
type PVTable struct {
	moves  [MaxPly][MaxPly]board.Move
	length [MaxPly]int
}

func (pv *PVTable) update(ply int, move board.Move) {
	pv.moves[ply][ply] = move
	for j := ply + 1; j < pv.length[ply+1]; j++ {
		pv.moves[ply][j] = pv.moves[ply+1][j]
	}
	pv.length[ply] = pv.length[ply+1]
}

// plyState records the move that led to a node, keyed by the ply of the
// node it led *to* — so stack[ply] is the opponent's move one ply back and
// stack[ply-1] is our own move two plies back, matching the continuation
// and followup history tables' indexing.
type plyState struct {
	move  board.Move
	piece board.Piece
	to    board.Square
}

// triedMove records a move searched in the move loop before the cutoff, so
// the post-loop history penalty can be applied to every non-cutoff move.
type triedMove struct {
	move      board.Move
	piece     board.Piece
	captured  board.PieceType
	isCapture bool
}

// Worker is one Lazy-SMP search thread. It owns its own move-ordering
// tables, correction history, position history buffer and search stacks; it
// shares the transposition table and pawn hash table with its siblings.
type Worker struct {
	id int

	pos *board.Position

	orderer     *MoveOrderer
	tt          *TranspositionTable
	pawnTable   *PawnTable
	corrHistory *CorrectionHistory

	tbProber     tablebase.Prober
	tbProbeDepth int

	contempt int

	nodes    uint64
	seldepth int
	pv       PVTable

	stack [MaxPly]plyState

	// posHistoryBuffer holds the game's position hashes (set once per search
	// from the engine's root history) followed by the hashes made along the
	// current search path, so repetition lookback covers positions before
	// the search root as §4.8.2 item 2 requires.
	posHistoryBuffer [768]uint64
	posHistoryLen    int
	rootPosHashes    []uint64

	excludedRootMoves []board.Move
	allowedRootMoves  []board.Move // UCI "go searchmoves"; nil/empty means unrestricted

	stopFlag *atomic.Bool
	resultCh chan<- WorkerResult

	depth      int
	score      int
	helperSkew int // thread_id mod 3, per §4.11
}

// WorkerResult reports one completed iterative-deepening depth.
type WorkerResult struct {
	WorkerID int
	Depth    int
	Score    int
	Move     board.Move
	PV       []board.Move
	Nodes    uint64
}

// NewWorker creates a new search worker.
func NewWorker(id int, tt *TranspositionTable, pawnTable *PawnTable, stopFlag *atomic.Bool) *Worker {
	return &Worker{
		id:          id,
		orderer:     NewMoveOrderer(),
		tt:          tt,
		pawnTable:   pawnTable,
		corrHistory: NewCorrectionHistory(),
		stopFlag:    stopFlag,
		helperSkew:  id % 3,
	}
}

// SetTablebase sets the tablebase prober for this worker.
func (w *Worker) SetTablebase(prober tablebase.Prober, probeDepth int) {
	w.tbProber = prober
	w.tbProbeDepth = probeDepth
	if w.tbProbeDepth < 1 {
		w.tbProbeDepth = 1
	}
}

// SetContempt sets the base contempt value (UCI option, -100..100).
func (w *Worker) SetContempt(c int) {
	w.contempt = c
}

// ID returns the worker's ID.
func (w *Worker) ID() int { return w.id }

// Nodes returns the number of nodes searched by this worker.
func (w *Worker) Nodes() uint64 { return w.nodes }

// Reset clears per-search node counts and move-ordering tables for a new game.
func (w *Worker) Reset() {
	w.nodes = 0
	w.seldepth = 0
	w.orderer.Clear()
	w.corrHistory.Clear()
}

// SetRootHistory sets the position history from the game, for repetition
// detection lookback before the search root.
func (w *Worker) SetRootHistory(hashes []uint64) {
	w.rootPosHashes = make([]uint64, len(hashes))
	copy(w.rootPosHashes, hashes)
}

// SetResultChannel sets the channel for reporting completed depths.
func (w *Worker) SetResultChannel(ch chan<- WorkerResult) {
	w.resultCh = ch
}

// SetExcludedMoves sets the root moves to skip (for MultiPV lines already found).
func (w *Worker) SetExcludedMoves(moves []board.Move) {
	w.excludedRootMoves = moves
}

// SetSearchMoves restricts the root move loop to exactly the given moves
// (UCI "go searchmoves"). A nil or empty list means no restriction.
func (w *Worker) SetSearchMoves(moves []board.Move) {
	w.allowedRootMoves = moves
}

func (w *Worker) isAllowedRootMove(move board.Move) bool {
	if len(w.allowedRootMoves) == 0 {
		return true
	}
	for _, allowed := range w.allowedRootMoves {
		if move == allowed {
			return true
		}
	}
	return false
}

// InitSearch prepares the worker for a new root search. pos must be a copy
// dedicated to this worker; callers must not share it across goroutines.
func (w *Worker) InitSearch(pos *board.Position) {
	w.pos = pos
	w.orderer.ClearKillers()

	rootLen := len(w.rootPosHashes)
	if rootLen > 640 {
		rootLen = 640
		copy(w.posHistoryBuffer[:rootLen], w.rootPosHashes[len(w.rootPosHashes)-640:])
	} else {
		copy(w.posHistoryBuffer[:rootLen], w.rootPosHashes)
	}
	w.posHistoryBuffer[rootLen] = w.pos.Hash
	w.posHistoryLen = rootLen + 1
}

// Pos returns the worker's current position (for debugging/UCI reporting).
func (w *Worker) Pos() *board.Position { return w.pos }

// Score returns the root score from the last completed SearchRoot call.
func (w *Worker) Score() int { return w.score }

// GetPV returns the principal variation from the last completed search.
func (w *Worker) GetPV() []board.Move {
	pv := make([]board.Move, w.pv.length[0])
	copy(pv, w.pv.moves[0][:w.pv.length[0]])
	return pv
}

// bestUnsearchedRootMove picks a fallback move when a root search that was
// not stopped ends without a PV move (every root move failed low); a stopped
// search does not use it. Candidates are ordered by butterfly history so
// the fallback is the best-looking legal move rather than whatever
// GenerateLegalMoves happened to emit first.
func (w *Worker) bestUnsearchedRootMove() board.Move {
	legal := w.pos.GenerateLegalMoves()

	candidates := board.NewMoveList()
	scores := make([]int, 0, legal.Len())
	for i := 0; i < legal.Len(); i++ {
		m := legal.Get(i)
		if w.isExcludedRootMove(m) || !w.isAllowedRootMove(m) {
			continue
		}
		candidates.Add(m)
		scores = append(scores, w.orderer.ButterflyScore(w.pos.PieceAt(m.From()), m.To()))
	}
	if candidates.Len() == 0 {
		return board.NoMove
	}

	SortMoves(candidates, scores)
	return candidates.Get(0)
}

func (w *Worker) isExcludedRootMove(move board.Move) bool {
	for _, excluded := range w.excludedRootMoves {
		if move == excluded {
			return true
		}
	}
	return false
}

func (w *Worker) stopped() bool {
	return w.stopFlag.Load()
}

func (w *Worker) evaluate() int {
	return EvaluateWithPawnTable(w.pos, w.pawnTable)
}

// pushHistory records the current position's hash on the search path, for
// isRepetition lookback, and must be paired with popHistory on unmake.
func (w *Worker) pushHistory() {
	if w.posHistoryLen < len(w.posHistoryBuffer) {
		w.posHistoryBuffer[w.posHistoryLen] = w.pos.Hash
	}
	w.posHistoryLen++
}

func (w *Worker) popHistory() {
	w.posHistoryLen--
}

// isRepetition implements §4.8.2 item 2: lookback must include positions
// before the search root. A position seen once before in the game history
// plus once more in the search path is enough to call it a repetition; a
// position seen twice within the search path alone is also cut short, since
// letting it recur a third time changes nothing but search effort.
func (w *Worker) isRepetition() bool {
	hash := w.pos.Hash
	limit := w.pos.HalfMoveClock
	total := w.posHistoryLen - 1 // exclude the current position itself
	if limit > total {
		limit = total
	}
	count := 0
	for i := 2; i <= limit; i += 2 {
		idx := total - i
		if idx < 0 {
			break
		}
		if w.posHistoryBuffer[idx] == hash {
			count++
			if count >= 2 || idx < len(w.rootPosHashes) {
				return true
			}
		}
	}
	return false
}

// isTheoreticalDraw implements §4.8.2 item 4.
func (w *Worker) isTheoreticalDraw() bool {
	return w.pos.IsInsufficientMaterial()
}

// givesCheck reports whether the side to move (after the caller's MakeMove)
// is in check — which, since MakeMove flips the side to move, is exactly
// "does the move just made give check".
func givesCheck(pos *board.Position) bool {
	return pos.InCheck()
}

// SearchRoot runs negamax at ply 0 (root-move exclusion for MultiPV and
// searchmoves is applied inside negamax's move loop) and, when a search that
// was not stopped ends without a PV move, picks a fallback with
// bestUnsearchedRootMove.
func (w *Worker) SearchRoot(depth, alpha, beta int) (board.Move, int) {
	w.depth = depth
	w.stack[0] = plyState{}

	score := w.negamax(depth, 0, alpha, beta, board.NoMove, false)
	w.score = score

	var bestMove board.Move
	if w.pv.length[0] > 0 {
		bestMove = w.pv.moves[0][0]
	}
	if bestMove == board.NoMove && !w.stopped() {
		bestMove = w.bestUnsearchedRootMove()
	}

	if w.resultCh != nil && !w.stopped() {
		w.resultCh <- WorkerResult{
			WorkerID: w.id,
			Depth:    depth,
			Score:    score,
			Move:     bestMove,
			PV:       w.GetPV(),
			Nodes:    w.nodes,
		}
	}

	return bestMove, score
}

// negamax implements §4.8.2's fixed-order checklist. excludedMove names the
// move skipped for singular-extension verification (board.NoMove normally).
func (w *Worker) negamax(depth, ply int, alpha, beta int, excludedMove board.Move, cutNode bool) int {
	pvNode := beta-alpha > 1
	root := ply == 0

	w.pv.length[ply] = ply

	// 1. Terminal guards.
	if ply >= MaxPly-1 {
		return w.evaluate()
	}
	w.nodes++
	if w.nodes&4095 == 0 && w.stopped() {
		return w.evaluate()
	}

	if !root {
		// 2. Repetition.
		if w.isRepetition() {
			return contemptDraw(w.pos, w.contempt)
		}
		// 3. 50-move rule.
		if w.pos.HalfMoveClock >= 100 {
			return contemptDraw(w.pos, w.contempt)
		}
		// 4. Theoretical draw.
		if w.isTheoreticalDraw() {
			return 0
		}

		// 5. Tablebase probe: non-root, few pieces, no castling rights.
		if w.tbProber != nil && w.tbProber.Available() && depth >= w.tbProbeDepth &&
			w.pos.CastlingRights == board.NoCastling &&
			tablebase.CountPieces(w.pos) <= w.tbProber.MaxPieces() {
			result := w.tbProber.Probe(w.pos)
			if result.Found {
				score := tablebase.WDLToScore(result.WDL, ply)
				if score != 0 {
					flag := TTLowerBound
					if score < 0 {
						flag = TTUpperBound
					}
					w.tt.Store(w.pos.Hash, AdjustScoreToTT(score, ply), depth, flag, board.NoMove)
					return score
				}
				if depth <= 4 {
					return 0
				}
			}
		}
	}

	alphaOrig := alpha

	// 6. TT probe.
	ttEntry := w.tt.Probe(w.pos.Hash)
	ttMove := board.NoMove
	if ttEntry.Found {
		ttMove = ttEntry.BestMove
		// Cutoff only on a non-PV node (§4.8.2 item 6): a PV node always
		// keeps searching so the line stays exact, even with a usable bound
		// in the table. ttMove above is still taken for move ordering.
		if !root && !pvNode && excludedMove == board.NoMove && ttEntry.Depth >= depth {
			score := AdjustScoreFromTT(ttEntry.Score, ply)
			switch ttEntry.Flag {
			case TTExact:
				return score
			case TTLowerBound:
				if score >= beta {
					return score
				}
			case TTUpperBound:
				if score <= alpha {
					return score
				}
			}
		}
	}

	// 7. Quiescence dispatch.
	if depth <= 0 {
		return w.quiescence(ply, alpha, beta)
	}

	inCheck := w.pos.InCheck()

	// 8. Internal iterative deepening.
	iidMin := 8
	if pvNode {
		iidMin = 6
	}
	if ttMove == board.NoMove && depth >= iidMin {
		w.negamax(depth-2, ply, alpha, beta, board.NoMove, cutNode)
		ttEntry = w.tt.Probe(w.pos.Hash)
		if ttEntry.Found {
			ttMove = ttEntry.BestMove
		}
	}

	// 9. Check extension: applied to every child below this node.
	checkExtension := 0
	if inCheck && depth < 10 && ply < MaxPly/2 {
		checkExtension = 1
	}

	// 10. Static eval, correction-adjusted.
	var staticEval int
	if inCheck {
		staticEval = -Infinity
	} else {
		staticEval = w.evaluate() + w.corrHistory.Get(w.pos)
	}

	phase256 := GamePhase256(w.pos)

	if !pvNode && !inCheck && excludedMove == board.NoMove {
		// 11. Reverse futility pruning.
		if depth <= 4 && staticEval-70*depth >= beta {
			return staticEval
		}

		// 12. Razoring.
		if depth <= 3 && staticEval+(300+100*depth) < alpha {
			score := w.quiescence(ply, alpha, alpha+1)
			if score <= alpha {
				return score
			}
		}

		// 13. ProbCut.
		if depth >= 5 {
			probCutBeta := beta + 200
			if staticEval >= probCutBeta-200 {
				mp := NewQuiescencePicker(w.pos, w.orderer, ttMove)
				for {
					m := mp.Next()
					if m == board.NoMove {
						break
					}
					if board.SEE(w.pos, m) < probCutBeta-staticEval {
						continue
					}
					undo := w.makeMove(m, ply)
					score := -w.negamax(3, ply+1, -probCutBeta, -probCutBeta+1, board.NoMove, !cutNode)
					if score >= probCutBeta {
						score = -w.negamax(depth-4, ply+1, -probCutBeta, -probCutBeta+1, board.NoMove, !cutNode)
					}
					w.unmakeMove(m, ply, undo)
					if score >= probCutBeta {
						return score
					}
				}
			}
		}

		// 14. Null-move pruning.
		if depth >= 3 && staticEval >= beta && w.pos.HasNonPawnMaterial() {
			r := 3 + depth/6
			if staticEval-beta > 200 {
				r++
			}
			if staticEval-beta > 400 {
				r++
			}
			if phase256 < 64 {
				r--
			}
			if r < 1 {
				r = 1
			}
			if r > depth-2 {
				r = depth - 2
			}
			if r >= 1 && depth-r-1 >= 0 {
				nullUndo := w.pos.MakeNullMove()
				w.stack[ply+1] = plyState{}
				score := -w.negamax(depth-r-1, ply+1, -beta, -beta+1, board.NoMove, !cutNode)
				w.pos.UnmakeNullMove(nullUndo)
				if score >= beta {
					if depth > 8 {
						verify := w.negamax(depth-r-1, ply, alpha, beta, board.NoMove, cutNode)
						if verify >= beta {
							return verify
						}
					} else {
						return beta
					}
				}
			}
		}
	}

	// 15. Singular extension.
	singularMove := board.NoMove
	if depth >= 8 && ply > 0 && excludedMove == board.NoMove && ttMove != board.NoMove &&
		ttEntry.Found && (ttEntry.Flag == TTLowerBound || ttEntry.Flag == TTExact) && ttEntry.Depth >= depth-3 {
		singularBeta := ttEntry.Score - 2*depth
		singularScore := w.negamax(depth-3, ply, singularBeta-1, singularBeta, ttMove, cutNode)
		if singularScore < singularBeta {
			singularMove = ttMove
		}
	}

	// 16. Move loop.
	prevPiece, prevTo := board.NoPiece, board.Square(0)
	if ply > 0 {
		prevPiece, prevTo = w.stack[ply].piece, w.stack[ply].to
	}
	grandPiece, grandTo := board.NoPiece, board.Square(0)
	if ply > 1 {
		grandPiece, grandTo = w.stack[ply-1].piece, w.stack[ply-1].to
	}

	mp := NewMovePicker(w.pos, w.orderer, ply, ttMove, prevPiece, prevTo, grandPiece, grandTo)

	var quietsTried, capturesTried []triedMove

	legalMoves := 0
	bestScore := -Infinity
	bestMove := board.NoMove

	for {
		m := mp.Next()
		if m == board.NoMove {
			break
		}
		if m == excludedMove || (root && (w.isExcludedRootMove(m) || !w.isAllowedRootMove(m))) {
			continue
		}

		isCapture := m.IsCaptureFlag() || m.IsPromotion()
		capturedType := board.NoPieceType
		attackerType := w.pos.PieceAt(m.From()).Type()
		if m.IsCaptureFlag() && m.To().File() != m.From().File() && attackerType == board.Pawn && w.pos.IsEmpty(m.To()) {
			capturedType = board.Pawn
		} else if cap := w.pos.PieceAt(m.To()); cap != board.NoPiece {
			capturedType = cap.Type()
		}
		quiet := !isCapture

		if !pvNode && !inCheck && legalMoves > 0 {
			// Futility pruning.
			if depth <= 3 && quiet && !m.IsPromotion() {
				margin := 100 + 150*depth
				if phase256 < 64 {
					margin = margin * 12 / 10
				} else if phase256 > 200 {
					margin = margin * 8 / 10
				}
				if staticEval+margin <= alpha {
					continue
				}
			}
			// Late move pruning.
			if depth <= 7 && quiet && legalMoves > 3+2*depth*depth {
				continue
			}
			// SEE pruning.
			if depth <= 4 && quiet && board.SEE(w.pos, m) < -50*depth {
				continue
			}
		}

		movingPiece := w.pos.PieceAt(m.From())

		ext := checkExtension
		if m == singularMove {
			ext++
		}
		if isCapture && depth < 8 && m.To() == prevTo {
			ext++
		}
		if movingPiece.Type() == board.Pawn && m.To().RelativeRank(w.pos.SideToMove) == 6 {
			ext++
		}

		undo := w.makeMove(m, ply)
		w.pushHistory()
		w.tt.Prefetch(w.pos.Hash)

		legalMoves++
		moveGivesCheck := givesCheck(w.pos)

		newDepth := depth - 1 + ext

		var score int
		if legalMoves == 1 {
			score = -w.negamax(newDepth, ply+1, -beta, -alpha, board.NoMove, false)
		} else {
			reduction := 0
			if depth >= 3 {
				d := depth
				if d > 63 {
					d = 63
				}
				mc := legalMoves
				if mc > 63 {
					mc = 63
				}
				reduction = lmrTable[d][mc]
				if pvNode {
					reduction--
				}
				if isCapture {
					reduction--
				}
				if moveGivesCheck {
					reduction--
				}
				h := w.orderer.ButterflyScore(movingPiece, m.To())
				switch {
				case h > 1000:
					reduction -= 2
				case h > 500:
					reduction--
				case h < -500:
					reduction += 2
				case h < -200:
					reduction++
				}
				if depth >= 5 {
					ch := w.orderer.ContinuationScore(prevPiece, prevTo, movingPiece, m.To())
					if ch > 800 {
						reduction--
					} else if ch < -400 {
						reduction++
					}
				}
				if reduction < 0 {
					reduction = 0
				}
				if reduction > depth-2 {
					reduction = depth - 2
				}
				if reduction < 0 {
					reduction = 0
				}
			}

			score = -w.negamax(newDepth-reduction, ply+1, -alpha-1, -alpha, board.NoMove, true)
			if score > alpha && reduction > 0 {
				score = -w.negamax(newDepth, ply+1, -alpha-1, -alpha, board.NoMove, !cutNode)
			}
			if score > alpha && pvNode {
				score = -w.negamax(newDepth, ply+1, -beta, -alpha, board.NoMove, false)
			}
		}

		w.popHistory()
		w.unmakeMove(m, ply, undo)

		if w.stopped() {
			return 0
		}

		if isCapture {
			capturesTried = append(capturesTried, triedMove{m, movingPiece, capturedType, true})
		} else {
			quietsTried = append(quietsTried, triedMove{m, movingPiece, board.NoPieceType, false})
		}

		if score > bestScore {
			bestScore = score
			bestMove = m
			if score > alpha {
				alpha = score
				w.pv.update(ply, m)
				if score >= beta {
					break
				}
			}
		}
	}

	// 17. Post-loop.
	if legalMoves == 0 {
		if excludedMove != board.NoMove {
			return alpha
		}
		if inCheck {
			return -MateScore + ply
		}
		return 0
	}

	if bestScore >= beta {
		bonus := depth * depth
		if !bestMove.IsCaptureFlag() && !bestMove.IsPromotion() {
			w.orderer.UpdateKillers(bestMove, ply)
			bestPiece := w.pos.PieceAt(bestMove.From())
			if bestPiece == board.NoPiece {
				for _, t := range quietsTried {
					if t.move == bestMove {
						bestPiece = t.piece
					}
				}
			}
			w.orderer.UpdateButterfly(bestPiece, bestMove.To(), bonus)
			w.orderer.UpdateContinuation(prevPiece, prevTo, bestPiece, bestMove.To(), bonus)
			w.orderer.UpdateFollowup(grandPiece, grandTo, bestPiece, bestMove.To(), bonus)
			w.orderer.UpdateCounterMove(prevPiece, prevTo, bestMove)

			for _, t := range quietsTried {
				if t.move == bestMove {
					continue
				}
				w.orderer.UpdateButterfly(t.piece, t.move.To(), -bonus)
				w.orderer.UpdateContinuation(prevPiece, prevTo, t.piece, t.move.To(), -bonus)
				w.orderer.UpdateFollowup(grandPiece, grandTo, t.piece, t.move.To(), -bonus)
			}
		} else {
			attacker := w.pos.PieceAt(bestMove.From())
			captured := board.NoPieceType
			for _, t := range capturesTried {
				if t.move == bestMove {
					attacker = t.piece
					captured = t.captured
				}
			}
			w.orderer.UpdateCaptureHistory(attacker, bestMove.To(), captured, bonus)
		}
		for _, t := range capturesTried {
			if t.move == bestMove {
				continue
			}
			w.orderer.UpdateCaptureHistory(t.piece, t.move.To(), t.captured, -bonus)
		}
	}

	if !inCheck && excludedMove == board.NoMove {
		w.corrHistory.Update(w.pos, bestScore, staticEval, depth)
	}

	flag := TTExact
	if bestScore <= alphaOrig {
		flag = TTUpperBound
	} else if bestScore >= beta {
		flag = TTLowerBound
	}
	if excludedMove == board.NoMove {
		w.tt.Store(w.pos.Hash, AdjustScoreToTT(bestScore, ply), depth, flag, bestMove)
	}

	return bestScore
}

// makeMove plays m, recording the ply+1 stack entry that continuation and
// followup history lookups read back one (continuation) and two (followup)
// plies later.
func (w *Worker) makeMove(m board.Move, ply int) board.UndoInfo {
	piece := w.pos.PieceAt(m.From())
	assertDebug(piece != board.NoPiece, "makeMove: no piece on from-square %v for move %v", m.From(), m)
	undo := w.pos.MakeMove(m)
	w.stack[ply+1] = plyState{move: m, piece: piece, to: m.To()}
	return undo
}

func (w *Worker) unmakeMove(m board.Move, ply int, undo board.UndoInfo) {
	w.pos.UnmakeMove(m, undo)
}

// quiescence implements §4.8.5.
func (w *Worker) quiescence(ply, alpha, beta int) int {
	w.nodes++
	if w.nodes&4095 == 0 && w.stopped() {
		return 0
	}
	if ply >= MaxPly-1 {
		return w.evaluate()
	}
	if ply > w.seldepth {
		w.seldepth = ply
	}

	w.pv.length[ply] = ply

	ttEntry := w.tt.Probe(w.pos.Hash)
	ttMove := board.NoMove
	if ttEntry.Found {
		ttMove = ttEntry.BestMove
		score := AdjustScoreFromTT(ttEntry.Score, ply)
		switch ttEntry.Flag {
		case TTExact:
			return score
		case TTLowerBound:
			if score >= beta {
				return score
			}
		case TTUpperBound:
			if score <= alpha {
				return score
			}
		}
	}

	staticEval := w.evaluate()
	if staticEval >= beta {
		return beta
	}
	if staticEval+900 < alpha {
		return alpha
	}
	if staticEval > alpha {
		alpha = staticEval
	}

	mp := NewQuiescencePicker(w.pos, w.orderer, ttMove)
	bestScore := staticEval

	for {
		m := mp.Next()
		if m == board.NoMove {
			break
		}
		if board.SEE(w.pos, m) < 0 {
			continue
		}

		piece := w.pos.PieceAt(m.From())
		undo := w.pos.MakeMove(m)
		w.stack[ply+1] = plyState{move: m, piece: piece, to: m.To()}
		w.tt.Prefetch(w.pos.Hash)
		score := -w.quiescence(ply+1, -beta, -alpha)
		w.pos.UnmakeMove(m, undo)

		if w.stopped() {
			return 0
		}

		if score > bestScore {
			bestScore = score
			if score > alpha {
				alpha = score
				w.pv.update(ply, m)
				if score >= beta {
					w.tt.Store(w.pos.Hash, AdjustScoreToTT(score, ply), 0, TTLowerBound, m)
					return score
				}
			}
		}
	}

	flag := TTUpperBound
	if bestScore > alpha {
		flag = TTExact
	}
	w.tt.Store(w.pos.Hash, AdjustScoreToTT(bestScore, ply), 0, flag, board.NoMove)
	return bestScore
}
