package engine

import (
	"context"
	"runtime"
	"sync/atomic"
	"time"

	humanize "github.com/dustin/go-humanize"
	"github.com/go-logr/logr"
	"golang.org/x/sync/errgroup"

	"github.com/Gideonrgb101/underflaw-engine/internal/board"
	"github.com/Gideonrgb101/underflaw-engine/internal/book"
	"github.com/Gideonrgb101/underflaw-engine/internal/tablebase"
)

// NumWorkers is the number of parallel search threads (matches CPU cores).
var NumWorkers = runtime.GOMAXPROCS(0)

// SearchInfo reports one completed iterative-deepening iteration to the UCI layer.
type SearchInfo struct {
	Depth    int
	SelDepth int
	Score    int
	Nodes    uint64
	Time     time.Duration
	PV       []board.Move
	HashFull int // permille of TT used
}

// SearchLimits specifies depth/node/time constraints on a search started
// without a UCI clock (analysis mode, fixed-depth tests, MultiPV).
type SearchLimits struct {
	Depth    int           // maximum depth (0 = no limit)
	Nodes    uint64        // maximum nodes (0 = no limit)
	MoveTime time.Duration // time for this move (0 = no limit)
	Infinite bool          // search until stopped
	MultiPV  int           // number of principal variations (0 or 1 = single best move)
}

// SearchResult is one line of a MultiPV search.
type SearchResult struct {
	Move  board.Move
	Score int
	PV    []board.Move
	Depth int
}

// Difficulty is a coarse strength setting for non-UCI callers (e.g. a GUI
// "play vs computer" mode that doesn't speak UCI time controls).
type Difficulty int

const (
	Easy Difficulty = iota
	Medium
	Hard
)

// DifficultySettings maps a Difficulty to concrete search limits.
var DifficultySettings = map[Difficulty]SearchLimits{
	Easy:   {Depth: 3, MoveTime: 500 * time.Millisecond},
	Medium: {Depth: 7, MoveTime: 1 * time.Second},
	Hard:   {Depth: MaxPly, MoveTime: 3 * time.Second},
}

// Engine coordinates the Lazy-SMP search described in §4.11: one Worker per
// thread, all sharing the transposition table and pawn hash table, each with
// its own move-ordering tables and correction-history table.
type Engine struct {
	workers   []*Worker
	tt        *TranspositionTable
	pawnTable *PawnTable
	stopFlag  atomic.Bool

	difficulty Difficulty
	book       *book.Book
	tablebase  tablebase.Prober

	rootPosHashes []uint64

	contempt int
	metrics  *metrics
	log      logr.Logger

	OnInfo func(SearchInfo)
}

// NewEngine creates a new engine with the given transposition table size in MB.
func NewEngine(ttSizeMB int) *Engine {
	tt := NewTranspositionTable(ttSizeMB)
	pawnTable := NewPawnTable(4)

	e := &Engine{
		tt:         tt,
		pawnTable:  pawnTable,
		difficulty: Medium,
		workers:    make([]*Worker, NumWorkers),
		metrics:    newMetrics(),
		log:        logr.Discard(),
	}
	e.log.Info("engine created", "hash", humanize.Bytes(uint64(ttSizeMB)*1024*1024), "workers", NumWorkers)

	for i := range e.workers {
		e.workers[i] = NewWorker(i, tt, pawnTable, &e.stopFlag)
	}

	return e
}

// SetDifficulty sets the non-UCI difficulty level.
func (e *Engine) SetDifficulty(d Difficulty) {
	e.difficulty = d
}

// SetLogger installs a structured logger for engine diagnostics, replacing
// the discard sink NewEngine installs by default. Leveled: Info for
// infrequent lifecycle events, V(1) for per-iteration search diagnostics
// that would otherwise flood a UCI client's stderr.
func (e *Engine) SetLogger(log logr.Logger) {
	e.log = log
}

// SetContempt sets the base draw contempt (UCI option, -100..100) for every worker.
func (e *Engine) SetContempt(c int) {
	e.contempt = c
	for _, w := range e.workers {
		w.SetContempt(c)
	}
}

// SnapshotTT captures up to maxEntries of the hash table's deepest current
// entries, for persisting a warm-start cache across process restarts.
func (e *Engine) SnapshotTT(maxEntries int) []WarmEntry {
	return e.tt.Snapshot(maxEntries)
}

// RestoreTT seeds the hash table from a previously snapshotted warm-start
// cache. Call before the first search so the restored entries can actually
// influence move ordering and cutoffs.
func (e *Engine) RestoreTT(entries []WarmEntry) {
	e.tt.Restore(entries)
}

// LoadBook loads an opening book from a Polyglot file.
func (e *Engine) LoadBook(filename string) error {
	b, err := book.LoadPolyglot(filename)
	if err != nil {
		return err
	}
	e.book = b
	return nil
}

// SetBook sets the opening book.
func (e *Engine) SetBook(b *book.Book) {
	e.book = b
}

// HasBook returns true if an opening book is loaded.
func (e *Engine) HasBook() bool {
	return e.book != nil
}

// SetTablebase sets the tablebase prober shared by every worker.
func (e *Engine) SetTablebase(tb tablebase.Prober) {
	e.tablebase = tb
	for _, w := range e.workers {
		w.SetTablebase(tb, 1)
	}
}

// SetSyzygyProbeDepth sets the minimum depth at which workers probe the
// tablebase (probing at every depth wastes time near the root).
func (e *Engine) SetSyzygyProbeDepth(depth int) {
	for _, w := range e.workers {
		w.SetTablebase(e.tablebase, depth)
	}
}

// EnableLichessTablebase enables online Lichess tablebase lookups, cached
// by position hash so repeated root probes during iterative deepening
// don't re-hit the network for the same position.
func (e *Engine) EnableLichessTablebase() {
	e.SetTablebase(tablebase.NewCachedLichessProber())
}

// HasTablebase returns true if a tablebase is available.
func (e *Engine) HasTablebase() bool {
	return e.tablebase != nil && e.tablebase.Available()
}

// SetPositionHistory sets the game's position history, for repetition
// detection lookback before the search root. Must be called before Search.
func (e *Engine) SetPositionHistory(hashes []uint64) {
	e.rootPosHashes = make([]uint64, len(hashes))
	copy(e.rootPosHashes, hashes)
	for _, w := range e.workers {
		w.SetRootHistory(hashes)
	}
}

// Search finds the best move using the engine's configured difficulty.
func (e *Engine) Search(pos *board.Position) board.Move {
	limits := DifficultySettings[e.difficulty]
	return e.SearchWithLimits(pos, limits)
}

// probeBookAndTablebase returns a move if the opening book or tablebase can
// answer the position outright, skipping the search entirely.
func (e *Engine) probeBookAndTablebase(pos *board.Position) (board.Move, bool) {
	if e.book != nil {
		if move, ok := e.book.Probe(pos); ok {
			return move, true
		}
	}
	if e.tablebase != nil && e.tablebase.Available() {
		if tablebase.CountPieces(pos) <= e.tablebase.MaxPieces() {
			result := e.tablebase.ProbeRoot(pos)
			if result.Found && result.Move != board.NoMove {
				return result.Move, true
			}
		}
	}
	return board.NoMove, false
}

// SearchWithLimits runs a Lazy-SMP search bounded by depth/node/time limits
// with no UCI clock — analysis mode, or a fixed per-move budget.
func (e *Engine) SearchWithLimits(pos *board.Position, limits SearchLimits) board.Move {
	if move, ok := e.probeBookAndTablebase(pos); ok {
		return move
	}

	uciLimits := UCILimits{
		Depth:    limits.Depth,
		Nodes:    limits.Nodes,
		MoveTime: limits.MoveTime,
		Infinite: limits.Infinite,
	}
	move, _ := e.runSearch(pos, uciLimits, 0)
	return move
}

// SearchWithUCILimits runs a Lazy-SMP search under full UCI time controls
// (wtime/btime/winc/binc/movestogo), per §4.10's allocation formula.
func (e *Engine) SearchWithUCILimits(pos *board.Position, limits UCILimits, ply int) board.Move {
	if move, ok := e.probeBookAndTablebase(pos); ok {
		return move
	}
	move, _ := e.runSearch(pos, limits, ply)
	return move
}

// runSearch drives the iterative-deepening / Lazy-SMP coordinator of §4.8.1
// and §4.11: it resets the shared state, launches every worker on its own
// goroutine (errgroup-managed), and lets the main worker (id 0) own the
// clock and the aspiration-window decisions while helpers diversify depth.
func (e *Engine) runSearch(pos *board.Position, limits UCILimits, ply int) (board.Move, int) {
	e.stopFlag.Store(false)
	e.tt.NewSearch()
	for _, w := range e.workers {
		w.Reset()
		w.SetSearchMoves(limits.SearchMoves)
	}

	maxDepth := MaxPly
	if limits.Depth > 0 && limits.Depth < maxDepth {
		maxDepth = limits.Depth
	}

	startTime := time.Now()
	phase256 := GamePhase256(pos)
	tm := NewTimeManager()
	tm.Init(limits, pos.SideToMove, ply, phase256, 0)

	resultCh := make(chan WorkerResult, NumWorkers*4)

	var g errgroup.Group
	for i, w := range e.workers {
		w := w
		id := i
		g.Go(func() error {
			if id == 0 {
				e.mainThreadSearch(w, pos, maxDepth, tm, limits, startTime, resultCh)
			} else {
				e.helperThreadSearch(w, pos, maxDepth)
			}
			return nil
		})
	}

	var totalNodes uint64
	var bestMove board.Move
	var bestScore int
	collectDone := make(chan struct{})
	go func() {
		for r := range resultCh {
			atomic.AddUint64(&totalNodes, r.Nodes)
			if r.WorkerID == 0 && r.Move != board.NoMove {
				bestMove, bestScore = r.Move, r.Score
			}
		}
		close(collectDone)
	}()

	g.Wait()
	close(resultCh)
	<-collectDone

	// §4.11: report the main thread's move unless a helper's deepest result
	// beats it by more than 50cp at equal or greater depth.
	if best := e.pickHelperOverride(bestMove, bestScore); best != board.NoMove {
		bestMove = best
	}

	return bestMove, bestScore
}

// pickHelperOverride implements §4.11's "report main unless a helper is
// >50cp better" rule: a helper's last completed line only counts if it
// reached at least the main thread's depth, and must beat it by more than
// 50cp to be preferred.
func (e *Engine) pickHelperOverride(mainMove board.Move, mainScore int) board.Move {
	if mainMove == board.NoMove {
		return board.NoMove
	}
	mainDepth := e.workers[0].depth

	best := board.NoMove
	bestScore := mainScore
	for i := 1; i < len(e.workers); i++ {
		helper := e.workers[i]
		if helper.depth < mainDepth {
			continue
		}
		pv := helper.GetPV()
		if len(pv) == 0 {
			continue
		}
		if helper.Score() > bestScore+50 {
			bestScore = helper.Score()
			best = pv[0]
		}
	}
	return best
}

// mainThreadSearch owns the clock: it runs the iterative-deepening loop of
// §4.8.1, applies the aspiration-window formula of §4.8.3, reports info to
// the UCI layer, and sets the shared stop flag when time runs out.
func (e *Engine) mainThreadSearch(w *Worker, pos *board.Position, maxDepth int, tm *TimeManager, limits UCILimits, startTime time.Time, resultCh chan<- WorkerResult) {
	rootPos := pos.Copy()
	w.InitSearch(rootPos)

	var prevScore int
	var volatility int
	var consecutiveFails int
	var lastBestMove board.Move
	var stabilityCount, instabilityCount int

	for depth := 1; depth <= maxDepth; depth++ {
		if e.stopFlag.Load() {
			return
		}

		depthStart := time.Now()
		w.orderer.DecayIteration()

		alpha, beta := -Infinity, Infinity
		if depth >= 5 {
			alpha, beta, consecutiveFails = aspirationWindow(prevScore, volatility, consecutiveFails)
		}

		var move board.Move
		var score int
		for {
			move, score = w.SearchRoot(depth, alpha, beta)
			if e.stopFlag.Load() {
				return
			}
			if score <= alpha {
				consecutiveFails++
				delta := aspirationDelta(prevScore, volatility, consecutiveFails)
				alpha = widenLow(prevScore, delta, consecutiveFails)
				e.log.V(1).Info("aspiration fail-low", "depth", depth, "score", score, "alpha", alpha, "fails", consecutiveFails)
				continue
			}
			if score >= beta {
				consecutiveFails++
				delta := aspirationDelta(prevScore, volatility, consecutiveFails)
				beta = widenHigh(prevScore, delta, consecutiveFails)
				e.log.V(1).Info("aspiration fail-high", "depth", depth, "score", score, "beta", beta, "fails", consecutiveFails)
				continue
			}
			break
		}

		if e.stopFlag.Load() {
			return
		}

		if prevScore != 0 || depth > 1 {
			diff := score - prevScore
			if diff < 0 {
				diff = -diff
			}
			volatility = (volatility + diff) / 2
		}
		prevScore = score
		consecutiveFails = 0

		if depth > 1 {
			if move == lastBestMove {
				stabilityCount++
				instabilityCount = 0
			} else {
				instabilityCount++
				stabilityCount = 0
			}
		}
		lastBestMove = move

		nodes := e.totalNodes()
		elapsed := time.Since(startTime)
		hashFull := e.tt.HashFull()
		e.metrics.recordIteration(context.Background(), nodes, time.Since(depthStart), hashFull)
		e.log.V(1).Info("iteration complete", "depth", depth, "nodes", humanize.Comma(int64(nodes)), "hashfull", hashFull)

		if e.OnInfo != nil {
			e.OnInfo(SearchInfo{
				Depth:    depth,
				SelDepth: w.seldepth,
				Score:    score,
				Nodes:    nodes,
				Time:     elapsed,
				PV:       w.GetPV(),
				HashFull: hashFull,
			})
		}

		resultCh <- WorkerResult{WorkerID: 0, Depth: depth, Score: score, Move: move, PV: w.GetPV(), Nodes: w.Nodes()}

		if score > MateScore-100 || score < -MateScore+100 {
			e.stopFlag.Store(true)
			return
		}
		if limits.Nodes > 0 && nodes >= limits.Nodes {
			e.stopFlag.Store(true)
			return
		}

		if instabilityCount > 0 {
			tm.AdjustForInstability(instabilityCount)
		} else {
			tm.AdjustForStability(stabilityCount)
		}

		if depth >= 20 && tm.PastOptimum() {
			e.stopFlag.Store(true)
			return
		}
		if tm.ShouldStop() {
			e.stopFlag.Store(true)
			return
		}
	}
	e.stopFlag.Store(true)
}

// helperThreadSearch runs a plain iterative-deepening loop with no clock
// ownership, diversified per §4.11 by skipping (thread_id mod 3) shallow
// depths so helpers aren't all redundantly searching the same shallow tree.
func (e *Engine) helperThreadSearch(w *Worker, pos *board.Position, maxDepth int) {
	workerPos := pos.Copy()
	w.InitSearch(workerPos)

	startDepth := 1 + w.helperSkew
	for depth := startDepth; depth <= maxDepth; depth++ {
		if e.stopFlag.Load() {
			return
		}
		w.orderer.DecayIteration()
		w.SearchRoot(depth, -Infinity, Infinity)
	}
}

// aspirationWindow computes the initial [alpha, beta] window for a depth,
// per §4.8.3.
func aspirationWindow(prevScore, volatility, fails int) (int, int, int) {
	if fails >= 3 {
		return -Infinity, Infinity, fails
	}
	delta := aspirationDelta(prevScore, volatility, fails)
	return prevScore - delta, prevScore + delta, fails
}

// aspirationDelta implements §4.8.3's literal formula: base 25 + volatility/10,
// set to |prevScore|/8 once |prevScore| > 200, +50 per prior
// fail this depth, capped at 400 (1000 once we've already failed twice).
func aspirationDelta(prevScore, volatility, fails int) int {
	delta := 25 + volatility/10

	abs := prevScore
	if abs < 0 {
		abs = -abs
	}
	if abs > 200 {
		delta = abs / 8
	}

	delta += 50 * fails

	maxDelta := 400
	if fails >= 2 {
		maxDelta = 1000
	}
	if delta > maxDelta {
		delta = maxDelta
	}
	return delta
}

func widenLow(prevScore, delta, fails int) int {
	if fails >= 3 {
		return -Infinity
	}
	return prevScore - delta*2
}

func widenHigh(prevScore, delta, fails int) int {
	if fails >= 3 {
		return Infinity
	}
	return prevScore + delta*2
}

func (e *Engine) totalNodes() uint64 {
	var total uint64
	for _, w := range e.workers {
		total += w.Nodes()
	}
	return total
}

// SearchMultiPV finds multiple principal variations for analysis, searching
// each line with the full Lazy-SMP pool while excluding the moves found by
// earlier lines.
func (e *Engine) SearchMultiPV(pos *board.Position, limits SearchLimits) []SearchResult {
	numPV := limits.MultiPV
	if numPV <= 0 {
		numPV = 1
	}

	results := make([]SearchResult, 0, numPV)
	var excluded []board.Move

	for i := 0; i < numPV; i++ {
		move, score, pv, depth := e.searchWithExclusions(pos, limits, excluded)
		if move == board.NoMove {
			break
		}
		results = append(results, SearchResult{Move: move, Score: score, PV: pv, Depth: depth})
		excluded = append(excluded, move)
	}

	for i := 0; i < len(results)-1; i++ {
		maxIdx := i
		for j := i + 1; j < len(results); j++ {
			if results[j].Score > results[maxIdx].Score {
				maxIdx = j
			}
		}
		if maxIdx != i {
			results[i], results[maxIdx] = results[maxIdx], results[i]
		}
	}

	return results
}

// searchWithExclusions runs a single-line search (main thread only, so
// excluded-move bookkeeping stays simple) skipping any move in excluded.
func (e *Engine) searchWithExclusions(pos *board.Position, limits SearchLimits, excluded []board.Move) (board.Move, int, []board.Move, int) {
	e.stopFlag.Store(false)
	e.tt.NewSearch()
	w := e.workers[0]
	w.Reset()
	w.SetExcludedMoves(excluded)
	defer w.SetExcludedMoves(nil)

	w.InitSearch(pos.Copy())

	maxDepth := MaxPly
	if limits.Depth > 0 {
		maxDepth = limits.Depth
	}

	startTime := time.Now()
	var deadline time.Time
	if limits.MoveTime > 0 {
		deadline = startTime.Add(limits.MoveTime)
	}

	var bestMove board.Move
	var bestScore, bestDepth int

	for depth := 1; depth <= maxDepth; depth++ {
		if !deadline.IsZero() && time.Now().After(deadline) {
			break
		}
		w.orderer.DecayIteration()
		move, score := w.SearchRoot(depth, -Infinity, Infinity)
		if move == board.NoMove {
			break
		}
		bestMove, bestScore, bestDepth = move, score, depth
		if score > MateScore-100 || score < -MateScore+100 {
			break
		}
	}

	return bestMove, bestScore, w.GetPV(), bestDepth
}

// Stop stops the current search.
func (e *Engine) Stop() {
	e.stopFlag.Store(true)
}

// Clear clears the transposition table and every worker's ordering tables
// (new game).
func (e *Engine) Clear() {
	e.tt.Clear()
	for _, w := range e.workers {
		w.Reset()
	}
}

// Perft counts leaf nodes at depth, for move generator verification.
func (e *Engine) Perft(pos *board.Position, depth int) uint64 {
	if depth == 0 {
		return 1
	}
	moves := pos.GenerateLegalMoves()
	if depth == 1 {
		return uint64(moves.Len())
	}
	var nodes uint64
	for i := 0; i < moves.Len(); i++ {
		move := moves.Get(i)
		undo := pos.MakeMove(move)
		nodes += e.Perft(pos, depth-1)
		pos.UnmakeMove(move, undo)
	}
	return nodes
}

// Evaluate returns the static evaluation of a position, side to move's perspective.
func (e *Engine) Evaluate(pos *board.Position) int {
	return Evaluate(pos)
}

// ScoreToString renders a centipawn/mate score the way a human-facing
// display (not the UCI "info" line, which uses its own "score cp"/"score
// mate" tokens) would print it.
func ScoreToString(score int) string {
	if score > MateScore-100 {
		mateIn := (MateScore - score + 1) / 2
		return "Mate in " + itoa(mateIn)
	}
	if score < -MateScore+100 {
		mateIn := (MateScore + score + 1) / 2
		return "Mated in " + itoa(mateIn)
	}

	sign := ""
	if score < 0 {
		sign = "-"
		score = -score
	}
	pawns := score / 100
	centipawns := score % 100
	return sign + itoa(pawns) + "." + itoa(centipawns)
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	if n < 0 {
		return "-" + itoa(-n)
	}
	s := ""
	for n > 0 {
		s = string('0'+byte(n%10)) + s
		n /= 10
	}
	return s
}
