package engine

import (
	"time"

	"github.com/Gideonrgb101/underflaw-engine/internal/board"
)

// UCILimits contains UCI time control parameters.
type UCILimits struct {
	Time        [2]time.Duration // wtime, btime (remaining time for each color)
	Inc         [2]time.Duration // winc, binc (increment per move)
	MovesToGo   int              // moves until next time control (0 = sudden death)
	MoveTime    time.Duration    // fixed time per move (overrides other time controls)
	Depth       int              // maximum search depth
	Nodes       uint64           // maximum nodes to search
	Infinite    bool             // search until stopped
	Ponder      bool             // ponder mode
	SearchMoves []board.Move     // restrict the root move loop to these moves ("go searchmoves"); empty = unrestricted
}

// TimeManager allocates {optimal, max, panic} per §4.10 and decides when to stop.
type TimeManager struct {
	optimumTime time.Duration
	baseOptimum time.Duration // optimumTime as computed by Init, before stability scaling
	maximumTime time.Duration
	panicTime   time.Duration
	startTime   time.Time
	fixed       bool
	unbounded   bool
}

// NewTimeManager creates a new time manager.
func NewTimeManager() *TimeManager {
	return &TimeManager{}
}

// Init computes the §4.10 allocation for this move.
//
// base = remaining/(moves_to_go+3) + 3/4*increment, phase- and score-scaled,
// with sudden-death (base = remaining/40) and emergency (remaining < 30s or
// 30*increment -> base = remaining/10) overrides. allocated is capped to
// remaining/2; optimal = base, max = min(3*base, remaining/4),
// panic = max(100ms, base/3).
func (tm *TimeManager) Init(limits UCILimits, us board.Color, ply int, phase256, prevScore int) {
	tm.startTime = time.Now()
	tm.fixed = false
	tm.unbounded = false
	defer func() { tm.baseOptimum = tm.optimumTime }()

	if limits.MoveTime > 0 {
		tm.optimumTime = limits.MoveTime
		tm.maximumTime = limits.MoveTime
		tm.panicTime = limits.MoveTime / 3
		tm.fixed = true
		return
	}

	if limits.Infinite || (limits.Time[us] == 0 && limits.MoveTime == 0) {
		tm.optimumTime = time.Hour
		tm.maximumTime = time.Hour
		tm.panicTime = time.Hour
		tm.unbounded = true
		return
	}

	remaining := limits.Time[us]
	inc := limits.Inc[us]
	mtg := limits.MovesToGo

	var base time.Duration
	if mtg > 0 {
		base = remaining/time.Duration(mtg+3) + inc*3/4
	} else {
		// Sudden death, no moves-to-go.
		base = remaining / 40
	}

	// Phase scaling: opening 0.8x, endgame 1.2x.
	if phase256 > 200 {
		base = base * 8 / 10
	} else if phase256 < 64 {
		base = base * 12 / 10
	}

	// Score scaling: winning decisively spends less, losing decisively spends more.
	abs := prevScore
	if abs < 0 {
		abs = -abs
	}
	switch {
	case prevScore > 300:
		base = base * 7 / 10
	case prevScore < -300:
		base = base * 14 / 10
	case abs > 100 && prevScore > 0:
		base = base * 85 / 100
	case abs > 100 && prevScore < 0:
		base = base * 12 / 10
	}

	// Emergency: very little time left.
	emergencyFloor := 30 * time.Second
	if inc*30 > emergencyFloor {
		emergencyFloor = inc * 30
	}
	if remaining < emergencyFloor {
		base = remaining / 10
	}

	allocated := base
	if allocated > remaining/2 {
		allocated = remaining / 2
	}

	tm.optimumTime = allocated
	tm.maximumTime = allocated * 3
	if maxQuarter := remaining / 4; tm.maximumTime > maxQuarter {
		tm.maximumTime = maxQuarter
	}
	tm.panicTime = tm.optimumTime / 3
	if tm.panicTime < 100*time.Millisecond {
		tm.panicTime = 100 * time.Millisecond
	}

	if tm.optimumTime < 10*time.Millisecond {
		tm.optimumTime = 10 * time.Millisecond
	}
	if tm.maximumTime < 50*time.Millisecond {
		tm.maximumTime = 50 * time.Millisecond
	}
}

// Elapsed returns the time elapsed since search started.
func (tm *TimeManager) Elapsed() time.Duration {
	return time.Since(tm.startTime)
}

// OptimumTime returns the optimal allocation; SoftLimit is 80% of it.
func (tm *TimeManager) OptimumTime() time.Duration {
	return tm.optimumTime
}

// MaximumTime returns the hard allocation.
func (tm *TimeManager) MaximumTime() time.Duration {
	return tm.maximumTime
}

// SoftLimit returns 80% of the optimal allocation, per §4.10.
func (tm *TimeManager) SoftLimit() time.Duration {
	return tm.optimumTime * 8 / 10
}

// ShouldStop reports whether the hard (maximum) limit has been reached. The
// soft limit is checked separately through PastOptimum.
func (tm *TimeManager) ShouldStop() bool {
	if tm.unbounded {
		return false
	}
	return tm.Elapsed() >= tm.maximumTime
}

// PastOptimum returns true if we've exceeded the soft limit.
func (tm *TimeManager) PastOptimum() bool {
	if tm.unbounded {
		return false
	}
	return tm.Elapsed() >= tm.SoftLimit()
}

// AdjustForStability shrinks the soft limit when the root best move has been
// stable across several iterations. Enrichment on top of §4.10's literal
// formula — always scales from the original Init allocation, so repeated
// calls across iterations don't compound.
func (tm *TimeManager) AdjustForStability(stability int) {
	if tm.fixed || tm.unbounded {
		return
	}
	switch {
	case stability >= 6:
		tm.optimumTime = tm.baseOptimum * 40 / 100
	case stability >= 4:
		tm.optimumTime = tm.baseOptimum * 60 / 100
	case stability >= 2:
		tm.optimumTime = tm.baseOptimum * 80 / 100
	default:
		tm.optimumTime = tm.baseOptimum
	}
}

// AdjustForInstability grows the soft limit (never past the hard limit) when
// the root best move keeps changing. Also scales from the original Init
// allocation, not the current value.
func (tm *TimeManager) AdjustForInstability(changes int) {
	if tm.fixed || tm.unbounded {
		return
	}
	switch {
	case changes >= 4:
		tm.optimumTime = tm.baseOptimum * 200 / 100
	case changes >= 2:
		tm.optimumTime = tm.baseOptimum * 150 / 100
	default:
		tm.optimumTime = tm.baseOptimum
	}
	if tm.optimumTime > tm.maximumTime {
		tm.optimumTime = tm.maximumTime
	}
}
