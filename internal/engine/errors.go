package engine

import "errors"

// Error-kind sentinels per §7. TimeUp/Stopped are not errors — they are
// plain early returns from the search loop driven by the stop flag; they
// never cross an error boundary.
var (
	// ErrBadFEN marks a position parser rejection. The caller should reply
	// with an info string and leave the prior position untouched.
	ErrBadFEN = errors.New("engine: bad FEN")

	// ErrIllegalMove marks a UCI-supplied move absent from the legal set.
	// The caller should ignore the move and the rest of its move batch.
	ErrIllegalMove = errors.New("engine: illegal move")

	// ErrAllocFailed marks a failed TT/hash-table allocation. The caller
	// should surface an info string and keep the previously sized tables.
	ErrAllocFailed = errors.New("engine: allocation failed")

	// ErrTBProbeFailed marks a tablebase probe that could not be answered
	// (network error, unsupported position). Callers fall back to search.
	ErrTBProbeFailed = errors.New("engine: tablebase probe failed")

	// ErrInternalInvariant marks a search-internal invariant violation,
	// such as make_move failing to find the piece it expected to move.
	// Release builds do not check it; assertDebug in Worker.makeMove turns
	// this into a hard failure in debugassert builds.
	ErrInternalInvariant = errors.New("engine: internal invariant violation")
)
