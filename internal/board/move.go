package board

import "fmt"

// Move encodes a chess move in 32 bits:
// bits 0-5:   from square (0-63)
// bits 6-11:  to square (0-63)
// bits 12-15: promotion piece kind (0=none, else Knight..Queen)
// bits 16-17: flag (0=Quiet, 1=Capture, 2=Special)
//
// Special marks castling: From is the king's square, To is the **rook's**
// square, FRC-friendly. En passant is a Capture whose To equals the
// position's en-passant square. Promotion is orthogonal to flag: a
// promoting capture sets both Capture and a non-zero promotion field.
type Move uint32

// Move flags.
const (
	FlagQuiet   uint32 = 0
	FlagCapture uint32 = 1
	FlagSpecial uint32 = 2
)

const (
	moveToShift        = 6
	movePromotionShift = 12
	moveFlagShift      = 16
	moveFromMask       = 0x3F
	moveToMask         = 0x3F << moveToShift
	movePromotionMask  = 0xF << movePromotionShift
	moveFlagMask       = 0x3 << moveFlagShift
)

// NoMove represents an invalid or null move. It never collides with a valid
// encoded move because a1-a1 (From==To==0) is not a legal move geometry.
const NoMove Move = 0

func encodeMove(from, to Square, promo PieceType, flag uint32) Move {
	return Move(uint32(from)|uint32(to)<<moveToShift|uint32(promo)<<movePromotionShift) | Move(flag<<moveFlagShift)
}

// NewMove creates a quiet, non-special, non-promotion move.
func NewMove(from, to Square) Move {
	return encodeMove(from, to, NoPieceType, FlagQuiet)
}

// NewCapture creates a capture move (includes en passant: To must equal the
// position's ep square for the picker/search to treat it as such).
func NewCapture(from, to Square) Move {
	return encodeMove(from, to, NoPieceType, FlagCapture)
}

// NewPromotion creates a (possibly capturing) promotion move.
func NewPromotion(from, to Square, promo PieceType, isCapture bool) Move {
	flag := FlagQuiet
	if isCapture {
		flag = FlagCapture
	}
	return encodeMove(from, to, promo, flag)
}

// NewCastling creates a castling move. rookSquare is the rook's current
// square, the FRC-friendly destination encoding the spec requires.
func NewCastling(from, rookSquare Square) Move {
	return encodeMove(from, rookSquare, NoPieceType, FlagSpecial)
}

// From returns the origin square.
func (m Move) From() Square {
	return Square(m & moveFromMask)
}

// To returns the destination square (the rook's square for castling).
func (m Move) To() Square {
	return Square((m & moveToMask) >> moveToShift)
}

// Promotion returns the promotion piece kind, or NoPieceType if none.
func (m Move) Promotion() PieceType {
	return PieceType((m & movePromotionMask) >> movePromotionShift)
}

// Flag returns the raw 2-bit flag.
func (m Move) Flag() uint32 {
	return uint32(m&moveFlagMask) >> moveFlagShift
}

// IsPromotion reports whether a promotion piece kind is encoded.
func (m Move) IsPromotion() bool {
	return m.Promotion() != NoPieceType
}

// IsSpecial reports the Special flag (castling).
func (m Move) IsSpecial() bool {
	return m.Flag() == FlagSpecial
}

// IsCastling is an alias for IsSpecial, kept for readability at call sites.
func (m Move) IsCastling() bool {
	return m.IsSpecial()
}

// IsCaptureFlag reports the Capture flag, independent of board state.
func (m Move) IsCaptureFlag() bool {
	return m.Flag() == FlagCapture
}

// IsCapture reports whether this move captures a piece. Kept taking pos for
// call-site symmetry with IsQuiet even though the flag alone decides it.
func (m Move) IsCapture(pos *Position) bool {
	return m.IsCaptureFlag()
}

// IsQuiet reports whether this move is neither a capture nor a promotion.
func (m Move) IsQuiet(pos *Position) bool {
	return !m.IsCaptureFlag() && !m.IsPromotion()
}

// String returns the UCI format of the move. Castling renders in the
// standard king-destination form (e1g1), not the internal king-to-rook
// encoding, since that is what a UCI client expects on the wire.
func (m Move) String() string {
	if m == NoMove {
		return "0000"
	}

	from, to := m.From(), m.To()
	if m.IsCastling() {
		to = castlingKingTarget(from, to)
	}

	s := from.String() + to.String()
	if m.IsPromotion() {
		promoChars := []byte{0, 'n', 'b', 'r', 'q'}
		s += string(promoChars[m.Promotion()-Knight+1])
	}
	return s
}

// castlingKingTarget computes the king's landing square (not the rook's
// square) given the king's origin and the rook it is castling with.
func castlingKingTarget(kingFrom, rookSquare Square) Square {
	rank := kingFrom.Rank()
	if rookSquare.File() > kingFrom.File() {
		return NewSquare(6, rank) // kingside: g-file
	}
	return NewSquare(2, rank) // queenside: c-file
}

// ParseMove parses a UCI format move string against pos, translating both
// standard king-destination castling notation (e1g1) and FRC rook-target
// notation into the internal king-to-rook encoding.
func ParseMove(s string, pos *Position) (Move, error) {
	if len(s) < 4 {
		return NoMove, fmt.Errorf("invalid move string: %s", s)
	}

	from, err := ParseSquare(s[0:2])
	if err != nil {
		return NoMove, err
	}
	to, err := ParseSquare(s[2:4])
	if err != nil {
		return NoMove, err
	}

	piece := pos.PieceAt(from)
	if piece == NoPiece {
		return NoMove, fmt.Errorf("no piece at %s", from)
	}
	pt := piece.Type()
	captured := !pos.IsEmpty(to)

	if len(s) == 5 {
		var promo PieceType
		switch s[4] {
		case 'n':
			promo = Knight
		case 'b':
			promo = Bishop
		case 'r':
			promo = Rook
		case 'q':
			promo = Queen
		default:
			return NoMove, fmt.Errorf("invalid promotion piece: %c", s[4])
		}
		return NewPromotion(from, to, promo, captured), nil
	}

	if pt == King {
		if rookSq, ok := pos.castlingRookFor(from, to); ok {
			return NewCastling(from, rookSq), nil
		}
	}

	if pt == Pawn && to == pos.EnPassant && to.File() != from.File() {
		return NewCapture(from, to), nil
	}

	if captured {
		return NewCapture(from, to), nil
	}
	return NewMove(from, to), nil
}

// MoveList is a fixed-size list of moves to avoid allocations.
type MoveList struct {
	moves [256]Move
	count int
}

// NewMoveList creates an empty move list.
func NewMoveList() *MoveList {
	return &MoveList{}
}

// Add adds a move to the list.
func (ml *MoveList) Add(m Move) {
	ml.moves[ml.count] = m
	ml.count++
}

// Len returns the number of moves in the list.
func (ml *MoveList) Len() int {
	return ml.count
}

// Get returns the move at index i.
func (ml *MoveList) Get(i int) Move {
	return ml.moves[i]
}

// Set sets the move at index i.
func (ml *MoveList) Set(i int, m Move) {
	ml.moves[i] = m
}

// Swap swaps two moves in the list.
func (ml *MoveList) Swap(i, j int) {
	ml.moves[i], ml.moves[j] = ml.moves[j], ml.moves[i]
}

// Clear clears the list.
func (ml *MoveList) Clear() {
	ml.count = 0
}

// Contains returns true if the list contains the move.
func (ml *MoveList) Contains(m Move) bool {
	for i := 0; i < ml.count; i++ {
		if ml.moves[i] == m {
			return true
		}
	}
	return false
}

// Slice returns the moves as a slice.
func (ml *MoveList) Slice() []Move {
	return ml.moves[:ml.count]
}

// UndoInfo stores the information needed to reverse one make_move call.
// Owned by the caller's per-ply stack, per §4.3/§9.
type UndoInfo struct {
	Move           Move
	CapturedPiece  PieceType // NoPieceType if the move was not a capture
	MovedPiece     PieceType
	CastlingRights CastlingRights
	EnPassant      Square
	HalfMoveClock  int
	Hash           uint64
	PawnKey        uint64
}
