package board

import (
	"fmt"
	"strconv"
	"strings"
)

// StartFEN is the FEN string for the starting position.
const StartFEN = "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1"

// ParseFEN parses a FEN string and returns a Position.
func ParseFEN(fen string) (*Position, error) {
	parts := strings.Fields(fen)
	if len(parts) < 4 {
		return nil, fmt.Errorf("invalid FEN: need at least 4 fields, got %d", len(parts))
	}

	pos := &Position{
		EnPassant:      NoSquare,
		FullMoveNumber: 1,
	}
	pos.KingSquare[White] = NoSquare
	pos.KingSquare[Black] = NoSquare

	// Parse piece placement (field 0)
	if err := parsePiecePlacement(pos, parts[0]); err != nil {
		return nil, err
	}

	// Parse side to move (field 1)
	switch parts[1] {
	case "w":
		pos.SideToMove = White
	case "b":
		pos.SideToMove = Black
	default:
		return nil, fmt.Errorf("invalid side to move: %s", parts[1])
	}

	// Parse castling rights (field 2)
	pos.CastlingRooks = [4]Square{NoSquare, NoSquare, NoSquare, NoSquare}
	if err := parseCastlingRights(pos, parts[2]); err != nil {
		return nil, err
	}

	// Parse en passant square (field 3)
	if parts[3] != "-" {
		sq, err := ParseSquare(parts[3])
		if err != nil {
			return nil, fmt.Errorf("invalid en passant square: %s", parts[3])
		}
		pos.EnPassant = sq
	}

	// Parse half-move clock (field 4, optional)
	if len(parts) > 4 {
		hmc, err := strconv.Atoi(parts[4])
		if err != nil {
			return nil, fmt.Errorf("invalid half-move clock: %s", parts[4])
		}
		pos.HalfMoveClock = hmc
	}

	// Parse full-move number (field 5, optional)
	if len(parts) > 5 {
		fmn, err := strconv.Atoi(parts[5])
		if err != nil {
			return nil, fmt.Errorf("invalid full-move number: %s", parts[5])
		}
		pos.FullMoveNumber = fmn
	}

	// Update derived state
	pos.updateOccupied()
	pos.findKings()
	pos.Hash = pos.ComputeHash()
	pos.PawnKey = pos.ComputePawnKey()

	return pos, nil
}

// parsePiecePlacement parses the piece placement section of a FEN string.
func parsePiecePlacement(pos *Position, placement string) error {
	ranks := strings.Split(placement, "/")
	if len(ranks) != 8 {
		return fmt.Errorf("invalid piece placement: need 8 ranks, got %d", len(ranks))
	}

	for i, rankStr := range ranks {
		rank := 7 - i // FEN starts from rank 8
		file := 0

		for _, c := range rankStr {
			if file > 7 {
				return fmt.Errorf("too many squares in rank %d", rank+1)
			}

			if c >= '1' && c <= '8' {
				// Skip empty squares
				file += int(c - '0')
			} else {
				// Place a piece
				piece := PieceFromChar(byte(c))
				if piece == NoPiece {
					return fmt.Errorf("invalid piece character: %c", c)
				}
				sq := NewSquare(file, rank)
				pos.setPiece(piece, sq)
				file++
			}
		}

		if file != 8 {
			return fmt.Errorf("invalid number of squares in rank %d: got %d", rank+1, file)
		}
	}

	return nil
}

// parseCastlingRights parses the castling rights section of a FEN string,
// accepting both standard KQkq letters and Shredder-FEN file letters for
// FRC. Per §9's resolution of the source's ambiguous fallback: a file
// letter always names the rook's file directly; a plain K/Q/k/q requires
// the rook to be present on the conventional H/A file of that color — it is
// a BadFEN error otherwise, rather than silently guessing.
func parseCastlingRights(pos *Position, castling string) error {
	if castling == "-" {
		pos.CastlingRights = NoCastling
		return nil
	}

	kingFile := func(c Color) int {
		return pos.Pieces[c][King].LSB().File()
	}

	addRight := func(c Color, kingSide bool, rookFile int) error {
		rank := 0
		if c == Black {
			rank = 7
		}
		rookSq := NewSquare(rookFile, rank)
		if pos.Pieces[c][Rook]&SquareBB(rookSq) == 0 {
			return fmt.Errorf("castling rook not present on %s", rookSq)
		}
		var right CastlingRights
		switch {
		case c == White && kingSide:
			right = WhiteKingSideCastle
		case c == White && !kingSide:
			right = WhiteQueenSideCastle
		case c == Black && kingSide:
			right = BlackKingSideCastle
		default:
			right = BlackQueenSideCastle
		}
		pos.CastlingRights |= right
		pos.CastlingRooks[castlingRightIndex(right)] = rookSq
		return nil
	}

	for _, ch := range castling {
		switch {
		case ch == 'K':
			if err := addRight(White, true, 7); err != nil {
				return err
			}
		case ch == 'Q':
			if err := addRight(White, false, 0); err != nil {
				return err
			}
		case ch == 'k':
			if err := addRight(Black, true, 7); err != nil {
				return err
			}
		case ch == 'q':
			if err := addRight(Black, false, 0); err != nil {
				return err
			}
		case ch >= 'A' && ch <= 'H':
			file := int(ch - 'A')
			kingSide := file > kingFile(White)
			if err := addRight(White, kingSide, file); err != nil {
				return err
			}
		case ch >= 'a' && ch <= 'h':
			file := int(ch - 'a')
			kingSide := file > kingFile(Black)
			if err := addRight(Black, kingSide, file); err != nil {
				return err
			}
		default:
			return fmt.Errorf("invalid castling character: %c", ch)
		}
	}

	return nil
}

// ToFEN returns the FEN representation of the position.
func (p *Position) ToFEN() string {
	var sb strings.Builder

	// Piece placement
	for rank := 7; rank >= 0; rank-- {
		empty := 0
		for file := 0; file < 8; file++ {
			sq := NewSquare(file, rank)
			piece := p.PieceAt(sq)
			if piece == NoPiece {
				empty++
			} else {
				if empty > 0 {
					sb.WriteString(strconv.Itoa(empty))
					empty = 0
				}
				sb.WriteString(piece.String())
			}
		}
		if empty > 0 {
			sb.WriteString(strconv.Itoa(empty))
		}
		if rank > 0 {
			sb.WriteByte('/')
		}
	}

	// Side to move
	sb.WriteByte(' ')
	if p.SideToMove == White {
		sb.WriteByte('w')
	} else {
		sb.WriteByte('b')
	}

	// Castling rights
	sb.WriteByte(' ')
	sb.WriteString(p.castlingFEN())

	// En passant
	sb.WriteByte(' ')
	sb.WriteString(p.EnPassant.String())

	// Half-move clock and full-move number
	sb.WriteByte(' ')
	sb.WriteString(strconv.Itoa(p.HalfMoveClock))
	sb.WriteByte(' ')
	sb.WriteString(strconv.Itoa(p.FullMoveNumber))

	return sb.String()
}

// castlingFEN renders castling rights, using standard KQkq letters when
// every set right's rook sits on the conventional H/A file, and Shredder-FEN
// file letters otherwise.
func (p *Position) castlingFEN() string {
	if p.CastlingRights == NoCastling {
		return "-"
	}

	standard := true
	check := func(right CastlingRights, file int) {
		if p.CastlingRights&right == 0 {
			return
		}
		if p.CastlingRooks[castlingRightIndex(right)].File() != file {
			standard = false
		}
	}
	check(WhiteKingSideCastle, 7)
	check(WhiteQueenSideCastle, 0)
	check(BlackKingSideCastle, 7)
	check(BlackQueenSideCastle, 0)

	if standard {
		return p.CastlingRights.String()
	}

	var sb strings.Builder
	if p.CastlingRights&WhiteKingSideCastle != 0 {
		sb.WriteByte(byte('A' + p.CastlingRooks[0].File()))
	}
	if p.CastlingRights&WhiteQueenSideCastle != 0 {
		sb.WriteByte(byte('A' + p.CastlingRooks[1].File()))
	}
	if p.CastlingRights&BlackKingSideCastle != 0 {
		sb.WriteByte(byte('a' + p.CastlingRooks[2].File()))
	}
	if p.CastlingRights&BlackQueenSideCastle != 0 {
		sb.WriteByte(byte('a' + p.CastlingRooks[3].File()))
	}
	return sb.String()
}

// ComputeHash computes the Zobrist hash for the position from scratch,
// using the key tables initialized in zobrist.go.
func (p *Position) ComputeHash() uint64 {
	var hash uint64

	// Hash pieces
	for c := White; c <= Black; c++ {
		for pt := Pawn; pt <= King; pt++ {
			bb := p.Pieces[c][pt]
			for bb != 0 {
				sq := bb.PopLSB()
				hash ^= zobristPiece[c][pt][sq]
			}
		}
	}

	// Hash side to move
	if p.SideToMove == Black {
		hash ^= zobristSideToMove
	}

	// Hash castling rights
	hash ^= zobristCastling[p.CastlingRights]

	// Hash en passant
	if p.EnPassant != NoSquare {
		hash ^= zobristEnPassant[p.EnPassant.File()]
	}

	return hash
}

// ComputePawnKey computes the pawn hash key from scratch.
// Only includes pawn positions for pawn structure caching.
func (p *Position) ComputePawnKey() uint64 {
	var key uint64

	for c := White; c <= Black; c++ {
		bb := p.Pieces[c][Pawn]
		for bb != 0 {
			sq := bb.PopLSB()
			key ^= zobristPiece[c][Pawn][sq]
		}
	}

	return key
}
