package board

// GenerateLegalMoves generates all legal moves for the position.
func (p *Position) GenerateLegalMoves() *MoveList {
	ml := NewMoveList()
	p.generateAllMoves(ml)
	return p.filterLegalMoves(ml)
}

// GeneratePseudoLegalMoves generates all pseudo-legal moves (may leave king in check).
func (p *Position) GeneratePseudoLegalMoves() *MoveList {
	ml := NewMoveList()
	p.generateAllMoves(ml)
	return ml
}

// GenerateCaptures generates all legal capture moves (including
// capture-promotions and en passant), for the quiescence search. Promotion
// pushes without a capture are generated by GenerateQuiets.
func (p *Position) GenerateCaptures() *MoveList {
	ml := NewMoveList()
	p.generateCaptures(ml)
	return p.filterLegalMoves(ml)
}

// GenerateQuiets generates all legal non-capture moves, including promotion
// pushes and castling.
func (p *Position) GenerateQuiets() *MoveList {
	ml := NewMoveList()
	p.generateQuiets(ml)
	return p.filterLegalMoves(ml)
}

// generateAllMoves generates all pseudo-legal moves.
func (p *Position) generateAllMoves(ml *MoveList) {
	p.generateCaptures(ml)
	p.generateQuiets(ml)
}

// generateQuiets generates pseudo-legal non-capture moves: pawn pushes
// (including promotion pushes), piece moves, and castling.
func (p *Position) generateQuiets(ml *MoveList) {
	us := p.SideToMove
	occupied := p.AllOccupied
	empty := ^occupied

	p.generatePawnQuiets(ml, us, occupied)

	for pt := Knight; pt <= Queen; pt++ {
		bb := p.Pieces[us][pt]
		for bb != 0 {
			from := bb.PopLSB()
			attacks := pieceAttacks(pt, from, occupied) & empty
			for attacks != 0 {
				ml.Add(NewMove(from, attacks.PopLSB()))
			}
		}
	}

	from := p.KingSquare[us]
	attacks := KingAttacks(from) & empty
	for attacks != 0 {
		ml.Add(NewMove(from, attacks.PopLSB()))
	}

	p.generateCastlingMoves(ml)
}

// generateCaptures generates pseudo-legal capture moves, including
// promotion-captures and en passant. Promotion pushes are generated by
// generatePawnQuiets.
func (p *Position) generateCaptures(ml *MoveList) {
	us := p.SideToMove
	them := us.Other()
	enemies := p.Occupied[them]
	occupied := p.AllOccupied

	p.generatePawnCaptures(ml, us, enemies, occupied)

	for pt := Knight; pt <= Queen; pt++ {
		bb := p.Pieces[us][pt]
		for bb != 0 {
			from := bb.PopLSB()
			attacks := pieceAttacks(pt, from, occupied) & enemies
			for attacks != 0 {
				ml.Add(NewCapture(from, attacks.PopLSB()))
			}
		}
	}

	from := p.KingSquare[us]
	attacks := KingAttacks(from) & enemies
	for attacks != 0 {
		ml.Add(NewCapture(from, attacks.PopLSB()))
	}
}

func pieceAttacks(pt PieceType, from Square, occupied Bitboard) Bitboard {
	switch pt {
	case Knight:
		return KnightAttacks(from)
	case Bishop:
		return BishopAttacks(from, occupied)
	case Rook:
		return RookAttacks(from, occupied)
	default:
		return QueenAttacks(from, occupied)
	}
}

func (p *Position) generatePawnQuiets(ml *MoveList, us Color, occupied Bitboard) {
	pawns := p.Pieces[us][Pawn]
	empty := ^occupied

	var push1, push2 Bitboard
	var promotionRank Bitboard
	var pushDir int

	if us == White {
		push1 = pawns.North() & empty
		push2 = (push1 & Rank3).North() & empty
		promotionRank = Rank8
		pushDir = 8
	} else {
		push1 = pawns.South() & empty
		push2 = (push1 & Rank6).South() & empty
		promotionRank = Rank1
		pushDir = -8
	}

	nonPromo := push1 & ^promotionRank
	for nonPromo != 0 {
		to := nonPromo.PopLSB()
		ml.Add(NewMove(Square(int(to)-pushDir), to))
	}

	for push2 != 0 {
		to := push2.PopLSB()
		ml.Add(NewMove(Square(int(to)-2*pushDir), to))
	}

	promoPush := push1 & promotionRank
	for promoPush != 0 {
		to := promoPush.PopLSB()
		from := Square(int(to) - pushDir)
		addPromotions(ml, from, to, false)
	}
}

func (p *Position) generatePawnCaptures(ml *MoveList, us Color, enemies, occupied Bitboard) {
	pawns := p.Pieces[us][Pawn]

	var attackL, attackR Bitboard
	var promotionRank Bitboard
	var pushDir int

	if us == White {
		attackL = pawns.NorthWest() & enemies
		attackR = pawns.NorthEast() & enemies
		promotionRank = Rank8
		pushDir = 8
	} else {
		attackL = pawns.SouthWest() & enemies
		attackR = pawns.SouthEast() & enemies
		promotionRank = Rank1
		pushDir = -8
	}

	nonPromoL := attackL & ^promotionRank
	for nonPromoL != 0 {
		to := nonPromoL.PopLSB()
		ml.Add(NewCapture(Square(int(to)-pushDir+1), to))
	}
	nonPromoR := attackR & ^promotionRank
	for nonPromoR != 0 {
		to := nonPromoR.PopLSB()
		ml.Add(NewCapture(Square(int(to)-pushDir-1), to))
	}

	promoL := attackL & promotionRank
	for promoL != 0 {
		to := promoL.PopLSB()
		addPromotions(ml, Square(int(to)-pushDir+1), to, true)
	}
	promoR := attackR & promotionRank
	for promoR != 0 {
		to := promoR.PopLSB()
		addPromotions(ml, Square(int(to)-pushDir-1), to, true)
	}

	if p.EnPassant != NoSquare {
		epBB := SquareBB(p.EnPassant)
		var epAttackers Bitboard
		if us == White {
			epAttackers = (epBB.SouthWest() | epBB.SouthEast()) & pawns
		} else {
			epAttackers = (epBB.NorthWest() | epBB.NorthEast()) & pawns
		}
		for epAttackers != 0 {
			ml.Add(NewCapture(epAttackers.PopLSB(), p.EnPassant))
		}
	}
}

// addPromotions adds all four promotion moves, Queen first (best move
// ordering prior), in value order Queen, Rook, Bishop, Knight.
func addPromotions(ml *MoveList, from, to Square, isCapture bool) {
	ml.Add(NewPromotion(from, to, Queen, isCapture))
	ml.Add(NewPromotion(from, to, Rook, isCapture))
	ml.Add(NewPromotion(from, to, Bishop, isCapture))
	ml.Add(NewPromotion(from, to, Knight, isCapture))
}

// generateCastlingMoves generates castling moves per the four rights in
// CastlingRooks, FRC-aware: the king's and rook's travel squares (inclusive
// of start/end) must be unattacked and unobstructed except by the king and
// rook themselves.
func (p *Position) generateCastlingMoves(ml *MoveList) {
	us := p.SideToMove
	them := us.Other()
	kingFrom := p.KingSquare[us]
	if p.IsSquareAttacked(kingFrom, them) {
		return
	}

	rights := [2]CastlingRights{WhiteKingSideCastle, WhiteQueenSideCastle}
	if us == Black {
		rights = [2]CastlingRights{BlackKingSideCastle, BlackQueenSideCastle}
	}

	for i, right := range rights {
		if p.CastlingRights&right == 0 {
			continue
		}
		kingSide := i == 0
		rookFrom := p.CastlingRooks[castlingRightIndex(right)]
		kingTo, rookTo := castlingDestinations(kingFrom, kingSide)

		// Squares that must be empty of anything but the castling king/rook.
		occAfterRemoval := p.AllOccupied &^ (SquareBB(kingFrom) | SquareBB(rookFrom))
		kingPath := Between(kingFrom, kingTo) | SquareBB(kingTo)
		rookPath := Between(rookFrom, rookTo) | SquareBB(rookTo)
		if (kingPath|rookPath)&occAfterRemoval != 0 {
			continue
		}

		// Every square the king passes through (inclusive) must be safe.
		blocked := false
		through := Between(kingFrom, kingTo) | SquareBB(kingTo)
		for sq := through; sq != 0; {
			s := sq.PopLSB()
			if p.IsSquareAttacked(s, them) {
				blocked = true
				break
			}
		}
		if blocked {
			continue
		}

		ml.Add(NewCastling(kingFrom, rookFrom))
	}
}

// filterLegalMoves filters out illegal moves (those that leave king in check).
func (p *Position) filterLegalMoves(ml *MoveList) *MoveList {
	result := NewMoveList()

	for i := 0; i < ml.Len(); i++ {
		m := ml.Get(i)
		if p.IsLegal(m) {
			result.Add(m)
		}
	}

	return result
}

// IsLegal returns true if the move is legal (doesn't leave king in check).
// Castling and king moves use a cheap attacked-square check; all other
// moves are verified with make/unmake for guaranteed correctness, per §4.4.
func (p *Position) IsLegal(m Move) bool {
	us := p.SideToMove
	them := us.Other()
	from := m.From()
	ksq := p.KingSquare[us]

	if from == ksq {
		if m.IsCastling() {
			return true // fully validated during generation
		}
		occ := p.AllOccupied &^ SquareBB(from)
		return p.AttackersByColor(m.To(), them, occ) == 0
	}

	undo := p.MakeMove(m)
	attacked := p.IsSquareAttacked(ksq, them)
	p.UnmakeMove(m, undo)
	return !attacked
}

// MakeMove applies a move to the position and returns undo information.
// Precondition: m is pseudo-legal in the current position (the moving piece
// exists at From). The generator and the picker both guarantee this; moves
// parsed from external UCI input must be checked for membership in
// GeneratePseudoLegalMoves before being passed here.
func (p *Position) MakeMove(m Move) UndoInfo {
	us := p.SideToMove
	them := us.Other()
	from := m.From()
	to := m.To()
	piece := p.PieceAt(from)
	pt := piece.Type()

	undo := UndoInfo{
		Move:           m,
		CapturedPiece:  NoPieceType,
		MovedPiece:     pt,
		CastlingRights: p.CastlingRights,
		EnPassant:      p.EnPassant,
		HalfMoveClock:  p.HalfMoveClock,
		Hash:           p.Hash,
		PawnKey:        p.PawnKey,
	}

	p.Hash ^= zobristSideToMove
	p.Hash ^= zobristCastling[p.CastlingRights]
	if p.EnPassant != NoSquare {
		p.Hash ^= zobristEnPassant[p.EnPassant.File()]
	}
	p.EnPassant = NoSquare

	isEnPassant := pt == Pawn && m.IsCaptureFlag() && to.File() != from.File() && p.IsEmpty(to)

	if m.IsCastling() {
		rookFrom := to
		kingSide := rookFrom.File() > from.File()
		kingTo, rookTo := castlingDestinations(from, kingSide)

		p.removePiece(from)
		p.removePiece(rookFrom)
		p.setPiece(NewPiece(King, us), kingTo)
		p.setPiece(NewPiece(Rook, us), rookTo)
		p.Hash ^= zobristPiece[us][King][from]
		p.Hash ^= zobristPiece[us][King][kingTo]
		p.Hash ^= zobristPiece[us][Rook][rookFrom]
		p.Hash ^= zobristPiece[us][Rook][rookTo]
	} else if isEnPassant {
		var capturedSq Square
		if us == White {
			capturedSq = to - 8
		} else {
			capturedSq = to + 8
		}
		undo.CapturedPiece = Pawn
		p.removePiece(capturedSq)
		p.Hash ^= zobristPiece[them][Pawn][capturedSq]
		p.PawnKey ^= zobristPiece[them][Pawn][capturedSq]

		p.movePiece(from, to)
		p.Hash ^= zobristPiece[us][Pawn][from]
		p.Hash ^= zobristPiece[us][Pawn][to]
		p.PawnKey ^= zobristPiece[us][Pawn][from]
		p.PawnKey ^= zobristPiece[us][Pawn][to]
	} else {
		if captured := p.PieceAt(to); captured != NoPiece {
			undo.CapturedPiece = captured.Type()
			p.removePiece(to)
			p.Hash ^= zobristPiece[them][captured.Type()][to]
			if captured.Type() == Pawn {
				p.PawnKey ^= zobristPiece[them][Pawn][to]
			}
		}

		p.movePiece(from, to)
		p.Hash ^= zobristPiece[us][pt][from]
		p.Hash ^= zobristPiece[us][pt][to]
		if pt == Pawn {
			p.PawnKey ^= zobristPiece[us][Pawn][from]
			p.PawnKey ^= zobristPiece[us][Pawn][to]
		}

		if m.IsPromotion() {
			promoPt := m.Promotion()
			p.Pieces[us][Pawn] &^= SquareBB(to)
			p.Pieces[us][promoPt] |= SquareBB(to)
			p.Hash ^= zobristPiece[us][Pawn][to]
			p.Hash ^= zobristPiece[us][promoPt][to]
			p.PawnKey ^= zobristPiece[us][Pawn][to]
		}
	}

	// Castling-rights invalidation, generalized over CastlingRooks (FRC-safe).
	if pt == King {
		if us == White {
			p.CastlingRights &^= WhiteKingSideCastle | WhiteQueenSideCastle
		} else {
			p.CastlingRights &^= BlackKingSideCastle | BlackQueenSideCastle
		}
	}
	for i, rookSq := range p.CastlingRooks {
		right := CastlingRights(1 << uint(i))
		if p.CastlingRights&right == 0 {
			continue
		}
		if from == rookSq || to == rookSq {
			p.CastlingRights &^= right
		}
	}

	p.Hash ^= zobristCastling[p.CastlingRights]

	if pt == Pawn && abs(int(to)-int(from)) == 16 {
		epSquare := Square((int(from) + int(to)) / 2)
		p.EnPassant = epSquare
		p.Hash ^= zobristEnPassant[epSquare.File()]
	}

	if pt == Pawn || undo.CapturedPiece != NoPieceType {
		p.HalfMoveClock = 0
	} else {
		p.HalfMoveClock++
	}

	if us == Black {
		p.FullMoveNumber++
	}

	p.SideToMove = them
	p.UpdateCheckers()

	return undo
}

// UnmakeMove undoes a move using the stored undo information.
func (p *Position) UnmakeMove(m Move, undo UndoInfo) {
	them := p.SideToMove
	us := them.Other()
	from := m.From()
	to := m.To()

	p.CastlingRights = undo.CastlingRights
	p.EnPassant = undo.EnPassant
	p.HalfMoveClock = undo.HalfMoveClock
	p.Hash = undo.Hash
	p.PawnKey = undo.PawnKey
	p.SideToMove = us

	if us == Black {
		p.FullMoveNumber--
	}

	if m.IsCastling() {
		rookFrom := to
		kingSide := rookFrom.File() > from.File()
		kingTo, rookTo := castlingDestinations(from, kingSide)

		p.removePiece(kingTo)
		p.removePiece(rookTo)
		p.setPiece(NewPiece(King, us), from)
		p.setPiece(NewPiece(Rook, us), rookFrom)
		p.UpdateCheckers()
		return
	}

	isEnPassant := undo.MovedPiece == Pawn && m.IsCaptureFlag() && to == undo.EnPassant && to.File() != from.File()

	if m.IsPromotion() {
		promoPt := m.Promotion()
		p.Pieces[us][promoPt] &^= SquareBB(to)
		p.Pieces[us][Pawn] |= SquareBB(to)
	}

	p.movePiece(to, from)

	if undo.CapturedPiece != NoPieceType {
		if isEnPassant {
			var capturedSq Square
			if us == White {
				capturedSq = to - 8
			} else {
				capturedSq = to + 8
			}
			p.setPiece(NewPiece(undo.CapturedPiece, them), capturedSq)
		} else {
			p.setPiece(NewPiece(undo.CapturedPiece, them), to)
		}
	}

	p.UpdateCheckers()
}

// HasLegalMoves returns true if the side to move has any legal moves.
func (p *Position) HasLegalMoves() bool {
	ml := p.GeneratePseudoLegalMoves()
	for i := 0; i < ml.Len(); i++ {
		if p.IsLegal(ml.Get(i)) {
			return true
		}
	}
	return false
}

// IsCheckmate returns true if the position is checkmate.
func (p *Position) IsCheckmate() bool {
	return p.InCheck() && !p.HasLegalMoves()
}

// IsStalemate returns true if the position is stalemate.
func (p *Position) IsStalemate() bool {
	return !p.InCheck() && !p.HasLegalMoves()
}

// IsDraw returns true if the position is a draw (stalemate, 50-move, insufficient material).
func (p *Position) IsDraw() bool {
	if p.IsStalemate() {
		return true
	}
	if p.HalfMoveClock >= 100 {
		return true
	}
	return p.IsInsufficientMaterial()
}

// IsInsufficientMaterial returns true if neither side can checkmate.
func (p *Position) IsInsufficientMaterial() bool {
	if p.Pieces[White][Pawn]|p.Pieces[Black][Pawn] != 0 ||
		p.Pieces[White][Rook]|p.Pieces[Black][Rook] != 0 ||
		p.Pieces[White][Queen]|p.Pieces[Black][Queen] != 0 {
		return false
	}

	wKnights := p.Pieces[White][Knight].PopCount()
	wBishops := p.Pieces[White][Bishop].PopCount()
	bKnights := p.Pieces[Black][Knight].PopCount()
	bBishops := p.Pieces[Black][Bishop].PopCount()

	if wKnights+wBishops+bKnights+bBishops == 0 {
		return true
	}
	if wKnights+wBishops <= 1 && bKnights+bBishops == 0 {
		return true
	}
	if bKnights+bBishops <= 1 && wKnights+wBishops == 0 {
		return true
	}

	return false
}
