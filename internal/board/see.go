package board

// SEE (Static Exchange Evaluation) estimates the result of a capture
// sequence on m's target square, assuming both sides play their
// least-valuable attacker first. Returns a centipawn score from the
// perspective of the side making m, per §4.5. Piece values are the fixed
// P=100,N=320,B=330,R=500,Q=900,K=20000 scale (PieceValue), independent of
// any evaluator tuning.
func SEE(pos *Position, m Move) int {
	from := m.From()
	to := m.To()

	attacker := pos.PieceAt(from)
	if attacker == NoPiece {
		return 0
	}

	var capturedValue int
	isEnPassant := attacker.Type() == Pawn && m.IsCaptureFlag() && to.File() != from.File() && pos.IsEmpty(to)
	if isEnPassant {
		capturedValue = PieceValue[Pawn]
	} else {
		victim := pos.PieceAt(to)
		if victim == NoPiece {
			return 0
		}
		capturedValue = PieceValue[victim.Type()]
	}

	if m.IsPromotion() {
		capturedValue += PieceValue[m.Promotion()] - PieceValue[Pawn]
	}

	return seeSwap(pos, to, from, attacker, capturedValue)
}

// seeSwap runs the iterative swap-off: initialize gain[0] to the first
// capture's value, then alternate least-valuable-attacker captures,
// re-discovering X-ray attackers for free because getLeastValuableAttacker
// always re-scans against the shrinking occupancy bitboard. Collapse the
// gain array from the tail to get the minimax value under optimal
// stand-pat choices.
func seeSwap(pos *Position, target, excludeFrom Square, firstAttacker Piece, initialGain int) int {
	var gain [32]int
	d := 0
	gain[d] = initialGain

	occupied := pos.AllOccupied &^ SquareBB(excludeFrom)
	attackerValue := PieceValue[firstAttacker.Type()]
	side := firstAttacker.Color().Other()

	for {
		d++
		gain[d] = attackerValue - gain[d-1]

		if max(-gain[d-1], gain[d]) < 0 {
			break
		}

		attackerSq, attackerPiece := getLeastValuableAttacker(pos, target, side, occupied)
		if attackerSq == NoSquare {
			break
		}

		occupied &^= SquareBB(attackerSq)
		attackerValue = PieceValue[attackerPiece.Type()]
		side = side.Other()
	}

	for d--; d > 0; d-- {
		gain[d-1] = -max(-gain[d-1], gain[d])
	}

	return gain[0]
}

// getLeastValuableAttacker returns the cheapest piece of side attacking
// target given occupied, in value order pawn..king. Bishop/rook attack
// bitboards are recomputed against occupied on every call, which is what
// makes X-ray rediscovery automatic: removing a blocker from occupied
// exposes any slider behind it on the very next scan.
func getLeastValuableAttacker(pos *Position, target Square, side Color, occupied Bitboard) (Square, Piece) {
	pawns := pos.Pieces[side][Pawn]
	if attackers := pawns & PawnAttacks(target, side.Other()) & occupied; attackers != 0 {
		return attackers.LSB(), NewPiece(Pawn, side)
	}

	knights := pos.Pieces[side][Knight]
	if attackers := knights & KnightAttacks(target) & occupied; attackers != 0 {
		return attackers.LSB(), NewPiece(Knight, side)
	}

	bishopAtk := BishopAttacks(target, occupied)
	if attackers := pos.Pieces[side][Bishop] & bishopAtk & occupied; attackers != 0 {
		return attackers.LSB(), NewPiece(Bishop, side)
	}

	rookAtk := RookAttacks(target, occupied)
	if attackers := pos.Pieces[side][Rook] & rookAtk & occupied; attackers != 0 {
		return attackers.LSB(), NewPiece(Rook, side)
	}

	if attackers := pos.Pieces[side][Queen] & (bishopAtk | rookAtk) & occupied; attackers != 0 {
		return attackers.LSB(), NewPiece(Queen, side)
	}

	if attackers := pos.Pieces[side][King] & KingAttacks(target) & occupied; attackers != 0 {
		return attackers.LSB(), NewPiece(King, side)
	}

	return NoSquare, NoPiece
}
