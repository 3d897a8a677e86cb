package board

import "testing"

// TestMakeUnmakeRoundTrip walks a handful of positions several plies deep,
// checking that every make/unmake pair restores the position bit-for-bit,
// including the Zobrist hash and pawn key.
func TestMakeUnmakeRoundTrip(t *testing.T) {
	fens := []string{
		StartFEN,
		"r3k2r/p1ppqpb1/bn2pnp1/3PN3/1p2P3/2N2Q1p/PPPBBPPP/R3K2R w KQkq - 0 1",
		"rnbqkbnr/ppp1pppp/8/3pP3/8/8/PPPP1PPP/RNBQKBNR w KQkq d6 0 2",
	}

	var walk func(pos *Position, depth int)
	walk = func(pos *Position, depth int) {
		if depth == 0 {
			return
		}
		moves := pos.GenerateLegalMoves()
		for i := 0; i < moves.Len(); i++ {
			m := moves.Get(i)
			before := *pos
			undo := pos.MakeMove(m)
			pos.UnmakeMove(m, undo)
			if *pos != before {
				t.Fatalf("make/unmake of %s did not restore position bit-for-bit", m)
			}
			if pos.Hash != pos.ComputeHash() {
				t.Fatalf("hash mismatch after restore of %s", m)
			}
			if pos.PawnKey != pos.ComputePawnKey() {
				t.Fatalf("pawn key mismatch after restore of %s", m)
			}

			undo = pos.MakeMove(m)
			if pos.Hash != pos.ComputeHash() {
				t.Fatalf("hash drifted from recompute after applying %s", m)
			}
			if pos.PawnKey != pos.ComputePawnKey() {
				t.Fatalf("pawn key drifted from recompute after applying %s", m)
			}
			walk(pos, depth-1)
			pos.UnmakeMove(m, undo)
		}
	}

	for _, fen := range fens {
		pos, err := ParseFEN(fen)
		if err != nil {
			t.Fatalf("ParseFEN(%q): %v", fen, err)
		}
		walk(pos, 3)
	}
}

// TestOccupancyInvariant checks that the union of piece bitboards always
// equals AllOccupied and that the two colors' occupancies are disjoint.
func TestOccupancyInvariant(t *testing.T) {
	pos, err := ParseFEN("r3k2r/p1ppqpb1/bn2pnp1/3PN3/1p2P3/2N2Q1p/PPPBBPPP/R3K2R w KQkq - 0 1")
	if err != nil {
		t.Fatalf("ParseFEN: %v", err)
	}

	check := func(p *Position) {
		if p.Occupied[White]&p.Occupied[Black] != 0 {
			t.Fatalf("white and black occupancy overlap")
		}
		if p.Occupied[White]|p.Occupied[Black] != p.AllOccupied {
			t.Fatalf("AllOccupied does not equal union of color occupancies")
		}
		var union Bitboard
		for c := White; c <= Black; c++ {
			for pt := Pawn; pt <= King; pt++ {
				union |= p.Pieces[c][pt]
			}
		}
		if union != p.AllOccupied {
			t.Fatalf("union of piece bitboards does not equal AllOccupied")
		}
	}

	check(pos)
	moves := pos.GenerateLegalMoves()
	for i := 0; i < moves.Len(); i++ {
		m := moves.Get(i)
		undo := pos.MakeMove(m)
		check(pos)
		pos.UnmakeMove(m, undo)
	}
}

// TestLegalEqualsFilteredPseudoLegal checks that GenerateLegalMoves produces
// exactly the subset of GeneratePseudoLegalMoves that IsLegal accepts.
func TestLegalEqualsFilteredPseudoLegal(t *testing.T) {
	fens := []string{
		StartFEN,
		"r3k2r/p1ppqpb1/bn2pnp1/3PN3/1p2P3/2N2Q1p/PPPBBPPP/R3K2R w KQkq - 0 1",
		"8/8/8/8/k2Pp2R/8/8/4K3 b - d3 0 1",
	}

	for _, fen := range fens {
		pos, err := ParseFEN(fen)
		if err != nil {
			t.Fatalf("ParseFEN(%q): %v", fen, err)
		}

		legal := pos.GenerateLegalMoves()
		pseudo := pos.GeneratePseudoLegalMoves()

		var filtered []Move
		for i := 0; i < pseudo.Len(); i++ {
			m := pseudo.Get(i)
			if pos.IsLegal(m) {
				filtered = append(filtered, m)
			}
		}

		if legal.Len() != len(filtered) {
			t.Fatalf("%s: legal move count %d != filtered pseudo-legal count %d", fen, legal.Len(), len(filtered))
		}
		for _, m := range filtered {
			if !legal.Contains(m) {
				t.Fatalf("%s: move %s accepted by IsLegal but missing from GenerateLegalMoves", fen, m)
			}
		}
	}
}

// TestSEEColorSymmetry checks that SEE on a capture and its color-mirrored
// counterpart agree, per the color-symmetry property.
func TestSEEColorSymmetry(t *testing.T) {
	pos, err := ParseFEN("4k3/8/8/3p4/4P3/8/8/4K3 w - - 0 1")
	if err != nil {
		t.Fatalf("ParseFEN: %v", err)
	}
	mirror, err := ParseFEN("4k3/8/8/4p3/3P4/8/8/4K3 b - - 0 1")
	if err != nil {
		t.Fatalf("ParseFEN: %v", err)
	}

	m := NewCapture(E4, D5)
	mm := NewCapture(E5, D4)

	if got, want := SEE(pos, m), SEE(mirror, mm); got != want {
		t.Errorf("SEE(%s)=%d, mirrored SEE(%s)=%d, want equal", m, got, mm, want)
	}
}

// TestEnPassantCaptureRoundTrip covers S8: e5d6 must be legal and leave the
// position identical after make/unmake.
func TestEnPassantCaptureRoundTrip(t *testing.T) {
	pos, err := ParseFEN("rnbqkbnr/ppp1pppp/8/3pP3/8/8/PPPP1PPP/RNBQKBNR w KQkq d6 0 2")
	if err != nil {
		t.Fatalf("ParseFEN: %v", err)
	}

	m, err := ParseMove("e5d6", pos)
	if err != nil {
		t.Fatalf("ParseMove: %v", err)
	}

	legal := pos.GenerateLegalMoves()
	if !legal.Contains(m) {
		t.Fatalf("e5d6 should be a legal en passant capture")
	}

	before := *pos
	undo := pos.MakeMove(m)
	if pos.PieceAt(D6) == NoPiece || pos.PieceAt(D6).Type() != Pawn {
		t.Fatalf("expected white pawn on d6 after en passant capture")
	}
	if pos.PieceAt(D5) != NoPiece {
		t.Fatalf("captured black pawn on d5 should be removed")
	}
	pos.UnmakeMove(m, undo)
	if *pos != before {
		t.Fatalf("en passant make/unmake did not restore position bit-for-bit")
	}
}

// TestFRCCastlingKingRookSquares covers S9: a FEN with the king off its
// conventional e-file square still generates and applies
// castling correctly, landing the king and rook on the standard c/d-file
// (queenside) or g/f-file (kingside) squares of the king's rank.
func TestFRCCastlingKingRookSquares(t *testing.T) {
	// White king already on c1, rook on a1 (the conventional queenside
	// file, so plain "Q" resolves unambiguously): the king "moves" to its
	// own square and the rook slides from a1 to d1.
	pos, err := ParseFEN("4k3/8/8/8/8/8/8/R1K5 w Q - 0 1")
	if err != nil {
		t.Fatalf("ParseFEN: %v", err)
	}

	moves := pos.GenerateLegalMoves()
	var castle Move
	found := false
	for i := 0; i < moves.Len(); i++ {
		m := moves.Get(i)
		if m.IsCastling() {
			castle = m
			found = true
			break
		}
	}
	if !found {
		t.Fatalf("expected a castling move to be generated from %s", pos.ToFEN())
	}

	if castle.From() != C1 {
		t.Fatalf("castling king origin = %s, want c1", castle.From())
	}
	if castle.To() != A1 {
		t.Fatalf("castling move's rook-target encoding = %s, want a1 (the rook square)", castle.To())
	}

	undo := pos.MakeMove(castle)
	if pos.KingSquare[White] != C1 {
		t.Fatalf("king did not land on c1, landed on %s", pos.KingSquare[White])
	}
	if pos.PieceAt(D1) == NoPiece || pos.PieceAt(D1).Type() != Rook {
		t.Fatalf("rook did not land on d1")
	}
	pos.UnmakeMove(castle, undo)
	if pos.KingSquare[White] != C1 {
		t.Fatalf("unmake did not restore king to c1")
	}
	if pos.PieceAt(A1) == NoPiece || pos.PieceAt(A1).Type() != Rook {
		t.Fatalf("unmake did not restore rook to a1")
	}
}
