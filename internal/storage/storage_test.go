package storage

import (
	"os"
	"testing"

	"github.com/Gideonrgb101/underflaw-engine/internal/board"
)

func TestDefaultEngineConfig(t *testing.T) {
	cfg := DefaultEngineConfig()
	if cfg.HashMB != 64 {
		t.Errorf("expected default HashMB 64, got %d", cfg.HashMB)
	}
	if cfg.SyzygyProbeDepth != 1 {
		t.Errorf("expected default SyzygyProbeDepth 1, got %d", cfg.SyzygyProbeDepth)
	}
}

func TestBookLearningScore(t *testing.T) {
	bl := &BookLearning{}
	if bl.Score() != 100 {
		t.Errorf("expected neutral score 100 for no history, got %d", bl.Score())
	}

	bl = &BookLearning{Wins: 8, Losses: 2}
	if s := bl.Score(); s <= 100 {
		t.Errorf("expected score above 100 for a winning record, got %d", s)
	}

	bl = &BookLearning{Wins: 2, Losses: 8}
	if s := bl.Score(); s >= 100 {
		t.Errorf("expected score below 100 for a losing record, got %d", s)
	}
}

func TestConfigAndBookLearningRoundTrip(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "underflaw-storage-test-*")
	if err != nil {
		t.Fatalf("MkdirTemp: %v", err)
	}
	defer os.RemoveAll(tmpDir)
	t.Setenv("XDG_DATA_HOME", tmpDir)

	s, err := NewStorage()
	if err != nil {
		t.Fatalf("NewStorage: %v", err)
	}
	defer s.Close()

	cfg := DefaultEngineConfig()
	cfg.HashMB = 256
	cfg.Contempt = 20
	if err := s.SaveConfig(cfg); err != nil {
		t.Fatalf("SaveConfig: %v", err)
	}

	loaded, err := s.LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if loaded.HashMB != 256 || loaded.Contempt != 20 {
		t.Errorf("expected loaded config to round-trip, got %+v", loaded)
	}

	move := board.NewMove(board.E2, board.E4)
	posHash := uint64(0x1234567890abcdef)

	if err := s.RecordBookOutcome(posHash, move, true, false); err != nil {
		t.Fatalf("RecordBookOutcome: %v", err)
	}
	if err := s.RecordBookOutcome(posHash, move, false, true); err != nil {
		t.Fatalf("RecordBookOutcome: %v", err)
	}

	outcome, err := s.LoadBookOutcome(posHash, move)
	if err != nil {
		t.Fatalf("LoadBookOutcome: %v", err)
	}
	if outcome.Wins != 1 || outcome.Draws != 1 || outcome.Losses != 0 {
		t.Errorf("expected 1 win, 1 draw, 0 losses, got %+v", outcome)
	}
}

func TestWarmCacheRoundTrip(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "underflaw-storage-test-*")
	if err != nil {
		t.Fatalf("MkdirTemp: %v", err)
	}
	defer os.RemoveAll(tmpDir)
	t.Setenv("XDG_DATA_HOME", tmpDir)

	s, err := NewStorage()
	if err != nil {
		t.Fatalf("NewStorage: %v", err)
	}
	defer s.Close()

	entries := []WarmEntry{
		{Key: 1, Score: 35, Move: board.NewMove(board.E2, board.E4), Depth: 20, Flag: 0},
		{Key: 2, Score: -10, Move: board.NewMove(board.G1, board.F3), Depth: 18, Flag: 1},
	}
	if err := s.SaveWarmCache(entries); err != nil {
		t.Fatalf("SaveWarmCache: %v", err)
	}

	loaded, err := s.LoadWarmCache()
	if err != nil {
		t.Fatalf("LoadWarmCache: %v", err)
	}
	if len(loaded) != 2 || loaded[0].Key != 1 || loaded[1].Depth != 18 {
		t.Errorf("expected warm cache to round-trip, got %+v", loaded)
	}
}

func TestDataPaths(t *testing.T) {
	dataDir, err := GetDataDir()
	if err != nil {
		t.Fatalf("GetDataDir failed: %v", err)
	}
	if dataDir == "" {
		t.Error("GetDataDir returned empty path")
	}

	if _, err := os.Stat(dataDir); os.IsNotExist(err) {
		t.Errorf("Data directory was not created: %s", dataDir)
	}

	t.Logf("Data directory: %s", dataDir)
}
