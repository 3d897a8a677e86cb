package engine

import (
	"sort"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/Gideonrgb101/underflaw-engine/internal/board"
)

// TTFlag indicates the type of bound stored in the transposition table.
type TTFlag uint8

const (
	TTNone       TTFlag = iota // empty slot
	TTLowerBound               // failed high (beta cutoff)
	TTUpperBound               // failed low
	TTExact                    // exact score
)

const ttClusterSize = 4

// ttEntry is one slot of a cluster.
type ttEntry struct {
	key        uint64
	bestMove   board.Move
	score      int16
	depth      int16
	flag       TTFlag
	generation uint8
}

type ttCluster [ttClusterSize]ttEntry

// TTEntry is what Probe hands back to a caller: a snapshot, not a pointer
// into the table, since the table may be written concurrently by other
// Lazy-SMP workers.
type TTEntry struct {
	BestMove board.Move
	Score    int
	Depth    int
	Flag     TTFlag
	Found    bool
}

// TranspositionTable is a clustered, generation-stamped hash table shared by
// all search workers. Each bucket holds ttClusterSize entries; a lookup scans
// the whole cluster for a matching key.
//
// The backing storage is an anonymous mmap rather than a plain Go slice so
// that Prefetch can issue a real madvise(2) hint on the cluster's page range
// instead of a no-op placeholder.
type TranspositionTable struct {
	clusters []ttCluster
	mem      []byte
	mask     uint64
	gen      uint8

	hits   uint64
	probes uint64
}

// NewTranspositionTable creates a transposition table sized to sizeMB
// megabytes, rounded down to a power-of-two number of clusters.
func NewTranspositionTable(sizeMB int) *TranspositionTable {
	clusterBytes := int(unsafe.Sizeof(ttCluster{}))
	numClusters := (sizeMB * 1024 * 1024) / clusterBytes
	if numClusters < 1 {
		numClusters = 1
	}
	numClusters = int(roundDownToPowerOf2(uint64(numClusters)))

	length := numClusters * clusterBytes
	mem, err := unix.Mmap(-1, 0, length, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANON|unix.MAP_PRIVATE)

	tt := &TranspositionTable{mask: uint64(numClusters - 1)}
	if err != nil {
		// Sandboxed or unsupported platform: fall back to a normal Go
		// allocation. Prefetch becomes a no-op in that case.
		tt.clusters = make([]ttCluster, numClusters)
		return tt
	}
	tt.mem = mem
	tt.clusters = unsafe.Slice((*ttCluster)(unsafe.Pointer(&mem[0])), numClusters)
	return tt
}

// Close releases the mmap'd backing storage, if any.
func (tt *TranspositionTable) Close() error {
	if tt.mem == nil {
		return nil
	}
	mem := tt.mem
	tt.mem = nil
	tt.clusters = nil
	return unix.Munmap(mem)
}

// roundDownToPowerOf2 rounds n down to the nearest power of 2.
func roundDownToPowerOf2(n uint64) uint64 {
	n |= n >> 1
	n |= n >> 2
	n |= n >> 4
	n |= n >> 8
	n |= n >> 16
	n |= n >> 32
	return (n + 1) >> 1
}

func (tt *TranspositionTable) clusterFor(key uint64) *ttCluster {
	return &tt.clusters[key&tt.mask]
}

// Prefetch hints the OS to bring the cluster backing key into memory ahead
// of a probe the caller is about to make.
func (tt *TranspositionTable) Prefetch(key uint64) {
	if tt.mem == nil {
		return
	}
	clusterBytes := int(unsafe.Sizeof(ttCluster{}))
	offset := int(key&tt.mask) * clusterBytes
	end := offset + clusterBytes
	if end > len(tt.mem) {
		return
	}
	_ = unix.Madvise(tt.mem[offset:end], unix.MADV_WILLNEED)
}

// Probe searches key's cluster for a matching entry, refreshing its
// generation on hit. The caller must still check Depth against the depth it
// needs before trusting Score; BestMove is usable for ordering regardless.
func (tt *TranspositionTable) Probe(key uint64) TTEntry {
	tt.probes++
	c := tt.clusterFor(key)
	for i := range c {
		e := &c[i]
		if e.flag != TTNone && e.key == key {
			e.generation = tt.gen
			tt.hits++
			return TTEntry{
				BestMove: e.bestMove,
				Score:    int(e.score),
				Depth:    int(e.depth),
				Flag:     e.flag,
				Found:    true,
			}
		}
	}
	return TTEntry{}
}

// replacementScore implements §4.7's victim-selection formula. Empty slots
// always win with a score far below anything a populated slot can reach.
func replacementScore(e *ttEntry, gen uint8) int {
	if e.flag == TTNone {
		return -1000
	}
	age := int(gen - e.generation) // wraps mod 256, matching the spec formula
	exactBonus := 0
	if e.flag == TTExact {
		exactBonus = 16
	}
	return int(e.depth)*4 + exactBonus - age*2
}

// Store writes a search result into key's cluster.
func (tt *TranspositionTable) Store(key uint64, score, depth int, flag TTFlag, move board.Move) {
	c := tt.clusterFor(key)

	for i := range c {
		e := &c[i]
		if e.flag != TTNone && e.key == key {
			if depth >= int(e.depth) || (flag == TTExact && e.flag != TTExact) {
				if move == board.NoMove {
					move = e.bestMove
				}
				e.bestMove = move
				e.score = int16(score)
				e.depth = int16(depth)
				e.flag = flag
				e.generation = tt.gen
			}
			return
		}
	}

	victim := &c[0]
	victimScore := replacementScore(victim, tt.gen)
	for i := 1; i < len(c); i++ {
		if s := replacementScore(&c[i], tt.gen); s < victimScore {
			victimScore = s
			victim = &c[i]
		}
	}

	// Protect a same-generation Exact entry at least 4 plies deeper than the
	// incoming write unless the cluster offers no alternative victim.
	if victim.flag == TTExact && flag != TTExact && victim.generation == tt.gen && int(victim.depth) >= depth+4 {
		for i := range c {
			if &c[i] == victim {
				continue
			}
			if !(c[i].flag == TTExact && c[i].generation == tt.gen && int(c[i].depth) >= depth+4) {
				victim = &c[i]
				break
			}
		}
	}

	victim.key = key
	victim.bestMove = move
	victim.score = int16(score)
	victim.depth = int16(depth)
	victim.flag = flag
	victim.generation = tt.gen
}

// NewSearch increments the generation counter for a new root search.
func (tt *TranspositionTable) NewSearch() {
	tt.gen++
}

// Clear wipes the table and resets statistics.
func (tt *TranspositionTable) Clear() {
	for i := range tt.clusters {
		tt.clusters[i] = ttCluster{}
	}
	tt.gen = 0
	tt.hits = 0
	tt.probes = 0
}

// HashFull returns the permille of the table occupied by current-generation
// entries, sampled over the first 1000 clusters.
func (tt *TranspositionTable) HashFull() int {
	sampleSize := 1000
	if uint64(sampleSize) > uint64(len(tt.clusters)) {
		sampleSize = len(tt.clusters)
	}

	used := 0
	total := 0
	for i := 0; i < sampleSize; i++ {
		for _, e := range tt.clusters[i] {
			total++
			if e.flag != TTNone && e.generation == tt.gen {
				used++
			}
		}
	}
	if total == 0 {
		return 0
	}
	return (used * 1000) / total
}

// HitRate returns the cache hit rate as a percentage.
func (tt *TranspositionTable) HitRate() float64 {
	if tt.probes == 0 {
		return 0
	}
	return float64(tt.hits) / float64(tt.probes) * 100
}

// Size returns the number of clusters in the table.
func (tt *TranspositionTable) Size() uint64 {
	return uint64(len(tt.clusters))
}

// WarmEntry is one transposition-table slot captured for persistence across
// process restarts.
type WarmEntry struct {
	Key   uint64
	Score int
	Move  board.Move
	Depth int
	Flag  TTFlag
}

// Snapshot returns up to maxEntries current-generation entries, preferring
// the deepest searched positions since those are the most expensive to
// recompute from a cold table.
func (tt *TranspositionTable) Snapshot(maxEntries int) []WarmEntry {
	var all []WarmEntry
	for i := range tt.clusters {
		for _, e := range tt.clusters[i] {
			if e.flag == TTNone || e.generation != tt.gen {
				continue
			}
			all = append(all, WarmEntry{
				Key:   e.key,
				Score: int(e.score),
				Move:  e.bestMove,
				Depth: int(e.depth),
				Flag:  e.flag,
			})
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Depth > all[j].Depth })
	if len(all) > maxEntries {
		all = all[:maxEntries]
	}
	return all
}

// Restore seeds the table with previously snapshotted entries. Each is
// written through Store at the current (post-Clear) generation, so they're
// immediately eligible to be overwritten by fresh search results once new
// entries start competing for the same cluster slots.
func (tt *TranspositionTable) Restore(entries []WarmEntry) {
	for _, e := range entries {
		tt.Store(e.Key, e.Score, e.Depth, e.Flag, e.Move)
	}
}

// AdjustScoreFromTT converts a stored mate-distance score back to a
// root-relative score when reading an entry found at ply plies from root.
func AdjustScoreFromTT(score int, ply int) int {
	if score > MateScore-MaxPly {
		return score - ply
	}
	if score < -MateScore+MaxPly {
		return score + ply
	}
	return score
}

// AdjustScoreToTT converts a root-relative mate score to the ply-independent
// form stored in the table, per §4.7.
func AdjustScoreToTT(score int, ply int) int {
	if score > MateScore-MaxPly {
		return score + ply
	}
	if score < -MateScore+MaxPly {
		return score - ply
	}
	return score
}
