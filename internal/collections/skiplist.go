// Package collections provides concurrent data structures shared across
// worlds, independent of any single simulation tick.
package collections

import (
	"math/rand"
	"sync"
	"sync/atomic"
)

const (
	maxLevel          = 32   // supports up to 2^32 elements
	levelProbability  = 0.25 // P=0.25 gives optimal balance
)

// SkipListEntry is a scored entry in a leaderboard (player ID + score).
type SkipListEntry struct {
	Key   string
	Score float64
}

type skipNode struct {
	entry SkipListEntry
	next  []*skipNode
	span  []int
}

// SkipList is a concurrent skip list with augmented span counts, giving
// O(log n) rank queries. It backs the cross-world XP leaderboard, which is
// read far more often (spectator dashboard, admin panel) than it's written
// (one score update per kill/extraction).
type SkipList struct {
	head   *skipNode
	level  int32
	length int32
	mu     sync.RWMutex
	rng    *rand.Rand
}

// NewSkipList creates an empty skip list.
func NewSkipList() *SkipList {
	head := &skipNode{
		next: make([]*skipNode, maxLevel),
		span: make([]int, maxLevel),
	}
	return &SkipList{
		head:  head,
		level: 1,
		rng:   rand.New(rand.NewSource(rand.Int63())),
	}
}

func (sl *SkipList) randomLevel() int {
	level := 1
	for level < maxLevel && sl.rng.Float64() < levelProbability {
		level++
	}
	return level
}

// Insert adds or updates an entry, ordered by descending score then
// ascending key. O(log n) average.
func (sl *SkipList) Insert(key string, score float64) {
	sl.mu.Lock()
	defer sl.mu.Unlock()

	update := make([]*skipNode, maxLevel)
	rank := make([]int, maxLevel)

	x := sl.head
	for i := int(atomic.LoadInt32(&sl.level)) - 1; i >= 0; i-- {
		if i == int(sl.level)-1 {
			rank[i] = 0
		} else {
			rank[i] = rank[i+1]
		}

		for x.next[i] != nil && (x.next[i].entry.Score > score ||
			(x.next[i].entry.Score == score && x.next[i].entry.Key < key)) {
			rank[i] += x.span[i]
			x = x.next[i]
		}
		update[i] = x
	}

	if x.next[0] != nil && x.next[0].entry.Key == key {
		sl.removeNode(x.next[0], update)
		sl.mu.Unlock()
		sl.Insert(key, score)
		sl.mu.Lock()
		return
	}

	newLevel := sl.randomLevel()
	currentLevel := int(sl.level)

	if newLevel > currentLevel {
		for i := currentLevel; i < newLevel; i++ {
			rank[i] = 0
			update[i] = sl.head
			update[i].span[i] = int(sl.length)
		}
		atomic.StoreInt32(&sl.level, int32(newLevel))
	}

	node := &skipNode{
		entry: SkipListEntry{Key: key, Score: score},
		next:  make([]*skipNode, newLevel),
		span:  make([]int, newLevel),
	}

	for i := 0; i < newLevel; i++ {
		node.next[i] = update[i].next[i]
		update[i].next[i] = node
		node.span[i] = update[i].span[i] - (rank[0] - rank[i])
		update[i].span[i] = (rank[0] - rank[i]) + 1
	}

	for i := newLevel; i < int(sl.level); i++ {
		update[i].span[i]++
	}

	atomic.AddInt32(&sl.length, 1)
}

// Remove deletes an entry by key. Returns false if not found.
func (sl *SkipList) Remove(key string) bool {
	sl.mu.Lock()
	defer sl.mu.Unlock()

	update := make([]*skipNode, maxLevel)
	x := sl.head

	for i := int(sl.level) - 1; i >= 0; i-- {
		for x.next[i] != nil && x.next[i].entry.Key < key {
			x = x.next[i]
		}
		update[i] = x
	}

	x = x.next[0]
	if x == nil || x.entry.Key != key {
		return false
	}

	sl.removeNode(x, update)
	return true
}

func (sl *SkipList) removeNode(node *skipNode, update []*skipNode) {
	for i := 0; i < int(sl.level); i++ {
		if update[i].next[i] == node {
			update[i].span[i] += node.span[i] - 1
			update[i].next[i] = node.next[i]
		} else {
			update[i].span[i]--
		}
	}

	for sl.level > 1 && sl.head.next[sl.level-1] == nil {
		atomic.AddInt32(&sl.level, -1)
	}

	atomic.AddInt32(&sl.length, -1)
}

// GetRank returns the 1-indexed rank of key (1 = highest score), or 0 if not
// found. O(log n).
func (sl *SkipList) GetRank(key string) int {
	sl.mu.RLock()
	defer sl.mu.RUnlock()

	rank := 0
	x := sl.head

	for i := int(sl.level) - 1; i >= 0; i-- {
		for x.next[i] != nil && x.next[i].entry.Key <= key {
			rank += x.span[i]
			x = x.next[i]
			if x.entry.Key == key {
				return rank
			}
		}
	}

	return 0
}

// GetByRank returns the entry at the given 1-indexed rank, or nil if out of
// range. O(log n).
func (sl *SkipList) GetByRank(rank int) *SkipListEntry {
	sl.mu.RLock()
	defer sl.mu.RUnlock()

	if rank <= 0 || rank > int(sl.length) {
		return nil
	}

	traversed := 0
	x := sl.head

	for i := int(sl.level) - 1; i >= 0; i-- {
		for x.next[i] != nil && traversed+x.span[i] <= rank {
			traversed += x.span[i]
			x = x.next[i]
		}
		if traversed == rank {
			return &x.entry
		}
	}

	return nil
}

// GetRange returns entries with rank in [start, end], 1-indexed inclusive.
// O(log n + k).
func (sl *SkipList) GetRange(start, end int) []SkipListEntry {
	sl.mu.RLock()
	defer sl.mu.RUnlock()

	if start <= 0 {
		start = 1
	}
	if end > int(sl.length) {
		end = int(sl.length)
	}
	if start > end {
		return nil
	}

	result := make([]SkipListEntry, 0, end-start+1)

	traversed := 0
	x := sl.head

	for i := int(sl.level) - 1; i >= 0; i-- {
		for x.next[i] != nil && traversed+x.span[i] < start {
			traversed += x.span[i]
			x = x.next[i]
		}
	}

	x = x.next[0]
	for x != nil && traversed < end {
		traversed++
		if traversed >= start {
			result = append(result, x.entry)
		}
		x = x.next[0]
	}

	return result
}

// GetScore returns the score for key, and whether it was found.
func (sl *SkipList) GetScore(key string) (float64, bool) {
	sl.mu.RLock()
	defer sl.mu.RUnlock()

	x := sl.head
	for i := int(sl.level) - 1; i >= 0; i-- {
		for x.next[i] != nil && x.next[i].entry.Key < key {
			x = x.next[i]
		}
	}

	x = x.next[0]
	if x != nil && x.entry.Key == key {
		return x.entry.Score, true
	}
	return 0, false
}

// Length returns the number of entries.
func (sl *SkipList) Length() int {
	return int(atomic.LoadInt32(&sl.length))
}

// Clear removes every entry.
func (sl *SkipList) Clear() {
	sl.mu.Lock()
	defer sl.mu.Unlock()

	for i := range sl.head.next {
		sl.head.next[i] = nil
		sl.head.span[i] = 0
	}
	atomic.StoreInt32(&sl.level, 1)
	atomic.StoreInt32(&sl.length, 0)
}

// ForEach iterates entries in descending-score rank order. Stops early if fn
// returns false.
func (sl *SkipList) ForEach(fn func(rank int, entry SkipListEntry) bool) {
	sl.mu.RLock()
	defer sl.mu.RUnlock()

	rank := 0
	x := sl.head.next[0]
	for x != nil {
		rank++
		if !fn(rank, x.entry) {
			break
		}
		x = x.next[0]
	}
}
