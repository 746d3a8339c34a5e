package spatial

import "sort"

// SAPEndpoint is one axis-aligned interval endpoint in the sweep list.
type SAPEndpoint struct {
	Value    float32
	EntityID uint32
	IsMin    bool
}

// CollisionPair is an unordered pair of entity IDs whose bounds overlap on
// the swept axis.
type CollisionPair struct {
	A, B uint32
}

// SAPEntity exposes the axis-aligned bounds an entity occupies.
type SAPEntity interface {
	GetBounds() (minX, maxX float32)
}

// SweepAndPrune is a 1-D sweep-and-prune broad phase, used as a supplementary
// overlap filter ahead of the Grid for entities with wide or elongated
// bounds (e.g. a boss mob's aggro volume) where cell-based queries alone
// would require scanning many cells. It keeps its endpoint list sorted
// incrementally: frame-to-frame entity motion is small, so insertion sort
// converges in near-O(n) once the list is warm.
type SweepAndPrune struct {
	endpoints   []SAPEndpoint
	pairs       []CollisionPair
	active      map[uint32]bool
	useInsSort  bool
}

// NewSweepAndPrune creates a sweep structure sized for maxEntities.
func NewSweepAndPrune(maxEntities int) *SweepAndPrune {
	return &SweepAndPrune{
		endpoints:  make([]SAPEndpoint, 0, maxEntities*2),
		pairs:      make([]CollisionPair, 0, maxEntities),
		active:     make(map[uint32]bool, maxEntities),
		useInsSort: true,
	}
}

// SetInsertionSort toggles insertion sort (good for near-sorted frame-to-frame
// data) versus a full sort (good for the first frame / large perturbations).
func (s *SweepAndPrune) SetInsertionSort(enabled bool) {
	s.useInsSort = enabled
}

// UpdateFromSlice rebuilds the endpoint list from parallel position/radius
// data and returns all overlapping pairs on the X axis.
func (s *SweepAndPrune) UpdateFromSlice(positions [][2]float32, radius float32) []CollisionPair {
	s.endpoints = s.endpoints[:0]
	for i, p := range positions {
		id := uint32(i)
		s.endpoints = append(s.endpoints,
			SAPEndpoint{Value: p[0] - radius, EntityID: id, IsMin: true},
			SAPEndpoint{Value: p[0] + radius, EntityID: id, IsMin: false},
		)
	}
	return s.sweep()
}

// Update rebuilds the endpoint list from SAPEntity bounds and returns all
// overlapping pairs on the X axis.
func (s *SweepAndPrune) Update(entities []SAPEntity) []CollisionPair {
	s.endpoints = s.endpoints[:0]
	for i, e := range entities {
		minX, maxX := e.GetBounds()
		id := uint32(i)
		s.endpoints = append(s.endpoints,
			SAPEndpoint{Value: minX, EntityID: id, IsMin: true},
			SAPEndpoint{Value: maxX, EntityID: id, IsMin: false},
		)
	}
	return s.sweep()
}

func (s *SweepAndPrune) sweep() []CollisionPair {
	if s.useInsSort {
		insertionSortEndpoints(s.endpoints)
	} else {
		sort.Slice(s.endpoints, func(i, j int) bool {
			return s.endpoints[i].Value < s.endpoints[j].Value
		})
	}

	s.pairs = s.pairs[:0]
	for k := range s.active {
		delete(s.active, k)
	}
	openSet := make([]uint32, 0, 16)

	for _, ep := range s.endpoints {
		if ep.IsMin {
			for _, other := range openSet {
				a, b := ep.EntityID, other
				if a > b {
					a, b = b, a
				}
				s.pairs = append(s.pairs, CollisionPair{A: a, B: b})
			}
			openSet = append(openSet, ep.EntityID)
		} else {
			for i, id := range openSet {
				if id == ep.EntityID {
					openSet = append(openSet[:i], openSet[i+1:]...)
					break
				}
			}
		}
	}

	return s.pairs
}

// insertionSortEndpoints sorts in place. Near-linear when the input is
// already nearly sorted, which holds frame-to-frame since entities move a
// bounded distance per tick.
func insertionSortEndpoints(eps []SAPEndpoint) {
	for i := 1; i < len(eps); i++ {
		key := eps[i]
		j := i - 1
		for j >= 0 && eps[j].Value > key.Value {
			eps[j+1] = eps[j]
			j--
		}
		eps[j+1] = key
	}
}
