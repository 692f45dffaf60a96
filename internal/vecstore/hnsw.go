package vecstore

import (
	"container/heap"
	"math"
	"math/rand"
	"sort"
)

// graph is a multi-layer proximity graph over unit vectors (HNSW).
// Long-range links live in the sparse upper layers, short-range links
// in the dense bottom layer; a query greedily descends from the top so
// a search touches O(log n) nodes instead of all of them. Nodes are
// inserted one at a time (no bulk rebuild) and deletions repair the
// neighbor lists they tear open.
//
// The graph is not safe for concurrent use; Index serializes access.
type graph struct {
	dims           int
	m              int     // links per node on upper layers (2m on layer 0)
	efConstruction int     // beam width while inserting
	efSearch       int     // beam width while querying
	levelFactor    float64 // 1/ln(m), layer assignment decay

	nodes    map[int]*node
	entry    int // node id of the top-layer entry point, -1 when empty
	maxLevel int
	nextID   int
	rng      *rand.Rand
}

type node struct {
	id    int
	vec   []float32 // unit-normalized
	level int
	links [][]int // neighbor ids per layer, 0..level
}

const (
	defaultM              = 16
	defaultEfConstruction = 200
	defaultEfSearch       = 64
)

func newGraph(dims int) *graph {
	return &graph{
		dims:           dims,
		m:              defaultM,
		efConstruction: defaultEfConstruction,
		efSearch:       defaultEfSearch,
		levelFactor:    1 / math.Log(defaultM),
		nodes:          make(map[int]*node),
		entry:          -1,
		// Fixed seed: layer assignment is the only randomness, and a
		// deterministic graph makes reload and tests reproducible.
		rng: rand.New(rand.NewSource(1)),
	}
}

func (g *graph) len() int {
	return len(g.nodes)
}

// insert adds a unit vector and returns its node id. Ids are assigned
// in insertion order.
func (g *graph) insert(vec []float32) int {
	id := g.nextID
	g.nextID++

	level := g.randomLevel()
	n := &node{
		id:    id,
		vec:   vec,
		level: level,
		links: make([][]int, level+1),
	}
	g.nodes[id] = n

	if g.entry < 0 {
		g.entry = id
		g.maxLevel = level
		return id
	}

	// Greedy descent through layers above the new node's level.
	curr := g.entry
	for l := g.maxLevel; l > level; l-- {
		curr = g.closest(vec, curr, l)
	}

	// Link into every layer the node participates in.
	top := level
	if top > g.maxLevel {
		top = g.maxLevel
	}
	for l := top; l >= 0; l-- {
		candidates := g.searchLayer(vec, []int{curr}, g.efConstruction, l)
		neighbors := g.selectNeighbors(candidates, g.m)

		for _, nb := range neighbors {
			g.link(n, g.nodes[nb.id], l)
		}
		if len(candidates) > 0 {
			curr = candidates[0].id
		}
	}

	if level > g.maxLevel {
		g.entry = id
		g.maxLevel = level
	}

	return id
}

// remove deletes a node and patches the holes it leaves: every former
// neighbor gets the node's other neighbors offered as replacement
// links, so no edge dangles and the layer stays connected.
func (g *graph) remove(id int) {
	n, ok := g.nodes[id]
	if !ok {
		return
	}
	delete(g.nodes, id)

	for l := 0; l <= n.level; l++ {
		peers := n.links[l]

		for _, pid := range peers {
			p, ok := g.nodes[pid]
			if !ok || l > p.level {
				continue
			}
			p.links[l] = removeID(p.links[l], id)
		}

		// Reconnect the orphaned peers among themselves.
		maxLinks := g.maxLinks(l)
		for _, pid := range peers {
			p, ok := g.nodes[pid]
			if !ok || l > p.level {
				continue
			}
			for _, qid := range peers {
				q, ok := g.nodes[qid]
				if !ok || qid == pid || l > q.level {
					continue
				}
				if len(p.links[l]) < maxLinks && !containsID(p.links[l], qid) {
					g.link(p, q, l)
				}
			}
		}
	}

	if g.entry == id {
		g.electEntry()
	}
}

// search returns the k most similar nodes, best first. Equal scores
// keep insertion order.
func (g *graph) search(vec []float32, k int) []scored {
	if g.entry < 0 || k <= 0 {
		return nil
	}

	curr := g.entry
	for l := g.maxLevel; l > 0; l-- {
		curr = g.closest(vec, curr, l)
	}

	ef := g.efSearch
	if k > ef {
		ef = k
	}
	results := g.searchLayer(vec, []int{curr}, ef, 0)
	if len(results) > k {
		results = results[:k]
	}
	return results
}

type scored struct {
	id  int
	sim float32
}

// closest runs a greedy walk on one layer and returns the local best.
func (g *graph) closest(vec []float32, start, layer int) int {
	curr := start
	currSim := dot(vec, g.nodes[curr].vec)

	for {
		improved := false
		for _, nbID := range g.nodes[curr].links[layer] {
			nb, ok := g.nodes[nbID]
			if !ok {
				continue
			}
			if sim := dot(vec, nb.vec); sim > currSim {
				curr, currSim = nbID, sim
				improved = true
			}
		}
		if !improved {
			return curr
		}
	}
}

// searchLayer is a best-first beam search over one layer, returning up
// to ef results sorted best first.
func (g *graph) searchLayer(vec []float32, entries []int, ef, layer int) []scored {
	visited := make(map[int]bool, ef*2)
	candidates := &simHeap{max: true}
	results := &simHeap{max: false}

	for _, id := range entries {
		n, ok := g.nodes[id]
		if !ok || visited[id] {
			continue
		}
		visited[id] = true
		s := scored{id: id, sim: dot(vec, n.vec)}
		heap.Push(candidates, s)
		heap.Push(results, s)
	}

	for candidates.Len() > 0 {
		c := heap.Pop(candidates).(scored)
		if results.Len() >= ef && c.sim < results.peek().sim {
			break
		}

		for _, nbID := range g.nodes[c.id].links[layer] {
			if visited[nbID] {
				continue
			}
			visited[nbID] = true
			nb, ok := g.nodes[nbID]
			if !ok {
				continue
			}

			s := scored{id: nbID, sim: dot(vec, nb.vec)}
			if results.Len() < ef || s.sim > results.peek().sim {
				heap.Push(candidates, s)
				heap.Push(results, s)
				if results.Len() > ef {
					heap.Pop(results)
				}
			}
		}
	}

	out := make([]scored, results.Len())
	for i := len(out) - 1; i >= 0; i-- {
		out[i] = heap.Pop(results).(scored)
	}
	sortScored(out)
	return out
}

// selectNeighbors keeps the best limit candidates.
func (g *graph) selectNeighbors(candidates []scored, limit int) []scored {
	if len(candidates) <= limit {
		return candidates
	}
	return candidates[:limit]
}

// link connects two nodes on a layer, pruning whichever side overflows.
func (g *graph) link(a, b *node, layer int) {
	a.links[layer] = append(a.links[layer], b.id)
	b.links[layer] = append(b.links[layer], a.id)

	maxLinks := g.maxLinks(layer)
	g.prune(a, layer, maxLinks)
	g.prune(b, layer, maxLinks)
}

// prune trims a node's neighbor list to the limit, keeping the most
// similar neighbors and dropping itself from the far side.
func (g *graph) prune(n *node, layer, limit int) {
	if len(n.links[layer]) <= limit {
		return
	}

	neighbors := make([]scored, 0, len(n.links[layer]))
	for _, id := range n.links[layer] {
		nb, ok := g.nodes[id]
		if !ok {
			continue
		}
		neighbors = append(neighbors, scored{id: id, sim: dot(n.vec, nb.vec)})
	}
	sortScored(neighbors)

	kept := neighbors[:limit]
	dropped := neighbors[limit:]

	n.links[layer] = n.links[layer][:0]
	for _, nb := range kept {
		n.links[layer] = append(n.links[layer], nb.id)
	}
	for _, nb := range dropped {
		other := g.nodes[nb.id]
		other.links[layer] = removeID(other.links[layer], n.id)
	}
}

func (g *graph) maxLinks(layer int) int {
	if layer == 0 {
		return g.m * 2
	}
	return g.m
}

func (g *graph) randomLevel() int {
	return int(-math.Log(g.rng.Float64()) * g.levelFactor)
}

// electEntry picks a new entry point after the old one was removed.
func (g *graph) electEntry() {
	g.entry = -1
	g.maxLevel = 0
	for id, n := range g.nodes {
		if g.entry < 0 || n.level > g.maxLevel || (n.level == g.maxLevel && id < g.entry) {
			g.entry = id
			g.maxLevel = n.level
		}
	}
}

// dot is cosine similarity for unit vectors.
func dot(a, b []float32) float32 {
	var sum float32
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}

// normalize returns a unit-length copy of the vector. An all-zero
// vector stays zero.
func normalize(vec []float32) []float32 {
	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	out := make([]float32, len(vec))
	if norm == 0 {
		return out
	}
	inv := float32(1 / math.Sqrt(norm))
	for i, v := range vec {
		out[i] = v * inv
	}
	return out
}

// sortScored orders by similarity descending; equal similarity keeps
// insertion order (lower id first).
func sortScored(s []scored) {
	sort.SliceStable(s, func(i, j int) bool {
		if s[i].sim != s[j].sim {
			return s[i].sim > s[j].sim
		}
		return s[i].id < s[j].id
	})
}

func removeID(ids []int, id int) []int {
	for i, v := range ids {
		if v == id {
			return append(ids[:i], ids[i+1:]...)
		}
	}
	return ids
}

func containsID(ids []int, id int) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

// simHeap is a heap of scored entries; max decides the direction.
// Equal similarities order by id so heap behavior is deterministic.
type simHeap struct {
	items []scored
	max   bool
}

func (h *simHeap) Len() int { return len(h.items) }

func (h *simHeap) Less(i, j int) bool {
	a, b := h.items[i], h.items[j]
	if a.sim != b.sim {
		if h.max {
			return a.sim > b.sim
		}
		return a.sim < b.sim
	}
	return a.id < b.id
}

func (h *simHeap) Swap(i, j int) { h.items[i], h.items[j] = h.items[j], h.items[i] }

func (h *simHeap) Push(x any) { h.items = append(h.items, x.(scored)) }

func (h *simHeap) Pop() any {
	old := h.items
	n := len(old)
	item := old[n-1]
	h.items = old[:n-1]
	return item
}

func (h *simHeap) peek() scored { return h.items[0] }
