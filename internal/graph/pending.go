package graph

import "sort"

// pendingSet is an ordered set of node ids keyed by (rank, id).
//
// Ranks never change while a node is pending inside a wave, since edges
// cannot be added mid-wave; after a re-rank outside a wave the caller must
// call resort.
type pendingSet struct {
	g       *Graph
	ids     []int
	members map[int]struct{}
}

func newPendingSet(g *Graph) *pendingSet {
	return &pendingSet{g: g, members: make(map[int]struct{})}
}

func (p *pendingSet) less(a, b int) bool {
	ra, rb := p.g.states[a].rank, p.g.states[b].rank
	if ra != rb {
		return ra < rb
	}
	return a < b
}

// search returns the position of the first id whose key is >= (rank, id).
func (p *pendingSet) search(rank, id int) int {
	return sort.Search(len(p.ids), func(i int) bool {
		r := p.g.states[p.ids[i]].rank
		if r != rank {
			return r > rank
		}
		return p.ids[i] >= id
	})
}

func (p *pendingSet) add(id int) bool {
	if _, ok := p.members[id]; ok {
		return false
	}
	p.members[id] = struct{}{}
	i := p.search(p.g.states[id].rank, id)
	p.ids = append(p.ids, 0)
	copy(p.ids[i+1:], p.ids[i:])
	p.ids[i] = id
	return true
}

func (p *pendingSet) remove(id int) {
	if _, ok := p.members[id]; !ok {
		return
	}
	delete(p.members, id)
	i := p.search(p.g.states[id].rank, id)
	if i < len(p.ids) && p.ids[i] == id {
		p.ids = append(p.ids[:i], p.ids[i+1:]...)
	}
}

func (p *pendingSet) contains(id int) bool {
	_, ok := p.members[id]
	return ok
}

func (p *pendingSet) first() (int, bool) {
	if len(p.ids) == 0 {
		return 0, false
	}
	return p.ids[0], true
}

// higher returns the lowest pending id whose key is strictly greater than
// (rank, id).
func (p *pendingSet) higher(rank, id int) (int, bool) {
	i := p.search(rank, id+1)
	if i >= len(p.ids) {
		return 0, false
	}
	return p.ids[i], true
}

func (p *pendingSet) resort() {
	sort.Slice(p.ids, func(i, j int) bool { return p.less(p.ids[i], p.ids[j]) })
}

func (p *pendingSet) len() int {
	return len(p.ids)
}

func (p *pendingSet) clear() {
	p.ids = nil
	p.members = make(map[int]struct{})
}

func (p *pendingSet) snapshot() []int {
	out := make([]int, len(p.ids))
	copy(out, p.ids)
	return out
}
