package graph

import "fmt"

// markForRanking resets the rank of id and every descendant of id to 0 and
// returns them in ascending id order.
func (g *Graph) markForRanking(id int) []int {
	seen := map[int]bool{id: true}
	stack := []int{id}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, c := range g.states[n].children {
			if !seen[c] {
				seen[c] = true
				stack = append(stack, c)
			}
		}
	}

	marked := make([]int, 0, len(seen))
	for i := range g.states {
		if seen[i] {
			g.states[i].rank = 0
			marked = append(marked, i)
		}
	}
	return marked
}

// rerank assigns final ranks to every node in marked.
//
// Each pass computes, for every unranked node, a tentative (negative) rank
// whose magnitude is a lower bound on its depth. A node is finalized once
// all of its parents are final, at 1 + max(parent rank). Because the graph
// is acyclic, every pass finalizes at least one node, so the loop runs at
// most len(marked) times.
func (g *Graph) rerank(marked []int) {
	remaining := marked
	for len(remaining) > 0 {
		progress := false
		next := make([]int, 0, len(remaining))

		for _, id := range remaining {
			st := g.states[id]
			if len(st.parents) == 0 {
				st.rank = 1
				progress = true
				continue
			}

			tentative := st.rank
			maxParent := 0
			final := true
			for _, p := range st.parents {
				pr := g.states[p].rank
				switch {
				case pr > 0:
					tentative = min(tentative, -pr-1)
					maxParent = max(maxParent, pr)
				case pr < 0:
					tentative = min(tentative, pr-1)
					final = false
				default:
					final = false
				}
			}

			if final {
				st.rank = maxParent + 1
				progress = true
				continue
			}
			st.rank = tentative
			next = append(next, id)
		}

		if !progress {
			// Unreachable for an acyclic graph; the cycle check runs first.
			panic(fmt.Sprintf("graph: ranking made no progress over %d nodes", len(next)))
		}
		remaining = next
	}
}

// pathBetween returns the child-edge path from -> ... -> to, or nil.
func (g *Graph) pathBetween(from, to int) []int {
	prev := map[int]int{from: -1}
	queue := []int{from}
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		if n == to {
			var path []int
			for at := n; at != -1; at = prev[at] {
				path = append([]int{at}, path...)
			}
			return path
		}
		for _, c := range g.states[n].children {
			if _, ok := prev[c]; !ok {
				prev[c] = n
				queue = append(queue, c)
			}
		}
	}
	return nil
}
