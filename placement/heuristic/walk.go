package heuristic

import (
	"errors"
	"math/rand"

	"sfcplacement/topology"
)

var (
	errUnreachable   = errors.New("egress unreachable over edges with enough residual capacity")
	errDeadEnd       = errors.New("random walk reached a vertex without eligible outgoing edge")
	errStepsExceeded = errors.New("random walk step budget exhausted")
	errNoHost        = errors.New("no vertex on the path can host the chain")
)

// eligibleFunc reports whether the walk may take an edge
type eligibleFunc func(e topology.Edge) bool

// reachable runs a BFS from src over eligible edges
func reachable(topo *topology.Topology, src, dst string, eligible eligibleFunc) bool {
	if src == dst {
		return true
	}
	visited := map[string]bool{src: true}
	queue := []string{src}
	for len(queue) > 0 {
		at := queue[0]
		queue = queue[1:]
		for _, e := range topo.Outgoing(at) {
			if visited[e.Dst] || !eligible(e) {
				continue
			}
			if e.Dst == dst {
				return true
			}
			visited[e.Dst] = true
			queue = append(queue, e.Dst)
		}
	}
	return false
}

// randomWalk walks from src choosing uniformly among eligible outgoing edges
// until dst is reached. Loops are erased as soon as they close, so the result
// is a simple path.
func randomWalk(rng *rand.Rand, topo *topology.Topology, src, dst string, eligible eligibleFunc, maxSteps int) ([]topology.Edge, error) {
	if !reachable(topo, src, dst, eligible) {
		return nil, errUnreachable
	}

	var path []topology.Edge
	// position of each vertex of the current path, src at 0
	pos := map[string]int{src: 0}
	at := src

	for steps := 0; at != dst; steps++ {
		if steps >= maxSteps {
			return nil, errStepsExceeded
		}
		var candidates []topology.Edge
		for _, e := range topo.Outgoing(at) {
			if eligible(e) {
				candidates = append(candidates, e)
			}
		}
		if len(candidates) == 0 {
			return nil, errDeadEnd
		}
		e := candidates[rng.Intn(len(candidates))]

		if idx, ok := pos[e.Dst]; ok {
			for _, erased := range path[idx:] {
				delete(pos, erased.Dst)
			}
			path = path[:idx]
			pos[e.Dst] = idx
		} else {
			path = append(path, e)
			pos[e.Dst] = len(path)
		}
		at = e.Dst
	}
	return path, nil
}

// placeChain assigns the chain along a simple path: every hosting vertex takes
// the next pending VNF, the rest goes to the last hosting vertex of the path.
// It returns the vertex position of each chain element.
func placeChain(topo *topology.Topology, vertices []string, chainLen int) ([]int, error) {
	positions := make([]int, 0, chainLen)
	last := -1
	for i, v := range vertices {
		if !topo.CanHost(v) {
			continue
		}
		last = i
		if len(positions) < chainLen && i < len(vertices)-1 {
			positions = append(positions, i)
		}
	}
	if len(positions) == chainLen {
		return positions, nil
	}
	if last < 0 {
		return nil, errNoHost
	}
	for len(positions) < chainLen {
		positions = append(positions, last)
	}
	return positions, nil
}

// layersOf derives the layer of each edge from the chain positions
func layersOf(edgeCount int, positions []int) []int {
	layers := make([]int, edgeCount)
	for i := range layers {
		for _, p := range positions {
			if p <= i {
				layers[i]++
			}
		}
	}
	return layers
}
