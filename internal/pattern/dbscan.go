package pattern

// noise marks a vector that density clustering could not assign to any
// cluster.
const noise = -1

// dbscan runs density-based clustering over vectors and returns a
// cluster label per input index, in the same order as vectors. Labels
// are 0-based cluster ids; unassigned points carry the noise label.
func dbscan(vectors []vector, epsilon float64, minPts int) []int {
	labels := make([]int, len(vectors))
	for i := range labels {
		labels[i] = noise
	}
	visited := make([]bool, len(vectors))

	nextCluster := 0
	for i := range vectors {
		if visited[i] {
			continue
		}
		visited[i] = true

		neighbors := regionQuery(vectors, i, epsilon)
		if len(neighbors) < minPts {
			continue
		}

		labels[i] = nextCluster
		expandCluster(vectors, labels, visited, neighbors, nextCluster, epsilon, minPts)
		nextCluster++
	}

	return labels
}

// regionQuery returns every point within epsilon of index, including the
// point itself, matching the original's sklearn DBSCAN semantics where a
// point always counts as its own neighbor.
func regionQuery(vectors []vector, index int, epsilon float64) []int {
	var neighbors []int
	for j := range vectors {
		if j == index {
			neighbors = append(neighbors, j)
			continue
		}
		if euclidean(vectors[index], vectors[j]) <= epsilon {
			neighbors = append(neighbors, j)
		}
	}
	return neighbors
}

func expandCluster(vectors []vector, labels []int, visited []bool, seeds []int, cluster int, epsilon float64, minPts int) {
	queue := append([]int(nil), seeds...)

	for len(queue) > 0 {
		j := queue[0]
		queue = queue[1:]

		if !visited[j] {
			visited[j] = true
			neighbors := regionQuery(vectors, j, epsilon)
			if len(neighbors) >= minPts {
				queue = append(queue, neighbors...)
			}
		}

		if labels[j] == noise {
			labels[j] = cluster
		}
	}
}
