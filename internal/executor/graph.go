// Package executor runs workflow jobs as subprocesses with fail-fast
// semantics, sequential steps, and bounded parallelism across jobs.
package executor

import (
	"errors"
	"fmt"

	"github.com/dominikbraun/graph"

	"github.com/harrison/runci/internal/models"
)

// ErrCyclicDependency is returned when the needs edges form a cycle
var ErrCyclicDependency = errors.New("circular dependency detected in job needs")

// BuildJobGraph builds a directed dependency graph with one vertex per job
// and an edge from each needed job to its dependent. Returns
// ErrCyclicDependency if the needs edges form a cycle.
func BuildJobGraph(jobs []models.Job) (graph.Graph[string, string], error) {
	g := graph.New(graph.StringHash, graph.Directed(), graph.PreventCycles())

	for _, job := range jobs {
		if err := g.AddVertex(job.ID); err != nil {
			return nil, fmt.Errorf("failed to add job %q: %w", job.ID, err)
		}
	}

	for _, job := range jobs {
		for _, need := range job.Needs {
			if err := g.AddEdge(need, job.ID); err != nil {
				if errors.Is(err, graph.ErrEdgeCreatesCycle) {
					return nil, fmt.Errorf("job %q needs %q: %w", job.ID, need, ErrCyclicDependency)
				}
				return nil, fmt.Errorf("failed to add edge %q -> %q: %w", need, job.ID, err)
			}
		}
	}

	return g, nil
}

// CalculateWaves groups jobs into execution waves. A job's wave is one
// past the deepest wave among its needs; jobs with no needs form wave 1.
// Jobs inside a wave are independent and may run in parallel; waves run
// strictly in order.
func CalculateWaves(jobs []models.Job) ([]models.Wave, error) {
	if _, err := BuildJobGraph(jobs); err != nil {
		return nil, err
	}

	jobMap := make(map[string]models.Job, len(jobs))
	for _, job := range jobs {
		jobMap[job.ID] = job
	}

	// Depth of each job in the dependency DAG, memoized.
	// BuildJobGraph already rejected cycles, so this terminates.
	depths := make(map[string]int, len(jobs))
	var depthOf func(id string) int
	depthOf = func(id string) int {
		if d, ok := depths[id]; ok {
			return d
		}
		depth := 0
		for _, need := range jobMap[id].Needs {
			if d := depthOf(need) + 1; d > depth {
				depth = d
			}
		}
		depths[id] = depth
		return depth
	}

	maxDepth := -1
	for _, job := range jobs {
		if d := depthOf(job.ID); d > maxDepth {
			maxDepth = d
		}
	}
	if maxDepth < 0 {
		return []models.Wave{}, nil
	}

	// Group into waves, preserving workflow order within each wave
	waves := make([]models.Wave, maxDepth+1)
	for i := range waves {
		waves[i].Name = fmt.Sprintf("Wave %d", i+1)
	}
	for _, job := range jobs {
		d := depths[job.ID]
		waves[d].JobIDs = append(waves[d].JobIDs, job.ID)
	}

	return waves, nil
}

// DependentsOf returns the transitive dependents of the given job IDs,
// computed over the job graph's adjacency map
func DependentsOf(jobs []models.Job, roots []string) (map[string]bool, error) {
	g, err := BuildJobGraph(jobs)
	if err != nil {
		return nil, err
	}

	adjacency, err := g.AdjacencyMap()
	if err != nil {
		return nil, fmt.Errorf("failed to read adjacency map: %w", err)
	}

	dependents := make(map[string]bool)
	queue := append([]string{}, roots...)
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		for next := range adjacency[current] {
			if !dependents[next] {
				dependents[next] = true
				queue = append(queue, next)
			}
		}
	}

	return dependents, nil
}
