package executor

import (
	"errors"
	"testing"

	"github.com/harrison/runci/internal/models"
)

func TestBuildJobGraph(t *testing.T) {
	jobs := []models.Job{
		{ID: "a"},
		{ID: "b", Needs: []string{"a"}},
		{ID: "c", Needs: []string{"a", "b"}},
	}

	g, err := BuildJobGraph(jobs)
	if err != nil {
		t.Fatalf("BuildJobGraph() error = %v", err)
	}

	adjacency, err := g.AdjacencyMap()
	if err != nil {
		t.Fatalf("AdjacencyMap() error = %v", err)
	}
	if len(adjacency["a"]) != 2 {
		t.Errorf("Expected 2 edges from 'a', got %d", len(adjacency["a"]))
	}
	if _, ok := adjacency["a"]["b"]; !ok {
		t.Error("Expected edge a -> b")
	}
}

func TestBuildJobGraphCycle(t *testing.T) {
	jobs := []models.Job{
		{ID: "a", Needs: []string{"b"}},
		{ID: "b", Needs: []string{"a"}},
	}

	_, err := BuildJobGraph(jobs)
	if !errors.Is(err, ErrCyclicDependency) {
		t.Errorf("Expected ErrCyclicDependency, got %v", err)
	}
}

func TestCalculateWaves(t *testing.T) {
	jobs := []models.Job{
		{ID: "lint"},
		{ID: "typecheck"},
		{ID: "test", Needs: []string{"lint"}},
		{ID: "docs", Needs: []string{"lint", "typecheck"}},
		{ID: "publish", Needs: []string{"test", "docs"}},
	}

	waves, err := CalculateWaves(jobs)
	if err != nil {
		t.Fatalf("CalculateWaves() error = %v", err)
	}

	if len(waves) != 3 {
		t.Fatalf("Expected 3 waves, got %d", len(waves))
	}

	wantWaves := [][]string{
		{"lint", "typecheck"},
		{"test", "docs"},
		{"publish"},
	}
	for i, want := range wantWaves {
		if len(waves[i].JobIDs) != len(want) {
			t.Errorf("Wave %d: expected %d jobs, got %d", i+1, len(want), len(waves[i].JobIDs))
			continue
		}
		for j, id := range want {
			if waves[i].JobIDs[j] != id {
				t.Errorf("Wave %d job %d: expected %q, got %q", i+1, j, id, waves[i].JobIDs[j])
			}
		}
	}

	if waves[0].Name != "Wave 1" {
		t.Errorf("Expected wave name 'Wave 1', got %q", waves[0].Name)
	}
}

func TestCalculateWavesSingleJob(t *testing.T) {
	waves, err := CalculateWaves([]models.Job{{ID: "only"}})
	if err != nil {
		t.Fatalf("CalculateWaves() error = %v", err)
	}
	if len(waves) != 1 || len(waves[0].JobIDs) != 1 {
		t.Fatalf("Expected one wave with one job, got %+v", waves)
	}
}

func TestCalculateWavesEmpty(t *testing.T) {
	waves, err := CalculateWaves(nil)
	if err != nil {
		t.Fatalf("CalculateWaves() error = %v", err)
	}
	if len(waves) != 0 {
		t.Errorf("Expected no waves, got %d", len(waves))
	}
}

func TestCalculateWavesCycle(t *testing.T) {
	jobs := []models.Job{
		{ID: "a", Needs: []string{"c"}},
		{ID: "b", Needs: []string{"a"}},
		{ID: "c", Needs: []string{"b"}},
	}

	if _, err := CalculateWaves(jobs); !errors.Is(err, ErrCyclicDependency) {
		t.Errorf("Expected ErrCyclicDependency, got %v", err)
	}
}

func TestDependentsOf(t *testing.T) {
	jobs := []models.Job{
		{ID: "a"},
		{ID: "b", Needs: []string{"a"}},
		{ID: "c", Needs: []string{"b"}},
		{ID: "d"},
	}

	dependents, err := DependentsOf(jobs, []string{"a"})
	if err != nil {
		t.Fatalf("DependentsOf() error = %v", err)
	}

	if !dependents["b"] || !dependents["c"] {
		t.Errorf("Expected b and c to be transitive dependents, got %v", dependents)
	}
	if dependents["d"] {
		t.Error("Expected d not to be a dependent of a")
	}
	if dependents["a"] {
		t.Error("Expected the root itself not to be listed")
	}
}
