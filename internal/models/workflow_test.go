package models

import (
	"testing"
)

func TestJobValidate(t *testing.T) {
	tests := []struct {
		name    string
		job     Job
		wantErr bool
	}{
		{
			name: "valid job",
			job: Job{
				ID:    "lint",
				Steps: []Step{{Run: "echo lint"}},
			},
			wantErr: false,
		},
		{
			name: "missing id",
			job: Job{
				Steps: []Step{{Run: "echo hi"}},
			},
			wantErr: true,
		},
		{
			name:    "no steps",
			job:     Job{ID: "empty"},
			wantErr: true,
		},
		{
			name: "step without command",
			job: Job{
				ID:    "bad-step",
				Steps: []Step{{Name: "named but empty"}},
			},
			wantErr: true,
		},
		{
			name: "unsupported shell",
			job: Job{
				ID:    "zsh-job",
				Steps: []Step{{Run: "echo hi", Shell: "zsh"}},
			},
			wantErr: true,
		},
		{
			name: "bash shell is supported",
			job: Job{
				ID:    "bash-job",
				Steps: []Step{{Run: "echo hi", Shell: "bash"}},
			},
			wantErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.job.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestDisplayName(t *testing.T) {
	job := Job{ID: "lint", Name: "Run linters"}
	if job.DisplayName() != "Run linters" {
		t.Errorf("Expected 'Run linters', got %q", job.DisplayName())
	}

	job = Job{ID: "lint"}
	if job.DisplayName() != "lint" {
		t.Errorf("Expected 'lint', got %q", job.DisplayName())
	}

	step := Step{Run: "make test"}
	if step.DisplayName() != "make test" {
		t.Errorf("Expected 'make test', got %q", step.DisplayName())
	}

	step = Step{Name: "Tests", Run: "make test"}
	if step.DisplayName() != "Tests" {
		t.Errorf("Expected 'Tests', got %q", step.DisplayName())
	}
}

func TestJobByID(t *testing.T) {
	jobs := []Job{
		{ID: "lint"},
		{ID: "test"},
	}

	job, ok := JobByID(jobs, "test")
	if !ok {
		t.Fatal("Expected to find job 'test'")
	}
	if job.ID != "test" {
		t.Errorf("Expected job 'test', got %q", job.ID)
	}

	if _, ok := JobByID(jobs, "missing"); ok {
		t.Error("Expected not to find job 'missing'")
	}
}

func TestHasCyclicDependencies(t *testing.T) {
	tests := []struct {
		name      string
		jobs      []Job
		wantCycle bool
	}{
		{
			name: "no cycle",
			jobs: []Job{
				{ID: "a"},
				{ID: "b", Needs: []string{"a"}},
				{ID: "c", Needs: []string{"a", "b"}},
			},
			wantCycle: false,
		},
		{
			name: "simple cycle",
			jobs: []Job{
				{ID: "a", Needs: []string{"b"}},
				{ID: "b", Needs: []string{"a"}},
			},
			wantCycle: true,
		},
		{
			name: "self dependency",
			jobs: []Job{
				{ID: "a", Needs: []string{"a"}},
			},
			wantCycle: true,
		},
		{
			name: "longer cycle",
			jobs: []Job{
				{ID: "a", Needs: []string{"c"}},
				{ID: "b", Needs: []string{"a"}},
				{ID: "c", Needs: []string{"b"}},
			},
			wantCycle: true,
		},
		{
			name: "diamond is not a cycle",
			jobs: []Job{
				{ID: "a"},
				{ID: "b", Needs: []string{"a"}},
				{ID: "c", Needs: []string{"a"}},
				{ID: "d", Needs: []string{"b", "c"}},
			},
			wantCycle: false,
		},
		{
			name:      "empty job list",
			jobs:      []Job{},
			wantCycle: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := HasCyclicDependencies(tt.jobs); got != tt.wantCycle {
				t.Errorf("HasCyclicDependencies() = %v, want %v", got, tt.wantCycle)
			}
		})
	}
}
