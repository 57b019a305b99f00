package models

import (
	"fmt"
	"path"
)

// Event kind constants
const (
	EventPush        = "push"
	EventPullRequest = "pull_request"
)

// Event describes the change that would trigger a workflow run.
// For push events Branch is the branch pushed to; for pull_request events
// it is the branch the pull request targets.
type Event struct {
	Kind   string // "push" or "pull_request"
	Branch string // Branch the event targets (empty = unspecified)
}

// Validate checks that the event has a supported kind
func (e Event) Validate() error {
	switch e.Kind {
	case EventPush, EventPullRequest:
		return nil
	default:
		return fmt.Errorf("unsupported event kind %q (supported: push, pull_request)", e.Kind)
	}
}

// BranchFilter restricts a trigger to a set of branch patterns.
// Patterns use path.Match syntax ("main", "release-*"). An empty pattern
// list matches every branch.
type BranchFilter struct {
	Branches []string
}

// Matches reports whether the branch satisfies the filter
func (f *BranchFilter) Matches(branch string) bool {
	if f == nil {
		return false
	}
	if len(f.Branches) == 0 {
		return true
	}
	for _, pattern := range f.Branches {
		if ok, err := path.Match(pattern, branch); err == nil && ok {
			return true
		}
		if pattern == branch {
			return true
		}
	}
	return false
}

// Trigger is the workflow trigger surface: which events cause a run.
// A nil filter means the workflow does not subscribe to that event kind.
type Trigger struct {
	Push        *BranchFilter
	PullRequest *BranchFilter
}

// IsZero reports whether no event kind is subscribed
func (t Trigger) IsZero() bool {
	return t.Push == nil && t.PullRequest == nil
}

// Matches reports whether the event should trigger a run.
// An event with an empty branch matches any subscribed filter for its kind.
func (t Trigger) Matches(event Event) bool {
	var filter *BranchFilter
	switch event.Kind {
	case EventPush:
		filter = t.Push
	case EventPullRequest:
		filter = t.PullRequest
	default:
		return false
	}

	if filter == nil {
		return false
	}
	if event.Branch == "" {
		return true
	}
	return filter.Matches(event.Branch)
}
