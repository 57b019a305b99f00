package models

import "testing"

func TestEventValidate(t *testing.T) {
	tests := []struct {
		name    string
		event   Event
		wantErr bool
	}{
		{name: "push", event: Event{Kind: EventPush}, wantErr: false},
		{name: "pull_request", event: Event{Kind: EventPullRequest, Branch: "main"}, wantErr: false},
		{name: "empty kind", event: Event{}, wantErr: true},
		{name: "unknown kind", event: Event{Kind: "schedule"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.event.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestBranchFilterMatches(t *testing.T) {
	tests := []struct {
		name   string
		filter *BranchFilter
		branch string
		want   bool
	}{
		{name: "nil filter never matches", filter: nil, branch: "main", want: false},
		{name: "empty filter matches any branch", filter: &BranchFilter{}, branch: "feature-x", want: true},
		{name: "exact match", filter: &BranchFilter{Branches: []string{"main"}}, branch: "main", want: true},
		{name: "exact mismatch", filter: &BranchFilter{Branches: []string{"main"}}, branch: "develop", want: false},
		{name: "glob match", filter: &BranchFilter{Branches: []string{"release-*"}}, branch: "release-1.2", want: true},
		{name: "glob mismatch", filter: &BranchFilter{Branches: []string{"release-*"}}, branch: "hotfix-1", want: false},
		{name: "one of several patterns", filter: &BranchFilter{Branches: []string{"main", "release-*"}}, branch: "release-2.0", want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.filter.Matches(tt.branch); got != tt.want {
				t.Errorf("Matches(%q) = %v, want %v", tt.branch, got, tt.want)
			}
		})
	}
}

func TestTriggerMatches(t *testing.T) {
	trigger := Trigger{
		Push:        &BranchFilter{Branches: []string{"main"}},
		PullRequest: &BranchFilter{Branches: []string{"main", "release-*"}},
	}

	tests := []struct {
		name  string
		event Event
		want  bool
	}{
		{name: "push to main", event: Event{Kind: EventPush, Branch: "main"}, want: true},
		{name: "push to other branch", event: Event{Kind: EventPush, Branch: "develop"}, want: false},
		{name: "push without branch matches subscribed kind", event: Event{Kind: EventPush}, want: true},
		{name: "pull request against main", event: Event{Kind: EventPullRequest, Branch: "main"}, want: true},
		{name: "pull request against release branch", event: Event{Kind: EventPullRequest, Branch: "release-1.0"}, want: true},
		{name: "pull request against other branch", event: Event{Kind: EventPullRequest, Branch: "experiment"}, want: false},
		{name: "unknown event kind", event: Event{Kind: "schedule"}, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := trigger.Matches(tt.event); got != tt.want {
				t.Errorf("Matches(%+v) = %v, want %v", tt.event, got, tt.want)
			}
		})
	}
}

func TestTriggerUnsubscribedKind(t *testing.T) {
	trigger := Trigger{Push: &BranchFilter{}}

	if trigger.Matches(Event{Kind: EventPullRequest, Branch: "main"}) {
		t.Error("Expected pull_request not to match a push-only trigger")
	}
	if !trigger.Matches(Event{Kind: EventPush, Branch: "anything"}) {
		t.Error("Expected any push to match an unfiltered push trigger")
	}
}

func TestTriggerIsZero(t *testing.T) {
	if !(Trigger{}).IsZero() {
		t.Error("Expected empty trigger to be zero")
	}
	if (Trigger{Push: &BranchFilter{}}).IsZero() {
		t.Error("Expected push trigger not to be zero")
	}
}
