package application

import (
	"context"
	"testing"
)

func TestConflictDetector_HasUserConflict(t *testing.T) {
	t.Parallel()

	repo := newMemRequestRepo()
	seedRequest(t, repo, "held", "user-1", "dept-1", "2024-03-12", StatusApproved)
	detector := NewConflictDetector(repo)

	cases := []struct {
		name     string
		userID   string
		date     string
		start    string
		end      string
		exclude  string
		conflict bool
	}{
		{name: "overlapping slot conflicts", userID: "user-1", date: "2024-03-12", start: "10:30", end: "11:30", conflict: true},
		{name: "containing slot conflicts", userID: "user-1", date: "2024-03-12", start: "09:00", end: "12:00", conflict: true},
		{name: "identical slot conflicts", userID: "user-1", date: "2024-03-12", start: "10:00", end: "11:00", conflict: true},
		{name: "back to back is free", userID: "user-1", date: "2024-03-12", start: "11:00", end: "12:00", conflict: false},
		{name: "earlier adjacent is free", userID: "user-1", date: "2024-03-12", start: "09:00", end: "10:00", conflict: false},
		{name: "other date is free", userID: "user-1", date: "2024-03-13", start: "10:00", end: "11:00", conflict: false},
		{name: "other user is free", userID: "user-2", date: "2024-03-12", start: "10:00", end: "11:00", conflict: false},
		{name: "excluded request is ignored", userID: "user-1", date: "2024-03-12", start: "10:00", end: "11:00", exclude: "held", conflict: false},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got, err := detector.HasUserConflict(context.Background(), tc.userID, day(t, tc.date), clock(t, tc.start), clock(t, tc.end), tc.exclude)
			if err != nil {
				t.Fatalf("HasUserConflict failed: %v", err)
			}
			if got != tc.conflict {
				t.Fatalf("expected conflict=%v, got %v", tc.conflict, got)
			}
		})
	}
}

func TestConflictDetector_IgnoresTerminalStates(t *testing.T) {
	t.Parallel()

	repo := newMemRequestRepo()
	seedRequest(t, repo, "cancelled", "user-1", "dept-1", "2024-03-12", StatusCancelled)
	seedRequest(t, repo, "rejected", "user-1", "dept-1", "2024-03-12", StatusRejected)
	detector := NewConflictDetector(repo)

	conflict, err := detector.HasUserConflict(context.Background(), "user-1", day(t, "2024-03-12"), clock(t, "10:00"), clock(t, "11:00"), "")
	if err != nil {
		t.Fatalf("HasUserConflict failed: %v", err)
	}
	if conflict {
		t.Fatal("terminal requests must not hold the slot")
	}
}
