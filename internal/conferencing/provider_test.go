package conferencing

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/example/conference-booking/internal/application"
	"github.com/example/conference-booking/internal/timeslot"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func sequentialIDs() func() string {
	counter := 0
	return func() string {
		counter++
		return fmt.Sprintf("room-%d", counter)
	}
}

func testDetails(requestID string) application.AllocationDetails {
	return application.AllocationDetails{
		RequestID:     requestID,
		Title:         "Planning",
		ModeratorName: "A. Moderator",
		Date:          time.Date(2024, 3, 20, 0, 0, 0, 0, time.UTC),
		StartTime:     timeslot.ClockTime(10 * 60),
		EndTime:       timeslot.ClockTime(11 * 60),
	}
}

func TestNewPoolProvider_Validation(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name     string
		accounts []Account
	}{
		{name: "no accounts", accounts: nil},
		{name: "missing id", accounts: []Account{{BaseURL: "https://conf.example.com"}}},
		{name: "bad base URL", accounts: []Account{{ID: "a", BaseURL: "not a url"}}},
		{name: "negative limit", accounts: []Account{{ID: "a", BaseURL: "https://conf.example.com", MaxRooms: -1}}},
		{
			name: "duplicate ids",
			accounts: []Account{
				{ID: "a", BaseURL: "https://conf.example.com"},
				{ID: "a", BaseURL: "https://conf2.example.com"},
			},
		},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if _, err := NewPoolProvider(tc.accounts, nil, quietLogger()); err == nil {
				t.Fatal("expected a configuration error")
			}
		})
	}
}

func TestPoolProvider_AllocateBuildsURLs(t *testing.T) {
	t.Parallel()

	provider, err := NewPoolProvider(
		[]Account{{ID: "acct-1", BaseURL: "https://conf.example.com/"}},
		sequentialIDs(), quietLogger(),
	)
	if err != nil {
		t.Fatalf("NewPoolProvider failed: %v", err)
	}

	resource, err := provider.Allocate(context.Background(), testDetails("req-1"))
	if err != nil {
		t.Fatalf("Allocate failed: %v", err)
	}
	if resource.Ref != "acct-1:room-1" {
		t.Errorf("unexpected ref %q", resource.Ref)
	}
	if resource.JoinURL != "https://conf.example.com/join/room-1" {
		t.Errorf("unexpected join URL %q", resource.JoinURL)
	}
	if resource.HostURL != "https://conf.example.com/host/room-1" {
		t.Errorf("unexpected host URL %q", resource.HostURL)
	}
}

func TestPoolProvider_RotatesAcrossAccounts(t *testing.T) {
	t.Parallel()

	provider, err := NewPoolProvider(
		[]Account{
			{ID: "acct-1", BaseURL: "https://one.example.com"},
			{ID: "acct-2", BaseURL: "https://two.example.com"},
		},
		sequentialIDs(), quietLogger(),
	)
	if err != nil {
		t.Fatalf("NewPoolProvider failed: %v", err)
	}
	ctx := context.Background()

	var accounts []string
	for i := 0; i < 4; i++ {
		resource, err := provider.Allocate(ctx, testDetails(fmt.Sprintf("req-%d", i)))
		if err != nil {
			t.Fatalf("allocation %d failed: %v", i, err)
		}
		accounts = append(accounts, resource.Ref[:6])
	}

	want := []string{"acct-1", "acct-2", "acct-1", "acct-2"}
	for i := range want {
		if accounts[i] != want[i] {
			t.Errorf("allocation %d: expected %s, got %s", i, want[i], accounts[i])
		}
	}
}

func TestPoolProvider_SkipsFullAccounts(t *testing.T) {
	t.Parallel()

	provider, err := NewPoolProvider(
		[]Account{
			{ID: "acct-1", BaseURL: "https://one.example.com", MaxRooms: 1},
			{ID: "acct-2", BaseURL: "https://two.example.com", MaxRooms: 2},
		},
		sequentialIDs(), quietLogger(),
	)
	if err != nil {
		t.Fatalf("NewPoolProvider failed: %v", err)
	}
	ctx := context.Background()

	var refs []string
	for i := 0; i < 3; i++ {
		resource, err := provider.Allocate(ctx, testDetails(fmt.Sprintf("req-%d", i)))
		if err != nil {
			t.Fatalf("allocation %d failed: %v", i, err)
		}
		refs = append(refs, resource.Ref)
	}

	// acct-1 fills after one room, the rest lands on acct-2.
	if refs[0][:6] != "acct-1" || refs[1][:6] != "acct-2" || refs[2][:6] != "acct-2" {
		t.Errorf("unexpected placement: %v", refs)
	}

	if _, err := provider.Allocate(ctx, testDetails("req-overflow")); !errors.Is(err, ErrPoolExhausted) {
		t.Fatalf("expected ErrPoolExhausted, got %v", err)
	}

	// Releasing a room frees capacity again.
	if err := provider.Release(ctx, refs[0]); err != nil {
		t.Fatalf("Release failed: %v", err)
	}
	if _, err := provider.Allocate(ctx, testDetails("req-retry")); err != nil {
		t.Fatalf("expected allocation to succeed after release, got %v", err)
	}
}

func TestPoolProvider_ReleaseUnknownRef(t *testing.T) {
	t.Parallel()

	provider, err := NewPoolProvider(
		[]Account{{ID: "acct-1", BaseURL: "https://conf.example.com"}},
		sequentialIDs(), quietLogger(),
	)
	if err != nil {
		t.Fatalf("NewPoolProvider failed: %v", err)
	}

	if err := provider.Release(context.Background(), "acct-1:ghost"); !errors.Is(err, ErrUnknownResource) {
		t.Fatalf("expected ErrUnknownResource, got %v", err)
	}
}

func TestPoolProvider_HonorsCancelledContext(t *testing.T) {
	t.Parallel()

	provider, err := NewPoolProvider(
		[]Account{{ID: "acct-1", BaseURL: "https://conf.example.com"}},
		sequentialIDs(), quietLogger(),
	)
	if err != nil {
		t.Fatalf("NewPoolProvider failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := provider.Allocate(ctx, testDetails("req-1")); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if provider.ActiveRooms() != 0 {
		t.Error("expected no rooms allocated under a cancelled context")
	}
}
