package conferencing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/example/conference-booking/internal/application"
)

var (
	// ErrNoAccounts indicates the provider was configured without accounts.
	ErrNoAccounts = errors.New("conferencing: no accounts configured")
	// ErrPoolExhausted indicates every account is at its concurrent room limit.
	ErrPoolExhausted = errors.New("conferencing: account pool exhausted")
	// ErrUnknownResource indicates a release for a resource this provider never
	// allocated or already released.
	ErrUnknownResource = errors.New("conferencing: unknown resource")
)

// Account is a provider account capable of hosting rooms.
type Account struct {
	// ID identifies the account in resource references and logs.
	ID string
	// BaseURL is the account's room URL prefix, e.g. https://conf.example.com.
	BaseURL string
	// MaxRooms bounds concurrent allocations on the account. Zero means
	// unbounded.
	MaxRooms int
}

// Validate reports configuration problems with the account.
func (a Account) Validate() error {
	if strings.TrimSpace(a.ID) == "" {
		return errors.New("conferencing: account id is required")
	}
	parsed, err := url.Parse(a.BaseURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return fmt.Errorf("conferencing: account %s has invalid base URL %q", a.ID, a.BaseURL)
	}
	if a.MaxRooms < 0 {
		return fmt.Errorf("conferencing: account %s has negative room limit", a.ID)
	}
	return nil
}

// PoolProvider allocates conference rooms from a fixed pool of provider
// accounts, rotating round-robin and skipping accounts at their room limit.
// It implements application.ConferenceProvider.
type PoolProvider struct {
	accounts    []Account
	idGenerator func() string
	logger      *slog.Logger

	mu     sync.Mutex
	next   int
	active map[string]allocation
}

type allocation struct {
	accountID string
	roomID    string
}

// NewPoolProvider creates a provider over the given accounts. The idGenerator
// may be nil, in which case random UUIDs are used for room identifiers.
func NewPoolProvider(accounts []Account, idGenerator func() string, logger *slog.Logger) (*PoolProvider, error) {
	if len(accounts) == 0 {
		return nil, ErrNoAccounts
	}
	seen := make(map[string]struct{}, len(accounts))
	for _, account := range accounts {
		if err := account.Validate(); err != nil {
			return nil, err
		}
		if _, dup := seen[account.ID]; dup {
			return nil, fmt.Errorf("conferencing: duplicate account id %s", account.ID)
		}
		seen[account.ID] = struct{}{}
	}
	if idGenerator == nil {
		idGenerator = uuid.NewString
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PoolProvider{
		accounts:    accounts,
		idGenerator: idGenerator,
		logger:      logger.With("component", "conferencing"),
		active:      make(map[string]allocation),
	}, nil
}

// Allocate reserves a room on the next account with spare capacity and returns
// the join and host URLs for it.
func (p *PoolProvider) Allocate(ctx context.Context, details application.AllocationDetails) (application.ConferenceResource, error) {
	if err := ctx.Err(); err != nil {
		return application.ConferenceResource{}, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	for offset := 0; offset < len(p.accounts); offset++ {
		account := p.accounts[(p.next+offset)%len(p.accounts)]
		if account.MaxRooms > 0 && p.activeOn(account.ID) >= account.MaxRooms {
			continue
		}

		roomID := p.idGenerator()
		ref := account.ID + ":" + roomID
		p.active[ref] = allocation{accountID: account.ID, roomID: roomID}
		p.next = (p.next + offset + 1) % len(p.accounts)

		p.logger.DebugContext(ctx, "room allocated",
			"account_id", account.ID,
			"request_id", details.RequestID,
			"resource_ref", ref,
		)
		base := strings.TrimRight(account.BaseURL, "/")
		return application.ConferenceResource{
			Ref:     ref,
			JoinURL: base + "/join/" + roomID,
			HostURL: base + "/host/" + roomID,
		}, nil
	}

	return application.ConferenceResource{}, ErrPoolExhausted
}

// Release frees a previously allocated room. Releasing an unknown reference
// yields ErrUnknownResource.
func (p *PoolProvider) Release(ctx context.Context, resourceRef string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	alloc, ok := p.active[resourceRef]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownResource, resourceRef)
	}
	delete(p.active, resourceRef)
	p.logger.DebugContext(ctx, "room released", "account_id", alloc.accountID, "resource_ref", resourceRef)
	return nil
}

// ActiveRooms reports the number of live allocations across the pool.
func (p *PoolProvider) ActiveRooms() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.active)
}

func (p *PoolProvider) activeOn(accountID string) int {
	count := 0
	for _, alloc := range p.active {
		if alloc.accountID == accountID {
			count++
		}
	}
	return count
}
