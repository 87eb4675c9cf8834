package billing

import (
	"context"
	"maps"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryDirectory is an in-process UserDirectory for tests and local development.
type MemoryDirectory struct {
	mu    sync.RWMutex
	users map[string]*User
	order []string
}

// NewMemoryDirectory returns a directory seeded with users, in order.
func NewMemoryDirectory(users ...*User) *MemoryDirectory {
	d := &MemoryDirectory{users: make(map[string]*User, len(users))}
	for _, u := range users {
		d.put(cloneUser(u))
	}
	return d
}

func (d *MemoryDirectory) put(u *User) {
	if _, exists := d.users[u.ID]; !exists {
		d.order = append(d.order, u.ID)
	}
	d.users[u.ID] = u
}

// GetUser implements UserDirectory.
func (d *MemoryDirectory) GetUser(_ context.Context, id string) (*User, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	u, ok := d.users[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	return cloneUser(u), nil
}

// FindUserByEmail implements UserDirectory. Matching is case-insensitive and
// the earliest created user wins.
func (d *MemoryDirectory) FindUserByEmail(_ context.Context, email string) (*User, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	for _, id := range d.order {
		if u := d.users[id]; strings.EqualFold(u.Email, email) {
			return cloneUser(u), nil
		}
	}
	return nil, ErrUserNotFound
}

// ListUsers implements UserDirectory.
func (d *MemoryDirectory) ListUsers(_ context.Context, offset, limit int) ([]*User, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if offset >= len(d.order) {
		return nil, nil
	}
	end := min(offset+limit, len(d.order))
	page := make([]*User, 0, end-offset)
	for _, id := range d.order[offset:end] {
		page = append(page, cloneUser(d.users[id]))
	}
	return page, nil
}

// CreateUser implements UserDirectory.
func (d *MemoryDirectory) CreateUser(_ context.Context, params CreateUserParams) (*User, error) {
	u := &User{
		ID:              "user_" + strings.ReplaceAll(uuid.NewString(), "-", ""),
		Email:           params.Email,
		Name:            strings.TrimSpace(params.FirstName + " " + params.LastName),
		PublicMetadata:  maps.Clone(params.PublicMetadata),
		PrivateMetadata: maps.Clone(params.PrivateMetadata),
	}
	d.mu.Lock()
	d.put(u)
	d.mu.Unlock()
	return cloneUser(u), nil
}

// UpdateMetadata implements UserDirectory.
func (d *MemoryDirectory) UpdateMetadata(_ context.Context, id string, public, private map[string]any) (*User, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	u, ok := d.users[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	u.PublicMetadata = MergeMetadata(u.PublicMetadata, public)
	u.PrivateMetadata = MergeMetadata(u.PrivateMetadata, private)
	return cloneUser(u), nil
}

// Len returns the number of stored users.
func (d *MemoryDirectory) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.users)
}

func cloneUser(u *User) *User {
	c := *u
	c.PublicMetadata = maps.Clone(u.PublicMetadata)
	c.PrivateMetadata = maps.Clone(u.PrivateMetadata)
	return &c
}

type customerKey struct {
	provider   Provider
	customerID string
}

// MemoryCustomerIndex is an in-process CustomerIndex.
type MemoryCustomerIndex struct {
	mu    sync.RWMutex
	links map[customerKey]string
}

// NewMemoryCustomerIndex returns an empty index.
func NewMemoryCustomerIndex() *MemoryCustomerIndex {
	return &MemoryCustomerIndex{links: make(map[customerKey]string)}
}

// LookupUser implements CustomerIndex.
func (x *MemoryCustomerIndex) LookupUser(_ context.Context, provider Provider, customerID string) (string, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	userID, ok := x.links[customerKey{provider, customerID}]
	if !ok {
		return "", ErrCustomerNotLinked
	}
	return userID, nil
}

// LinkCustomer implements CustomerIndex. An existing link is kept.
func (x *MemoryCustomerIndex) LinkCustomer(_ context.Context, provider Provider, customerID, userID string) error {
	x.mu.Lock()
	defer x.mu.Unlock()
	key := customerKey{provider, customerID}
	if _, exists := x.links[key]; !exists {
		x.links[key] = userID
	}
	return nil
}

// MemoryEventGuard is an in-process EventGuard with per-entry expiry.
type MemoryEventGuard struct {
	mu   sync.Mutex
	ttl  time.Duration
	seen map[string]time.Time
	now  func() time.Time
}

// NewMemoryEventGuard returns a guard remembering events for ttl.
// A non-positive ttl remembers them forever.
func NewMemoryEventGuard(ttl time.Duration) *MemoryEventGuard {
	return &MemoryEventGuard{ttl: ttl, seen: make(map[string]time.Time), now: time.Now}
}

// CheckAndMark implements EventGuard.
func (g *MemoryEventGuard) CheckAndMark(_ context.Context, provider Provider, eventID string) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	key := string(provider) + ":" + eventID
	now := g.now()
	if expires, ok := g.seen[key]; ok && (expires.IsZero() || now.Before(expires)) {
		return true, nil
	}
	var expires time.Time
	if g.ttl > 0 {
		expires = now.Add(g.ttl)
	}
	g.seen[key] = expires
	return false, nil
}

// Release implements EventGuard.
func (g *MemoryEventGuard) Release(_ context.Context, provider Provider, eventID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.seen, string(provider)+":"+eventID)
	return nil
}
