// Package registry keeps the session pairs of every configured account.
package registry

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"sync"

	"go.uber.org/zap"

	"ucams-cli/internal/client"
	"ucams-cli/internal/logging"
	"ucams-cli/pkg/models"
)

var (
	ErrDuplicate = errors.New("account already registered")
	ErrNoName    = errors.New("account name is required")
)

// Entry is one account: a portal session and the camera session bound to it.
type Entry struct {
	name    string
	Portal  *client.PortalClient
	Cameras *client.CamerasClient
}

func (e *Entry) Name() string { return e.name }

func (e *Entry) ListCameras(ctx context.Context) (map[string]models.Camera, error) {
	return e.Cameras.ListCameras(ctx)
}

func (e *Entry) SharedDevices(ctx context.Context) ([]models.SharedDevice, error) {
	return e.Portal.SharedDevices(ctx)
}

// ContractBalances returns the current balance per contract, keyed by the
// contract title or, when it has none, its id.
func (e *Entry) ContractBalances(ctx context.Context) (map[string]float64, error) {
	all, err := e.Portal.AllContracts(ctx)
	if err != nil {
		return nil, err
	}

	out := make(map[string]float64, len(all.Detail.Contracts))
	for _, ref := range all.Detail.Contracts {
		info, err := e.Portal.ContractDetails(ctx, ref.ContractID, ref.BillingID)
		if err != nil {
			return nil, fmt.Errorf("contract %d: %w", ref.ContractID, err)
		}
		for _, d := range info.Detail {
			key := d.ContractTitle
			if key == "" {
				key = strconv.Itoa(d.ContractID)
			}
			out[key] = d.Balance.Current
		}
	}
	return out, nil
}

// Close releases idle connections of both sessions.
func (e *Entry) Close() {
	e.Cameras.Close()
	e.Portal.Close()
}

// Registry maps account names to their sessions. It is owned by the process
// and passed explicitly to whoever needs it.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]*Entry
	log     *zap.Logger
}

func New(logger *zap.Logger) *Registry {
	return &Registry{
		entries: make(map[string]*Entry),
		log:     logging.OrNop(logger),
	}
}

// Add creates the session pair for cfg. No request is made.
func (r *Registry) Add(cfg client.Config) (*Entry, error) {
	if cfg.Name == "" {
		return nil, ErrNoName
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.entries[cfg.Name]; ok {
		return nil, fmt.Errorf("%w: %s", ErrDuplicate, cfg.Name)
	}

	portal := client.NewPortal(cfg, r.log)
	e := &Entry{
		name:    cfg.Name,
		Portal:  portal,
		Cameras: client.NewCameras(cfg, portal, r.log),
	}
	r.entries[cfg.Name] = e

	r.log.Debug("account registered", logging.Account(cfg.Name))
	return e, nil
}

func (r *Registry) Get(name string) (*Entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[name]
	return e, ok
}

// Remove closes and forgets an account.
func (r *Registry) Remove(name string) bool {
	r.mu.Lock()
	e, ok := r.entries[name]
	delete(r.entries, name)
	r.mu.Unlock()

	if ok {
		e.Close()
	}
	return ok
}

// All returns the entries sorted by name.
func (r *Registry) All() []*Entry {
	r.mu.RLock()
	out := make([]*Entry, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, e)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].name < out[j].name })
	return out
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// Close closes every entry. The registry stays usable.
func (r *Registry) Close() {
	for _, e := range r.All() {
		e.Close()
	}
}
