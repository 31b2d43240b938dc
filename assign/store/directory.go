package store

import (
	"context"
	"sort"
	"sync"

	"github.com/salonhub/assist-engine/assign"
)

// =============================================================================
// MEMORY DIRECTORY - In-memory identity & role source
// =============================================================================

// MemoryDirectory is a fixed-roster Directory for tests and local dev.
type MemoryDirectory struct {
	mu         sync.RWMutex
	assistants []assign.Contact
	contacts   map[string]assign.Contact
}

func NewMemoryDirectory() *MemoryDirectory {
	return &MemoryDirectory{contacts: make(map[string]assign.Contact)}
}

// AddAssistant registers a contact as an assistant role holder. Insertion
// order is preserved so tie-break tests can fix the roster ordering.
func (d *MemoryDirectory) AddAssistant(c assign.Contact) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.assistants = append(d.assistants, c)
	d.contacts[c.ID] = c
}

// AddContact registers a non-assistant contact (e.g. a stylist).
func (d *MemoryDirectory) AddContact(c assign.Contact) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.contacts[c.ID] = c
}

func (d *MemoryDirectory) AssistantRoleHolders(context.Context) ([]assign.Contact, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return append([]assign.Contact(nil), d.assistants...), nil
}

func (d *MemoryDirectory) Lookup(_ context.Context, id string) (*assign.Contact, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	c, ok := d.contacts[id]
	if !ok {
		return nil, nil
	}
	return &c, nil
}

// =============================================================================
// MEMORY CATALOG - In-memory service lookup
// =============================================================================

type MemoryCatalog struct {
	mu       sync.RWMutex
	services map[assign.ServiceID]assign.Service
}

func NewMemoryCatalog() *MemoryCatalog {
	return &MemoryCatalog{services: make(map[assign.ServiceID]assign.Service)}
}

func (c *MemoryCatalog) AddService(s assign.Service) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.services[s.ID] = s
}

func (c *MemoryCatalog) GetService(_ context.Context, id assign.ServiceID) (*assign.Service, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s, ok := c.services[id]
	if !ok {
		return nil, nil
	}
	return &s, nil
}

// Services returns the catalog sorted by id.
func (c *MemoryCatalog) Services(context.Context) ([]assign.Service, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var result []assign.Service
	for _, s := range c.services {
		result = append(result, s)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}
