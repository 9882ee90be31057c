package store

import (
	"sort"
	"sync"
	"time"

	"docvault/internal/util"
	"docvault/pkg/domain"
)

// MemoryStore keeps all state in-process. It mirrors GormStore semantics
// closely enough for tests, including the pending-only transition guard.
type MemoryStore struct {
	mu        sync.RWMutex
	users     map[string]domain.User
	emails    map[string]string // email -> user ID
	phones    map[string]string // phone -> user ID
	plans     map[string]domain.Plan
	documents map[string]domain.Document
	codes     map[string]domain.ShareCode // by ID
	requests  map[string]domain.AccessRequest
	requested map[string][]domain.RequestedDocument // by request ID
	events    []domain.Event
}

// NewMemoryStore initializes an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:     make(map[string]domain.User),
		emails:    make(map[string]string),
		phones:    make(map[string]string),
		plans:     make(map[string]domain.Plan),
		documents: make(map[string]domain.Document),
		codes:     make(map[string]domain.ShareCode),
		requests:  make(map[string]domain.AccessRequest),
		requested: make(map[string][]domain.RequestedDocument),
	}
}

func (m *MemoryStore) SaveUser(u domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if prev, ok := m.users[u.ID]; ok {
		delete(m.emails, prev.Email)
		delete(m.phones, prev.Phone)
		// storage counter is owned by AddStorageUsed
		u.StorageUsed = prev.StorageUsed
	}
	m.users[u.ID] = u
	m.emails[u.Email] = u.ID
	if u.Phone != "" {
		m.phones[u.Phone] = u.ID
	}
	return nil
}

func (m *MemoryStore) HasUserEmail(email string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.emails[email]
	return ok, nil
}

func (m *MemoryStore) GetUserByEmail(email string) (domain.User, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.emails[email]
	if !ok {
		return domain.User{}, false, nil
	}
	return m.users[id], true, nil
}

func (m *MemoryStore) GetUserByID(id string) (domain.User, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[id]
	return u, ok, nil
}

func (m *MemoryStore) GetUserByPhone(phone string) (domain.User, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.phones[phone]
	if !ok {
		return domain.User{}, false, nil
	}
	return m.users[id], true, nil
}

func (m *MemoryStore) SavePlan(p domain.Plan) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.plans[p.ID] = p
	return nil
}

func (m *MemoryStore) GetPlan(id string) (domain.Plan, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.plans[id]
	return p, ok, nil
}

func (m *MemoryStore) AddStorageUsed(ownerID string, delta int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[ownerID]
	if !ok {
		return nil
	}
	u.StorageUsed += delta
	if u.StorageUsed < 0 {
		u.StorageUsed = 0
	}
	u.UpdatedAt = time.Now().UTC()
	m.users[ownerID] = u
	return nil
}

func (m *MemoryStore) SaveDocument(d domain.Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.documents[d.ID] = d
	return nil
}

func (m *MemoryStore) GetDocument(id string) (domain.Document, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	d, ok := m.documents[id]
	return d, ok, nil
}

func (m *MemoryStore) ListDocumentsByOwner(ownerID string) ([]domain.Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res := make([]domain.Document, 0)
	for _, d := range m.documents {
		if d.OwnerID == ownerID {
			res = append(res, d)
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i].CreatedAt.Before(res[j].CreatedAt) })
	return res, nil
}

func (m *MemoryStore) CountDocumentsByOwner(ownerID string) (int, error) {
	docs, _ := m.ListDocumentsByOwner(ownerID)
	return len(docs), nil
}

func (m *MemoryStore) DeleteDocument(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.documents, id)
	for reqID, rows := range m.requested {
		kept := rows[:0]
		for _, row := range rows {
			if row.DocumentID != id {
				kept = append(kept, row)
			}
		}
		m.requested[reqID] = kept
	}
	return nil
}

func (m *MemoryStore) IssueShareCode(c domain.ShareCode) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, existing := range m.codes {
		if existing.OwnerID == c.OwnerID && id != c.ID {
			existing.Active = false
			m.codes[id] = existing
		}
	}
	m.codes[c.ID] = c
	return nil
}

func (m *MemoryStore) GetActiveShareCode(code string) (domain.ShareCode, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, c := range m.codes {
		if c.Code == code && c.Active {
			return c, true, nil
		}
	}
	return domain.ShareCode{}, false, nil
}

func (m *MemoryStore) CreateAccessRequest(req domain.AccessRequest, documentIDs []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests[req.ID] = req
	rows := make([]domain.RequestedDocument, 0, len(documentIDs))
	for _, docID := range documentIDs {
		rows = append(rows, domain.RequestedDocument{
			ID:         util.NewID(),
			RequestID:  req.ID,
			DocumentID: docID,
		})
	}
	m.requested[req.ID] = rows
	return nil
}

func (m *MemoryStore) GetAccessRequest(id string) (domain.AccessRequest, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.requests[id]
	return r, ok, nil
}

func (m *MemoryStore) ListRequestedDocuments(requestID string) ([]domain.Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res := make([]domain.Document, 0)
	for _, row := range m.requested[requestID] {
		if d, ok := m.documents[row.DocumentID]; ok {
			res = append(res, d)
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i].CreatedAt.Before(res[j].CreatedAt) })
	return res, nil
}

func (m *MemoryStore) ApproveAccessRequest(id string, keepIDs []string, permission domain.PermissionLevel) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	req, ok := m.requests[id]
	if !ok || req.Status != domain.StatusPending {
		return ErrRequestNotPending
	}
	keep := make(map[string]struct{}, len(keepIDs))
	for _, docID := range keepIDs {
		keep[docID] = struct{}{}
	}
	rows := m.requested[id]
	kept := rows[:0]
	for _, row := range rows {
		if _, ok := keep[row.DocumentID]; ok {
			kept = append(kept, row)
		}
	}
	m.requested[id] = kept
	req.Status = domain.StatusApproved
	req.Permission = permission
	req.UpdatedAt = time.Now().UTC()
	m.requests[id] = req
	return nil
}

func (m *MemoryStore) DenyAccessRequest(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	req, ok := m.requests[id]
	if !ok || req.Status != domain.StatusPending {
		return ErrRequestNotPending
	}
	req.Status = domain.StatusDenied
	req.UpdatedAt = time.Now().UTC()
	m.requests[id] = req
	return nil
}

func (m *MemoryStore) FindApprovedRequestForDocument(documentID string) (domain.AccessRequest, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var best domain.AccessRequest
	found := false
	for reqID, rows := range m.requested {
		req, ok := m.requests[reqID]
		if !ok || req.Status != domain.StatusApproved {
			continue
		}
		for _, row := range rows {
			if row.DocumentID == documentID {
				if !found || req.UpdatedAt.After(best.UpdatedAt) {
					best = req
					found = true
				}
				break
			}
		}
	}
	return best, found, nil
}

func (m *MemoryStore) SaveEvent(e domain.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, e)
	return nil
}

// Events returns a copy of the recorded outbox, for assertions in tests.
func (m *MemoryStore) Events() []domain.Event {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]domain.Event, len(m.events))
	copy(out, m.events)
	return out
}
