package store

import (
	"sort"
	"sync"
	"time"

	"referral_system/internal/apperr"
	"referral_system/internal/domain"
)

// Memory implements every store interface on in-process maps. It backs the
// package tests; production always binds to the gorm stores. Lookups return
// copies so callers mutate nothing until they Save.
type Memory struct {
	mu          sync.Mutex
	nextID      uint
	users       map[uint]domain.User
	edges       map[uint]domain.ReferralEdge
	txs         map[uint]domain.Transaction
	deposits    map[uint]domain.Deposit
	withdrawals map[uint]domain.Withdrawal
	settings    map[string]domain.Setting
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		nextID:      1,
		users:       make(map[uint]domain.User),
		edges:       make(map[uint]domain.ReferralEdge),
		txs:         make(map[uint]domain.Transaction),
		deposits:    make(map[uint]domain.Deposit),
		withdrawals: make(map[uint]domain.Withdrawal),
		settings:    make(map[string]domain.Setting),
	}
}

func (m *Memory) id() uint {
	id := m.nextID
	m.nextID++
	return id
}

// --- UserStore ---

func (m *Memory) Create(u *domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u.ID = m.id()
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now()
	}
	m.users[u.ID] = *u
	return nil
}

func (m *Memory) ByID(id uint) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, apperr.NotFound("user")
	}
	return &u, nil
}

func (m *Memory) ByUsername(username string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Username == username {
			u := u
			return &u, nil
		}
	}
	return nil, apperr.NotFound("user")
}

func (m *Memory) ByReferralCode(code string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.ReferralCode == code {
			u := u
			return &u, nil
		}
	}
	return nil, apperr.NotFound("user")
}

func (m *Memory) Count() (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.users)), nil
}

func (m *Memory) Save(u *domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[u.ID]; !ok {
		return apperr.NotFound("user")
	}
	m.users[u.ID] = *u
	return nil
}

func (m *Memory) UpdateAchievedLevels(userID uint, levels domain.LevelSet) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[userID]
	if !ok {
		return apperr.NotFound("user")
	}
	u.AchievedLevels = append(domain.LevelSet{}, levels...)
	m.users[userID] = u
	return nil
}

func (m *Memory) UpdateSpinState(userID uint, lastUsed time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[userID]
	if !ok {
		return apperr.NotFound("user")
	}
	u.SpinWheelLastUsed = &lastUsed
	u.SpinWheelCount++
	m.users[userID] = u
	return nil
}

func (m *Memory) UpdateActivationFlags(userID uint, active, paid, verified bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[userID]
	if !ok {
		return apperr.NotFound("user")
	}
	u.IsActive = active
	u.RegistrationDepositPaid = paid
	u.RegistrationDepositVerified = verified
	m.users[userID] = u
	return nil
}

// Edges returns the edge store view of the same memory.
func (m *Memory) Edges() EdgeStore { return (*memEdges)(m) }

// Txs returns the transaction store view of the same memory.
func (m *Memory) Txs() TransactionStore { return (*memTxs)(m) }

// Deposits returns the deposit store view of the same memory.
func (m *Memory) Deposits() DepositStore { return (*memDeposits)(m) }

// Withdrawals returns the withdrawal store view of the same memory.
func (m *Memory) Withdrawals() WithdrawalStore { return (*memWithdrawals)(m) }

// Settings returns the setting store view of the same memory.
func (m *Memory) Settings() SettingStore { return (*memSettings)(m) }

// --- EdgeStore ---

type memEdges Memory

func (m *memEdges) Create(e *domain.ReferralEdge) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e.ID = (*Memory)(m).id()
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	m.edges[e.ID] = *e
	return nil
}

func (m *memEdges) ByReferred(referredID uint) (*domain.ReferralEdge, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.edges {
		if e.ReferredID == referredID {
			e := e
			return &e, nil
		}
	}
	return nil, apperr.NotFound("referral edge")
}

func (m *memEdges) CountByReferrer(referrerID uint) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, e := range m.edges {
		if e.ReferrerID == referrerID {
			n++
		}
	}
	return n, nil
}

func (m *memEdges) CountActiveBySide(referrerID uint) (int64, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var left, right int64
	for _, e := range m.edges {
		if e.ReferrerID != referrerID || !e.IsActive {
			continue
		}
		if e.Side == domain.SideLeft {
			left++
		} else {
			right++
		}
	}
	return left, right, nil
}

func (m *memEdges) ListByReferrer(referrerID uint) ([]domain.ReferralEdge, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var edges []domain.ReferralEdge
	for _, e := range m.edges {
		if e.ReferrerID == referrerID {
			edges = append(edges, e)
		}
	}
	sort.Slice(edges, func(i, j int) bool { return edges[i].ID < edges[j].ID })
	return edges, nil
}

func (m *memEdges) Save(e *domain.ReferralEdge) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.edges[e.ID]; !ok {
		return apperr.NotFound("referral edge")
	}
	m.edges[e.ID] = *e
	return nil
}

// --- TransactionStore ---

type memTxs Memory

func (m *memTxs) Create(t *domain.Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t.ID = (*Memory)(m).id()
	if t.CreatedAt == 0 {
		t.CreatedAt = time.Now().UnixMilli()
	}
	m.txs[t.ID] = *t
	return nil
}

func (m *memTxs) ByID(id uint) (*domain.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.txs[id]
	if !ok {
		return nil, apperr.NotFound("transaction")
	}
	return &t, nil
}

func (m *memTxs) Save(t *domain.Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.txs[t.ID]; !ok {
		return apperr.NotFound("transaction")
	}
	m.txs[t.ID] = *t
	return nil
}

func (m *memTxs) ListByUser(userID uint, offset, limit int) ([]domain.Transaction, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var txs []domain.Transaction
	for _, t := range m.txs {
		if t.UserID == userID {
			txs = append(txs, t)
		}
	}
	sort.Slice(txs, func(i, j int) bool { return txs[i].ID > txs[j].ID })
	total := int64(len(txs))
	if offset >= len(txs) {
		return nil, total, nil
	}
	txs = txs[offset:]
	if limit > 0 && limit < len(txs) {
		txs = txs[:limit]
	}
	return txs, total, nil
}

// --- DepositStore ---

type memDeposits Memory

func (m *memDeposits) Create(d *domain.Deposit) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d.ID = (*Memory)(m).id()
	if d.CreatedAt.IsZero() {
		d.CreatedAt = time.Now()
	}
	m.deposits[d.ID] = *d
	return nil
}

func (m *memDeposits) ByID(id uint) (*domain.Deposit, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.deposits[id]
	if !ok {
		return nil, apperr.NotFound("deposit")
	}
	return &d, nil
}

func (m *memDeposits) Save(d *domain.Deposit) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.deposits[d.ID]; !ok {
		return apperr.NotFound("deposit")
	}
	m.deposits[d.ID] = *d
	return nil
}

// --- WithdrawalStore ---

type memWithdrawals Memory

func (m *memWithdrawals) Create(w *domain.Withdrawal) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	w.ID = (*Memory)(m).id()
	if w.CreatedAt.IsZero() {
		w.CreatedAt = time.Now()
	}
	m.withdrawals[w.ID] = *w
	return nil
}

func (m *memWithdrawals) ByID(id uint) (*domain.Withdrawal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	w, ok := m.withdrawals[id]
	if !ok {
		return nil, apperr.NotFound("withdrawal")
	}
	return &w, nil
}

func (m *memWithdrawals) Save(w *domain.Withdrawal) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.withdrawals[w.ID]; !ok {
		return apperr.NotFound("withdrawal")
	}
	m.withdrawals[w.ID] = *w
	return nil
}

// --- SettingStore ---

type memSettings Memory

func (m *memSettings) FindByKeys(keys []string) ([]domain.Setting, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Setting
	for _, k := range keys {
		if s, ok := m.settings[k]; ok {
			out = append(out, s)
		}
	}
	return out, nil
}

func (m *memSettings) Upsert(key, value, description string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.settings[key]
	if !ok {
		s = domain.Setting{ID: (*Memory)(m).id(), Key: key}
	}
	s.Value = value
	s.Description = description
	s.UpdatedAt = time.Now()
	m.settings[key] = s
	return nil
}
