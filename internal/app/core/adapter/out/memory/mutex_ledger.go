package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/JoeShih716/go-entry-ledger/internal/app/core/domain"
	"github.com/JoeShih716/go-entry-ledger/internal/app/core/usecase"
)

// MutexLedger 是一個使用 Mutex 實現的記憶體帳本，
// 同時實作 AccountStore、EntryStore 與 UnitOfWork。
//
// 結構:
//
//	accounts: 已提交的帳戶資料
//	entries: 已提交的分錄資料
//	mu: 交易單元存活期間一直持有，所有單元因此完全序列化
type MutexLedger struct {
	mu       sync.Mutex
	accounts map[string]*domain.Account
	entries  map[string]*domain.Entry
	now      func() time.Time
}

// NewMutexLedger 建立一個空的 MutexLedger
func NewMutexLedger() *MutexLedger {
	return &MutexLedger{
		accounts: make(map[string]*domain.Account),
		entries:  make(map[string]*domain.Entry),
		now:      time.Now,
	}
}

// memUnit 交易單元：寫入先暫存在這裡，提交時才合併回 MutexLedger
type memUnit struct {
	id       uuid.UUID
	owner    *MutexLedger
	accounts map[string]*domain.Account
	// nil 值代表該分錄已在本單元內刪除
	entries map[string]*domain.Entry
	closed  bool
}

func (u *memUnit) ID() uuid.UUID {
	return u.id
}

func (m *MutexLedger) begin() *memUnit {
	return &memUnit{
		id:       uuid.New(),
		owner:    m,
		accounts: make(map[string]*domain.Account),
		entries:  make(map[string]*domain.Entry),
	}
}

// commit 合併暫存寫入，呼叫端必須持有 m.mu
func (m *MutexLedger) commit(u *memUnit) {
	for id, a := range u.accounts {
		m.accounts[id] = a
	}
	for id, e := range u.entries {
		if e == nil {
			delete(m.entries, id)
			continue
		}
		m.entries[id] = e
	}
}

// Run 開啟交易單元並執行 fn；fn 失敗或 ctx 在提交前被取消時丟棄所有暫存寫入
func (m *MutexLedger) Run(ctx context.Context, parent usecase.Unit, fn func(ctx context.Context, unit usecase.Unit) error) error {
	if parent != nil {
		if _, err := m.unitOf(parent); err != nil {
			return err
		}
		return fn(ctx, parent)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	u := m.begin()
	defer func() { u.closed = true }()

	if err := fn(ctx, u); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	m.commit(u)
	return nil
}

// Ping 記憶體儲存永遠可用，只回報 ctx 是否已結束
func (m *MutexLedger) Ping(ctx context.Context) error {
	return ctx.Err()
}

func (m *MutexLedger) unitOf(unit usecase.Unit) (*memUnit, error) {
	u, ok := unit.(*memUnit)
	if !ok || u.owner != m {
		return nil, domain.ErrForeignUnit
	}
	if u.closed {
		return nil, domain.ErrUnitClosed
	}
	return u, nil
}

// within 在 unit 內執行 op；unit 為 nil 時自己開一個只包含 op 的單元
func (m *MutexLedger) within(ctx context.Context, unit usecase.Unit, op func(u *memUnit) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if unit != nil {
		u, err := m.unitOf(unit)
		if err != nil {
			return err
		}
		return op(u)
	}
	return m.Run(ctx, nil, func(_ context.Context, unit usecase.Unit) error {
		return op(unit.(*memUnit))
	})
}

func (u *memUnit) account(id string) (*domain.Account, bool) {
	if a, ok := u.accounts[id]; ok {
		return a, true
	}
	a, ok := u.owner.accounts[id]
	return a, ok
}

func (u *memUnit) entry(id string) (*domain.Entry, bool) {
	if e, ok := u.entries[id]; ok {
		return e, e != nil
	}
	e, ok := u.owner.entries[id]
	return e, ok
}

// Get 取得帳戶 (回傳副本)
func (m *MutexLedger) Get(ctx context.Context, unit usecase.Unit, accountID string) (*domain.Account, error) {
	var out domain.Account
	err := m.within(ctx, unit, func(u *memUnit) error {
		a, ok := u.account(accountID)
		if !ok {
			return fmt.Errorf("%w: %s", domain.ErrAccountNotFound, accountID)
		}
		out = *a
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// SetBalance 寫入帳戶餘額
func (m *MutexLedger) SetBalance(ctx context.Context, unit usecase.Unit, accountID string, balance decimal.Decimal) (*domain.Account, error) {
	var out domain.Account
	err := m.within(ctx, unit, func(u *memUnit) error {
		a, ok := u.account(accountID)
		if !ok {
			return fmt.Errorf("%w: %s", domain.ErrAccountNotFound, accountID)
		}
		next := *a
		next.Balance = balance
		next.UpdatedAt = m.now()
		u.accounts[accountID] = &next
		out = next
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// Create 開戶；同一使用者下名稱不可重複
func (m *MutexLedger) Create(ctx context.Context, unit usecase.Unit, in domain.NewAccount) (*domain.Account, error) {
	var out domain.Account
	err := m.within(ctx, unit, func(u *memUnit) error {
		for id := range m.accountIDs(u) {
			a, _ := u.account(id)
			if a.UserID == in.UserID && a.Name == in.Name {
				return fmt.Errorf("%w: %s/%s", domain.ErrAccountAlreadyExists, in.UserID, in.Name)
			}
		}
		now := m.now()
		out = domain.Account{
			ID:             uuid.NewString(),
			Name:           in.Name,
			UserID:         in.UserID,
			Balance:        in.OpeningBalance,
			OpeningBalance: in.OpeningBalance,
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		a := out
		u.accounts[out.ID] = &a
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// accountIDs 已提交與暫存帳戶 ID 的聯集
func (m *MutexLedger) accountIDs(u *memUnit) map[string]struct{} {
	ids := make(map[string]struct{}, len(m.accounts)+len(u.accounts))
	for id := range m.accounts {
		ids[id] = struct{}{}
	}
	for id := range u.accounts {
		ids[id] = struct{}{}
	}
	return ids
}

// Entries 是 MutexLedger 的 EntryStore 視圖。
// AccountStore 與 EntryStore 的 Get 簽名相同，因此分錄操作放在獨立型別上。
type Entries struct {
	m *MutexLedger
}

// Entries 回傳分錄儲存
func (m *MutexLedger) Entries() *Entries {
	return &Entries{m: m}
}

// Get 取得分錄 (回傳副本)
func (s *Entries) Get(ctx context.Context, unit usecase.Unit, entryID string) (*domain.Entry, error) {
	var out domain.Entry
	err := s.m.within(ctx, unit, func(u *memUnit) error {
		e, ok := u.entry(entryID)
		if !ok {
			return fmt.Errorf("%w: %s", domain.ErrEntryNotFound, entryID)
		}
		out = *e
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// Insert 新增分錄，帳戶必須存在
func (s *Entries) Insert(ctx context.Context, unit usecase.Unit, entryType domain.EntryType, amount decimal.Decimal, accountID string) (*domain.Entry, error) {
	var out domain.Entry
	err := s.m.within(ctx, unit, func(u *memUnit) error {
		if _, ok := u.account(accountID); !ok {
			return fmt.Errorf("%w: %s", domain.ErrAccountNotFound, accountID)
		}
		now := s.m.now()
		out = domain.Entry{
			ID:        uuid.NewString(),
			Type:      entryType,
			Amount:    amount,
			AccountID: accountID,
			CreatedAt: now,
			UpdatedAt: now,
		}
		e := out
		u.entries[out.ID] = &e
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// Update 更新分錄欄位
func (s *Entries) Update(ctx context.Context, unit usecase.Unit, entryID string, patch domain.EntryPatch) (*domain.Entry, error) {
	var out domain.Entry
	err := s.m.within(ctx, unit, func(u *memUnit) error {
		e, ok := u.entry(entryID)
		if !ok {
			return fmt.Errorf("%w: %s", domain.ErrEntryNotFound, entryID)
		}
		if patch.AccountID != nil {
			if _, ok := u.account(*patch.AccountID); !ok {
				return fmt.Errorf("%w: %s", domain.ErrAccountNotFound, *patch.AccountID)
			}
		}
		next := *e
		if patch.Type != nil {
			next.Type = *patch.Type
		}
		if patch.Amount != nil {
			next.Amount = *patch.Amount
		}
		if patch.AccountID != nil {
			next.AccountID = *patch.AccountID
		}
		next.UpdatedAt = s.m.now()
		u.entries[entryID] = &next
		out = next
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// Delete 刪除分錄
func (s *Entries) Delete(ctx context.Context, unit usecase.Unit, entryID string) error {
	return s.m.within(ctx, unit, func(u *memUnit) error {
		if _, ok := u.entry(entryID); !ok {
			return fmt.Errorf("%w: %s", domain.ErrEntryNotFound, entryID)
		}
		u.entries[entryID] = nil
		return nil
	})
}

// ListByAccount 列出帳戶下的分錄，依建立時間排序
func (s *Entries) ListByAccount(ctx context.Context, unit usecase.Unit, accountID string) ([]domain.Entry, error) {
	var out []domain.Entry
	err := s.m.within(ctx, unit, func(u *memUnit) error {
		seen := make(map[string]struct{})
		for id, e := range u.entries {
			seen[id] = struct{}{}
			if e != nil && e.AccountID == accountID {
				out = append(out, *e)
			}
		}
		for id, e := range s.m.entries {
			if _, ok := seen[id]; ok {
				continue
			}
			if e.AccountID == accountID {
				out = append(out, *e)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

var (
	_ usecase.UnitOfWork   = (*MutexLedger)(nil)
	_ usecase.AccountStore = (*MutexLedger)(nil)
	_ usecase.EntryStore   = (*Entries)(nil)
)
