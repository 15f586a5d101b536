package usecase

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/JoeShih716/go-entry-ledger/internal/app/core/domain"
)

// Unit 是一個已開啟的交易單元 (atomic unit)。
// 所有 store 操作都顯式接收 Unit：傳入時參與該單元，傳 nil 時自成一個原子操作。
type Unit interface {
	// ID 交易單元編號，僅供追蹤 log
	ID() uuid.UUID
}

// UnitOfWork 提供交易單元
type UnitOfWork interface {
	// Run 在交易單元內執行 fn。
	// parent 不為 nil 時直接沿用 (巢狀呼叫)；否則開啟新的單元，
	// fn 回傳錯誤時該單元內的所有寫入都會回滾。
	Run(ctx context.Context, parent Unit, fn func(ctx context.Context, unit Unit) error) error
}

// AccountStore 帳戶儲存
type AccountStore interface {
	// Get 讀取帳戶；在交易單元內會鎖定該列直到單元結束
	Get(ctx context.Context, unit Unit, accountID string) (*domain.Account, error)
	// SetBalance 寫入新餘額並回傳更新後的帳戶
	SetBalance(ctx context.Context, unit Unit, accountID string, balance decimal.Decimal) (*domain.Account, error)
	// Create 開戶，Balance 以 OpeningBalance 為初始值
	Create(ctx context.Context, unit Unit, account domain.NewAccount) (*domain.Account, error)
}

// EntryStore 分錄儲存
type EntryStore interface {
	// Get 讀取分錄 (含所屬帳戶)；在交易單元內會鎖定該列
	Get(ctx context.Context, unit Unit, entryID string) (*domain.Entry, error)
	Insert(ctx context.Context, unit Unit, entryType domain.EntryType, amount decimal.Decimal, accountID string) (*domain.Entry, error)
	// Update 只寫入 patch 中有值的欄位
	Update(ctx context.Context, unit Unit, entryID string, patch domain.EntryPatch) (*domain.Entry, error)
	Delete(ctx context.Context, unit Unit, entryID string) error
	ListByAccount(ctx context.Context, unit Unit, accountID string) ([]domain.Entry, error)
}
