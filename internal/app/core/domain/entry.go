package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// MoneyScale 金額精度：小數點後 2 位
const MoneyScale = 2

// EntryType 分錄類型
type EntryType string

const (
	// 入帳 (餘額增加)
	EntryTypeCredit EntryType = "credit"
	// 出帳 (餘額減少)
	EntryTypeDebit EntryType = "debit"
)

// Valid 是否為已知類型
func (t EntryType) Valid() bool {
	return t == EntryTypeCredit || t == EntryTypeDebit
}

// Delta 計算分錄對帳戶餘額的影響：credit 為 +amount，debit 為 -amount。
// 建立、更新、刪除三條路徑都必須透過這裡計算，確保正負號一致。
func Delta(t EntryType, amount decimal.Decimal) decimal.Decimal {
	switch t {
	case EntryTypeCredit:
		return amount
	case EntryTypeDebit:
		return amount.Neg()
	default:
		panic(fmt.Sprintf("domain: delta of unknown entry type %q", t))
	}
}

// ValidateAmount 檢查金額 > 0 且最多兩位小數
func ValidateAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return ErrAmountMustBePositive
	}
	if !amount.Equal(amount.Truncate(MoneyScale)) {
		return ErrAmountPrecision
	}
	return nil
}

// Entry 分錄：一筆綁定在單一帳戶上的金流
type Entry struct {
	ID        string
	Type      EntryType
	Amount    decimal.Decimal
	AccountID string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Delta 此分錄目前對所屬帳戶的影響
func (e *Entry) Delta() decimal.Decimal {
	return Delta(e.Type, e.Amount)
}

// NewEntry 建立分錄的輸入
type NewEntry struct {
	Type      EntryType
	Amount    decimal.Decimal
	AccountID string
}

// Validate 檢查輸入
func (n NewEntry) Validate() error {
	if !n.Type.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidEntryType, n.Type)
	}
	if n.AccountID == "" {
		return fmt.Errorf("%w: missing account id", ErrAccountNotFound)
	}
	return ValidateAmount(n.Amount)
}

// EntryPatch 更新分錄的輸入，nil 欄位代表沿用原值
type EntryPatch struct {
	Type      *EntryType
	Amount    *decimal.Decimal
	AccountID *string
}

// Validate 只檢查有給的欄位
func (p EntryPatch) Validate() error {
	if p.Type != nil && !p.Type.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidEntryType, *p.Type)
	}
	if p.Amount != nil {
		if err := ValidateAmount(*p.Amount); err != nil {
			return err
		}
	}
	if p.AccountID != nil && *p.AccountID == "" {
		return fmt.Errorf("%w: empty account id", ErrAccountNotFound)
	}
	return nil
}

// Resolve 將 patch 套在現有分錄上，回傳更新後的有效值 (三個欄位都有值)
func (p EntryPatch) Resolve(e *Entry) EntryPatch {
	t, amount, accountID := e.Type, e.Amount, e.AccountID
	if p.Type != nil {
		t = *p.Type
	}
	if p.Amount != nil {
		amount = *p.Amount
	}
	if p.AccountID != nil {
		accountID = *p.AccountID
	}
	return EntryPatch{Type: &t, Amount: &amount, AccountID: &accountID}
}
