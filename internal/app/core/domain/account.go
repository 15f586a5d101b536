package domain

import (
	"fmt"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/shopspring/decimal"
)

// MaxAccountNameLength 帳戶名稱長度上限
const MaxAccountNameLength = 20

// Account 帳戶
//
// Balance 只能由分錄的建立/更新/刪除改變，
// 恆等於 OpeningBalance 加上所有綁定分錄的 Delta 總和。
type Account struct {
	ID             string
	Name           string
	UserID         string
	Balance        decimal.Decimal
	OpeningBalance decimal.Decimal
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// NewAccount 開戶輸入
type NewAccount struct {
	Name           string
	UserID         string
	OpeningBalance decimal.Decimal
}

// Validate 檢查開戶輸入
func (n NewAccount) Validate() error {
	name := strings.TrimSpace(n.Name)
	if name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidAccount)
	}
	if utf8.RuneCountInString(name) > MaxAccountNameLength {
		return fmt.Errorf("%w: name longer than %d characters", ErrInvalidAccount, MaxAccountNameLength)
	}
	if strings.TrimSpace(n.UserID) == "" {
		return fmt.Errorf("%w: user id is required", ErrInvalidAccount)
	}
	if !n.OpeningBalance.Equal(n.OpeningBalance.Truncate(MoneyScale)) {
		return ErrAmountPrecision
	}
	return nil
}

// LockOrder 回傳需要鎖定的帳號 ID (去重、排序)，
// 所有路徑都依相同順序上鎖以避免死鎖
func LockOrder(ids ...string) []string {
	out := make([]string, 0, len(ids))
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// BalanceCheck 帳戶餘額核對結果
type BalanceCheck struct {
	AccountID string
	Stored    decimal.Decimal
	Expected  decimal.Decimal
	Entries   int
}

// Consistent 儲存的餘額是否等於重新計算的結果
func (c BalanceCheck) Consistent() bool {
	return c.Stored.Equal(c.Expected)
}

// ExpectedBalance 依開戶餘額與分錄重新計算餘額
func ExpectedBalance(opening decimal.Decimal, entries []Entry) decimal.Decimal {
	sum := opening
	for i := range entries {
		sum = sum.Add(entries[i].Delta())
	}
	return sum
}
