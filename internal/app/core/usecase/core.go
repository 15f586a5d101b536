package usecase

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/JoeShih716/go-entry-ledger/internal/app/core/domain"
)

// CoreUseCase 是核心業務邏輯層：分錄的建立/更新/刪除與帳戶餘額對帳。
// 每個異動都在單一交易單元內完成，任何一步失敗整個單元回滾。
type CoreUseCase struct {
	uow      UnitOfWork
	accounts AccountStore
	entries  EntryStore
	logger   *zap.Logger
}

func NewCoreUseCase(uow UnitOfWork, accounts AccountStore, entries EntryStore, logger *zap.Logger) *CoreUseCase {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CoreUseCase{
		uow:      uow,
		accounts: accounts,
		entries:  entries,
		logger:   logger,
	}
}

// OpenAccount 開戶
func (c *CoreUseCase) OpenAccount(ctx context.Context, in domain.NewAccount) (*domain.Account, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	return c.accounts.Create(ctx, nil, in)
}

// GetAccount 取得帳戶
func (c *CoreUseCase) GetAccount(ctx context.Context, accountID string) (*domain.Account, error) {
	return c.accounts.Get(ctx, nil, accountID)
}

// GetEntry 取得分錄
func (c *CoreUseCase) GetEntry(ctx context.Context, entryID string) (*domain.Entry, error) {
	return c.entries.Get(ctx, nil, entryID)
}

// ListEntries 列出帳戶下的分錄，帳戶不存在時回傳 ErrAccountNotFound
func (c *CoreUseCase) ListEntries(ctx context.Context, accountID string) ([]domain.Entry, error) {
	var out []domain.Entry
	err := c.uow.Run(ctx, nil, func(ctx context.Context, unit Unit) error {
		if _, err := c.accounts.Get(ctx, unit, accountID); err != nil {
			return err
		}
		entries, err := c.entries.ListByAccount(ctx, unit, accountID)
		if err != nil {
			return err
		}
		out = entries
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// CheckBalance 重新計算帳戶餘額並與儲存值比對。
// 帳戶列在單元內被鎖定，比對期間不會有其他異動插入。
func (c *CoreUseCase) CheckBalance(ctx context.Context, accountID string) (domain.BalanceCheck, error) {
	var check domain.BalanceCheck
	err := c.uow.Run(ctx, nil, func(ctx context.Context, unit Unit) error {
		account, err := c.accounts.Get(ctx, unit, accountID)
		if err != nil {
			return err
		}
		entries, err := c.entries.ListByAccount(ctx, unit, accountID)
		if err != nil {
			return err
		}
		check = domain.BalanceCheck{
			AccountID: account.ID,
			Stored:    account.Balance,
			Expected:  domain.ExpectedBalance(account.OpeningBalance, entries),
			Entries:   len(entries),
		}
		return nil
	})
	if err != nil {
		return domain.BalanceCheck{}, err
	}
	if !check.Consistent() {
		c.logger.Error("balance mismatch",
			zap.String("account_id", accountID),
			zap.String("stored", check.Stored.StringFixed(domain.MoneyScale)),
			zap.String("expected", check.Expected.StringFixed(domain.MoneyScale)),
		)
	}
	return check, nil
}

// CreateEntry 建立分錄並把 Delta 加到帳戶餘額
func (c *CoreUseCase) CreateEntry(ctx context.Context, in domain.NewEntry) (*domain.Entry, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	var created *domain.Entry
	err := c.uow.Run(ctx, nil, func(ctx context.Context, unit Unit) error {
		account, err := c.accounts.Get(ctx, unit, in.AccountID)
		if err != nil {
			return err
		}
		delta := domain.Delta(in.Type, in.Amount)
		if _, err := c.accounts.SetBalance(ctx, unit, account.ID, account.Balance.Add(delta)); err != nil {
			return err
		}
		entry, err := c.entries.Insert(ctx, unit, in.Type, in.Amount, account.ID)
		if err != nil {
			return err
		}
		created = entry

		c.logger.Info("entry created",
			zap.Stringer("unit_id", unit.ID()),
			zap.String("entry_id", entry.ID),
			zap.String("account_id", account.ID),
			zap.String("delta", delta.StringFixed(domain.MoneyScale)),
		)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// UpdateEntry 更新分錄。
//
// 先沖銷舊分錄對原帳戶的影響，再把新值套用到目標帳戶。
// 原帳戶與目標帳戶相同時只寫一次淨額，不會出現兩次獨立寫入。
func (c *CoreUseCase) UpdateEntry(ctx context.Context, entryID string, patch domain.EntryPatch) (*domain.Entry, error) {
	if err := patch.Validate(); err != nil {
		return nil, err
	}

	var updated *domain.Entry
	err := c.uow.Run(ctx, nil, func(ctx context.Context, unit Unit) error {
		existing, err := c.entries.Get(ctx, unit, entryID)
		if err != nil {
			return err
		}
		effective := patch.Resolve(existing)
		oldID, newID := existing.AccountID, *effective.AccountID

		accounts, err := c.lockAccounts(ctx, unit, existing, newID)
		if err != nil {
			return err
		}

		reversal := existing.Delta().Neg()
		application := domain.Delta(*effective.Type, *effective.Amount)

		if oldID == newID {
			net := reversal.Add(application)
			if !net.IsZero() {
				if _, err := c.accounts.SetBalance(ctx, unit, oldID, accounts[oldID].Balance.Add(net)); err != nil {
					return err
				}
			}
		} else {
			if _, err := c.accounts.SetBalance(ctx, unit, oldID, accounts[oldID].Balance.Add(reversal)); err != nil {
				return err
			}
			if _, err := c.accounts.SetBalance(ctx, unit, newID, accounts[newID].Balance.Add(application)); err != nil {
				return err
			}
		}

		entry, err := c.entries.Update(ctx, unit, entryID, effective)
		if err != nil {
			return err
		}
		updated = entry

		c.logger.Info("entry updated",
			zap.Stringer("unit_id", unit.ID()),
			zap.String("entry_id", entryID),
			zap.String("old_account_id", oldID),
			zap.String("new_account_id", newID),
			zap.String("reversal", reversal.StringFixed(domain.MoneyScale)),
			zap.String("application", application.StringFixed(domain.MoneyScale)),
		)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// DeleteEntry 刪除分錄並沖銷其對帳戶餘額的影響
func (c *CoreUseCase) DeleteEntry(ctx context.Context, entryID string) error {
	return c.uow.Run(ctx, nil, func(ctx context.Context, unit Unit) error {
		existing, err := c.entries.Get(ctx, unit, entryID)
		if err != nil {
			return err
		}
		accounts, err := c.lockAccounts(ctx, unit, existing, existing.AccountID)
		if err != nil {
			return err
		}
		account := accounts[existing.AccountID]
		reversal := existing.Delta().Neg()
		if _, err := c.accounts.SetBalance(ctx, unit, account.ID, account.Balance.Add(reversal)); err != nil {
			return err
		}
		if err := c.entries.Delete(ctx, unit, entryID); err != nil {
			return err
		}

		c.logger.Info("entry deleted",
			zap.Stringer("unit_id", unit.ID()),
			zap.String("entry_id", entryID),
			zap.String("account_id", account.ID),
			zap.String("reversal", reversal.StringFixed(domain.MoneyScale)),
		)
		return nil
	})
}

// lockAccounts 依 domain.LockOrder 的順序鎖定分錄原帳戶與目標帳戶。
// 原帳戶不存在代表資料已損毀，回傳 ErrLedgerInconsistent；
// 目標帳戶不存在則是呼叫端的錯誤，回傳 ErrAccountNotFound。
func (c *CoreUseCase) lockAccounts(ctx context.Context, unit Unit, entry *domain.Entry, targetID string) (map[string]*domain.Account, error) {
	ids := domain.LockOrder(entry.AccountID, targetID)
	accounts := make(map[string]*domain.Account, len(ids))
	for _, id := range ids {
		account, err := c.accounts.Get(ctx, unit, id)
		if err != nil {
			if id == entry.AccountID && errors.Is(err, domain.ErrAccountNotFound) {
				c.logger.Error("entry owner account missing",
					zap.Stringer("unit_id", unit.ID()),
					zap.String("entry_id", entry.ID),
					zap.String("account_id", id),
				)
				return nil, fmt.Errorf("%w: entry %s: %w", domain.ErrLedgerInconsistent, entry.ID, err)
			}
			return nil, err
		}
		accounts[id] = account
	}
	return accounts, nil
}
