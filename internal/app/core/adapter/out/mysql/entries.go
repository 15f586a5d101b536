package mysql

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/JoeShih716/go-entry-ledger/internal/app/core/domain"
	"github.com/JoeShih716/go-entry-ledger/internal/app/core/usecase"
)

// Entries 分錄儲存，與 MySQLLedger 共用連線與交易單元
type Entries struct {
	ledger *MySQLLedger
}

// Entries 回傳分錄儲存
func (ledger *MySQLLedger) Entries() *Entries {
	return &Entries{ledger: ledger}
}

// Get 取得分錄；在交易單元內鎖定該列，避免兩個更新同時沖銷同一筆舊值
func (s *Entries) Get(ctx context.Context, unit usecase.Unit, entryID string) (*domain.Entry, error) {
	var row sqlEntry
	err := s.ledger.within(ctx, unit, func(tx *gorm.DB, lock bool) error {
		return findEntry(forUpdate(tx, lock), entryID, &row)
	})
	if err != nil {
		return nil, err
	}
	return row.toDomain(), nil
}

// Insert 新增分錄
func (s *Entries) Insert(ctx context.Context, unit usecase.Unit, entryType domain.EntryType, amount decimal.Decimal, accountID string) (*domain.Entry, error) {
	row := sqlEntry{
		ID:        uuid.NewString(),
		Type:      string(entryType),
		Amount:    amount,
		AccountID: accountID,
	}
	err := s.ledger.within(ctx, unit, func(tx *gorm.DB, _ bool) error {
		if err := tx.Omit("Account").Create(&row).Error; err != nil {
			if isForeignKeyViolation(err) {
				return fmt.Errorf("%w: %s", domain.ErrAccountNotFound, accountID)
			}
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return row.toDomain(), nil
}

// Update 只更新 patch 中有值的欄位
func (s *Entries) Update(ctx context.Context, unit usecase.Unit, entryID string, patch domain.EntryPatch) (*domain.Entry, error) {
	fields := make(map[string]any, 3)
	if patch.Type != nil {
		fields["type"] = string(*patch.Type)
	}
	if patch.Amount != nil {
		fields["amount"] = *patch.Amount
	}
	if patch.AccountID != nil {
		fields["account_id"] = *patch.AccountID
	}

	var row sqlEntry
	err := s.ledger.within(ctx, unit, func(tx *gorm.DB, lock bool) error {
		if err := findEntry(forUpdate(tx, lock), entryID, &row); err != nil {
			return err
		}
		if len(fields) > 0 {
			if err := tx.Model(&sqlEntry{}).Where("id = ?", entryID).Updates(fields).Error; err != nil {
				if isForeignKeyViolation(err) {
					return fmt.Errorf("%w: %s", domain.ErrAccountNotFound, *patch.AccountID)
				}
				return err
			}
		}
		return findEntry(tx, entryID, &row)
	})
	if err != nil {
		return nil, err
	}
	return row.toDomain(), nil
}

// Delete 刪除分錄
func (s *Entries) Delete(ctx context.Context, unit usecase.Unit, entryID string) error {
	return s.ledger.within(ctx, unit, func(tx *gorm.DB, _ bool) error {
		result := tx.Where("id = ?", entryID).Delete(&sqlEntry{})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return fmt.Errorf("%w: %s", domain.ErrEntryNotFound, entryID)
		}
		return nil
	})
}

// ListByAccount 列出帳戶下的分錄
func (s *Entries) ListByAccount(ctx context.Context, unit usecase.Unit, accountID string) ([]domain.Entry, error) {
	var rows []sqlEntry
	err := s.ledger.within(ctx, unit, func(tx *gorm.DB, _ bool) error {
		return tx.Where("account_id = ?", accountID).Order("created_at, id").Find(&rows).Error
	})
	if err != nil {
		return nil, err
	}
	out := make([]domain.Entry, 0, len(rows))
	for i := range rows {
		out = append(out, *rows[i].toDomain())
	}
	return out, nil
}

func findEntry(tx *gorm.DB, entryID string, row *sqlEntry) error {
	err := tx.Where("id = ?", entryID).First(row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%w: %s", domain.ErrEntryNotFound, entryID)
	}
	return err
}

var _ usecase.EntryStore = (*Entries)(nil)
