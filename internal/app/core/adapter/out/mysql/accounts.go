package mysql

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/JoeShih716/go-entry-ledger/internal/app/core/domain"
	"github.com/JoeShih716/go-entry-ledger/internal/app/core/usecase"
)

// Get 取得帳戶；在交易單元內使用 SELECT ... FOR UPDATE 悲觀鎖
func (ledger *MySQLLedger) Get(ctx context.Context, unit usecase.Unit, accountID string) (*domain.Account, error) {
	var row sqlAccount
	err := ledger.within(ctx, unit, func(tx *gorm.DB, lock bool) error {
		return findAccount(forUpdate(tx, lock), accountID, &row)
	})
	if err != nil {
		return nil, err
	}
	return row.toDomain(), nil
}

// SetBalance 更新帳戶餘額並回傳最新資料
func (ledger *MySQLLedger) SetBalance(ctx context.Context, unit usecase.Unit, accountID string, balance decimal.Decimal) (*domain.Account, error) {
	var row sqlAccount
	err := ledger.within(ctx, unit, func(tx *gorm.DB, _ bool) error {
		if err := tx.Model(&sqlAccount{}).Where("id = ?", accountID).Update("balance", balance).Error; err != nil {
			return err
		}
		// MySQL 回傳的 RowsAffected 在值未變動時為 0，因此改以重新讀取判斷是否存在
		return findAccount(tx, accountID, &row)
	})
	if err != nil {
		return nil, err
	}
	return row.toDomain(), nil
}

// Create 開戶
func (ledger *MySQLLedger) Create(ctx context.Context, unit usecase.Unit, in domain.NewAccount) (*domain.Account, error) {
	row := sqlAccount{
		ID:             uuid.NewString(),
		UserID:         strings.TrimSpace(in.UserID),
		Name:           strings.TrimSpace(in.Name),
		Balance:        in.OpeningBalance,
		OpeningBalance: in.OpeningBalance,
	}
	err := ledger.within(ctx, unit, func(tx *gorm.DB, _ bool) error {
		if err := tx.Create(&row).Error; err != nil {
			if isDuplicateKey(err) {
				return fmt.Errorf("%w: %s/%s", domain.ErrAccountAlreadyExists, row.UserID, row.Name)
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

func findAccount(tx *gorm.DB, accountID string, row *sqlAccount) error {
	err := tx.Where("id = ?", accountID).First(row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%w: %s", domain.ErrAccountNotFound, accountID)
	}
	return err
}
