package mysql

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/JoeShih716/go-entry-ledger/internal/app/core/domain"
	"github.com/JoeShih716/go-entry-ledger/internal/app/core/usecase"
	"github.com/JoeShih716/go-entry-ledger/pkg/mysql"
)

// sqlAccount 對應資料庫的 accounts 表
type sqlAccount struct {
	ID             string          `gorm:"primaryKey;type:char(36)"`
	UserID         string          `gorm:"type:char(36);not null;uniqueIndex:uq_accounts_user_name,priority:1"`
	Name           string          `gorm:"type:varchar(20);not null;uniqueIndex:uq_accounts_user_name,priority:2"`
	Balance        decimal.Decimal `gorm:"type:decimal(15,2);not null;default:0"`
	OpeningBalance decimal.Decimal `gorm:"type:decimal(15,2);not null;default:0"`
	CreatedAt      time.Time       `gorm:"type:datetime(3)"`
	UpdatedAt      time.Time       `gorm:"type:datetime(3)"`
}

func (*sqlAccount) TableName() string {
	return "accounts"
}

func (a *sqlAccount) toDomain() *domain.Account {
	return &domain.Account{
		ID:             a.ID,
		Name:           a.Name,
		UserID:         a.UserID,
		Balance:        a.Balance,
		OpeningBalance: a.OpeningBalance,
		CreatedAt:      a.CreatedAt,
		UpdatedAt:      a.UpdatedAt,
	}
}

// sqlEntry 對應資料庫的 entries 表
type sqlEntry struct {
	ID        string          `gorm:"primaryKey;type:char(36)"`
	Type      string          `gorm:"type:enum('credit','debit');not null"`
	Amount    decimal.Decimal `gorm:"type:decimal(15,2);not null"`
	AccountID string          `gorm:"type:char(36);not null;index"`
	// 外鍵：分錄必須指向存在的帳戶
	Account   *sqlAccount `gorm:"foreignKey:AccountID;constraint:OnUpdate:RESTRICT,OnDelete:CASCADE"`
	CreatedAt time.Time   `gorm:"type:datetime(3)"`
	UpdatedAt time.Time   `gorm:"type:datetime(3)"`
}

func (*sqlEntry) TableName() string {
	return "entries"
}

func (e *sqlEntry) toDomain() *domain.Entry {
	return &domain.Entry{
		ID:        e.ID,
		Type:      domain.EntryType(e.Type),
		Amount:    e.Amount,
		AccountID: e.AccountID,
		CreatedAt: e.CreatedAt,
		UpdatedAt: e.UpdatedAt,
	}
}

// gormUnit 包裝進行中的 *gorm.DB 交易
type gormUnit struct {
	id     uuid.UUID
	tx     *gorm.DB
	closed bool
}

func (u *gormUnit) ID() uuid.UUID {
	return u.id
}

// MySQLLedger 以 MySQL 實作 UnitOfWork / AccountStore，
// 分錄操作由 Entries() 回傳的 EntryStore 負責
type MySQLLedger struct {
	client *mysql.Client
}

func NewMySQLLedger(client *mysql.Client) *MySQLLedger {
	return &MySQLLedger{
		client: client,
	}
}

// Migrate 建立或更新資料表
func (ledger *MySQLLedger) Migrate(ctx context.Context) error {
	return ledger.client.DB().WithContext(ctx).AutoMigrate(&sqlAccount{}, &sqlEntry{})
}

// Ping 檢查資料庫連線
func (ledger *MySQLLedger) Ping(ctx context.Context) error {
	sqlDB, err := ledger.client.DB().DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Run 開啟資料庫交易 (READ COMMITTED) 並執行 fn。
// fn 回傳的錯誤原樣往上拋；開始或提交失敗則包成 ErrAtomicUnitFailed。
func (ledger *MySQLLedger) Run(ctx context.Context, parent usecase.Unit, fn func(ctx context.Context, unit usecase.Unit) error) error {
	if parent != nil {
		if _, err := unitOf(parent); err != nil {
			return err
		}
		return fn(ctx, parent)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	var fnErr error
	err := ledger.client.DB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		u := &gormUnit{id: uuid.New(), tx: tx}
		defer func() { u.closed = true }()
		fnErr = fn(ctx, u)
		return fnErr
	}, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err == nil {
		return nil
	}
	if fnErr != nil {
		return fnErr
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	return fmt.Errorf("%w: %w", domain.ErrAtomicUnitFailed, err)
}

func unitOf(unit usecase.Unit) (*gormUnit, error) {
	u, ok := unit.(*gormUnit)
	if !ok {
		return nil, domain.ErrForeignUnit
	}
	if u.closed {
		return nil, domain.ErrUnitClosed
	}
	return u, nil
}

// within 在 unit 的交易內執行 op；unit 為 nil 時自己開一個交易。
// lock 表示 op 是否在呼叫端的交易單元內 (才需要 FOR UPDATE)。
func (ledger *MySQLLedger) within(ctx context.Context, unit usecase.Unit, op func(tx *gorm.DB, lock bool) error) error {
	if unit != nil {
		u, err := unitOf(unit)
		if err != nil {
			return err
		}
		return translateError(op(u.tx.WithContext(ctx), true))
	}
	return ledger.Run(ctx, nil, func(ctx context.Context, unit usecase.Unit) error {
		return translateError(op(unit.(*gormUnit).tx.WithContext(ctx), false))
	})
}

func forUpdate(tx *gorm.DB, lock bool) *gorm.DB {
	if !lock {
		return tx
	}
	return tx.Clauses(clause.Locking{Strength: "UPDATE"})
}

var (
	_ usecase.UnitOfWork   = (*MySQLLedger)(nil)
	_ usecase.AccountStore = (*MySQLLedger)(nil)
)
