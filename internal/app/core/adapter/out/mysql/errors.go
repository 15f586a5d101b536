package mysql

import (
	"errors"
	"fmt"

	gomysql "github.com/go-sql-driver/mysql"

	"github.com/JoeShih716/go-entry-ledger/internal/app/core/domain"
)

// MySQL server error numbers
// 參考: https://dev.mysql.com/doc/mysql-errors/8.0/en/server-error-reference.html
const (
	errDupEntry            uint16 = 1062
	errLockWaitTimeout     uint16 = 1205
	errLockDeadlock        uint16 = 1213
	errNoReferencedRow     uint16 = 1216
	errNoReferencedRow2    uint16 = 1452
	errRowIsReferenced2    uint16 = 1451
	errCheckConstraintFail uint16 = 3819
)

// translateError 把鎖等待逾時、死鎖與約束衝突轉成 ErrAtomicUnitFailed (可重試)。
// 已經是 domain 錯誤的直接回傳。
func translateError(err error) error {
	if err == nil {
		return nil
	}
	var myErr *gomysql.MySQLError
	if !errors.As(err, &myErr) {
		return err
	}
	switch myErr.Number {
	case errLockWaitTimeout, errLockDeadlock, errDupEntry, errNoReferencedRow, errNoReferencedRow2,
		errRowIsReferenced2, errCheckConstraintFail:
		return fmt.Errorf("%w: %w", domain.ErrAtomicUnitFailed, err)
	}
	return err
}

func mysqlErrorNumber(err error) (uint16, bool) {
	var myErr *gomysql.MySQLError
	if errors.As(err, &myErr) {
		return myErr.Number, true
	}
	return 0, false
}

func isDuplicateKey(err error) bool {
	n, ok := mysqlErrorNumber(err)
	return ok && n == errDupEntry
}

func isForeignKeyViolation(err error) bool {
	n, ok := mysqlErrorNumber(err)
	return ok && (n == errNoReferencedRow || n == errNoReferencedRow2)
}
