package domain

import "errors"

var (
	// ErrAmountMustBePositive 金額必須為正數
	ErrAmountMustBePositive = errors.New("amount must be positive")

	// ErrAmountPrecision 金額最多兩位小數
	ErrAmountPrecision = errors.New("amount must have at most two decimal places")

	// ErrInvalidEntryType 未知的分錄類型 (只接受 credit / debit)
	ErrInvalidEntryType = errors.New("invalid entry type")

	// ErrInvalidAccount 帳戶資料不合法 (名稱、使用者)
	ErrInvalidAccount = errors.New("invalid account")

	// ErrAccountNotFound 找不到帳戶
	ErrAccountNotFound = errors.New("account not found")

	// ErrAccountAlreadyExists 帳戶已存在 (同一使用者下名稱重複)
	ErrAccountAlreadyExists = errors.New("account already exists")

	// ErrEntryNotFound 找不到分錄
	ErrEntryNotFound = errors.New("entry not found")

	// ErrLedgerInconsistent 分錄指向的帳戶不存在。
	// 這不是使用者錯誤，而是資料一致性被破壞。
	ErrLedgerInconsistent = errors.New("ledger inconsistent")

	// ErrAtomicUnitFailed 交易單元無法提交 (lock 逾時、死鎖、約束衝突...)，呼叫端可重試
	ErrAtomicUnitFailed = errors.New("atomic unit failed")

	// ErrUnitClosed 交易單元已結束，不能再使用
	ErrUnitClosed = errors.New("unit already closed")

	// ErrForeignUnit 傳入的交易單元不是由同一個 store 建立
	ErrForeignUnit = errors.New("unit belongs to another store")
)
