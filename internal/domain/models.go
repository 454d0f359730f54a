package domain

import "time"

const (
	RoleCustomer = "CUSTOMER"
	RoleBooster  = "BOOSTER"
	RoleAdmin    = "ADMIN"
)

type User struct {
	ID              int       `db:"id"`
	Username        string    `db:"username"`
	Email           string    `db:"email"`
	PasswordHash    string    `db:"password_hash"`
	Role            string    `db:"role"`
	EmailVerified   bool      `db:"email_verified"`
	WalletBalance   int64     `db:"wallet_balance"`
	PendingBalance  int64     `db:"pending_balance"`
	CompletedOrders int       `db:"completed_orders"`
	CreatedAt       time.Time `db:"created_at"`
}

// Actor is the already authenticated caller of a service operation.
type Actor struct {
	UserID int
	Role   string
}

func (a Actor) IsAdmin() bool {
	return a.Role == RoleAdmin
}

const (
	ApplicationPending  = "pending"
	ApplicationTesting  = "testing"
	ApplicationApproved = "approved"
	ApplicationRejected = "rejected"
)

const (
	BoosterLevelNew      = "new"
	BoosterLevelVerified = "verified"
	BoosterLevelTrusted  = "trusted"
	BoosterLevelWarned   = "warned"
)

type BoosterApplication struct {
	ID           int       `db:"id"`
	UserID       int       `db:"user_id"`
	DisplayName  string    `db:"display_name"`
	CurrentRank  string    `db:"current_rank"`
	Services     []string  `db:"services"`
	ProofLinks   []string  `db:"proof_links"`
	BankName     string    `db:"bank_name"`
	BankAccount  string    `db:"bank_account"`
	BankHolder   string    `db:"bank_holder"`
	PayoutCard   string    `db:"payout_card"`
	Status       string    `db:"status"`
	Level        string    `db:"level"`
	SignedName   string    `db:"signed_name"`
	SignedAt     time.Time `db:"signed_at"`
	RejectReason string    `db:"reject_reason"`
	CreatedAt    time.Time `db:"created_at"`
	UpdatedAt    time.Time `db:"updated_at"`
}

const (
	TxDeposit        = "DEPOSIT"
	TxWithdrawal     = "WITHDRAWAL"
	TxPaymentHold    = "PAYMENT_HOLD"
	TxPaymentRelease = "PAYMENT_RELEASE"
	TxRefund         = "REFUND"
	TxCommission     = "COMMISSION"
)

const (
	TxStatusPending = "PENDING"
	TxStatusSuccess = "SUCCESS"
	TxStatusFailed  = "FAILED"
)

// Transaction is an append-only ledger entry. Amount is signed: debits are negative.
type Transaction struct {
	ID           string    `db:"id"`
	UserID       int       `db:"user_id"`
	OrderID      int       `db:"order_id"`
	Type         string    `db:"type"`
	Amount       int64     `db:"amount"`
	BalanceAfter int64     `db:"balance_after"`
	Status       string    `db:"status"`
	Description  string    `db:"description"`
	CreatedAt    time.Time `db:"created_at"`
}

const (
	CodeEmailVerify   = "email-verify"
	CodePasswordReset = "password-reset"
	CodeChangeEmail   = "change-email"
)

type VerificationCode struct {
	Email     string    `db:"email"`
	Type      string    `db:"type"`
	Code      string    `db:"code"`
	Attempts  int       `db:"attempts"`
	ExpiresAt time.Time `db:"expires_at"`
}

const (
	WebhookProcessed        = "processed"
	WebhookDuplicate        = "duplicate"
	WebhookIgnored          = "ignored"
	WebhookReview           = "review"
	WebhookAlreadyProcessed = "already_processed"
)

// BankNotification is an inbound bank-transfer notification.
type BankNotification struct {
	ProviderID string
	Direction  string
	Amount     int64
	Content    string
	Code       string
	Reference  string
}

const (
	DirectionIn    = "in"
	DirectionOut   = "out"
	DirectionOther = "other"
)

type WebhookEvent struct {
	ID            int       `db:"id"`
	ProviderID    string    `db:"provider_id"`
	Direction     string    `db:"direction"`
	Amount        int64     `db:"amount"`
	Content       string    `db:"content"`
	Reference     string    `db:"reference"`
	Status        string    `db:"status"`
	Reason        string    `db:"reason"`
	UserID        int       `db:"user_id"`
	TransactionID string    `db:"transaction_id"`
	CreatedAt     time.Time `db:"created_at"`
}

type Wallet struct {
	UserID  int
	Balance int64
	Pending int64
}

// LedgerAudit compares the stored balance with the sum of applied ledger entries.
type LedgerAudit struct {
	UserID     int
	Balance    int64
	LedgerSum  int64
	Consistent bool
}

// DepositRequest tells the customer what to write in the bank transfer.
type DepositRequest struct {
	Transaction *Transaction
	Code        string
	Content     string
}

const (
	EventBalanceUpdated = "balance_updated"
	EventOrderUpdated   = "order_updated"
)

// Event is pushed to a user's realtime channel.
type Event struct {
	Type    string `json:"type"`
	Balance int64  `json:"balance,omitempty"`
	Message string `json:"message"`
	OrderID int    `json:"order_id,omitempty"`
}
