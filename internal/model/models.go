// Package model defines the data models for the Ludo arena backend.
// All money amounts are stored in paise.
package model

import "time"

// KYC verification states.
const (
	KYCPending   = "pending"
	KYCSubmitted = "submitted"
	KYCVerified  = "verified"
	KYCRejected  = "rejected"
)

// Account states.
const (
	UserActive    = "active"
	UserSuspended = "suspended"
)

// Admin roles. RoleNone is a regular player.
const (
	RoleNone       = "none"
	RoleFinance    = "finance"
	RoleSuperadmin = "superadmin"
)

// User represents a player account with a dual-bucket wallet:
// Balance holds deposited funds, Winnings holds prize money.
// Only winnings can be withdrawn.
type User struct {
	ID             int64     `db:"id" json:"id"`
	Phone          string    `db:"phone" json:"phone"`
	Username       string    `db:"username" json:"username"`
	PasswordHash   string    `db:"password_hash" json:"-"`
	Balance        int64     `db:"balance" json:"balance"`
	Winnings       int64     `db:"winnings" json:"winnings"`
	KYCStatus      string    `db:"kyc_status" json:"kyc_status"`
	Status         string    `db:"status" json:"status"`
	Role           string    `db:"role" json:"role"`
	ReferralCode   string    `db:"referral_code" json:"referral_code"`
	ReferredBy     *int64    `db:"referred_by" json:"referred_by"`
	GamesPlayed    int64     `db:"games_played" json:"games_played"`
	GamesWon       int64     `db:"games_won" json:"games_won"`
	TotalDeposited int64     `db:"total_deposited" json:"total_deposited"`
	TotalWithdrawn int64     `db:"total_withdrawn" json:"total_withdrawn"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time `db:"updated_at" json:"updated_at"`
}

// Wallet buckets a ledger entry can move money in or out of.
const (
	BucketBalance  = "balance"
	BucketWinnings = "winnings"
)

// Transaction is an append-only ledger entry. Amount is signed:
// positive for credits, negative for debits. Rows are never updated.
type Transaction struct {
	ID        int64     `db:"id" json:"id"`
	UserID    int64     `db:"user_id" json:"user_id"`
	Amount    int64     `db:"amount" json:"amount"`
	Bucket    string    `db:"bucket" json:"bucket"`
	Type      string    `db:"type" json:"type"`
	Notes     *string   `db:"notes" json:"notes"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Ledger entry types.
const (
	TxTypeSignupBonus      = "signup_bonus"
	TxTypeReferralBonus    = "referral_bonus"
	TxTypeDeposit          = "deposit"
	TxTypeGatewayDeposit   = "gateway_deposit"
	TxTypeWithdrawal       = "withdrawal"
	TxTypeWithdrawalRefund = "withdrawal_refund"
	TxTypeBattleStake      = "battle_stake"
	TxTypeBattleRefund     = "battle_refund"
	TxTypeBattleWin        = "battle_win"
	TxTypeTournamentEntry  = "tournament_entry"
	TxTypeTournamentPrize  = "tournament_prize"
	TxTypeTournamentRefund = "tournament_refund"
	TxTypeAdminCredit      = "admin_credit"
	TxTypeAdminDebit       = "admin_debit"
)

// Battle lifecycle: challenge -> ongoing -> under_review -> completed,
// with cancelled and disputed as terminal branches.
const (
	BattleChallenge   = "challenge"
	BattleOngoing     = "ongoing"
	BattleUnderReview = "under_review"
	BattleCompleted   = "completed"
	BattleCancelled   = "cancelled"
	BattleDisputed    = "disputed"
)

// Battle is a single wagered Ludo match between two players.
// CommissionBps is fixed when the challenge is created so a later
// commission change never affects an in-flight match.
type Battle struct {
	ID            int64     `db:"id" json:"id"`
	Amount        int64     `db:"amount" json:"amount"`
	Status        string    `db:"status" json:"status"`
	CreatorID     int64     `db:"creator_id" json:"creator_id"`
	OpponentID    *int64    `db:"opponent_id" json:"opponent_id"`
	WinnerID      *int64    `db:"winner_id" json:"winner_id"`
	ClaimantID    *int64    `db:"claimant_id" json:"claimant_id"`
	RoomCode      *string   `db:"room_code" json:"room_code"`
	CommissionBps int32     `db:"commission_bps" json:"commission_bps"`
	ScreenshotURL *string   `db:"screenshot_url" json:"screenshot_url"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time `db:"updated_at" json:"updated_at"`
}

// Tournament lifecycle.
const (
	TournamentUpcoming  = "upcoming"
	TournamentLive      = "live"
	TournamentCompleted = "completed"
	TournamentCancelled = "cancelled"
)

// Tournament holds aggregate state for a multi-player event.
// PrizePool is a running total of collected entry fees. PrizeSplit
// holds per-rank shares in basis points of the post-commission pool.
type Tournament struct {
	ID            int64     `db:"id" json:"id"`
	Title         string    `db:"title" json:"title"`
	EntryFee      int64     `db:"entry_fee" json:"entry_fee"`
	PlayerCap     int32     `db:"player_cap" json:"player_cap"`
	PrizePool     int64     `db:"prize_pool" json:"prize_pool"`
	CommissionBps int32     `db:"commission_bps" json:"commission_bps"`
	PrizeSplit    []int32   `db:"prize_split" json:"prize_split"`
	Status        string    `db:"status" json:"status"`
	StartsAt      time.Time `db:"starts_at" json:"starts_at"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
}

// TournamentPlayer is one entrant. The (tournament_id, user_id)
// primary key makes a double join impossible at the schema level.
type TournamentPlayer struct {
	TournamentID int64     `db:"tournament_id" json:"tournament_id"`
	UserID       int64     `db:"user_id" json:"user_id"`
	FinalRank    *int32    `db:"final_rank" json:"final_rank"`
	JoinedAt     time.Time `db:"joined_at" json:"joined_at"`
}

// Review states shared by deposits and withdrawals. One-way.
const (
	ReviewPending  = "pending"
	ReviewApproved = "approved"
	ReviewRejected = "rejected"
)

// Deposit is a manual UPI deposit request awaiting admin review.
// UTR is the payment proof supplied by the player.
type Deposit struct {
	ID         int64      `db:"id" json:"id"`
	UserID     int64      `db:"user_id" json:"user_id"`
	Amount     int64      `db:"amount" json:"amount"`
	ChannelID  int64      `db:"channel_id" json:"channel_id"`
	UTR        string     `db:"utr" json:"utr"`
	Status     string     `db:"status" json:"status"`
	ReviewedBy *int64     `db:"reviewed_by" json:"reviewed_by"`
	ReviewedAt *time.Time `db:"reviewed_at" json:"reviewed_at"`
	CreatedAt  time.Time  `db:"created_at" json:"created_at"`
}

// Withdrawal is a payout request. Winnings are debited when the
// request is created; a rejection refunds them in the same database
// transaction. UTR is filled by the reviewing admin on approval.
type Withdrawal struct {
	ID         int64      `db:"id" json:"id"`
	UserID     int64      `db:"user_id" json:"user_id"`
	Amount     int64      `db:"amount" json:"amount"`
	UpiID      string     `db:"upi_id" json:"upi_id"`
	Status     string     `db:"status" json:"status"`
	UTR        *string    `db:"utr" json:"utr"`
	ReviewedBy *int64     `db:"reviewed_by" json:"reviewed_by"`
	ReviewedAt *time.Time `db:"reviewed_at" json:"reviewed_at"`
	CreatedAt  time.Time  `db:"created_at" json:"created_at"`
}

// UpiChannel is a collection VPA with a daily intake limit. Deposits
// rotate to the next channel once CurrentAmount reaches DailyLimit;
// an admin resets the counter.
type UpiChannel struct {
	ID            int64     `db:"id" json:"id"`
	UpiID         string    `db:"upi_id" json:"upi_id"`
	DailyLimit    int64     `db:"daily_limit" json:"daily_limit"`
	CurrentAmount int64     `db:"current_amount" json:"current_amount"`
	Active        bool      `db:"active" json:"active"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
}

// Payment gateway order states.
const (
	OrderCreated = "created"
	OrderSuccess = "success"
	OrderFailed  = "failed"
)

// PaymentOrder tracks a gateway-initiated deposit. A terminal order
// is never reprocessed, which makes the callback webhook idempotent.
type PaymentOrder struct {
	OrderID      string    `db:"order_id" json:"order_id"`
	UserID       int64     `db:"user_id" json:"user_id"`
	Amount       int64     `db:"amount" json:"amount"`
	Status       string    `db:"status" json:"status"`
	GatewayTxnID *string   `db:"gateway_txn_id" json:"gateway_txn_id"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}
