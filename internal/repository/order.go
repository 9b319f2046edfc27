package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"ludo-arena-backend/internal/model"
)

const orderColumns = `order_id, user_id, amount, status, gateway_txn_id, created_at, updated_at`

// PaymentOrderRepository handles gateway order persistence.
type PaymentOrderRepository struct {
	db Querier
}

// NewPaymentOrderRepository creates a new PaymentOrderRepository instance.
func NewPaymentOrderRepository(db Querier) *PaymentOrderRepository {
	return &PaymentOrderRepository{db: db}
}

// WithTx returns a copy of the repository bound to the given transaction.
func (r *PaymentOrderRepository) WithTx(tx pgx.Tx) *PaymentOrderRepository {
	return &PaymentOrderRepository{db: tx}
}

func scanOrder(row pgx.Row) (*model.PaymentOrder, error) {
	var o model.PaymentOrder
	err := row.Scan(&o.OrderID, &o.UserID, &o.Amount, &o.Status, &o.GatewayTxnID, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("failed to scan payment order: %w", err)
	}
	return &o, nil
}

// Create inserts a new gateway order in the created state.
func (r *PaymentOrderRepository) Create(ctx context.Context, orderID string, userID, amount int64) (*model.PaymentOrder, error) {
	query := `
		INSERT INTO payment_orders (order_id, user_id, amount, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, NOW(), NOW())
		RETURNING ` + orderColumns

	order, err := scanOrder(r.db.QueryRow(ctx, query, orderID, userID, amount, model.OrderCreated))
	if err != nil {
		return nil, fmt.Errorf("failed to create payment order: %w", err)
	}
	return order, nil
}

// GetByIDForUpdate retrieves an order with a row lock. The callback
// webhook locks the order before inspecting its status, so a replayed
// callback can never credit a wallet twice.
func (r *PaymentOrderRepository) GetByIDForUpdate(ctx context.Context, orderID string) (*model.PaymentOrder, error) {
	query := `SELECT ` + orderColumns + ` FROM payment_orders WHERE order_id = $1 FOR UPDATE`
	return scanOrder(r.db.QueryRow(ctx, query, orderID))
}

// GetByID retrieves an order. Returns ErrOrderNotFound if absent.
func (r *PaymentOrderRepository) GetByID(ctx context.Context, orderID string) (*model.PaymentOrder, error) {
	query := `SELECT ` + orderColumns + ` FROM payment_orders WHERE order_id = $1`
	return scanOrder(r.db.QueryRow(ctx, query, orderID))
}

// Finish moves an order to its terminal status and records the
// gateway transaction reference.
func (r *PaymentOrderRepository) Finish(ctx context.Context, orderID, status string, gatewayTxnID *string) (*model.PaymentOrder, error) {
	query := `
		UPDATE payment_orders
		SET status = $2, gateway_txn_id = $3, updated_at = NOW()
		WHERE order_id = $1
		RETURNING ` + orderColumns

	return scanOrder(r.db.QueryRow(ctx, query, orderID, status, gatewayTxnID))
}
