package customer

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

type Repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{
		db: db,
	}
}

var ErrNotFound = errors.New("customer not found")

func (r *Repository) GetCustomerByAuth0ID(auth0ID string) (*Customer, error) {
	customer := &Customer{}
	err := r.db.Get(customer, getCustomerByAuth0IDQuery, auth0ID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return customer, nil
}

const getCustomerByAuth0IDQuery = `SELECT * FROM customers WHERE auth0_id = $1`

// CreateCustomer opens an account with an empty flex balance. The profile
// fields are synced from the identity provider on first contact.
func (r *Repository) CreateCustomer(auth0ID string) (*Customer, error) {
	customer := &Customer{}
	err := r.db.Get(customer, createCustomerQuery, uuid.New(), auth0ID)
	if err != nil {
		return nil, err
	}
	return customer, nil
}

const createCustomerQuery = `
INSERT INTO customers (id, auth0_id, flex_balance, lifetime_flex_earned)
VALUES ($1, $2, 0, 0)
RETURNING *
`

func (r *Repository) AddStripeIDToCustomer(auth0ID, stripeID string) error {
	res, err := r.db.Exec(addStripeIDToCustomerQuery, stripeID, auth0ID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

const addStripeIDToCustomerQuery = `UPDATE customers SET stripe_id = $1 WHERE auth0_id = $2`

// CreditFlex adds flex dollars to the balance and the lifetime total.
// Returns the new balance.
func (r *Repository) CreditFlex(ctx context.Context, auth0ID string, amountCents int) (int, error) {
	var balance int
	err := r.db.GetContext(ctx, &balance, creditFlexQuery, amountCents, auth0ID)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrNotFound
	}
	return balance, err
}

const creditFlexQuery = `
UPDATE customers
SET flex_balance = flex_balance + $1, lifetime_flex_earned = lifetime_flex_earned + $1
WHERE auth0_id = $2
RETURNING flex_balance
`

// SpendFlex debits up to upTo cents from the balance, never below zero.
// Returns the amount actually spent.
func (r *Repository) SpendFlex(ctx context.Context, auth0ID string, upTo int) (int, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	var balance int
	err = tx.GetContext(ctx, &balance, getFlexBalanceForUpdateQuery, auth0ID)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, err
	}

	spend := upTo
	if balance < spend {
		spend = balance
	}
	if spend == 0 {
		return 0, tx.Commit()
	}

	_, err = tx.ExecContext(ctx, spendFlexQuery, spend, auth0ID)
	if err != nil {
		return 0, err
	}

	return spend, tx.Commit()
}

const getFlexBalanceForUpdateQuery = `SELECT flex_balance FROM customers WHERE auth0_id = $1 FOR UPDATE`
const spendFlexQuery = `UPDATE customers SET flex_balance = flex_balance - $1 WHERE auth0_id = $2`

func (r *Repository) UpdateProfile(ctx context.Context, auth0ID, email, name string) error {
	_, err := r.db.ExecContext(ctx, updateProfileQuery, email, name, auth0ID)
	return err
}

const updateProfileQuery = `UPDATE customers SET email = NULLIF($1, ''), name = NULLIF($2, '') WHERE auth0_id = $3`
