/**
 * @description
 * PostgreSQL implementation of the Repository interface. All multi-row
 * mutations run inside a single transaction; balance rows are locked with
 * SELECT ... FOR UPDATE in ascending id order so that two transfers touching
 * the same pair of accounts in opposite roles can never deadlock. Contact
 * value uniqueness is enforced by the database unique index; code 23505 is
 * translated to the sentinel conflict errors.
 *
 * @dependencies
 * - github.com/jackc/pgx/v5: The PostgreSQL driver for database operations.
 * - internal/domain: Contains the domain models used for data transfer.
 */
package store

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/NikolaiGurianov/BankingApp/internal/domain"
)

// PostgresRepository is the concrete Repository backed by a pgx pool.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository creates a new instance of PostgresRepository.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const accountColumns = `id, full_name, birth_date, login, password_hash, balance, start_deposit, created_at, updated_at`

func scanAccount(row pgx.Row) (*domain.Account, error) {
	var account domain.Account
	err := row.Scan(
		&account.ID,
		&account.FullName,
		&account.BirthDate,
		&account.Login,
		&account.PasswordHash,
		&account.Balance,
		&account.StartDeposit,
		&account.CreatedAt,
		&account.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &account, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// CreateAccount inserts the account and its two initial contact handles in one
// transaction.
func (r *PostgresRepository) CreateAccount(ctx context.Context, account *domain.Account, phone, email string) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	accountQuery := `
		INSERT INTO accounts (id, full_name, birth_date, login, password_hash, balance, start_deposit)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	if _, err := tx.Exec(ctx, accountQuery,
		account.ID,
		account.FullName,
		account.BirthDate,
		account.Login,
		account.PasswordHash,
		account.Balance,
		account.StartDeposit,
	); err != nil {
		if isUniqueViolation(err) {
			return ErrLoginTaken
		}
		return err
	}

	handleQuery := `INSERT INTO contact_handles (id, kind, value, owner_id) VALUES ($1, $2, $3, $4)`
	for kind, value := range map[domain.ContactKind]string{
		domain.ContactKindPhone: phone,
		domain.ContactKindEmail: email,
	} {
		if _, err := tx.Exec(ctx, handleQuery, uuid.New(), kind, value, account.ID); err != nil {
			if isUniqueViolation(err) {
				return ErrContactTaken
			}
			return err
		}
	}

	return tx.Commit(ctx)
}

// FindAccountByID retrieves an account by its id.
func (r *PostgresRepository) FindAccountByID(ctx context.Context, id uuid.UUID) (*domain.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE id = $1`
	account, err := scanAccount(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}
	return account, nil
}

// FindAccountByLogin retrieves an account by its unique login.
func (r *PostgresRepository) FindAccountByLogin(ctx context.Context, login string) (*domain.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE login = $1`
	account, err := scanAccount(r.db.QueryRow(ctx, query, login))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}
	return account, nil
}

// SearchAccounts filters accounts by the optional criteria with pagination.
func (r *PostgresRepository) SearchAccounts(ctx context.Context, filter domain.AccountFilter) ([]domain.Account, error) {
	size := filter.Size
	if size <= 0 {
		size = 20
	}
	if size > 100 {
		size = 100
	}
	from := filter.From
	if from < 0 {
		from = 0
	}

	query := `SELECT ` + accountColumns + ` FROM accounts WHERE 1=1`
	args := []interface{}{}
	argPos := 1

	if filter.BirthDate != nil {
		query += fmt.Sprintf(" AND birth_date = $%d", argPos)
		args = append(args, *filter.BirthDate)
		argPos++
	}
	if phone := strings.TrimSpace(filter.Phone); phone != "" {
		query += fmt.Sprintf(" AND EXISTS (SELECT 1 FROM contact_handles WHERE owner_id = accounts.id AND kind = 'phone' AND value = $%d)", argPos)
		args = append(args, phone)
		argPos++
	}
	if email := strings.TrimSpace(filter.Email); email != "" {
		query += fmt.Sprintf(" AND EXISTS (SELECT 1 FROM contact_handles WHERE owner_id = accounts.id AND kind = 'email' AND value = $%d)", argPos)
		args = append(args, email)
		argPos++
	}
	for _, part := range []string{filter.Surname, filter.Name, filter.Patronymic} {
		if part = strings.TrimSpace(part); part != "" {
			query += fmt.Sprintf(" AND full_name ILIKE '%%' || $%d || '%%'", argPos)
			args = append(args, part)
			argPos++
		}
	}

	query += fmt.Sprintf(" ORDER BY id ASC LIMIT $%d OFFSET $%d", argPos, argPos+1)
	args = append(args, size, from)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var accounts []domain.Account
	for rows.Next() {
		account, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, *account)
	}
	return accounts, rows.Err()
}

// ListAccountIDs returns every account id, ordered for a stable accrual pass.
func (r *PostgresRepository) ListAccountIDs(ctx context.Context) ([]uuid.UUID, error) {
	rows, err := r.db.Query(ctx, `SELECT id FROM accounts ORDER BY id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// TransferBalance performs the atomic debit/credit pair. Both rows are locked
// with FOR UPDATE in ascending id order regardless of which is the sender.
func (r *PostgresRepository) TransferBalance(ctx context.Context, senderID, receiverID uuid.UUID, amount decimal.Decimal) (*domain.Account, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	if senderID == receiverID {
		var exists bool
		if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM accounts WHERE id = $1)`, senderID).Scan(&exists); err != nil {
			return nil, err
		}
		if !exists {
			return nil, ErrSenderNotFound
		}
		return nil, ErrSameAccount
	}

	first, second := senderID, receiverID
	if bytes.Compare(receiverID[:], senderID[:]) < 0 {
		first, second = receiverID, senderID
	}

	balances := make(map[uuid.UUID]decimal.Decimal, 2)
	for _, id := range []uuid.UUID{first, second} {
		var balance decimal.Decimal
		err := tx.QueryRow(ctx, `SELECT balance FROM accounts WHERE id = $1 FOR UPDATE`, id).Scan(&balance)
		if err != nil {
			if err == pgx.ErrNoRows {
				continue
			}
			return nil, err
		}
		balances[id] = balance
	}

	senderBalance, ok := balances[senderID]
	if !ok {
		return nil, ErrSenderNotFound
	}
	receiverBalance, ok := balances[receiverID]
	if !ok {
		return nil, ErrReceiverNotFound
	}

	newSenderBalance := senderBalance.Sub(amount)
	if !newSenderBalance.IsPositive() {
		return nil, ErrInsufficientFunds
	}

	updateQuery := `UPDATE accounts SET balance = $1, updated_at = NOW() WHERE id = $2`
	if _, err := tx.Exec(ctx, updateQuery, newSenderBalance, senderID); err != nil {
		return nil, err
	}
	if _, err := tx.Exec(ctx, updateQuery, receiverBalance.Add(amount), receiverID); err != nil {
		return nil, err
	}

	sender, err := scanAccount(tx.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = $1`, senderID))
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return sender, nil
}

// ApplyAccrual grows one positive balance by rate unless the cap would be
// crossed. A single guarded UPDATE keeps the read-modify-write atomic against
// concurrent transfers on the same row.
func (r *PostgresRepository) ApplyAccrual(ctx context.Context, accountID uuid.UUID, rate, capFactor decimal.Decimal) (bool, error) {
	query := `
		UPDATE accounts
		SET balance = balance + balance * $2, updated_at = NOW()
		WHERE id = $1
		  AND balance > 0
		  AND balance + balance * $2 <= start_deposit * $3
	`
	result, err := r.db.Exec(ctx, query, accountID, rate, capFactor)
	if err != nil {
		return false, err
	}
	return result.RowsAffected() > 0, nil
}

// FindContactByValue looks up a handle by kind and exact value.
func (r *PostgresRepository) FindContactByValue(ctx context.Context, kind domain.ContactKind, value string) (*domain.ContactHandle, error) {
	var handle domain.ContactHandle
	query := `SELECT id, kind, value, owner_id, created_at FROM contact_handles WHERE kind = $1 AND value = $2`
	err := r.db.QueryRow(ctx, query, kind, value).Scan(&handle.ID, &handle.Kind, &handle.Value, &handle.OwnerID, &handle.CreatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrContactNotFound
		}
		return nil, err
	}
	return &handle, nil
}

// FindContactsByOwner lists every handle owned by an account.
func (r *PostgresRepository) FindContactsByOwner(ctx context.Context, ownerID uuid.UUID) ([]domain.ContactHandle, error) {
	query := `SELECT id, kind, value, owner_id, created_at FROM contact_handles WHERE owner_id = $1 ORDER BY created_at ASC`
	rows, err := r.db.Query(ctx, query, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var handles []domain.ContactHandle
	for rows.Next() {
		var handle domain.ContactHandle
		if err := rows.Scan(&handle.ID, &handle.Kind, &handle.Value, &handle.OwnerID, &handle.CreatedAt); err != nil {
			return nil, err
		}
		handles = append(handles, handle)
	}
	return handles, rows.Err()
}

// AddContact inserts a handle; the unique index on (kind, value) makes the
// check-and-insert one atomic step.
func (r *PostgresRepository) AddContact(ctx context.Context, handle *domain.ContactHandle) error {
	query := `INSERT INTO contact_handles (id, kind, value, owner_id) VALUES ($1, $2, $3, $4)`
	if _, err := r.db.Exec(ctx, query, handle.ID, handle.Kind, handle.Value, handle.OwnerID); err != nil {
		if isUniqueViolation(err) {
			return ErrContactTaken
		}
		return err
	}
	return nil
}

// ReplaceContact deletes the old value and inserts the new one in a single
// transaction. Deleting a value that no longer exists is a no-op, matching the
// unconditional delete-by-value semantics of the contact directory.
func (r *PostgresRepository) ReplaceContact(ctx context.Context, ownerID uuid.UUID, kind domain.ContactKind, oldValue, newValue string) (*domain.ContactHandle, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	if oldValue != "" {
		if _, err := tx.Exec(ctx, `DELETE FROM contact_handles WHERE kind = $1 AND value = $2`, kind, oldValue); err != nil {
			return nil, err
		}
	}

	handle := &domain.ContactHandle{ID: uuid.New(), Kind: kind, Value: newValue, OwnerID: ownerID}
	query := `INSERT INTO contact_handles (id, kind, value, owner_id) VALUES ($1, $2, $3, $4) RETURNING created_at`
	if err := tx.QueryRow(ctx, query, handle.ID, handle.Kind, handle.Value, handle.OwnerID).Scan(&handle.CreatedAt); err != nil {
		if isUniqueViolation(err) {
			return nil, ErrContactTaken
		}
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return handle, nil
}

// RemoveContact deletes the owner's matching handles of a kind, refusing when
// that would leave the account with no handle of the kind. The owner's handle
// rows are locked first so the count cannot change under the delete.
func (r *PostgresRepository) RemoveContact(ctx context.Context, ownerID uuid.UUID, kind domain.ContactKind, value string) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	rows, err := tx.Query(ctx, `SELECT id FROM contact_handles WHERE owner_id = $1 AND kind = $2 FOR UPDATE`, ownerID, kind)
	if err != nil {
		return err
	}
	var owned int
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return err
		}
		owned++
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	if owned <= 1 {
		return ErrLastContact
	}

	if _, err := tx.Exec(ctx, `DELETE FROM contact_handles WHERE owner_id = $1 AND kind = $2 AND value = $3`, ownerID, kind, value); err != nil {
		return err
	}

	return tx.Commit(ctx)
}
