package identity

import (
	"context"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

var ConsumeVerificationTokenSQL = `UPDATE "accounts" AS "acc"
SET
	"email_verified" = TRUE,
	"email_verification_token" = NULL
WHERE
	"acc"."email_verification_token" = ?
RETURNING *;`

var ConsumeResetTokenSQL = `UPDATE "accounts" AS "acc"
SET
	"secret_hash" = ?,
	"password_reset_token" = NULL,
	"password_reset_expiry" = NULL
WHERE
	"acc"."password_reset_token" = ?
AND "acc"."password_reset_expiry" > ?
AND "acc"."status" = 'active'
RETURNING *;`

// NewAccountsRepository builds the bun-backed Accounts implementation.
func NewAccountsRepository(db *bun.DB) Accounts {
	repo := repository.NewRepository[*Account](db, repository.ModelHandlers[*Account]{
		NewRecord: func() *Account { return &Account{} },
		GetID: func(a *Account) uuid.UUID {
			if a == nil {
				return uuid.Nil
			}
			return a.ID
		},
		SetID: func(a *Account, id uuid.UUID) {
			if a != nil {
				a.ID = id
			}
		},
	})

	return &accounts{
		Repository: repo,
		db:         db,
	}
}

type accounts struct {
	repository.Repository[*Account]
	db *bun.DB
}

var _ Accounts = (*accounts)(nil)

func (a *accounts) Create(ctx context.Context, record *Account) (*Account, error) {
	prepareAccountDefaults(record)

	created, err := a.Repository.CreateTx(ctx, a.db, record)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicateEmail.WithMetadata(map[string]any{
				"email": record.Email,
			})
		}
		return nil, wrapStoreError(err, "failed to create account")
	}

	return created, nil
}

func (a *accounts) Update(ctx context.Context, record *Account, columns ...string) (*Account, error) {
	if record == nil || record.ID == uuid.Nil {
		return nil, goerrors.New("account record missing id", goerrors.CategoryBadInput)
	}

	q := a.db.NewUpdate().Model(record).WherePK()
	if len(columns) > 0 {
		q = q.Column(columns...)
	}

	if _, err := q.Exec(ctx); err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicateEmail
		}
		return nil, wrapStoreError(err, "failed to update account")
	}

	return a.FindByID(ctx, record.ID)
}

func (a *accounts) FindByID(ctx context.Context, id uuid.UUID) (*Account, error) {
	record := &Account{}
	err := a.db.NewSelect().Model(record).
		Where("?TableAlias.id = ?", id).
		Limit(1).
		Scan(ctx)
	return record, a.normalizeLookupErr(err, map[string]any{"id": id.String()})
}

func (a *accounts) FindByEmail(ctx context.Context, email string) (*Account, error) {
	record := &Account{}
	err := a.db.NewSelect().Model(record).
		Where("?TableAlias.email = ?", NormalizeEmail(email)).
		Limit(1).
		Scan(ctx)
	return record, a.normalizeLookupErr(err, nil)
}

func (a *accounts) FindByVerificationToken(ctx context.Context, token string) (*Account, error) {
	record := &Account{}
	err := a.db.NewSelect().Model(record).
		Where("?TableAlias.email_verification_token = ?", token).
		Limit(1).
		Scan(ctx)
	return record, a.normalizeLookupErr(err, nil)
}

func (a *accounts) FindByValidResetToken(ctx context.Context, token string, now time.Time) (*Account, error) {
	record := &Account{}
	err := a.db.NewSelect().Model(record).
		Where("?TableAlias.password_reset_token = ?", token).
		Where("?TableAlias.password_reset_expiry > ?", now).
		Where("?TableAlias.status = ?", AccountStatusActive).
		Limit(1).
		Scan(ctx)
	return record, a.normalizeLookupErr(err, nil)
}

func (a *accounts) StoreVerificationToken(ctx context.Context, id uuid.UUID, token string) error {
	res, err := a.db.NewUpdate().Model((*Account)(nil)).
		Set("email_verification_token = ?", token).
		Where("?TableAlias.id = ?", id).
		Exec(ctx)
	return a.requireRowAffected(res, err, id)
}

func (a *accounts) StoreResetToken(ctx context.Context, id uuid.UUID, token string, expiry time.Time) error {
	res, err := a.db.NewUpdate().Model((*Account)(nil)).
		Set("password_reset_token = ?", token).
		Set("password_reset_expiry = ?", expiry).
		Where("?TableAlias.id = ?", id).
		Exec(ctx)
	return a.requireRowAffected(res, err, id)
}

func (a *accounts) ClearResetToken(ctx context.Context, id uuid.UUID) error {
	res, err := a.db.NewUpdate().Model((*Account)(nil)).
		Set("password_reset_token = NULL").
		Set("password_reset_expiry = NULL").
		Where("?TableAlias.id = ?", id).
		Exec(ctx)
	return a.requireRowAffected(res, err, id)
}

func (a *accounts) ConsumeVerificationToken(ctx context.Context, token string) (*Account, error) {
	res, err := a.Repository.RawTx(ctx, a.db, ConsumeVerificationTokenSQL, token)
	if err != nil {
		return nil, wrapStoreError(err, "failed to consume verification token")
	}

	if len(res) == 0 {
		return nil, repository.NewRecordNotFound()
	}

	return res[0], nil
}

func (a *accounts) ConsumeResetToken(ctx context.Context, token, newSecretHash string, now time.Time) (*Account, error) {
	res, err := a.Repository.RawTx(ctx, a.db, ConsumeResetTokenSQL, newSecretHash, token, now)
	if err != nil {
		return nil, wrapStoreError(err, "failed to consume reset token")
	}

	if len(res) == 0 {
		return nil, repository.NewRecordNotFound()
	}

	return res[0], nil
}

func (a *accounts) RecordLogin(ctx context.Context, id uuid.UUID, at time.Time) error {
	// NOTE: the ORM update path zeroes login_count instead of incrementing, so
	// this stays raw.
	_, err := a.db.NewRaw(`
		UPDATE "accounts" AS "acc"
		SET
			"login_count" = "login_count" + 1,
			"last_login_at" = ?
		WHERE
			("acc".id = ?);
	`, at, id).Exec(ctx)

	if err != nil {
		return wrapStoreError(err, "failed to record login")
	}

	return nil
}

func (a *accounts) UpdateStatus(ctx context.Context, id uuid.UUID, status AccountStatus, opts ...StatusUpdateOption) (*Account, error) {
	record := &Account{
		ID:     id,
		Status: status,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(record)
		}
	}

	updated, err := a.Repository.UpdateTx(ctx, a.db, record, repository.UpdateByID(id.String()))
	if err != nil {
		return nil, a.normalizeLookupErr(err, map[string]any{"id": id.String()})
	}

	return updated, nil
}

func (a *accounts) UpdateRole(ctx context.Context, id uuid.UUID, role Role) (*Account, error) {
	record := &Account{
		ID:   id,
		Role: role,
	}

	updated, err := a.Repository.UpdateTx(ctx, a.db, record, repository.UpdateByID(id.String()))
	if err != nil {
		return nil, a.normalizeLookupErr(err, map[string]any{"id": id.String()})
	}

	return updated, nil
}

func (a *accounts) Stats(ctx context.Context) (*AccountStats, error) {
	stats := &AccountStats{}

	type row struct {
		Role   string `bun:"role"`
		Status string `bun:"status"`
		Count  int    `bun:"count"`
	}

	var rows []row
	err := a.db.NewSelect().Model((*Account)(nil)).
		ColumnExpr("?TableAlias.role AS role").
		ColumnExpr("?TableAlias.status AS status").
		ColumnExpr("COUNT(*) AS count").
		Group("role", "status").
		Scan(ctx, &rows)
	if err != nil {
		return nil, wrapStoreError(err, "failed to aggregate account stats")
	}

	for _, r := range rows {
		stats.Total += r.Count
		if r.Status == AccountStatusActive {
			stats.Active += r.Count
		} else {
			stats.Deactivated += r.Count
		}
		switch r.Role {
		case RoleStudent:
			stats.Students += r.Count
		case RoleTeacher:
			stats.Teachers += r.Count
		case RoleAdmin:
			stats.Admins += r.Count
		}
	}

	verified, err := a.db.NewSelect().Model((*Account)(nil)).
		Where("?TableAlias.email_verified = ?", true).
		Count(ctx)
	if err != nil {
		return nil, wrapStoreError(err, "failed to count verified accounts")
	}
	stats.Verified = verified

	return stats, nil
}

func (a *accounts) normalizeLookupErr(err error, meta map[string]any) error {
	if err == nil {
		return nil
	}

	if repository.IsRecordNotFound(err) || strings.Contains(err.Error(), "no rows in result set") {
		nf := repository.NewRecordNotFound()
		if len(meta) > 0 {
			nf = nf.WithMetadata(meta)
		}
		return nf
	}

	return wrapStoreError(err, "account lookup failed")
}

func (a *accounts) requireRowAffected(res interface{ RowsAffected() (int64, error) }, err error, id uuid.UUID) error {
	if err != nil {
		return wrapStoreError(err, "failed to update account tokens")
	}

	affected, err := res.RowsAffected()
	if err == nil && affected == 0 {
		return repository.NewRecordNotFound().WithMetadata(map[string]any{
			"id": id.String(),
		})
	}

	return nil
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "duplicate key value violates unique constraint")
}
