// Package pgstore implements the entitlement store on Postgres via pgx.
package pgstore

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/open-rails/metergate/entitlements"
)

// schema is fixed to what the embedded migrations create.
const schema = "metergate"

// EntitlementStore persists entitlement records and processed billing
// events. Per-identity atomicity comes from a row lock (SELECT ... FOR
// UPDATE) held for the duration of the read-decide-write transaction.
type EntitlementStore struct {
	pg *pgxpool.Pool
}

func NewEntitlementStore(pg *pgxpool.Pool) *EntitlementStore {
	return &EntitlementStore{pg: pg}
}

func (s *EntitlementStore) recordsTable() string { return schema + ".entitlement_records" }
func (s *EntitlementStore) eventsTable() string  { return schema + ".billing_events" }

func (s *EntitlementStore) GetOrCreate(ctx context.Context, identity string) (entitlements.Record, error) {
	var rec entitlements.Record
	// The no-op DO UPDATE makes RETURNING yield the row in both the
	// insert and the conflict case.
	err := s.pg.QueryRow(ctx, `
		INSERT INTO `+s.recordsTable()+` (identity)
		VALUES ($1)
		ON CONFLICT (identity) DO UPDATE SET identity = EXCLUDED.identity
		RETURNING identity, request_count, last_activity_at, paid_until, credential_snapshot`,
		identity,
	).Scan(&rec.Identity, &rec.RequestCount, &rec.LastActivityAt, &rec.PaidUntil, &rec.CredentialSnapshot)
	if err != nil {
		return entitlements.Record{}, entitlements.StoreErr(err)
	}
	return rec, nil
}

func (s *EntitlementStore) Apply(ctx context.Context, identity, credential string, now time.Time) (entitlements.Decision, error) {
	tx, err := s.pg.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return entitlements.Decision{}, entitlements.StoreErr(err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `
		INSERT INTO `+s.recordsTable()+` (identity)
		VALUES ($1) ON CONFLICT (identity) DO NOTHING`, identity,
	); err != nil {
		return entitlements.Decision{}, entitlements.StoreErr(err)
	}

	var rec entitlements.Record
	if err := tx.QueryRow(ctx, `
		SELECT identity, request_count, last_activity_at, paid_until, credential_snapshot
		FROM `+s.recordsTable()+`
		WHERE identity = $1
		FOR UPDATE`, identity,
	).Scan(&rec.Identity, &rec.RequestCount, &rec.LastActivityAt, &rec.PaidUntil, &rec.CredentialSnapshot); err != nil {
		return entitlements.Decision{}, entitlements.StoreErr(err)
	}

	d := entitlements.Decide(rec, now)
	if d.Allowed() {
		d.Record.CredentialSnapshot = credential
		if _, err := tx.Exec(ctx, `
			UPDATE `+s.recordsTable()+`
			SET request_count=$2, last_activity_at=$3, credential_snapshot=$4, updated_at=NOW()
			WHERE identity=$1`,
			identity, d.Record.RequestCount, d.Record.LastActivityAt, credential,
		); err != nil {
			return entitlements.Decision{}, entitlements.StoreErr(err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return entitlements.Decision{}, entitlements.StoreErr(err)
	}
	return d, nil
}

func (s *EntitlementStore) ExtendPaidWindow(ctx context.Context, identity, eventID string, expiry time.Time) (bool, error) {
	tx, err := s.pg.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return false, entitlements.StoreErr(err)
	}
	defer tx.Rollback(ctx)

	// Event markers dedupe webhook redelivery: only the first insert wins.
	tag, err := tx.Exec(ctx, `
		INSERT INTO `+s.eventsTable()+` (id, identity, paid_until)
		VALUES ($1, $2, $3)
		ON CONFLICT (id) DO NOTHING`, eventID, identity, expiry,
	)
	if err != nil {
		return false, entitlements.StoreErr(err)
	}
	if tag.RowsAffected() == 0 {
		return false, nil
	}

	if _, err := tx.Exec(ctx, `
		INSERT INTO `+s.recordsTable()+` (identity, paid_until)
		VALUES ($1, $2)
		ON CONFLICT (identity) DO UPDATE SET paid_until = EXCLUDED.paid_until, updated_at = NOW()`,
		identity, expiry,
	); err != nil {
		return false, entitlements.StoreErr(err)
	}

	if err := tx.Commit(ctx); err != nil {
		return false, entitlements.StoreErr(err)
	}
	return true, nil
}

func (s *EntitlementStore) PruneBillingEvents(ctx context.Context, before time.Time) (int64, error) {
	tag, err := s.pg.Exec(ctx, `
		DELETE FROM `+s.eventsTable()+` WHERE processed_at < $1`, before)
	if err != nil {
		return 0, entitlements.StoreErr(err)
	}
	return tag.RowsAffected(), nil
}
