package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/recora/recora/internal/access"
	"github.com/recora/recora/internal/resource"
)

const selectColumns = "resource_type, id, version_id, last_updated, deleted, current, body, grants"

// Create stores a new resource at version 1 and returns the stored
// form. An empty ID gets a fresh UUID; a caller-supplied ID that
// already exists is a conflict.
func (s *Store) Create(ctx context.Context, res *resource.Resource) (*resource.Resource, error) {
	tx, err := s.begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	out, err := s.createTx(ctx, tx, res)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, &UnavailableError{Op: "commit create", Err: err}
	}
	return out, nil
}

func (s *Store) createTx(ctx context.Context, tx *sqlx.Tx, res *resource.Resource) (*resource.Resource, error) {
	id := res.ID
	if id == "" {
		id = uuid.NewString()
	} else if current, err := s.readCurrentTx(ctx, tx, res.Type, id); err == nil {
		return nil, &ConflictError{
			ResourceType:   res.Type,
			ID:             id,
			CurrentVersion: current.VersionID,
		}
	} else if !IsNotFound(err) {
		return nil, err
	}

	return s.insertVersionTx(ctx, tx, res, id, 1)
}

// Update stores a new version of an existing resource. expectedVersion
// must equal the current version or the update conflicts; a mismatch
// never silently overwrites.
func (s *Store) Update(ctx context.Context, res *resource.Resource, expectedVersion int64) (*resource.Resource, error) {
	tx, err := s.begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	out, err := s.updateTx(ctx, tx, res, expectedVersion)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, &UnavailableError{Op: "commit update", Err: err}
	}
	return out, nil
}

func (s *Store) updateTx(ctx context.Context, tx *sqlx.Tx, res *resource.Resource, expectedVersion int64) (*resource.Resource, error) {
	current, err := s.readCurrentTx(ctx, tx, res.Type, res.ID)
	if err != nil {
		return nil, err
	}
	if current.Deleted {
		return nil, &NotFoundError{ResourceType: res.Type, ID: res.ID, Deleted: true}
	}
	if current.VersionID != expectedVersion {
		return nil, &ConflictError{
			ResourceType:    res.Type,
			ID:              res.ID,
			ExpectedVersion: expectedVersion,
			CurrentVersion:  current.VersionID,
		}
	}

	if err := s.retireCurrentTx(ctx, tx, res.Type, res.ID); err != nil {
		return nil, err
	}
	return s.insertVersionTx(ctx, tx, res, res.ID, current.VersionID+1)
}

// Delete writes a tombstone version. Deleting an already-deleted
// resource is idempotent; deleting an id that was never stored is a
// not-found.
func (s *Store) Delete(ctx context.Context, resourceType, id string) error {
	tx, err := s.begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := s.deleteTx(ctx, tx, resourceType, id); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return &UnavailableError{Op: "commit delete", Err: err}
	}
	return nil
}

func (s *Store) deleteTx(ctx context.Context, tx *sqlx.Tx, resourceType, id string) error {
	current, err := s.readCurrentTx(ctx, tx, resourceType, id)
	if err != nil {
		return err
	}
	if current.Deleted {
		return nil
	}

	if err := s.retireCurrentTx(ctx, tx, resourceType, id); err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx,
		"INSERT INTO resources ("+selectColumns+") VALUES (?, ?, ?, ?, 1, 1, ?, ?)",
		resourceType, id, current.VersionID+1, resource.FormatTimestamp(s.now()),
		current.Body, current.Grants)
	if err != nil {
		return &UnavailableError{Op: "insert tombstone", Err: err}
	}
	return nil
}

// ErrNotDeleted rejects a permanent delete of a resource that still has
// a live current version. Soft delete first.
var ErrNotDeleted = errors.New("resource is not deleted")

// PermanentDelete removes every version of a tombstoned resource,
// history included.
func (s *Store) PermanentDelete(ctx context.Context, resourceType, id string) error {
	tx, err := s.begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	current, err := s.readCurrentTx(ctx, tx, resourceType, id)
	if err != nil {
		return err
	}
	if !current.Deleted {
		return fmt.Errorf("permanent delete %s/%s: %w", resourceType, id, ErrNotDeleted)
	}

	if _, err := tx.ExecContext(ctx,
		"DELETE FROM resources WHERE resource_type = ? AND id = ?",
		resourceType, id); err != nil {
		return &UnavailableError{Op: "purge resource", Err: err}
	}
	if err := tx.Commit(); err != nil {
		return &UnavailableError{Op: "commit permanent delete", Err: err}
	}
	return nil
}

// Read returns the current version of a resource if the identity's
// grants admit it. A tombstone reads as gone; a resource the identity
// may not see reads as plain not-found, indistinguishable from an id
// that was never stored.
func (s *Store) Read(ctx context.Context, identity access.Identity, resourceType, id string) (*resource.Resource, error) {
	var row resourceRow
	err := s.db.GetContext(ctx, &row,
		"SELECT "+selectColumns+" FROM resources WHERE resource_type = ? AND id = ? AND current = 1",
		resourceType, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &NotFoundError{ResourceType: resourceType, ID: id}
	}
	if err != nil {
		return nil, &UnavailableError{Op: "read resource", Err: err}
	}

	res, err := row.toResource()
	if err != nil {
		return nil, &UnavailableError{Op: "read resource", Err: err}
	}
	// Visibility first: an identity the grants never admit must not be
	// able to tell a tombstone from an id that was never stored. The
	// tombstone row carries the grants copied at delete time.
	if !s.admits(identity, res) {
		return nil, &NotFoundError{ResourceType: resourceType, ID: id}
	}
	if row.Deleted {
		return nil, &NotFoundError{ResourceType: resourceType, ID: id, Deleted: true}
	}
	return res, nil
}

// ReadVersion returns one specific version, tombstone versions
// included.
func (s *Store) ReadVersion(ctx context.Context, identity access.Identity, resourceType, id string, version int64) (*resource.Resource, error) {
	var row resourceRow
	err := s.db.GetContext(ctx, &row,
		"SELECT "+selectColumns+" FROM resources WHERE resource_type = ? AND id = ? AND version_id = ?",
		resourceType, id, version)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &NotFoundError{ResourceType: resourceType, ID: id}
	}
	if err != nil {
		return nil, &UnavailableError{Op: "read version", Err: err}
	}

	res, err := row.toResource()
	if err != nil {
		return nil, &UnavailableError{Op: "read version", Err: err}
	}
	if !s.admits(identity, res) {
		return nil, &NotFoundError{ResourceType: resourceType, ID: id}
	}
	return res, nil
}

// History returns all versions the identity may see, newest first.
// Versions the identity may not see are omitted; an id with no visible
// versions is a not-found.
func (s *Store) History(ctx context.Context, identity access.Identity, resourceType, id string) ([]*resource.Resource, error) {
	var rows []resourceRow
	err := s.db.SelectContext(ctx, &rows,
		"SELECT "+selectColumns+" FROM resources WHERE resource_type = ? AND id = ? ORDER BY version_id DESC",
		resourceType, id)
	if err != nil {
		return nil, &UnavailableError{Op: "read history", Err: err}
	}

	var versions []*resource.Resource
	for _, row := range rows {
		res, err := row.toResource()
		if err != nil {
			return nil, &UnavailableError{Op: "read history", Err: err}
		}
		if s.admits(identity, res) {
			versions = append(versions, res)
		}
	}
	if len(versions) == 0 {
		return nil, &NotFoundError{ResourceType: resourceType, ID: id}
	}
	return versions, nil
}

func (s *Store) admits(identity access.Identity, res *resource.Resource) bool {
	return s.compiler.Filter().ForMatch(identity)(res)
}

// readCurrentTx fetches the current row for (type, id) inside tx.
func (s *Store) readCurrentTx(ctx context.Context, tx *sqlx.Tx, resourceType, id string) (resourceRow, error) {
	var row resourceRow
	err := tx.GetContext(ctx, &row,
		"SELECT "+selectColumns+" FROM resources WHERE resource_type = ? AND id = ? AND current = 1",
		resourceType, id)
	if errors.Is(err, sql.ErrNoRows) {
		return resourceRow{}, &NotFoundError{ResourceType: resourceType, ID: id}
	}
	if err != nil {
		return resourceRow{}, &UnavailableError{Op: "read current version", Err: err}
	}
	return row, nil
}

func (s *Store) retireCurrentTx(ctx context.Context, tx *sqlx.Tx, resourceType, id string) error {
	_, err := tx.ExecContext(ctx,
		"UPDATE resources SET current = 0 WHERE resource_type = ? AND id = ? AND current = 1",
		resourceType, id)
	if err != nil {
		return &UnavailableError{Op: "retire current version", Err: err}
	}
	return nil
}

// insertVersionTx writes one new current version and returns the
// stored resource.
func (s *Store) insertVersionTx(ctx context.Context, tx *sqlx.Tx, res *resource.Resource, id string, version int64) (*resource.Resource, error) {
	body, err := marshalBody(res.Body)
	if err != nil {
		return nil, &UnavailableError{Op: "insert version", Err: err}
	}
	grants, err := marshalGrants(res.Grants)
	if err != nil {
		return nil, &UnavailableError{Op: "insert version", Err: err}
	}

	updated := s.now()
	_, err = tx.ExecContext(ctx,
		"INSERT INTO resources ("+selectColumns+") VALUES (?, ?, ?, ?, 0, 1, ?, ?)",
		res.Type, id, version, resource.FormatTimestamp(updated), body, grants)
	if err != nil {
		return nil, &UnavailableError{Op: "insert version", Err: err}
	}

	row := resourceRow{
		ResourceType: res.Type,
		ID:           id,
		VersionID:    version,
		LastUpdated:  resource.FormatTimestamp(updated),
		Body:         body,
		Grants:       grants,
	}
	return row.toResource()
}
