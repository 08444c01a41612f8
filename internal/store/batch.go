package store

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/recora/recora/internal/access"
	"github.com/recora/recora/internal/resource"
)

// CommandOp enumerates batch command kinds.
type CommandOp string

const (
	OpCreate            CommandOp = "create"
	OpUpdate            CommandOp = "update"
	OpDelete            CommandOp = "delete"
	OpConditionalCreate CommandOp = "conditional-create"
	OpConditionalUpdate CommandOp = "conditional-update"
	OpConditionalDelete CommandOp = "conditional-delete"
)

// Command is one mutation in a batch. Resource is required for the
// create and update kinds; ResourceType and ID for delete; Criteria
// for the conditional kinds.
type Command struct {
	Op              CommandOp
	Resource        *resource.Resource
	ExpectedVersion int64
	ResourceType    string
	ID              string
	Criteria        map[string][]string
}

// Outcome reports one command's result. Err is a typed outcome error
// when the command failed; Resource is the stored form on success of a
// create or update.
type Outcome struct {
	Op       CommandOp
	Resource *resource.Resource
	Err      error
}

// BatchResult reports every command's outcome plus whether the batch
// committed. Outcomes and commitment can diverge: a late failure rolls
// back every sibling's mutation while the outcomes still describe what
// each command did.
type BatchResult struct {
	Outcomes  []Outcome
	Committed bool
}

// Batch runs a command sequence in one transaction. Commands are
// validated and executed individually, and the whole batch commits
// atomically: if any command fails, nothing is stored.
func (s *Store) Batch(ctx context.Context, identity access.Identity, commands []Command) (*BatchResult, error) {
	tx, err := s.begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	result := &BatchResult{Outcomes: make([]Outcome, 0, len(commands))}
	failed := false
	for _, cmd := range commands {
		outcome := s.runCommand(ctx, tx, identity, cmd)
		if outcome.Err != nil {
			failed = true
		}
		result.Outcomes = append(result.Outcomes, outcome)
	}

	if failed {
		s.log.Debug().Int("commands", len(commands)).Msg("batch rolled back")
		return result, nil
	}
	if err := tx.Commit(); err != nil {
		return nil, &UnavailableError{Op: "commit batch", Err: err}
	}
	result.Committed = true
	return result, nil
}

func (s *Store) runCommand(ctx context.Context, tx *sqlx.Tx, identity access.Identity, cmd Command) Outcome {
	outcome := Outcome{Op: cmd.Op}
	switch cmd.Op {
	case OpCreate:
		outcome.Resource, outcome.Err = s.createTx(ctx, tx, cmd.Resource)
	case OpUpdate:
		outcome.Resource, outcome.Err = s.updateTx(ctx, tx, cmd.Resource, cmd.ExpectedVersion)
	case OpDelete:
		outcome.Err = s.deleteTx(ctx, tx, cmd.ResourceType, cmd.ID)
	case OpConditionalCreate:
		outcome.Resource, _, outcome.Err = s.conditionalCreateTx(ctx, tx, identity, cmd.Resource)
	case OpConditionalUpdate:
		outcome.Resource, outcome.Err = s.conditionalUpdateTx(ctx, tx, identity, cmd.Resource, cmd.Criteria)
	case OpConditionalDelete:
		outcome.Err = s.conditionalDeleteTx(ctx, tx, identity, cmd.ResourceType, cmd.Criteria)
	default:
		outcome.Err = fmt.Errorf("unknown batch command %q", cmd.Op)
	}
	return outcome
}

func (s *Store) conditionalCreateTx(ctx context.Context, tx *sqlx.Tx, identity access.Identity, res *resource.Resource) (*resource.Resource, bool, error) {
	config, ok := s.reg.Type(res.Type)
	if !ok {
		return nil, false, fmt.Errorf("unknown resource type %q", res.Type)
	}
	criteria, ok := conditionalCriteria(config, res)
	if !ok {
		out, err := s.createTx(ctx, tx, res)
		return out, err == nil, err
	}

	compiled, err := s.compiler.Compile(res.Type, identity, criteria)
	if err != nil {
		return nil, false, err
	}
	result, err := s.search(ctx, tx, compiled)
	if err != nil {
		return nil, false, err
	}
	switch {
	case result.Total > 1:
		return nil, false, &PreconditionError{
			ResourceType: res.Type,
			Criteria:     compiled.Canonical,
			Matches:      result.Total,
		}
	case result.Total == 1:
		return result.Resources[0], false, nil
	}
	out, err := s.createTx(ctx, tx, res)
	return out, err == nil, err
}

func (s *Store) conditionalUpdateTx(ctx context.Context, tx *sqlx.Tx, identity access.Identity, res *resource.Resource, criteria map[string][]string) (*resource.Resource, error) {
	compiled, err := s.compiler.Compile(res.Type, identity, criteria)
	if err != nil {
		return nil, err
	}
	target, err := s.selectOne(ctx, tx, compiled)
	if err != nil {
		return nil, err
	}
	update := *res
	update.ID = target.ID
	return s.updateTx(ctx, tx, &update, target.VersionID)
}

func (s *Store) conditionalDeleteTx(ctx context.Context, tx *sqlx.Tx, identity access.Identity, resourceType string, criteria map[string][]string) error {
	compiled, err := s.compiler.Compile(resourceType, identity, criteria)
	if err != nil {
		return err
	}
	target, err := s.selectOne(ctx, tx, compiled)
	if err != nil {
		return err
	}
	return s.deleteTx(ctx, tx, resourceType, target.ID)
}
