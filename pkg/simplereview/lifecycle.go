package simplereview

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

func (s *service) CreateScript(ctx context.Context, actor *Actor, req CreateScriptRequest) (*Script, error) {
	var owner *uuid.UUID
	if actor.IsAuthenticated() {
		if err := s.authenticate(ctx, actor); err != nil {
			return nil, err
		}
		id := actor.UserID
		owner = &id
	}

	title := strings.TrimSpace(req.Title)
	if title == "" {
		return nil, fmt.Errorf("%w: title is required", ErrInvalidArgument)
	}
	schemaValid, ref, err := s.saveDocument(ctx, title, req.Content)
	if err != nil {
		return nil, err
	}

	now := s.now()
	script := &Script{
		ID:          uuid.New(),
		Title:       title,
		Description: strings.TrimSpace(req.Description),
		AuthorName:  strings.TrimSpace(req.AuthorName),
		State:       StatePending,
		OwnerID:     owner,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	version := &Version{
		ID:          uuid.New(),
		ScriptID:    script.ID,
		Number:      1,
		Content:     string(req.Content),
		ContentHash: ref.SHA256,
		Path:        ref.Path,
		SchemaValid: schemaValid,
		CreatedAt:   now,
	}

	err = s.store.WithTx(ctx, func(tx Repositories) error {
		if err := tx.Scripts().CreateScript(ctx, script); err != nil {
			return err
		}
		return tx.Versions().CreateVersion(ctx, version)
	})
	if err != nil {
		return nil, s.scriptError(script.ID, "create", err)
	}

	s.invalidate(transitionBuckets(uuid.Nil, StatePending)...)
	s.logger.Info("script submitted", "script_id", script.ID, "owner", owner, "schema_valid", schemaValid)
	return script, nil
}

func (s *service) AddVersion(ctx context.Context, actor *Actor, scriptID uuid.UUID, content []byte) (*Version, error) {
	if err := s.authenticate(ctx, actor); err != nil {
		return nil, err
	}
	script, err := s.store.Scripts().GetScript(ctx, scriptID)
	if err != nil {
		return nil, err
	}
	if err := requireManager(actor, script); err != nil {
		return nil, err
	}
	if err := canAddVersion(script.State); err != nil {
		return nil, s.scriptError(scriptID, "add_version", err)
	}
	schemaValid, ref, err := s.saveDocument(ctx, script.Title, content)
	if err != nil {
		return nil, err
	}

	var version *Version
	var state State
	err = s.store.WithTx(ctx, func(tx Repositories) error {
		locked, err := tx.Scripts().GetScriptForUpdate(ctx, scriptID)
		if err != nil {
			return err
		}
		if err := canAddVersion(locked.State); err != nil {
			return err
		}
		state = locked.State
		next, err := tx.Versions().NextVersionNumber(ctx, scriptID)
		if err != nil {
			return err
		}
		version = &Version{
			ID:          uuid.New(),
			ScriptID:    scriptID,
			Number:      next,
			Content:     string(content),
			ContentHash: ref.SHA256,
			Path:        ref.Path,
			SchemaValid: schemaValid,
			CreatedAt:   s.now(),
		}
		if err := tx.Versions().CreateVersion(ctx, version); err != nil {
			return err
		}
		locked.UpdatedAt = version.CreatedAt
		return tx.Scripts().UpdateScript(ctx, locked)
	})
	if err != nil {
		return nil, s.scriptError(scriptID, "add_version", err)
	}

	// UpdatedAt moved, so the list rows are stale too.
	s.invalidate(ScriptBucket(scriptID), StateBucket(state), AllBucket())
	return version, nil
}

func (s *service) SubmitForReview(ctx context.Context, actor *Actor, scriptID uuid.UUID) (*Script, error) {
	if err := s.authenticate(ctx, actor); err != nil {
		return nil, err
	}

	var script *Script
	changed := false
	err := s.store.WithTx(ctx, func(tx Repositories) error {
		var err error
		script, err = tx.Scripts().GetScriptForUpdate(ctx, scriptID)
		if err != nil {
			return err
		}
		if err := requireOwner(actor, script); err != nil {
			return err
		}
		if script.State == StatePending {
			return nil
		}
		if err := canResubmit(script.State); err != nil {
			return err
		}
		applyState(script, StatePending, s.now())
		changed = true
		return tx.Scripts().UpdateScript(ctx, script)
	})
	if err != nil {
		return nil, s.scriptError(scriptID, "submit", err)
	}

	if changed {
		s.invalidate(transitionBuckets(scriptID, StatePending, StateRejected)...)
	}
	return script, nil
}

func (s *service) Approve(ctx context.Context, actor *Actor, scriptID uuid.UUID) (*Script, error) {
	if err := s.authorize(ctx, actor, RoleAdmin); err != nil {
		return nil, err
	}

	var script *Script
	err := s.store.WithTx(ctx, func(tx Repositories) error {
		var err error
		script, err = s.approveLocked(ctx, tx, actor, scriptID)
		return err
	})
	if err != nil {
		return nil, s.scriptError(scriptID, "approve", err)
	}

	s.invalidate(append(transitionBuckets(scriptID, StatePending, StatePublished), bucketLeaderboard)...)
	s.logger.Info("script approved", "script_id", scriptID, "reviewer", actor.UserID)
	return script, nil
}

func (s *service) approveLocked(ctx context.Context, tx Repositories, actor *Actor, scriptID uuid.UUID) (*Script, error) {
	script, err := tx.Scripts().GetScriptForUpdate(ctx, scriptID)
	if err != nil {
		return nil, err
	}
	if err := canApprove(script.State); err != nil {
		return nil, err
	}
	now := s.now()
	applyState(script, StatePublished, now)
	if err := tx.Scripts().UpdateScript(ctx, script); err != nil {
		return nil, err
	}
	review := &Review{
		ID:         uuid.New(),
		ScriptID:   scriptID,
		ReviewerID: actor.UserID,
		Decision:   DecisionApproved,
		CreatedAt:  now,
	}
	if err := tx.Reviews().CreateReview(ctx, review); err != nil {
		return nil, err
	}
	return script, nil
}

func (s *service) Reject(ctx context.Context, actor *Actor, scriptID uuid.UUID, reason string) (*Script, error) {
	if err := s.authorize(ctx, actor, RoleAdmin); err != nil {
		return nil, err
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, ErrReasonRequired
	}

	var script *Script
	err := s.store.WithTx(ctx, func(tx Repositories) error {
		var err error
		script, err = tx.Scripts().GetScriptForUpdate(ctx, scriptID)
		if err != nil {
			return err
		}
		if err := canReject(script.State); err != nil {
			return err
		}
		now := s.now()
		applyState(script, StateRejected, now)
		if err := tx.Scripts().UpdateScript(ctx, script); err != nil {
			return err
		}
		return tx.Reviews().CreateReview(ctx, &Review{
			ID:         uuid.New(),
			ScriptID:   scriptID,
			ReviewerID: actor.UserID,
			Decision:   DecisionRejected,
			Reason:     reason,
			CreatedAt:  now,
		})
	})
	if err != nil {
		return nil, s.scriptError(scriptID, "reject", err)
	}

	s.invalidate(transitionBuckets(scriptID, StatePending, StateRejected)...)
	s.notifyRejection(script, reason)
	s.logger.Info("script rejected", "script_id", scriptID, "reviewer", actor.UserID)
	return script, nil
}

func (s *service) notifyRejection(script *Script, reason string) {
	if script.OwnerID == nil || script.SystemOwned {
		return
	}
	owner := *script.OwnerID
	message := fmt.Sprintf("Your script %q was not approved: %s", script.Title, reason)
	err := s.tasks.Submit("notify_rejection", func(ctx context.Context) error {
		return s.notifier.Notify(ctx, owner, message)
	})
	if err != nil {
		s.logger.Warn("failed to queue rejection notice", "script_id", script.ID, "err", err)
	}
}

func (s *service) Resubmit(ctx context.Context, actor *Actor, scriptID uuid.UUID) (*Script, error) {
	if err := s.authenticate(ctx, actor); err != nil {
		return nil, err
	}

	var script *Script
	err := s.store.WithTx(ctx, func(tx Repositories) error {
		var err error
		script, err = tx.Scripts().GetScriptForUpdate(ctx, scriptID)
		if err != nil {
			return err
		}
		if err := requireOwner(actor, script); err != nil {
			return err
		}
		if err := canResubmit(script.State); err != nil {
			return err
		}
		applyState(script, StatePending, s.now())
		return tx.Scripts().UpdateScript(ctx, script)
	})
	if err != nil {
		return nil, s.scriptError(scriptID, "resubmit", err)
	}

	s.invalidate(transitionBuckets(scriptID, StatePending, StateRejected)...)
	return script, nil
}

func (s *service) SoftDelete(ctx context.Context, actor *Actor, scriptID uuid.UUID) (*Script, error) {
	if err := s.authenticate(ctx, actor); err != nil {
		return nil, err
	}

	var script *Script
	err := s.store.WithTx(ctx, func(tx Repositories) error {
		var err error
		script, err = tx.Scripts().GetScriptForUpdate(ctx, scriptID)
		if err != nil {
			return err
		}
		if err := requireOwner(actor, script); err != nil {
			return err
		}
		if err := canAbandon(script.State); err != nil {
			return err
		}
		applyState(script, StateAbandoned, s.now())
		return tx.Scripts().UpdateScript(ctx, script)
	})
	if err != nil {
		return nil, s.scriptError(scriptID, "soft_delete", err)
	}

	s.invalidate(fullBuckets(scriptID)...)
	s.logger.Info("script abandoned", "script_id", scriptID, "owner", actor.UserID)
	return script, nil
}

func (s *service) Restore(ctx context.Context, actor *Actor, scriptID uuid.UUID, req RestoreRequest) (*Script, error) {
	if err := s.authorize(ctx, actor, RoleAdmin); err != nil {
		return nil, err
	}
	if err := canRestore(StateAbandoned, req.State); err != nil {
		return nil, err
	}

	var script *Script
	err := s.store.WithTx(ctx, func(tx Repositories) error {
		var err error
		script, err = tx.Scripts().GetScriptForUpdate(ctx, scriptID)
		if err != nil {
			return err
		}
		if err := canRestore(script.State, req.State); err != nil {
			return err
		}
		now := s.now()
		applyState(script, req.State, now)
		if req.TransferOwnership {
			if script.OwnerID == nil && !script.SystemOwned {
				s.logger.Warn("transferring script without a recorded owner", "script_id", scriptID, "admin", actor.UserID)
			}
			if !script.SystemOwned {
				script.OriginalOwnerID = script.OwnerID
			}
			script.OwnerID = nil
			script.SystemOwned = true
			script.TransferredAt = &now
		}
		return tx.Scripts().UpdateScript(ctx, script)
	})
	if err != nil {
		return nil, s.scriptError(scriptID, "restore", err)
	}

	s.invalidate(fullBuckets(scriptID)...)
	s.logger.Info("script restored", "script_id", scriptID, "state", req.State, "transferred", req.TransferOwnership, "admin", actor.UserID)
	return script, nil
}

// HardDelete removes a script and every child record in one transaction:
// engagement, then images and versions, then reviews, then the script.
// Stored bytes are left in the content store since other scripts may share them.
func (s *service) HardDelete(ctx context.Context, actor *Actor, scriptID uuid.UUID) error {
	if err := s.authorize(ctx, actor, RoleSuperuser); err != nil {
		return err
	}

	err := s.store.WithTx(ctx, func(tx Repositories) error {
		if _, err := tx.Scripts().GetScriptForUpdate(ctx, scriptID); err != nil {
			return err
		}
		if err := tx.Engagement().DeleteEngagementByScript(ctx, scriptID); err != nil {
			return err
		}
		if err := tx.Images().DeleteImagesByScript(ctx, scriptID); err != nil {
			return err
		}
		if err := tx.Versions().DeleteVersionsByScript(ctx, scriptID); err != nil {
			return err
		}
		if err := tx.Reviews().DeleteReviewsByScript(ctx, scriptID); err != nil {
			return err
		}
		return tx.Scripts().DeleteScript(ctx, scriptID)
	})
	if err != nil {
		return s.scriptError(scriptID, "hard_delete", err)
	}

	s.invalidate(fullBuckets(scriptID)...)
	s.logger.Warn("script permanently deleted", "script_id", scriptID, "actor", actor.UserID)
	return nil
}

// ApproveAll approves every pending script in one transaction, writing one
// review per script, and invalidates once.
func (s *service) ApproveAll(ctx context.Context, actor *Actor) ([]*Script, error) {
	if err := s.authorize(ctx, actor, RoleAdmin); err != nil {
		return nil, err
	}

	var approved []*Script
	err := s.store.WithTx(ctx, func(tx Repositories) error {
		pending := StatePending
		scripts, err := tx.Scripts().ListScripts(ctx, ScriptFilter{State: &pending})
		if err != nil {
			return err
		}
		approved = make([]*Script, 0, len(scripts))
		for _, candidate := range scripts {
			script, err := s.approveLocked(ctx, tx, actor, candidate.ID)
			if errors.Is(err, ErrInvalidState) || errors.Is(err, ErrScriptNotFound) {
				// Moved on or gone since the listing; not ours to approve.
				s.logger.Debug("bulk approval skipped script", "script_id", candidate.ID, "err", err)
				continue
			}
			if err != nil {
				return s.scriptError(candidate.ID, "approve", err)
			}
			approved = append(approved, script)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if len(approved) > 0 {
		s.invalidate(append(fullBuckets(uuid.Nil), bucketScript)...)
	}
	s.logger.Info("bulk approval finished", "count", len(approved), "reviewer", actor.UserID)
	return approved, nil
}

// requireOwner hides unpublished scripts from non-owners and forbids
// everything else.
func requireOwner(actor *Actor, script *Script) error {
	if script.OwnedBy(actor.UserID) {
		return nil
	}
	if !canView(actor, script) {
		return ErrScriptNotFound
	}
	return ErrForbidden
}

func requireManager(actor *Actor, script *Script) error {
	if canManage(actor, script) {
		return nil
	}
	if !canView(actor, script) {
		return ErrScriptNotFound
	}
	return ErrForbidden
}

// saveDocument enforces the document policy and stores the bytes.
func (s *service) saveDocument(ctx context.Context, title string, content []byte) (bool, *ContentRef, error) {
	if len(content) == 0 {
		return false, nil, fmt.Errorf("%w: script document is empty", ErrInvalidArgument)
	}
	if int64(len(content)) > s.policy.MaxDocumentBytes {
		return false, nil, fmt.Errorf("%w: document exceeds %d bytes", ErrPayloadTooLarge, s.policy.MaxDocumentBytes)
	}
	schemaValid, err := validateDocument(content)
	if err != nil {
		return false, nil, err
	}
	ref, err := s.content.Save(ctx, content, title+".json", "application/json")
	if err != nil {
		return false, nil, err
	}
	return schemaValid, ref, nil
}
