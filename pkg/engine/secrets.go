package engine

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/smkit/smkit/pkg/protocol"
	"github.com/smkit/smkit/pkg/stores"
	"github.com/smkit/smkit/pkg/telemetry"
)

func (e *Engine) secretsCommand(ctx context.Context, cmd protocol.SecretsCommand) (interface{}, error) {
	if err := e.check(cmd); err != nil {
		return nil, err
	}

	switch c := cmd.(type) {
	case protocol.SecretGetRequest:
		return e.getSecret(ctx, c.ID)
	case protocol.SecretsGetRequest:
		return e.getSecrets(ctx, c.IDs)
	case protocol.SecretCreateRequest:
		return e.createSecret(ctx, c)
	case protocol.SecretIdentifiersRequest:
		return e.listSecrets(ctx, c.OrganizationID)
	case protocol.SecretPutRequest:
		return e.updateSecret(ctx, c)
	case protocol.SecretsDeleteRequest:
		return e.deleteSecrets(ctx, c.IDs)
	case protocol.SecretsSyncRequest:
		return e.syncSecrets(ctx, c)
	}
	return nil, NewInvalidRequestError(fmt.Sprintf("unsupported secrets command %T", cmd), nil)
}

// loadSecret fetches a secret visible to s. Secrets of other organizations
// are reported as not found.
func (e *Engine) loadSecret(ctx context.Context, s *session, id uuid.UUID) (*stores.Secret, error) {
	sec, err := e.store.GetSecret(ctx, id)
	if stores.IsNotFound(err) || (err == nil && sec.OrganizationID != s.OrganizationID) {
		return nil, NewNotFoundError("Secret", id.String())
	}
	if err != nil {
		return nil, NewInternalError("Failed to read secret", err)
	}
	return sec, nil
}

func (e *Engine) decryptSecret(sec *stores.Secret) (*protocol.SecretResponse, error) {
	ad := []byte(sec.ID.String())
	value, err := e.sealer.open(sec.Value, ad)
	if err != nil {
		return nil, NewInternalError("Failed to decrypt secret", err)
	}
	note, err := e.sealer.open(sec.Note, ad)
	if err != nil {
		return nil, NewInternalError("Failed to decrypt secret", err)
	}

	resp := &protocol.SecretResponse{
		ID:             sec.ID,
		OrganizationID: sec.OrganizationID,
		Key:            sec.Key,
		Value:          value,
		Note:           note,
		CreationDate:   sec.CreatedAt,
		RevisionDate:   sec.RevisionDate,
	}
	if sec.ProjectID.Valid {
		pid := sec.ProjectID.UUID
		resp.ProjectID = &pid
	}
	return resp, nil
}

func (e *Engine) sealSecret(sec *stores.Secret, value, note string) error {
	ad := []byte(sec.ID.String())
	var err error
	if sec.Value, err = e.sealer.seal(value, ad); err != nil {
		return NewInternalError("Failed to encrypt secret", err)
	}
	if sec.Note, err = e.sealer.seal(note, ad); err != nil {
		return NewInternalError("Failed to encrypt secret", err)
	}
	return nil
}

// resolveProject checks that at most one project is given and that it
// belongs to the session organization.
func (e *Engine) resolveProject(ctx context.Context, s *session, ids []uuid.UUID) (uuid.NullUUID, error) {
	if len(ids) == 0 {
		return uuid.NullUUID{}, nil
	}
	if len(ids) > 1 {
		return uuid.NullUUID{}, NewInvalidRequestError("A secret can belong to at most one project", nil)
	}
	p, err := e.store.GetProject(ctx, ids[0])
	if stores.IsNotFound(err) || (err == nil && p.OrganizationID != s.OrganizationID) {
		return uuid.NullUUID{}, NewNotFoundError("Project", ids[0].String())
	}
	if err != nil {
		return uuid.NullUUID{}, NewInternalError("Failed to read project", err)
	}
	return uuid.NullUUID{UUID: p.ID, Valid: true}, nil
}

func (e *Engine) getSecret(ctx context.Context, id uuid.UUID) (*protocol.SecretResponse, error) {
	s, err := e.requireSession(ctx, nil)
	if err != nil {
		return nil, err
	}
	sec, err := e.loadSecret(ctx, s, id)
	if err != nil {
		return nil, err
	}
	return e.decryptSecret(sec)
}

func (e *Engine) getSecrets(ctx context.Context, ids []uuid.UUID) (*protocol.SecretsResponse, error) {
	s, err := e.requireSession(ctx, nil)
	if err != nil {
		return nil, err
	}
	resp := &protocol.SecretsResponse{Data: make([]protocol.SecretResponse, 0, len(ids))}
	for _, id := range ids {
		sec, err := e.loadSecret(ctx, s, id)
		if err != nil {
			return nil, err
		}
		dec, err := e.decryptSecret(sec)
		if err != nil {
			return nil, err
		}
		resp.Data = append(resp.Data, *dec)
	}
	return resp, nil
}

func (e *Engine) createSecret(ctx context.Context, req protocol.SecretCreateRequest) (*protocol.SecretResponse, error) {
	s, err := e.requireSession(ctx, &req.OrganizationID)
	if err != nil {
		return nil, err
	}
	project, err := e.resolveProject(ctx, s, req.ProjectIDs)
	if err != nil {
		return nil, err
	}

	now := e.tick()
	sec := &stores.Secret{
		ID:             uuid.New(),
		OrganizationID: req.OrganizationID,
		ProjectID:      project,
		Key:            req.Key,
		CreatedAt:      now,
		RevisionDate:   now,
	}
	if err := e.sealSecret(sec, req.Value, req.Note); err != nil {
		return nil, err
	}
	if err := e.store.CreateSecret(ctx, sec); err != nil {
		return nil, NewInternalError("Failed to create secret", err)
	}

	e.publish(s, telemetry.AuditSecretCreated, sec.ID.String(), "secret created")
	return e.decryptSecret(sec)
}

func (e *Engine) listSecrets(ctx context.Context, orgID uuid.UUID) (*protocol.SecretIdentifiersResponse, error) {
	if _, err := e.requireSession(ctx, &orgID); err != nil {
		return nil, err
	}
	secrets, err := e.store.ListSecrets(ctx, orgID)
	if err != nil {
		return nil, NewInternalError("Failed to list secrets", err)
	}
	resp := &protocol.SecretIdentifiersResponse{Data: make([]protocol.SecretIdentifierResponse, 0, len(secrets))}
	for _, sec := range secrets {
		resp.Data = append(resp.Data, protocol.SecretIdentifierResponse{
			ID:             sec.ID,
			OrganizationID: sec.OrganizationID,
			Key:            sec.Key,
		})
	}
	return resp, nil
}

func (e *Engine) updateSecret(ctx context.Context, req protocol.SecretPutRequest) (*protocol.SecretResponse, error) {
	s, err := e.requireSession(ctx, &req.OrganizationID)
	if err != nil {
		return nil, err
	}
	sec, err := e.loadSecret(ctx, s, req.ID)
	if err != nil {
		return nil, err
	}
	project, err := e.resolveProject(ctx, s, req.ProjectIDs)
	if err != nil {
		return nil, err
	}

	sec.Key = req.Key
	sec.ProjectID = project
	sec.RevisionDate = e.tick()
	if err := e.sealSecret(sec, req.Value, req.Note); err != nil {
		return nil, err
	}
	if err := e.store.UpdateSecret(ctx, sec); err != nil {
		if stores.IsNotFound(err) {
			return nil, NewNotFoundError("Secret", req.ID.String())
		}
		return nil, NewInternalError("Failed to update secret", err)
	}

	e.publish(s, telemetry.AuditSecretUpdated, sec.ID.String(), "secret updated")
	return e.decryptSecret(sec)
}

// deleteSecrets deletes each id independently and reports per-id failures.
func (e *Engine) deleteSecrets(ctx context.Context, ids []uuid.UUID) (*protocol.SecretsDeleteResponse, error) {
	s, err := e.requireSession(ctx, nil)
	if err != nil {
		return nil, err
	}

	resp := &protocol.SecretsDeleteResponse{Data: make([]protocol.SecretDeleteResponse, 0, len(ids))}
	for _, id := range ids {
		entry := protocol.SecretDeleteResponse{ID: id}
		if err := e.deleteSecret(ctx, s, id); err != nil {
			msg := err.Error()
			entry.Error = &msg
		} else {
			e.publish(s, telemetry.AuditSecretDeleted, id.String(), "secret deleted")
		}
		resp.Data = append(resp.Data, entry)
	}
	return resp, nil
}

func (e *Engine) deleteSecret(ctx context.Context, s *session, id uuid.UUID) error {
	if _, err := e.loadSecret(ctx, s, id); err != nil {
		return err
	}
	if err := e.store.DeleteSecret(ctx, id, e.tick()); err != nil {
		if stores.IsNotFound(err) {
			return NewNotFoundError("Secret", id.String())
		}
		return NewInternalError("Failed to delete secret", err)
	}
	return nil
}

func (e *Engine) syncSecrets(ctx context.Context, req protocol.SecretsSyncRequest) (*protocol.SecretsSyncResponse, error) {
	s, err := e.requireSession(ctx, &req.OrganizationID)
	if err != nil {
		return nil, err
	}

	revision, err := e.store.GetOrganizationRevision(ctx, req.OrganizationID)
	if err != nil {
		return nil, NewInternalError("Failed to read organization", err)
	}
	if req.LastSyncedDate != nil && !revision.After(*req.LastSyncedDate) {
		return &protocol.SecretsSyncResponse{HasChanges: false}, nil
	}

	secrets, err := e.store.ListSecrets(ctx, s.OrganizationID)
	if err != nil {
		return nil, NewInternalError("Failed to list secrets", err)
	}
	resp := &protocol.SecretsSyncResponse{HasChanges: true, Secrets: make([]protocol.SecretResponse, 0, len(secrets))}
	for _, sec := range secrets {
		dec, err := e.decryptSecret(sec)
		if err != nil {
			return nil, err
		}
		resp.Secrets = append(resp.Secrets, *dec)
	}
	return resp, nil
}
