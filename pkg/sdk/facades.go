package sdk

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/smkit/smkit/pkg/gateway"
	"github.com/smkit/smkit/pkg/generator"
	"github.com/smkit/smkit/pkg/protocol"
)

// Auth authenticates the engine session.
type Auth struct {
	gw *gateway.Gateway
}

// LoginAccessToken logs in with a machine access token. When stateFile is
// set the engine persists the session there; its parent directory must exist.
func (a *Auth) LoginAccessToken(ctx context.Context, accessToken string, stateFile *string) (*protocol.AccessTokenLoginResponse, error) {
	return submit[protocol.AccessTokenLoginResponse](ctx, a.gw, protocol.LoginAccessToken{
		Request: protocol.AccessTokenLoginRequest{
			AccessToken: accessToken,
			StateFile:   stateFile,
		},
	})
}

// Secrets manages secrets.
type Secrets struct {
	gw *gateway.Gateway
}

// Get fetches one secret.
func (s *Secrets) Get(ctx context.Context, id uuid.UUID) (*protocol.SecretResponse, error) {
	return submit[protocol.SecretResponse](ctx, s.gw, protocol.Secrets{
		Command: protocol.SecretGetRequest{ID: id},
	})
}

// GetByIDs fetches several secrets.
func (s *Secrets) GetByIDs(ctx context.Context, ids []uuid.UUID) (*protocol.SecretsResponse, error) {
	return submit[protocol.SecretsResponse](ctx, s.gw, protocol.Secrets{
		Command: protocol.SecretsGetRequest{IDs: ids},
	})
}

// Create creates a secret. A nil note is sent as "".
func (s *Secrets) Create(ctx context.Context, organizationID uuid.UUID, key, value string, note *string, projectIDs []uuid.UUID) (*protocol.SecretResponse, error) {
	return submit[protocol.SecretResponse](ctx, s.gw, protocol.Secrets{
		Command: protocol.SecretCreateRequest{
			OrganizationID: organizationID,
			Key:            key,
			Value:          value,
			Note:           noteOrEmpty(note),
			ProjectIDs:     projectIDs,
		},
	})
}

// List lists the secret identifiers of an organization.
func (s *Secrets) List(ctx context.Context, organizationID uuid.UUID) (*protocol.SecretIdentifiersResponse, error) {
	return submit[protocol.SecretIdentifiersResponse](ctx, s.gw, protocol.Secrets{
		Command: protocol.SecretIdentifiersRequest{OrganizationID: organizationID},
	})
}

// Update replaces a secret. A nil note is sent as "".
func (s *Secrets) Update(ctx context.Context, organizationID, id uuid.UUID, key, value string, note *string, projectIDs []uuid.UUID) (*protocol.SecretResponse, error) {
	return submit[protocol.SecretResponse](ctx, s.gw, protocol.Secrets{
		Command: protocol.SecretPutRequest{
			ID:             id,
			OrganizationID: organizationID,
			Key:            key,
			Value:          value,
			Note:           noteOrEmpty(note),
			ProjectIDs:     projectIDs,
		},
	})
}

// Delete deletes secrets. The result has one entry per id; a successful
// call can still contain per-entry failures.
func (s *Secrets) Delete(ctx context.Context, ids []uuid.UUID) (*protocol.SecretsDeleteResponse, error) {
	return submit[protocol.SecretsDeleteResponse](ctx, s.gw, protocol.Secrets{
		Command: protocol.SecretsDeleteRequest{IDs: ids},
	})
}

// Sync reports whether the organization's secrets changed since
// lastSyncedDate, returning them if so. A nil date always reports changes.
func (s *Secrets) Sync(ctx context.Context, organizationID uuid.UUID, lastSyncedDate *time.Time) (*protocol.SecretsSyncResponse, error) {
	return submit[protocol.SecretsSyncResponse](ctx, s.gw, protocol.Secrets{
		Command: protocol.SecretsSyncRequest{
			OrganizationID: organizationID,
			LastSyncedDate: lastSyncedDate,
		},
	})
}

func noteOrEmpty(note *string) string {
	if note == nil {
		return ""
	}
	return *note
}

// Projects manages projects.
type Projects struct {
	gw *gateway.Gateway
}

// Get fetches one project.
func (p *Projects) Get(ctx context.Context, id uuid.UUID) (*protocol.ProjectResponse, error) {
	return submit[protocol.ProjectResponse](ctx, p.gw, protocol.Projects{
		Command: protocol.ProjectGetRequest{ID: id},
	})
}

// Create creates a project.
func (p *Projects) Create(ctx context.Context, organizationID uuid.UUID, name string) (*protocol.ProjectResponse, error) {
	return submit[protocol.ProjectResponse](ctx, p.gw, protocol.Projects{
		Command: protocol.ProjectCreateRequest{OrganizationID: organizationID, Name: name},
	})
}

// List lists the projects of an organization.
func (p *Projects) List(ctx context.Context, organizationID uuid.UUID) (*protocol.ProjectsResponse, error) {
	return submit[protocol.ProjectsResponse](ctx, p.gw, protocol.Projects{
		Command: protocol.ProjectsListRequest{OrganizationID: organizationID},
	})
}

// Update renames a project.
func (p *Projects) Update(ctx context.Context, organizationID, id uuid.UUID, name string) (*protocol.ProjectResponse, error) {
	return submit[protocol.ProjectResponse](ctx, p.gw, protocol.Projects{
		Command: protocol.ProjectPutRequest{ID: id, OrganizationID: organizationID, Name: name},
	})
}

// Delete deletes projects, reporting the outcome per id.
func (p *Projects) Delete(ctx context.Context, ids []uuid.UUID) (*protocol.ProjectsDeleteResponse, error) {
	return submit[protocol.ProjectsDeleteResponse](ctx, p.gw, protocol.Projects{
		Command: protocol.ProjectsDeleteRequest{IDs: ids},
	})
}

// Generators runs engine-side generators.
type Generators struct {
	gw *gateway.Gateway
}

// Generate returns a password matching params. Invalid params fail with a
// validation error before anything is sent to the engine.
func (g *Generators) Generate(ctx context.Context, params generator.Params) (string, error) {
	req, err := params.Request()
	if err != nil {
		return "", err
	}
	password, err := submit[string](ctx, g.gw, protocol.Generators{Command: req})
	if err != nil {
		return "", err
	}
	return *password, nil
}
