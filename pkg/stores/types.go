package stores

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// Organization owns projects, secrets and access tokens.
type Organization struct {
	ID           uuid.UUID `json:"id"`
	Name         string    `json:"name"`
	RevisionDate time.Time `json:"revision_date"` // bumped on every secret mutation
	CreatedAt    time.Time `json:"created_at"`
}

// AccessToken is a machine credential bound to one organization.
type AccessToken struct {
	ID             uuid.UUID  `json:"id"`
	OrganizationID uuid.UUID  `json:"organization_id"`
	Name           string     `json:"name"`
	SecretHash     []byte     `json:"-"` // bcrypt
	ExpiresAt      *time.Time `json:"expires_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}

// Expired reports whether the token has expired at now.
func (t *AccessToken) Expired(now time.Time) bool {
	return t.ExpiresAt != nil && !now.Before(*t.ExpiresAt)
}

// Project groups secrets.
type Project struct {
	ID             uuid.UUID `json:"id"`
	OrganizationID uuid.UUID `json:"organization_id"`
	Name           string    `json:"name"`
	CreatedAt      time.Time `json:"created_at"`
	RevisionDate   time.Time `json:"revision_date"`
}

// Secret is a stored secret. Value and Note hold ciphertext.
type Secret struct {
	ID             uuid.UUID     `json:"id"`
	OrganizationID uuid.UUID     `json:"organization_id"`
	ProjectID      uuid.NullUUID `json:"project_id"`
	Key            string        `json:"key"`
	Value          []byte        `json:"-"`
	Note           []byte        `json:"-"`
	CreatedAt      time.Time     `json:"created_at"`
	RevisionDate   time.Time     `json:"revision_date"`
}

// AuditEntry is a persisted audit event.
type AuditEntry struct {
	ID             int64     `json:"id"`
	EventID        string    `json:"event_id"`
	Type           string    `json:"type"` // e.g. "secret.created", "auth.login"
	OrganizationID *string   `json:"organization_id,omitempty"`
	ActorID        *string   `json:"actor_id,omitempty"`
	ResourceID     *string   `json:"resource_id,omitempty"`
	Message        string    `json:"message"`
	Timestamp      time.Time `json:"timestamp"`
}

// AuditFilter narrows ListAuditEntries. Nil fields match everything.
type AuditFilter struct {
	Type           *string
	OrganizationID *string
	Limit          int
	Offset         int
}

// Store defines the interface for the persistence layer
type Store interface {
	// Lifecycle
	Init(ctx context.Context) error
	Close() error
	Migrate(ctx context.Context) error

	// Meta
	GetMeta(ctx context.Context, key string) ([]byte, error)
	SetMeta(ctx context.Context, key string, value []byte) error

	// Organizations
	CreateOrganization(ctx context.Context, org *Organization) error
	GetOrganization(ctx context.Context, id uuid.UUID) (*Organization, error)
	GetOrganizationRevision(ctx context.Context, id uuid.UUID) (time.Time, error)

	// Access tokens
	CreateAccessToken(ctx context.Context, token *AccessToken) error
	GetAccessToken(ctx context.Context, id uuid.UUID) (*AccessToken, error)

	// Projects
	CreateProject(ctx context.Context, project *Project) error
	GetProject(ctx context.Context, id uuid.UUID) (*Project, error)
	ListProjects(ctx context.Context, organizationID uuid.UUID) ([]*Project, error)
	UpdateProject(ctx context.Context, project *Project) error
	DeleteProject(ctx context.Context, id uuid.UUID, at time.Time) error

	// Secrets
	CreateSecret(ctx context.Context, secret *Secret) error
	GetSecret(ctx context.Context, id uuid.UUID) (*Secret, error)
	ListSecrets(ctx context.Context, organizationID uuid.UUID) ([]*Secret, error)
	UpdateSecret(ctx context.Context, secret *Secret) error
	DeleteSecret(ctx context.Context, id uuid.UUID, at time.Time) error

	// Audit
	CreateAuditEntry(ctx context.Context, entry *AuditEntry) error
	ListAuditEntries(ctx context.Context, filter AuditFilter) ([]*AuditEntry, error)

	// Utility
	HealthCheck(ctx context.Context) error
}

// IsNotFound reports whether err wraps ErrNotFound.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
