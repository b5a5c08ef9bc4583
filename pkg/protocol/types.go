// Package protocol defines the JSON command protocol spoken between the SDK
// and a secrets-management engine: the request records, the tagged command
// tree, and the response envelope with its payloads.
package protocol

import (
	"time"

	"github.com/google/uuid"
)

// DeviceType identifies the kind of client talking to the engine.
type DeviceType string

const (
	DeviceTypeSDK            DeviceType = "SDK"
	DeviceTypeLinuxDesktop   DeviceType = "LinuxDesktop"
	DeviceTypeMacOsDesktop   DeviceType = "MacOsDesktop"
	DeviceTypeWindowsCLI     DeviceType = "WindowsCLI"
	DeviceTypeLinuxCLI       DeviceType = "LinuxCLI"
	DeviceTypeMacOsCLI       DeviceType = "MacOsCLI"
	DeviceTypeServer         DeviceType = "Server"
	DeviceTypeUnknownBrowser DeviceType = "UnknownBrowser"
)

// ClientSettings is passed to the engine when it is created. Any field left
// nil falls back to the engine's default.
type ClientSettings struct {
	APIURL      *string     `json:"apiUrl,omitempty"`
	IdentityURL *string     `json:"identityUrl,omitempty"`
	UserAgent   *string     `json:"userAgent,omitempty"`
	DeviceType  *DeviceType `json:"deviceType,omitempty"`
}

// Request records. Field names on the wire are fixed and case-sensitive.

// AccessTokenLoginRequest authenticates with a machine access token.
type AccessTokenLoginRequest struct {
	AccessToken string  `json:"accessToken" validate:"required"`
	StateFile   *string `json:"stateFile,omitempty"`
}

// SecretGetRequest fetches one secret.
type SecretGetRequest struct {
	ID uuid.UUID `json:"id" validate:"required"`
}

// SecretsGetRequest fetches several secrets by id.
type SecretsGetRequest struct {
	IDs []uuid.UUID `json:"ids" validate:"required,min=1"`
}

// SecretCreateRequest creates a secret in an organization.
type SecretCreateRequest struct {
	OrganizationID uuid.UUID   `json:"organizationId" validate:"required"`
	Key            string      `json:"key" validate:"required"`
	Value          string      `json:"value"`
	Note           string      `json:"note"`
	ProjectIDs     []uuid.UUID `json:"projectIds,omitempty" validate:"max=1"`
}

// SecretIdentifiersRequest lists the secrets of an organization.
type SecretIdentifiersRequest struct {
	OrganizationID uuid.UUID `json:"organizationId" validate:"required"`
}

// SecretPutRequest replaces the contents of a secret.
type SecretPutRequest struct {
	ID             uuid.UUID   `json:"id" validate:"required"`
	OrganizationID uuid.UUID   `json:"organizationId" validate:"required"`
	Key            string      `json:"key" validate:"required"`
	Value          string      `json:"value"`
	Note           string      `json:"note"`
	ProjectIDs     []uuid.UUID `json:"projectIds,omitempty" validate:"max=1"`
}

// SecretsDeleteRequest deletes several secrets.
type SecretsDeleteRequest struct {
	IDs []uuid.UUID `json:"ids" validate:"required,min=1"`
}

// SecretsSyncRequest asks whether an organization's secrets changed since
// LastSyncedDate. A nil date means "never synced".
type SecretsSyncRequest struct {
	OrganizationID uuid.UUID  `json:"organizationId" validate:"required"`
	LastSyncedDate *time.Time `json:"lastSyncedDate,omitempty"`
}

// ProjectGetRequest fetches one project.
type ProjectGetRequest struct {
	ID uuid.UUID `json:"id" validate:"required"`
}

// ProjectCreateRequest creates a project.
type ProjectCreateRequest struct {
	OrganizationID uuid.UUID `json:"organizationId" validate:"required"`
	Name           string    `json:"name" validate:"required"`
}

// ProjectsListRequest lists the projects of an organization.
type ProjectsListRequest struct {
	OrganizationID uuid.UUID `json:"organizationId" validate:"required"`
}

// ProjectPutRequest renames a project.
type ProjectPutRequest struct {
	ID             uuid.UUID `json:"id" validate:"required"`
	OrganizationID uuid.UUID `json:"organizationId" validate:"required"`
	Name           string    `json:"name" validate:"required"`
}

// ProjectsDeleteRequest deletes several projects.
type ProjectsDeleteRequest struct {
	IDs []uuid.UUID `json:"ids" validate:"required,min=1"`
}

// PasswordGeneratorRequest describes the password to generate. Nil minimums
// are omitted on the wire; an explicit zero is sent as 0.
type PasswordGeneratorRequest struct {
	Lowercase      bool `json:"lowercase"`
	Uppercase      bool `json:"uppercase"`
	Numbers        bool `json:"numbers"`
	Special        bool `json:"special"`
	Length         int  `json:"length" validate:"min=4,max=255"`
	AvoidAmbiguous bool `json:"avoidAmbiguous"`
	MinLowercase   *int `json:"minLowercase,omitempty" validate:"omitempty,min=0"`
	MinUppercase   *int `json:"minUppercase,omitempty" validate:"omitempty,min=0"`
	MinNumber      *int `json:"minNumber,omitempty" validate:"omitempty,min=0"`
	MinSpecial     *int `json:"minSpecial,omitempty" validate:"omitempty,min=0"`
}

// Response payloads.

// TwoFactorProviders lists the second factors an account requires.
type TwoFactorProviders struct {
	Authenticator *struct{}           `json:"authenticator,omitempty"`
	Email         *TwoFactorEmailInfo `json:"email,omitempty"`
	Duo           *struct{}           `json:"duo,omitempty"`
	WebAuthn      *struct{}           `json:"webAuthn,omitempty"`
}

// TwoFactorEmailInfo carries the address a code was sent to.
type TwoFactorEmailInfo struct {
	Email string `json:"email"`
}

// AccessTokenLoginResponse is the result of a login.
type AccessTokenLoginResponse struct {
	Authenticated       bool                `json:"authenticated"`
	ResetMasterPassword bool                `json:"resetMasterPassword"`
	ForcePasswordReset  bool                `json:"forcePasswordReset"`
	TwoFactor           *TwoFactorProviders `json:"twoFactor,omitempty"`
}

// SecretResponse is a fully decrypted secret.
type SecretResponse struct {
	ID             uuid.UUID  `json:"id"`
	OrganizationID uuid.UUID  `json:"organizationId"`
	ProjectID      *uuid.UUID `json:"projectId,omitempty"`
	Key            string     `json:"key"`
	Value          string     `json:"value"`
	Note           string     `json:"note"`
	CreationDate   time.Time  `json:"creationDate"`
	RevisionDate   time.Time  `json:"revisionDate"`
}

// SecretsResponse holds several secrets.
type SecretsResponse struct {
	Data []SecretResponse `json:"data"`
}

// SecretIdentifierResponse names a secret without its value.
type SecretIdentifierResponse struct {
	ID             uuid.UUID `json:"id"`
	OrganizationID uuid.UUID `json:"organizationId"`
	Key            string    `json:"key"`
}

// SecretIdentifiersResponse is the result of listing secrets.
type SecretIdentifiersResponse struct {
	Data []SecretIdentifierResponse `json:"data"`
}

// SecretDeleteResponse reports the outcome for one id of a bulk delete.
type SecretDeleteResponse struct {
	ID    uuid.UUID `json:"id"`
	Error *string   `json:"error,omitempty"`
}

// SecretsDeleteResponse holds one entry per requested id.
type SecretsDeleteResponse struct {
	Data []SecretDeleteResponse `json:"data"`
}

// SecretsSyncResponse reports whether secrets changed. Secrets is only set
// when HasChanges is true.
type SecretsSyncResponse struct {
	HasChanges bool             `json:"hasChanges"`
	Secrets    []SecretResponse `json:"secrets,omitempty"`
}

// ProjectResponse is a project.
type ProjectResponse struct {
	ID             uuid.UUID `json:"id"`
	OrganizationID uuid.UUID `json:"organizationId"`
	Name           string    `json:"name"`
	CreationDate   time.Time `json:"creationDate"`
	RevisionDate   time.Time `json:"revisionDate"`
}

// ProjectsResponse holds several projects.
type ProjectsResponse struct {
	Data []ProjectResponse `json:"data"`
}

// ProjectDeleteResponse reports the outcome for one id of a bulk delete.
type ProjectDeleteResponse struct {
	ID    uuid.UUID `json:"id"`
	Error *string   `json:"error,omitempty"`
}

// ProjectsDeleteResponse holds one entry per requested id.
type ProjectsDeleteResponse struct {
	Data []ProjectDeleteResponse `json:"data"`
}
