package engine

import (
	"context"

	"github.com/smkit/smkit/pkg/protocol"
	"github.com/smkit/smkit/pkg/stores"
	"github.com/smkit/smkit/pkg/telemetry"
)

func (e *Engine) loginAccessToken(ctx context.Context, req protocol.AccessTokenLoginRequest) (*protocol.AccessTokenLoginResponse, error) {
	if err := e.check(req); err != nil {
		return nil, err
	}

	s, err := e.authenticate(ctx, req)
	if err != nil {
		e.metrics.RecordLogin(false)
		e.publish(nil, telemetry.AuditLoginFailed, "", err.Error())
		return nil, err
	}

	e.bind(ctx, s)

	e.metrics.RecordLogin(true)
	e.publish(s, telemetry.AuditLogin, s.TokenID.String(), "access token login")
	return &protocol.AccessTokenLoginResponse{Authenticated: true}, nil
}

func (e *Engine) authenticate(ctx context.Context, req protocol.AccessTokenLoginRequest) (*session, error) {
	tok, err := ParseAccessToken(req.AccessToken)
	if err != nil {
		return nil, err
	}
	now := e.now()

	row, err := e.store.GetAccessToken(ctx, tok.ID)
	if err != nil {
		if stores.IsNotFound(err) {
			return nil, errTokenRejected
		}
		return nil, NewInternalError("Failed to look up access token", err)
	}
	if row.Expired(now) {
		return nil, errTokenRejected
	}

	if req.StateFile != nil {
		cached, err := loadSession(*req.StateFile, tok.ID)
		if err != nil {
			e.logger.WithError(err).Warn("ignoring unreadable state file")
		}
		if cached != nil && cached.matches(tok) && cached.OrganizationID == row.OrganizationID && !cached.expired(now) {
			e.logger.WithField("token_id", tok.ID.String()).Debug("session restored from state file")
			return cached, nil
		}
	}

	if !verifyCredential(row.SecretHash, tok) {
		return nil, errTokenRejected
	}

	s := &session{
		TokenID:         tok.ID,
		OrganizationID:  row.OrganizationID,
		Fingerprint:     tok.fingerprint(),
		AuthenticatedAt: now,
		ExpiresAt:       row.ExpiresAt,
	}
	if req.StateFile != nil {
		if err := saveSession(*req.StateFile, s); err != nil {
			return nil, NewInternalError("Failed to write state file: "+err.Error(), err)
		}
	}
	return s, nil
}
