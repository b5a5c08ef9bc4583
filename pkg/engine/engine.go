package engine

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/smkit/smkit/pkg/protocol"
	"github.com/smkit/smkit/pkg/stores"
	"github.com/smkit/smkit/pkg/telemetry"
)

// Config configures an Engine.
type Config struct {
	// Store persists organizations, tokens, projects and secrets. Required.
	Store stores.Store

	// Settings are the client settings the engine was created with.
	Settings protocol.ClientSettings

	// Passphrase protects secret values at rest. Required.
	Passphrase string

	// KDF applies only when the store is initialized for the first time.
	KDF KDFParams

	// BcryptCost is used when issuing access tokens. Zero means bcrypt.DefaultCost.
	BcryptCost int

	Logger  *telemetry.Logger
	Metrics *telemetry.Metrics
	Tracer  *telemetry.Tracer

	// Audit receives login and mutation events. The engine subscribes a
	// sink that persists them to Store. Nil creates a synchronous publisher.
	Audit *telemetry.AuditPublisher

	// SessionIdleTimeout drops named sessions (see WithSession) unused for
	// longer than this. Zero keeps them until Close or EndSession.
	SessionIdleTimeout time.Duration

	// Clock overrides time.Now.
	Clock func() time.Time
}

// Engine executes protocol commands against a store. It holds one
// authenticated session per session ID (see WithSession) and is safe for
// concurrent use.
type Engine struct {
	store      stores.Store
	settings   protocol.ClientSettings
	sealer     *sealer
	validate   *validator.Validate
	bcryptCost int
	clock      func() time.Time

	logger  *telemetry.Logger
	metrics *telemetry.Metrics
	tracer  *telemetry.Tracer
	audit   *telemetry.AuditPublisher

	idleTimeout time.Duration

	mu       sync.Mutex
	sessions map[string]*boundSession
	lastTick time.Time
	closed   bool
}

type boundSession struct {
	*session
	lastUsed time.Time
}

type sessionIDKey struct{}

// WithSession scopes the commands run with ctx to the session named id.
// Transports that serve several callers from one engine give each caller
// its own id; commands without one share the default session.
func WithSession(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, sessionIDKey{}, id)
}

// SessionID returns the session named by ctx, or "" for the default one.
func SessionID(ctx context.Context) string {
	id, _ := ctx.Value(sessionIDKey{}).(string)
	return id
}

// New creates an engine, deriving the storage key from the passphrase.
func New(ctx context.Context, cfg Config) (*Engine, error) {
	if cfg.Store == nil {
		return nil, errors.New("store is required")
	}

	s, err := openSealer(ctx, cfg.Store, cfg.Passphrase, cfg.KDF)
	if err != nil {
		return nil, err
	}

	e := &Engine{
		store:      cfg.Store,
		settings:   cfg.Settings,
		sealer:     s,
		validate:   newValidator(),
		bcryptCost: cfg.BcryptCost,
		clock:      cfg.Clock,

		idleTimeout: cfg.SessionIdleTimeout,
		sessions:    make(map[string]*boundSession),
		logger:     cfg.Logger,
		metrics:    cfg.Metrics,
		tracer:     cfg.Tracer,
		audit:      cfg.Audit,
	}
	if e.bcryptCost == 0 {
		e.bcryptCost = bcrypt.DefaultCost
	}
	if e.clock == nil {
		e.clock = time.Now
	}
	if e.logger == nil {
		e.logger = telemetry.NopLogger()
	}
	e.logger = e.logger.NewComponentLogger("engine")
	if e.tracer == nil {
		e.tracer = telemetry.NoopTracer()
	}
	if e.audit == nil {
		e.audit = telemetry.NewAuditPublisher(telemetry.AuditConfig{Enabled: true})
	}
	e.audit.Subscribe(storeAuditSink(cfg.Store, e.logger))

	fields := map[string]interface{}{}
	if cfg.Settings.UserAgent != nil {
		fields["user_agent"] = *cfg.Settings.UserAgent
	}
	if cfg.Settings.DeviceType != nil {
		fields["device_type"] = string(*cfg.Settings.DeviceType)
	}
	e.logger.WithFields(fields).Debug("engine created")

	return e, nil
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		return jsonFieldName(f.Tag.Get("json"))
	})
	return v
}

// Close ends every session. Further commands fail with ErrClosed.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = true
	clear(e.sessions)
	return nil
}

// EndSession forgets the session named id.
func (e *Engine) EndSession(id string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.sessions, id)
}

// bind stores s as the session of ctx, dropping idle named sessions.
func (e *Engine) bind(ctx context.Context, s *session) {
	now := e.now()
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.idleTimeout > 0 {
		for id, b := range e.sessions {
			if id != "" && now.Sub(b.lastUsed) > e.idleTimeout {
				delete(e.sessions, id)
			}
		}
	}
	e.sessions[SessionID(ctx)] = &boundSession{session: s, lastUsed: now}
}

// RunCommand executes one serialized command and returns the serialized
// response envelope. Command failures are reported in the envelope; the
// error is non-nil only when the engine is closed.
func (e *Engine) RunCommand(ctx context.Context, input string) (string, error) {
	e.mu.Lock()
	closed := e.closed
	e.mu.Unlock()
	if closed {
		return "", ErrClosed
	}

	timer := telemetry.NewTimer()

	cmd, err := protocol.DecodeCommand(input)
	if err != nil {
		e.metrics.RecordEngineCommand("invalid", "", false, timer.Duration())
		e.logger.WithError(err).Debug("rejected undecodable command")
		return protocol.EncodeResponse(nil, NewInvalidRequestError("Invalid command: "+err.Error(), err)), nil
	}

	resource, operation := protocol.Tag(cmd)
	ctx, span := e.tracer.StartEngineSpan(ctx, resource, operation)
	defer span.End()

	data, err := e.dispatch(ctx, cmd)

	e.metrics.RecordEngineCommand(resource, operation, err == nil, timer.Duration())
	logger := e.logger.WithCommand(resource, operation).WithField("duration_ms", timer.Duration().Milliseconds())
	if err != nil {
		telemetry.RecordError(span, err)
		logger = logger.WithField("class", string(ClassOf(err)))
		var ee *EngineError
		if errors.As(err, &ee) && ee.Class == ErrorClassInternal {
			logger.WithError(ee.Err).Warn("command failed")
		} else {
			logger.Debug("command failed")
		}
	} else {
		telemetry.RecordSuccess(span)
		logger.Debug("command completed")
	}

	return protocol.EncodeResponse(data, err), nil
}

func (e *Engine) dispatch(ctx context.Context, cmd protocol.Command) (interface{}, error) {
	switch c := cmd.(type) {
	case protocol.LoginAccessToken:
		return e.loginAccessToken(ctx, c.Request)
	case protocol.Secrets:
		return e.secretsCommand(ctx, c.Command)
	case protocol.Projects:
		return e.projectsCommand(ctx, c.Command)
	case protocol.Generators:
		return e.generatorsCommand(c.Command)
	}
	return nil, NewInvalidRequestError(fmt.Sprintf("unsupported command %T", cmd), nil)
}

func (e *Engine) check(req interface{}) error {
	if err := e.validate.Struct(req); err != nil {
		return validationError(err)
	}
	return nil
}

func (e *Engine) generatorsCommand(cmd protocol.GeneratorsCommand) (interface{}, error) {
	switch c := cmd.(type) {
	case protocol.PasswordGeneratorRequest:
		return GeneratePassword(c)
	}
	return nil, NewInvalidRequestError(fmt.Sprintf("unsupported generator %T", cmd), nil)
}

func (e *Engine) now() time.Time {
	return e.clock().UTC()
}

// tick returns a revision timestamp strictly after the previous one.
func (e *Engine) tick() time.Time {
	e.mu.Lock()
	defer e.mu.Unlock()
	t := e.now()
	if !t.After(e.lastTick) {
		t = e.lastTick.Add(time.Microsecond)
	}
	e.lastTick = t
	return t
}

// requireSession returns the session of ctx. A non-nil orgID must match
// the session organization.
func (e *Engine) requireSession(ctx context.Context, orgID *uuid.UUID) (*session, error) {
	id := SessionID(ctx)
	now := e.now()

	e.mu.Lock()
	b := e.sessions[id]
	if b != nil && id != "" && e.idleTimeout > 0 && now.Sub(b.lastUsed) > e.idleTimeout {
		delete(e.sessions, id)
		b = nil
	}
	if b != nil {
		b.lastUsed = now
	}
	e.mu.Unlock()

	if b == nil || b.expired(now) {
		return nil, errNotAuthenticated
	}
	s := b.session
	if orgID != nil && *orgID != s.OrganizationID {
		return nil, errAccessDenied
	}
	return s, nil
}

func (e *Engine) publish(s *session, eventType, resourceID, message string) {
	ev := telemetry.AuditEvent{
		Type:       eventType,
		ResourceID: resourceID,
		Message:    message,
	}
	if s != nil {
		ev.OrganizationID = s.OrganizationID.String()
		ev.ActorID = s.TokenID.String()
	}
	if err := e.audit.Publish(ev); err != nil {
		e.logger.WithError(err).Warn("failed to publish audit event")
	}
}

func storeAuditSink(store stores.Store, logger *telemetry.Logger) telemetry.AuditSubscriber {
	optional := func(s string) *string {
		if s == "" {
			return nil
		}
		return &s
	}
	return func(ev telemetry.AuditEvent) {
		entry := &stores.AuditEntry{
			EventID:        ev.ID,
			Type:           ev.Type,
			OrganizationID: optional(ev.OrganizationID),
			ActorID:        optional(ev.ActorID),
			ResourceID:     optional(ev.ResourceID),
			Message:        ev.Message,
			Timestamp:      ev.Timestamp,
		}
		if err := store.CreateAuditEntry(context.Background(), entry); err != nil {
			logger.WithError(err).Warn("failed to persist audit event")
		}
	}
}

// CreateOrganization creates an organization and returns its ID.
func (e *Engine) CreateOrganization(ctx context.Context, name string) (uuid.UUID, error) {
	if name == "" {
		return uuid.Nil, errors.New("organization name is required")
	}
	now := e.tick()
	org := &stores.Organization{ID: uuid.New(), Name: name, RevisionDate: now, CreatedAt: now}
	if err := e.store.CreateOrganization(ctx, org); err != nil {
		return uuid.Nil, err
	}
	e.logger.WithOrganizationID(org.ID.String()).Info("organization created")
	return org.ID, nil
}

// IssueAccessToken creates a machine access token for an organization and
// returns it in its serialized form. The token is not recoverable later.
func (e *Engine) IssueAccessToken(ctx context.Context, organizationID uuid.UUID, name string, expiresAt *time.Time) (string, error) {
	if _, err := e.store.GetOrganization(ctx, organizationID); err != nil {
		return "", err
	}

	tok, err := newAccessToken(uuid.New())
	if err != nil {
		return "", err
	}
	hash, err := hashCredential(tok, e.bcryptCost)
	if err != nil {
		return "", err
	}

	row := &stores.AccessToken{
		ID:             tok.ID,
		OrganizationID: organizationID,
		Name:           name,
		SecretHash:     hash,
		ExpiresAt:      expiresAt,
		CreatedAt:      e.now(),
	}
	if err := e.store.CreateAccessToken(ctx, row); err != nil {
		return "", err
	}
	e.logger.WithOrganizationID(organizationID.String()).WithField("token_id", tok.ID.String()).Info("access token issued")
	return tok.String(), nil
}
