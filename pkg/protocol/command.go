package protocol

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
)

// Top-level command tags.
const (
	TagLoginAccessToken = "loginAccessToken"
	TagSecrets          = "secrets"
	TagProjects         = "projects"
	TagGenerators       = "generators"
)

// Operation tags nested under a resource.
const (
	OpGet              = "get"
	OpGetByIDs         = "getByIds"
	OpCreate           = "create"
	OpList             = "list"
	OpUpdate           = "update"
	OpDelete           = "delete"
	OpSync             = "sync"
	OpGeneratePassword = "generatePassword"
)

// ErrNilCommand is returned when a command or its nested command is missing.
var ErrNilCommand = errors.New("nil command")

// ErrPointerCommand is returned for a nested command passed by pointer.
// Nested commands are values.
var ErrPointerCommand = errors.New("nested command must be a value, not a pointer")

// Command is one request to the engine. The only implementations are
// LoginAccessToken, Secrets, Projects and Generators, so a Command always
// selects exactly one branch of the protocol.
type Command interface {
	commandTag() string
}

// SecretsCommand is an operation on secrets.
type SecretsCommand interface {
	secretsOp() string
}

// ProjectsCommand is an operation on projects.
type ProjectsCommand interface {
	projectsOp() string
}

// GeneratorsCommand is a generator invocation.
type GeneratorsCommand interface {
	generatorsOp() string
}

// LoginAccessToken authenticates the engine session.
type LoginAccessToken struct {
	Request AccessTokenLoginRequest
}

// Secrets wraps a secrets operation.
type Secrets struct {
	Command SecretsCommand
}

// Projects wraps a projects operation.
type Projects struct {
	Command ProjectsCommand
}

// Generators wraps a generator operation.
type Generators struct {
	Command GeneratorsCommand
}

func (LoginAccessToken) commandTag() string { return TagLoginAccessToken }
func (Secrets) commandTag() string          { return TagSecrets }
func (Projects) commandTag() string         { return TagProjects }
func (Generators) commandTag() string       { return TagGenerators }

func (SecretGetRequest) secretsOp() string         { return OpGet }
func (SecretsGetRequest) secretsOp() string        { return OpGetByIDs }
func (SecretCreateRequest) secretsOp() string      { return OpCreate }
func (SecretIdentifiersRequest) secretsOp() string { return OpList }
func (SecretPutRequest) secretsOp() string         { return OpUpdate }
func (SecretsDeleteRequest) secretsOp() string     { return OpDelete }
func (SecretsSyncRequest) secretsOp() string       { return OpSync }

func (ProjectGetRequest) projectsOp() string     { return OpGet }
func (ProjectCreateRequest) projectsOp() string  { return OpCreate }
func (ProjectsListRequest) projectsOp() string   { return OpList }
func (ProjectPutRequest) projectsOp() string     { return OpUpdate }
func (ProjectsDeleteRequest) projectsOp() string { return OpDelete }

func (PasswordGeneratorRequest) generatorsOp() string { return OpGeneratePassword }

// Tag returns the resource and operation tags of cmd, e.g. ("secrets", "list").
// The login command has no operation.
func Tag(cmd Command) (resource, operation string) {
	switch c := cmd.(type) {
	case LoginAccessToken:
		return TagLoginAccessToken, ""
	case Secrets:
		if checkNested(c.Command) == nil {
			operation = c.Command.secretsOp()
		}
		return TagSecrets, operation
	case Projects:
		if checkNested(c.Command) == nil {
			operation = c.Command.projectsOp()
		}
		return TagProjects, operation
	case Generators:
		if checkNested(c.Command) == nil {
			operation = c.Command.generatorsOp()
		}
		return TagGenerators, operation
	default:
		return "", ""
	}
}

// EncodeCommand serializes cmd to its wire form: a single-key object whose
// key is the resource tag, nesting a single-key object for the operation.
func EncodeCommand(cmd Command) (string, error) {
	if cmd == nil {
		return "", ErrNilCommand
	}

	var payload interface{}
	switch c := cmd.(type) {
	case LoginAccessToken:
		payload = c.Request
	case Secrets:
		if err := checkNested(c.Command); err != nil {
			return "", fmt.Errorf("secrets: %w", err)
		}
		payload = map[string]interface{}{c.Command.secretsOp(): c.Command}
	case Projects:
		if err := checkNested(c.Command); err != nil {
			return "", fmt.Errorf("projects: %w", err)
		}
		payload = map[string]interface{}{c.Command.projectsOp(): c.Command}
	case Generators:
		if err := checkNested(c.Command); err != nil {
			return "", fmt.Errorf("generators: %w", err)
		}
		payload = map[string]interface{}{c.Command.generatorsOp(): c.Command}
	default:
		return "", fmt.Errorf("unsupported command type %T", cmd)
	}

	data, err := json.Marshal(map[string]interface{}{cmd.commandTag(): payload})
	if err != nil {
		return "", fmt.Errorf("failed to marshal command: %w", err)
	}
	return string(data), nil
}

// checkNested rejects a missing nested command and one passed by pointer.
func checkNested(c interface{}) error {
	if c == nil {
		return ErrNilCommand
	}
	if reflect.ValueOf(c).Kind() == reflect.Ptr {
		return fmt.Errorf("%T: %w", c, ErrPointerCommand)
	}
	return nil
}

// DecodeCommand parses the wire form of a command. Each level must hold
// exactly one known tag and request records may not carry unknown fields.
func DecodeCommand(s string) (Command, error) {
	tag, body, err := singleKey([]byte(s))
	if err != nil {
		return nil, fmt.Errorf("invalid command: %w", err)
	}

	switch tag {
	case TagLoginAccessToken:
		var req AccessTokenLoginRequest
		if err := strictUnmarshal(body, &req); err != nil {
			return nil, fmt.Errorf("invalid %s: %w", tag, err)
		}
		return LoginAccessToken{Request: req}, nil
	case TagSecrets:
		sc, err := decodeSecrets(body)
		if err != nil {
			return nil, err
		}
		return Secrets{Command: sc}, nil
	case TagProjects:
		pc, err := decodeProjects(body)
		if err != nil {
			return nil, err
		}
		return Projects{Command: pc}, nil
	case TagGenerators:
		gc, err := decodeGenerators(body)
		if err != nil {
			return nil, err
		}
		return Generators{Command: gc}, nil
	default:
		return nil, fmt.Errorf("unknown command %q", tag)
	}
}

func decodeSecrets(body json.RawMessage) (SecretsCommand, error) {
	op, inner, err := singleKey(body)
	if err != nil {
		return nil, fmt.Errorf("invalid secrets command: %w", err)
	}

	var cmd SecretsCommand
	switch op {
	case OpGet:
		cmd, err = decodeAs[SecretGetRequest](inner)
	case OpGetByIDs:
		cmd, err = decodeAs[SecretsGetRequest](inner)
	case OpCreate:
		cmd, err = decodeAs[SecretCreateRequest](inner)
	case OpList:
		cmd, err = decodeAs[SecretIdentifiersRequest](inner)
	case OpUpdate:
		cmd, err = decodeAs[SecretPutRequest](inner)
	case OpDelete:
		cmd, err = decodeAs[SecretsDeleteRequest](inner)
	case OpSync:
		cmd, err = decodeAs[SecretsSyncRequest](inner)
	default:
		return nil, fmt.Errorf("unknown secrets operation %q", op)
	}
	if err != nil {
		return nil, fmt.Errorf("invalid secrets.%s: %w", op, err)
	}
	return cmd, nil
}

func decodeProjects(body json.RawMessage) (ProjectsCommand, error) {
	op, inner, err := singleKey(body)
	if err != nil {
		return nil, fmt.Errorf("invalid projects command: %w", err)
	}

	var cmd ProjectsCommand
	switch op {
	case OpGet:
		cmd, err = decodeAs[ProjectGetRequest](inner)
	case OpCreate:
		cmd, err = decodeAs[ProjectCreateRequest](inner)
	case OpList:
		cmd, err = decodeAs[ProjectsListRequest](inner)
	case OpUpdate:
		cmd, err = decodeAs[ProjectPutRequest](inner)
	case OpDelete:
		cmd, err = decodeAs[ProjectsDeleteRequest](inner)
	default:
		return nil, fmt.Errorf("unknown projects operation %q", op)
	}
	if err != nil {
		return nil, fmt.Errorf("invalid projects.%s: %w", op, err)
	}
	return cmd, nil
}

func decodeGenerators(body json.RawMessage) (GeneratorsCommand, error) {
	op, inner, err := singleKey(body)
	if err != nil {
		return nil, fmt.Errorf("invalid generators command: %w", err)
	}

	switch op {
	case OpGeneratePassword:
		req, err := decodeAs[PasswordGeneratorRequest](inner)
		if err != nil {
			return nil, fmt.Errorf("invalid generators.%s: %w", op, err)
		}
		return req, nil
	default:
		return nil, fmt.Errorf("unknown generators operation %q", op)
	}
}

func decodeAs[T any](data json.RawMessage) (T, error) {
	var v T
	err := strictUnmarshal(data, &v)
	return v, err
}

// singleKey unpacks an object that must hold exactly one member.
func singleKey(data []byte) (string, json.RawMessage, error) {
	var m map[string]json.RawMessage
	if err := json.Unmarshal(data, &m); err != nil {
		return "", nil, err
	}
	if len(m) != 1 {
		return "", nil, fmt.Errorf("expected exactly one tag, got %d", len(m))
	}
	for k, v := range m {
		return k, v, nil
	}
	return "", nil, nil
}

func strictUnmarshal(data []byte, v interface{}) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}
