package sdk

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smkit/smkit/pkg/config"
	"github.com/smkit/smkit/pkg/generator"
	"github.com/smkit/smkit/pkg/sdkerr"
)

// stubEngine answers every command with response and records the commands.
type stubEngine struct {
	mu       sync.Mutex
	commands []string
	response string
	err      error
}

func (e *stubEngine) RunCommand(_ context.Context, command string) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.commands = append(e.commands, command)
	return e.response, e.err
}

func (e *stubEngine) last(t *testing.T) map[string]interface{} {
	t.Helper()
	e.mu.Lock()
	defer e.mu.Unlock()
	require.NotEmpty(t, e.commands)
	var m map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(e.commands[len(e.commands)-1]), &m))
	return m
}

func newStubClient(t *testing.T, response string) (*Client, *stubEngine) {
	t.Helper()
	eng := &stubEngine{response: response}
	c, err := NewClient(eng)
	require.NoError(t, err)
	return c, eng
}

func dig(m map[string]interface{}, path ...string) interface{} {
	var cur interface{} = m
	for _, p := range path {
		obj, ok := cur.(map[string]interface{})
		if !ok {
			return nil
		}
		cur = obj[p]
	}
	return cur
}

func TestNewClientSettings(t *testing.T) {
	c, err := NewClient(&stubEngine{})
	require.NoError(t, err)
	assert.Equal(t, config.DefaultSettings(), c.Settings())

	eng := &stubEngine{}
	c, err = NewClient(eng, WithSettings(config.Settings{APIURL: "http://localhost:8080"}))
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8080", c.Settings().APIURL)
	assert.Equal(t, config.DefaultIdentityURL, c.Settings().IdentityURL)
	assert.Empty(t, eng.commands, "settings are not sent to the engine")

	_, err = NewClient(&stubEngine{}, WithSettings(config.Settings{DeviceType: "Toaster"}))
	assert.Error(t, err)

	_, err = NewClient(nil)
	assert.Error(t, err)
}

func TestGenerateValidationSkipsEngine(t *testing.T) {
	c, eng := newStubClient(t, `{"success":true,"data":"never"}`)

	tests := []struct {
		name   string
		params generator.Params
		want   error
	}{
		{"length", generator.Params{Length: 3, Lowercase: true}, sdkerr.ErrInvalidLength},
		{"no sets", generator.Params{Length: 10}, sdkerr.ErrNoCharacterSetEnabled},
		{"negative", generator.Params{Length: 10, Lowercase: true, MinLowercase: intPtr(-1)}, sdkerr.ErrNegativeMinimum},
		{"disabled class", generator.Params{Length: 10, Lowercase: true, MinSpecial: intPtr(1)}, sdkerr.ErrMinimumForDisabledClass},
		{"sum", generator.Params{Length: 4, Lowercase: true, Numbers: true, MinLowercase: intPtr(3), MinNumber: intPtr(2)}, sdkerr.ErrMinimumsExceedLength},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pw, err := c.Generators().Generate(context.Background(), tt.params)
			assert.Empty(t, pw)
			assert.ErrorIs(t, err, tt.want)
			assert.True(t, sdkerr.IsValidation(err))
		})
	}
	assert.Empty(t, eng.commands, "invalid params must not reach the engine")
}

func intPtr(v int) *int { return &v }

func TestGenerateSendsMinimums(t *testing.T) {
	c, eng := newStubClient(t, `{"success":true,"data":"Abc123!!"}`)

	params := generator.DefaultParams()
	params.MinNumber = intPtr(0)
	pw, err := c.Generators().Generate(context.Background(), params)
	require.NoError(t, err)
	assert.Equal(t, "Abc123!!", pw)

	req := dig(eng.last(t), "generators", "generatePassword").(map[string]interface{})
	assert.Equal(t, float64(24), req["length"])
	assert.Equal(t, true, req["avoidAmbiguous"])
	assert.Equal(t, float64(0), req["minNumber"])
	assert.NotContains(t, req, "minLowercase")
}

func TestCreateSendsEmptyNote(t *testing.T) {
	c, eng := newStubClient(t, `{"success":false,"errorMessage":"boom"}`)
	org := uuid.New()

	_, err := c.Secrets().Create(context.Background(), org, "KEY", "VALUE", nil, nil)
	require.Error(t, err)
	create := dig(eng.last(t), "secrets", "create").(map[string]interface{})
	assert.Equal(t, "", create["note"])
	assert.Equal(t, org.String(), create["organizationId"])
	assert.NotContains(t, create, "projectIds")

	id := uuid.New()
	note := "n"
	_, _ = c.Secrets().Update(context.Background(), org, id, "KEY", "VALUE", &note, []uuid.UUID{id})
	update := dig(eng.last(t), "secrets", "update").(map[string]interface{})
	assert.Equal(t, "n", update["note"])
	assert.Equal(t, []interface{}{id.String()}, update["projectIds"])
}

func TestFacadeCommandShapes(t *testing.T) {
	ctx := context.Background()
	c, eng := newStubClient(t, `{"success":false,"errorMessage":"x"}`)
	org, id := uuid.New(), uuid.New()
	since := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		call func()
		path []string
	}{
		{"login", func() { _, _ = c.Auth().LoginAccessToken(ctx, "tok", nil) }, []string{"loginAccessToken", "accessToken"}},
		{"secret get", func() { _, _ = c.Secrets().Get(ctx, id) }, []string{"secrets", "get", "id"}},
		{"secret getByIds", func() { _, _ = c.Secrets().GetByIDs(ctx, []uuid.UUID{id}) }, []string{"secrets", "getByIds", "ids"}},
		{"secret list", func() { _, _ = c.Secrets().List(ctx, org) }, []string{"secrets", "list", "organizationId"}},
		{"secret delete", func() { _, _ = c.Secrets().Delete(ctx, []uuid.UUID{id}) }, []string{"secrets", "delete", "ids"}},
		{"secret sync", func() { _, _ = c.Secrets().Sync(ctx, org, &since) }, []string{"secrets", "sync", "lastSyncedDate"}},
		{"project get", func() { _, _ = c.Projects().Get(ctx, id) }, []string{"projects", "get", "id"}},
		{"project create", func() { _, _ = c.Projects().Create(ctx, org, "p") }, []string{"projects", "create", "name"}},
		{"project list", func() { _, _ = c.Projects().List(ctx, org) }, []string{"projects", "list", "organizationId"}},
		{"project update", func() { _, _ = c.Projects().Update(ctx, org, id, "p") }, []string{"projects", "update", "id"}},
		{"project delete", func() { _, _ = c.Projects().Delete(ctx, []uuid.UUID{id}) }, []string{"projects", "delete", "ids"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.call()
			assert.NotNil(t, dig(eng.last(t), tt.path...), "command %v", eng.commands[len(eng.commands)-1])
		})
	}

	assert.Len(t, eng.commands, len(tests), "each call submits exactly one command")
}

func TestSyncWithoutDateOmitsField(t *testing.T) {
	c, eng := newStubClient(t, `{"success":true,"data":{"hasChanges":true}}`)

	resp, err := c.Secrets().Sync(context.Background(), uuid.New(), nil)
	require.NoError(t, err)
	assert.True(t, resp.HasChanges)
	assert.Empty(t, resp.Secrets)
	assert.NotContains(t, dig(eng.last(t), "secrets", "sync"), "lastSyncedDate")
}

func TestRemoteFailure(t *testing.T) {
	c, _ := newStubClient(t, `{"success":false,"errorMessage":"Secret not found"}`)

	_, err := c.Secrets().Get(context.Background(), uuid.New())
	require.Error(t, err)
	assert.ErrorIs(t, err, sdkerr.ErrRemoteOperationFailed)
	assert.Equal(t, "Secret not found", err.Error())
}

func TestPayloadDecodeFailure(t *testing.T) {
	c, _ := newStubClient(t, `{"success":true,"data":{"id":42}}`)

	_, err := c.Projects().Get(context.Background(), uuid.New())
	require.Error(t, err)
	assert.True(t, sdkerr.IsTransport(err))
}

func TestEngineErrorIsTransport(t *testing.T) {
	eng := &stubEngine{err: errors.New("socket closed")}
	c, err := NewClient(eng)
	require.NoError(t, err)

	_, err = c.Projects().List(context.Background(), uuid.New())
	assert.ErrorIs(t, err, sdkerr.ErrTransport)
}
