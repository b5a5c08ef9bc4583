package protocol

import (
	"encoding/json"
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
)

func intPtr(v int) *int { return &v }

func TestEncodeCommand(t *testing.T) {
	id := uuid.MustParse("6a1b2c3d-0000-4000-8000-000000000001")
	org := uuid.MustParse("0b9d3f6e-0000-4000-8000-0000000000aa")
	state := "/tmp/state"

	tests := []struct {
		name string
		cmd  Command
		want string
	}{
		{
			name: "login with state file",
			cmd:  LoginAccessToken{Request: AccessTokenLoginRequest{AccessToken: "tok", StateFile: &state}},
			want: `{"loginAccessToken":{"accessToken":"tok","stateFile":"/tmp/state"}}`,
		},
		{
			name: "login omits state file",
			cmd:  LoginAccessToken{Request: AccessTokenLoginRequest{AccessToken: "tok"}},
			want: `{"loginAccessToken":{"accessToken":"tok"}}`,
		},
		{
			name: "secrets get",
			cmd:  Secrets{Command: SecretGetRequest{ID: id}},
			want: `{"secrets":{"get":{"id":"6a1b2c3d-0000-4000-8000-000000000001"}}}`,
		},
		{
			name: "secrets create keeps empty note",
			cmd: Secrets{Command: SecretCreateRequest{
				OrganizationID: org, Key: "k", Value: "v", Note: "",
			}},
			want: `{"secrets":{"create":{"organizationId":"0b9d3f6e-0000-4000-8000-0000000000aa","key":"k","value":"v","note":""}}}`,
		},
		{
			name: "secrets list",
			cmd:  Secrets{Command: SecretIdentifiersRequest{OrganizationID: org}},
			want: `{"secrets":{"list":{"organizationId":"0b9d3f6e-0000-4000-8000-0000000000aa"}}}`,
		},
		{
			name: "projects delete",
			cmd:  Projects{Command: ProjectsDeleteRequest{IDs: []uuid.UUID{id}}},
			want: `{"projects":{"delete":{"ids":["6a1b2c3d-0000-4000-8000-000000000001"]}}}`,
		},
		{
			name: "generate with explicit zero minimum",
			cmd: Generators{Command: PasswordGeneratorRequest{
				Lowercase: true, Length: 8, MinLowercase: intPtr(0),
			}},
			want: `{"generators":{"generatePassword":{"lowercase":true,"uppercase":false,"numbers":false,"special":false,"length":8,"avoidAmbiguous":false,"minLowercase":0}}}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := EncodeCommand(tt.cmd)
			if err != nil {
				t.Fatalf("EncodeCommand() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("EncodeCommand() =\n%s\nwant\n%s", got, tt.want)
			}
		})
	}
}

func TestEncodeCommandNil(t *testing.T) {
	cmds := []Command{nil, Secrets{}, Projects{}, Generators{}}
	for _, cmd := range cmds {
		if _, err := EncodeCommand(cmd); !errors.Is(err, ErrNilCommand) {
			t.Errorf("EncodeCommand(%#v) error = %v, want ErrNilCommand", cmd, err)
		}
	}
}

func TestEncodeCommandPointer(t *testing.T) {
	cmds := []Command{
		Secrets{Command: (*SecretGetRequest)(nil)},
		Secrets{Command: &SecretGetRequest{}},
		Projects{Command: (*ProjectsListRequest)(nil)},
		Generators{Command: (*PasswordGeneratorRequest)(nil)},
	}
	for _, cmd := range cmds {
		if _, err := EncodeCommand(cmd); !errors.Is(err, ErrPointerCommand) {
			t.Errorf("EncodeCommand(%#v) error = %v, want ErrPointerCommand", cmd, err)
		}
		if r, op := Tag(cmd); r == "" || op != "" {
			t.Errorf("Tag(%#v) = (%q, %q), want resource and no operation", cmd, r, op)
		}
	}
}

func TestCommandRoundTrip(t *testing.T) {
	org := uuid.New()
	synced := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	cmds := []Command{
		Secrets{Command: SecretPutRequest{
			ID: uuid.New(), OrganizationID: org, Key: "k", Value: "v", Note: "n",
			ProjectIDs: []uuid.UUID{uuid.New()},
		}},
		Secrets{Command: SecretsSyncRequest{OrganizationID: org, LastSyncedDate: &synced}},
		Secrets{Command: SecretsSyncRequest{OrganizationID: org}},
		Projects{Command: ProjectPutRequest{ID: uuid.New(), OrganizationID: org, Name: "p"}},
		Generators{Command: PasswordGeneratorRequest{
			Lowercase: true, Uppercase: true, Length: 12, MinUppercase: intPtr(3),
		}},
	}

	for _, cmd := range cmds {
		s, err := EncodeCommand(cmd)
		if err != nil {
			t.Fatalf("EncodeCommand() error = %v", err)
		}
		got, err := DecodeCommand(s)
		if err != nil {
			t.Fatalf("DecodeCommand(%s) error = %v", s, err)
		}
		if !reflect.DeepEqual(got, cmd) {
			t.Errorf("round trip mismatch:\n got %#v\nwant %#v", got, cmd)
		}
	}
}

func TestDecodeCommandRejects(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr string
	}{
		{"empty object", `{}`, "exactly one tag"},
		{"two branches", `{"secrets":{"list":{"organizationId":"0b9d3f6e-0000-4000-8000-0000000000aa"}},"projects":{}}`, "exactly one tag"},
		{"unknown resource", `{"folders":{}}`, "unknown command"},
		{"unknown operation", `{"secrets":{"purge":{}}}`, "unknown secrets operation"},
		{"two operations", `{"projects":{"get":{},"list":{}}}`, "exactly one tag"},
		{"unknown field", `{"generators":{"generatePassword":{"length":8,"symbols":true}}}`, "unknown field"},
		{"wrong case", `{"Secrets":{}}`, "unknown command"},
		{"not json", `secrets`, "invalid command"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeCommand(tt.input)
			if err == nil {
				t.Fatal("DecodeCommand() expected error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("DecodeCommand() error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestTag(t *testing.T) {
	tests := []struct {
		cmd          Command
		resource, op string
	}{
		{LoginAccessToken{}, TagLoginAccessToken, ""},
		{Secrets{Command: SecretsDeleteRequest{}}, TagSecrets, OpDelete},
		{Secrets{Command: SecretsGetRequest{}}, TagSecrets, OpGetByIDs},
		{Projects{Command: ProjectCreateRequest{}}, TagProjects, OpCreate},
		{Generators{Command: PasswordGeneratorRequest{}}, TagGenerators, OpGeneratePassword},
	}
	for _, tt := range tests {
		r, op := Tag(tt.cmd)
		if r != tt.resource || op != tt.op {
			t.Errorf("Tag(%T) = (%q, %q), want (%q, %q)", tt.cmd, r, op, tt.resource, tt.op)
		}
	}
}

func TestGeneratorRequestMinimumsOmitted(t *testing.T) {
	data, err := json.Marshal(PasswordGeneratorRequest{Length: 10, Numbers: true})
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(string(data), "min") {
		t.Errorf("unset minimums must be omitted, got %s", data)
	}
}
