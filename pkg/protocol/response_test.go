package protocol

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestDecodeResponse(t *testing.T) {
	tests := []struct {
		name        string
		input       string
		wantSuccess bool
		wantMessage string
		wantData    bool
		wantErr     bool
	}{
		{
			name:        "success with data",
			input:       `{"success":true,"data":"s3cr3t"}`,
			wantSuccess: true,
			wantData:    true,
		},
		{
			name:        "failure without data",
			input:       `{"success":false,"errorMessage":"Secret not found"}`,
			wantMessage: "Secret not found",
		},
		{
			name:        "explicit null data",
			input:       `{"success":true,"data":null}`,
			wantSuccess: true,
		},
		{
			name:    "missing success",
			input:   `{"data":"x"}`,
			wantErr: true,
		},
		{
			name:    "malformed",
			input:   `{"success":tru`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := DecodeResponse[string](tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("DecodeResponse() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if resp.Success != tt.wantSuccess {
				t.Errorf("Success = %v, want %v", resp.Success, tt.wantSuccess)
			}
			if (resp.Data != nil) != tt.wantData {
				t.Errorf("Data present = %v, want %v", resp.Data != nil, tt.wantData)
			}
			if tt.wantMessage != "" && (resp.ErrorMessage == nil || *resp.ErrorMessage != tt.wantMessage) {
				t.Errorf("ErrorMessage = %v, want %q", resp.ErrorMessage, tt.wantMessage)
			}
		})
	}
}

func TestEncodeResponse(t *testing.T) {
	ok := EncodeResponse(ProjectsResponse{Data: []ProjectResponse{}}, nil)
	if ok != `{"success":true,"data":{"data":[]}}` {
		t.Errorf("EncodeResponse(success) = %s", ok)
	}

	failed := EncodeResponse(nil, errors.New("Project not found"))
	if failed != `{"success":false,"errorMessage":"Project not found"}` {
		t.Errorf("EncodeResponse(failure) = %s", failed)
	}

	unencodable := EncodeResponse(make(chan int), nil)
	resp, err := DecodeResponse[json.RawMessage](unencodable)
	if err != nil {
		t.Fatalf("DecodeResponse() error = %v", err)
	}
	if resp.Success || resp.ErrorMessage == nil {
		t.Errorf("expected failure envelope, got %s", unencodable)
	}
}

func TestDecodePayload(t *testing.T) {
	if _, err := DecodePayload[SecretResponse](nil); !errors.Is(err, ErrMissingData) {
		t.Errorf("DecodePayload(nil) error = %v, want ErrMissingData", err)
	}
	if _, err := DecodePayload[SecretResponse](json.RawMessage("null")); !errors.Is(err, ErrMissingData) {
		t.Errorf("DecodePayload(null) error = %v, want ErrMissingData", err)
	}

	got, err := DecodePayload[AccessTokenLoginResponse](json.RawMessage(
		`{"authenticated":true,"resetMasterPassword":false,"forcePasswordReset":false}`))
	if err != nil {
		t.Fatalf("DecodePayload() error = %v", err)
	}
	if !got.Authenticated || got.TwoFactor != nil {
		t.Errorf("DecodePayload() = %+v", got)
	}
}
