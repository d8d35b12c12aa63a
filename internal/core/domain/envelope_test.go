package domain

import (
	"errors"
	"reflect"
	"strings"
	"testing"
)

func TestDecodeEnvelope(t *testing.T) {
	body := []byte(`{"jsonrpc":"2.0","id":7,"method":"set","params":["k","v",3,true]}`)
	env, err := DecodeEnvelope(body)
	if err != nil {
		t.Fatalf("DecodeEnvelope: %v", err)
	}
	if env.ProtocolVersion != JSONRPCVersion {
		t.Errorf("ProtocolVersion = %q", env.ProtocolVersion)
	}
	if string(env.RequestID) != "7" {
		t.Errorf("RequestID = %s, want 7", env.RequestID)
	}
	want := []string{"set", "k", "v", "3", "true"}
	if got := env.Args(); !reflect.DeepEqual(got, want) {
		t.Errorf("Args() = %v, want %v", got, want)
	}
}

func TestDecodeEnvelope_Errors(t *testing.T) {
	tests := []struct {
		name string
		body string
		want error
	}{
		{"not json", `method=help`, ErrMalformedRequest},
		{"empty object", `{}`, ErrNoCommand},
		{"blank method", `{"method":"  "}`, ErrNoCommand},
		{"too many params", `{"method":"echo","params":[` + strings.Repeat(`"x",`, MaxParams) + `"x"]}`, ErrMalformedRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeEnvelope([]byte(tt.body))
			if !errors.Is(err, tt.want) {
				t.Fatalf("DecodeEnvelope() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestDecodeEnvelope_NullID(t *testing.T) {
	env, err := DecodeEnvelope([]byte(`{"id":null,"method":"help"}`))
	if err != nil {
		t.Fatalf("DecodeEnvelope: %v", err)
	}
	if env.RequestID != nil {
		t.Errorf("RequestID = %s, want nil", env.RequestID)
	}
}

func TestEnvelopeFromPath(t *testing.T) {
	env, err := EnvelopeFromPath("/rpc/get/balance/")
	if err != nil {
		t.Fatalf("EnvelopeFromPath: %v", err)
	}
	if env.Method != "get" || !reflect.DeepEqual(env.Params, []string{"balance"}) {
		t.Errorf("got %q %v", env.Method, env.Params)
	}

	if _, err := EnvelopeFromPath("/rpc"); !errors.Is(err, ErrNoCommand) {
		t.Errorf("EnvelopeFromPath(/rpc) error = %v, want ErrNoCommand", err)
	}
}

func TestEnvelopeFromFrame(t *testing.T) {
	env, err := EnvelopeFromFrame([]byte("  echo  hello\n world "))
	if err != nil {
		t.Fatalf("EnvelopeFromFrame: %v", err)
	}
	want := []string{"echo", "hello", "world"}
	if got := env.Args(); !reflect.DeepEqual(got, want) {
		t.Errorf("Args() = %v, want %v", got, want)
	}

	if _, err := EnvelopeFromFrame([]byte(" \t ")); !errors.Is(err, ErrNoCommand) {
		t.Errorf("blank frame error = %v, want ErrNoCommand", err)
	}
}
