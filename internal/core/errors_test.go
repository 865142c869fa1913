package core

import (
	"errors"
	"net/http"
	"testing"
)

func TestServeErrorStatusCodes(t *testing.T) {
	cases := []struct {
		name string
		err  *ServeError
		want int
	}{
		{"model not found", NewModelNotFoundError("gpt-oss"), http.StatusNotFound},
		{"file not found", NewFileNotFoundError("file-abc"), http.StatusNotFound},
		{"message sequence", NewMessageSequenceError(nil, "empty"), http.StatusNotFound},
		{"function call", NewFunctionCallError(""), http.StatusNotFound},
		{"list not supported", NewListNotSupportedError(), http.StatusNotFound},
		{"not implemented", NewNotImplementedError("Stream chat is not implemented."), http.StatusNotImplemented},
		{"invalid purpose", NewInvalidPurposeError("training"), http.StatusBadRequest},
		{"download", NewDownloadError("http://x/a.png", 503, nil), http.StatusBadRequest},
		{"upstream", NewUpstreamError("runtime unreachable", nil), http.StatusBadGateway},
		{"internal", NewInternalError(errors.New("disk full")), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		if got := tc.err.HTTPStatusCode(); got != tc.want {
			t.Errorf("%s: status = %d, want %d", tc.name, got, tc.want)
		}
	}
}

func TestServeErrorEnvelope(t *testing.T) {
	env := NewModelNotFoundError("qwen-vl").Envelope()

	if env["object"] != "error" {
		t.Fatalf("object = %v, want error", env["object"])
	}
	if env["type"] != "NotFoundError" {
		t.Fatalf("type = %v, want NotFoundError", env["type"])
	}
	if env["code"] != http.StatusNotFound {
		t.Fatalf("code = %v, want 404", env["code"])
	}
	if param, ok := env["param"]; !ok || param != nil {
		t.Fatalf("param = %v, want explicit null", param)
	}
	if env["message"] != "The model `qwen-vl` does not exist." {
		t.Fatalf("message = %v", env["message"])
	}
}

func TestMessageSequenceErrorCarriesMessages(t *testing.T) {
	msgs := []ChatMessage{{Role: "assistant", Content: TextContent("hi")}}
	env := NewMessageSequenceError(msgs, "last message role assistant").Envelope()

	data, ok := env["data"].([]ChatMessage)
	if !ok || len(data) != 1 {
		t.Fatalf("data = %v, want original message list", env["data"])
	}
}

func TestServeErrorUnwrap(t *testing.T) {
	inner := errors.New("connect refused")
	err := NewUpstreamError("runtime unreachable", inner)
	if !errors.Is(err, inner) {
		t.Fatal("wrapped error lost")
	}

	var se *ServeError
	if !errors.As(error(err), &se) {
		t.Fatal("errors.As failed on ServeError")
	}
}
