package main

import (
	"encoding/json"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"golang.org/x/oauth2"
)

func TestCallbackCode(t *testing.T) {
	tests := []struct {
		name    string
		query   string
		want    string
		wantErr bool
	}{
		{"ok", "?state=s1&code=abc", "abc", false},
		{"provider error", "?error=access_denied", "", true},
		{"wrong state", "?state=other&code=abc", "", true},
		{"missing code", "?state=s1", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := callbackCode(httptest.NewRequest("GET", "/callback"+tt.query, nil), "s1")
			if (err != nil) != tt.wantErr || got != tt.want {
				t.Fatalf("callbackCode = %q, %v", got, err)
			}
		})
	}
}

func TestSaveToken(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token.json")
	if err := saveToken(path, &oauth2.Token{AccessToken: "a", RefreshToken: "r"}); err != nil {
		t.Fatal(err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Fatalf("mode = %v", info.Mode().Perm())
	}
	b, _ := os.ReadFile(path)
	var tok oauth2.Token
	if err := json.Unmarshal(b, &tok); err != nil || tok.RefreshToken != "r" {
		t.Fatalf("token = %+v, err %v", tok, err)
	}
}

func TestClientCredentials(t *testing.T) {
	t.Setenv("GOOGLE_OAUTH_CLIENT_JSON", "")
	t.Setenv("GOOGLE_OAUTH_CLIENT_FILE", "")
	if _, err := clientCredentials(); err == nil {
		t.Fatal("expected error without credentials")
	}
	t.Setenv("GOOGLE_OAUTH_CLIENT_JSON", `{"installed":{}}`)
	b, err := clientCredentials()
	if err != nil || string(b) != `{"installed":{}}` {
		t.Fatalf("credentials = %s, %v", b, err)
	}
}
