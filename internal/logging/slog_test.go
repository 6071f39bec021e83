package logging

import (
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitizeToken(t *testing.T) {
	tests := []struct {
		name     string
		token    string
		expected string
	}{
		{"empty token", "", "<empty>"},
		{"short token", "abc", "[token:3 chars]"},
		{"jwt-like token", "eyJhbGciOiJSUzI1NiJ9.payload.sig", "[token:31 chars]"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SanitizeToken(tt.token)
			assert.Equal(t, tt.expected, got)
			if tt.token != "" {
				assert.NotContains(t, got, tt.token)
			}
		})
	}
}

func TestErrNilProducesEmptyGroup(t *testing.T) {
	attr := Err(nil)
	assert.Equal(t, slog.KindGroup, attr.Value.Kind())
	assert.Empty(t, attr.Key)
}

func TestErrCarriesMessage(t *testing.T) {
	attr := Err(errors.New("boom"))
	assert.Equal(t, KeyError, attr.Key)
	assert.Equal(t, "boom", attr.Value.String())
}

func TestAttributeKeys(t *testing.T) {
	assert.Equal(t, KeyFolder, Folder("inbox").Key)
	assert.Equal(t, "inbox", Folder("inbox").Value.String())
	assert.Equal(t, KeyMethod, Method("device").Key)
	assert.Equal(t, KeyStatus, Status(StatusSuccess).Key)
}
