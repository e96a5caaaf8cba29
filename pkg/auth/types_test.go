package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizedIdentity_ApplyDefaults(t *testing.T) {
	tests := []struct {
		name      string
		in        NormalizedIdentity
		wantEmail string
		wantName  string
	}{
		{
			name:      "keeps provided values",
			in:        NormalizedIdentity{Provider: "google", Email: "e@x.com", DisplayName: "E"},
			wantEmail: "e@x.com",
			wantName:  "E",
		},
		{
			name:      "name from email local part",
			in:        NormalizedIdentity{Provider: "google", Email: "bob@example.com"},
			wantEmail: "bob@example.com",
			wantName:  "bob",
		},
		{
			name:      "synthetic email and default name",
			in:        NormalizedIdentity{Provider: "github"},
			wantEmail: "github@local",
			wantName:  "User",
		},
		{
			name:      "synthetic email keeps name",
			in:        NormalizedIdentity{Provider: "github", DisplayName: "alice"},
			wantEmail: "github@local",
			wantName:  "alice",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id := tt.in
			id.ApplyDefaults()
			assert.Equal(t, tt.wantEmail, id.Email)
			assert.Equal(t, tt.wantName, id.DisplayName)
		})
	}
}

func TestEmailLocalPart(t *testing.T) {
	assert.Equal(t, "", EmailLocalPart(""))
	assert.Equal(t, "alice", EmailLocalPart("alice@example.com"))
	assert.Equal(t, "noat", EmailLocalPart("noat"))
}

func TestRole_Valid(t *testing.T) {
	assert.True(t, RoleAdmin.Valid())
	assert.True(t, RoleUser.Valid())
	assert.False(t, Role("owner").Valid())
	assert.False(t, Role("").Valid())
}

func TestPrincipal_HasRole(t *testing.T) {
	var nilPrincipal *Principal
	assert.False(t, nilPrincipal.HasRole(RoleUser))
	assert.True(t, (&Principal{Role: RoleAdmin}).IsAdmin())
	assert.False(t, (&Principal{Role: RoleUser}).IsAdmin())
}
