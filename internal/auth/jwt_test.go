package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"galleryapi/internal/model"
)

func TestNewManager_RequiresSecret(t *testing.T) {
	_, err := NewManager("", time.Hour)
	assert.ErrorIs(t, err, ErrMissingSecret)
}

func TestManager_IssueVerify(t *testing.T) {
	m, err := NewManager("test-secret", time.Hour)
	require.NoError(t, err)

	token, exp, err := m.Issue(model.Identity{UserID: "u-1", Role: model.RoleAdmin})
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), exp, 5*time.Second)

	id, err := m.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "u-1", id.UserID)
	assert.True(t, id.IsAdmin())
}

func TestManager_Issue_Invalid(t *testing.T) {
	m, _ := NewManager("test-secret", time.Hour)

	_, _, err := m.Issue(model.Identity{UserID: "", Role: model.RoleUser})
	assert.Error(t, err)

	_, _, err = m.Issue(model.Identity{UserID: "u", Role: "root"})
	assert.Error(t, err)
}

func TestManager_Verify_Rejects(t *testing.T) {
	m, _ := NewManager("test-secret", time.Hour)
	other, _ := NewManager("other-secret", time.Hour)
	good, _, err := other.Issue(model.Identity{UserID: "u-1", Role: model.RoleUser})
	require.NoError(t, err)

	expiredMgr, _ := NewManager("test-secret", time.Hour)
	expiredMgr.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	expired, _, err := expiredMgr.Issue(model.Identity{UserID: "u-1", Role: model.RoleUser})
	require.NoError(t, err)

	none := jwt.NewWithClaims(jwt.SigningMethodNone, &Claims{UserID: "u-1", Role: model.RoleAdmin})
	unsigned, err := none.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
	}{
		{"garbage", "not-a-token"},
		{"wrong secret", good},
		{"expired", expired},
		{"alg none", unsigned},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, err := m.Verify(tt.token)
			assert.ErrorIs(t, err, ErrInvalidToken)
			assert.Nil(t, id)
		})
	}
}

func TestManager_Verify_UnknownRoleDowngraded(t *testing.T) {
	m, _ := NewManager("test-secret", time.Hour)
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, &Claims{
		UserID: "u-2",
		Role:   "superuser",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})
	signed, err := tok.SignedString([]byte("test-secret"))
	require.NoError(t, err)

	id, err := m.Verify(signed)
	require.NoError(t, err)
	assert.Equal(t, model.RoleUser, id.Role)
}
