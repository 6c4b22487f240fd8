package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/XavierBriggs/Apollo/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret-not-for-production"

func TestValidateToken_RoundTrip(t *testing.T) {
	mgr := NewManager(testSecret, time.Hour)

	token, err := mgr.GenerateToken("user-1", "u@example.com", "premium", true)
	require.NoError(t, err)

	id, err := mgr.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", id.UserID)
	assert.Equal(t, models.TierPremium, id.Role)
	assert.True(t, id.SubscriptionActive)
}

func TestValidateToken_WrongSecret(t *testing.T) {
	token, err := NewManager("other-secret", time.Hour).GenerateToken("user-1", "", "basic", true)
	require.NoError(t, err)

	_, err = NewManager(testSecret, time.Hour).ValidateToken(token)
	assert.Error(t, err)
}

func TestValidateToken_Expired(t *testing.T) {
	mgr := NewManager(testSecret, -time.Minute)

	token, err := mgr.GenerateToken("user-1", "", "basic", true)
	require.NoError(t, err)

	_, err = mgr.ValidateToken(token)
	assert.Error(t, err)
}

func TestValidateToken_UnknownRoleIsFree(t *testing.T) {
	mgr := NewManager(testSecret, time.Hour)

	token, err := mgr.GenerateToken("user-1", "", "platinum", true)
	require.NoError(t, err)

	id, err := mgr.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, models.TierFree, id.Role)
}

func TestEffectiveTier(t *testing.T) {
	tests := []struct {
		name string
		id   models.Identity
		want models.Tier
	}{
		{"active premium", models.Identity{Role: models.TierPremium, SubscriptionActive: true}, models.TierPremium},
		{"lapsed premium drops to free", models.Identity{Role: models.TierPremium, SubscriptionActive: false}, models.TierFree},
		{"lapsed basic drops to free", models.Identity{Role: models.TierBasic, SubscriptionActive: false}, models.TierFree},
		{"admin survives lapse", models.Identity{Role: models.TierAdmin, SubscriptionActive: false}, models.TierAdmin},
		{"free stays free", models.Identity{Role: models.TierFree}, models.TierFree},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, EffectiveTier(tt.id))
		})
	}
}

func TestIdentify_AnonymousPassesThrough(t *testing.T) {
	mgr := NewManager(testSecret, time.Hour)

	var sawIdentity bool
	handler := Identify(mgr)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, sawIdentity = IdentityFromContext(r.Context())
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/opportunities", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, sawIdentity)
}

func TestIdentify_BadTokenRejected(t *testing.T) {
	mgr := NewManager(testSecret, time.Hour)

	handler := Identify(mgr)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run on a bad token")
	}))

	req := httptest.NewRequest(http.MethodGet, "/opportunities", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "unauthenticated")
}

func TestRequireAdmin(t *testing.T) {
	mgr := NewManager(testSecret, time.Hour)

	protected := Identify(mgr)(RequireAdmin(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	})))

	t.Run("anonymous gets 401", func(t *testing.T) {
		rec := httptest.NewRecorder()
		protected.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/opportunities/refresh", nil))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("non-admin gets 403", func(t *testing.T) {
		token, err := mgr.GenerateToken("user-1", "", "premium", true)
		require.NoError(t, err)

		req := httptest.NewRequest(http.MethodPost, "/opportunities/refresh", nil)
		req.Header.Set("Authorization", "Bearer "+token)

		rec := httptest.NewRecorder()
		protected.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("admin passes", func(t *testing.T) {
		token, err := mgr.GenerateToken("ops-1", "", "admin", true)
		require.NoError(t, err)

		req := httptest.NewRequest(http.MethodPost, "/opportunities/refresh", nil)
		req.Header.Set("Authorization", "Bearer "+token)

		rec := httptest.NewRecorder()
		protected.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusAccepted, rec.Code)
	})
}
