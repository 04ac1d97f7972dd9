package handlers

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AnshRaj112/planpal-backend/internal/models"
	"github.com/AnshRaj112/planpal-backend/internal/profile"
)

func TestDashboardSignedOutRedirectsWithoutLoading(t *testing.T) {
	env := newTestEnv(t)

	for _, token := range []string{"", "expired-token"} {
		resp := env.do(http.MethodGet, "/dashboard", token, nil, "")

		assert.Equal(t, http.StatusFound, resp.StatusCode)
		assert.Equal(t, "/login", resp.Header.Get("Location"))
	}
	assert.Zero(t, env.profiles.loads.Load())
}

func TestDashboardSignedIn(t *testing.T) {
	env := newTestEnv(t)
	token := env.signIn(identityFor("u1", "pat@example.com", "", ""))
	require.NoError(t, env.repo.Merge(context.Background(), "u1", profile.Patch{Name: profile.String("Pat")}))

	resp := env.do(http.MethodGet, "/dashboard", token, nil, "")

	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decode[models.DashboardResponse](t, resp)
	assert.Equal(t, "Pat", body.User.Name)
	assert.Equal(t, models.DashboardLinks, body.Links)
	assert.Empty(t, body.Message)
	assert.EqualValues(t, 1, env.profiles.loads.Load())
}

func TestDashboardNewUserFallsBackToEmail(t *testing.T) {
	env := newTestEnv(t)
	token := env.signIn(identityFor("u2", "river@example.com", "", ""))

	resp := env.do(http.MethodGet, "/dashboard", token, nil, "")

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "river", decode[models.DashboardResponse](t, resp).User.Name)
}
