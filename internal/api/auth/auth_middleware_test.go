package auth

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/FACorreiaa/go-blogr-api/internal/types"
)

func newGateFixture(t *testing.T) (*Gate, *MockAuthRepo, string) {
	t.Helper()
	tokens := newTokenService(t, 0)
	repo := new(MockAuthRepo)
	token, err := tokens.Issue(aliceUser().Identity())
	require.NoError(t, err)
	return NewGate(tokens, repo), repo, token
}

func requestWithAuth(header string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/accounts/account", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	return req
}

func TestGate_Authenticate(t *testing.T) {
	t.Run("no header is anonymous", func(t *testing.T) {
		gate, repo, _ := newGateFixture(t)
		user, err := gate.Authenticate(requestWithAuth(""))
		assert.NoError(t, err)
		assert.Nil(t, user)
		repo.AssertNotCalled(t, "FindByEmailAndUsername", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("other scheme is anonymous", func(t *testing.T) {
		gate, _, token := newGateFixture(t)
		for _, h := range []string{"Basic dXNlcjpwYXNz", "Token " + token, "   "} {
			user, err := gate.Authenticate(requestWithAuth(h))
			assert.NoError(t, err, h)
			assert.Nil(t, user, h)
		}
	})

	t.Run("scheme only", func(t *testing.T) {
		gate, _, _ := newGateFixture(t)
		_, err := gate.Authenticate(requestWithAuth("Bearer"))
		assertReason(t, err, types.ReasonMissingCredentials)
	})

	t.Run("credential with spaces", func(t *testing.T) {
		gate, _, _ := newGateFixture(t)
		_, err := gate.Authenticate(requestWithAuth("Bearer a b"))
		assertReason(t, err, types.ReasonContainsSpaces)
	})

	t.Run("bad signature propagated", func(t *testing.T) {
		gate, _, _ := newGateFixture(t)
		other, err := NewTokenService("other-secret", 0)
		require.NoError(t, err)
		forged, err := other.Issue(aliceUser().Identity())
		require.NoError(t, err)

		_, err = gate.Authenticate(requestWithAuth("Bearer " + forged))
		assertReason(t, err, types.ReasonInvalidSignature)
	})

	t.Run("unknown user", func(t *testing.T) {
		gate, repo, token := newGateFixture(t)
		repo.On("FindByEmailAndUsername", mock.Anything, "alice@example.com", "alice").
			Return(nil, types.ErrNotFound)

		_, err := gate.Authenticate(requestWithAuth("Bearer " + token))
		assertReason(t, err, types.ReasonInvalidToken)
	})

	t.Run("directory failure is not an auth failure", func(t *testing.T) {
		gate, repo, token := newGateFixture(t)
		repo.On("FindByEmailAndUsername", mock.Anything, "alice@example.com", "alice").
			Return(nil, errors.New("connection reset"))

		_, err := gate.Authenticate(requestWithAuth("Bearer " + token))
		require.Error(t, err)
		_, isAuth := types.AuthReason(err)
		assert.False(t, isAuth)
	})

	t.Run("valid token resolves principal, case-insensitive scheme", func(t *testing.T) {
		gate, repo, token := newGateFixture(t)
		repo.On("FindByEmailAndUsername", mock.Anything, "alice@example.com", "alice").
			Return(aliceUser(), nil)

		for _, scheme := range []string{"Bearer", "bearer", "BEARER"} {
			user, err := gate.Authenticate(requestWithAuth(scheme + " " + token))
			require.NoError(t, err)
			assert.Equal(t, "alice", user.Username)
		}
	})

	t.Run("idempotent", func(t *testing.T) {
		gate, repo, token := newGateFixture(t)
		repo.On("FindByEmailAndUsername", mock.Anything, "alice@example.com", "alice").
			Return(aliceUser(), nil)

		first, err1 := gate.Authenticate(requestWithAuth("Bearer " + token))
		second, err2 := gate.Authenticate(requestWithAuth("Bearer " + token))
		require.NoError(t, err1)
		require.NoError(t, err2)
		assert.Equal(t, first, second)
	})
}

func TestAuthenticateMiddleware(t *testing.T) {
	var reached *types.User
	protected := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reached, _ = GetPrincipalFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})

	t.Run("anonymous passes without principal", func(t *testing.T) {
		gate, _, _ := newGateFixture(t)
		reached = aliceUser()
		rr := httptest.NewRecorder()

		Authenticate(gate, testLogger(), nil)(protected).ServeHTTP(rr, requestWithAuth(""))

		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Nil(t, reached)
	})

	t.Run("rejected token is 401 with reason", func(t *testing.T) {
		gate, _, _ := newGateFixture(t)
		rr := httptest.NewRecorder()

		Authenticate(gate, testLogger(), nil)(protected).ServeHTTP(rr, requestWithAuth("Bearer a b"))

		assert.Equal(t, http.StatusUnauthorized, rr.Code)
		var body types.Envelope
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
		assert.Equal(t, types.StatusClientError, body.Status)
		assert.Equal(t, types.ReasonContainsSpaces, body.Message)
	})

	t.Run("directory failure is 500", func(t *testing.T) {
		gate, repo, token := newGateFixture(t)
		repo.On("FindByEmailAndUsername", mock.Anything, mock.Anything, mock.Anything).
			Return(nil, errors.New("db down"))
		rr := httptest.NewRecorder()

		Authenticate(gate, testLogger(), nil)(protected).ServeHTTP(rr, requestWithAuth("Bearer "+token))

		assert.Equal(t, http.StatusInternalServerError, rr.Code)
	})

	t.Run("valid token sets principal", func(t *testing.T) {
		gate, repo, token := newGateFixture(t)
		repo.On("FindByEmailAndUsername", mock.Anything, "alice@example.com", "alice").
			Return(aliceUser(), nil)
		rr := httptest.NewRecorder()

		Authenticate(gate, testLogger(), nil)(protected).ServeHTTP(rr, requestWithAuth("Bearer "+token))

		assert.Equal(t, http.StatusOK, rr.Code)
		require.NotNil(t, reached)
		assert.Equal(t, "alice@example.com", reached.Email)
	})
}

func TestRequireAuth(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })

	rr := httptest.NewRecorder()
	RequireAuth(ok).ServeHTTP(rr, requestWithAuth(""))
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Contains(t, rr.Body.String(), "authentication credentials were not provided")

	rr = httptest.NewRecorder()
	req := requestWithAuth("")
	RequireAuth(ok).ServeHTTP(rr, req.WithContext(WithPrincipal(req.Context(), aliceUser())))
	assert.Equal(t, http.StatusOK, rr.Code)
}
