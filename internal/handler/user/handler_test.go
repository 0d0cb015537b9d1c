package user

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhouzirui/user-api/backend/internal/model/user"
	userservice "github.com/zhouzirui/user-api/backend/internal/service/user"
)

type brokenStore struct{}

func (brokenStore) Load(context.Context) ([]user.User, error) {
	return nil, user.ErrCorrupt
}

func (brokenStore) Save(context.Context, []user.User) error {
	return errors.New("read-only filesystem")
}

func setupRouter(seed ...user.User) (*chi.Mux, *user.MemoryStore) {
	store := user.NewMemoryStore(seed)
	handler := New(userservice.NewService(store, nil, nil), nil)

	r := chi.NewRouter()
	handler.RegisterRoutes(r)
	return r, store
}

func do(t *testing.T, r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()

	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	return resp
}

func decodeUser(t *testing.T, resp *httptest.ResponseRecorder) user.User {
	t.Helper()
	var u user.User
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &u))
	return u
}

func assertNotFound(t *testing.T, resp *httptest.ResponseRecorder) {
	t.Helper()
	require.Equal(t, http.StatusNotFound, resp.Code)
	assert.JSONEq(t, `{"message":"User not found"}`, resp.Body.String())
}

func TestListEmptyReturnsArray(t *testing.T) {
	r, _ := setupRouter()

	resp := do(t, r, http.MethodGet, "/users", "")

	require.Equal(t, http.StatusOK, resp.Code)
	assert.JSONEq(t, `[]`, resp.Body.String())
}

func TestGetUser(t *testing.T) {
	r, _ := setupRouter(user.User{ID: 1, Name: "Ann", Email: "ann@x.com"})

	resp := do(t, r, http.MethodGet, "/users/1", "")

	require.Equal(t, http.StatusOK, resp.Code)
	assert.JSONEq(t, `{"id":1,"name":"Ann","email":"ann@x.com"}`, resp.Body.String())
}

func TestUnknownIDIsNotFoundForEveryOperation(t *testing.T) {
	r, _ := setupRouter(user.User{ID: 1, Name: "Ann"})

	for _, method := range []string{http.MethodGet, http.MethodPut, http.MethodDelete} {
		t.Run(method, func(t *testing.T) {
			body := ""
			if method == http.MethodPut {
				body = `{"name":"x"}`
			}
			assertNotFound(t, do(t, r, method, "/users/42", body))
		})
	}
}

func TestNonNumericIDIsNotFound(t *testing.T) {
	r, store := setupRouter(user.User{ID: 1, Name: "Ann"})

	for _, path := range []string{"/users/abc", "/users/1.5", "/users/0x1"} {
		assertNotFound(t, do(t, r, http.MethodGet, path, ""))
		assertNotFound(t, do(t, r, http.MethodPut, path, `{"name":"x"}`))
		assertNotFound(t, do(t, r, http.MethodDelete, path, ""))
	}

	users, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []user.User{{ID: 1, Name: "Ann"}}, users)
}

func TestCreateUser(t *testing.T) {
	r, _ := setupRouter(user.User{ID: 4, Name: "Dee"})
	payload, _ := json.Marshal(map[string]string{"name": "Eve", "email": "eve@x.com"})

	req := httptest.NewRequest(http.MethodPost, "/users", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)

	require.Equal(t, http.StatusCreated, resp.Code)
	assert.Equal(t, user.User{ID: 5, Name: "Eve", Email: "eve@x.com"}, decodeUser(t, resp))
}

func TestCreateWithEmptyBody(t *testing.T) {
	r, _ := setupRouter()

	resp := do(t, r, http.MethodPost, "/users", "")

	require.Equal(t, http.StatusCreated, resp.Code)
	assert.JSONEq(t, `{"id":1,"name":"","email":""}`, resp.Body.String())
}

func TestCreateIgnoresUnknownFields(t *testing.T) {
	r, _ := setupRouter()

	resp := do(t, r, http.MethodPost, "/users", `{"id":99,"name":"Ann","role":"admin"}`)

	require.Equal(t, http.StatusCreated, resp.Code)
	assert.Equal(t, user.User{ID: 1, Name: "Ann"}, decodeUser(t, resp))
}

func TestMalformedBodyIsBadRequest(t *testing.T) {
	r, _ := setupRouter(user.User{ID: 1, Name: "Ann"})

	for _, tc := range []struct{ method, path string }{
		{http.MethodPost, "/users"},
		{http.MethodPut, "/users/1"},
	} {
		resp := do(t, r, tc.method, tc.path, `{"name":`)
		require.Equal(t, http.StatusBadRequest, resp.Code)
		assert.JSONEq(t, `{"message":"invalid request body"}`, resp.Body.String())
	}
}

func TestUpdateKeepsOmittedAndEmptyFields(t *testing.T) {
	r, _ := setupRouter(user.User{ID: 1, Name: "Ann", Email: "ann@x.com"})

	resp := do(t, r, http.MethodPut, "/users/1", `{"name":"Annie","email":""}`)
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, user.User{ID: 1, Name: "Annie", Email: "ann@x.com"}, decodeUser(t, resp))

	resp = do(t, r, http.MethodPut, "/users/1", "")
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, user.User{ID: 1, Name: "Annie", Email: "ann@x.com"}, decodeUser(t, resp))
}

func TestDeleteUser(t *testing.T) {
	r, _ := setupRouter(user.User{ID: 1, Name: "Ann"}, user.User{ID: 2, Name: "Bo"})

	resp := do(t, r, http.MethodDelete, "/users/2", "")
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, user.User{ID: 2, Name: "Bo"}, decodeUser(t, resp))

	assertNotFound(t, do(t, r, http.MethodGet, "/users/2", ""))

	resp = do(t, r, http.MethodGet, "/users", "")
	assert.JSONEq(t, `[{"id":1,"name":"Ann","email":""}]`, resp.Body.String())
}

func TestStorageFailureIsInternalError(t *testing.T) {
	handler := New(userservice.NewService(brokenStore{}, nil, nil), nil)
	r := chi.NewRouter()
	handler.RegisterRoutes(r)

	for _, tc := range []struct{ method, path, body string }{
		{http.MethodGet, "/users", ""},
		{http.MethodGet, "/users/1", ""},
		{http.MethodPost, "/users", `{"name":"x"}`},
		{http.MethodPut, "/users/1", `{"name":"x"}`},
		{http.MethodDelete, "/users/1", ""},
	} {
		resp := do(t, r, tc.method, tc.path, tc.body)
		require.Equal(t, http.StatusInternalServerError, resp.Code, "%s %s", tc.method, tc.path)
		assert.JSONEq(t, `{"message":"internal server error"}`, resp.Body.String())
	}
}

func TestTrailingDataIsBadRequest(t *testing.T) {
	r, store := setupRouter(user.User{ID: 1, Name: "Ann"})

	for _, tc := range []struct{ method, path, body string }{
		{http.MethodPost, "/users", `{"name":"a"} trailing`},
		{http.MethodPost, "/users", `{"name":"a"}{"name":"b"}`},
		{http.MethodPut, "/users/1", `{"name":"a"} 1`},
	} {
		resp := do(t, r, tc.method, tc.path, tc.body)
		require.Equal(t, http.StatusBadRequest, resp.Code, tc.body)
		assert.JSONEq(t, `{"message":"invalid request body"}`, resp.Body.String())
	}

	users, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []user.User{{ID: 1, Name: "Ann"}}, users)
}

func TestTrailingWhitespaceIsAccepted(t *testing.T) {
	r, _ := setupRouter()

	resp := do(t, r, http.MethodPost, "/users", "{\"name\":\"a\"}\n  \n")
	require.Equal(t, http.StatusCreated, resp.Code)
}
