package controllers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/ummati-backend/internal/users"
	"github.com/angelmondragon/ummati-backend/pkg/db/dbtest"
	"github.com/angelmondragon/ummati-backend/pkg/db/models"
)

func seedProfile(t *testing.T) (*users.Repository, *models.User) {
	t.Helper()
	conn := dbtest.Open(t)
	pic := "https://cdn.example/p.png"
	user := &models.User{Email: "amina@example.com", PasswordHash: "x", FirstName: "Amina", LastName: "Yusuf", ProfilePicture: &pic}
	require.NoError(t, conn.Create(user).Error)
	return users.NewRepository(conn), user
}

func decodeUser(t *testing.T, rec *httptest.ResponseRecorder) users.UserDTO {
	t.Helper()
	var envelope struct {
		Data users.UserDTO `json:"data"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&envelope))
	return envelope.Data
}

func TestUpdateCurrentUserPatchSemantics(t *testing.T) {
	repo, user := seedProfile(t)
	handler := UpdateCurrentUser(repo, nil)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, authedRequest(http.MethodPatch, "/api/v1/users/me", `{"first_name":"Aminah"}`, user.ID))
	require.Equal(t, http.StatusOK, rec.Code)
	got := decodeUser(t, rec)
	assert.Equal(t, "Aminah", got.FirstName)
	require.NotNil(t, got.ProfilePicture, "omitted field is kept")

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, authedRequest(http.MethodPatch, "/api/v1/users/me", `{"profile_picture":null}`, user.ID))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Nil(t, decodeUser(t, rec).ProfilePicture, "explicit null clears")

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, authedRequest(http.MethodPatch, "/api/v1/users/me", `{"last_name":null}`, user.ID))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCurrentUserNotFound(t *testing.T) {
	repo, _ := seedProfile(t)
	rec := httptest.NewRecorder()
	CurrentUser(repo, nil).ServeHTTP(rec, authedRequest(http.MethodGet, "/api/v1/users/me", "", uuid.New()))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
