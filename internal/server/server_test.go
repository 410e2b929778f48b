package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"courtside/internal/config"
	"courtside/internal/models"
	"courtside/internal/testutil"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

const testSecret = "test-secret"

type testAPI struct {
	t   *testing.T
	app *fiber.App
	db  *gorm.DB
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	db := testutil.NewSQLiteDB(t)
	cfg := &config.Config{JWTSecret: testSecret, Env: "test", Port: "0"}
	s, err := NewServerWithDeps(cfg, db, nil, nil)
	require.NoError(t, err)
	return &testAPI{t: t, app: s.NewApp(), db: db}
}

func signToken(t *testing.T, userID uint) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": strconv.FormatUint(uint64(userID), 10),
	})
	signed, err := token.SignedString([]byte(testSecret))
	require.NoError(t, err)
	return signed
}

// do sends a request as userID (0 for anonymous) and returns status and body.
func (a *testAPI) do(method, path string, userID uint, body any) (int, []byte) {
	a.t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(a.t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if userID != 0 {
		req.Header.Set("Authorization", "Bearer "+signToken(a.t, userID))
	}
	resp, err := a.app.Test(req, -1)
	require.NoError(a.t, err)
	defer func() { _ = resp.Body.Close() }()
	out, err := io.ReadAll(resp.Body)
	require.NoError(a.t, err)
	return resp.StatusCode, out
}

func decode[T any](t *testing.T, raw []byte) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(raw, &v), string(raw))
	return v
}

func TestHealthChecks(t *testing.T) {
	api := newTestAPI(t)

	status, _ := api.do(http.MethodGet, "/health/live", 0, nil)
	assert.Equal(t, http.StatusOK, status)

	status, body := api.do(http.MethodGet, "/health/ready", 0, nil)
	assert.Equal(t, http.StatusOK, status)
	ready := decode[map[string]any](t, body)
	checks := ready["checks"].(map[string]any)
	assert.Equal(t, "healthy", checks["database"])
	assert.Equal(t, "unavailable", checks["redis"])
}

func TestAPI_RequiresBearerToken(t *testing.T) {
	api := newTestAPI(t)

	status, body := api.do(http.MethodGet, "/api/users/me", 0, nil)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, models.CodeUnauthorized, decode[models.ErrorResponse](t, body).Code)

	req := httptest.NewRequest(http.MethodGet, "/api/users/me", nil)
	req.Header.Set("Authorization", "Bearer not-a-jwt")
	resp, err := api.app.Test(req, -1)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestCourtshipRoutes_FriendLifecycle(t *testing.T) {
	api := newTestAPI(t)
	alice := testutil.CreateUser(t, api.db, "alice")
	bob := testutil.CreateUser(t, api.db, "bob")

	status, body := api.do(http.MethodPost, "/api/courtships/requests", alice.ID,
		fiber.Map{"user_id": bob.ID, "type": "friend"})
	require.Equal(t, http.StatusCreated, status, string(body))
	profile := decode[map[string]any](t, body)
	assert.Equal(t, map[string]any{"type": "friend-req", "dir": "out"}, profile["courtship"])

	status, body = api.do(http.MethodGet, "/api/courtships/requests?dir=in", bob.ID, nil)
	require.Equal(t, http.StatusOK, status)
	incoming := decode[map[string][]map[string]any](t, body)["requests"]
	require.Len(t, incoming, 1)
	assert.Equal(t, float64(alice.ID), incoming[0]["id"])

	status, body = api.do(http.MethodGet, "/api/courtships/requests?dir=in", alice.ID, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Empty(t, decode[map[string][]map[string]any](t, body)["requests"])

	// only the recipient may answer
	status, _ = api.do(http.MethodPut, fmt.Sprintf("/api/courtships/requests/%d", bob.ID), alice.ID,
		fiber.Map{"status": "accept"})
	assert.Equal(t, http.StatusForbidden, status)

	status, _ = api.do(http.MethodPut, fmt.Sprintf("/api/courtships/requests/%d", alice.ID), bob.ID,
		fiber.Map{"status": "accept"})
	require.Equal(t, http.StatusNoContent, status)

	status, body = api.do(http.MethodGet, fmt.Sprintf("/api/users/%d/courtships?type=friend", alice.ID), bob.ID, nil)
	require.Equal(t, http.StatusOK, status)
	friends := decode[map[string][]map[string]any](t, body)["courtships"]
	require.Len(t, friends, 1)
	assert.Equal(t, float64(bob.ID), friends[0]["id"])

	status, body = api.do(http.MethodGet, fmt.Sprintf("/api/users/%d", bob.ID), alice.ID, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, map[string]any{"type": "friend"}, decode[map[string]any](t, body)["courtship"])

	status, _ = api.do(http.MethodDelete, fmt.Sprintf("/api/courtships/%d", alice.ID), bob.ID, nil)
	require.Equal(t, http.StatusNoContent, status)

	status, body = api.do(http.MethodDelete, fmt.Sprintf("/api/courtships/%d", alice.ID), bob.ID, nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, models.CodeNotFound, decode[models.ErrorResponse](t, body).Code)
}

func TestCourtshipRoutes_Errors(t *testing.T) {
	api := newTestAPI(t)
	carol := testutil.CreateUser(t, api.db, "carol")
	dave := testutil.CreateUser(t, api.db, "dave")

	tests := []struct {
		name       string
		method     string
		path       string
		as         uint
		body       any
		wantStatus int
		wantCode   string
	}{
		{"self request", http.MethodPost, "/api/courtships/requests", carol.ID,
			fiber.Map{"user_id": carol.ID, "type": "coach"}, http.StatusBadRequest, models.CodeSelfRelationship},
		{"unknown type", http.MethodPost, "/api/courtships/requests", carol.ID,
			fiber.Map{"user_id": dave.ID, "type": "mentor"}, http.StatusBadRequest, models.CodeValidation},
		{"missing user", http.MethodPost, "/api/courtships/requests", carol.ID,
			fiber.Map{"type": "coach"}, http.StatusBadRequest, models.CodeValidation},
		{"unknown target", http.MethodPost, "/api/courtships/requests", carol.ID,
			fiber.Map{"user_id": 9999, "type": "coach"}, http.StatusNotFound, models.CodeNotFound},
		{"first request", http.MethodPost, "/api/courtships/requests", carol.ID,
			fiber.Map{"user_id": dave.ID, "type": "coach"}, http.StatusCreated, ""},
		{"duplicate from other side", http.MethodPost, "/api/courtships/requests", dave.ID,
			fiber.Map{"user_id": carol.ID, "type": "friend"}, http.StatusConflict, models.CodeDuplicateRelationship},
		{"bad answer", http.MethodPut, fmt.Sprintf("/api/courtships/requests/%d", carol.ID), dave.ID,
			fiber.Map{"status": "maybe"}, http.StatusBadRequest, models.CodeValidation},
		{"sever pending request", http.MethodDelete, fmt.Sprintf("/api/courtships/%d", carol.ID), dave.ID,
			nil, http.StatusConflict, models.CodeInvalidTransition},
		{"recipient cannot cancel", http.MethodDelete, fmt.Sprintf("/api/courtships/requests/%d", carol.ID), dave.ID,
			nil, http.StatusForbidden, models.CodeForbidden},
		{"bad user id", http.MethodDelete, "/api/courtships/requests/abc", dave.ID,
			nil, http.StatusBadRequest, models.CodeValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := api.do(tt.method, tt.path, tt.as, tt.body)
			assert.Equal(t, tt.wantStatus, status, string(body))
			if tt.wantCode != "" {
				assert.Equal(t, tt.wantCode, decode[models.ErrorResponse](t, body).Code)
			}
		})
	}
}

func TestCoachAcceptance_SwapsRoles(t *testing.T) {
	api := newTestAPI(t)
	student := testutil.CreateUser(t, api.db, "student")
	coach := testutil.CreateUser(t, api.db, "coach")

	// student asks coach to coach them
	status, _ := api.do(http.MethodPost, "/api/courtships/requests", student.ID,
		fiber.Map{"user_id": coach.ID, "type": "coach"})
	require.Equal(t, http.StatusCreated, status)
	status, _ = api.do(http.MethodPut, fmt.Sprintf("/api/courtships/requests/%d", student.ID), coach.ID,
		fiber.Map{"status": "accept"})
	require.Equal(t, http.StatusNoContent, status)

	status, body := api.do(http.MethodGet, fmt.Sprintf("/api/users/%d/courtships?type=coach", student.ID), coach.ID, nil)
	require.Equal(t, http.StatusOK, status)
	coaches := decode[map[string][]map[string]any](t, body)["courtships"]
	require.Len(t, coaches, 1)
	assert.Equal(t, float64(coach.ID), coaches[0]["id"])

	status, body = api.do(http.MethodGet, "/api/users/me/courtships?type=student", coach.ID, nil)
	require.Equal(t, http.StatusOK, status)
	students := decode[map[string][]map[string]any](t, body)["courtships"]
	require.Len(t, students, 1)
	assert.Equal(t, float64(student.ID), students[0]["id"])
}

func TestUploadRoutes_VisibilityFollowsFriendship(t *testing.T) {
	api := newTestAPI(t)
	alice := testutil.CreateUser(t, api.db, "alice")
	bob := testutil.CreateUser(t, api.db, "bob")

	status, body := api.do(http.MethodPost, "/api/buckets", alice.ID, fiber.Map{"name": "Drills"})
	require.Equal(t, http.StatusCreated, status, string(body))
	bucket := decode[map[string]any](t, body)
	bucketID := uint(bucket["id"].(float64))

	status, body = api.do(http.MethodPost, "/api/uploads", alice.ID, fiber.Map{
		"filename":      "serve.mp4",
		"display_title": "Serve practice",
		"bucket_id":     bucketID,
		"visibility":    fiber.Map{"default": "friends-only", "also_shared_with": []uint{}},
	})
	require.Equal(t, http.StatusCreated, status, string(body))
	upload := decode[map[string]any](t, body)
	uploadPath := fmt.Sprintf("/api/uploads/%d", uint(upload["id"].(float64)))

	status, _ = api.do(http.MethodGet, uploadPath, bob.ID, nil)
	assert.Equal(t, http.StatusForbidden, status)

	status, body = api.do(http.MethodGet, fmt.Sprintf("/api/users/%d/buckets", alice.ID), bob.ID, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Empty(t, decode[map[string][]any](t, body)["buckets"])

	status, _ = api.do(http.MethodPost, "/api/comments", bob.ID, fiber.Map{"upload_id": upload["id"], "text": "nice"})
	assert.Equal(t, http.StatusForbidden, status)

	testutil.Relate(t, api.db, alice, bob, models.KindFriends)

	status, body = api.do(http.MethodGet, uploadPath, bob.ID, nil)
	require.Equal(t, http.StatusOK, status)
	seen := decode[map[string]any](t, body)
	assert.Equal(t, "Serve practice", seen["display_title"])
	assert.NotContains(t, seen, "visibility")

	status, body = api.do(http.MethodGet, fmt.Sprintf("/api/users/%d/uploads?bucket=%d", alice.ID, bucketID), bob.ID, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, decode[map[string][]any](t, body)["uploads"], 1)

	status, body = api.do(http.MethodPost, "/api/comments", bob.ID, fiber.Map{"upload_id": upload["id"], "text": "nice"})
	require.Equal(t, http.StatusCreated, status, string(body))
	comment := decode[map[string]any](t, body)

	status, body = api.do(http.MethodGet, "/api/comments?upload="+strconv.Itoa(int(upload["id"].(float64))), alice.ID, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, decode[map[string][]any](t, body)["comments"], 1)

	// the upload owner may remove comments on it
	status, _ = api.do(http.MethodDelete, fmt.Sprintf("/api/comments/%d", uint(comment["id"].(float64))), alice.ID, nil)
	assert.Equal(t, http.StatusNoContent, status)

	status, _ = api.do(http.MethodPut, uploadPath, bob.ID, fiber.Map{"display_title": "mine now"})
	assert.Equal(t, http.StatusForbidden, status)

	status, _ = api.do(http.MethodDelete, uploadPath, alice.ID, nil)
	assert.Equal(t, http.StatusNoContent, status)
	status, _ = api.do(http.MethodGet, uploadPath, alice.ID, nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestUserRoutes_ProfileAndSearch(t *testing.T) {
	api := newTestAPI(t)
	erin := testutil.CreateUser(t, api.db, "erin")
	testutil.CreateUser(t, api.db, "erik")

	status, body := api.do(http.MethodGet, "/api/users/me", erin.ID, nil)
	require.Equal(t, http.StatusOK, status)
	me := decode[map[string]any](t, body)
	assert.Equal(t, "erin@courtside.test", me["email"])

	status, body = api.do(http.MethodPut, "/api/users/me", erin.ID, fiber.Map{"biography": "  lefty  "})
	require.Equal(t, http.StatusOK, status, string(body))
	assert.Equal(t, "lefty", decode[map[string]any](t, body)["biography"])

	status, body = api.do(http.MethodPut, "/api/users/me", erin.ID, fiber.Map{"username": "erik"})
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, models.CodeConflict, decode[models.ErrorResponse](t, body).Code)

	status, body = api.do(http.MethodGet, "/api/users/search?q=eri", erin.ID, nil)
	require.Equal(t, http.StatusOK, status)
	found := decode[map[string][]map[string]any](t, body)["users"]
	require.Len(t, found, 1)
	assert.Equal(t, "erik", found[0]["username"])
	assert.NotContains(t, found[0], "email")

	status, _ = api.do(http.MethodDelete, "/api/users/me", erin.ID, nil)
	assert.Equal(t, http.StatusNoContent, status)
	status, _ = api.do(http.MethodGet, fmt.Sprintf("/api/users/%d", erin.ID), erin.ID, nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestCommentRoutes_RequireUploadQuery(t *testing.T) {
	api := newTestAPI(t)
	u := testutil.CreateUser(t, api.db, "frank")

	status, _ := api.do(http.MethodGet, "/api/comments", u.ID, nil)
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = api.do(http.MethodGet, "/api/comments?upload=zero", u.ID, nil)
	assert.Equal(t, http.StatusBadRequest, status)
}
