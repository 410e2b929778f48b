package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHumanizeParam(t *testing.T) {
	tests := []struct {
		param    string
		expected string
	}{
		{"id", "ID"},
		{"userId", "user ID"},
		{"uploadId", "upload ID"},
		{"bucketOwnerId", "bucket owner ID"},
		{"bucket", "bucket"},
	}
	for _, tt := range tests {
		t.Run(tt.param, func(t *testing.T) {
			assert.Equal(t, tt.expected, humanizeParam(tt.param))
		})
	}
}

func TestParseUserRef(t *testing.T) {
	s := &Server{}
	app := fiber.New()
	app.Use(asUser(5))
	app.Get("/users/:id", func(c *fiber.Ctx) error {
		id, err := s.parseUserRef(c, "id")
		if err != nil {
			return nil
		}
		return c.JSON(fiber.Map{"id": id})
	})

	tests := []struct {
		path       string
		wantStatus int
		wantID     float64
	}{
		{"/users/me", http.StatusOK, 5},
		{"/users/12", http.StatusOK, 12},
		{"/users/0", http.StatusBadRequest, 0},
		{"/users/-4", http.StatusBadRequest, 0},
		{"/users/abc", http.StatusBadRequest, 0},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			resp, err := app.Test(httptest.NewRequest(http.MethodGet, tt.path, nil))
			require.NoError(t, err)
			defer func() { _ = resp.Body.Close() }()
			assert.Equal(t, tt.wantStatus, resp.StatusCode)

			var body map[string]any
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
			if tt.wantStatus == http.StatusOK {
				assert.Equal(t, tt.wantID, body["id"])
			} else {
				assert.Equal(t, "Invalid ID", body["error"])
			}
		})
	}
}

func TestParseOptionalQueryID(t *testing.T) {
	app := fiber.New()
	app.Get("/items", func(c *fiber.Ctx) error {
		id, err := parseOptionalQueryID(c, "bucket")
		if err != nil {
			return nil
		}
		if id == nil {
			return c.JSON(fiber.Map{"bucket": nil})
		}
		return c.JSON(fiber.Map{"bucket": *id})
	})

	tests := []struct {
		query      string
		wantStatus int
		want       any
	}{
		{"", http.StatusOK, nil},
		{"?bucket=9", http.StatusOK, float64(9)},
		{"?bucket=0", http.StatusBadRequest, nil},
		{"?bucket=x", http.StatusBadRequest, nil},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/items"+tt.query, nil))
			require.NoError(t, err)
			defer func() { _ = resp.Body.Close() }()
			assert.Equal(t, tt.wantStatus, resp.StatusCode)
			if tt.wantStatus == http.StatusOK {
				var body map[string]any
				require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
				assert.Equal(t, tt.want, body["bucket"])
			}
		})
	}
}

func TestParseBody_Malformed(t *testing.T) {
	app := fiber.New()
	app.Post("/things", func(c *fiber.Ctx) error {
		var dst struct {
			Name string `json:"name"`
		}
		if err := parseBody(c, &dst); err != nil {
			return nil
		}
		return c.SendStatus(http.StatusNoContent)
	})

	req := httptest.NewRequest(http.MethodPost, "/things", strings.NewReader(`{"name":`))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
