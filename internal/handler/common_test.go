package handler

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/monitor-ad-exchange/internal/service"
)

func newContext(target string) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func TestGetUserID(t *testing.T) {
	for _, tc := range []struct {
		name  string
		value any
		want  uint64
	}{
		{"uint64", uint64(7), 7},
		{"int", int(8), 8},
		{"float64 from json claims", float64(9), 9},
		{"string", "10", 10},
	} {
		t.Run(tc.name, func(t *testing.T) {
			c, _ := newContext("/")
			c.Set("user_id", tc.value)
			got, err := getUserID(c)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}

	c, _ := newContext("/")
	_, err := getUserID(c)
	assert.Error(t, err, "missing user_id must not resolve to zero")

	c, _ = newContext("/")
	c.Set("user_id", "not a number")
	_, err = getUserID(c)
	assert.Error(t, err)
}

func TestActorFrom(t *testing.T) {
	c, _ := newContext("/")
	c.Set("user_id", uint64(3))
	c.Set("role", "ADMINISTRATOR")
	actor, err := actorFrom(c)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), actor.ID)
	assert.True(t, actor.Admin())
}

func TestPageParams(t *testing.T) {
	c, _ := newContext("/?limit=20&offset=40")
	limit, offset := pageParams(c)
	assert.Equal(t, 20, limit)
	assert.Equal(t, 40, offset)

	c, _ = newContext("/?limit=9999&offset=-1")
	limit, offset = pageParams(c)
	assert.Equal(t, 50, limit)
	assert.Equal(t, 0, offset)

	c, _ = newContext("/")
	limit, offset = pageParams(c)
	assert.Equal(t, 50, limit)
	assert.Equal(t, 0, offset)
}

func TestServiceErrorMapping(t *testing.T) {
	for _, tc := range []struct {
		err  error
		code int
	}{
		{service.BadRequest("bad"), http.StatusBadRequest},
		{service.NotFound("missing"), http.StatusNotFound},
		{service.NotAcceptable("rule"), http.StatusNotAcceptable},
		{service.Internal("boom"), http.StatusInternalServerError},
		{assert.AnError, http.StatusInternalServerError},
	} {
		c, rec := newContext("/")
		require.NoError(t, serviceError(c, tc.err))
		assert.Equal(t, tc.code, rec.Code)
	}
}
