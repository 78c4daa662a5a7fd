package helper

import (
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parseQuery(t *testing.T, query string) Params {
	t.Helper()
	var got Params
	app := fiber.New()
	app.Get("/", func(c *fiber.Ctx) error {
		got = ParseFiber(c, "received_at", "desc", DefaultOpts)
		return nil
	})
	_, err := app.Test(httptest.NewRequest(fiber.MethodGet, "/"+query, nil), -1)
	require.NoError(t, err)
	return got
}

func TestParseFiber(t *testing.T) {
	p := parseQuery(t, "")
	assert.Equal(t, Params{Page: 1, PerPage: 25, SortBy: "received_at", SortOrder: "desc"}, p)

	p = parseQuery(t, "?page=3&limit=10&sort_by=status&order=ASC")
	assert.Equal(t, Params{Page: 3, PerPage: 10, SortBy: "status", SortOrder: "asc"}, p)
	assert.Equal(t, 20, p.Offset())

	p = parseQuery(t, "?page=-2&per_page=9999&order=sideways")
	assert.Equal(t, 1, p.Page)
	assert.Equal(t, 200, p.PerPage)
	assert.Equal(t, "desc", p.SortOrder)
}

func TestSafeOrder(t *testing.T) {
	allowed := map[string]string{"received_at": "event_received_at", "status": "event_status"}
	assert.Equal(t, "event_status ASC", Params{SortBy: "status", SortOrder: "asc"}.SafeOrder(allowed, "received_at"))
	assert.Equal(t, "event_received_at DESC", Params{SortBy: "1; drop table x"}.SafeOrder(allowed, "received_at"))
}

func TestBuildMeta(t *testing.T) {
	m := BuildMeta(45, Params{Page: 2, PerPage: 20})
	assert.Equal(t, 3, m.TotalPages)
	assert.True(t, m.HasNext)
	assert.True(t, m.HasPrev)
	assert.Equal(t, 3, *m.NextPage)
	assert.Equal(t, 1, *m.PrevPage)

	m = BuildMeta(0, Params{Page: 1, PerPage: 20})
	assert.Equal(t, 0, m.TotalPages)
	assert.False(t, m.HasNext)
	assert.Nil(t, m.NextPage)
}
