package controller_test

import (
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"academia_backend/internals/configs"
	"academia_backend/internals/databases/dbtest"
	"academia_backend/internals/features/access/device"
	"academia_backend/internals/features/access/route"
	"academia_backend/internals/features/access/service"
	m "academia_backend/internals/features/finance/billings/model"
	"academia_backend/internals/features/finance/billings/repository"
	billingsvc "academia_backend/internals/features/finance/billings/service"
	helper "academia_backend/internals/helpers"
)

type stubQueue struct{ got []uuid.UUID }

func (q *stubQueue) Enqueue(_, member uuid.UUID) bool {
	q.got = append(q.got, member)
	return true
}

type env struct {
	app    *fiber.App
	tenant uuid.UUID
	member uuid.UUID
	queue  *stubQueue
}

func setup(t *testing.T, withQueue bool) env {
	t.Helper()
	db := dbtest.Open(t)
	repo := repository.New(db)
	now := time.Date(2025, 3, 15, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	billing := billingsvc.New(repo, billingsvc.Options{Defaults: configs.PolicyDefaults{MaxInstallments: 1}, Clock: clock})
	rec := service.NewReconciler(repo, billing, device.Nop{}, service.Options{Clock: clock})

	e := env{tenant: uuid.New()}
	require.NoError(t, db.Create(&m.Tenant{TenantID: e.tenant, TenantName: "Gym Test"}).Error)
	mem := m.Member{MemberTenantID: e.tenant, MemberName: "Rafa", MemberStatus: m.MembershipStatusActive}
	require.NoError(t, db.Create(&mem).Error)
	e.member = mem.MemberID

	e.app = fiber.New()
	admin := e.app.Group("/api/a", func(c *fiber.Ctx) error {
		c.Locals(helper.LocTenantID, e.tenant.String())
		return c.Next()
	})
	var q service.Enqueuer
	if withQueue {
		e.queue = &stubQueue{}
		q = e.queue
	}
	route.AccessAdminRoutes(admin, rec, q)
	return e
}

func post(t *testing.T, app *fiber.App, path string) (int, map[string]any) {
	t.Helper()
	resp, err := app.Test(httptest.NewRequest(fiber.MethodPost, path, nil), -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return resp.StatusCode, body
}

func TestReconcileEndpoint(t *testing.T) {
	e := setup(t, false)

	code, body := post(t, e.app, "/api/a/access/members/"+e.member.String()+"/reconcile")
	require.Equal(t, fiber.StatusOK, code)
	data := body["data"].(map[string]any)
	assert.Equal(t, "deny", data["decision"])
	assert.Equal(t, "no active subscription", data["reason"])
	assert.Equal(t, "skipped", data["action"])

	code, _ = post(t, e.app, "/api/a/access/members/not-a-uuid/reconcile")
	assert.Equal(t, fiber.StatusBadRequest, code)

	code, _ = post(t, e.app, "/api/a/access/members/"+uuid.NewString()+"/reconcile")
	assert.Equal(t, fiber.StatusNotFound, code)
}

func TestReconcileAsyncEndpoint(t *testing.T) {
	e := setup(t, true)
	code, body := post(t, e.app, "/api/a/access/members/"+e.member.String()+"/reconcile/async")
	assert.Equal(t, fiber.StatusAccepted, code)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, []uuid.UUID{e.member}, e.queue.got)

	t.Run("no queue", func(t *testing.T) {
		e := setup(t, false)
		code, _ := post(t, e.app, "/api/a/access/members/"+e.member.String()+"/reconcile/async")
		assert.Equal(t, fiber.StatusServiceUnavailable, code)
	})
}
