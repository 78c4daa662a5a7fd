package gyms_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"academia_backend/internals/databases/dbtest"
	m "academia_backend/internals/features/finance/billings/model"
	"academia_backend/internals/seeds/gyms"
)

func TestSeedGymsIsRepeatable(t *testing.T) {
	db := dbtest.Open(t)

	n, err := gyms.SeedGymsFromJSON(db, gyms.DemoGyms, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = gyms.SeedGymsFromJSON(db, gyms.DemoGyms, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	var members, subs int64
	require.NoError(t, db.Model(&m.Member{}).Count(&members).Error)
	require.NoError(t, db.Model(&m.Subscription{}).Count(&subs).Error)
	assert.Equal(t, int64(3), members)
	assert.Equal(t, int64(2), subs)

	var inactive m.Member
	require.NoError(t, db.Where("member_external_code = ?", "M-0003").First(&inactive).Error)
	assert.Equal(t, m.MembershipStatusInactive, inactive.MemberStatus)
}

func TestSeedGymsRejectsBadJSON(t *testing.T) {
	db := dbtest.Open(t)
	_, err := gyms.SeedGymsFromJSON(db, []byte(`{"not":"a list"}`), zap.NewNop())
	assert.Error(t, err)
}
