package seeds

import (
	"go.uber.org/zap"
	"gorm.io/gorm"

	"academia_backend/internals/seeds/gyms"
)

// RunAllSeeds loads demo data. Only meant for local and staging databases.
func RunAllSeeds(db *gorm.DB, log *zap.Logger) {
	//* Gyms (tenants, plans, members, subscriptions)
	if _, err := gyms.SeedGymsFromJSON(db, gyms.DemoGyms, log); err != nil {
		log.Error("seed gyms", zap.Error(err))
	}
}
