package quota

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/angelmondragon/mapfinderz-backend/pkg/db/models"
	"github.com/angelmondragon/mapfinderz-backend/pkg/enums"
)

func TestEntitlementRepository(t *testing.T) {
	conn, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(&models.BuyerEntitlement{}))

	repo := NewEntitlementRepository(conn)
	ctx := context.Background()
	userID := uuid.New()

	missing, err := repo.FindByUser(ctx, userID)
	require.NoError(t, err)
	require.Nil(t, missing)

	require.NoError(t, repo.Upsert(ctx, &models.BuyerEntitlement{
		UserID:         userID,
		PackageName:    "Daily 5",
		Kind:           enums.TierKindRegular,
		DailyFreeUnits: 5,
		Active:         true,
	}))

	found, err := repo.FindByUser(ctx, userID)
	require.NoError(t, err)
	require.NotNil(t, found)
	require.Equal(t, 5, found.DailyFreeUnits)

	found.Active = false
	require.NoError(t, repo.Upsert(ctx, found))

	found, err = repo.FindByUser(ctx, userID)
	require.NoError(t, err)
	require.False(t, found.Active)
}
