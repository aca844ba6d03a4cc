package gormdir

import (
	"context"
	"testing"
	"time"

	"github.com/BearBump/CargoTrack/internal/models"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func TestGormDir_Flow(t *testing.T) {
	if testing.Short() {
		t.Skip("postgres container in -short mode")
	}
	ctx := context.Background()

	pgC, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "postgres:15-alpine",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     "admin",
				"POSTGRES_PASSWORD": "admin",
				"POSTGRES_DB":       "cargo_dir",
			},
			WaitingFor: wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = pgC.Terminate(ctx) })

	host, err := pgC.Host(ctx)
	require.NoError(t, err)
	port, err := pgC.MappedPort(ctx, "5432/tcp")
	require.NoError(t, err)

	repo, err := Open("postgres://admin:admin@" + host + ":" + port.Port() + "/cargo_dir?sslmode=disable")
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })

	thread := int64(77)
	active := &models.Branch{Name: "Almaty", IsActive: true, TelegramThreadID: &thread}
	require.NoError(t, repo.SaveBranch(ctx, active))
	require.NoError(t, repo.SaveBranch(ctx, &models.Branch{Name: "Closed", IsActive: false}))

	branches, err := repo.ListActiveBranches(ctx)
	require.NoError(t, err)
	require.Len(t, branches, 1)
	require.Equal(t, thread, *branches[0].TelegramThreadID)

	u := &models.User{Name: "Aigerim", UserCode: "AC-17", Role: models.RoleUser, BranchID: &active.ID}
	require.NoError(t, repo.SaveUser(ctx, u))
	got, err := repo.GetUser(ctx, u.ID)
	require.NoError(t, err)
	require.Equal(t, "AC-17", got.UserCode)

	_, err = repo.GetUser(ctx, 9999)
	require.True(t, errors.Is(err, models.ErrNotFound))
	_, err = repo.GetBranch(ctx, 9999)
	require.True(t, errors.Is(err, models.ErrNotFound))

	_, ok, err := repo.GetSetting(ctx, models.SettingPricePerKg)
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, repo.UpsertSetting(ctx, models.Setting{Key: models.SettingPricePerKg, Value: "4"}))
	require.NoError(t, repo.UpsertSetting(ctx, models.Setting{Key: models.SettingPricePerKg, Value: "5.5", Description: "USD per kg"}))

	v, ok, err := repo.GetSetting(ctx, models.SettingPricePerKg)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "5.5", v)

	all, err := repo.ListSettings(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
}
