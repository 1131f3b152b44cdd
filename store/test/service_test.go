package test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/hrygo/servicefunnel/store"
)

func TestServiceStore(t *testing.T) {
	ctx := context.Background()
	ts := NewTestingStore(ctx, t)

	now := time.Now().Unix()
	created, err := ts.UpsertService(ctx, &store.Service{
		Code:         "WTR-LEAK",
		Name:         "Leak repair",
		Description:  "Faucet and pipe leaks",
		IncidentType: "incident",
		Category:     "Водоснабжение",
		LocationType: "in_unit",
		Tags:         []string{"leak", "faucet"},
		Active:       true,
		UpdatedTs:    now,
	})
	require.NoError(t, err)
	require.NotZero(t, created.ID)

	_, err = ts.UpsertService(ctx, &store.Service{
		Code:      "OLD",
		Name:      "Retired service",
		Active:    false,
		UpdatedTs: now,
	})
	require.NoError(t, err)

	active, err := ts.ListServices(ctx, &store.FindService{ActiveOnly: true})
	require.NoError(t, err)
	require.Len(t, active, 1)
	require.Equal(t, "Leak repair", active[0].Name)
	require.Equal(t, []string{"leak", "faucet"}, active[0].Tags)
	require.True(t, active[0].Active)

	// Upsert by code updates in place.
	updated, err := ts.UpsertService(ctx, &store.Service{
		Code:      "WTR-LEAK",
		Name:      "Leak repair (apartment)",
		Active:    true,
		UpdatedTs: now + 1,
	})
	require.NoError(t, err)
	require.Equal(t, created.ID, updated.ID)

	code := "WTR-LEAK"
	list, err := ts.ListServices(ctx, &store.FindService{Code: &code})
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Equal(t, "Leak repair (apartment)", list[0].Name)
	require.Empty(t, list[0].Tags)

	all, err := ts.ListServices(ctx, &store.FindService{})
	require.NoError(t, err)
	require.Len(t, all, 2)
}

func TestMigrateIsIdempotent(t *testing.T) {
	ctx := context.Background()
	ts := NewTestingStore(ctx, t)
	require.NoError(t, ts.Migrate(ctx))
}
