package pgorders

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/aRFialho/AvanTracking/internal/models"
)

func TestPGOrders_RepoFlow(t *testing.T) {
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "postgres:15-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "admin",
			"POSTGRES_PASSWORD": "admin",
			"POSTGRES_DB":       "avantracking_test",
		},
		WaitingFor: wait.ForListeningPort("5432/tcp").WithStartupTimeout(60 * time.Second),
	}
	pgC, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = pgC.Terminate(ctx) })

	host, err := pgC.Host(ctx)
	require.NoError(t, err)
	port, err := pgC.MappedPort(ctx, "5432/tcp")
	require.NoError(t, err)

	dsn := "postgres://admin:admin@" + host + ":" + port.Port() + "/avantracking_test?sslmode=disable"
	st, err := New(dsn)
	require.NoError(t, err)
	t.Cleanup(st.Close)

	ship := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	est := time.Date(2026, 8, 10, 0, 0, 0, 0, time.UTC)

	res, err := st.UpsertOrders(ctx, []*models.Order{
		{
			OrderNumber:           "PED-1001",
			CustomerName:          "Maria Souza",
			SalesChannel:          "Mercado Livre",
			FreightType:           "ColetasME2",
			City:                  "Campinas",
			State:                 "SP",
			ShippingDate:          ship,
			EstimatedDeliveryDate: &est,
			Status:                models.StatusPending,
			LastUpdate:            ship,
			History: []*models.TrackingEvent{
				{Status: models.StatusPending, Description: "Pedido importado", EventDate: ship},
			},
		},
		{
			OrderNumber:  "PED-1002",
			CustomerName: "João Lima",
			SalesChannel: "Shopee",
			FreightType:  "Shopee Xpress",
			City:         "Recife",
			State:        "PE",
			ShippingDate: ship,
			Status:       models.StatusShipped,
			LastUpdate:   ship,
		},
	})
	require.NoError(t, err)
	require.Equal(t, 2, res.Created)

	// same key, same status: skipped; same key, new status: updated in place
	res, err = st.UpsertOrders(ctx, []*models.Order{
		{OrderNumber: "PED-1001", ShippingDate: ship, Status: models.StatusPending, LastUpdate: ship},
		{OrderNumber: "PED-1002", ShippingDate: ship, Status: models.StatusDelivered, LastUpdate: ship},
	})
	require.NoError(t, err)
	require.Equal(t, 0, res.Created)
	require.Equal(t, 1, res.Updated)
	require.Equal(t, 1, res.Skipped)

	o, err := st.FindByOrderNumber(ctx, "PED-1001")
	require.NoError(t, err)
	require.NotNil(t, o)
	require.Equal(t, "Maria Souza", o.CustomerName)

	missing, err := st.FindByOrderNumber(ctx, "PED-9999")
	require.NoError(t, err)
	require.Nil(t, missing)

	active, err := st.ListActive(ctx)
	require.NoError(t, err)
	require.Len(t, active, 1)
	require.Equal(t, "PED-1001", active[0].OrderNumber)

	syncedAt := time.Now().UTC()
	require.NoError(t, st.MarkSyncFailure(ctx, o.ID, "provider timeout", syncedAt))
	o, err = st.FindByOrderNumber(ctx, "PED-1001")
	require.NoError(t, err)
	require.NotNil(t, o.LastAPIError)
	require.Equal(t, "provider timeout", *o.LastAPIError)
	require.WithinDuration(t, syncedAt, *o.LastAPISync, time.Second)

	evTime := time.Date(2026, 8, 5, 9, 30, 0, 0, time.UTC)
	newEst := time.Date(2026, 8, 12, 0, 0, 0, 0, time.UTC)
	err = st.ApplyOrderUpdate(ctx, OrderUpdate{
		OrderID:               o.ID,
		SyncedAt:              syncedAt,
		Status:                models.StatusShipped,
		FreightType:           "ColetasME2",
		EstimatedDeliveryDate: &newEst,
		IsDelayed:             false,
		LastUpdate:            evTime,
		Events: []*models.TrackingEvent{
			{Status: models.StatusShipped, Description: "Em trânsito", EventDate: evTime},
		},
	})
	require.NoError(t, err)

	o, err = st.FindByOrderNumber(ctx, "PED-1001")
	require.NoError(t, err)
	require.Equal(t, models.StatusShipped, o.Status)
	require.Nil(t, o.LastAPIError)
	require.WithinDuration(t, newEst, *o.EstimatedDeliveryDate, time.Second)

	evs, err := st.ListOrderEvents(ctx, o.ID, 10, 0)
	require.NoError(t, err)
	require.Len(t, evs, 1)
	require.WithinDuration(t, evTime, evs[0].EventDate, time.Second)

	// channel branch inserts a synthetic event only when history is empty
	o2, err := st.FindByOrderNumber(ctx, "PED-1002")
	require.NoError(t, err)
	synthetic := &models.TrackingEvent{
		Status:      models.StatusChannelLogistics,
		Description: "Logística gerenciada pelo canal de venda",
		EventDate:   time.Now().UTC(),
	}
	require.NoError(t, st.MarkChannelLogistics(ctx, o2.ID, synthetic.EventDate, synthetic))
	evs2, err := st.ListOrderEvents(ctx, o2.ID, 10, 0)
	require.NoError(t, err)
	require.Len(t, evs2, 1)

	o2, err = st.FindByOrderNumber(ctx, "PED-1002")
	require.NoError(t, err)
	require.Equal(t, models.StatusChannelLogistics, o2.Status)
	firstUpdate := o2.LastUpdate

	// second classification duplicates nothing and leaves the row alone
	require.NoError(t, st.MarkChannelLogistics(ctx, o2.ID, time.Now().UTC().Add(time.Hour), synthetic))
	evs2, err = st.ListOrderEvents(ctx, o2.ID, 10, 0)
	require.NoError(t, err)
	require.Len(t, evs2, 1)

	o2, err = st.FindByOrderNumber(ctx, "PED-1002")
	require.NoError(t, err)
	require.Equal(t, models.StatusChannelLogistics, o2.Status)
	require.WithinDuration(t, firstUpdate, o2.LastUpdate, time.Second)

	all, err := st.ListOrders(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	for _, ord := range all {
		require.NotEmpty(t, ord.History)
	}
}
