package fake

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/aRFialho/AvanTracking/internal/integrations/tracking"
)

func TestClient_FetchTracking_Deterministic(t *testing.T) {
	c := New()
	a, errA := c.FetchTracking(context.Background(), "VD-1")
	b, errB := c.FetchTracking(context.Background(), "VD-1")
	require.Equal(t, errA == nil, errB == nil)
	require.Equal(t, a.Status, b.Status)
}

func TestClient_FetchTracking_SomeOrdersHaveNoData(t *testing.T) {
	c := New()
	var noData, withData int
	for i := 0; i < 50; i++ {
		_, err := c.FetchTracking(context.Background(), "VD-"+string(rune('A'+i%26))+string(rune('0'+i%10)))
		if err != nil {
			require.ErrorIs(t, err, tracking.ErrNoData)
			noData++
		} else {
			withData++
		}
	}
	require.Positive(t, noData)
	require.Positive(t, withData)
}
