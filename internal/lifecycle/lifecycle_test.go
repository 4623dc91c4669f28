package lifecycle

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mamadbah2/vaccine-orders/internal/domain/models"
)

func TestNextWalksSequence(t *testing.T) {
	cases := map[models.OrderStatus]models.OrderStatus{
		models.StatusRequested:  models.StatusConfirmed,
		models.StatusConfirmed:  models.StatusPrepared,
		models.StatusPrepared:   models.StatusDispatched,
		models.StatusDispatched: models.StatusDelivered,
	}
	for from, want := range cases {
		got, ok := Next(from)
		require.True(t, ok, from)
		assert.Equal(t, want, got)
	}

	_, ok := Next(models.StatusDelivered)
	assert.False(t, ok)
	_, ok = Next(models.StatusCancelled)
	assert.False(t, ok)
	_, ok = Next("bogus")
	assert.False(t, ok)
}

func TestCanTransition(t *testing.T) {
	assert.True(t, CanTransition(models.StatusRequested, models.StatusConfirmed))
	assert.False(t, CanTransition(models.StatusRequested, models.StatusPrepared), "no skipping")
	assert.False(t, CanTransition(models.StatusPrepared, models.StatusConfirmed), "no backward moves")
	assert.False(t, CanTransition(models.StatusConfirmed, models.StatusConfirmed))

	for _, s := range []models.OrderStatus{models.StatusRequested, models.StatusConfirmed, models.StatusPrepared, models.StatusDispatched} {
		assert.True(t, CanTransition(s, models.StatusCancelled), s)
	}
	assert.False(t, CanTransition(models.StatusDelivered, models.StatusCancelled))
	assert.False(t, CanTransition(models.StatusCancelled, models.StatusRequested))
}

func TestTimelineBoundary(t *testing.T) {
	for ci, current := range Sequence {
		tl := BuildTimeline(models.Order{Status: current})
		require.Len(t, tl.Steps, len(Sequence))
		assert.False(t, tl.Cancelled)
		for i, step := range tl.Steps {
			if i <= ci {
				assert.Equal(t, StepCompleted, step.State, "%s at %s", step.Status, current)
			} else {
				assert.Equal(t, StepPending, step.State, "%s at %s", step.Status, current)
			}
			assert.Equal(t, step.Status == current, step.Current)
		}
	}
}

func TestTimelineAfterConfirmedToPrepared(t *testing.T) {
	tl := BuildTimeline(models.Order{Status: models.StatusPrepared})

	states := map[models.OrderStatus]StepState{}
	for _, s := range tl.Steps {
		states[s.Status] = s.State
	}
	assert.Equal(t, StepCompleted, states[models.StatusRequested])
	assert.Equal(t, StepCompleted, states[models.StatusConfirmed])
	assert.Equal(t, StepCompleted, states[models.StatusPrepared])
	assert.Equal(t, StepPending, states[models.StatusDispatched])
	assert.Equal(t, StepPending, states[models.StatusDelivered])
}

func TestTimelineCancelled(t *testing.T) {
	tl := BuildTimeline(models.Order{Status: models.StatusCancelled})
	assert.True(t, tl.Cancelled)
	for _, s := range tl.Steps {
		assert.Equal(t, StepPending, s.State)
		assert.False(t, s.Current)
	}
}

func TestAttributionUsesFirstMatchingEntry(t *testing.T) {
	staff := int64(7)
	o := models.Order{
		UserUsername: "farmco",
		Status:       models.StatusPrepared,
		StatusHistory: []models.StatusHistoryEntry{
			{Status: models.StatusRequested, ChangedByUsername: models.SystemUsername},
			{Status: models.StatusConfirmed, ChangedBy: &staff, ChangedByUsername: "alice"},
			{Status: models.StatusConfirmed, ChangedBy: &staff, ChangedByUsername: "bob"},
		},
	}

	assert.Equal(t, "farmco", Attribution(o, models.StatusRequested))
	assert.Equal(t, "alice", Attribution(o, models.StatusConfirmed))
	assert.Equal(t, "", Attribution(o, models.StatusPrepared), "missing entry shows no attribution")

	_, ok := ChangedBy(o.StatusHistory, models.StatusDelivered)
	assert.False(t, ok)
}

func TestAttributionRequestedFallback(t *testing.T) {
	assert.Equal(t, "Client", Attribution(models.Order{}, models.StatusRequested))
	o := models.Order{User: &models.User{Username: "vetshop"}}
	assert.Equal(t, "vetshop", Attribution(o, models.StatusRequested))
}
