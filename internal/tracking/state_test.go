package tracking_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bus_tracker/internal/models"
	"bus_tracker/internal/tracking"
)

func strPtr(s string) *string { return &s }

func TestTransitionDelayedCarriesAlert(t *testing.T) {
	bus := &models.Bus{Status: models.StatusOnTime, AlertType: models.AlertNormal}
	now := time.Now()

	err := tracking.Transition{
		Location:     "Library",
		Direction:    models.DirectionDeparture,
		NextStop:     "Hostel",
		Status:       models.StatusDelayed,
		AlertMessage: strPtr("Traffic on highway"),
		Students:     14,
	}.Apply(bus, now)
	require.NoError(t, err)

	assert.Equal(t, models.StatusDelayed, bus.Status)
	assert.Equal(t, models.AlertDelayed, bus.AlertType)
	require.NotNil(t, bus.AlertMessage)
	assert.Equal(t, "Traffic on highway", *bus.AlertMessage)
	assert.Equal(t, "Library", bus.CurrentLocation)
	assert.Equal(t, "Hostel", bus.NextStop)
	assert.Equal(t, 14, bus.CurrentPassengers.Students)
	assert.Equal(t, now, bus.UpdatedAt)
}

func TestTransitionEarlyMirrorsAlertType(t *testing.T) {
	bus := &models.Bus{}
	err := tracking.Transition{Status: models.StatusEarly, Direction: models.DirectionReturn}.Apply(bus, time.Now())
	require.NoError(t, err)
	assert.Equal(t, models.AlertEarly, bus.AlertType)
	assert.Nil(t, bus.AlertMessage)
}

func TestTransitionOnTimeClearsAlert(t *testing.T) {
	for _, prior := range []models.AlertType{models.AlertDelayed, models.AlertEarly, models.AlertNormal} {
		bus := &models.Bus{Status: models.BusStatus(prior), AlertType: prior, AlertMessage: strPtr("old")}
		if prior == models.AlertNormal {
			bus.Status = models.StatusOnTime
		}

		err := tracking.Transition{Status: models.StatusOnTime, Direction: models.DirectionDeparture}.Apply(bus, time.Now())
		require.NoError(t, err)
		assert.Equal(t, models.AlertNormal, bus.AlertType, "prior %s", prior)
		assert.Nil(t, bus.AlertMessage, "prior %s", prior)
	}
}

func TestTransitionBlankMessageIsNoMessage(t *testing.T) {
	bus := &models.Bus{AlertMessage: strPtr("old")}
	err := tracking.Transition{Status: models.StatusOnTime, AlertMessage: strPtr("   ")}.Apply(bus, time.Now())
	require.NoError(t, err)
	assert.Nil(t, bus.AlertMessage)
}

func TestTransitionRejectsMaintenance(t *testing.T) {
	bus := &models.Bus{Status: models.StatusOnTime, CurrentLocation: "Gate"}
	err := tracking.Transition{Status: models.StatusMaintenance, Location: "Library"}.Apply(bus, time.Now())
	assert.True(t, tracking.IsValidation(err))
	assert.Equal(t, "Gate", bus.CurrentLocation, "bus must be untouched")
}

func TestResetToDepot(t *testing.T) {
	bus := &models.Bus{
		Status:            models.StatusDelayed,
		AlertType:         models.AlertDelayed,
		AlertMessage:      strPtr("Flat tyre"),
		CurrentLocation:   "Hostel",
		CurrentDirection:  models.DirectionReturn,
		NextStop:          "Library",
		CurrentPassengers: models.Passengers{Students: 20, Others: 2},
	}
	tracking.ResetToDepot(bus, time.Now())

	assert.Equal(t, models.StatusMaintenance, bus.Status)
	assert.Equal(t, models.AlertNormal, bus.AlertType)
	assert.Nil(t, bus.AlertMessage)
	assert.Equal(t, models.DefaultLocation, bus.CurrentLocation)
	assert.Empty(t, bus.NextStop)
	assert.Equal(t, models.Passengers{}, bus.CurrentPassengers)
}
