package snapshot

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wristband.events/wristband/core/fault"
	v1 "wristband.events/wristband/guestsheet/v1"
	"wristband.events/wristband/utils"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()

	s, err := Open(filepath.Join(t.TempDir(), "snapshot.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestReplaceAndFind(t *testing.T) {
	s := openTestStore(t)

	require.NoError(t, s.Replace([]v1.GuestDTO{
		{
			OriginalID:     1,
			FirstName:      "Ana",
			LastName:       "García",
			MobileNumber:   utils.Ptr("0400000001"),
			WristbandTagID: utils.Ptr("04A1B2C3D4"),
			CheckIns:       map[string]string{"reception": "09:00", "workshop": ""},
		},
		{OriginalID: 2, FirstName: "Ben", LastName: "Okafor"},
	}))

	guest, err := s.FindByID(1)
	require.NoError(t, err)
	assert.Equal(t, "Ana García", guest.FullName())
	require.NotNil(t, guest.MobileNumber)
	assert.Equal(t, "0400000001", *guest.MobileNumber)
	require.NotNil(t, guest.WristbandTagID)
	assert.Equal(t, "04A1B2C3D4", *guest.WristbandTagID)
	assert.Equal(t, "09:00", guest.CheckIns["reception"])

	guest, err = s.FindByID(2)
	require.NoError(t, err)
	assert.Nil(t, guest.MobileNumber)
	assert.NotNil(t, guest.CheckIns, "empty check-ins come back as an empty map")
}

func TestFindMissingGuest(t *testing.T) {
	s := openTestStore(t)

	_, err := s.FindByID(999)
	assert.ErrorIs(t, err, fault.ErrNotFound)
}

func TestReplaceDropsStaleGuests(t *testing.T) {
	s := openTestStore(t)

	require.NoError(t, s.Replace([]v1.GuestDTO{
		{OriginalID: 1, FirstName: "Ana"},
		{OriginalID: 2, FirstName: "Ben"},
	}))
	require.NoError(t, s.Replace([]v1.GuestDTO{
		{OriginalID: 2, FirstName: "Ben"},
	}))

	_, err := s.FindByID(1)
	assert.ErrorIs(t, err, fault.ErrNotFound)

	all, err := s.All()
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, 2, all[0].OriginalID)
}

func TestAllOrdersByGuestID(t *testing.T) {
	s := openTestStore(t)

	require.NoError(t, s.Replace([]v1.GuestDTO{
		{OriginalID: 3},
		{OriginalID: 1},
		{OriginalID: 2},
	}))

	all, err := s.All()
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, 1, all[0].OriginalID)
	assert.Equal(t, 3, all[2].OriginalID)
}

func TestRefreshedAt(t *testing.T) {
	s := openTestStore(t)

	assert.True(t, s.RefreshedAt().IsZero(), "empty store reports no refresh")

	before := time.Now().Add(-time.Second)
	require.NoError(t, s.Replace([]v1.GuestDTO{{OriginalID: 1}}))
	assert.True(t, s.RefreshedAt().After(before))
}

func TestSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "snapshot.db")

	s, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s.Replace([]v1.GuestDTO{
		{OriginalID: 1, FirstName: "Ana", CheckIns: map[string]string{"reception": "09:00"}},
	}))
	require.NoError(t, s.Close())

	s, err = Open(path)
	require.NoError(t, err)
	defer s.Close()

	guest, err := s.FindByID(1)
	require.NoError(t, err)
	assert.Equal(t, "09:00", guest.CheckIns["reception"])
}
