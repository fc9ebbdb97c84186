package id

import (
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_PrefixAndTime(t *testing.T) {
	at := time.Date(2024, 5, 6, 14, 0, 0, 0, time.UTC)
	prev := now
	now = func() time.Time { return at }
	t.Cleanup(func() { now = prev })

	v := New(KindTransaction)
	assert.Equal(t, KindTransaction, Kind(v))

	got, err := Time(v)
	require.NoError(t, err)
	assert.True(t, got.Equal(at), got)

	assert.Equal(t, "", Kind(New("")))
}

func TestNew_SortsInCreationOrder(t *testing.T) {
	ids := make([]string, 200)
	for i := range ids {
		ids[i] = New(KindPending)
	}
	assert.True(t, sort.StringsAreSorted(ids))
}

func TestTime_RejectsGarbage(t *testing.T) {
	_, err := Time("pnd_not-a-ulid")
	assert.Error(t, err)
}
