package ragsettings

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	values  map[string]string
	loadErr error
	saves   int
}

func (f *fakeStore) LoadSettings(context.Context) (map[string]string, error) {
	if f.loadErr != nil {
		return nil, f.loadErr
	}
	out := make(map[string]string, len(f.values))
	for k, v := range f.values {
		out[k] = v
	}
	return out, nil
}

func (f *fakeStore) SaveSettings(_ context.Context, values map[string]string) error {
	f.saves++
	if f.values == nil {
		f.values = map[string]string{}
	}
	for k, v := range values {
		f.values[k] = v
	}
	return nil
}

func TestFromValuesFallsBackPerKey(t *testing.T) {
	t.Parallel()

	s := FromValues(map[string]string{
		KeyUseSimilarityGuard:  "no",
		KeyContextTurns:        "5",
		KeySimilarityThreshold: "abc",
		KeyGuardMessage:        "   ",
		KeyRRFK:                "",
		KeyFTSWeight:           "0",
	})

	assert.False(t, s.UseSimilarityGuard)
	assert.Equal(t, 5, s.ContextTurns)
	assert.InDelta(t, 0.5, s.SimilarityThreshold, 1e-9)
	assert.Equal(t, DefaultGuardMessage, s.GuardMessage)
	assert.Equal(t, 60, s.RRFK)
	assert.Zero(t, s.FTSWeight)
	assert.Equal(t, 20, s.HybridTopK)
}

func TestParsePatchNormalizes(t *testing.T) {
	t.Parallel()

	got, err := ParsePatch(map[string]string{
		KeyUseSimilarityGuard:  "FALSE",
		KeyContextTurns:        " 4 ",
		KeySimilarityThreshold: "0.65",
		KeyGuardMessage:        "Out of scope.",
	})
	require.NoError(t, err)

	assert.Equal(t, map[string]string{
		KeyUseSimilarityGuard:  "false",
		KeyContextTurns:        "4",
		KeySimilarityThreshold: "0.65",
		KeyGuardMessage:        "Out of scope.",
	}, got)
}

func TestParsePatchRejects(t *testing.T) {
	t.Parallel()

	cases := []struct {
		patch map[string]string
		field string
	}{
		{map[string]string{KeyContextTurns: "11"}, KeyContextTurns},
		{map[string]string{KeyContextTurns: "2.5"}, KeyContextTurns},
		{map[string]string{KeySimilarityThreshold: "0.05"}, KeySimilarityThreshold},
		{map[string]string{KeyMatchThreshold: "NaN"}, KeyMatchThreshold},
		{map[string]string{KeyUseSimilarityGuard: "maybe"}, KeyUseSimilarityGuard},
		{map[string]string{KeyGuardMessage: strings.Repeat("x", 1001)}, KeyGuardMessage},
		{map[string]string{"temperature": "1"}, "temperature"},
		{map[string]string{KeyRRFK: "60", KeyHybridTopK: "500"}, KeyHybridTopK},
	}
	for _, tc := range cases {
		_, err := ParsePatch(tc.patch)
		var fieldErr *FieldError
		require.True(t, errors.As(err, &fieldErr), "patch %v", tc.patch)
		assert.Equal(t, tc.field, fieldErr.Field)
	}

	_, err := ParsePatch(nil)
	assert.Error(t, err)
}

func TestServiceUpdateIsAllOrNothing(t *testing.T) {
	t.Parallel()

	store := &fakeStore{values: map[string]string{KeyContextTurns: "2"}}
	svc := NewService(store, nil)

	_, err := svc.Update(context.Background(), map[string]string{
		KeyContextTurns: "6",
		KeyRRFK:         "0",
	})
	require.Error(t, err)
	assert.Zero(t, store.saves)
	assert.Equal(t, 2, svc.Load(context.Background()).ContextTurns)

	updated, err := svc.Update(context.Background(), map[string]string{
		KeyContextTurns: "6",
		KeyRRFK:         "30",
	})
	require.NoError(t, err)
	assert.Equal(t, 1, store.saves)
	assert.Equal(t, 6, updated.ContextTurns)
	assert.Equal(t, 30, updated.RRFK)
}

func TestServiceLoadFallsBackToDefaults(t *testing.T) {
	t.Parallel()

	svc := NewService(&fakeStore{loadErr: errors.New("connection refused")}, nil)
	assert.Equal(t, Defaults(), svc.Load(context.Background()))
}

func TestValuesRoundTrip(t *testing.T) {
	t.Parallel()

	s := Defaults()
	s.SimilarityThreshold = 0.35
	s.UseSimilarityGuard = false

	assert.Equal(t, s, FromValues(Values(s)))
	assert.Len(t, Keys(), len(Values(s)))
}
