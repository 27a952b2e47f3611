package signup_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	signup "github.com/goliatone/go-signup"
)

func newTracker(storage signup.Storage, opts ...signup.ScenarioTrackerOption) *signup.ScenarioTracker {
	opts = append([]signup.ScenarioTrackerOption{signup.WithScenarioLogger(signup.NopLogger())}, opts...)
	return signup.NewScenarioTracker(storage, opts...)
}

func TestScenarioTrackerDefaults(t *testing.T) {
	tracker := newTracker(signup.NewMemoryStorage())
	ctx := context.Background()

	flags, err := tracker.Flags(ctx)
	require.NoError(t, err)
	assert.Equal(t, signup.ScenarioFlags{}, flags)
	assert.False(t, tracker.SignUpCompleted(ctx))
	assert.False(t, tracker.SignUpPageInaccessible(ctx))
	assert.False(t, tracker.SigningUpWithSameEmail(ctx))
}

func TestScenarioTrackerMergesRecord(t *testing.T) {
	ctx := context.Background()
	storage := signup.NewMemoryStorage()
	tracker := newTracker(storage)

	require.NoError(t, tracker.MarkScenarioAsDone(ctx, signup.ScenarioSignUpCompleted))
	require.NoError(t, tracker.MarkScenarioAsDone(ctx, signup.ScenarioSignUpPageInaccessible))

	raw, ok, err := storage.Get(ctx, signup.StorageKeyScenarios)
	require.NoError(t, err)
	require.True(t, ok)

	var stored map[string]bool
	require.NoError(t, json.Unmarshal([]byte(raw), &stored))
	assert.Equal(t, map[string]bool{
		"signUpCompleted":        true,
		"signUpPageInaccessible": true,
		"signingUpWithSameEmail": false,
	}, stored)
}

func TestScenarioTrackerIsMonotonic(t *testing.T) {
	ctx := context.Background()
	sink := &eventRecorder{}
	tracker := newTracker(signup.NewMemoryStorage(), signup.WithScenarioActivitySink(sink))

	require.NoError(t, tracker.MarkScenarioAsDone(ctx, signup.ScenarioSigningUpWithSameEmail))
	require.NoError(t, tracker.MarkScenarioAsDone(ctx, signup.ScenarioSigningUpWithSameEmail))

	assert.True(t, tracker.SigningUpWithSameEmail(ctx))
	assert.Len(t, sink.Types(), 1)
}

func TestScenarioTrackerUnknownScenario(t *testing.T) {
	ctx := context.Background()
	storage := signup.NewMemoryStorage()
	tracker := newTracker(storage)

	err := tracker.MarkScenarioAsDone(ctx, signup.Scenario("somethingElse"))
	assert.ErrorIs(t, err, signup.ErrUnknownScenario)

	_, ok, err := storage.Get(ctx, signup.StorageKeyScenarios)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestScenarioTrackerCorruptRecord(t *testing.T) {
	ctx := context.Background()
	storage := signup.NewMemoryStorage()
	require.NoError(t, storage.Set(ctx, signup.StorageKeyScenarios, "[1,2"))
	tracker := newTracker(storage)

	flags, err := tracker.Flags(ctx)
	require.NoError(t, err)
	assert.Equal(t, signup.ScenarioFlags{}, flags)

	require.NoError(t, tracker.MarkScenarioAsDone(ctx, signup.ScenarioSignUpCompleted))
	assert.True(t, tracker.SignUpCompleted(ctx))
}

func TestScenarioTrackerPartialRecord(t *testing.T) {
	ctx := context.Background()
	storage := signup.NewMemoryStorage()
	require.NoError(t, storage.Set(ctx, signup.StorageKeyScenarios, `{"signUpCompleted":true}`))
	tracker := newTracker(storage)

	require.NoError(t, tracker.MarkScenarioAsDone(ctx, signup.ScenarioSigningUpWithSameEmail))

	flags, err := tracker.Flags(ctx)
	require.NoError(t, err)
	assert.Equal(t, signup.ScenarioFlags{SignUpCompleted: true, SigningUpWithSameEmail: true}, flags)
}

func TestScenarioTrackerWriteFailure(t *testing.T) {
	tracker := newTracker(newFlakyStorage("set"))
	err := tracker.MarkScenarioAsDone(context.Background(), signup.ScenarioSignUpCompleted)
	assert.ErrorIs(t, err, errStorageDown)
}

func TestScenarioTrackerSubscribe(t *testing.T) {
	ctx := context.Background()
	tracker := newTracker(signup.NewMemoryStorage())

	var seen []signup.ScenarioFlags
	stop := tracker.Subscribe(func(f signup.ScenarioFlags) { seen = append(seen, f) })

	require.NoError(t, tracker.MarkScenarioAsDone(ctx, signup.ScenarioSignUpCompleted))
	stop()
	require.NoError(t, tracker.MarkScenarioAsDone(ctx, signup.ScenarioSignUpPageInaccessible))

	require.Len(t, seen, 1)
	assert.True(t, seen[0].SignUpCompleted)
	assert.False(t, seen[0].SignUpPageInaccessible)
}

func TestScenarioTrackerSubscriberCanMarkScenario(t *testing.T) {
	ctx := context.Background()
	tracker := newTracker(signup.NewMemoryStorage())

	var seen []signup.ScenarioFlags
	tracker.Subscribe(func(f signup.ScenarioFlags) {
		seen = append(seen, f)
		if f.SignUpCompleted && !f.SigningUpWithSameEmail {
			assert.NoError(t, tracker.MarkScenarioAsDone(ctx, signup.ScenarioSigningUpWithSameEmail))
		}
	})

	done := make(chan error, 1)
	go func() {
		done <- tracker.MarkScenarioAsDone(ctx, signup.ScenarioSignUpCompleted)
	}()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("MarkScenarioAsDone did not return")
	}

	flags, err := tracker.Flags(ctx)
	require.NoError(t, err)
	assert.True(t, flags.SignUpCompleted)
	assert.True(t, flags.SigningUpWithSameEmail)
	assert.Len(t, seen, 2)
}

func TestScenarioFlagsDone(t *testing.T) {
	flags := signup.ScenarioFlags{SignUpPageInaccessible: true}
	assert.True(t, flags.Done(signup.ScenarioSignUpPageInaccessible))
	assert.False(t, flags.Done(signup.ScenarioSignUpCompleted))
	assert.False(t, flags.Done(signup.Scenario("nope")))
}
