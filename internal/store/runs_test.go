package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/reprojcheck/internal/testutil"
)

func testRecord(id string, startedAt time.Time) RunRecord {
	return RunRecord{
		ID:              id,
		PlanName:        "utm31",
		Source:          "EPSG:4326",
		Target:          "EPSG:32631",
		Samples:         1024,
		Threads:         2,
		IterationTarget: 10000,
		Iterations:      10001,
		Mode:            "shared",
		ReferenceDigest: "abc123",
		Outcome:         "pass",
		Duration:        1500 * time.Millisecond,
		StartedAt:       startedAt,
	}
}

func TestRecordRun_RoundTrip(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	started := time.Date(2024, 3, 1, 12, 30, 0, 123456789, time.UTC)
	rec := testRecord("run-1", started)
	rec.Outcome = "violation"
	rec.Failure = "consistency violation: worker 1 iteration 42"
	require.NoError(t, s.RecordRun(ctx, rec))

	got, err := s.GetRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, rec, got)
}

func TestRecordRun_StoresUTC(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	paris := time.FixedZone("CET", 3600)
	started := time.Date(2024, 3, 1, 13, 0, 0, 0, paris)
	require.NoError(t, s.RecordRun(ctx, testRecord("run-1", started)))

	got, err := s.GetRun(ctx, "run-1")
	require.NoError(t, err)
	assert.True(t, started.Equal(got.StartedAt))
	assert.Equal(t, time.UTC, got.StartedAt.Location())
}

func TestRecordRun_Idempotent(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	first := testRecord("run-1", testutil.Epoch)
	require.NoError(t, s.RecordRun(ctx, first))

	second := first
	second.Outcome = "violation"
	require.NoError(t, s.RecordRun(ctx, second), "duplicate id must be ignored")

	got, err := s.GetRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, "pass", got.Outcome, "first write wins")

	runs, err := s.ListRuns(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, runs, 1)
}

func TestRecordRun_Rejects(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	assert.Error(t, s.RecordRun(ctx, testRecord("", testutil.Epoch)))

	bad := testRecord("run-bad", testutil.Epoch)
	bad.Threads = 0
	assert.Error(t, s.RecordRun(ctx, bad), "CHECK constraint on threads")
}

func TestGetRun_NotFound(t *testing.T) {
	s := createTestStore(t)

	_, err := s.GetRun(context.Background(), "nope")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestListRuns_Ordering(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	clock := testutil.NewDeterministicClock()
	ids := testutil.NewFixedIDGenerator("run-a", "run-b", "run-d", "run-c")

	// run-a, run-b at t0, t1; run-d and run-c share t2.
	t0, t1, t2 := clock.Now(), clock.Now(), clock.Now()
	for _, at := range []time.Time{t0, t1, t2, t2} {
		require.NoError(t, s.RecordRun(ctx, testRecord(ids.Generate(), at)))
	}

	runs, err := s.ListRuns(ctx, 0)
	require.NoError(t, err)

	var got []string
	for _, r := range runs {
		got = append(got, r.ID)
	}
	assert.Equal(t, []string{"run-c", "run-d", "run-b", "run-a"}, got)

	limited, err := s.ListRuns(ctx, 2)
	require.NoError(t, err)
	require.Len(t, limited, 2)
	assert.Equal(t, "run-c", limited[0].ID)
	assert.Equal(t, "run-d", limited[1].ID)
}

func TestListRuns_Empty(t *testing.T) {
	s := createTestStore(t)

	runs, err := s.ListRuns(context.Background(), 10)
	require.NoError(t, err)
	assert.NotNil(t, runs)
	assert.Empty(t, runs)
}

func TestUUIDv7Generator(t *testing.T) {
	var gen IDGenerator = UUIDv7Generator{}

	a, b := gen.Generate(), gen.Generate()
	assert.NotEqual(t, a, b)

	parsed, err := uuid.Parse(a)
	require.NoError(t, err)
	assert.Equal(t, uuid.Version(7), parsed.Version())
}

func TestSystemClock(t *testing.T) {
	var clock Clock = SystemClock{}
	before := time.Now()
	now := clock.Now()
	assert.False(t, now.Before(before))
}
