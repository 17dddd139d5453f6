package worker

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestSchedulerRunsJob(t *testing.T) {
	s := New(zerolog.Nop())
	var runs int32

	err := s.Add(context.Background(), Job{
		Name: "test-job",
		Spec: "@every 20ms",
		Run: func(ctx context.Context) error {
			atomic.AddInt32(&runs, 1)
			return nil
		},
	})
	require.NoError(t, err)

	s.Start()
	defer s.Stop()

	require.Eventually(t, func() bool {
		return atomic.LoadInt32(&runs) >= 2
	}, time.Second, 10*time.Millisecond)
}

func TestSchedulerSurvivesJobError(t *testing.T) {
	s := New(zerolog.Nop())
	var runs int32

	err := s.Add(context.Background(), Job{
		Name: "failing-job",
		Spec: "@every 15ms",
		Run: func(ctx context.Context) error {
			atomic.AddInt32(&runs, 1)
			return assertError
		},
	})
	require.NoError(t, err)

	s.Start()
	defer s.Stop()

	require.Eventually(t, func() bool {
		return atomic.LoadInt32(&runs) >= 2
	}, time.Second, 10*time.Millisecond)
}

var assertError = errTest{}

type errTest struct{}

func (errTest) Error() string { return "intentional test failure" }
