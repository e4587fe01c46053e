package state

import (
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestState() *SharedState {
	return New(zerolog.Nop())
}

func TestDefaults(t *testing.T) {
	s := newTestState()
	assert.Equal(t, RiskNormal, s.GetRisk())
	assert.Equal(t, 1.0, s.GetSentiment())
	assert.False(t, s.GetWhaleDump())
}

func TestSentimentClampsOutOfRangeInputs(t *testing.T) {
	s := newTestState()

	s.SetSentiment(10.0, nil)
	assert.Equal(t, 1.5, s.GetSentiment())

	s.SetSentiment(-3.0, nil)
	assert.Equal(t, 0.5, s.GetSentiment())

	s.SetSentiment(0.75, nil)
	assert.Equal(t, 0.75, s.GetSentiment())
}

func TestSnapshotIsCoherent(t *testing.T) {
	s := newTestState()
	s.SetRisk(RiskHigh, nil)
	s.SetSentiment(0.6, nil)
	s.SetWhaleDump(true)

	snap := s.Snapshot()
	require.Equal(t, RiskHigh, snap.RiskLevel)
	require.Equal(t, 0.6, snap.SentimentMultiplier)
	require.True(t, snap.WhaleDumpRisk)
}

func TestConcurrentAccessDoesNotRace(t *testing.T) {
	s := newTestState()
	var wg sync.WaitGroup

	for i := 0; i < 50; i++ {
		wg.Add(3)
		go func(n int) {
			defer wg.Done()
			s.SetSentiment(float64(n%2)+0.5, nil)
		}(i)
		go func() {
			defer wg.Done()
			_ = s.Snapshot()
		}()
		go func(n int) {
			defer wg.Done()
			if n%2 == 0 {
				s.SetRisk(RiskHigh, nil)
			} else {
				s.SetRisk(RiskNormal, nil)
			}
		}(i)
	}

	wg.Wait()
}
