package candidate_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"passfuse/internal/candidate"
)

func drain(t *testing.T, s candidate.Stream) []candidate.Candidate {
	t.Helper()
	var out []candidate.Candidate
	for {
		c, ok, err := s.Next(context.Background())
		require.NoError(t, err)
		if !ok {
			return out
		}
		out = append(out, c)
	}
}

func TestFromSliceAssignsRanks(t *testing.T) {
	got := drain(t, candidate.FromSlice("rules", []string{"a1", "b2", "c3"}))
	require.Len(t, got, 3)
	for i, c := range got {
		assert.Equal(t, i+1, c.Rank)
		assert.Equal(t, "rules", c.Source)
		assert.False(t, c.HasScore)
	}
	assert.Equal(t, "c3", got[2].Password)
}

func TestEmptyStream(t *testing.T) {
	s := candidate.Empty()
	_, ok, err := s.Next(context.Background())
	assert.False(t, ok)
	assert.NoError(t, err)
	assert.NoError(t, s.Close())
}

func TestFromSliceHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, ok, err := candidate.FromSlice("rules", []string{"a"}).Next(ctx)
	assert.False(t, ok)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRankedSkipsUnparsedLines(t *testing.T) {
	lines := []string{"alpha\t0.5", "", "#1secret", "beta", "<END>", "gamma\tnope"}
	pos := 0
	closed := 0
	r := candidate.NewRanked("model", func() (string, bool, error) {
		if pos >= len(lines) {
			return "", false, nil
		}
		pos++
		return lines[pos-1], true, nil
	}, candidate.ParseLine, func() error { closed++; return nil })

	got := drain(t, r)
	require.Len(t, got, 4)
	assert.Equal(t, candidate.Candidate{Password: "alpha", Source: "model", Rank: 1, Score: 0.5, HasScore: true}, got[0])
	assert.Equal(t, "#1secret", got[1].Password)
	assert.Equal(t, 2, got[1].Rank)
	assert.Equal(t, "beta", got[2].Password)
	assert.Equal(t, candidate.Candidate{Password: "gamma", Source: "model", Rank: 4}, got[3])

	require.NoError(t, r.Close())
	require.NoError(t, r.Close())
	assert.Equal(t, 1, closed)
}

func TestRankedPropagatesError(t *testing.T) {
	boom := errors.New("pipe closed")
	calls := 0
	r := candidate.NewRanked("model", func() (string, bool, error) {
		calls++
		if calls == 1 {
			return "first", true, nil
		}
		return "", false, boom
	}, candidate.ParseLine, nil)

	c, ok, err := r.Next(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "first", c.Password)

	_, ok, err = r.Next(context.Background())
	assert.False(t, ok)
	assert.ErrorIs(t, err, boom)
}

func TestParseLine(t *testing.T) {
	tests := []struct {
		line     string
		password string
		score    float64
		hasScore bool
		ok       bool
	}{
		{"janedoe1990", "janedoe1990", 0, false, true},
		{"jane1990!\t0.0125", "jane1990!", 0.0125, true, true},
		{"pass word\r", "pass word", 0, false, true},
		{"p@ss #note", "p@ss", 0, false, true},
		{"#hash#", "#hash#", 0, false, true},
		{"<END>", "", 0, false, false},
		{"   ", "", 0, false, false},
		{"\t0.3", "", 0, false, false},
	}
	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			password, score, hasScore, ok := candidate.ParseLine(tt.line)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.password, password)
			assert.Equal(t, tt.hasScore, hasScore)
			assert.InDelta(t, tt.score, score, 1e-12)
		})
	}
}
