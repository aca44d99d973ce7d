package client

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/1stship/lwm2mcore/internal/fluf"
	"github.com/1stship/lwm2mcore/internal/sdm"
)

func intPtr(n int) *int            { return &n }
func floatPtr(f float64) *float64 { return &f }

func TestDueToNotifyRespectsPmin(t *testing.T) {
	s := &Server{}
	now := time.Now()
	obs := &observation{
		attrs:    fluf.AttrBag{Pmin: intPtr(10)},
		lastSent: now,
		haveLast: true,
	}
	due, _ := s.dueToNotify(obs, sdm.IntValue(5), now.Add(5*time.Second))
	assert.False(t, due, "pmin not yet elapsed")

	due, reason := s.dueToNotify(obs, sdm.IntValue(5), now.Add(11*time.Second))
	assert.True(t, due)
	assert.NotEmpty(t, reason)
}

func TestDueToNotifyPmax(t *testing.T) {
	s := &Server{}
	now := time.Now()
	obs := &observation{
		attrs:    fluf.AttrBag{Pmax: intPtr(30)},
		lastSent: now,
		haveLast: true,
	}
	due, reason := s.dueToNotify(obs, sdm.IntValue(5), now.Add(31*time.Second))
	assert.True(t, due)
	assert.Equal(t, "pmax", reason)
}

func TestDueToNotifyThreshold(t *testing.T) {
	s := &Server{}
	now := time.Now()
	obs := &observation{
		attrs:     fluf.AttrBag{St: floatPtr(2)},
		lastSent:  now,
		lastValue: sdm.DoubleValue(10),
		haveLast:  true,
	}
	due, _ := s.dueToNotify(obs, sdm.DoubleValue(10.5), now.Add(1*time.Second))
	assert.False(t, due, "below step threshold")

	due, reason := s.dueToNotify(obs, sdm.DoubleValue(13), now.Add(1*time.Second))
	assert.True(t, due)
	assert.Equal(t, "threshold", reason)
}
