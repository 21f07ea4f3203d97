package sched

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

var epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func TestManualClock_Advance(t *testing.T) {
	c := NewManualClock(epoch)
	assert.Equal(t, epoch, c.Now())

	c.Advance(5 * time.Second)
	assert.Equal(t, epoch.Add(5*time.Second), c.Now())

	c.Advance(-time.Hour)
	assert.Equal(t, epoch.Add(5*time.Second), c.Now(), "negative advance is ignored")
}

func TestManualClock_SetNeverMovesBackwards(t *testing.T) {
	c := NewManualClock(epoch)
	c.Set(epoch.Add(time.Minute))
	c.Set(epoch)
	assert.Equal(t, epoch.Add(time.Minute), c.Now())
}
