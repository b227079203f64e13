package frame

import (
	"time"

	"github.com/loov/hrtime"
)

// Clock measures animation time from a start point.
type Clock struct {
	start time.Duration
}

func (c *Clock) Start() {
	c.start = hrtime.Now()
}

func (c *Clock) ElapsedSeconds() float64 {
	return (hrtime.Now() - c.start).Seconds()
}
