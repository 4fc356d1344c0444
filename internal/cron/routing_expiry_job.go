package cron

import (
	"context"
	"fmt"
	"time"
)

// routingSweeper is the slice of the routing service the job needs.
type routingSweeper interface {
	ExpireAndRebroadcast(ctx context.Context, now time.Time) (int, error)
}

// RoutingExpiryJob sweeps routings whose response window lapsed: silent
// vendors are marked expired and the next tier is broadcast, or the order
// fails when no tier remains.
type RoutingExpiryJob struct {
	sweeper routingSweeper
}

// NewRoutingExpiryJob builds the routing expiry sweep job.
func NewRoutingExpiryJob(sweeper routingSweeper) (*RoutingExpiryJob, error) {
	if sweeper == nil {
		return nil, fmt.Errorf("routing sweeper required")
	}
	return &RoutingExpiryJob{sweeper: sweeper}, nil
}

func (j *RoutingExpiryJob) Name() string { return "routing_expiry" }

func (j *RoutingExpiryJob) Run(ctx context.Context) error {
	_, err := j.sweeper.ExpireAndRebroadcast(ctx, time.Now())
	return err
}
