package client

import (
	"context"

	"github.com/juju/errors"
	"github.com/juju/retry"
	"go.uber.org/zap"
)

// errJobRunning is the only error WaitForJob polls through.
const errJobRunning = errors.ConstError("job not complete")

// WaitForJob polls get_job_status every AsyncJobCheckTime until the job is
// complete and returns its final status. A failed call ends the wait with
// that error; so does ctx.
func (c *Client) WaitForJob(ctx context.Context, job string) (JobStatus, error) {
	var status JobStatus
	err := retry.Call(retry.CallArgs{
		Func: func() error {
			var err error
			status, err = c.GetJobStatus(ctx, job)
			if err != nil {
				return err
			}
			if !status.Complete {
				return errJobRunning
			}
			return nil
		},
		IsFatalError: func(err error) bool {
			return !errors.Is(err, errJobRunning)
		},
		NotifyFunc: func(lastError error, attempt int) {
			c.logger.Debug("job still running",
				zap.String("job", job),
				zap.String("stage", status.Stage),
				zap.String("status", status.Status),
				zap.Int("attempt", attempt))
		},
		Attempts: -1,
		Delay:    c.asyncJobCheckTime,
		Clock:    c.clock,
		Stop:     ctx.Done(),
	})
	if err == nil {
		return status, nil
	}
	if ctx.Err() != nil {
		return status, errors.Annotatef(ctx.Err(), "waiting for job %s", job)
	}
	return status, errors.Trace(err)
}
