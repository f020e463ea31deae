package client

import (
	"context"
	"encoding/json"

	"github.com/juju/errors"
)

// invoke runs method and decodes its result into out, if out is not nil.
func (c *Client) invoke(ctx context.Context, out any, method string, params ...any) error {
	result, resp, err := c.call(ctx, method, params)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(result, out); err != nil {
		return malformed(resp, errors.Annotatef(err, "decoding %s result", method))
	}
	return nil
}

// nullable sends an empty string as null.
func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// Ver returns the version of the service.
func (c *Client) Ver(ctx context.Context) (string, error) {
	var ver string
	err := c.invoke(ctx, &ver, "ver")
	return ver, err
}

// Status returns the server's self-reported status.
func (c *Client) Status(ctx context.Context) (map[string]any, error) {
	var status map[string]any
	err := c.invoke(ctx, &status, "status")
	return status, err
}

// SetState stores value under key for service, visible only to the caller.
func (c *Client) SetState(ctx context.Context, service, key string, value any) error {
	return c.invoke(ctx, nil, "set_state", service, key, value)
}

// SetStateAuth stores value under key for the service named by a service
// token. The state is readable by any user with auth set.
func (c *Client) SetStateAuth(ctx context.Context, token, key string, value any) error {
	return c.invoke(ctx, nil, "set_state_auth", token, key, value)
}

// GetState returns the raw value stored under key. auth selects state
// written with SetStateAuth.
func (c *Client) GetState(ctx context.Context, service, key string, auth bool) (json.RawMessage, error) {
	return c.Call(ctx, "get_state", service, key, Boolean(auth))
}

func (c *Client) HasState(ctx context.Context, service, key string, auth bool) (bool, error) {
	var has Boolean
	err := c.invoke(ctx, &has, "has_state", service, key, Boolean(auth))
	return bool(has), err
}

// GetHasState returns whether key exists and, if so, its value.
func (c *Client) GetHasState(ctx context.Context, service, key string, auth bool) (bool, json.RawMessage, error) {
	result, resp, err := c.call(ctx, "get_has_state", []any{service, key, Boolean(auth)})
	if err != nil {
		return false, nil, err
	}
	var has Boolean
	var value json.RawMessage
	if err := decodeTuple(result, "get_has_state result", &has, &value); err != nil {
		return false, nil, malformed(resp, err)
	}
	return bool(has), value, nil
}

func (c *Client) RemoveState(ctx context.Context, service, key string) error {
	return c.invoke(ctx, nil, "remove_state", service, key)
}

func (c *Client) RemoveStateAuth(ctx context.Context, token, key string) error {
	return c.invoke(ctx, nil, "remove_state_auth", token, key)
}

// ListState lists the keys stored for service.
func (c *Client) ListState(ctx context.Context, service string, auth bool) ([]string, error) {
	var keys []string
	err := c.invoke(ctx, &keys, "list_state", service, Boolean(auth))
	return keys, err
}

// ListStateServices lists the services the caller holds state for.
func (c *Client) ListStateServices(ctx context.Context, auth bool) ([]string, error) {
	var services []string
	err := c.invoke(ctx, &services, "list_state_services", Boolean(auth))
	return services, err
}

// CreateJob2 creates a job and returns its id.
func (c *Client) CreateJob2(ctx context.Context, params CreateJobParams) (string, error) {
	var job string
	err := c.invoke(ctx, &job, "create_job2", params)
	return job, err
}

// CreateJob creates a job with the default authorization strategy.
func (c *Client) CreateJob(ctx context.Context) (string, error) {
	var job string
	err := c.invoke(ctx, &job, "create_job")
	return job, err
}

// StartJob moves a created job to the started stage. token is the service
// token of the service running the job.
func (c *Client) StartJob(ctx context.Context, job, token, status, desc string, progress InitProgress, estComplete Timestamp) error {
	return c.invoke(ctx, nil, "start_job", job, token, status, desc, progress, estComplete)
}

// CreateAndStartJob creates and starts a job in one call and returns its id.
func (c *Client) CreateAndStartJob(ctx context.Context, token, status, desc string, progress InitProgress, estComplete Timestamp) (string, error) {
	var job string
	err := c.invoke(ctx, &job, "create_and_start_job", token, status, desc, progress, estComplete)
	return job, err
}

// UpdateJobProgress adds prog to a task or percent job's progress.
func (c *Client) UpdateJobProgress(ctx context.Context, job, token, status string, prog int64, estComplete Timestamp) error {
	return c.invoke(ctx, nil, "update_job_progress", job, token, status, prog, estComplete)
}

func (c *Client) UpdateJob(ctx context.Context, job, token, status string, estComplete Timestamp) error {
	return c.invoke(ctx, nil, "update_job", job, token, status, estComplete)
}

func (c *Client) GetJobDescription(ctx context.Context, job string) (JobDescription, error) {
	var desc JobDescription
	err := c.invoke(ctx, &desc, "get_job_description", job)
	return desc, err
}

func (c *Client) GetJobStatus(ctx context.Context, job string) (JobStatus, error) {
	var status JobStatus
	err := c.invoke(ctx, &status, "get_job_status", job)
	return status, err
}

// CompleteJob finishes a job. A non-empty detailedErr marks it as failed;
// res may be nil.
func (c *Client) CompleteJob(ctx context.Context, job, token, status, detailedErr string, res *Results) error {
	var results any
	if res != nil {
		results = res
	}
	return c.invoke(ctx, nil, "complete_job", job, token, status, nullable(detailedErr), results)
}

func (c *Client) GetResults(ctx context.Context, job string) (Results, error) {
	var res Results
	err := c.invoke(ctx, &res, "get_results", job)
	return res, err
}

// GetDetailedError returns the error a job completed with, or "" if it
// succeeded.
func (c *Client) GetDetailedError(ctx context.Context, job string) (string, error) {
	var detail *string
	if err := c.invoke(ctx, &detail, "get_detailed_error", job); err != nil || detail == nil {
		return "", err
	}
	return *detail, nil
}

func (c *Client) GetJobInfo2(ctx context.Context, job string) (JobInfo2, error) {
	var info JobInfo2
	err := c.invoke(ctx, &info, "get_job_info2", job)
	return info, err
}

func (c *Client) GetJobInfo(ctx context.Context, job string) (JobInfo, error) {
	var info JobInfo
	err := c.invoke(ctx, &info, "get_job_info", job)
	return info, err
}

func (c *Client) ListJobs2(ctx context.Context, params ListJobsParams) ([]JobInfo2, error) {
	var jobs []JobInfo2
	err := c.invoke(ctx, &jobs, "list_jobs2", params)
	return jobs, err
}

// ListJobs lists the caller's jobs for services. filter combines the
// Filter* characters; empty lists everything.
func (c *Client) ListJobs(ctx context.Context, services []string, filter string) ([]JobInfo, error) {
	if !ValidFilter(filter) {
		return nil, errors.NewNotValid(nil, "list_jobs: invalid filter "+filter)
	}
	var jobs []JobInfo
	err := c.invoke(ctx, &jobs, "list_jobs", services, filter)
	return jobs, err
}

// ListJobServices lists the services that own jobs visible to the caller.
func (c *Client) ListJobServices(ctx context.Context) ([]string, error) {
	var services []string
	err := c.invoke(ctx, &services, "list_job_services")
	return services, err
}

func (c *Client) ShareJob(ctx context.Context, job string, users []string) error {
	return c.invoke(ctx, nil, "share_job", job, users)
}

func (c *Client) UnshareJob(ctx context.Context, job string, users []string) error {
	return c.invoke(ctx, nil, "unshare_job", job, users)
}

func (c *Client) GetJobOwner(ctx context.Context, job string) (string, error) {
	var owner string
	err := c.invoke(ctx, &owner, "get_job_owner", job)
	return owner, err
}

// GetJobShared lists the users a job is shared with. Only the owner may ask.
func (c *Client) GetJobShared(ctx context.Context, job string) ([]string, error) {
	var users []string
	err := c.invoke(ctx, &users, "get_job_shared", job)
	return users, err
}

func (c *Client) DeleteJob(ctx context.Context, job string) error {
	return c.invoke(ctx, nil, "delete_job", job)
}

// ForceDeleteJob deletes a job regardless of its stage, authorized by the
// owning service's token.
func (c *Client) ForceDeleteJob(ctx context.Context, token, job string) error {
	return c.invoke(ctx, nil, "force_delete_job", token, job)
}
