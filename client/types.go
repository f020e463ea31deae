package client

import (
	"bytes"
	"encoding/json"
	"strings"
	"time"

	"github.com/juju/errors"
)

// TimestampLayout is the service's timestamp format. The zone is always a
// numeric offset without a colon, e.g. 2013-04-26T23:52:06-0800.
const TimestampLayout = "2006-01-02T15:04:05-0700"

// Progress types accepted by InitProgress.
const (
	ProgressNone    = "none"
	ProgressTask    = "task"
	ProgressPercent = "percent"
)

// Job stages reported in job status and info.
const (
	StageCreated   = "created"
	StageStarted   = "started"
	StageCompleted = "completed"
	StageError     = "error"
)

// Filter characters accepted by ListJobs. They may be combined, e.g. "RCE".
const (
	FilterRunning  = "R"
	FilterComplete = "C"
	FilterError    = "E"
	FilterShared   = "S"
)

// Timestamp is a point in time in the service's wire format. The zero value
// is sent as null.
type Timestamp struct {
	time.Time
}

func NewTimestamp(t time.Time) Timestamp {
	return Timestamp{Time: t}
}

func (t Timestamp) String() string {
	if t.IsZero() {
		return ""
	}
	return t.Format(TimestampLayout)
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(t.Format(TimestampLayout))
}

// UnmarshalJSON accepts null, the service layout, and RFC 3339.
func (t *Timestamp) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*t = Timestamp{}
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return errors.Annotate(err, "timestamp")
	}
	if s == "" {
		*t = Timestamp{}
		return nil
	}
	parsed, err := time.Parse(TimestampLayout, s)
	if err != nil {
		var rfcErr error
		if parsed, rfcErr = time.Parse(time.RFC3339, s); rfcErr != nil {
			return errors.Annotatef(err, "timestamp %q", s)
		}
	}
	t.Time = parsed
	return nil
}

// Boolean is the service's boolean, a long that is 0 for false. null reads
// as false.
type Boolean bool

func (b Boolean) MarshalJSON() ([]byte, error) {
	if b {
		return []byte("1"), nil
	}
	return []byte("0"), nil
}

func (b *Boolean) UnmarshalJSON(data []byte) error {
	switch s := string(bytes.TrimSpace(data)); s {
	case "null", "false", "0":
		*b = false
		return nil
	case "true":
		*b = true
		return nil
	}
	var n float64
	if err := json.Unmarshal(data, &n); err != nil {
		return errors.Annotate(err, "boolean")
	}
	*b = n != 0
	return nil
}

// InitProgress describes how a job will report progress.
type InitProgress struct {
	Ptype string `json:"ptype"`
	Max   int64  `json:"max,omitempty"` // Ignored unless Ptype is task
}

// Result points at one output of a job.
type Result struct {
	ServerType  string `json:"server_type"`
	URL         string `json:"url"`
	ID          string `json:"id"`
	Description string `json:"description"`
}

// Results is what a completed job produced.
type Results struct {
	Results      []Result `json:"results,omitempty"`
	WorkspaceURL string   `json:"workspaceurl,omitempty"`
	WorkspaceIDs []string `json:"workspaceids,omitempty"`
	ShockURL     string   `json:"shockurl,omitempty"`
	ShockNodes   []string `json:"shocknodes,omitempty"`
}

// CreateJobParams configures create_job2. AuthStrat defaults to "DEFAULT" on
// the server.
type CreateJobParams struct {
	AuthStrat string            `json:"authstrat,omitempty"`
	AuthParam string            `json:"authparam,omitempty"`
	Meta      map[string]string `json:"meta,omitempty"`
}

// ListJobsParams configures list_jobs2.
type ListJobsParams struct {
	Services   []string `json:"services,omitempty"`
	Filter     string   `json:"filter,omitempty"`
	AuthStrat  string   `json:"authstrat,omitempty"`
	AuthParams []string `json:"authparams,omitempty"`
}

// JobDescription is the result of get_job_description.
type JobDescription struct {
	Service      string
	ProgressType string
	MaxProgress  int64
	Description  string
	Started      Timestamp
}

func (d JobDescription) MarshalJSON() ([]byte, error) {
	return json.Marshal([]any{d.Service, d.ProgressType, d.MaxProgress, d.Description, d.Started})
}

func (d *JobDescription) UnmarshalJSON(data []byte) error {
	return decodeTuple(data, "job description",
		&d.Service, &d.ProgressType, &d.MaxProgress, &d.Description, &d.Started)
}

// JobStatus is the result of get_job_status.
type JobStatus struct {
	LastUpdate  Timestamp
	Stage       string
	Status      string
	Progress    int64
	EstComplete Timestamp
	Complete    Boolean
	Error       Boolean
}

func (s JobStatus) MarshalJSON() ([]byte, error) {
	return json.Marshal([]any{s.LastUpdate, s.Stage, s.Status, s.Progress, s.EstComplete, s.Complete, s.Error})
}

func (s *JobStatus) UnmarshalJSON(data []byte) error {
	return decodeTuple(data, "job status",
		&s.LastUpdate, &s.Stage, &s.Status, &s.Progress, &s.EstComplete, &s.Complete, &s.Error)
}

// JobInfo is the flat job record returned by get_job_info and list_jobs.
type JobInfo struct {
	ID           string
	Service      string
	Stage        string
	Started      Timestamp
	Status       string
	LastUpdate   Timestamp
	Progress     int64
	MaxProgress  int64
	ProgressType string
	EstComplete  Timestamp
	Complete     Boolean
	Error        Boolean
	Description  string
	Results      Results
}

func (j JobInfo) MarshalJSON() ([]byte, error) {
	return json.Marshal([]any{
		j.ID, j.Service, j.Stage, j.Started, j.Status, j.LastUpdate, j.Progress,
		j.MaxProgress, j.ProgressType, j.EstComplete, j.Complete, j.Error,
		j.Description, j.Results,
	})
}

func (j *JobInfo) UnmarshalJSON(data []byte) error {
	return decodeTuple(data, "job info",
		&j.ID, &j.Service, &j.Stage, &j.Started, &j.Status, &j.LastUpdate, &j.Progress,
		&j.MaxProgress, &j.ProgressType, &j.EstComplete, &j.Complete, &j.Error,
		&j.Description, &j.Results)
}

// TimeInfo groups the timestamps of a JobInfo2.
type TimeInfo struct {
	Started     Timestamp
	LastUpdate  Timestamp
	EstComplete Timestamp
}

func (t TimeInfo) MarshalJSON() ([]byte, error) {
	return json.Marshal([]any{t.Started, t.LastUpdate, t.EstComplete})
}

func (t *TimeInfo) UnmarshalJSON(data []byte) error {
	return decodeTuple(data, "time info", &t.Started, &t.LastUpdate, &t.EstComplete)
}

// ProgressInfo groups the progress fields of a JobInfo2.
type ProgressInfo struct {
	Progress     int64
	MaxProgress  int64
	ProgressType string
}

func (p ProgressInfo) MarshalJSON() ([]byte, error) {
	return json.Marshal([]any{p.Progress, p.MaxProgress, p.ProgressType})
}

func (p *ProgressInfo) UnmarshalJSON(data []byte) error {
	return decodeTuple(data, "progress info", &p.Progress, &p.MaxProgress, &p.ProgressType)
}

// AuthInfo names the authorization strategy guarding a job.
type AuthInfo struct {
	Strategy string
	Param    string
}

func (a AuthInfo) MarshalJSON() ([]byte, error) {
	return json.Marshal([]any{a.Strategy, a.Param})
}

func (a *AuthInfo) UnmarshalJSON(data []byte) error {
	return decodeTuple(data, "auth info", &a.Strategy, &a.Param)
}

// JobInfo2 is the grouped job record returned by get_job_info2 and
// list_jobs2.
type JobInfo2 struct {
	ID          string
	Service     string
	Stage       string
	Status      string
	Times       TimeInfo
	Progress    ProgressInfo
	Complete    Boolean
	Error       Boolean
	Auth        AuthInfo
	Meta        map[string]string
	Description string
	Results     Results
}

func (j JobInfo2) MarshalJSON() ([]byte, error) {
	return json.Marshal([]any{
		j.ID, j.Service, j.Stage, j.Status, j.Times, j.Progress, j.Complete,
		j.Error, j.Auth, j.Meta, j.Description, j.Results,
	})
}

func (j *JobInfo2) UnmarshalJSON(data []byte) error {
	return decodeTuple(data, "job info2",
		&j.ID, &j.Service, &j.Stage, &j.Status, &j.Times, &j.Progress, &j.Complete,
		&j.Error, &j.Auth, &j.Meta, &j.Description, &j.Results)
}

// decodeTuple unpacks a JSON list into fields by position. Extra trailing
// values are ignored so newer servers can append to a tuple.
func decodeTuple(data []byte, what string, fields ...any) error {
	var values []json.RawMessage
	if err := json.Unmarshal(data, &values); err != nil {
		return errors.Annotatef(err, "%s is not a list", what)
	}
	if len(values) < len(fields) {
		return errors.Errorf("%s: expected %d values, got %d", what, len(fields), len(values))
	}
	for i, field := range fields {
		raw := values[i]
		if bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
			continue
		}
		if err := json.Unmarshal(raw, field); err != nil {
			return errors.Annotatef(err, "%s value %d", what, i)
		}
	}
	return nil
}

// ValidFilter reports whether filter only uses the characters list_jobs
// understands.
func ValidFilter(filter string) bool {
	return strings.Trim(filter, FilterRunning+FilterComplete+FilterError+FilterShared) == ""
}
