package client

import (
	"encoding/json"
	"testing"
	"time"

	qt "github.com/frankban/quicktest"
)

func TestTimestamp(t *testing.T) {
	c := qt.New(t)

	var ts Timestamp
	c.Assert(json.Unmarshal([]byte(`"2013-04-26T23:52:06-0800"`), &ts), qt.IsNil)
	c.Assert(ts.Equal(time.Date(2013, 4, 27, 7, 52, 6, 0, time.UTC)), qt.IsTrue)

	out, err := json.Marshal(ts)
	c.Assert(err, qt.IsNil)
	c.Assert(string(out), qt.Equals, `"2013-04-26T23:52:06-0800"`)

	c.Assert(json.Unmarshal([]byte(`"2013-04-27T07:52:06Z"`), &ts), qt.IsNil)
	c.Assert(ts.Equal(time.Date(2013, 4, 27, 7, 52, 6, 0, time.UTC)), qt.IsTrue)

	c.Assert(json.Unmarshal([]byte(`null`), &ts), qt.IsNil)
	c.Assert(ts.IsZero(), qt.IsTrue)

	out, err = json.Marshal(Timestamp{})
	c.Assert(err, qt.IsNil)
	c.Assert(string(out), qt.Equals, "null")

	c.Assert(json.Unmarshal([]byte(`"yesterday"`), &ts), qt.ErrorMatches, `timestamp "yesterday": .*`)
}

func TestBoolean(t *testing.T) {
	c := qt.New(t)

	for in, expect := range map[string]Boolean{"0": false, "1": true, "2": true, "null": false, "true": true} {
		var b Boolean
		c.Assert(json.Unmarshal([]byte(in), &b), qt.IsNil)
		c.Assert(b, qt.Equals, expect, qt.Commentf("%s", in))
	}

	out, err := json.Marshal([]Boolean{true, false})
	c.Assert(err, qt.IsNil)
	c.Assert(string(out), qt.Equals, "[1,0]")
}

func TestJobStatusTuple(t *testing.T) {
	c := qt.New(t)

	var status JobStatus
	err := json.Unmarshal([]byte(`["2013-04-26T23:52:06-0800","started","running",3,null,0,null]`), &status)
	c.Assert(err, qt.IsNil)
	c.Assert(status.Stage, qt.Equals, StageStarted)
	c.Assert(status.Status, qt.Equals, "running")
	c.Assert(status.Progress, qt.Equals, int64(3))
	c.Assert(status.EstComplete.IsZero(), qt.IsTrue)
	c.Assert(bool(status.Complete), qt.IsFalse)
	c.Assert(bool(status.Error), qt.IsFalse)

	c.Assert(json.Unmarshal([]byte(`["2013-04-26T23:52:06-0800","started"]`), &status),
		qt.ErrorMatches, "job status: expected 7 values, got 2")
	c.Assert(json.Unmarshal([]byte(`{"stage":"started"}`), &status),
		qt.ErrorMatches, "job status is not a list: .*")
}

func TestJobInfoTuple(t *testing.T) {
	c := qt.New(t)

	data := `["job1","kbws","completed","2013-04-26T23:52:06-0800","done",` +
		`"2013-04-26T23:55:06-0800",10,10,"task",null,1,0,"a job",` +
		`{"shocknodes":["n1"],"shockurl":"http://shock","results":[{"server_type":"Shock","url":"http://shock","id":"n1","description":"reads"}]}]`

	var info JobInfo
	c.Assert(json.Unmarshal([]byte(data), &info), qt.IsNil)
	c.Assert(info.ID, qt.Equals, "job1")
	c.Assert(info.ProgressType, qt.Equals, ProgressTask)
	c.Assert(info.MaxProgress, qt.Equals, int64(10))
	c.Assert(bool(info.Complete), qt.IsTrue)
	c.Assert(info.Description, qt.Equals, "a job")
	c.Assert(info.Results, qt.DeepEquals, Results{
		Results:    []Result{{ServerType: "Shock", URL: "http://shock", ID: "n1", Description: "reads"}},
		ShockURL:   "http://shock",
		ShockNodes: []string{"n1"},
	})

	// encoding produces the same tuple shape
	out, err := json.Marshal(info)
	c.Assert(err, qt.IsNil)
	var again JobInfo
	c.Assert(json.Unmarshal(out, &again), qt.IsNil)
	c.Assert(again.LastUpdate.Equal(info.LastUpdate.Time), qt.IsTrue)
	c.Assert(again.Results, qt.DeepEquals, info.Results)
}

func TestJobInfo2Tuple(t *testing.T) {
	c := qt.New(t)

	data := `["job2","kbws","started","working",` +
		`["2013-04-26T23:52:06-0800","2013-04-26T23:53:06-0800",null],` +
		`[40,100,"percent"],0,0,["DEFAULT","kbws"],{"k":"v"},"desc",{}]`

	var info JobInfo2
	c.Assert(json.Unmarshal([]byte(data), &info), qt.IsNil)
	c.Assert(info.Status, qt.Equals, "working")
	c.Assert(info.Times.EstComplete.IsZero(), qt.IsTrue)
	c.Assert(info.Progress, qt.Equals, ProgressInfo{Progress: 40, MaxProgress: 100, ProgressType: ProgressPercent})
	c.Assert(info.Auth, qt.Equals, AuthInfo{Strategy: "DEFAULT", Param: "kbws"})
	c.Assert(info.Meta, qt.DeepEquals, map[string]string{"k": "v"})
	c.Assert(info.Description, qt.Equals, "desc")
}

func TestJobDescriptionTrailingValues(t *testing.T) {
	c := qt.New(t)

	var desc JobDescription
	err := json.Unmarshal([]byte(`["kbws","none",0,"d","2013-04-26T23:52:06-0800","extra"]`), &desc)
	c.Assert(err, qt.IsNil)
	c.Assert(desc.Service, qt.Equals, "kbws")
	c.Assert(desc.ProgressType, qt.Equals, ProgressNone)
}

func TestValidFilter(t *testing.T) {
	c := qt.New(t)
	c.Assert(ValidFilter(""), qt.IsTrue)
	c.Assert(ValidFilter("RCES"), qt.IsTrue)
	c.Assert(ValidFilter("RXC"), qt.IsFalse)
}
