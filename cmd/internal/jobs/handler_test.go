package jobs

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func newTestServer() (*httptest.Server, *Feed) {
	feed := NewFeed(testLogger())
	h := NewHandler(testLogger(), feed)

	mux := http.NewServeMux()
	h.Register(mux)
	return httptest.NewServer(mux), feed
}

func TestJobPollRoundTrip(t *testing.T) {
	t.Parallel()

	srv, _ := newTestServer()
	defer srv.Close()

	body := `{"status":"running","progress":55,"message":"scoring clauses"}`
	resp, err := http.Post(srv.URL+"/jobs/job-9", "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("POST status=%d want 202", resp.StatusCode)
	}

	resp, err = http.Get(srv.URL + "/jobs/job-9")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("GET status=%d want 200", resp.StatusCode)
	}

	var snap Snapshot
	if err := json.NewDecoder(resp.Body).Decode(&snap); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if snap.JobID != "job-9" || snap.Status != StatusRunning || snap.Progress != 55 {
		t.Fatalf("snapshot=%+v", snap)
	}
	if len(snap.Logs) != 1 || snap.Logs[0].Message != "scoring clauses" {
		t.Fatalf("logs=%v", snap.Logs)
	}
}

func TestJobPollUnknownJob(t *testing.T) {
	t.Parallel()

	srv, _ := newTestServer()
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/jobs/nope")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status=%d want 404", resp.StatusCode)
	}
}

func TestJobPostValidation(t *testing.T) {
	t.Parallel()

	srv, feed := newTestServer()
	t.Cleanup(srv.Close)

	cases := []struct {
		name string
		body string
	}{
		{name: "bad status", body: `{"status":"paused"}`},
		{name: "progress over range", body: `{"progress":150}`},
		{name: "progress under range", body: `{"progress":-1}`},
		{name: "unknown field", body: `{"statuss":"running"}`},
		{name: "not json", body: `progress=10`},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			resp, err := http.Post(srv.URL+"/jobs/job-1", "application/json", strings.NewReader(tc.body))
			if err != nil {
				t.Fatalf("POST: %v", err)
			}
			resp.Body.Close()
			if resp.StatusCode != http.StatusBadRequest {
				t.Fatalf("status=%d want 400", resp.StatusCode)
			}
		})
	}

	// None of the rejected posts may have created the job.
	time.Sleep(10 * time.Millisecond)
	if feed.Count() != 0 {
		t.Fatalf("feed.Count()=%d want 0", feed.Count())
	}
}
