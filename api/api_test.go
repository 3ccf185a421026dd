package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/ecociel/beacon/scheduler"
)

type stubTask struct {
	topic    string
	interval time.Duration
}

func (s *stubTask) Topic() string           { return s.topic }
func (s *stubTask) Interval() time.Duration { return s.interval }
func (s *stubTask) Run(ctx context.Context) {}
func (s *stubTask) LastError() string       { return "" }

func TestHandler_Tasks(t *testing.T) {
	sched := scheduler.New(time.Second)
	sched.Add(&stubTask{topic: "h/beacon/load", interval: 10 * time.Second})

	srv := httptest.NewServer(Handler(sched, prometheus.NewRegistry()))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/tasks")
	if err != nil {
		t.Fatalf("get /tasks: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}

	var statuses []scheduler.Status
	if err := json.NewDecoder(resp.Body).Decode(&statuses); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(statuses) != 1 || statuses[0].Topic != "h/beacon/load" {
		t.Errorf("statuses = %+v", statuses)
	}
	if statuses[0].Interval != "10s" {
		t.Errorf("interval = %q", statuses[0].Interval)
	}
}

func TestHandler_Healthz(t *testing.T) {
	srv := httptest.NewServer(Handler(scheduler.New(time.Second), prometheus.NewRegistry()))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/healthz")
	if err != nil {
		t.Fatalf("get /healthz: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d", resp.StatusCode)
	}
}

func TestHandler_Metrics(t *testing.T) {
	srv := httptest.NewServer(Handler(scheduler.New(time.Second), prometheus.NewRegistry()))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatalf("get /metrics: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d", resp.StatusCode)
	}
}
