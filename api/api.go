// Package api exposes the agent's status surface: the task registry
// snapshot, a liveness check and the Prometheus metrics.
package api

import (
	"net/http"

	restful "github.com/emicklei/go-restful/v3"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ecociel/beacon/scheduler"
)

func Handler(sched *scheduler.Scheduler, reg *prometheus.Registry) http.Handler {
	ws := new(restful.WebService)
	ws.Path("/").Produces(restful.MIME_JSON)
	ws.Route(ws.GET("/tasks").To(listTasks(sched)))
	ws.Route(ws.GET("/healthz").To(healthz))

	c := restful.NewContainer()
	c.Add(ws)
	c.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	return c
}

func listTasks(sched *scheduler.Scheduler) restful.RouteFunction {
	return func(req *restful.Request, resp *restful.Response) {
		if err := resp.WriteAsJson(sched.Tasks()); err != nil {
			resp.WriteError(http.StatusInternalServerError, err)
		}
	}
}

func healthz(req *restful.Request, resp *restful.Response) {
	resp.Write([]byte("ok"))
}
