package main

import (
	"encoding/json"

	"github.com/yourusername/reactord/internal/message"
	"github.com/yourusername/reactord/internal/metrics"
	"github.com/yourusername/reactord/internal/registry"
)

// registerExampleHandlers wires the small set of example JSON-bodied
// endpoints spec §4.K names against reg: a liveness root, an echo
// endpoint exercising Request.Body, and a health check.
func registerExampleHandlers(reg *registry.Registry) error {
	routes := []struct {
		path   string
		method message.Method
		h      registry.Handler
	}{
		{"/", message.MethodGET, indexHandler},
		{"/health", message.MethodGET, healthHandler},
		{"/echo", message.MethodPOST, echoHandler},
	}

	for _, rt := range routes {
		if err := reg.Register(rt.path, rt.method, rt.h); err != nil {
			return err
		}
	}
	return nil
}

func indexHandler(_ *message.Request, resp *message.Response) {
	writeJSON(resp, 200, map[string]string{"service": "reactord"})
}

func healthHandler(_ *message.Request, resp *message.Response) {
	writeJSON(resp, 200, map[string]string{"status": "ok"})
}

// echoHandler mirrors the request body back, exercising the parser's
// body handling and the Content-Length-on-SetBody contract.
func echoHandler(req *message.Request, resp *message.Response) {
	resp.Status = 200
	resp.SetHeader("Content-Type", "application/octet-stream")
	resp.SetBody(req.Body)
}

func writeJSON(resp *message.Response, status int, v interface{}) {
	body, err := json.Marshal(v)
	if err != nil {
		resp.Status = 500
		resp.SetBody([]byte(`{"error":"encode failed"}`))
		return
	}
	resp.Status = status
	resp.SetHeader("Content-Type", "application/json")
	resp.SetBody(body)
}

// metricsHandler exposes the Prometheus text exposition encoding of
// mreg as a plain handler, so it can be registered against the same
// EndpointRegistry as every other route.
func metricsHandler(mreg *metrics.Registry) registry.Handler {
	return func(_ *message.Request, resp *message.Response) {
		body, err := mreg.Encode()
		if err != nil {
			resp.Status = 500
			resp.SetBody([]byte("metrics encode failed"))
			return
		}
		resp.Status = 200
		resp.SetHeader("Content-Type", "text/plain; version=0.0.4")
		resp.SetBody(body)
	}
}
