package protocol

import (
	"context"
	"errors"
	"fmt"
	"time"

	j "github.com/goccy/go-json"
	"go.uber.org/zap"

	fw "github.com/reoring/flatwire"
	"github.com/reoring/flatwire/callback"
)

// Value is one property value carried by a request.
type Value struct {
	ID       string `json:"id"`
	Property string `json:"property"`
	Value    any    `json:"value"`
}

// Request asks for the outputs identified by Output to be recomputed.
type Request struct {
	Output         string   `json:"output"`
	Inputs         []Value  `json:"inputs"`
	State          []Value  `json:"state,omitempty"`
	ChangedPropIDs []string `json:"changedPropIds,omitempty"`
}

// Response maps element ids to the properties to update.
type Response struct {
	Multi    bool                      `json:"multi"`
	Response map[string]map[string]any `json:"response"`
}

var errPrevented = callback.ErrPreventUpdate

// Call routes req to its registration. It returns an error wrapping
// callback.ErrPreventUpdate when nothing is to be updated.
func (r *Registry) Call(ctx context.Context, req Request) (resp Response, err error) {
	start := time.Now()
	defer func() {
		r.metrics.observe(start, err)
		if err != nil && !errors.Is(err, errPrevented) {
			r.log.Warn("dispatch failed", zap.String("output", req.Output), zap.Error(err))
		}
	}()

	reg, ok := r.Lookup(req.Output)
	if !ok {
		return Response{}, fw.Fail(fw.Root().Field("output"), fw.CodeUnknownCallback, map[string]any{"output": req.Output})
	}

	values := make(map[callback.Target]any, len(req.Inputs)+len(req.State))
	for _, v := range req.Inputs {
		values[callback.Target{ID: v.ID, Property: v.Property}] = v.Value
	}
	for _, v := range req.State {
		values[callback.Target{ID: v.ID, Property: v.Property}] = v.Value
	}
	flat := make([]any, 0, len(reg.Inputs)+len(reg.State))
	var iss fw.Issues
	for i, t := range append(append([]callback.Target(nil), reg.Inputs...), reg.State...) {
		v, ok := values[t]
		if !ok {
			iss = append(iss, fw.NewIssue(fw.Root().Index(i), fw.CodeMissingInput, map[string]any{"target": t.String()}))
			continue
		}
		flat = append(flat, v)
	}
	if len(iss) > 0 {
		return Response{}, iss
	}

	out, err := reg.Handler(ctx, flat)
	if err != nil {
		return Response{}, err
	}
	if len(out) != len(reg.Outputs) {
		return Response{}, fw.Fail(fw.Root(), fw.CodeFlatCount, map[string]any{"expected": len(reg.Outputs), "got": len(out)})
	}

	resp = Response{Multi: true, Response: make(map[string]map[string]any)}
	for i, t := range reg.Outputs {
		if callback.IsNoUpdate(out[i]) {
			continue
		}
		props, ok := resp.Response[t.ID]
		if !ok {
			props = make(map[string]any)
			resp.Response[t.ID] = props
		}
		props[t.Property] = out[i]
	}
	if len(resp.Response) == 0 {
		return Response{}, fmt.Errorf("protocol: every output of %s is unchanged: %w", req.Output, errPrevented)
	}
	return resp, nil
}

// Dispatch decodes a JSON Request, calls it and encodes the Response.
func (r *Registry) Dispatch(ctx context.Context, body []byte) ([]byte, error) {
	var req Request
	if err := j.Unmarshal(body, &req); err != nil {
		it := fw.NewIssue(fw.Root(), fw.CodeParseError, nil)
		it.Cause = err
		it.Hint = err.Error()
		r.metrics.observe(time.Now(), fw.Issues{it})
		return nil, fw.Issues{it}
	}
	resp, err := r.Call(ctx, req)
	if err != nil {
		return nil, err
	}
	return j.Marshal(resp)
}

// ErrorPayload shapes a dispatch error for a JSON response body:
// {"issues": [...]} for Issues, {"error": "..."} otherwise.
func ErrorPayload(err error) []byte {
	var body map[string]any
	if iss, ok := fw.AsIssues(err); ok {
		body = map[string]any{"issues": iss}
	} else {
		body = map[string]any{"error": err.Error()}
	}
	b, mErr := j.Marshal(body)
	if mErr != nil {
		return []byte(`{"error":"internal error"}`)
	}
	return b
}
