package agents

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/darnellt0/em-ai-ecosystem-sub002/pkg/models"
)

// DefaultDispatchTimeout bounds one dispatch batch. A slow agent must not
// stall the whole batch forever, so every call races a shared deadline.
const DefaultDispatchTimeout = 30 * time.Second

// ErrMalformedOutput marks results whose agent returned output that does
// not satisfy the AgentOutput contract. Downstream consumers treat it as a
// contract violation, not a plain failure.
const ErrMalformedOutput = "agent returned malformed output"

// Dispatcher fans a batch of agent calls out in parallel and normalizes
// every outcome into a models.AgentResult. Dispatch never fails as a whole:
// unregistered keys, handler errors, panics, and timeouts all become
// per-key results.
type Dispatcher struct {
	registry *Registry
	timeout  time.Duration
}

// NewDispatcher creates a dispatcher over the registry. timeout <= 0 uses
// DefaultDispatchTimeout.
func NewDispatcher(registry *Registry, timeout time.Duration) *Dispatcher {
	if timeout <= 0 {
		timeout = DefaultDispatchTimeout
	}
	return &Dispatcher{registry: registry, timeout: timeout}
}

// Dispatch invokes all requested agents with unconditional parallelism and
// returns one entry per requested key. Duplicate keys resolve last-write-wins
// in request order. There is no ordering guarantee between agents within a
// batch; the batch returns once every call has settled or timed out.
func (d *Dispatcher) Dispatch(ctx context.Context, reqs []models.AgentRequest) map[string]models.AgentResult {
	if len(reqs) == 0 {
		return map[string]models.AgentResult{}
	}

	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	start := time.Now()
	settled := make([]models.AgentResult, len(reqs))
	done := make(chan int, len(reqs))

	for i, req := range reqs {
		go func(i int, req models.AgentRequest) {
			settled[i] = d.callOne(ctx, req)
			done <- i
		}(i, req)
	}
	for range reqs {
		<-done
	}

	// Build the map in request order so duplicate keys are last-write-wins
	// deterministically, independent of completion order.
	results := make(map[string]models.AgentResult, len(reqs))
	for _, res := range settled {
		results[res.Key] = res
	}

	log.Debug().
		Int("requested", len(reqs)).
		Dur("duration", time.Since(start)).
		Msg("Agent batch dispatched")
	return results
}

// callOne runs a single agent call, converting every failure mode into a
// normalized result.
func (d *Dispatcher) callOne(ctx context.Context, req models.AgentRequest) models.AgentResult {
	def, ok := d.registry.Get(req.Key)
	if !ok {
		return models.AgentResult{
			Key:      req.Key,
			Success:  false,
			Status:   models.AgentSkipped,
			UsedStub: true,
			Warning:  "Agent not registered",
		}
	}

	type outcome struct {
		output *models.AgentOutput
		err    error
	}
	ch := make(chan outcome, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				ch <- outcome{err: fmt.Errorf("agent panicked: %v", r)}
			}
		}()
		out, err := def.Run(ctx, req.Payload)
		ch <- outcome{output: out, err: err}
	}()

	select {
	case <-ctx.Done():
		return models.AgentResult{
			Key:     req.Key,
			Success: false,
			Status:  models.AgentFailed,
			Error:   fmt.Sprintf("agent %q did not settle: %v", req.Key, ctx.Err()),
		}
	case oc := <-ch:
		return normalize(req.Key, oc.output, oc.err)
	}
}

// normalize maps a handler's AgentOutput (or error) onto the uniform result
// shape: OK → success, SKIPPED/FAILED → success=false with that status.
func normalize(key string, out *models.AgentOutput, err error) models.AgentResult {
	if err != nil {
		return models.AgentResult{
			Key:     key,
			Success: false,
			Status:  models.AgentFailed,
			Error:   err.Error(),
		}
	}
	if out == nil || !models.ValidAgentStatus(out.Status) {
		return models.AgentResult{
			Key:     key,
			Success: false,
			Status:  models.AgentFailed,
			Error:   ErrMalformedOutput,
		}
	}
	return models.AgentResult{
		Key:      key,
		Success:  out.Status == models.AgentOK,
		Status:   out.Status,
		Output:   out.Output,
		Warnings: out.Warnings,
		Error:    out.Error,
	}
}
