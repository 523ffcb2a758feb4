package core

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/donywcopywrite-cyber/FINDINGAGENT/internal/ai"
	"github.com/donywcopywrite-cyber/FINDINGAGENT/internal/content"
	"github.com/donywcopywrite-cyber/FINDINGAGENT/internal/guardrail"
	"github.com/donywcopywrite-cyber/FINDINGAGENT/internal/listing"
	"github.com/google/uuid"
)

type page struct {
	html  string
	text  string
	title string
	hints content.Hints
}

// Run is one request's orchestration. It is used by a single goroutine and
// discarded when Execute returns.
type Run struct {
	id    string
	wf    *Workflow
	input string
	state State

	tools    []*tool
	history  []ai.Message
	turns    int
	verdict  guardrail.Verdict
	evidence *evidence
	pages    map[string]page

	fragments  []listing.Fragment
	batch      []listing.Listing
	normalized bool
	listings   []listing.Listing
	output     string
}

func newRun(w *Workflow, input string) *Run {
	r := &Run{
		id:       uuid.NewString(),
		wf:       w,
		input:    strings.TrimSpace(input),
		state:    StateIdle,
		evidence: newEvidence(),
		pages:    map[string]page{},
		verdict:  guardrail.Verdict{Results: []guardrail.CheckResult{}},
	}
	r.tools = r.newTools()
	return r
}

func (r *Run) execute(ctx context.Context) (*RunResult, error) {
	log := r.wf.logger.With("run_id", r.id)

	if r.wf.gate != nil {
		r.verdict = r.wf.gate.Check(ctx, r.input)
		if r.verdict.Blocked {
			log.Info("run blocked before orchestration")
			res := r.result()
			res.Blocked = true
			return res, nil
		}
	}

	ctx, cancel := context.WithTimeout(ctx, r.wf.limits.RunTimeout)
	defer cancel()

	r.history = append(r.history, ai.Message{Role: ai.RoleUser, Text: r.input})
	specs := toolSpecs(r.tools)

	finished := false
	answer := ""
	for r.turns < r.wf.limits.MaxTurns {
		r.turns++
		r.wf.stats.IncPlannerCall()
		step, err := r.wf.planner.Next(ctx, ai.PlanRequest{
			Input:     r.input,
			Tools:     specs,
			History:   r.history,
			TurnsLeft: r.wf.limits.MaxTurns - r.turns + 1,
		})
		if err != nil {
			if ctx.Err() != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) {
				// Out of time is the same as out of turns.
				log.Warn("run timed out", "turns", r.turns)
				break
			}
			if ctx.Err() != nil {
				return nil, fmt.Errorf("run cancelled: %w", ctx.Err())
			}
			return nil, fmt.Errorf("%w: planner %s: %v", ErrRunUndefined, r.wf.planner.Name(), err)
		}

		r.history = append(r.history, ai.Message{Role: ai.RoleModel, Text: step.Text, Calls: step.Calls})
		if step.Final() {
			if step.Text == "" {
				return nil, fmt.Errorf("%w: planner returned neither tool calls nor an answer", ErrRunUndefined)
			}
			finished = true
			answer = step.Text
			break
		}

		results := make([]ai.ToolResult, 0, len(step.Calls))
		for _, call := range step.Calls {
			results = append(results, r.invoke(ctx, call))
		}
		r.history = append(r.history, ai.Message{Role: ai.RoleTool, Results: results})
		log.Debug("turn completed", "turn", r.turns, "state", r.state.String(), "calls", len(step.Calls))
	}

	return r.finish(finished, answer)
}

// invoke runs one tool call serially. Calls over budget are refused and
// reported to the planner; they are not errors.
func (r *Run) invoke(ctx context.Context, call ai.ToolCall) ai.ToolResult {
	res := ai.ToolResult{CallID: call.ID, Name: call.Name}
	t := r.toolNamed(call.Name)
	if t == nil {
		res.Content = map[string]any{"error": "unknown_tool", "tool": call.Name}
		return res
	}
	if t.used >= t.limit {
		r.wf.logger.Info("tool call refused, budget exhausted",
			"run_id", r.id,
			"tool", call.Name,
			"limit", t.limit,
		)
		res.Content = map[string]any{"error": "budget_exhausted", "tool": call.Name}
		return res
	}
	t.used++

	// The batch is final once normalized; only a re-run of the pass itself
	// may follow.
	if r.normalized && call.Name != ai.ToolNormalizeListings {
		r.wf.logger.Debug("tool call refused after normalization", "run_id", r.id, "tool", call.Name)
		res.Content = map[string]any{"error": "already_normalized", "tool": call.Name}
		return res
	}

	args := call.Args
	if args == nil {
		args = map[string]any{}
	}
	res.Content = toContent(t.handler(ctx, args))
	return res
}

// advance moves the run to s unless it is already further along. Fetching
// and extracting interleave freely; the state never goes back.
func (r *Run) advance(s State) {
	if s > r.state {
		r.state = s
	}
}

func (r *Run) finish(finished bool, answer string) (*RunResult, error) {
	log := r.wf.logger.With("run_id", r.id)

	if finished && !r.normalized && len(r.fragments) > 0 {
		// The planner stopped early; the single pass still has to happen.
		if t := r.toolNamed(ai.ToolNormalizeListings); t != nil && t.used < t.limit {
			t.used++
			r.normalizeListings(context.Background(), map[string]any{})
		}
	}

	listings := []listing.Listing{}
	if r.normalized {
		listings = r.batch
		if finished {
			listings = r.mergeAnswer(listings, answer)
		}
	}

	if !anyWellFormed(listings) {
		r.state = StateEmptyResult
		listings = []listing.Listing{}
	} else {
		r.state = StateDone
	}

	if err := listing.Validate(listings); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSchemaViolation, err)
	}
	out, err := json.Marshal(listing.Batch{Listings: listings})
	if err != nil {
		return nil, fmt.Errorf("%w: encode batch: %v", ErrSchemaViolation, err)
	}
	r.listings = listings
	r.output = string(out)

	log.Info("run finished",
		"state", r.state.String(),
		"listings", len(listings),
		"turns", r.turns,
	)
	return r.result(), nil
}

// mergeAnswer lets the planner's final answer annotate the batch. Notes are
// taken as given; address and type only fill empty fields and only when
// observed. Listings the answer names that are not in the batch are
// ignored, and nothing is removed or reordered.
func (r *Run) mergeAnswer(batch []listing.Listing, answer string) []listing.Listing {
	raw := ai.CleanJSON(answer)
	if !strings.HasPrefix(raw, "{") {
		return batch
	}
	var doc struct {
		Listings []listing.Fragment `json:"listings"`
	}
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		r.wf.logger.Debug("planner answer is not a listing document", "run_id", r.id, "error", err)
		return batch
	}

	byKey := make(map[string]listing.Listing, len(doc.Listings))
	for _, f := range doc.Listings {
		l := normalizeOne(f)
		if key := l.Key(); key != "" {
			if _, dup := byKey[key]; !dup {
				byKey[key] = l
			}
		}
	}

	out := make([]listing.Listing, len(batch))
	for i, l := range batch {
		out[i] = l
		a, ok := byKey[l.Key()]
		if !ok || l.Key() == "" {
			continue
		}
		if l.NoteFR == nil && nonBlank(a.NoteFR) {
			out[i].NoteFR = a.NoteFR
		}
		if l.NoteEN == nil && nonBlank(a.NoteEN) {
			out[i].NoteEN = a.NoteEN
		}
		if l.Address == nil && a.Address != nil && r.evidence.hasText(*a.Address) {
			out[i].Address = a.Address
		}
		if l.Type == nil && a.Type != nil && r.evidence.hasText(*a.Type) {
			out[i].Type = a.Type
		}
	}
	return out
}

func (r *Run) toolNamed(name string) *tool {
	for _, t := range r.tools {
		if t.spec.Name == name {
			return t
		}
	}
	return nil
}

func (r *Run) usage() Usage {
	var u Usage
	for _, t := range r.tools {
		switch t.spec.Name {
		case ai.ToolWebSearch:
			u.Searches = t.used
		case ai.ToolFetchPage:
			u.Fetches = t.used
		case ai.ToolExtractListing:
			u.Extractions = t.used
		case ai.ToolNormalizeListings:
			u.Normalizations = t.used
		}
	}
	return u
}

func (r *Run) result() *RunResult {
	listings := r.listings
	if listings == nil {
		listings = []listing.Listing{}
	}
	return &RunResult{
		ID:         r.id,
		State:      r.state,
		Listings:   listings,
		OutputText: r.output,
		Guardrail:  r.verdict,
		Turns:      r.turns,
		Usage:      r.usage(),
	}
}

func anyWellFormed(listings []listing.Listing) bool {
	for _, l := range listings {
		if l.WellFormed() {
			return true
		}
	}
	return false
}

func nonBlank(s *string) bool {
	return s != nil && strings.TrimSpace(*s) != ""
}
