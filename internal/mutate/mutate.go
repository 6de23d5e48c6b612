// Package mutate applies plans to a host graph, one host primitive per
// operation, tolerating individual failures.
package mutate

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"pbr-autowire/internal/graph"
	"pbr-autowire/internal/plan"
)

var ErrUnresolvedRef = errors.New("mutate: node reference not resolved")

// Failure is one operation the host rejected or that could not be resolved.
type Failure struct {
	Op  plan.Op
	Err error
}

func (f Failure) String() string {
	return fmt.Sprintf("%s (%s): %v", f.Op, f.Op.Channel, f.Err)
}

// Report summarizes one Apply.
type Report struct {
	Applied  int
	NoOps    int
	Failures []Failure
	Created  map[string]graph.NodeID // plan keys of created nodes
}

// OK reports whether every operation succeeded.
func (r *Report) OK() bool {
	return len(r.Failures) == 0
}

// Observer is told the outcome of each operation.
type Observer interface {
	ObserveOp(kind string, ok bool)
}

// Mutator applies plans through a Host.
type Mutator struct {
	host graph.Host
	obs  Observer
	log  *zap.Logger
}

// New returns a mutator for host. obs may be nil.
func New(host graph.Host, obs Observer, logger *zap.Logger) *Mutator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Mutator{host: host, obs: obs, log: logger.Named("mutator")}
}

// state tracks the graph as the plan runs, seeded from a fresh snapshot.
type state struct {
	snap  *graph.Snapshot
	keys  map[string]graph.NodeID
	links map[graph.Link]bool
}

// Apply runs the plan in order. An error is returned only when the graph
// cannot be read at all; per-operation problems land in the report.
func (m *Mutator) Apply(p *plan.Plan) (*Report, error) {
	snap, err := m.host.Snapshot()
	if err != nil {
		return nil, fmt.Errorf("mutate: snapshot: %w", err)
	}
	st := &state{
		snap:  snap,
		keys:  make(map[string]graph.NodeID),
		links: make(map[graph.Link]bool, len(snap.Links)),
	}
	for _, l := range snap.Links {
		st.links[l] = true
	}

	rep := &Report{Created: make(map[string]graph.NodeID)}
	for _, op := range p.Ops {
		noop, err := m.apply(st, op, rep)
		switch {
		case err != nil:
			rep.Failures = append(rep.Failures, Failure{Op: op, Err: err})
			m.log.Warn("Operation failed",
				zap.String("op", op.String()),
				zap.Stringer("channel", op.Channel),
				zap.Error(err),
			)
		case noop:
			rep.NoOps++
		default:
			rep.Applied++
		}
		if m.obs != nil {
			m.obs.ObserveOp(op.Kind.String(), err == nil)
		}
	}
	m.log.Debug("Plan applied",
		zap.Int("applied", rep.Applied),
		zap.Int("noops", rep.NoOps),
		zap.Int("failed", len(rep.Failures)),
	)
	return rep, nil
}

func (m *Mutator) apply(st *state, op plan.Op, rep *Report) (bool, error) {
	switch op.Kind {
	case plan.CreateNode:
		if id, ok := st.resolve(op.Node); ok {
			st.keys[op.Node.Key] = id
			return true, nil
		}
		spec := op.Spec
		spec.Name = op.Node.Key
		id, err := m.host.CreateNode(spec)
		if err != nil {
			return false, err
		}
		st.keys[op.Node.Key] = id
		rep.Created[op.Node.Key] = id
		return false, nil

	case plan.SetParameter:
		id, ok := st.resolve(op.Node)
		if !ok {
			return false, fmt.Errorf("%w: %s", ErrUnresolvedRef, op.Node)
		}
		if n, ok := st.snap.Node(id); ok {
			if v, set := n.Params[op.Param]; set && graph.ParamEqual(v, op.Value) {
				return true, nil
			}
		}
		return false, m.host.SetParameter(id, op.Param, op.Value)

	case plan.CreateLink, plan.RemoveLink:
		from, err := st.socket(op.From)
		if err != nil {
			return false, err
		}
		to, err := st.socket(op.To)
		if err != nil {
			return false, err
		}
		l := graph.Link{From: from, To: to}
		if op.Kind == plan.CreateLink {
			if st.links[l] {
				return true, nil
			}
			if err := m.host.CreateLink(from, to); err != nil {
				return false, err
			}
			for have := range st.links {
				if have.To == to {
					delete(st.links, have)
				}
			}
			st.links[l] = true
			return false, nil
		}
		if !st.links[l] {
			return true, nil
		}
		if err := m.host.RemoveLink(from, to); err != nil {
			return false, err
		}
		delete(st.links, l)
		return false, nil
	}
	return false, fmt.Errorf("mutate: unknown operation %s", op.Kind)
}

func (st *state) resolve(r plan.Ref) (graph.NodeID, bool) {
	if r.ID != "" {
		return r.ID, true
	}
	if id, ok := st.keys[r.Key]; ok {
		return id, true
	}
	if n, ok := st.snap.NodeByName(r.Key); ok {
		return n.ID, true
	}
	return "", false
}

func (st *state) socket(e plan.Endpoint) (graph.Socket, error) {
	id, ok := st.resolve(e.Node)
	if !ok {
		return graph.Socket{}, fmt.Errorf("%w: %s", ErrUnresolvedRef, e.Node)
	}
	return graph.Socket{Node: id, Name: e.Socket}, nil
}
