// Package autowire is the invocation surface of the wiring core. Every entry
// point runs the same pipeline: classify, inspect, plan, mutate.
package autowire

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"pbr-autowire/internal/classify"
	"pbr-autowire/internal/graph"
	"pbr-autowire/internal/inspect"
	"pbr-autowire/internal/metrics"
	"pbr-autowire/internal/mutate"
	"pbr-autowire/internal/pbr"
	"pbr-autowire/internal/plan"
	"pbr-autowire/internal/shader"
	"pbr-autowire/internal/texture"
)

// ShaderKey names target shaders created by CreateTarget.
const ShaderKey = "pbr:shader"

// Wired is one channel routed by an action.
type Wired struct {
	Channel pbr.Channel    `json:"channel"`
	Source  texture.Source `json:"source"`
}

// FailedOp is a host primitive that was rejected.
type FailedOp struct {
	Op      string      `json:"op"`
	Channel pbr.Channel `json:"channel"`
	Error   string      `json:"error"`
}

// Summary is what the user sees after an action.
type Summary struct {
	Target   graph.NodeID `json:"target"`
	Wired    []Wired      `json:"wired"`
	Skipped  []plan.Skip  `json:"skipped"`
	Failures []FailedOp   `json:"failures"`
	Planned  int          `json:"planned"`
	Applied  int          `json:"applied"`
	NoOps    int          `json:"noops"`

	// Created maps the keys of nodes this action added to their host IDs.
	Created map[string]graph.NodeID `json:"created,omitempty"`
	// Transferred names the target inputs given a source shader value.
	Transferred []string `json:"transferred,omitempty"`
}

// Changed reports whether the action modified the graph.
func (s *Summary) Changed() bool {
	return s.Applied > 0
}

// Wirer holds the immutable configuration shared by all actions.
type Wirer struct {
	classifier *classify.Classifier
	profile    *shader.Profile
	inspector  *inspect.Inspector
	planner    *plan.Planner
	metrics    *metrics.Recorder
	log        *zap.Logger
}

// New builds a Wirer. Nil classifier or profile select the defaults; rec
// may be nil.
func New(c *classify.Classifier, p *shader.Profile, rec *metrics.Recorder, logger *zap.Logger) *Wirer {
	if c == nil {
		c = classify.New(nil)
	}
	if p == nil {
		p = shader.DefaultProfile()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Wirer{
		classifier: c,
		profile:    p,
		inspector:  inspect.New(c, p),
		planner:    plan.New(p, logger),
		metrics:    rec,
		log:        logger.Named("autowire"),
	}
}

// Profile returns the routing profile in use.
func (w *Wirer) Profile() *shader.Profile {
	return w.profile
}

// Classify runs the classifier over a source's label and image name.
func (w *Wirer) Classify(src texture.Source) classify.Result {
	return w.classifier.ClassifyName(src.Names()...)
}

type candidate struct {
	src texture.Source
	res classify.Result
}

// BuildFromTextures wires a set of image files into the target shader,
// creating texture nodes as needed.
func (w *Wirer) BuildFromTextures(host graph.Host, target graph.NodeID, sources []texture.Source) (*Summary, error) {
	in, err := w.inspect(host, target)
	if err != nil {
		return nil, err
	}
	cands := make([]candidate, 0, len(sources))
	for _, src := range sources {
		cands = append(cands, candidate{src: src, res: w.Classify(src)})
	}
	return w.run(host, in, cands, nil)
}

// ConnectOne wires a single texture. A force channel other than Unknown
// bypasses the classifier.
func (w *Wirer) ConnectOne(host graph.Host, target graph.NodeID, src texture.Source, force pbr.Channel) (*Summary, error) {
	in, err := w.inspect(host, target)
	if err != nil {
		return nil, err
	}
	res := classify.Result{Channel: force, Outcome: classify.Matched, Pattern: "forced"}
	if force == pbr.Unknown {
		res = w.Classify(src)
	}
	return w.run(host, in, []candidate{{src: src, res: res}}, nil)
}

// ConvertExistingMaterial reuses the texture nodes feeding the source
// shader and wires them into the target shader of the same graph. Values
// of the source's unlinked inputs are copied onto target inputs left
// without a texture.
func (w *Wirer) ConvertExistingMaterial(host graph.Host, source, target graph.NodeID) (*Summary, error) {
	in, err := w.inspect(host, target)
	if err != nil {
		return nil, err
	}
	feeding, err := w.inspector.Feeding(in.Snapshot, source)
	if err != nil {
		return nil, fmt.Errorf("autowire: source shader: %w", err)
	}
	src, _ := in.Snapshot.Node(source)
	return w.run(host, in, nodeCandidates(feeding), &src)
}

// ConnectExisting wires every texture node already in the graph into the
// target shader.
func (w *Wirer) ConnectExisting(host graph.Host, target graph.NodeID) (*Summary, error) {
	in, err := w.inspect(host, target)
	if err != nil {
		return nil, err
	}
	return w.run(host, in, nodeCandidates(in.Textures), nil)
}

// Inspect annotates the graph around target without changing it.
func (w *Wirer) Inspect(host graph.Host, target graph.NodeID) (*inspect.Inspection, error) {
	return w.inspect(host, target)
}

// FindTarget returns the first node the profile accepts as target shader.
func (w *Wirer) FindTarget(snap *graph.Snapshot) (graph.NodeID, bool) {
	for _, n := range snap.Nodes {
		if w.profile.Shader.Accepts(n.Type) {
			return n.ID, true
		}
	}
	return "", false
}

// CreateTarget adds a target shader node named with the shader key.
func (w *Wirer) CreateTarget(host graph.Host) (graph.NodeID, error) {
	id, err := host.CreateNode(graph.NodeSpec{
		Type:  w.profile.Shader.NodeTypes[0],
		Name:  ShaderKey,
		Label: w.profile.Shader.Name,
	})
	if err != nil {
		return "", fmt.Errorf("autowire: create target shader: %w", err)
	}
	return id, nil
}

// FindSource returns the non-texture node with the most texture nodes
// upstream of it, the shader a conversion reads from. On a tie the node
// further upstream wins, so a shader is preferred over the output node it
// feeds.
func (w *Wirer) FindSource(snap *graph.Snapshot) (graph.NodeID, bool) {
	isTexture := w.profile.Texture.IsTexture
	var textures []graph.NodeID
	for _, n := range snap.Nodes {
		if isTexture(n.Type) {
			textures = append(textures, n.ID)
		}
	}

	var best graph.NodeID
	bestCount := 0
	for _, n := range snap.Nodes {
		if isTexture(n.Type) || w.profile.Shader.Accepts(n.Type) {
			continue
		}
		count := 0
		for _, t := range textures {
			if snap.Upstream(t, n.ID) {
				count++
			}
		}
		if count > bestCount || (count == bestCount && count > 0 && snap.Upstream(n.ID, best)) {
			best, bestCount = n.ID, count
		}
	}
	return best, bestCount > 0
}

func nodeCandidates(nodes []inspect.TextureNode) []candidate {
	out := make([]candidate, 0, len(nodes))
	for _, t := range nodes {
		res := t.Class
		if t.Keyed {
			res = classify.Result{Channel: t.Channel, Outcome: classify.Matched, Pattern: "key"}
		}
		out = append(out, candidate{src: texture.FromNode(t.Node), res: res})
	}
	return out
}

// inspect captures a fresh snapshot. A missing shader aborts here, before
// anything is planned.
func (w *Wirer) inspect(host graph.Host, target graph.NodeID) (*inspect.Inspection, error) {
	snap, err := host.Snapshot()
	if err != nil {
		return nil, fmt.Errorf("autowire: snapshot: %w", err)
	}
	in, err := w.inspector.Inspect(snap, target)
	if err != nil {
		w.log.Warn("Target shader unavailable", zap.String("target", string(target)), zap.Error(err))
		return nil, err
	}
	return in, nil
}

// assign turns classified candidates into at most one source per channel.
// The first candidate for a channel wins; later ones are reported.
func (w *Wirer) assign(cands []candidate) (map[pbr.Channel]texture.Source, []plan.Skip) {
	assigned := make(map[pbr.Channel]texture.Source)
	var skipped []plan.Skip
	for _, c := range cands {
		w.metrics.ObserveClassification(c.res.Outcome.String())
		switch {
		case c.res.Outcome == classify.Ambiguous:
			names := make([]string, 0, len(c.res.Contenders))
			for _, ch := range c.res.Contenders {
				names = append(names, ch.String())
			}
			skipped = append(skipped, plan.Skip{Source: c.src, Reason: plan.ReasonAmbiguous, Detail: strings.Join(names, ", ")})
			w.log.Warn("Ambiguous texture name", zap.String("texture", c.src.Name()), zap.Strings("contenders", names))
		case c.res.Channel == pbr.Unknown:
			skipped = append(skipped, plan.Skip{Source: c.src, Reason: plan.ReasonUnknown})
			w.log.Info("No channel for texture", zap.String("texture", c.src.Name()))
		default:
			if first, dup := assigned[c.res.Channel]; dup {
				skipped = append(skipped, plan.Skip{
					Source:  c.src,
					Channel: c.res.Channel,
					Reason:  plan.ReasonDuplicate,
					Detail:  "already using " + first.Name(),
				})
				continue
			}
			assigned[c.res.Channel] = c.src
		}
	}
	return assigned, skipped
}

// run plans and applies one action. A non-nil source shader turns on value
// transfer.
func (w *Wirer) run(host graph.Host, in *inspect.Inspection, cands []candidate, source *graph.Node) (*Summary, error) {
	assigned, skipped := w.assign(cands)
	var p *plan.Plan
	if source != nil {
		p = w.planner.PlanConversion(in, assigned, *source)
	} else {
		p = w.planner.Plan(in, assigned)
	}

	rep, err := mutate.New(host, w.metrics, w.log).Apply(p)
	if err != nil {
		return nil, err
	}
	if !rep.OK() {
		w.log.Warn("Plan partially applied",
			zap.String("target", string(in.Shader.ID)),
			zap.Int("failures", len(rep.Failures)),
		)
	}

	sum := &Summary{
		Target:  in.Shader.ID,
		Skipped: append(skipped, p.Skipped...),
		Planned: len(p.Ops),
		Applied: rep.Applied,
		NoOps:   rep.NoOps,
		Created: rep.Created,
	}
	failed := map[pbr.Channel]bool{}
	unset := map[string]bool{}
	for _, f := range rep.Failures {
		failed[f.Op.Channel] = true
		if f.Op.Kind == plan.SetParameter && f.Op.Node.ID == in.Shader.ID {
			unset[f.Op.Param] = true
		}
		sum.Failures = append(sum.Failures, FailedOp{Op: f.Op.String(), Channel: f.Op.Channel, Error: f.Err.Error()})
	}
	for _, input := range p.Transferred {
		if !unset[input] {
			sum.Transferred = append(sum.Transferred, input)
		}
	}
	for _, ch := range p.Wired {
		if failed[ch] {
			continue
		}
		sum.Wired = append(sum.Wired, Wired{Channel: ch, Source: sourceFor(ch, assigned)})
		w.metrics.ObserveWired(ch.String())
	}
	for _, s := range sum.Skipped {
		w.metrics.ObserveSkip(s.Reason.String())
	}

	w.log.Info("Material wired",
		zap.String("target", string(sum.Target)),
		zap.Int("wired", len(sum.Wired)),
		zap.Int("skipped", len(sum.Skipped)),
		zap.Int("failures", len(sum.Failures)),
		zap.Int("applied", sum.Applied),
	)
	return sum, nil
}

// sourceFor finds the texture behind a wired channel, looking through
// packed textures for the channels they cover.
func sourceFor(ch pbr.Channel, assigned map[pbr.Channel]texture.Source) texture.Source {
	if src, ok := assigned[ch]; ok {
		return src
	}
	for _, packed := range []pbr.Channel{pbr.PackedORM, pbr.PackedORS} {
		src, ok := assigned[packed]
		if !ok {
			continue
		}
		for _, c := range packed.Covers() {
			if c == ch {
				return src
			}
		}
	}
	return texture.Source{}
}
