package plan

import (
	"fmt"
	"sort"

	"go.uber.org/zap"

	"pbr-autowire/internal/graph"
	"pbr-autowire/internal/inspect"
	"pbr-autowire/internal/pbr"
	"pbr-autowire/internal/shader"
	"pbr-autowire/internal/texture"
)

// Planner computes plans against one profile. It holds no per-action state.
type Planner struct {
	profile *shader.Profile
	log     *zap.Logger
}

// New returns a planner. A nil profile selects the default.
func New(p *shader.Profile, logger *zap.Logger) *Planner {
	if p == nil {
		p = shader.DefaultProfile()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Planner{profile: p, log: logger.Named("planner")}
}

// feed is where a channel's value comes from.
type feed struct {
	channel pbr.Channel
	source  texture.Source
	active  bool        // assigned in this action, otherwise already wired
	packed  pbr.Channel // non-Unknown when fed from a split node
	index   int         // split output index
	from    Endpoint    // set for passive feeds
}

// Plan diffs the desired assignments against the inspected graph. Sources
// are taken as given; callers resolve duplicates beforehand.
func (pl *Planner) Plan(in *inspect.Inspection, sources map[pbr.Channel]texture.Source) *Plan {
	return pl.build(in, sources, nil)
}

// PlanConversion is Plan for a material conversion: the source shader's
// unlinked input values are also copied onto target inputs the plan leaves
// unlinked.
func (pl *Planner) PlanConversion(in *inspect.Inspection, sources map[pbr.Channel]texture.Source, source graph.Node) *Plan {
	return pl.build(in, sources, &source)
}

func (pl *Planner) build(in *inspect.Inspection, sources map[pbr.Channel]texture.Source, source *graph.Node) *Plan {
	b := &builder{
		prof:     pl.profile,
		in:       in,
		snap:     in.Snapshot,
		plan:     &Plan{Target: in.Shader.ID},
		shaderID: in.Shader.ID,
		taken:    map[string]bool{},
		removed:  map[graph.Link]bool{},
		desired:  map[graph.Link]bool{},
		nodes:    map[string]Ref{},
		packed:   map[pbr.Channel]Ref{},
		wired:    map[pbr.Channel]bool{},
	}

	feeds := b.assign(sources)
	b.addPassive(feeds)
	merged := b.resolveCombines(feeds)
	b.claimSlots(feeds, merged)

	for _, r := range pl.profile.Routes {
		f, ok := feeds[r.Channel]
		if !ok || r.Channel.Packed() || merged[r.Channel] {
			continue
		}
		b.route(r, f, feeds)
	}
	b.cleanup()
	if source != nil {
		b.transfer(*source)
	}
	sort.SliceStable(b.plan.Ops, func(i, j int) bool {
		return b.plan.Ops[i].Kind.phase() < b.plan.Ops[j].Kind.phase()
	})

	for _, r := range pl.profile.Routes {
		if b.wired[r.Channel] {
			b.plan.Wired = append(b.plan.Wired, r.Channel)
		}
	}
	pl.log.Debug("Plan computed",
		zap.String("target", string(in.Shader.ID)),
		zap.Int("ops", len(b.plan.Ops)),
		zap.Int("skipped", len(b.plan.Skipped)),
		zap.Int("transferred", len(b.plan.Transferred)),
	)
	return b.plan
}

type builder struct {
	prof     *shader.Profile
	in       *inspect.Inspection
	snap     *graph.Snapshot
	plan     *Plan
	shaderID graph.NodeID

	taken   map[string]bool     // keys assigned to nodes this plan creates
	removed map[graph.Link]bool // existing links already scheduled for removal
	desired map[graph.Link]bool // resolved links the plan wants to exist
	nodes   map[string]Ref      // intermediates by purpose, and the mapping node
	packed  map[pbr.Channel]Ref // split nodes by packed channel
	touched []graph.NodeID      // existing textures routed by this plan
	wired   map[pbr.Channel]bool
	mapping *Ref
}

func (b *builder) skip(src texture.Source, ch pbr.Channel, reason Reason, detail string) {
	b.plan.Skipped = append(b.plan.Skipped, Skip{Source: src, Channel: ch, Reason: reason, Detail: detail})
}

// assign validates the requested channels and expands packed textures into
// the channels they cover.
func (b *builder) assign(sources map[pbr.Channel]texture.Source) map[pbr.Channel]*feed {
	feeds := map[pbr.Channel]*feed{}

	var unrouted []pbr.Channel
	for ch := range sources {
		if _, ok := b.prof.Route(ch); !ok {
			unrouted = append(unrouted, ch)
		}
	}
	sort.Slice(unrouted, func(i, j int) bool { return unrouted[i] < unrouted[j] })
	for _, ch := range unrouted {
		if ch == pbr.Unknown {
			b.skip(sources[ch], ch, ReasonUnknown, "")
		} else {
			b.skip(sources[ch], ch, ReasonNoRoute, fmt.Sprintf("profile %s has no route", b.prof.Name))
		}
	}

	coveredBy := map[pbr.Channel]pbr.Channel{}
	for _, r := range b.prof.Routes {
		src, ok := sources[r.Channel]
		if !ok || !r.Channel.Packed() {
			continue
		}
		var clash pbr.Channel
		for _, c := range r.Channel.Covers() {
			if other, ok := coveredBy[c]; ok {
				clash = other
				break
			}
		}
		if clash != pbr.Unknown {
			b.skip(src, r.Channel, ReasonSlotTaken, "overlaps "+clash.String())
			continue
		}
		for i, c := range r.Channel.Covers() {
			coveredBy[c] = r.Channel
			feeds[c] = &feed{channel: c, source: src, active: true, packed: r.Channel, index: i}
		}
	}

	for _, r := range b.prof.Routes {
		src, ok := sources[r.Channel]
		if !ok || r.Channel.Packed() {
			continue
		}
		if by, ok := coveredBy[r.Channel]; ok {
			b.skip(src, r.Channel, ReasonCovered, by.String())
			continue
		}
		feeds[r.Channel] = &feed{channel: r.Channel, source: src, active: true}
	}
	return feeds
}

// addPassive adds channels already feeding the shader, so that combines can
// pair new textures with existing ones.
func (b *builder) addPassive(feeds map[pbr.Channel]*feed) {
	for _, r := range b.prof.Routes {
		if _, ok := feeds[r.Channel]; ok || r.Channel.Packed() {
			continue
		}
		t, ok := b.in.Texture(r.Channel)
		if !ok || !t.Upstream {
			continue
		}
		feeds[r.Channel] = &feed{
			channel: r.Channel,
			source:  texture.FromNode(t.Node),
			from:    Endpoint{Node: Ref{ID: t.Node.ID}, Socket: b.prof.Texture.Output},
		}
	}
	for _, r := range b.prof.Routes {
		if !r.Channel.Packed() {
			continue
		}
		t, ok := b.in.Texture(r.Channel)
		if !ok || !t.Upstream {
			continue
		}
		split, ok := b.in.Intermediates[r.Via]
		if !ok {
			continue
		}
		im, _ := b.prof.Via(r)
		for i, c := range r.Channel.Covers() {
			if _, ok := feeds[c]; ok {
				continue
			}
			feeds[c] = &feed{
				channel: c,
				source:  texture.FromNode(t.Node),
				packed:  r.Channel,
				index:   i,
				from:    Endpoint{Node: Ref{ID: split.ID}, Socket: im.Outputs[i]},
			}
		}
	}
}

// resolveCombines drops combine channels that lack a partner and returns the
// partner channels whose routing the combine takes over.
func (b *builder) resolveCombines(feeds map[pbr.Channel]*feed) map[pbr.Channel]bool {
	merged := map[pbr.Channel]bool{}
	for _, r := range b.prof.Routes {
		f, ok := feeds[r.Channel]
		if !ok {
			continue
		}
		im, ok := b.prof.Via(r)
		if !ok || im.Role != shader.Combine {
			continue
		}
		if _, ok := feeds[im.Partner]; !ok {
			if f.active {
				b.skip(f.source, r.Channel, ReasonNeedsBaseColor, "no "+im.Partner.String()+" source")
			}
			delete(feeds, r.Channel)
			continue
		}
		merged[im.Partner] = true
	}
	return merged
}

// claimSlots gives each shader input to the first route in profile order.
func (b *builder) claimSlots(feeds map[pbr.Channel]*feed, merged map[pbr.Channel]bool) {
	owner := map[string]pbr.Channel{}
	for _, r := range b.prof.Routes {
		f, ok := feeds[r.Channel]
		if !ok || r.Channel.Packed() || merged[r.Channel] {
			continue
		}
		if other, taken := owner[r.Slot]; taken {
			if f.active {
				b.skip(f.source, r.Channel, ReasonSlotTaken, fmt.Sprintf("%q already used by %s", r.Slot, other))
			}
			delete(feeds, r.Channel)
			continue
		}
		owner[r.Slot] = r.Channel
	}
}

func (b *builder) route(r shader.Route, f *feed, feeds map[pbr.Channel]*feed) {
	slot := Endpoint{Node: Ref{ID: b.shaderID}, Socket: r.Slot}
	im, hasVia := b.prof.Via(r)

	if !hasVia {
		if !f.active {
			return
		}
		b.link(r.Channel, b.source(f), slot)
		b.wired[r.Channel] = true
		return
	}

	switch im.Role {
	case shader.Combine:
		partner := feeds[im.Partner]
		if !f.active && !partner.active {
			return
		}
		partnerFrom := b.source(partner)
		from := b.source(f)
		node := b.intermediate(r.Channel, im)
		b.link(im.Partner, partnerFrom, Endpoint{Node: node, Socket: im.Inputs[0]})
		b.link(r.Channel, from, Endpoint{Node: node, Socket: im.Inputs[1]})
		b.link(r.Channel, Endpoint{Node: node, Socket: im.Outputs[0]}, slot)
		b.wired[r.Channel] = f.active
		b.wired[im.Partner] = partner.active
	default:
		if !f.active {
			return
		}
		from := b.source(f)
		node := b.intermediate(r.Channel, im)
		b.link(r.Channel, from, Endpoint{Node: node, Socket: im.Inputs[0]})
		b.link(r.Channel, Endpoint{Node: node, Socket: im.Outputs[0]}, slot)
		b.wired[r.Channel] = true
	}
}

// source materializes the output socket a feed reads from, creating its
// texture (and split) nodes on first use.
func (b *builder) source(f *feed) Endpoint {
	if !f.active {
		return f.from
	}
	if f.packed == pbr.Unknown {
		tex := b.texture(f.channel, f.source)
		return Endpoint{Node: tex, Socket: b.prof.Texture.Output}
	}
	r, _ := b.prof.Route(f.packed)
	im, _ := b.prof.Via(r)
	split, ok := b.packed[f.packed]
	if !ok {
		tex := b.texture(f.packed, f.source)
		split = b.intermediate(f.packed, im)
		b.link(f.packed, Endpoint{Node: tex, Socket: b.prof.Texture.Output}, Endpoint{Node: split, Socket: im.Inputs[0]})
		b.packed[f.packed] = split
		b.wired[f.packed] = true
	}
	return Endpoint{Node: split, Socket: im.Outputs[f.index]}
}

// texture finds or creates the texture node for a source and fixes its
// colour space.
func (b *builder) texture(ch pbr.Channel, src texture.Source) Ref {
	want := b.prof.Texture.ColorSpace(ch)
	param := b.prof.Texture.ColorSpaceParam

	existing, ok := b.in.TextureByID(src.Node)
	if !ok && src.Node == "" {
		existing, ok = b.in.TextureByImage(src.Path)
	}

	var ref Ref
	switch {
	case ok:
		ref = Ref{ID: existing.Node.ID}
		b.touched = append(b.touched, existing.Node.ID)
		if param != "" && !graph.ParamEqual(existing.Node.Params[param], want) {
			b.emit(Op{Kind: SetParameter, Channel: ch, Node: ref, Param: param, Value: want})
		}
	case src.Node != "":
		// not a texture we recognize; trust the caller and route it as is
		ref = Ref{ID: src.Node}
	default:
		key := b.uniqueKey(shader.TextureKey(ch))
		ref = Ref{Key: key}
		label := src.Label
		if label == "" {
			label = src.Name()
		}
		b.emit(Op{Kind: CreateNode, Channel: ch, Node: ref, Spec: graph.NodeSpec{
			Type:  b.prof.Texture.NodeType,
			Name:  key,
			Label: label,
			Image: src.Path,
		}})
		if param != "" {
			b.emit(Op{Kind: SetParameter, Channel: ch, Node: ref, Param: param, Value: want})
		}
	}

	if im, ok := b.prof.MappingNode(); ok {
		m := b.mappingNode(ch, im)
		b.link(ch, Endpoint{Node: m, Socket: im.Outputs[0]}, Endpoint{Node: ref, Socket: b.prof.Texture.MappingInput})
	}
	return ref
}

func (b *builder) mappingNode(ch pbr.Channel, im shader.Intermediate) Ref {
	if b.mapping == nil {
		ref := b.intermediate(ch, im)
		b.mapping = &ref
	}
	return *b.mapping
}

// intermediate reuses a recognized node for the purpose or creates one with
// its default parameters.
func (b *builder) intermediate(ch pbr.Channel, im shader.Intermediate) Ref {
	if ref, ok := b.nodes[im.Purpose]; ok {
		return ref
	}
	if n, ok := b.in.Intermediates[im.Purpose]; ok {
		ref := Ref{ID: n.ID}
		b.nodes[im.Purpose] = ref
		return ref
	}

	key := b.uniqueKey(im.Key())
	ref := Ref{Key: key}
	b.emit(Op{Kind: CreateNode, Channel: ch, Node: ref, Spec: graph.NodeSpec{
		Type:  im.NodeType,
		Name:  key,
		Label: im.Label,
	}})
	names := make([]string, 0, len(im.Params))
	for name := range im.Params {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		b.emit(Op{Kind: SetParameter, Channel: ch, Node: ref, Param: name, Value: im.Params[name]})
	}
	b.nodes[im.Purpose] = ref
	return ref
}

// link requests from -> to. Nothing is emitted when the link already exists;
// a different link occupying the input is removed first.
func (b *builder) link(ch pbr.Channel, from, to Endpoint) {
	fromID, fromOK := b.resolve(from.Node)
	toID, toOK := b.resolve(to.Node)
	if toOK {
		input := graph.Socket{Node: toID, Name: to.Socket}
		if fromOK {
			want := graph.Link{From: graph.Socket{Node: fromID, Name: from.Socket}, To: input}
			b.desired[want] = true
			if b.snap.HasLink(want) && !b.removed[want] {
				return
			}
		}
		if old, ok := b.snap.LinkInto(input); ok && !b.removed[old] {
			b.removed[old] = true
			b.emit(Op{Kind: RemoveLink, Channel: ch,
				From: Endpoint{Node: Ref{ID: old.From.Node}, Socket: old.From.Name},
				To:   Endpoint{Node: Ref{ID: old.To.Node}, Socket: old.To.Name},
			})
		}
	}
	b.emit(Op{Kind: CreateLink, Channel: ch, From: from, To: to})
}

// cleanup removes direct links from routed textures into shader inputs that
// no route asked for, e.g. a roughness map wired into Metallic.
func (b *builder) cleanup() {
	for _, id := range b.touched {
		for _, l := range b.snap.LinksFrom(id) {
			if l.To.Node != b.shaderID || b.desired[l] || b.removed[l] {
				continue
			}
			ch := pbr.Unknown
			if t, ok := b.in.TextureByID(id); ok {
				ch = t.Channel
			}
			b.removed[l] = true
			b.emit(Op{Kind: RemoveLink, Channel: ch,
				From: Endpoint{Node: Ref{ID: l.From.Node}, Socket: l.From.Name},
				To:   Endpoint{Node: Ref{ID: l.To.Node}, Socket: l.To.Name},
			})
		}
	}
}

// transfer copies the source shader's unlinked input values onto target
// inputs that stay unlinked once the plan is applied.
func (b *builder) transfer(source graph.Node) {
	for _, t := range b.prof.Transfers {
		value, ok := b.sourceValue(source, t)
		if !ok {
			continue
		}
		if b.linkedAfter(t.To) {
			continue
		}
		if graph.ParamEqual(b.in.Shader.Params[t.To], value) {
			continue
		}
		b.plan.Transferred = append(b.plan.Transferred, t.To)
		ch := pbr.Unknown
		for _, r := range b.prof.Routes {
			if r.Slot == t.To {
				ch = r.Channel
				break
			}
		}
		b.emit(Op{Kind: SetParameter, Channel: ch, Node: Ref{ID: b.shaderID}, Param: t.To, Value: value})
	}
}

// sourceValue reads the first of t.From the source node carries. A linked
// source input has no value of its own.
func (b *builder) sourceValue(source graph.Node, t shader.Transfer) (any, bool) {
	for _, name := range t.From {
		v, ok := source.Params[name]
		if !ok {
			continue
		}
		if _, linked := b.snap.LinkInto(graph.Socket{Node: source.ID, Name: name}); linked {
			return nil, false
		}
		return t.Convert(v)
	}
	return nil, false
}

// linkedAfter reports whether a target input is fed once the plan runs.
func (b *builder) linkedAfter(input string) bool {
	for _, op := range b.plan.Ops {
		if op.Kind == CreateLink && op.To.Node.ID == b.shaderID && op.To.Socket == input {
			return true
		}
	}
	l, ok := b.snap.LinkInto(graph.Socket{Node: b.shaderID, Name: input})
	return ok && !b.removed[l]
}

func (b *builder) resolve(r Ref) (graph.NodeID, bool) {
	if r.ID != "" {
		return r.ID, true
	}
	if b.taken[r.Key] {
		return "", false
	}
	if n, ok := b.snap.NodeByName(r.Key); ok {
		return n.ID, true
	}
	return "", false
}

func (b *builder) uniqueKey(base string) string {
	key := base
	for i := 1; ; i++ {
		if _, exists := b.snap.NodeByName(key); !exists && !b.taken[key] {
			b.taken[key] = true
			return key
		}
		key = fmt.Sprintf("%s.%d", base, i)
	}
}

func (b *builder) emit(op Op) {
	b.plan.Ops = append(b.plan.Ops, op)
}
