package wasm

// StackType is one entry of the operand-type stack: either a concrete
// value type or the polymorphic "any" sentinel that stands for an
// arbitrary type after an `unreachable` instruction (following the
// reference validation algorithm's stack-polymorphism treatment).
type StackType struct {
	IsAny bool
	Value ValueVariant
}

func concreteStack(v ValueVariant) StackType { return StackType{Value: v} }

func (s StackType) String() string {
	if s.IsAny {
		return "any"
	}
	return s.Value.String()
}

// ctrlFrameKind labels the kind of control construct a ctrlFrame tracks,
// since br's target types depend on it (loop branches to its params,
// every other construct branches to its results).
type ctrlFrameKind byte

const (
	ctrlFunction ctrlFrameKind = iota
	ctrlBlock
	ctrlLoop
	ctrlIf
	ctrlElse
	ctrlTry
	ctrlCatch
	ctrlLet
)

// ctrlFrame is one entry of the control-frame stack, tracking everything
// needed to validate branches to and falls-through from this construct.
type ctrlFrame struct {
	kind        ctrlFrameKind
	startTypes  []ValueVariant
	endTypes    []ValueVariant
	height      int // operand stack depth at the point this frame was entered
	unreachable bool
}

// labelTypes returns the types a branch to this frame must supply: a
// loop's label targets its start (so looping re-supplies the loop's
// params), every other construct's label targets its end (the value the
// construct itself produces).
func (f *ctrlFrame) labelTypes() []ValueVariant {
	if f.kind == ctrlLoop {
		return f.startTypes
	}
	return f.endTypes
}

// opdStack implements the standard two-stack (operand + control frame)
// validation algorithm with unreachable-driven polymorphism, as described
// by the WebAssembly core specification's reference validation algorithm
// and adapted here to ValueVariant (numeric + reference + rtt) operands.
type opdStack struct {
	vals  []StackType
	ctrls []ctrlFrame
}

func newOpdStack() *opdStack { return &opdStack{} }

func (s *opdStack) pushVal(v ValueVariant) {
	s.vals = append(s.vals, concreteStack(v))
}

func (s *opdStack) pushAny() {
	s.vals = append(s.vals, StackType{IsAny: true})
}

// popVal pops one operand, checking it against expected when expected is
// non-nil; the empty-stack case is treated as "any" exactly when the
// enclosing frame is unreachable (stack polymorphism), and as a real
// underflow error otherwise.
func (s *opdStack) popVal(ctx *Ctx, expected *ValueVariant) (StackType, bool, string) {
	top := &s.ctrls[len(s.ctrls)-1]
	if len(s.vals) == top.height {
		if top.unreachable {
			return StackType{IsAny: true}, true, ""
		}
		if expected == nil {
			return StackType{}, false, "Expected stack to contain 1 value, got 0"
		}
		return StackType{}, false, "Expected stack to contain " + renderValueTypes([]ValueVariant{*expected}) + ", got []"
	}
	v := s.vals[len(s.vals)-1]
	s.vals = s.vals[:len(s.vals)-1]
	if expected != nil && !v.IsAny {
		if !ctx.IsMatchValue(*expected, v.Value) {
			prefix := ""
			if top.unreachable {
				prefix = "..."
			}
			return v, false, "Expected stack to contain " + renderValueTypes([]ValueVariant{*expected}) +
				", got " + prefix + renderStackTypes([]StackType{v})
		}
	}
	return v, true, ""
}

func (s *opdStack) pushVals(vs []ValueVariant) {
	for _, v := range vs {
		s.pushVal(v)
	}
}

// popVals checks the visible stack top against the whole expected
// sequence at once, then drops that many operands; a mismatch reports the
// full expected span against the full observed span ("Expected stack to
// contain [i32 f32], got [i32]"), with a "..." prefix marking an
// unreachable frame whose missing values were synthesized.
func (s *opdStack) popVals(ctx *Ctx, expected []ValueVariant) (bool, string) {
	ok, msg := s.checkVals(ctx, expected)
	top := &s.ctrls[len(s.ctrls)-1]
	if avail := len(s.vals) - top.height; len(expected) > avail {
		s.vals = s.vals[:top.height]
	} else {
		s.vals = s.vals[:len(s.vals)-len(expected)]
	}
	return ok, msg
}

// checkVals is popVals without the drop: it compares the top of the
// current frame's visible stack against expected, forgiving missing
// values only when the frame is unreachable.
func (s *opdStack) checkVals(ctx *Ctx, expected []ValueVariant) (bool, string) {
	top := &s.ctrls[len(s.ctrls)-1]
	actual := s.vals[top.height:]
	if len(actual) > len(expected) {
		actual = actual[len(actual)-len(expected):]
	}
	checked := expected
	if top.unreachable && len(checked) > len(actual) {
		checked = checked[len(checked)-len(actual):]
	}
	if !s.typesMatch(ctx, checked, actual) {
		prefix := ""
		if top.unreachable {
			prefix = "..."
		}
		return false, "Expected stack to contain " + renderValueTypes(expected) +
			", got " + prefix + renderStackTypes(actual)
	}
	return true, ""
}

func (s *opdStack) typesMatch(ctx *Ctx, expected []ValueVariant, actual []StackType) bool {
	if len(expected) != len(actual) {
		return false
	}
	for i := range expected {
		if actual[i].IsAny {
			continue
		}
		if !ctx.IsMatchValue(expected[i], actual[i].Value) {
			return false
		}
	}
	return true
}

// renderValueTypes renders a value-type span the way diagnostics quote
// it: "[i32 f32]".
func renderValueTypes(ts []ValueVariant) string {
	out := "["
	for i, t := range ts {
		if i > 0 {
			out += " "
		}
		out += t.String()
	}
	return out + "]"
}

func renderStackTypes(ts []StackType) string {
	out := "["
	for i, t := range ts {
		if i > 0 {
			out += " "
		}
		out += t.String()
	}
	return out + "]"
}

func (s *opdStack) pushCtrl(kind ctrlFrameKind, start, end []ValueVariant) {
	s.ctrls = append(s.ctrls, ctrlFrame{
		kind:       kind,
		startTypes: start,
		endTypes:   end,
		height:     len(s.vals),
	})
	s.pushVals(start)
}

// popCtrl pops the innermost control frame, checking its end types are
// satisfied by the current stack contents, and returns it.
func (s *opdStack) popCtrl(ctx *Ctx) (ctrlFrame, bool, string) {
	if len(s.ctrls) == 0 {
		return ctrlFrame{}, false, "control stack underflow"
	}
	top := s.ctrls[len(s.ctrls)-1]
	if ok, msg := s.popVals(ctx, top.endTypes); !ok {
		return ctrlFrame{}, false, msg
	}
	if len(s.vals) != top.height {
		return ctrlFrame{}, false, "type mismatch: values remain on the stack at end of block"
	}
	s.ctrls = s.ctrls[:len(s.ctrls)-1]
	return top, true, ""
}

// label returns the nth-from-top control frame (0 = innermost), for br
// depth resolution.
func (s *opdStack) label(n uint32) (*ctrlFrame, bool) {
	idx := len(s.ctrls) - 1 - int(n)
	if idx < 0 {
		return nil, false
	}
	return &s.ctrls[idx], true
}

// markUnreachable discards every value pushed since the current frame's
// entry and marks it polymorphic, per `unreachable`'s effect on
// validation: the values it "produces" may be given any type.
func (s *opdStack) markUnreachable() {
	top := &s.ctrls[len(s.ctrls)-1]
	s.vals = s.vals[:top.height]
	top.unreachable = true
}

func (s *opdStack) depth() int { return len(s.ctrls) }
