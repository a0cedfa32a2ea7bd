package proc

import (
	"regexp"
	"strings"
)

// State is the lifecycle position of a supervised attack process. Each
// process kind uses a subset of these values; StateTerminated is absorbing.
type State int

const (
	StateNew State = iota
	StateWaitingForBeacon
	StateWaitingForArp
	StateOK
	StateTerminated
)

func (s State) String() string {
	switch s {
	case StateNew:
		return "new"
	case StateWaitingForBeacon:
		return "waiting_for_beacon"
	case StateWaitingForArp:
		return "waiting_for_arp"
	case StateOK:
		return "ok"
	case StateTerminated:
		return "terminated"
	default:
		return "unknown"
	}
}

// Effect is a named side-effect request produced by classification, executed
// by the owning attack process after the update pass (for example persisting
// a just-announced capture file). Value carries extracted line data.
type Effect struct {
	Name  string
	Value string
}

// Update is the outcome of one classification pass: the state after applying
// all new lines, the flags and stats touched during the pass, requested side
// effects, and any anomalies found on streams expected to stay silent.
type Update struct {
	State     State
	Flags     map[string]bool
	Stats     map[string]int
	Effects   []Effect
	Anomalies []error
}

// SetFlag records a flag raised during this pass.
func (u *Update) SetFlag(name string) {
	if u.Flags == nil {
		u.Flags = make(map[string]bool)
	}
	u.Flags[name] = true
}

// SetStat records a counter value observed during this pass.
func (u *Update) SetStat(name string, v int) {
	if u.Stats == nil {
		u.Stats = make(map[string]int)
	}
	u.Stats[name] = v
}

// AddEffect queues a side-effect request.
func (u *Update) AddEffect(name, value string) {
	u.Effects = append(u.Effects, Effect{Name: name, Value: value})
}

// AddAnomaly records output contradicting the wrapped tool's contract.
func (u *Update) AddAnomaly(err error) {
	u.Anomalies = append(u.Anomalies, err)
}

// Rule maps one recognizable output line shape to its effects. Either Substr
// or Pattern must be set; Pattern rules receive the submatches. When, if set,
// guards the rule against the in-progress update.
type Rule struct {
	Substr  string
	Pattern *regexp.Regexp
	When    func(u *Update) bool
	Apply   func(match []string, u *Update)
}

// match reports whether the rule fires for line. Substring rules hand the
// whole line to Apply as match[0]; pattern rules hand over the submatches.
func (r *Rule) match(line string) ([]string, bool) {
	if r.Pattern != nil {
		m := r.Pattern.FindStringSubmatch(line)
		return m, m != nil
	}
	if r.Substr != "" && strings.Contains(line, r.Substr) {
		return []string{line}, true
	}
	return nil, false
}

// Table is the ordered rule list for one process kind. With FirstMatchOnly
// set, evaluation stops at the first matching rule (the kinds whose rules
// form an if/else chain); otherwise every matching rule applies.
type Table struct {
	Rules          []Rule
	FirstMatchOnly bool
}

// Classify evaluates one output line against the table, applying matching
// rules to u. Unrecognized lines are ignored, keeping the tables forward
// compatible with changed tool output.
func (t Table) Classify(line string, u *Update) {
	for i := range t.Rules {
		r := &t.Rules[i]
		m, ok := r.match(line)
		if !ok {
			continue
		}
		if r.When != nil && !r.When(u) {
			continue
		}
		r.Apply(m, u)
		if t.FirstMatchOnly {
			return
		}
	}
}
