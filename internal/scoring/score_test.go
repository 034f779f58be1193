package scoring

import (
	"testing"
	"time"

	"github.com/nlowell/chainsignal/internal/signal"
)

// Fixed clock so decay and lifecycle results are deterministic.
var testNow = time.Date(2025, time.March, 15, 12, 0, 0, 0, time.UTC)

func msAgo(d time.Duration) int64 {
	return testNow.Add(-d).UnixMilli()
}

func intPtr(n int) *int {
	return &n
}

func deltas(n int) []map[string]any {
	out := make([]map[string]any, n)
	for i := range out {
		out[i] = map[string]any{"flow": i}
	}
	return out
}

// =============================================================================
// Scenario Tests
// =============================================================================

// TestScore_EmptySignal verifies that an empty record produces a well-formed
// zero result: no score, no breakdown, low tier, active lifecycle.
func TestScore_EmptySignal(t *testing.T) {
	res := Score(&signal.Signal{}, testNow)

	if res.OriginalScore != 0 || res.Score != 0 {
		t.Errorf("expected 0/0, got original=%d score=%d", res.OriginalScore, res.Score)
	}
	if len(res.Breakdown) != 0 {
		t.Errorf("expected empty breakdown, got %d entries", len(res.Breakdown))
	}
	if len(res.TopReasons) != 0 {
		t.Errorf("expected empty top reasons, got %d entries", len(res.TopReasons))
	}
	if res.Tier != TierLow {
		t.Errorf("expected tier %q, got %q", TierLow, res.Tier)
	}
	if res.Lifecycle != StageActive {
		t.Errorf("expected lifecycle %q, got %q", StageActive, res.Lifecycle)
	}
	if res.Decayed || res.Decay != 0 || res.AgeInHours != 0 {
		t.Errorf("expected no decay fields, got decayed=%v decay=%d age=%d",
			res.Decayed, res.Decay, res.AgeInHours)
	}
}

// TestScore_NilSignal verifies that a nil record behaves like an empty one
// instead of panicking.
func TestScore_NilSignal(t *testing.T) {
	res := Score(nil, testNow)
	if res.Score != 0 || res.Lifecycle != StageActive {
		t.Errorf("nil signal should score as empty, got score=%d lifecycle=%q",
			res.Score, res.Lifecycle)
	}
}

// TestScore_FreshDistributionHighRisk covers a just-observed signal with a
// behavior change and high risk: 25+20=45, no decay, notable tier, new stage.
func TestScore_FreshDistributionHighRisk(t *testing.T) {
	sig := &signal.Signal{
		BehaviorChanged: true,
		Behavior:        signal.BehaviorDistributing,
		RiskLevel:       signal.RiskHigh,
		Timestamp:       testNow.UnixMilli(),
	}
	res := Score(sig, testNow)

	if res.OriginalScore != 45 {
		t.Errorf("expected originalScore=45, got %d", res.OriginalScore)
	}
	if res.Score != 45 || res.Decayed {
		t.Errorf("expected undecayed score=45, got score=%d decayed=%v", res.Score, res.Decayed)
	}
	if res.Tier != TierNotable {
		t.Errorf("expected tier %q, got %q", TierNotable, res.Tier)
	}
	if res.Lifecycle != StageNew {
		t.Errorf("expected lifecycle %q, got %q", StageNew, res.Lifecycle)
	}
	if len(res.Breakdown) != 2 {
		t.Fatalf("expected 2 breakdown entries, got %d", len(res.Breakdown))
	}
	if res.Breakdown[0].Component != "behavior" || res.Breakdown[0].Score != 25 {
		t.Errorf("expected behavior=25 first, got %s=%d",
			res.Breakdown[0].Component, res.Breakdown[0].Score)
	}
	if res.Breakdown[1].Component != "risk" || res.Breakdown[1].Score != 20 {
		t.Errorf("expected risk=20 second, got %s=%d",
			res.Breakdown[1].Component, res.Breakdown[1].Score)
	}
}

// TestScore_TenHourOldDecays covers the same signal observed ten hours ago
// with no recent-activity flag: decay floor((10-6)*2)=8, score 37, cooling.
func TestScore_TenHourOldDecays(t *testing.T) {
	sig := &signal.Signal{
		BehaviorChanged: true,
		Behavior:        signal.BehaviorDistributing,
		RiskLevel:       signal.RiskHigh,
		Timestamp:       msAgo(10 * time.Hour),
	}
	res := Score(sig, testNow)

	if res.OriginalScore != 45 {
		t.Errorf("expected originalScore=45, got %d", res.OriginalScore)
	}
	if res.Decay != 8 || !res.Decayed {
		t.Errorf("expected decay=8 decayed=true, got decay=%d decayed=%v", res.Decay, res.Decayed)
	}
	if res.Score != 37 {
		t.Errorf("expected score=37, got %d", res.Score)
	}
	if res.AgeInHours != 10 {
		t.Errorf("expected ageInHours=10, got %d", res.AgeInHours)
	}
	if res.Lifecycle != StageCooling {
		t.Errorf("expected lifecycle %q, got %q", StageCooling, res.Lifecycle)
	}
	if res.Tier != TierLow {
		t.Errorf("expected tier %q after decay, got %q", TierLow, res.Tier)
	}
}

// TestScore_AlignedAccumulatorNoChange covers coordination as the only
// contributing factor: min(20, 10+5*3)=20, low tier.
func TestScore_AlignedAccumulatorNoChange(t *testing.T) {
	sig := &signal.Signal{
		BridgeAligned:   true,
		AlignedCount:    5,
		Behavior:        signal.BehaviorAccumulating,
		BehaviorChanged: false,
	}
	res := Score(sig, testNow)

	if res.OriginalScore != 20 {
		t.Errorf("expected originalScore=20, got %d", res.OriginalScore)
	}
	if res.Tier != TierLow {
		t.Errorf("expected tier %q, got %q", TierLow, res.Tier)
	}
	if len(res.Breakdown) != 1 || res.Breakdown[0].Component != "coordination" {
		t.Fatalf("expected single coordination entry, got %+v", res.Breakdown)
	}
}

// TestLifecycle_OldHighScoreArchives verifies the archived check runs before
// cooling: 80 hours old archives even at score 50.
func TestLifecycle_OldHighScoreArchives(t *testing.T) {
	stage := LifecycleFor(msAgo(80*time.Hour), 50, testNow)
	if stage != StageArchived {
		t.Errorf("expected %q for 80h-old score 50, got %q", StageArchived, stage)
	}
}

// =============================================================================
// Factor Tests
// =============================================================================

// TestScoreFactors_Behavior exercises the behavior factor branches in
// priority order.
func TestScoreFactors_Behavior(t *testing.T) {
	tests := []struct {
		name    string
		changed bool
		b       signal.Behavior
		want    int
	}{
		{"changed distributing", true, signal.BehaviorDistributing, 25},
		{"changed accumulating", true, signal.BehaviorAccumulating, 20},
		{"changed dormant", true, signal.BehaviorDormant, 15},
		{"changed other", true, signal.BehaviorOther, 15},
		{"changed unknown value", true, "sideways", 15},
		{"steady distributing", false, signal.BehaviorDistributing, 10},
		{"steady accumulating", false, signal.BehaviorAccumulating, 0},
		{"no behavior", false, "", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			total, _ := scoreFactors(&signal.Signal{BehaviorChanged: tt.changed, Behavior: tt.b})
			if total != tt.want {
				t.Errorf("expected %d, got %d", tt.want, total)
			}
		})
	}
}

// TestScoreFactors_Risk exercises the risk factor.
func TestScoreFactors_Risk(t *testing.T) {
	tests := []struct {
		name string
		risk signal.RiskLevel
		want int
	}{
		{"high", signal.RiskHigh, 20},
		{"medium", signal.RiskMedium, 10},
		{"low", signal.RiskLow, 0},
		{"absent", "", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			total, _ := scoreFactors(&signal.Signal{RiskLevel: tt.risk})
			if total != tt.want {
				t.Errorf("expected %d, got %d", tt.want, total)
			}
		})
	}
}

// TestScoreFactors_Coordination exercises the aligned-count scaling, its
// cap, and the default count of 2 for unset values.
func TestScoreFactors_Coordination(t *testing.T) {
	tests := []struct {
		name    string
		aligned bool
		count   int
		want    int
	}{
		{"count 1", true, 1, 13},
		{"count 2", true, 2, 16},
		{"count 3", true, 3, 19},
		{"count 4 capped", true, 4, 20},
		{"count 10 capped", true, 10, 20},
		{"unset count defaults to 2", true, 0, 16},
		{"negative count defaults to 2", true, -3, 16},
		{"not aligned ignores count", false, 10, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			total, _ := scoreFactors(&signal.Signal{BridgeAligned: tt.aligned, AlignedCount: tt.count})
			if total != tt.want {
				t.Errorf("expected %d, got %d", tt.want, total)
			}
		})
	}
}

// TestScoreFactors_Magnitude verifies delta signals dominate the attention
// score and that the length scaling caps at 20.
func TestScoreFactors_Magnitude(t *testing.T) {
	tests := []struct {
		name      string
		deltas    int
		attention float64
		want      int
	}{
		{"one delta", 1, 0, 15},
		{"two deltas", 2, 0, 20},
		{"three deltas capped", 3, 0, 20},
		{"attention above threshold", 0, 61, 15},
		{"attention at threshold", 0, 60, 0},
		{"attention below threshold", 0, 42, 0},
		{"deltas shadow attention", 1, 99, 15},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			total, _ := scoreFactors(&signal.Signal{
				DeltaSignals:   deltas(tt.deltas),
				AttentionScore: tt.attention,
			})
			if total != tt.want {
				t.Errorf("expected %d, got %d", tt.want, total)
			}
		})
	}
}

// TestScoreFactors_Recency verifies the 24h flag outranks the dormant-days
// signal and that an absent dormantDays never scores.
func TestScoreFactors_Recency(t *testing.T) {
	tests := []struct {
		name    string
		status  string
		dormant *int
		want    int
	}{
		{"24h flag", "24h", nil, 15},
		{"24h flag shadows dormant zero", "24h", intPtr(0), 15},
		{"other status ignored", "7d", nil, 0},
		{"dormant zero days", "", intPtr(0), 5},
		{"dormant three days", "", intPtr(3), 0},
		{"dormant absent", "", nil, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			total, _ := scoreFactors(&signal.Signal{StatusChange: tt.status, DormantDays: tt.dormant})
			if total != tt.want {
				t.Errorf("expected %d, got %d", tt.want, total)
			}
		})
	}
}

// TestScore_AllFactorsMaxed verifies the raw sum of every factor cap lands
// exactly at 100 and survives the defensive cap.
func TestScore_AllFactorsMaxed(t *testing.T) {
	sig := &signal.Signal{
		BehaviorChanged: true,
		Behavior:        signal.BehaviorDistributing,
		RiskLevel:       signal.RiskHigh,
		BridgeAligned:   true,
		AlignedCount:    10,
		DeltaSignals:    deltas(5),
		StatusChange:    "24h",
	}
	res := Score(sig, testNow)

	if res.OriginalScore != 100 {
		t.Errorf("expected originalScore=100, got %d", res.OriginalScore)
	}
	if len(res.Breakdown) != 5 {
		t.Errorf("expected 5 breakdown entries, got %d", len(res.Breakdown))
	}

	sum := 0
	for _, e := range res.Breakdown {
		sum += e.Score
	}
	if sum != 100 {
		t.Errorf("expected breakdown sum=100, got %d", sum)
	}
}

// =============================================================================
// Decay Tests
// =============================================================================

// TestDecay_GraceWindow verifies signals younger than six hours never decay,
// including exactly at the boundary where the computed decay is zero.
func TestDecay_GraceWindow(t *testing.T) {
	ages := []time.Duration{
		0,
		30 * time.Minute,
		5 * time.Hour,
		5*time.Hour + 59*time.Minute,
		6 * time.Hour,
	}

	for _, age := range ages {
		d := decayScore(80, msAgo(age), false, testNow)
		if d.Decayed || d.Score != 80 {
			t.Errorf("age %v: expected no decay, got decayed=%v score=%d", age, d.Decayed, d.Score)
		}
	}
}

// TestDecay_Monotonicity verifies decay never decreases as age grows past
// the grace window.
func TestDecay_Monotonicity(t *testing.T) {
	ages := []time.Duration{
		6 * time.Hour,
		7 * time.Hour,
		8 * time.Hour,
		12 * time.Hour,
		24 * time.Hour,
		48 * time.Hour,
		100 * time.Hour,
	}

	prev := -1
	for _, age := range ages {
		d := decayScore(80, msAgo(age), false, testNow)
		if d.Decay < prev {
			t.Errorf("decay decreased at age %v: %d < %d", age, d.Decay, prev)
		}
		prev = d.Decay
	}
}

// TestDecay_RecentActivityOverride verifies the 24h flag suppresses decay
// at any age.
func TestDecay_RecentActivityOverride(t *testing.T) {
	d := decayScore(80, msAgo(100*time.Hour), true, testNow)
	if d.Decayed || d.Score != 80 || d.Decay != 0 {
		t.Errorf("expected no decay with recent activity, got decayed=%v decay=%d score=%d",
			d.Decayed, d.Decay, d.Score)
	}
	if d.AgeInHours != 100 {
		t.Errorf("age should still be reported, got %d", d.AgeInHours)
	}
}

// TestDecay_NoTimestamp verifies an absent timestamp passes the base score
// through untouched.
func TestDecay_NoTimestamp(t *testing.T) {
	d := decayScore(55, 0, false, testNow)
	if d.Score != 55 || d.Decayed || d.Decay != 0 || d.AgeInHours != 0 {
		t.Errorf("expected untouched pass-through, got %+v", d)
	}
}

// TestDecay_FloorsAtZero verifies a heavily decayed score never goes
// negative.
func TestDecay_FloorsAtZero(t *testing.T) {
	d := decayScore(10, msAgo(30*time.Hour), false, testNow)
	if d.Score != 0 {
		t.Errorf("expected score floored at 0, got %d", d.Score)
	}
	if d.Decay != 48 {
		t.Errorf("expected decay=48, got %d", d.Decay)
	}
}

// TestDecay_FutureTimestamp verifies a clock-skewed future observation sits
// in the grace window with a zero reported age.
func TestDecay_FutureTimestamp(t *testing.T) {
	future := testNow.Add(2 * time.Hour).UnixMilli()
	d := decayScore(40, future, false, testNow)
	if d.Decayed || d.Score != 40 {
		t.Errorf("expected no decay for future timestamp, got %+v", d)
	}
	if d.AgeInHours != 0 {
		t.Errorf("expected reported age clamped to 0, got %d", d.AgeInHours)
	}
}

// TestDecay_ExactHours spot-checks the two-points-per-hour slope.
func TestDecay_ExactHours(t *testing.T) {
	tests := []struct {
		age  time.Duration
		want int
	}{
		{7 * time.Hour, 2},
		{8 * time.Hour, 4},
		{10 * time.Hour, 8},
		{16 * time.Hour, 20},
		{6*time.Hour + 30*time.Minute, 1},
	}

	for _, tt := range tests {
		d := decayScore(80, msAgo(tt.age), false, testNow)
		if d.Decay != tt.want {
			t.Errorf("age %v: expected decay=%d, got %d", tt.age, tt.want, d.Decay)
		}
	}
}

// =============================================================================
// Lifecycle Tests
// =============================================================================

// TestLifecycle_Rules exercises the ordered classification rules.
func TestLifecycle_Rules(t *testing.T) {
	tests := []struct {
		name  string
		age   time.Duration
		noTS  bool
		score int
		want  string
	}{
		{"no timestamp", 0, true, 90, StageActive},
		{"one hour old", 1 * time.Hour, false, 50, StageNew},
		{"just under two hours", 119 * time.Minute, false, 10, StageNew},
		{"exactly two hours", 2 * time.Hour, false, 50, StageActive},
		{"young healthy", 3 * time.Hour, false, 50, StageActive},
		{"young weak score cools", 3 * time.Hour, false, 39, StageCooling},
		{"old enough to cool", 25 * time.Hour, false, 80, StageCooling},
		{"very old archives", 73 * time.Hour, false, 90, StageArchived},
		{"dead score archives", 10 * time.Hour, false, 19, StageArchived},
		{"old beats score for archive", 80 * time.Hour, false, 50, StageArchived},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := int64(0)
			if !tt.noTS {
				ts = msAgo(tt.age)
			}
			got := LifecycleFor(ts, tt.score, testNow)
			if got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

// TestLifecycle_Deterministic verifies repeated classification of identical
// inputs never diverges.
func TestLifecycle_Deterministic(t *testing.T) {
	ts := msAgo(30 * time.Hour)
	first := LifecycleFor(ts, 55, testNow)
	for i := 0; i < 100; i++ {
		if got := LifecycleFor(ts, 55, testNow); got != first {
			t.Fatalf("classification diverged on call %d: %q vs %q", i, got, first)
		}
	}
}

// TestTierFor checks the tier thresholds.
func TestTierFor(t *testing.T) {
	tests := []struct {
		score int
		want  string
	}{
		{0, TierLow},
		{39, TierLow},
		{40, TierNotable},
		{69, TierNotable},
		{70, TierCritical},
		{100, TierCritical},
	}

	for _, tt := range tests {
		if got := TierFor(tt.score); got != tt.want {
			t.Errorf("TierFor(%d): expected %q, got %q", tt.score, tt.want, got)
		}
	}
}

// =============================================================================
// Property Tests
// =============================================================================

// TestScore_Properties sweeps a grid of representative inputs and checks the
// structural invariants: score bounds, breakdown sum, sort order, and the
// top-reasons prefix.
func TestScore_Properties(t *testing.T) {
	behaviors := []signal.Behavior{"", signal.BehaviorAccumulating, signal.BehaviorDistributing, signal.BehaviorDormant, "sideways"}
	risks := []signal.RiskLevel{"", signal.RiskHigh, signal.RiskMedium, signal.RiskLow}
	coordination := []struct {
		aligned bool
		count   int
	}{{false, 0}, {true, 0}, {true, 1}, {true, 7}}
	deltaCounts := []int{0, 1, 4}
	attentions := []float64{0, 59, 75}
	statuses := []string{"", "24h"}
	dormants := []*int{nil, intPtr(0), intPtr(9)}
	timestamps := []int64{
		0,
		testNow.UnixMilli(),
		msAgo(5 * time.Hour),
		msAgo(12 * time.Hour),
		msAgo(100 * time.Hour),
		testNow.Add(2 * time.Hour).UnixMilli(),
	}

	checked := 0
	for _, changed := range []bool{false, true} {
		for _, b := range behaviors {
			for _, r := range risks {
				for _, c := range coordination {
					for _, dc := range deltaCounts {
						for _, att := range attentions {
							for _, st := range statuses {
								for _, dd := range dormants {
									for _, ts := range timestamps {
										sig := &signal.Signal{
											BehaviorChanged: changed,
											Behavior:        b,
											RiskLevel:       r,
											BridgeAligned:   c.aligned,
											AlignedCount:    c.count,
											DeltaSignals:    deltas(dc),
											AttentionScore:  att,
											StatusChange:    st,
											DormantDays:     dd,
											Timestamp:       ts,
										}
										assertScoreInvariants(t, sig)
										checked++
									}
								}
							}
						}
					}
				}
			}
		}
	}

	if checked == 0 {
		t.Fatal("property sweep ran zero cases")
	}
}

func assertScoreInvariants(t *testing.T, sig *signal.Signal) {
	t.Helper()

	res := Score(sig, testNow)

	if res.Score < 0 || res.Score > res.OriginalScore || res.OriginalScore > 100 {
		t.Fatalf("bounds violated: score=%d original=%d for %+v", res.Score, res.OriginalScore, sig)
	}

	sum := 0
	for i, e := range res.Breakdown {
		sum += e.Score
		if i > 0 && res.Breakdown[i-1].Score < e.Score {
			t.Fatalf("breakdown not sorted descending at %d for %+v", i, sig)
		}
		if e.Score <= 0 {
			t.Fatalf("zero-score breakdown entry %q for %+v", e.Component, sig)
		}
	}
	if sum <= 100 && sum != res.OriginalScore {
		t.Fatalf("breakdown sum %d != originalScore %d for %+v", sum, res.OriginalScore, sig)
	}
	if sum > 100 && res.OriginalScore != 100 {
		t.Fatalf("originalScore should cap at 100 when raw sum=%d, got %d", sum, res.OriginalScore)
	}

	wantTop := len(res.Breakdown)
	if wantTop > 3 {
		wantTop = 3
	}
	if len(res.TopReasons) != wantTop {
		t.Fatalf("topReasons length %d, want %d", len(res.TopReasons), wantTop)
	}
	for i := range res.TopReasons {
		if res.TopReasons[i] != res.Breakdown[i] {
			t.Fatalf("topReasons[%d] diverges from breakdown", i)
		}
	}
}

// TestScore_BreakdownTieOrder verifies equal-score factors keep their
// evaluation order after the stable sort.
func TestScore_BreakdownTieOrder(t *testing.T) {
	// Steady distribution (10) ties with medium risk (10).
	sig := &signal.Signal{
		Behavior:  signal.BehaviorDistributing,
		RiskLevel: signal.RiskMedium,
	}
	res := Score(sig, testNow)

	if len(res.Breakdown) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(res.Breakdown))
	}
	if res.Breakdown[0].Component != "behavior" || res.Breakdown[1].Component != "risk" {
		t.Errorf("tie order broken: got [%s, %s], want [behavior, risk]",
			res.Breakdown[0].Component, res.Breakdown[1].Component)
	}
}
