// Package composition finds valuable combinations of enhancement
// opportunities: cross-type synergy pairs and same-type compounding, scored
// with a fixed synergy table plus a soft learned bias from past outcomes.
package composition

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/tinkerloft/refinery/internal/model"
)

// defaultSynergyBonus applies to type pairs absent from the table.
const defaultSynergyBonus = 0.1

// maxSynergyBonus caps the averaged bonus.
const maxSynergyBonus = 0.5

// maxCompositions bounds how many compositions one call returns.
const maxCompositions = 3

// sameTypeTopN bounds how many same-type opportunities compound together.
const sameTypeTopN = 3

// successThreshold marks a recorded outcome as a success.
const successThreshold = 0.7

// crossTypePairs is the fixed catalog of type pairs known to compound well.
// Order matters: it is the evaluation order, which breaks score ties.
var crossTypePairs = [][2]model.OpportunityType{
	{model.OpportunityPerformance, model.OpportunityFeature},
	{model.OpportunityUIEnhancement, model.OpportunityFeature},
	{model.OpportunityAIEnhancement, model.OpportunityPerformance},
	{model.OpportunitySecurity, model.OpportunityFeature},
	{model.OpportunityCodeQuality, model.OpportunityPerformance},
	{model.OpportunityIntegration, model.OpportunityAIEnhancement},
}

// synergyTable maps canonical pair keys to their bonus. Pairs not listed get
// defaultSynergyBonus.
var synergyTable = map[string]float64{
	pairKey(model.OpportunityPerformance, model.OpportunityFeature):      0.3,
	pairKey(model.OpportunityUIEnhancement, model.OpportunityFeature):    0.2,
	pairKey(model.OpportunityAIEnhancement, model.OpportunityPerformance): 0.25,
	pairKey(model.OpportunitySecurity, model.OpportunityFeature):         0.2,
	pairKey(model.OpportunityCodeQuality, model.OpportunityPerformance):  0.25,
	pairKey(model.OpportunityIntegration, model.OpportunityAIEnhancement): 0.2,
}

// pairKey builds an order-independent lookup key for a type pair.
func pairKey(a, b model.OpportunityType) string {
	if b < a {
		a, b = b, a
	}
	return string(a) + "+" + string(b)
}

// synergyStats tracks realized outcomes for one composed type tuple.
type synergyStats struct {
	Attempts       int
	Successes      int
	AverageQuality float64
}

// Engine identifies composable opportunity sets. Identification itself is a
// pure function of its input; the outcome statistics table is the only
// mutable state and is lock-protected.
type Engine struct {
	logger *slog.Logger

	mu    sync.Mutex
	stats map[string]*synergyStats
}

// NewEngine creates a composition Engine.
func NewEngine(logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		logger: logger,
		stats:  make(map[string]*synergyStats),
	}
}

// IdentifyComposable returns up to three compositions, best first. Fewer than
// two input opportunities yield an empty result. Internal panics are logged
// and converted into an empty result.
func (e *Engine) IdentifyComposable(opportunities []model.Opportunity) (compositions []model.CompoundComposition) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("composition identification panicked", "panic", r)
			compositions = nil
		}
	}()

	if len(opportunities) < 2 {
		return nil
	}

	byType := make(map[model.OpportunityType][]model.Opportunity)
	var typeOrder []model.OpportunityType
	for _, op := range opportunities {
		if _, seen := byType[op.Type]; !seen {
			typeOrder = append(typeOrder, op.Type)
		}
		byType[op.Type] = append(byType[op.Type], op)
	}
	for _, ops := range byType {
		sort.SliceStable(ops, func(i, j int) bool {
			return ops[i].PriorityScore > ops[j].PriorityScore
		})
	}

	for _, pair := range crossTypePairs {
		a, okA := byType[pair[0]]
		b, okB := byType[pair[1]]
		if !okA || !okB {
			continue
		}
		compositions = append(compositions, e.compose([]model.Opportunity{a[0], b[0]}))
	}

	for _, typ := range typeOrder {
		ops := byType[typ]
		if len(ops) < 2 {
			continue
		}
		if len(ops) > sameTypeTopN {
			ops = ops[:sameTypeTopN]
		}
		compositions = append(compositions, e.compose(ops))
	}

	sort.SliceStable(compositions, func(i, j int) bool {
		return e.biasedScore(compositions[i]) > e.biasedScore(compositions[j])
	})
	if len(compositions) > maxCompositions {
		compositions = compositions[:maxCompositions]
	}
	return compositions
}

// compose builds the scored composition for one candidate set.
func (e *Engine) compose(components []model.Opportunity) model.CompoundComposition {
	var impactSum, complexitySum float64
	var names []string
	for _, op := range components {
		impactSum += op.ImpactScore
		complexitySum += op.ComplexityScore
		names = append(names, string(op.Type))
	}
	mean := complexitySum / float64(len(components))
	bonus := e.synergyBonus(components)

	benefits := make([]string, 0, len(components))
	for _, op := range components {
		benefits = append(benefits, op.Description)
	}

	return model.CompoundComposition{
		Description:            "Combined enhancement: " + strings.Join(names, " + "),
		ComponentOpportunities: components,
		CompoundImpactScore:    impactSum * (1 + bonus),
		ComplexityMultiplier:   1 + 0.5*mean,
		SynergyPotential:       bonus,
		ImplementationStrategy: strategyFor(components),
		ExpectedBenefits:       benefits,
	}
}

// synergyBonus averages the table value over all unordered type pairs in the
// set, capped at maxSynergyBonus.
func (e *Engine) synergyBonus(components []model.Opportunity) float64 {
	var sum float64
	var pairs int
	for i := 0; i < len(components); i++ {
		for j := i + 1; j < len(components); j++ {
			bonus, ok := synergyTable[pairKey(components[i].Type, components[j].Type)]
			if !ok {
				bonus = defaultSynergyBonus
			}
			sum += bonus
			pairs++
		}
	}
	if pairs == 0 {
		return 0
	}
	bonus := sum / float64(pairs)
	if bonus > maxSynergyBonus {
		bonus = maxSynergyBonus
	}
	return bonus
}

// biasedScore is the selection sort key: the contractual compound impact
// score nudged by realized outcomes for the same type tuple. The stored
// score itself is never adjusted.
func (e *Engine) biasedScore(c model.CompoundComposition) float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	s, ok := e.stats[tupleKey(c.ComponentTypes())]
	if !ok || s.Attempts == 0 {
		return c.CompoundImpactScore
	}
	return c.CompoundImpactScore * (1 + 0.1*(s.AverageQuality-0.5))
}

// RecordOutcome feeds the realized quality of an executed composition back
// into the statistics table.
func (e *Engine) RecordOutcome(c model.CompoundComposition, achievedQuality float64) {
	key := tupleKey(c.ComponentTypes())

	e.mu.Lock()
	defer e.mu.Unlock()
	s, ok := e.stats[key]
	if !ok {
		s = &synergyStats{}
		e.stats[key] = s
	}
	s.AverageQuality = (s.AverageQuality*float64(s.Attempts) + achievedQuality) / float64(s.Attempts+1)
	s.Attempts++
	if achievedQuality >= successThreshold {
		s.Successes++
	}
}

// OutcomeStats returns the recorded attempt/success counts and average
// quality for a type tuple, or zeroes if nothing was recorded.
func (e *Engine) OutcomeStats(types []model.OpportunityType) (attempts, successes int, averageQuality float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	s, ok := e.stats[tupleKey(types)]
	if !ok {
		return 0, 0, 0
	}
	return s.Attempts, s.Successes, s.AverageQuality
}

// tupleKey builds an order-independent key for a component type tuple.
func tupleKey(types []model.OpportunityType) string {
	sorted := make([]string, 0, len(types))
	for _, t := range types {
		sorted = append(sorted, string(t))
	}
	sort.Strings(sorted)
	return strings.Join(sorted, "+")
}

// strategyFor renders a short implementation-order hint for the set.
func strategyFor(components []model.Opportunity) string {
	ordered := make([]model.Opportunity, len(components))
	copy(ordered, components)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].ComplexityScore < ordered[j].ComplexityScore
	})
	names := make([]string, 0, len(ordered))
	for _, op := range ordered {
		names = append(names, string(op.Type))
	}
	return fmt.Sprintf("Apply in ascending complexity order: %s", strings.Join(names, ", "))
}
