package matching

import (
	"fmt"
	"sort"
	"sync"

	"github.com/kirillkom/edc-ingest/internal/core/domain"
)

// Weights holds the tunable scoring constants. The defaults mirror the
// values the registry was calibrated against; deployments override them
// through configuration rather than code.
type Weights struct {
	FileName        float64
	Columns         float64
	HighThreshold   float64
	MediumThreshold float64
	Epsilon         float64
}

func DefaultWeights() Weights {
	return Weights{
		FileName:        0.4,
		Columns:         0.6,
		HighThreshold:   0.85,
		MediumThreshold: 0.60,
		Epsilon:         0.01,
	}
}

func (w Weights) normalize() Weights {
	def := DefaultWeights()
	out := w
	if out.FileName <= 0 && out.Columns <= 0 {
		out.FileName = def.FileName
		out.Columns = def.Columns
	}
	if out.HighThreshold <= 0 || out.HighThreshold > 1 {
		out.HighThreshold = def.HighThreshold
	}
	if out.MediumThreshold <= 0 || out.MediumThreshold >= out.HighThreshold {
		out.MediumThreshold = def.MediumThreshold
	}
	if out.Epsilon <= 0 {
		out.Epsilon = def.Epsilon
	}
	return out
}

// Matcher scores inventoried files against schema expectations and resolves
// cross-file ambiguity. It is deterministic and reads only inventory data,
// so per-file scoring fans out across goroutines.
type Matcher struct {
	weights Weights
}

func NewMatcher(weights Weights) *Matcher {
	return &Matcher{weights: weights.normalize()}
}

type expectationScore struct {
	tableID   string
	score     float64
	nameScore float64
	colScore  float64
	bestSheet string
	canonical string
}

// Match produces exactly one decision per inventory entry. Files whose best
// candidates tie within epsilon stay unresolved; two files claiming the same
// expectation keep the higher score and demote the loser to ambiguous.
func (m *Matcher) Match(entries []domain.FileInventoryEntry, expectations []domain.SchemaExpectation) []domain.MatchDecision {
	decisions := make([]domain.MatchDecision, len(entries))

	var wg sync.WaitGroup
	for i, entry := range entries {
		wg.Add(1)
		go func(i int, entry domain.FileInventoryEntry) {
			defer wg.Done()
			decisions[i] = m.decide(entry, expectations)
		}(i, entry)
	}
	wg.Wait()

	m.resolveCrossFileConflicts(decisions)
	return decisions
}

func (m *Matcher) decide(entry domain.FileInventoryEntry, expectations []domain.SchemaExpectation) domain.MatchDecision {
	scores := make([]expectationScore, 0, len(expectations))
	for _, exp := range expectations {
		scores = append(scores, m.score(entry, exp))
	}
	sort.Slice(scores, func(a, b int) bool { return scores[a].score > scores[b].score })

	decision := domain.MatchDecision{
		FileName: entry.FileName,
		Path:     entry.Path,
		Tier:     domain.TierLow,
	}
	if entry.ScanError != "" {
		decision.Rationale = append(decision.Rationale, "scan_error:"+entry.ScanError)
	}
	if len(scores) == 0 {
		return decision
	}

	best := scores[0]
	decision.Score = best.score
	decision.Tier = m.tier(best.score)
	decision.Rationale = append(decision.Rationale,
		fmt.Sprintf("name_overlap:%.2f", best.nameScore),
		fmt.Sprintf("column_similarity:%.2f", best.colScore),
	)

	if decision.Tier == domain.TierLow {
		return decision
	}

	// A runner-up within epsilon means the structure does not discriminate
	// between two tables; surface the tie instead of auto-picking.
	if len(scores) > 1 && best.score-scores[1].score < m.weights.Epsilon {
		decision.Ambiguous = true
		decision.Rationale = append(decision.Rationale,
			fmt.Sprintf("tied:%s,%s", best.tableID, scores[1].tableID))
		return decision
	}

	decision.TableID = best.tableID
	decision.ProposedName = best.canonical
	decision.BestSheet = best.bestSheet
	return decision
}

func (m *Matcher) score(entry domain.FileInventoryEntry, exp domain.SchemaExpectation) expectationScore {
	nameTokens := tokenSet(Tokenize(entry.FileName))
	present := 0
	for _, want := range exp.FileNameTokens {
		if _, ok := nameTokens[NormalizeHeader(want)]; ok {
			present++
		}
	}
	nameScore := 0.0
	if len(exp.FileNameTokens) > 0 {
		nameScore = float64(present) / float64(len(exp.FileNameTokens))
	}

	required := make(map[string]struct{}, len(exp.RequiredColumns))
	for _, col := range exp.RequiredColumns {
		required[NormalizeHeader(col.Name)] = struct{}{}
	}

	colScore := 0.0
	bestSheet := ""
	for _, sheet := range entry.Sheets {
		headers := make(map[string]struct{}, len(sheet.Headers))
		for _, h := range sheet.Headers {
			headers[NormalizeHeader(h)] = struct{}{}
		}
		if sim := jaccard(headers, required); sim > colScore {
			colScore = sim
			bestSheet = sheet.Name
		}
	}

	return expectationScore{
		tableID:   exp.TableID,
		score:     m.weights.FileName*nameScore + m.weights.Columns*colScore,
		nameScore: nameScore,
		colScore:  colScore,
		bestSheet: bestSheet,
		canonical: exp.CanonicalFileName,
	}
}

func (m *Matcher) tier(score float64) domain.ConfidenceTier {
	switch {
	case score >= m.weights.HighThreshold:
		return domain.TierHigh
	case score >= m.weights.MediumThreshold:
		return domain.TierMedium
	default:
		return domain.TierLow
	}
}

// resolveCrossFileConflicts demotes every decision that lost its expectation
// to a higher-scoring file. Losers stay in the result as ambiguous; they are
// never silently dropped.
func (m *Matcher) resolveCrossFileConflicts(decisions []domain.MatchDecision) {
	byTable := make(map[string][]int)
	for i, d := range decisions {
		if d.Matched() && !d.Ambiguous {
			byTable[d.TableID] = append(byTable[d.TableID], i)
		}
	}

	for tableID, idxs := range byTable {
		if len(idxs) < 2 {
			continue
		}
		winner := idxs[0]
		for _, i := range idxs[1:] {
			if decisions[i].Score > decisions[winner].Score {
				winner = i
			}
		}
		for _, i := range idxs {
			if i == winner && decisions[winner].Score-maxLoserScore(decisions, idxs, winner) >= m.weights.Epsilon {
				continue
			}
			decisions[i].Ambiguous = true
			decisions[i].Rationale = append(decisions[i].Rationale, "contested:"+tableID)
		}
	}
}

func maxLoserScore(decisions []domain.MatchDecision, idxs []int, winner int) float64 {
	best := 0.0
	for _, i := range idxs {
		if i != winner && decisions[i].Score > best {
			best = decisions[i].Score
		}
	}
	return best
}
