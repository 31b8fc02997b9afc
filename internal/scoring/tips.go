package scoring

import (
	"fmt"

	"github.com/danielpatrickdp/negotiation-coach/internal/rules"
)

// #region tips

// Tips derives coaching tips from the current scores and feedback log without
// mutating either. Dimension tips come first, then tips attached to warnings
// in log order; duplicates are dropped and only the last MaxTips are kept.
func Tips(table *rules.Table, scores ScoreSet, log []FeedbackEvent) []string {
	if table == nil {
		table = rules.Default()
	}
	var tips []string
	seen := make(map[string]bool)
	add := func(tip string) {
		if tip == "" || seen[tip] {
			return
		}
		seen[tip] = true
		tips = append(tips, tip)
	}

	for _, d := range rules.ScoredDimensions {
		if scores.Get(d) < table.TipThreshold {
			add(dimensionTip(table, d))
		}
	}
	for _, ev := range log {
		if ev.Severity == rules.SeverityWarning {
			add(ev.Tip)
		}
	}

	if table.MaxTips >= 0 && len(tips) > table.MaxTips {
		tips = tips[len(tips)-table.MaxTips:]
	}
	return tips
}

func dimensionTip(table *rules.Table, d rules.Dimension) string {
	if tip, ok := table.DimensionTips[d]; ok && tip != "" {
		return tip
	}
	return fmt.Sprintf("%s is below %.0f: look for chances to build it in your next turn.", d.Label(), table.TipThreshold)
}

// #endregion tips
