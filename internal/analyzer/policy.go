package analyzer

import (
	"github.com/azure/mentions-monitor/internal/models"
)

const (
	// StrongNegativeScore is the sentiment score below which negative content alerts
	StrongNegativeScore = -0.7
	// HighBusinessImpact is the business impact above which high sensitivity alerts
	HighBusinessImpact = 3
	// MaxTitleRunes bounds alert titles
	MaxTitleRunes = 200
)

// Decision is the outcome of the alert policy for one insight
type Decision struct {
	Raise    bool
	Severity models.Severity
	Title    string
}

// Evaluate applies the profile's sensitivity to an insight
func Evaluate(sensitivity models.Sensitivity, insight *models.Insight) Decision {
	strongNegative := insight.Sentiment == models.SentimentNegative && insight.SentimentScore < StrongNegativeScore

	var raise bool
	switch sensitivity {
	case models.SensitivityLow:
		raise = insight.IsCrisis
	case models.SensitivityHigh:
		raise = insight.IsCrisis || insight.IsOpportunity || strongNegative ||
			insight.ImpactAssessment.Business > HighBusinessImpact
	default:
		raise = insight.IsCrisis || insight.IsOpportunity || strongNegative
	}
	if !raise {
		return Decision{}
	}

	decision := Decision{Raise: true}
	switch {
	case insight.IsCrisis:
		decision.Severity = models.SeverityCritical
		decision.Title = "CRISIS ALERT: " + insight.Summary
	case insight.IsOpportunity:
		decision.Severity = models.SeverityMedium
		decision.Title = "OPPORTUNITY: " + insight.Summary
	case strongNegative:
		decision.Severity = models.SeverityHigh
		decision.Title = "NEGATIVE SENTIMENT: " + insight.Summary
	default:
		decision.Severity = models.SeverityLow
		decision.Title = "INSIGHT: " + insight.Summary
	}
	decision.Title = truncateRunes(decision.Title, MaxTitleRunes)
	return decision
}

func truncateRunes(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}
