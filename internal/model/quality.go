package model

// Recommendation is the aggregate verdict on a generated solution.
type Recommendation string

const (
	RecommendApprove     Recommendation = "approve"
	RecommendConditional Recommendation = "conditional"
	RecommendReject      Recommendation = "reject"
)

// Weights and thresholds for the aggregate recommendation. The recommendation
// is always a pure function of the three sub-scores.
const (
	qualityWeight   = 0.4
	viabilityWeight = 0.4
	riskWeight      = 0.2

	approveThreshold     = 0.7
	conditionalThreshold = 0.5
)

// QualityAssessment holds the three independent analyzer scores and the
// verdict derived from them.
type QualityAssessment struct {
	QualityScore   float64        `yaml:"quality_score" json:"quality_score"`
	ViabilityScore float64        `yaml:"viability_score" json:"viability_score"`
	RiskScore      float64        `yaml:"risk_score" json:"risk_score"`
	Recommendation Recommendation `yaml:"recommendation" json:"recommendation"`
	Reasons        []string       `yaml:"reasons,omitempty" json:"reasons,omitempty"`
}

// OverallScore blends the three sub-scores into the gate value used for the
// recommendation: 0.4*quality + 0.4*viability - 0.2*risk.
func OverallScore(quality, viability, risk float64) float64 {
	return qualityWeight*quality + viabilityWeight*viability - riskWeight*risk
}

// Recommend derives the recommendation from the three sub-scores.
func Recommend(quality, viability, risk float64) Recommendation {
	overall := OverallScore(quality, viability, risk)
	switch {
	case overall >= approveThreshold:
		return RecommendApprove
	case overall >= conditionalThreshold:
		return RecommendConditional
	default:
		return RecommendReject
	}
}

// NewQualityAssessment builds a QualityAssessment with the derived
// recommendation.
func NewQualityAssessment(quality, viability, risk float64, reasons []string) QualityAssessment {
	return QualityAssessment{
		QualityScore:   quality,
		ViabilityScore: viability,
		RiskScore:      risk,
		Recommendation: Recommend(quality, viability, risk),
		Reasons:        reasons,
	}
}

// Accepted reports whether the assessment permits execution at all.
func (a QualityAssessment) Accepted() bool {
	return a.Recommendation != RecommendReject
}

// Clamp01 bounds a score to [0, 1].
func Clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
