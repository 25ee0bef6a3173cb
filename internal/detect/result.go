package detect

import "fmt"

type Predictions struct {
	Real float64 `json:"real"`
	Fake float64 `json:"fake"`
}

type FaceAnalysis struct {
	FacesDetected int     `json:"facesDetected"`
	Confidence    float64 `json:"confidence"`
	Method        string  `json:"method,omitempty"`
}

type Details struct {
	Summary     string      `json:"summary"`
	Predictions Predictions `json:"predictions"`
}

// Result is the canonical detection shape every strategy output is
// normalized into before leaving the dispatcher.
type Result struct {
	FakeScore       float64        `json:"fakeScore"`
	ConfidenceScore *float64       `json:"confidenceScore,omitempty"`
	IsDeepfake      bool           `json:"isDeepfake"`
	ModelType       string         `json:"modelType"`
	ProcessingTime  float64        `json:"processingTime"`
	AnalysisDetails Details        `json:"analysisDetails"`
	FaceAnalysis    *FaceAnalysis  `json:"faceAnalysis,omitempty"`
	DebugInfo       map[string]any `json:"debugInfo,omitempty"`
}

// finalize clamps the score, derives the verdict and synthesizes
// analysis details when the answering strategy supplied none.
func (r *Result) finalize() {
	if r.FakeScore < 0 {
		r.FakeScore = 0
	}
	if r.FakeScore > 100 {
		r.FakeScore = 100
	}
	r.IsDeepfake = r.FakeScore > 50

	if r.AnalysisDetails.Summary == "" {
		verdict := "no strong manipulation signals"
		if r.IsDeepfake {
			verdict = "manipulation signals detected"
		}
		r.AnalysisDetails.Summary = fmt.Sprintf("Score %.1f/100: %s", r.FakeScore, verdict)
	}
	if r.AnalysisDetails.Predictions == (Predictions{}) {
		r.AnalysisDetails.Predictions = Predictions{
			Real: 100 - r.FakeScore,
			Fake: r.FakeScore,
		}
	}
}
