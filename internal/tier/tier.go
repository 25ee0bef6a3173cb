package tier

import (
	"fmt"
	"math"
)

type Name string

const (
	Free    Name = "free"
	Premium Name = "premium"
)

type ModelClass string

const (
	ModelClassBasic    ModelClass = "basic"
	ModelClassAdvanced ModelClass = "advanced"
)

type ResultDetail string

const (
	DetailBasic         ResultDetail = "basic"
	DetailComprehensive ResultDetail = "comprehensive"
)

// Unlimited marks a quota-free tier.
const Unlimited = -1

// Feature flags referenced by the pipeline stages.
const (
	FeatureBasicAnalysis       = "basicAnalysis"
	FeatureDetailedExplanation = "detailedExplanation"
	FeatureHeatmapGeneration   = "heatmapGeneration"
	FeatureVideoProcessing     = "videoProcessing"
	FeatureFaceAnalysis        = "faceAnalysis"
	FeatureHistorySaving       = "historySaving"
	FeaturePDFReports          = "pdfReports"
	FeatureAPIAccess           = "apiAccess"
	FeaturePriorityProcessing  = "priorityProcessing"
)

// Descriptor is the immutable per-request tier description derived from
// the caller identity.
type Descriptor struct {
	Name              Name
	DisplayName       string
	MaxUploadBytes    int64
	MaxAnalysesPerDay int
	AllowedFormats    []string
	ModelClass        ModelClass
	ResultDetail      ResultDetail
	Features          map[string]bool
}

// Has reports whether a feature flag is enabled. Unknown flags are
// denied, so a stage asking about a flag no tier defines gets false.
func (d Descriptor) Has(feature string) bool {
	return d.Features[feature]
}

func (d Descriptor) Unlimited() bool {
	return d.MaxAnalysesPerDay == Unlimited
}

var descriptors = map[Name]Descriptor{
	Free: {
		Name:              Free,
		DisplayName:       "Free",
		MaxUploadBytes:    10 * 1024 * 1024,
		MaxAnalysesPerDay: 5,
		AllowedFormats:    []string{"jpg", "jpeg", "png"},
		ModelClass:        ModelClassBasic,
		ResultDetail:      DetailBasic,
		Features: map[string]bool{
			FeatureBasicAnalysis:       true,
			FeatureDetailedExplanation: true,
			FeatureHeatmapGeneration:   true,
			FeatureVideoProcessing:     false,
			FeatureFaceAnalysis:        true,
			FeatureHistorySaving:       true,
			FeaturePDFReports:          false,
			FeatureAPIAccess:           false,
			FeaturePriorityProcessing:  false,
		},
	},
	Premium: {
		Name:              Premium,
		DisplayName:       "Premium",
		MaxUploadBytes:    100 * 1024 * 1024,
		MaxAnalysesPerDay: Unlimited,
		AllowedFormats:    []string{"jpg", "jpeg", "png", "mp4", "avi", "mov", "mkv"},
		ModelClass:        ModelClassAdvanced,
		ResultDetail:      DetailComprehensive,
		Features: map[string]bool{
			FeatureBasicAnalysis:       true,
			FeatureDetailedExplanation: true,
			FeatureHeatmapGeneration:   true,
			FeatureVideoProcessing:     true,
			FeatureFaceAnalysis:        true,
			FeatureHistorySaving:       true,
			FeaturePDFReports:          true,
			FeatureAPIAccess:           true,
			FeaturePriorityProcessing:  true,
		},
	},
}

// Resolve maps a caller identity to a tier descriptor. Authenticated
// callers get premium; everyone else, including malformed identities,
// degrades to free. Never fails.
func Resolve(userID *string) Descriptor {
	if userID != nil && *userID != "" {
		return descriptors[Premium]
	}
	return descriptors[Free]
}

// Get returns the descriptor for a tier name, defaulting to free for
// unknown names.
func Get(name Name) Descriptor {
	if d, ok := descriptors[name]; ok {
		return d
	}
	return descriptors[Free]
}

// FormatFileSize renders a byte count for quota error messages.
func FormatFileSize(bytes int64) string {
	if bytes == 0 {
		return "0 Bytes"
	}
	units := []string{"Bytes", "KB", "MB", "GB"}
	i := int(math.Floor(math.Log(float64(bytes)) / math.Log(1024)))
	if i >= len(units) {
		i = len(units) - 1
	}
	return fmt.Sprintf("%.2f %s", float64(bytes)/math.Pow(1024, float64(i)), units[i])
}

// UpgradeIncentive returns the upsell message for a withheld feature, or
// empty for premium callers.
func UpgradeIncentive(current Name, feature string) string {
	if current == Premium {
		return ""
	}
	incentives := map[string]string{
		"file_size":        "Upgrade to Premium for larger files",
		"video_processing": "Video analysis is available with Premium",
		"heatmap":          "Detailed heatmaps are available with Premium",
		"unlimited":        "Unlimited analyses with Premium",
		"history":          "History and export with Premium",
	}
	if msg, ok := incentives[feature]; ok {
		return msg
	}
	return "Upgrade for advanced features"
}
