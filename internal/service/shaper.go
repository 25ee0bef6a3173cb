package service

import (
	"deepsight/api/internal/tier"
)

// Shape renders one pipeline outcome at the caller's entitled detail
// level. The core verdict fields are present at every level; the basic
// shape withholds internals and explains what an upgrade unlocks.
func Shape(o *Outcome) map[string]any {
	if o.Tier.ResultDetail == tier.DetailComprehensive {
		return shapeComprehensive(o)
	}
	return shapeBasic(o)
}

func shapeComprehensive(o *Outcome) map[string]any {
	body := map[string]any{
		"success":         true,
		"resultId":        o.ResultID,
		"fileName":        o.FileName,
		"fakeScore":       o.Result.FakeScore,
		"isDeepfake":      o.Result.IsDeepfake,
		"modelType":       o.Result.ModelType,
		"processingTime":  o.Result.ProcessingTime,
		"analysisDetails": o.Result.AnalysisDetails,
		"tier": map[string]any{
			"name":         o.Tier.Name,
			"resultDetail": o.Tier.ResultDetail,
		},
		"quota": o.Admission,
	}
	if o.Result.ConfidenceScore != nil {
		body["confidenceScore"] = *o.Result.ConfidenceScore
	}
	if o.Result.FaceAnalysis != nil {
		body["faceAnalysis"] = o.Result.FaceAnalysis
	}
	if len(o.Result.DebugInfo) > 0 {
		body["debugInfo"] = o.Result.DebugInfo
	}
	if o.ReportID != nil {
		body["reportId"] = *o.ReportID
	}

	hm := map[string]any{
		"generated": o.Heatmap.Success,
		"type":      o.Heatmap.Type,
		"cached":    o.Heatmap.Cached,
	}
	if o.Heatmap.Success {
		hm["url"] = o.Heatmap.HeatmapURL
		if o.Heatmap.Metadata != nil {
			hm["metadata"] = o.Heatmap.Metadata
		}
		if len(o.Heatmap.Stats) > 0 {
			hm["stats"] = o.Heatmap.Stats
		}
	} else if o.Heatmap.Error != "" {
		hm["reason"] = o.Heatmap.Error
	}
	body["heatmap"] = hm

	return body
}

func shapeBasic(o *Outcome) map[string]any {
	body := map[string]any{
		"success":        true,
		"resultId":       o.ResultID,
		"fileName":       o.FileName,
		"fakeScore":      o.Result.FakeScore,
		"isDeepfake":     o.Result.IsDeepfake,
		"modelType":      o.Result.ModelType,
		"processingTime": o.Result.ProcessingTime,
		"summary":        o.Result.AnalysisDetails.Summary,
		"tier": map[string]any{
			"name":         o.Tier.Name,
			"resultDetail": o.Tier.ResultDetail,
		},
		"quota": o.Admission,
	}
	if o.ReportID != nil {
		body["reportId"] = *o.ReportID
	}

	hm := map[string]any{
		"generated": o.Heatmap.Success,
		"cached":    o.Heatmap.Cached,
	}
	if o.Heatmap.Success {
		hm["url"] = o.Heatmap.HeatmapURL
	}
	body["heatmap"] = hm

	premium := tier.Get(tier.Premium)
	body["upgrade"] = map[string]any{
		"message": tier.UpgradeIncentive(o.Tier.Name, "unlimited"),
		"withheldFeatures": []string{
			tier.FeatureVideoProcessing,
			tier.FeaturePDFReports,
			tier.FeatureAPIAccess,
			tier.FeaturePriorityProcessing,
		},
		"premiumLimits": map[string]any{
			"maxFileSize":       tier.FormatFileSize(premium.MaxUploadBytes),
			"maxAnalysesPerDay": premium.MaxAnalysesPerDay,
			"supportedFormats":  premium.AllowedFormats,
		},
	}

	return body
}
