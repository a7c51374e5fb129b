package dto

// ReceiptLabel is the hand-labelled ground truth for one receipt image.
type ReceiptLabel struct {
	Items  []ParsedItem `json:"items"`
	Totals struct {
		Subtotal   float64 `json:"subtotal"`
		GrandTotal float64 `json:"grand_total"`
	} `json:"totals"`
}

type MatchedPair struct {
	Truth          ParsedItem `json:"gt_item"`
	Predicted      ParsedItem `json:"pred_item"`
	Score          float64    `json:"score"`
	NameSimilarity float64    `json:"name_similarity"`
	QuantityEqual  bool       `json:"qty_equal"`
	CostEqual      bool       `json:"cost_equal"`
}

// ReceiptMetrics is the comparison of one scan against its label.
type ReceiptMetrics struct {
	Image              string        `json:"image"`
	Label              string        `json:"label"`
	Source             string        `json:"source"`
	TruePositives      int           `json:"tp"`
	FalsePositives     int           `json:"fp"`
	FalseNegatives     int           `json:"fn"`
	QuantityCorrect    int           `json:"qty_correct"`
	CostCorrect        int           `json:"cost_correct"`
	PredictedCount     int           `json:"pred_count"`
	TruthCount         int           `json:"gt_count"`
	PredictedTotal     float64       `json:"pred_total"`
	TruthTotal         float64       `json:"gt_total"`
	TruthTotalBasis    string        `json:"gt_total_basis"`
	TotalMatch         bool          `json:"total_match"`
	MatchedPairs       []MatchedPair `json:"matched_pairs"`
	UnmatchedTruth     []ParsedItem  `json:"unmatched_gt"`
	UnmatchedPredicted []ParsedItem  `json:"unmatched_pred"`
}

type HardCase struct {
	Image  string `json:"image"`
	Reason string `json:"reason"`
}

type EvaluationSummary struct {
	Mode                string  `json:"mode"`
	ReceiptsEvaluated   int     `json:"receipts_evaluated"`
	ReceiptsSkipped     int     `json:"receipts_skipped"`
	PrecisionPct        float64 `json:"item_precision_pct"`
	RecallPct           float64 `json:"item_recall_pct"`
	F1Pct               float64 `json:"item_f1_pct"`
	QuantityAccuracyPct float64 `json:"quantity_accuracy_pct"`
	CostAccuracyPct     float64 `json:"cost_accuracy_pct"`
	TotalMatchRatePct   float64 `json:"total_match_rate_pct"`
	TruePositives       int     `json:"tp"`
	FalsePositives      int     `json:"fp"`
	FalseNegatives      int     `json:"fn"`
}

type EvaluationReport struct {
	Summary    EvaluationSummary `json:"summary"`
	HardCases  []HardCase        `json:"hard_cases"`
	PerReceipt []ReceiptMetrics  `json:"per_receipt"`
}
