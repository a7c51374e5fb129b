package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/Aashish23092/slice-receipts/dto"
	"github.com/Aashish23092/slice-receipts/utils"
)

const (
	nameWeight     = 0.65
	costWeight     = 0.25
	quantityWeight = 0.10
	minMatchScore  = 0.62
	maxHardCases   = 20
)

// Scanner is the part of ReceiptService the evaluator drives.
type Scanner interface {
	ScanReceipt(ctx context.Context, upload Upload, opts ScanOptions) (*dto.ScanResponse, error)
}

// Evaluator scores the scan pipeline against a labelled receipt set laid out
// as images/<name>.{jpg,jpeg,png} and labels/<name>.json.
type Evaluator struct {
	scanner Scanner
}

func NewEvaluator(scanner Scanner) *Evaluator {
	return &Evaluator{scanner: scanner}
}

// Match pairs a ground-truth item with a predicted one.
type Match struct {
	Truth     int
	Predicted int
	Score     float64
}

// LabelledImages lists the evaluation images under dir in name order.
func LabelledImages(dir string) ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(dir, "images"))
	if err != nil {
		return nil, fmt.Errorf("failed to read image dir: %w", err)
	}
	var out []string
	for _, e := range entries {
		switch strings.ToLower(filepath.Ext(e.Name())) {
		case ".jpg", ".jpeg", ".png":
			if !e.IsDir() {
				out = append(out, filepath.Join(dir, "images", e.Name()))
			}
		}
	}
	sort.Strings(out)
	return out, nil
}

// Evaluate scans every labelled image and aggregates the metrics. progress,
// when set, is called after each image.
func (e *Evaluator) Evaluate(ctx context.Context, dir string, useHybrid bool, progress func(image string)) (*dto.EvaluationReport, error) {
	images, err := LabelledImages(dir)
	if err != nil {
		return nil, err
	}
	if len(images) == 0 {
		return nil, errors.New("no images found")
	}

	mode := "primary-only"
	if useHybrid {
		mode = "hybrid"
	}
	report := &dto.EvaluationReport{
		Summary:    dto.EvaluationSummary{Mode: mode},
		HardCases:  []dto.HardCase{},
		PerReceipt: []dto.ReceiptMetrics{},
	}

	for _, imagePath := range images {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		name := filepath.Base(imagePath)
		metrics, err := e.evaluateOne(ctx, dir, imagePath, useHybrid)
		if progress != nil {
			progress(name)
		}
		if err != nil {
			slog.Warn("receipt skipped", "image", name, "error", err)
			report.Summary.ReceiptsSkipped++
			report.HardCases = append(report.HardCases, dto.HardCase{Image: name, Reason: err.Error()})
			continue
		}
		report.PerReceipt = append(report.PerReceipt, *metrics)
		if metrics.FalseNegatives > 0 || metrics.FalsePositives > 0 || !metrics.TotalMatch {
			report.HardCases = append(report.HardCases, dto.HardCase{
				Image:  name,
				Reason: fmt.Sprintf("fn=%d, fp=%d, total_match=%t", metrics.FalseNegatives, metrics.FalsePositives, metrics.TotalMatch),
			})
		}
	}

	report.Summary = Summarize(mode, report.PerReceipt, report.Summary.ReceiptsSkipped)
	return report, nil
}

func (e *Evaluator) evaluateOne(ctx context.Context, dir, imagePath string, useHybrid bool) (*dto.ReceiptMetrics, error) {
	stem := strings.TrimSuffix(filepath.Base(imagePath), filepath.Ext(imagePath))
	labelPath := filepath.Join(dir, "labels", stem+".json")
	label, err := loadLabel(labelPath)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(imagePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read image: %w", err)
	}
	resp, err := e.scanner.ScanReceipt(ctx, Upload{Data: data, Filename: filepath.Base(imagePath)}, ScanOptions{UseHybrid: useHybrid})
	if err != nil {
		return nil, err
	}

	metrics := CompareReceipt(*label, resp.Items)
	metrics.Image = filepath.Base(imagePath)
	metrics.Label = filepath.Base(labelPath)
	metrics.Source = resp.Source
	return &metrics, nil
}

func loadLabel(path string) (*dto.ReceiptLabel, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, errors.New("missing label")
		}
		return nil, fmt.Errorf("failed to read label: %w", err)
	}
	data = []byte(strings.TrimPrefix(string(data), "\ufeff"))
	var label dto.ReceiptLabel
	if err := json.Unmarshal(data, &label); err != nil {
		return nil, fmt.Errorf("failed to parse label: %w", err)
	}
	return &label, nil
}

// ItemMatchScore weighs name similarity, cost closeness and quantity
// closeness of a predicted item against a labelled one.
func ItemMatchScore(truth, pred dto.ParsedItem) float64 {
	name := utils.CalculateNameSimilarity(truth.Name, pred.Name)

	cost := 1.0
	if truth.Cost > 0 || pred.Cost > 0 {
		cost = math.Max(0, 1-math.Abs(truth.Cost-pred.Cost)/math.Max(1, truth.Cost))
	}

	tq, pq := labelQuantity(truth), labelQuantity(pred)
	qty := 1.0
	if diff := math.Abs(tq - pq); diff >= 0.001 {
		qty = math.Max(0, 1-diff/math.Max(1, tq))
	}
	return nameWeight*name + costWeight*cost + quantityWeight*qty
}

// GreedyMatch pairs items by descending score, each item used at most once.
func GreedyMatch(truth, pred []dto.ParsedItem, minScore float64) []Match {
	var candidates []Match
	for ti, t := range truth {
		for pi, p := range pred {
			if score := ItemMatchScore(t, p); score >= minScore {
				candidates = append(candidates, Match{Truth: ti, Predicted: pi, Score: score})
			}
		}
	}
	sort.SliceStable(candidates, func(i, j int) bool { return candidates[i].Score > candidates[j].Score })

	usedTruth := make(map[int]bool)
	usedPred := make(map[int]bool)
	var matches []Match
	for _, c := range candidates {
		if usedTruth[c.Truth] || usedPred[c.Predicted] {
			continue
		}
		usedTruth[c.Truth] = true
		usedPred[c.Predicted] = true
		matches = append(matches, c)
	}
	return matches
}

// CompareReceipt scores predicted items against a label.
func CompareReceipt(label dto.ReceiptLabel, pred []dto.ParsedItem) dto.ReceiptMetrics {
	matches := GreedyMatch(label.Items, pred, minMatchScore)
	m := dto.ReceiptMetrics{
		TruePositives:      len(matches),
		FalsePositives:     max(0, len(pred)-len(matches)),
		FalseNegatives:     max(0, len(label.Items)-len(matches)),
		PredictedCount:     len(pred),
		TruthCount:         len(label.Items),
		MatchedPairs:       []dto.MatchedPair{},
		UnmatchedTruth:     []dto.ParsedItem{},
		UnmatchedPredicted: []dto.ParsedItem{},
	}

	matchedTruth := make(map[int]bool)
	matchedPred := make(map[int]bool)
	for _, match := range matches {
		t, p := label.Items[match.Truth], pred[match.Predicted]
		matchedTruth[match.Truth] = true
		matchedPred[match.Predicted] = true

		pair := dto.MatchedPair{
			Truth:          t,
			Predicted:      p,
			Score:          round4(match.Score),
			NameSimilarity: round4(utils.CalculateNameSimilarity(t.Name, p.Name)),
			QuantityEqual:  math.Abs(labelQuantity(t)-labelQuantity(p)) < 0.001,
			CostEqual:      math.Abs(t.Cost-p.Cost) <= math.Max(0.05, 0.01*math.Max(1, t.Cost)),
		}
		if pair.QuantityEqual {
			m.QuantityCorrect++
		}
		if pair.CostEqual {
			m.CostCorrect++
		}
		m.MatchedPairs = append(m.MatchedPairs, pair)
	}
	for i, it := range label.Items {
		if !matchedTruth[i] {
			m.UnmatchedTruth = append(m.UnmatchedTruth, it)
		}
	}
	for i, it := range pred {
		if !matchedPred[i] {
			m.UnmatchedPredicted = append(m.UnmatchedPredicted, it)
		}
		m.PredictedTotal += it.Cost
	}
	m.PredictedTotal = utils.Round2(m.PredictedTotal)

	m.TruthTotal, m.TruthTotalBasis = label.Totals.Subtotal, "subtotal"
	if m.TruthTotal <= 0 {
		m.TruthTotal, m.TruthTotalBasis = label.Totals.GrandTotal, "grand_total"
	}
	m.TotalMatch = m.TruthTotal > 0 && math.Abs(m.PredictedTotal-m.TruthTotal) <= math.Max(1, 0.01*m.TruthTotal)
	return m
}

// Summarize aggregates per-receipt metrics into percentages.
func Summarize(mode string, receipts []dto.ReceiptMetrics, skipped int) dto.EvaluationSummary {
	s := dto.EvaluationSummary{Mode: mode, ReceiptsEvaluated: len(receipts), ReceiptsSkipped: skipped}
	var matched, qtyCorrect, costCorrect, totalMatches int
	for _, r := range receipts {
		s.TruePositives += r.TruePositives
		s.FalsePositives += r.FalsePositives
		s.FalseNegatives += r.FalseNegatives
		matched += r.TruePositives
		qtyCorrect += r.QuantityCorrect
		costCorrect += r.CostCorrect
		if r.TotalMatch {
			totalMatches++
		}
	}

	precision := pct(s.TruePositives, s.TruePositives+s.FalsePositives)
	recall := pct(s.TruePositives, s.TruePositives+s.FalseNegatives)
	var f1 float64
	if precision+recall > 0 {
		f1 = 2 * precision * recall / (precision + recall)
	}
	s.PrecisionPct = utils.Round2(precision)
	s.RecallPct = utils.Round2(recall)
	s.F1Pct = utils.Round2(f1)
	s.QuantityAccuracyPct = utils.Round2(pct(qtyCorrect, matched))
	s.CostAccuracyPct = utils.Round2(pct(costCorrect, matched))
	s.TotalMatchRatePct = utils.Round2(pct(totalMatches, len(receipts)))
	return s
}

// WriteReport stores the report as indented JSON, creating parent dirs.
func WriteReport(path string, report *dto.EvaluationReport) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create report dir: %w", err)
	}
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// HardCaseSample returns at most the first 20 hard cases for display.
func HardCaseSample(report *dto.EvaluationReport) []dto.HardCase {
	if len(report.HardCases) > maxHardCases {
		return report.HardCases[:maxHardCases]
	}
	return report.HardCases
}

func labelQuantity(it dto.ParsedItem) float64 {
	if it.Quantity <= 0 {
		return 1
	}
	return it.Quantity
}

func pct(n, d int) float64 {
	if d <= 0 {
		return 0
	}
	return 100 * float64(n) / float64(d)
}

func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}
