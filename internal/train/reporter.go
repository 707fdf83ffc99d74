package train

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"pitwall/internal/preprocess"
	"pitwall/internal/synth"
	"pitwall/internal/tree"
)

// ClassMetrics holds per-class evaluation numbers on the held-out set.
type ClassMetrics struct {
	Precision float64 `json:"precision"`
	Recall    float64 `json:"recall"`
	F1        float64 `json:"f1"`
	Support   int     `json:"support"`
}

// Report is the held-out evaluation of a trained classifier.
type Report struct {
	TrainSamples int                     `json:"train_samples"`
	TestSamples  int                     `json:"test_samples"`
	Accuracy     float64                 `json:"accuracy"`
	Classes      []string                `json:"classes"`
	PerClass     map[string]ClassMetrics `json:"per_class"`
	// Confusion[i][j] counts samples of Classes[i] predicted as Classes[j].
	Confusion [][]int `json:"confusion_matrix"`
}

// Evaluate scores the model on the held-out samples and computes
// accuracy, per-class precision/recall/F1 and the confusion matrix.
func Evaluate(model *tree.Classifier, pre *preprocess.Preprocessor, testSet []synth.Sample) (Report, error) {
	classes := append([]string(nil), model.Classes...)
	sort.Strings(classes)
	idx := make(map[string]int, len(classes))
	for i, c := range classes {
		idx[c] = i
	}

	confusion := make([][]int, len(classes))
	for i := range confusion {
		confusion[i] = make([]int, len(classes))
	}

	correct := 0
	for _, sample := range testSet {
		x, err := pre.Transform(sample.Scenario)
		if err != nil {
			return Report{}, fmt.Errorf("transform test sample: %w", err)
		}
		predicted, err := model.Predict(x)
		if err != nil {
			return Report{}, fmt.Errorf("predict test sample: %w", err)
		}

		actual := string(sample.Label)
		ai, ok := idx[actual]
		if !ok {
			return Report{}, fmt.Errorf("test label %q not among model classes", actual)
		}
		pi := idx[predicted]
		confusion[ai][pi]++
		if predicted == actual {
			correct++
		}
	}

	report := Report{
		Classes:   classes,
		Confusion: confusion,
		PerClass:  make(map[string]ClassMetrics, len(classes)),
	}
	if len(testSet) > 0 {
		report.Accuracy = float64(correct) / float64(len(testSet))
	}

	for i, class := range classes {
		var truePos, falsePos, falseNeg int
		truePos = confusion[i][i]
		for j := range classes {
			if j == i {
				continue
			}
			falseNeg += confusion[i][j]
			falsePos += confusion[j][i]
		}

		var m ClassMetrics
		m.Support = truePos + falseNeg
		if truePos+falsePos > 0 {
			m.Precision = float64(truePos) / float64(truePos+falsePos)
		}
		if m.Support > 0 {
			m.Recall = float64(truePos) / float64(m.Support)
		}
		if m.Precision+m.Recall > 0 {
			m.F1 = 2 * m.Precision * m.Recall / (m.Precision + m.Recall)
		}
		report.PerClass[class] = m
	}

	return report, nil
}

// WriteReport writes the human-readable summary and a JSON copy of the
// evaluation into outputDir.
func WriteReport(report Report, model *tree.Classifier, pre *preprocess.Preprocessor, outputDir string) error {
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	summaryPath := filepath.Join(outputDir, "training_report.txt")
	f, err := os.Create(summaryPath)
	if err != nil {
		return fmt.Errorf("failed to create summary report: %w", err)
	}
	defer f.Close()

	fmt.Fprintf(f, "TRAINING RESULTS SUMMARY\n")
	fmt.Fprintf(f, "========================\n\n")
	fmt.Fprintf(f, "Training samples: %d\n", report.TrainSamples)
	fmt.Fprintf(f, "Test samples:     %d\n", report.TestSamples)
	fmt.Fprintf(f, "Tree depth:       %d\n", model.Depth)
	fmt.Fprintf(f, "Accuracy:         %.4f\n", report.Accuracy)
	fmt.Fprintf(f, "\n")

	fmt.Fprintf(f, "PER-CLASS METRICS\n")
	fmt.Fprintf(f, "-----------------\n")
	for _, class := range report.Classes {
		m := report.PerClass[class]
		fmt.Fprintf(f, "%-10s precision=%.4f recall=%.4f f1=%.4f support=%d\n",
			class, m.Precision, m.Recall, m.F1, m.Support)
	}
	fmt.Fprintf(f, "\n")

	fmt.Fprintf(f, "CONFUSION MATRIX (rows=actual, cols=predicted)\n")
	fmt.Fprintf(f, "----------------------------------------------\n")
	fmt.Fprintf(f, "%-10s", "")
	for _, class := range report.Classes {
		fmt.Fprintf(f, "%10s", class)
	}
	fmt.Fprintf(f, "\n")
	for i, class := range report.Classes {
		fmt.Fprintf(f, "%-10s", class)
		for j := range report.Classes {
			fmt.Fprintf(f, "%10d", report.Confusion[i][j])
		}
		fmt.Fprintf(f, "\n")
	}
	fmt.Fprintf(f, "\n")

	fmt.Fprintf(f, "FEATURE IMPORTANCES\n")
	fmt.Fprintf(f, "-------------------\n")
	names := pre.FeatureNames()
	for _, fi := range rankedImportances(names, model.Importances) {
		fmt.Fprintf(f, "%-40s %.4f\n", fi.name, fi.importance)
	}

	jsonPath := filepath.Join(outputDir, "training_report.json")
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}
	if err := os.WriteFile(jsonPath, data, 0o644); err != nil {
		return fmt.Errorf("failed to write JSON report: %w", err)
	}

	return nil
}

type featureImportance struct {
	name       string
	importance float64
}

func rankedImportances(names []string, importances []float64) []featureImportance {
	ranked := make([]featureImportance, 0, len(names))
	for i, name := range names {
		imp := 0.0
		if i < len(importances) {
			imp = importances[i]
		}
		ranked = append(ranked, featureImportance{name: name, importance: imp})
	}
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].importance > ranked[j].importance })
	return ranked
}

// FormatReport renders the same summary as WriteReport into a string,
// for logging after a training run.
func FormatReport(report Report) string {
	var b strings.Builder
	fmt.Fprintf(&b, "accuracy=%.4f train=%d test=%d", report.Accuracy, report.TrainSamples, report.TestSamples)
	for _, class := range report.Classes {
		m := report.PerClass[class]
		fmt.Fprintf(&b, " %s[p=%.3f r=%.3f f1=%.3f n=%d]", class, m.Precision, m.Recall, m.F1, m.Support)
	}
	return b.String()
}
