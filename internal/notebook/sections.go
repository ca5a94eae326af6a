package notebook

import "strings"

// Section labels are inferred from code text by ordered keyword rules. The
// classifier is pure; the same code always maps to the same label.
const (
	SectionImports       = "Setup & Imports"
	SectionExploration   = "Data Exploration"
	SectionCleaning      = "Data Cleaning"
	SectionFeatures      = "Feature Engineering"
	SectionVisualization = "Visualization"
	SectionModeling      = "Model Building"
	SectionEvaluation    = "Evaluation"
	SectionAnalysis      = "Analysis"
)

type sectionRule struct {
	label    string
	keywords []string
}

// Rule order matters: the first rule with a hit wins, so more specific
// stages are listed before generic ones.
var sectionRules = []sectionRule{
	{SectionEvaluation, []string{
		"accuracy_score", "classification_report", "confusion_matrix",
		"mean_squared_error", "r2_score", "roc_auc", "cross_val_score", ".score(",
	}},
	{SectionModeling, []string{
		".fit(", "train_test_split", "randomforest", "logisticregression",
		"linearregression", "xgboost", "gradientboosting", "kmeans", "sklearn",
	}},
	{SectionVisualization, []string{
		"plt.", "sns.", ".plot(", ".hist(", "plot_", "matplotlib", "seaborn",
	}},
	{SectionFeatures, []string{
		"get_dummies", "onehotencoder", "standardscaler", "minmaxscaler",
		"labelencoder", "feature", "polynomialfeatures",
	}},
	{SectionCleaning, []string{
		"dropna", "fillna", "drop_duplicates", "isnull", "isna", "replace(",
		"astype", "to_datetime", "outlier",
	}},
	{SectionExploration, []string{
		".head(", ".describe(", ".info(", ".shape", ".dtypes", ".value_counts(",
		".corr(", ".nunique(",
	}},
	{SectionImports, []string{"import "}},
}

// ClassifySection 根据代码文本推断小节标题
// ClassifySection maps one code fragment to a section label, falling back
// to the generic Analysis label when no rule matches.
func ClassifySection(code string) string {
	lowered := strings.ToLower(code)
	for _, rule := range sectionRules {
		for _, kw := range rule.keywords {
			if strings.Contains(lowered, kw) {
				return rule.label
			}
		}
	}
	return SectionAnalysis
}
