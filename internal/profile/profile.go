// Package profile builds the candidate skill profile used by the match
// scorer: explicit skills from the config plus skills mined from an
// optional resume text file.
package profile

import (
	"fmt"
	"os"
	"regexp"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/jobradar/jobradar/internal/config"
)

// skillPatterns groups recognized skill tokens by category. Matching is
// case-insensitive on word boundaries.
var skillPatterns = map[string][]string{
	"programming": {
		"python", "java", "scala", "julia", "c++", "c#", "javascript",
		"typescript", "go", "golang", "rust", "sql", "bash", "shell",
		"matlab", "kotlin", "swift", "ruby", "php", "perl",
	},
	"ml_frameworks": {
		"tensorflow", "pytorch", "keras", "scikit-learn", "sklearn",
		"xgboost", "lightgbm", "catboost", "jax", "huggingface",
		"transformers", "spacy", "nltk", "gensim", "fastai",
	},
	"ml_concepts": {
		"machine learning", "deep learning", "neural network", "cnn",
		"rnn", "lstm", "transformer", "bert", "gpt", "llm",
		"reinforcement learning", "supervised learning",
		"computer vision", "nlp", "natural language",
		"speech recognition", "recommendation system", "time series",
		"anomaly detection", "ml",
	},
	"data_tools": {
		"pandas", "numpy", "scipy", "dask", "ray", "polars", "spark",
		"pyspark", "hadoop", "hive", "presto", "airflow", "dagster",
		"prefect", "dbt",
	},
	"cloud": {
		"aws", "amazon web services", "azure", "gcp", "google cloud",
		"sagemaker", "vertex ai", "databricks", "snowflake",
		"bigquery", "redshift", "s3", "ec2", "lambda",
	},
	"mlops": {
		"mlflow", "kubeflow", "mlops", "model deployment",
		"model serving", "docker", "kubernetes", "k8s", "ci/cd",
		"github actions", "jenkins", "terraform", "ansible",
		"feature store",
	},
	"databases": {
		"postgresql", "postgres", "mysql", "mongodb", "redis",
		"cassandra", "elasticsearch", "neo4j", "pinecone", "weaviate",
		"milvus", "chromadb", "qdrant", "faiss",
	},
	"tools": {
		"git", "linux", "unix", "jupyter", "wandb", "tensorboard",
		"grafana", "prometheus", "rest", "graphql", "fastapi",
		"flask", "django",
	},
}

// aliases folds shorthand spellings into a canonical token so a resume
// saying "ml" matches a posting saying "machine learning".
var aliases = map[string]string{
	"ml":                  "machine learning",
	"k8s":                 "kubernetes",
	"sklearn":             "scikit-learn",
	"golang":              "go",
	"postgres":            "postgresql",
	"amazon web services": "aws",
	"google cloud":        "gcp",
	"natural language":    "nlp",
}

var compiled = compilePatterns()

func compilePatterns() map[string]*regexp.Regexp {
	out := make(map[string]*regexp.Regexp)
	for _, patterns := range skillPatterns {
		for _, p := range patterns {
			quoted := regexp.QuoteMeta(p)
			// \b misbehaves next to symbols like "+" or "#", so only
			// anchor sides that start or end with a word character.
			expr := quoted
			if isWordChar(p[0]) {
				expr = `\b` + expr
			}
			if isWordChar(p[len(p)-1]) {
				expr += `\b`
			}
			out[p] = regexp.MustCompile(expr)
		}
	}
	return out
}

func isWordChar(b byte) bool {
	return b == '_' ||
		(b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') || (b >= '0' && b <= '9')
}

// Canonical lowercases a skill and folds known aliases.
func Canonical(skill string) string {
	skill = strings.ToLower(strings.TrimSpace(skill))
	if canonical, ok := aliases[skill]; ok {
		return canonical
	}
	return skill
}

// ExtractSkills scans free text for known skill tokens and returns them
// canonicalized, sorted and unique.
func ExtractSkills(text string) []string {
	lower := strings.ToLower(text)
	seen := make(map[string]struct{})
	for pattern, re := range compiled {
		if re.MatchString(lower) {
			seen[Canonical(pattern)] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for s := range seen {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// Profile is the candidate skill set the match scorer compares against.
type Profile struct {
	Skills     map[string]struct{}
	ResumeText string
}

// Load assembles the profile from configured skills and, when present,
// the resume file. A missing resume file is not an error.
func Load(cfg *config.ProfileConfig, logger *zap.Logger) (*Profile, error) {
	if cfg == nil {
		cfg = &config.ProfileConfig{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	p := &Profile{Skills: make(map[string]struct{})}
	for _, s := range cfg.Skills {
		if s = Canonical(s); s != "" {
			p.Skills[s] = struct{}{}
		}
	}

	if cfg.ResumeFile != "" {
		data, err := os.ReadFile(cfg.ResumeFile)
		switch {
		case err == nil:
			p.ResumeText = string(data)
			for _, s := range ExtractSkills(p.ResumeText) {
				p.Skills[s] = struct{}{}
			}
			logger.Info("loaded resume",
				zap.String("file", cfg.ResumeFile),
				zap.Int("skills", len(p.Skills)),
			)
		case os.IsNotExist(err):
			logger.Info("no resume file, using configured skills only",
				zap.String("file", cfg.ResumeFile),
			)
		default:
			return nil, fmt.Errorf("read resume file: %w", err)
		}
	}

	return p, nil
}

// Empty reports whether the profile carries no skills at all.
func (p *Profile) Empty() bool {
	return p == nil || len(p.Skills) == 0
}

// Has reports whether the profile contains the skill after folding.
func (p *Profile) Has(skill string) bool {
	if p == nil {
		return false
	}
	_, ok := p.Skills[Canonical(skill)]
	return ok
}

// SkillList returns the profile's skills sorted for stable output.
func (p *Profile) SkillList() []string {
	if p == nil {
		return nil
	}
	out := make([]string, 0, len(p.Skills))
	for s := range p.Skills {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// Analysis summarizes what the profile loader understood about the
// candidate. Used by the analyze command.
type Analysis struct {
	Skills          []string
	ExperienceLevel string
	Domain          string
}

var seniorityMarkers = []struct {
	marker string
	level  string
}{
	{"principal", "lead"},
	{"staff", "lead"},
	{"lead", "lead"},
	{"senior", "senior"},
	{"sr.", "senior"},
	{"junior", "junior"},
	{"intern", "junior"},
}

// Analyze derives a rough read of the resume: detected skills, a
// seniority guess from title markers, and a domain guess from the skill
// mix.
func (p *Profile) Analyze() Analysis {
	a := Analysis{
		Skills:          p.SkillList(),
		ExperienceLevel: "unknown",
		Domain:          "Tech",
	}

	lower := strings.ToLower(p.ResumeText)
	for _, m := range seniorityMarkers {
		if strings.Contains(lower, m.marker) {
			a.ExperienceLevel = m.level
			break
		}
	}

	for _, s := range a.Skills {
		if s == "machine learning" || s == "deep learning" || s == "nlp" ||
			s == "pytorch" || s == "tensorflow" || s == "llm" {
			a.Domain = "AI/ML"
			break
		}
	}

	return a
}
