package model

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/aristath/ecovest/internal/domain"
	"github.com/aristath/ecovest/internal/modules/impact/features"
)

//go:embed seed_corpus.yaml
var seedCorpus []byte

// minCorpusRecords guards against training on a truncated corpus file.
const minCorpusRecords = 10

// Record is one reference observation in the training corpus.
type Record struct {
	Categories     []string              `yaml:"categories"`
	Amount         float64               `yaml:"amount"`
	DurationMonths int                   `yaml:"duration_months"`
	Scale          int                   `yaml:"scale"`
	Location       string                `yaml:"location"`
	Technology     string                `yaml:"technology"`
	Impact         domain.ImpactEstimate `yaml:"impact"`
}

// Input converts the record's attributes into encoder input.
func (r Record) Input() features.Input {
	return features.Input{
		Amount:         r.Amount,
		Categories:     r.Categories,
		DurationMonths: r.DurationMonths,
		Scale:          r.Scale,
		Location:       r.Location,
		Technology:     r.Technology,
	}
}

// Corpus is the versioned seed data the regressors are trained on.
type Corpus struct {
	Version string   `yaml:"version"`
	Records []Record `yaml:"records"`
}

// DefaultCorpus returns the corpus embedded in the binary.
func DefaultCorpus() (*Corpus, error) {
	return ParseCorpus(seedCorpus)
}

// LoadCorpus reads a corpus file from disk.
func LoadCorpus(path string) (*Corpus, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read corpus %s: %w", path, err)
	}
	return ParseCorpus(data)
}

// ParseCorpus decodes and validates a YAML corpus.
func ParseCorpus(data []byte) (*Corpus, error) {
	var c Corpus
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("failed to decode corpus: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate checks every record encodes cleanly and has non-negative outcomes.
func (c *Corpus) Validate() error {
	if c.Version == "" {
		return fmt.Errorf("corpus has no version")
	}
	if len(c.Records) < minCorpusRecords {
		return fmt.Errorf("corpus %s has %d records, need at least %d", c.Version, len(c.Records), minCorpusRecords)
	}
	for i, r := range c.Records {
		if _, err := features.Normalize(r.Input()); err != nil {
			return fmt.Errorf("corpus record %d: %w", i, err)
		}
		for _, m := range domain.Metrics {
			if r.Impact.Get(m) < 0 {
				return fmt.Errorf("corpus record %d: negative %s outcome", i, m)
			}
		}
	}
	return nil
}
