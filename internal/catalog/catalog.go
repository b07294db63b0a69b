// Package catalog reads problem sets from YAML and loads them into the database.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/benvon/practice-queue/internal/database"
	"github.com/benvon/practice-queue/internal/models"
	"github.com/benvon/practice-queue/internal/validation"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// File is the import document:
//
//	topics:
//	  - name: Arrays
//	    problems:
//	      - title: Two Sum
//	        url: https://leetcode.com/problems/two-sum/
//	        difficulty: easy
type File struct {
	Topics []Topic `yaml:"topics" validate:"required,min=1,dive"`
}

// Topic is a named group of problems
type Topic struct {
	Name     string    `yaml:"name" validate:"required,max=255"`
	Problems []Problem `yaml:"problems" validate:"dive"`
}

// Problem is one catalog entry. ID is optional; a new id is generated for unknown URLs.
type Problem struct {
	ID         string `yaml:"id,omitempty" validate:"omitempty,max=128"`
	Title      string `yaml:"title" validate:"required,max=500"`
	URL        string `yaml:"url" validate:"required,http_url"`
	Difficulty string `yaml:"difficulty" validate:"difficulty"`
}

// Summary counts what an import wrote
type Summary struct {
	Topics   int
	Problems int
}

// Parse decodes and validates a catalog document. Unknown keys and duplicate URLs are rejected.
func Parse(r io.Reader) (*File, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var f File
	if err := dec.Decode(&f); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("catalog file is empty")
		}
		return nil, fmt.Errorf("failed to parse catalog: %w", err)
	}

	for i := range f.Topics {
		f.Topics[i].Name = validation.SanitizeText(f.Topics[i].Name)
		for j := range f.Topics[i].Problems {
			p := &f.Topics[i].Problems[j]
			p.Title = validation.SanitizeText(p.Title)
			p.URL = strings.TrimSpace(p.URL)
		}
	}

	if err := validation.Struct(&f); err != nil {
		return nil, fmt.Errorf("invalid catalog: %w", err)
	}

	seen := make(map[string]string)
	for _, t := range f.Topics {
		for _, p := range t.Problems {
			if prev, dup := seen[p.URL]; dup {
				return nil, fmt.Errorf("invalid catalog: %s is listed under both %q and %q", p.URL, prev, t.Name)
			}
			seen[p.URL] = t.Name
		}
	}

	return &f, nil
}

// Importer writes parsed catalogs through a catalog store
type Importer struct {
	store  database.CatalogStoreInterface
	logger *zap.Logger
}

// NewImporter creates an importer
func NewImporter(store database.CatalogStoreInterface, logger *zap.Logger) *Importer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Importer{store: store, logger: logger}
}

// Import upserts topics by name and problems by URL in one transaction. Either the whole
// file is written or, on the first failed write, nothing is and a zero Summary is returned.
func (im *Importer) Import(ctx context.Context, f *File) (Summary, error) {
	var summary Summary
	err := im.store.Transact(ctx, func(w database.CatalogWriterInterface) error {
		summary = Summary{}
		for _, t := range f.Topics {
			topic := &models.Topic{Name: t.Name}
			if err := w.UpsertTopic(ctx, topic); err != nil {
				return fmt.Errorf("failed to import topic %q: %w", t.Name, err)
			}
			summary.Topics++

			for _, p := range t.Problems {
				difficulty, err := models.ParseDifficulty(p.Difficulty)
				if err != nil {
					return err
				}
				problem := &models.Problem{
					ID:         p.ID,
					Title:      p.Title,
					URL:        p.URL,
					Difficulty: difficulty,
					TopicID:    topic.ID,
				}
				if err := w.UpsertProblem(ctx, problem); err != nil {
					return fmt.Errorf("failed to import problem %q: %w", p.Title, err)
				}
				summary.Problems++
			}

			im.logger.Debug("catalog_topic_imported",
				zap.String("topic", t.Name),
				zap.Int("problems", len(t.Problems)),
			)
		}
		return nil
	})
	if err != nil {
		return Summary{}, err
	}

	im.logger.Info("catalog_imported",
		zap.Int("topics", summary.Topics),
		zap.Int("problems", summary.Problems),
	)
	return summary, nil
}
