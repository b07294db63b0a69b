package commands

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/benvon/practice-queue/internal/database"
	"github.com/benvon/practice-queue/internal/models"
	"go.uber.org/zap"
)

type mockProblemStore struct {
	problems map[string]models.Problem
	created  []models.Problem
	updated  []models.Problem
	deleted  []string
	err      error
}

func newMockProblemStore(problems ...models.Problem) *mockProblemStore {
	m := &mockProblemStore{problems: make(map[string]models.Problem)}
	for _, p := range problems {
		m.problems[p.ID] = p
	}
	return m
}

func (m *mockProblemStore) List(context.Context) ([]models.Problem, error) {
	var out []models.Problem
	for _, p := range m.problems {
		out = append(out, p)
	}
	return out, nil
}

func (m *mockProblemStore) GetByID(_ context.Context, id string) (*models.Problem, error) {
	p, ok := m.problems[id]
	if !ok {
		return nil, fmt.Errorf("problem %s: %w", id, database.ErrNotFound)
	}
	return &p, nil
}

func (m *mockProblemStore) Create(_ context.Context, p *models.Problem) error {
	if m.err != nil {
		return m.err
	}
	if p.ID == "" {
		p.ID = "generated"
	}
	m.created = append(m.created, *p)
	m.problems[p.ID] = *p
	return nil
}

func (m *mockProblemStore) Update(_ context.Context, p *models.Problem) error {
	if m.err != nil {
		return m.err
	}
	if _, ok := m.problems[p.ID]; !ok {
		return fmt.Errorf("problem %s: %w", p.ID, database.ErrNotFound)
	}
	m.updated = append(m.updated, *p)
	m.problems[p.ID] = *p
	return nil
}

func (m *mockProblemStore) Delete(_ context.Context, id string) error {
	if _, ok := m.problems[id]; !ok {
		return fmt.Errorf("problem %s: %w", id, database.ErrNotFound)
	}
	delete(m.problems, id)
	m.deleted = append(m.deleted, id)
	return nil
}

type mockTopicStore struct {
	topics    []models.Topic
	listCalls int
}

func (m *mockTopicStore) List(context.Context) ([]models.Topic, error) {
	m.listCalls++
	return m.topics, nil
}

func (m *mockTopicStore) UpsertByName(_ context.Context, topic *models.Topic) error {
	topic.ID = "topic-" + topic.Name
	return nil
}

func (m *mockTopicStore) Rename(_ context.Context, id, name string) (*models.Topic, error) {
	return &models.Topic{ID: id, Name: name}, nil
}

func (m *mockTopicStore) Delete(context.Context, string) error {
	return nil
}

var (
	_ database.ProblemStoreInterface = (*mockProblemStore)(nil)
	_ database.TopicStoreInterface   = (*mockTopicStore)(nil)
)

var testTopics = []models.Topic{
	{ID: "t-arrays", Name: "Arrays"},
	{ID: "t-graphs", Name: "Graphs"},
}

func TestApplyProblemFlags(t *testing.T) {
	t.Parallel()

	existing := models.Problem{
		ID:         "two-sum",
		Title:      "Two Sum",
		URL:        "https://leetcode.com/problems/two-sum/",
		Difficulty: models.DifficultyEasy,
		TopicID:    "t-arrays",
		TopicName:  "Arrays",
	}

	tests := []struct {
		name      string
		flags     problemFlags
		expectErr bool
		check     func(t *testing.T, p models.Problem)
	}{
		{
			name:  "difficulty is normalized",
			flags: problemFlags{difficulty: "HARD"},
			check: func(t *testing.T, p models.Problem) {
				if p.Difficulty != models.DifficultyHard {
					t.Errorf("Expected hard, got %s", p.Difficulty)
				}
				if p.Title != "Two Sum" {
					t.Errorf("Expected title to be kept, got %s", p.Title)
				}
			},
		},
		{
			name:  "topic is resolved by name ignoring case",
			flags: problemFlags{topic: "graphs"},
			check: func(t *testing.T, p models.Problem) {
				if p.TopicID != "t-graphs" || p.TopicName != "Graphs" {
					t.Errorf("Expected topic t-graphs/Graphs, got %s/%s", p.TopicID, p.TopicName)
				}
			},
		},
		{
			name:  "topic can be cleared",
			flags: problemFlags{topic: "none"},
			check: func(t *testing.T, p models.Problem) {
				if p.TopicID != "" {
					t.Errorf("Expected no topic, got %s", p.TopicID)
				}
			},
		},
		{
			name:      "unknown topic",
			flags:     problemFlags{topic: "Trees"},
			expectErr: true,
		},
		{
			name:      "unknown difficulty",
			flags:     problemFlags{difficulty: "legendary"},
			expectErr: true,
		},
		{
			name:      "url must be absolute http",
			flags:     problemFlags{url: "leetcode.com/two-sum"},
			expectErr: true,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			p := existing
			err := applyProblemFlags(&p, tt.flags, testTopics)
			if (err != nil) != tt.expectErr {
				t.Fatalf("Expected error %v, got %v", tt.expectErr, err)
			}
			if tt.check != nil {
				tt.check(t, p)
			}
		})
	}
}

func TestSaveProblem_Create(t *testing.T) {
	t.Parallel()

	problems := newMockProblemStore()
	topics := &mockTopicStore{topics: testTopics}
	invalidator := &mockInvalidator{}
	flags := problemFlags{
		title:      "Clone Graph",
		url:        "https://leetcode.com/problems/clone-graph/",
		difficulty: "medium",
		topic:      "Graphs",
	}

	p := &models.Problem{}
	if err := saveProblem(context.Background(), problems, topics, invalidator, zap.NewNop(), p, flags, true); err != nil {
		t.Fatalf("saveProblem failed: %v", err)
	}

	if len(problems.created) != 1 {
		t.Fatalf("Expected 1 created problem, got %d", len(problems.created))
	}
	created := problems.created[0]
	if created.TopicID != "t-graphs" || created.Difficulty != models.DifficultyMedium {
		t.Errorf("Unexpected created problem: %+v", created)
	}
	if topics.listCalls != 1 {
		t.Errorf("Expected topics to be listed once, got %d", topics.listCalls)
	}
	if invalidator.calls != 1 {
		t.Errorf("Expected 1 invalidation, got %d", invalidator.calls)
	}
}

func TestSaveProblem_Update(t *testing.T) {
	t.Parallel()

	stored := models.Problem{
		ID:         "two-sum",
		Title:      "Two Sum",
		URL:        "https://leetcode.com/problems/two-sum/",
		Difficulty: models.DifficultyEasy,
	}
	problems := newMockProblemStore(stored)
	topics := &mockTopicStore{topics: testTopics}
	invalidator := &mockInvalidator{}

	p, err := problems.GetByID(context.Background(), "two-sum")
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if err := saveProblem(context.Background(), problems, topics, invalidator, zap.NewNop(), p, problemFlags{title: "Two Sum II"}, false); err != nil {
		t.Fatalf("saveProblem failed: %v", err)
	}

	if len(problems.updated) != 1 || problems.updated[0].Title != "Two Sum II" {
		t.Errorf("Expected title update, got %+v", problems.updated)
	}
	if topics.listCalls != 0 {
		t.Errorf("Expected topics not to be listed without --topic, got %d calls", topics.listCalls)
	}
	if invalidator.calls != 1 {
		t.Errorf("Expected 1 invalidation, got %d", invalidator.calls)
	}
}

func TestSaveProblem_FailureSkipsInvalidation(t *testing.T) {
	t.Parallel()

	problems := newMockProblemStore()
	problems.err = errors.New("duplicate url")
	invalidator := &mockInvalidator{}
	flags := problemFlags{title: "Two Sum", url: "https://leetcode.com/problems/two-sum/", difficulty: "easy"}

	if err := saveProblem(context.Background(), problems, &mockTopicStore{}, invalidator, zap.NewNop(), &models.Problem{}, flags, true); err == nil {
		t.Fatal("Expected error, got nil")
	}
	if invalidator.calls != 0 {
		t.Errorf("Expected no invalidation, got %d", invalidator.calls)
	}
}

func TestDeleteProblem(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name          string
		id            string
		expectErr     error
		expectedCalls int
	}{
		{name: "deletes and drops cached queues", id: "two-sum", expectedCalls: 1},
		{name: "missing problem", id: "nope", expectErr: database.ErrNotFound},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			problems := newMockProblemStore(models.Problem{ID: "two-sum", Difficulty: models.DifficultyEasy})
			invalidator := &mockInvalidator{}

			err := deleteProblem(context.Background(), problems, invalidator, zap.NewNop(), tt.id)
			if tt.expectErr != nil {
				if !errors.Is(err, tt.expectErr) {
					t.Errorf("Expected %v, got %v", tt.expectErr, err)
				}
			} else if err != nil {
				t.Fatalf("deleteProblem failed: %v", err)
			}
			if invalidator.calls != tt.expectedCalls {
				t.Errorf("Expected %d invalidations, got %d", tt.expectedCalls, invalidator.calls)
			}
		})
	}
}

func TestDeleteProblem_WithoutCache(t *testing.T) {
	t.Parallel()

	problems := newMockProblemStore(models.Problem{ID: "two-sum"})
	if err := deleteProblem(context.Background(), problems, nil, zap.NewNop(), "two-sum"); err != nil {
		t.Errorf("Expected delete without a cache to succeed, got %v", err)
	}
}

func TestWriteTopics(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer
	if err := writeTopics(&out, testTopics); err != nil {
		t.Fatalf("writeTopics failed: %v", err)
	}
	for _, want := range []string{"ID", "NAME", "t-arrays", "Graphs"} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("Expected output to contain %q, got:\n%s", want, out.String())
		}
	}

	out.Reset()
	if err := writeTopics(&out, nil); err != nil {
		t.Fatalf("writeTopics failed: %v", err)
	}
	if out.String() != "No topics.\n" {
		t.Errorf("Expected empty message, got %q", out.String())
	}
}

func TestWriteProblems(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer
	problems := []models.Problem{
		{ID: "two-sum", Title: "Two Sum", URL: "https://leetcode.com/problems/two-sum/", Difficulty: models.DifficultyEasy, TopicName: "Arrays"},
	}
	if err := writeProblems(&out, problems); err != nil {
		t.Fatalf("writeProblems failed: %v", err)
	}
	for _, want := range []string{"DIFFICULTY", "two-sum", "easy", "Arrays", "Two Sum"} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("Expected output to contain %q, got:\n%s", want, out.String())
		}
	}
}
