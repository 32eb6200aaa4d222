package question

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log"

	"quizdesk/internal/assistant"
	"quizdesk/internal/scoring"
	"quizdesk/internal/storage"
)

var (
	ErrAIUnavailable    = errors.New("ai not available")
	ErrGenerationFailed = errors.New("ai failed to generate questions")
	ErrInsufficientText = assistant.ErrInsufficientText
	ErrSourceNotFound   = errors.New("source file not found")
)

type Source string

const (
	SourceJSON Source = "json"
	SourcePDF  Source = "pdf"
	SourceXLSX Source = "xlsx"
)

type Upload struct {
	Title           string
	DurationMinutes int
	Filename        string
	Data            []byte
}

type ImportResult struct {
	Message       string `json:"message"`
	TestID        int64  `json:"test_id"`
	QuestionCount int    `json:"question_count"`
	SourceKey     string `json:"source_key,omitempty"`
}

type questionGenerator interface {
	Available() bool
	GenerateQuestions(ctx context.Context, sourceText string) ([]byte, error)
}

type testCreator interface {
	CreateTest(ctx context.Context, in CreateTestInput) (*TestSummary, error)
	GetTestSourceKey(ctx context.Context, testID int64) (string, error)
	DeleteTest(ctx context.Context, testID int64) error
}

// Importer turns uploaded files into tests. Every path ends in
// Service.CreateTest, so uploads and AI output share one validation.
type Importer struct {
	tests      testCreator
	blobs      storage.BlobStore
	generator  questionGenerator
	extractPDF func(data []byte) (string, error)
	recorder   UploadRecorder
}

// UploadRecorder receives the outcome of every import.
type UploadRecorder interface {
	ObserveUpload(source string, ok bool)
}

type ImporterConfig struct {
	Blobs      storage.BlobStore
	Generator  questionGenerator
	ExtractPDF func(data []byte) (string, error)
	Recorder   UploadRecorder
}

func NewImporter(tests *Service, cfg ImporterConfig) *Importer {
	extract := cfg.ExtractPDF
	if extract == nil {
		extract = assistant.ExtractPDFText
	}
	return &Importer{
		tests:      tests,
		blobs:      cfg.Blobs,
		generator:  cfg.Generator,
		extractPDF: extract,
		recorder:   cfg.Recorder,
	}
}

func (im *Importer) ImportJSON(ctx context.Context, up Upload) (res *ImportResult, err error) {
	defer func() { im.record(SourceJSON, err) }()
	candidates, err := scoring.ParseQuestionSet(up.Data)
	if err != nil {
		return nil, err
	}
	return im.create(ctx, SourceJSON, up, candidates)
}

func (im *Importer) ImportXLSX(ctx context.Context, up Upload) (res *ImportResult, err error) {
	defer func() { im.record(SourceXLSX, err) }()
	candidates, err := ParseQuestionSheet(bytes.NewReader(up.Data))
	if err != nil {
		return nil, err
	}
	return im.create(ctx, SourceXLSX, up, candidates)
}

func (im *Importer) ImportPDF(ctx context.Context, up Upload) (res *ImportResult, err error) {
	defer func() { im.record(SourcePDF, err) }()
	text, err := im.extractPDF(up.Data)
	if err != nil {
		log.Printf("pdf extract failed file=%q err=%v", up.Filename, err)
		return nil, ErrInsufficientText
	}
	if !assistant.SufficientText(text) {
		return nil, ErrInsufficientText
	}
	if im.generator == nil || !im.generator.Available() {
		return nil, ErrAIUnavailable
	}

	raw, err := im.generator.GenerateQuestions(ctx, text)
	if err != nil {
		log.Printf("question generation failed file=%q err=%v", up.Filename, err)
		return nil, ErrGenerationFailed
	}
	candidates, err := scoring.ParseQuestionSet(raw)
	if err != nil {
		return nil, err
	}
	return im.create(ctx, SourcePDF, up, candidates)
}

// Source returns the archived upload a test was created from.
func (im *Importer) Source(ctx context.Context, testID int64) (io.ReadCloser, string, error) {
	key, err := im.tests.GetTestSourceKey(ctx, testID)
	if err != nil {
		return nil, "", err
	}
	if key == "" || im.blobs == nil {
		return nil, "", ErrSourceNotFound
	}
	rc, err := im.blobs.Get(key)
	if err != nil {
		if errors.Is(err, storage.ErrKeyNotFound) {
			return nil, "", ErrSourceNotFound
		}
		return nil, "", fmt.Errorf("open source: %w", err)
	}
	return rc, key, nil
}

// DeleteTest removes the test together with its archived source.
func (im *Importer) DeleteTest(ctx context.Context, testID int64) error {
	key, err := im.tests.GetTestSourceKey(ctx, testID)
	if err != nil {
		return err
	}
	if err := im.tests.DeleteTest(ctx, testID); err != nil {
		return err
	}
	im.discard(key)
	return nil
}

func (im *Importer) discard(key string) {
	if key == "" || im.blobs == nil {
		return
	}
	if err := im.blobs.Delete(key); err != nil {
		log.Printf("discard source key=%q err=%v", key, err)
	}
}

func (im *Importer) record(source Source, err error) {
	if im.recorder != nil {
		im.recorder.ObserveUpload(string(source), err == nil)
	}
}

func (im *Importer) create(ctx context.Context, source Source, up Upload, candidates []scoring.Candidate) (*ImportResult, error) {
	if err := scoring.ValidateQuestionSet(candidates); err != nil {
		return nil, err
	}

	key := ""
	if im.blobs != nil {
		stored, err := im.blobs.Put(storage.SourceKey(up.Filename), bytes.NewReader(up.Data))
		if err != nil {
			return nil, fmt.Errorf("archive source: %w", err)
		}
		key = stored
	}

	test, err := im.tests.CreateTest(ctx, CreateTestInput{
		Title:           up.Title,
		DurationMinutes: up.DurationMinutes,
		Source:          string(source),
		SourceKey:       key,
		Candidates:      candidates,
	})
	if err != nil {
		im.discard(key)
		return nil, err
	}

	return &ImportResult{
		Message:       fmt.Sprintf("Test %q created successfully with %d questions", test.Title, test.QuestionCount),
		TestID:        test.ID,
		QuestionCount: test.QuestionCount,
		SourceKey:     key,
	}, nil
}
