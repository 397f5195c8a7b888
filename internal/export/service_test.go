package export

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"log"
	"os"
	"testing"
	"time"

	"github.com/yourusername/exam-forge/internal/exam"
	"github.com/yourusername/exam-forge/internal/render"
	"github.com/yourusername/exam-forge/internal/storage"
)

var exportTime = time.Date(2026, 10, 15, 9, 5, 3, 0, time.UTC)

func newTestService(t *testing.T) (*Service, *storage.Local) {
	t.Helper()
	store, err := storage.NewLocal(t.TempDir())
	if err != nil {
		t.Fatalf("failed to create storage: %v", err)
	}
	svc, err := NewService(store, 10, log.New(io.Discard, "", 0))
	if err != nil {
		t.Fatalf("failed to create service: %v", err)
	}
	return svc, store
}

func sampleExam(t *testing.T) exam.Exam {
	t.Helper()
	e := exam.New().SetTitle("Math Quiz")
	e, q, err := e.AddQuestion(exam.KindMultipleChoice)
	if err != nil {
		t.Fatalf("AddQuestion returned error: %v", err)
	}
	e = e.UpdateQuestion(q.ID, exam.Question{
		Prompt: "2+2=?",
		Points: 2,
		Body:   exam.MultipleChoice{Options: [4]string{"3", "4", "5", "6"}, Correct: "4"},
	})
	e, _, err = e.AddQuestion(exam.KindTrueFalse)
	if err != nil {
		t.Fatalf("AddQuestion returned error: %v", err)
	}
	return e
}

func entries(t *testing.T, dir string) int {
	t.Helper()
	list, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("failed to read dir: %v", err)
	}
	return len(list)
}

func TestPrepareAndRunJob(t *testing.T) {
	svc, store := newTestService(t)
	manifest, err := svc.PrepareExport(context.Background(), "sess-1", sampleExam(t), exportTime)
	if err != nil {
		t.Fatalf("PrepareExport returned error: %v", err)
	}
	if manifest.TotalQuestions != 2 || manifest.SessionID != "sess-1" {
		t.Fatalf("unexpected manifest: %+v", manifest)
	}
	if manifest.Filename != "Math_Quiz_20261015T090503000Z.pdf" {
		t.Fatalf("Filename = %q", manifest.Filename)
	}

	type step struct {
		stage   string
		percent int
	}
	var steps []step
	result, err := svc.RunJob(context.Background(), manifest.JobID, func(stage string, percent int) {
		steps = append(steps, step{stage, percent})
	})
	if err != nil {
		t.Fatalf("RunJob returned error: %v", err)
	}
	want := []step{{"layout", 20}, {"encode", 80}, {"write", 100}}
	if len(steps) != len(want) {
		t.Fatalf("progress = %v, want %v", steps, want)
	}
	for i := range want {
		if steps[i] != want[i] {
			t.Fatalf("progress[%d] = %v, want %v", i, steps[i], want[i])
		}
	}

	data, err := os.ReadFile(result.OutputPath)
	if err != nil {
		t.Fatalf("failed to read output: %v", err)
	}
	if int64(len(data)) != result.OutputSize {
		t.Fatalf("OutputSize = %d, file has %d bytes", result.OutputSize, len(data))
	}
	if err := render.Verify(data, result.Meta.Pages); err != nil {
		t.Fatalf("output is not a valid PDF: %v", err)
	}
	if result.Meta.TotalPoints != 3 || result.Meta.TotalQuestions != 2 {
		t.Fatalf("unexpected meta: %+v", result.Meta)
	}

	if err := result.Cleanup(); err != nil {
		t.Fatalf("Cleanup returned error: %v", err)
	}
	if n := entries(t, store.Root()); n != 0 {
		t.Fatalf("expected workspace to be removed, %d entries left", n)
	}
}

func TestOpenResultFile(t *testing.T) {
	svc, _ := newTestService(t)
	manifest, err := svc.PrepareExport(context.Background(), "sess-1", sampleExam(t), exportTime)
	if err != nil {
		t.Fatalf("PrepareExport returned error: %v", err)
	}
	if _, _, err := svc.OpenResultFile(manifest.JobID); !errors.Is(err, fs.ErrNotExist) {
		t.Fatalf("expected not-exist before the job runs, got %v", err)
	}
	if _, err := svc.RunJob(context.Background(), manifest.JobID, nil); err != nil {
		t.Fatalf("RunJob returned error: %v", err)
	}

	result, file, err := svc.OpenResultFile(manifest.JobID)
	if err != nil {
		t.Fatalf("OpenResultFile returned error: %v", err)
	}
	defer file.Close()
	if result.SessionID != "sess-1" || result.OutputFilename != manifest.Filename {
		t.Fatalf("unexpected result: %+v", result)
	}
	if result.OutputSize == 0 || result.Meta.Pages != 1 {
		t.Fatalf("unexpected output size/pages: %d/%d", result.OutputSize, result.Meta.Pages)
	}
}

func TestRunJobRenderFailureRemovesWorkspace(t *testing.T) {
	svc, store := newTestService(t)
	svc.encode = func(*render.Layout) ([]byte, error) {
		return nil, &render.Error{Code: render.CodeRenderFailed, Message: "layout engine failed"}
	}

	manifest, err := svc.PrepareExport(context.Background(), "sess-1", sampleExam(t), exportTime)
	if err != nil {
		t.Fatalf("PrepareExport returned error: %v", err)
	}
	var stages []string
	_, err = svc.RunJob(context.Background(), manifest.JobID, func(stage string, percent int) {
		stages = append(stages, stage)
	})
	var renderErr *render.Error
	if !errors.As(err, &renderErr) {
		t.Fatalf("expected render error, got %v", err)
	}
	if len(stages) != 1 || stages[0] != "layout" {
		t.Fatalf("unexpected progress on failure: %v", stages)
	}
	if n := entries(t, store.Root()); n != 0 {
		t.Fatalf("partial artifact left behind: %d entries", n)
	}
}

func TestRunJobRejectsInvalidJobID(t *testing.T) {
	svc, _ := newTestService(t)
	if _, err := svc.RunJob(context.Background(), "../../etc", nil); !errors.Is(err, storage.ErrInvalidJobID) {
		t.Fatalf("expected ErrInvalidJobID, got %v", err)
	}
}

func TestPrepareExportHonoursCanceledContext(t *testing.T) {
	svc, store := newTestService(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := svc.PrepareExport(ctx, "sess-1", sampleExam(t), exportTime); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if n := entries(t, store.Root()); n != 0 {
		t.Fatalf("expected no workspace, got %d entries", n)
	}
}
