package bot

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/mattjoyce/careerloop/internal/store"
)

func TestFailJobReportsStatusPersistenceFailure(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	jobs := store.NewJobStore(db)

	loop := &Loop{
		jobs:   jobs,
		logger: testLogger(),
	}

	_ = db.Close()

	origErr := errors.New("boom")
	gotErr := loop.failJob(ctx, "job-1", origErr)
	if gotErr == nil {
		t.Fatalf("expected failJob to return an error")
	}
	if !strings.Contains(gotErr.Error(), "boom") {
		t.Fatalf("expected original error in return value, got %q", gotErr.Error())
	}
	if !strings.Contains(gotErr.Error(), "failed to persist job status") {
		t.Fatalf("expected persistence failure detail, got %q", gotErr.Error())
	}
}
