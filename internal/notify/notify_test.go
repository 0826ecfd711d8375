package notify

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/distr1/backupd/internal/model"
)

func TestSubjectForReflectsReportOutcome(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name   string
		report model.RunReport
		want   string
	}{
		{"success", model.RunReport{}, "backupd: run succeeded"},
		{"partial", model.RunReport{NonFatalErrors: []error{errors.New("skip")}}, "backupd: run completed with warnings"},
		{"failed", model.RunReport{FatalError: errors.New("boom")}, "backupd: run failed"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := subjectFor(tc.report); got != tc.want {
				t.Errorf("subjectFor = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestBodyForIncludesErrorsAndDeletions(t *testing.T) {
	t.Parallel()
	report := model.RunReport{
		StartedAt:        time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		FinishedAt:       time.Date(2025, 1, 1, 0, 5, 0, 0, time.UTC),
		BytesWritten:     1024,
		EntriesWritten:   3,
		NonFatalErrors:   []error{errors.New("skipped /tmp/x")},
		DeletedArtifacts: []string{"db.2024-01-01T00h00m00s_0000.tar.xz.age"},
	}
	body := bodyFor(report)
	for _, want := range []string{
		"bytes written:   1024",
		"entries written: 3",
		"skipped /tmp/x",
		"db.2024-01-01T00h00m00s_0000.tar.xz.age",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("body missing %q:\n%s", want, body)
		}
	}
}
