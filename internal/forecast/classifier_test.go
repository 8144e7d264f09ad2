package forecast

import (
	"testing"

	"github.com/pipehealth/pipehealth-go/internal/models"
)

func TestClassifyStage(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		expected models.StageBucket
	}{
		{"Plain commit", "Commit", models.BucketCommit},
		{"Commit with qualifier", "Strong Commit - Q3", models.BucketCommit},
		{"Commit beats best", "best case commit", models.BucketCommit},
		{"Best case", "Best Case", models.BucketBestCase},
		{"Best only", "best", models.BucketBestCase},
		{"Pipeline catch-all", "Negotiation", models.BucketPipeline},
		{"Empty text defaults to pipeline", "", models.BucketPipeline},
		{"Unrecognized text defaults to pipeline", "???", models.BucketPipeline},
		{"Closed won", "Closed Won", models.BucketExcluded},
		{"Won alone", "won", models.BucketExcluded},
		{"Lost", "Deal Lost", models.BucketExcluded},
		{"Loss", "loss", models.BucketExcluded},
		{"Closed with punctuation", "closed/won!!", models.BucketExcluded},
		{"Won inside a larger word stays open", "wonder opportunity", models.BucketPipeline},
		{"Lostness is not lost", "lostness", models.BucketPipeline},
		{"Closed marker overrides commit", "commit - closed", models.BucketExcluded},
		{"Mixed separators", "best...case", models.BucketBestCase},
		{"Digits are separators", "won2win", models.BucketExcluded},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ClassifyStage(tt.raw)
			if got != tt.expected {
				t.Errorf("ClassifyStage(%q) = %v, want %v", tt.raw, got, tt.expected)
			}
		})
	}
}

// Re-classifying the same text must always give the same answer.
func TestClassifyStageIdempotent(t *testing.T) {
	inputs := []string{"Commit", "best case", "closed won", "", "Pipeline - early", "wonder"}
	for _, raw := range inputs {
		first := ClassifyStage(raw)
		for i := 0; i < 5; i++ {
			if got := ClassifyStage(raw); got != first {
				t.Fatalf("ClassifyStage(%q) not idempotent: %v then %v", raw, first, got)
			}
		}
	}
}

func TestNormalizeStage(t *testing.T) {
	tests := []struct {
		raw      string
		expected string
	}{
		{"Closed Won", " closed won "},
		{"closed/won!!", " closed won "},
		{"", " "},
		{"  ", " "},
		{"A", " a "},
		{"won2win", " won win "},
	}

	for _, tt := range tests {
		if got := normalizeStage(tt.raw); got != tt.expected {
			t.Errorf("normalizeStage(%q) = %q, want %q", tt.raw, got, tt.expected)
		}
	}
}

func TestIsOpen(t *testing.T) {
	if IsOpen("Closed Won") {
		t.Error("closed deal reported open")
	}
	if !IsOpen("Commit") {
		t.Error("commit deal reported closed")
	}
}
