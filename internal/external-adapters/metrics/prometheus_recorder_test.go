package metrics

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"

	"github.com/ochairo/cauldron/internal/domain/interfaces"
)

func TestPrometheusRecorder(t *testing.T) {
	reg := prom.NewRegistry()
	pr := NewPrometheusRecorder(reg)
	pr.ObserveStageDuration("assemble", 150*time.Millisecond)
	pr.ObserveBuildDuration(500 * time.Millisecond)
	pr.IncStageResult("assemble", true)
	pr.IncBuildOutcome(interfaces.OutcomeSuccess)
	pr.IncDownload("cache")
	pr.ObserveArchiveSize(1 << 20)

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	if len(mfs) != 6 {
		t.Fatalf("expected 6 metric families, got %d", len(mfs))
	}
}

func TestPrometheusRecorder_Nil(t *testing.T) {
	var pr *PrometheusRecorder
	pr.ObserveStageDuration("test", time.Second)
	pr.IncBuildOutcome(interfaces.OutcomeFailed)
	pr.ObserveArchiveSize(1)
}

func TestPrometheusRecorder_WriteTextfile(t *testing.T) {
	pr := NewPrometheusRecorder(nil)
	pr.IncBuildOutcome(interfaces.OutcomeBlocked)

	path := filepath.Join(t.TempDir(), "cauldron.prom")
	if err := pr.WriteTextfile(path); err != nil {
		t.Fatalf("WriteTextfile() error = %v", err)
	}

	//nolint:gosec // G304: test reads the file it generated
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), `cauldron_build_outcomes_total{outcome="blocked"} 1`) {
		t.Errorf("textfile missing outcome counter:\n%s", data)
	}
}
