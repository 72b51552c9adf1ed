// SPDX-License-Identifier: MIT
package jobs

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/Typecraft/tbf/internal/config"
	"github.com/Typecraft/tbf/internal/tbf"
)

func testConfig() config.JobsConfig {
	return config.JobsConfig{Concurrency: 2}
}

func fixtureBytes(t *testing.T) (*tbf.Document, []byte) {
	t.Helper()
	doc := tbf.NewDocument()
	layer := doc.AddLayer("words")
	for i := 0; i < 4; i++ {
		layer.AddObject().SetAttr("text", "word")
	}
	raw, err := tbf.Marshal(doc)
	if err != nil {
		t.Fatalf("marshal fixture: %v", err)
	}
	return doc, raw
}

func TestConvertBinaryInputs(t *testing.T) {
	in := t.TempDir()
	out := t.TempDir()
	_, raw := fixtureBytes(t)
	if err := os.WriteFile(filepath.Join(in, "a.tbf"), raw, 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(in, "b.tbf"), raw, 0o644); err != nil {
		t.Fatal(err)
	}

	status, err := Convert(context.Background(), testConfig(), Options{InputDir: in, OutputDir: out})
	if err != nil {
		t.Fatalf("convert: %v", err)
	}
	if status.Converted != 2 || status.Failed != 0 || status.Skipped != 0 {
		t.Fatalf("status = %+v", status)
	}

	data, err := os.ReadFile(filepath.Join(out, "a.json"))
	if err != nil {
		t.Fatal(err)
	}
	got := tbf.NewDocument()
	if err := json.Unmarshal(data, got); err != nil {
		t.Fatalf("output not valid document JSON: %v", err)
	}
	if got.Summarize() != (tbf.Stats{Layers: 1, Objects: 4, Attrs: 4}) {
		t.Fatalf("stats = %+v", got.Summarize())
	}
}

func TestConvertJSONInputs(t *testing.T) {
	in := t.TempDir()
	out := t.TempDir()
	doc, raw := fixtureBytes(t)
	body, err := json.Marshal(doc)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(in, "doc.json"), body, 0o644); err != nil {
		t.Fatal(err)
	}

	status, err := Convert(context.Background(), testConfig(), Options{InputDir: in, OutputDir: out})
	if err != nil {
		t.Fatal(err)
	}
	if status.Converted != 1 {
		t.Fatalf("status = %+v", status)
	}

	data, err := os.ReadFile(filepath.Join(out, "doc.tbf"))
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != string(raw) {
		t.Fatal("converted bytes differ from direct marshal")
	}
}

func TestConvertRecordsFailures(t *testing.T) {
	in := t.TempDir()
	out := t.TempDir()
	_, raw := fixtureBytes(t)
	if err := os.WriteFile(filepath.Join(in, "good.tbf"), raw, 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(in, "bad.tbf"), []byte{0xFF, 0xFE}, 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(in, "ignored.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	status, err := Convert(context.Background(), testConfig(), Options{InputDir: in, OutputDir: out})
	if err != nil {
		t.Fatal(err)
	}
	if status.Converted != 1 || status.Failed != 1 {
		t.Fatalf("status = %+v", status)
	}
	if len(status.Files) != 2 {
		t.Fatalf("files = %d", len(status.Files))
	}
	// Results are sorted by input path: bad.tbf first.
	if status.Files[0].Status != "failed" || status.Files[0].Error == "" {
		t.Fatalf("failure entry = %+v", status.Files[0])
	}
}

func TestConvertSkipsExistingOutputs(t *testing.T) {
	in := t.TempDir()
	out := t.TempDir()
	_, raw := fixtureBytes(t)
	if err := os.WriteFile(filepath.Join(in, "a.tbf"), raw, 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(out, "a.json"), []byte("{}"), 0o644); err != nil {
		t.Fatal(err)
	}

	status, err := Convert(context.Background(), testConfig(), Options{InputDir: in, OutputDir: out})
	if err != nil {
		t.Fatal(err)
	}
	if status.Skipped != 1 || status.Converted != 0 {
		t.Fatalf("status = %+v", status)
	}

	// Overwrite replaces the stale output.
	status, err = Convert(context.Background(), testConfig(), Options{InputDir: in, OutputDir: out, Overwrite: true})
	if err != nil {
		t.Fatal(err)
	}
	if status.Converted != 1 {
		t.Fatalf("overwrite status = %+v", status)
	}
}

func TestConvertHonorsCancellation(t *testing.T) {
	in := t.TempDir()
	out := t.TempDir()
	_, raw := fixtureBytes(t)
	for _, name := range []string{"a.tbf", "b.tbf", "c.tbf"} {
		if err := os.WriteFile(filepath.Join(in, name), raw, 0o644); err != nil {
			t.Fatal(err)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// A throttled limiter forces every worker through limiter.Wait,
	// which fails fast on a cancelled context.
	cfg := config.JobsConfig{Concurrency: 1, FilesPerSec: 0.001}
	_, err := Convert(ctx, cfg, Options{InputDir: in, OutputDir: out})
	if err == nil {
		t.Fatal("expected error from cancelled context")
	}
}

func TestConvertMissingInputDir(t *testing.T) {
	_, err := Convert(context.Background(), testConfig(), Options{
		InputDir:  filepath.Join(t.TempDir(), "missing"),
		OutputDir: t.TempDir(),
	})
	if err == nil {
		t.Fatal("expected error for missing input dir")
	}
}
