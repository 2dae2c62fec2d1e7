package cmd

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"

	"agritrace/internal/domain/lot"
	"agritrace/internal/ports"
	"agritrace/internal/usecase/lots"
)

func writeTestConfig(t *testing.T) string {
	t.Helper()

	dir := t.TempDir()
	content := strings.Join([]string{
		"log:",
		"  level: error",
		"database:",
		"  driver: sqlite",
		"  dsn: " + filepath.ToSlash(filepath.Join(dir, "agritrace.sqlite")),
		"blob:",
		"  driver: fs",
		"  root: " + filepath.ToSlash(filepath.Join(dir, "blobs")),
		"ledger:",
		"  enabled: false",
		"",
	}, "\n")
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	return path
}

func runCLI(t *testing.T, args ...string) string {
	t.Helper()

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(io.Discard)
	rootCmd.SetArgs(args)
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		t.Fatalf("agritrace %s error = %v", strings.Join(args, " "), err)
	}
	return out.String()
}

func TestCLILotLifecycle(t *testing.T) {
	cfg := writeTestConfig(t)

	if got := runCLI(t, "init-db", "--config", cfg); !strings.Contains(got, "database schema initialized") {
		t.Fatalf("init-db output = %q", got)
	}

	got := runCLI(t, "lot", "register", "--config", cfg,
		"--name", "Ana", "--email", "ana@farm.test",
		"--id", "LOT-CLI00001", "--produce", "Bosc Pears", "--origin", "Hood River",
		"--planted", "2026-01-05", "--harvested", "2026-02-20", "--items", "40",
	)
	if !strings.Contains(got, "registered lot: LOT-CLI00001") {
		t.Fatalf("register output = %q", got)
	}

	got = runCLI(t, "lot", "advance", "LOT-CLI00001", "in-transit-to-distributor", "--config", cfg,
		"--name", "Ana", "--email", "ana@farm.test", "--role", "Farmer", "--location", "Truck 7",
	)
	if !strings.Contains(got, "lot LOT-CLI00001 is now") {
		t.Fatalf("advance output = %q", got)
	}

	if got = runCLI(t, "feedback", "add", "LOT-CLI00001", "juicy and firm", "--config", cfg); !strings.Contains(got, "lot=LOT-CLI00001") {
		t.Fatalf("feedback add output = %q", got)
	}
	if got = runCLI(t, "feedback", "list", "LOT-CLI00001", "--config", cfg); !strings.Contains(got, "juicy and firm") {
		t.Fatalf("feedback list output = %q", got)
	}

	got = runCLI(t, "lot", "show", "LOT-CLI00001", "--config", cfg)
	for _, want := range []string{"Bosc Pears (40 items)", "Truck 7", "2. "} {
		if !strings.Contains(got, want) {
			t.Fatalf("show output missing %q:\n%s", want, got)
		}
	}

	got = runCLI(t, "relay", "--once", "--name", "cli-test", "--config", cfg)
	if !strings.Contains(got, "published=2") {
		t.Fatalf("relay output = %q", got)
	}
}

func TestActorFromFlagsRejectsUnknownRole(t *testing.T) {
	cmd := &cobra.Command{Use: "actor"}
	addActorFlags(cmd, "Consumer")
	_ = cmd.Flags().Set("name", "someone")

	if _, err := actorFromFlags(cmd); err == nil {
		t.Fatal("actorFromFlags() error = nil, want unknown role")
	}

	_ = cmd.Flags().Set("role", "Retailer")
	actor, err := actorFromFlags(cmd)
	if err != nil {
		t.Fatalf("actorFromFlags() error = %v", err)
	}
	if actor.Role != lot.RoleRetailer || actor.DisplayName != "someone" {
		t.Fatalf("actor = %+v", actor)
	}
}

func TestWriteTraceListsLedgerAnchors(t *testing.T) {
	view := lots.TraceView{
		Lot: lot.Lot{
			ID:          "LOT-1",
			ProduceName: "Kale",
			ItemCount:   3,
			History: []lot.HistoryEvent{
				{Status: lot.StatusRegistered, Timestamp: "t0", Location: "Farm", Actor: "ana"},
			},
			Certificates: []lot.Certificate{{Name: "organic.pdf", ContentType: "application/pdf"}},
		},
		Status:  lot.StatusRegistered,
		Anchors: []ports.AnchorReceipt{{LotID: "LOT-1", Seq: 1, TxID: "0xabc"}},
	}

	var out bytes.Buffer
	if err := writeTrace(&out, view); err != nil {
		t.Fatalf("writeTrace() error = %v", err)
	}
	for _, want := range []string{"lot:       LOT-1", "organic.pdf (application/pdf)", "seq=1 tx=0xabc"} {
		if !strings.Contains(out.String(), want) {
			t.Fatalf("writeTrace() missing %q:\n%s", want, out.String())
		}
	}
}
