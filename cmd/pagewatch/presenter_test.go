package main

import (
	"bytes"
	"context"
	"io"
	"log"
	"strings"
	"testing"

	"gitlab.com/stephen-fox/pagewatch/checksum"
	"gitlab.com/stephen-fox/pagewatch/diff"
	"gitlab.com/stephen-fox/pagewatch/integrity"
	"gitlab.com/stephen-fox/pagewatch/memory"
	"gitlab.com/stephen-fox/pagewatch/patchscript"
)

func testReport(actual uint64) integrity.Report {
	changes := []diff.Change{{Address: 0x40100a, Old: 0x90, New: 0xcc}}
	apply, undo := patchscript.SynthesizePair("", changes)

	return integrity.Report{
		Sweep:    1,
		Region:   memory.Region{Base: 0x401000, Size: 0x1000, Protection: memory.ProtectionExecuteRead},
		Expected: checksum.Empty,
		Actual:   checksum.Fingerprint(actual),
		Changes:  changes,
		Apply:    apply,
		Undo:     undo,
	}
}

func TestPresenter_NamesScripts(t *testing.T) {
	lines := make(chan string, 1)
	lines <- "  Hotfix  "

	out := bytes.NewBuffer(nil)
	p := &presenter{
		out:    out,
		lines:  lines,
		syntax: patchscript.SyntaxC,
	}

	err := p.present(context.Background(), testReport(0))
	if err != nil {
		t.Fatal(err)
	}

	for _, exp := range []string{
		"page change: 0x401000",
		"change address: 0x40100a | original byte: 0x90 | changed byte: 0xcc",
		"Script name? : ",
		"void Hotfix(HANDLE ProcessHandle)",
		"void UndoHotfix(HANDLE ProcessHandle)",
		"\tBYTE Buffer0 = 0x90;",
	} {
		if !strings.Contains(out.String(), exp) {
			t.Fatalf("output does not contain %q:\n%s", exp, out.String())
		}
	}
}

func TestPresenter_ClosedInputUsesDefaults(t *testing.T) {
	lines := make(chan string)
	close(lines)

	out := bytes.NewBuffer(nil)
	p := &presenter{
		out:    out,
		lines:  lines,
		syntax: patchscript.SyntaxC,
	}

	for i := 0; i < 2; i++ {
		err := p.present(context.Background(), testReport(0))
		if err != nil {
			t.Fatal(err)
		}
	}

	if strings.Count(out.String(), "Script name? : ") != 1 {
		t.Fatalf("expected to prompt once before input was closed:\n%s", out.String())
	}

	if strings.Count(out.String(), "void UndoDefaultMacroName(HANDLE ProcessHandle)") != 2 {
		t.Fatalf("expected default names:\n%s", out.String())
	}
}

func TestReportQueue_Dedupe(t *testing.T) {
	queue := newReportQueue(8, false, log.New(io.Discard, "", 0))

	queue.offer(testReport(0))
	queue.offer(testReport(0))
	queue.offer(testReport(1))

	if len(queue.reports) != 2 {
		t.Fatalf("expected 2 queued reports - got %d", len(queue.reports))
	}
}

func TestReportQueue_Repeat(t *testing.T) {
	queue := newReportQueue(8, true, log.New(io.Discard, "", 0))

	for i := 0; i < 3; i++ {
		queue.offer(testReport(0))
	}

	if len(queue.reports) != 3 {
		t.Fatalf("expected 3 queued reports - got %d", len(queue.reports))
	}
}

func TestReportQueue_DropsWhenFull(t *testing.T) {
	logs := bytes.NewBuffer(nil)
	queue := newReportQueue(1, false, log.New(logs, "", 0))

	queue.offer(testReport(0))
	queue.offer(testReport(1))

	if len(queue.reports) != 1 {
		t.Fatalf("expected 1 queued report - got %d", len(queue.reports))
	}

	if !strings.Contains(logs.String(), "dropping report for 0x401000") {
		t.Fatalf("expected a drop log line - got %q", logs.String())
	}

	<-queue.reports
	queue.offer(testReport(1))

	if len(queue.reports) != 1 {
		t.Fatal("expected a dropped report to be queued once there is room")
	}
}

func TestReportQueue_ReappliedAfterUndo(t *testing.T) {
	arena := memory.NewArena().
		AddModule(memory.Module{Name: "target.exe", Base: 0x401000, ImageSize: 0x1000}).
		MapOrExit(0x401000, bytes.Repeat([]byte{0x90}, 0x1000), memory.ProtectionExecuteRead)

	monitor := integrity.NewMonitorOrExit(integrity.Config{Target: arena})

	err := monitor.Init()
	if err != nil {
		t.Fatal(err)
	}

	queue := newReportQueue(16, false, log.New(io.Discard, "", 0))

	sweep := func() integrity.SweepResult {
		result, err := monitor.Sweep()
		if err != nil {
			t.Fatal(err)
		}

		for _, r := range result.Reports {
			queue.offer(r)
		}

		queue.forgetClean(result)

		return result
	}

	err = arena.WriteMemory(0x40100a, []byte{0xcc})
	if err != nil {
		t.Fatal(err)
	}

	first := sweep()
	if len(queue.reports) != 1 {
		t.Fatalf("expected 1 queued report - got %d", len(queue.reports))
	}
	<-queue.reports

	sweep()
	if len(queue.reports) != 0 {
		t.Fatal("expected an unchanged modification to not be queued again")
	}

	err = patchscript.Replay(arena, first.Reports[0].Undo, nil)
	if err != nil {
		t.Fatal(err)
	}

	clean := sweep()
	if len(clean.Clean) != 1 || len(queue.reports) != 0 {
		t.Fatalf("expected a clean sweep - got %+v", clean)
	}

	err = arena.WriteMemory(0x40100a, []byte{0xcc})
	if err != nil {
		t.Fatal(err)
	}

	sweep()
	if len(queue.reports) != 1 {
		t.Fatalf("expected the re-applied modification to be queued - got %d reports",
			len(queue.reports))
	}
}
