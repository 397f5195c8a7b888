package storage

import (
	"os"
	"path/filepath"
	"testing"
)

func TestCreateWorkspaceAndOpen(t *testing.T) {
	local, err := NewLocal(filepath.Join(t.TempDir(), "jobs"))
	if err != nil {
		t.Fatalf("NewLocal returned error: %v", err)
	}

	ws, err := local.CreateWorkspace()
	if err != nil {
		t.Fatalf("CreateWorkspace returned error: %v", err)
	}
	if info, err := os.Stat(ws.OutDir); err != nil || !info.IsDir() {
		t.Fatalf("expected out dir to exist, err=%v", err)
	}

	opened, err := local.Open(ws.JobID)
	if err != nil {
		t.Fatalf("Open returned error: %v", err)
	}
	if opened.Dir != ws.Dir {
		t.Fatalf("Open dir = %s, want %s", opened.Dir, ws.Dir)
	}

	if err := local.Remove(ws.Dir); err != nil {
		t.Fatalf("Remove returned error: %v", err)
	}
	if _, err := os.Stat(ws.Dir); !os.IsNotExist(err) {
		t.Fatalf("expected workspace to be removed, stat err=%v", err)
	}
	if err := local.Remove(ws.Dir); err != nil {
		t.Fatalf("second Remove returned error: %v", err)
	}
}

func TestOpenRejectsTraversal(t *testing.T) {
	local, err := NewLocal(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocal returned error: %v", err)
	}
	for _, id := range []string{"", "../etc", "job-123"} {
		if _, err := local.Open(id); err != ErrInvalidJobID {
			t.Fatalf("Open(%q) err = %v, want ErrInvalidJobID", id, err)
		}
	}
}

func TestWriteAndReadJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "meta.json")
	in := map[string]int{"questions": 3}
	if err := WriteJSON(path, in); err != nil {
		t.Fatalf("WriteJSON returned error: %v", err)
	}
	var out map[string]int
	if err := ReadJSON(path, &out); err != nil {
		t.Fatalf("ReadJSON returned error: %v", err)
	}
	if out["questions"] != 3 {
		t.Fatalf("unexpected payload: %#v", out)
	}
}
