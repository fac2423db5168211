package bulkimport

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	dombatch "github.com/kailas-cloud/idxmigrate/internal/domain/batch"
	"github.com/kailas-cloud/idxmigrate/internal/searchsvc"
	"github.com/kailas-cloud/idxmigrate/internal/stage"
)

// --- Mocks ---

type mockStage struct {
	objects map[string][]byte
}

func (m *mockStage) Read(_ context.Context, name string) ([]byte, error) {
	data, ok := m.objects[name]
	if !ok {
		return nil, stage.ErrNotFound
	}
	return data, nil
}

type mockUploader struct {
	calls   []string // payloads in call order
	results map[int]*searchsvc.UploadResult
	errs    map[int]error
}

func (m *mockUploader) UploadDocuments(_ context.Context, _ string, payload []byte) (*searchsvc.UploadResult, error) {
	n := len(m.calls)
	m.calls = append(m.calls, string(payload))
	if err := m.errs[n]; err != nil {
		return nil, err
	}
	if r := m.results[n]; r != nil {
		return r, nil
	}
	return &searchsvc.UploadResult{StatusCode: 200}, nil
}

func stagedFiles(sizes ...int) (*mockStage, []string) {
	st := &mockStage{objects: map[string][]byte{}}
	var names []string
	for i, size := range sizes {
		docs := make([]string, size)
		for j := range docs {
			docs[j] = fmt.Sprintf(`{"id":"%d-%d"}`, i, j)
		}
		name := dombatch.FileName("products")
		st.objects[name] = []byte(`{"value":[` + strings.Join(docs, ",") + `]}`)
		names = append(names, name)
	}
	return st, names
}

// --- Tests ---

func TestImport_AllSucceed(t *testing.T) {
	st, files := stagedFiles(500, 500, 200)
	up := &mockUploader{}

	sum := New(st, up).Import(context.Background(), "products", files)
	if sum.Imported != 3 || sum.Failed != 0 || sum.Docs != 1200 {
		t.Fatalf("summary = %+v", sum)
	}
	if len(up.calls) != 3 {
		t.Fatalf("uploads = %d, want 3", len(up.calls))
	}
	for i, name := range files {
		if up.calls[i] != string(st.objects[name]) {
			t.Errorf("upload %d is not the staged payload of %s", i, name)
		}
	}
}

func TestImport_PreservesGivenOrder(t *testing.T) {
	st, files := stagedFiles(1, 1, 1)
	files[0], files[2] = files[2], files[0]
	up := &mockUploader{}

	sum := New(st, up).Import(context.Background(), "products", files)
	for i, r := range sum.Results {
		if r.Name() != files[i] {
			t.Errorf("result %d = %s, want %s", i, r.Name(), files[i])
		}
	}
}

func TestImport_ServerErrorContinues(t *testing.T) {
	st, files := stagedFiles(500, 500, 200)
	up := &mockUploader{errs: map[int]error{1: &searchsvc.Error{Op: searchsvc.OpUpload, StatusCode: 500}}}

	sum := New(st, up).Import(context.Background(), "products", files)
	if len(up.calls) != 3 {
		t.Fatalf("uploads = %d, want 3 (no retry, no abort)", len(up.calls))
	}
	if sum.Failed != 1 || sum.Imported != 2 || sum.Docs != 700 {
		t.Errorf("summary = %+v", sum)
	}
	if sum.Results[1].Status() != dombatch.StatusError {
		t.Errorf("status = %s", sum.Results[1].Status())
	}
	var se *searchsvc.Error
	if errs := sum.Errors(); len(errs) != 1 || !errors.As(errs[0], &se) || se.StatusCode != 500 {
		t.Errorf("errors = %v", errs)
	}
}

func TestImport_StopOnError(t *testing.T) {
	st, files := stagedFiles(1, 1, 1)
	up := &mockUploader{errs: map[int]error{0: errors.New("boom")}}

	sum := New(st, up).WithStopOnError(true).Import(context.Background(), "products", files)
	if len(up.calls) != 1 {
		t.Fatalf("uploads = %d, want 1", len(up.calls))
	}
	if sum.Failed != 1 || sum.Skipped != 2 {
		t.Errorf("summary = %+v", sum)
	}
}

func TestImport_MultiStatus(t *testing.T) {
	st, files := stagedFiles(3)
	up := &mockUploader{results: map[int]*searchsvc.UploadResult{0: {
		StatusCode: 207,
		Succeeded:  2,
		Failed:     []searchsvc.ItemError{{Key: "0-1", StatusCode: 400, Message: "bad"}},
	}}}

	sum := New(st, up).Import(context.Background(), "products", files)
	if sum.Imported != 1 || sum.Rejected != 1 || sum.Failed != 0 {
		t.Fatalf("summary = %+v", sum)
	}
	if sum.Results[0].Status() != dombatch.StatusPartial {
		t.Errorf("status = %s", sum.Results[0].Status())
	}
}

func TestImport_MissingStagedFile(t *testing.T) {
	st, files := stagedFiles(1)
	files = append(files, dombatch.FileName("products"))
	up := &mockUploader{}

	sum := New(st, up).Import(context.Background(), "products", files)
	if sum.Failed != 1 || len(up.calls) != 1 {
		t.Fatalf("summary = %+v uploads = %d", sum, len(up.calls))
	}
	if !errors.Is(sum.Results[1].Err(), stage.ErrNotFound) {
		t.Errorf("err = %v", sum.Results[1].Err())
	}
}

func TestImport_ForeignFile(t *testing.T) {
	st, files := stagedFiles(1)
	foreign := dombatch.FileName("orders")
	st.objects[foreign] = []byte(`{"value":[{"id":"o"}]}`)
	files = append(files, foreign, dombatch.SchemaName("products"))
	up := &mockUploader{}

	sum := New(st, up).Import(context.Background(), "products", files)
	if sum.Imported != 1 || sum.Failed != 2 || len(up.calls) != 1 {
		t.Fatalf("summary = %+v uploads = %d", sum, len(up.calls))
	}
	for _, r := range sum.Results[1:] {
		if !errors.Is(r.Err(), ErrForeignFile) {
			t.Errorf("%s: err = %v, want ErrForeignFile", r.Name(), r.Err())
		}
	}
}

func TestImport_CanceledContext(t *testing.T) {
	st, files := stagedFiles(1, 1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	up := &mockUploader{}

	sum := New(st, up).Import(ctx, "products", files)
	if len(up.calls) != 0 || sum.Skipped != 2 {
		t.Errorf("summary = %+v uploads = %d", sum, len(up.calls))
	}
}

func TestImport_NoFiles(t *testing.T) {
	sum := New(&mockStage{}, &mockUploader{}).Import(context.Background(), "products", nil)
	if sum.Imported != 0 || sum.Failed != 0 || len(sum.Results) != 0 {
		t.Errorf("summary = %+v", sum)
	}
}
