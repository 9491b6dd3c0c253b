package fusion_test

import (
	"context"
	"fmt"
	"reflect"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"

	app "github.com/mohammadpnp/person-fusion/internal/application/fusion"
	domain "github.com/mohammadpnp/person-fusion/internal/domain/fusion"
	"github.com/mohammadpnp/person-fusion/internal/platform/logger"
)

var zhangSan = domain.ExtractedFields{
	ChineseName: "张三",
	BirthDate:   "1990-01-01",
	Gender:      "男",
	Nationality: "中国",
}

type workerFixture struct {
	task      domain.ImportTask
	tasks     *fakeTaskRepo
	persons   *fakePersonRepo
	results   *fakeResultRepo
	blobs     *fakeBlobStore
	parser    *fakeParser
	extractor *fakeExtractor
	queue     *fakeQueue
	worker    *app.ImportWorker
}

func newWorkerFixture(t *testing.T, fileType domain.FileType, doc domain.ParsedDocument, persons ...domain.Person) *workerFixture {
	t.Helper()

	taskID := uuid.NewString()
	task := domain.ImportTask{
		ID:          taskID,
		FileName:    "people." + string(fileType),
		FileType:    fileType,
		StoragePath: taskID + "/people." + string(fileType),
		Status:      domain.TaskStatusPending,
		Creator:     &domain.Creator{UserID: "u1", Username: "alice"},
	}

	f := &workerFixture{
		task:      task,
		tasks:     newFakeTaskRepo(task),
		persons:   newFakePersonRepo(persons...),
		blobs:     newFakeBlobStore(),
		parser:    &fakeParser{doc: doc},
		extractor: &fakeExtractor{},
		queue:     &fakeQueue{},
	}
	f.results = newFakeResultRepo(f.persons)
	f.blobs.blobs[task.StoragePath] = []byte("file")
	f.worker = app.NewImportWorker(app.ImportWorkerDeps{
		Tasks:     f.tasks,
		Results:   f.results,
		Tags:      &fakeTagRepo{tags: []domain.Tag{{Name: "军事", Category: "领域"}}},
		Blobs:     f.blobs,
		Parser:    f.parser,
		Extractor: f.extractor,
		Matcher:   app.NewSimilarityMatcher(f.persons),
		Queue:     f.queue,
	}, app.ImportWorkerConfig{Workers: 1}, logger.Nop())
	return f
}

func assertStatuses(t *testing.T, got []domain.TaskStatus, want ...domain.TaskStatus) {
	t.Helper()
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("unexpected status history: got %v, want %v", got, want)
	}
}

func TestImportWorkerSkipsFailingRowAndKeepsGoing(t *testing.T) {
	t.Parallel()

	rows := []string{"姓名 性别", "李四 男", "张三 男 1990-01-01 中国"}
	f := newWorkerFixture(t, domain.FileTypeSpreadsheet, domain.RowDocument(rows))
	f.extractor.fn = func(text string) (*domain.Extraction, error) {
		if strings.Contains(text, "李四") {
			return nil, errBoom
		}
		return extraction(zhangSan), nil
	}

	if err := f.worker.ProcessTask(context.Background(), f.task.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	task := f.tasks.get(f.task.ID)
	if task.Status != domain.TaskStatusSuccess || task.ExtractCount != 1 {
		t.Fatalf("unexpected task: status=%s count=%d", task.Status, task.ExtractCount)
	}
	if task.ErrorMessage != nil {
		t.Fatalf("row failure leaked into task error: %s", *task.ErrorMessage)
	}
	if task.OriginalText != strings.Join(rows, "\n") {
		t.Fatalf("unexpected original text: %q", task.OriginalText)
	}
	assertStatuses(t, f.tasks.statuses(f.task.ID),
		domain.TaskStatusPending, domain.TaskStatusExtracting, domain.TaskStatusMatching, domain.TaskStatusSuccess)

	if len(f.extractor.calls) != 2 {
		t.Fatalf("expected header to be skipped, got calls %v", f.extractor.calls)
	}
	results, _ := f.results.ListByTask(context.Background(), f.task.ID)
	if len(results) != 1 || results[0].Index != 2 || results[0].Identity.Name != "张三" {
		t.Fatalf("unexpected results: %+v", results)
	}
}

func TestImportWorkerHeaderOnlySpreadsheetSucceedsEmpty(t *testing.T) {
	t.Parallel()

	f := newWorkerFixture(t, domain.FileTypeDelimited, domain.RowDocument([]string{"name gender nationality"}))

	if err := f.worker.ProcessTask(context.Background(), f.task.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	task := f.tasks.get(f.task.ID)
	if task.Status != domain.TaskStatusSuccess || task.ExtractCount != 0 {
		t.Fatalf("unexpected task: status=%s count=%d", task.Status, task.ExtractCount)
	}
	if len(f.extractor.calls) != 0 {
		t.Fatalf("expected no extraction calls, got %d", len(f.extractor.calls))
	}
	assertStatuses(t, f.tasks.statuses(f.task.ID),
		domain.TaskStatusPending, domain.TaskStatusExtracting, domain.TaskStatusMatching, domain.TaskStatusSuccess)
}

func TestImportWorkerDocumentWithoutPersonSucceedsEmpty(t *testing.T) {
	t.Parallel()

	f := newWorkerFixture(t, domain.FileTypeWord, domain.FullTextDocument("meeting minutes with no people", nil))

	if err := f.worker.ProcessTask(context.Background(), f.task.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	task := f.tasks.get(f.task.ID)
	if task.Status != domain.TaskStatusSuccess || task.ExtractCount != 0 {
		t.Fatalf("unexpected task: status=%s count=%d", task.Status, task.ExtractCount)
	}
	if len(f.extractor.calls) != 1 {
		t.Fatalf("expected one extraction call for the whole document, got %d", len(f.extractor.calls))
	}
}

func TestImportWorkerAttachesDocumentImagesToResult(t *testing.T) {
	t.Parallel()

	images := []domain.Image{
		{Name: "image1.png", ContentType: "image/png", Data: []byte{0x89, 'P', 'N', 'G'}},
		{Name: "photo", ContentType: "image/jpeg", Data: []byte{0xFF, 0xD8, 0xFF}},
	}
	f := newWorkerFixture(t, domain.FileTypePDF, domain.FullTextDocument("张三简历", images))
	f.extractor.fn = func(string) (*domain.Extraction, error) { return extraction(zhangSan), nil }

	if err := f.worker.ProcessTask(context.Background(), f.task.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	results, _ := f.results.ListByTask(context.Background(), f.task.ID)
	if len(results) != 1 {
		t.Fatalf("expected one result, got %d", len(results))
	}
	if len(results[0].ImagePaths) != 2 {
		t.Fatalf("expected two image paths, got %v", results[0].ImagePaths)
	}
	first := f.task.ID + "/images/1.png"
	if results[0].ImagePaths[0] != first || !f.blobs.has(first) {
		t.Fatalf("expected %s to be stored and attached, got %v", first, results[0].ImagePaths)
	}
	if !strings.HasPrefix(results[0].ImagePaths[1], f.task.ID+"/images/2.") {
		t.Fatalf("unexpected second image path %s", results[0].ImagePaths[1])
	}
}

func TestImportWorkerFailsOnEmptyParse(t *testing.T) {
	t.Parallel()

	f := newWorkerFixture(t, domain.FileTypePDF, domain.FullTextDocument("   ", nil))

	if err := f.worker.ProcessTask(context.Background(), f.task.ID); err == nil {
		t.Fatal("expected error")
	}

	task := f.tasks.get(f.task.ID)
	if task.Status != domain.TaskStatusFailed {
		t.Fatalf("expected FAILED, got %s", task.Status)
	}
	if task.ErrorMessage == nil || !strings.Contains(*task.ErrorMessage, "no text") {
		t.Fatalf("unexpected error message: %v", task.ErrorMessage)
	}
	assertStatuses(t, f.tasks.statuses(f.task.ID),
		domain.TaskStatusPending, domain.TaskStatusExtracting, domain.TaskStatusFailed)
}

func TestImportWorkerFailsOnUnsupportedFileType(t *testing.T) {
	t.Parallel()

	f := newWorkerFixture(t, domain.FileTypeUnknown, domain.ParsedDocument{})
	f.parser.err = fmt.Errorf("%w: unknown", domain.ErrUnsupportedFileType)

	_ = f.worker.ProcessTask(context.Background(), f.task.ID)

	task := f.tasks.get(f.task.ID)
	if task.Status != domain.TaskStatusFailed || task.ErrorMessage == nil || !strings.Contains(*task.ErrorMessage, "unsupported file type") {
		t.Fatalf("unexpected task: %+v", task)
	}
}

func TestImportWorkerFailsWithoutStoredFile(t *testing.T) {
	t.Parallel()

	f := newWorkerFixture(t, domain.FileTypePDF, domain.FullTextDocument("x", nil))
	f.tasks.tasks[f.task.ID].StoragePath = " "

	_ = f.worker.ProcessTask(context.Background(), f.task.ID)

	task := f.tasks.get(f.task.ID)
	if task.Status != domain.TaskStatusFailed || task.ErrorMessage == nil || *task.ErrorMessage != domain.ErrNoStoredFile.Error() {
		t.Fatalf("unexpected task: %+v", task)
	}
	if f.parser.callCount() != 0 {
		t.Fatal("parser should not run without a stored file")
	}
	assertStatuses(t, f.tasks.statuses(f.task.ID), domain.TaskStatusPending, domain.TaskStatusFailed)
}

func TestImportWorkerFailsWhenDownloadFails(t *testing.T) {
	t.Parallel()

	f := newWorkerFixture(t, domain.FileTypePDF, domain.FullTextDocument("x", nil))
	f.blobs.getErr = errBoom

	_ = f.worker.ProcessTask(context.Background(), f.task.ID)

	task := f.tasks.get(f.task.ID)
	if task.Status != domain.TaskStatusFailed || !strings.Contains(*task.ErrorMessage, "download source file") {
		t.Fatalf("unexpected task: %+v", task)
	}
}

func TestImportWorkerIgnoresTerminalTasks(t *testing.T) {
	t.Parallel()

	f := newWorkerFixture(t, domain.FileTypePDF, domain.FullTextDocument("x", nil))
	f.tasks.tasks[f.task.ID].Status = domain.TaskStatusSuccess

	if err := f.worker.ProcessTask(context.Background(), f.task.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.parser.callCount() != 0 {
		t.Fatal("terminal task must not be processed again")
	}
}

func TestImportWorkerResumesExtractingTask(t *testing.T) {
	t.Parallel()

	f := newWorkerFixture(t, domain.FileTypePDF, domain.FullTextDocument("张三", nil))
	f.tasks.tasks[f.task.ID].Status = domain.TaskStatusExtracting
	f.extractor.fn = func(string) (*domain.Extraction, error) { return extraction(zhangSan), nil }

	if err := f.worker.ProcessTask(context.Background(), f.task.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if task := f.tasks.get(f.task.ID); task.Status != domain.TaskStatusSuccess || task.ExtractCount != 1 {
		t.Fatalf("unexpected task: %+v", task)
	}
}

func waitErr(t *testing.T, done <-chan error) error {
	t.Helper()
	select {
	case err := <-done:
		return err
	case <-time.After(5 * time.Second):
		t.Fatal("worker did not finish")
		return nil
	}
}

func TestImportWorkerDuplicateDispatchKeepsFirstOutcome(t *testing.T) {
	t.Parallel()

	f := newWorkerFixture(t, domain.FileTypePDF, domain.FullTextDocument("张三 男 1990-01-01 中国", nil))

	var extractCalls atomic.Int32
	slowExtracting := make(chan struct{})
	releaseSlow := make(chan struct{})
	f.extractor.fn = func(string) (*domain.Extraction, error) {
		if extractCalls.Add(1) == 1 {
			close(slowExtracting)
			<-releaseSlow
		}
		return extraction(zhangSan), nil
	}

	var saveCalls atomic.Int32
	fastSaving := make(chan struct{})
	releaseFast := make(chan struct{})
	f.results.beforeSave = func() {
		if saveCalls.Add(1) == 1 {
			close(fastSaving)
			<-releaseFast
		}
	}

	ctx := context.Background()
	slowDone := make(chan error, 1)
	go func() { slowDone <- f.worker.ProcessTask(ctx, f.task.ID) }()
	<-slowExtracting

	fastDone := make(chan error, 1)
	go func() { fastDone <- f.worker.ProcessTask(ctx, f.task.ID) }()
	<-fastSaving

	// The slow worker now loses the race into MATCHING while the fast one is mid-write.
	close(releaseSlow)
	if err := waitErr(t, slowDone); err != nil {
		t.Fatalf("slow worker: %v", err)
	}
	if task := f.tasks.get(f.task.ID); task.Status != domain.TaskStatusMatching {
		t.Fatalf("slow worker must not touch the task, got status %s", task.Status)
	}

	close(releaseFast)
	if err := waitErr(t, fastDone); err != nil {
		t.Fatalf("fast worker: %v", err)
	}

	task := f.tasks.get(f.task.ID)
	if task.Status != domain.TaskStatusSuccess || task.ExtractCount != 1 {
		t.Fatalf("unexpected task: status=%s count=%d", task.Status, task.ExtractCount)
	}
	if task.ErrorMessage != nil {
		t.Fatalf("unexpected error message: %s", *task.ErrorMessage)
	}
	assertStatuses(t, f.tasks.statuses(f.task.ID),
		domain.TaskStatusPending, domain.TaskStatusExtracting, domain.TaskStatusExtracting,
		domain.TaskStatusMatching, domain.TaskStatusSuccess)

	results, _ := f.results.ListByTask(ctx, f.task.ID)
	if len(results) != 1 {
		t.Fatalf("expected one persisted result, got %d", len(results))
	}
	if f.parser.callCount() != 2 {
		t.Fatalf("expected both workers to parse, got %d", f.parser.callCount())
	}
}

func TestImportWorkerLeavesTaskSettledElsewhereDuringWrite(t *testing.T) {
	t.Parallel()

	f := newWorkerFixture(t, domain.FileTypePDF, domain.FullTextDocument("张三", nil))
	f.extractor.fn = func(string) (*domain.Extraction, error) { return extraction(zhangSan), nil }
	f.results.beforeSave = func() {
		_ = f.tasks.Fail(context.Background(), f.task.ID, "cancelled by operator")
	}

	if err := f.worker.ProcessTask(context.Background(), f.task.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	task := f.tasks.get(f.task.ID)
	if task.Status != domain.TaskStatusFailed || task.ErrorMessage == nil || *task.ErrorMessage != "cancelled by operator" {
		t.Fatalf("unexpected task: %+v", task)
	}
	assertStatuses(t, f.tasks.statuses(f.task.ID),
		domain.TaskStatusPending, domain.TaskStatusExtracting, domain.TaskStatusMatching, domain.TaskStatusFailed)
}

func TestImportWorkerMatchesOnlyVisibleFullIdentities(t *testing.T) {
	t.Parallel()

	public := domain.Person{ID: uuid.NewString(), Name: "张三", BirthDate: "1990-01-01", Gender: "男", Nationality: "中国", IsPublic: true, OwnerID: "u9"}
	own := domain.Person{ID: uuid.NewString(), Name: "张三", BirthDate: "1990-01-01", Gender: "男", Nationality: "中国", OwnerID: "u1"}
	foreign := domain.Person{ID: uuid.NewString(), Name: "张三", BirthDate: "1990-01-01", Gender: "男", Nationality: "中国", OwnerID: "u2"}

	rows := []string{"header", "张三 全", "张三 缺国籍"}
	f := newWorkerFixture(t, domain.FileTypeSpreadsheet, domain.RowDocument(rows), public, own, foreign)
	f.extractor.fn = func(text string) (*domain.Extraction, error) {
		if strings.Contains(text, "缺国籍") {
			partial := zhangSan
			partial.Nationality = ""
			return extraction(partial), nil
		}
		full := zhangSan
		full.BirthDate = "1990/01/01"
		return extraction(full), nil
	}

	if err := f.worker.ProcessTask(context.Background(), f.task.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	matches := f.results.allMatches()
	if len(matches) != 2 {
		t.Fatalf("expected public and own matches only, got %+v", matches)
	}
	matched := map[string]bool{}
	for _, m := range matches {
		matched[m.PersonID] = true
		r := f.results.get(m.ResultID)
		if !r.Identity.IsComplete() {
			t.Fatalf("match created for partial identity: %+v", r.Identity)
		}
	}
	if !matched[public.ID] || !matched[own.ID] || matched[foreign.ID] {
		t.Fatalf("unexpected matched persons: %v", matched)
	}
	if f.persons.findCalls != 1 {
		t.Fatalf("partial identity must not hit the store, got %d lookups", f.persons.findCalls)
	}
	if task := f.tasks.get(f.task.ID); task.ExtractCount != 2 {
		t.Fatalf("expected two results, got %d", task.ExtractCount)
	}
}

func TestImportWorkerRecoversFromExtractorPanic(t *testing.T) {
	t.Parallel()

	f := newWorkerFixture(t, domain.FileTypePDF, domain.FullTextDocument("张三", nil))
	f.extractor.fn = func(string) (*domain.Extraction, error) { panic("model client exploded") }

	if err := f.worker.ProcessTask(context.Background(), f.task.ID); err == nil {
		t.Fatal("expected error")
	}
	task := f.tasks.get(f.task.ID)
	if task.Status != domain.TaskStatusFailed || !strings.Contains(*task.ErrorMessage, "model client exploded") {
		t.Fatalf("unexpected task: %+v", task)
	}
}

func TestImportWorkerFailsWhenBulkWriteFails(t *testing.T) {
	t.Parallel()

	f := newWorkerFixture(t, domain.FileTypePDF, domain.FullTextDocument("张三", nil))
	f.extractor.fn = func(string) (*domain.Extraction, error) { return extraction(zhangSan), nil }
	f.results.saveErr = errBoom

	_ = f.worker.ProcessTask(context.Background(), f.task.ID)

	assertStatuses(t, f.tasks.statuses(f.task.ID),
		domain.TaskStatusPending, domain.TaskStatusExtracting, domain.TaskStatusMatching, domain.TaskStatusFailed)
}

func TestImportWorkerTruncatesLongFailureReasons(t *testing.T) {
	t.Parallel()

	f := newWorkerFixture(t, domain.FileTypePDF, domain.FullTextDocument("x", nil))
	f.blobs.getErr = fmt.Errorf("%s", strings.Repeat("错", 2000))

	_ = f.worker.ProcessTask(context.Background(), f.task.ID)

	msg := *f.tasks.get(f.task.ID).ErrorMessage
	if len(msg) > 1000 {
		t.Fatalf("expected reason of at most 1000 bytes, got %d", len(msg))
	}
	if !strings.HasPrefix(msg, "download source file") {
		t.Fatalf("unexpected reason prefix: %.40s", msg)
	}
}

func TestImportWorkerRecover(t *testing.T) {
	t.Parallel()

	pending := domain.ImportTask{ID: uuid.NewString(), Status: domain.TaskStatusPending, StoragePath: "p"}
	extracting := domain.ImportTask{ID: uuid.NewString(), Status: domain.TaskStatusExtracting, StoragePath: "e"}
	savedMatching := domain.ImportTask{ID: uuid.NewString(), Status: domain.TaskStatusMatching, StoragePath: "m1"}
	lostMatching := domain.ImportTask{ID: uuid.NewString(), Status: domain.TaskStatusMatching, StoragePath: "m2"}
	done := domain.ImportTask{ID: uuid.NewString(), Status: domain.TaskStatusSuccess, StoragePath: "s"}

	tasks := newFakeTaskRepo(pending, extracting, savedMatching, lostMatching, done)
	persons := newFakePersonRepo()
	results := newFakeResultRepo(persons, domain.ExtractResult{ID: uuid.NewString(), TaskID: savedMatching.ID})
	queue := &fakeQueue{}

	worker := app.NewImportWorker(app.ImportWorkerDeps{
		Tasks:   tasks,
		Results: results,
		Queue:   queue,
	}, app.ImportWorkerConfig{}, logger.Nop())

	if err := worker.Recover(context.Background()); err != nil {
		t.Fatalf("recover failed: %v", err)
	}

	if got := queue.ids(); !reflect.DeepEqual(got, []string{pending.ID, extracting.ID}) {
		t.Fatalf("unexpected dispatched ids: %v", got)
	}
	if task := tasks.get(savedMatching.ID); task.Status != domain.TaskStatusSuccess || task.ExtractCount != 1 {
		t.Fatalf("expected saved matching task to complete, got %+v", task)
	}
	if task := tasks.get(lostMatching.ID); task.Status != domain.TaskStatusFailed {
		t.Fatalf("expected lost matching task to fail, got %s", task.Status)
	}
	if task := tasks.get(done.ID); task.Status != domain.TaskStatusSuccess {
		t.Fatalf("terminal task changed: %s", task.Status)
	}
}

func TestImportWorkerStartProcessesDispatchedTasks(t *testing.T) {
	t.Parallel()

	f := newWorkerFixture(t, domain.FileTypePDF, domain.FullTextDocument("张三", nil))
	f.extractor.fn = func(string) (*domain.Extraction, error) { return extraction(zhangSan), nil }
	f.queue.ch = make(chan string, 4)

	ctx, cancel := context.WithCancel(context.Background())
	f.worker.Start(ctx)
	f.worker.Start(ctx)

	if err := f.queue.Dispatch(ctx, f.task.ID); err != nil {
		t.Fatalf("dispatch failed: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for f.tasks.get(f.task.ID).Status != domain.TaskStatusSuccess {
		if time.Now().After(deadline) {
			cancel()
			t.Fatalf("task not processed, status %s", f.tasks.get(f.task.ID).Status)
		}
		time.Sleep(5 * time.Millisecond)
	}

	cancel()
	f.worker.Wait()
}
