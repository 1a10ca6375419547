package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/fieldreport/reporting-api/internal/core/domain"
	"github.com/fieldreport/reporting-api/internal/core/ports"
)

func validSubmission() ports.SubmitReportInput {
	return ports.SubmitReportInput{
		CustomerName:   "PT Maju",
		Location:       "Gudang 3",
		SubmissionTime: "09:00:00",
		Description:    "Stock check",
	}
}

type reportFixture struct {
	store  *memStore
	photos *stubPhotoStore
	idem   *stubIdempotency
	audit  *recordingAudit
	svc    *ReportService
	admin  *domain.User
	alice  *domain.User
	bob    *domain.User
}

func newReportFixture(t *testing.T) *reportFixture {
	t.Helper()
	f := &reportFixture{
		store:  newMemStore(),
		photos: &stubPhotoStore{},
		idem:   newStubIdempotency(),
		audit:  &recordingAudit{},
	}
	f.svc = NewReportService(stubReportRepo{f.store}, f.photos, f.idem, f.audit, jakarta(t), zerolog.Nop())

	users := NewUserService(stubUserRepo{f.store}, nil, BootstrapAdmin{}, zerolog.Nop())
	mk := func(name, role string) *domain.User {
		u, err := users.Create(context.Background(), "", ports.CreateUserInput{Username: name, Role: role, Password: "p"})
		if err != nil {
			t.Fatalf("create %s: %v", name, err)
		}
		return u
	}
	f.admin = mk("root", "admin")
	f.alice = mk("alice", "user")
	f.bob = mk("bob", "user")
	return f
}

func TestReportService_Submit_NormalizesTimes(t *testing.T) {
	f := newReportFixture(t)

	in := validSubmission()
	in.SubmissionTime = "14:30:00"
	in.EndTime = "15:45"
	in.Date = "2024-05-01"

	res, err := f.svc.Submit(context.Background(), f.alice, in)
	if err != nil {
		t.Fatalf("Submit returned error: %v", err)
	}
	r := res.Report
	if r.SubmissionTime != "21:30:00" {
		t.Fatalf("submissionTime = %q, want 21:30:00", r.SubmissionTime)
	}
	if r.EndTime == nil || *r.EndTime != "22:45:00" {
		t.Fatalf("endTime = %v, want 22:45:00", r.EndTime)
	}
	if r.ReportDate == nil || *r.ReportDate != "2024-05-01" {
		t.Fatalf("date = %v", r.ReportDate)
	}
	if r.UserID != f.alice.ID {
		t.Fatalf("owner = %s, want %s", r.UserID, f.alice.ID)
	}
	if r.Photo != nil {
		t.Fatalf("expected no photo, got %q", *r.Photo)
	}
	if res.Replayed {
		t.Fatalf("first submission reported as replay")
	}
}

func TestReportService_Submit_Validation(t *testing.T) {
	f := newReportFixture(t)

	tests := []struct {
		name   string
		mutate func(*ports.SubmitReportInput)
		field  string
	}{
		{"missing submission time", func(in *ports.SubmitReportInput) { in.SubmissionTime = "" }, "submissionTime"},
		{"bad submission time", func(in *ports.SubmitReportInput) { in.SubmissionTime = "25:99:99" }, "submissionTime"},
		{"bad end time", func(in *ports.SubmitReportInput) { in.EndTime = "later" }, "endTime"},
		{"bad date", func(in *ports.SubmitReportInput) { in.Date = "01/05/2024" }, "date"},
		{"missing location", func(in *ports.SubmitReportInput) { in.Location = " " }, "location"},
		{"missing customer", func(in *ports.SubmitReportInput) { in.CustomerName = "" }, "customerName"},
		{"missing description", func(in *ports.SubmitReportInput) { in.Description = "" }, "description"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := validSubmission()
			in.Photo = photo("site.jpg")
			tt.mutate(&in)

			_, err := f.svc.Submit(context.Background(), f.alice, in)
			var verr *domain.ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
			if verr.Field != tt.field {
				t.Fatalf("field = %q, want %q", verr.Field, tt.field)
			}
		})
	}

	if len(f.store.reports) != 0 {
		t.Fatalf("rejected submissions were stored")
	}
	if len(f.photos.saved) != 0 {
		t.Fatalf("photos saved for rejected submissions: %v", f.photos.saved)
	}
}

func TestReportService_Submit_WithPhoto(t *testing.T) {
	f := newReportFixture(t)
	in := validSubmission()
	in.Photo = photo("site.jpg")

	res, err := f.svc.Submit(context.Background(), f.alice, in)
	if err != nil {
		t.Fatalf("Submit returned error: %v", err)
	}
	if res.Report.Photo == nil || *res.Report.Photo != "uploads/1700000000000-site.jpg" {
		t.Fatalf("unexpected photo path: %v", res.Report.Photo)
	}

	list, _ := f.svc.ListForRequester(context.Background(), f.alice)
	if len(list) != 1 || list[0].Photo == nil || *list[0].Photo != "/uploads/1700000000000-site.jpg" {
		t.Fatalf("listed photo should be served from /uploads, got %+v", list)
	}
}

func TestReportService_Submit_RemovesPhotoWhenInsertFails(t *testing.T) {
	f := newReportFixture(t)
	in := validSubmission()
	in.Photo = photo("site.jpg")
	ghost := &domain.User{ID: "deleted-user", Role: domain.RoleUser}

	if _, err := f.svc.Submit(context.Background(), ghost, in); err == nil {
		t.Fatalf("expected insert failure for unknown owner")
	}
	if len(f.photos.removed) != 1 || f.photos.removed[0] != f.photos.saved[0] {
		t.Fatalf("orphaned photo not removed: saved=%v removed=%v", f.photos.saved, f.photos.removed)
	}
}

func TestReportService_Submit_IdempotencyKeyReplays(t *testing.T) {
	f := newReportFixture(t)
	ctx := context.Background()
	in := validSubmission()
	in.IdempotencyKey = "k-1"

	first, err := f.svc.Submit(ctx, f.alice, in)
	if err != nil {
		t.Fatalf("first submit: %v", err)
	}
	second, err := f.svc.Submit(ctx, f.alice, in)
	if err != nil {
		t.Fatalf("second submit: %v", err)
	}
	if !second.Replayed || second.Report.ID != first.Report.ID {
		t.Fatalf("expected replay of %s, got %+v", first.Report.ID, second)
	}
	if len(f.store.reports) != 1 {
		t.Fatalf("expected one stored report, got %d", len(f.store.reports))
	}

	// Keys are scoped per user.
	third, err := f.svc.Submit(ctx, f.bob, in)
	if err != nil || third.Replayed {
		t.Fatalf("bob's submission should not replay alice's: %+v, %v", third, err)
	}
}

func TestReportService_Submit_IdempotencyStoreDownStillSubmits(t *testing.T) {
	f := newReportFixture(t)
	f.idem.claimErr = errStoreDown
	in := validSubmission()
	in.IdempotencyKey = "k-1"

	res, err := f.svc.Submit(context.Background(), f.alice, in)
	if err != nil || res.Replayed {
		t.Fatalf("expected fresh submission, got %+v, %v", res, err)
	}
}

func TestReportService_Submit_PendingKeyRejectsSecondSubmission(t *testing.T) {
	f := newReportFixture(t)
	gate := newGatedPhotoStore()
	f.svc.photos = gate
	ctx := context.Background()

	in := validSubmission()
	in.IdempotencyKey = "double-click"
	in.Photo = photo("site.jpg")

	type outcome struct {
		res *ports.SubmitReportResult
		err error
	}
	first := make(chan outcome, 1)
	go func() {
		res, err := f.svc.Submit(ctx, f.alice, in)
		first <- outcome{res, err}
	}()
	<-gate.entered

	retry := validSubmission()
	retry.IdempotencyKey = "double-click"
	retry.Photo = photo("site.jpg")
	if _, err := f.svc.Submit(ctx, f.alice, retry); !errors.Is(err, domain.ErrSubmissionPending) {
		t.Fatalf("expected ErrSubmissionPending while the first submission runs, got %v", err)
	}

	close(gate.release)
	got := <-first
	if got.err != nil || got.res.Replayed {
		t.Fatalf("first submission = %+v, %v", got.res, got.err)
	}

	again, err := f.svc.Submit(ctx, f.alice, validSubmission())
	if err != nil || again.Replayed {
		t.Fatalf("submission without a key should not replay: %+v, %v", again, err)
	}

	replay, err := f.svc.Submit(ctx, f.alice, retry)
	if err != nil || !replay.Replayed || replay.Report.ID != got.res.Report.ID {
		t.Fatalf("expected replay of %s, got %+v, %v", got.res.Report.ID, replay, err)
	}
	if n := len(f.store.reports); n != 2 {
		t.Fatalf("expected 2 stored reports, got %d", n)
	}
}

func TestReportService_Submit_ConcurrentSameKeyCreatesOneReport(t *testing.T) {
	f := newReportFixture(t)
	ctx := context.Background()

	const callers = 8
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		created int
		ids     = map[string]bool{}
	)
	start := make(chan struct{})
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			in := validSubmission()
			in.IdempotencyKey = "retry-storm"
			<-start
			res, err := f.svc.Submit(ctx, f.alice, in)
			if errors.Is(err, domain.ErrSubmissionPending) {
				return
			}
			if err != nil {
				t.Errorf("submit: %v", err)
				return
			}
			mu.Lock()
			defer mu.Unlock()
			if !res.Replayed {
				created++
			}
			ids[res.Report.ID] = true
		}()
	}
	close(start)
	wg.Wait()

	if created != 1 || len(ids) != 1 {
		t.Fatalf("expected one created report, got created=%d ids=%v", created, ids)
	}
	f.store.mu.Lock()
	defer f.store.mu.Unlock()
	if n := len(f.store.reports); n != 1 {
		t.Fatalf("same Idempotency-Key stored %d reports", n)
	}
}

func TestReportService_Submit_FailedSubmissionReleasesKey(t *testing.T) {
	f := newReportFixture(t)
	ctx := context.Background()

	bad := validSubmission()
	bad.IdempotencyKey = "k-1"
	bad.SubmissionTime = "25:00"
	if _, err := f.svc.Submit(ctx, f.alice, bad); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if f.idem.released != 1 {
		t.Fatalf("claim not released after failure")
	}

	fixed := validSubmission()
	fixed.IdempotencyKey = "k-1"
	res, err := f.svc.Submit(ctx, f.alice, fixed)
	if err != nil || res.Replayed {
		t.Fatalf("corrected retry should create a report: %+v, %v", res, err)
	}
}

func TestReportService_ListForRequester_RoleFiltering(t *testing.T) {
	f := newReportFixture(t)
	ctx := context.Background()
	for _, u := range []*domain.User{f.alice, f.alice, f.bob} {
		if _, err := f.svc.Submit(ctx, u, validSubmission()); err != nil {
			t.Fatalf("submit: %v", err)
		}
	}

	all, err := f.svc.ListForRequester(ctx, f.admin)
	if err != nil || len(all) != 3 {
		t.Fatalf("admin sees %d reports, err %v; want 3", len(all), err)
	}

	mine, err := f.svc.ListForRequester(ctx, f.alice)
	if err != nil || len(mine) != 2 {
		t.Fatalf("alice sees %d reports, err %v; want 2", len(mine), err)
	}
	for _, r := range mine {
		if r.UserID != f.alice.ID {
			t.Fatalf("alice received report owned by %s", r.UserID)
		}
	}

	if _, err := f.svc.ListForRequester(ctx, &domain.User{ID: "x", Role: "guest"}); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("expected ErrForbidden for unknown role, got %v", err)
	}
}

func TestReportService_ListForRequester_EmptyIsNotNil(t *testing.T) {
	f := newReportFixture(t)

	list, err := f.svc.ListForRequester(context.Background(), f.bob)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if list == nil || len(list) != 0 {
		t.Fatalf("expected empty non-nil slice, got %#v", list)
	}
}

func TestReportService_ListToday_UsesCivilDay(t *testing.T) {
	f := newReportFixture(t)
	ctx := context.Background()

	// 20:00 UTC on 1 May is 03:00 on 2 May in Jakarta; that civil day started
	// at 17:00 UTC on 1 May.
	now := time.Date(2024, 5, 1, 20, 0, 0, 0, time.UTC)
	for _, at := range []time.Time{
		now.Add(-4 * time.Hour), // 16:00 UTC, previous civil day
		now.Add(-2 * time.Hour), // 18:00 UTC, today
		now,
	} {
		f.svc.now = func() time.Time { return at }
		if _, err := f.svc.Submit(ctx, f.alice, validSubmission()); err != nil {
			t.Fatalf("submit: %v", err)
		}
	}
	f.svc.now = func() time.Time { return now }

	today, err := f.svc.ListToday(ctx)
	if err != nil {
		t.Fatalf("ListToday returned error: %v", err)
	}
	if len(today) != 2 {
		t.Fatalf("expected 2 reports today, got %d", len(today))
	}
	if !today[0].CreatedAt.After(today[1].CreatedAt) {
		t.Fatalf("expected newest first")
	}
}

func TestReportService_ListToday_StoreError(t *testing.T) {
	f := newReportFixture(t)
	f.store.listErr = errStoreDown

	if _, err := f.svc.ListToday(context.Background()); !errors.Is(err, errStoreDown) {
		t.Fatalf("expected wrapped store error, got %v", err)
	}
}
