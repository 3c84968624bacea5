package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/kdus09/BotAutoGuiTinNhan/internal/job"
	"github.com/kdus09/BotAutoGuiTinNhan/pkg/logx"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(Config{Path: filepath.Join(t.TempDir(), "bot.db")}, logx.Nop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func sampleJob(owner int64, runAt int64) job.Job {
	return job.Job{
		Owner:       owner,
		Payload:     job.MessageRef{ChatID: owner, MessageID: 42},
		Mode:        job.ModeCopy,
		Target:      -100200300,
		RunAt:       runAt,
		Repeat:      job.RepeatNone,
		DeleteAfter: 0,
	}
}

func TestCreateAndGetJob(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	ctx := context.Background()

	in := sampleJob(7, time.Now().Add(time.Hour).UnixMilli())
	in.Repeat = job.RepeatDaily
	in.DeleteAfter = 600_000

	created, err := s.CreateJob(ctx, in)
	if err != nil {
		t.Fatalf("CreateJob: %v", err)
	}
	if created.ID == 0 {
		t.Fatal("expected assigned id")
	}
	if created.Status != job.StatusPending {
		t.Fatalf("Status = %s, want pending", created.Status)
	}

	got, err := s.GetJob(ctx, created.ID)
	if err != nil {
		t.Fatalf("GetJob: %v", err)
	}
	if got != created {
		t.Fatalf("roundtrip mismatch:\n got %+v\nwant %+v", got, created)
	}
}

func TestGetJobNotFound(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	_, err := s.GetJob(context.Background(), 12345)
	if !errors.Is(err, job.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestJobIDsAreMonotonic(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	ctx := context.Background()

	a, err := s.CreateJob(ctx, sampleJob(1, 1000))
	if err != nil {
		t.Fatalf("CreateJob: %v", err)
	}
	// Terminal rows keep their id reserved; AUTOINCREMENT never reuses it.
	if err := s.MarkStatus(ctx, a.ID, job.StatusCancelled, ""); err != nil {
		t.Fatalf("MarkStatus: %v", err)
	}
	b, err := s.CreateJob(ctx, sampleJob(1, 2000))
	if err != nil {
		t.Fatalf("CreateJob: %v", err)
	}
	if b.ID <= a.ID {
		t.Fatalf("ids not monotonic: %d then %d", a.ID, b.ID)
	}
}

func TestMarkStatusMonotonic(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	ctx := context.Background()

	j, err := s.CreateJob(ctx, sampleJob(2, 1000))
	if err != nil {
		t.Fatalf("CreateJob: %v", err)
	}

	if err := s.MarkStatus(ctx, j.ID, job.StatusSent, ""); err != nil {
		t.Fatalf("MarkStatus sent: %v", err)
	}

	// Any further transition must fail: terminal states are final.
	for _, to := range []job.Status{job.StatusFailed, job.StatusCancelled, job.StatusSent} {
		err := s.MarkStatus(ctx, j.ID, to, "late")
		if !errors.Is(err, job.ErrInvalidTransition) {
			t.Fatalf("sent -> %s: err = %v, want ErrInvalidTransition", to, err)
		}
	}

	got, err := s.GetJob(ctx, j.ID)
	if err != nil {
		t.Fatalf("GetJob: %v", err)
	}
	if got.Status != job.StatusSent {
		t.Fatalf("Status = %s, want sent", got.Status)
	}
}

func TestMarkStatusRejectsPendingTarget(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	ctx := context.Background()

	j, err := s.CreateJob(ctx, sampleJob(2, 1000))
	if err != nil {
		t.Fatalf("CreateJob: %v", err)
	}
	if err := s.MarkStatus(ctx, j.ID, job.StatusPending, ""); !errors.Is(err, job.ErrInvalidTransition) {
		t.Fatalf("err = %v, want ErrInvalidTransition", err)
	}
}

func TestMarkStatusNotFound(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	err := s.MarkStatus(context.Background(), 999, job.StatusCancelled, "")
	if !errors.Is(err, job.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestMarkStatusRecordsError(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	ctx := context.Background()

	j, err := s.CreateJob(ctx, sampleJob(3, 1000))
	if err != nil {
		t.Fatalf("CreateJob: %v", err)
	}
	if err := s.MarkStatus(ctx, j.ID, job.StatusFailed, "forbidden: bot was kicked"); err != nil {
		t.Fatalf("MarkStatus failed: %v", err)
	}
	got, err := s.GetJob(ctx, j.ID)
	if err != nil {
		t.Fatalf("GetJob: %v", err)
	}
	if got.Status != job.StatusFailed || got.Error != "forbidden: bot was kicked" {
		t.Fatalf("got %+v", got)
	}
}

func TestListPendingOrderAndFilter(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	ctx := context.Background()

	j1, _ := s.CreateJob(ctx, sampleJob(10, 3000))
	j2, _ := s.CreateJob(ctx, sampleJob(10, 1000))
	j3, _ := s.CreateJob(ctx, sampleJob(11, 2000))
	done, _ := s.CreateJob(ctx, sampleJob(10, 500))
	if err := s.MarkStatus(ctx, done.ID, job.StatusSent, ""); err != nil {
		t.Fatalf("MarkStatus: %v", err)
	}

	all, err := s.ListPending(ctx)
	if err != nil {
		t.Fatalf("ListPending: %v", err)
	}
	if len(all) != 3 || all[0].ID != j2.ID || all[1].ID != j3.ID || all[2].ID != j1.ID {
		t.Fatalf("unexpected order: %+v", all)
	}

	mine, err := s.ListPendingByOwner(ctx, 10)
	if err != nil {
		t.Fatalf("ListPendingByOwner: %v", err)
	}
	if len(mine) != 2 || mine[0].ID != j2.ID || mine[1].ID != j1.ID {
		t.Fatalf("unexpected owner list: %+v", mine)
	}
}

func TestDraftLifecycle(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	ctx := context.Background()

	if _, err := s.GetDraft(ctx, 5); !errors.Is(err, job.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}

	d := job.Draft{Owner: 5}
	if err := s.UpsertDraft(ctx, d); err != nil {
		t.Fatalf("UpsertDraft: %v", err)
	}

	got, err := s.GetDraft(ctx, 5)
	if err != nil {
		t.Fatalf("GetDraft: %v", err)
	}
	if got.Mode != job.ModeCopy || got.Repeat != job.RepeatNone {
		t.Fatalf("defaults not applied: %+v", got)
	}

	// Field-by-field mutation: repeat and delete_after persist with the rest.
	got.Payload = job.MessageRef{ChatID: 5, MessageID: 77}
	got.Target = -100555
	got.RunAt = 1893456000000
	got.Repeat = job.RepeatWeekly
	got.DeleteAfter = 3_600_000
	if err := s.UpsertDraft(ctx, got); err != nil {
		t.Fatalf("UpsertDraft update: %v", err)
	}
	got2, err := s.GetDraft(ctx, 5)
	if err != nil {
		t.Fatalf("GetDraft: %v", err)
	}
	if got2 != got {
		t.Fatalf("roundtrip mismatch:\n got %+v\nwant %+v", got2, got)
	}

	if err := s.DeleteDraft(ctx, 5); err != nil {
		t.Fatalf("DeleteDraft: %v", err)
	}
	if _, err := s.GetDraft(ctx, 5); !errors.Is(err, job.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound after delete", err)
	}
	// Deleting again is a no-op.
	if err := s.DeleteDraft(ctx, 5); err != nil {
		t.Fatalf("DeleteDraft again: %v", err)
	}
}

func TestChannelUpsert(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	ctx := context.Background()

	first := job.Channel{ChatID: -100777, Title: "News", Type: "channel", AddedAt: 100}
	if err := s.SaveChannel(ctx, first); err != nil {
		t.Fatalf("SaveChannel: %v", err)
	}
	if err := s.SaveChannel(ctx, job.Channel{ChatID: -100888, Title: "Chat", Type: "supergroup", AddedAt: 200}); err != nil {
		t.Fatalf("SaveChannel: %v", err)
	}
	// Re-register with a new title; added_at must survive.
	if err := s.SaveChannel(ctx, job.Channel{ChatID: -100777, Title: "News v2", Type: "channel", AddedAt: 300}); err != nil {
		t.Fatalf("SaveChannel: %v", err)
	}

	chans, err := s.ListChannels(ctx)
	if err != nil {
		t.Fatalf("ListChannels: %v", err)
	}
	if len(chans) != 2 {
		t.Fatalf("len = %d, want 2", len(chans))
	}
	if chans[0].ChatID != -100888 {
		t.Fatalf("expected newest first, got %+v", chans)
	}
	if chans[1].Title != "News v2" || chans[1].AddedAt != 100 {
		t.Fatalf("upsert semantics broken: %+v", chans[1])
	}
}

func TestPruneTerminal(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	ctx := context.Background()

	old := sampleJob(1, 1000)
	old.CreatedAt = time.Now().Add(-48 * time.Hour).UnixMilli()
	oldJob, _ := s.CreateJob(ctx, old)
	_ = s.MarkStatus(ctx, oldJob.ID, job.StatusSent, "")

	oldPending := sampleJob(1, 2000)
	oldPending.CreatedAt = old.CreatedAt
	keepPending, _ := s.CreateJob(ctx, oldPending)

	fresh, _ := s.CreateJob(ctx, sampleJob(1, 3000))
	_ = s.MarkStatus(ctx, fresh.ID, job.StatusFailed, "x")

	n, err := s.PruneTerminal(ctx, time.Now().Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("PruneTerminal: %v", err)
	}
	if n != 1 {
		t.Fatalf("pruned %d rows, want 1", n)
	}
	if _, err := s.GetJob(ctx, keepPending.ID); err != nil {
		t.Fatalf("pending row was pruned: %v", err)
	}
	if _, err := s.GetJob(ctx, fresh.ID); err != nil {
		t.Fatalf("fresh terminal row was pruned: %v", err)
	}
	if _, err := s.GetJob(ctx, oldJob.ID); !errors.Is(err, job.ErrNotFound) {
		t.Fatalf("old terminal row survived: %v", err)
	}
}
