package repository

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	gormsqlite "github.com/glebarez/sqlite"
	"github.com/google/go-cmp/cmp"
	"gorm.io/gorm"

	"agritrace/internal/domain/lot"
	"agritrace/internal/infrastructure/persistence/sqlite/model"
	"agritrace/internal/infrastructure/persistence/sqlite/uow"
	"agritrace/internal/ports"
)

var testClock = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func setupLotRepository(t *testing.T) (*LotRepository, *gorm.DB) {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), "agritrace.sqlite")
	db, err := gorm.Open(gormsqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("get sql db: %v", err)
	}
	t.Cleanup(func() {
		_ = sqlDB.Close()
	})
	if err := db.AutoMigrate(model.All()...); err != nil {
		t.Fatalf("auto migrate: %v", err)
	}
	return NewLotRepository(db), db
}

func newTestLot(t *testing.T, id string, harvest string) lot.Lot {
	t.Helper()

	l, err := lot.Register(id, lot.FarmerRef{ID: "farmer-1", Name: "Ana"}, lot.Metadata{
		ProduceName:  "Heirloom Tomatoes",
		Origin:       "Green Valley Farms",
		PlantingDate: "2026-01-01",
		HarvestDate:  harvest,
		ItemCount:    250,
	}, testClock)
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	return l
}

func TestInsertAndGetLot(t *testing.T) {
	repo, _ := setupLotRepository(t)
	ctx := context.Background()

	created, err := repo.InsertLot(ctx, newTestLot(t, "LOT-1", "2026-02-01"))
	if err != nil {
		t.Fatalf("InsertLot() error = %v", err)
	}
	if created.Version != 1 {
		t.Fatalf("Version = %d, want 1", created.Version)
	}

	got, err := repo.GetLot(ctx, "LOT-1")
	if err != nil {
		t.Fatalf("GetLot() error = %v", err)
	}
	if diff := cmp.Diff(created, got); diff != "" {
		t.Fatalf("lot mismatch (-want +got):\n%s", diff)
	}

	if _, err := repo.InsertLot(ctx, newTestLot(t, "LOT-1", "2026-02-01")); !errors.Is(err, ports.ErrLotExists) {
		t.Fatalf("InsertLot(duplicate) error = %v, want ErrLotExists", err)
	}
	if _, err := repo.GetLot(ctx, "LOT-404"); !errors.Is(err, ports.ErrLotNotFound) {
		t.Fatalf("GetLot(missing) error = %v, want ErrLotNotFound", err)
	}
}

func TestReplaceHistoryRoundTripAndStatusProjection(t *testing.T) {
	repo, db := setupLotRepository(t)
	ctx := context.Background()

	created, err := repo.InsertLot(ctx, newTestLot(t, "LOT-1", "2026-02-01"))
	if err != nil {
		t.Fatalf("InsertLot() error = %v", err)
	}

	history, err := lot.Advance(created, lot.AdvanceRequest{
		Requested: lot.StatusInTransitToDistributor,
		Actor:     "Ana",
		Role:      lot.RoleFarmer,
		At:        testClock,
	})
	if err != nil {
		t.Fatalf("Advance() error = %v", err)
	}

	version, err := repo.ReplaceHistory(ctx, "LOT-1", created.Version, history, "2026-03-02T00:00:00Z")
	if err != nil {
		t.Fatalf("ReplaceHistory() error = %v", err)
	}
	if version != 2 {
		t.Fatalf("version = %d, want 2", version)
	}

	got, err := repo.GetLot(ctx, "LOT-1")
	if err != nil {
		t.Fatalf("GetLot() error = %v", err)
	}
	if diff := cmp.Diff(history, got.History); diff != "" {
		t.Fatalf("history mismatch (-want +got):\n%s", diff)
	}

	var row model.Lot
	if err := db.Where("lot_id = ?", "LOT-1").Take(&row).Error; err != nil {
		t.Fatalf("load row: %v", err)
	}
	if row.Status != string(lot.StatusInTransitToDistributor) {
		t.Fatalf("status column = %q", row.Status)
	}
}

func TestReplaceHistoryStaleVersionKeepsPriorHistory(t *testing.T) {
	repo, _ := setupLotRepository(t)
	ctx := context.Background()

	created, err := repo.InsertLot(ctx, newTestLot(t, "LOT-1", "2026-02-01"))
	if err != nil {
		t.Fatalf("InsertLot() error = %v", err)
	}
	history, err := lot.Advance(created, lot.AdvanceRequest{Requested: lot.StatusInTransitToDistributor, Actor: "Ana", Role: lot.RoleFarmer, At: testClock})
	if err != nil {
		t.Fatalf("Advance() error = %v", err)
	}

	if _, err := repo.ReplaceHistory(ctx, "LOT-1", created.Version, history, "t1"); err != nil {
		t.Fatalf("first ReplaceHistory() error = %v", err)
	}
	_, err = repo.ReplaceHistory(ctx, "LOT-1", created.Version, created.History, "t2")
	if !errors.Is(err, ports.ErrVersionConflict) {
		t.Fatalf("stale ReplaceHistory() error = %v, want ErrVersionConflict", err)
	}

	got, err := repo.GetLot(ctx, "LOT-1")
	if err != nil {
		t.Fatalf("GetLot() error = %v", err)
	}
	if len(got.History) != 2 || got.Version != 2 {
		t.Fatalf("lot after conflict = %d events, version %d", len(got.History), got.Version)
	}

	if _, err := repo.ReplaceHistory(ctx, "LOT-404", 1, history, "t3"); !errors.Is(err, ports.ErrLotNotFound) {
		t.Fatalf("ReplaceHistory(missing) error = %v, want ErrLotNotFound", err)
	}
	if _, err := repo.ReplaceHistory(ctx, "LOT-1", 2, nil, "t4"); !errors.Is(err, lot.ErrEmptyHistory) {
		t.Fatalf("ReplaceHistory(empty) error = %v, want ErrEmptyHistory", err)
	}
}

func TestListLotsOrderAndFarmerFilter(t *testing.T) {
	repo, _ := setupLotRepository(t)
	ctx := context.Background()

	for _, item := range []struct{ id, harvest string }{
		{"LOT-B", "2026-02-01"},
		{"LOT-A", "2026-02-01"},
		{"LOT-C", "2026-02-15"},
	} {
		if _, err := repo.InsertLot(ctx, newTestLot(t, item.id, item.harvest)); err != nil {
			t.Fatalf("InsertLot(%s) error = %v", item.id, err)
		}
	}
	other := newTestLot(t, "LOT-D", "2026-01-20")
	other.Farmer = lot.FarmerRef{ID: "farmer-2", Name: "Ben"}
	if _, err := repo.InsertLot(ctx, other); err != nil {
		t.Fatalf("InsertLot(LOT-D) error = %v", err)
	}

	all, err := repo.ListLots(ctx, ports.LotFilter{})
	if err != nil {
		t.Fatalf("ListLots() error = %v", err)
	}
	var ids []string
	for _, item := range all {
		ids = append(ids, item.ID)
	}
	if diff := cmp.Diff([]string{"LOT-C", "LOT-A", "LOT-B", "LOT-D"}, ids); diff != "" {
		t.Fatalf("order mismatch (-want +got):\n%s", diff)
	}

	mine, err := repo.ListLots(ctx, ports.LotFilter{FarmerID: "farmer-2"})
	if err != nil {
		t.Fatalf("ListLots(farmer) error = %v", err)
	}
	if len(mine) != 1 || mine[0].ID != "LOT-D" {
		t.Fatalf("ListLots(farmer) = %+v", mine)
	}
}

func TestFeedbackForUnknownLotIsAccepted(t *testing.T) {
	repo, _ := setupLotRepository(t)
	ctx := context.Background()

	fb, err := lot.NewFeedback("fb-1", "LOT-GHOST", "Where is this from?", testClock)
	if err != nil {
		t.Fatalf("NewFeedback() error = %v", err)
	}
	if err := repo.InsertFeedback(ctx, fb); err != nil {
		t.Fatalf("InsertFeedback() error = %v", err)
	}

	items, err := repo.ListFeedback(ctx, "LOT-GHOST")
	if err != nil {
		t.Fatalf("ListFeedback() error = %v", err)
	}
	if diff := cmp.Diff([]lot.Feedback{fb}, items); diff != "" {
		t.Fatalf("feedback mismatch (-want +got):\n%s", diff)
	}
}

func TestAppendEventRollsBackWithTransaction(t *testing.T) {
	repo, db := setupLotRepository(t)
	ctx := context.Background()
	unit := uow.NewUnitOfWork(db)

	if err := unit.WithTx(ctx, func(txCtx context.Context) error {
		if _, err := repo.InsertLot(txCtx, newTestLot(t, "LOT-1", "2026-02-01")); err != nil {
			return err
		}
		_, err := repo.AppendEvent(txCtx, ports.LotEventCreate{LotID: "LOT-1", Seq: 1, Status: "Registered", Actor: "Ana", Location: "farm", OccurredAt: "t", PayloadJSON: "{}"})
		return err
	}); err != nil {
		t.Fatalf("WithTx() error = %v", err)
	}

	boom := errors.New("boom")
	err := unit.WithTx(ctx, func(txCtx context.Context) error {
		if _, err := repo.AppendEvent(txCtx, ports.LotEventCreate{LotID: "LOT-1", Seq: 2, Status: "x", Actor: "a", Location: "l", OccurredAt: "t", PayloadJSON: "{}"}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("WithTx() error = %v, want boom", err)
	}

	events, err := repo.ListEventsAfter(ctx, 0, 10)
	if err != nil {
		t.Fatalf("ListEventsAfter() error = %v", err)
	}
	if len(events) != 1 || events[0].Seq != 1 {
		t.Fatalf("events = %+v", events)
	}

	if _, err := repo.AppendEvent(ctx, ports.LotEventCreate{LotID: "LOT-1", Seq: 1, Status: "dup", Actor: "a", Location: "l", OccurredAt: "t", PayloadJSON: "{}"}); err == nil {
		t.Fatalf("AppendEvent(duplicate seq) expected error")
	}

	perLot, err := repo.ListLotEventsAfter(ctx, "LOT-1", 0)
	if err != nil {
		t.Fatalf("ListLotEventsAfter() error = %v", err)
	}
	if len(perLot) != 1 {
		t.Fatalf("ListLotEventsAfter() len = %d", len(perLot))
	}
}

func txDB(t *testing.T, ctx context.Context) *gorm.DB {
	t.Helper()

	tx, ok := ports.TxFromContext(ctx).(*gorm.DB)
	if !ok {
		t.Fatalf("context carries no gorm tx")
	}
	return tx
}

func TestListUnpublishedEventsIncludesLateLowerID(t *testing.T) {
	repo, db := setupLotRepository(t)
	ctx := context.Background()
	unit := uow.NewUnitOfWork(db)

	if _, err := repo.InsertLot(ctx, newTestLot(t, "LOT-1", "2026-02-01")); err != nil {
		t.Fatalf("InsertLot() error = %v", err)
	}

	// Writer A takes id 5 but commits after writer B, which takes id 7.
	lateA := model.LotEvent{EventID: 5, LotID: "LOT-1", Seq: 1, Status: "Registered", Actor: "a", Location: "l", OccurredAt: "t", PayloadJSON: "{}"}
	if err := unit.WithTx(ctx, func(txCtx context.Context) error {
		return txDB(t, txCtx).Create(&model.LotEvent{EventID: 7, LotID: "LOT-1", Seq: 2, Status: "x", Actor: "b", Location: "l", OccurredAt: "t", PayloadJSON: "{}"}).Error
	}); err != nil {
		t.Fatalf("WithTx(B) error = %v", err)
	}

	pending, err := repo.ListUnpublishedEvents(ctx, 10)
	if err != nil {
		t.Fatalf("ListUnpublishedEvents() error = %v", err)
	}
	if len(pending) != 1 || pending[0].EventID != 7 {
		t.Fatalf("pending = %+v", pending)
	}
	if err := repo.MarkEventPublished(ctx, 7, "2026-03-01T09:00:00Z"); err != nil {
		t.Fatalf("MarkEventPublished() error = %v", err)
	}

	if err := unit.WithTx(ctx, func(txCtx context.Context) error {
		return txDB(t, txCtx).Create(&lateA).Error
	}); err != nil {
		t.Fatalf("WithTx(A) error = %v", err)
	}

	after, err := repo.ListEventsAfter(ctx, 7, 10)
	if err != nil {
		t.Fatalf("ListEventsAfter() error = %v", err)
	}
	if len(after) != 0 {
		t.Fatalf("ListEventsAfter(7) = %+v, want none", after)
	}

	pending, err = repo.ListUnpublishedEvents(ctx, 10)
	if err != nil {
		t.Fatalf("ListUnpublishedEvents() error = %v", err)
	}
	if len(pending) != 1 || pending[0].EventID != 5 {
		t.Fatalf("pending = %+v, want late event 5", pending)
	}

	if err := repo.MarkEventPublished(ctx, 7, "2026-03-02T09:00:00Z"); err != nil {
		t.Fatalf("MarkEventPublished(again) error = %v", err)
	}
	all, err := repo.ListEventsAfter(ctx, 0, 10)
	if err != nil {
		t.Fatalf("ListEventsAfter() error = %v", err)
	}
	if len(all) != 2 || all[1].PublishedAt != "2026-03-01T09:00:00Z" || all[0].PublishedAt != "" {
		t.Fatalf("events = %+v", all)
	}
}
