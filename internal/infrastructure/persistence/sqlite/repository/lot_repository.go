package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"agritrace/internal/domain/lot"
	"agritrace/internal/errs"
	"agritrace/internal/infrastructure/persistence/sqlite/model"
	"agritrace/internal/ports"
)

type LotRepository struct {
	db *gorm.DB
}

var _ ports.LotRepository = (*LotRepository)(nil)

func NewLotRepository(db *gorm.DB) *LotRepository {
	return &LotRepository{db: db}
}

func (r *LotRepository) dbFromContext(ctx context.Context) (*gorm.DB, error) {
	if ctx == nil {
		return nil, errors.New("context is required")
	}

	tx := ports.TxFromContext(ctx)
	if tx == nil {
		return r.db.WithContext(ctx), nil
	}

	gormTx, ok := tx.(*gorm.DB)
	if !ok || gormTx == nil {
		return nil, fmt.Errorf("invalid tx in context: %T", tx)
	}
	return gormTx.WithContext(ctx), nil
}

func (r *LotRepository) GetLot(ctx context.Context, lotID string) (lot.Lot, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return lot.Lot{}, err
	}
	return getLotByID(db, lotID)
}

func (r *LotRepository) ListLots(ctx context.Context, filter ports.LotFilter) ([]lot.Lot, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return nil, err
	}

	query := db.Model(&model.Lot{})
	if farmerID := strings.TrimSpace(filter.FarmerID); farmerID != "" {
		query = query.Where("farmer_id = ?", farmerID)
	}

	var rows []model.Lot
	if err := query.Order("harvest_date desc").Order("lot_id asc").Find(&rows).Error; err != nil {
		return nil, unavailable(err, "query lots")
	}

	items := make([]lot.Lot, 0, len(rows))
	for _, row := range rows {
		item, err := mapLot(row)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, nil
}

func (r *LotRepository) ListFeedback(ctx context.Context, lotID string) ([]lot.Feedback, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return nil, err
	}

	var rows []model.Feedback
	if err := db.
		Where("lot_id = ?", strings.TrimSpace(lotID)).
		Order("created_at asc").
		Order("feedback_id asc").
		Find(&rows).Error; err != nil {
		return nil, unavailable(err, "query feedback")
	}

	items := make([]lot.Feedback, 0, len(rows))
	for _, row := range rows {
		items = append(items, lot.Feedback{
			ID:        row.FeedbackID,
			LotID:     row.LotID,
			Text:      row.Text,
			CreatedAt: row.CreatedAt,
		})
	}
	return items, nil
}

func (r *LotRepository) ListEventsAfter(ctx context.Context, afterEventID uint64, limit int) ([]ports.LotEvent, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return nil, err
	}

	query := db.Model(&model.LotEvent{}).Where("event_id > ?", afterEventID).Order("event_id asc")
	if limit > 0 {
		query = query.Limit(limit)
	}

	var rows []model.LotEvent
	if err := query.Find(&rows).Error; err != nil {
		return nil, unavailable(err, "query lot events")
	}
	return mapEvents(rows), nil
}

func (r *LotRepository) ListUnpublishedEvents(ctx context.Context, limit int) ([]ports.LotEvent, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return nil, err
	}

	query := db.Model(&model.LotEvent{}).Where("published_at = ?", "").Order("event_id asc")
	if limit > 0 {
		query = query.Limit(limit)
	}

	var rows []model.LotEvent
	if err := query.Find(&rows).Error; err != nil {
		return nil, unavailable(err, "query unpublished lot events")
	}
	return mapEvents(rows), nil
}

func (r *LotRepository) ListLotEventsAfter(ctx context.Context, lotID string, afterEventID uint64) ([]ports.LotEvent, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return nil, err
	}

	var rows []model.LotEvent
	if err := db.
		Where("lot_id = ? AND event_id > ?", lotID, afterEventID).
		Order("event_id asc").
		Find(&rows).Error; err != nil {
		return nil, unavailable(err, "query lot events")
	}
	return mapEvents(rows), nil
}

func (r *LotRepository) InsertLot(ctx context.Context, l lot.Lot) (lot.Lot, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return lot.Lot{}, err
	}

	status, err := lot.CurrentStatus(l)
	if err != nil {
		return lot.Lot{}, err
	}
	history, err := json.Marshal(l.History)
	if err != nil {
		return lot.Lot{}, errs.Wrap(err, "encode history")
	}
	certs, err := encodeCertificates(l.Certificates)
	if err != nil {
		return lot.Lot{}, err
	}

	row := model.Lot{
		LotID:        l.ID,
		ProduceName:  l.ProduceName,
		Origin:       l.Origin,
		PlantingDate: l.PlantingDate,
		HarvestDate:  l.HarvestDate,
		ItemCount:    l.ItemCount,
		FarmerID:     l.Farmer.ID,
		FarmerName:   l.Farmer.Name,
		Status:       string(status),
		History:      datatypes.JSON(history),
		Certificates: certs,
		Version:      1,
		CreatedAt:    l.CreatedAt,
		UpdatedAt:    l.UpdatedAt,
	}

	result := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "lot_id"}},
		DoNothing: true,
	}).Create(&row)
	if result.Error != nil {
		return lot.Lot{}, unavailable(result.Error, "insert lot")
	}
	if result.RowsAffected == 0 {
		return lot.Lot{}, fmt.Errorf("%w: %q", ports.ErrLotExists, l.ID)
	}
	return mapLot(row)
}

func (r *LotRepository) ReplaceHistory(ctx context.Context, lotID string, expectedVersion uint64, history []lot.HistoryEvent, updatedAt string) (uint64, error) {
	if len(history) == 0 {
		return 0, lot.ErrEmptyHistory
	}

	encoded, err := json.Marshal(history)
	if err != nil {
		return 0, errs.Wrap(err, "encode history")
	}

	return r.compareAndSwap(ctx, lotID, expectedVersion, map[string]any{
		"history":    datatypes.JSON(encoded),
		"status":     string(history[len(history)-1].Status),
		"updated_at": updatedAt,
	})
}

func (r *LotRepository) ReplaceCertificates(ctx context.Context, lotID string, expectedVersion uint64, certs []lot.Certificate, updatedAt string) (uint64, error) {
	encoded, err := encodeCertificates(certs)
	if err != nil {
		return 0, err
	}

	return r.compareAndSwap(ctx, lotID, expectedVersion, map[string]any{
		"certificates": encoded,
		"updated_at":   updatedAt,
	})
}

func (r *LotRepository) InsertFeedback(ctx context.Context, fb lot.Feedback) error {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return err
	}

	row := model.Feedback{
		FeedbackID: fb.ID,
		LotID:      fb.LotID,
		Text:       fb.Text,
		CreatedAt:  fb.CreatedAt,
	}
	if err := db.Create(&row).Error; err != nil {
		return unavailable(err, "insert feedback")
	}
	return nil
}

func (r *LotRepository) AppendEvent(ctx context.Context, input ports.LotEventCreate) (ports.LotEvent, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return ports.LotEvent{}, err
	}

	row := model.LotEvent{
		LotID:       input.LotID,
		Seq:         input.Seq,
		Status:      input.Status,
		Actor:       input.Actor,
		Location:    input.Location,
		OccurredAt:  input.OccurredAt,
		PayloadJSON: input.PayloadJSON,
	}
	if err := db.Create(&row).Error; err != nil {
		return ports.LotEvent{}, unavailable(err, "insert lot event")
	}
	return mapEvent(row), nil
}

// MarkEventPublished stamps an event as relayed. Marking an already published
// event keeps the first timestamp.
func (r *LotRepository) MarkEventPublished(ctx context.Context, eventID uint64, publishedAt string) error {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return err
	}

	publishedAt = strings.TrimSpace(publishedAt)
	if publishedAt == "" {
		return errors.New("published at is required")
	}
	result := db.Model(&model.LotEvent{}).
		Where("event_id = ? AND published_at = ?", eventID, "").
		Update("published_at", publishedAt)
	if result.Error != nil {
		return unavailable(result.Error, "mark lot event published")
	}
	return nil
}

// compareAndSwap applies updates only while the stored version still equals
// expectedVersion, bumping it by one.
func (r *LotRepository) compareAndSwap(ctx context.Context, lotID string, expectedVersion uint64, updates map[string]any) (uint64, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return 0, err
	}

	updates["version"] = gorm.Expr("version + 1")
	result := db.Model(&model.Lot{}).
		Where("lot_id = ? AND version = ?", lotID, expectedVersion).
		Updates(updates)
	if result.Error != nil {
		return 0, unavailable(result.Error, "update lot")
	}
	if result.RowsAffected == 1 {
		return expectedVersion + 1, nil
	}

	var count int64
	if err := db.Model(&model.Lot{}).Where("lot_id = ?", lotID).Count(&count).Error; err != nil {
		return 0, unavailable(err, "count lot")
	}
	if count == 0 {
		return 0, fmt.Errorf("%w: %q", ports.ErrLotNotFound, lotID)
	}
	return 0, fmt.Errorf("%w: lot %q is no longer at version %d", ports.ErrVersionConflict, lotID, expectedVersion)
}

func getLotByID(db *gorm.DB, lotID string) (lot.Lot, error) {
	var row model.Lot
	if err := db.Where("lot_id = ?", strings.TrimSpace(lotID)).Take(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return lot.Lot{}, fmt.Errorf("%w: %q", ports.ErrLotNotFound, lotID)
		}
		return lot.Lot{}, unavailable(err, "query lot")
	}
	return mapLot(row)
}

func mapLot(row model.Lot) (lot.Lot, error) {
	var history []lot.HistoryEvent
	if len(row.History) > 0 {
		if err := json.Unmarshal(row.History, &history); err != nil {
			return lot.Lot{}, errs.Wrapf(err, "decode history of lot %q", row.LotID)
		}
	}

	var certs []lot.Certificate
	if len(row.Certificates) > 0 {
		if err := json.Unmarshal(row.Certificates, &certs); err != nil {
			return lot.Lot{}, errs.Wrapf(err, "decode certificates of lot %q", row.LotID)
		}
	}

	return lot.Lot{
		ID:           row.LotID,
		ProduceName:  row.ProduceName,
		Origin:       row.Origin,
		PlantingDate: row.PlantingDate,
		HarvestDate:  row.HarvestDate,
		ItemCount:    row.ItemCount,
		Farmer:       lot.FarmerRef{ID: row.FarmerID, Name: row.FarmerName},
		Certificates: certs,
		History:      history,
		Version:      row.Version,
		CreatedAt:    row.CreatedAt,
		UpdatedAt:    row.UpdatedAt,
	}, nil
}

func mapEvents(rows []model.LotEvent) []ports.LotEvent {
	items := make([]ports.LotEvent, 0, len(rows))
	for _, row := range rows {
		items = append(items, mapEvent(row))
	}
	return items
}

func mapEvent(row model.LotEvent) ports.LotEvent {
	return ports.LotEvent{
		EventID:     row.EventID,
		LotID:       row.LotID,
		Seq:         row.Seq,
		Status:      row.Status,
		Actor:       row.Actor,
		Location:    row.Location,
		OccurredAt:  row.OccurredAt,
		PayloadJSON: row.PayloadJSON,
		PublishedAt: row.PublishedAt,
	}
}

func encodeCertificates(certs []lot.Certificate) (datatypes.JSON, error) {
	if len(certs) == 0 {
		return datatypes.JSON("[]"), nil
	}
	encoded, err := json.Marshal(certs)
	if err != nil {
		return nil, errs.Wrap(err, "encode certificates")
	}
	return datatypes.JSON(encoded), nil
}

func unavailable(err error, msg string) error {
	return errs.Mark(ports.ErrStoreUnavailable, err, msg)
}
