package repository

import (
	"context"
	"encoding/json"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/totegamma/mediafetch"
	"github.com/totegamma/mediafetch/internal/domain"
	"github.com/totegamma/mediafetch/internal/infra/database/models"
	"github.com/totegamma/mediafetch/internal/usecase"
)

type ItemRepository struct {
	db *gorm.DB
}

func NewItemRepository(db *gorm.DB) *ItemRepository {
	return &ItemRepository{db: db}
}

// Save upserts the item and replaces its fetch log.
func (r *ItemRepository) Save(ctx context.Context, record domain.ItemRecord) error {

	document, err := json.Marshal(record.Item)
	if err != nil {
		return err
	}

	item := models.Item{
		ID:        record.ID,
		Document:  string(document),
		Succeeded: record.Succeeded,
		Failed:    record.Failed,
	}

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {

		err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"document", "succeeded", "failed", "m_date"}),
		}).Create(&item).Error
		if err != nil {
			return err
		}

		// a rerun rebuilds the log, mirroring how the result field is rebuilt
		if err := tx.Where("item_id = ?", record.ID).Delete(&models.FetchLog{}).Error; err != nil {
			return err
		}

		if len(record.Fetches) == 0 {
			return nil
		}

		logs := make([]models.FetchLog, 0, len(record.Fetches))
		for i, f := range record.Fetches {
			logs = append(logs, models.FetchLog{
				ItemID:    record.ID,
				Position:  i,
				SourceURL: f.SourceURL,
				Bucket:    f.Bucket,
				Key:       f.Key,
				Checksum:  f.Checksum,
				Status:    f.Status,
				Reason:    f.Reason,
			})
		}

		return tx.Create(&logs).Error
	})
}

func (r *ItemRepository) Get(ctx context.Context, id string) (domain.ItemRecord, error) {

	var item models.Item
	err := r.db.WithContext(ctx).
		Preload("Fetches", func(db *gorm.DB) *gorm.DB {
			return db.Order("position ASC")
		}).
		Where("id = ?", id).
		Take(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.ItemRecord{}, domain.NotFoundError{Resource: "item"}
	}
	if err != nil {
		return domain.ItemRecord{}, err
	}

	var document mediafetch.Item
	if err := json.Unmarshal([]byte(item.Document), &document); err != nil {
		return domain.ItemRecord{}, err
	}

	fetches := make([]domain.FetchLog, 0, len(item.Fetches))
	for _, f := range item.Fetches {
		fetches = append(fetches, domain.FetchLog{
			SourceURL: f.SourceURL,
			Bucket:    f.Bucket,
			Key:       f.Key,
			Checksum:  f.Checksum,
			Status:    f.Status,
			Reason:    f.Reason,
		})
	}

	return domain.ItemRecord{
		ID:        item.ID,
		Item:      document,
		Succeeded: item.Succeeded,
		Failed:    item.Failed,
		Fetches:   fetches,
	}, nil
}

var _ usecase.ItemRepository = (*ItemRepository)(nil)
