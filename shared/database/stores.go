package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"memberflow/shared/models"
)

type AccountStore struct {
	db *gorm.DB
}

func NewAccountStore(db *gorm.DB) *AccountStore {
	return &AccountStore{db: db}
}

func (s *AccountStore) LoadAll(ctx context.Context) ([]models.Account, error) {
	var records []AccountRecord
	if err := s.db.WithContext(ctx).Order("id").Find(&records).Error; err != nil {
		return nil, fmt.Errorf("load accounts: %w", err)
	}
	accounts := make([]models.Account, 0, len(records))
	for _, r := range records {
		accounts = append(accounts, r.toModel())
	}
	return accounts, nil
}

func (s *AccountStore) Save(ctx context.Context, account models.Account) (bool, error) {
	record := accountRecord(account)
	res := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "api_id"}}, DoNothing: true}).
		Create(&record)
	if res.Error != nil {
		return false, fmt.Errorf("save account: %w", res.Error)
	}
	return res.RowsAffected == 1, nil
}

func (s *AccountStore) ReplaceAll(ctx context.Context, accounts []models.Account) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("1 = 1").Delete(&AccountRecord{}).Error; err != nil {
			return fmt.Errorf("clear accounts: %w", err)
		}
		if len(accounts) == 0 {
			return nil
		}
		records := make([]AccountRecord, 0, len(accounts))
		for _, a := range accounts {
			records = append(records, accountRecord(a))
		}
		if err := tx.Create(&records).Error; err != nil {
			return fmt.Errorf("insert accounts: %w", err)
		}
		return nil
	})
}

func (s *AccountStore) Remove(ctx context.Context, apiIDs ...int) (int, error) {
	if len(apiIDs) == 0 {
		return 0, nil
	}
	res := s.db.WithContext(ctx).Where("api_id IN ?", apiIDs).Delete(&AccountRecord{})
	if res.Error != nil {
		return 0, fmt.Errorf("remove accounts: %w", res.Error)
	}
	return int(res.RowsAffected), nil
}

type JobQueue struct {
	db *gorm.DB
}

func NewJobQueue(db *gorm.DB) *JobQueue {
	return &JobQueue{db: db}
}

func (q *JobQueue) Push(ctx context.Context, job models.Job) (int, error) {
	var position int64
	err := q.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		record := JobRecord{
			JobID:       job.ID,
			RequesterID: job.RequesterID,
			SourceGroup: job.SourceGroup,
			TargetGroup: job.TargetGroup,
			EnqueuedAt:  job.EnqueuedAt,
		}
		if err := tx.Create(&record).Error; err != nil {
			return err
		}
		return tx.Model(&JobRecord{}).Where("seq <= ?", record.Seq).Count(&position).Error
	})
	if err != nil {
		return 0, fmt.Errorf("push job: %w", err)
	}
	return int(position), nil
}

func (q *JobQueue) Pop(ctx context.Context) (*models.Job, error) {
	var head *models.Job
	err := q.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var record JobRecord
		query := tx
		if tx.Dialector.Name() == "postgres" {
			query = tx.Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"})
		}
		err := query.Order("seq").First(&record).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		if err := tx.Delete(&record).Error; err != nil {
			return err
		}
		job := record.toModel()
		head = &job
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("pop job: %w", err)
	}
	return head, nil
}

func (q *JobQueue) Len(ctx context.Context) (int, error) {
	var n int64
	if err := q.db.WithContext(ctx).Model(&JobRecord{}).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("count jobs: %w", err)
	}
	return int(n), nil
}

const serviceKey = "service"

type Toggle struct {
	db *gorm.DB
}

func NewToggle(db *gorm.DB) *Toggle {
	return &Toggle{db: db}
}

func (t *Toggle) IsActive(ctx context.Context) (bool, error) {
	var record SettingRecord
	err := t.db.WithContext(ctx).Where(&SettingRecord{Key: serviceKey}).First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return true, nil
	}
	if err != nil {
		return false, fmt.Errorf("load settings: %w", err)
	}
	settings := models.Settings{IsActive: true}
	if err := json.Unmarshal(record.Value, &settings); err != nil {
		return true, nil
	}
	return settings.IsActive, nil
}

func (t *Toggle) SetActive(ctx context.Context, active bool) error {
	value, err := json.Marshal(models.Settings{IsActive: active})
	if err != nil {
		return err
	}
	record := SettingRecord{Key: serviceKey, Value: datatypes.JSON(value)}
	err = t.db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(&record).Error
	if err != nil {
		return fmt.Errorf("save settings: %w", err)
	}
	return nil
}
