package database

import (
	"time"

	"gorm.io/datatypes"

	"memberflow/shared/models"
)

type AccountRecord struct {
	ID            uint   `gorm:"primaryKey"`
	APIID         int    `gorm:"uniqueIndex"`
	ContributorID int64  `gorm:"index"`
	APIHash       string `gorm:"size:64"`
	Session       string `gorm:"type:text"`
	Status        string `gorm:"size:32;default:active"`
	CreatedAt     time.Time
}

func (AccountRecord) TableName() string { return "accounts" }

func (r AccountRecord) toModel() models.Account {
	return models.Account{
		ContributorID: r.ContributorID,
		APIID:         r.APIID,
		APIHash:       r.APIHash,
		Session:       r.Session,
		Status:        r.Status,
	}
}

func accountRecord(a models.Account) AccountRecord {
	status := a.Status
	if status == "" {
		status = models.AccountActive
	}
	return AccountRecord{
		APIID:         a.APIID,
		ContributorID: a.ContributorID,
		APIHash:       a.APIHash,
		Session:       a.Session,
		Status:        status,
	}
}

// JobRecord rows are popped in Seq order.
type JobRecord struct {
	Seq         uint   `gorm:"primaryKey;autoIncrement"`
	JobID       string `gorm:"uniqueIndex;size:36"`
	RequesterID int64  `gorm:"index"`
	SourceGroup string `gorm:"size:255"`
	TargetGroup string `gorm:"size:255"`
	EnqueuedAt  time.Time
}

func (JobRecord) TableName() string { return "jobs" }

func (r JobRecord) toModel() models.Job {
	return models.Job{
		ID:          r.JobID,
		RequesterID: r.RequesterID,
		SourceGroup: r.SourceGroup,
		TargetGroup: r.TargetGroup,
		EnqueuedAt:  r.EnqueuedAt,
	}
}

type SettingRecord struct {
	Key       string `gorm:"primaryKey;size:64"`
	Value     datatypes.JSON
	UpdatedAt time.Time
}

func (SettingRecord) TableName() string { return "settings" }
