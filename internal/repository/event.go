package repository

import (
	"time"
	"zback/internal/db"
	"zback/internal/model"
)

type EventRepository struct{}

func NewEventRepository() *EventRepository {
	return &EventRepository{}
}

func (r *EventRepository) Save(kind model.EventKind, dataset, target, detail string) error {
	event := model.Event{
		Kind:       kind,
		Dataset:    dataset,
		Target:     target,
		Detail:     detail,
		OccurredAt: time.Now(),
	}

	return db.DB.Create(&event).Error
}

func (r *EventRepository) GetRecent(limit int) ([]model.Event, error) {
	var events []model.Event
	result := db.DB.
		Order("occurred_at desc").
		Limit(limit).
		Find(&events)

	return events, result.Error
}

func (r *EventRepository) GetByDataset(dataset string, limit int) ([]model.Event, error) {
	var events []model.Event
	result := db.DB.
		Where("dataset = ?", dataset).
		Order("occurred_at desc").
		Limit(limit).
		Find(&events)

	return events, result.Error
}

type Stats struct {
	Total      int64
	Migrations int64
	Failed     int64
}

func (r *EventRepository) GetStats() (Stats, error) {
	var stats Stats
	if err := db.DB.Model(&model.Event{}).Count(&stats.Total).Error; err != nil {
		return stats, err
	}

	if err := db.DB.Model(&model.Event{}).
		Where("kind = ?", model.EventMigrationCompleted).
		Count(&stats.Migrations).Error; err != nil {
		return stats, err
	}

	if err := db.DB.Model(&model.Event{}).
		Where("kind IN ?", []model.EventKind{
			model.EventSnapshotFailed,
			model.EventMigrationFailed,
			model.EventCycleError,
		}).
		Count(&stats.Failed).Error; err != nil {
		return stats, err
	}

	return stats, nil
}
