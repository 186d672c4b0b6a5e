package service

import (
	"context"
	"strconv"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/office-scheduler/internal/calendar"
	"github.com/noah-isme/office-scheduler/internal/models"
)

type conflictFinder interface {
	FindParticipantConflicts(ctx context.Context, exec sqlx.ExtContext, day calendar.Date, start, end calendar.Clock, participantIDs []int64, excludeEventID int64) ([]models.ConflictingEvent, error)
}

type displayNameResolver interface {
	DisplayNames(ctx context.Context, exec sqlx.ExtContext, ids []int64) (map[int64]string, error)
}

// ConflictQuery describes a candidate slot: every day in Days between StartTime and
// EndTime for the given participants.
type ConflictQuery struct {
	Days           []calendar.Date
	StartTime      calendar.Clock
	EndTime        calendar.Clock
	ParticipantIDs []int64
	ExcludeEventID int64
}

// ConflictDetector finds existing events that share a participant with a candidate slot
// and overlap it in time on the same day.
type ConflictDetector struct {
	finder  conflictFinder
	names   displayNameResolver
	metrics *MetricsService
	logger  *zap.Logger
}

// NewConflictDetector constructs the detector.
func NewConflictDetector(finder conflictFinder, names displayNameResolver, metrics *MetricsService, logger *zap.Logger) *ConflictDetector {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ConflictDetector{finder: finder, names: names, metrics: metrics, logger: logger}
}

// FindConflicts returns the events colliding with [start, end) on day for the participants.
// An empty participant set yields no conflicts.
func (d *ConflictDetector) FindConflicts(ctx context.Context, exec sqlx.ExtContext, day calendar.Date, start, end calendar.Clock, participantIDs []int64, excludeEventID int64) ([]models.ConflictingEvent, error) {
	return d.Scan(ctx, exec, ConflictQuery{
		Days:           []calendar.Date{day},
		StartTime:      start,
		EndTime:        end,
		ParticipantIDs: participantIDs,
		ExcludeEventID: excludeEventID,
	})
}

// Scan checks every day of the query and aggregates the result. An event colliding on
// several days is reported once, on the first such day.
func (d *ConflictDetector) Scan(ctx context.Context, exec sqlx.ExtContext, q ConflictQuery) ([]models.ConflictingEvent, error) {
	participants := models.UniqueIDs(q.ParticipantIDs)
	if len(participants) == 0 || len(q.Days) == 0 {
		return nil, nil
	}

	seen := make(map[int64]int)
	var result []models.ConflictingEvent
	for _, day := range q.Days {
		start := time.Now()
		candidates, err := d.finder.FindParticipantConflicts(ctx, exec, day, q.StartTime, q.EndTime, participants, q.ExcludeEventID)
		d.metrics.ObserveDBQuery("participant_conflicts", time.Since(start))
		if err != nil {
			return nil, err
		}
		for _, candidate := range candidates {
			shared, ok := collides(candidate, day, q, participants)
			if !ok {
				continue
			}
			if idx, dup := seen[candidate.ID]; dup {
				result[idx].OverlappingParticipantIDs = mergeIDs(result[idx].OverlappingParticipantIDs, shared)
				continue
			}
			candidate.ConflictDate = day
			candidate.OverlappingParticipantIDs = shared
			seen[candidate.ID] = len(result)
			result = append(result, candidate)
		}
	}

	if len(result) == 0 {
		return nil, nil
	}
	if err := d.attachNames(ctx, exec, result); err != nil {
		return nil, err
	}
	d.metrics.RecordConflicts(len(result))
	d.logger.Debug("participant conflicts found",
		zap.Int("conflict_count", len(result)),
		zap.Int64s("participants", participants),
		zap.Int64("exclude_event_id", q.ExcludeEventID),
	)
	return result, nil
}

// collides re-applies the overlap rule to a candidate row and returns the shared
// participants in query order.
func collides(candidate models.ConflictingEvent, day calendar.Date, q ConflictQuery, participants []int64) ([]int64, bool) {
	if q.ExcludeEventID != 0 && candidate.ID == q.ExcludeEventID {
		return nil, false
	}
	if !calendar.Contains(candidate.Date, candidate.EndDate, day) {
		return nil, false
	}
	if !calendar.Overlaps(q.StartTime, q.EndTime, candidate.StartTime, candidate.EndTime) {
		return nil, false
	}
	members := make(map[int64]struct{})
	for _, id := range candidate.Participants() {
		members[id] = struct{}{}
	}
	var shared []int64
	for _, id := range participants {
		if _, ok := members[id]; ok {
			shared = append(shared, id)
		}
	}
	return shared, len(shared) > 0
}

func mergeIDs(current, extra []int64) []int64 {
	return models.UniqueIDs(append(append([]int64{}, current...), extra...))
}

func (d *ConflictDetector) attachNames(ctx context.Context, exec sqlx.ExtContext, items []models.ConflictingEvent) error {
	var ids []int64
	for _, item := range items {
		ids = append(ids, item.OverlappingParticipantIDs...)
	}
	names := map[int64]string{}
	if d.names != nil {
		resolved, err := d.names.DisplayNames(ctx, exec, models.UniqueIDs(ids))
		if err != nil {
			return err
		}
		names = resolved
	}
	for i := range items {
		items[i].OverlappingParticipants = make([]string, 0, len(items[i].OverlappingParticipantIDs))
		for _, id := range items[i].OverlappingParticipantIDs {
			name, ok := names[id]
			if !ok || name == "" {
				name = unknownParticipant(id)
			}
			items[i].OverlappingParticipants = append(items[i].OverlappingParticipants, name)
		}
	}
	return nil
}

func unknownParticipant(id int64) string {
	return "user #" + strconv.FormatInt(id, 10)
}
