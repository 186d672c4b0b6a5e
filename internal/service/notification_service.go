package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/noah-isme/office-scheduler/internal/calendar"
	"github.com/noah-isme/office-scheduler/internal/models"
	"github.com/noah-isme/office-scheduler/pkg/jobs"
)

// Notice types dispatched to the notifier.
const (
	NoticeEventInvited   = "event.invited"
	NoticeEventCancelled = "event.cancelled"
	NoticeRsvpSubmitted  = "rsvp.submitted"
)

// Notice is a message about an event addressed to a set of users.
type Notice struct {
	Type         string            `json:"type"`
	EventID      int64             `json:"event_id"`
	EventTitle   string            `json:"event_title"`
	Date         calendar.Date     `json:"date"`
	StartTime    calendar.Clock    `json:"start_time"`
	RecipientIDs []int64           `json:"recipient_ids"`
	ActorID      int64             `json:"actor_id,omitempty"`
	RsvpStatus   models.RsvpStatus `json:"rsvp_status,omitempty"`
}

// Notifier delivers notices. Delivery channels live outside this service.
type Notifier interface {
	Notify(ctx context.Context, notice Notice) error
}

// LogNotifier writes notices to the application log.
type LogNotifier struct {
	logger *zap.Logger
}

// NewLogNotifier constructs a LogNotifier.
func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogNotifier{logger: logger}
}

// Notify implements Notifier.
func (n *LogNotifier) Notify(_ context.Context, notice Notice) error {
	n.logger.Info("notice",
		zap.String("type", notice.Type),
		zap.Int64("event_id", notice.EventID),
		zap.String("event_title", notice.EventTitle),
		zap.String("date", notice.Date.String()),
		zap.String("start_time", string(notice.StartTime)),
		zap.Int64s("recipients", notice.RecipientIDs),
		zap.String("rsvp_status", string(notice.RsvpStatus)),
	)
	return nil
}

// NotificationService queues notices after a change has been committed. Failures are
// logged and never reach the caller of the originating operation.
type NotificationService struct {
	queue    *jobs.Queue
	notifier Notifier
	logger   *zap.Logger
}

// NewNotificationService wires a worker queue in front of notifier.
func NewNotificationService(notifier Notifier, cfg jobs.QueueConfig, metrics *MetricsService, logger *zap.Logger) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if notifier == nil {
		notifier = NewLogNotifier(logger)
	}
	svc := &NotificationService{notifier: notifier, logger: logger}
	cfg.Logger = logger
	cfg.OnResult = func(job jobs.Job, err error) {
		metrics.RecordNotification(job.Type, err)
	}
	svc.queue = jobs.NewQueue("notifications", svc.handle, cfg)
	return svc
}

// Start launches the workers.
func (s *NotificationService) Start(ctx context.Context) {
	if s == nil {
		return
	}
	s.queue.Start(ctx)
}

// Stop drains the workers.
func (s *NotificationService) Stop() {
	if s == nil {
		return
	}
	s.queue.Stop()
}

// EventInvited tells newly added attendees about the event.
func (s *NotificationService) EventInvited(event *models.Event, userIDs []int64) {
	s.enqueue(noticeFor(NoticeEventInvited, event, userIDs))
}

// EventCancelled tells attendees the event will not take place.
func (s *NotificationService) EventCancelled(event *models.Event, userIDs []int64) {
	s.enqueue(noticeFor(NoticeEventCancelled, event, userIDs))
}

// RsvpSubmitted tells the event creator about a response.
func (s *NotificationService) RsvpSubmitted(event *models.Event, rsvp *models.Rsvp) {
	if event == nil || rsvp == nil {
		return
	}
	notice := noticeFor(NoticeRsvpSubmitted, event, []int64{event.CreatedBy})
	notice.ActorID = rsvp.OfficeUserID
	notice.RsvpStatus = rsvp.Status
	s.enqueue(notice)
}

func noticeFor(noticeType string, event *models.Event, userIDs []int64) Notice {
	if event == nil {
		return Notice{Type: noticeType}
	}
	return Notice{
		Type:         noticeType,
		EventID:      event.ID,
		EventTitle:   event.Title,
		Date:         event.Date,
		StartTime:    event.StartTime,
		RecipientIDs: models.UniqueIDs(userIDs),
	}
}

func (s *NotificationService) enqueue(notice Notice) {
	if s == nil || len(notice.RecipientIDs) == 0 {
		return
	}
	if err := s.queue.Enqueue(jobs.Job{Type: notice.Type, Payload: notice}); err != nil {
		s.logger.Warn("notice dropped", zap.String("type", notice.Type), zap.Int64("event_id", notice.EventID), zap.Error(err))
	}
}

func (s *NotificationService) handle(ctx context.Context, job jobs.Job) error {
	notice, ok := job.Payload.(Notice)
	if !ok {
		return fmt.Errorf("unexpected payload %T for job %s", job.Payload, job.ID)
	}
	return s.notifier.Notify(ctx, notice)
}
