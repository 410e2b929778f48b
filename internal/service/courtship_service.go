package service

import (
	"context"
	"errors"
	"log/slog"

	"courtside/internal/middleware"
	"courtside/internal/models"
	"courtside/internal/notifications"
	"courtside/internal/observability"
	"courtside/internal/repository"

	"go.opentelemetry.io/otel/attribute"
)

// EventPublisher delivers user-facing events. *notifications.Notifier implements it.
type EventPublisher interface {
	PublishUser(ctx context.Context, userID uint, event notifications.Event) error
}

type acceptance struct {
	to   models.RelationshipKind
	swap bool
}

// acceptTransitions is the complete accept table. A coach request asks the
// recipient to coach the requester, so accepting it swaps the endpoints.
var acceptTransitions = map[models.RelationshipKind]acceptance{
	models.KindFriendRequested:  {to: models.KindFriends},
	models.KindStudentRequested: {to: models.KindACoachesB},
	models.KindCoachRequested:   {to: models.KindACoachesB, swap: true},
}

// RequestFilter narrows ListRequests. Empty fields match everything.
type RequestFilter struct {
	Type string
	Dir  string
}

// Courtship pairs an edge with the user on the other end of it.
type Courtship struct {
	Relationship models.Relationship
	OtherID      uint
}

// CourtshipService runs the request / accept / decline / cancel / sever
// protocol over the relationship graph.
type CourtshipService struct {
	graph     *RelationshipGraph
	users     repository.UserRepository
	publisher EventPublisher
}

// NewCourtshipService returns a new CourtshipService. publisher may be nil.
func NewCourtshipService(graph *RelationshipGraph, users repository.UserRepository, publisher EventPublisher) *CourtshipService {
	return &CourtshipService{graph: graph, users: users, publisher: publisher}
}

// SendRequest creates the edge (requester, target, <type>_REQUESTED).
func (s *CourtshipService) SendRequest(ctx context.Context, requester, target uint, requestType string) (rel *models.Relationship, err error) {
	span, ctx := observability.NewSpan(ctx, "courtship.send_request",
		attribute.Int64("requester", int64(requester)),
		attribute.Int64("target", int64(target)),
		attribute.String("type", requestType))
	defer func() { span.End(err) }()

	kind, ok := models.RequestKindOf(requestType)
	if !ok {
		return nil, s.reject("send_request", models.NewValidationError("Invalid type."))
	}
	if requester == target {
		return nil, s.reject("send_request", models.NewSelfRelationshipError())
	}
	if _, err := s.users.GetByID(ctx, target); err != nil {
		return nil, s.reject("send_request", err)
	}

	rel, err = s.graph.Create(ctx, requester, target, kind)
	if err != nil {
		return nil, s.reject("send_request", err)
	}

	observability.CourtshipTransitions.WithLabelValues("send_request", string(kind)).Inc()
	s.notify(ctx, rel, target, notifications.EventCourtshipRequestReceived)
	s.notify(ctx, rel, requester, notifications.EventCourtshipRequestSent)
	return rel, nil
}

// Accept accepts the request other sent to recipient.
func (s *CourtshipService) Accept(ctx context.Context, recipient, other uint) (*models.Relationship, error) {
	rel, err := s.edgeBetween(ctx, "accept", recipient, other)
	if err != nil {
		return nil, err
	}
	return s.AcceptEdge(ctx, recipient, rel)
}

// AcceptEdge applies the accept transition to rel on behalf of recipient.
func (s *CourtshipService) AcceptEdge(ctx context.Context, recipient uint, rel *models.Relationship) (_ *models.Relationship, err error) {
	span, ctx := observability.NewSpan(ctx, "courtship.accept", attribute.Int64("relationship", int64(rel.ID)))
	defer func() { span.End(err) }()

	if err := checkIncoming(rel, recipient); err != nil {
		return nil, s.reject("accept", err)
	}
	requester := rel.UserAID
	next := acceptTransitions[rel.Kind]
	if err := s.graph.Mutate(ctx, rel, next.to, next.swap); err != nil {
		return nil, s.reject("accept", err)
	}

	observability.CourtshipTransitions.WithLabelValues("accept", string(next.to)).Inc()
	s.notify(ctx, rel, requester, notifications.EventCourtshipRequestAccepted)
	return rel, nil
}

// Decline deletes the request other sent to recipient.
func (s *CourtshipService) Decline(ctx context.Context, recipient, other uint) error {
	rel, err := s.edgeBetween(ctx, "decline", recipient, other)
	if err != nil {
		return err
	}
	return s.DeclineEdge(ctx, recipient, rel)
}

// DeclineEdge deletes rel on behalf of its recipient.
func (s *CourtshipService) DeclineEdge(ctx context.Context, recipient uint, rel *models.Relationship) (err error) {
	span, ctx := observability.NewSpan(ctx, "courtship.decline", attribute.Int64("relationship", int64(rel.ID)))
	defer func() { span.End(err) }()

	if err := checkIncoming(rel, recipient); err != nil {
		return s.reject("decline", err)
	}
	if err := s.graph.Remove(ctx, rel); err != nil {
		return s.reject("decline", err)
	}

	observability.CourtshipTransitions.WithLabelValues("decline", string(rel.Kind)).Inc()
	s.notify(ctx, rel, rel.UserAID, notifications.EventCourtshipRequestDeclined)
	return nil
}

// CancelOutgoing withdraws the request requester sent to other.
func (s *CourtshipService) CancelOutgoing(ctx context.Context, requester, other uint) error {
	rel, err := s.edgeBetween(ctx, "cancel", requester, other)
	if err != nil {
		return err
	}
	return s.CancelEdge(ctx, requester, rel)
}

// CancelEdge deletes rel on behalf of the user who sent it.
func (s *CourtshipService) CancelEdge(ctx context.Context, requester uint, rel *models.Relationship) (err error) {
	span, ctx := observability.NewSpan(ctx, "courtship.cancel", attribute.Int64("relationship", int64(rel.ID)))
	defer func() { span.End(err) }()

	if !rel.Kind.IsRequest() {
		return s.reject("cancel", models.NewInvalidTransitionError("Only pending requests can be cancelled."))
	}
	if rel.UserAID != requester {
		return s.reject("cancel", models.NewForbiddenError("Only the sender can cancel a request."))
	}
	if err := s.graph.Remove(ctx, rel); err != nil {
		return s.reject("cancel", err)
	}

	observability.CourtshipTransitions.WithLabelValues("cancel", string(rel.Kind)).Inc()
	s.notify(ctx, rel, rel.UserBID, notifications.EventCourtshipRequestCancelled)
	return nil
}

// Sever ends the established courtship between user and other.
func (s *CourtshipService) Sever(ctx context.Context, user, other uint) error {
	rel, err := s.edgeBetween(ctx, "sever", user, other)
	if err != nil {
		return err
	}
	return s.SeverEdge(ctx, user, rel)
}

// SeverEdge deletes an established rel on behalf of either endpoint.
func (s *CourtshipService) SeverEdge(ctx context.Context, user uint, rel *models.Relationship) (err error) {
	span, ctx := observability.NewSpan(ctx, "courtship.sever", attribute.Int64("relationship", int64(rel.ID)))
	defer func() { span.End(err) }()

	if !rel.Kind.IsEstablished() {
		return s.reject("sever", models.NewInvalidTransitionError("Only established courtships can be removed."))
	}
	if !rel.Involves(user) {
		return s.reject("sever", models.NewForbiddenError("Only a participant can remove a courtship."))
	}
	if err := s.graph.Remove(ctx, rel); err != nil {
		return s.reject("sever", err)
	}

	observability.CourtshipTransitions.WithLabelValues("sever", string(rel.Kind)).Inc()
	s.notify(ctx, rel, rel.Other(user), notifications.EventCourtshipRemoved)
	return nil
}

// FriendsWith reports whether u and other are friends.
func (s *CourtshipService) FriendsWith(ctx context.Context, u, other uint) (bool, error) {
	return s.graph.FriendsWith(ctx, u, other)
}

// Coaches reports whether coach coaches student.
func (s *CourtshipService) Coaches(ctx context.Context, coach, student uint) (bool, error) {
	return s.graph.Coaches(ctx, coach, student)
}

// Summary describes other's role from viewer's side, or nil when unrelated.
func (s *CourtshipService) Summary(ctx context.Context, viewer, other uint) (*models.RelationshipSummary, error) {
	rel, err := s.graph.Lookup(ctx, viewer, other)
	if err != nil {
		return nil, err
	}
	return rel.SummaryFor(viewer), nil
}

// ListRequests returns the pending requests touching user.
func (s *CourtshipService) ListRequests(ctx context.Context, user uint, filter RequestFilter) ([]Courtship, error) {
	query := repository.RelationshipFilter{
		Kinds: []models.RelationshipKind{models.KindFriendRequested, models.KindCoachRequested, models.KindStudentRequested},
	}
	if filter.Type != "" {
		kind, ok := models.RequestKindOf(filter.Type)
		if !ok {
			return nil, models.NewValidationError("Invalid request type.")
		}
		query.Kinds = []models.RelationshipKind{kind}
	}
	switch filter.Dir {
	case "":
	case models.DirIn:
		query.Position = repository.PositionB
	case models.DirOut:
		query.Position = repository.PositionA
	default:
		return nil, models.NewValidationError("Invalid dir.")
	}
	return s.list(ctx, user, query)
}

// ListCourtships returns user's established courtships. courtshipType
// "coach" selects user's coaches and "student" user's students.
func (s *CourtshipService) ListCourtships(ctx context.Context, user uint, courtshipType string) ([]Courtship, error) {
	query := repository.RelationshipFilter{
		Kinds: []models.RelationshipKind{models.KindFriends, models.KindACoachesB},
	}
	switch courtshipType {
	case "":
	case models.CourtshipFriend:
		query.Kinds = []models.RelationshipKind{models.KindFriends}
	case models.CourtshipCoach:
		query.Kinds = []models.RelationshipKind{models.KindACoachesB}
		query.Position = repository.PositionB
	case models.CourtshipStudent:
		query.Kinds = []models.RelationshipKind{models.KindACoachesB}
		query.Position = repository.PositionA
	default:
		return nil, models.NewValidationError("Invalid type.")
	}
	return s.list(ctx, user, query)
}

// Counts tallies user's friends, coaches and students.
func (s *CourtshipService) Counts(ctx context.Context, user uint) (models.CourtshipCounts, error) {
	return s.graph.Counts(ctx, user)
}

func (s *CourtshipService) list(ctx context.Context, user uint, query repository.RelationshipFilter) ([]Courtship, error) {
	rels, err := s.graph.List(ctx, user, query)
	if err != nil {
		return nil, err
	}
	out := make([]Courtship, 0, len(rels))
	for _, rel := range rels {
		out = append(out, Courtship{Relationship: rel, OtherID: rel.Other(user)})
	}
	return out, nil
}

// edgeBetween resolves the edge for a user-addressed operation after
// confirming the counterpart exists.
func (s *CourtshipService) edgeBetween(ctx context.Context, op string, actor, other uint) (*models.Relationship, error) {
	if _, err := s.users.GetByID(ctx, other); err != nil {
		return nil, s.reject(op, err)
	}
	rel, err := s.graph.Lookup(ctx, actor, other)
	if err != nil {
		return nil, s.reject(op, err)
	}
	if rel == nil {
		return nil, s.reject(op, models.NewNotFoundError("Courtship", other))
	}
	return rel, nil
}

func checkIncoming(rel *models.Relationship, recipient uint) error {
	if !rel.Kind.IsRequest() {
		return models.NewInvalidTransitionError("Only pending requests can be answered.")
	}
	if rel.UserBID != recipient {
		return models.NewForbiddenError("Only the recipient can answer a request.")
	}
	return nil
}

func (s *CourtshipService) reject(op string, err error) error {
	code := models.CodeInternal
	var appErr *models.AppError
	if errors.As(err, &appErr) {
		code = appErr.Code
	}
	observability.CourtshipRejections.WithLabelValues(op, code).Inc()
	return err
}

func (s *CourtshipService) notify(ctx context.Context, rel *models.Relationship, to uint, eventType string) {
	if s.publisher == nil {
		return
	}
	payload := notifications.CourtshipPayload{UserID: rel.Other(to)}
	if summary := rel.SummaryFor(to); summary != nil {
		payload.Type = summary.Type
		payload.Dir = summary.Dir
	}
	if err := s.publisher.PublishUser(ctx, to, notifications.Event{Type: eventType, Payload: payload}); err != nil {
		middleware.Logger.WarnContext(ctx, "courtship notification failed",
			slog.String("event", eventType),
			slog.Uint64("user_id", uint64(to)),
			slog.String("error", err.Error()))
	}
}
