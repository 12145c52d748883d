package catalog

import (
	"context"
	"fmt"

	"ms-events/internal/logger"
	"ms-events/internal/models"
	"ms-events/internal/ticketing"
)

type CatalogDB interface {
	ListEvents(ctx context.Context, visibleOnly bool) ([]models.Event, error)
	GetEvent(ctx context.Context, id int64) (*models.Event, error)
	CreateEvent(ctx context.Context, event *models.Event, defs []models.TicketTypeDefinition) error
	UpdateEvent(ctx context.Context, event *models.Event) error
	EventExists(ctx context.Context, id int64) (bool, error)
	ListTicketTypes(ctx context.Context, eventID int64) ([]models.TicketType, error)
	GetTicketType(ctx context.Context, id int64) (*models.TicketType, error)
	CreateTicketType(ctx context.Context, tt *models.TicketType, groupIDs []int64) error
	UpdateTicketType(ctx context.Context, tt *models.TicketType, groupIDs *[]int64) error
}

type EventPublisher interface {
	PublishEventCreated(event models.Event) error
}

// Service is the catalog store: event and ticket-type CRUD with visibility
// and group filtering per viewer. Destructive edits are not here, they go
// through the coordinator.
type Service struct {
	DB     CatalogDB
	Kafka  EventPublisher
	Logger *logger.Logger
}

func NewService(db CatalogDB, kafka EventPublisher, log *logger.Logger) *Service {
	return &Service{DB: db, Kafka: kafka, Logger: log}
}

// ListEvents returns the catalog as the viewer may see it: non-staff get only
// visible events, and each event's ticket types are filtered down to the ones
// the viewer's groups authorize.
func (s *Service) ListEvents(ctx context.Context, viewer models.Viewer) ([]models.Event, error) {
	events, err := s.DB.ListEvents(ctx, !viewer.IsStaff)
	if err != nil {
		return nil, err
	}
	for i := range events {
		events[i].TicketTypes = filterTicketTypes(events[i].TicketTypes, viewer)
	}
	return events, nil
}

// GetEvent applies the same visibility rule as listing: a hidden event is
// not-found for non-staff viewers.
func (s *Service) GetEvent(ctx context.Context, viewer models.Viewer, id int64) (*models.Event, error) {
	event, err := s.DB.GetEvent(ctx, id)
	if err != nil {
		return nil, err
	}
	if !event.IsVisible && !viewer.IsStaff {
		return nil, ticketing.ErrNotFound
	}
	event.TicketTypes = filterTicketTypes(event.TicketTypes, viewer)
	return event, nil
}

func filterTicketTypes(types []*models.TicketType, viewer models.Viewer) []*models.TicketType {
	if viewer.IsStaff {
		return types
	}
	filtered := make([]*models.TicketType, 0, len(types))
	for _, tt := range types {
		if tt.AuthorizedFor(viewer.GroupIDs, viewer.IsStaff) {
			filtered = append(filtered, tt)
		}
	}
	return filtered
}

// CreateEvent validates and stores a new event with its initial ticket types.
func (s *Service) CreateEvent(ctx context.Context, create models.EventCreate) (*models.Event, error) {
	if create.Name == "" {
		return nil, fmt.Errorf("%w: event name is required", ticketing.ErrInvalidInput)
	}
	if err := validateCoordinates(create.Latitude, create.Longitude); err != nil {
		return nil, err
	}
	for _, def := range create.TicketTypes {
		if err := ticketing.ValidateDefinition(def); err != nil {
			return nil, err
		}
	}

	event := models.Event{
		Name:        create.Name,
		Image:       create.Image,
		Date:        create.Date,
		Description: create.Description,
		Location:    create.Location,
		Latitude:    create.Latitude,
		Longitude:   create.Longitude,
		IsVisible:   create.IsVisible,
	}
	if err := s.DB.CreateEvent(ctx, &event, create.TicketTypes); err != nil {
		return nil, err
	}

	if s.Kafka != nil {
		if err := s.Kafka.PublishEventCreated(event); err != nil {
			s.Logger.Error("KAFKA", fmt.Sprintf("failed to publish event creation %d: %v", event.ID, err))
		}
	}
	return &event, nil
}

// UpdateEventFields applies a partial edit to the event's own columns. The
// nested ticket-type reconciliation is the coordinator's job and is run by
// the API layer before this.
func (s *Service) UpdateEventFields(ctx context.Context, id int64, update models.EventUpdate) (*models.Event, error) {
	event, err := s.DB.GetEvent(ctx, id)
	if err != nil {
		return nil, err
	}

	update.Apply(event)
	if err := validateCoordinates(event.Latitude, event.Longitude); err != nil {
		return nil, err
	}
	if event.Name == "" {
		return nil, fmt.Errorf("%w: event name cannot be empty", ticketing.ErrInvalidInput)
	}
	if err := s.DB.UpdateEvent(ctx, event); err != nil {
		return nil, err
	}
	return event, nil
}

// ListTicketTypes returns an event's ticket types filtered for the viewer.
// The event's visibility rule applies here too, so the sub-resource cannot
// be used to probe hidden events.
func (s *Service) ListTicketTypes(ctx context.Context, viewer models.Viewer, eventID int64) ([]models.TicketType, error) {
	event, err := s.DB.GetEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if !event.IsVisible && !viewer.IsStaff {
		return nil, ticketing.ErrNotFound
	}

	types, err := s.DB.ListTicketTypes(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if viewer.IsStaff {
		return types, nil
	}
	filtered := make([]models.TicketType, 0, len(types))
	for _, tt := range types {
		if tt.AuthorizedFor(viewer.GroupIDs, viewer.IsStaff) {
			filtered = append(filtered, tt)
		}
	}
	return filtered, nil
}

func (s *Service) GetTicketType(ctx context.Context, viewer models.Viewer, id int64) (*models.TicketType, error) {
	tt, err := s.DB.GetTicketType(ctx, id)
	if err != nil {
		return nil, err
	}
	if !viewer.IsStaff {
		event, err := s.DB.GetEvent(ctx, tt.EventID)
		if err != nil {
			return nil, err
		}
		if !event.IsVisible {
			return nil, ticketing.ErrNotFound
		}
	}
	if !tt.AuthorizedFor(viewer.GroupIDs, viewer.IsStaff) {
		return nil, ticketing.ErrNotFound
	}
	return tt, nil
}

// CreateTicketType adds one ticket type to an event.
func (s *Service) CreateTicketType(ctx context.Context, eventID int64, def models.TicketTypeDefinition) (*models.TicketType, error) {
	exists, err := s.DB.EventExists(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, ticketing.ErrNotFound
	}
	if err := ticketing.ValidateDefinition(def); err != nil {
		return nil, err
	}

	tt := models.TicketType{
		EventID:           eventID,
		Name:              def.Name,
		Price:             def.Price,
		QuantityAvailable: def.QuantityAvailable,
	}
	if err := s.DB.CreateTicketType(ctx, &tt, def.GroupIDs); err != nil {
		return nil, err
	}
	return s.DB.GetTicketType(ctx, tt.ID)
}

// UpdateTicketType applies a partial edit to one ticket type.
func (s *Service) UpdateTicketType(ctx context.Context, id int64, update models.TicketTypeUpdate) (*models.TicketType, error) {
	tt, err := s.DB.GetTicketType(ctx, id)
	if err != nil {
		return nil, err
	}

	update.Apply(tt)
	if err := ticketing.ValidateDefinition(models.TicketTypeDefinition{
		Name:              tt.Name,
		Price:             tt.Price,
		QuantityAvailable: tt.QuantityAvailable,
	}); err != nil {
		return nil, err
	}

	var groupIDs *[]int64
	if update.GroupIDs != nil {
		groupIDs = update.GroupIDs
	}
	if err := s.DB.UpdateTicketType(ctx, tt, groupIDs); err != nil {
		return nil, err
	}
	return s.DB.GetTicketType(ctx, id)
}

func validateCoordinates(latitude, longitude float64) error {
	if latitude < -90 || latitude > 90 {
		return fmt.Errorf("%w: latitude must be within [-90, 90]", ticketing.ErrInvalidInput)
	}
	if longitude < -180 || longitude > 180 {
		return fmt.Errorf("%w: longitude must be within [-180, 180]", ticketing.ErrInvalidInput)
	}
	return nil
}
