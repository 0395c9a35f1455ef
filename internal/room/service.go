package room

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// Store is the persistence the room service needs.
type Store interface {
	Create(ctx context.Context, room *Room) error
	FindByID(ctx context.Context, id primitive.ObjectID) (*Room, error)
	FindAll(ctx context.Context) ([]*Room, error)
	Count(ctx context.Context) (int64, error)
	Update(ctx context.Context, id primitive.ObjectID, room *Room) error
	Delete(ctx context.Context, id primitive.ObjectID) error
}

// RoomService handles admin room management.
type RoomService struct {
	store  Store
	logger *zap.Logger
	now    func() time.Time
}

func NewRoomService(store Store, logger *zap.Logger) *RoomService {
	return &RoomService{store: store, logger: logger, now: time.Now}
}

func (s *RoomService) Create(ctx context.Context, req RoomRequest, createdBy primitive.ObjectID) (*Room, error) {
	now := s.now().UTC()
	room := &Room{
		ID:          primitive.NewObjectID(),
		Name:        req.Name,
		Building:    req.Building,
		Floor:       req.Floor,
		Type:        req.Type,
		Capacity:    req.Capacity,
		Facilities:  req.Facilities,
		IsAvailable: req.IsAvailable == nil || *req.IsAvailable,
		CreatedBy:   createdBy,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.store.Create(ctx, room); err != nil {
		return nil, err
	}
	s.logger.Info("room created", zap.String("room", room.Name), zap.String("by", createdBy.Hex()))
	return room, nil
}

// Update replaces the editable fields of a room. The usage counter is kept.
func (s *RoomService) Update(ctx context.Context, id primitive.ObjectID, req RoomRequest) (*Room, error) {
	room, err := s.store.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	room.Name = req.Name
	room.Building = req.Building
	room.Floor = req.Floor
	room.Type = req.Type
	room.Capacity = req.Capacity
	room.Facilities = req.Facilities
	if req.IsAvailable != nil {
		room.IsAvailable = *req.IsAvailable
	}
	room.UpdatedAt = s.now().UTC()
	if err := s.store.Update(ctx, id, room); err != nil {
		return nil, err
	}
	return room, nil
}

func (s *RoomService) List(ctx context.Context) ([]*Room, error) {
	return s.store.FindAll(ctx)
}

func (s *RoomService) Delete(ctx context.Context, id primitive.ObjectID) error {
	return s.store.Delete(ctx, id)
}

// Seed inserts rooms only when the collection is empty.
func (s *RoomService) Seed(ctx context.Context, rooms []Room) (int, error) {
	n, err := s.store.Count(ctx)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		return 0, nil
	}
	now := s.now().UTC()
	for i := range rooms {
		rm := rooms[i]
		rm.ID = primitive.NewObjectID()
		rm.CreatedAt, rm.UpdatedAt = now, now
		if err := s.store.Create(ctx, &rm); err != nil {
			return i, err
		}
	}
	return len(rooms), nil
}
