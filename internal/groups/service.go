package groups

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/ivanoskov/walla/internal/model"
)

// Repository определяет интерфейс для работы с хранилищем групп
type Repository interface {
	FindNearby(ctx context.Context, lat, lng, distanceKM float64) ([]model.Group, error)
	Insert(ctx context.Context, group *model.Group) error
}

// Service предоставляет поиск и создание групп совместных покупок
type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{
		repo: repo,
	}
}

// CreateParams — поля формы создания группы
type CreateParams struct {
	Name        string
	Description string
	IsPrivate   bool
	MaxMembers  int // 0 — без ограничения
	Latitude    *float64
	Longitude   *float64
}

// Nearby возвращает группы в радиусе distanceKM от точки. Строки без
// валидных координат отбрасываются: на карте их показать нельзя
func (s *Service) Nearby(ctx context.Context, lat, lng, distanceKM float64) ([]model.Group, error) {
	found, err := s.repo.FindNearby(ctx, lat, lng, distanceKM)
	if err != nil {
		return nil, fmt.Errorf("failed to find nearby groups: %w", err)
	}

	valid := make([]model.Group, 0, len(found))
	for _, g := range found {
		glat, glng, ok := g.Coordinates()
		if !ok || math.IsNaN(glat) || math.IsNaN(glng) {
			continue
		}
		valid = append(valid, g)
	}
	return valid, nil
}

// Create валидирует форму и сохраняет новую группу
func (s *Service) Create(ctx context.Context, params CreateParams) (*model.Group, error) {
	name := strings.TrimSpace(params.Name)
	if name == "" {
		return nil, fmt.Errorf("group name is required")
	}
	if params.MaxMembers < 0 {
		return nil, fmt.Errorf("max members must be a positive number")
	}
	if (params.Latitude == nil) != (params.Longitude == nil) {
		return nil, fmt.Errorf("location requires both latitude and longitude")
	}

	group := &model.Group{
		Name:        name,
		Description: params.Description,
		IsPrivate:   params.IsPrivate,
		MaxMembers:  params.MaxMembers,
	}
	if params.Latitude != nil {
		group.Location = &model.GeoPoint{
			Type:        "Point",
			Coordinates: []float64{*params.Longitude, *params.Latitude},
		}
	}
	group.GenerateID()

	if err := s.repo.Insert(ctx, group); err != nil {
		return nil, fmt.Errorf("failed to create group: %w", err)
	}
	return group, nil
}
