package groups

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/supabase-community/supabase-go"

	"github.com/ivanoskov/walla/internal/model"
)

type SupabaseRepository struct {
	client *supabase.Client
}

func NewSupabaseRepository(url, key string) (*SupabaseRepository, error) {
	client, err := supabase.NewClient(url, key, &supabase.ClientOptions{})
	if err != nil {
		return nil, err
	}

	return &SupabaseRepository{
		client: client,
	}, nil
}

func (r *SupabaseRepository) FindNearby(ctx context.Context, lat, lng, distanceKM float64) ([]model.Group, error) {
	raw := r.client.Rpc("find_nearby_groups", "", map[string]interface{}{
		"lat":         lat,
		"lng":         lng,
		"distance_km": distanceKM,
	})
	if raw == "" {
		return nil, fmt.Errorf("find_nearby_groups returned no data")
	}

	var groups []model.Group
	if err := json.Unmarshal([]byte(raw), &groups); err != nil {
		return nil, fmt.Errorf("failed to parse nearby groups: %w", err)
	}
	return groups, nil
}

func (r *SupabaseRepository) Insert(ctx context.Context, group *model.Group) error {
	data, count, err := r.client.From("groups").Insert(group, true, "", "", "").Execute()
	if err != nil {
		return fmt.Errorf("failed to create group: %w", err)
	}
	_ = count

	// Парсим ответ для получения ID и времени создания
	var created []model.Group
	if err := json.Unmarshal(data, &created); err != nil {
		return fmt.Errorf("failed to parse created group: %w", err)
	}
	if len(created) > 0 {
		group.ID = created[0].ID
		group.CreatedAt = created[0].CreatedAt
	}
	return nil
}
