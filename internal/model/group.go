package model

import (
	"time"
	"github.com/google/uuid"
)

// GeoPoint представляет точку в формате GeoJSON: координаты [долгота, широта]
type GeoPoint struct {
	Type        string    `json:"type"`
	Coordinates []float64 `json:"coordinates"`
}

type Group struct {
	ID                 string    `json:"id,omitempty"`
	Name               string    `json:"name"`
	Description        string    `json:"description,omitempty"`
	IsPrivate          bool      `json:"is_private"`
	Location           *GeoPoint `json:"location,omitempty"`
	Address            string    `json:"address,omitempty"`
	ZipCode            string    `json:"zip_code,omitempty"`
	MaxMembers         int       `json:"max_members,omitempty"`
	CurrentMemberCount int       `json:"current_member_count,omitempty"`
	CreatedBy          string    `json:"created_by,omitempty"`
	ImageURL           string    `json:"image_url,omitempty"`
	CreatedAt          time.Time `json:"created_at,omitempty"`
}

// GenerateID генерирует новый UUID для группы, если он еще не установлен
func (g *Group) GenerateID() {
	if g.ID == "" {
		g.ID = uuid.New().String()
	}
}

// Coordinates возвращает широту и долготу группы; ok=false, если координаты
// отсутствуют или заданы не полностью
func (g *Group) Coordinates() (lat, lng float64, ok bool) {
	if g.Location == nil || len(g.Location.Coordinates) != 2 {
		return 0, 0, false
	}
	return g.Location.Coordinates[1], g.Location.Coordinates[0], true
}

type GroupMember struct {
	ID       string    `json:"id,omitempty"`
	GroupID  string    `json:"group_id"`
	UserID   string    `json:"user_id"`
	Role     string    `json:"role"`   // admin или member
	Status   string    `json:"status"` // active, pending или blocked
	JoinedAt time.Time `json:"joined_at,omitempty"`
}
