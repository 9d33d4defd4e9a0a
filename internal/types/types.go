package types

import (
	"time"
)

type User struct {
	Id           int       `json:"id"`
	Username     string    `json:"username"`
	EmailAddress string    `json:"email_address,omitempty"`
	Password     string    `json:"-"`
	CreatedAt    time.Time `json:"created_at,omitempty"`
	UpdatedAt    time.Time `json:"updated_at,omitempty"`
}

// Family roles as stored in the membership table. All three roles are
// allowed to join family rooms and perform family-scoped actions.
const (
	RoleOwner  = "owner"
	RoleAdmin  = "admin"
	RoleMember = "member"
)

type Family struct {
	Id      int            `json:"id"`
	Name    string         `json:"name"`
	OwnerId int            `json:"owner_id"`
	Members []FamilyMember `json:"members,omitempty"`
}

type FamilyMember struct {
	UserId   int    `json:"user_id"`
	Username string `json:"username"`
	Role     string `json:"role"`
}

type Notification struct {
	Id        int       `json:"id"`
	UserId    int       `json:"user_id"`
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	IsRead    bool      `json:"is_read"`
	CreatedAt time.Time `json:"created_at"`
}

type DeviceToken struct {
	Id        int       `json:"id"`
	UserId    int       `json:"user_id"`
	Token     string    `json:"-"`
	Platform  string    `json:"platform"`
	CreatedAt time.Time `json:"created_at,omitempty"`
	UpdatedAt time.Time `json:"updated_at,omitempty"`
}

type ChatMessage struct {
	Id        int        `json:"id"`
	FamilyId  int        `json:"family_id"`
	UserId    int        `json:"user_id"`
	Title     string     `json:"title,omitempty"`
	Content   string     `json:"content"`
	ReadAt    *time.Time `json:"read_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

type MenuEntry struct {
	Id          int       `json:"id"`
	FamilyId    int       `json:"family_id"`
	UserId      int       `json:"user_id"`
	Name        string    `json:"name"`
	ScheduledOn string    `json:"scheduled_on,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at,omitempty"`
}

type ShoppingItem struct {
	Id        int       `json:"id"`
	FamilyId  int       `json:"family_id"`
	UserId    int       `json:"user_id"`
	Name      string    `json:"name"`
	Quantity  int       `json:"quantity"`
	Purchased bool      `json:"purchased"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at,omitempty"`
}

// InventoryItem is a refrigerator or pantry row. FamilyId is zero for
// a personal inventory, in which case OwnerId is the owning scope.
type InventoryItem struct {
	Id             int        `json:"id"`
	FamilyId       int        `json:"family_id,omitempty"`
	OwnerId        int        `json:"owner_id"`
	Name           string     `json:"name"`
	Quantity       int        `json:"quantity"`
	ExpiresAt      *time.Time `json:"expires_at,omitempty"`
	LastNotifiedOn *time.Time `json:"-"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at,omitempty"`
}
