package database

import (
	"database/sql"
	"time"
)

type User struct {
	Id           int
	Username     string
	EmailAddress string
	PasswordHash string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type Family struct {
	Id        int
	Name      string
	OwnerId   int
	CreatedAt time.Time
	Members   []FamilyMember
}

type FamilyMember struct {
	FamilyId  int
	AccountId int
	Username  string
	Role      string
}

type ChatMessage struct {
	Id        int
	FamilyId  int
	AccountId int
	Title     string
	Content   string
	ReadAt    sql.NullTime
	CreatedAt time.Time
}

type MenuEntry struct {
	Id          int
	FamilyId    int
	AccountId   int
	Name        string
	ScheduledOn sql.NullString
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type ShoppingItem struct {
	Id        int
	FamilyId  int
	AccountId int
	Name      string
	Quantity  int
	Purchased bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// InventoryItem rows with a null FamilyId belong to a personal
// inventory owned solely by OwnerId.
type InventoryItem struct {
	Id             int
	FamilyId       sql.NullInt64
	OwnerId        int
	Name           string
	Quantity       int
	ExpiresAt      sql.NullTime
	LastNotifiedOn sql.NullTime
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

type DeviceToken struct {
	Id        int
	AccountId int
	Token     string
	Platform  string
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Notification struct {
	Id        int
	AccountId int
	Title     string
	Body      string
	IsRead    bool
	CreatedAt time.Time
}

type CreateAccountParams struct {
	Username     string
	EmailAddress string
	PasswordHash string
}

type UpsertDeviceTokenParams struct {
	AccountId int
	Token     string
	Platform  string
}

type CreateNotificationParams struct {
	AccountId int
	Title     string
	Body      string
}
