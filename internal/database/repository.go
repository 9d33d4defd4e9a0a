package database

import "time"

type FamLinkRepository interface {
	CreateAccount(params CreateAccountParams) (User, error)
	GetAccountById(accountId int) (User, error)
	GetAccountByEmail(email string) (User, error)

	// Family membership facts are maintained by the family service and
	// only read here.
	GetFamilyRole(accountId, familyId int) (string, error)
	GetFamilyWithMembers(familyId int) (*Family, error)

	CreateChatMessage(msg ChatMessage) (ChatMessage, error)
	MarkChatMessageRead(messageId, accountId int) error

	CreateMenuEntry(entry MenuEntry) (MenuEntry, error)
	UpdateMenuEntry(entry MenuEntry) (MenuEntry, error)
	DeleteMenuEntry(id, familyId int) error

	CreateShoppingItem(item ShoppingItem) (ShoppingItem, error)
	UpdateShoppingItem(item ShoppingItem) (ShoppingItem, error)
	DeleteShoppingItem(id, familyId int) error

	CreateInventoryItem(item InventoryItem) (InventoryItem, error)
	UpdateInventoryItem(item InventoryItem) (InventoryItem, error)
	DeleteInventoryItem(id, familyId, ownerId int) error
	ListExpiringItems(deadline, day time.Time) ([]InventoryItem, error)
	MarkItemNotified(itemId int, day time.Time) error

	UpsertDeviceToken(params UpsertDeviceTokenParams) (DeviceToken, error)
	GetDeviceTokensByAccountId(accountId int) ([]DeviceToken, error)
	DeleteDeviceToken(token string) error

	CreateNotification(params CreateNotificationParams) (Notification, error)
	ListNotifications(accountId, limit, offset int) ([]Notification, error)
	GetUnreadNotificationCount(accountId int) (int, error)
	MarkNotificationRead(id, accountId int) error
	MarkAllNotificationsRead(accountId int) error
	DeleteNotification(id, accountId int) error
	DeleteAllNotifications(accountId int) error
}
