package database

import (
	"time"

	"github.com/stretchr/testify/mock"
)

type MockFamLinkRepository struct {
	mock.Mock
}

func (m *MockFamLinkRepository) CreateAccount(accountParams CreateAccountParams) (User, error) {
	args := m.Called(accountParams)
	return args.Get(0).(User), args.Error(1)
}
func (m *MockFamLinkRepository) GetAccountById(accountId int) (User, error) {
	args := m.Called(accountId)
	return args.Get(0).(User), args.Error(1)
}
func (m *MockFamLinkRepository) GetAccountByEmail(email string) (User, error) {
	args := m.Called(email)
	return args.Get(0).(User), args.Error(1)
}
func (m *MockFamLinkRepository) GetFamilyRole(accountId, familyId int) (string, error) {
	args := m.Called(accountId, familyId)
	return args.String(0), args.Error(1)
}
func (m *MockFamLinkRepository) GetFamilyWithMembers(familyId int) (*Family, error) {
	args := m.Called(familyId)
	if family, ok := args.Get(0).(*Family); ok {
		return family, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *MockFamLinkRepository) CreateChatMessage(msg ChatMessage) (ChatMessage, error) {
	args := m.Called(msg)
	return args.Get(0).(ChatMessage), args.Error(1)
}
func (m *MockFamLinkRepository) MarkChatMessageRead(messageId, accountId int) error {
	args := m.Called(messageId, accountId)
	return args.Error(0)
}
func (m *MockFamLinkRepository) CreateMenuEntry(entry MenuEntry) (MenuEntry, error) {
	args := m.Called(entry)
	return args.Get(0).(MenuEntry), args.Error(1)
}
func (m *MockFamLinkRepository) UpdateMenuEntry(entry MenuEntry) (MenuEntry, error) {
	args := m.Called(entry)
	return args.Get(0).(MenuEntry), args.Error(1)
}
func (m *MockFamLinkRepository) DeleteMenuEntry(id, familyId int) error {
	args := m.Called(id, familyId)
	return args.Error(0)
}
func (m *MockFamLinkRepository) CreateShoppingItem(item ShoppingItem) (ShoppingItem, error) {
	args := m.Called(item)
	return args.Get(0).(ShoppingItem), args.Error(1)
}
func (m *MockFamLinkRepository) UpdateShoppingItem(item ShoppingItem) (ShoppingItem, error) {
	args := m.Called(item)
	return args.Get(0).(ShoppingItem), args.Error(1)
}
func (m *MockFamLinkRepository) DeleteShoppingItem(id, familyId int) error {
	args := m.Called(id, familyId)
	return args.Error(0)
}
func (m *MockFamLinkRepository) CreateInventoryItem(item InventoryItem) (InventoryItem, error) {
	args := m.Called(item)
	return args.Get(0).(InventoryItem), args.Error(1)
}
func (m *MockFamLinkRepository) UpdateInventoryItem(item InventoryItem) (InventoryItem, error) {
	args := m.Called(item)
	return args.Get(0).(InventoryItem), args.Error(1)
}
func (m *MockFamLinkRepository) DeleteInventoryItem(id, familyId, ownerId int) error {
	args := m.Called(id, familyId, ownerId)
	return args.Error(0)
}
func (m *MockFamLinkRepository) ListExpiringItems(deadline, day time.Time) ([]InventoryItem, error) {
	args := m.Called(deadline, day)
	return args.Get(0).([]InventoryItem), args.Error(1)
}
func (m *MockFamLinkRepository) MarkItemNotified(itemId int, day time.Time) error {
	args := m.Called(itemId, day)
	return args.Error(0)
}
func (m *MockFamLinkRepository) UpsertDeviceToken(params UpsertDeviceTokenParams) (DeviceToken, error) {
	args := m.Called(params)
	return args.Get(0).(DeviceToken), args.Error(1)
}
func (m *MockFamLinkRepository) GetDeviceTokensByAccountId(accountId int) ([]DeviceToken, error) {
	args := m.Called(accountId)
	return args.Get(0).([]DeviceToken), args.Error(1)
}
func (m *MockFamLinkRepository) DeleteDeviceToken(token string) error {
	args := m.Called(token)
	return args.Error(0)
}
func (m *MockFamLinkRepository) CreateNotification(params CreateNotificationParams) (Notification, error) {
	args := m.Called(params)
	return args.Get(0).(Notification), args.Error(1)
}
func (m *MockFamLinkRepository) ListNotifications(accountId, limit, offset int) ([]Notification, error) {
	args := m.Called(accountId, limit, offset)
	return args.Get(0).([]Notification), args.Error(1)
}
func (m *MockFamLinkRepository) GetUnreadNotificationCount(accountId int) (int, error) {
	args := m.Called(accountId)
	return args.Int(0), args.Error(1)
}
func (m *MockFamLinkRepository) MarkNotificationRead(id, accountId int) error {
	args := m.Called(id, accountId)
	return args.Error(0)
}
func (m *MockFamLinkRepository) MarkAllNotificationsRead(accountId int) error {
	args := m.Called(accountId)
	return args.Error(0)
}
func (m *MockFamLinkRepository) DeleteNotification(id, accountId int) error {
	args := m.Called(id, accountId)
	return args.Error(0)
}
func (m *MockFamLinkRepository) DeleteAllNotifications(accountId int) error {
	args := m.Called(accountId)
	return args.Error(0)
}
