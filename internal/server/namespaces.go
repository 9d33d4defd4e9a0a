package server

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/famlink/famlink/internal/database"
	"github.com/famlink/famlink/internal/types"
)

type sendMessagePayload struct {
	Title   string `json:"title,omitempty"`
	Message string `json:"message"`
}

type markMessageReadPayload struct {
	MessageId int `json:"message_id"`
}

type typingPayload struct {
	IsTyping bool `json:"is_typing"`
}

// NewChatGateway builds the chat namespace: family messaging with read
// receipts and an ephemeral typing indicator.
func NewChatGateway(es *EventServer, notifier Notifier, pusher PushSender, logger *log.Logger) *Gateway {
	db := es.db

	actions := map[string]Action{
		"send_message": {
			Event: "new_message",
			Mutate: func(req ActionRequest) (any, error) {
				var p sendMessagePayload
				if err := json.Unmarshal(req.Payload, &p); err != nil || p.Message == "" {
					return nil, errBadPayload
				}

				msg, err := db.CreateChatMessage(database.ChatMessage{
					FamilyId:  req.FamilyId,
					AccountId: req.User.Id,
					Title:     p.Title,
					Content:   p.Message,
				})
				if err != nil {
					return nil, err
				}

				return chatMessageToType(msg), nil
			},
			Notify: func(req ActionRequest, result any) (string, string) {
				title := "New message from " + req.User.Username
				if msg, ok := result.(types.ChatMessage); ok && msg.Title != "" {
					title = msg.Title
				}

				body := ""
				if msg, ok := result.(types.ChatMessage); ok {
					body = msg.Content
				}
				return title, body
			},
		},
		"mark_read": {
			Event: "message_read",
			Mutate: func(req ActionRequest) (any, error) {
				var p markMessageReadPayload
				if err := json.Unmarshal(req.Payload, &p); err != nil || p.MessageId == 0 {
					return nil, errBadPayload
				}

				if err := db.MarkChatMessageRead(p.MessageId, req.User.Id); err != nil {
					return nil, err
				}

				return map[string]any{"message_id": p.MessageId, "reader_id": req.User.Id}, nil
			},
		},
		"typing": {
			// ephemeral: no mutation, no ledger, no push
			Event: "typing",
			Mutate: func(req ActionRequest) (any, error) {
				var p typingPayload
				if err := json.Unmarshal(req.Payload, &p); err != nil {
					return nil, errBadPayload
				}

				return map[string]any{
					"user_id":   req.User.Id,
					"username":  req.User.Username,
					"is_typing": p.IsTyping,
				}, nil
			},
		},
	}

	return NewGateway(NamespaceChat, es, notifier, pusher, actions, logger)
}

type menuEntryPayload struct {
	Id          int    `json:"id,omitempty"`
	Name        string `json:"name"`
	ScheduledOn string `json:"scheduled_on,omitempty"`
}

func NewMenuGateway(es *EventServer, notifier Notifier, pusher PushSender, logger *log.Logger) *Gateway {
	db := es.db

	actions := map[string]Action{
		"create_entry": {
			Event: "menu_entry_created",
			Mutate: func(req ActionRequest) (any, error) {
				var p menuEntryPayload
				if err := json.Unmarshal(req.Payload, &p); err != nil || p.Name == "" {
					return nil, errBadPayload
				}

				entry, err := db.CreateMenuEntry(database.MenuEntry{
					FamilyId:    req.FamilyId,
					AccountId:   req.User.Id,
					Name:        p.Name,
					ScheduledOn: nullString(p.ScheduledOn),
				})
				if err != nil {
					return nil, err
				}

				return menuEntryToType(entry), nil
			},
			Notify: func(req ActionRequest, result any) (string, string) {
				return "Menu updated", fmt.Sprintf("%s added %s to the menu", req.User.Username, resultName(result))
			},
		},
		"update_entry": {
			Event: "menu_entry_updated",
			Mutate: func(req ActionRequest) (any, error) {
				var p menuEntryPayload
				if err := json.Unmarshal(req.Payload, &p); err != nil || p.Id == 0 || p.Name == "" {
					return nil, errBadPayload
				}

				entry, err := db.UpdateMenuEntry(database.MenuEntry{
					Id:          p.Id,
					FamilyId:    req.FamilyId,
					Name:        p.Name,
					ScheduledOn: nullString(p.ScheduledOn),
				})
				if err != nil {
					return nil, err
				}

				return menuEntryToType(entry), nil
			},
			Notify: func(req ActionRequest, result any) (string, string) {
				return "Menu updated", fmt.Sprintf("%s changed %s on the menu", req.User.Username, resultName(result))
			},
		},
		"delete_entry": {
			Event: "menu_entry_deleted",
			Mutate: func(req ActionRequest) (any, error) {
				var p menuEntryPayload
				if err := json.Unmarshal(req.Payload, &p); err != nil || p.Id == 0 {
					return nil, errBadPayload
				}

				if err := db.DeleteMenuEntry(p.Id, req.FamilyId); err != nil {
					return nil, err
				}

				return map[string]any{"id": p.Id}, nil
			},
			Notify: func(req ActionRequest, result any) (string, string) {
				return "Menu updated", fmt.Sprintf("%s removed an entry from the menu", req.User.Username)
			},
		},
	}

	return NewGateway(NamespaceMenu, es, notifier, pusher, actions, logger)
}

type shoppingItemPayload struct {
	Id        int    `json:"id,omitempty"`
	Name      string `json:"name,omitempty"`
	Quantity  int    `json:"quantity,omitempty"`
	Purchased bool   `json:"purchased,omitempty"`
}

func NewShoppingGateway(es *EventServer, notifier Notifier, pusher PushSender, logger *log.Logger) *Gateway {
	db := es.db

	actions := map[string]Action{
		"add_item": {
			Event: "shopping_item_added",
			Mutate: func(req ActionRequest) (any, error) {
				var p shoppingItemPayload
				if err := json.Unmarshal(req.Payload, &p); err != nil || p.Name == "" {
					return nil, errBadPayload
				}

				if p.Quantity <= 0 {
					p.Quantity = 1
				}

				item, err := db.CreateShoppingItem(database.ShoppingItem{
					FamilyId:  req.FamilyId,
					AccountId: req.User.Id,
					Name:      p.Name,
					Quantity:  p.Quantity,
				})
				if err != nil {
					return nil, err
				}

				return shoppingItemToType(item), nil
			},
			Notify: func(req ActionRequest, result any) (string, string) {
				return "Shopping list updated", fmt.Sprintf("%s added %s to the shopping list", req.User.Username, resultName(result))
			},
		},
		"update_item": {
			Event: "shopping_item_updated",
			Mutate: func(req ActionRequest) (any, error) {
				var p shoppingItemPayload
				if err := json.Unmarshal(req.Payload, &p); err != nil || p.Id == 0 || p.Name == "" {
					return nil, errBadPayload
				}

				item, err := db.UpdateShoppingItem(database.ShoppingItem{
					Id:        p.Id,
					FamilyId:  req.FamilyId,
					Name:      p.Name,
					Quantity:  p.Quantity,
					Purchased: p.Purchased,
				})
				if err != nil {
					return nil, err
				}

				return shoppingItemToType(item), nil
			},
		},
		"remove_item": {
			Event: "shopping_item_removed",
			Mutate: func(req ActionRequest) (any, error) {
				var p shoppingItemPayload
				if err := json.Unmarshal(req.Payload, &p); err != nil || p.Id == 0 {
					return nil, errBadPayload
				}

				if err := db.DeleteShoppingItem(p.Id, req.FamilyId); err != nil {
					return nil, err
				}

				return map[string]any{"id": p.Id}, nil
			},
		},
	}

	return NewGateway(NamespaceShopping, es, notifier, pusher, actions, logger)
}

type inventoryItemPayload struct {
	Id        int    `json:"id,omitempty"`
	Name      string `json:"name,omitempty"`
	Quantity  int    `json:"quantity"`
	ExpiresAt string `json:"expires_at,omitempty"`
}

func NewRefrigeratorGateway(es *EventServer, notifier Notifier, pusher PushSender, logger *log.Logger) *Gateway {
	db := es.db

	actions := map[string]Action{
		"add_item": {
			Event: "inventory_item_added",
			Mutate: func(req ActionRequest) (any, error) {
				var p inventoryItemPayload
				if err := json.Unmarshal(req.Payload, &p); err != nil || p.Name == "" {
					return nil, errBadPayload
				}

				expiresAt, err := parseExpiry(p.ExpiresAt)
				if err != nil {
					return nil, errBadPayload
				}

				item, err := db.CreateInventoryItem(database.InventoryItem{
					FamilyId:  sql.NullInt64{Int64: int64(req.FamilyId), Valid: true},
					OwnerId:   req.User.Id,
					Name:      p.Name,
					Quantity:  p.Quantity,
					ExpiresAt: expiresAt,
				})
				if err != nil {
					return nil, err
				}

				return inventoryItemToType(item), nil
			},
		},
		"update_item": {
			Event: "inventory_item_updated",
			Mutate: func(req ActionRequest) (any, error) {
				var p inventoryItemPayload
				if err := json.Unmarshal(req.Payload, &p); err != nil || p.Id == 0 || p.Name == "" {
					return nil, errBadPayload
				}

				expiresAt, err := parseExpiry(p.ExpiresAt)
				if err != nil {
					return nil, errBadPayload
				}

				item, err := db.UpdateInventoryItem(database.InventoryItem{
					Id:        p.Id,
					FamilyId:  sql.NullInt64{Int64: int64(req.FamilyId), Valid: true},
					OwnerId:   req.User.Id,
					Name:      p.Name,
					Quantity:  p.Quantity,
					ExpiresAt: expiresAt,
				})
				if err != nil {
					return nil, err
				}

				return inventoryItemToType(item), nil
			},
		},
		"remove_item": {
			Event: "inventory_item_removed",
			Mutate: func(req ActionRequest) (any, error) {
				var p inventoryItemPayload
				if err := json.Unmarshal(req.Payload, &p); err != nil || p.Id == 0 {
					return nil, errBadPayload
				}

				if err := db.DeleteInventoryItem(p.Id, req.FamilyId, req.User.Id); err != nil {
					return nil, err
				}

				return map[string]any{"id": p.Id}, nil
			},
		},
	}

	return NewGateway(NamespaceRefrigerator, es, notifier, pusher, actions, logger)
}

type markNotificationReadPayload struct {
	NotificationId int `json:"notification_id"`
}

// NewNotificationsGateway builds the notifications feed. Its commands
// are personal: they operate on the caller's own ledger and never
// touch a family room. The resulting unread_count events are emitted
// by the store itself.
func NewNotificationsGateway(es *EventServer, notifier Notifier, pusher PushSender, logger *log.Logger) *Gateway {
	actions := map[string]Action{
		"mark_read": {
			Personal: true,
			Mutate: func(req ActionRequest) (any, error) {
				var p markNotificationReadPayload
				if err := json.Unmarshal(req.Payload, &p); err != nil || p.NotificationId == 0 {
					return nil, errBadPayload
				}

				if err := notifier.MarkRead(p.NotificationId, req.User.Id); err != nil {
					return nil, err
				}

				return map[string]any{"notification_id": p.NotificationId}, nil
			},
		},
		"mark_all_read": {
			Personal: true,
			Mutate: func(req ActionRequest) (any, error) {
				if err := notifier.MarkAllRead(req.User.Id); err != nil {
					return nil, err
				}

				return nil, nil
			},
		},
	}

	return NewGateway(NamespaceNotifications, es, notifier, pusher, actions, logger)
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func parseExpiry(s string) (sql.NullTime, error) {
	if s == "" {
		return sql.NullTime{}, nil
	}

	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return sql.NullTime{}, err
	}

	return sql.NullTime{Time: t, Valid: true}, nil
}

func resultName(result any) string {
	switch v := result.(type) {
	case types.MenuEntry:
		return v.Name
	case types.ShoppingItem:
		return v.Name
	case types.InventoryItem:
		return v.Name
	}
	return "an item"
}

func chatMessageToType(msg database.ChatMessage) types.ChatMessage {
	m := types.ChatMessage{
		Id:        msg.Id,
		FamilyId:  msg.FamilyId,
		UserId:    msg.AccountId,
		Title:     msg.Title,
		Content:   msg.Content,
		CreatedAt: msg.CreatedAt,
	}
	if msg.ReadAt.Valid {
		t := msg.ReadAt.Time
		m.ReadAt = &t
	}
	return m
}

func menuEntryToType(entry database.MenuEntry) types.MenuEntry {
	return types.MenuEntry{
		Id:          entry.Id,
		FamilyId:    entry.FamilyId,
		UserId:      entry.AccountId,
		Name:        entry.Name,
		ScheduledOn: entry.ScheduledOn.String,
		CreatedAt:   entry.CreatedAt,
		UpdatedAt:   entry.UpdatedAt,
	}
}

func shoppingItemToType(item database.ShoppingItem) types.ShoppingItem {
	return types.ShoppingItem{
		Id:        item.Id,
		FamilyId:  item.FamilyId,
		UserId:    item.AccountId,
		Name:      item.Name,
		Quantity:  item.Quantity,
		Purchased: item.Purchased,
		CreatedAt: item.CreatedAt,
		UpdatedAt: item.UpdatedAt,
	}
}

func inventoryItemToType(item database.InventoryItem) types.InventoryItem {
	i := types.InventoryItem{
		Id:        item.Id,
		FamilyId:  int(item.FamilyId.Int64),
		OwnerId:   item.OwnerId,
		Name:      item.Name,
		Quantity:  item.Quantity,
		CreatedAt: item.CreatedAt,
		UpdatedAt: item.UpdatedAt,
	}
	if item.ExpiresAt.Valid {
		t := item.ExpiresAt.Time
		i.ExpiresAt = &t
	}
	return i
}
