package database

import (
	"time"
)

func (db *PgFamLinkRepository) CreateAccount(accountParams CreateAccountParams) (User, error) {
	res := db.conn.QueryRow(
		"INSERT INTO accounts (username, email, password_hash, created_at) "+
			"VALUES ($1, $2, $3, $4) RETURNING id, username, email",
		accountParams.Username,
		accountParams.EmailAddress,
		accountParams.PasswordHash,
		time.Now().UTC(),
	)

	var u User
	err := res.Scan(
		&u.Id,
		&u.Username,
		&u.EmailAddress,
	)

	return u, err
}

func (db *PgFamLinkRepository) GetAccountById(id int) (User, error) {
	row := db.conn.QueryRow(
		"SELECT id, username, email, created_at, updated_at FROM accounts "+
			"WHERE id = $1 LIMIT 1",
		id,
	)

	var user User
	err := row.Scan(
		&user.Id,
		&user.Username,
		&user.EmailAddress,
		&user.CreatedAt,
		&user.UpdatedAt,
	)

	return user, err
}

func (db *PgFamLinkRepository) GetAccountByEmail(email string) (User, error) {
	row := db.conn.QueryRow(
		"SELECT id, username, email, password_hash, created_at, updated_at FROM accounts "+
			"WHERE email = $1 LIMIT 1",
		email,
	)

	var user User
	err := row.Scan(
		&user.Id,
		&user.Username,
		&user.EmailAddress,
		&user.PasswordHash,
		&user.CreatedAt,
		&user.UpdatedAt,
	)

	return user, err
}

func (db *PgFamLinkRepository) GetFamilyRole(accountId, familyId int) (string, error) {
	row := db.conn.QueryRow(
		"SELECT role FROM family_members "+
			"WHERE account_id = $1 AND family_id = $2 LIMIT 1",
		accountId,
		familyId,
	)

	var role string
	err := row.Scan(&role)

	return role, err
}

func (db *PgFamLinkRepository) GetFamilyWithMembers(familyId int) (*Family, error) {
	row := db.conn.QueryRow(
		"SELECT id, name, owner_id, created_at FROM families "+
			"WHERE id = $1 LIMIT 1",
		familyId,
	)

	var family Family
	if err := row.Scan(
		&family.Id,
		&family.Name,
		&family.OwnerId,
		&family.CreatedAt,
	); err != nil {
		return nil, err
	}

	rows, err := db.conn.Query(
		"SELECT fm.family_id, fm.account_id, a.username, fm.role "+
			"FROM family_members fm JOIN accounts a ON a.id = fm.account_id "+
			"WHERE fm.family_id = $1 ORDER BY fm.account_id",
		familyId,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var m FamilyMember
		if err := rows.Scan(
			&m.FamilyId,
			&m.AccountId,
			&m.Username,
			&m.Role,
		); err != nil {
			return nil, err
		}
		family.Members = append(family.Members, m)
	}

	return &family, rows.Err()
}

func (db *PgFamLinkRepository) CreateChatMessage(msg ChatMessage) (ChatMessage, error) {
	row := db.conn.QueryRow(
		"INSERT INTO chat_messages (family_id, account_id, title, content, created_at) "+
			"VALUES ($1, $2, $3, $4, $5) RETURNING id, family_id, account_id, title, content, created_at",
		msg.FamilyId,
		msg.AccountId,
		msg.Title,
		msg.Content,
		time.Now().UTC(),
	)

	var created ChatMessage
	err := row.Scan(
		&created.Id,
		&created.FamilyId,
		&created.AccountId,
		&created.Title,
		&created.Content,
		&created.CreatedAt,
	)

	return created, err
}

func (db *PgFamLinkRepository) MarkChatMessageRead(messageId, accountId int) error {
	res, err := db.conn.Exec(
		"UPDATE chat_messages SET read_at = $3 "+
			"WHERE id = $1 AND account_id != $2 AND read_at IS NULL",
		messageId,
		accountId,
		time.Now().UTC(),
	)
	if err != nil {
		return err
	}

	return checkAffected(res)
}

func (db *PgFamLinkRepository) CreateMenuEntry(entry MenuEntry) (MenuEntry, error) {
	row := db.conn.QueryRow(
		"INSERT INTO menu_entries (family_id, account_id, name, scheduled_on, created_at) "+
			"VALUES ($1, $2, $3, $4, $5) RETURNING id, family_id, account_id, name, scheduled_on, created_at",
		entry.FamilyId,
		entry.AccountId,
		entry.Name,
		entry.ScheduledOn,
		time.Now().UTC(),
	)

	var created MenuEntry
	err := row.Scan(
		&created.Id,
		&created.FamilyId,
		&created.AccountId,
		&created.Name,
		&created.ScheduledOn,
		&created.CreatedAt,
	)

	return created, err
}

func (db *PgFamLinkRepository) UpdateMenuEntry(entry MenuEntry) (MenuEntry, error) {
	row := db.conn.QueryRow(
		"UPDATE menu_entries SET name = $3, scheduled_on = $4, updated_at = $5 "+
			"WHERE id = $1 AND family_id = $2 "+
			"RETURNING id, family_id, account_id, name, scheduled_on, created_at, updated_at",
		entry.Id,
		entry.FamilyId,
		entry.Name,
		entry.ScheduledOn,
		time.Now().UTC(),
	)

	var updated MenuEntry
	err := row.Scan(
		&updated.Id,
		&updated.FamilyId,
		&updated.AccountId,
		&updated.Name,
		&updated.ScheduledOn,
		&updated.CreatedAt,
		&updated.UpdatedAt,
	)

	return updated, err
}

func (db *PgFamLinkRepository) DeleteMenuEntry(id, familyId int) error {
	res, err := db.conn.Exec(
		"DELETE FROM menu_entries WHERE id = $1 AND family_id = $2",
		id,
		familyId,
	)
	if err != nil {
		return err
	}

	return checkAffected(res)
}

func (db *PgFamLinkRepository) CreateShoppingItem(item ShoppingItem) (ShoppingItem, error) {
	row := db.conn.QueryRow(
		"INSERT INTO shopping_items (family_id, account_id, name, quantity, created_at) "+
			"VALUES ($1, $2, $3, $4, $5) "+
			"RETURNING id, family_id, account_id, name, quantity, purchased, created_at",
		item.FamilyId,
		item.AccountId,
		item.Name,
		item.Quantity,
		time.Now().UTC(),
	)

	var created ShoppingItem
	err := row.Scan(
		&created.Id,
		&created.FamilyId,
		&created.AccountId,
		&created.Name,
		&created.Quantity,
		&created.Purchased,
		&created.CreatedAt,
	)

	return created, err
}

func (db *PgFamLinkRepository) UpdateShoppingItem(item ShoppingItem) (ShoppingItem, error) {
	row := db.conn.QueryRow(
		"UPDATE shopping_items SET name = $3, quantity = $4, purchased = $5, updated_at = $6 "+
			"WHERE id = $1 AND family_id = $2 "+
			"RETURNING id, family_id, account_id, name, quantity, purchased, created_at, updated_at",
		item.Id,
		item.FamilyId,
		item.Name,
		item.Quantity,
		item.Purchased,
		time.Now().UTC(),
	)

	var updated ShoppingItem
	err := row.Scan(
		&updated.Id,
		&updated.FamilyId,
		&updated.AccountId,
		&updated.Name,
		&updated.Quantity,
		&updated.Purchased,
		&updated.CreatedAt,
		&updated.UpdatedAt,
	)

	return updated, err
}

func (db *PgFamLinkRepository) DeleteShoppingItem(id, familyId int) error {
	res, err := db.conn.Exec(
		"DELETE FROM shopping_items WHERE id = $1 AND family_id = $2",
		id,
		familyId,
	)
	if err != nil {
		return err
	}

	return checkAffected(res)
}

func (db *PgFamLinkRepository) CreateInventoryItem(item InventoryItem) (InventoryItem, error) {
	row := db.conn.QueryRow(
		"INSERT INTO inventory_items (family_id, owner_id, name, quantity, expires_at, created_at) "+
			"VALUES ($1, $2, $3, $4, $5, $6) "+
			"RETURNING id, family_id, owner_id, name, quantity, expires_at, created_at",
		item.FamilyId,
		item.OwnerId,
		item.Name,
		item.Quantity,
		item.ExpiresAt,
		time.Now().UTC(),
	)

	var created InventoryItem
	err := row.Scan(
		&created.Id,
		&created.FamilyId,
		&created.OwnerId,
		&created.Name,
		&created.Quantity,
		&created.ExpiresAt,
		&created.CreatedAt,
	)

	return created, err
}

func (db *PgFamLinkRepository) UpdateInventoryItem(item InventoryItem) (InventoryItem, error) {
	row := db.conn.QueryRow(
		"UPDATE inventory_items SET name = $3, quantity = $4, expires_at = $5, updated_at = $6 "+
			"WHERE id = $1 AND (family_id = $2 OR (family_id IS NULL AND owner_id = $7)) "+
			"RETURNING id, family_id, owner_id, name, quantity, expires_at, created_at, updated_at",
		item.Id,
		item.FamilyId,
		item.Name,
		item.Quantity,
		item.ExpiresAt,
		time.Now().UTC(),
		item.OwnerId,
	)

	var updated InventoryItem
	err := row.Scan(
		&updated.Id,
		&updated.FamilyId,
		&updated.OwnerId,
		&updated.Name,
		&updated.Quantity,
		&updated.ExpiresAt,
		&updated.CreatedAt,
		&updated.UpdatedAt,
	)

	return updated, err
}

func (db *PgFamLinkRepository) DeleteInventoryItem(id, familyId, ownerId int) error {
	res, err := db.conn.Exec(
		"DELETE FROM inventory_items "+
			"WHERE id = $1 AND (family_id = $2 OR (family_id IS NULL AND owner_id = $3))",
		id,
		familyId,
		ownerId,
	)
	if err != nil {
		return err
	}

	return checkAffected(res)
}

// ListExpiringItems returns inventory rows with stock remaining whose
// expiry date falls on or before the deadline and which have not yet
// been notified on the given day.
func (db *PgFamLinkRepository) ListExpiringItems(deadline, day time.Time) ([]InventoryItem, error) {
	rows, err := db.conn.Query(
		"SELECT id, family_id, owner_id, name, quantity, expires_at, last_notified_on, created_at "+
			"FROM inventory_items "+
			"WHERE expires_at IS NOT NULL AND quantity > 0 AND expires_at <= $1 "+
			"AND (last_notified_on IS NULL OR last_notified_on < $2) "+
			"ORDER BY expires_at",
		deadline,
		day,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []InventoryItem
	for rows.Next() {
		var item InventoryItem
		if err := rows.Scan(
			&item.Id,
			&item.FamilyId,
			&item.OwnerId,
			&item.Name,
			&item.Quantity,
			&item.ExpiresAt,
			&item.LastNotifiedOn,
			&item.CreatedAt,
		); err != nil {
			return nil, err
		}
		items = append(items, item)
	}

	return items, rows.Err()
}

func (db *PgFamLinkRepository) MarkItemNotified(itemId int, day time.Time) error {
	_, err := db.conn.Exec(
		"UPDATE inventory_items SET last_notified_on = $2 WHERE id = $1",
		itemId,
		day,
	)

	return err
}

func (db *PgFamLinkRepository) UpsertDeviceToken(params UpsertDeviceTokenParams) (DeviceToken, error) {
	row := db.conn.QueryRow(
		"INSERT INTO device_tokens (account_id, token, platform, created_at, updated_at) "+
			"VALUES ($1, $2, $3, $4, $4) "+
			"ON CONFLICT (token) DO UPDATE SET account_id = $1, platform = $3, updated_at = $4 "+
			"RETURNING id, account_id, token, platform, created_at, updated_at",
		params.AccountId,
		params.Token,
		params.Platform,
		time.Now().UTC(),
	)

	var token DeviceToken
	err := row.Scan(
		&token.Id,
		&token.AccountId,
		&token.Token,
		&token.Platform,
		&token.CreatedAt,
		&token.UpdatedAt,
	)

	return token, err
}

func (db *PgFamLinkRepository) GetDeviceTokensByAccountId(accountId int) ([]DeviceToken, error) {
	rows, err := db.conn.Query(
		"SELECT id, account_id, token, platform, created_at, updated_at FROM device_tokens "+
			"WHERE account_id = $1 ORDER BY id",
		accountId,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tokens []DeviceToken
	for rows.Next() {
		var token DeviceToken
		if err := rows.Scan(
			&token.Id,
			&token.AccountId,
			&token.Token,
			&token.Platform,
			&token.CreatedAt,
			&token.UpdatedAt,
		); err != nil {
			return nil, err
		}
		tokens = append(tokens, token)
	}

	return tokens, rows.Err()
}

func (db *PgFamLinkRepository) DeleteDeviceToken(token string) error {
	_, err := db.conn.Exec(
		"DELETE FROM device_tokens WHERE token = $1",
		token,
	)

	return err
}

func (db *PgFamLinkRepository) CreateNotification(params CreateNotificationParams) (Notification, error) {
	row := db.conn.QueryRow(
		"INSERT INTO notifications (account_id, title, body, created_at) "+
			"VALUES ($1, $2, $3, $4) RETURNING id, account_id, title, body, is_read, created_at",
		params.AccountId,
		params.Title,
		params.Body,
		time.Now().UTC(),
	)

	var n Notification
	err := row.Scan(
		&n.Id,
		&n.AccountId,
		&n.Title,
		&n.Body,
		&n.IsRead,
		&n.CreatedAt,
	)

	return n, err
}

func (db *PgFamLinkRepository) ListNotifications(accountId, limit, offset int) ([]Notification, error) {
	rows, err := db.conn.Query(
		"SELECT id, account_id, title, body, is_read, created_at FROM notifications "+
			"WHERE account_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3",
		accountId,
		limit,
		offset,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var notifications []Notification
	for rows.Next() {
		var n Notification
		if err := rows.Scan(
			&n.Id,
			&n.AccountId,
			&n.Title,
			&n.Body,
			&n.IsRead,
			&n.CreatedAt,
		); err != nil {
			return nil, err
		}
		notifications = append(notifications, n)
	}

	return notifications, rows.Err()
}

func (db *PgFamLinkRepository) GetUnreadNotificationCount(accountId int) (int, error) {
	row := db.conn.QueryRow(
		"SELECT COUNT(*) FROM notifications WHERE account_id = $1 AND is_read = FALSE",
		accountId,
	)

	var count int
	err := row.Scan(&count)

	return count, err
}

// MarkNotificationRead flips is_read for a single row. The account id
// guard enforces ownership, the is_read guard keeps the flip monotonic.
func (db *PgFamLinkRepository) MarkNotificationRead(id, accountId int) error {
	res, err := db.conn.Exec(
		"UPDATE notifications SET is_read = TRUE "+
			"WHERE id = $1 AND account_id = $2 AND is_read = FALSE",
		id,
		accountId,
	)
	if err != nil {
		return err
	}

	return checkAffected(res)
}

func (db *PgFamLinkRepository) MarkAllNotificationsRead(accountId int) error {
	_, err := db.conn.Exec(
		"UPDATE notifications SET is_read = TRUE "+
			"WHERE account_id = $1 AND is_read = FALSE",
		accountId,
	)

	return err
}

func (db *PgFamLinkRepository) DeleteNotification(id, accountId int) error {
	res, err := db.conn.Exec(
		"DELETE FROM notifications WHERE id = $1 AND account_id = $2",
		id,
		accountId,
	)
	if err != nil {
		return err
	}

	return checkAffected(res)
}

func (db *PgFamLinkRepository) DeleteAllNotifications(accountId int) error {
	_, err := db.conn.Exec(
		"DELETE FROM notifications WHERE account_id = $1",
		accountId,
	)

	return err
}
