package models

// All returns every persisted model in dependency order, for dev auto-migrate
// and test database setup.
func All() []any {
	return []any{
		&Role{},
		&User{},
		&UserRole{},
		&Product{},
		&Order{},
		&OrderLineItem{},
		&OutboxEvent{},
	}
}
