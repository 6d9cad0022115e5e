package models

import "time"

// Branch: terminalin bağlı olduğu şube. Satır ilk açılışta env'den
// tohumlanır; asıl kaynak merkezdeki uzak sistemdir, terminal yalnızca
// kendi şubesini tanır.
type Branch struct {
	ID        uint   `gorm:"primaryKey"`
	Name      string `gorm:"size:100;not null"`
	Address   string `gorm:"size:255"`
	CreatedAt time.Time
	UpdatedAt time.Time

	Users []User
}
