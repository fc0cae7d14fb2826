package model

import "time"

// User 用户模型
type User struct {
	ID        uint64    `gorm:"primarykey" json:"id"`
	Mobile    string    `gorm:"unique;not null;size:11" json:"mobile"`
	Username  string    `gorm:"unique;not null;size:50" json:"username"`
	Password  string    `gorm:"not null;size:100" json:"-"`
	Nickname  string    `gorm:"size:100" json:"nickname"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
