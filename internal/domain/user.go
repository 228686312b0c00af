package domain

import "time"

type User struct {
	ID         int64
	TelegramID int64
	Username   string
	CreatedAt  time.Time
}

func (u *User) DisplayName() string {
	if u.Username != "" {
		return "@" + u.Username
	}
	return "user"
}
