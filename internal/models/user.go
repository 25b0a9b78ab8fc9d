package models

import (
	"time"

	"github.com/google/uuid"
)

type User struct {
	ID       uuid.UUID `json:"id"`
	Username string    `json:"username"`
	Password string    `json:"-"`
	Avatar   string    `json:"avatar"`

	CreatedAt time.Time `json:"created_at"`
}

// Public is the user as returned by the account endpoints.
type Public struct {
	ID       uuid.UUID `json:"id"`
	Username string    `json:"username"`
	Avatar   string    `json:"avatar"`
}

func (u *User) Public() Public {
	return Public{ID: u.ID, Username: u.Username, Avatar: u.Avatar}
}

var avatars = []string{
	"🐶", "🐱", "🐭", "🐹", "🐰", "🦊", "🐻", "🐼", "🐨", "🐯",
	"🦁", "🐮", "🐷", "🐸", "🐵", "🐔", "🐧", "🐦", "🐤", "🦆",
	"🦅", "🦉", "🐺", "🐗", "🐴", "🦄", "🐝", "🦋", "🐌", "🐞",
	"🐢", "🐍", "🦎", "🐙", "🦑", "🦀", "🐠", "🐬", "🐳", "🦈",
	"🐊", "🐅", "🦓", "🐘", "🦒", "🦘", "🦙", "🦔", "🐉", "🌵",
	"🌲", "🍀", "🍁", "🍄", "🌻", "🌙", "⭐", "🔥", "🌊", "⚡",
}

// AvatarFor derives a stable emoji avatar from a username by summing its code points.
func AvatarFor(username string) string {
	var sum uint32
	for _, r := range username {
		sum += uint32(r)
	}
	return avatars[int(sum%uint32(len(avatars)))]
}
