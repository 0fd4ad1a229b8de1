package service

import (
	"time"

	"shelfmate/internal/models"
)

// ProfileView is what one member sees of another. Contact and favourite
// book are only filled once the match between them is unlocked.
type ProfileView struct {
	MemberID       uint   `json:"member_id"`
	Nickname       string `json:"nickname"`
	Age            int    `json:"age,omitempty"`
	Location       string `json:"location"`
	PhotoURL       string `json:"photo_url,omitempty"`
	Withdrawn      bool   `json:"withdrawn"`
	Contact        string `json:"contact,omitempty"`
	FavoriteBook   string `json:"favorite_book,omitempty"`
	FavoriteAuthor string `json:"favorite_author,omitempty"`
}

func newProfileView(m *models.Member, photos []models.Photo, now time.Time, revealed bool) ProfileView {
	v := ProfileView{
		MemberID:  m.ID,
		Nickname:  m.DisplayName(),
		Age:       m.Age(now),
		Location:  m.Region().Label(),
		Withdrawn: m.Withdrawn(),
	}
	if len(photos) > 0 && !v.Withdrawn {
		v.PhotoURL = photos[0].ObscuredURL
	}
	if revealed && !v.Withdrawn {
		v.Contact = m.Contact
		v.FavoriteBook = m.FavoriteBook
		v.FavoriteAuthor = m.FavoriteAuthor
	}
	return v
}

// SenderView is the lightweight snapshot attached to a notification.
type SenderView struct {
	MemberID uint   `json:"member_id"`
	Nickname string `json:"nickname"`
	PhotoURL string `json:"photo_url,omitempty"`
}

func newSenderView(m *models.Member, photos []models.Photo) *SenderView {
	v := &SenderView{MemberID: m.ID, Nickname: m.DisplayName()}
	if len(photos) > 0 && !m.Withdrawn() {
		v.PhotoURL = photos[0].ObscuredURL
	}
	return v
}
