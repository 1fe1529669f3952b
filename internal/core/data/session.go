package data

import (
	"errors"
	"time"

	"gorm.io/gorm"
)

// AdvertisedSession is a session published to the directory so that other
// players can find and join it.
type AdvertisedSession struct {
	ID        string `gorm:"primaryKey"`
	Name      string `gorm:"not null"`
	OwnerID   string `gorm:"index; not null"`
	OwnerName string

	LAN                      bool `gorm:"index"`
	Started                  bool `gorm:"default:false"`
	NumPublicConnections     int
	NumOpenPublicConnections int
	ShouldAdvertise          bool
	AllowJoinInProgress      bool
	UsesPresence             bool

	// Advertised key/value settings, encoded by the directory.
	Settings       []byte
	ConnectAddress string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// CreateSession persists the AdvertisedSession record to the database.
func CreateSession(db *gorm.DB, session *AdvertisedSession) error {
	return db.Create(session).Error
}

// FindSession returns the session with the given ID or nil if there is none.
func FindSession(db *gorm.DB, id string) (*AdvertisedSession, error) {
	var session AdvertisedSession
	err := db.Where("id = ?", id).First(&session).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}

	return &session, nil
}

// FindJoinableSessions returns the advertised sessions with an open slot that
// can still be joined, oldest first. Sessions owned by excludeOwner are skipped.
func FindJoinableSessions(db *gorm.DB, lan bool, excludeOwner string) ([]AdvertisedSession, error) {
	var sessions []AdvertisedSession
	err := db.
		Where("lan = ? AND should_advertise = ? AND num_open_public_connections > 0", lan, true).
		Where("started = ? OR allow_join_in_progress = ?", false, true).
		Where("owner_id <> ?", excludeOwner).
		Order("created_at").
		Find(&sessions).Error
	return sessions, err
}

// ClaimSlot takes one open connection of the session. It returns false if the
// session has no open connection left.
func ClaimSlot(db *gorm.DB, id string) (bool, error) {
	result := db.Model(&AdvertisedSession{}).
		Where("id = ? AND num_open_public_connections > 0", id).
		UpdateColumn("num_open_public_connections", gorm.Expr("num_open_public_connections - 1"))
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// ReleaseSlot gives back an open connection taken by ClaimSlot. The count never
// exceeds the session's public connections, and a missing session is ignored.
func ReleaseSlot(db *gorm.DB, id string) error {
	return db.Model(&AdvertisedSession{}).
		Where("id = ? AND num_open_public_connections < num_public_connections", id).
		UpdateColumn("num_open_public_connections", gorm.Expr("num_open_public_connections + 1")).
		Error
}

// MarkSessionStarted flags the session as in progress.
func MarkSessionStarted(db *gorm.DB, id string) error {
	result := db.Model(&AdvertisedSession{}).Where("id = ?", id).Update("started", true)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// DeleteSession removes the session from the directory.
func DeleteSession(db *gorm.DB, id string) error {
	return db.Where("id = ?", id).Delete(&AdvertisedSession{}).Error
}

// DeleteSessionsOwnedBy removes every session named name owned by ownerID.
func DeleteSessionsOwnedBy(db *gorm.DB, ownerID, name string) error {
	return db.Where("owner_id = ? AND name = ?", ownerID, name).Delete(&AdvertisedSession{}).Error
}
