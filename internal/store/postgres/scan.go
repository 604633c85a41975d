package postgres

import (
	"strconv"

	"github.com/jackc/pgx/v5"

	"DailyBitesserver/internal/domain"
)

const documentColumns = `uid, username, name, email, bio, profile_pic_url, friends, friend_requests, version`

var fieldColumns = map[string]string{
	domain.FieldUsername:       "username",
	domain.FieldName:           "name",
	domain.FieldEmail:          "email",
	domain.FieldBio:            "bio",
	domain.FieldProfilePicURL:  "profile_pic_url",
	domain.FieldFriends:        "friends",
	domain.FieldFriendRequests: "friend_requests",
}

func scanDocument(row pgx.Row) (domain.UserDocument, error) {
	var (
		d       domain.UserDocument
		version int64
	)
	err := row.Scan(
		&d.UID,
		&d.Username,
		&d.Name,
		&d.Email,
		&d.Bio,
		&d.ProfilePicURL,
		&d.Friends,
		&d.FriendRequests,
		&version,
	)
	if err != nil {
		return domain.UserDocument{}, err
	}
	d.Version = strconv.FormatInt(version, 10)
	return d, nil
}

func fieldValue(doc domain.UserDocument, field string) any {
	switch field {
	case domain.FieldUsername:
		return doc.Username
	case domain.FieldName:
		return doc.Name
	case domain.FieldEmail:
		return doc.Email
	case domain.FieldBio:
		return doc.Bio
	case domain.FieldProfilePicURL:
		return doc.ProfilePicURL
	case domain.FieldFriends:
		return nonNil(doc.Friends)
	case domain.FieldFriendRequests:
		return nonNil(doc.FriendRequests)
	default:
		return nil
	}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
