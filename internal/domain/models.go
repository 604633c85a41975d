package domain

// Document field names as stored.
const (
	FieldUsername       = "username"
	FieldName           = "name"
	FieldEmail          = "email"
	FieldBio            = "bio"
	FieldProfilePicURL  = "profilePicUrl"
	FieldFriends        = "friends"
	FieldFriendRequests = "friendRequests"
	FieldUID            = "uid"
)

// UserDocument is a user's record in the document store. Version is an opaque
// token supplied by the store; an empty Version disables conditional writes.
type UserDocument struct {
	UID            string
	Username       string
	Name           string
	Email          string
	Bio            string
	ProfilePicURL  string
	Friends        []string
	FriendRequests []string
	Version        string
}

// Relations returns the typed relationship view of the document.
func (d UserDocument) Relations() Relations {
	return Relations{
		UID:      d.UID,
		Friends:  NewUIDSet(d.Friends...),
		Requests: NewUIDSet(d.FriendRequests...),
		Version:  d.Version,
	}
}

func (d UserDocument) Summary() UserSummary {
	return UserSummary{
		UID:           d.UID,
		Username:      d.Username,
		Name:          d.Name,
		ProfilePicURL: d.ProfilePicURL,
	}
}

type UserSummary struct {
	UID           string `json:"uid"`
	Username      string `json:"username"`
	Name          string `json:"name,omitempty"`
	ProfilePicURL string `json:"profile_pic_url,omitempty"`
}

type Profile struct {
	UserSummary
	Email        string            `json:"email,omitempty"`
	Bio          string            `json:"bio,omitempty"`
	FriendCount  int               `json:"friend_count"`
	Relationship RelationshipState `json:"relationship"`
}

type SearchResult struct {
	UserSummary
	Relationship RelationshipState `json:"relationship"`
}

type FriendsOverview struct {
	Friends  []UserSummary `json:"friends"`
	Incoming []UserSummary `json:"incoming_requests"`
}
