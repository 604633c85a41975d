package domain

// RelationView is the slice of a user document the status projection reads.
// Nil sets are treated as empty.
type RelationView struct {
	UID      string
	Friends  UIDSet
	Requests UIDSet
}

// Authority selects whose friends set decides FRIENDS when the two documents disagree.
type Authority int

const (
	AuthorityViewer Authority = iota
	AuthoritySubject
	AuthorityEither
)

// Status derives the relationship of subject as seen by viewer, taking the
// viewer's friends set as authoritative.
func Status(viewer, subject RelationView) RelationshipState {
	return StatusWithAuthority(viewer, subject, AuthorityViewer)
}

func StatusWithAuthority(viewer, subject RelationView, authority Authority) RelationshipState {
	if viewer.UID != "" && viewer.UID == subject.UID {
		return RelationshipNone
	}

	var friends bool
	switch authority {
	case AuthoritySubject:
		friends = subject.Friends.Has(viewer.UID)
	case AuthorityEither:
		friends = viewer.Friends.Has(subject.UID) || subject.Friends.Has(viewer.UID)
	default:
		friends = viewer.Friends.Has(subject.UID)
	}

	switch {
	case friends:
		return RelationshipFriends
	case subject.Requests.Has(viewer.UID):
		return RelationshipRequestSent
	case viewer.Requests.Has(subject.UID):
		return RelationshipRequestReceived
	default:
		return RelationshipNone
	}
}

type ViolationKind string

const (
	ViolationAsymmetricFriends ViolationKind = "asymmetric_friends"
	ViolationStaleRequest      ViolationKind = "stale_request"
	ViolationMutualRequests    ViolationKind = "mutual_requests"
	ViolationSelfReference     ViolationKind = "self_reference"
)

// Violation is an invariant breach observed between two documents. Holder is
// the uid whose document carries the offending entry.
type Violation struct {
	Kind   ViolationKind `json:"kind"`
	Holder string        `json:"holder"`
	Member string        `json:"member"`
}

// Inspect reports the invariant violations visible in the pair (a, b). Both
// views must come from documents read during the same operation.
func Inspect(a, b RelationView) []Violation {
	var out []Violation

	for _, v := range []RelationView{a, b} {
		if v.UID == "" {
			continue
		}
		if v.Friends.Has(v.UID) || v.Requests.Has(v.UID) {
			out = append(out, Violation{Kind: ViolationSelfReference, Holder: v.UID, Member: v.UID})
		}
	}
	if a.UID == b.UID {
		return out
	}

	aHasB := a.Friends.Has(b.UID)
	bHasA := b.Friends.Has(a.UID)
	switch {
	case aHasB && !bHasA:
		out = append(out, Violation{Kind: ViolationAsymmetricFriends, Holder: a.UID, Member: b.UID})
	case bHasA && !aHasB:
		out = append(out, Violation{Kind: ViolationAsymmetricFriends, Holder: b.UID, Member: a.UID})
	}

	if aHasB || bHasA {
		if a.Requests.Has(b.UID) {
			out = append(out, Violation{Kind: ViolationStaleRequest, Holder: a.UID, Member: b.UID})
		}
		if b.Requests.Has(a.UID) {
			out = append(out, Violation{Kind: ViolationStaleRequest, Holder: b.UID, Member: a.UID})
		}
	} else if a.Requests.Has(b.UID) && b.Requests.Has(a.UID) {
		out = append(out, Violation{Kind: ViolationMutualRequests, Holder: a.UID, Member: b.UID})
	}

	return out
}

// RelationshipReport is the relationship of Subject as seen by Viewer together
// with any invariant violations found while computing it.
type RelationshipReport struct {
	Viewer     string            `json:"viewer"`
	Subject    string            `json:"subject"`
	State      RelationshipState `json:"state"`
	Violations []Violation       `json:"violations,omitempty"`
	Healed     bool              `json:"healed,omitempty"`
}
