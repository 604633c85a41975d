package firestore

import (
	fsapi "google.golang.org/api/firestore/v1"

	"DailyBitesserver/internal/domain"
)

var allFields = []string{
	domain.FieldUID,
	domain.FieldUsername,
	domain.FieldName,
	domain.FieldEmail,
	domain.FieldBio,
	domain.FieldProfilePicURL,
	domain.FieldFriends,
	domain.FieldFriendRequests,
}

func stringValue(s string) fsapi.Value {
	return fsapi.Value{StringValue: &s}
}

func stringArray(ids []string) *fsapi.ArrayValue {
	arr := &fsapi.ArrayValue{Values: make([]*fsapi.Value, 0, len(ids))}
	for _, id := range ids {
		v := stringValue(id)
		arr.Values = append(arr.Values, &v)
	}
	return arr
}

func toFields(doc domain.UserDocument, mask []string) (map[string]fsapi.Value, error) {
	fields := make(map[string]fsapi.Value, len(mask))
	for _, f := range mask {
		switch f {
		case domain.FieldUID:
			fields[f] = stringValue(doc.UID)
		case domain.FieldUsername:
			fields[f] = stringValue(doc.Username)
		case domain.FieldName:
			fields[f] = stringValue(doc.Name)
		case domain.FieldEmail:
			fields[f] = stringValue(doc.Email)
		case domain.FieldBio:
			fields[f] = stringValue(doc.Bio)
		case domain.FieldProfilePicURL:
			fields[f] = stringValue(doc.ProfilePicURL)
		case domain.FieldFriends:
			fields[f] = fsapi.Value{ArrayValue: stringArray(doc.Friends)}
		case domain.FieldFriendRequests:
			fields[f] = fsapi.Value{ArrayValue: stringArray(doc.FriendRequests)}
		default:
			return nil, domain.NewValidationError(map[string]string{"mask": "unknown field " + f})
		}
	}
	return fields, nil
}

func fromDocument(uid string, doc *fsapi.Document) domain.UserDocument {
	out := domain.UserDocument{
		UID:            uid,
		Username:       stringField(doc.Fields, domain.FieldUsername),
		Name:           stringField(doc.Fields, domain.FieldName),
		Email:          stringField(doc.Fields, domain.FieldEmail),
		Bio:            stringField(doc.Fields, domain.FieldBio),
		ProfilePicURL:  stringField(doc.Fields, domain.FieldProfilePicURL),
		Friends:        stringsField(doc.Fields, domain.FieldFriends),
		FriendRequests: stringsField(doc.Fields, domain.FieldFriendRequests),
		Version:        doc.UpdateTime,
	}
	return out
}

func stringField(fields map[string]fsapi.Value, name string) string {
	v, ok := fields[name]
	if !ok || v.StringValue == nil {
		return ""
	}
	return *v.StringValue
}

// stringsField reads an array of strings; non-string elements are ignored.
func stringsField(fields map[string]fsapi.Value, name string) []string {
	v, ok := fields[name]
	if !ok || v.ArrayValue == nil {
		return nil
	}
	out := make([]string, 0, len(v.ArrayValue.Values))
	for _, el := range v.ArrayValue.Values {
		if el != nil && el.StringValue != nil {
			out = append(out, *el.StringValue)
		}
	}
	return out
}
