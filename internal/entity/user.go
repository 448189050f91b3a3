package entity

import "anoa.com/lmsforum/pkg/docstore"

const CollectionUsers = "users"

// A user record is stored at users/{id}: the encrypted JSON of {name, email}
// keyed by the id derived from the email. It is written once and never changed.
func UserPath(id string) string {
	return docstore.Join(CollectionUsers, id)
}
