package ids

import "github.com/segmentio/ksuid"

// New returns a K-sortable unique id used for users, sessions and audit rows.
func New() string {
	return ksuid.New().String()
}
