package mud

import "github.com/oklog/ulid/v2"

// NewID mints a lexically sortable id. Creation-order enumeration in
// the tick relies on ids sorting by mint time.
func NewID() string {
	return ulid.Make().String()
}
