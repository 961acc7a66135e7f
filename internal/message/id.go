package message

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// ID is a server id that the backend may send as a JSON string or number.
// Numbers are kept in their decimal form.
type ID string

// UnmarshalJSON accepts "m1", 17 and null.
func (id *ID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*id = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*id = ID(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("id: %s is neither string nor number", b)
	}
	*id = ID(n.String())
	return nil
}

// String returns the id.
func (id ID) String() string { return string(id) }
