package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// Identifier is a record identifier as echoed by the collector. Collectors
// may send ids as JSON strings or numbers; both decode to the same string.
type Identifier string

func (id *Identifier) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*id = Identifier(s)
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("identifier must be a string or number, got %s", b)
	}
	if i, err := n.Int64(); err == nil {
		*id = Identifier(strconv.FormatInt(i, 10))
		return nil
	}
	*id = Identifier(n.String())
	return nil
}
