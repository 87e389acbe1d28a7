package types

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// FlexString accepts either a JSON string or a JSON number and keeps the
// textual form. Platform code ids arrive as numbers from some tenants and as
// strings from others.
type FlexString string

// UnmarshalJSON implements json.Unmarshaler
func (f *FlexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}

	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = FlexString(s)
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("expected string or number, got %s", string(data))
	}
	*f = FlexString(n.String())
	return nil
}

// String returns the textual form
func (f FlexString) String() string {
	return string(f)
}

// IdleCode is a reason code applied when the agent goes Idle
type IdleCode struct {
	ID        FlexString `json:"id"`
	Name      string     `json:"name,omitempty"`
	IsDefault bool       `json:"isDefault"`
}

// WrapupCode is a classification code applied after an interaction ends
type WrapupCode struct {
	ID   FlexString `json:"id"`
	Name string     `json:"name"`
}
