package congress

import (
	"bytes"
	"strconv"
	"strings"

	"github.com/goccy/go-json"
)

// FlexFloat decodes a JSON number or numeric string. Anything else decodes as unknown.
type FlexFloat struct {
	value *float64
}

func (f *FlexFloat) UnmarshalJSON(data []byte) error {
	f.value = nil
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil
	}
	if v, ok := asNumber(raw); ok {
		f.value = &v
	}
	return nil
}

// Ptr returns the decoded value or nil.
func (f FlexFloat) Ptr() *float64 {
	if f.value == nil {
		return nil
	}
	v := *f.value
	return &v
}

// FlexString decodes a JSON string or number into its string form.
type FlexString string

func (s *FlexString) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		*s = ""
		return nil
	}
	switch t := raw.(type) {
	case string:
		*s = FlexString(strings.TrimSpace(t))
	case float64:
		*s = FlexString(strconv.FormatFloat(t, 'f', -1, 64))
	default:
		*s = ""
	}
	return nil
}
