package backend

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// OptionMap is an ordered id→text mapping. The backend sends options as a
// JSON object, and the display order of a question's options is the order of
// that object's keys, so a plain Go map would lose information.
type OptionMap []OptionEntry

type OptionEntry struct {
	Key  string
	Text string
}

func (m *OptionMap) UnmarshalJSON(b []byte) error {
	dec := json.NewDecoder(bytes.NewReader(b))

	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("options: expected JSON object, got %v", tok)
	}

	out := OptionMap{}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := tok.(string)
		if !ok {
			return fmt.Errorf("options: expected string key, got %v", tok)
		}

		var text string
		if err := dec.Decode(&text); err != nil {
			return fmt.Errorf("options: value for %q: %w", key, err)
		}

		out = append(out, OptionEntry{Key: key, Text: text})
	}

	if _, err := dec.Token(); err != nil {
		return err
	}

	*m = out
	return nil
}

func (m OptionMap) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, e := range m {
		if i > 0 {
			buf.WriteByte(',')
		}

		k, err := json.Marshal(e.Key)
		if err != nil {
			return nil, err
		}
		v, err := json.Marshal(e.Text)
		if err != nil {
			return nil, err
		}

		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
