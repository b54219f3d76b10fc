package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
)

// jsonOneOrMany decodes either a single object or an array of objects
type jsonOneOrMany[T any] struct {
	items []T
	many  bool
}

func (j *jsonOneOrMany[T]) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '[' {
		j.many = true
		if err := json.Unmarshal(data, &j.items); err != nil {
			return err
		}
		if len(j.items) == 0 {
			return errors.New("empty array")
		}
		return nil
	}

	var item T
	if err := json.Unmarshal(data, &item); err != nil {
		return err
	}
	j.items = []T{item}
	return nil
}
