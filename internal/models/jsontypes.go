package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// StringList is a list of strings stored as a JSON text column
type StringList []string

// Value implements driver.Valuer
func (l StringList) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	b, err := json.Marshal([]string(l))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner
func (l *StringList) Scan(src interface{}) error {
	data, err := textBytes(src)
	if err != nil {
		return err
	}
	if len(data) == 0 {
		*l = StringList{}
		return nil
	}
	return json.Unmarshal(data, (*[]string)(l))
}

// CriterionScore is one rubric criterion's band
type CriterionScore struct {
	Criterion string  `json:"criterion"`
	Band      float64 `json:"band"`
}

// RubricScores is the per-criterion breakdown stored as nullable JSON text
type RubricScores []CriterionScore

// Value implements driver.Valuer; an empty rubric is stored as NULL
func (r RubricScores) Value() (driver.Value, error) {
	if len(r) == 0 {
		return nil, nil
	}
	b, err := json.Marshal([]CriterionScore(r))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner
func (r *RubricScores) Scan(src interface{}) error {
	data, err := textBytes(src)
	if err != nil {
		return err
	}
	if len(data) == 0 {
		*r = nil
		return nil
	}
	return json.Unmarshal(data, (*[]CriterionScore)(r))
}

func textBytes(src interface{}) ([]byte, error) {
	switch v := src.(type) {
	case nil:
		return nil, nil
	case []byte:
		return v, nil
	case string:
		return []byte(v), nil
	default:
		return nil, fmt.Errorf("unsupported JSON column type %T", src)
	}
}
