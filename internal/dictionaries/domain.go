// Package dictionaries manages the editable reference lists (equipment
// types, equipment statuses, and so on) other modules point into.
package dictionaries

import "time"

// Dictionary is a named reference list.
type Dictionary struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Value is one entry of a dictionary. System values are referenced by code
// and cannot be deleted.
type Value struct {
	ID           int64     `json:"id"`
	DictionaryID int64     `json:"dictionary_id"`
	Value        string    `json:"value"`
	IsSystem     bool      `json:"is_system"`
	IsActive     bool      `json:"is_active"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// CreateDictionaryRequest creates a dictionary.
type CreateDictionaryRequest struct {
	Name string `json:"name" validate:"required,max=200"`
}

// UpdateDictionaryRequest renames or toggles a dictionary.
type UpdateDictionaryRequest struct {
	Name     *string `json:"name,omitempty" validate:"omitempty,max=200"`
	IsActive *bool   `json:"is_active,omitempty"`
}

// CreateValueRequest adds a value to a dictionary.
type CreateValueRequest struct {
	Value string `json:"value" validate:"required,max=200"`
}

// UpdateValueRequest edits a dictionary value.
type UpdateValueRequest struct {
	Value    *string `json:"value,omitempty" validate:"omitempty,max=200"`
	IsActive *bool   `json:"is_active,omitempty"`
}
