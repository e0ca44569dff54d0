// Package trash holds soft-deleted member and finance snapshots until they
// are restored or purged.
package trash

import (
	"encoding/json"
	"fmt"
	"time"
)

// Kind is the shape of a snapshot.
type Kind int

const (
	KindInvalid Kind = iota
	KindMember
	KindFinance
)

func (k Kind) String() string {
	switch k {
	case KindMember:
		return "member"
	case KindFinance:
		return "finance"
	default:
		return "invalid"
	}
}

// Trash-only metadata keys.
const (
	fieldDeletedAt  = "deletedAt"
	fieldDeletedBy  = "deletedBy"
	fieldObjectType = "objectType"
)

// Entry is a deleted record plus who deleted it and when. The trash key is
// the id the record had before deletion.
type Entry struct {
	ID         string
	DeletedAt  time.Time
	DeletedBy  string
	ObjectType string
	Fields     map[string]any
}

// Kind classifies the entry: explicit objectType wins, then a code field
// marks a member and an amount field a finance record. A snapshot with both
// shapes or neither is invalid.
func (e Entry) Kind() Kind {
	switch e.ObjectType {
	case KindMember.String():
		return KindMember
	case KindFinance.String():
		return KindFinance
	}
	_, code := e.Fields["code"]
	amount, hasAmount := e.Fields["amount"]
	hasAmount = hasAmount && amount != nil
	switch {
	case code && !hasAmount:
		return KindMember
	case hasAmount && !code:
		return KindFinance
	default:
		return KindInvalid
	}
}

// Label names the entry for listings.
func (e Entry) Label() string {
	if name, ok := e.Fields["name"].(string); ok && name != "" {
		return name
	}
	if desc, ok := e.Fields["desc"].(string); ok {
		return desc
	}
	return e.ID
}

func (e *Entry) UnmarshalJSON(b []byte) error {
	var fields map[string]any
	if err := json.Unmarshal(b, &fields); err != nil {
		return err
	}
	if raw, ok := fields[fieldDeletedAt].(string); ok {
		t, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			return fmt.Errorf("deletedAt: %w", err)
		}
		e.DeletedAt = t
	}
	e.DeletedBy, _ = fields[fieldDeletedBy].(string)
	e.ObjectType, _ = fields[fieldObjectType].(string)
	delete(fields, fieldDeletedAt)
	delete(fields, fieldDeletedBy)
	delete(fields, fieldObjectType)
	delete(fields, "id")
	e.Fields = fields
	return nil
}

func (e Entry) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(e.Fields)+4)
	for k, v := range e.Fields {
		out[k] = v
	}
	out["id"] = e.ID
	out["kind"] = e.Kind().String()
	out[fieldDeletedAt] = e.DeletedAt
	out[fieldDeletedBy] = e.DeletedBy
	if e.ObjectType != "" {
		out[fieldObjectType] = e.ObjectType
	}
	return json.Marshal(out)
}
