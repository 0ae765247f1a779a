package entity

import "time"

// PropertyKind is the destination column type of a property value.
type PropertyKind string

const (
	KindTitle    PropertyKind = "title"
	KindRichText PropertyKind = "rich_text"
	KindNumber   PropertyKind = "number"
	KindCheckbox PropertyKind = "checkbox"
	KindDate     PropertyKind = "date"
	KindSelect   PropertyKind = "select"
	KindURL      PropertyKind = "url"
	KindEmail    PropertyKind = "email"
	KindPhone    PropertyKind = "phone_number"
	KindRelation PropertyKind = "relation"
)

// Property is one destination field value. A property whose value pointer is
// nil is null: skipped in merge writes and cleared in full-replace writes.
type Property struct {
	Kind     PropertyKind
	Text     *string
	Number   *float64
	Checkbox *bool
	Date     *time.Time
	Relation []string
}

// Properties are the converted destination fields of one record, keyed by
// destination property name.
type Properties map[string]Property

// IsNull reports whether the property carries no value.
func (p Property) IsNull() bool {
	switch p.Kind {
	case KindNumber:
		return p.Number == nil
	case KindCheckbox:
		return p.Checkbox == nil
	case KindDate:
		return p.Date == nil
	case KindRelation:
		return p.Relation == nil
	default:
		return p.Text == nil
	}
}

func textProperty(kind PropertyKind, s string) Property {
	if s == "" {
		return Property{Kind: kind}
	}
	return Property{Kind: kind, Text: &s}
}

func Title(s string) Property { return textProperty(KindTitle, s) }
func Text(s string) Property { return textProperty(KindRichText, s) }
func Select(s string) Property { return textProperty(KindSelect, s) }
func URL(s string) Property { return textProperty(KindURL, s) }
func EmailAddress(s string) Property { return textProperty(KindEmail, s) }
func Phone(s string) Property { return textProperty(KindPhone, s) }

func Number(f float64) Property {
	return Property{Kind: KindNumber, Number: &f}
}

// NumberIf is Number when ok is true, null otherwise.
func NumberIf(f float64, ok bool) Property {
	if !ok {
		return Property{Kind: KindNumber}
	}
	return Number(f)
}

func Checkbox(b bool) Property {
	return Property{Kind: KindCheckbox, Checkbox: &b}
}

func Date(t time.Time) Property {
	t = t.UTC()
	return Property{Kind: KindDate, Date: &t}
}

// DateUnix converts a Stripe unix timestamp; zero or absent is null.
func DateUnix(sec int64, ok bool) Property {
	if !ok || sec == 0 {
		return Property{Kind: KindDate}
	}
	return Date(time.Unix(sec, 0))
}

// Relation links to one destination record; a nil id is a null relation.
func Relation(destinationID *string) Property {
	if destinationID == nil {
		return Property{Kind: KindRelation}
	}
	return Property{Kind: KindRelation, Relation: []string{*destinationID}}
}
