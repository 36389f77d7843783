// Package item provides the graph-structured records produced by converters.
// An Item is a typed node with named attributes, single references to other
// items and collections of references, addressed by a string identifier.
package item

// Attribute is a named literal value on an item.
type Attribute struct {
	Name  string
	Value string
}

// Reference is a named link to another item by identifier.
type Reference struct {
	Name  string
	RefID string
}

// Collection is a named, ordered list of links to other items.
type Collection struct {
	Name   string
	RefIDs []string
}

// Item is a single record destined for the items database.
// Field order is insertion order; setting an existing name replaces it in place.
type Item struct {
	Identifier      string
	ClassName       string
	Implementations string

	Attributes  []Attribute
	References  []Reference
	Collections []Collection
}

// New returns an empty item. Most callers should use a Factory instead.
func New(identifier, className string) *Item {
	return &Item{Identifier: identifier, ClassName: className}
}

// SetAttribute sets or replaces an attribute value.
func (it *Item) SetAttribute(name, value string) {
	for i := range it.Attributes {
		if it.Attributes[i].Name == name {
			it.Attributes[i].Value = value
			return
		}
	}
	it.Attributes = append(it.Attributes, Attribute{Name: name, Value: value})
}

// Attribute returns the value of the named attribute.
func (it *Item) Attribute(name string) (string, bool) {
	for _, a := range it.Attributes {
		if a.Name == name {
			return a.Value, true
		}
	}
	return "", false
}

// SetReference points the named reference at another item.
func (it *Item) SetReference(name string, target *Item) {
	it.SetReferenceID(name, target.Identifier)
}

// SetReferenceID points the named reference at an item identifier.
func (it *Item) SetReferenceID(name, refID string) {
	for i := range it.References {
		if it.References[i].Name == name {
			it.References[i].RefID = refID
			return
		}
	}
	it.References = append(it.References, Reference{Name: name, RefID: refID})
}

// Reference returns the identifier the named reference points at.
func (it *Item) Reference(name string) (string, bool) {
	for _, r := range it.References {
		if r.Name == name {
			return r.RefID, true
		}
	}
	return "", false
}

// SetCollection replaces the named collection with a copy of refIDs.
func (it *Item) SetCollection(name string, refIDs []string) {
	ids := append([]string(nil), refIDs...)
	for i := range it.Collections {
		if it.Collections[i].Name == name {
			it.Collections[i].RefIDs = ids
			return
		}
	}
	it.Collections = append(it.Collections, Collection{Name: name, RefIDs: ids})
}

// AddToCollection appends refID to the named collection, creating it if needed.
func (it *Item) AddToCollection(name, refID string) {
	for i := range it.Collections {
		if it.Collections[i].Name == name {
			it.Collections[i].RefIDs = append(it.Collections[i].RefIDs, refID)
			return
		}
	}
	it.Collections = append(it.Collections, Collection{Name: name, RefIDs: []string{refID}})
}

// Collection returns the identifiers in the named collection.
func (it *Item) Collection(name string) ([]string, bool) {
	for _, c := range it.Collections {
		if c.Name == name {
			return c.RefIDs, true
		}
	}
	return nil, false
}
