// Package stream reads the entities.xml object stream of an export
// package in a single forward pass. Objects are decoded into property
// bags and handed to a caller-supplied handler; everything the handler
// does not recognize costs nothing beyond a subtree skip.
package stream

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"

	"github.com/TomaszPitak/confluence/internal/properties"
)

// ClassUserImpl is the one object class keyed by a string instead of a
// numeric id.
const ClassUserImpl = "ConfluenceUserImpl"

// referenceClasses are the declared value classes that are read as a
// reference: only the embedded id is extracted, never an inline copy.
var referenceClasses = map[string]struct{}{
	"Page":             {},
	"Space":            {},
	"BodyContent":      {},
	"Attachment":       {},
	"SpaceDescription": {},
	"Labelling":        {},
	"Label":            {},
	"SpacePermission":  {},
	"InternalGroup":    {},
	"InternalUser":     {},
	"Comment":          {},
	"ContentProperty":  {},
}

// Object is one decoded entry of the stream.
type Object struct {
	// Class is the declared type discriminator of the object element.
	Class string
	// ID is the numeric primary identifier, -1 when the object had none.
	ID int64
	// Key is the string identifier for ClassUserImpl objects.
	Key string
	// Bag holds every parsed property, including the id under "id".
	Bag *properties.Bag
}

// HasID reports whether a primary identifier was found.
func (o *Object) HasID() bool {
	if o.Class == ClassUserImpl {
		return o.Key != ""
	}
	return o.ID >= 0
}

// Handler receives each decoded object in stream order. Returning an
// error aborts the pass.
type Handler func(obj *Object) error

// Read performs exactly one forward pass over the object stream,
// invoking handle once per object element that carries a class
// attribute. Top-level elements that are not objects, and objects
// without a class, are skipped without decoding their subtree.
func Read(ctx context.Context, r io.Reader, handle Handler) error {
	d := xml.NewDecoder(r)

	// Enter the document root.
	if _, err := nextStart(d); err != nil {
		if err == io.EOF {
			return fmt.Errorf("object stream is empty")
		}
		return fmt.Errorf("read stream root: %w", err)
	}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		se, err := nextStart(d)
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("advance object stream: %w", err)
		}

		if se.Name.Local != "object" {
			if err := d.Skip(); err != nil {
				return fmt.Errorf("skip element %q: %w", se.Name.Local, err)
			}
			continue
		}

		class := attr(se, "class")
		if class == "" {
			if err := d.Skip(); err != nil {
				return fmt.Errorf("skip untyped object: %w", err)
			}
			continue
		}

		obj := &Object{Class: class, ID: -1, Bag: properties.New()}
		if err := readObject(d, obj); err != nil {
			return fmt.Errorf("object %s: %w", class, err)
		}
		if err := handle(obj); err != nil {
			return err
		}
	}
}

// readObject decodes the children of an object element into obj.Bag and
// extracts the primary identifier. The id element must declare name
// "id" (numeric classes) or "key" (user-impl); id elements under any
// other name are ordinary skippable elements.
func readObject(d *xml.Decoder, obj *Object) error {
	idName := "id"
	if obj.Class == ClassUserImpl {
		idName = "key"
	}

	for {
		se, err := nextStartWithin(d)
		if err == errEndOfElement {
			return nil
		}
		if err != nil {
			return err
		}

		switch se.Name.Local {
		case "id":
			if attr(se, "name") != idName {
				if err := d.Skip(); err != nil {
					return err
				}
				continue
			}
			text, err := elementText(d)
			if err != nil {
				return err
			}
			if obj.Class == ClassUserImpl {
				obj.Key = RepairCDATA(text)
				obj.Bag.Set("id", properties.String(obj.Key))
				continue
			}
			id, perr := strconv.ParseInt(strings.TrimSpace(text), 10, 64)
			if perr != nil {
				// Data-quality defect, not a structural one: the object
				// keeps streaming but carries no usable identifier.
				slog.Warn("object has unparsable id",
					slog.String("class", obj.Class),
					slog.String("id", text))
				continue
			}
			obj.ID = id
			obj.Bag.Set("id", properties.Long(id))

		case "property":
			name := attr(se, "name")
			v, stored, err := readProperty(d, se)
			if err != nil {
				return err
			}
			if stored {
				obj.Bag.Set(name, v)
			}

		case "collection":
			name := attr(se, "name")
			v, err := readList(d)
			if err != nil {
				return err
			}
			obj.Bag.Set(name, v)

		default:
			if err := d.Skip(); err != nil {
				return err
			}
		}
	}
}

// readProperty decodes a single property element based on its declared
// class. The second return value is false when the declared class is
// unsupported extension data and the subtree was skipped.
func readProperty(d *xml.Decoder, se xml.StartElement) (properties.Value, bool, error) {
	class := attr(se, "class")

	switch {
	case class == "":
		text, err := elementText(d)
		if err != nil {
			return properties.Value{}, false, err
		}
		return properties.String(RepairCDATA(text)), true, nil

	case class == "java.util.List" || class == "java.util.Collection":
		v, err := readList(d)
		return v, err == nil, err

	case class == "java.util.Set":
		elems, err := readElements(d)
		if err != nil {
			return properties.Value{}, false, err
		}
		return properties.Set(elems), true, nil

	case class == ClassUserImpl:
		key, err := readReferenceText(d)
		if err != nil {
			return properties.Value{}, false, err
		}
		return properties.String(RepairCDATA(key)), true, nil

	default:
		if _, ok := referenceClasses[class]; ok {
			text, err := readReferenceText(d)
			if err != nil {
				return properties.Value{}, false, err
			}
			id, perr := strconv.ParseInt(strings.TrimSpace(text), 10, 64)
			if perr != nil {
				slog.Warn("reference with unparsable id",
					slog.String("class", class),
					slog.String("id", text))
				return properties.Nil(), true, nil
			}
			return properties.Long(id), true, nil
		}
		// Unsupported extension data.
		if err := d.Skip(); err != nil {
			return properties.Value{}, false, err
		}
		return properties.Value{}, false, nil
	}
}

// readList decodes an ordered sequence of recursively parsed values.
func readList(d *xml.Decoder) (properties.Value, error) {
	elems, err := readElements(d)
	if err != nil {
		return properties.Value{}, err
	}
	return properties.List(elems), nil
}

func readElements(d *xml.Decoder) ([]properties.Value, error) {
	var elems []properties.Value
	for {
		se, err := nextStartWithin(d)
		if err == errEndOfElement {
			return elems, nil
		}
		if err != nil {
			return nil, err
		}
		v, stored, err := readProperty(d, se)
		if err != nil {
			return nil, err
		}
		if stored {
			elems = append(elems, v)
		}
	}
}

// readReferenceText expects the reference's subtree to start with an id
// element and returns its text. Anything else is a malformed stream and
// aborts ingestion.
func readReferenceText(d *xml.Decoder) (string, error) {
	se, err := nextStartWithin(d)
	if err == errEndOfElement {
		return "", fmt.Errorf("reference has no id element")
	}
	if err != nil {
		return "", err
	}
	if se.Name.Local != "id" {
		return "", fmt.Errorf("was expecting id element but found %q", se.Name.Local)
	}
	text, err := elementText(d)
	if err != nil {
		return "", err
	}
	// Drain the remainder of the reference element.
	for {
		_, err := nextStartWithin(d)
		if err == errEndOfElement {
			return text, nil
		}
		if err != nil {
			return "", err
		}
		if err := d.Skip(); err != nil {
			return "", err
		}
	}
}

// errEndOfElement signals that the enclosing element closed.
var errEndOfElement = fmt.Errorf("end of element")

// nextStart returns the next start element at any depth, skipping
// everything else.
func nextStart(d *xml.Decoder) (xml.StartElement, error) {
	for {
		tok, err := d.Token()
		if err != nil {
			return xml.StartElement{}, err
		}
		if se, ok := tok.(xml.StartElement); ok {
			return se, nil
		}
	}
}

// nextStartWithin returns the next child start element of the current
// element, or errEndOfElement when the element closes.
func nextStartWithin(d *xml.Decoder) (xml.StartElement, error) {
	for {
		tok, err := d.Token()
		if err != nil {
			return xml.StartElement{}, err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			return t, nil
		case xml.EndElement:
			return xml.StartElement{}, errEndOfElement
		}
	}
}

// elementText collects the character data of the current element up to
// its end tag. Nested markup is not expected in leaf scalars; any nested
// elements are skipped.
func elementText(d *xml.Decoder) (string, error) {
	var sb strings.Builder
	for {
		tok, err := d.Token()
		if err != nil {
			return "", err
		}
		switch t := tok.(type) {
		case xml.CharData:
			sb.Write(t)
		case xml.StartElement:
			if err := d.Skip(); err != nil {
				return "", err
			}
		case xml.EndElement:
			return sb.String(), nil
		}
	}
}

// attr returns the value of the named attribute, or "".
func attr(se xml.StartElement, name string) string {
	for _, a := range se.Attr {
		if a.Name.Local == name {
			return a.Value
		}
	}
	return ""
}
