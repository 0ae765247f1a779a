package notion

import (
	"time"
	"unicode/utf8"

	"github.com/wekeepgrowing/stripe-notion-sync/internal/domain/entity"
	"github.com/wekeepgrowing/stripe-notion-sync/internal/domain/provider"
)

// maxTextLength is the Notion limit, in characters, for one rich text
// content block.
const maxTextLength = 2000

func richText(s string) []interface{} {
	if utf8.RuneCountInString(s) > maxTextLength {
		s = string([]rune(s)[:maxTextLength])
	}
	return []interface{}{
		map[string]interface{}{
			"type": "text",
			"text": map[string]interface{}{"content": s},
		},
	}
}

// encodeValue renders a non-null property in the page properties format.
func encodeValue(p entity.Property) map[string]interface{} {
	switch p.Kind {
	case entity.KindTitle:
		return map[string]interface{}{"title": richText(*p.Text)}
	case entity.KindRichText:
		return map[string]interface{}{"rich_text": richText(*p.Text)}
	case entity.KindNumber:
		return map[string]interface{}{"number": *p.Number}
	case entity.KindCheckbox:
		return map[string]interface{}{"checkbox": *p.Checkbox}
	case entity.KindDate:
		return map[string]interface{}{"date": map[string]interface{}{"start": p.Date.UTC().Format(time.RFC3339)}}
	case entity.KindSelect:
		return map[string]interface{}{"select": map[string]interface{}{"name": *p.Text}}
	case entity.KindRelation:
		refs := make([]interface{}, 0, len(p.Relation))
		for _, id := range p.Relation {
			refs = append(refs, map[string]interface{}{"id": id})
		}
		return map[string]interface{}{"relation": refs}
	default:
		// url, email, phone_number
		return map[string]interface{}{string(p.Kind): *p.Text}
	}
}

// encodeNull renders the value that clears a property.
func encodeNull(p entity.Property) map[string]interface{} {
	switch p.Kind {
	case entity.KindTitle, entity.KindRichText:
		return map[string]interface{}{string(p.Kind): []interface{}{}}
	case entity.KindRelation:
		return map[string]interface{}{"relation": []interface{}{}}
	case entity.KindCheckbox:
		return map[string]interface{}{"checkbox": false}
	default:
		return map[string]interface{}{string(p.Kind): nil}
	}
}

// EncodeProperties converts properties into the request body format. Null
// properties are skipped in merge mode and cleared in replace mode.
func EncodeProperties(props entity.Properties, mode provider.WriteMode) map[string]interface{} {
	out := make(map[string]interface{}, len(props))
	for name, p := range props {
		if p.IsNull() {
			if mode == provider.WriteReplace {
				out[name] = encodeNull(p)
			}
			continue
		}
		out[name] = encodeValue(p)
	}
	return out
}
