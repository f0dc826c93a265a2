package bitrix

import (
	"encoding/json"
	"strconv"
)

// Item is one CRM record as returned by crm.item.get / crm.item.list.
// Field values come back loosely typed (numbers, strings, arrays), so the
// accessors below normalize everything sync cares about to strings.
type Item map[string]interface{}

func (it Item) ID() string {
	return asString(it["id"])
}

func (it Item) Title() string {
	return asString(it["title"])
}

func (it Item) StageID() string {
	return asString(it["stageId"])
}

func (it Item) ContactID() string {
	// contactId comes back as 0 when the record has no contact
	s := asString(it["contactId"])
	if s == "0" {
		return ""
	}
	return s
}

// String returns the named field normalized to a string, "" when absent.
func (it Item) String(field string) string {
	return asString(it[field])
}

// StringList returns a multi-value field as a string slice, nil when absent.
// Empty entries are kept: date lists carry "" placeholders for children
// without a date, and dropping them would shift positions.
func (it Item) StringList(field string) []string {
	raw, ok := it[field]
	if !ok || raw == nil {
		return nil
	}
	list, ok := raw.([]interface{})
	if !ok {
		// Single scalar in a multi-field slot
		if s := asString(raw); s != "" {
			return []string{s}
		}
		return nil
	}
	out := make([]string, 0, len(list))
	for _, v := range list {
		out = append(out, asString(v))
	}
	return out
}

func asString(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case json.Number:
		return t.String()
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case bool:
		return strconv.FormatBool(t)
	default:
		return ""
	}
}
