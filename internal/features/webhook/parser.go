package webhook

import (
	"fmt"
	"strconv"
	"strings"

	common_models "b24-sync/internal/common/models"
	"b24-sync/internal/config"
)

// TypeMap resolves Bitrix entity type ids to the relation they belong to.
type TypeMap struct {
	ParentTypeID int
	Kinds        map[int]common_models.RelationKind
}

func TypeMapFromConfig(cfg *config.Config) TypeMap {
	return TypeMap{
		ParentTypeID: cfg.SprawyTypeID,
		Kinds: map[int]common_models.RelationKind{
			cfg.PodstawyTypeID: common_models.RelationPodstawy,
			cfg.PracaTypeID:    common_models.RelationPraca,
			cfg.ProcesyTypeID:  common_models.RelationProcesy,
		},
	}
}

// Normalize turns one flattened webhook payload into a ChangeEvent.
//
// Bitrix delivers the same notification in several shapes: query params,
// bracket-keyed form data (data[FIELDS][ID]) and occasionally JSON. The
// caller merges them into params; precedence is handled by the merge order,
// Normalize only reads keys.
func Normalize(params map[string]string, types TypeMap) (common_models.ChangeEvent, error) {
	bitrixEvent := strings.ToUpper(first(params, "event"))

	event := common_models.ChangeEvent{
		BitrixEvent: bitrixEvent,
		Operation:   operationFromEvent(bitrixEvent),
	}

	id := first(params, "data[FIELDS][ID]", "id", "ID")
	contactID := first(params, "data[FIELDS][CONTACT_ID]", "data[FIELDS][contactId]", "contact_id", "CONTACT_ID")

	if strings.Contains(bitrixEvent, "ONCRMCONTACT") {
		event.RelationKind = common_models.RelationContact
		if contactID == "" {
			contactID = id
		}
		if contactID == "" {
			return event, fmt.Errorf("contact event without contact id")
		}
		event.ContactID = contactID
		return event, nil
	}

	if id == "" {
		return event, fmt.Errorf("missing item id")
	}
	event.ContactID = contactID

	rawType := first(params, "data[FIELDS][ENTITY_TYPE_ID]", "entity_type_id", "ENTITY_TYPE_ID")
	if rawType == "" {
		// Automation rules on the case pipeline omit the type id.
		event.RelationKind = common_models.RelationAll
		event.ParentID = id
		return event, nil
	}

	typeID, err := strconv.Atoi(rawType)
	if err != nil {
		return event, fmt.Errorf("bad entity type id %q", rawType)
	}
	if typeID == types.ParentTypeID {
		event.RelationKind = common_models.RelationAll
		event.ParentID = id
		return event, nil
	}
	kind, ok := types.Kinds[typeID]
	if !ok {
		return event, fmt.Errorf("unhandled entity type id %d", typeID)
	}
	event.RelationKind = kind
	event.ChildID = id
	return event, nil
}

func operationFromEvent(bitrixEvent string) common_models.Operation {
	switch {
	case strings.Contains(bitrixEvent, "ADD"):
		return common_models.OperationCreated
	case strings.Contains(bitrixEvent, "DELETE"):
		return common_models.OperationDeleted
	default:
		return common_models.OperationUpdated
	}
}

func first(params map[string]string, keys ...string) string {
	for _, key := range keys {
		if v := params[key]; v != "" {
			return v
		}
	}
	return ""
}
