package sqlitestore

import (
	"encoding/json"
	"fmt"

	"github.com/obsidiangroup/gromox-sub002/exmdb"
)

// isKnownFolderTag reports whether tag has its own Folders column;
// everything else rides in ExtraProps.
func isKnownFolderTag(tag exmdb.PropTag) bool {
	switch tag {
	case exmdb.PropTagFolderType, exmdb.PropTagDisplayName, exmdb.PropTagComment,
		exmdb.PropTagCreationTime, exmdb.PropTagLastModificationTime,
		exmdb.PropTagChangeNumber, exmdb.PropTagChangeKey,
		exmdb.PropTagPredecessorChangeList, exmdb.PropTagParentFolderID,
		exmdb.PropTagHasRules:
		return true
	}
	return false
}

func isKnownMessageTag(tag exmdb.PropTag) bool {
	switch tag {
	case exmdb.PropTagNonReceiptNotificationRequest, exmdb.PropTagRead:
		return true
	}
	return false
}

// decodeExtraProps parses an ExtraProps JSON blob into a property bag:
// every key that parses as a decimal tag becomes a PropVal with that
// tag; keys that do not parse are skipped.
func decodeExtraProps(blob string) (exmdb.PropVals, error) {
	if blob == "" {
		return nil, nil
	}
	var raw map[string]interface{}
	if err := json.Unmarshal([]byte(blob), &raw); err != nil {
		return nil, fmt.Errorf("sqlitestore: decode extra props: %w", err)
	}
	var out exmdb.PropVals
	for k, v := range raw {
		var tag uint32
		if _, err := fmt.Sscanf(k, "%d", &tag); err != nil {
			continue
		}
		out = append(out, exmdb.PropVal{Tag: exmdb.PropTag(tag), Value: v})
	}
	return out, nil
}

// mergeExtraProps applies vals on top of the existing ExtraProps blob,
// returning the updated JSON to store back.
func mergeExtraProps(blob string, vals exmdb.PropVals) (string, error) {
	raw := map[string]interface{}{}
	if blob != "" {
		if err := json.Unmarshal([]byte(blob), &raw); err != nil {
			return "", fmt.Errorf("sqlitestore: merge extra props: %w", err)
		}
	}
	for _, pv := range vals {
		raw[fmt.Sprintf("%d", uint32(pv.Tag))] = pv.Value
	}
	out, err := json.Marshal(raw)
	if err != nil {
		return "", fmt.Errorf("sqlitestore: marshal extra props: %w", err)
	}
	return string(out), nil
}

func extraPropValue(blob string, tag exmdb.PropTag) (interface{}, bool) {
	if blob == "" {
		return nil, false
	}
	var raw map[string]interface{}
	if err := json.Unmarshal([]byte(blob), &raw); err != nil {
		return nil, false
	}
	v, ok := raw[fmt.Sprintf("%d", uint32(tag))]
	return v, ok
}
