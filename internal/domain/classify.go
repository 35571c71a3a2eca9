package domain

import (
	"sort"

	"github.com/bytedance/sonic/ast"
)

// Classify fans one decoded value out to every channel it belongs to, in
// generic to specific order. It carries no state between calls.
func Classify(activity Activity) []Event {
	events := []Event{{Channel: DataChannel, Activity: activity}}

	obj, ok := activity.Object()
	if !ok {
		return events
	}

	if verb, ok := obj["verb"].(string); ok && verb != "" {
		events = append(events, Event{Channel: DynamicChannel(ChannelVerb, verb), Activity: activity})
	}

	if isComplianceEnvelope(obj) {
		events = append(events, classifyCompliance(activity, obj)...)
	}

	if isSearchPage(obj) {
		events = append(events, classifyPage(obj)...)
	}

	return events
}

func isComplianceEnvelope(obj map[string]any) bool {
	_, hasSummary := obj["summary"]
	_, hasResults := obj["results"]
	return hasSummary && hasResults
}

func isSearchPage(obj map[string]any) bool {
	if _, ok := obj["next"]; ok {
		return true
	}
	_, hasResults := obj["results"]
	_, hasSummary := obj["summary"]
	return hasResults && !hasSummary
}

func classifyCompliance(activity Activity, obj map[string]any) []Event {
	summary := obj["summary"]
	events := []Event{{Channel: SummaryChannel, Activity: Activity{Value: summary}}}

	if status, ok := lookup(summary, "status"); ok && status == "failure" {
		events = append(events, Event{Channel: FailureChannel, Activity: activity})
	}

	results, _ := obj["results"].([]any)
	for i, entry := range results {
		eventType, ok := firstKeyAt(activity.Raw, "results", i, "original")
		if !ok {
			eventType = firstKey(lookupOrNil(entry, "original"))
		}
		events = append(events, classifyComplianceResult(entry, eventType)...)
	}

	return events
}

func classifyComplianceResult(entry any, eventType string) []Event {
	result := Activity{Value: entry}
	identity := ComplianceIdentity{
		ActivityID: optionalString(lookup(entry, "gnip", "activity", "id")),
		UserID:     optionalString(lookup(entry, "gnip", "user", "id")),
	}

	var events []Event
	emit := func(kind ChannelKind, label string) {
		if label == "" {
			return
		}
		events = append(events, Event{
			Channel:  DynamicChannel(kind, label),
			Activity: result,
			Identity: identity,
		})
	}

	emit(ChannelEvent, eventType)
	emit(ChannelProduct, labelAt(entry, "gnip", "labels", "product"))
	emit(ChannelStreamType, labelAt(entry, "gnip", "labels", "streamType"))

	return events
}

func classifyPage(obj map[string]any) []Event {
	var cursor *string
	if next, ok := scalarString(obj["next"]); ok && next != "" {
		cursor = &next
	}

	return []Event{
		{Channel: PageNextChannel, Cursor: cursor},
		{Channel: PageIsLastChannel, IsLast: cursor == nil},
	}
}

func optionalString(value any, ok bool) *string {
	if !ok {
		return nil
	}
	s, ok := scalarString(value)
	if !ok {
		return nil
	}
	return &s
}

func labelAt(value any, path ...string) string {
	label, ok := lookup(value, path...)
	if !ok {
		return ""
	}
	s, _ := scalarString(label)
	return s
}

// firstKeyAt returns the first key, in wire order, of the object found at
// path inside raw.
func firstKeyAt(raw []byte, path ...any) (string, bool) {
	if len(raw) == 0 {
		return "", false
	}
	node, err := ast.NewSearcher(string(raw)).GetByPath(path...)
	if err != nil {
		return "", false
	}
	props, err := node.Properties()
	if err != nil {
		return "", false
	}
	var pair ast.Pair
	if !props.Next(&pair) {
		return "", false
	}
	return pair.Key, true
}

// firstKey is used for values built without wire bytes. Decoded objects lose
// key order, so with several keys the lexically smallest one is used.
func firstKey(value any) string {
	obj, ok := value.(map[string]any)
	if !ok || len(obj) == 0 {
		return ""
	}
	keys := make([]string, 0, len(obj))
	for key := range obj {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys[0]
}

func lookupOrNil(value any, path ...string) any {
	found, _ := lookup(value, path...)
	return found
}
