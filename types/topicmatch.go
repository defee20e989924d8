package types

import "strings"

// TopicFilterMatch reports whether topic matches an MQTT topic filter,
// honoring the "$"-prefixed system-topic exclusion from wildcards. This is
// a minimal copy of the matching rule kept local to types so that the ACL
// rule evaluation above has no dependency on the topic package; the full
// subscriber-routing trie lives in package topic.
func TopicFilterMatch(filter, topic string) bool {
	if strings.HasPrefix(topic, "$") && (strings.Contains(filter, "#") || strings.Contains(filter, "+")) {
		return false
	}
	if filter == topic {
		return true
	}
	fl := strings.Split(filter, "/")
	tl := strings.Split(topic, "/")
	fi, ti := 0, 0
	for fi < len(fl) && ti < len(tl) {
		switch fl[fi] {
		case "#":
			return true
		case "+":
			fi++
			ti++
		default:
			if fl[fi] != tl[ti] {
				return false
			}
			fi++
			ti++
		}
	}
	if fi < len(fl) && fl[fi] == "#" {
		return true
	}
	return fi == len(fl) && ti == len(tl)
}
