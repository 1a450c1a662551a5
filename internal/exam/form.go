package exam

import (
	"net/url"
	"sort"
	"strings"
)

const choiceFieldPrefix = "choice_"

// ExtractChoiceIDs reads the selected choices of an HTML exam form. Each
// checked box is posted as a field named choice_<id>; the value is ignored.
func ExtractChoiceIDs(form url.Values) []string {
	out := []string{}
	for key := range form {
		id := strings.TrimPrefix(key, choiceFieldPrefix)
		if id == key || id == "" {
			continue
		}
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
