package hosted

import (
	"strconv"
	"strings"
	"unicode"
)

// assignIDs returns one unique id per parameter. The plugin's own id wins;
// otherwise the name is slugified. Repeats get _2, _3 and so on in index
// order.
func assignIDs(infos []ParameterInfo) []string {
	ids := make([]string, len(infos))
	used := make(map[string]struct{}, len(infos))

	for i, info := range infos {
		base := strings.TrimSpace(info.ID)
		if base == "" {
			base = slugify(info.Name)
		}

		if base == "" {
			base = "param"
		}

		id := base
		for n := 2; ; n++ {
			if _, taken := used[id]; !taken {
				break
			}

			id = base + "_" + strconv.Itoa(n)
		}

		used[id] = struct{}{}
		ids[i] = id
	}

	return ids
}

func slugify(name string) string {
	var b strings.Builder

	gap := false
	for _, r := range strings.ToLower(name) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if gap && b.Len() > 0 {
				b.WriteByte('_')
			}

			b.WriteRune(r)
			gap = false

			continue
		}

		gap = true
	}

	return b.String()
}
