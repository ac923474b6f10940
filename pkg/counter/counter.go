// Package counter enforces the comment length limit shown under text areas.
package counter

import "strconv"

const (
	Limit     = 500
	WarnAbove = 400
)

type State struct {
	Text      string
	Length    int
	Label     string
	Warn      bool
	Truncated bool
}

// Update counts runes in text against Limit. Longer input is cut to Limit and
// flagged so the caller can tell the user.
func Update(text string) State {
	return UpdateWithLimit(text, Limit)
}

func UpdateWithLimit(text string, limit int) State {
	runes := []rune(text)
	st := State{Text: text, Length: len(runes)}
	if st.Length > limit {
		st.Text = string(runes[:limit])
		st.Length = limit
		st.Truncated = true
	}
	st.Label = strconv.Itoa(st.Length) + "/" + strconv.Itoa(limit)
	st.Warn = st.Length > limit*WarnAbove/Limit
	return st
}
